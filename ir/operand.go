package ir

import (
	"fmt"
	"strconv"

	"github.com/chazu/callsite/runtime"
)

// OperandKind discriminates the closed set of operand variants.
type OperandKind uint8

const (
	KindMethAddr   OperandKind = iota // literal method name
	KindVariable                      // local or temporary variable
	KindSelf                          // the self reference
	KindString                        // string literal
	KindFixnum                        // integer literal
	KindSymbol                        // symbol literal
	KindMetaObject                    // compile-time-known scope
)

var operandKindNames = [...]string{
	KindMethAddr:   "methaddr",
	KindVariable:   "variable",
	KindSelf:       "self",
	KindString:     "string",
	KindFixnum:     "fixnum",
	KindSymbol:     "symbol",
	KindMetaObject: "metaobject",
}

func (k OperandKind) String() string {
	if int(k) < len(operandKindNames) {
		return operandKindNames[k]
	}
	return fmt.Sprintf("OperandKind(%d)", uint8(k))
}

// Operand is a value reference consumed by an instruction.
//
// The set of implementations is closed; every variant is a pointer type, so
// operands used as map keys compare by identity. Two literals with equal
// contents are still distinct operands.
type Operand interface {
	Kind() OperandKind
	// CloneForInlining returns the operand as it should appear in an
	// inlined copy. Variables are renamed through ii; every other variant
	// yields a fresh, equal instance.
	CloneForInlining(ii *InlinerInfo) Operand
	// Retrieve produces the operand's live value.
	Retrieve(interp *Interp) (runtime.Value, error)
	String() string

	operand()
}

// MethAddr is a literal method name.
type MethAddr struct {
	Name string
}

// NewMethAddr returns a method-address operand for name.
func NewMethAddr(name string) *MethAddr { return &MethAddr{Name: name} }

func (*MethAddr) operand()          {}
func (*MethAddr) Kind() OperandKind { return KindMethAddr }
func (m *MethAddr) String() string  { return "'" + m.Name }

func (m *MethAddr) CloneForInlining(ii *InlinerInfo) Operand { return &MethAddr{Name: m.Name} }

func (m *MethAddr) Retrieve(interp *Interp) (runtime.Value, error) {
	return runtime.SymbolValue(m.Name), nil
}

// Variable is a named local or compiler temporary.
type Variable struct {
	Name string
}

// NewVariable returns a variable operand.
func NewVariable(name string) *Variable { return &Variable{Name: name} }

func (*Variable) operand()          {}
func (*Variable) Kind() OperandKind { return KindVariable }
func (v *Variable) String() string  { return v.Name }

func (v *Variable) CloneForInlining(ii *InlinerInfo) Operand { return ii.RenamedVariable(v) }

func (v *Variable) Retrieve(interp *Interp) (runtime.Value, error) {
	return interp.Get(v)
}

// SelfVariable is the receiver of the executing method or closure.
type SelfVariable struct {
	Name string
}

// NewSelf returns a self reference.
func NewSelf() *SelfVariable { return &SelfVariable{Name: "%self"} }

func (*SelfVariable) operand()          {}
func (*SelfVariable) Kind() OperandKind { return KindSelf }
func (s *SelfVariable) String() string  { return s.Name }

// CloneForInlining maps the callee's self onto the variable the inliner
// binds to the call receiver.
func (s *SelfVariable) CloneForInlining(ii *InlinerInfo) Operand { return ii.renamedSelf() }

func (s *SelfVariable) Retrieve(interp *Interp) (runtime.Value, error) {
	return interp.Self, nil
}

// StringLiteral is a string constant.
type StringLiteral struct {
	Value string
}

// NewString returns a string literal operand.
func NewString(s string) *StringLiteral { return &StringLiteral{Value: s} }

func (*StringLiteral) operand()          {}
func (*StringLiteral) Kind() OperandKind { return KindString }
func (s *StringLiteral) String() string  { return strconv.Quote(s.Value) }

func (s *StringLiteral) CloneForInlining(ii *InlinerInfo) Operand {
	return &StringLiteral{Value: s.Value}
}

func (s *StringLiteral) Retrieve(interp *Interp) (runtime.Value, error) {
	return runtime.StringValue(s.Value), nil
}

// Fixnum is an integer constant.
type Fixnum struct {
	Value int64
}

// NewFixnum returns an integer literal operand.
func NewFixnum(n int64) *Fixnum { return &Fixnum{Value: n} }

func (*Fixnum) operand()          {}
func (*Fixnum) Kind() OperandKind { return KindFixnum }
func (f *Fixnum) String() string  { return strconv.FormatInt(f.Value, 10) }

func (f *Fixnum) CloneForInlining(ii *InlinerInfo) Operand { return &Fixnum{Value: f.Value} }

func (f *Fixnum) Retrieve(interp *Interp) (runtime.Value, error) {
	return runtime.IntValue(f.Value), nil
}

// SymbolLiteral is a symbol constant. Passed as a closure it stands for a
// symbol-to-block conversion such as &:foo.
type SymbolLiteral struct {
	Name string
}

// NewSymbol returns a symbol literal operand.
func NewSymbol(name string) *SymbolLiteral { return &SymbolLiteral{Name: name} }

func (*SymbolLiteral) operand()          {}
func (*SymbolLiteral) Kind() OperandKind { return KindSymbol }
func (s *SymbolLiteral) String() string  { return ":" + s.Name }

func (s *SymbolLiteral) CloneForInlining(ii *InlinerInfo) Operand {
	return &SymbolLiteral{Name: s.Name}
}

func (s *SymbolLiteral) Retrieve(interp *Interp) (runtime.Value, error) {
	return runtime.SymbolValue(s.Name), nil
}

// MetaObject references a scope known at compile time: a class or module
// literal, or the closure passed to a call.
type MetaObject struct {
	Scope *Scope
}

// NewMetaObject returns a reference to scope.
func NewMetaObject(scope *Scope) *MetaObject { return &MetaObject{Scope: scope} }

func (*MetaObject) operand()          {}
func (*MetaObject) Kind() OperandKind { return KindMetaObject }
func (m *MetaObject) String() string  { return "meta<" + m.Scope.String() + ">" }

func (m *MetaObject) CloneForInlining(ii *InlinerInfo) Operand { return &MetaObject{Scope: m.Scope} }

func (m *MetaObject) Retrieve(interp *Interp) (runtime.Value, error) {
	return interp.scopeValue(m.Scope)
}
