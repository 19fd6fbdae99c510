package ir

import (
	"fmt"
	"strings"

	"github.com/chazu/callsite/runtime"
)

// ScopeKind classifies a scope.
type ScopeKind uint8

const (
	ScopeScript ScopeKind = iota
	ScopeClass
	ScopeModule
	ScopeMethod
	ScopeClosure
)

var scopeKindNames = [...]string{
	ScopeScript:  "script",
	ScopeClass:   "class",
	ScopeModule:  "module",
	ScopeMethod:  "method",
	ScopeClosure: "closure",
}

func (k ScopeKind) String() string {
	if int(k) < len(scopeKindNames) {
		return scopeKindNames[k]
	}
	return fmt.Sprintf("ScopeKind(%d)", uint8(k))
}

// ScopeID is a handle into an Arena. NoScope marks an absent reference.
type ScopeID int32

const NoScope ScopeID = -1

// MethodFlags are the properties a method declares, or that inference adds.
type MethodFlags uint32

const (
	// MethodCapturesCallersFrame: the method can read or retain its
	// caller's frame (binding, block_given?-style introspection).
	MethodCapturesCallersFrame MethodFlags = 1 << iota
	// MethodModifiesCode: the method can define or redefine code.
	MethodModifiesCode
	// MethodRequiresFrame: the body needs a materialized frame regardless
	// of what its instructions say.
	MethodRequiresFrame
)

// Arena owns every scope of a compilation unit. Scopes refer to one another
// through ScopeID handles resolved by the arena.
type Arena struct {
	scopes []*Scope
	byName map[string]ScopeID // classes and modules
}

// NewArena returns an arena with the core classes registered.
func NewArena() *Arena {
	a := &Arena{byName: make(map[string]ScopeID)}
	object := a.NewClass(runtime.ObjectClass, nil)
	for _, name := range []string{
		runtime.ProcClass,
		runtime.StringClass,
		runtime.IntegerClass,
		runtime.SymbolClass,
	} {
		a.NewClass(name, object)
	}
	for _, s := range a.scopes {
		s.core = true
	}
	return a
}

// Scope returns the scope for id, or nil.
func (a *Arena) Scope(id ScopeID) *Scope {
	if id < 0 || int(id) >= len(a.scopes) {
		return nil
	}
	return a.scopes[id]
}

// Scopes returns every scope in creation order.
func (a *Arena) Scopes() []*Scope {
	out := make([]*Scope, len(a.scopes))
	copy(out, a.scopes)
	return out
}

// Len returns the number of scopes in the arena.
func (a *Arena) Len() int { return len(a.scopes) }

// Lookup finds a class or module by name.
func (a *Arena) Lookup(name string) *Scope {
	id, ok := a.byName[name]
	if !ok {
		return nil
	}
	return a.scopes[id]
}

func (a *Arena) add(s *Scope) *Scope {
	s.ID = ScopeID(len(a.scopes))
	s.arena = a
	a.scopes = append(a.scopes, s)
	return s
}

func newScope(kind ScopeKind, name string) *Scope {
	return &Scope{
		Kind:   kind,
		Name:   name,
		parent: NoScope,
		super:  NoScope,
		owner:  NoScope,
	}
}

// NewScript creates a top-level script scope.
func (a *Arena) NewScript(name string) *Scope {
	return a.add(newScope(ScopeScript, name))
}

// NewClass creates a class. super may be nil for a root class.
// Re-opening an existing name returns the existing class.
func (a *Arena) NewClass(name string, super *Scope) *Scope {
	if s := a.Lookup(name); s != nil && s.Kind == ScopeClass {
		return s
	}
	s := newScope(ScopeClass, name)
	s.instanceMethods = make(map[string]ScopeID)
	s.classMethods = make(map[string]ScopeID)
	if super != nil {
		s.super = super.ID
	}
	a.add(s)
	a.byName[name] = s.ID
	return s
}

// NewModule creates a module.
func (a *Arena) NewModule(name string) *Scope {
	if s := a.Lookup(name); s != nil && s.Kind == ScopeModule {
		return s
	}
	s := newScope(ScopeModule, name)
	s.instanceMethods = make(map[string]ScopeID)
	s.classMethods = make(map[string]ScopeID)
	a.add(s)
	a.byName[name] = s.ID
	return s
}

// NewMethod creates a method owned by a class or module and installs it in
// the owner's instance-side or class-side table.
func (a *Arena) NewMethod(owner *Scope, name string, classSide bool, params []string, flags MethodFlags) *Scope {
	s := newScope(ScopeMethod, name)
	s.owner = owner.ID
	s.parent = owner.ID
	s.classSide = classSide
	s.params = params
	s.flags = flags
	a.add(s)
	if owner.instanceMethods == nil {
		owner.instanceMethods = make(map[string]ScopeID)
		owner.classMethods = make(map[string]ScopeID)
	}
	if classSide {
		owner.classMethods[name] = s.ID
	} else {
		owner.instanceMethods[name] = s.ID
	}
	return s
}

// NewClosure creates a closure lexically nested in parent.
func (a *Arena) NewClosure(parent *Scope, params []string) *Scope {
	s := newScope(ScopeClosure, "")
	s.parent = parent.ID
	s.params = params
	a.add(s)
	s.Name = fmt.Sprintf("_CLOSURE_%d", s.ID)
	return s
}

// Scope is a class, module, method, closure or script body.
type Scope struct {
	ID   ScopeID
	Kind ScopeKind
	Name string

	arena  *Arena
	core   bool
	parent ScopeID // lexical parent
	super  ScopeID // superclass, classes only
	owner  ScopeID // defining class or module, methods only

	classSide bool
	params    []string
	flags     MethodFlags

	instanceMethods map[string]ScopeID
	classMethods    map[string]ScopeID

	instrs   []Instr
	temps    int
	visiting bool
}

// Arena returns the arena that owns s.
func (s *Scope) Arena() *Arena { return s.arena }

// IsCore reports whether s was registered by NewArena.
func (s *Scope) IsCore() bool { return s.core }

// LexicalParent returns the enclosing scope, or nil.
func (s *Scope) LexicalParent() *Scope { return s.arena.Scope(s.parent) }

// Superclass returns the superclass of a class scope, or nil.
func (s *Scope) Superclass() *Scope { return s.arena.Scope(s.super) }

// Owner returns the class or module defining a method scope, or nil.
func (s *Scope) Owner() *Scope { return s.arena.Scope(s.owner) }

// IsClassSide reports whether a method scope is a class-side method.
func (s *Scope) IsClassSide() bool { return s.classSide }

// Params returns the parameter names of a method or closure.
func (s *Scope) Params() []string { return s.params }

// Flags returns the method flags.
func (s *Scope) Flags() MethodFlags { return s.flags }

// AddFlags sets additional method flags.
func (s *Scope) AddFlags(f MethodFlags) { s.flags |= f }

// InstanceMethod looks up an instance-side method by name, walking the
// superclass chain.
func (s *Scope) InstanceMethod(name string) *Scope {
	for c := s; c != nil; c = c.Superclass() {
		if id, ok := c.instanceMethods[name]; ok {
			return s.arena.Scope(id)
		}
	}
	return nil
}

// ClassMethod looks up a class-side method by name, walking the superclass
// chain.
func (s *Scope) ClassMethod(name string) *Scope {
	for c := s; c != nil; c = c.Superclass() {
		if id, ok := c.classMethods[name]; ok {
			return s.arena.Scope(id)
		}
	}
	return nil
}

// CanCaptureCallersFrame reports whether a method can capture the frame of
// whoever calls it.
func (s *Scope) CanCaptureCallersFrame() bool {
	return s.flags&MethodCapturesCallersFrame != 0
}

// ModifiesCode reports whether a method can define or redefine code.
func (s *Scope) ModifiesCode() bool {
	return s.flags&MethodModifiesCode != 0
}

// RequiresFrame reports whether running this body needs a materialized
// frame: either declared, or some call in the body requires one. A body
// that is reached again while being evaluated answers true.
func (s *Scope) RequiresFrame() bool {
	if s.flags&MethodRequiresFrame != 0 {
		return true
	}
	if s.visiting {
		return true
	}
	s.visiting = true
	defer func() { s.visiting = false }()

	for _, instr := range s.instrs {
		if c, ok := instr.(*CallInstr); ok && c.RequiresFrame() {
			return true
		}
	}
	return false
}

// Instrs returns the instruction list. The slice is shared with the scope.
func (s *Scope) Instrs() []Instr { return s.instrs }

// AddInstr appends instr to the scope body.
func (s *Scope) AddInstr(instr Instr) {
	if c, ok := instr.(*CallInstr); ok {
		c.owner = s
	}
	s.instrs = append(s.instrs, instr)
}

// SetInstrs replaces the scope body.
func (s *Scope) SetInstrs(instrs []Instr) {
	s.instrs = nil
	for _, instr := range instrs {
		s.AddInstr(instr)
	}
}

// NewTemporaryVariable allocates a fresh compiler temporary.
func (s *Scope) NewTemporaryVariable() *Variable {
	s.temps++
	return &Variable{Name: fmt.Sprintf("%%v_%d", s.temps)}
}

// AddCall builds a call instruction owned by s and appends it.
func (s *Scope) AddCall(result *Variable, methAddr, receiver Operand, args []Operand, closure Operand) *CallInstr {
	c := NewCallInstr(s, result, methAddr, receiver, args, closure)
	s.AddInstr(c)
	return c
}

// AddCopy appends result = source.
func (s *Scope) AddCopy(result *Variable, source Operand) *CopyInstr {
	c := NewCopyInstr(result, source)
	s.AddInstr(c)
	return c
}

func (s *Scope) String() string {
	if s == nil {
		return "<nil scope>"
	}
	if s.Kind == ScopeMethod && s.classSide {
		if o := s.Owner(); o != nil {
			return o.Name + "." + s.Name
		}
	}
	if s.Kind == ScopeMethod {
		if o := s.Owner(); o != nil {
			return o.Name + "#" + s.Name
		}
	}
	return s.Name
}

// Dump returns a human-readable listing of the scope body.
func (s *Scope) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", s.Kind, s)
	if len(s.params) > 0 {
		fmt.Fprintf(&sb, "(%s)", strings.Join(s.params, ", "))
	}
	sb.WriteString(":\n")
	for i, instr := range s.instrs {
		fmt.Fprintf(&sb, "%4d  %s\n", i, instr)
	}
	return sb.String()
}
