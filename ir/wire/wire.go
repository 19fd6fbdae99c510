package wire

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/callsite/ir"
	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("callsite.wire")

// ErrMalformed is returned when a unit does not describe a valid arena.
var ErrMalformed = errors.New("wire: malformed unit")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalUnit serializes a Unit to canonical CBOR bytes.
func MarshalUnit(u *Unit) ([]byte, error) {
	return cborEncMode.Marshal(u)
}

// UnmarshalUnit deserializes a Unit from CBOR bytes.
func UnmarshalUnit(data []byte) (*Unit, error) {
	var u Unit
	if err := cbor.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("wire: unmarshal unit: %w", err)
	}
	return &u, nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

type encoder struct {
	unit *Unit
	pool map[ir.Operand]int
}

// Encode captures every scope of a and the instructions they hold.
func Encode(name string, a *ir.Arena) *Unit {
	e := &encoder{
		unit: &Unit{Version: FormatVersion, Name: name},
		pool: make(map[ir.Operand]int),
	}
	for _, s := range a.Scopes() {
		e.unit.Scopes = append(e.unit.Scopes, e.scope(s))
	}
	return e.unit
}

func scopeRef(s *ir.Scope) ir.ScopeID {
	if s == nil {
		return ir.NoScope
	}
	return s.ID
}

func (e *encoder) scope(s *ir.Scope) ScopeRecord {
	rec := ScopeRecord{
		ID:        s.ID,
		Kind:      s.Kind,
		Name:      s.Name,
		Core:      s.IsCore(),
		Parent:    scopeRef(s.LexicalParent()),
		Super:     scopeRef(s.Superclass()),
		Owner:     scopeRef(s.Owner()),
		ClassSide: s.IsClassSide(),
		Params:    s.Params(),
		Flags:     s.Flags(),
	}
	for _, instr := range s.Instrs() {
		rec.Instrs = append(rec.Instrs, e.instr(instr))
	}
	return rec
}

func (e *encoder) instr(instr ir.Instr) InstrRecord {
	rec := InstrRecord{Op: instr.Operation(), Result: NoOperand}
	if r := instr.Result(); r != nil {
		rec.Result = e.operand(r)
	}
	for _, o := range instr.Operands() {
		rec.Operands = append(rec.Operands, e.operand(o))
	}
	if c, ok := instr.(*ir.CallInstr); ok {
		rec.NumArgs = c.NumArgs()
		rec.HasClosure = c.Closure() != nil
	}
	return rec
}

func (e *encoder) operand(o ir.Operand) int {
	if idx, ok := e.pool[o]; ok {
		return idx
	}
	rec := OperandRecord{Kind: o.Kind()}
	switch v := o.(type) {
	case *ir.MethAddr:
		rec.Name = v.Name
	case *ir.Variable:
		rec.Name = v.Name
	case *ir.SelfVariable:
		rec.Name = v.Name
	case *ir.StringLiteral:
		rec.Name = v.Value
	case *ir.Fixnum:
		rec.Int = v.Value
	case *ir.SymbolLiteral:
		rec.Name = v.Name
	case *ir.MetaObject:
		rec.Scope = scopeRef(v.Scope)
	}
	idx := len(e.unit.Operands)
	e.unit.Operands = append(e.unit.Operands, rec)
	e.pool[o] = idx
	return idx
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

type decoder struct {
	unit     *Unit
	arena    *ir.Arena
	scopes   map[ir.ScopeID]*ir.Scope
	operands []ir.Operand
}

// Decode rebuilds the arena described by u. Core scopes are matched by name
// against the ones NewArena registers; every other scope is created anew,
// so scope IDs may differ from the encoded ones while references between
// scopes are preserved.
func Decode(u *Unit) (*ir.Arena, error) {
	if u.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, u.Version)
	}
	d := &decoder{
		unit:   u,
		arena:  ir.NewArena(),
		scopes: make(map[ir.ScopeID]*ir.Scope, len(u.Scopes)),
	}

	for i := range u.Scopes {
		if err := d.scope(&u.Scopes[i]); err != nil {
			return nil, err
		}
	}

	// Operands may reference any scope, so they are built once every scope
	// exists.
	d.operands = make([]ir.Operand, len(u.Operands))
	for i, rec := range u.Operands {
		o, err := d.operand(rec)
		if err != nil {
			return nil, fmt.Errorf("operand %d: %w", i, err)
		}
		d.operands[i] = o
	}

	for i := range u.Scopes {
		rec := &u.Scopes[i]
		s := d.scopes[rec.ID]
		for j, irec := range rec.Instrs {
			instr, err := d.instr(s, irec)
			if err != nil {
				return nil, fmt.Errorf("%s instruction %d: %w", s, j, err)
			}
			s.AddInstr(instr)
		}
	}

	log.Debugf("decoded unit %q: %d scopes, %d operands", u.Name, len(u.Scopes), len(u.Operands))
	return d.arena, nil
}

func (d *decoder) ref(id ir.ScopeID) (*ir.Scope, error) {
	if id == ir.NoScope {
		return nil, nil
	}
	s, ok := d.scopes[id]
	if !ok {
		return nil, fmt.Errorf("%w: reference to unknown scope %d", ErrMalformed, id)
	}
	return s, nil
}

func (d *decoder) scope(rec *ScopeRecord) error {
	if _, dup := d.scopes[rec.ID]; dup {
		return fmt.Errorf("%w: duplicate scope id %d", ErrMalformed, rec.ID)
	}

	if rec.Core {
		s := d.arena.Lookup(rec.Name)
		if s == nil || !s.IsCore() {
			return fmt.Errorf("%w: %s is not a core class", ErrMalformed, rec.Name)
		}
		s.AddFlags(rec.Flags)
		d.scopes[rec.ID] = s
		return nil
	}

	var s *ir.Scope
	switch rec.Kind {
	case ir.ScopeScript:
		s = d.arena.NewScript(rec.Name)
	case ir.ScopeClass:
		super, err := d.ref(rec.Super)
		if err != nil {
			return err
		}
		s = d.arena.NewClass(rec.Name, super)
	case ir.ScopeModule:
		s = d.arena.NewModule(rec.Name)
	case ir.ScopeMethod:
		owner, err := d.ref(rec.Owner)
		if err != nil {
			return err
		}
		if owner == nil {
			return fmt.Errorf("%w: method %s has no owner", ErrMalformed, rec.Name)
		}
		s = d.arena.NewMethod(owner, rec.Name, rec.ClassSide, rec.Params, rec.Flags)
	case ir.ScopeClosure:
		parent, err := d.ref(rec.Parent)
		if err != nil {
			return err
		}
		if parent == nil {
			return fmt.Errorf("%w: closure %s has no parent", ErrMalformed, rec.Name)
		}
		s = d.arena.NewClosure(parent, rec.Params)
	default:
		return fmt.Errorf("%w: unknown scope kind %d", ErrMalformed, rec.Kind)
	}
	d.scopes[rec.ID] = s
	return nil
}

func (d *decoder) operand(rec OperandRecord) (ir.Operand, error) {
	switch rec.Kind {
	case ir.KindMethAddr:
		return ir.NewMethAddr(rec.Name), nil
	case ir.KindVariable:
		return ir.NewVariable(rec.Name), nil
	case ir.KindSelf:
		return &ir.SelfVariable{Name: rec.Name}, nil
	case ir.KindString:
		return ir.NewString(rec.Name), nil
	case ir.KindFixnum:
		return ir.NewFixnum(rec.Int), nil
	case ir.KindSymbol:
		return ir.NewSymbol(rec.Name), nil
	case ir.KindMetaObject:
		s, err := d.ref(rec.Scope)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, fmt.Errorf("%w: meta object without a scope", ErrMalformed)
		}
		return ir.NewMetaObject(s), nil
	}
	return nil, fmt.Errorf("%w: unknown operand kind %d", ErrMalformed, rec.Kind)
}

func (d *decoder) lookup(idx int) (ir.Operand, error) {
	if idx < 0 || idx >= len(d.operands) {
		return nil, fmt.Errorf("%w: operand index %d out of range", ErrMalformed, idx)
	}
	return d.operands[idx], nil
}

func (d *decoder) instr(owner *ir.Scope, rec InstrRecord) (ir.Instr, error) {
	var result *ir.Variable
	if rec.Result != NoOperand {
		o, err := d.lookup(rec.Result)
		if err != nil {
			return nil, err
		}
		v, ok := o.(*ir.Variable)
		if !ok {
			return nil, fmt.Errorf("%w: result %s is not a variable", ErrMalformed, o)
		}
		result = v
	}

	ops := make([]ir.Operand, len(rec.Operands))
	for i, idx := range rec.Operands {
		o, err := d.lookup(idx)
		if err != nil {
			return nil, err
		}
		ops[i] = o
	}

	switch rec.Op {
	case ir.OpCopy:
		if len(ops) != 1 {
			return nil, fmt.Errorf("%w: copy with %d operands", ErrMalformed, len(ops))
		}
		return ir.NewCopyInstr(result, ops[0]), nil
	case ir.OpCall:
		want := 2 + rec.NumArgs
		if rec.HasClosure {
			want++
		}
		if rec.NumArgs < 0 || len(ops) != want {
			return nil, fmt.Errorf("%w: call with %d operands, %d args", ErrMalformed, len(ops), rec.NumArgs)
		}
		var closure ir.Operand
		if rec.HasClosure {
			closure = ops[len(ops)-1]
		}
		return ir.NewCallInstr(owner, result, ops[0], ops[1], ops[2:2+rec.NumArgs], closure), nil
	}
	return nil, fmt.Errorf("%w: unknown operation %d", ErrMalformed, rec.Op)
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

// WriteFile encodes a and writes it to path, creating parent directories.
func WriteFile(path, name string, a *ir.Arena) error {
	data, err := MarshalUnit(Encode(name, a))
	if err != nil {
		return fmt.Errorf("wire: marshal %s: %w", name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads and decodes the unit at path.
func ReadFile(path string) (*Unit, *ir.Arena, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	u, err := UnmarshalUnit(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	a, err := Decode(u)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, a, nil
}
