package ir

import (
	"errors"
	"fmt"

	"github.com/chazu/callsite/runtime"
)

var (
	// ErrIllFormed signals an instruction that cannot be executed as
	// written, such as a method address that does not yield a name.
	// Execution of the call is aborted.
	ErrIllFormed = errors.New("ill-formed instruction")
	// ErrUnbound means a variable was read before anything stored to it.
	ErrUnbound = errors.New("unbound variable")
	// ErrUnresolvedScope means a scope reference has no runtime counterpart.
	ErrUnresolvedScope = errors.New("scope not known to the runtime")
)

// Runtime is what interpreted instructions execute against.
type Runtime interface {
	// CallMethod dispatches selector on receiver. blk is nil when the call
	// passes no block.
	CallMethod(receiver runtime.Value, selector string, args []runtime.Value, blk *runtime.Block) (runtime.Value, error)
	// Class returns the runtime class object named name.
	Class(name string) (runtime.Value, bool)
}

// Interp is the live binding environment of one executing scope body.
// Closure bodies run in a child Interp whose lookups fall back to the parent,
// so blocks see and update the variables of the frame that created them.
type Interp struct {
	Self runtime.Value

	rt     Runtime
	vars   map[string]runtime.Value
	parent *Interp
}

// NewInterp returns a top-level binding environment.
func NewInterp(rt Runtime, self runtime.Value) *Interp {
	return &Interp{
		Self: self,
		rt:   rt,
		vars: make(map[string]runtime.Value),
	}
}

func (in *Interp) child() *Interp {
	return &Interp{
		Self:   in.Self,
		rt:     in.rt,
		vars:   make(map[string]runtime.Value),
		parent: in,
	}
}

// Get returns the value bound to v.
func (in *Interp) Get(v *Variable) (runtime.Value, error) {
	if val, ok := in.Lookup(v.Name); ok {
		return val, nil
	}
	return runtime.NilValue(), fmt.Errorf("%w: %s", ErrUnbound, v.Name)
}

// Lookup returns the value bound to name in this frame or an enclosing one.
func (in *Interp) Lookup(name string) (runtime.Value, bool) {
	for f := in; f != nil; f = f.parent {
		if val, ok := f.vars[name]; ok {
			return val, true
		}
	}
	return runtime.NilValue(), false
}

// Set binds name in the nearest frame that already has it, or locally.
func (in *Interp) Set(name string, val runtime.Value) {
	for f := in; f != nil; f = f.parent {
		if _, ok := f.vars[name]; ok {
			f.vars[name] = val
			return
		}
	}
	in.vars[name] = val
}

// Store writes val to v. Storing to a nil variable is a no-op.
func (in *Interp) Store(v *Variable, val runtime.Value) {
	if v == nil {
		return
	}
	in.Set(v.Name, val)
}

// Run executes the body of s in order and returns the value of the last
// instruction's result, or nil if it has none.
func (in *Interp) Run(s *Scope) (runtime.Value, error) {
	last := runtime.NilValue()
	for _, instr := range s.instrs {
		if err := instr.Interpret(in); err != nil {
			return runtime.NilValue(), err
		}
		last = runtime.NilValue()
		if r := instr.Result(); r != nil {
			last, _ = in.Lookup(r.Name)
		}
	}
	return last, nil
}

// scopeValue materializes a compile-time scope reference: classes and
// modules become class objects, closures become blocks bound to this frame.
func (in *Interp) scopeValue(s *Scope) (runtime.Value, error) {
	if s == nil {
		return runtime.NilValue(), fmt.Errorf("%w: nil scope reference", ErrIllFormed)
	}
	switch s.Kind {
	case ScopeClass, ScopeModule:
		v, ok := in.rt.Class(s.Name)
		if !ok {
			return runtime.NilValue(), fmt.Errorf("%w: %s", ErrUnresolvedScope, s.Name)
		}
		return v, nil
	case ScopeClosure:
		return runtime.BlockValue(in.newBlock(s)), nil
	default:
		return runtime.NilValue(), fmt.Errorf("%w: %s %s is not a value", ErrIllFormed, s.Kind, s)
	}
}

func (in *Interp) newBlock(s *Scope) *runtime.Block {
	params := s.params
	return runtime.NewBlock(len(params), func(args []runtime.Value) (runtime.Value, error) {
		frame := in.child()
		for i, p := range params {
			frame.vars[p] = args[i]
		}
		return frame.Run(s)
	})
}

// Interpret executes the call: receiver, method name, arguments and block
// are retrieved in that order, then the runtime dispatches. Dispatch errors
// are returned unchanged.
func (c *CallInstr) Interpret(interp *Interp) error {
	receiver, err := c.Receiver().Retrieve(interp)
	if err != nil {
		return err
	}

	nameVal, err := c.methAddr.Retrieve(interp)
	if err != nil {
		return err
	}
	name, ok := nameVal.AsName()
	if !ok {
		return fmt.Errorf("%w: method address %s yields %s, not a name", ErrIllFormed, c.methAddr, nameVal.Type)
	}

	args, err := c.prepareArguments(interp)
	if err != nil {
		return err
	}

	var blk *runtime.Block
	if c.closure != nil {
		if blk, err = c.prepareBlock(interp); err != nil {
			return err
		}
	}

	result, err := interp.rt.CallMethod(receiver, name, args, blk)
	if err != nil {
		return err
	}
	interp.Store(c.result, result)
	return nil
}

func (c *CallInstr) prepareArguments(interp *Interp) ([]runtime.Value, error) {
	args := make([]runtime.Value, c.numArgs)
	for i, a := range c.operands[2 : 2+c.numArgs] {
		v, err := a.Retrieve(interp)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// prepareBlock turns the closure operand's value into the block to pass.
// A proc gives up its block; nil means no block.
func (c *CallInstr) prepareBlock(interp *Interp) (*runtime.Block, error) {
	v, err := c.closure.Retrieve(interp)
	if err != nil {
		return nil, err
	}
	switch v.Type {
	case runtime.TypeBlock:
		return v.BlockVal, nil
	case runtime.TypeProc:
		return v.ProcVal.Block, nil
	case runtime.TypeNil:
		return nil, nil
	case runtime.TypeSymbol:
		// &:foo
		p, err := interp.rt.CallMethod(v, "to_proc", nil, nil)
		if err != nil {
			return nil, err
		}
		if p.Type != runtime.TypeProc {
			return nil, fmt.Errorf("%w: %s.to_proc yields %s", ErrIllFormed, v, p.Type)
		}
		return p.ProcVal.Block, nil
	default:
		return nil, fmt.Errorf("%w: closure %s yields %s, not a block", ErrIllFormed, c.closure, v.Type)
	}
}
