package runtime

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMethod means the receiver's class chain has no such selector.
	ErrNoMethod = errors.New("no such method")
	// ErrArity means the method exists but was called with the wrong argument count.
	ErrArity = errors.New("wrong number of arguments")
	// ErrNoClass means the receiver has no class registered in the object space.
	ErrNoClass = errors.New("receiver has no class")
)

// DispatchError reports a failed method call. It wraps one of the package
// sentinels so callers can test with errors.Is.
type DispatchError struct {
	Receiver string
	Selector string
	Err      error
	Detail   string
}

func (e *DispatchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Err, e.Selector)
	if e.Receiver != "" {
		msg = fmt.Sprintf("%s: %s#%s", e.Err, e.Receiver, e.Selector)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Dispatcher handles message dispatch in the runtime
type Dispatcher struct {
	os *ObjectSpace
}

// NewDispatcher creates a new message dispatcher
func NewDispatcher(os *ObjectSpace) *Dispatcher {
	return &Dispatcher{os: os}
}

// ClassOf returns the class used for method lookup on v and the side to
// search: class objects answer class-side methods.
func (d *Dispatcher) ClassOf(v Value) (*Class, Side) {
	switch v.Type {
	case TypeInstance:
		if v.InstanceVal != nil {
			return v.InstanceVal.Class, InstanceSide
		}
		return nil, InstanceSide
	case TypeClass:
		return v.ClassVal, ClassSide
	case TypeInt:
		return d.os.GetClass(IntegerClass), InstanceSide
	case TypeString:
		return d.os.GetClass(StringClass), InstanceSide
	case TypeSymbol:
		return d.os.GetClass(SymbolClass), InstanceSide
	case TypeBool:
		return d.os.GetClass(BooleanClass), InstanceSide
	case TypeProc:
		return d.os.GetClass(ProcClass), InstanceSide
	case TypeBlock:
		return d.os.GetClass(BlockClass), InstanceSide
	default:
		return d.os.GetClass(NilClass), InstanceSide
	}
}

// CallMethod dispatches selector to receiver with args and an optional block.
// Failures are returned as *DispatchError; method bodies may return their
// own errors, which are passed through unchanged.
func (d *Dispatcher) CallMethod(receiver Value, selector string, args []Value, blk *Block) (Value, error) {
	class, side := d.ClassOf(receiver)
	if class == nil {
		return NilValue(), &DispatchError{Receiver: receiver.Type.String(), Selector: selector, Err: ErrNoClass}
	}

	method := d.lookup(class, selector, side)
	if method == nil {
		return NilValue(), &DispatchError{Receiver: class.Name, Selector: selector, Err: ErrNoMethod}
	}
	if method.NumArgs != VariadicArgs && len(args) != method.NumArgs {
		return NilValue(), &DispatchError{
			Receiver: class.Name,
			Selector: selector,
			Err:      ErrArity,
			Detail:   fmt.Sprintf("expected %d, got %d", method.NumArgs, len(args)),
		}
	}

	return method.Impl(receiver, args, blk)
}

// Send dispatches a message without a block.
func (d *Dispatcher) Send(receiver Value, selector string, args ...Value) (Value, error) {
	return d.CallMethod(receiver, selector, args, nil)
}

// RespondsTo reports whether receiver understands selector.
func (d *Dispatcher) RespondsTo(receiver Value, selector string) bool {
	class, side := d.ClassOf(receiver)
	if class == nil {
		return false
	}
	return d.lookup(class, selector, side) != nil
}

// lookup finds selector on the given side. Class objects are themselves
// objects, so a class-side miss falls back to Object's instance methods.
func (d *Dispatcher) lookup(class *Class, selector string, side Side) *MethodEntry {
	if m := d.os.LookupMethod(class, selector, side); m != nil || side != ClassSide {
		return m
	}
	return d.os.LookupMethod(d.os.GetClass(ObjectClass), selector, InstanceSide)
}
