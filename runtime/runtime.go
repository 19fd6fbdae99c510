package runtime

// Core class names. The IR arena mirrors the ones the static analysis
// needs to know about.
const (
	ObjectClass  = "Object"
	ProcClass    = "Proc"
	BlockClass   = "Block"
	IntegerClass = "Integer"
	StringClass  = "String"
	SymbolClass  = "Symbol"
	BooleanClass = "Boolean"
	NilClass     = "NilClass"
	ClassClass   = "Class"
)

// Runtime is the main entry point for the shared runtime.
// It coordinates the object space and dispatch.
type Runtime struct {
	OS         *ObjectSpace
	Dispatcher *Dispatcher
}

// New creates a runtime with the core classes registered.
func New() *Runtime {
	r := &Runtime{OS: NewObjectSpace()}
	r.Dispatcher = NewDispatcher(r.OS)

	registerObjectClass(r)
	registerProcClasses(r)
	registerLiteralClasses(r)

	return r
}

// CallMethod lets a Runtime stand in wherever a dispatcher is expected.
func (r *Runtime) CallMethod(receiver Value, selector string, args []Value, blk *Block) (Value, error) {
	return r.Dispatcher.CallMethod(receiver, selector, args, blk)
}

// RegisterClass registers a class deriving from Object unless another
// superclass is given.
func (r *Runtime) RegisterClass(name, superclass string, instanceVars []string, methods *MethodTable) *Class {
	if superclass == "" && name != ObjectClass {
		superclass = ObjectClass
	}
	return r.OS.RegisterClass(name, superclass, instanceVars, methods)
}

// Class returns the class object for name as a value, and whether it exists.
func (r *Runtime) Class(name string) (Value, bool) {
	c := r.OS.GetClass(name)
	if c == nil {
		return NilValue(), false
	}
	return ClassValue(c), true
}
