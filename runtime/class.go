package runtime

import "sync"

// MethodFunc implements a method natively. blk is nil when the call passed
// no block.
type MethodFunc func(self Value, args []Value, blk *Block) (Value, error)

// VariadicArgs is the arity of a method or block taking any argument count.
const VariadicArgs = -1

// Side says whether a method is looked up on instances or on the class
// object itself.
type Side uint8

const (
	InstanceSide Side = iota
	ClassSide
)

// MethodEntry is one installed method.
type MethodEntry struct {
	Selector string
	NumArgs  int
	Side     Side
	Impl     MethodFunc
}

// MethodTable maps selectors to methods, one map per side.
type MethodTable struct {
	sides [2]map[string]*MethodEntry
}

func NewMethodTable() *MethodTable {
	return &MethodTable{sides: [2]map[string]*MethodEntry{
		InstanceSide: make(map[string]*MethodEntry),
		ClassSide:    make(map[string]*MethodEntry),
	}}
}

func (mt *MethodTable) define(side Side, selector string, numArgs int, impl MethodFunc) {
	mt.sides[side][selector] = &MethodEntry{Selector: selector, NumArgs: numArgs, Side: side, Impl: impl}
}

// AddInstanceMethod installs a method understood by instances.
func (mt *MethodTable) AddInstanceMethod(selector string, numArgs int, impl MethodFunc) {
	mt.define(InstanceSide, selector, numArgs, impl)
}

// AddClassMethod installs a method understood by the class object.
func (mt *MethodTable) AddClassMethod(selector string, numArgs int, impl MethodFunc) {
	mt.define(ClassSide, selector, numArgs, impl)
}

// Lookup returns the method for selector on side, ignoring superclasses.
func (mt *MethodTable) Lookup(side Side, selector string) *MethodEntry {
	if mt == nil {
		return nil
	}
	return mt.sides[side][selector]
}

// Class is a registered class. Fields lists the instance variables,
// inherited ones first.
type Class struct {
	Name       string
	Superclass *Class
	Fields     []string
	Methods    *MethodTable
}

// Instance is an object created by Class.new.
type Instance struct {
	ID    string
	Class *Class

	mu   sync.RWMutex
	vars map[string]Value
}

// GetVar returns the instance variable name, or nil when unset.
func (inst *Instance) GetVar(name string) Value {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	return inst.vars[name]
}

// SetVar assigns the instance variable name.
func (inst *Instance) SetVar(name string, v Value) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.vars[name] = v
}
