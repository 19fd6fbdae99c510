package runtime

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ObjectSpace holds the registered classes and the live instances.
// It may be shared by several interpreters.
type ObjectSpace struct {
	classMu sync.RWMutex
	classes map[string]*Class

	instMu    sync.RWMutex
	instances map[string]*Instance
}

func NewObjectSpace() *ObjectSpace {
	return &ObjectSpace{
		classes:   make(map[string]*Class),
		instances: make(map[string]*Instance),
	}
}

// RegisterClass installs a class under name, replacing any earlier one.
// The superclass is looked up by name; an unknown or empty name leaves the
// class as a root.
func (os *ObjectSpace) RegisterClass(name, superclass string, fields []string, methods *MethodTable) *Class {
	if methods == nil {
		methods = NewMethodTable()
	}
	c := &Class{Name: name, Methods: methods}

	os.classMu.Lock()
	defer os.classMu.Unlock()
	if superclass != "" {
		c.Superclass = os.classes[superclass]
	}
	if c.Superclass != nil {
		c.Fields = append(append([]string(nil), c.Superclass.Fields...), fields...)
	} else {
		c.Fields = fields
	}
	os.classes[name] = c
	return c
}

// GetClass returns the class registered under name, or nil.
func (os *ObjectSpace) GetClass(name string) *Class {
	os.classMu.RLock()
	defer os.classMu.RUnlock()
	return os.classes[name]
}

// NewInstance creates an instance of the named class with every field nil.
func (os *ObjectSpace) NewInstance(className string) (*Instance, error) {
	c := os.GetClass(className)
	if c == nil {
		return nil, &DispatchError{Receiver: className, Selector: "new", Err: ErrNoClass}
	}

	inst := &Instance{
		ID:    instanceID(className),
		Class: c,
		vars:  make(map[string]Value, len(c.Fields)),
	}
	for _, f := range c.Fields {
		inst.vars[f] = NilValue()
	}

	os.instMu.Lock()
	os.instances[inst.ID] = inst
	os.instMu.Unlock()
	return inst, nil
}

// GetInstance returns the live instance with id, or nil.
func (os *ObjectSpace) GetInstance(id string) *Instance {
	os.instMu.RLock()
	defer os.instMu.RUnlock()
	return os.instances[id]
}

// InstanceCount returns the number of live instances.
func (os *ObjectSpace) InstanceCount() int {
	os.instMu.RLock()
	defer os.instMu.RUnlock()
	return len(os.instances)
}

// LookupMethod searches class and its superclasses for selector on side.
func (os *ObjectSpace) LookupMethod(class *Class, selector string, side Side) *MethodEntry {
	os.classMu.RLock()
	defer os.classMu.RUnlock()
	for c := class; c != nil; c = c.Superclass {
		if m := c.Methods.Lookup(side, selector); m != nil {
			return m
		}
	}
	return nil
}

// instanceID returns "<class>_<uuid>" with the class name lowercased.
func instanceID(className string) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(className), uuid.NewString())
}
