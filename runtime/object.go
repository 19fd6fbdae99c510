package runtime

import (
	"fmt"
	"strings"
)

// registerObjectClass registers the Object base class. Every class
// registered through Runtime.RegisterClass inherits from it.
func registerObjectClass(r *Runtime) *Class {
	d := r.Dispatcher
	methods := NewMethodTable()

	// send: selector, args... - dynamic dispatch by name
	methods.AddInstanceMethod("send", VariadicArgs, func(self Value, args []Value, blk *Block) (Value, error) {
		if len(args) < 1 {
			return NilValue(), &DispatchError{Selector: "send", Err: ErrArity, Detail: "send requires a selector"}
		}
		selector, ok := args[0].AsName()
		if !ok {
			return NilValue(), fmt.Errorf("send: %s is not a symbol nor a string", args[0])
		}
		return d.CallMethod(self, selector, args[1:], blk)
	})

	methods.AddInstanceMethod("respond_to?", 1, func(self Value, args []Value, blk *Block) (Value, error) {
		selector, ok := args[0].AsName()
		if !ok {
			return BoolValue(false), nil
		}
		return BoolValue(d.RespondsTo(self, selector)), nil
	})

	methods.AddInstanceMethod("class", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		if self.Type == TypeClass {
			// No metaclasses: every class object is an instance of Class.
			v, _ := r.Class(ClassClass)
			return v, nil
		}
		class, _ := d.ClassOf(self)
		if class == nil {
			return NilValue(), nil
		}
		return ClassValue(class), nil
	})

	methods.AddInstanceMethod("==", 1, func(self Value, args []Value, blk *Block) (Value, error) {
		return BoolValue(Equal(self, args[0])), nil
	})

	methods.AddInstanceMethod("!", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		return BoolValue(!self.IsTruthy()), nil
	})

	methods.AddInstanceMethod("nil?", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		return BoolValue(self.IsNil()), nil
	})

	methods.AddInstanceMethod("printString", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		return StringValue(self.String()), nil
	})

	// lambda { ... } and proc { ... } wrap the passed block
	methods.AddInstanceMethod("lambda", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		if blk == nil {
			return NilValue(), fmt.Errorf("lambda: tried to create Proc object without a block")
		}
		return ProcValue(NewProc(blk, true)), nil
	})
	methods.AddInstanceMethod("proc", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		if blk == nil {
			return NilValue(), fmt.Errorf("proc: tried to create Proc object without a block")
		}
		return ProcValue(NewProc(blk, false)), nil
	})

	// new - class method creating an instance and running initialize
	methods.AddClassMethod("new", VariadicArgs, func(self Value, args []Value, blk *Block) (Value, error) {
		inst, err := r.OS.NewInstance(self.ClassVal.Name)
		if err != nil {
			return NilValue(), err
		}
		v := InstanceValue(inst)
		if d.RespondsTo(v, "initialize") {
			if _, err := d.CallMethod(v, "initialize", args, blk); err != nil {
				return NilValue(), err
			}
		}
		return v, nil
	})

	methods.AddClassMethod("name", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		return StringValue(self.ClassVal.Name), nil
	})

	return r.OS.RegisterClass(ObjectClass, "", nil, methods)
}

// registerProcClasses registers Proc and Block, the callable wrappers.
func registerProcClasses(r *Runtime) {
	procMethods := NewMethodTable()

	// Proc.new { ... }
	procMethods.AddClassMethod("new", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		if blk == nil {
			return NilValue(), fmt.Errorf("Proc.new: tried to create Proc object without a block")
		}
		return ProcValue(NewProc(blk, false)), nil
	})
	procMethods.AddInstanceMethod("call", VariadicArgs, func(self Value, args []Value, blk *Block) (Value, error) {
		return self.ProcVal.Block.Call(args)
	})
	procMethods.AddInstanceMethod("lambda?", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		return BoolValue(self.ProcVal.Lambda), nil
	})
	procMethods.AddInstanceMethod("arity", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		return IntValue(int64(self.ProcVal.Block.Arity)), nil
	})
	r.RegisterClass(ProcClass, "", nil, procMethods)

	blockMethods := NewMethodTable()
	blockMethods.AddInstanceMethod("call", VariadicArgs, func(self Value, args []Value, blk *Block) (Value, error) {
		return self.BlockVal.Call(args)
	})
	r.RegisterClass(BlockClass, "", nil, blockMethods)
}

// registerLiteralClasses registers the classes of literal values.
func registerLiteralClasses(r *Runtime) {
	d := r.Dispatcher

	intMethods := NewMethodTable()
	intMethods.AddInstanceMethod("+", 1, intOp(func(a, b int64) Value { return IntValue(a + b) }))
	intMethods.AddInstanceMethod("-", 1, intOp(func(a, b int64) Value { return IntValue(a - b) }))
	intMethods.AddInstanceMethod("*", 1, intOp(func(a, b int64) Value { return IntValue(a * b) }))
	intMethods.AddInstanceMethod("<", 1, intOp(func(a, b int64) Value { return BoolValue(a < b) }))
	intMethods.AddInstanceMethod("times", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		if blk == nil {
			return self, nil
		}
		for i := int64(0); i < self.IntVal; i++ {
			if _, err := blk.Call([]Value{IntValue(i)}); err != nil {
				return NilValue(), err
			}
		}
		return self, nil
	})
	intMethods.AddInstanceMethod("to_s", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		return StringValue(self.AsString()), nil
	})
	r.RegisterClass(IntegerClass, "", nil, intMethods)

	strMethods := NewMethodTable()
	strMethods.AddInstanceMethod("length", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		return IntValue(int64(len([]rune(self.StringVal)))), nil
	})
	strMethods.AddInstanceMethod("+", 1, func(self Value, args []Value, blk *Block) (Value, error) {
		if args[0].Type != TypeString {
			return NilValue(), fmt.Errorf("no implicit conversion of %s into String", args[0].Type)
		}
		return StringValue(self.StringVal + args[0].StringVal), nil
	})
	strMethods.AddInstanceMethod("upcase", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		return StringValue(strings.ToUpper(self.StringVal)), nil
	})
	r.RegisterClass(StringClass, "", nil, strMethods)

	symMethods := NewMethodTable()
	// to_proc turns :foo into { |x| x.foo }
	symMethods.AddInstanceMethod("to_proc", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		selector := self.StringVal
		b := NewBlock(VariadicArgs, func(args []Value) (Value, error) {
			if len(args) == 0 {
				return NilValue(), &DispatchError{Selector: selector, Err: ErrArity, Detail: "no receiver given"}
			}
			return d.CallMethod(args[0], selector, args[1:], nil)
		})
		return ProcValue(NewProc(b, true)), nil
	})
	symMethods.AddInstanceMethod("to_s", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		return StringValue(self.StringVal), nil
	})
	r.RegisterClass(SymbolClass, "", nil, symMethods)

	r.RegisterClass(ClassClass, "", nil, nil)
	r.RegisterClass(BooleanClass, "", nil, nil)
	r.RegisterClass(NilClass, "", nil, nil)
}

func intOp(fn func(a, b int64) Value) MethodFunc {
	return func(self Value, args []Value, blk *Block) (Value, error) {
		if args[0].Type != TypeInt {
			return NilValue(), fmt.Errorf("%s can't be coerced into Integer", args[0].Type)
		}
		return fn(self.IntVal, args[0].IntVal), nil
	}
}

// Equal reports value equality: by content for immediates and strings,
// by identity for everything else.
func Equal(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TypeNil:
		return true
	case TypeInt:
		return a.IntVal == b.IntVal
	case TypeBool:
		return a.BoolVal == b.BoolVal
	case TypeString, TypeSymbol:
		return a.StringVal == b.StringVal
	case TypeInstance:
		return a.InstanceVal == b.InstanceVal
	case TypeClass:
		return a.ClassVal == b.ClassVal
	case TypeBlock:
		return a.BlockVal == b.BlockVal
	case TypeProc:
		return a.ProcVal == b.ProcVal
	}
	return false
}
