package runtime

import (
	"errors"
	"strings"
	"testing"
)

// TestCrossClassMessaging verifies that one class can send messages to another class.
func TestCrossClassMessaging(t *testing.T) {
	r := New()
	d := r.Dispatcher

	counterMethods := NewMethodTable()
	counterMethods.AddInstanceMethod("value", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		return self.InstanceVal.GetVar("value"), nil
	})
	counterMethods.AddInstanceMethod("increment", 0, func(self Value, args []Value, blk *Block) (Value, error) {
		current := self.InstanceVal.GetVar("value").AsInt()
		self.InstanceVal.SetVar("value", IntValue(current+1))
		return self.InstanceVal.GetVar("value"), nil
	})
	r.RegisterClass("Counter", "", []string{"value"}, counterMethods)

	managerMethods := NewMethodTable()
	managerMethods.AddInstanceMethod("bump:", 1, func(self Value, args []Value, blk *Block) (Value, error) {
		return d.Send(args[0], "increment")
	})
	r.RegisterClass("CounterManager", "", nil, managerMethods)

	counter, err := r.OS.NewInstance("Counter")
	if err != nil {
		t.Fatalf("Failed to create Counter: %v", err)
	}
	counter.SetVar("value", IntValue(10))

	manager, err := r.OS.NewInstance("CounterManager")
	if err != nil {
		t.Fatalf("Failed to create CounterManager: %v", err)
	}

	result, err := d.Send(InstanceValue(manager), "bump:", InstanceValue(counter))
	if err != nil {
		t.Fatalf("bump: failed: %v", err)
	}
	if result.AsInt() != 11 {
		t.Errorf("Expected 11, got %d", result.AsInt())
	}
}

func TestClassSideNewRunsInitialize(t *testing.T) {
	r := New()

	methods := NewMethodTable()
	methods.AddInstanceMethod("initialize", 1, func(self Value, args []Value, blk *Block) (Value, error) {
		self.InstanceVal.SetVar("name", args[0])
		return NilValue(), nil
	})
	r.RegisterClass("Person", "", []string{"name"}, methods)

	class, ok := r.Class("Person")
	if !ok {
		t.Fatal("Person not registered")
	}
	v, err := r.CallMethod(class, "new", []Value{StringValue("ada")}, nil)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if v.Type != TypeInstance {
		t.Fatalf("Expected instance, got %s", v.Type)
	}
	if got := v.InstanceVal.GetVar("name").AsString(); got != "ada" {
		t.Errorf("Expected name ada, got %q", got)
	}
	if !strings.HasPrefix(v.InstanceVal.ID, "person_") {
		t.Errorf("Expected id prefixed with person_, got %q", v.InstanceVal.ID)
	}
	if r.OS.InstanceCount() != 1 {
		t.Errorf("Expected 1 instance, got %d", r.OS.InstanceCount())
	}
}

func TestDispatchErrors(t *testing.T) {
	r := New()

	_, err := r.Dispatcher.Send(IntValue(1), "frobnicate")
	if !errors.Is(err, ErrNoMethod) {
		t.Errorf("Expected ErrNoMethod, got %v", err)
	}
	var de *DispatchError
	if !errors.As(err, &de) || de.Receiver != IntegerClass || de.Selector != "frobnicate" {
		t.Errorf("Unexpected dispatch error detail: %#v", err)
	}

	_, err = r.Dispatcher.Send(IntValue(1), "+")
	if !errors.Is(err, ErrArity) {
		t.Errorf("Expected ErrArity, got %v", err)
	}
}

func TestSendForwardsToSelector(t *testing.T) {
	r := New()

	v, err := r.Dispatcher.Send(IntValue(2), "send", SymbolValue("+"), IntValue(3))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if v.AsInt() != 5 {
		t.Errorf("Expected 5, got %d", v.AsInt())
	}

	if _, err := r.Dispatcher.Send(IntValue(2), "send", IntValue(3)); err == nil {
		t.Error("Expected error for non-name selector")
	}
}

func TestProcNewAndCall(t *testing.T) {
	r := New()
	procClass, _ := r.Class(ProcClass)

	double := NewBlock(1, func(args []Value) (Value, error) {
		return IntValue(args[0].IntVal * 2), nil
	})

	p, err := r.CallMethod(procClass, "new", nil, double)
	if err != nil {
		t.Fatalf("Proc.new failed: %v", err)
	}
	if p.Type != TypeProc || p.ProcVal.Block != double {
		t.Fatalf("Expected proc wrapping the block, got %s", p)
	}

	v, err := r.Dispatcher.Send(p, "call", IntValue(21))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if v.AsInt() != 42 {
		t.Errorf("Expected 42, got %d", v.AsInt())
	}

	if _, err := r.CallMethod(procClass, "new", nil, nil); err == nil {
		t.Error("Expected Proc.new without a block to fail")
	}

	_, err = r.Dispatcher.Send(p, "call")
	if !errors.Is(err, ErrArity) {
		t.Errorf("Expected ErrArity from block, got %v", err)
	}
}

func TestLambdaMarksProc(t *testing.T) {
	r := New()
	blk := NewBlock(0, func(args []Value) (Value, error) { return IntValue(1), nil })

	v, err := r.CallMethod(IntValue(0), "lambda", nil, blk)
	if err != nil {
		t.Fatalf("lambda failed: %v", err)
	}
	if !v.ProcVal.Lambda {
		t.Error("Expected lambda proc")
	}
}

func TestIntegerTimesYields(t *testing.T) {
	r := New()
	var seen []int64
	blk := NewBlock(1, func(args []Value) (Value, error) {
		seen = append(seen, args[0].IntVal)
		return NilValue(), nil
	})

	if _, err := r.CallMethod(IntValue(3), "times", nil, blk); err != nil {
		t.Fatalf("times failed: %v", err)
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Errorf("Expected [0 1 2], got %v", seen)
	}
}

func TestSymbolToProc(t *testing.T) {
	r := New()

	p, err := r.Dispatcher.Send(SymbolValue("upcase"), "to_proc")
	if err != nil {
		t.Fatalf("to_proc failed: %v", err)
	}
	v, err := p.ProcVal.Block.Call([]Value{StringValue("abc")})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if v.StringVal != "ABC" {
		t.Errorf("Expected ABC, got %q", v.StringVal)
	}
}

func TestValueAsName(t *testing.T) {
	tests := []struct {
		v    Value
		name string
		ok   bool
	}{
		{StringValue("foo"), "foo", true},
		{SymbolValue("bar"), "bar", true},
		{IntValue(1), "", false},
		{NilValue(), "", false},
	}
	for _, tt := range tests {
		name, ok := tt.v.AsName()
		if name != tt.name || ok != tt.ok {
			t.Errorf("AsName(%s) = %q, %v; want %q, %v", tt.v, name, ok, tt.name, tt.ok)
		}
	}
}

func TestNotUsesTruthiness(t *testing.T) {
	r := New()
	tests := []struct {
		v    Value
		want bool
	}{
		{NilValue(), true},
		{BoolValue(false), true},
		{BoolValue(true), false},
		{IntValue(0), false},
		{StringValue(""), false},
	}
	for _, tt := range tests {
		got, err := r.Dispatcher.Send(tt.v, "!")
		if err != nil {
			t.Fatalf("!%s failed: %v", tt.v, err)
		}
		if got.BoolVal != tt.want {
			t.Errorf("!%s = %v, want %v", tt.v, got.BoolVal, tt.want)
		}
	}
}

func TestNewInstanceOfUnknownClass(t *testing.T) {
	r := New()
	_, err := r.OS.NewInstance("Missing")
	if !errors.Is(err, ErrNoClass) {
		t.Errorf("Expected ErrNoClass, got %v", err)
	}
}

func TestClassObjectsAnswerObjectMethods(t *testing.T) {
	r := New()
	r.RegisterClass("Foo", "", nil, nil)
	foo, _ := r.Class("Foo")

	name, err := r.Dispatcher.Send(foo, "send", SymbolValue("name"))
	if err != nil {
		t.Fatalf("Foo.send(:name) failed: %v", err)
	}
	if name.AsString() != "Foo" {
		t.Errorf("Foo.send(:name) = %s, want Foo", name)
	}

	class, err := r.Dispatcher.Send(foo, "class")
	if err != nil {
		t.Fatalf("Foo.class failed: %v", err)
	}
	if class.Type != TypeClass || class.ClassVal.Name != ClassClass {
		t.Errorf("Foo.class = %s, want Class", class)
	}

	for _, sel := range []string{"new", "name", "respond_to?", "nil?"} {
		ok, err := r.Dispatcher.Send(foo, "respond_to?", SymbolValue(sel))
		if err != nil {
			t.Fatalf("Foo.respond_to?(:%s) failed: %v", sel, err)
		}
		if !ok.BoolVal {
			t.Errorf("Foo.respond_to?(:%s) = false", sel)
		}
	}

	if _, err := r.Dispatcher.Send(foo, "add"); !errors.Is(err, ErrNoMethod) {
		t.Errorf("Foo.add: err = %v, want ErrNoMethod", err)
	}
}
