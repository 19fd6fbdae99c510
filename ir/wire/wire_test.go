package wire

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/callsite/ir"
	"github.com/fxamacker/cbor/v2"
)

// buildArena returns a small program:
//
//	class Foo; def self.build(x) = x.dup; end
//	class String; def shout = upcase; end
//	obj = Foo.build(1); obj.each { |y| eval(y) }; obj.send("eval", "1")
func buildArena() *ir.Arena {
	a := ir.NewArena()
	foo := a.NewClass("Foo", a.Lookup("Object"))
	build := a.NewMethod(foo, "build", true, []string{"x"}, 0)
	build.AddCall(build.NewTemporaryVariable(), ir.NewMethAddr("dup"), ir.NewVariable("x"), nil, nil)

	shout := a.NewMethod(a.Lookup("String"), "shout", false, nil, ir.MethodModifiesCode)
	shout.AddCall(ir.NewVariable("t"), ir.NewMethAddr("upcase"), ir.NewSelf(), nil, nil)

	main := a.NewScript("main")
	obj := ir.NewVariable("obj")
	main.AddCall(obj, ir.NewMethAddr("build"), ir.NewMetaObject(foo), []ir.Operand{ir.NewFixnum(1)}, nil)

	body := a.NewClosure(main, []string{"y"})
	body.AddCall(nil, ir.NewMethAddr("eval"), ir.NewSelf(), []ir.Operand{ir.NewVariable("y")}, nil)
	main.AddCall(nil, ir.NewMethAddr("each"), obj, nil, ir.NewMetaObject(body))
	main.AddCall(ir.NewVariable("r"), ir.NewMethAddr("send"), obj,
		[]ir.Operand{ir.NewString("eval"), ir.NewString("1")}, nil)
	main.AddCopy(ir.NewVariable("s"), ir.NewSymbol("done"))
	return a
}

func roundTrip(t *testing.T, a *ir.Arena) *ir.Arena {
	t.Helper()
	data, err := MarshalUnit(Encode("test", a))
	if err != nil {
		t.Fatalf("MarshalUnit: %v", err)
	}
	u, err := UnmarshalUnit(data)
	if err != nil {
		t.Fatalf("UnmarshalUnit: %v", err)
	}
	if u.Name != "test" || u.Version != FormatVersion {
		t.Fatalf("unit header = %q v%d", u.Name, u.Version)
	}
	got, err := Decode(u)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestUnit_RoundTripListing(t *testing.T) {
	a := buildArena()
	got := roundTrip(t, a)

	if got.Len() != a.Len() {
		t.Fatalf("decoded %d scopes, want %d", got.Len(), a.Len())
	}
	want := a.Scopes()
	for i, s := range got.Scopes() {
		if s.Dump() != want[i].Dump() {
			t.Errorf("scope %d listing:\n%s\nwant:\n%s", i, s.Dump(), want[i].Dump())
		}
		if s.Flags() != want[i].Flags() {
			t.Errorf("scope %s flags = %b, want %b", s, s.Flags(), want[i].Flags())
		}
	}
}

func TestUnit_RoundTripPreservesSharedOperands(t *testing.T) {
	got := roundTrip(t, buildArena())
	main := findScope(t, got, "main")

	calls := callsOf(main)
	if len(calls) != 3 {
		t.Fatalf("main has %d calls, want 3", len(calls))
	}
	// The result of the first call and the receivers of the next two are
	// one variable.
	obj := calls[0].Result()
	if calls[1].Receiver() != ir.Operand(obj) || calls[2].Receiver() != ir.Operand(obj) {
		t.Error("shared variable decoded into distinct operands")
	}

	// An identity rewrite of that variable reaches every use.
	repl := ir.NewVariable("other")
	for _, c := range calls {
		c.SimplifyOperands(map[ir.Operand]ir.Operand{obj: repl})
	}
	if calls[1].Receiver() != ir.Operand(repl) || calls[2].Receiver() != ir.Operand(repl) {
		t.Error("rewrite did not reach every use")
	}
}

func TestUnit_RoundTripPreservesFlags(t *testing.T) {
	a := buildArena()
	got := roundTrip(t, a)

	before := callsOf(findScope(t, a, "main"))
	after := callsOf(findScope(t, got, "main"))
	for i := range before {
		b, c := before[i], after[i]
		if b.NumArgs() != c.NumArgs() || (b.Closure() == nil) != (c.Closure() == nil) {
			t.Errorf("call %d layout changed: %s vs %s", i, b, c)
		}
		if b.CanBeEval() != c.CanBeEval() || b.RequiresFrame() != c.RequiresFrame() {
			t.Errorf("call %d flags changed", i)
		}
		if b.IsDataflowBarrier() != c.IsDataflowBarrier() {
			t.Errorf("call %d barrier changed", i)
		}
		if (b.TargetMethod() == nil) != (c.TargetMethod() == nil) {
			t.Errorf("call %d static target changed", i)
		}
		if c.Owner() == nil || c.Owner().Name != "main" {
			t.Errorf("call %d owner = %s", i, c.Owner())
		}
	}

	// The user method on the core String class is still reachable.
	shout := got.Lookup("String").InstanceMethod("shout")
	if shout == nil || !shout.ModifiesCode() {
		t.Errorf("String#shout = %v after decode", shout)
	}
}

func TestUnit_CanonicalEncoding(t *testing.T) {
	a := buildArena()
	d1, err := MarshalUnit(Encode("x", a))
	if err != nil {
		t.Fatalf("MarshalUnit: %v", err)
	}
	d2, err := MarshalUnit(Encode("x", a))
	if err != nil {
		t.Fatalf("MarshalUnit: %v", err)
	}
	if !bytes.Equal(d1, d2) {
		t.Error("encoding is not deterministic")
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(u *Unit)
	}{
		{"version", func(u *Unit) { u.Version = 99 }},
		{"operand index", func(u *Unit) {
			s := &u.Scopes[len(u.Scopes)-2]
			s.Instrs[0].Operands[0] = 1000
		}},
		{"result not a variable", func(u *Unit) {
			s := &u.Scopes[len(u.Scopes)-2]
			s.Instrs[0].Result = s.Instrs[0].Operands[0]
		}},
		{"call arity", func(u *Unit) {
			s := &u.Scopes[len(u.Scopes)-2]
			s.Instrs[0].NumArgs = 5
		}},
		{"unknown core", func(u *Unit) { u.Scopes[0].Name = "Nope" }},
		{"dangling scope", func(u *Unit) {
			u.Operands = append(u.Operands, OperandRecord{Kind: ir.KindMetaObject, Scope: 500})
		}},
		{"unknown kind", func(u *Unit) {
			u.Operands = append(u.Operands, OperandRecord{Kind: 200})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := Encode("bad", buildArena())
			tt.mutate(u)
			if _, err := Decode(u); !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestFile_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build", "app.cbor")
	if err := WriteFile(path, "app", buildArena()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	u, a, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if u.Name != "app" {
		t.Errorf("unit name = %q", u.Name)
	}
	if a.Lookup("Foo") == nil {
		t.Error("class Foo missing after ReadFile")
	}

	if _, _, err := ReadFile(filepath.Join(t.TempDir(), "missing.cbor")); err == nil {
		t.Error("ReadFile of a missing file succeeded")
	}
}

func TestUnit_MetaObjectOfFirstScope(t *testing.T) {
	a := ir.NewArena()
	object := a.Lookup("Object")
	if object.ID != 0 {
		t.Fatalf("Object scope id = %d, want 0", object.ID)
	}
	main := a.NewScript("main")
	main.AddCall(ir.NewVariable("o"), ir.NewMethAddr("new"), ir.NewMetaObject(object), nil, nil)

	u := Encode("test", a)
	for _, rec := range u.Operands {
		if rec.Kind != ir.KindMetaObject {
			continue
		}
		data, err := cbor.Marshal(rec)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var fields map[int]any
		if err := cbor.Unmarshal(data, &fields); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if _, ok := fields[4]; !ok {
			t.Errorf("meta object record %x has no scope field", data)
		}
	}

	got := roundTrip(t, a)
	call := callsOf(findScope(t, got, "main"))[0]
	meta, ok := call.Receiver().(*ir.MetaObject)
	if !ok || meta.Scope != got.Lookup("Object") {
		t.Errorf("receiver = %s, want the Object meta object", call.Receiver())
	}
}

func findScope(t *testing.T, a *ir.Arena, name string) *ir.Scope {
	t.Helper()
	for _, s := range a.Scopes() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no scope named %s", name)
	return nil
}

func callsOf(s *ir.Scope) []*ir.CallInstr {
	var out []*ir.CallInstr
	for _, instr := range s.Instrs() {
		if c, ok := instr.(*ir.CallInstr); ok {
			out = append(out, c)
		}
	}
	return out
}
