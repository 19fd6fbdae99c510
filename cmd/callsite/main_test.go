package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/callsite/ir"
	"github.com/chazu/callsite/ir/wire"
	"github.com/chazu/callsite/runtime"
)

func TestAnalyzeDemo(t *testing.T) {
	a := demoArena()
	res := analyze(a, options{propagate: true, inline: true})

	if res.Propagated == 0 {
		t.Error("no operands propagated")
	}
	if len(res.Inferred) != 1 || res.Inferred[0].Name != "peek" {
		t.Errorf("inferred = %v, want [Greeter.peek]", res.Inferred)
	}
	// "callsite".shout in main and Greeter.greet("you") in reflect.
	if res.Inlined != 2 {
		t.Errorf("inlined %d calls, want 2", res.Inlined)
	}

	v, err := runScript(a, "main")
	if err != nil {
		t.Fatalf("runScript: %v", err)
	}
	if v.Type != runtime.TypeString || v.StringVal != "CALLSITE" {
		t.Errorf("main => %s, want CALLSITE", v)
	}
}

func TestRunWithoutInliningFails(t *testing.T) {
	a := demoArena()
	analyze(a, options{propagate: true})

	// String#shout only exists in the IR, so dispatch fails at runtime.
	_, err := runScript(a, "main")
	if !errors.Is(err, runtime.ErrNoMethod) {
		t.Errorf("err = %v, want ErrNoMethod", err)
	}
	if _, err := runScript(a, "nope"); err == nil {
		t.Error("running a missing script succeeded")
	}
}

func TestListingAnnotatesCalls(t *testing.T) {
	a := demoArena()
	analyze(a, options{propagate: true})

	var buf bytes.Buffer
	writeListing(&buf, a)
	out := buf.String()

	for _, want := range []string{
		"script main:",
		"script reflect:",
		"target=Greeter.greet",
		"eval frame barrier",
		"call('upcase, \"hello\", [])",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestDemoUnitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.cbor")
	if err := wire.WriteFile(path, "demo", demoArena()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, a, err := wire.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	res := analyze(a, options{propagate: true, inline: true})
	if res.Inlined != 2 {
		t.Errorf("inlined %d calls after decode, want 2", res.Inlined)
	}
	v, err := runScript(a, "main")
	if err != nil || v.StringVal != "CALLSITE" {
		t.Errorf("main => %s, %v", v, err)
	}
}

func TestAnnotate(t *testing.T) {
	a := ir.NewArena()
	s := a.NewScript("t")
	plain := s.AddCall(nil, ir.NewMethAddr("foo"), ir.NewVariable("x"), nil, nil)
	if got := annotate(plain); got != "modifies-code" {
		t.Errorf("annotate(plain) = %q", got)
	}
}
