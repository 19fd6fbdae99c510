package ir

import (
	"errors"
	"fmt"
)

// ErrNotInlinable is returned when a call cannot be replaced by the callee
// body.
var ErrNotInlinable = errors.New("call is not inlinable")

// ---------------------------------------------------------------------------
// Copy propagation
// ---------------------------------------------------------------------------

// PropagateCopies replaces uses of single-assignment copy targets with the
// copied operand, across every instruction of s. It returns the number of
// instructions that changed. Copies themselves are left in place.
//
// A variable source qualifies only if it holds the same value for the rest
// of the scope: it is never assigned, or assigned exactly once by an
// instruction of s that precedes the copy.
func PropagateCopies(s *Scope) int {
	defs := assignedNames(s)

	definedAt := make(map[string]int)
	sources := make(map[string]Operand)
	for i, instr := range s.instrs {
		if r := instr.Result(); r != nil {
			if _, seen := definedAt[r.Name]; !seen {
				definedAt[r.Name] = i
			}
		}
		cp, ok := instr.(*CopyInstr)
		if !ok || cp.result == nil || defs[cp.result.Name] != 1 {
			continue
		}
		if v, ok := cp.Source().(*Variable); ok && defs[v.Name] > 0 {
			at, local := definedAt[v.Name]
			if defs[v.Name] > 1 || !local || at >= i {
				continue
			}
		}
		sources[cp.result.Name] = cp.Source()
	}
	if len(sources) == 0 {
		return 0
	}

	// The map is keyed by the operands that actually occur, so the
	// rewrite stays an identity replacement.
	valueMap := make(map[Operand]Operand)
	for _, instr := range s.instrs {
		for _, o := range instr.Operands() {
			v, ok := o.(*Variable)
			if !ok {
				continue
			}
			if src := resolveCopy(v.Name, sources); src != nil {
				valueMap[o] = src
			}
		}
	}

	changed := 0
	for _, instr := range s.instrs {
		if instr.SimplifyOperands(valueMap) {
			changed++
		}
	}
	log.Debugf("propagated copies in %s: %d instructions changed", s, changed)
	return changed
}

// resolveCopy follows copy chains a = b, b = c to the final source.
func resolveCopy(name string, sources map[string]Operand) Operand {
	var src Operand
	seen := make(map[string]bool)
	for !seen[name] {
		seen[name] = true
		next, ok := sources[name]
		if !ok {
			break
		}
		src = next
		v, ok := next.(*Variable)
		if !ok {
			break
		}
		name = v.Name
	}
	return src
}

// assignedNames counts definitions per variable name in s and in every
// closure nested in it, since closures write to their creator's frame.
func assignedNames(s *Scope) map[string]int {
	defs := make(map[string]int)
	count := func(body *Scope) {
		for _, instr := range body.instrs {
			if r := instr.Result(); r != nil {
				defs[r.Name]++
			}
		}
	}
	count(s)
	for _, c := range s.arena.scopes {
		if c.Kind == ScopeClosure && nestedIn(c, s) {
			count(c)
		}
	}
	return defs
}

func nestedIn(inner, outer *Scope) bool {
	for p := inner.LexicalParent(); p != nil; p = p.LexicalParent() {
		if p == outer {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Scope analysis
// ---------------------------------------------------------------------------

// Summary is the per-scope result the variable allocator consumes.
type Summary struct {
	Scope         *Scope
	Calls         int
	StaticCalls   int
	EvalCalls     int
	Barriers      []int // instruction indices
	RequiresFrame bool
}

// HasBarrier reports whether any instruction forces full materialization
// of local variables.
func (sum Summary) HasBarrier() bool { return len(sum.Barriers) > 0 }

// AnalyzeScope computes the call flags of every call in s.
func AnalyzeScope(s *Scope) Summary {
	sum := Summary{Scope: s}
	for i, instr := range s.instrs {
		c, ok := instr.(*CallInstr)
		if !ok {
			continue
		}
		sum.Calls++
		if c.IsStaticCallTarget() {
			sum.StaticCalls++
		}
		if c.CanBeEval() {
			sum.EvalCalls++
		}
		if c.IsDataflowBarrier() {
			sum.Barriers = append(sum.Barriers, i)
		}
	}
	sum.RequiresFrame = s.RequiresFrame()
	return sum
}

// InferMethodFlags marks a method that contains an eval-capable call,
// directly or in a nested closure, as able to capture its caller's frame
// and modify code. It returns the flags that were added.
func InferMethodFlags(m *Scope) MethodFlags {
	if m.Kind != ScopeMethod {
		return 0
	}
	evals := func(body *Scope) bool {
		for _, instr := range body.instrs {
			if c, ok := instr.(*CallInstr); ok && c.CanBeEval() {
				return true
			}
		}
		return false
	}

	found := evals(m)
	for _, c := range m.arena.scopes {
		if found {
			break
		}
		if c.Kind == ScopeClosure && nestedIn(c, m) {
			found = evals(c)
		}
	}
	if !found {
		return 0
	}

	want := MethodCapturesCallersFrame | MethodModifiesCode
	added := want &^ m.flags
	m.AddFlags(want)
	return added
}

// ---------------------------------------------------------------------------
// Inlining
// ---------------------------------------------------------------------------

// Inline returns the instructions that replace call inside into: the
// receiver and arguments bound to the callee's self and parameters, the
// cloned callee body, and a copy of the callee's last result into the
// call's result.
func Inline(call *CallInstr, into *Scope) ([]Instr, error) {
	callee := call.TargetMethod()
	if callee == nil {
		return nil, fmt.Errorf("%w: %s has no static target", ErrNotInlinable, call)
	}
	if call.IsDataflowBarrier() {
		return nil, fmt.Errorf("%w: %s is a dataflow barrier", ErrNotInlinable, call)
	}
	if call.Closure() != nil {
		return nil, fmt.Errorf("%w: %s passes a closure", ErrNotInlinable, call)
	}
	if callee.RequiresFrame() {
		return nil, fmt.Errorf("%w: %s requires a frame", ErrNotInlinable, callee)
	}
	// Closure bodies are not cloned, so they would keep reading the
	// callee's variables under their original names.
	if hasClosures(callee) {
		return nil, fmt.Errorf("%w: %s creates closures", ErrNotInlinable, callee)
	}
	if len(callee.params) != call.NumArgs() {
		return nil, fmt.Errorf("%w: %s takes %d arguments, call passes %d",
			ErrNotInlinable, callee, len(callee.params), call.NumArgs())
	}

	var lastResult *Variable
	if n := len(callee.instrs); n > 0 {
		lastResult = callee.instrs[n-1].Result()
	}
	if call.Result() != nil && lastResult == nil {
		return nil, fmt.Errorf("%w: %s produces no result", ErrNotInlinable, callee)
	}

	ii := NewInlinerInfo(into)
	out := make([]Instr, 0, len(callee.instrs)+call.NumArgs()+2)
	out = append(out, NewCopyInstr(ii.renamedSelf(), call.Receiver()))
	for i, arg := range call.CallArgs() {
		param := &Variable{Name: callee.params[i]}
		out = append(out, NewCopyInstr(ii.RenamedVariable(param), arg))
	}
	for _, instr := range callee.instrs {
		out = append(out, instr.CloneForInlining(ii))
	}
	if call.Result() != nil {
		out = append(out, NewCopyInstr(call.Result(), ii.RenamedVariable(lastResult)))
	}

	log.Debugf("inlined %s into %s (%d instructions)", callee, into, len(out))
	return out, nil
}

// hasClosures reports whether any closure scope is nested in m.
func hasClosures(m *Scope) bool {
	for _, c := range m.arena.scopes {
		if c.Kind == ScopeClosure && nestedIn(c, m) {
			return true
		}
	}
	return false
}

// InlineCall replaces the call at index of s with the inlined callee body.
func InlineCall(s *Scope, index int) error {
	if index < 0 || index >= len(s.instrs) {
		return fmt.Errorf("instruction index %d out of range", index)
	}
	call, ok := s.instrs[index].(*CallInstr)
	if !ok {
		return fmt.Errorf("%w: instruction %d is not a call", ErrNotInlinable, index)
	}
	body, err := Inline(call, s)
	if err != nil {
		return err
	}

	instrs := make([]Instr, 0, len(s.instrs)-1+len(body))
	instrs = append(instrs, s.instrs[:index]...)
	instrs = append(instrs, body...)
	instrs = append(instrs, s.instrs[index+1:]...)
	s.SetInstrs(instrs)
	return nil
}
