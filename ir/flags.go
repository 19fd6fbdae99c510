package ir

import "github.com/chazu/callsite/runtime"

// Method names the flag derivation treats specially.
const (
	nameCall   = "call"
	nameEval   = "eval"
	nameSend   = "send"
	nameLambda = "lambda"
	nameNew    = "new"
)

// callFlags caches the static flags of a call. The values are a pure
// function of the current operands; SimplifyOperands is the only place
// that invalidates them.
type callFlags struct {
	computed      bool
	canBeEval     bool
	requiresFrame bool
}

func (f *callFlags) invalidate() { f.computed = false }

// compute fills the cache if it is stale. requiresFrame reads canBeEval,
// so the order matters.
func (f *callFlags) compute(c *CallInstr) {
	if f.computed {
		return
	}
	f.canBeEval = evalFlag(c)
	f.requiresFrame = f.canBeEval || requiresFrameFlag(c)
	f.computed = true
	log.Debugf("flags %s: eval=%t frame=%t", c, f.canBeEval, f.requiresFrame)
}

// evalFlag decides whether the call might run arbitrary code as an eval.
//
// For send the forwarded selector, the first call argument, is checked
// one level deep: send(:send, :send, :eval) is not followed, and __send__
// is not considered.
func evalFlag(c *CallInstr) bool {
	name, ok := c.methodName()
	if !ok {
		// Unknown method, could be eval.
		return true
	}

	switch name {
	case nameCall, nameEval:
		// call is only an eval when the receiver is a callable; assume it is.
		return true
	case nameSend:
		if c.NumArgs() < 1 {
			return false
		}
		lit, ok := c.CallArgs()[0].(*StringLiteral)
		if !ok {
			return true
		}
		switch lit.Value {
		case nameCall, nameEval, nameSend:
			return true
		}
	}
	return false
}

// requiresFrameFlag covers the rules after the eval check.
func requiresFrameFlag(c *CallInstr) bool {
	if c.closure != nil {
		// A symbol-to-block closure (&:foo) stops the check here: such a
		// call is never treated as creating a lambda or proc.
		meta, ok := c.closure.(*MetaObject)
		if !ok {
			return false
		}
		if meta.Scope != nil && meta.Scope.Kind == ScopeClosure && meta.Scope.RequiresFrame() {
			return true
		}
	}

	name, ok := c.methodName()
	if !ok {
		// Unknown target, could be lambda or Proc.new.
		return true
	}

	switch name {
	case nameLambda:
		return true
	case nameNew:
		meta, ok := c.Receiver().(*MetaObject)
		if !ok {
			// Unknown receiver, could be Proc.
			return true
		}
		return meta.Scope != nil && meta.Scope.Kind == ScopeClass && meta.Scope.Name == runtime.ProcClass
	}
	return false
}
