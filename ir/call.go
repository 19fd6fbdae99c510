package ir

import (
	"fmt"

	"github.com/chazu/callsite/runtime"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("callsite.ir")

// CallInstr invokes a method on a receiver with arguments and an optional
// closure, storing the result in a variable.
//
// Operand layout: [methAddr, receiver, arg_0 ... arg_{k-1}, closure?].
// Index 0 is always the method address, index 1 the receiver, and the last
// slot holds the closure iff one was supplied. Simplification may replace
// any operand but never changes the arity.
type CallInstr struct {
	operandList

	methAddr Operand
	closure  Operand
	numArgs  int
	flags    callFlags

	// owner is the scope whose body holds this instruction. It supplies the
	// arena for mapping literal receivers to their core classes.
	owner *Scope
}

// NewCallInstr builds a call. result and closure may be nil; owner may be
// nil for an instruction that is not yet placed in a scope.
func NewCallInstr(owner *Scope, result *Variable, methAddr, receiver Operand, args []Operand, closure Operand) *CallInstr {
	return &CallInstr{
		operandList: operandList{
			op:       OpCall,
			result:   result,
			operands: buildOperands(methAddr, receiver, args, closure),
		},
		methAddr: methAddr,
		closure:  closure,
		numArgs:  len(args),
		owner:    owner,
	}
}

func buildOperands(methAddr, receiver Operand, args []Operand, closure Operand) []Operand {
	n := 2 + len(args)
	if closure != nil {
		n++
	}
	ops := make([]Operand, 0, n)
	ops = append(ops, methAddr, receiver)
	ops = append(ops, args...)
	if closure != nil {
		ops = append(ops, closure)
	}
	return ops
}

// MethodAddr returns the method-address operand.
func (c *CallInstr) MethodAddr() Operand { return c.methAddr }

// Receiver returns the receiver operand.
func (c *CallInstr) Receiver() Operand { return c.operands[1] }

// Closure returns the closure operand, or nil.
func (c *CallInstr) Closure() Operand { return c.closure }

// NumArgs returns the number of call arguments, excluding the receiver and
// closure.
func (c *CallInstr) NumArgs() int { return c.numArgs }

// Owner returns the scope holding this instruction, or nil.
func (c *CallInstr) Owner() *Scope { return c.owner }

// CallArgs returns a freshly allocated slice of the call arguments. Callers
// may modify it without affecting the instruction.
func (c *CallInstr) CallArgs() []Operand {
	args := make([]Operand, c.numArgs)
	copy(args, c.operands[2:2+c.numArgs])
	return args
}

// methodName returns the literal method name, if the address is one.
func (c *CallInstr) methodName() (string, bool) {
	if ma, ok := c.methAddr.(*MethAddr); ok {
		return ma.Name, true
	}
	return "", false
}

// SimplifyOperands rewrites operands by identity, then resyncs the cached
// method-address and closure views and drops the cached flags.
func (c *CallInstr) SimplifyOperands(valueMap map[Operand]Operand) bool {
	changed := c.simplifyOperands(valueMap)
	c.methAddr = c.operands[0]
	if c.closure != nil {
		c.closure = c.operands[len(c.operands)-1]
	}
	c.flags.invalidate()
	if changed {
		log.Debugf("simplified %s", c)
	}
	return changed
}

// TargetMethodWithReceiver speculatively resolves the method this call would
// invoke if receiver were its receiver. It returns nil when the target
// cannot be known statically.
func (c *CallInstr) TargetMethodWithReceiver(receiver Operand) *Scope {
	name, ok := c.methodName()
	if !ok {
		return nil
	}

	switch r := receiver.(type) {
	case *MetaObject:
		if r.Scope == nil {
			return nil
		}
		return r.Scope.ClassMethod(name)
	case *SelfVariable:
		// Instance or class context is not known here.
		return nil
	default:
		class := c.targetClass(receiver)
		if class == nil {
			return nil
		}
		return class.InstanceMethod(name)
	}
}

// targetClass returns the statically known class of a receiver operand.
func (c *CallInstr) targetClass(receiver Operand) *Scope {
	if c.owner == nil {
		return nil
	}
	arena := c.owner.arena
	switch receiver.(type) {
	case *StringLiteral:
		return arena.Lookup(runtime.StringClass)
	case *Fixnum:
		return arena.Lookup(runtime.IntegerClass)
	case *SymbolLiteral:
		return arena.Lookup(runtime.SymbolClass)
	case *Variable, *MethAddr, *MetaObject, *SelfVariable:
		return nil
	}
	return nil
}

// TargetMethod resolves the target using the actual receiver.
func (c *CallInstr) TargetMethod() *Scope {
	return c.TargetMethodWithReceiver(c.Receiver())
}

// IsStaticCallTarget reports whether the target method is known statically.
func (c *CallInstr) IsStaticCallTarget() bool {
	return c.TargetMethod() != nil
}

// CanModifyCode reports whether the call can lead to code being defined or
// redefined. An unknown target is assumed to.
func (c *CallInstr) CanModifyCode() bool {
	m := c.TargetMethod()
	return m == nil || m.ModifiesCode()
}

// CanBeEval reports whether the call might evaluate arbitrary code.
func (c *CallInstr) CanBeEval() bool {
	c.flags.compute(c)
	return c.flags.canBeEval
}

// RequiresFrame reports whether the caller must materialize a full frame
// for this call.
func (c *CallInstr) RequiresFrame() bool {
	c.flags.compute(c)
	return c.flags.requiresFrame
}

// CanCaptureCallersFrame reports whether the callee can capture the
// caller's frame. An unresolved target is assumed to.
func (c *CallInstr) CanCaptureCallersFrame() bool {
	m := c.TargetMethodWithReceiver(c.Receiver())
	return m == nil || m.CanCaptureCallersFrame()
}

// IsDataflowBarrier reports whether local variable state must be fully
// materialized across this call: it can be an eval, or it passes a closure
// to a callee that can capture the caller's frame.
func (c *CallInstr) IsDataflowBarrier() bool {
	return c.CanBeEval() || (c.closure != nil && c.CanCaptureCallersFrame())
}

// CloneForInlining copies the call with the result renamed and every operand
// cloned through ii. The copy belongs to ii's target scope.
func (c *CallInstr) CloneForInlining(ii *InlinerInfo) Instr {
	args := make([]Operand, c.numArgs)
	for i, a := range c.operands[2 : 2+c.numArgs] {
		args[i] = a.CloneForInlining(ii)
	}
	var closure Operand
	if c.closure != nil {
		closure = c.closure.CloneForInlining(ii)
	}
	return NewCallInstr(
		ii.Target(),
		ii.RenamedVariable(c.result),
		c.methAddr.CloneForInlining(ii),
		c.Receiver().CloneForInlining(ii),
		args,
		closure,
	)
}

func (c *CallInstr) String() string {
	s := c.resultPrefix() + fmt.Sprintf("call(%s, %s, [%s]", c.methAddr, c.Receiver(), joinOperands(c.operands[2:2+c.numArgs]))
	if c.closure != nil {
		s += ", &" + c.closure.String()
	}
	return s + ")"
}
