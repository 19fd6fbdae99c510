package ir

import (
	"fmt"
	"strings"
)

// Operation identifies an instruction kind.
type Operation uint8

const (
	OpCall Operation = iota
	OpCopy
)

func (op Operation) String() string {
	switch op {
	case OpCall:
		return "call"
	case OpCopy:
		return "copy"
	default:
		return fmt.Sprintf("Operation(%d)", uint8(op))
	}
}

// Instr is one IR instruction: an operation over an ordered operand list
// with an optional result variable.
type Instr interface {
	Operation() Operation
	// Result is the destination variable, or nil.
	Result() *Variable
	// Operands returns the operand list. The slice is owned by the
	// instruction and must not be modified.
	Operands() []Operand
	// SimplifyOperands replaces every operand that is present, by
	// identity, as a key of valueMap. It reports whether anything changed.
	SimplifyOperands(valueMap map[Operand]Operand) bool
	// CloneForInlining returns a structurally independent copy with
	// variables renamed through ii.
	CloneForInlining(ii *InlinerInfo) Instr
	// Interpret executes the instruction.
	Interpret(interp *Interp) error
	String() string
}

// operandList is the shared base of multi-operand instructions.
type operandList struct {
	op       Operation
	result   *Variable
	operands []Operand
}

func (m *operandList) Operation() Operation { return m.op }
func (m *operandList) Result() *Variable    { return m.result }
func (m *operandList) Operands() []Operand  { return m.operands }

// simplifyOperands rewrites operands in place. Interface keys holding
// pointers make the lookup an identity comparison.
func (m *operandList) simplifyOperands(valueMap map[Operand]Operand) bool {
	changed := false
	for i, o := range m.operands {
		if o == nil {
			continue
		}
		if repl, ok := valueMap[o]; ok && repl != nil && repl != o {
			m.operands[i] = repl
			changed = true
		}
	}
	return changed
}

func (m *operandList) resultPrefix() string {
	if m.result == nil {
		return ""
	}
	return m.result.String() + " = "
}

// CopyInstr assigns an operand to a variable.
type CopyInstr struct {
	operandList
}

// NewCopyInstr returns result = source.
func NewCopyInstr(result *Variable, source Operand) *CopyInstr {
	return &CopyInstr{operandList{op: OpCopy, result: result, operands: []Operand{source}}}
}

// Source returns the copied operand.
func (c *CopyInstr) Source() Operand { return c.operands[0] }

func (c *CopyInstr) SimplifyOperands(valueMap map[Operand]Operand) bool {
	return c.simplifyOperands(valueMap)
}

func (c *CopyInstr) CloneForInlining(ii *InlinerInfo) Instr {
	return NewCopyInstr(ii.RenamedVariable(c.result), c.Source().CloneForInlining(ii))
}

func (c *CopyInstr) Interpret(interp *Interp) error {
	v, err := c.Source().Retrieve(interp)
	if err != nil {
		return err
	}
	interp.Store(c.result, v)
	return nil
}

func (c *CopyInstr) String() string {
	return c.resultPrefix() + "copy(" + c.Source().String() + ")"
}

func joinOperands(ops []Operand) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = o.String()
	}
	return strings.Join(parts, ", ")
}
