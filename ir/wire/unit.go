// Package wire encodes IR compilation units as CBOR so front ends and the
// analysis tools can exchange them. Operands are pooled per unit: an operand
// shared by several instructions is stored once and decodes to a single
// shared instance, keeping identity-keyed rewrites valid after a round trip.
package wire

import (
	"github.com/chazu/callsite/ir"
)

// FormatVersion is the unit layout written by Encode.
const FormatVersion = 1

// NoOperand marks an absent result or operand reference.
const NoOperand = -1

// Unit is one encoded arena: every scope in creation order and the operand
// pool its instructions index into.
type Unit struct {
	Version  uint8           `cbor:"1,keyasint"`
	Name     string          `cbor:"2,keyasint"`
	Scopes   []ScopeRecord   `cbor:"3,keyasint"`
	Operands []OperandRecord `cbor:"4,keyasint,omitempty"`
}

// ScopeRecord is one scope. Scope references hold the ScopeID the scope
// had in the encoded arena; NoScope (-1) marks an absent reference.
type ScopeRecord struct {
	ID        ir.ScopeID     `cbor:"1,keyasint"`
	Kind      ir.ScopeKind   `cbor:"2,keyasint"`
	Name      string         `cbor:"3,keyasint"`
	Core      bool           `cbor:"4,keyasint,omitempty"`
	Parent    ir.ScopeID     `cbor:"5,keyasint"`
	Super     ir.ScopeID     `cbor:"6,keyasint"`
	Owner     ir.ScopeID     `cbor:"7,keyasint"`
	ClassSide bool           `cbor:"8,keyasint,omitempty"`
	Params    []string       `cbor:"9,keyasint,omitempty"`
	Flags     ir.MethodFlags `cbor:"10,keyasint,omitempty"`
	Instrs    []InstrRecord  `cbor:"11,keyasint,omitempty"`
}

// InstrRecord is one instruction. Result and Operands are indices into
// Unit.Operands.
type InstrRecord struct {
	Op         ir.Operation `cbor:"1,keyasint"`
	Result     int          `cbor:"2,keyasint"`
	Operands   []int        `cbor:"3,keyasint"`
	NumArgs    int          `cbor:"4,keyasint,omitempty"`
	HasClosure bool         `cbor:"5,keyasint,omitempty"`
}

// OperandRecord is one pooled operand. Name carries the method, variable,
// self or symbol name and the string literal value; Int the fixnum value;
// Scope the referenced scope of a meta object.
type OperandRecord struct {
	Kind  ir.OperandKind `cbor:"1,keyasint"`
	Name  string         `cbor:"2,keyasint,omitempty"`
	Int   int64          `cbor:"3,keyasint,omitempty"`
	Scope ir.ScopeID     `cbor:"4,keyasint"`
}
