// Package runtime provides the object space and message dispatch that
// interpreted call instructions execute against: classes with instance-side
// and class-side method tables, instances, blocks and procs, and a
// dispatcher that performs the lookup.
package runtime

import (
	"fmt"
	"strconv"
)

// ValueType tags a Value.
type ValueType uint8

const (
	TypeNil ValueType = iota
	TypeInt
	TypeString
	TypeSymbol
	TypeBool
	TypeInstance
	TypeClass
	TypeBlock
	TypeProc
)

var valueTypeNames = [...]string{
	TypeNil:      "nil",
	TypeInt:      "Integer",
	TypeString:   "String",
	TypeSymbol:   "Symbol",
	TypeBool:     "Boolean",
	TypeInstance: "Instance",
	TypeClass:    "Class",
	TypeBlock:    "Block",
	TypeProc:     "Proc",
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", uint8(t))
}

// Value is a runtime value. Only the field matching Type is meaningful;
// strings and symbols share StringVal. The zero Value is nil.
type Value struct {
	Type        ValueType
	IntVal      int64
	BoolVal     bool
	StringVal   string
	InstanceVal *Instance
	ClassVal    *Class
	BlockVal    *Block
	ProcVal     *Proc
}

func NilValue() Value                    { return Value{} }
func IntValue(n int64) Value             { return Value{Type: TypeInt, IntVal: n} }
func StringValue(s string) Value         { return Value{Type: TypeString, StringVal: s} }
func SymbolValue(name string) Value      { return Value{Type: TypeSymbol, StringVal: name} }
func BoolValue(b bool) Value             { return Value{Type: TypeBool, BoolVal: b} }
func InstanceValue(inst *Instance) Value { return Value{Type: TypeInstance, InstanceVal: inst} }
func ClassValue(c *Class) Value          { return Value{Type: TypeClass, ClassVal: c} }
func BlockValue(b *Block) Value          { return Value{Type: TypeBlock, BlockVal: b} }
func ProcValue(p *Proc) Value            { return Value{Type: TypeProc, ProcVal: p} }

func (v Value) IsNil() bool { return v.Type == TypeNil }

// IsTruthy follows the usual rule: only nil and false are false.
func (v Value) IsTruthy() bool {
	if v.Type == TypeBool {
		return v.BoolVal
	}
	return v.Type != TypeNil
}

// AsName returns the method name a string or symbol value carries.
func (v Value) AsName() (string, bool) {
	if v.Type == TypeString || v.Type == TypeSymbol {
		return v.StringVal, true
	}
	return "", false
}

// AsInt returns the integer held by v, parsing strings; other values give 0.
func (v Value) AsInt() int64 {
	switch v.Type {
	case TypeInt:
		return v.IntVal
	case TypeBool:
		if v.BoolVal {
			return 1
		}
	case TypeString:
		n, _ := strconv.ParseInt(v.StringVal, 10, 64)
		return n
	}
	return 0
}

// AsString renders v the way to_s would.
func (v Value) AsString() string {
	switch v.Type {
	case TypeInt:
		return strconv.FormatInt(v.IntVal, 10)
	case TypeString, TypeSymbol:
		return v.StringVal
	case TypeBool:
		return strconv.FormatBool(v.BoolVal)
	case TypeInstance:
		if v.InstanceVal != nil {
			return v.InstanceVal.ID
		}
	case TypeClass:
		if v.ClassVal != nil {
			return v.ClassVal.Name
		}
	case TypeBlock:
		if v.BlockVal != nil {
			return v.BlockVal.ID
		}
	case TypeProc:
		if v.ProcVal != nil && v.ProcVal.Block != nil {
			return v.ProcVal.Block.ID
		}
	}
	return ""
}

// String renders v for listings and error messages.
func (v Value) String() string {
	switch v.Type {
	case TypeNil:
		return "nil"
	case TypeString:
		return strconv.Quote(v.StringVal)
	case TypeSymbol:
		return ":" + v.StringVal
	case TypeInstance:
		if v.InstanceVal != nil && v.InstanceVal.Class != nil {
			return fmt.Sprintf("<%s %s>", v.InstanceVal.Class.Name, v.InstanceVal.ID)
		}
	case TypeBlock, TypeProc:
		return fmt.Sprintf("<%s %s>", v.Type, v.AsString())
	}
	return v.AsString()
}
