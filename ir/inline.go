package ir

import (
	"fmt"
	"sync/atomic"
)

// InlinerInfo is the rename context used while cloning a callee body into a
// caller. Variables are renamed on first sight and the mapping is memoized
// by name, so every occurrence of a callee variable maps to the same caller
// variable.
type InlinerInfo struct {
	target  *Scope
	prefix  string
	renamed map[string]*Variable
	self    *Variable
}

var inlineCounter atomic.Int64

// NewInlinerInfo returns a context that clones into target.
func NewInlinerInfo(target *Scope) *InlinerInfo {
	return &InlinerInfo{
		target:  target,
		prefix:  fmt.Sprintf("%%i%d_", inlineCounter.Add(1)),
		renamed: make(map[string]*Variable),
	}
}

// Target returns the scope that receives cloned instructions.
func (ii *InlinerInfo) Target() *Scope { return ii.target }

// RenamedVariable returns the caller-side variable standing for v.
// A nil v maps to nil.
func (ii *InlinerInfo) RenamedVariable(v *Variable) *Variable {
	if v == nil {
		return nil
	}
	if r, ok := ii.renamed[v.Name]; ok {
		return r
	}
	r := &Variable{Name: ii.prefix + v.Name}
	ii.renamed[v.Name] = r
	return r
}

// renamedSelf returns the variable that holds the callee's self.
func (ii *InlinerInfo) renamedSelf() *Variable {
	if ii.self == nil {
		ii.self = &Variable{Name: ii.prefix + "self"}
	}
	return ii.self
}
