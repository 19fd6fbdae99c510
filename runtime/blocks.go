package runtime

import (
	"fmt"
	"sync/atomic"
)

// BlockFunc runs a block body with its arguments.
type BlockFunc func(args []Value) (Value, error)

// Block is a closure value passed alongside a call. The body is supplied by
// whoever materializes the block (the IR interpreter, or Go code in tests).
type Block struct {
	ID    string
	Arity int // VariadicArgs when the block takes any count
	Body  BlockFunc
}

var blockCounter uint64

// NewBlock creates a block with a fresh identifier.
func NewBlock(arity int, body BlockFunc) *Block {
	id := atomic.AddUint64(&blockCounter, 1)
	return &Block{
		ID:    fmt.Sprintf("block_%d", id),
		Arity: arity,
		Body:  body,
	}
}

// Call invokes the block. A nil block or body is an error rather than a
// silent nil result.
func (b *Block) Call(args []Value) (Value, error) {
	if b == nil || b.Body == nil {
		return NilValue(), fmt.Errorf("call of nil block")
	}
	if b.Arity != VariadicArgs && len(args) != b.Arity {
		return NilValue(), &DispatchError{
			Selector: "call",
			Err:      ErrArity,
			Detail:   fmt.Sprintf("block %s expects %d arguments, got %d", b.ID, b.Arity, len(args)),
		}
	}
	return b.Body(args)
}

// Proc is a first-class callable wrapping a block.
type Proc struct {
	Block  *Block
	Lambda bool
}

// NewProc wraps a block into a proc object.
func NewProc(b *Block, lambda bool) *Proc {
	return &Proc{Block: b, Lambda: lambda}
}
