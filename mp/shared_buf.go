package mp

import (
	"bytes"
	"fmt"

	"github.com/parclust/reduce-sys/reduce"
)

// A SharedBuf is a length-1 buffer viewing a shared scalar
// cell. It does not own the cell; its lifetime is scoped to
// one collective operation.
type SharedBuf[T any] struct {
	cell  *reduce.Shared[T]
	codec Codec[T]
}

// NewSharedBuf creates a buffer viewing cell.
func NewSharedBuf[T any](cell *reduce.Shared[T], codec Codec[T]) *SharedBuf[T] {
	return &SharedBuf[T]{cell: cell, codec: codec}
}

func (b *SharedBuf[T]) Length() int { return 1 }

func (b *SharedBuf[T]) ElemSize() int { return b.codec.Size }

func (b *SharedBuf[T]) Codec() Codec[T] { return b.codec }

func (b *SharedBuf[T]) Snapshot() []T {
	return []T{b.cell.Get()}
}

func (b *SharedBuf[T]) Encode(index int, dst *bytes.Buffer) int {
	if index != 0 {
		return 0
	}
	var scratch [8]byte
	elem := scratch[:b.codec.Size]
	b.codec.Put(elem, b.cell.Get())
	dst.Write(elem)
	return b.codec.Size
}

func (b *SharedBuf[T]) DecodeAndCombine(index, max int, src *bytes.Reader) int {
	v, ok := b.decodeOne(index, max, src)
	if !ok {
		return 0
	}
	b.cell.Set(v)
	return 1
}

// ReductionBuf returns a view whose receive path performs
// cell.Reduce(decoded, op) per element.
func (b *SharedBuf[T]) ReductionBuf(op reduce.Op[T]) (TypedBuf[T], error) {
	if err := checkOp(op, b.codec); err != nil {
		return nil, err
	}
	return &sharedReductionBuf[T]{SharedBuf: b, op: op}, nil
}

func (b *SharedBuf[T]) decodeOne(index, max int, src *bytes.Reader) (T, bool) {
	var zero T
	if index != 0 || max < 1 || src.Len() < b.codec.Size {
		return zero, false
	}
	var scratch [8]byte
	elem := scratch[:b.codec.Size]
	if _, err := src.Read(elem); err != nil {
		return zero, false
	}
	return b.codec.Get(elem), true
}

type sharedReductionBuf[T any] struct {
	*SharedBuf[T]
	op reduce.Op[T]
}

func (b *sharedReductionBuf[T]) DecodeAndCombine(index, max int, src *bytes.Reader) int {
	v, ok := b.decodeOne(index, max, src)
	if !ok {
		return 0
	}
	b.cell.Reduce(v, b.op)
	return 1
}

func (b *sharedReductionBuf[T]) ReductionBuf(reduce.Op[T]) (TypedBuf[T], error) {
	return nil, fmt.Errorf("%w: buffer already reduces", reduce.ErrUnsupported)
}
