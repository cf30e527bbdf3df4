package mp

import (
	"bytes"
	"fmt"

	"github.com/parclust/reduce-sys/reduce"
)

// A Buf is a fixed-length, typed view over element storage
// that can be marshalled to and from wire bytes.
//
// DecodeAndCombine must never block waiting for bytes: it
// is called from a transport poll loop as data streams in,
// and a blocking implementation would stall every transfer
// multiplexed on the same transport. When src holds fewer
// bytes than one element, it returns 0 and the caller
// retries once more data has arrived.
type Buf interface {
	// Length returns the number of logical elements the
	// backing storage exposes.
	Length() int

	// ElemSize returns the wire width of one element in
	// bytes.
	ElemSize() int

	// Encode serializes elements starting at index into
	// dst, up to the buffer's length, and returns the
	// number of bytes written.
	Encode(index int, dst *bytes.Buffer) int

	// DecodeAndCombine decodes at most max whole elements
	// starting at index from src and merges each into the
	// backing storage. For a plain buffer the merge is an
	// overwrite; for a reduction view it is the operator's
	// combine. Returns the number of elements consumed,
	// which may be zero.
	DecodeAndCombine(index, max int, src *bytes.Reader) int
}

// A TypedBuf is a Buf whose element type is known, so a
// reduction view over the same storage can be requested.
type TypedBuf[T any] interface {
	Buf

	// Codec returns the buffer's wire codec.
	Codec() Codec[T]

	// Snapshot copies the current logical elements out of
	// the backing storage.
	Snapshot() []T

	// ReductionBuf returns a view whose DecodeAndCombine
	// merges incoming elements via op. Reduction views are
	// terminal: asking one for a further reduction view
	// fails with reduce.ErrUnsupported.
	ReductionBuf(op reduce.Op[T]) (TypedBuf[T], error)
}

// An ItemBuf is a buffer over a slice of elements. It does
// not own the slice.
type ItemBuf[T any] struct {
	items []T
	codec Codec[T]
}

// NewItemBuf creates a buffer viewing items.
func NewItemBuf[T any](items []T, codec Codec[T]) *ItemBuf[T] {
	return &ItemBuf[T]{items: items, codec: codec}
}

func (b *ItemBuf[T]) Length() int { return len(b.items) }

func (b *ItemBuf[T]) ElemSize() int { return b.codec.Size }

func (b *ItemBuf[T]) Codec() Codec[T] { return b.codec }

func (b *ItemBuf[T]) Snapshot() []T {
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

func (b *ItemBuf[T]) Encode(index int, dst *bytes.Buffer) int {
	var scratch [8]byte
	elem := scratch[:b.codec.Size]
	n := 0
	for i := index; i < len(b.items); i++ {
		b.codec.Put(elem, b.items[i])
		dst.Write(elem)
		n += b.codec.Size
	}
	return n
}

func (b *ItemBuf[T]) DecodeAndCombine(index, max int, src *bytes.Reader) int {
	return b.decode(index, max, src, func(i int, v T) {
		b.items[i] = v
	})
}

// ReductionBuf returns a combining view over the same
// slice. A nil combine fails with ErrInvalidArgument and a
// kind mismatch with ErrTypeMismatch, both at construction.
func (b *ItemBuf[T]) ReductionBuf(op reduce.Op[T]) (TypedBuf[T], error) {
	if err := checkOp(op, b.codec); err != nil {
		return nil, err
	}
	return &itemReductionBuf[T]{ItemBuf: b, op: op}, nil
}

// decode reads whole elements and hands each to store. It
// consumes nothing from src beyond the last whole element.
func (b *ItemBuf[T]) decode(index, max int, src *bytes.Reader, store func(int, T)) int {
	var scratch [8]byte
	elem := scratch[:b.codec.Size]
	n := 0
	for n < max && index+n < len(b.items) && src.Len() >= b.codec.Size {
		if _, err := src.Read(elem); err != nil {
			break
		}
		store(index+n, b.codec.Get(elem))
		n++
	}
	return n
}

// itemReductionBuf combines incoming elements into the
// underlying slice via op.
type itemReductionBuf[T any] struct {
	*ItemBuf[T]
	op reduce.Op[T]
}

func (b *itemReductionBuf[T]) DecodeAndCombine(index, max int, src *bytes.Reader) int {
	return b.decode(index, max, src, func(i int, v T) {
		b.items[i] = b.op.Combine(b.items[i], v)
	})
}

func (b *itemReductionBuf[T]) ReductionBuf(reduce.Op[T]) (TypedBuf[T], error) {
	return nil, fmt.Errorf("%w: buffer already reduces", reduce.ErrUnsupported)
}

func checkOp[T any](op reduce.Op[T], codec Codec[T]) error {
	if err := op.Valid(); err != nil {
		return err
	}
	if op.Kind != codec.Kind {
		return fmt.Errorf("%w: %v operator over %v elements",
			reduce.ErrTypeMismatch, op.Kind, codec.Kind)
	}
	return nil
}
