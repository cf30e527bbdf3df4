package mp

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parclust/reduce-sys/reduce"
)

func TestItemBufRoundTrip(t *testing.T) {
	src := NewItemBuf([]int64{3, -1, 1 << 40}, Int64Codec)

	var wire bytes.Buffer
	n := src.Encode(0, &wire)
	require.Equal(t, 3*8, n)

	dstItems := make([]int64, 3)
	dst := NewItemBuf(dstItems, Int64Codec)
	got := dst.DecodeAndCombine(0, 3, bytes.NewReader(wire.Bytes()))
	require.Equal(t, 3, got)
	require.Equal(t, []int64{3, -1, 1 << 40}, dstItems)
}

func TestEncodeFromIndex(t *testing.T) {
	b := NewItemBuf([]uint8{10, 20, 30}, Uint8Codec)

	var wire bytes.Buffer
	n := b.Encode(1, &wire)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{20, 30}, wire.Bytes())

	require.Equal(t, 0, b.Encode(3, &wire))
}

// DecodeAndCombine with no bytes available must return 0
// immediately; it never waits.
func TestDecodeNonBlocking(t *testing.T) {
	b := NewItemBuf(make([]int64, 4), Int64Codec)
	require.Equal(t, 0, b.DecodeAndCombine(0, 4, bytes.NewReader(nil)))

	cell := reduce.NewShared(int64(0))
	sb := NewSharedBuf(cell, Int64Codec)
	rb, err := sb.ReductionBuf(reduce.SumInt64)
	require.NoError(t, err)
	require.Equal(t, 0, rb.DecodeAndCombine(0, 1, bytes.NewReader(nil)))
}

// A partial element's bytes are not consumed; the caller
// retries once the rest has arrived.
func TestDecodeShortElement(t *testing.T) {
	b := NewItemBuf(make([]int64, 2), Int64Codec)

	var wire bytes.Buffer
	NewItemBuf([]int64{7, 9}, Int64Codec).Encode(0, &wire)
	raw := wire.Bytes()

	// First element plus 3 bytes of the second.
	r := bytes.NewReader(raw[:11])
	require.Equal(t, 1, b.DecodeAndCombine(0, 2, r))
	require.Equal(t, int64(7), b.items[0])

	r = bytes.NewReader(raw[8:])
	require.Equal(t, 1, b.DecodeAndCombine(1, 1, r))
	require.Equal(t, int64(9), b.items[1])
}

func TestDecodeRespectsMax(t *testing.T) {
	b := NewItemBuf(make([]uint8, 4), Uint8Codec)
	r := bytes.NewReader([]byte{1, 2, 3, 4})
	require.Equal(t, 2, b.DecodeAndCombine(0, 2, r))
	require.Equal(t, []uint8{1, 2, 0, 0}, b.items)
}

func TestItemReductionBufCombines(t *testing.T) {
	items := []int64{5, 10}
	b := NewItemBuf(items, Int64Codec)
	rb, err := b.ReductionBuf(reduce.SumInt64)
	require.NoError(t, err)

	var wire bytes.Buffer
	NewItemBuf([]int64{2, 3}, Int64Codec).Encode(0, &wire)
	require.Equal(t, 2, rb.DecodeAndCombine(0, 2, bytes.NewReader(wire.Bytes())))
	require.Equal(t, []int64{7, 13}, items)
}

// Receiving byte value 250 into a shared uint8 cell holding
// 10 wraps mod 256 to 4.
func TestSharedUint8ReductionWraps(t *testing.T) {
	cell := reduce.NewShared(uint8(10))
	sb := NewSharedBuf(cell, Uint8Codec)
	rb, err := sb.ReductionBuf(reduce.SumUint8)
	require.NoError(t, err)

	got := rb.DecodeAndCombine(0, 1, bytes.NewReader([]byte{250}))
	require.Equal(t, 1, got)
	require.Equal(t, uint8(4), cell.Get())
}

func TestSharedBufPlainReceiveOverwrites(t *testing.T) {
	cell := reduce.NewShared(int64(10))
	sb := NewSharedBuf(cell, Int64Codec)

	var wire bytes.Buffer
	other := reduce.NewShared(int64(32))
	NewSharedBuf(other, Int64Codec).Encode(0, &wire)

	require.Equal(t, 1, sb.DecodeAndCombine(0, 1, bytes.NewReader(wire.Bytes())))
	require.Equal(t, int64(32), cell.Get())
}

// Reduction buffers are terminal: layering a second
// reduction on one is rejected.
func TestReductionBufNotComposable(t *testing.T) {
	b := NewItemBuf(make([]int64, 1), Int64Codec)
	rb, err := b.ReductionBuf(reduce.SumInt64)
	require.NoError(t, err)

	_, err = rb.ReductionBuf(reduce.SumInt64)
	require.True(t, errors.Is(err, reduce.ErrUnsupported))

	cell := reduce.NewShared(int64(0))
	srb, err := NewSharedBuf(cell, Int64Codec).ReductionBuf(reduce.SumInt64)
	require.NoError(t, err)
	_, err = srb.ReductionBuf(reduce.SumInt64)
	require.True(t, errors.Is(err, reduce.ErrUnsupported))
}

func TestReductionBufConstructionErrors(t *testing.T) {
	b := NewItemBuf(make([]int64, 1), Int64Codec)

	var missing reduce.Op[int64]
	_, err := b.ReductionBuf(missing)
	require.True(t, errors.Is(err, reduce.ErrInvalidArgument))

	wrongKind := reduce.Op[int64]{
		Combine: func(a, b int64) int64 { return a + b },
		Kind:    reduce.KindUint8,
	}
	_, err = b.ReductionBuf(wrongKind)
	require.True(t, errors.Is(err, reduce.ErrTypeMismatch))
}

func TestSnapshotCopies(t *testing.T) {
	items := []int64{1, 2}
	b := NewItemBuf(items, Int64Codec)
	snap := b.Snapshot()
	snap[0] = 99
	require.Equal(t, int64(1), items[0])

	cell := reduce.NewShared(uint8(7))
	require.Equal(t, []uint8{7}, NewSharedBuf(cell, Uint8Codec).Snapshot())
}

func TestBoolCodec(t *testing.T) {
	items := []bool{true, false}
	b := NewItemBuf(items, BoolCodec)

	var wire bytes.Buffer
	require.Equal(t, 2, b.Encode(0, &wire))

	out := make([]bool, 2)
	got := NewItemBuf(out, BoolCodec).DecodeAndCombine(0, 2, bytes.NewReader(wire.Bytes()))
	require.Equal(t, 2, got)
	require.Equal(t, items, out)
}
