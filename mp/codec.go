// Package mp provides the typed, serializable buffers that
// carry reduction payloads between processes. A buffer is a
// non-owning view over element storage; a reduction view
// over the same storage combines incoming elements instead
// of overwriting them, which is what lets a collective
// reduce happen in place as bytes arrive.
package mp

import (
	"encoding/binary"

	"github.com/parclust/reduce-sys/reduce"
)

// A Codec fixes the wire representation of one element
// type: a fixed width in bytes plus encode and decode
// functions. The Kind tag must match the operator a
// reduction is driven by.
type Codec[T any] struct {
	Kind reduce.Kind
	Size int
	Put  func(dst []byte, v T)
	Get  func(src []byte) T
}

// Int64Codec encodes an int64 as 8 big-endian bytes.
var Int64Codec = Codec[int64]{
	Kind: reduce.KindInt64,
	Size: 8,
	Put: func(dst []byte, v int64) {
		binary.BigEndian.PutUint64(dst, uint64(v))
	},
	Get: func(src []byte) int64 {
		return int64(binary.BigEndian.Uint64(src))
	},
}

// Uint8Codec encodes one unsigned byte per element. Decode
// is a single byte read, so every incoming value is already
// masked to [0, 255]; there is no undefined input.
var Uint8Codec = Codec[uint8]{
	Kind: reduce.KindUint8,
	Size: 1,
	Put:  func(dst []byte, v uint8) { dst[0] = v },
	Get:  func(src []byte) uint8 { return src[0] },
}

// BoolCodec encodes one byte per element; any nonzero byte
// decodes to true.
var BoolCodec = Codec[bool]{
	Kind: reduce.KindBool,
	Size: 1,
	Put: func(dst []byte, v bool) {
		if v {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	},
	Get: func(src []byte) bool { return src[0] != 0 },
}
