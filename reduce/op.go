// Package reduce provides the operator and shared-cell
// primitives used to combine partial results from many
// threads and many processes into one aggregate.
package reduce

import (
	"fmt"
	"math"
)

// A Kind tags the element type an operator and a wire
// codec are defined over. Pairings are checked when a
// buffer or executor is constructed, never at first use.
type Kind int

const (
	KindInt64 Kind = iota
	KindUint8
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindUint8:
		return "uint8"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// An Op describes a commutative, associative combine
// function together with its identity element.
//
// Ops are immutable values; they may be shared freely
// between threads and processes.
type Op[T any] struct {
	Identity T
	Combine  func(T, T) T
	Kind     Kind
}

// Valid reports whether the operator can drive a
// reduction.
func (o Op[T]) Valid() error {
	if o.Combine == nil {
		return fmt.Errorf("%w: operator has no combine function", ErrInvalidArgument)
	}
	return nil
}

// Built-in operators.
//
// Narrow element types wrap modularly: every uint8
// combine result is reduced mod 256, matching the wire
// codec's byte masking.
var (
	SumInt64 = Op[int64]{
		Identity: 0,
		Combine:  func(a, b int64) int64 { return a + b },
		Kind:     KindInt64,
	}

	MaxInt64 = Op[int64]{
		Identity: math.MinInt64,
		Combine: func(a, b int64) int64 {
			if a > b {
				return a
			}
			return b
		},
		Kind: KindInt64,
	}

	MinInt64 = Op[int64]{
		Identity: math.MaxInt64,
		Combine: func(a, b int64) int64 {
			if a < b {
				return a
			}
			return b
		},
		Kind: KindInt64,
	}

	AndInt64 = Op[int64]{
		Identity: -1,
		Combine:  func(a, b int64) int64 { return a & b },
		Kind:     KindInt64,
	}

	OrInt64 = Op[int64]{
		Identity: 0,
		Combine:  func(a, b int64) int64 { return a | b },
		Kind:     KindInt64,
	}

	XorInt64 = Op[int64]{
		Identity: 0,
		Combine:  func(a, b int64) int64 { return a ^ b },
		Kind:     KindInt64,
	}

	// SumUint8 wraps mod 256; uint8 addition does the
	// masking on its own.
	SumUint8 = Op[uint8]{
		Identity: 0,
		Combine:  func(a, b uint8) uint8 { return a + b },
		Kind:     KindUint8,
	}

	MaxUint8 = Op[uint8]{
		Identity: 0,
		Combine: func(a, b uint8) uint8 {
			if a > b {
				return a
			}
			return b
		},
		Kind: KindUint8,
	}

	MinUint8 = Op[uint8]{
		Identity: math.MaxUint8,
		Combine: func(a, b uint8) uint8 {
			if a < b {
				return a
			}
			return b
		},
		Kind: KindUint8,
	}

	AndBool = Op[bool]{
		Identity: true,
		Combine:  func(a, b bool) bool { return a && b },
		Kind:     KindBool,
	}

	OrBool = Op[bool]{
		Identity: false,
		Combine:  func(a, b bool) bool { return a || b },
		Kind:     KindBool,
	}
)
