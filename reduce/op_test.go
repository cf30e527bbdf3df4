package reduce

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpIdentityLaw(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 42, math.MaxInt64, math.MinInt64} {
		require.Equal(t, v, SumInt64.Combine(SumInt64.Identity, v))
		require.Equal(t, v, MaxInt64.Combine(MaxInt64.Identity, v))
		require.Equal(t, v, MinInt64.Combine(MinInt64.Identity, v))
		require.Equal(t, v, AndInt64.Combine(AndInt64.Identity, v))
		require.Equal(t, v, OrInt64.Combine(OrInt64.Identity, v))
		require.Equal(t, v, XorInt64.Combine(XorInt64.Identity, v))
	}
	for _, v := range []uint8{0, 1, 255} {
		require.Equal(t, v, SumUint8.Combine(SumUint8.Identity, v))
		require.Equal(t, v, MaxUint8.Combine(MaxUint8.Identity, v))
		require.Equal(t, v, MinUint8.Combine(MinUint8.Identity, v))
	}
	for _, v := range []bool{false, true} {
		require.Equal(t, v, AndBool.Combine(AndBool.Identity, v))
		require.Equal(t, v, OrBool.Combine(OrBool.Identity, v))
	}
}

func TestOpCommutativity(t *testing.T) {
	vals := []int64{-7, 0, 3, 1 << 40}
	ops := []Op[int64]{SumInt64, MaxInt64, MinInt64, AndInt64, OrInt64, XorInt64}
	for _, op := range ops {
		for _, a := range vals {
			for _, b := range vals {
				require.Equal(t, op.Combine(a, b), op.Combine(b, a))
			}
		}
	}
}

// Uint8 sums wrap mod 256 rather than saturating.
func TestSumUint8Wraps(t *testing.T) {
	require.Equal(t, uint8(4), SumUint8.Combine(250, 10))
	require.Equal(t, uint8(255), SumUint8.Combine(255, 0))
	require.Equal(t, uint8(0), SumUint8.Combine(128, 128))
}

func TestOpValid(t *testing.T) {
	require.NoError(t, SumInt64.Valid())

	var missing Op[int64]
	err := missing.Valid()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "int64", KindInt64.String())
	require.Equal(t, "uint8", KindUint8.String())
	require.Equal(t, "bool", KindBool.String())
}
