package parallel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// The union of all subranges covers [0, N) exactly once:
// no overlap, no gap, order preserved.
func TestSubrangeCoverage(t *testing.T) {
	for _, n := range []int64{0, 1, 2, 7, 100, 1000003} {
		for _, workers := range []int{1, 2, 3, 16, 1000} {
			t.Run(fmt.Sprintf("N=%d,Workers=%d", n, workers), func(t *testing.T) {
				full := Range{Lb: 0, Ub: n - 1}
				next := int64(0)
				for i, sub := range full.Subranges(workers) {
					require.Equal(t, next, sub.Lb, "worker %d", i)
					if !sub.Empty() {
						next = sub.Ub + 1
					}
				}
				require.Equal(t, n, next)
			})
		}
	}
}

func TestSubrangeNearEqualPieces(t *testing.T) {
	full := Range{Lb: 0, Ub: 99}
	sizes := make([]int64, 0, 7)
	for _, sub := range full.Subranges(7) {
		sizes = append(sizes, sub.Len())
	}
	// 100 = 2*15 + 5*14, larger pieces first.
	require.Equal(t, []int64{15, 15, 14, 14, 14, 14, 14}, sizes)
}

func TestSubrangeMoreWorkersThanItems(t *testing.T) {
	full := Range{Lb: 0, Ub: 2}
	subs := full.Subranges(5)
	var total int64
	for _, sub := range subs {
		total += sub.Len()
	}
	require.Equal(t, int64(3), total)
	for _, sub := range subs[3:] {
		require.True(t, sub.Empty())
	}
}

// Two-level splitting (processes, then threads) covers the
// same space as a flat split.
func TestSubrangeTwoLevel(t *testing.T) {
	const n, procs, threads = 1000, 4, 3

	full := Range{Lb: 0, Ub: n - 1}
	var total int64
	next := int64(0)
	for p := 0; p < procs; p++ {
		procRange := full.Subrange(procs, p)
		for th := 0; th < threads; th++ {
			sub := procRange.Subrange(threads, th)
			if sub.Empty() {
				continue
			}
			require.Equal(t, next, sub.Lb)
			next = sub.Ub + 1
			total += sub.Len()
		}
	}
	require.Equal(t, int64(n), total)
}

func TestSubrangePure(t *testing.T) {
	full := Range{Lb: 17, Ub: 9000}
	for i := 0; i < 5; i++ {
		require.Equal(t, full.Subrange(13, 7), full.Subrange(13, 7))
	}
}

func TestSubrangePanicsOnBadIndex(t *testing.T) {
	full := Range{Lb: 0, Ub: 9}
	require.Panics(t, func() { full.Subrange(3, 3) })
	require.Panics(t, func() { full.Subrange(3, -1) })
	require.Panics(t, func() { full.Subrange(0, 0) })
}

func TestRangeLen(t *testing.T) {
	require.Equal(t, int64(0), Range{Lb: 5, Ub: 4}.Len())
	require.True(t, Range{Lb: 5, Ub: 4}.Empty())
	require.Equal(t, int64(1), Range{Lb: 5, Ub: 5}.Len())
}
