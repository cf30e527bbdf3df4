// Package parallel provides deterministic range
// partitioning, a fixed-size thread team, and the executor
// that combines both scheduling levels (threads within a
// process, processes across the cluster) into a single
// reduction whose result is independent of how the work
// was split.
package parallel

// A Range is an inclusive interval of int64 indices. It is
// empty when Ub < Lb.
type Range struct {
	Lb int64
	Ub int64
}

// Len returns the number of indices in the range.
func (r Range) Len() int64 {
	if r.Ub < r.Lb {
		return 0
	}
	return r.Ub - r.Lb + 1
}

// Empty reports whether the range holds no indices.
func (r Range) Empty() bool {
	return r.Ub < r.Lb
}

// Subrange splits r into workers contiguous pieces and
// returns the piece for the given worker index.
//
// Pieces differ in size by at most one, larger pieces at
// lower indices, and the union of all pieces covers r
// exactly once. The mapping is a pure function of
// (r, workers, index): no randomness, no dependence on
// scheduling order. Two-level splitting is two sequential
// applications: first across processes, then each
// process's piece across its threads.
func (r Range) Subrange(workers, index int) Range {
	if workers <= 0 || index < 0 || index >= workers {
		panic("worker index out of range")
	}
	n := r.Len()
	per := n / int64(workers)
	extra := n % int64(workers)

	var lb, size int64
	if int64(index) < extra {
		size = per + 1
		lb = r.Lb + int64(index)*size
	} else {
		size = per
		lb = r.Lb + extra*(per+1) + (int64(index)-extra)*per
	}
	return Range{Lb: lb, Ub: lb + size - 1}
}

// Subranges returns all workers pieces of r in order.
func (r Range) Subranges(workers int) []Range {
	out := make([]Range, workers)
	for i := range out {
		out[i] = r.Subrange(workers, i)
	}
	return out
}
