package interpolate

import (
	"fmt"
)

// searcher finds the interval of a sorted knot sequence which contains a
// point.
type searcher struct {
	xs   []float64
	incr bool

	// Usually the input data is uniform. This is our estimate of the point
	// spacing.
	x0, dx float64
	n      int
}

func (s *searcher) init(xs []float64) {
	if len(xs) == 0 {
		panic("Empty knot sequence given to searcher.")
	}
	s.xs, s.n = xs, len(xs)
	s.x0 = xs[0]
	s.incr = true
	if len(xs) == 1 {
		return
	}

	s.incr = xs[0] < xs[1]
	for i := 0; i < len(xs)-1; i++ {
		if (xs[i+1] > xs[i]) != s.incr || xs[i+1] == xs[i] {
			panic(fmt.Sprintf(
				"Knots %d and %d (%g, %g) are not strictly monotonic.",
				i, i+1, xs[i], xs[i+1],
			))
		}
	}
	s.dx = (xs[len(xs)-1] - xs[0]) / float64(len(xs)-1)
}

func (s *searcher) val(i int) float64 { return s.xs[i] }

// inRange reports whether x lies within the knots.
func (s *searcher) inRange(x float64) bool {
	lo, hi := s.val(0), s.val(s.n-1)
	if !s.incr {
		lo, hi = hi, lo
	}
	return x >= lo && x <= hi
}

// search returns the index of the knot which starts the interval containing
// x. x must be within range and there must be at least two knots.
func (s *searcher) search(x float64) int {
	// Guess under the assumption of uniform spacing.
	guess := int((x - s.x0) / s.dx)
	if guess == s.n-1 {
		guess--
	}
	if guess >= 0 && guess < s.n-1 &&
		(s.xs[guess] <= x == s.incr) && (s.xs[guess+1] >= x == s.incr) {
		return guess
	}

	// Binary search.
	lo, hi := 0, s.n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if s.incr == (x >= s.xs[mid]) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// bracket returns the interval containing x and the fractional position of x
// within it. Points outside the knots are clamped to the nearest end.
func (s *searcher) bracket(x float64) (i int, frac float64) {
	if s.n == 1 {
		return 0, 0
	}
	first, last := s.val(0), s.val(s.n-1)
	if (x <= first) == s.incr || x == first {
		return 0, 0
	}
	if (x >= last) == s.incr || x == last {
		return s.n - 2, 1
	}

	i = s.search(x)
	x1, x2 := s.val(i), s.val(i+1)
	return i, (x - x1) / (x2 - x1)
}

// Axis is a sorted knot sequence which can be shared by several tables with
// the same abscissa, such as the rate tables of one collision partner.
type Axis struct {
	s searcher
}

// NewAxis creates an axis from strictly increasing or strictly decreasing
// knots. xs must not be modified throughout the lifetime of the Axis.
func NewAxis(xs []float64) *Axis {
	ax := &Axis{}
	ax.s.init(xs)
	return ax
}

// Len returns the number of knots.
func (ax *Axis) Len() int { return ax.s.n }

// Bracket returns the index of the knot starting the interval which contains
// x and the fractional position of x within that interval. Points outside the
// axis are clamped to its ends. An axis with a single knot always returns
// (0, 0).
func (ax *Axis) Bracket(x float64) (i int, frac float64) {
	return ax.s.bracket(x)
}

// Lerp evaluates a table defined on an axis at the position returned by
// Bracket.
func Lerp(vals []float64, i int, frac float64) float64 {
	if len(vals) == 1 || frac == 0 {
		return vals[i]
	}
	return vals[i] + frac*(vals[i+1]-vals[i])
}
