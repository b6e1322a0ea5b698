/*package interpolate provides one dimensional table interpolation. It is used
for the temperature dependence of collision rates and for tabulated radial
model profiles.
*/
package interpolate

import (
	"fmt"
	"math"
)

///////////////////////////
// Linear Implementation //
///////////////////////////

// Linear is a linear interpolator.
type Linear struct {
	xs   searcher
	vals []float64
}

// NewLinear creates a linear interpolator for a sequence of strictly increasing
// or strictly decreasing point, xs, which take on the values given by vals.
//
// Lookups will occur in O(log |xs|), possibly faster depending on the access
// pattern and data layout.
func NewLinear(xs, vals []float64) *Linear {
	if len(xs) != len(vals) {
		panic("Length of input slices are not equal.")
	} else if len(xs) < 2 {
		panic(fmt.Sprintf("Table given to NewLinear() has length %d.", len(xs)))
	}
	lin := &Linear{}
	lin.xs.init(xs)
	lin.vals = vals
	return lin
}

// Eval returns the interpolated value at x.
//
// Eval panics if called on a values outside the supplied range on inputs.
func (lin *Linear) Eval(x float64) float64 {
	if !lin.xs.inRange(x) {
		panic(fmt.Sprintf("Point %g given to Linear.Eval() out of bounds "+
			"[%g, %g].", x, lin.xs.val(0), lin.xs.val(lin.xs.n-1)))
	}
	i1 := lin.xs.search(x)
	i2 := i1 + 1
	x1, x2 := lin.xs.val(i1), lin.xs.val(i2)
	v1, v2 := lin.vals[i1], lin.vals[i2]

	return ((v2-v1)/(x2-x1))*(x-x1) + v1
}

// EvalClamped returns the interpolated value at x, using the value at the
// nearest end of the table for points outside of it.
func (lin *Linear) EvalClamped(x float64) float64 {
	lo, hi := lin.xs.val(0), lin.xs.val(lin.xs.n-1)
	if !lin.xs.incr {
		lo, hi = hi, lo
	}
	return lin.Eval(math.Max(lo, math.Min(hi, x)))
}
