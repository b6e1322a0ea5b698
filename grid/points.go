package grid

import (
	"math/rand/v2"

	"github.com/emmanuelgarcia9/lime/geom"
)

// RandomPoints returns nInternal points distributed uniformly inside a
// sphere of the given radius followed by nSink points distributed uniformly
// over its surface.
func RandomPoints(rng *rand.Rand, radius float64, nInternal, nSink int) []geom.Vec {
	xs := make([]geom.Vec, 0, nInternal+nSink)
	r2 := radius * radius
	for len(xs) < nInternal {
		x := geom.Vec{
			(2*rng.Float64() - 1) * radius,
			(2*rng.Float64() - 1) * radius,
			(2*rng.Float64() - 1) * radius,
		}
		if x.Norm2() < r2 {
			xs = append(xs, x)
		}
	}
	for i := 0; i < nSink; i++ {
		xs = append(xs, geom.UnitSphere(rng.Float64(), rng.Float64()).Scale(radius))
	}
	return xs
}
