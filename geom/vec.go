/*package geom contains the geometric primitives used to build and walk the
Delaunay mesh: vectors, tetrahedra and tessellation cells.
*/
package geom

import (
	"math"
)

// Vec is a three dimensional vector.
type Vec [3]float64

// Add returns v1 + v2.
func (v1 Vec) Add(v2 Vec) Vec {
	return Vec{v1[0] + v2[0], v1[1] + v2[1], v1[2] + v2[2]}
}

// Sub returns v1 - v2.
func (v1 Vec) Sub(v2 Vec) Vec {
	return Vec{v1[0] - v2[0], v1[1] - v2[1], v1[2] - v2[2]}
}

// Scale returns k * v.
func (v Vec) Scale(k float64) Vec {
	return Vec{k * v[0], k * v[1], k * v[2]}
}

// Dot returns the inner product of v1 and v2.
func (v1 Vec) Dot(v2 Vec) float64 {
	return v1[0]*v2[0] + v1[1]*v2[1] + v1[2]*v2[2]
}

// Cross returns v1 x v2.
func (v1 Vec) Cross(v2 Vec) Vec {
	return Vec{
		v1[1]*v2[2] - v1[2]*v2[1],
		v1[2]*v2[0] - v1[0]*v2[2],
		v1[0]*v2[1] - v1[1]*v2[0],
	}
}

// Norm2 returns the squared length of v.
func (v Vec) Norm2() float64 { return v.Dot(v) }

// Norm returns the length of v.
func (v Vec) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Unit returns v scaled to unit length. The zero vector is returned
// unchanged.
func (v Vec) Unit() Vec {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Dist returns the distance between v1 and v2.
func (v1 Vec) Dist(v2 Vec) float64 { return v1.Sub(v2).Norm() }

// Lerp returns the point a fraction t of the way from v1 to v2.
func (v1 Vec) Lerp(v2 Vec, t float64) Vec {
	return Vec{
		v1[0] + t*(v2[0]-v1[0]),
		v1[1] + t*(v2[1]-v1[1]),
		v1[2] + t*(v2[2]-v1[2]),
	}
}

// Less orders vectors lexicographically by x, then y, then z.
func (v1 Vec) Less(v2 Vec) bool {
	for i := 0; i < 3; i++ {
		if v1[i] != v2[i] {
			return v1[i] < v2[i]
		}
	}
	return false
}

// Bounds returns the lower and upper corners of the axis-aligned bounding
// box of xs.
func Bounds(xs []Vec) (lo, hi Vec) {
	if len(xs) == 0 {
		return lo, hi
	}
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		for d := 0; d < 3; d++ {
			lo[d] = math.Min(lo[d], x[d])
			hi[d] = math.Max(hi[d], x[d])
		}
	}
	return lo, hi
}

// UnitSphere maps two uniform deviates in [0, 1) to a direction distributed
// uniformly over the unit sphere.
func UnitSphere(u1, u2 float64) Vec {
	cosTheta := 2*u1 - 1
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	phi := 2 * math.Pi * u2
	return Vec{
		sinTheta * math.Cos(phi),
		sinTheta * math.Sin(phi),
		cosTheta,
	}
}
