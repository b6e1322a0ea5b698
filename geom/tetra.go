package geom

import (
	"math"
)

// Tetra is a tetrahedron.
//
// NOTE: Tetra caches its volume. If the corners are changed by hand, Init must
// be called again.
type Tetra struct {
	Corners [4]Vec

	volume      float64
	volumeValid bool
}

// NewTetra creates a new tetrahedron with corners at the specified
// positions.
func NewTetra(c1, c2, c3, c4 Vec) *Tetra {
	t := &Tetra{}
	t.Init(c1, c2, c3, c4)
	return t
}

// Init initializes a tetrahedron to correspond to the given corners.
func (t *Tetra) Init(c1, c2, c3, c4 Vec) {
	t.Corners = [4]Vec{c1, c2, c3, c4}
	t.volumeValid = false
}

// Orient returns six times the signed volume of the tetrahedron (a, b, c, d).
// It is positive when d lies on the side of the plane (a, b, c) that the
// right-handed normal (b - a) x (c - a) points to.
func Orient(a, b, c, d Vec) float64 {
	return b.Sub(a).Dot(c.Sub(a).Cross(d.Sub(a)))
}

// Volume computes the volume of a tetrahedron.
func (t *Tetra) Volume() float64 {
	if t.volumeValid {
		return t.volume
	}

	c := &t.Corners
	t.volume = math.Abs(Orient(c[0], c[1], c[2], c[3])) / 6
	t.volumeValid = true
	return t.volume
}

// Circumsphere returns the center and squared radius of the sphere passing
// through a, b, c and d.
func Circumsphere(a, b, c, d Vec) (center Vec, r2 float64, ok bool) {
	ba, ca, da := b.Sub(a), c.Sub(a), d.Sub(a)
	denom := 2 * ba.Dot(ca.Cross(da))
	if denom == 0 {
		return center, 0, false
	}

	// Lengths are folded into the numerator before dividing to keep the
	// relative error independent of the tetrahedron's position.
	num := ca.Cross(da).Scale(ba.Norm2()).
		Add(da.Cross(ba).Scale(ca.Norm2())).
		Add(ba.Cross(ca).Scale(da.Norm2()))
	offset := num.Scale(1 / denom)

	return a.Add(offset), offset.Norm2(), true
}
