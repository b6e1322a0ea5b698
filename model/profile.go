package model

import (
	"fmt"

	"github.com/emmanuelgarcia9/lime/geom"
	"github.com/emmanuelgarcia9/lime/math/interpolate"
)

// Profile is a spherically symmetric model whose density, temperature and
// radial velocity are tabulated against radius. Values outside the table use
// the nearest tabulated value.
type Profile struct {
	dens, temp, vr *interpolate.Linear

	Abun []float64
	Turb float64
}

var (
	_ DensityField     = &Profile{}
	_ TemperatureField = &Profile{}
	_ VelocityField    = &Profile{}
	_ AbundanceField   = &Profile{}
	_ DopplerField     = &Profile{}
)

// NewProfile creates a profile from columns of radius [m], density [m^-3],
// kinetic temperature [K] and radial velocity [m/s]. Radii must be strictly
// increasing. vr may be nil for a static cloud.
func NewProfile(
	r, dens, temp, vr []float64, abun []float64, turb float64,
) (*Profile, error) {
	if len(r) < 2 {
		return nil, fmt.Errorf("Profile has %d rows, at least 2 are required.",
			len(r))
	} else if len(dens) != len(r) || len(temp) != len(r) {
		return nil, fmt.Errorf("Profile columns have lengths %d, %d and %d.",
			len(r), len(dens), len(temp))
	} else if vr != nil && len(vr) != len(r) {
		return nil, fmt.Errorf("Profile velocity column has length %d, "+
			"expected %d.", len(vr), len(r))
	}
	for i := 1; i < len(r); i++ {
		if r[i] <= r[i-1] {
			return nil, fmt.Errorf("Profile radii are not increasing at "+
				"row %d.", i)
		}
	}

	p := &Profile{Abun: abun, Turb: turb}
	p.dens = interpolate.NewLinear(r, dens)
	p.temp = interpolate.NewLinear(r, temp)
	if vr != nil {
		p.vr = interpolate.NewLinear(r, vr)
	}
	return p, nil
}

func (p *Profile) Density(x geom.Vec) []float64 {
	return []float64{p.dens.EvalClamped(x.Norm())}
}

func (p *Profile) Temperature(x geom.Vec) [2]float64 {
	t := p.temp.EvalClamped(x.Norm())
	return [2]float64{t, t}
}

// Velocity returns the tabulated radial velocity along the outward radial
// direction.
func (p *Profile) Velocity(x geom.Vec) geom.Vec {
	r := x.Norm()
	if p.vr == nil || r == 0 {
		return geom.Vec{}
	}
	return x.Scale(p.vr.EvalClamped(r) / r)
}

func (p *Profile) Abundance(x geom.Vec) []float64 {
	out := make([]float64, len(p.Abun))
	copy(out, p.Abun)
	return out
}

func (p *Profile) Doppler(x geom.Vec) float64 { return p.Turb }
