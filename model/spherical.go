package model

import (
	"fmt"
	"math"

	"github.com/emmanuelgarcia9/lime/geom"
	"github.com/emmanuelgarcia9/lime/phys"
)

// Spherical is a spherically symmetric cloud with power-law density and
// temperature profiles, free-fall infall onto a central mass and constant
// abundances and turbulence.
//
// Profiles are flat inside RMin so that they stay finite at the origin.
type Spherical struct {
	RMin, R0 float64 // [m]

	Dens0      float64 // density at R0 [m^-3]
	DensIndex  float64 // n(r) = Dens0 (r/R0)^DensIndex
	Temp0      float64 // temperature at R0 [K]
	TempIndex  float64
	DustFactor float64 // T_dust / T_kinetic; zero means equal

	Mass float64   // central mass driving the infall [kg]
	Abun []float64 // per species
	Turb float64   // turbulent Doppler width [m/s]
}

var (
	_ DensityField     = &Spherical{}
	_ TemperatureField = &Spherical{}
	_ VelocityField    = &Spherical{}
	_ AbundanceField   = &Spherical{}
	_ DopplerField     = &Spherical{}
)

// Validate checks that the model parameters are physical.
func (s *Spherical) Validate() error {
	switch {
	case s.RMin <= 0:
		return fmt.Errorf("Invalid RMin value %g.", s.RMin)
	case s.R0 <= 0:
		return fmt.Errorf("Invalid R0 value %g.", s.R0)
	case s.Dens0 <= 0:
		return fmt.Errorf("Invalid Dens0 value %g.", s.Dens0)
	case s.Temp0 <= 0:
		return fmt.Errorf("Invalid Temp0 value %g.", s.Temp0)
	case s.Mass < 0:
		return fmt.Errorf("Invalid Mass value %g.", s.Mass)
	case s.Turb < 0:
		return fmt.Errorf("Invalid Turb value %g.", s.Turb)
	}
	for i, a := range s.Abun {
		if a < 0 || a > 1 {
			return fmt.Errorf("Invalid abundance %g for species %d.", a, i)
		}
	}
	return nil
}

func (s *Spherical) radius(x geom.Vec) float64 {
	return math.Max(x.Norm(), s.RMin)
}

func (s *Spherical) Density(x geom.Vec) []float64 {
	r := s.radius(x)
	return []float64{s.Dens0 * math.Pow(r/s.R0, s.DensIndex)}
}

func (s *Spherical) Temperature(x geom.Vec) [2]float64 {
	r := s.radius(x)
	t := s.Temp0 * math.Pow(r/s.R0, s.TempIndex)
	dust := t
	if s.DustFactor > 0 {
		dust = t * s.DustFactor
	}
	return [2]float64{t, dust}
}

// Velocity returns the free-fall velocity towards the origin.
func (s *Spherical) Velocity(x geom.Vec) geom.Vec {
	r := x.Norm()
	if r == 0 || s.Mass == 0 {
		return geom.Vec{}
	}
	vff := math.Sqrt(2 * phys.Grav * s.Mass / s.radius(x))
	return x.Scale(-vff / r)
}

func (s *Spherical) Abundance(x geom.Vec) []float64 {
	out := make([]float64, len(s.Abun))
	copy(out, s.Abun)
	return out
}

func (s *Spherical) Doppler(x geom.Vec) float64 { return s.Turb }
