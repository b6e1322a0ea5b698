package molecule

import (
	"math"

	"github.com/emmanuelgarcia9/lime/phys"
)

// RateCoeff locates a temperature on a collision partner's temperature grid.
type RateCoeff struct {
	TBinLow int
	Coeff   float64
}

// Populations is the excitation state of one species at one vertex.
type Populations struct {
	Pops    []float64 // fractional level populations
	NMol    float64   // molecular number density [m^-3]
	Dopb    float64   // Doppler width [m/s]
	Binv    float64   // 1 / Dopb
	Partner []RateCoeff
}

// DopplerWidth returns the line width from turbulent broadening turb [m/s]
// and thermal broadening at temperature t for a molecule of mass amass [amu].
func DopplerWidth(turb, t, amass float64) float64 {
	return math.Sqrt(turb*turb + 2*phys.KBoltz*t/(amass*phys.AMU))
}

// NMol returns the molecular density given the abundance relative to the
// weighted sum of the density components. A nil weights slice weights every
// component by one.
func NMol(abun float64, dens, weights []float64) float64 {
	sum := 0.0
	for i, d := range dens {
		w := 1.0
		if weights != nil {
			if i >= len(weights) {
				break
			}
			w = weights[i]
		}
		sum += d * w
	}
	return abun * sum
}

// SetWidth sets Dopb and Binv.
func (p *Populations) SetWidth(dopb float64) {
	p.Dopb = dopb
	if dopb > 0 {
		p.Binv = 1 / dopb
	} else {
		p.Binv = 0
	}
}

// Clamp raises populations below phys.PopFloor to the floor and rescales the
// vector to unit sum.
func Clamp(pops []float64) {
	sum := 0.0
	for i, x := range pops {
		if x < phys.PopFloor {
			pops[i] = phys.PopFloor
		}
		sum += pops[i]
	}
	for i := range pops {
		pops[i] /= sum
	}
}

// Finite returns true if no population is NaN or infinite.
func Finite(pops []float64) bool {
	for _, x := range pops {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Emissivity returns the line emissivity [W m^-3 Hz^-1 sr^-1] and opacity
// [m^-1] of line l at a vertex, scaled by the local profile value vfac.
func (s *Species) Emissivity(p *Populations, l int, vfac float64) (jnu, alpha float64) {
	lo, hi := s.Lal[l], s.Lau[l]
	k := vfac * phys.HPIP * p.Binv * p.NMol
	jnu = k * p.Pops[hi] * s.AEinst[l]
	alpha = k * (p.Pops[lo]*s.BEinstL[l] - p.Pops[hi]*s.BEinstU[l])
	return jnu, alpha
}
