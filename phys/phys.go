/*package phys contains the physical and numerical constants shared by the
mesh builder, the excitation solver and the restart format.

Physical constants are the NIST values as of 2015 and the IAU 2009 values,
all in SI units.
*/
package phys

import (
	"math"
)

const (
	AMU     = 1.66053904e-27 // atomic mass unit [kg]
	CLight  = 2.99792458e8   // speed of light [m/s]
	HPlanck = 6.626070040e-34
	KBoltz  = 1.38064852e-23
	Grav    = 6.67428e-11
	AU      = 1.495978707e11
	PC      = 3.08567758e16
	MSun    = 1.98892e30 // [kg]

	// HPIP is h c / (4 pi sqrt(pi)).
	HPIP = 8.918502221e-27
	// HCKB is 100 h c / k, converting energies in cm^-1 to kelvin.
	HCKB = 1.43877735

	SqrtPi = 1.77245385091

	// LocalCMBTemp is the default background radiation temperature.
	LocalCMBTemp = 2.728
)

const (
	MaxNSpecies = 100
	// MaxNCollPart is the largest LAMDA collision partner id.
	MaxNCollPart = 7

	// MinPop is the smallest population which takes part in convergence
	// checks.
	MinPop = 1e-6
	// PopFloor is the value small populations are clamped to.
	PopFloor = 1e-30
	// DensityFloor is the density assigned to sink points.
	DensityFloor = 1e-30

	// TOL is the tolerance of the inner rate-equation iteration.
	TOL = 1e-6
	// MaxStateqIter bounds the inner rate-equation iteration.
	MaxStateqIter = 50

	// MaxBlendDeltaV is the velocity separation (m/s) below which two lines
	// are considered blended.
	MaxBlendDeltaV = 1e4

	// NumVelSamples is the number of velocity samples stored along each edge.
	NumVelSamples = 5

	PhotonsPerNeighbour = 9
	MaxPhotons          = 10000
)

// Collision partner ids as used by LAMDA.
const (
	CollPartH2 = iota + 1
	CollPartParaH2
	CollPartOrthoH2
	CollPartElectron
	CollPartH
	CollPartHe
	CollPartHPlus
)

// Planck returns the Planck intensity [W m^-2 Hz^-1 sr^-1] at frequency
// freq [Hz] and temperature t [K]. Temperatures at or below zero give zero.
func Planck(freq, t float64) float64 {
	if t <= 0 {
		return 0
	}
	x := HPlanck * freq / (KBoltz * t)
	if x > 700 {
		return 0
	}
	return 2 * HPlanck * freq * freq * freq /
		(CLight * CLight) / math.Expm1(x)
}

// GaussLine returns the unnormalised Gaussian line profile exp(-(v*binv)^2).
func GaussLine(v, binv float64) float64 {
	x := v * binv
	return math.Exp(-x * x)
}
