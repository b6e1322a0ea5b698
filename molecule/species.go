/*package molecule holds the spectroscopic and collisional data of molecular
species and the per-vertex population state derived from it.

Species are immutable once Init has been called and are shared read-only by
every solver worker.
*/
package molecule

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/emmanuelgarcia9/lime/math/interpolate"
	"github.com/emmanuelgarcia9/lime/phys"
)

// CollPart is the rate table of one collision partner.
type CollPart struct {
	ID   int // LAMDA partner id, see phys.CollPartH2
	Name string

	Temps []float64   // [K], strictly increasing
	Down  [][]float64 // [NTrans][len(Temps)] downward rates [m^3 s^-1]
	// Lcl and Lcu are the lower and upper levels of each collisional
	// transition.
	Lcl, Lcu []int
	NTrans   int

	// DensityIndex selects the density component which collides with the
	// species.
	DensityIndex int

	axis *interpolate.Axis
}

// Species is one molecule's energy levels, radiative transitions and
// collision rate tables.
type Species struct {
	Name        string
	NLev, NLine int

	// Lal and Lau are the lower and upper levels of each line.
	Lal, Lau []int
	AEinst   []float64 // [s^-1]
	Freq     []float64 // [Hz]
	BEinstL  []float64
	BEinstU  []float64

	ETerm []float64 // level energies [cm^-1]
	GStat []float64 // statistical weights
	Amass float64   // [amu]

	Parts []CollPart

	// CMB is the background intensity of each line.
	CMB []float64
	// Norm is the Planck intensity scale of the first line, used to keep
	// intensities of order unity.
	Norm, NormInv float64
}

// Validate checks the internal consistency of the species tables.
func (s *Species) Validate() error {
	if s.NLev <= 0 {
		return fmt.Errorf("Species '%s' has %d levels.", s.Name, s.NLev)
	} else if s.NLine < 0 {
		return fmt.Errorf("Species '%s' has %d lines.", s.Name, s.NLine)
	}

	lineArrays := [][]float64{s.AEinst, s.Freq, s.BEinstL, s.BEinstU}
	if len(s.Lal) != s.NLine || len(s.Lau) != s.NLine {
		return fmt.Errorf("Species '%s' line level arrays have lengths %d "+
			"and %d, expected %d.", s.Name, len(s.Lal), len(s.Lau), s.NLine)
	}
	for _, arr := range lineArrays {
		if len(arr) != s.NLine {
			return fmt.Errorf("Species '%s' has a line array of length %d, "+
				"expected %d.", s.Name, len(arr), s.NLine)
		}
	}
	for i := 0; i < s.NLine; i++ {
		if !s.validLevel(s.Lal[i]) || !s.validLevel(s.Lau[i]) {
			return fmt.Errorf("Species '%s' line %d joins invalid levels "+
				"%d and %d.", s.Name, i, s.Lal[i], s.Lau[i])
		} else if s.Freq[i] <= 0 {
			return fmt.Errorf("Species '%s' line %d has frequency %g.",
				s.Name, i, s.Freq[i])
		}
	}

	if s.ETerm != nil && len(s.ETerm) != s.NLev {
		return fmt.Errorf("Species '%s' has %d level energies, expected %d.",
			s.Name, len(s.ETerm), s.NLev)
	} else if s.GStat != nil && len(s.GStat) != s.NLev {
		return fmt.Errorf("Species '%s' has %d statistical weights, "+
			"expected %d.", s.Name, len(s.GStat), s.NLev)
	}

	for p := range s.Parts {
		if err := s.validatePart(&s.Parts[p]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Species) validLevel(l int) bool { return l >= 0 && l < s.NLev }

func (s *Species) validatePart(cp *CollPart) error {
	if len(cp.Temps) == 0 {
		return fmt.Errorf("Species '%s' partner %d has no temperatures.",
			s.Name, cp.ID)
	}
	if len(cp.Down) != cp.NTrans || len(cp.Lcl) != cp.NTrans ||
		len(cp.Lcu) != cp.NTrans {
		return fmt.Errorf("Species '%s' partner %d has inconsistent "+
			"transition counts.", s.Name, cp.ID)
	}
	for k := 0; k < cp.NTrans; k++ {
		if len(cp.Down[k]) != len(cp.Temps) {
			return fmt.Errorf("Species '%s' partner %d transition %d has %d "+
				"rates, expected %d.", s.Name, cp.ID, k, len(cp.Down[k]),
				len(cp.Temps))
		} else if !s.validLevel(cp.Lcl[k]) || !s.validLevel(cp.Lcu[k]) {
			return fmt.Errorf("Species '%s' partner %d transition %d joins "+
				"invalid levels %d and %d.", s.Name, cp.ID, k, cp.Lcl[k],
				cp.Lcu[k])
		}
	}
	for i := 1; i < len(cp.Temps); i++ {
		if cp.Temps[i] <= cp.Temps[i-1] {
			return fmt.Errorf("Species '%s' partner %d temperatures are not "+
				"increasing.", s.Name, cp.ID)
		}
	}
	return nil
}

// Init validates the species and computes the quantities derived from its
// tables: the temperature axes of the rate tables, the background intensity
// of every line at tcmb and the intensity scale. Missing energies default to
// zero and missing statistical weights to one.
func (s *Species) Init(tcmb float64) error {
	if err := s.Validate(); err != nil {
		return err
	}

	if s.ETerm == nil {
		s.ETerm = make([]float64, s.NLev)
	}
	if s.GStat == nil {
		s.GStat = make([]float64, s.NLev)
		for i := range s.GStat {
			s.GStat[i] = 1
		}
	}

	for p := range s.Parts {
		s.Parts[p].axis = interpolate.NewAxis(s.Parts[p].Temps)
	}

	s.CMB = make([]float64, s.NLine)
	for i := range s.CMB {
		s.CMB[i] = phys.Planck(s.Freq[i], tcmb)
	}

	s.Norm, s.NormInv = 1, 1
	if s.NLine > 0 {
		f := s.Freq[0]
		s.Norm = 2 * phys.HPlanck * f * f * f / (phys.CLight * phys.CLight)
		s.NormInv = 1 / s.Norm
	}
	return nil
}

// LTE writes the Boltzmann populations at temperature t into pops. A
// temperature at or below zero puts everything in the ground state.
func (s *Species) LTE(pops []float64, t float64) {
	if t <= 0 {
		for i := range pops {
			pops[i] = 0
		}
		pops[0] = 1
		return
	}

	sum := 0.0
	for i := 0; i < s.NLev; i++ {
		pops[i] = s.GStat[i] * math.Exp(-phys.HCKB*s.ETerm[i]/t)
		sum += pops[i]
	}
	for i := 0; i < s.NLev; i++ {
		pops[i] /= sum
	}
}

// RateCoeffs writes the position of t on every partner's temperature grid
// into out, which must have length len(s.Parts).
func (s *Species) RateCoeffs(t float64, out []RateCoeff) {
	for p := range s.Parts {
		i, frac := s.Parts[p].axis.Bracket(t)
		out[p] = RateCoeff{TBinLow: i, Coeff: frac}
	}
}

// DownRate returns the interpolated downward rate coefficient of collisional
// transition k.
func (cp *CollPart) DownRate(k int, rc RateCoeff) float64 {
	return interpolate.Lerp(cp.Down[k], rc.TBinLow, rc.Coeff)
}

// UpRate returns the upward rate coefficient matching the downward rate down
// between levels lo and hi at temperature t, by detailed balance.
func (s *Species) UpRate(down float64, lo, hi int, t float64) float64 {
	if t <= 0 {
		return 0
	}
	dE := s.ETerm[hi] - s.ETerm[lo]
	return down * s.GStat[hi] / s.GStat[lo] * math.Exp(-phys.HCKB*dE/t)
}

// AssignDensities maps every collision partner of every species to one of
// nDens density components by LAMDA partner id: the distinct ids of all
// partners are sorted and the k-th id uses component k. Partners whose
// component does not exist use the first one.
func AssignDensities(species []Species, nDens int) {
	ids := []int{}
	for i := range species {
		for p := range species[i].Parts {
			id := species[i].Parts[p].ID
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	sort.Ints(ids)

	for i := range species {
		for p := range species[i].Parts {
			cp := &species[i].Parts[p]
			k := sort.SearchInts(ids, cp.ID)
			if k >= nDens {
				k = 0
			}
			cp.DensityIndex = k
		}
	}
}

// Ready returns true if Init has completed on the species.
func (s *Species) Ready() bool {
	if len(s.CMB) != s.NLine || s.Norm == 0 || len(s.GStat) != s.NLev {
		return false
	}
	for p := range s.Parts {
		if s.Parts[p].axis == nil {
			return false
		}
	}
	return true
}
