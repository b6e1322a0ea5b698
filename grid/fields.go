package grid

import (
	"fmt"

	"github.com/emmanuelgarcia9/lime/model"
	"github.com/emmanuelgarcia9/lime/molecule"
	"github.com/emmanuelgarcia9/lime/phys"
)

// Alloc carves the per-vertex population and rate coefficient storage for
// species out of two contiguous arenas. Existing population data is
// discarded.
func (m *Mesh) Alloc(species []molecule.Species) {
	nLev, nPart := 0, 0
	for i := range species {
		nLev += species[i].NLev
		nPart += len(species[i].Parts)
	}

	n := len(m.Vertices)
	mols := make([]molecule.Populations, n*len(species))
	pops := make([]float64, n*nLev)
	parts := make([]molecule.RateCoeff, n*nPart)

	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Mol = mols[i*len(species) : (i+1)*len(species) : (i+1)*len(species)]
		for s := range species {
			nl, np := species[s].NLev, len(species[s].Parts)
			v.Mol[s].Pops, pops = pops[:nl:nl], pops[nl:]
			v.Mol[s].Partner, parts = parts[:np:np], parts[np:]
		}
	}
	m.Stages.Clear(Populations)
}

// Allocated returns true if every vertex carries population storage shaped
// for species.
func (m *Mesh) Allocated(species []molecule.Species) bool {
	for i := range m.Vertices {
		v := &m.Vertices[i]
		if len(v.Mol) != len(species) {
			return false
		}
		for s := range species {
			if len(v.Mol[s].Pops) != species[s].NLev ||
				len(v.Mol[s].Partner) != len(species[s].Parts) {
				return false
			}
		}
	}
	return true
}

// SampleFields evaluates the model's density and temperature at every
// internal vertex. Sinks receive phys.DensityFloor in every density
// component and tcmb for both temperatures. Abundances and turbulent Doppler
// widths are sampled at every vertex when the model supplies them.
//
// A model without a density or temperature field gives an error wrapping
// model.ErrMissingField.
func (m *Mesh) SampleFields(f *model.Fields, tcmb float64) error {
	err := f.Require(model.FieldDensity, model.FieldTemperature)
	if err != nil {
		return err
	}

	nDens := 1
	if m.NInternal > 0 {
		nDens = len(f.Density.Density(m.Vertices[0].X))
		if nDens == 0 {
			return fmt.Errorf("Density field returned no components.")
		}
	}

	dens := make([]float64, nDens*len(m.Vertices))
	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Dens, dens = dens[:nDens:nDens], dens[nDens:]

		if i < m.NInternal {
			d := f.Density.Density(v.X)
			if len(d) != nDens {
				return fmt.Errorf("Density field returned %d components at "+
					"vertex %d, expected %d.", len(d), i, nDens)
			}
			copy(v.Dens, d)
			v.T = f.Temperature.Temperature(v.X)
		} else {
			for k := range v.Dens {
				v.Dens[k] = phys.DensityFloor
			}
			v.T = [2]float64{tcmb, tcmb}
		}
	}
	m.Stages.Set(Density, Temperatures)

	if f.Abundance != nil {
		for i := range m.Vertices {
			m.Vertices[i].Abun = f.Abundance.Abundance(m.Vertices[i].X)
		}
		m.Stages.Set(Abundance)
	}
	if f.Doppler != nil {
		for i := range m.Vertices {
			m.Vertices[i].DopbTurb = f.Doppler.Doppler(m.Vertices[i].X)
		}
		m.Stages.Set(TurbDoppler)
	}
	return nil
}

// NDensities returns the number of density components carried by the mesh.
func (m *Mesh) NDensities() int {
	if len(m.Vertices) == 0 {
		return 0
	}
	return len(m.Vertices[0].Dens)
}
