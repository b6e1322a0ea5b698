package io

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/emmanuelgarcia9/lime/grid"
)

// Summary describes the content of a mesh in a form suitable for printing.
type Summary struct {
	Radius    float64        `yaml:"radius"`
	Vertices  int            `yaml:"vertices"`
	Internal  int            `yaml:"internal"`
	Sinks     int            `yaml:"sinks"`
	Links     int            `yaml:"links"`
	Densities int            `yaml:"densities"`
	Stages    []string       `yaml:"stages"`
	Species   []SpeciesStats `yaml:"species"`
	// HullFraction is the fraction of the model sphere covered by the
	// mesh. It is only set when the mesh kept its cells.
	HullFraction float64 `yaml:"hull_fraction,omitempty"`
}

// SpeciesStats summarises one species over the internal vertices of a mesh.
type SpeciesStats struct {
	Name     string  `yaml:"name"`
	Levels   int     `yaml:"levels"`
	Lines    int     `yaml:"lines"`
	Partners int     `yaml:"partners"`
	MinNMol  float64 `yaml:"min_nmol"`
	MaxNMol  float64 `yaml:"max_nmol"`
	// MeanPops is the mean population of every level.
	MeanPops []float64 `yaml:"mean_pops,flow"`
}

// Summarize computes the summary of a restart file's content.
func Summarize(r *Restart) *Summary {
	m := r.Mesh
	s := &Summary{
		Radius:    r.Radius,
		Vertices:  m.Len(),
		Internal:  m.NInternal,
		Sinks:     m.NSink,
		Densities: m.NDensities(),
		Stages:    m.Stages.List(),
	}
	for i := range m.Vertices {
		s.Links += len(m.Vertices[i].Neigh)
	}
	if vol, err := m.Volume(); err == nil && r.Radius > 0 {
		s.HullFraction = vol / (4 * math.Pi / 3 * math.Pow(r.Radius, 3))
	}

	for sp := range r.Species {
		spec := &r.Species[sp]
		st := SpeciesStats{
			Name: spec.Name, Levels: spec.NLev, Lines: spec.NLine,
			Partners: len(spec.Parts),
			MinNMol:  math.Inf(+1), MaxNMol: math.Inf(-1),
			MeanPops: make([]float64, spec.NLev),
		}
		for i := 0; i < m.NInternal; i++ {
			mol := &m.Vertices[i].Mol[sp]
			st.MinNMol = math.Min(st.MinNMol, mol.NMol)
			st.MaxNMol = math.Max(st.MaxNMol, mol.NMol)
			for l, p := range mol.Pops {
				st.MeanPops[l] += p
			}
		}
		if m.NInternal > 0 {
			for l := range st.MeanPops {
				st.MeanPops[l] /= float64(m.NInternal)
			}
		} else {
			st.MinNMol, st.MaxNMol = 0, 0
		}
		s.Species = append(s.Species, st)
	}
	return s
}

// WriteSummary writes s to w as YAML.
func WriteSummary(w io.Writer, s *Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// RadialPopulations returns the radii of the internal vertices of m in
// increasing order together with the population of the given level of
// species sp at each of them.
func RadialPopulations(m *grid.Mesh, sp, level int) (rs, pops []float64, err error) {
	if m.NInternal > 0 {
		mol := m.Vertices[0].Mol
		if sp < 0 || sp >= len(mol) {
			return nil, nil, fmt.Errorf("Invalid species index %d, the mesh "+
				"has %d species.", sp, len(mol))
		} else if level < 0 || level >= len(mol[sp].Pops) {
			return nil, nil, fmt.Errorf("Invalid level %d, species %d has %d "+
				"levels.", level, sp, len(mol[sp].Pops))
		}
	}

	idx := radialOrder(m)

	rs = make([]float64, len(idx))
	pops = make([]float64, len(idx))
	for k, i := range idx {
		rs[k] = m.Vertices[i].X.Norm()
		pops[k] = m.Vertices[i].Mol[sp].Pops[level]
	}
	return rs, pops, nil
}

// radialOrder returns the indices of the internal vertices of m sorted by
// distance from the origin.
func radialOrder(m *grid.Mesh) []int {
	idx := make([]int, m.NInternal)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return m.Vertices[idx[a]].X.Norm() < m.Vertices[idx[b]].X.Norm()
	})
	return idx
}

// WritePopulationTable writes one row per internal vertex of m: the radius,
// the first density component, the kinetic temperature and the populations
// of species sp. Rows are sorted by radius and the first line is a comment
// naming the columns, so the output can be read back with the table package.
func WritePopulationTable(w io.Writer, m *grid.Mesh, sp int) error {
	rs, _, err := RadialPopulations(m, sp, 0)
	if err != nil {
		return err
	}

	idx := radialOrder(m)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %12s %12s %12s %s\n", "r [m]", "n [m^-3]", "T [K]",
		"pops")
	for k, i := range idx {
		v := &m.Vertices[i]
		dens := 0.0
		if len(v.Dens) > 0 {
			dens = v.Dens[0]
		}
		fmt.Fprintf(bw, "%14.6e %12.6e %12.6e", rs[k], dens, v.T[0])
		for _, p := range v.Mol[sp].Pops {
			fmt.Fprintf(bw, " %12.6e", p)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
