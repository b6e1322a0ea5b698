package io

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/emmanuelgarcia9/lime/grid"
	"github.com/emmanuelgarcia9/lime/model"
	"github.com/emmanuelgarcia9/lime/molecule"
	"github.com/emmanuelgarcia9/lime/phys"
)

// ErrBadRestart is returned when a file's header does not describe a
// restart file.
var ErrBadRestart = errors.New("not a lime restart file")

// RestartSpeciesName is the name given to species read from a restart file.
const RestartSpeciesName = "unknown"

// Restart is the content of a restart file.
//
// Species read from a restart file only carry their line tables and the
// number of transitions of each collision partner. They have no level
// energies, rate tables or mass and cannot be initialised. Solving should use
// species read from their molecular data files.
type Restart struct {
	Radius  float64
	Species []molecule.Species
	Mesh    *grid.Mesh
}

// RestartConfig controls how a restart file is turned back into a mesh.
type RestartConfig struct {
	// TCMB is the temperature assigned to sinks [K].
	TCMB    float64
	Options grid.Options
}

// DefaultRestartConfig returns the default restart configuration.
func DefaultRestartConfig() *RestartConfig {
	return &RestartConfig{TCMB: phys.LocalCMBTemp}
}

// WriteRestart writes the mesh and species of r to path. Every vertex must
// carry populations for every species.
func WriteRestart(path string, r *Restart) error {
	m := r.Mesh
	if !m.Allocated(r.Species) {
		return fmt.Errorf("Mesh populations do not match the %d species "+
			"being written.", len(r.Species))
	}

	wr, closer, err := createFile(path)
	if err != nil {
		return err
	}

	wr.write(r.Radius)
	wr.writeInt32(m.Len())
	wr.writeInt32(len(r.Species))

	for i := range r.Species {
		writeSpecies(wr, &r.Species[i])
	}

	nmol := make([]float64, len(r.Species))
	for i := range m.Vertices {
		v := &m.Vertices[i]
		wr.writeInt32(v.ID)
		wr.write(v.X)
		wr.write(v.Vel)
		if v.Sink {
			wr.writeInt32(1)
		} else {
			wr.writeInt32(0)
		}
		for s := range v.Mol {
			nmol[s] = v.Mol[s].NMol
		}
		wr.write(nmol)
		wr.write(v.DopbTurb)

		for s := range r.Species {
			mol := &v.Mol[s]
			wr.write(mol.Pops)
			wr.pad(2 * r.Species[s].NLine)
			wr.write(mol.Dopb)
			wr.write(mol.Binv)
		}
		wr.pad(3)
	}

	return closer()
}

func writeSpecies(wr *writer, s *molecule.Species) {
	wr.writeInt32(s.NLev)
	wr.writeInt32(s.NLine)
	wr.writeInt32(len(s.Parts))
	for p := range s.Parts {
		wr.writeInt32(s.Parts[p].NTrans)
	}
	wr.writeInts(s.Lal)
	wr.writeInts(s.Lau)
	wr.write(s.AEinst)
	wr.write(s.Freq)
	wr.write(s.BEinstL)
	wr.write(s.BEinstU)
	wr.pad(s.NLine + 2)
}

// ReadRestart reads the restart file at path and rebuilds its mesh: the
// vertices are retessellated, internal vertices which end up on the hull
// become sinks and edge geometry and velocities are recomputed. Velocities
// come from fields.Velocity when it is present and from the stored vertex
// velocities otherwise.
//
// Densities and temperatures are not stored. They are sampled from fields at
// internal vertices and set to floor values at sinks, so fields must supply
// both. Stored molecular densities, line widths and turbulent Doppler widths
// are kept. A nil cfg uses DefaultRestartConfig.
func ReadRestart(
	path string, fields *model.Fields, cfg *RestartConfig,
) (*Restart, error) {
	if cfg == nil {
		cfg = DefaultRestartConfig()
	}

	rd, f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := readRestart(rd)
	if err != nil {
		return nil, fmt.Errorf("reading restart file %s: %w", path, err)
	}

	if err := fields.Require(
		model.FieldDensity, model.FieldTemperature,
	); err != nil {
		return nil, err
	}

	m := r.Mesh
	if _, err := m.Tessellate(cfg.Options); err != nil {
		return nil, err
	}
	m.CalcDistances()
	m.CalcVelocities(fields.Velocity)

	sampled := &model.Fields{
		Density: fields.Density, Temperature: fields.Temperature,
	}
	if err := m.SampleFields(sampled, cfg.TCMB); err != nil {
		return nil, err
	}
	m.Stages.Set(grid.Abundance, grid.TurbDoppler, grid.Populations)

	return r, nil
}

func readRestart(rd *reader) (*Restart, error) {
	r := &Restart{}
	r.Radius = rd.readFloat64()
	ncell := rd.readInt32()
	nSpecies := rd.readInt32()
	if rd.err != nil {
		return nil, rd.err
	}
	if nSpecies < 0 || nSpecies > phys.MaxNSpecies {
		return nil, fmt.Errorf("%w: header gives %d species", ErrBadRestart,
			nSpecies)
	} else if ncell < 0 {
		return nil, fmt.Errorf("%w: header gives %d vertices", ErrBadRestart,
			ncell)
	}

	r.Species = make([]molecule.Species, nSpecies)
	for i := range r.Species {
		if err := readSpecies(rd, &r.Species[i]); err != nil {
			return nil, fmt.Errorf("species %d: %w", i, err)
		}
	}

	if size := vertexBytes(r.Species); !rd.fits(int64(ncell), size) {
		return nil, fmt.Errorf("%w: header gives %d vertices of %d bytes "+
			"but %d bytes remain: %w", ErrBadRestart, ncell, size, rd.left,
			io.ErrUnexpectedEOF)
	}

	m := &grid.Mesh{Vertices: make([]grid.Vertex, ncell), Radius: r.Radius}
	m.Alloc(r.Species)
	nmol := make([]float64, nSpecies)
	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.ID = rd.readInt32()
		rd.read(&v.X)
		rd.read(&v.Vel)
		v.Sink = rd.readInt32() != 0
		rd.read(nmol)
		v.DopbTurb = rd.readFloat64()

		for s := range r.Species {
			mol := &v.Mol[s]
			mol.NMol = nmol[s]
			rd.read(mol.Pops)
			rd.skip(2 * r.Species[s].NLine)
			mol.Dopb = rd.readFloat64()
			mol.Binv = rd.readFloat64()
		}
		rd.skip(3)

		if rd.err != nil {
			return nil, fmt.Errorf("vertex %d of %d: %w", i, ncell, rd.err)
		}
	}

	partitionSinks(m)
	m.Stages.Set(grid.Positions)
	r.Mesh = m
	return r, nil
}

func readSpecies(rd *reader, s *molecule.Species) error {
	s.Name = RestartSpeciesName
	s.NLev = rd.readInt32()
	s.NLine = rd.readInt32()
	npart := rd.readInt32()
	if rd.err != nil {
		return rd.err
	}
	if s.NLev <= 0 || s.NLine < 0 || npart < 0 ||
		npart > phys.MaxNCollPart {
		return fmt.Errorf("%w: %d levels, %d lines and %d collision "+
			"partners", ErrBadRestart, s.NLev, s.NLine, npart)
	}

	if size := speciesBytes(s.NLine, npart); size > rd.left {
		return fmt.Errorf("%w: species block of %d bytes but %d bytes "+
			"remain: %w", ErrBadRestart, size, rd.left, io.ErrUnexpectedEOF)
	}

	s.Parts = make([]molecule.CollPart, npart)
	for p := range s.Parts {
		s.Parts[p].NTrans = rd.readInt32()
	}
	s.Lal = rd.readInts(s.NLine)
	s.Lau = rd.readInts(s.NLine)
	s.AEinst = rd.readFloats(s.NLine)
	s.Freq = rd.readFloats(s.NLine)
	s.BEinstL = rd.readFloats(s.NLine)
	s.BEinstU = rd.readFloats(s.NLine)
	rd.skip(s.NLine + 2)
	if rd.err != nil {
		return rd.err
	}

	for l := 0; l < s.NLine; l++ {
		if s.Lal[l] < 0 || s.Lal[l] >= s.NLev ||
			s.Lau[l] < 0 || s.Lau[l] >= s.NLev {
			return fmt.Errorf("%w: line %d joins levels %d and %d of %d",
				ErrBadRestart, l, s.Lal[l], s.Lau[l], s.NLev)
		}
	}
	return nil
}

// speciesBytes is the size of a species block after its three counts.
func speciesBytes(nline, npart int) int64 {
	return 4*int64(npart) + 2*4*int64(nline) + 4*8*int64(nline) +
		8*int64(nline+2)
}

// vertexBytes is the size of one vertex block.
func vertexBytes(species []molecule.Species) int64 {
	size := int64(4 + 2*3*8 + 4 + 8 + 3*8)
	for i := range species {
		size += 8 + 8*int64(species[i].NLev) + 2*8*int64(species[i].NLine) +
			2*8
	}
	return size
}

// partitionSinks moves internal vertices ahead of sinks, keeping the order
// within each group, and renumbers the vertices by their new indices.
func partitionSinks(m *grid.Mesh) {
	sort.SliceStable(m.Vertices, func(i, j int) bool {
		return !m.Vertices[i].Sink && m.Vertices[j].Sink
	})
	m.NInternal = 0
	for i := range m.Vertices {
		m.Vertices[i].ID = i
		if !m.Vertices[i].Sink {
			m.NInternal++
		}
	}
	m.NSink = m.Len() - m.NInternal
}
