package io

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmanuelgarcia9/lime/geom"
	"github.com/emmanuelgarcia9/lime/grid"
	"github.com/emmanuelgarcia9/lime/model"
	"github.com/emmanuelgarcia9/lime/molecule"
	"github.com/emmanuelgarcia9/lime/phys"
)

const (
	testRadius    = 1e15
	testInternal  = 60
	testSinks     = 30
	testTCMB      = 5.0
	testFreq      = 115.27e9
	testA         = 7.2e-8
	testAbundance = 1e-9
)

func testModel() *model.Spherical {
	return &model.Spherical{
		RMin: 1e13, R0: testRadius,
		Dens0: 1e10, DensIndex: -1,
		Temp0: 20, TempIndex: -0.3,
		Mass: 2e30, Abun: []float64{testAbundance}, Turb: 150,
	}
}

func testSpecies(t *testing.T) molecule.Species {
	t.Helper()
	f := testFreq
	bu := testA * phys.CLight * phys.CLight / (2 * phys.HPlanck * f * f * f)
	s := molecule.Species{
		Name: "two", NLev: 2, NLine: 1,
		Lal: []int{0}, Lau: []int{1},
		AEinst: []float64{testA}, Freq: []float64{f},
		BEinstU: []float64{bu}, BEinstL: []float64{3 * bu},
		ETerm: []float64{0, 3.845}, GStat: []float64{1, 3},
		Amass: 28,
		Parts: []molecule.CollPart{{
			ID: phys.CollPartH2, Name: "H2",
			Temps: []float64{5, 10, 20, 40, 80},
			Down:  [][]float64{{3e-17, 3.2e-17, 3.3e-17, 3.4e-17, 3.6e-17}},
			Lcl:   []int{0}, Lcu: []int{1}, NTrans: 1,
		}},
	}
	require.NoError(t, s.Init(testTCMB))
	return s
}

// testRestart returns a mesh carrying LTE populations for one species.
func testRestart(t *testing.T) *Restart {
	t.Helper()
	rng := rand.New(rand.NewPCG(5, 6))
	xs := grid.RandomPoints(rng, testRadius, testInternal, testSinks)
	m, err := grid.Build(xs, testInternal, grid.Options{})
	require.NoError(t, err)

	sph := testModel()
	require.NoError(t, m.SampleFields(model.Resolve(sph), testTCMB))
	m.CalcVelocities(sph)

	species := []molecule.Species{testSpecies(t)}
	m.Alloc(species)
	for i := range m.Vertices {
		v := &m.Vertices[i]
		mol := &v.Mol[0]
		mol.NMol = molecule.NMol(v.Abun[0], v.Dens, nil)
		mol.SetWidth(molecule.DopplerWidth(v.DopbTurb, v.T[0], species[0].Amass))
		species[0].LTE(mol.Pops, v.T[0])
	}
	m.Stages.Set(grid.Populations)

	return &Restart{Radius: testRadius, Species: species, Mesh: m}
}

func neighbours(m *grid.Mesh) [][]int {
	out := make([][]int, m.Len())
	for i := range m.Vertices {
		for _, l := range m.Vertices[i].Neigh {
			out[i] = append(out[i], l.To)
		}
	}
	return out
}

func TestRestartRoundTrip(t *testing.T) {
	r := testRestart(t)
	path := filepath.Join(t.TempDir(), "pops.out")
	require.NoError(t, WriteRestart(path, r))

	got, err := ReadRestart(path, model.Resolve(testModel()),
		&RestartConfig{TCMB: testTCMB})
	require.NoError(t, err)

	m, gm := r.Mesh, got.Mesh
	assert.Equal(t, r.Radius, got.Radius)
	assert.Equal(t, m.NInternal, gm.NInternal)
	assert.Equal(t, m.NSink, gm.NSink)
	require.Equal(t, m.Len(), gm.Len())
	require.NoError(t, gm.Check())

	for i := range m.Vertices {
		v, gv := &m.Vertices[i], &gm.Vertices[i]
		if v.X != gv.X || v.Vel != gv.Vel || v.Sink != gv.Sink ||
			v.DopbTurb != gv.DopbTurb {
			t.Errorf("%d) Vertex changed: %v %v %v %g -> %v %v %v %g.", i,
				v.X, v.Vel, v.Sink, v.DopbTurb,
				gv.X, gv.Vel, gv.Sink, gv.DopbTurb)
		}
		if diff := cmp.Diff(v.Mol[0].Pops, gv.Mol[0].Pops); diff != "" {
			t.Errorf("%d) Populations changed (-want +got):\n%s", i, diff)
		}
		assert.Equal(t, v.Mol[0].NMol, gv.Mol[0].NMol)
		assert.Equal(t, v.Mol[0].Dopb, gv.Mol[0].Dopb)
		assert.Equal(t, v.Mol[0].Binv, gv.Mol[0].Binv)
	}
	assert.Equal(t, neighbours(m), neighbours(gm))

	want, sp := r.Species[0], got.Species[0]
	assert.Equal(t, RestartSpeciesName, sp.Name)
	assert.Equal(t, want.NLev, sp.NLev)
	assert.Equal(t, want.NLine, sp.NLine)
	assert.Equal(t, want.Lal, sp.Lal)
	assert.Equal(t, want.Lau, sp.Lau)
	assert.Equal(t, want.AEinst, sp.AEinst)
	assert.Equal(t, want.Freq, sp.Freq)
	assert.Equal(t, want.BEinstL, sp.BEinstL)
	assert.Equal(t, want.BEinstU, sp.BEinstU)
	require.Len(t, sp.Parts, 1)
	assert.Equal(t, 1, sp.Parts[0].NTrans)

	for _, st := range []grid.Stage{
		grid.Positions, grid.Neighbours, grid.Velocity, grid.Abundance,
		grid.TurbDoppler, grid.ACoeff, grid.Populations, grid.Density,
		grid.Temperatures,
	} {
		assert.True(t, gm.Stages.Has(st), "stage %s", st)
	}
	assert.False(t, gm.Stages.HasMagField())
}

func TestRestartFields(t *testing.T) {
	r := testRestart(t)
	path := filepath.Join(t.TempDir(), "pops.out")
	require.NoError(t, WriteRestart(path, r))

	sph := testModel()
	got, err := ReadRestart(path, model.Resolve(sph),
		&RestartConfig{TCMB: testTCMB})
	require.NoError(t, err)

	m := got.Mesh
	for i := range m.Vertices {
		v := &m.Vertices[i]
		if v.Sink {
			assert.Equal(t, []float64{phys.DensityFloor}, v.Dens, "vertex %d", i)
			assert.Equal(t, [2]float64{testTCMB, testTCMB}, v.T, "vertex %d", i)
		} else {
			assert.Equal(t, sph.Density(v.X), v.Dens, "vertex %d", i)
			assert.Equal(t, sph.Temperature(v.X), v.T, "vertex %d", i)
		}
		assert.Equal(t, sph.Velocity(v.X), v.Vel, "vertex %d", i)
	}

	opt := cmpopts.EquateApprox(1e-12, 0)
	for i := range m.Vertices {
		for j, l := range m.Vertices[i].Neigh {
			want := r.Mesh.Vertices[i].Neigh[j]
			if !cmp.Equal(want.VelSamples, l.VelSamples, opt) ||
				!cmp.Equal(want.Dist, l.Dist, opt) {
				t.Errorf("%d) link %d geometry changed.", i, j)
			}
		}
	}
}

func TestRestartStoredVelocities(t *testing.T) {
	r := testRestart(t)
	for i := range r.Mesh.Vertices {
		v := &r.Mesh.Vertices[i]
		v.Vel = geom.Vec{float64(i), -2 * float64(i), 50}
	}
	path := filepath.Join(t.TempDir(), "pops.out")
	require.NoError(t, WriteRestart(path, r))

	sph := testModel()
	fields := &model.Fields{Density: sph, Temperature: sph}
	got, err := ReadRestart(path, fields, &RestartConfig{TCMB: testTCMB})
	require.NoError(t, err)

	m := got.Mesh
	for i := range m.Vertices {
		v := &m.Vertices[i]
		assert.Equal(t, r.Mesh.Vertices[i].Vel, v.Vel, "vertex %d", i)
		for _, l := range v.Neigh {
			nb := &m.Vertices[l.To]
			assert.InDelta(t, v.Vel.Dot(l.Dir), l.VelSamples[0], 1e-9)
			assert.InDelta(t, nb.Vel.Dot(l.Dir),
				l.VelSamples[phys.NumVelSamples-1], 1e-9)
		}
	}
	assert.True(t, m.Stages.HasVelocity())
}

func TestRestartMissingFields(t *testing.T) {
	r := testRestart(t)
	path := filepath.Join(t.TempDir(), "pops.out")
	require.NoError(t, WriteRestart(path, r))

	sph := testModel()
	table := []*model.Fields{
		nil,
		{Density: sph},
		{Temperature: sph},
	}
	for i, fields := range table {
		_, err := ReadRestart(path, fields, nil)
		if !errors.Is(err, model.ErrMissingField) {
			t.Errorf("%d) Expected ErrMissingField, got %v.", i, err)
		}
	}
}

func writeHeader(t *testing.T, path string, ncell, nSpecies int32) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, binary.Write(f, binary.NativeEndian, testRadius))
	require.NoError(t, binary.Write(f, binary.NativeEndian, ncell))
	require.NoError(t, binary.Write(f, binary.NativeEndian, nSpecies))
}

func TestRestartBadHeader(t *testing.T) {
	dir := t.TempDir()
	fields := model.Resolve(testModel())

	table := []struct {
		ncell, nSpecies int32
	}{
		{10, -1},
		{10, phys.MaxNSpecies + 1},
		{-4, 1},
	}
	for i, test := range table {
		path := filepath.Join(dir, "bad")
		writeHeader(t, path, test.ncell, test.nSpecies)
		_, err := ReadRestart(path, fields, nil)
		if !errors.Is(err, ErrBadRestart) {
			t.Errorf("%d) Expected ErrBadRestart, got %v.", i, err)
		}
	}
}

func TestRestartHugeCounts(t *testing.T) {
	dir := t.TempDir()
	fields := model.Resolve(testModel())

	path := filepath.Join(dir, "ncell")
	writeHeader(t, path, math.MaxInt32, 0)
	_, err := ReadRestart(path, fields, nil)
	assert.ErrorIs(t, err, ErrBadRestart)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	table := [][3]int32{
		{2, 1 << 30, 0},
		{math.MaxInt32, 1, 1},
		{2, 1, phys.MaxNCollPart},
	}
	for i, counts := range table {
		path := filepath.Join(dir, "species")
		writeHeader(t, path, 1, 1)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		require.NoError(t, err)
		require.NoError(t, binary.Write(f, binary.NativeEndian, counts))
		require.NoError(t, f.Close())

		_, err = ReadRestart(path, fields, nil)
		if !errors.Is(err, ErrBadRestart) {
			t.Errorf("%d) Expected ErrBadRestart, got %v.", i, err)
		}
	}
}

func TestRestartTruncated(t *testing.T) {
	r := testRestart(t)
	path := filepath.Join(t.TempDir(), "pops.out")
	require.NoError(t, WriteRestart(path, r))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()/2))

	_, err = ReadRestart(path, model.Resolve(testModel()), nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadRestart(filepath.Join(t.TempDir(), "missing"),
		model.Resolve(testModel()), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRestartEmptySpecies(t *testing.T) {
	r := testRestart(t)
	r.Species = nil
	r.Mesh.Alloc(nil)
	path := filepath.Join(t.TempDir(), "pops.out")
	require.NoError(t, WriteRestart(path, r))

	got, err := ReadRestart(path, model.Resolve(testModel()), nil)
	require.NoError(t, err)
	assert.Empty(t, got.Species)
	assert.Equal(t, r.Mesh.Len(), got.Mesh.Len())
}

func TestWriteRestartUnallocated(t *testing.T) {
	r := testRestart(t)
	r.Species = append(r.Species, testSpecies(t))
	err := WriteRestart(filepath.Join(t.TempDir(), "pops.out"), r)
	assert.Error(t, err)
}

func TestPartitionSinks(t *testing.T) {
	m := &grid.Mesh{Vertices: []grid.Vertex{
		{ID: 7, Sink: true}, {ID: 3}, {ID: 9, Sink: true}, {ID: 1}, {ID: 2},
	}}
	for i := range m.Vertices {
		m.Vertices[i].DopbTurb = float64(i)
	}
	partitionSinks(m)

	assert.Equal(t, 3, m.NInternal)
	assert.Equal(t, 2, m.NSink)
	order := []float64{}
	for i, v := range m.Vertices {
		assert.Equal(t, i, v.ID)
		order = append(order, v.DopbTurb)
	}
	assert.Equal(t, []float64{1, 3, 4, 0, 2}, order)
	assert.NoError(t, m.Check())
}
