package solve

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/emmanuelgarcia9/lime/grid"
	"github.com/emmanuelgarcia9/lime/model"
	"github.com/emmanuelgarcia9/lime/molecule"
	"github.com/emmanuelgarcia9/lime/phys"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nInternal = 60
	nSink     = 30
	radius    = 1e15
)

func testModel(nSpecies int) *model.Spherical {
	abun := make([]float64, nSpecies)
	for i := range abun {
		abun[i] = 1e-9
	}
	return &model.Spherical{
		RMin: 1e13, R0: radius,
		Dens0: 1e10, DensIndex: -1,
		Temp0: 20, TempIndex: -0.3,
		Mass: 2e30, Abun: abun, Turb: 150,
	}
}

func testMesh(t *testing.T, nSpecies int, tcmb float64) *grid.Mesh {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	xs := grid.RandomPoints(rng, radius, nInternal, nSink)
	m, err := grid.Build(xs, nInternal, grid.Options{})
	require.NoError(t, err)

	sph := testModel(nSpecies)
	require.NoError(t, m.SampleFields(model.Resolve(sph), tcmb))
	m.CalcVelocities(sph)
	return m
}

func twoLevel(t *testing.T, a, tcmb float64) molecule.Species {
	t.Helper()
	f := 115.27e9
	bu := a * phys.CLight * phys.CLight / (2 * phys.HPlanck * f * f * f)
	s := molecule.Species{
		Name: "two", NLev: 2, NLine: 1,
		Lal: []int{0}, Lau: []int{1},
		AEinst: []float64{a}, Freq: []float64{f},
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
	require.NoError(t, s.Init(tcmb))
	return s
}

func checkNormalised(t *testing.T, m *grid.Mesh) {
	t.Helper()
	for i := range m.Vertices {
		for sp, mol := range m.Vertices[i].Mol {
			sum := 0.0
			for _, x := range mol.Pops {
				assert.GreaterOrEqual(t, x, 0.0)
				sum += x
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Errorf("Vertex %d species %d populations sum to %g.",
					i, sp, sum)
			}
		}
	}
}

func TestSingleLevel(t *testing.T) {
	m := testMesh(t, 1, phys.LocalCMBTemp)
	s := molecule.Species{Name: "one", NLev: 1, Amass: 2}
	require.NoError(t, s.Init(phys.LocalCMBTemp))

	cfg := DefaultConfig()
	cfg.Threads = 2
	st, err := Solve(m, []molecule.Species{s}, cfg)
	require.NoError(t, err)
	assert.True(t, st.Converged)
	assert.Equal(t, cfg.StabilityCount, st.Iterations)
	assert.Equal(t, 0, st.Unconverged)
	assert.NoError(t, st.Err())

	for i := range m.Vertices {
		assert.Equal(t, []float64{1}, m.Vertices[i].Mol[0].Pops)
	}
	assert.True(t, m.Stages.HasPopulations())
}

func TestTwoLevelBoltzmann(t *testing.T) {
	// With no background and either no radiative decay or densities far
	// above the critical density, collisions hold the levels at LTE.
	table := []struct {
		a, relTol float64
	}{
		{0, 1e-6},
		{1e-10, 1e-3},
	}

	for j, test := range table {
		m := testMesh(t, 1, 0)
		species := []molecule.Species{twoLevel(t, test.a, 0)}

		// Start far from equilibrium.
		m.Alloc(species)
		for i := range m.Vertices {
			copy(m.Vertices[i].Mol[0].Pops, []float64{0.5, 0.5})
		}
		m.Stages.Set(grid.Populations)

		cfg := DefaultConfig()
		cfg.TCMB = 0
		cfg.Threads = 3
		st, err := Solve(m, species, cfg)
		require.NoError(t, err)
		assert.True(t, st.Converged, "%d) converged", j)
		if test.a == 0 {
			assert.Equal(t, cfg.StabilityCount+1, st.Iterations)
		}

		for i := 0; i < m.NInternal; i++ {
			v := &m.Vertices[i]
			pops := v.Mol[0].Pops
			want := 3 * math.Exp(-phys.HCKB*3.845/v.T[0])
			assert.InDelta(t, want, pops[1]/pops[0], test.relTol*want,
				"%d) vertex %d", j, i)
		}
		checkNormalised(t, m)
	}
}

func TestDeterministic(t *testing.T) {
	species := []molecule.Species{
		twoLevel(t, 7.2e-8, phys.LocalCMBTemp),
		twoLevel(t, 7.2e-8, phys.LocalCMBTemp),
	}

	pops := func(threads int) [][]float64 {
		m := testMesh(t, 2, phys.LocalCMBTemp)
		cfg := DefaultConfig()
		cfg.Threads = threads
		cfg.MaxIterations = 3
		cfg.Blend = true
		cfg.Seed = 42
		_, err := Solve(m, species, cfg)
		require.NoError(t, err)
		checkNormalised(t, m)

		out := [][]float64{}
		for i := range m.Vertices {
			for _, mol := range m.Vertices[i].Mol {
				out = append(out, append([]float64{}, mol.Pops...))
			}
		}
		return out
	}

	one, four := pops(1), pops(4)
	if diff := cmp.Diff(one, four); diff != "" {
		t.Errorf("Populations depend on the thread count (-1 +4):\n%s", diff)
	}

	// The solution moved away from LTE but stayed physical.
	m := testMesh(t, 2, phys.LocalCMBTemp)
	lte := make([]float64, 2)
	species[0].LTE(lte, m.Vertices[0].T[0])
	assert.True(t, cmp.Equal(lte, one[0], cmpopts.EquateApprox(0.5, 0)),
		"populations stay close to LTE at high density")
}

func TestLTEOnly(t *testing.T) {
	m := testMesh(t, 1, phys.LocalCMBTemp)
	species := []molecule.Species{twoLevel(t, 7.2e-8, phys.LocalCMBTemp)}

	cfg := DefaultConfig()
	cfg.LTEOnly = true
	st, err := Solve(m, species, cfg)
	require.NoError(t, err)
	assert.True(t, st.Converged)
	assert.Equal(t, 0, st.Iterations)

	lte := make([]float64, 2)
	for i := range m.Vertices {
		v := &m.Vertices[i]
		species[0].LTE(lte, v.T[0])
		assert.InDeltaSlice(t, lte, v.Mol[0].Pops, 1e-15)
		want := molecule.DopplerWidth(150, v.T[0], 28)
		assert.InDelta(t, want, v.Mol[0].Dopb, 1e-9)
		assert.InDelta(t, 1e-9*v.Dens[0], v.Mol[0].NMol, 1e-12*v.Dens[0])
	}
}

func TestNotConverged(t *testing.T) {
	m := testMesh(t, 1, phys.LocalCMBTemp)
	species := []molecule.Species{twoLevel(t, 7.2e-8, phys.LocalCMBTemp)}

	reg := prometheus.NewRegistry()
	cfg := DefaultConfig()
	cfg.MaxIterations = 2
	cfg.RelTol = 1e-300
	cfg.Metrics = NewMetrics(reg)
	st, err := Solve(m, species, cfg)
	require.NoError(t, err, "non-convergence is not an error")
	assert.False(t, st.Converged)
	assert.Equal(t, 2, st.Iterations)
	assert.Greater(t, st.Unconverged, 0)
	assert.True(t, errors.Is(st.Err(), ErrNotConverged))
	checkNormalised(t, m)

	assert.Equal(t, 2.0, testutil.ToFloat64(cfg.Metrics.Iterations))
	assert.Equal(t, float64(st.Unconverged),
		testutil.ToFloat64(cfg.Metrics.Unconverged))
	assert.Greater(t, testutil.ToFloat64(cfg.Metrics.Photons), 0.0)
}

func TestSolveErrors(t *testing.T) {
	m := testMesh(t, 1, phys.LocalCMBTemp)
	s := twoLevel(t, 1e-5, phys.LocalCMBTemp)

	_, err := Solve(m, nil, nil)
	assert.Error(t, err, "no species")

	raw := s
	raw.CMB = nil
	_, err = Solve(m, []molecule.Species{raw}, nil)
	assert.Error(t, err, "species not initialised")

	bare, err := grid.Build(
		grid.RandomPoints(rand.New(rand.NewPCG(1, 1)), 1, 20, 10), 20,
		grid.Options{},
	)
	require.NoError(t, err)
	_, err = Solve(bare, []molecule.Species{s}, nil)
	assert.Error(t, err, "no densities")

	cfg := DefaultConfig()
	cfg.RelTol = -1
	_, err = Solve(m, []molecule.Species{s}, cfg)
	assert.Error(t, err, "bad tolerance")
}

func TestTracker(t *testing.T) {
	tr := NewTracker(2, 2, 0.1)
	tr.Update(0, 0.01)
	tr.Update(1, 0.5)
	assert.False(t, tr.EndIteration())
	assert.Equal(t, 1, tr.Unconverged)

	tr.Update(0, 0.01)
	tr.Update(1, 0.01)
	assert.False(t, tr.EndIteration())
	assert.Equal(t, 0, tr.Unconverged)
	assert.Equal(t, 2, tr.Streak(0))
	assert.Equal(t, 1, tr.Streak(1))

	tr.Update(0, 0.2)
	tr.Update(1, 0.01)
	assert.False(t, tr.EndIteration(), "a vertex fell out of tolerance")
	assert.Equal(t, 0, tr.Streak(0))

	tr.Update(0, 0)
	tr.Update(1, 0)
	tr.EndIteration()
	tr.Update(0, 0)
	tr.Update(1, 0)
	assert.True(t, tr.EndIteration())
	assert.Equal(t, 5, tr.Iteration)
}

func TestRelChange(t *testing.T) {
	assert.InDelta(t, 0.5, RelChange([]float64{0.5, 0.5}, []float64{0, 1}), 1e-15)
	assert.Equal(t, 0.0, RelChange([]float64{0.5, 1e-3}, []float64{0.5, 1e-7}),
		"levels below MinPop are ignored")
	assert.True(t, math.IsInf(RelChange([]float64{0}, []float64{math.NaN()}), 1))
}

func TestMaxDopb(t *testing.T) {
	vx := &grid.Vertex{Mol: make([]molecule.Populations, 3)}
	vx.Mol[0].SetWidth(100)
	vx.Mol[1].SetWidth(350)
	vx.Mol[2].SetWidth(200)
	assert.Equal(t, 350.0, maxDopb(vx))

	vx.Mol = vx.Mol[:1]
	assert.Equal(t, 100.0, maxDopb(vx))
}
