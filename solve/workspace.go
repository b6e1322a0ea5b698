package solve

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// workspace is the scratch memory owned by one worker.
type workspace struct {
	pcg *rand.PCG
	rng *rand.Rand

	nPhot int
	// ds is the length of the first half edge of each photon's path.
	ds []float64
	// vfac and iExt are indexed by photon*nLines + line: the local line
	// profile seen by the photon and the intensity arriving at the end of
	// the first half edge, in units of the species' Norm.
	vfac, iExt []float64
	tau        []float64

	jbar     []float64
	cur, sol []float64

	// Per species rate equation storage.
	rates []float64
	m     []*mat.Dense
	b, x  []*mat.VecDense
	lu    mat.LU

	photons, failures int
}

func (w *workspace) init(s *solver) {
	w.pcg = rand.NewPCG(s.cfg.Seed, 0)
	w.rng = rand.New(w.pcg)

	w.ds = make([]float64, s.maxPhot)
	w.vfac = make([]float64, s.maxPhot*s.nLines)
	w.iExt = make([]float64, s.maxPhot*s.nLines)
	w.tau = make([]float64, s.nLines)

	maxLev, maxLine := 0, 0
	for i := range s.species {
		maxLev = max(maxLev, s.species[i].NLev)
		maxLine = max(maxLine, s.species[i].NLine)
	}
	w.jbar = make([]float64, maxLine)
	w.cur = make([]float64, maxLev)
	w.sol = make([]float64, maxLev)
	w.rates = make([]float64, maxLev*maxLev)

	w.m = make([]*mat.Dense, len(s.species))
	w.b = make([]*mat.VecDense, len(s.species))
	w.x = make([]*mat.VecDense, len(s.species))
	for i := range s.species {
		n := s.species[i].NLev
		w.m[i] = mat.NewDense(n, n, nil)
		w.b[i] = mat.NewVecDense(n, nil)
		w.x[i] = mat.NewVecDense(n, nil)
	}
}

// seed restarts the worker's random stream at the stream belonging to vertex
// v in iteration iter, so that results do not depend on which worker
// handles which vertex.
func (w *workspace) seed(seed uint64, iter, v int) {
	w.pcg.Seed(seed, uint64(iter)<<32|uint64(v))
}
