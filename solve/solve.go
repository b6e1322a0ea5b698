/*package solve computes non-LTE level populations on a mesh by accelerated
lambda iteration: photons are traced along mesh edges to estimate the mean
radiation field at every internal vertex and the statistical equilibrium
equations are then solved with the local contribution to that field treated
self-consistently.

Each outer iteration is a Jacobi sweep. Workers read only the populations
committed at the end of the previous iteration and write into a separate
buffer, which the coordinating goroutine commits once every worker is done.
*/
package solve

import (
	"errors"
	"fmt"
	"time"

	"github.com/emmanuelgarcia9/lime/grid"
	"github.com/emmanuelgarcia9/lime/molecule"
	"github.com/emmanuelgarcia9/lime/phys"
)

// ErrNotConverged is returned by Status.Err when the iteration cap was
// reached before every vertex stabilised.
var ErrNotConverged = errors.New("populations did not converge")

// Status is the outcome of a solve. The populations on the mesh are usable
// whether or not the solve converged.
type Status struct {
	Converged   bool
	Iterations  int
	Unconverged int
}

// Err returns nil for a converged solve and an error wrapping
// ErrNotConverged otherwise.
func (st *Status) Err() error {
	if st.Converged {
		return nil
	}
	return fmt.Errorf("%w after %d iterations: %d vertices still changing",
		ErrNotConverged, st.Iterations, st.Unconverged)
}

type solver struct {
	mesh    *grid.Mesh
	species []molecule.Species
	cfg     *Config

	blends molecule.BlendTable

	// Lines of all species are numbered contiguously: line l of species s
	// is lineOff[s] + l.
	lineOff  []int
	nLines   int
	cmbNorm  []float64
	levOff   []int
	nLevels  int
	maxPhot  int
	maxSteps int

	// next holds the populations of the iteration in progress, indexed by
	// vertex*nLevels + levOff[species] + level.
	next []float64

	workers    int
	workspaces []workspace
	tracker    *Tracker
}

// Solve iterates the populations of every species at every internal vertex
// of m until they converge or cfg.MaxIterations is reached. Non-convergence
// is reported through the returned Status, not as an error. A nil cfg uses
// DefaultConfig.
//
// The mesh must carry neighbours, densities and temperatures, and every
// species must have been initialised with Init. Missing edge velocity
// samples are computed from the stored vertex velocities.
func Solve(m *grid.Mesh, species []molecule.Species, cfg *Config) (*Status, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := check(m, species); err != nil {
		return nil, err
	}

	if !m.Stages.HasACoeff() {
		m.CalcVelocities(nil)
	}
	if !m.Allocated(species) {
		m.Alloc(species)
	}

	s := newSolver(m, species, cfg)
	if err := s.initVertices(); err != nil {
		return nil, err
	}

	if cfg.LTEOnly {
		m.Stages.Set(grid.Populations)
		cfg.logf("LTE populations set at %d vertices.", m.Len())
		return &Status{Converged: true}, nil
	}

	st := &Status{}
	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		start := time.Now()
		photons, failures := s.sweep(iter)
		done := s.commit()

		st.Iterations = s.tracker.Iteration
		st.Unconverged = s.tracker.Unconverged

		if cfg.Metrics != nil {
			cfg.Metrics.Iterations.Inc()
			cfg.Metrics.Unconverged.Set(float64(st.Unconverged))
			cfg.Metrics.Photons.Add(float64(photons))
			cfg.Metrics.StateqFailures.Add(float64(failures))
			cfg.Metrics.SweepSeconds.Observe(time.Since(start).Seconds())
		}
		cfg.logf("Iteration %d: %d of %d vertices unconverged, %d photons, "+
			"%.2fs.", iter, st.Unconverged, m.NInternal, photons,
			time.Since(start).Seconds())

		if done {
			st.Converged = true
			break
		}
	}

	m.Stages.Set(grid.Populations)
	return st, nil
}

func check(m *grid.Mesh, species []molecule.Species) error {
	if len(species) == 0 || len(species) > phys.MaxNSpecies {
		return fmt.Errorf("%d species given, must be between 1 and %d.",
			len(species), phys.MaxNSpecies)
	}
	for i := range species {
		if !species[i].Ready() {
			return fmt.Errorf("Species %d ('%s') has not been initialised.",
				i, species[i].Name)
		}
	}

	if err := m.Check(); err != nil {
		return err
	}
	switch {
	case !m.Stages.HasNeighbours():
		return fmt.Errorf("Mesh has no neighbour links.")
	case !m.Stages.HasDensity():
		return fmt.Errorf("Mesh has no densities.")
	case !m.Stages.HasTemperatures():
		return fmt.Errorf("Mesh has no temperatures.")
	}
	return nil
}

func newSolver(m *grid.Mesh, species []molecule.Species, cfg *Config) *solver {
	s := &solver{mesh: m, species: species, cfg: cfg, workers: cfg.Threads}

	s.lineOff = make([]int, len(species))
	s.levOff = make([]int, len(species))
	for i := range species {
		s.lineOff[i], s.levOff[i] = s.nLines, s.nLevels
		s.nLines += species[i].NLine
		s.nLevels += species[i].NLev
	}
	s.cmbNorm = make([]float64, s.nLines)
	for i := range species {
		for l := 0; l < species[i].NLine; l++ {
			s.cmbNorm[s.lineOff[i]+l] = species[i].CMB[l] * species[i].NormInv
		}
	}

	if cfg.Blend {
		s.blends = molecule.FindBlends(species)
		if !s.blends.Any() {
			s.blends = nil
		}
	}

	maxNeigh := 0
	for i := 0; i < m.NInternal; i++ {
		maxNeigh = max(maxNeigh, len(m.Vertices[i].Neigh))
	}
	s.maxPhot = min(cfg.PhotonsPerNeighbour*maxNeigh, phys.MaxPhotons)
	s.maxSteps = m.Len()

	s.next = make([]float64, m.NInternal*s.nLevels)
	s.tracker = NewTracker(m.NInternal, cfg.StabilityCount, cfg.RelTol)

	if s.workers > m.NInternal {
		s.workers = max(m.NInternal, 1)
	}
	s.workspaces = make([]workspace, s.workers)
	for i := range s.workspaces {
		s.workspaces[i].init(s)
	}
	return s
}

// initVertices sets the molecular densities, line widths and rate
// coefficients of every vertex and seeds populations which have no usable
// prior value at LTE. Sinks are always at LTE.
func (s *solver) initVertices() error {
	m := s.mesh
	prior := m.Stages.HasPopulations() && !s.cfg.InitLTE

	for i := range m.Vertices {
		v := &m.Vertices[i]
		for sp := range s.species {
			spec := &s.species[sp]
			mol := &v.Mol[sp]

			if len(v.Abun) == len(s.species) {
				mol.NMol = molecule.NMol(v.Abun[sp], v.Dens, s.cfg.NMolWeights)
			}
			if spec.Amass > 0 {
				mol.SetWidth(molecule.DopplerWidth(v.DopbTurb, v.T[0], spec.Amass))
			} else if mol.Dopb > 0 {
				mol.SetWidth(mol.Dopb)
			} else {
				return fmt.Errorf("Vertex %d has no line width for species "+
					"'%s' and the species has no mass.", i, spec.Name)
			}
			spec.RateCoeffs(v.T[0], mol.Partner)

			if v.Sink || !prior || !usable(mol.Pops) {
				spec.LTE(mol.Pops, v.T[0])
			}
		}
	}
	return nil
}

func usable(pops []float64) bool {
	sum := 0.0
	for _, x := range pops {
		if x < 0 {
			return false
		}
		sum += x
	}
	return sum > 0 && molecule.Finite(pops)
}

// sweep updates every internal vertex once, writing into s.next. It returns
// the number of photons traced and of rejected rate equation solutions.
func (s *solver) sweep(iter int) (photons, failures int) {
	out := make(chan int, s.workers)
	for id := 0; id < s.workers-1; id++ {
		go s.chanSweep(id, iter, out)
	}
	s.chanSweep(s.workers-1, iter, out)

	for i := 0; i < s.workers; i++ {
		id := <-out
		w := &s.workspaces[id]
		photons += w.photons
		failures += w.failures
	}
	return photons, failures
}

func (s *solver) chanSweep(id, iter int, out chan<- int) {
	w := &s.workspaces[id]
	w.photons, w.failures = 0, 0

	for v := id; v < s.mesh.NInternal; v += s.workers {
		s.updateVertex(w, v, iter)
	}
	out <- id
}

func (s *solver) updateVertex(w *workspace, v, iter int) {
	w.photons += s.trace(w, v, iter)

	vx := &s.mesh.Vertices[v]
	for sp := range s.species {
		next := s.nextPops(v, sp)
		if !s.stateq(w, v, sp, next) {
			copy(next, vx.Mol[sp].Pops)
			w.failures++
		}
	}
}

func (s *solver) nextPops(v, sp int) []float64 {
	start := v*s.nLevels + s.levOff[sp]
	return s.next[start : start+s.species[sp].NLev]
}

// commit copies s.next onto the mesh and updates the tracker.
func (s *solver) commit() (done bool) {
	for v := 0; v < s.mesh.NInternal; v++ {
		vx := &s.mesh.Vertices[v]
		change := 0.0
		for sp := range s.species {
			next := s.nextPops(v, sp)
			change = max(change, RelChange(vx.Mol[sp].Pops, next))
			copy(vx.Mol[sp].Pops, next)
		}
		s.tracker.Update(v, change)
	}
	return s.tracker.EndIteration()
}
