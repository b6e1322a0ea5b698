package solve

import (
	"math"

	"github.com/emmanuelgarcia9/lime/phys"
)

// Tracker follows the convergence of every internal vertex.
type Tracker struct {
	streak    []int
	over      []bool
	stability int
	relTol    float64

	// Iteration is the number of completed iterations.
	Iteration int
	// Unconverged is the number of vertices whose change in the last
	// iteration exceeded the tolerance.
	Unconverged int
}

// NewTracker creates a tracker for n vertices.
func NewTracker(n, stability int, relTol float64) *Tracker {
	return &Tracker{
		streak:    make([]int, n),
		over:      make([]bool, n),
		stability: stability,
		relTol:    relTol,
	}
}

// Update records the relative population change of vertex v in the current
// iteration.
func (t *Tracker) Update(v int, change float64) {
	if change < t.relTol {
		t.streak[v]++
		t.over[v] = false
	} else {
		t.streak[v] = 0
		t.over[v] = true
	}
}

// EndIteration closes the current iteration and returns true once every
// vertex has stayed within tolerance for the required number of iterations.
func (t *Tracker) EndIteration() bool {
	t.Iteration++
	t.Unconverged = 0
	done := true
	for v := range t.streak {
		if t.over[v] {
			t.Unconverged++
		}
		if t.streak[v] < t.stability {
			done = false
		}
	}
	return done
}

// Streak returns the number of consecutive iterations vertex v has stayed
// within tolerance.
func (t *Tracker) Streak(v int) int { return t.streak[v] }

// RelChange returns the largest relative change between prev and next over
// the levels whose next population exceeds phys.MinPop. A NaN change counts
// as infinite.
func RelChange(prev, next []float64) float64 {
	worst := 0.0
	for i := range next {
		if next[i] <= phys.MinPop {
			continue
		}
		d := math.Abs(next[i]-prev[i]) / next[i]
		if math.IsNaN(d) {
			return math.Inf(1)
		}
		worst = math.Max(worst, d)
	}
	return worst
}
