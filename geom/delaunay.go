package geom

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDegenerate is returned when a point set cannot be tessellated: too few
// points, coincident points or points which do not span three dimensions.
var ErrDegenerate = errors.New("degenerate point configuration")

// Cell is a simplex of a Delaunay tessellation.
//
// NOTE: Vertx[i] is opposite the face shared with Neigh[i] for all i. A
// value of -1 in Neigh flags an external face.
type Cell struct {
	Vertx  [4]int
	Neigh  [4]int
	Center Vec
}

const (
	// superScale is the size of the enclosing simplex in units of the point
	// cloud's extent.
	superScale = 1e3
	// sphereTol is the relative tolerance of the in-sphere test.
	sphereTol = 1e-10
	// dupTol is the distance, in units of the extent, below which two points
	// are treated as coincident.
	dupTol = 1e-10
)

type cell struct {
	v, n   [4]int
	center Vec
	r2     float64
	dead   bool
}

type boundaryFace struct {
	owner, slot int
	outer       int
	outerSlot   int
}

type tessellator struct {
	xs    []Vec
	n     int
	cells []cell
	free  []int
	last  int

	extent float64

	// mark[c] == gen flags membership of c in the current cavity.
	mark []int
	gen  int

	stack, cavity []int
	faces         []boundaryFace
}

// Tessellate computes the Delaunay tessellation of xs by incremental
// (Bowyer-Watson) insertion into an enclosing simplex. Points are inserted in
// index order, so the result is a deterministic function of xs. Cells which
// touch the enclosing simplex are discarded and the faces they leave open are
// reported as external.
func Tessellate(xs []Vec) ([]Cell, error) {
	if len(xs) < DIM+1 {
		return nil, fmt.Errorf(
			"%w: %d points given, at least %d are required",
			ErrDegenerate, len(xs), DIM+1,
		)
	}

	t, err := newTessellator(xs)
	if err != nil {
		return nil, err
	}

	for i := 0; i < t.n; i++ {
		if err := t.insert(i); err != nil {
			return nil, err
		}
	}

	return t.export()
}

// DIM is the number of spatial dimensions.
const DIM = 3

func newTessellator(xs []Vec) (*tessellator, error) {
	n := len(xs)
	lo, hi := Bounds(xs)
	extent := 0.0
	for d := 0; d < 3; d++ {
		extent = math.Max(extent, hi[d]-lo[d])
	}
	if extent == 0 {
		return nil, fmt.Errorf("%w: all points coincide", ErrDegenerate)
	}

	if i, j, ok := findDuplicate(xs, dupTol*extent); ok {
		return nil, fmt.Errorf(
			"%w: points %d and %d coincide at %v", ErrDegenerate, i, j, xs[i],
		)
	}

	t := &tessellator{n: n, extent: extent}
	t.xs = make([]Vec, n, n+4)
	copy(t.xs, xs)

	mid := lo.Add(hi).Scale(0.5)
	s := superScale * extent
	super := [4]Vec{
		{s, s, s}, {s, -s, -s}, {-s, s, -s}, {-s, -s, s},
	}
	for _, c := range super {
		t.xs = append(t.xs, mid.Add(c))
	}

	v := [4]int{n, n + 1, n + 2, n + 3}
	if Orient(t.xs[v[0]], t.xs[v[1]], t.xs[v[2]], t.xs[v[3]]) < 0 {
		v[0], v[1] = v[1], v[0]
	}
	t.newCell(v, [4]int{-1, -1, -1, -1})
	t.last = 0

	return t, nil
}

// findDuplicate reports a pair of points closer than tol.
func findDuplicate(xs []Vec, tol float64) (i, j int, ok bool) {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return xs[idx[a]].Less(xs[idx[b]]) })

	tol2 := tol * tol
	for k := 1; k < len(idx); k++ {
		a, b := idx[k-1], idx[k]
		if xs[a].Sub(xs[b]).Norm2() <= tol2 {
			if a > b {
				a, b = b, a
			}
			return a, b, true
		}
	}
	return 0, 0, false
}

func (t *tessellator) newCell(v, n [4]int) int {
	c := cell{v: v, n: n}
	c.center, c.r2, _ = Circumsphere(
		t.xs[v[0]], t.xs[v[1]], t.xs[v[2]], t.xs[v[3]],
	)

	if len(t.free) > 0 {
		idx := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.cells[idx] = c
		t.mark[idx] = 0
		return idx
	}

	t.cells = append(t.cells, c)
	t.mark = append(t.mark, 0)
	return len(t.cells) - 1
}

func (t *tessellator) inSphere(c int, p Vec) bool {
	cl := &t.cells[c]
	d2 := cl.center.Sub(p).Norm2()
	return cl.r2-d2 > sphereTol*cl.r2
}

// faceOrient returns the orientation of cell c with vertex j replaced by p.
// It is positive when p is on the same side of face j as the cell itself.
func (t *tessellator) faceOrient(c, j int, p Vec) float64 {
	var x [4]Vec
	for k, v := range t.cells[c].v {
		x[k] = t.xs[v]
	}
	x[j] = p
	return Orient(x[0], x[1], x[2], x[3])
}

// locate finds a cell which contains p, walking from the last created cell.
func (t *tessellator) locate(p Vec) int {
	c := t.last
	maxSteps := len(t.cells) + 8

	for step := 0; step < maxSteps; step++ {
		moved := false
		for k := 0; k < 4; k++ {
			// Rotating the starting face breaks cycles in the walk.
			j := (k + step) % 4
			if t.faceOrient(c, j, p) < 0 {
				nb := t.cells[c].n[j]
				if nb < 0 {
					break
				}
				c, moved = nb, true
				break
			}
		}
		if !moved {
			return c
		}
	}

	for i := range t.cells {
		if !t.cells[i].dead && t.inSphere(i, p) {
			return i
		}
	}
	return c
}

func (t *tessellator) insert(i int) error {
	p := t.xs[i]
	seed := t.locate(p)

	t.gen++
	t.cavity = t.cavity[:0]
	t.stack = append(t.stack[:0], seed)
	t.mark[seed] = t.gen
	for len(t.stack) > 0 {
		c := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.cavity = append(t.cavity, c)

		for _, nb := range t.cells[c].n {
			if nb < 0 || t.mark[nb] == t.gen {
				continue
			}
			if t.inSphere(nb, p) {
				t.mark[nb] = t.gen
				t.stack = append(t.stack, nb)
			}
		}
	}

	if err := t.growCavity(i, p); err != nil {
		return err
	}

	dupTol2 := (dupTol * t.extent) * (dupTol * t.extent)
	for _, c := range t.cavity {
		for _, v := range t.cells[c].v {
			if v < t.n && t.xs[v].Sub(p).Norm2() <= dupTol2 {
				return fmt.Errorf(
					"%w: points %d and %d coincide", ErrDegenerate, v, i,
				)
			}
		}
	}

	t.fill(i)
	return nil
}

// growCavity collects the boundary faces of the cavity and adds neighbouring
// cells until every boundary face is strictly visible from p. This keeps the
// cavity star-shaped when p is nearly cospherical or coplanar with existing
// points.
func (t *tessellator) growCavity(i int, p Vec) error {
	for {
		t.faces = t.faces[:0]
		grown := false

		for _, c := range t.cavity {
			cl := &t.cells[c]
			for j, nb := range cl.n {
				if nb >= 0 && t.mark[nb] == t.gen {
					continue
				}

				vol := Orient(t.xs[cl.v[0]], t.xs[cl.v[1]],
					t.xs[cl.v[2]], t.xs[cl.v[3]])
				if t.faceOrient(c, j, p) > sphereTol*vol {
					t.faces = append(t.faces, boundaryFace{
						owner: c, slot: j, outer: nb,
					})
					continue
				}

				if nb < 0 {
					return fmt.Errorf(
						"%w: point %d lies outside the enclosing simplex",
						ErrDegenerate, i,
					)
				}
				t.mark[nb] = t.gen
				t.cavity = append(t.cavity, nb)
				grown = true
			}
		}

		if !grown {
			return nil
		}
	}
}

type edgeKey [2]int

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

type halfLink struct{ cell, slot int }

// fill replaces the cavity with cells joining each boundary face to point i.
func (t *tessellator) fill(i int) {
	for k := range t.faces {
		f := &t.faces[k]
		f.outerSlot = -1
		if f.outer >= 0 {
			for s, nb := range t.cells[f.outer].n {
				if nb == f.owner {
					f.outerSlot = s
					break
				}
			}
		}
	}

	type newFace struct {
		v     [4]int
		slot  int
		outer int
		oSlot int
	}
	pending := make([]newFace, len(t.faces))
	for k, f := range t.faces {
		v := t.cells[f.owner].v
		v[f.slot] = i
		pending[k] = newFace{v, f.slot, f.outer, f.outerSlot}
	}

	for _, c := range t.cavity {
		t.cells[c].dead = true
		t.free = append(t.free, c)
	}

	open := make(map[edgeKey]halfLink, 3*len(pending))
	for _, nf := range pending {
		n := [4]int{-1, -1, -1, -1}
		n[nf.slot] = nf.outer
		c := t.newCell(nf.v, n)
		if nf.outer >= 0 && nf.oSlot >= 0 {
			t.cells[nf.outer].n[nf.oSlot] = c
		}

		// The three faces containing the new point are matched by the edge
		// which remains after removing the new point and the opposite vertex.
		for s := 0; s < 4; s++ {
			if s == nf.slot {
				continue
			}
			var rest [2]int
			r := 0
			for q := 0; q < 4; q++ {
				if q != s && q != nf.slot {
					rest[r] = nf.v[q]
					r++
				}
			}
			key := newEdgeKey(rest[0], rest[1])
			if other, ok := open[key]; ok {
				t.cells[c].n[s] = other.cell
				t.cells[other.cell].n[other.slot] = c
				delete(open, key)
			} else {
				open[key] = halfLink{c, s}
			}
		}
		t.last = c
	}
}

// export drops the cells touching the enclosing simplex and compacts the
// remainder.
func (t *tessellator) export() ([]Cell, error) {
	remap := make([]int, len(t.cells))
	out := []Cell{}

	for c := range t.cells {
		remap[c] = -1
		cl := &t.cells[c]
		if cl.dead {
			continue
		}
		keep := true
		for _, v := range cl.v {
			if v >= t.n {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}
		remap[c] = len(out)
		out = append(out, Cell{Vertx: cl.v, Neigh: cl.n, Center: cl.center})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf(
			"%w: the points do not span three dimensions", ErrDegenerate,
		)
	}

	for k := range out {
		for j, nb := range out[k].Neigh {
			if nb >= 0 {
				out[k].Neigh[j] = remap[nb]
			}
		}
	}
	return out, nil
}

// ExternalVertices flags every vertex which lies on an external face of
// cells. The returned slice has length n.
func ExternalVertices(cells []Cell, n int) []bool {
	ext := make([]bool, n)
	for _, c := range cells {
		for j, nb := range c.Neigh {
			if nb >= 0 {
				continue
			}
			for k, v := range c.Vertx {
				if k != j {
					ext[v] = true
				}
			}
		}
	}
	return ext
}
