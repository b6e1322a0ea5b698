/*package grid builds and holds the unstructured mesh over which photons are
transported: vertices with their physical state, Delaunay neighbour links and
the derived edge geometry.

Internal vertices always occupy indices [0, NInternal) and sinks occupy
[NInternal, NInternal + NSink).
*/
package grid

import (
	"fmt"
	"sort"

	"github.com/emmanuelgarcia9/lime/geom"
	"github.com/emmanuelgarcia9/lime/molecule"
	"github.com/emmanuelgarcia9/lime/phys"
)

// ErrDegenerate is returned when the vertex positions cannot be tessellated.
var ErrDegenerate = geom.ErrDegenerate

// Link is a directed mesh edge.
type Link struct {
	To   int      // index of the neighbour
	Dir  geom.Vec // unit vector towards the neighbour
	Dist float64  // [m]
	// VelSamples are the projections of the gas velocity onto Dir at evenly
	// spaced points from this vertex (first) to the neighbour (last).
	VelSamples [phys.NumVelSamples]float64
}

// Vertex is a mesh point.
type Vertex struct {
	ID   int
	X    geom.Vec // [m]
	Vel  geom.Vec // [m/s]
	Sink bool

	Neigh []Link

	Dens     []float64  // one value per density component [m^-3]
	T        [2]float64 // kinetic and dust temperature [K]
	Abun     []float64  // one value per species
	DopbTurb float64    // [m/s]

	Mol []molecule.Populations // one per species
}

// Mesh is a set of vertices linked by the edges of their Delaunay
// tessellation.
type Mesh struct {
	Vertices         []Vertex
	NInternal, NSink int
	Radius           float64
	Stages           Stages
	Cells            []geom.Cell // only kept if requested

	links   []Link
	distSet bool
}

// Options controls mesh construction.
type Options struct {
	// KeepCells retains the Delaunay cells on the mesh.
	KeepCells bool
}

// Len returns the total number of vertices.
func (m *Mesh) Len() int { return len(m.Vertices) }

// Build creates a mesh over xs. Points with index below nInternal are
// internal and the rest are sinks. Internal points which lie on the convex
// hull are reclassified as sinks, so the mesh can have fewer internal
// vertices than requested.
func Build(xs []geom.Vec, nInternal int, opt Options) (*Mesh, error) {
	if nInternal < 0 || nInternal > len(xs) {
		return nil, fmt.Errorf("nInternal = %d, but only %d points were given.",
			nInternal, len(xs))
	}

	m := &Mesh{
		Vertices:  make([]Vertex, len(xs)),
		NInternal: nInternal,
		NSink:     len(xs) - nInternal,
	}
	for i := range xs {
		m.Vertices[i] = Vertex{ID: i, X: xs[i], Sink: i >= nInternal}
	}
	for _, x := range xs {
		m.Radius = max(m.Radius, x.Norm())
	}
	m.Stages.Set(Positions)

	if _, err := m.Tessellate(opt); err != nil {
		return nil, err
	}
	return m, nil
}

// Tessellate derives the neighbour links of the mesh's existing vertices from
// their Delaunay tessellation, reclassifies internal vertices on the hull as
// sinks and reorders the vertices accordingly. Data already attached to the
// vertices moves with them. It returns the number of reclassified vertices.
//
// On error the mesh is left unchanged.
func (m *Mesh) Tessellate(opt Options) (nExtraSinks int, err error) {
	if err := m.Check(); err != nil {
		return 0, err
	}

	xs := make([]geom.Vec, len(m.Vertices))
	for i := range m.Vertices {
		xs[i] = m.Vertices[i].X
	}
	cells, err := geom.Tessellate(xs)
	if err != nil {
		return 0, fmt.Errorf("tessellating %d vertices: %w", len(xs), err)
	}

	ext := geom.ExternalVertices(cells, len(xs))
	vs, perm, delta := reorderSinks(m.Vertices, m.NInternal, ext)

	for c := range cells {
		for k, v := range cells[c].Vertx {
			cells[c].Vertx[k] = perm[v]
		}
	}
	links := linkCells(vs, cells)

	m.Vertices = vs
	m.links = links
	m.NInternal -= delta
	m.NSink += delta
	m.distSet = false
	if opt.KeepCells {
		m.Cells = cells
	} else {
		m.Cells = nil
	}
	m.Stages.Set(Neighbours)
	m.Stages.Clear(ACoeff)

	return delta, nil
}

// reorderSinks returns a copy of vs in which every internal vertex flagged
// by ext has become a sink and all internal vertices precede all sinks. The
// relative order of the remaining internal vertices and of the sinks is
// preserved. perm maps old indices to new ones and delta is the number of
// reclassified vertices. vs is not modified.
func reorderSinks(
	vs []Vertex, nInternal int, ext []bool,
) (out []Vertex, perm []int, delta int) {
	out = make([]Vertex, 0, len(vs))
	perm = make([]int, len(vs))

	for i := 0; i < nInternal; i++ {
		if !ext[i] {
			perm[i] = len(out)
			out = append(out, vs[i])
		}
	}
	for i := range vs {
		if i < nInternal && !ext[i] {
			continue
		}
		if i < nInternal {
			delta++
		}
		perm[i] = len(out)
		out = append(out, vs[i])
	}

	for i := range out {
		out[i].ID = i
		out[i].Sink = i >= nInternal-delta
	}
	return out, perm, delta
}

type edge struct{ a, b int }

// linkCells sets the Neigh slices of vs to the sorted, distinct edges of
// cells and returns the arena backing them.
func linkCells(vs []Vertex, cells []geom.Cell) []Link {
	edges := make([]edge, 0, 12*len(cells))
	for _, c := range cells {
		for i := 0; i < 4; i++ {
			for j := i + 1; j < 4; j++ {
				a, b := c.Vertx[i], c.Vertx[j]
				edges = append(edges, edge{a, b}, edge{b, a})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].a != edges[j].a {
			return edges[i].a < edges[j].a
		}
		return edges[i].b < edges[j].b
	})

	n := 0
	for i := range edges {
		if i == 0 || edges[i] != edges[i-1] {
			edges[n] = edges[i]
			n++
		}
	}
	edges = edges[:n]

	links := make([]Link, len(edges))
	for i := range vs {
		vs[i].Neigh = nil
	}
	start := 0
	for i := range edges {
		links[i].To = edges[i].b
		if i == len(edges)-1 || edges[i+1].a != edges[i].a {
			a := edges[i].a
			vs[a].Neigh = links[start : i+1 : i+1]
			start = i + 1
		}
	}
	return links
}

// Check verifies the mesh invariant: vertex IDs equal their indices, the
// counts add up and all internal vertices precede all sinks.
func (m *Mesh) Check() error {
	if m.NInternal < 0 || m.NSink < 0 ||
		m.NInternal+m.NSink != len(m.Vertices) {
		return fmt.Errorf("Mesh has %d internal and %d sink vertices, but "+
			"%d vertices in total.", m.NInternal, m.NSink, len(m.Vertices))
	}
	for i := range m.Vertices {
		v := &m.Vertices[i]
		if v.ID != i {
			return fmt.Errorf("Vertex %d has ID %d.", i, v.ID)
		} else if v.Sink != (i >= m.NInternal) {
			return fmt.Errorf("Vertex %d has sink flag %v, but NInternal "+
				"= %d.", i, v.Sink, m.NInternal)
		}
	}
	return nil
}
