package grid

import (
	"fmt"

	"github.com/emmanuelgarcia9/lime/geom"
	"github.com/emmanuelgarcia9/lime/model"
	"github.com/emmanuelgarcia9/lime/phys"
)

// CalcDistances sets the direction and length of every link.
func (m *Mesh) CalcDistances() {
	for i := range m.Vertices {
		v := &m.Vertices[i]
		for j := range v.Neigh {
			l := &v.Neigh[j]
			nb := m.Vertices[l.To].X
			l.Dist = v.X.Dist(nb)
			l.Dir = nb.Sub(v.X).Unit()
		}
	}
	m.distSet = true
}

// CalcVelocities samples the projection of the gas velocity onto every link
// at phys.NumVelSamples evenly spaced points. If f is nil the velocity is
// interpolated linearly between the stored vertex velocities. Otherwise the
// vertex velocities are first reset from f.
func (m *Mesh) CalcVelocities(f model.VelocityField) {
	if !m.distSet {
		m.CalcDistances()
	}

	if f != nil {
		for i := range m.Vertices {
			m.Vertices[i].Vel = f.Velocity(m.Vertices[i].X)
		}
	}

	for i := range m.Vertices {
		v := &m.Vertices[i]
		for j := range v.Neigh {
			l := &v.Neigh[j]
			nb := &m.Vertices[l.To]
			for k := 0; k < phys.NumVelSamples; k++ {
				frac := float64(k) / float64(phys.NumVelSamples-1)
				switch {
				case k == 0:
					l.VelSamples[k] = v.Vel.Dot(l.Dir)
				case k == phys.NumVelSamples-1:
					l.VelSamples[k] = nb.Vel.Dot(l.Dir)
				case f != nil:
					x := v.X.Lerp(nb.X, frac)
					l.VelSamples[k] = f.Velocity(x).Dot(l.Dir)
				default:
					l.VelSamples[k] = v.Vel.Lerp(nb.Vel, frac).Dot(l.Dir)
				}
			}
		}
	}
	m.Stages.Set(Velocity, ACoeff)
}

// Volume returns the volume of the convex hull of the vertices, summed over
// the Delaunay cells. The cells must have been kept with Options.KeepCells.
func (m *Mesh) Volume() (float64, error) {
	if m.Cells == nil {
		return 0, fmt.Errorf("Mesh cells were not kept.")
	}
	vol := 0.0
	for i := range m.Cells {
		c := &m.Cells[i].Vertx
		vol += geom.NewTetra(m.Vertices[c[0]].X, m.Vertices[c[1]].X,
			m.Vertices[c[2]].X, m.Vertices[c[3]].X).Volume()
	}
	return vol, nil
}
