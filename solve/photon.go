package solve

import (
	"math"

	"github.com/emmanuelgarcia9/lime/geom"
	"github.com/emmanuelgarcia9/lime/grid"
	"github.com/emmanuelgarcia9/lime/phys"
)

const (
	// lineSpan is the full width, in Doppler widths, of the velocity range
	// photon frequencies are drawn from.
	lineSpan = 4.3
	// maxMaserTau bounds the negative optical depth of a single segment.
	maxMaserTau = -30
	midSample   = phys.NumVelSamples / 2
	branches    = 3
)

// trace sends photons from internal vertex v and fills the worker's photon
// buffers. It returns the number of photons.
func (s *solver) trace(w *workspace, v, iter int) int {
	vx := &s.mesh.Vertices[v]
	n := min(s.cfg.PhotonsPerNeighbour*len(vx.Neigh), s.maxPhot)
	w.nPhot = n
	w.seed(s.cfg.Seed, iter, v)

	dopb := maxDopb(vx)
	for p := 0; p < n; p++ {
		dir := geom.UnitSphere(w.rng.Float64(), w.rng.Float64())
		deltav := (w.rng.Float64() - 0.5) * lineSpan * dopb
		s.walk(w, p, v, dir, deltav)
	}
	return n
}

// maxDopb returns the widest line width of any species at a vertex. Photon
// velocities span it so that every species' line is covered.
func maxDopb(vx *grid.Vertex) float64 {
	dopb := 0.0
	for i := range vx.Mol {
		dopb = max(dopb, vx.Mol[i].Dopb)
	}
	return dopb
}

// walk follows one photon outward from vertex v along the edges best
// aligned with dir until it reaches a sink or the edge of the mesh.
func (s *solver) walk(w *workspace, p, v int, dir geom.Vec, deltav float64) {
	nL := s.nLines
	iExt := w.iExt[p*nL : (p+1)*nL]
	vfac := w.vfac[p*nL : (p+1)*nL]
	tau := w.tau[:nL]
	for i := range iExt {
		iExt[i], tau[i] = 0, 0
	}

	origin := &s.mesh.Vertices[v]
	w.ds[p] = 0
	for sp := range s.species {
		for l := 0; l < s.species[sp].NLine; l++ {
			vfac[s.lineOff[sp]+l] = phys.GaussLine(deltav, origin.Mol[sp].Binv)
		}
	}

	here := v
	for step := 0; step < s.maxSteps; step++ {
		vx := &s.mesh.Vertices[here]
		if vx.Sink {
			break
		}
		j := w.nextLink(vx, dir)
		if j < 0 {
			break
		}
		l := &vx.Neigh[j]
		nb := &s.mesh.Vertices[l.To]
		v0 := origin.Vel.Dot(l.Dir)
		half := 0.5 * l.Dist

		if step == 0 {
			w.ds[p] = half
			for sp := range s.species {
				vf := meanProfile(l, 0, midSample, v0, deltav, origin.Mol[sp].Binv)
				for ln := 0; ln < s.species[sp].NLine; ln++ {
					vfac[s.lineOff[sp]+ln] = vf
				}
			}
		} else {
			s.addSegment(vx, l, 0, midSample, v0, deltav, half, iExt, tau)
		}
		s.addSegment(nb, l, midSample, phys.NumVelSamples-1, v0, deltav, half,
			iExt, tau)

		here = l.To
	}

	for li := range iExt {
		iExt[li] += math.Exp(-tau[li]) * s.cmbNorm[li]
	}
}

// nextLink picks one of the edges of vx best aligned with dir, weighted by
// alignment. It returns -1 if no edge points forward.
func (w *workspace) nextLink(vx *grid.Vertex, dir geom.Vec) int {
	var best [branches]int
	var cos [branches]float64
	for k := range best {
		best[k] = -1
	}

	for j := range vx.Neigh {
		c := vx.Neigh[j].Dir.Dot(dir)
		if c <= 0 {
			continue
		}
		for k := 0; k < branches; k++ {
			if best[k] < 0 || c > cos[k] {
				copy(best[k+1:], best[k:branches-1])
				copy(cos[k+1:], cos[k:branches-1])
				best[k], cos[k] = j, c
				break
			}
		}
	}
	if best[0] < 0 {
		return -1
	}

	total := 0.0
	for k := 0; k < branches && best[k] >= 0; k++ {
		total += cos[k]
	}
	u := w.rng.Float64() * total
	for k := 0; k < branches && best[k] >= 0; k++ {
		u -= cos[k]
		if u <= 0 {
			return best[k]
		}
	}
	return best[0]
}

// meanProfile averages the line profile over velocity samples k0..k1 of
// link l for a photon at velocity offset deltav in the frame of a vertex
// whose velocity projects to v0 on the link.
func meanProfile(l *grid.Link, k0, k1 int, v0, deltav, binv float64) float64 {
	sum := 0.0
	for k := k0; k <= k1; k++ {
		sum += phys.GaussLine(deltav-(l.VelSamples[k]-v0), binv)
	}
	return sum / float64(k1-k0+1)
}

// addSegment adds the emission of vertex src over a half edge of length ds
// to the intensities of every line and attenuates by the segment's opacity.
func (s *solver) addSegment(
	src *grid.Vertex, l *grid.Link, k0, k1 int,
	v0, deltav, ds float64, iExt, tau []float64,
) {
	for sp := range s.species {
		spec := &s.species[sp]
		vf := meanProfile(l, k0, k1, v0, deltav, src.Mol[sp].Binv)

		for ln := 0; ln < spec.NLine; ln++ {
			li := s.lineOff[sp] + ln
			jnu, alpha := spec.Emissivity(&src.Mol[sp], ln, vf)

			if s.blends != nil {
				for _, b := range s.blends[sp][ln] {
					bspec := &s.species[b.Species]
					bmol := &src.Mol[b.Species]
					bvf := meanProfile(l, k0, k1, v0, deltav-b.DeltaV, bmol.Binv)
					bj, ba := bspec.Emissivity(bmol, b.Line, bvf)
					jnu += bj
					alpha += ba
				}
			}

			dtau := math.Max(alpha*ds, maxMaserTau)
			iExt[li] += math.Exp(-tau[li]) * remnant(jnu*spec.NormInv, alpha, ds, dtau)
			tau[li] += dtau
		}
	}
}

// remnant returns the intensity emitted by a uniform slab of emissivity jnu,
// opacity alpha, length ds and optical depth dtau, as seen from its far
// side.
func remnant(jnu, alpha, ds, dtau float64) float64 {
	if math.Abs(dtau) < 1e-6 {
		return jnu * ds * (1 - 0.5*dtau)
	}
	return jnu / alpha * -math.Expm1(-dtau)
}
