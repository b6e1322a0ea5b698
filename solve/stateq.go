package solve

import (
	"errors"
	"math"

	"github.com/emmanuelgarcia9/lime/molecule"
	"github.com/emmanuelgarcia9/lime/phys"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// stateq solves the statistical equilibrium of species sp at vertex v,
// recomputing the local contribution to the mean intensity from the
// current solution until it stops changing. The result is written to out.
// It returns false if no acceptable solution was found.
func (s *solver) stateq(w *workspace, v, sp int, out []float64) bool {
	spec := &s.species[sp]
	vx := &s.mesh.Vertices[v]
	n := spec.NLev

	if n == 1 {
		out[0] = 1
		return true
	}

	cur := w.cur[:n]
	copy(cur, vx.Mol[sp].Pops)
	local := vx.Mol[sp]
	local.Pops = cur

	for it := 0; it < phys.MaxStateqIter; it++ {
		s.meanIntensity(w, sp, &local)
		sol := w.sol[:n]
		if !s.solveRates(w, v, sp, sol) {
			return false
		}
		molecule.Clamp(sol)

		diff := 0.0
		for i := range sol {
			if sol[i] > phys.MinPop {
				diff = math.Max(diff, math.Abs(sol[i]-cur[i])/sol[i])
			}
		}
		copy(cur, sol)
		if diff < phys.TOL {
			break
		}
	}

	copy(out, cur)
	return true
}

// meanIntensity writes the mean intensity of every line of species sp into
// w.jbar. The photon intensities at the end of their first half edge come
// from the last trace; the half edge itself is recomputed with local.
func (s *solver) meanIntensity(w *workspace, sp int, local *molecule.Populations) {
	spec := &s.species[sp]
	nL := s.nLines

	for l := 0; l < spec.NLine; l++ {
		li := s.lineOff[sp] + l
		jnu, alpha := spec.Emissivity(local, l, 1)
		jnu *= spec.NormInv

		sum, wsum := 0.0, 0.0
		for p := 0; p < w.nPhot; p++ {
			vf := w.vfac[p*nL+li]
			ds := w.ds[p]
			dtau := math.Max(alpha*vf*ds, maxMaserTau)
			sum += vf * (math.Exp(-dtau)*w.iExt[p*nL+li] +
				remnant(jnu*vf, alpha*vf, ds, dtau))
			wsum += vf
		}

		if wsum > 0 {
			w.jbar[l] = sum / wsum * spec.Norm
		} else {
			w.jbar[l] = spec.CMB[l]
		}
	}
}

// solveRates assembles the rate matrix of species sp at vertex v from
// w.jbar and solves it, with the last equation replaced by the
// normalisation constraint.
func (s *solver) solveRates(w *workspace, v, sp int, sol []float64) bool {
	spec := &s.species[sp]
	vx := &s.mesh.Vertices[v]
	mol := &vx.Mol[sp]
	n := spec.NLev

	// rates[i*n + j] is the rate from level i to level j.
	rates := w.rates[:n*n]
	for i := range rates {
		rates[i] = 0
	}

	for l := 0; l < spec.NLine; l++ {
		lo, hi := spec.Lal[l], spec.Lau[l]
		rates[hi*n+lo] += spec.AEinst[l] + spec.BEinstU[l]*w.jbar[l]
		rates[lo*n+hi] += spec.BEinstL[l] * w.jbar[l]
	}

	t := vx.T[0]
	for p := range spec.Parts {
		cp := &spec.Parts[p]
		dens := vx.Dens[cp.DensityIndex]
		for k := 0; k < cp.NTrans; k++ {
			lo, hi := cp.Lcl[k], cp.Lcu[k]
			down := cp.DownRate(k, mol.Partner[p]) * dens
			rates[hi*n+lo] += down
			rates[lo*n+hi] += spec.UpRate(down, lo, hi, t)
		}
	}

	m, b, x := w.m[sp], w.b[sp], w.x[sp]
	for i := 0; i < n; i++ {
		out := floats.Sum(rates[i*n : (i+1)*n])
		for j := 0; j < n; j++ {
			if i == j {
				m.Set(i, i, -(out - rates[i*n+i]))
			} else {
				m.Set(i, j, rates[j*n+i])
			}
		}
		b.SetVec(i, 0)
	}
	for j := 0; j < n; j++ {
		m.Set(n-1, j, 1)
	}
	b.SetVec(n-1, 1)

	w.lu.Factorize(m)
	if err := w.lu.SolveVecTo(x, false, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return false
		}
	}

	for i := range sol {
		sol[i] = x.AtVec(i)
	}
	return molecule.Finite(sol)
}
