package io

import (
	"fmt"

	"github.com/phil-mansfield/table"

	"github.com/emmanuelgarcia9/lime/geom"
	"github.com/emmanuelgarcia9/lime/model"
)

// ReadPoints reads vertex positions from the first three columns of a
// whitespace separated table. Lines starting with '#' are comments.
func ReadPoints(fname string) ([]geom.Vec, error) {
	cols, err := table.ReadTable(fname, []int{0, 1, 2}, nil)
	if err != nil {
		return nil, err
	}

	xs := make([]geom.Vec, len(cols[0]))
	for i := range xs {
		xs[i] = geom.Vec{cols[0][i], cols[1][i], cols[2][i]}
	}
	return xs, nil
}

// ReadProfile reads a tabulated spherical model with columns of radius [m],
// density [m^-3], kinetic temperature [K] and radial velocity [m/s].
func ReadProfile(fname string, abun []float64, turb float64) (*model.Profile, error) {
	cols, err := table.ReadTable(fname, []int{0, 1, 2, 3}, nil)
	if err != nil {
		return nil, err
	}

	p, err := model.NewProfile(cols[0], cols[1], cols[2], cols[3], abun, turb)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fname, err)
	}
	return p, nil
}
