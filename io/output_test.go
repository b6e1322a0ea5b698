package io

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/emmanuelgarcia9/lime/geom"
	"github.com/emmanuelgarcia9/lime/grid"
	"github.com/emmanuelgarcia9/lime/model"
)

func TestSummary(t *testing.T) {
	r := testRestart(t)
	s := Summarize(r)

	m := r.Mesh
	assert.Equal(t, m.Len(), s.Vertices)
	assert.Equal(t, m.NInternal, s.Internal)
	assert.Equal(t, m.NSink, s.Sinks)
	assert.Equal(t, 1, s.Densities)
	assert.Contains(t, s.Stages, "populations")
	require.Len(t, s.Species, 1)

	st := s.Species[0]
	assert.Equal(t, 2, st.Levels)
	assert.LessOrEqual(t, st.MinNMol, st.MaxNMol)
	assert.InDelta(t, 1.0, st.MeanPops[0]+st.MeanPops[1], 1e-12)

	assert.Zero(t, s.HullFraction, "cells were not kept")

	buf := &bytes.Buffer{}
	require.NoError(t, WriteSummary(buf, s))
	back := &Summary{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), back))
	assert.Equal(t, s.Vertices, back.Vertices)
	assert.Equal(t, s.Stages, back.Stages)
	assert.Equal(t, st.Name, back.Species[0].Name)
}

func TestSummaryHullFraction(t *testing.T) {
	r := testRestart(t)
	path := filepath.Join(t.TempDir(), "pops.out")
	require.NoError(t, WriteRestart(path, r))

	got, err := ReadRestart(path, model.Resolve(testModel()), &RestartConfig{
		TCMB: testTCMB, Options: grid.Options{KeepCells: true},
	})
	require.NoError(t, err)
	s := Summarize(got)
	assert.Greater(t, s.HullFraction, 0.3)
	assert.LessOrEqual(t, s.HullFraction, 1.0)
}

func TestRadialPopulations(t *testing.T) {
	r := testRestart(t)
	rs, pops, err := RadialPopulations(r.Mesh, 0, 1)
	require.NoError(t, err)
	require.Len(t, rs, r.Mesh.NInternal)
	require.Len(t, pops, r.Mesh.NInternal)
	for i := 1; i < len(rs); i++ {
		assert.LessOrEqual(t, rs[i-1], rs[i])
	}
	for i := range pops {
		assert.Greater(t, pops[i], 0.0)
		assert.Less(t, pops[i], 1.0)
	}

	_, _, err = RadialPopulations(r.Mesh, 1, 0)
	assert.Error(t, err)
	_, _, err = RadialPopulations(r.Mesh, 0, 2)
	assert.Error(t, err)
}

func TestWritePopulationTable(t *testing.T) {
	r := testRestart(t)
	buf := &bytes.Buffer{}
	require.NoError(t, WritePopulationTable(buf, r.Mesh, 0))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, r.Mesh.NInternal+1)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	for i, line := range lines[1:] {
		if n := len(strings.Fields(line)); n != 5 {
			t.Errorf("%d) Expected 5 columns, found %d.", i, n)
		}
	}
}

func TestReadPoints(t *testing.T) {
	xs := []geom.Vec{{1, 2, 3}, {-4.5, 0, 1e15}, {0.25, -0.5, 7}}
	buf := &bytes.Buffer{}
	for _, x := range xs {
		fmt.Fprintf(buf, "%.17g %.17g %.17g\n", x[0], x[1], x[2])
	}
	path := filepath.Join(t.TempDir(), "points.txt")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	got, err := ReadPoints(path)
	require.NoError(t, err)
	assert.Equal(t, xs, got)
}

func TestReadProfile(t *testing.T) {
	text := "1e13 1e12 100 -300\n1e14 1e11 50 -100\n1e15 1e10 20 -30\n"
	path := filepath.Join(t.TempDir(), "profile.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))

	p, err := ReadProfile(path, []float64{1e-9}, 100)
	require.NoError(t, err)
	assert.InEpsilon(t, 1e11, p.Density(geom.Vec{1e14, 0, 0})[0], 1e-12)
	assert.InEpsilon(t, 20, p.Temperature(geom.Vec{0, 0, 2e15})[0], 1e-12)
	assert.InDelta(t, -100, p.Velocity(geom.Vec{0, 1e14, 0})[1], 1e-9)

	bad := "1e14 1e12 100 0\n1e13 1e11 50 0\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0644))
	_, err = ReadProfile(path, nil, 0)
	assert.Error(t, err)
}
