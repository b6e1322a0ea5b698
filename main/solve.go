package main

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/emmanuelgarcia9/lime/geom"
	"github.com/emmanuelgarcia9/lime/grid"
	"github.com/emmanuelgarcia9/lime/io"
	"github.com/emmanuelgarcia9/lime/model"
	"github.com/emmanuelgarcia9/lime/molecule"
	"github.com/emmanuelgarcia9/lime/solve"
)

func solveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "solve config.ini",
		Short: "Build the mesh and solve for level populations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wrap, err := io.ReadConfig(args[0])
			if err != nil {
				return err
			}
			fg, err := setupIO(&wrap.Lime)
			if err != nil {
				return err
			}
			defer fg.Close()

			return solveMain(wrap)
		},
	}
}

// run is a mesh ready to be solved together with its species.
type run struct {
	mesh    *grid.Mesh
	species []molecule.Species
}

func solveMain(wrap *io.LimeWrapper) error {
	con := &wrap.Lime
	r, err := setupRun(wrap)
	if err != nil {
		return err
	}

	cfg := con.SolveConfig()
	cfg.Logger = log.Default()

	reg := prometheus.NewRegistry()
	cfg.Metrics = solve.NewMetrics(reg)

	log.Printf("Solving %d species on %d internal and %d sink vertices "+
		"with %d threads.", len(r.species), r.mesh.NInternal, r.mesh.NSink,
		cfg.Threads)
	st, err := solve.Solve(r.mesh, r.species, cfg)
	if err != nil {
		return err
	}

	if err := st.Err(); errors.Is(err, solve.ErrNotConverged) {
		log.Printf("Warning: %s", err.Error())
	} else {
		log.Printf("Converged after %d iterations.", st.Iterations)
	}

	if con.ValidOutput() {
		out := &io.Restart{
			Radius: r.mesh.Radius, Species: r.species, Mesh: r.mesh,
		}
		if err := io.WriteRestart(con.Output, out); err != nil {
			return err
		}
		log.Printf("Wrote populations to %s.", con.Output)
	}

	if con.ValidMetricsFile() {
		if err := prometheus.WriteToTextfile(con.MetricsFile, reg); err != nil {
			return err
		}
	}
	return nil
}

// setupRun builds the mesh described by the configuration, either from a
// restart file or from fresh points, and reads the species.
func setupRun(wrap *io.LimeWrapper) (*run, error) {
	con := &wrap.Lime
	m, err := wrap.Model.Model()
	if err != nil {
		return nil, err
	}
	fields := model.Resolve(m)

	var mesh *grid.Mesh
	if con.ValidRestart() {
		rs, err := io.ReadRestart(con.Restart, fields,
			&io.RestartConfig{TCMB: con.TCMB})
		if err != nil {
			return nil, err
		}
		mesh = rs.Mesh

		species, err := io.ReadSpecies(con.MolDataFile, con.TCMB,
			mesh.NDensities())
		if err != nil {
			return nil, err
		}
		if err := matchSpecies(rs.Species, species); err != nil {
			return nil, err
		}
		return &run{mesh, species}, nil
	}

	if err := fields.Require(model.FieldAbundance); err != nil {
		return nil, err
	}
	mesh, err = buildMesh(con, fields)
	if err != nil {
		return nil, err
	}

	species, err := io.ReadSpecies(con.MolDataFile, con.TCMB,
		mesh.NDensities())
	if err != nil {
		return nil, err
	}
	return &run{mesh, species}, nil
}

// buildMesh places points in the model sphere, tessellates them and samples
// the model fields.
func buildMesh(con *io.LimeConfig, fields *model.Fields) (*grid.Mesh, error) {
	radius := con.RadiusMeters()
	rng := rand.New(rand.NewPCG(uint64(con.Seed), 0))

	var xs []geom.Vec
	nInternal := con.PIntensity
	if con.ValidPointsFile() {
		internal, err := io.ReadPoints(con.PointsFile)
		if err != nil {
			return nil, err
		}
		for i, x := range internal {
			if x.Norm() >= radius {
				return nil, fmt.Errorf("Point %d in %s lies outside the "+
					"model radius.", i, con.PointsFile)
			}
		}
		nInternal = len(internal)
		xs = append(internal, grid.RandomPoints(rng, radius, 0, con.SinkPoints)...)
	} else {
		xs = grid.RandomPoints(rng, radius, con.PIntensity, con.SinkPoints)
	}

	mesh, err := grid.Build(xs, nInternal, grid.Options{})
	if err != nil {
		return nil, err
	}
	mesh.Radius = radius
	log.Printf("Built a mesh of %d vertices, %d internal points were "+
		"reclassified as sinks.", mesh.Len(), nInternal-mesh.NInternal)

	if err := mesh.SampleFields(fields, con.TCMB); err != nil {
		return nil, err
	}
	mesh.CalcVelocities(fields.Velocity)
	return mesh, nil
}

// matchSpecies checks that species read from molecular data files have the
// shape of the species stored in a restart file.
func matchSpecies(stored, species []molecule.Species) error {
	if len(stored) != len(species) {
		return fmt.Errorf("Restart file holds %d species, but %d "+
			"'MolDataFile' values were given.", len(stored), len(species))
	}
	for i := range stored {
		if stored[i].NLev != species[i].NLev ||
			stored[i].NLine != species[i].NLine ||
			len(stored[i].Parts) != len(species[i].Parts) {
			return fmt.Errorf("Species %d ('%s') does not match the restart "+
				"file.", i, species[i].Name)
		}
	}
	return nil
}
