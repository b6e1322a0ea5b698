package main

import (
	"fmt"

	plt "github.com/phil-mansfield/pyplot"
	"github.com/spf13/cobra"

	"github.com/emmanuelgarcia9/lime/io"
	"github.com/emmanuelgarcia9/lime/phys"
)

func plotCmd() *cobra.Command {
	var (
		path, out      string
		species, level int
	)

	cmd := &cobra.Command{
		Use:   "plot config.ini",
		Short: "Plot the radial profile of a level population",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loadRestart(args[0], path)
			if err != nil {
				return err
			}
			rs, pops, err := io.RadialPopulations(r.Mesh, species, level)
			if err != nil {
				return err
			}
			for i := range rs {
				rs[i] /= phys.AU
			}

			plt.Reset()
			plt.Figure()
			plt.Plot(rs, pops, "ok")
			plt.Title(fmt.Sprintf("Species %d, level %d", species, level))
			plt.XLabel(`$r$ [AU]`, plt.FontSize(16))
			plt.YLabel(`$n_i / n$`, plt.FontSize(16))
			plt.XScale("log")
			plt.YScale("log")
			plt.Grid(plt.Axis("x"), plt.Which("both"))
			plt.SaveFig(out)
			plt.Execute()
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "",
		"Restart file to read instead of the configured one")
	cmd.Flags().StringVarP(&out, "out", "o", "pops.png", "Output image")
	cmd.Flags().IntVar(&species, "species", 0, "Species index")
	cmd.Flags().IntVar(&level, "level", 0, "Level index")
	return cmd
}
