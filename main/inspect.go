package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emmanuelgarcia9/lime/grid"
	"github.com/emmanuelgarcia9/lime/io"
	"github.com/emmanuelgarcia9/lime/model"
)

// restartFile returns the restart file a command should read: the explicit
// path if one was given, then the configured output, then the configured
// input.
func restartFile(con *io.LimeConfig, path string) (string, error) {
	switch {
	case path != "":
		return path, nil
	case con.ValidOutput():
		return con.Output, nil
	case con.ValidRestart():
		return con.Restart, nil
	}
	return "", fmt.Errorf("Configuration names no restart file; set " +
		"'Output' or 'Restart' or pass --file.")
}

// loadRestart reads the restart file selected by the configuration at
// config and path.
func loadRestart(config, path string) (*io.Restart, error) {
	wrap, err := io.ReadConfig(config)
	if err != nil {
		return nil, err
	}
	fname, err := restartFile(&wrap.Lime, path)
	if err != nil {
		return nil, err
	}
	m, err := wrap.Model.Model()
	if err != nil {
		return nil, err
	}
	return io.ReadRestart(fname, model.Resolve(m), &io.RestartConfig{
		TCMB: wrap.Lime.TCMB, Options: grid.Options{KeepCells: true},
	})
}

func inspectCmd() *cobra.Command {
	var (
		path    string
		species int
	)

	cmd := &cobra.Command{
		Use:   "inspect config.ini",
		Short: "Summarise a restart file as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loadRestart(args[0], path)
			if err != nil {
				return err
			}
			if species >= 0 {
				return io.WritePopulationTable(os.Stdout, r.Mesh, species)
			}
			return io.WriteSummary(os.Stdout, io.Summarize(r))
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "",
		"Restart file to read instead of the configured one")
	cmd.Flags().IntVar(&species, "table", -1,
		"Print the population table of this species instead of a summary")
	return cmd
}
