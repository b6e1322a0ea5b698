/*lime computes non-LTE molecular level populations on an unstructured mesh.

Usage:

	lime solve config.ini
	lime inspect config.ini
	lime plot -o pops.png config.ini
	lime example-config
*/
package main

import (
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/emmanuelgarcia9/lime/io"
)

// FileGroup holds the files a command opens for logging and profiling.
type FileGroup struct {
	log, prof *os.File
}

// setupIO redirects logging to the configured log file and starts CPU
// profiling when requested.
func setupIO(con *io.LimeConfig) (*FileGroup, error) {
	fg := &FileGroup{}
	var err error

	if con.ValidLogFile() {
		fg.log, err = os.Create(con.LogFile)
		if err != nil {
			return nil, err
		}
		log.SetOutput(fg.log)
	}

	if con.ValidCPUProfileFile() {
		fg.prof, err = os.Create(con.CPUProfileFile)
		if err != nil {
			fg.Close()
			return nil, err
		}
		if err = pprof.StartCPUProfile(fg.prof); err != nil {
			fg.prof.Close()
			fg.prof = nil
			fg.Close()
			return nil, err
		}
	}

	return fg, nil
}

func (fg *FileGroup) Close() {
	if fg.prof != nil {
		pprof.StopCPUProfile()
		if err := fg.prof.Close(); err != nil {
			log.Fatal(err.Error())
		}
	}

	if fg.log != nil {
		log.SetOutput(os.Stderr)
		if err := fg.log.Close(); err != nil {
			log.Fatal(err.Error())
		}
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lime",
		Short: "Non-LTE molecular excitation on a Delaunay mesh",
		Long: `lime builds a Delaunay mesh over a model cloud, traces photons along its
edges and iterates the statistical equilibrium of every level of every
species until the populations converge. Run parameters are read from gcfg
configuration files; 'lime example-config' prints a commented example.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(solveCmd(), inspectCmd(), plotCmd(), exampleConfigCmd())
	return cmd
}

func exampleConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example-config",
		Short: "Print an example configuration file",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n",
				io.ExampleLimeFile, io.ExampleModelFile)
		},
	}
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal(err.Error())
	}
}
