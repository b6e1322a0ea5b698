package solve

import (
	"fmt"
	"log"
	"runtime"

	"github.com/emmanuelgarcia9/lime/phys"
)

// Config controls a solve.
type Config struct {
	// Threads is the number of workers. Zero means runtime.NumCPU().
	Threads int
	// Seed selects the photon directions and velocities. Two solves with the
	// same seed give identical results regardless of Threads.
	Seed uint64

	// LTEOnly fixes populations at their LTE values without iterating.
	LTEOnly bool
	// InitLTE discards populations already on the mesh and starts from LTE.
	InitLTE bool
	// Blend couples lines of all species which overlap in frequency.
	Blend bool

	MaxIterations int
	// StabilityCount is the number of consecutive iterations every internal
	// vertex must stay within RelTol for the solve to converge.
	StabilityCount int
	RelTol         float64

	PhotonsPerNeighbour int

	// TCMB is the background radiation temperature [K]. It must match the
	// temperature the species were initialised with.
	TCMB float64
	// NMolWeights weights the density components when computing molecular
	// densities from abundances. Nil weights every component by one.
	NMolWeights []float64

	// Logger receives one line per iteration when Verbose is set.
	Logger  *log.Logger
	Verbose bool

	// Metrics is optional.
	Metrics *Metrics
}

// DefaultConfig returns the default solver configuration.
func DefaultConfig() *Config {
	return &Config{
		Threads:             runtime.NumCPU(),
		Seed:                1,
		MaxIterations:       16,
		StabilityCount:      3,
		RelTol:              1e-2,
		PhotonsPerNeighbour: phys.PhotonsPerNeighbour,
		TCMB:                phys.LocalCMBTemp,
	}
}

// withDefaults returns a copy of cfg with unset values replaced by defaults.
// A nil cfg gives the default configuration.
func (cfg *Config) withDefaults() (*Config, error) {
	def := DefaultConfig()
	if cfg == nil {
		return def, nil
	}

	c := *cfg
	if c.Threads <= 0 {
		c.Threads = def.Threads
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.StabilityCount <= 0 {
		c.StabilityCount = def.StabilityCount
	}
	if c.PhotonsPerNeighbour <= 0 {
		c.PhotonsPerNeighbour = def.PhotonsPerNeighbour
	}
	if c.RelTol == 0 {
		c.RelTol = def.RelTol
	}

	switch {
	case c.RelTol < 0:
		return nil, fmt.Errorf("Invalid RelTol value %g.", c.RelTol)
	case c.TCMB < 0:
		return nil, fmt.Errorf("Invalid TCMB value %g.", c.TCMB)
	}
	for i, w := range c.NMolWeights {
		if w < 0 {
			return nil, fmt.Errorf("Invalid NMolWeights[%d] value %g.", i, w)
		}
	}
	if c.LTEOnly {
		c.InitLTE = true
	}
	return &c, nil
}

func (cfg *Config) logf(format string, args ...interface{}) {
	if cfg.Verbose && cfg.Logger != nil {
		cfg.Logger.Printf(format, args...)
	}
}
