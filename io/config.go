package io

import (
	"fmt"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/emmanuelgarcia9/lime/model"
	"github.com/emmanuelgarcia9/lime/phys"
	"github.com/emmanuelgarcia9/lime/solve"
)

const (
	ExampleLimeFile = `[Lime]

#######################
# Required Parameters #
#######################

# Radius of the model sphere in AU. Sinks are placed on its surface.
Radius = 2000

# Number of internal and sink points.
PIntensity = 4000
SinkPoints = 3000

# LAMDA molecular data files, one line per species.
MolDataFile = hco+@xpol.dat

#######################
# Optional Parameters #
#######################

# Restart file to read populations and vertex positions from. When set,
# PIntensity and SinkPoints are ignored.
# Restart = pops.in

# Restart file written after solving.
# Output = pops.out

# Table of internal point positions in metres, columns x y z. Replaces the
# randomly generated internal points.
# PointsFile = points.txt

# TCMB = 2.728
# LTEOnly = false
# InitLTE = false
# Blend = false

# Threads = 0 uses every available core.
# Threads = 0
# Seed = 1
# MaxIterations = 16
# StabilityCount = 3
# RelTol = 0.01
# PhotonsPerNeighbour = 9

# Weights of the density components when computing molecular densities, one
# line per component.
# NMolWeights = 1

# Verbose = true
# LogFile = lime.log

# CPU profile written by runtime/pprof.
# CPUProfileFile = lime.pprof

# Solver metrics in the Prometheus text format.
# MetricsFile = lime.prom`

	ExampleModelFile = `[Model]
# A spherically symmetric cloud. Type must be one of [ Spherical | Profile ].
Type = Spherical

#######################
# Required Parameters #
#######################

# Abundance of each species relative to the density, one line per species.
Abundance = 1e-9

# Turbulent Doppler width in m/s.
Turb = 200

##################################
# Parameters of Spherical models #
##################################

# Radii in AU.
RMin = 0.7
R0 = 1

# n(r) = Dens0 (r/R0)^DensIndex in m^-3.
Dens0 = 1.5e12
DensIndex = -1.5

# T(r) = Temp0 (r/R0)^TempIndex in K.
Temp0 = 2000
TempIndex = -0.4

# Central mass driving the infall in solar masses.
# Mass = 1

# Dust temperature as a multiple of the kinetic temperature.
# DustFactor = 1

################################
# Parameters of Profile models #
################################

# Table with columns r [m], n [m^-3], T [K] and v_r [m/s].
# ProfileFile = profile.txt`
)

// LimeConfig holds the run parameters of a solve.
type LimeConfig struct {
	// Required
	Radius                 float64
	PIntensity, SinkPoints int
	MolDataFile            []string

	// Optional
	Restart, Output, PointsFile string
	LogFile, MetricsFile        string
	CPUProfileFile              string

	TCMB                    float64
	LTEOnly, InitLTE, Blend bool
	Verbose                 bool

	Threads, Seed                 int
	MaxIterations, StabilityCount int
	RelTol                        float64
	PhotonsPerNeighbour           int
	NMolWeights                   []float64
}

// ModelConfig describes the physical model.
type ModelConfig struct {
	Type string

	// Required
	Abundance []float64
	Turb      float64

	// Spherical
	RMin, R0         float64
	Dens0, DensIndex float64
	Temp0, TempIndex float64
	Mass, DustFactor float64

	// Profile
	ProfileFile string
}

// LimeWrapper is the content of a configuration file.
type LimeWrapper struct {
	Lime  LimeConfig
	Model ModelConfig
}

// DefaultLimeWrapper returns a configuration with every optional parameter
// set to its default value.
func DefaultLimeWrapper() *LimeWrapper {
	def := solve.DefaultConfig()
	con := LimeConfig{
		TCMB:                def.TCMB,
		Seed:                int(def.Seed),
		MaxIterations:       def.MaxIterations,
		StabilityCount:      def.StabilityCount,
		RelTol:              def.RelTol,
		PhotonsPerNeighbour: def.PhotonsPerNeighbour,
	}
	return &LimeWrapper{Lime: con, Model: ModelConfig{Type: "Spherical"}}
}

// ReadConfig reads the configuration file fname on top of the defaults and
// checks it.
func ReadConfig(fname string) (*LimeWrapper, error) {
	wrap := DefaultLimeWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	if err := wrap.Check(); err != nil {
		return nil, err
	}
	return wrap, nil
}

// ParseConfig is ReadConfig for a configuration held in a string.
func ParseConfig(str string) (*LimeWrapper, error) {
	wrap := DefaultLimeWrapper()
	if err := gcfg.ReadStringInto(wrap, str); err != nil {
		return nil, err
	}
	if err := wrap.Check(); err != nil {
		return nil, err
	}
	return wrap, nil
}

func (con *LimeConfig) ValidRadius() bool {
	return con.Radius > 0
}
func (con *LimeConfig) ValidPIntensity() bool {
	return con.PIntensity > 0
}
func (con *LimeConfig) ValidSinkPoints() bool {
	return con.SinkPoints > 0
}
func (con *LimeConfig) ValidMolDataFile() bool {
	if len(con.MolDataFile) == 0 || len(con.MolDataFile) > phys.MaxNSpecies {
		return false
	}
	for _, f := range con.MolDataFile {
		if f == "" {
			return false
		}
	}
	return true
}
func (con *LimeConfig) ValidRestart() bool {
	return con.Restart != ""
}
func (con *LimeConfig) ValidOutput() bool {
	return con.Output != ""
}
func (con *LimeConfig) ValidPointsFile() bool {
	return con.PointsFile != ""
}
func (con *LimeConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *LimeConfig) ValidMetricsFile() bool {
	return con.MetricsFile != ""
}
func (con *LimeConfig) ValidCPUProfileFile() bool {
	return con.CPUProfileFile != ""
}
func (con *LimeConfig) ValidTCMB() bool {
	return con.TCMB >= 0
}
func (con *LimeConfig) ValidThreads() bool {
	return con.Threads >= 0
}
func (con *LimeConfig) ValidMaxIterations() bool {
	return con.MaxIterations > 0
}
func (con *LimeConfig) ValidStabilityCount() bool {
	return con.StabilityCount > 0
}
func (con *LimeConfig) ValidRelTol() bool {
	return con.RelTol > 0
}
func (con *LimeConfig) ValidPhotonsPerNeighbour() bool {
	return con.PhotonsPerNeighbour > 0
}
func (con *LimeConfig) ValidNMolWeights() bool {
	for _, w := range con.NMolWeights {
		if w < 0 {
			return false
		}
	}
	return true
}

func (con *ModelConfig) ValidType() bool {
	t := strings.ToLower(con.Type)
	return t == "spherical" || t == "profile"
}
func (con *ModelConfig) ValidAbundance() bool {
	if len(con.Abundance) == 0 {
		return false
	}
	for _, a := range con.Abundance {
		if a < 0 || a > 1 {
			return false
		}
	}
	return true
}
func (con *ModelConfig) ValidTurb() bool {
	return con.Turb >= 0
}
func (con *ModelConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}

// Check returns an error describing the first invalid or missing parameter
// of the configuration.
func (wrap *LimeWrapper) Check() error {
	con, mod := &wrap.Lime, &wrap.Model

	switch {
	case !con.ValidMolDataFile():
		return fmt.Errorf("Invalid/non-existent 'MolDataFile' value.")
	case !con.ValidRestart() && !con.ValidRadius():
		return fmt.Errorf("Invalid/non-existent 'Radius' value.")
	case !con.ValidRestart() && !con.ValidPIntensity():
		return fmt.Errorf("Invalid/non-existent 'PIntensity' value.")
	case !con.ValidRestart() && !con.ValidSinkPoints():
		return fmt.Errorf("Invalid/non-existent 'SinkPoints' value.")
	case !con.ValidTCMB():
		return fmt.Errorf("Invalid 'TCMB' value.")
	case !con.ValidThreads():
		return fmt.Errorf("Invalid 'Threads' value.")
	case !con.ValidMaxIterations():
		return fmt.Errorf("Invalid 'MaxIterations' value.")
	case !con.ValidStabilityCount():
		return fmt.Errorf("Invalid 'StabilityCount' value.")
	case !con.ValidRelTol():
		return fmt.Errorf("Invalid 'RelTol' value.")
	case !con.ValidPhotonsPerNeighbour():
		return fmt.Errorf("Invalid 'PhotonsPerNeighbour' value.")
	case !con.ValidNMolWeights():
		return fmt.Errorf("Invalid 'NMolWeights' value.")
	}

	switch {
	case !mod.ValidType():
		return fmt.Errorf("Invalid 'Type' value '%s'.", mod.Type)
	case !mod.ValidAbundance():
		return fmt.Errorf("Invalid/non-existent 'Abundance' value.")
	case len(mod.Abundance) != len(con.MolDataFile):
		return fmt.Errorf("%d 'Abundance' values given for %d species.",
			len(mod.Abundance), len(con.MolDataFile))
	case !mod.ValidTurb():
		return fmt.Errorf("Invalid 'Turb' value.")
	case strings.ToLower(mod.Type) == "profile" && !mod.ValidProfileFile():
		return fmt.Errorf("Invalid/non-existent 'ProfileFile' value.")
	}
	return nil
}

// SolveConfig converts the run parameters into a solver configuration.
func (con *LimeConfig) SolveConfig() *solve.Config {
	cfg := solve.DefaultConfig()
	if con.Threads > 0 {
		cfg.Threads = con.Threads
	}
	cfg.Seed = uint64(con.Seed)
	cfg.LTEOnly = con.LTEOnly
	cfg.InitLTE = con.InitLTE
	cfg.Blend = con.Blend
	cfg.MaxIterations = con.MaxIterations
	cfg.StabilityCount = con.StabilityCount
	cfg.RelTol = con.RelTol
	cfg.PhotonsPerNeighbour = con.PhotonsPerNeighbour
	cfg.TCMB = con.TCMB
	cfg.NMolWeights = con.NMolWeights
	cfg.Verbose = con.Verbose
	return cfg
}

// RadiusMeters returns the model radius in metres.
func (con *LimeConfig) RadiusMeters() float64 {
	return con.Radius * phys.AU
}

// Model builds the physical model described by the configuration. Radial
// profiles are read from ProfileFile.
func (con *ModelConfig) Model() (interface{}, error) {
	switch strings.ToLower(con.Type) {
	case "spherical":
		sph := &model.Spherical{
			RMin: con.RMin * phys.AU, R0: con.R0 * phys.AU,
			Dens0: con.Dens0, DensIndex: con.DensIndex,
			Temp0: con.Temp0, TempIndex: con.TempIndex,
			DustFactor: con.DustFactor,
			Mass:       con.Mass * phys.MSun,
			Abun:       con.Abundance, Turb: con.Turb,
		}
		if err := sph.Validate(); err != nil {
			return nil, err
		}
		return sph, nil
	case "profile":
		return ReadProfile(con.ProfileFile, con.Abundance, con.Turb)
	}
	return nil, fmt.Errorf("Invalid 'Type' value '%s'.", con.Type)
}
