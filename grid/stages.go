package grid

import (
	"strings"
)

// Stage is a category of per-vertex data.
type Stage int

const (
	Positions Stage = iota
	Neighbours
	Velocity
	Density
	Abundance
	TurbDoppler
	Temperatures
	MagField
	// ACoeff is the per-edge velocity samples.
	ACoeff
	Populations
	nStages
)

var stageNames = [nStages]string{
	"positions", "neighbours", "velocity", "density", "abundance",
	"turb_doppler", "temperatures", "mag_field", "acoeff", "populations",
}

func (s Stage) String() string {
	if s < 0 || s >= nStages {
		return "unknown"
	}
	return stageNames[s]
}

// prereqs lists the stages which must be present for a stage to be usable.
var prereqs = [nStages][]Stage{
	Neighbours: {Positions},
	Velocity:   {Positions},
	ACoeff:     {Neighbours, Velocity},
	Populations: {
		Positions, Neighbours, Velocity, Density, Abundance, TurbDoppler,
		Temperatures, ACoeff,
	},
}

// Stages records which categories of vertex data a mesh carries.
type Stages struct {
	set [nStages]bool
}

// Set marks stages as present.
func (s *Stages) Set(stages ...Stage) {
	for _, st := range stages {
		s.set[st] = true
	}
}

// Clear marks stages as absent.
func (s *Stages) Clear(stages ...Stage) {
	for _, st := range stages {
		s.set[st] = false
	}
}

// Has returns true if the stage and all of its prerequisites are present.
func (s Stages) Has(st Stage) bool {
	if !s.set[st] {
		return false
	}
	for _, p := range prereqs[st] {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

func (s Stages) HasPositions() bool    { return s.Has(Positions) }
func (s Stages) HasNeighbours() bool   { return s.Has(Neighbours) }
func (s Stages) HasVelocity() bool     { return s.Has(Velocity) }
func (s Stages) HasDensity() bool      { return s.Has(Density) }
func (s Stages) HasAbundance() bool    { return s.Has(Abundance) }
func (s Stages) HasTurbDoppler() bool  { return s.Has(TurbDoppler) }
func (s Stages) HasTemperatures() bool { return s.Has(Temperatures) }
func (s Stages) HasMagField() bool     { return s.Has(MagField) }
func (s Stages) HasACoeff() bool       { return s.Has(ACoeff) }
func (s Stages) HasPopulations() bool  { return s.Has(Populations) }

// List returns the names of all usable stages.
func (s Stages) List() []string {
	out := []string{}
	for st := Stage(0); st < nStages; st++ {
		if s.Has(st) {
			out = append(out, st.String())
		}
	}
	return out
}

func (s Stages) String() string { return strings.Join(s.List(), ",") }
