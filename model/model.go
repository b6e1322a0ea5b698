/*package model defines the physical fields which the mesh builder and the
excitation solver sample at vertex positions, and provides two models which
implement them: an analytic power-law sphere and a tabulated radial profile.

A model is any value implementing some subset of the field interfaces. It is
resolved once, with Resolve, into a Fields record which callers query instead
of type-asserting at every vertex.
*/
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emmanuelgarcia9/lime/geom"
)

// ErrMissingField is returned when a required field is not supplied by a
// model.
var ErrMissingField = errors.New("missing field callback")

// DensityField returns the number density [m^-3] of every density component
// at a position.
type DensityField interface {
	Density(x geom.Vec) []float64
}

// TemperatureField returns the kinetic and dust temperatures [K] at a
// position.
type TemperatureField interface {
	Temperature(x geom.Vec) [2]float64
}

// VelocityField returns the bulk gas velocity [m/s] at a position.
type VelocityField interface {
	Velocity(x geom.Vec) geom.Vec
}

// AbundanceField returns the fractional abundance of every species at a
// position.
type AbundanceField interface {
	Abundance(x geom.Vec) []float64
}

// DopplerField returns the turbulent Doppler width [m/s] at a position.
type DopplerField interface {
	Doppler(x geom.Vec) float64
}

// Field names one of the field interfaces.
type Field int

const (
	FieldDensity Field = iota
	FieldTemperature
	FieldVelocity
	FieldAbundance
	FieldDoppler
)

func (f Field) String() string {
	switch f {
	case FieldDensity:
		return "density"
	case FieldTemperature:
		return "temperature"
	case FieldVelocity:
		return "velocity"
	case FieldAbundance:
		return "abundance"
	case FieldDoppler:
		return "doppler"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// Fields is the resolved set of fields of a model. Absent fields are nil.
type Fields struct {
	Density     DensityField
	Temperature TemperatureField
	Velocity    VelocityField
	Abundance   AbundanceField
	Doppler     DopplerField
}

// Resolve type-asserts m against every field interface.
func Resolve(m interface{}) *Fields {
	f := &Fields{}
	f.Density, _ = m.(DensityField)
	f.Temperature, _ = m.(TemperatureField)
	f.Velocity, _ = m.(VelocityField)
	f.Abundance, _ = m.(AbundanceField)
	f.Doppler, _ = m.(DopplerField)
	return f
}

// Has returns true if the field is present. A nil *Fields has no fields.
func (f *Fields) Has(field Field) bool {
	if f == nil {
		return false
	}
	switch field {
	case FieldDensity:
		return f.Density != nil
	case FieldTemperature:
		return f.Temperature != nil
	case FieldVelocity:
		return f.Velocity != nil
	case FieldAbundance:
		return f.Abundance != nil
	case FieldDoppler:
		return f.Doppler != nil
	}
	return false
}

// Require returns an error wrapping ErrMissingField which names every one of
// the given fields that is absent.
func (f *Fields) Require(fields ...Field) error {
	missing := []string{}
	for _, field := range fields {
		if !f.Has(field) {
			missing = append(missing, field.String())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
}
