package molecule

import (
	"math"

	"github.com/emmanuelgarcia9/lime/phys"
)

// Blend is a line whose rest frequency lies close enough to another line for
// the two to share photons.
type Blend struct {
	Species, Line int
	// DeltaV is the velocity [m/s] at which the blended line's centre
	// appears in the frame of the line it blends with.
	DeltaV float64
}

// BlendTable lists, for every line of every species, the lines which blend
// with it: table[species][line].
type BlendTable [][][]Blend

// FindBlends groups the lines of every species whose rest frequencies are
// within phys.MaxBlendDeltaV of each other.
func FindBlends(species []Species) BlendTable {
	table := make(BlendTable, len(species))
	for i := range species {
		table[i] = make([][]Blend, species[i].NLine)
	}

	for i := range species {
		for l := 0; l < species[i].NLine; l++ {
			f := species[i].Freq[l]
			for j := range species {
				for m := 0; m < species[j].NLine; m++ {
					if i == j && l == m {
						continue
					}
					dv := (f - species[j].Freq[m]) / f * phys.CLight
					if math.Abs(dv) < phys.MaxBlendDeltaV {
						table[i][l] = append(table[i][l], Blend{j, m, dv})
					}
				}
			}
		}
	}
	return table
}

// Any returns true if at least one line is blended.
func (t BlendTable) Any() bool {
	for _, lines := range t {
		for _, bl := range lines {
			if len(bl) > 0 {
				return true
			}
		}
	}
	return false
}
