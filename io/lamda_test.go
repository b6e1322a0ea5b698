package io

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmanuelgarcia9/lime/phys"
)

const testLAMDA = `!MOLECULE
CO
!MOLECULAR WEIGHT
28.0
!NUMBER OF ENERGY LEVELS
3
!LEVEL + ENERGIES(cm^-1) + WEIGHT + J
    1     0.000000000  1.0     0
    2     3.845033413  3.0     1
    3    11.534919938  5.0     2
!NUMBER OF RADIATIVE TRANSITIONS
2
!TRANS + UP + LOW + EINSTEINA(s^-1) + FREQ(GHz) + E_u(K)
    1     2     1  7.203e-08     115.2712018     5.53
    2     3     2  6.910e-07     230.5380000    16.60
!NUMBER OF COLL PARTNERS
1
!COLLISIONS BETWEEN
2 CO-pH2 from Yang et al. (2010)
!NUMBER OF COLL TRANS
3
!NUMBER OF COLL TEMPS
4
!COLL TEMPS
    10.0   20.0
    40.0   80.0
!TRANS + UP + LOW + COLLRATES(cm^3 s^-1)
    1     2     1  3.0e-11  3.2e-11  3.4e-11  3.6e-11
    2     3     1  1.0e-11  1.1e-11  1.2e-11  1.3e-11
    3     3     2  5.0e-11  5.2e-11  5.4e-11  5.6e-11
`

func TestParseLAMDA(t *testing.T) {
	s, err := ParseLAMDA(strings.NewReader(testLAMDA))
	require.NoError(t, err)

	assert.Equal(t, "CO", s.Name)
	assert.Equal(t, 28.0, s.Amass)
	assert.Equal(t, 3, s.NLev)
	assert.Equal(t, 2, s.NLine)
	assert.Equal(t, []float64{0, 3.845033413, 11.534919938}, s.ETerm)
	assert.Equal(t, []float64{1, 3, 5}, s.GStat)
	assert.Equal(t, []int{0, 1}, s.Lal)
	assert.Equal(t, []int{1, 2}, s.Lau)
	assert.InDelta(t, 115.2712018e9, s.Freq[0], 1)
	assert.InDelta(t, 230.538e9, s.Freq[1], 1)

	for i := 0; i < s.NLine; i++ {
		f := s.Freq[i]
		bu := s.AEinst[i] * phys.CLight * phys.CLight /
			(2 * phys.HPlanck * f * f * f)
		assert.InEpsilon(t, bu, s.BEinstU[i], 1e-12)
		gu, gl := s.GStat[s.Lau[i]], s.GStat[s.Lal[i]]
		assert.InEpsilon(t, bu*gu/gl, s.BEinstL[i], 1e-12)
	}

	require.Len(t, s.Parts, 1)
	cp := s.Parts[0]
	assert.Equal(t, phys.CollPartParaH2, cp.ID)
	assert.Equal(t, "CO-pH2 from Yang et al. (2010)", cp.Name)
	assert.Equal(t, 3, cp.NTrans)
	assert.Equal(t, []float64{10, 20, 40, 80}, cp.Temps)
	assert.Equal(t, []int{1, 2, 2}, cp.Lcu)
	assert.Equal(t, []int{0, 0, 1}, cp.Lcl)
	assert.InEpsilon(t, 3.0e-17, cp.Down[0][0], 1e-12)
	assert.InEpsilon(t, 5.6e-17, cp.Down[2][3], 1e-12)

	require.NoError(t, s.Init(phys.LocalCMBTemp))
	assert.True(t, s.Ready())
}

func TestParseLAMDAErrors(t *testing.T) {
	table := []struct {
		name, old, new string
		target         error
	}{
		{"truncated", "    3     3     2  5.0e-11  5.2e-11  5.4e-11  5.6e-11\n",
			"", io.ErrUnexpectedEOF},
		{"level", "    2     3     2  6.910e-07", "    2     4     2  6.910e-07",
			nil},
		{"number", "28.0", "heavy", nil},
		{"partner", "2 CO-pH2", "9 CO-pH2", nil},
		{"rates", "1.3e-11\n", "\n", nil},
		{"temperatures", "    40.0   80.0", "    40.0   80.0  160.0", nil},
	}

	for _, test := range table {
		text := strings.Replace(testLAMDA, test.old, test.new, 1)
		require.NotEqual(t, testLAMDA, text, test.name)

		_, err := ParseLAMDA(strings.NewReader(text))
		if err == nil {
			t.Errorf("%s) Expected an error.", test.name)
		} else if test.target != nil && !errors.Is(err, test.target) {
			t.Errorf("%s) Expected %v, got %v.", test.name, test.target, err)
		}
	}
}

func TestReadSpecies(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "a.dat"), filepath.Join(dir, "b.dat")}
	for _, p := range paths {
		require.NoError(t, os.WriteFile(p, []byte(testLAMDA), 0644))
	}

	species, err := ReadSpecies(paths, 0, 2)
	require.NoError(t, err)
	require.Len(t, species, 2)
	for i := range species {
		assert.True(t, species[i].Ready())
		assert.Equal(t, 0, species[i].Parts[0].DensityIndex)
		assert.Equal(t, []float64{0, 0}, species[i].CMB)
	}

	_, err = ReadSpecies([]string{filepath.Join(dir, "missing.dat")}, 0, 1)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
