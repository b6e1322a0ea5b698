package io

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/emmanuelgarcia9/lime/molecule"
	"github.com/emmanuelgarcia9/lime/phys"
)

/*
LAMDA molecular data files are blocks of values separated by comment lines
starting with '!':

    molecule name
    molecular weight [amu]
    number of levels, nlev
    nlev lines: level, energy [cm^-1], statistical weight, quantum numbers
    number of lines, nline
    nline lines: line, upper level, lower level, A [s^-1], frequency [GHz],
        upper energy [K]
    number of collision partners, npart
    for each partner:
        partner id and description
        number of transitions, ntrans
        number of temperatures, ntemp
        ntemp temperatures [K]
        ntrans lines: transition, upper level, lower level, ntemp rates
            [cm^3 s^-1]

Levels are numbered from one.
*/

// lamdaScanner returns the whitespace separated fields of the data lines of
// a LAMDA file.
type lamdaScanner struct {
	s    *bufio.Scanner
	line int
}

func (ls *lamdaScanner) next() ([]string, error) {
	for ls.s.Scan() {
		ls.line++
		text := strings.TrimSpace(ls.s.Text())
		if text == "" || text[0] == '!' {
			continue
		}
		return strings.Fields(text), nil
	}
	if err := ls.s.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}

func (ls *lamdaScanner) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("line %d: %s", ls.line, fmt.Sprintf(format, args...))
}

func (ls *lamdaScanner) nextInt() (int, error) {
	tok, err := ls.next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok[0])
	if err != nil {
		return 0, ls.errorf("expected an integer, found '%s'", tok[0])
	}
	return n, nil
}

func (ls *lamdaScanner) nextFloat() (float64, error) {
	tok, err := ls.next()
	if err != nil {
		return 0, err
	}
	return ls.parseFloat(tok[0])
}

func (ls *lamdaScanner) parseFloat(tok string) (float64, error) {
	x, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, ls.errorf("expected a number, found '%s'", tok)
	}
	return x, nil
}

// parseFloats parses tok into out, which must be at least as long.
func (ls *lamdaScanner) parseFloats(tok []string, out []float64) error {
	for i, t := range tok {
		x, err := ls.parseFloat(t)
		if err != nil {
			return err
		}
		out[i] = x
	}
	return nil
}

// row reads a data line with at least n fields.
func (ls *lamdaScanner) row(n int) ([]string, error) {
	tok, err := ls.next()
	if err != nil {
		return nil, err
	}
	if len(tok) < n {
		return nil, ls.errorf("expected %d columns, found %d", n, len(tok))
	}
	return tok, nil
}

// level converts a one-based level token into a zero-based index.
func (ls *lamdaScanner) level(tok string, nlev int) (int, error) {
	l, err := strconv.Atoi(tok)
	if err != nil {
		return 0, ls.errorf("expected a level, found '%s'", tok)
	}
	if l < 1 || l > nlev {
		return 0, ls.errorf("level %d is outside [1, %d]", l, nlev)
	}
	return l - 1, nil
}

// ReadLAMDA reads a species from the LAMDA file at path.
func ReadLAMDA(path string) (*molecule.Species, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ParseLAMDA(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return s, nil
}

// ParseLAMDA reads a species in the LAMDA format from r. Frequencies are
// converted to Hz and collision rates to m^3 s^-1. Einstein B coefficients
// are derived from the A coefficients. The species still needs to be
// initialised with Init.
func ParseLAMDA(r io.Reader) (*molecule.Species, error) {
	ls := &lamdaScanner{s: bufio.NewScanner(r)}
	s := &molecule.Species{}

	tok, err := ls.next()
	if err != nil {
		return nil, err
	}
	s.Name = strings.Join(tok, " ")

	if s.Amass, err = ls.nextFloat(); err != nil {
		return nil, err
	}
	if s.NLev, err = ls.nextInt(); err != nil {
		return nil, err
	} else if s.NLev <= 0 {
		return nil, ls.errorf("invalid level count %d", s.NLev)
	}

	s.ETerm = make([]float64, s.NLev)
	s.GStat = make([]float64, s.NLev)
	for i := 0; i < s.NLev; i++ {
		tok, err := ls.row(3)
		if err != nil {
			return nil, err
		}
		if s.ETerm[i], err = ls.parseFloat(tok[1]); err != nil {
			return nil, err
		}
		if s.GStat[i], err = ls.parseFloat(tok[2]); err != nil {
			return nil, err
		}
	}

	if err := parseLines(ls, s); err != nil {
		return nil, err
	}

	npart, err := ls.nextInt()
	if err != nil {
		return nil, err
	} else if npart < 0 || npart > phys.MaxNCollPart {
		return nil, ls.errorf("invalid collision partner count %d", npart)
	}
	s.Parts = make([]molecule.CollPart, npart)
	for p := range s.Parts {
		if err := parsePartner(ls, s, &s.Parts[p]); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func parseLines(ls *lamdaScanner, s *molecule.Species) error {
	var err error
	if s.NLine, err = ls.nextInt(); err != nil {
		return err
	} else if s.NLine < 0 {
		return ls.errorf("invalid line count %d", s.NLine)
	}

	s.Lal, s.Lau = make([]int, s.NLine), make([]int, s.NLine)
	s.AEinst, s.Freq = make([]float64, s.NLine), make([]float64, s.NLine)
	s.BEinstU, s.BEinstL = make([]float64, s.NLine), make([]float64, s.NLine)
	for i := 0; i < s.NLine; i++ {
		tok, err := ls.row(5)
		if err != nil {
			return err
		}
		if s.Lau[i], err = ls.level(tok[1], s.NLev); err != nil {
			return err
		}
		if s.Lal[i], err = ls.level(tok[2], s.NLev); err != nil {
			return err
		}
		if s.AEinst[i], err = ls.parseFloat(tok[3]); err != nil {
			return err
		}
		ghz, err := ls.parseFloat(tok[4])
		if err != nil {
			return err
		}
		f := ghz * 1e9
		s.Freq[i] = f

		s.BEinstU[i] = s.AEinst[i] * phys.CLight * phys.CLight /
			(2 * phys.HPlanck * f * f * f)
		s.BEinstL[i] = s.BEinstU[i] * s.GStat[s.Lau[i]] / s.GStat[s.Lal[i]]
	}
	return nil
}

func parsePartner(ls *lamdaScanner, s *molecule.Species, cp *molecule.CollPart) error {
	tok, err := ls.next()
	if err != nil {
		return err
	}
	if cp.ID, err = strconv.Atoi(tok[0]); err != nil {
		return ls.errorf("expected a collision partner id, found '%s'", tok[0])
	} else if cp.ID < 1 || cp.ID > phys.MaxNCollPart {
		return ls.errorf("unknown collision partner id %d", cp.ID)
	}
	cp.Name = strings.Join(tok[1:], " ")

	if cp.NTrans, err = ls.nextInt(); err != nil {
		return err
	} else if cp.NTrans < 0 {
		return ls.errorf("invalid transition count %d", cp.NTrans)
	}
	ntemp, err := ls.nextInt()
	if err != nil {
		return err
	} else if ntemp <= 0 {
		return ls.errorf("invalid temperature count %d", ntemp)
	}

	cp.Temps = make([]float64, 0, ntemp)
	for len(cp.Temps) < ntemp {
		tok, err := ls.next()
		if err != nil {
			return err
		}
		if len(cp.Temps)+len(tok) > ntemp {
			return ls.errorf("expected %d temperatures, found more", ntemp)
		}
		temps := make([]float64, len(tok))
		if err := ls.parseFloats(tok, temps); err != nil {
			return err
		}
		cp.Temps = append(cp.Temps, temps...)
	}

	cp.Lcu, cp.Lcl = make([]int, cp.NTrans), make([]int, cp.NTrans)
	cp.Down = make([][]float64, cp.NTrans)
	rates := make([]float64, cp.NTrans*ntemp)
	for k := 0; k < cp.NTrans; k++ {
		tok, err := ls.row(3 + ntemp)
		if err != nil {
			return err
		}
		if cp.Lcu[k], err = ls.level(tok[1], s.NLev); err != nil {
			return err
		}
		if cp.Lcl[k], err = ls.level(tok[2], s.NLev); err != nil {
			return err
		}
		cp.Down[k], rates = rates[:ntemp:ntemp], rates[ntemp:]
		if err := ls.parseFloats(tok[3:3+ntemp], cp.Down[k]); err != nil {
			return err
		}
		for t := range cp.Down[k] {
			cp.Down[k][t] *= 1e-6
		}
	}
	return nil
}

// ReadSpecies reads one species per LAMDA file, initialises them with the
// background temperature tcmb and maps their collision partners onto nDens
// density components.
func ReadSpecies(paths []string, tcmb float64, nDens int) ([]molecule.Species, error) {
	if len(paths) > phys.MaxNSpecies {
		return nil, fmt.Errorf("%d species given, at most %d are supported.",
			len(paths), phys.MaxNSpecies)
	}

	species := make([]molecule.Species, len(paths))
	for i, path := range paths {
		s, err := ReadLAMDA(path)
		if err != nil {
			return nil, err
		}
		if err := s.Init(tcmb); err != nil {
			return nil, fmt.Errorf("initialising %s: %w", path, err)
		}
		species[i] = *s
	}
	molecule.AssignDensities(species, nDens)
	return species, nil
}
