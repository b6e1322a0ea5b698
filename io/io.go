/*package io reads and writes the files used by lime: binary restart files,
gcfg run configurations, LAMDA molecular data files and whitespace separated
point and profile tables.
*/
package io

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// order is the byte order of restart files. Restart files are only portable
// between machines of the same endianness.
var order = binary.NativeEndian

/*
The binary format used for restart files is as follows:
    |-- 1 --||-- ... 2 ... --||-- ... 3 ... --|

    1 - Header:
        (float64) Model radius [m].
        (int32) Number of vertices, ncell.
        (int32) Number of species, nSpecies.
    2 - Species blocks, one per species:
        (int32) nlev, nline, npart.
        ([npart]int32) Number of collisional transitions of each partner.
        ([nline]int32) Lower levels, then upper levels.
        ([nline]float64) Einstein A, frequency, Einstein B_lu, Einstein B_ul.
        ([nline + 2]float64) Padding.
    3 - Vertex blocks, one per vertex:
        (int32) ID.
        ([3]float64) Position [m], then velocity [m/s].
        (int32) Sink flag, non-zero for sinks.
        ([nSpecies]float64) Molecular densities [m^-3].
        (float64) Turbulent Doppler width [m/s].
        For every species:
            ([nlev]float64) Level populations.
            ([2*nline]float64) Padding.
            (float64) Doppler width [m/s], then its inverse.
        ([3]float64) Padding.

Padding is written as zeros and skipped when reading.
*/

// reader wraps a buffered file and remembers the first error it sees, so a
// block can be read without checking every field. left counts the unread
// bytes of the file.
type reader struct {
	r    *bufio.Reader
	left int64
	err  error
}

// openFile opens path for reading.
func openFile(path string) (*reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return &reader{r: bufio.NewReader(f), left: info.Size()}, f, nil
}

// fits returns true if n items of size bytes each fit in the unread part of
// the file. Header counts are checked with it before anything is allocated.
func (rd *reader) fits(n, size int64) bool {
	if n < 0 || size < 0 {
		return false
	}
	return size == 0 || n <= rd.left/size
}

func (rd *reader) read(data interface{}) {
	if rd.err != nil {
		return
	}
	if err := binary.Read(rd.r, order, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		rd.err = err
		return
	}
	rd.left -= int64(binary.Size(data))
}

// readInt32 returns a single 32-bit integer from the file as an int.
func (rd *reader) readInt32() int {
	var n int32
	rd.read(&n)
	return int(n)
}

func (rd *reader) readFloat64() float64 {
	var x float64
	rd.read(&x)
	return x
}

func (rd *reader) readInts(n int) []int {
	buf := make([]int32, n)
	rd.read(buf)
	out := make([]int, n)
	for i := range buf {
		out[i] = int(buf[i])
	}
	return out
}

func (rd *reader) readFloats(n int) []float64 {
	out := make([]float64, n)
	rd.read(out)
	return out
}

func (rd *reader) skip(nFloats int) {
	if rd.err != nil || nFloats == 0 {
		return
	}
	n, err := rd.r.Discard(8 * nFloats)
	rd.left -= int64(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		rd.err = err
	}
}

// writer is the output counterpart of reader.
type writer struct {
	w   *bufio.Writer
	err error
}

func (wr *writer) write(data interface{}) {
	if wr.err != nil {
		return
	}
	wr.err = binary.Write(wr.w, order, data)
}

func (wr *writer) writeInt32(n int) { wr.write(int32(n)) }

func (wr *writer) writeInts(xs []int) {
	buf := make([]int32, len(xs))
	for i := range xs {
		buf[i] = int32(xs[i])
	}
	wr.write(buf)
}

func (wr *writer) pad(nFloats int) {
	if nFloats > 0 {
		wr.write(make([]float64, nFloats))
	}
}

// createFile opens path for writing and returns a writer over it together
// with a function which flushes and closes the file.
func createFile(path string) (*writer, func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	wr := &writer{w: bufio.NewWriter(f)}
	closer := func() error {
		if wr.err == nil {
			wr.err = wr.w.Flush()
		}
		if err := f.Close(); err != nil && wr.err == nil {
			wr.err = err
		}
		if wr.err != nil {
			return fmt.Errorf("writing %s: %w", path, wr.err)
		}
		return nil
	}
	return wr, closer, nil
}
