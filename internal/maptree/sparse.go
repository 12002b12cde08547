// Package maptree holds the binned dataset: per analysis bin, sparse
// observation and background maps over the ROI's HEALPix pixels.
package maptree

import (
	"errors"
	"fmt"

	"github.com/hawc-hal/hal/internal/healpix"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrNonPositiveObservation is returned when an observed map contains a
	// count that is not strictly positive.
	ErrNonPositiveObservation = errors.New("maptree: observation counts must be positive")
	// ErrPixelMismatch is returned for inconsistent pixel lists or values.
	ErrPixelMismatch = errors.New("maptree: pixel mismatch")
)

// SparseMap stores values for an ascending list of HEALPix pixels.
type SparseMap struct {
	nside  int
	pixels []int
	values []float64
}

// NewSparseMap validates and wraps the given pixels and values. Both slices
// are retained; the caller must not modify them afterwards.
func NewSparseMap(nside int, pixels []int, values []float64) (*SparseMap, error) {
	if err := healpix.CheckNSide(nside); err != nil {
		return nil, err
	}
	if len(pixels) != len(values) {
		return nil, fmt.Errorf("%w: %d pixels with %d values", ErrPixelMismatch, len(pixels), len(values))
	}
	npix := healpix.NPix(nside)
	for i, p := range pixels {
		if p < 0 || p >= npix {
			return nil, fmt.Errorf("%w: pixel %d out of range for nside %d", ErrPixelMismatch, p, nside)
		}
		if i > 0 && p <= pixels[i-1] {
			return nil, fmt.Errorf("%w: pixels not strictly ascending at index %d", ErrPixelMismatch, i)
		}
	}
	return &SparseMap{nside: nside, pixels: pixels, values: values}, nil
}

// NSide returns the HEALPix resolution of the map.
func (m *SparseMap) NSide() int { return m.nside }

// Pixels returns the pixel list. The slice must not be modified.
func (m *SparseMap) Pixels() []int { return m.pixels }

// AsPartial returns the values aligned with Pixels. The slice must not be
// modified; use SetNewValues to replace it.
func (m *SparseMap) AsPartial() []float64 { return m.values }

// Len returns the number of pixels.
func (m *SparseMap) Len() int { return len(m.pixels) }

// Sum returns the total of all values.
func (m *SparseMap) Sum() float64 {
	return floats.Sum(m.values)
}

// SetNewValues replaces the values. The slice is retained.
func (m *SparseMap) SetNewValues(values []float64) error {
	if len(values) != len(m.pixels) {
		return fmt.Errorf("%w: %d values for %d pixels", ErrPixelMismatch, len(values), len(m.pixels))
	}
	m.values = values
	return nil
}

// AsDense expands the map to a full-sky array, flagging missing pixels with
// healpix.Unseen.
func (m *SparseMap) AsDense() []float64 {
	out := make([]float64, healpix.NPix(m.nside))
	for i := range out {
		out[i] = healpix.Unseen
	}
	for i, p := range m.pixels {
		out[p] = m.values[i]
	}
	return out
}

// Clone returns a copy that shares the immutable pixel list but owns its
// values.
func (m *SparseMap) Clone() *SparseMap {
	return &SparseMap{
		nside:  m.nside,
		pixels: m.pixels,
		values: append([]float64(nil), m.values...),
	}
}
