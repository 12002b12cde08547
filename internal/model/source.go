// Package model describes the sky model: a set of named point and extended
// sources, each with a spectrum and a morphology.
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateSource is returned when a source name is already in use.
	ErrDuplicateSource = errors.New("model: duplicate source name")
	// ErrInvalidSource is returned for sources with unusable parameters.
	ErrInvalidSource = errors.New("model: invalid source")
)

// Kind tags the three source variants.
type Kind int

const (
	Point Kind = iota
	Extended2D
	Extended3D
)

func (k Kind) String() string {
	switch k {
	case Point:
		return "point"
	case Extended2D:
		return "extended-2d"
	case Extended3D:
		return "extended-3d"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Extended reports whether sources of this kind are convolved with the PSF
// on the flat-sky grid.
func (k Kind) Extended() bool { return k != Point }

// Source is implemented only by *PointSource, *ExtendedSource2D and
// *ExtendedSource3D.
type Source interface {
	Name() string
	Kind() Kind
	// Parameters returns the current values of every free or fixed
	// parameter, in a stable order.
	Parameters() []float64
	Validate() error

	source()
}

// PointSource is an unresolved source at (RA, Dec) degrees.
type PointSource struct {
	name     string
	RA, Dec  float64
	Spectrum Spectrum
}

// NewPointSource returns a point source.
func NewPointSource(name string, ra, dec float64, spectrum Spectrum) *PointSource {
	return &PointSource{name: name, RA: ra, Dec: dec, Spectrum: spectrum}
}

func (p *PointSource) Name() string { return p.name }
func (p *PointSource) Kind() Kind   { return Point }
func (p *PointSource) source()      {}

func (p *PointSource) Parameters() []float64 {
	return append([]float64{p.RA, p.Dec}, p.Spectrum.Parameters()...)
}

func (p *PointSource) Validate() error {
	if p.Dec < -90 || p.Dec > 90 {
		return fmt.Errorf("%w: point source %s at declination %v", ErrInvalidSource, p.name, p.Dec)
	}
	if err := validateSpectrum(p.Spectrum); err != nil {
		return fmt.Errorf("point source %s: %w", p.name, err)
	}
	return nil
}

// ExtendedSource2D has an energy-independent morphology times a spectrum.
type ExtendedSource2D struct {
	name     string
	Shape    SpatialShape
	Spectrum Spectrum
}

// NewExtendedSource2D returns an extended source with a 2-D morphology.
func NewExtendedSource2D(name string, shape SpatialShape, spectrum Spectrum) *ExtendedSource2D {
	return &ExtendedSource2D{name: name, Shape: shape, Spectrum: spectrum}
}

func (e *ExtendedSource2D) Name() string { return e.name }
func (e *ExtendedSource2D) Kind() Kind   { return Extended2D }
func (e *ExtendedSource2D) source()      {}

func (e *ExtendedSource2D) Parameters() []float64 {
	return append(e.Shape.Parameters(), e.Spectrum.Parameters()...)
}

func (e *ExtendedSource2D) Validate() error {
	if err := validateShape(e.Shape); err != nil {
		return fmt.Errorf("extended source %s: %w", e.name, err)
	}
	if err := validateSpectrum(e.Spectrum); err != nil {
		return fmt.Errorf("extended source %s: %w", e.name, err)
	}
	return nil
}

// ExtendedSource3D has a morphology that depends on energy.
type ExtendedSource3D struct {
	name     string
	Template SpatialTemplate3D
}

// NewExtendedSource3D returns an extended source with an energy-dependent
// morphology.
func NewExtendedSource3D(name string, template SpatialTemplate3D) *ExtendedSource3D {
	return &ExtendedSource3D{name: name, Template: template}
}

func (e *ExtendedSource3D) Name() string          { return e.name }
func (e *ExtendedSource3D) Kind() Kind            { return Extended3D }
func (e *ExtendedSource3D) source()               {}
func (e *ExtendedSource3D) Parameters() []float64 { return e.Template.Parameters() }

func (e *ExtendedSource3D) Validate() error {
	if err := validateTemplate(e.Template); err != nil {
		return fmt.Errorf("extended source %s: %w", e.name, err)
	}
	return nil
}
