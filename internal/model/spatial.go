package model

import (
	"fmt"
	"math"

	"github.com/hawc-hal/hal/internal/sky"
)

const deg = math.Pi / 180

// SpatialShape is an energy-independent surface brightness normalised to
// unit integral, in 1/deg².
type SpatialShape interface {
	Brightness(ra, dec float64) float64
	Center() (ra, dec float64)
	// Extent is the angular distance in degrees beyond which the brightness
	// is zero or negligible.
	Extent() float64
	Parameters() []float64
}

// Gaussian is a symmetric 2-D Gaussian of width Sigma degrees.
type Gaussian struct {
	RA, Dec float64
	Sigma   float64
}

func (g *Gaussian) Brightness(ra, dec float64) float64 {
	return gaussianBrightness(sky.Separation(g.RA, g.Dec, ra, dec), g.Sigma)
}

func gaussianBrightness(r, sigma float64) float64 {
	s2 := sigma * sigma
	return math.Exp(-0.5*r*r/s2) / (2 * math.Pi * s2)
}

func (g *Gaussian) Center() (ra, dec float64) { return g.RA, g.Dec }
func (g *Gaussian) Extent() float64           { return 5 * g.Sigma }
func (g *Gaussian) Parameters() []float64     { return []float64{g.RA, g.Dec, g.Sigma} }

// Disk is a uniform disk of Radius degrees.
type Disk struct {
	RA, Dec float64
	Radius  float64
}

func (d *Disk) Brightness(ra, dec float64) float64 {
	if sky.Separation(d.RA, d.Dec, ra, dec) > d.Radius {
		return 0
	}
	// spherical cap area in deg²
	area := 2 * math.Pi * (1 - math.Cos(d.Radius*deg)) / (deg * deg)
	return 1 / area
}

func (d *Disk) Center() (ra, dec float64) { return d.RA, d.Dec }
func (d *Disk) Extent() float64           { return d.Radius }
func (d *Disk) Parameters() []float64     { return []float64{d.RA, d.Dec, d.Radius} }

func validateShape(s SpatialShape) error {
	switch sh := s.(type) {
	case nil:
		return fmt.Errorf("%w: missing spatial shape", ErrInvalidSource)
	case *Gaussian:
		if !(sh.Sigma > 0) || sh.Dec < -90 || sh.Dec > 90 {
			return fmt.Errorf("%w: gaussian at (%v, %v) with sigma %v", ErrInvalidSource, sh.RA, sh.Dec, sh.Sigma)
		}
	case *Disk:
		if !(sh.Radius > 0) || sh.Radius >= 180 || sh.Dec < -90 || sh.Dec > 90 {
			return fmt.Errorf("%w: disk at (%v, %v) with radius %v", ErrInvalidSource, sh.RA, sh.Dec, sh.Radius)
		}
	}
	return nil
}

// SpatialTemplate3D is an energy-dependent surface brightness in
// 1/(TeV cm² s deg²).
type SpatialTemplate3D interface {
	Brightness(ra, dec, energy float64) float64
	Parameters() []float64
}

// SeparableTemplate is a Gaussian morphology whose width scales with energy
// as Sigma (E/Pivot)^WidthIndex, times a spectrum.
type SeparableTemplate struct {
	RA, Dec    float64
	Sigma      float64
	WidthIndex float64
	Pivot      float64
	Spectrum   Spectrum
}

// SigmaAt returns the Gaussian width in degrees at energy (TeV).
func (t *SeparableTemplate) SigmaAt(energy float64) float64 {
	return t.Sigma * math.Pow(energy/t.Pivot, t.WidthIndex)
}

func (t *SeparableTemplate) Brightness(ra, dec, energy float64) float64 {
	r := sky.Separation(t.RA, t.Dec, ra, dec)
	return t.Spectrum.Evaluate(energy) * gaussianBrightness(r, t.SigmaAt(energy))
}

func (t *SeparableTemplate) Parameters() []float64 {
	return append([]float64{t.RA, t.Dec, t.Sigma, t.WidthIndex, t.Pivot}, t.Spectrum.Parameters()...)
}

func validateTemplate(t SpatialTemplate3D) error {
	switch tp := t.(type) {
	case nil:
		return fmt.Errorf("%w: missing spatial template", ErrInvalidSource)
	case *SeparableTemplate:
		if !(tp.Sigma > 0) || !(tp.Pivot > 0) {
			return fmt.Errorf("%w: template sigma %v pivot %v", ErrInvalidSource, tp.Sigma, tp.Pivot)
		}
		return validateSpectrum(tp.Spectrum)
	}
	return nil
}
