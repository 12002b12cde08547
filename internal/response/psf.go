package response

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"
)

// TabulatedPSF is a radially symmetric point-spread function given as
// brightness samples at increasing angular distances (degrees). Between
// samples the profile is interpolated linearly; beyond the last sample it
// is zero.
type TabulatedPSF struct {
	radii    []float64
	values   []float64
	fn       interp.PiecewiseLinear
	integral float64
}

// NewTabulatedPSF validates the table and precomputes the profile integral.
func NewTabulatedPSF(radii, values []float64) (*TabulatedPSF, error) {
	if len(radii) < 2 || len(radii) != len(values) {
		return nil, fmt.Errorf("%w: psf table needs matching radii and values, got %d and %d",
			ErrMalformed, len(radii), len(values))
	}
	if radii[0] != 0 {
		return nil, fmt.Errorf("%w: psf table must start at radius 0, got %v", ErrMalformed, radii[0])
	}
	for i := 1; i < len(radii); i++ {
		if !(radii[i] > radii[i-1]) {
			return nil, fmt.Errorf("%w: psf radii not strictly increasing at index %d", ErrMalformed, i)
		}
	}
	for i, v := range values {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: psf value %v at index %d", ErrMalformed, v, i)
		}
	}

	p := &TabulatedPSF{
		radii:  append([]float64(nil), radii...),
		values: append([]float64(nil), values...),
	}
	if err := p.fn.Fit(p.radii, p.values); err != nil {
		return nil, fmt.Errorf("%w: psf table: %v", ErrMalformed, err)
	}

	// Integral over the plane: 2π ∫ r B(r) dr.
	f := make([]float64, len(p.radii))
	for i, r := range p.radii {
		f[i] = 2 * math.Pi * r * p.values[i]
	}
	p.integral = integrate.Trapezoidal(p.radii, f)
	if !(p.integral > 0) {
		return nil, fmt.Errorf("%w: psf integrates to %v", ErrMalformed, p.integral)
	}
	return p, nil
}

// NewGaussianPSF tabulates a 2-D Gaussian profile of width sigma (degrees)
// out to five sigma.
func NewGaussianPSF(sigma float64) (*TabulatedPSF, error) {
	if !(sigma > 0) {
		return nil, fmt.Errorf("%w: gaussian sigma %v", ErrMalformed, sigma)
	}
	const n = 201
	radii := make([]float64, n)
	values := make([]float64, n)
	for i := range radii {
		r := 5 * sigma * float64(i) / float64(n-1)
		radii[i] = r
		values[i] = math.Exp(-0.5 * r * r / (sigma * sigma))
	}
	return NewTabulatedPSF(radii, values)
}

// Brightness returns the profile at angular distance r (degrees).
func (p *TabulatedPSF) Brightness(r float64) float64 {
	if r < 0 || r > p.MaxRadius() {
		return 0
	}
	return p.fn.Predict(r)
}

// MaxRadius returns the largest tabulated radius.
func (p *TabulatedPSF) MaxRadius() float64 {
	return p.radii[len(p.radii)-1]
}

// Integral returns the integral of the profile over the plane, in the
// profile's units times square degrees.
func (p *TabulatedPSF) Integral() float64 {
	return p.integral
}

// Table returns copies of the tabulated radii and values.
func (p *TabulatedPSF) Table() (radii, values []float64) {
	return append([]float64(nil), p.radii...), append([]float64(nil), p.values...)
}

// ContainmentRadius returns the radius (degrees) enclosing fraction of the
// PSF integral.
func (p *TabulatedPSF) ContainmentRadius(fraction float64) float64 {
	target := fraction * p.integral
	acc := 0.0
	for i := 1; i < len(p.radii); i++ {
		r0, r1 := p.radii[i-1], p.radii[i]
		step := 0.5 * (r1 - r0) * 2 * math.Pi * (r0*p.values[i-1] + r1*p.values[i])
		if acc+step >= target {
			if step == 0 {
				return r0
			}
			return r0 + (r1-r0)*(target-acc)/step
		}
		acc += step
	}
	return p.MaxRadius()
}
