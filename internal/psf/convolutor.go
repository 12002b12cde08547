// Package psf applies a radial point-spread function to flat-sky grids.
package psf

import (
	"errors"
	"fmt"
	"math"

	"github.com/hawc-hal/hal/internal/flatsky"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// Profile is a radially symmetric PSF. *response.TabulatedPSF implements it.
type Profile interface {
	// Brightness returns the profile at angular distance r in degrees.
	Brightness(r float64) float64
	// MaxRadius is the distance beyond which Brightness is zero.
	MaxRadius() float64
	// Integral is the integral of Brightness over the plane in deg².
	Integral() float64
}

// ErrShape is returned when a grid does not match the convolutor's projection.
var ErrShape = errors.New("psf: grid shape mismatch")

// Convolutor convolves grids of one projection with one PSF. The kernel
// spectrum is computed once; each convolution costs two 2-D FFTs. A
// Convolutor is not safe for concurrent use.
type Convolutor struct {
	proj   *flatsky.Projection
	kernel *mat.Dense
	// fh x fw FFT grid, large enough that circular convolution of the
	// zero-padded image equals linear convolution.
	fh, fw   int
	spectrum []complex128
	work     []complex128
	col      []complex128
	rowFFT   *fourier.CmplxFFT
	colFFT   *fourier.CmplxFFT
}

// NewConvolutor samples profile on the pixels of proj, normalises the
// kernel to unit sum and precomputes its spectrum.
func NewConvolutor(profile Profile, proj *flatsky.Projection) (*Convolutor, error) {
	if !(profile.MaxRadius() > 0) {
		return nil, fmt.Errorf("psf: profile max radius %v", profile.MaxRadius())
	}

	half := int(math.Ceil(profile.MaxRadius() / proj.PixelSize))
	// no point in a kernel larger than twice the grid
	if lim := max(proj.Width, proj.Height); half > lim {
		half = lim
	}
	size := 2*half + 1
	kernel := mat.NewDense(size, size, nil)
	sum := 0.0
	for ky := 0; ky < size; ky++ {
		for kx := 0; kx < size; kx++ {
			r := math.Hypot(float64(kx-half), float64(ky-half)) * proj.PixelSize
			v := profile.Brightness(r)
			kernel.Set(ky, kx, v)
			sum += v
		}
	}
	if !(sum > 0) {
		// narrower than a pixel
		kernel.Zero()
		kernel.Set(half, half, 1)
		sum = 1
	}
	kernel.Scale(1/sum, kernel)

	c := &Convolutor{
		proj:   proj,
		kernel: kernel,
		fh:     nextPow2(proj.Height + size - 1),
		fw:     nextPow2(proj.Width + size - 1),
	}
	c.rowFFT = fourier.NewCmplxFFT(c.fw)
	c.colFFT = fourier.NewCmplxFFT(c.fh)
	c.work = make([]complex128, c.fh*c.fw)
	c.col = make([]complex128, c.fh)

	// Kernel centre goes to (0, 0), negative offsets wrap around.
	c.spectrum = make([]complex128, c.fh*c.fw)
	for ky := 0; ky < size; ky++ {
		y := mod(ky-half, c.fh)
		for kx := 0; kx < size; kx++ {
			x := mod(kx-half, c.fw)
			c.spectrum[y*c.fw+x] = complex(kernel.At(ky, kx), 0)
		}
	}
	c.fft2(c.spectrum, true)
	return c, nil
}

// Kernel returns the normalised PSF kernel, centred in an odd-sized matrix.
func (c *Convolutor) Kernel() mat.Matrix { return c.kernel }

// Projection returns the flat-sky projection the convolutor works on.
func (c *Convolutor) Projection() *flatsky.Projection { return c.proj }

// ExtendedSourceImage convolves grid with the PSF and returns a grid of the
// same shape. Flux is assumed to be zero outside the grid.
func (c *Convolutor) ExtendedSourceImage(grid mat.Matrix) (*mat.Dense, error) {
	h, w := grid.Dims()
	if h != c.proj.Height || w != c.proj.Width {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrShape, w, h, c.proj.Width, c.proj.Height)
	}

	for i := range c.work {
		c.work[i] = 0
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c.work[y*c.fw+x] = complex(grid.At(y, x), 0)
		}
	}

	c.fft2(c.work, true)
	for i, s := range c.spectrum {
		c.work[i] *= s
	}
	c.fft2(c.work, false)

	// gonum transforms are unnormalised
	scale := 1 / float64(c.fh*c.fw)
	out := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(y, x, real(c.work[y*c.fw+x])*scale)
		}
	}
	return out, nil
}

// fft2 transforms a row-major fh x fw array in place, rows then columns.
func (c *Convolutor) fft2(a []complex128, forward bool) {
	for y := 0; y < c.fh; y++ {
		row := a[y*c.fw : (y+1)*c.fw]
		if forward {
			c.rowFFT.Coefficients(row, row)
		} else {
			c.rowFFT.Sequence(row, row)
		}
	}
	for x := 0; x < c.fw; x++ {
		for y := 0; y < c.fh; y++ {
			c.col[y] = a[y*c.fw+x]
		}
		if forward {
			c.colFFT.Coefficients(c.col, c.col)
		} else {
			c.colFFT.Sequence(c.col, c.col)
		}
		for y := 0; y < c.fh; y++ {
			a[y*c.fw+x] = c.col[y]
		}
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func mod(i, n int) int {
	r := i % n
	if r < 0 {
		r += n
	}
	return r
}
