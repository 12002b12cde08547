package flatsky

import (
	"fmt"

	"github.com/hawc-hal/hal/internal/healpix"
	"github.com/hawc-hal/hal/internal/resample"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// HealpixTransform resamples flat-sky grids onto a fixed list of HEALPix
// pixels. The interpolation weights are computed once at construction.
type HealpixTransform struct {
	proj    *Projection
	nside   int
	pixels  []int
	inside  []bool
	weights *resample.Weights
	scratch []float64
}

// NewHealpixTransform prepares the resampling of proj onto pixels at nside.
func NewHealpixTransform(proj *Projection, nside int, pixels []int) (*HealpixTransform, error) {
	if err := healpix.CheckNSide(nside); err != nil {
		return nil, err
	}

	targets := make([]r2.Vec, len(pixels))
	inside := make([]bool, len(pixels))
	for i, pix := range pixels {
		ra, dec := healpix.RaDec(nside, pix)
		x, y, ok := proj.PixelCoords(ra, dec)
		if ok {
			targets[i] = r2.Vec{X: x, Y: y}
			inside[i] = proj.Contains(x, y)
		}
	}

	w, err := resample.Prepare(proj.Width, proj.Height, targets)
	if err != nil {
		return nil, fmt.Errorf("prepare flat-sky to healpix weights (nside %d): %w", nside, err)
	}

	return &HealpixTransform{
		proj:    proj,
		nside:   nside,
		pixels:  pixels,
		inside:  inside,
		weights: w,
		scratch: make([]float64, proj.NPix()),
	}, nil
}

// NSide returns the HEALPix resolution of the target pixels.
func (t *HealpixTransform) NSide() int { return t.nside }

// Pixels returns the target pixel list. The slice must not be modified.
func (t *HealpixTransform) Pixels() []int { return t.pixels }

// Apply interpolates grid at every target pixel centre. Pixels whose centres
// fall outside the grid get fill.
func (t *HealpixTransform) Apply(grid mat.Matrix, fill float64) ([]float64, error) {
	r, c := grid.Dims()
	if r != t.proj.Height || c != t.proj.Width {
		return nil, fmt.Errorf("%w: grid is %dx%d, projection is %dx%d",
			resample.ErrDataLength, c, r, t.proj.Width, t.proj.Height)
	}

	data := flatten(grid, t.scratch)
	out, err := t.weights.Apply(data)
	if err != nil {
		return nil, err
	}
	for i, ok := range t.inside {
		if !ok {
			out[i] = fill
		}
	}
	return out, nil
}

// flatten returns the row-major contents of m, reusing buf when m is not a
// contiguous *mat.Dense.
func flatten(m mat.Matrix, buf []float64) []float64 {
	if d, ok := m.(*mat.Dense); ok {
		raw := d.RawMatrix()
		if raw.Stride == raw.Cols {
			return raw.Data[:raw.Rows*raw.Cols]
		}
	}
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			buf[i*c+j] = m.At(i, j)
		}
	}
	return buf
}

// FromHealpix paints HEALPix values onto the flat-sky grid, taking for each
// flat pixel the value of the HEALPix pixel containing its centre. Flat
// pixels whose HEALPix pixel is not in pixels get fill.
func (p *Projection) FromHealpix(values []float64, pixels []int, nside int, fill float64) (*mat.Dense, error) {
	if len(values) != len(pixels) {
		return nil, fmt.Errorf("%w: %d values for %d pixels", resample.ErrDataLength, len(values), len(pixels))
	}
	if err := healpix.CheckNSide(nside); err != nil {
		return nil, err
	}

	index := make(map[int]int, len(pixels))
	for i, pix := range pixels {
		index[pix] = i
	}

	grid := p.NewGrid()
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			ra, dec := p.SkyCoords(float64(x), float64(y))
			if i, ok := index[healpix.PixelAt(nside, ra, dec)]; ok {
				grid.Set(y, x, values[i])
			} else {
				grid.Set(y, x, fill)
			}
		}
	}
	return grid, nil
}
