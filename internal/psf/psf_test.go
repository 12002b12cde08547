package psf

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/hawc-hal/hal/internal/flatsky"
	"github.com/hawc-hal/hal/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func projection(t *testing.T, w, h int, pix float64) *flatsky.Projection {
	t.Helper()
	p, err := flatsky.NewProjection(120, 20, pix, w, h)
	require.NoError(t, err)
	return p
}

func gaussian(t *testing.T, sigma float64) *response.TabulatedPSF {
	t.Helper()
	p, err := response.NewGaussianPSF(sigma)
	require.NoError(t, err)
	return p
}

// direct computes the "same" linear convolution with zero padding.
func direct(img *mat.Dense, kernel mat.Matrix) *mat.Dense {
	h, w := img.Dims()
	k, _ := kernel.Dims()
	half := k / 2
	out := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := 0.0
			for ky := 0; ky < k; ky++ {
				for kx := 0; kx < k; kx++ {
					sy, sx := y-(ky-half), x-(kx-half)
					if sy < 0 || sy >= h || sx < 0 || sx >= w {
						continue
					}
					s += img.At(sy, sx) * kernel.At(ky, kx)
				}
			}
			out.Set(y, x, s)
		}
	}
	return out
}

func TestConvolutor_Kernel(t *testing.T) {
	c, err := NewConvolutor(gaussian(t, 0.3), projection(t, 20, 16, 0.1))
	require.NoError(t, err)

	k := c.Kernel()
	n, m := k.Dims()
	require.Equal(t, n, m)
	assert.Equal(t, 1, n%2)
	assert.InDelta(t, 1.0, mat.Sum(k), 1e-12)

	half := n / 2
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.InDelta(t, k.At(i, j), k.At(j, i), 1e-15)
			assert.InDelta(t, k.At(i, j), k.At(n-1-i, j), 1e-15)
			assert.LessOrEqual(t, k.At(i, j), k.At(half, half))
		}
	}
}

func TestConvolutor_MatchesDirect(t *testing.T) {
	proj := projection(t, 13, 9, 0.2)
	c, err := NewConvolutor(gaussian(t, 0.25), proj)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	img := proj.NewGrid()
	for y := 0; y < proj.Height; y++ {
		for x := 0; x < proj.Width; x++ {
			img.Set(y, x, rng.Float64())
		}
	}

	got, err := c.ExtendedSourceImage(img)
	require.NoError(t, err)
	want := direct(img, c.Kernel())

	if diff := cmp.Diff(want.RawMatrix().Data, got.RawMatrix().Data, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("fft convolution differs from direct (-want +got):\n%s", diff)
	}

	// the convolutor is reusable
	again, err := c.ExtendedSourceImage(img)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(got, again, 1e-14))
}

func TestConvolutor_ConservesInteriorFlux(t *testing.T) {
	proj := projection(t, 40, 40, 0.1)
	c, err := NewConvolutor(gaussian(t, 0.2), proj)
	require.NoError(t, err)

	img := proj.NewGrid()
	img.Set(20, 20, 3)
	img.Set(19, 21, 1)

	out, err := c.ExtendedSourceImage(img)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, mat.Sum(out), 1e-9)
	assert.Greater(t, out.At(20, 20), out.At(20, 24))
}

func TestConvolutor_Errors(t *testing.T) {
	proj := projection(t, 10, 10, 0.1)
	c, err := NewConvolutor(gaussian(t, 0.2), proj)
	require.NoError(t, err)

	_, err = c.ExtendedSourceImage(mat.NewDense(9, 10, nil))
	assert.ErrorIs(t, err, ErrShape)
}

func TestConvolutor_NarrowPSF(t *testing.T) {
	proj := projection(t, 8, 8, 1)
	c, err := NewConvolutor(gaussian(t, 0.01), proj)
	require.NoError(t, err)

	img := proj.NewGrid()
	img.Set(3, 4, 2)
	out, err := c.ExtendedSourceImage(img)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out.At(3, 4), 1e-12)
	assert.InDelta(t, 2.0, mat.Sum(out), 1e-12)
}

func TestPointSourceImage(t *testing.T) {
	proj := projection(t, 61, 61, 0.05)
	profile := gaussian(t, 0.2)

	img := PointSourceImage(profile, proj, proj.CenterRA, proj.CenterDec)
	assert.InEpsilon(t, 1.0, mat.Sum(img), 5e-3)

	peak := img.At(30, 30)
	r, c := img.Dims()
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			assert.LessOrEqual(t, img.At(y, x), peak)
		}
	}
	assert.InDelta(t, img.At(30, 25), img.At(30, 35), 1e-6)
	assert.InDelta(t, img.At(25, 30), img.At(35, 30), 1e-6)

	// on the edge pixel a bit more than half the flux stays on the grid
	ra, dec := proj.SkyCoords(0, 30)
	edge := PointSourceImage(profile, proj, ra, dec)
	assert.InDelta(t, 0.55, mat.Sum(edge), 0.02)

	// far away: nothing on the grid
	far := PointSourceImage(profile, proj, proj.CenterRA+30, proj.CenterDec)
	assert.Zero(t, mat.Sum(far))

	// behind the tangent plane
	behind := PointSourceImage(profile, proj, proj.CenterRA+180, -proj.CenterDec)
	assert.Zero(t, mat.Sum(behind))
	assert.False(t, math.IsNaN(mat.Sum(behind)))
}
