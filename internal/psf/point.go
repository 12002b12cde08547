package psf

import (
	"math"

	"github.com/hawc-hal/hal/internal/flatsky"
	"github.com/hawc-hal/hal/internal/sky"
	"gonum.org/v1/gonum/mat"
)

// oversample is the number of sub-samples per pixel side used when the PSF
// is evaluated around a point source.
const oversample = 5

// PointSourceImage returns, for every pixel of proj, the fraction of the
// flux of a point source at (ra, dec) that the PSF puts in that pixel.
// Pixels further than the PSF's reach are zero. The total is below one
// when part of the PSF falls outside the grid.
func PointSourceImage(profile Profile, proj *flatsky.Projection, ra, dec float64) *mat.Dense {
	img := proj.NewGrid()

	x0, y0, ok := proj.PixelCoords(ra, dec)
	if !ok {
		return img
	}
	reach := profile.MaxRadius()/proj.PixelSize + 2
	xlo := max(0, int(math.Floor(x0-reach)))
	xhi := min(proj.Width-1, int(math.Ceil(x0+reach)))
	ylo := max(0, int(math.Floor(y0-reach)))
	yhi := min(proj.Height-1, int(math.Ceil(y0+reach)))

	norm := proj.PixelArea() / (profile.Integral() * oversample * oversample)
	for y := ylo; y <= yhi; y++ {
		for x := xlo; x <= xhi; x++ {
			sum := 0.0
			for sy := 0; sy < oversample; sy++ {
				fy := float64(y) + (float64(sy)+0.5)/oversample - 0.5
				for sx := 0; sx < oversample; sx++ {
					fx := float64(x) + (float64(sx)+0.5)/oversample - 0.5
					pra, pdec := proj.SkyCoords(fx, fy)
					sum += profile.Brightness(sky.Separation(ra, dec, pra, pdec))
				}
			}
			img.Set(y, x, sum*norm)
		}
	}
	return img
}
