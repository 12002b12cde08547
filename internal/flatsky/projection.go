// Package flatsky defines the flat-sky grid used to evaluate and convolve
// source models, and the transforms between that grid and the HEALPix
// pixels of the region of interest.
//
// The grid is a gnomonic (tangent-plane) projection centred on the ROI.
// Pixel (x, y) has its centre at column x, row y; RA grows towards
// decreasing x like a sky image. Grids are stored as *mat.Dense with
// Height rows and Width columns.
package flatsky

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const deg = math.Pi / 180

// ErrInvalidProjection is returned for non-positive sizes or pixel scales.
var ErrInvalidProjection = errors.New("flatsky: invalid projection")

// Projection is a square-pixel gnomonic grid around a sky position.
type Projection struct {
	Width, Height int
	// PixelSize is the side of one pixel in degrees.
	PixelSize float64
	// CenterRA and CenterDec give the tangent point in degrees.
	CenterRA, CenterDec float64
}

// NewProjection validates and returns a projection.
func NewProjection(ra, dec, pixelSize float64, width, height int) (*Projection, error) {
	if width < 2 || height < 2 {
		return nil, fmt.Errorf("%w: grid %dx%d is too small", ErrInvalidProjection, width, height)
	}
	if !(pixelSize > 0) {
		return nil, fmt.Errorf("%w: pixel size %v", ErrInvalidProjection, pixelSize)
	}
	if dec < -90 || dec > 90 {
		return nil, fmt.Errorf("%w: declination %v", ErrInvalidProjection, dec)
	}
	return &Projection{
		Width:     width,
		Height:    height,
		PixelSize: pixelSize,
		CenterRA:  ra,
		CenterDec: dec,
	}, nil
}

// PixelArea returns the area of one flat-sky pixel in square degrees.
func (p *Projection) PixelArea() float64 {
	return p.PixelSize * p.PixelSize
}

// NPix returns the number of pixels in the grid.
func (p *Projection) NPix() int {
	return p.Width * p.Height
}

// NewGrid allocates a zeroed grid with the projection's shape.
func (p *Projection) NewGrid() *mat.Dense {
	return mat.NewDense(p.Height, p.Width, nil)
}

func (p *Projection) center() (cx, cy float64) {
	return float64(p.Width-1) / 2, float64(p.Height-1) / 2
}

// PixelCoords returns the fractional pixel coordinates of (ra, dec).
// ok is false for positions more than 90 degrees from the tangent point,
// which have no gnomonic image.
func (p *Projection) PixelCoords(ra, dec float64) (x, y float64, ok bool) {
	sd0, cd0 := math.Sincos(p.CenterDec * deg)
	sd, cd := math.Sincos(dec * deg)
	sda, cda := math.Sincos((ra - p.CenterRA) * deg)

	cosc := sd0*sd + cd0*cd*cda
	if cosc <= 0 {
		return 0, 0, false
	}
	xi := cd * sda / cosc
	eta := (cd0*sd - sd0*cd*cda) / cosc

	cx, cy := p.center()
	x = cx - xi/deg/p.PixelSize
	y = cy + eta/deg/p.PixelSize
	return x, y, true
}

// SkyCoords returns the equatorial position (degrees) of pixel coordinates
// (x, y). RA is normalised to [0, 360).
func (p *Projection) SkyCoords(x, y float64) (ra, dec float64) {
	cx, cy := p.center()
	xi := -(x - cx) * p.PixelSize * deg
	eta := (y - cy) * p.PixelSize * deg

	rho := math.Hypot(xi, eta)
	if rho == 0 {
		return normRA(p.CenterRA), p.CenterDec
	}
	c := math.Atan(rho)
	sc, cc := math.Sincos(c)
	sd0, cd0 := math.Sincos(p.CenterDec * deg)

	dec = math.Asin(cc*sd0+eta*sc*cd0/rho) / deg
	ra = p.CenterRA + math.Atan2(xi*sc, rho*cd0*cc-eta*sd0*sc)/deg
	return normRA(ra), dec
}

func normRA(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}

// Contains reports whether fractional pixel coordinates fall inside the
// convex hull of the grid's pixel centres.
func (p *Projection) Contains(x, y float64) bool {
	return x >= 0 && y >= 0 && x <= float64(p.Width-1) && y <= float64(p.Height-1)
}

func (p *Projection) String() string {
	return fmt.Sprintf("%d x %d px, %.4g deg/px, centre (%.4f, %.4f)",
		p.Width, p.Height, p.PixelSize, p.CenterRA, p.CenterDec)
}
