// Package roi defines the circular region of interest used by an analysis.
//
// A cone ROI has two radii around the same centre: pixels within the data
// radius are scored by the likelihood, while the flat-sky grid spans the
// larger model radius so that PSF tails of nearby sources are not cut.
package roi

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/hawc-hal/hal/internal/flatsky"
	"github.com/hawc-hal/hal/internal/healpix"
	"github.com/hawc-hal/hal/internal/sky"
	"github.com/soniakeys/unit"
)

// ErrInvalidROI is returned for inconsistent centres or radii.
var ErrInvalidROI = errors.New("roi: invalid region")

// ConeROI is immutable once constructed; the per-nside pixel lists are
// computed lazily and cached.
type ConeROI struct {
	ra, dec     unit.Angle
	dataRadius  unit.Angle
	modelRadius unit.Angle

	mu     sync.Mutex
	active map[int][]int
}

// NewConeROI builds a cone ROI. All arguments are in degrees.
func NewConeROI(ra, dec, dataRadius, modelRadius float64) (*ConeROI, error) {
	if dec < -90 || dec > 90 || math.IsNaN(ra) {
		return nil, fmt.Errorf("%w: centre (%v, %v)", ErrInvalidROI, ra, dec)
	}
	if !(dataRadius > 0) || dataRadius > 90 {
		return nil, fmt.Errorf("%w: data radius %v", ErrInvalidROI, dataRadius)
	}
	if modelRadius < dataRadius || modelRadius > 90 {
		return nil, fmt.Errorf("%w: model radius %v must be between the data radius %v and 90",
			ErrInvalidROI, modelRadius, dataRadius)
	}
	return &ConeROI{
		ra:          unit.AngleFromDeg(sky.NormalizeRA(ra)),
		dec:         unit.AngleFromDeg(dec),
		dataRadius:  unit.AngleFromDeg(dataRadius),
		modelRadius: unit.AngleFromDeg(modelRadius),
		active:      make(map[int][]int),
	}, nil
}

// Center returns the ROI centre in degrees.
func (r *ConeROI) Center() (ra, dec float64) {
	return r.ra.Deg(), r.dec.Deg()
}

// DataRadius returns the radius of the scored region in degrees.
func (r *ConeROI) DataRadius() float64 { return r.dataRadius.Deg() }

// ModelRadius returns the radius of the modelled region in degrees.
func (r *ConeROI) ModelRadius() float64 { return r.modelRadius.Deg() }

// ActivePixels returns the ascending list of HEALPix pixels at nside whose
// centres lie within the data radius. The returned slice is shared and must
// not be modified.
func (r *ConeROI) ActivePixels(nside int) ([]int, error) {
	if err := healpix.CheckNSide(nside); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if pix, ok := r.active[nside]; ok {
		return pix, nil
	}
	ra, dec := r.Center()
	pix := healpix.QueryDisc(nside, ra, dec, r.DataRadius(), sky.Separation)
	if len(pix) == 0 {
		return nil, fmt.Errorf("%w: no pixel centre within %.3f deg at nside %d", ErrInvalidROI, r.DataRadius(), nside)
	}
	r.active[nside] = pix
	return pix, nil
}

// FlatSkyProjection returns a square grid of pixelSize-degree pixels that
// covers the model radius.
func (r *ConeROI) FlatSkyProjection(pixelSize float64) (*flatsky.Projection, error) {
	if !(pixelSize > 0) {
		return nil, fmt.Errorf("%w: pixel size %v", ErrInvalidROI, pixelSize)
	}
	npix := int(math.Ceil(2 * r.ModelRadius() / pixelSize))
	if npix < 2 {
		npix = 2
	}
	ra, dec := r.Center()
	return flatsky.NewProjection(ra, dec, pixelSize, npix, npix)
}

// Display writes a short description of the ROI.
func (r *ConeROI) Display(w io.Writer) {
	ra, dec := r.Center()
	fmt.Fprintf(w, "HEALPix cone ROI centred on (R.A., Dec) = (%.4f, %.4f)\n", ra, dec)
	fmt.Fprintf(w, "Data radius: %.3f deg\n", r.DataRadius())
	fmt.Fprintf(w, "Model radius: %.3f deg\n", r.ModelRadius())
}
