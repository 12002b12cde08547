// Package hal evaluates sky models against binned HEALPix data.
//
// An Analysis holds the dataset (map tree), the detector response and the
// region of interest. After SetModel it can score the model with a Poisson
// log-likelihood over the active analysis bins, as many times as a fitting
// loop needs, and draw simulated datasets from it.
//
// An Analysis is not safe for concurrent use. SetModel must not run while a
// likelihood evaluation is in flight; use Clone to evaluate in parallel.
package hal

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
	"github.com/hawc-hal/hal/internal/convolved"
	"github.com/hawc-hal/hal/internal/flatsky"
	"github.com/hawc-hal/hal/internal/healpix"
	"github.com/hawc-hal/hal/internal/likelihood"
	"github.com/hawc-hal/hal/internal/maptree"
	"github.com/hawc-hal/hal/internal/model"
	"github.com/hawc-hal/hal/internal/monitoring"
	"github.com/hawc-hal/hal/internal/psf"
	"github.com/hawc-hal/hal/internal/response"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrMisaligned is returned when the response and the map tree do not
	// have the same number of analysis bins.
	ErrMisaligned = errors.New("hal: response and map tree are not aligned")
	// ErrInvalidBinRange is returned for active bin ranges outside the
	// map tree.
	ErrInvalidBinRange = errors.New("hal: invalid analysis bin range")
	// ErrStaleCache is returned when sources were added to or removed from
	// the model after it was set.
	ErrStaleCache = errors.New("hal: the number of sources has changed, set the model again")
	// ErrLowCounts is returned by summaries of bins with too few counts for
	// the Gaussian approximation.
	ErrLowCounts = errors.New("hal: low-counts case not implemented")
	// ErrNoModel is returned by operations that need a model before one
	// was set.
	ErrNoModel = errors.New("hal: no model set")
)

// DefaultFlatSkyPixelSize is the flat-sky pixel side in degrees.
const DefaultFlatSkyPixelSize = 0.17

// ROI is the region of interest an analysis is restricted to.
type ROI interface {
	Center() (ra, dec float64)
	DataRadius() float64
	ModelRadius() float64
	// ActivePixels returns the ascending HEALPix pixels scored at nside.
	ActivePixels(nside int) ([]int, error)
	// FlatSkyProjection returns a grid covering the model radius.
	FlatSkyProjection(pixelSize float64) (*flatsky.Projection, error)
	Display(w io.Writer)
}

// Options tunes an analysis. The zero value uses the defaults.
type Options struct {
	// FlatSkyPixelSize is the side of a flat-sky pixel in degrees.
	FlatSkyPixelSize float64
}

// Analysis is a likelihood analysis of one dataset.
type Analysis struct {
	name string
	id   string
	logf func(format string, v ...interface{})

	roi  ROI
	tree *maptree.MapTree
	resp *response.Response

	proj       *flatsky.Projection
	transforms []*flatsky.HealpixTransform
	central    []*response.Bin
	decBinID   int
	builder    *convolved.Builder

	activeLo, activeHi int

	model       *model.Model
	points      *convolved.Container
	extended    *convolved.Container
	convolutors []*psf.Convolutor

	bias []likelihood.Bias

	sim *simCache
}

// New sets up an analysis of tree with resp, restricted to roi. The bins
// of tree must cover exactly the ROI's active pixels at their nside.
func New(name string, tree *maptree.MapTree, resp *response.Response, roi ROI, opts Options) (*Analysis, error) {
	if tree.Len() != resp.NEnergyPlanes() {
		return nil, fmt.Errorf("%w: %d map tree bins, %d response planes", ErrMisaligned, tree.Len(), resp.NEnergyPlanes())
	}

	pixelSize := opts.FlatSkyPixelSize
	if pixelSize == 0 {
		pixelSize = DefaultFlatSkyPixelSize
	}
	proj, err := roi.FlatSkyProjection(pixelSize)
	if err != nil {
		return nil, fmt.Errorf("flat-sky projection: %w", err)
	}

	// one transform per nside
	byNSide := make(map[int]*flatsky.HealpixTransform)
	transforms := make([]*flatsky.HealpixTransform, tree.Len())
	for i, b := range tree.Bins() {
		nside := b.NSide()
		active, err := roi.ActivePixels(nside)
		if err != nil {
			return nil, fmt.Errorf("active pixels of bin %s: %w", b.Name, err)
		}
		if !slices.Equal(active, b.Observation().Pixels()) {
			return nil, fmt.Errorf("%w: bin %s does not cover the ROI's %d active pixels at nside %d",
				maptree.ErrPixelMismatch, b.Name, len(active), nside)
		}
		t, ok := byNSide[nside]
		if !ok {
			if t, err = flatsky.NewHealpixTransform(proj, nside, active); err != nil {
				return nil, err
			}
			byNSide[nside] = t
		}
		transforms[i] = t
	}

	_, centerDec := roi.Center()
	central, decBinID := resp.BinsNear(centerDec)

	a := &Analysis{
		name:       name,
		id:         uuid.New().String(),
		logf:       monitoring.Component("hal"),
		roi:        roi,
		tree:       tree,
		resp:       resp,
		proj:       proj,
		transforms: transforms,
		central:    central,
		decBinID:   decBinID,
		builder:    convolved.NewBuilder(proj, resp, central),
		activeLo:   0,
		activeHi:   tree.Len() - 1,
	}
	a.logf("Using PSF from dec bin %d for source %s", decBinID, name)
	a.computeBiases()
	return a, nil
}

// Name returns the analysis name.
func (a *Analysis) Name() string { return a.name }

// ID returns a unique identifier of this analysis instance.
func (a *Analysis) ID() string { return a.id }

// MapTree returns the dataset.
func (a *Analysis) MapTree() *maptree.MapTree { return a.tree }

// Response returns the detector response.
func (a *Analysis) Response() *response.Response { return a.resp }

// ROI returns the region of interest.
func (a *Analysis) ROI() ROI { return a.roi }

// Projection returns the flat-sky grid models are evaluated on.
func (a *Analysis) Projection() *flatsky.Projection { return a.proj }

// Model returns the current model, or nil.
func (a *Analysis) Model() *model.Model { return a.model }

// computeBiases precomputes the likelihood constants of every bin.
func (a *Analysis) computeBiases() {
	a.bias = make([]likelihood.Bias, a.tree.Len())
	for i, b := range a.tree.Bins() {
		a.bias[i] = likelihood.ComputeBias(b.Observation().AsPartial(), b.Background().AsPartial())
	}
}

// SetActiveMeasurements restricts the likelihood to bins lo..hi inclusive,
// replacing any previous selection.
func (a *Analysis) SetActiveMeasurements(lo, hi int) error {
	n := a.tree.Len()
	if lo < 0 || lo >= n || hi < 0 || hi >= n || lo > hi {
		return fmt.Errorf("%w: [%d, %d] with %d bins", ErrInvalidBinRange, lo, hi, n)
	}
	a.activeLo, a.activeHi = lo, hi
	return nil
}

// ActiveMeasurements returns the inclusive range of active bins.
func (a *Analysis) ActiveMeasurements() (lo, hi int) {
	return a.activeLo, a.activeHi
}

func (a *Analysis) isActive(i int) bool {
	return i >= a.activeLo && i <= a.activeHi
}

// SetModel assigns m and rebuilds the per-source caches. It must be called
// again whenever sources are added to or removed from m; parameter changes
// are picked up automatically. On error the previous model stays in place.
func (a *Analysis) SetModel(m *model.Model) error {
	if m == nil {
		return ErrNoModel
	}
	points := &convolved.Container{}
	extended := &convolved.Container{}
	for _, src := range m.Sources() {
		e := a.builder.NewEntry(src)
		if src.Kind() == model.Point {
			points.Append(e)
		} else {
			extended.Append(e)
		}
		for i := a.activeLo; i <= a.activeHi; i++ {
			e.SourceMap(i)
		}
	}

	convolutors := a.convolutors
	if extended.Len() > 0 && convolutors == nil {
		convolutors = make([]*psf.Convolutor, len(a.central))
		for i, b := range a.central {
			c, err := psf.NewConvolutor(b.PSF, a.proj)
			if err != nil {
				return fmt.Errorf("psf convolutor for bin %s: %w", b.Name, err)
			}
			convolutors[i] = c
		}
	}

	a.model = m
	a.points = points
	a.extended = extended
	a.convolutors = convolutors
	a.sim = nil
	return nil
}

// checkCache verifies that the model still has the sources it was set with.
func (a *Analysis) checkCache() error {
	if a.model == nil {
		return ErrNoModel
	}
	if np, ne := a.model.NumPointSources(), a.model.NumExtendedSources(); np != a.points.Len() || ne != a.extended.Len() {
		return fmt.Errorf("%w: model has %d point and %d extended sources, cache has %d and %d",
			ErrStaleCache, np, ne, a.points.Len(), a.extended.Len())
	}
	return nil
}

// expectation returns the model counts of bin i at its active pixels, or
// nil when no source contributes.
func (a *Analysis) expectation(i int) ([]float64, error) {
	bin := a.tree.Bin(i)

	var flat *mat.Dense
	if a.points.Len() > 0 {
		sum := a.proj.NewGrid()
		for k := 0; k < a.points.Len(); k++ {
			sum.Add(sum, a.points.At(k).SourceMap(i))
		}
		sum.Scale(bin.NTransits, sum)
		flat = sum
	}

	if a.extended.Len() > 0 {
		sum := a.proj.NewGrid()
		for k := 0; k < a.extended.Len(); k++ {
			sum.Add(sum, a.extended.At(k).SourceMap(i))
		}
		conv, err := a.convolutors[i].ExtendedSourceImage(sum)
		if err != nil {
			return nil, fmt.Errorf("convolve extended sources in bin %s: %w", bin.Name, err)
		}
		conv.Scale(bin.NTransits, conv)
		if flat == nil {
			flat = conv
		} else {
			flat.Add(flat, conv)
		}
	}

	if flat == nil {
		return nil, nil
	}

	// counts per flat pixel -> brightness -> counts per HEALPix pixel
	flat.Scale(1/a.proj.PixelArea(), flat)
	values, err := a.transforms[i].Apply(flat, 0)
	if err != nil {
		return nil, fmt.Errorf("project bin %s to healpix: %w", bin.Name, err)
	}
	floats.Scale(healpix.PixelArea(bin.NSide()), values)
	return values, nil
}

// Expectation returns the model counts of bin i at its active pixels,
// without background. The slice is zero when no source contributes.
func (a *Analysis) Expectation(i int) ([]float64, error) {
	if i < 0 || i >= a.tree.Len() {
		return nil, fmt.Errorf("%w: bin %d", ErrInvalidBinRange, i)
	}
	if err := a.checkCache(); err != nil {
		return nil, err
	}
	m, err := a.expectation(i)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = make([]float64, a.tree.Bin(i).Observation().Len())
	}
	return m, nil
}

// rawLogLikelihood returns the Poisson log-likelihood of every active bin
// without bias corrections, indexed by bin.
func (a *Analysis) rawLogLikelihood() ([]float64, error) {
	if err := a.checkCache(); err != nil {
		return nil, err
	}
	raw := make([]float64, a.tree.Len())
	for i := a.activeLo; i <= a.activeHi; i++ {
		bin := a.tree.Bin(i)
		m, err := a.expectation(i)
		if err != nil {
			return nil, err
		}
		raw[i] = likelihood.PoissonLogLikelihood(bin.Observation().AsPartial(), bin.Background().AsPartial(), m)
	}
	return raw, nil
}

// LogLikelihood returns the log-likelihood of the current model over the
// active bins, offset by the saturated model so that it stays close to
// zero: a model reproducing observation minus background scores about 0.
func (a *Analysis) LogLikelihood() (float64, error) {
	raw, err := a.rawLogLikelihood()
	if err != nil {
		return 0, err
	}
	total := 0.0
	for i := a.activeLo; i <= a.activeHi; i++ {
		total += a.bias[i].Corrected(raw[i])
	}
	return total, nil
}

// AbsoluteLogLikelihood returns the full Poisson log-likelihood, including
// ln(o!), of the current model over the active bins.
func (a *Analysis) AbsoluteLogLikelihood() (float64, error) {
	raw, err := a.rawLogLikelihood()
	if err != nil {
		return 0, err
	}
	total := 0.0
	for i := a.activeLo; i <= a.activeHi; i++ {
		total += raw[i] - a.bias[i].LogFactorial
	}
	return total, nil
}

// SaturatedModelLikelihood returns the absolute log-likelihood of the
// model equal to observation minus background, over the active bins. It
// does not depend on the model.
func (a *Analysis) SaturatedModelLikelihood() float64 {
	total := 0.0
	for i := a.activeLo; i <= a.activeHi; i++ {
		total += a.bias[i].Saturated
	}
	return total
}

// InnerFit returns the log-likelihood. There are no nuisance parameters
// to profile out.
func (a *Analysis) InnerFit() (float64, error) {
	return a.LogLikelihood()
}

// NumberOfDataPoints returns the number of pixels in the active bins.
func (a *Analysis) NumberOfDataPoints() int {
	n := 0
	for i := a.activeLo; i <= a.activeHi; i++ {
		n += a.tree.Bin(i).Observation().Len()
	}
	return n
}

// Clone returns a deep copy of the analysis with its own dataset and
// caches. The clone shares the response, the ROI, the resampling weights
// and the model.
func (a *Analysis) Clone() (*Analysis, error) {
	c := *a
	c.id = uuid.New().String()
	c.tree = a.tree.Clone()
	c.bias = slices.Clone(a.bias)
	c.sim = nil
	c.convolutors = nil
	c.points, c.extended = nil, nil
	if a.model != nil {
		if err := c.SetModel(a.model); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
