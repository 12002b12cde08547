// Package response models the detector response: for every declination band
// and analysis bin, a PSF and the simulated energy distribution used to
// turn a source spectrum into expected counts.
package response

import (
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrNotFound is returned by loaders for unknown response names.
	ErrNotFound = errors.New("response: not found")
	// ErrMalformed is returned for inconsistent response contents.
	ErrMalformed = errors.New("response: malformed")
)

// Spectrum is a differential photon flux in 1/(TeV cm² s) at an energy in TeV.
type Spectrum func(energy float64) float64

// Bin is the response of one analysis (energy/nHit) bin in one declination
// band. It is read-only after construction.
type Bin struct {
	Name string
	// Declination band in degrees.
	DecMin, DecCenter, DecMax float64
	PSF                       *TabulatedPSF
	// Simulated energy bin centres (TeV), the simulated differential flux at
	// each centre and the number of simulated events detected in this bin.
	SimEnergyCenters      []float64
	SimDifferentialFluxes []float64
	SimSignalEventsPerBin []float64
	// Totals of simulated signal and background events in this bin.
	SimSignalEvents     float64
	SimBackgroundEvents float64

	weights []float64
}

// Validate checks array lengths and values and caches the energy weights.
func (b *Bin) Validate() error {
	n := len(b.SimEnergyCenters)
	if n == 0 || len(b.SimDifferentialFluxes) != n || len(b.SimSignalEventsPerBin) != n {
		return fmt.Errorf("%w: bin %q has %d energies, %d fluxes, %d counts", ErrMalformed,
			b.Name, n, len(b.SimDifferentialFluxes), len(b.SimSignalEventsPerBin))
	}
	if b.PSF == nil {
		return fmt.Errorf("%w: bin %q has no psf", ErrMalformed, b.Name)
	}
	if b.DecMin > b.DecCenter || b.DecCenter > b.DecMax {
		return fmt.Errorf("%w: bin %q declination band [%v, %v, %v]", ErrMalformed,
			b.Name, b.DecMin, b.DecCenter, b.DecMax)
	}
	w := make([]float64, n)
	for i, f := range b.SimDifferentialFluxes {
		if !(f > 0) {
			return fmt.Errorf("%w: bin %q simulated flux %v at %v TeV", ErrMalformed,
				b.Name, f, b.SimEnergyCenters[i])
		}
		w[i] = b.SimSignalEventsPerBin[i] / f
	}
	b.weights = w
	return nil
}

// EnergyWeights returns, per simulated energy bin, the detected events per
// unit of simulated differential flux. Multiplying by a model's differential
// flux at the bin centre gives the expected counts per transit.
func (b *Bin) EnergyWeights() []float64 {
	return b.weights
}

// ExpectedCounts folds spectrum through the simulation and returns the
// expected number of detected events per transit.
func (b *Bin) ExpectedCounts(spectrum Spectrum) float64 {
	total := 0.0
	for i, e := range b.SimEnergyCenters {
		total += b.weights[i] * spectrum(e)
	}
	return total
}

// DecBin is one declination band of the response, in degrees.
type DecBin struct {
	Min, Center, Max float64
}

// Response holds the analysis bins of every declination band.
type Response struct {
	name    string
	decBins []DecBin
	bins    [][]*Bin
}

// New validates and assembles a response. bins[i] holds the analysis bins
// of decBins[i]; every band must have the same number of analysis bins.
func New(name string, decBins []DecBin, bins [][]*Bin) (*Response, error) {
	if len(decBins) == 0 || len(decBins) != len(bins) {
		return nil, fmt.Errorf("%w: %d declination bins with %d bin lists", ErrMalformed, len(decBins), len(bins))
	}
	nPlanes := len(bins[0])
	if nPlanes == 0 {
		return nil, fmt.Errorf("%w: no analysis bins", ErrMalformed)
	}
	for i, list := range bins {
		if len(list) != nPlanes {
			return nil, fmt.Errorf("%w: declination bin %d has %d analysis bins, want %d",
				ErrMalformed, i, len(list), nPlanes)
		}
		for _, b := range list {
			if err := b.Validate(); err != nil {
				return nil, err
			}
		}
	}
	return &Response{name: name, decBins: decBins, bins: bins}, nil
}

// Name returns the name the response was loaded under.
func (r *Response) Name() string { return r.name }

// DecBins returns the declination bands.
func (r *Response) DecBins() []DecBin { return r.decBins }

// Bins returns the analysis bins of declination band i.
func (r *Response) Bins(i int) []*Bin { return r.bins[i] }

// NEnergyPlanes returns the number of analysis bins per declination band.
func (r *Response) NEnergyPlanes() int { return len(r.bins[0]) }

// BinsNear returns the analysis bins of the declination band whose centre is
// closest to dec, and that band's index. Bands are not assumed to be sorted.
func (r *Response) BinsNear(dec float64) ([]*Bin, int) {
	best := 0
	for i, d := range r.decBins {
		if math.Abs(d.Center-dec) < math.Abs(r.decBins[best].Center-dec) {
			best = i
		}
	}
	return r.bins[best], best
}

// Display writes a short description of the response.
func (r *Response) Display(w io.Writer) {
	fmt.Fprintf(w, "Response: %s\n", r.name)
	fmt.Fprintf(w, "Number of dec bins: %d\n", len(r.decBins))
	fmt.Fprintf(w, "Number of energy/nHit planes per dec bin: %d\n", r.NEnergyPlanes())
}
