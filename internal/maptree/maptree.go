package maptree

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// AnalysisBin is one energy/nHit slice of the dataset.
type AnalysisBin struct {
	Name string
	// NTransits is the exposure of the bin in transits of the source.
	NTransits   float64
	observation *SparseMap
	background  *SparseMap
}

// NewAnalysisBin checks that both maps cover the same pixels, that every
// observed count is strictly positive and that the background is not
// negative.
func NewAnalysisBin(name string, nTransits float64, observation, background *SparseMap) (*AnalysisBin, error) {
	if observation == nil || background == nil {
		return nil, fmt.Errorf("%w: bin %s needs both observation and background", ErrPixelMismatch, name)
	}
	if !(nTransits > 0) {
		return nil, fmt.Errorf("bin %s: number of transits must be positive, got %v", name, nTransits)
	}
	if observation.NSide() != background.NSide() || !slices.Equal(observation.Pixels(), background.Pixels()) {
		return nil, fmt.Errorf("%w: bin %s observation and background cover different pixels", ErrPixelMismatch, name)
	}
	for i, v := range observation.AsPartial() {
		if !(v > 0) {
			return nil, fmt.Errorf("%w: bin %s pixel %d has %v counts", ErrNonPositiveObservation,
				name, observation.Pixels()[i], v)
		}
	}
	for i, v := range background.AsPartial() {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: bin %s pixel %d has background %v", ErrPixelMismatch,
				name, background.Pixels()[i], v)
		}
	}
	return &AnalysisBin{
		Name:        name,
		NTransits:   nTransits,
		observation: observation,
		background:  background,
	}, nil
}

// NSide returns the HEALPix resolution of the bin.
func (b *AnalysisBin) NSide() int { return b.observation.NSide() }

// Observation returns the observed counts.
func (b *AnalysisBin) Observation() *SparseMap { return b.observation }

// Background returns the expected background counts.
func (b *AnalysisBin) Background() *SparseMap { return b.background }

// ReplaceObservation overwrites the observed counts with a simulated draw.
// Zero counts are allowed since a draw may legitimately produce them.
func (b *AnalysisBin) ReplaceObservation(values []float64) error {
	for i, v := range values {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: bin %s simulated count %v at index %d", ErrPixelMismatch, b.Name, v, i)
		}
	}
	return b.observation.SetNewValues(values)
}

// Clone returns a deep copy of the bin's values.
func (b *AnalysisBin) Clone() *AnalysisBin {
	return &AnalysisBin{
		Name:        b.Name,
		NTransits:   b.NTransits,
		observation: b.observation.Clone(),
		background:  b.background.Clone(),
	}
}

// MapTree is the ordered list of analysis bins of a dataset.
type MapTree struct {
	bins []*AnalysisBin
}

// New returns a map tree over bins, which must be non-empty and uniquely
// named.
func New(bins []*AnalysisBin) (*MapTree, error) {
	if len(bins) == 0 {
		return nil, errors.New("maptree: no analysis bins")
	}
	seen := make(map[string]bool, len(bins))
	for _, b := range bins {
		if seen[b.Name] {
			return nil, fmt.Errorf("maptree: duplicate analysis bin %q", b.Name)
		}
		seen[b.Name] = true
	}
	return &MapTree{bins: bins}, nil
}

// Len returns the number of analysis bins.
func (t *MapTree) Len() int { return len(t.bins) }

// Bin returns analysis bin i.
func (t *MapTree) Bin(i int) *AnalysisBin { return t.bins[i] }

// Bins returns all analysis bins in order.
func (t *MapTree) Bins() []*AnalysisBin { return t.bins }

// Clone returns a deep copy of the tree.
func (t *MapTree) Clone() *MapTree {
	bins := make([]*AnalysisBin, len(t.bins))
	for i, b := range t.bins {
		bins[i] = b.Clone()
	}
	return &MapTree{bins: bins}
}

// Display writes one line per analysis bin.
func (t *MapTree) Display(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Bin\tNside\tScheme\tObs counts\tBkg counts\tobs/bkg\tPixels in ROI\tTransits")
	for _, b := range t.bins {
		obs := b.observation.Sum()
		bkg := b.background.Sum()
		ratio := math.NaN()
		if bkg > 0 {
			ratio = obs / bkg
		}
		fmt.Fprintf(tw, "%s\t%d\tRING\t%s\t%s\t%.3f\t%d\t%.2f\n", b.Name, b.NSide(),
			humanize.Commaf(math.Round(obs)), humanize.Commaf(math.Round(bkg)), ratio,
			b.observation.Len(), b.NTransits)
	}
	tw.Flush()
	fmt.Fprintf(w, "This map tree contains %d analysis bins\n", len(t.bins))
}
