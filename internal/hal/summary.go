package hal

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
)

// MinSummaryCounts is the fewest observed counts a bin needs for its
// residual to be summarised with Gaussian errors.
const MinSummaryCounts = 50

// SpectrumPoint summarises data and model counts of one analysis bin.
type SpectrumPoint struct {
	Bin        int
	Name       string
	Data       float64
	Background float64
	// Net is Data minus Background.
	Net float64
	// Model is the source counts, without background.
	Model float64
	// TotalModel is Model plus Background.
	TotalModel float64
	// Residual is (Data - TotalModel) / sqrt(TotalModel).
	Residual float64
}

// Error returns the Poisson error on Net.
func (p SpectrumPoint) Error() float64 { return math.Sqrt(p.Data) }

// SpectrumSummary returns one point per active bin. It fails with
// ErrLowCounts when a bin has fewer than MinSummaryCounts observed counts.
func (a *Analysis) SpectrumSummary() ([]SpectrumPoint, error) {
	if err := a.checkCache(); err != nil {
		return nil, err
	}
	var out []SpectrumPoint
	for i := a.activeLo; i <= a.activeHi; i++ {
		bin := a.tree.Bin(i)
		data := bin.Observation().Sum()
		if data < MinSummaryCounts {
			return nil, fmt.Errorf("%w: bin %s has %.0f counts", ErrLowCounts, bin.Name, data)
		}
		bkg := bin.Background().Sum()

		m, err := a.expectation(i)
		if err != nil {
			return nil, err
		}
		model := 0.0
		if m != nil {
			model = floats.Sum(m)
		}
		total := model + bkg
		out = append(out, SpectrumPoint{
			Bin:        i,
			Name:       bin.Name,
			Data:       data,
			Background: bkg,
			Net:        data - bkg,
			Model:      model,
			TotalModel: total,
			Residual:   (data - total) / math.Sqrt(total),
		})
	}
	return out, nil
}

// Display writes a description of the analysis setup.
func (a *Analysis) Display(w io.Writer) {
	section := func(title string) {
		fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
	}

	fmt.Fprintf(w, "Analysis %s (%s)\n", a.name, a.id)

	section("Region of Interest")
	a.roi.Display(w)

	section("Flat sky projection")
	fmt.Fprintf(w, "Width x height: %d x %d px\n", a.proj.Width, a.proj.Height)
	fmt.Fprintf(w, "Pixel sizes: %.4g deg\n", a.proj.PixelSize)

	section("Response")
	a.resp.Display(w)
	fmt.Fprintf(w, "Central dec bin: %d\n", a.decBinID)
	fmt.Fprintf(w, "PSF 68%% containment (deg):")
	for _, b := range a.central {
		fmt.Fprintf(w, " %s=%.2f", b.Name, b.PSF.ContainmentRadius(0.68))
	}
	fmt.Fprintln(w)

	section("Map Tree")
	a.tree.Display(w)

	section("Active energy/nHit planes")
	fmt.Fprintf(w, "%d to %d (%d pixels)\n", a.activeLo, a.activeHi, a.NumberOfDataPoints())

	if a.model != nil {
		section("Model")
		fmt.Fprintf(w, "%d point sources, %d extended sources\n", a.points.Len(), a.extended.Len())
		fmt.Fprintf(w, "Convolved source cache: %s\n", humanize.Bytes(uint64(a.points.Size()+a.extended.Size())))
	}
}
