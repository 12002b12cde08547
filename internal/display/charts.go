package display

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/hawc-hal/hal/internal/flatsky"
	"github.com/hawc-hal/hal/internal/hal"
	"github.com/hawc-hal/hal/internal/healpix"
	"github.com/hawc-hal/hal/internal/maptree"
	"gonum.org/v1/gonum/mat"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// RenderFitCharts writes an HTML page with, for each active bin, the model,
// the background-subtracted data and the residual significance per pixel,
// followed by the excess stacked over the active bins.
func RenderFitCharts(a *hal.Analysis, w io.Writer) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Fit of %s", a.Name())

	lo, hi := a.ActiveMeasurements()
	ra0, dec0 := a.ROI().Center()
	pad := a.ROI().DataRadius()
	for i := lo; i <= hi; i++ {
		bin := a.MapTree().Bin(i)
		model, err := a.Expectation(i)
		if err != nil {
			return err
		}
		obs := bin.Observation().AsPartial()
		bkg := bin.Background().AsPartial()

		excess := make([]float64, len(obs))
		residual := make([]float64, len(obs))
		for k := range obs {
			excess[k] = obs[k] - bkg[k]
			residual[k] = significance(obs[k], bkg[k]+model[k])
		}

		nside := bin.NSide()
		pixels := bin.Observation().Pixels()
		for _, m := range []struct {
			title  string
			values []float64
		}{
			{"model", model},
			{"excess", excess},
			{"residual", residual},
		} {
			page.AddCharts(skyScatter(fmt.Sprintf("Bin %s %s", bin.Name, m.title), nside, pixels, m.values, ra0, dec0, pad))
		}
	}

	stacked, err := stackedExcess(a)
	if err != nil {
		return err
	}
	page.AddCharts(flatHeatmap(fmt.Sprintf("Stacked excess, bins %d-%d", lo, hi), a.Projection(), stacked))
	return page.Render(w)
}

// significance is (data - expected) / sqrt(expected), or 0 where nothing
// is expected.
func significance(data, expected float64) float64 {
	if expected <= 0 {
		return 0
	}
	return (data - expected) / math.Sqrt(expected)
}

// stackedExcess sums the background-subtracted counts of the active bins on
// the analysis' flat-sky grid. Bins are stacked per nside, then painted.
func stackedExcess(a *hal.Analysis) (*mat.Dense, error) {
	lo, hi := a.ActiveMeasurements()
	var nsides []int
	groups := make(map[int][]*maptree.AnalysisBin)
	for i := lo; i <= hi; i++ {
		b := a.MapTree().Bin(i)
		if _, ok := groups[b.NSide()]; !ok {
			nsides = append(nsides, b.NSide())
		}
		groups[b.NSide()] = append(groups[b.NSide()], b)
	}

	proj := a.Projection()
	total := proj.NewGrid()
	for _, nside := range nsides {
		dense, err := StackedMap(groups[nside])
		if err != nil {
			return nil, err
		}
		var pixels []int
		var values []float64
		for p, v := range dense {
			if v != healpix.Unseen {
				pixels = append(pixels, p)
				values = append(values, v)
			}
		}
		grid, err := proj.FromHealpix(values, pixels, nside, 0)
		if err != nil {
			return nil, err
		}
		total.Add(total, grid)
	}
	return total, nil
}

func flatHeatmap(title string, proj *flatsky.Projection, grid *mat.Dense) *charts.HeatMap {
	xs := make([]string, proj.Width)
	for x := range xs {
		xs[x] = fmt.Sprintf("%.1f", (float64(x)-float64(proj.Width-1)/2)*proj.PixelSize)
	}
	ys := make([]string, proj.Height)
	for y := range ys {
		ys[y] = fmt.Sprintf("%.1f", (float64(y)-float64(proj.Height-1)/2)*proj.PixelSize)
	}

	data := make([]opts.HeatMapData, 0, proj.Width*proj.Height)
	lo, hi := math.Inf(1), math.Inf(-1)
	for y := 0; y < proj.Height; y++ {
		for x := 0; x < proj.Width; x++ {
			v := grid.At(y, x)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{x, y, v}})
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if lo >= hi {
		hi = lo + 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "600px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: proj.String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "x offset (deg)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys, Name: "y offset (deg)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(xs).AddSeries("excess", data)
	return hm
}

func skyScatter(title string, nside int, pixels []int, values []float64, ra0, dec0, pad float64) *charts.Scatter {
	data := make([]opts.ScatterData, len(pixels))
	lo, hi := math.Inf(1), math.Inf(-1)
	for k, p := range pixels {
		ra, dec := healpix.RaDec(nside, p)
		// unwrap around the centre
		dra := math.Remainder(ra-ra0, 360)
		data[k] = opts.ScatterData{Value: []interface{}{ra0 + dra, dec, values[k]}}
		lo = math.Min(lo, values[k])
		hi = math.Max(hi, values[k])
	}
	if len(pixels) == 0 {
		lo, hi = 0, 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "600px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("nside=%d pixels=%d", nside, len(pixels))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: ra0 - pad, Max: ra0 + pad, Name: "R.A. (deg)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: dec0 - pad, Max: dec0 + pad, Name: "Dec (deg)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("pixels", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter
}
