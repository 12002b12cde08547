// Package display renders fit diagnostics: spectrum plots, sky charts and
// stacked excess maps.
package display

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/hawc-hal/hal/internal/hal"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ErrNoPoints is returned when there is nothing to plot.
var ErrNoPoints = errors.New("display: no points")

type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// WriteSpectrumPlot writes a PNG with the net counts per bin and the model
// on top, and the residuals underneath.
func WriteSpectrumPlot(points []hal.SpectrumPoint, path string) error {
	if len(points) == 0 {
		return ErrNoPoints
	}

	net := errorPoints{
		XYs:     make(plotter.XYs, len(points)),
		YErrors: make(plotter.YErrors, len(points)),
	}
	model := make(plotter.XYs, len(points))
	residuals := make(plotter.XYs, len(points))
	for i, p := range points {
		x := float64(p.Bin)
		net.XYs[i] = plotter.XY{X: x, Y: p.Net}
		e := p.Error()
		net.YErrors[i].Low, net.YErrors[i].High = e, e
		model[i] = plotter.XY{X: x, Y: p.Model}
		residuals[i] = plotter.XY{X: x, Y: p.Residual}
	}

	top := plot.New()
	top.Title.Text = "Net counts"
	top.Y.Label.Text = "Counts per bin"
	top.Legend.Top = true
	top.Legend.Left = false

	scatter, err := plotter.NewScatter(net)
	if err != nil {
		return fmt.Errorf("net counts: %w", err)
	}
	bars, err := plotter.NewYErrorBars(net)
	if err != nil {
		return fmt.Errorf("net count errors: %w", err)
	}
	line, err := plotter.NewLine(model)
	if err != nil {
		return fmt.Errorf("model line: %w", err)
	}
	line.Color = color.RGBA{R: 200, A: 255}
	line.Width = vg.Points(1.5)
	top.Add(scatter, bars, line)
	top.Legend.Add("data - background", scatter)
	top.Legend.Add("model", line)

	bottom := plot.New()
	bottom.X.Label.Text = "Analysis bin"
	bottom.Y.Label.Text = "Residual (sigma)"
	res, err := plotter.NewScatter(residuals)
	if err != nil {
		return fmt.Errorf("residuals: %w", err)
	}
	lo, hi := residuals[0].X, residuals[len(residuals)-1].X
	zero, err := plotter.NewLine(plotter.XYs{{X: lo, Y: 0}, {X: hi, Y: 0}})
	if err != nil {
		return err
	}
	zero.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	bottom.Add(res, zero)
	limit := 1.0
	for _, r := range residuals {
		limit = math.Max(limit, math.Abs(r.Y)*1.2)
	}
	bottom.Y.Min, bottom.Y.Max = -limit, limit

	img := vgimg.New(8*vg.Inch, 8*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter * 3,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align([][]*plot.Plot{{top}, {bottom}}, tiles, dc)
	top.Draw(canvases[0][0])
	bottom.Draw(canvases[1][0])

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}
	defer f.Close()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return f.Close()
}
