package display

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/hawc-hal/hal/internal/hal"
)

// WriteSpectrumTable writes points as an aligned table.
func WriteSpectrumTable(w io.Writer, points []hal.SpectrumPoint) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Bin\tData\tBkg\tNet\tModel\tResidual")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%.1f\t%+.2f\n", p.Name,
			humanize.Commaf(math.Round(p.Data)), humanize.Commaf(math.Round(p.Background)),
			p.Net, p.Model, p.Residual)
	}
	return tw.Flush()
}
