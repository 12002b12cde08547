package display

import (
	"fmt"

	"github.com/hawc-hal/hal/internal/healpix"
	"github.com/hawc-hal/hal/internal/maptree"
)

// StackedMap sums the background-subtracted counts of bins into one dense
// HEALPix map. Pixels without data in any bin are healpix.Unseen. All bins
// must share one nside.
func StackedMap(bins []*maptree.AnalysisBin) ([]float64, error) {
	if len(bins) == 0 {
		return nil, ErrNoPoints
	}
	nside := bins[0].NSide()
	out := make([]float64, healpix.NPix(nside))
	for i := range out {
		out[i] = healpix.Unseen
	}
	for _, b := range bins {
		if b.NSide() != nside {
			return nil, fmt.Errorf("%w: bin %s has nside %d, expected %d", maptree.ErrPixelMismatch, b.Name, b.NSide(), nside)
		}
		obs := b.Observation().AsPartial()
		bkg := b.Background().AsPartial()
		for k, p := range b.Observation().Pixels() {
			if out[p] == healpix.Unseen {
				out[p] = 0
			}
			out[p] += obs[k] - bkg[k]
		}
	}
	return out, nil
}
