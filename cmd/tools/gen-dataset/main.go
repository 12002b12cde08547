// Command gen-dataset writes a synthetic response and a simulated map tree
// of a point source over a flat background into a database, for trying out
// the hal command without instrument data.
//
// Usage:
//
//	gen-dataset [flags]
//	gen-dataset [-db path] migrate up|down|status|help
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hawc-hal/hal/internal/hal"
	"github.com/hawc-hal/hal/internal/maptree"
	"github.com/hawc-hal/hal/internal/model"
	"github.com/hawc-hal/hal/internal/response"
	"github.com/hawc-hal/hal/internal/roi"
	"github.com/hawc-hal/hal/internal/store"
)

var (
	dbPath       = flag.String("db", "hal.db", "Database to write to")
	responseName = flag.String("response", "gauss-response", "Name of the response")
	treeName     = flag.String("maptree", "crab-sim", "Name of the map tree")
	nBins        = flag.Int("bins", 9, "Number of analysis bins")
	nside        = flag.Int("nside", 128, "HEALPix nside of every bin")
	ra           = flag.Float64("ra", 83.633, "R.A. of the source and the data disc (deg)")
	dec          = flag.Float64("dec", 22.0145, "Dec of the source and the data disc (deg)")
	radius       = flag.Float64("radius", 3.5, "Radius of the stored data disc (deg)")
	background   = flag.Float64("background", 200, "Background counts per pixel per transit")
	transits     = flag.Float64("transits", 1, "Number of transits")
	flux         = flag.Float64("k", 2.5e-13, "Power-law normalisation at 7 TeV (1/(TeV cm² s))")
	index        = flag.Float64("index", -2.63, "Power-law index")
	seed         = flag.Uint64("seed", 0, "Seed for the simulation (0 uses the current time)")
	list         = flag.Bool("list", false, "List the stored map trees and exit")
)

func main() {
	flag.Parse()

	if flag.Arg(0) == "migrate" {
		if err := store.RunMigrateCommand(flag.Args()[1:], *dbPath, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if *list {
		if err := listMapTrees(store.NewMapTreeStore(db.DB)); err != nil {
			log.Fatal(err)
		}
		return
	}

	s := *seed
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}

	resp, tree, err := generate(rand.NewPCG(s, s))
	if err != nil {
		log.Fatal(err)
	}

	if err := store.NewResponseStore(db.DB).SaveResponse(resp); err != nil {
		log.Fatalf("Failed to save response: %v", err)
	}
	id, err := store.NewMapTreeStore(db.DB).SaveMapTree(*treeName, tree)
	if err != nil {
		log.Fatalf("Failed to save map tree: %v", err)
	}
	log.Printf("Wrote response %s and map tree %s (%s) to %s", resp.Name(), *treeName, id, *dbPath)
}

// generate simulates the configured point source over a flat background.
func generate(src rand.Source) (*response.Response, *maptree.MapTree, error) {
	resp, err := response.NewSynthetic(*responseName, []float64{-10, 0, 10, 20, 30, 40, 50}, *nBins)
	if err != nil {
		return nil, nil, err
	}

	r, err := roi.NewConeROI(*ra, *dec, *radius, *radius+3)
	if err != nil {
		return nil, nil, err
	}
	tree, err := backgroundTree(r)
	if err != nil {
		return nil, nil, err
	}

	a, err := hal.New(*treeName, tree, resp, r, hal.Options{})
	if err != nil {
		return nil, nil, err
	}
	m, err := model.NewModel(model.NewPointSource("source", *ra, *dec,
		&model.PowerLaw{K: *flux, Index: *index, Pivot: 7}))
	if err != nil {
		return nil, nil, err
	}
	if err := a.SetModel(m); err != nil {
		return nil, nil, err
	}

	sim, err := a.Simulate(*treeName, hal.SimulateOptions{Isolated: true, Source: src})
	if err != nil {
		return nil, nil, err
	}

	// stored observations must be positive to load again
	for _, b := range sim.MapTree().Bins() {
		for _, v := range b.Observation().AsPartial() {
			if v <= 0 {
				return nil, nil, fmt.Errorf("bin %s has an empty pixel, increase -background", b.Name)
			}
		}
	}
	return resp, sim.MapTree(), nil
}

func backgroundTree(r *roi.ConeROI) (*maptree.MapTree, error) {
	pixels, err := r.ActivePixels(*nside)
	if err != nil {
		return nil, err
	}
	bins := make([]*maptree.AnalysisBin, *nBins)
	for i := range bins {
		values := make([]float64, len(pixels))
		for k := range values {
			values[k] = *background * *transits
		}
		obs, err := maptree.NewSparseMap(*nside, pixels, values)
		if err != nil {
			return nil, err
		}
		bins[i], err = maptree.NewAnalysisBin(fmt.Sprint(i), *transits, obs, obs.Clone())
		if err != nil {
			return nil, err
		}
	}
	return maptree.New(bins)
}

func listMapTrees(s *store.MapTreeStore) error {
	infos, err := s.ListMapTrees()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Name\tBins\tCreated\tID")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", info.Name, info.NBins,
			humanize.Time(time.Unix(0, info.CreatedAt)), info.ID)
	}
	return tw.Flush()
}
