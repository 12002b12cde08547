// Command hal runs a likelihood analysis described by a JSON config: it
// loads the response and map tree from the database, evaluates the
// configured model and optionally estimates the goodness of fit by
// simulation.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/hawc-hal/hal/internal/config"
	"github.com/hawc-hal/hal/internal/display"
	"github.com/hawc-hal/hal/internal/hal"
	"github.com/hawc-hal/hal/internal/response"
	"github.com/hawc-hal/hal/internal/roi"
	"github.com/hawc-hal/hal/internal/security"
	"github.com/hawc-hal/hal/internal/store"
	"github.com/hawc-hal/hal/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Analysis configuration (JSON)")
	sims        = flag.Int("sims", -1, "Simulations for the goodness of fit (overrides the config when >= 0)")
	seed        = flag.Uint64("seed", 0, "Seed for the simulations (0 uses the config seed or a random one)")
	plots       = flag.String("plots", "", "Directory for spectrum and sky plots (overrides the config)")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("hal"))
		return
	}

	cfg, err := config.LoadAnalysisConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *sims >= 0 {
		cfg.Simulations = sims
	}
	if *seed != 0 {
		cfg.Seed = seed
	}
	if *plots != "" {
		cfg.PlotDir = plots
	}

	if err := run(cfg, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// setup opens the database and builds the analysis with its model set.
func setup(cfg *config.AnalysisConfig) (*hal.Analysis, func() error, error) {
	db, err := store.Open(cfg.GetDatabase())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	registry := response.NewRegistry(store.NewResponseStore(db.DB))
	resp, err := registry.Get(*cfg.Response)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to load response: %w", err)
	}

	r, err := roi.NewConeROI(cfg.ROI.RA, cfg.ROI.Dec, cfg.ROI.DataRadius, cfg.ROI.ModelRadius)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	tree, err := store.NewMapTreeStore(db.DB).LoadMapTree(*cfg.MapTree, r.ActivePixels)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to load map tree: %w", err)
	}

	a, err := hal.New(cfg.GetName(), tree, resp, r, hal.Options{FlatSkyPixelSize: cfg.GetFlatSkyPixelSize()})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	lo, hi := cfg.GetBinRange(tree.Len())
	if err := a.SetActiveMeasurements(lo, hi); err != nil {
		db.Close()
		return nil, nil, err
	}

	m, err := cfg.BuildModel()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := a.SetModel(m); err != nil {
		db.Close()
		return nil, nil, err
	}
	return a, db.Close, nil
}

func run(cfg *config.AnalysisConfig, w io.Writer) error {
	a, closeDB, err := setup(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	a.Display(w)

	ll, err := a.LogLikelihood()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nLog-likelihood: %.4f\n", ll)
	fmt.Fprintf(w, "Saturated model log-likelihood: %.4f\n", a.SaturatedModelLikelihood())
	fmt.Fprintf(w, "Data points: %d\n\n", a.NumberOfDataPoints())

	points, err := a.SpectrumSummary()
	switch {
	case errors.Is(err, hal.ErrLowCounts):
		log.Printf("Skipping spectrum summary: %v", err)
	case err != nil:
		return err
	default:
		if err := display.WriteSpectrumTable(w, points); err != nil {
			return err
		}
	}

	if n := cfg.GetSimulations(); n > 0 {
		var src rand.Source
		if s, ok := cfg.GetSeed(); ok {
			src = rand.NewPCG(s, s)
		}
		p, err := goodnessOfFit(a, n, src)
		if err != nil {
			return fmt.Errorf("goodness of fit: %w", err)
		}
		fmt.Fprintf(w, "\nGoodness of fit: %.3f of %d simulations fit worse\n", p, n)
	}

	if dir := cfg.GetPlotDir(); dir != "" {
		if err := writePlots(a, points, dir); err != nil {
			return err
		}
	}
	return nil
}

// goodnessOfFit returns the fraction of n datasets simulated from the model
// that fit it at least as badly as the data.
func goodnessOfFit(a *hal.Analysis, n int, src rand.Source) (float64, error) {
	observed, err := a.LogLikelihood()
	if err != nil {
		return 0, err
	}
	worse := 0
	for i := 0; i < n; i++ {
		sim, err := a.Simulate(fmt.Sprintf("%s_sim_%d", a.Name(), i), hal.SimulateOptions{Source: src})
		if err != nil {
			return 0, err
		}
		ll, err := sim.LogLikelihood()
		if err != nil {
			return 0, err
		}
		if ll <= observed {
			worse++
		}
		if (i+1)%100 == 0 {
			log.Printf("Simulated %d/%d datasets", i+1, n)
		}
	}
	return float64(worse) / float64(n), nil
}

func writePlots(a *hal.Analysis, points []hal.SpectrumPoint, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create plot dir: %w", err)
	}
	base := security.SanitizeFilename(a.Name())
	if len(points) > 0 {
		if err := display.WriteSpectrumPlot(points, filepath.Join(dir, base+"_spectrum.png")); err != nil {
			return err
		}
	}

	f, err := os.Create(filepath.Join(dir, base+"_fit.html"))
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()
	if err := display.RenderFitCharts(a, f); err != nil {
		return fmt.Errorf("failed to render charts: %w", err)
	}
	log.Printf("Wrote plots to %s", dir)
	return f.Close()
}
