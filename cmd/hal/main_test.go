package main

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/hawc-hal/hal/internal/config"
	"github.com/hawc-hal/hal/internal/store"
	"github.com/hawc-hal/hal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.AnalysisConfig {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "hal.db")

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	resp := testutil.GaussianResponse(t, "gauss", []float64{0, 20, 40}, 3)
	require.NoError(t, store.NewResponseStore(db.DB).SaveResponse(resp))
	r := testutil.CrabROI(t, 2.5, 4)
	tree := testutil.UniformMapTree(t, r, 64, 3, 20)
	_, err = store.NewMapTreeStore(db.DB).SaveMapTree("flat", tree)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	name, respName, treeName, plotDir := "Crab Nebula", "gauss", "flat", filepath.Join(dir, "plots")
	sims, seed, binMin := 4, uint64(7), 1
	index := -2.63
	return &config.AnalysisConfig{
		Name:     &name,
		Database: &dbPath,
		Response: &respName,
		MapTree:  &treeName,
		ROI:      &config.ROIConfig{RA: testutil.CrabRA, Dec: testutil.CrabDec, DataRadius: 2, ModelRadius: 4},
		BinMin:   &binMin,
		Sources: []config.SourceConfig{{
			Name: "crab", Type: "point", RA: testutil.CrabRA, Dec: testutil.CrabDec,
			Spectrum: config.SpectrumConfig{Type: "powerlaw", K: 2.5e-13, Index: &index, Pivot: 7},
		}},
		Simulations: &sims,
		Seed:        &seed,
		PlotDir:     &plotDir,
	}
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	var buf bytes.Buffer
	require.NoError(t, run(cfg, &buf))
	out := buf.String()
	for _, want := range []string{"Region of Interest", "Log-likelihood:", "Data points:", "Residual", "Goodness of fit:"} {
		assert.Contains(t, out, want)
	}

	for _, name := range []string{"Crab_Nebula_spectrum.png", "Crab_Nebula_fit.html"} {
		_, err := os.Stat(filepath.Join(*cfg.PlotDir, name))
		assert.NoError(t, err, name)
	}
}

func TestSetup_ActiveBins(t *testing.T) {
	cfg := testConfig(t)
	a, closeDB, err := setup(cfg)
	require.NoError(t, err)
	defer closeDB()

	lo, hi := a.ActiveMeasurements()
	assert.Equal(t, 1, lo)
	assert.Equal(t, 2, hi)
	assert.Equal(t, 1, a.Model().NumPointSources())
}

func TestSetup_MissingMapTree(t *testing.T) {
	cfg := testConfig(t)
	missing := "nope"
	cfg.MapTree = &missing
	_, _, err := setup(cfg)
	assert.ErrorIs(t, err, store.ErrMapTreeNotFound)
}

func TestGoodnessOfFit(t *testing.T) {
	cfg := testConfig(t)
	a, closeDB, err := setup(cfg)
	require.NoError(t, err)
	defer closeDB()

	// the data is pure background, so the source model fits worse than
	// almost every dataset drawn from it
	p, err := goodnessOfFit(a, 20, rand.NewPCG(3, 3))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.Less(t, p, 0.2)
}
