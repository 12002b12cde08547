package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hawc-hal/hal/internal/model"
	"github.com/hawc-hal/hal/internal/units"
)

// DefaultConfigPath is the path to the example analysis of the Crab.
const DefaultConfigPath = "config/crab.example.json"

// AnalysisConfig represents one likelihood analysis: where the data and
// the response live, the region of interest and the sky model.
type AnalysisConfig struct {
	Name     *string `json:"name,omitempty"`
	Database *string `json:"database,omitempty"`
	Response *string `json:"response,omitempty"`
	MapTree  *string `json:"map_tree,omitempty"`

	ROI              *ROIConfig `json:"roi,omitempty"`
	FlatSkyPixelSize *float64   `json:"flat_sky_pixel_size,omitempty"` // degrees

	// Active analysis bins, inclusive
	BinMin *int `json:"bin_min,omitempty"`
	BinMax *int `json:"bin_max,omitempty"`

	Sources []SourceConfig `json:"sources,omitempty"`

	// Goodness of fit
	Simulations *int    `json:"simulations,omitempty"`
	Seed        *uint64 `json:"seed,omitempty"`

	PlotDir *string `json:"plot_dir,omitempty"`
}

// ROIConfig is a cone in equatorial coordinates, all values in degrees.
type ROIConfig struct {
	RA          float64 `json:"ra"`
	Dec         float64 `json:"dec"`
	DataRadius  float64 `json:"data_radius"`
	ModelRadius float64 `json:"model_radius"`
}

// SourceConfig describes one model source.
type SourceConfig struct {
	Name string `json:"name"`
	// Type is "point", "gaussian" or "disk".
	Type   string   `json:"type"`
	RA     float64  `json:"ra"`
	Dec    float64  `json:"dec"`
	Sigma  *float64 `json:"sigma,omitempty"`  // gaussian width, degrees
	Radius *float64 `json:"radius,omitempty"` // disk radius, degrees

	Spectrum SpectrumConfig `json:"spectrum"`
}

// SpectrumConfig describes a spectrum. K is in 1/(Unit cm² s) and Pivot in
// Unit.
type SpectrumConfig struct {
	// Type is "powerlaw" or "logparabola".
	Type  string   `json:"type"`
	K     float64  `json:"k"`
	Index *float64 `json:"index,omitempty"`
	Alpha *float64 `json:"alpha,omitempty"`
	Beta  *float64 `json:"beta,omitempty"`
	Pivot float64  `json:"pivot"`
	Unit  string   `json:"unit,omitempty"` // default TeV
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with all fields set to nil.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the example analysis from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/*
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.Response == nil || *c.Response == "" {
		return fmt.Errorf("response is required")
	}
	if c.MapTree == nil || *c.MapTree == "" {
		return fmt.Errorf("map_tree is required")
	}

	if c.ROI == nil {
		return fmt.Errorf("roi is required")
	}
	if c.ROI.Dec < -90 || c.ROI.Dec > 90 {
		return fmt.Errorf("roi dec must be between -90 and 90, got %f", c.ROI.Dec)
	}
	if c.ROI.DataRadius <= 0 {
		return fmt.Errorf("roi data_radius must be positive, got %f", c.ROI.DataRadius)
	}
	if c.ROI.ModelRadius < c.ROI.DataRadius {
		return fmt.Errorf("roi model_radius %f is smaller than data_radius %f", c.ROI.ModelRadius, c.ROI.DataRadius)
	}

	if c.FlatSkyPixelSize != nil && *c.FlatSkyPixelSize <= 0 {
		return fmt.Errorf("flat_sky_pixel_size must be positive, got %f", *c.FlatSkyPixelSize)
	}

	if c.BinMin != nil && *c.BinMin < 0 {
		return fmt.Errorf("bin_min must be non-negative, got %d", *c.BinMin)
	}
	if c.BinMin != nil && c.BinMax != nil && *c.BinMax < *c.BinMin {
		return fmt.Errorf("bin_max %d is smaller than bin_min %d", *c.BinMax, *c.BinMin)
	}

	if c.Simulations != nil && *c.Simulations < 0 {
		return fmt.Errorf("simulations must be non-negative, got %d", *c.Simulations)
	}

	seen := make(map[string]bool)
	for i := range c.Sources {
		s := &c.Sources[i]
		if err := s.Validate(); err != nil {
			return fmt.Errorf("source %d: %w", i, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
	}

	return nil
}

// Validate checks a single source entry.
func (s *SourceConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch s.Type {
	case "point":
	case "gaussian":
		if s.Sigma == nil || *s.Sigma <= 0 {
			return fmt.Errorf("gaussian source %s needs a positive sigma", s.Name)
		}
	case "disk":
		if s.Radius == nil || *s.Radius <= 0 {
			return fmt.Errorf("disk source %s needs a positive radius", s.Name)
		}
	default:
		return fmt.Errorf("unknown source type %q for %s", s.Type, s.Name)
	}

	sp := &s.Spectrum
	if sp.Unit != "" && !units.IsValid(sp.Unit) {
		return fmt.Errorf("invalid spectrum unit %q for %s, valid: %s", sp.Unit, s.Name, units.GetValidUnitsString())
	}
	if sp.Pivot <= 0 {
		return fmt.Errorf("spectrum pivot of %s must be positive, got %f", s.Name, sp.Pivot)
	}
	switch sp.Type {
	case "powerlaw":
		if sp.Index == nil {
			return fmt.Errorf("powerlaw spectrum of %s needs an index", s.Name)
		}
	case "logparabola":
		if sp.Alpha == nil || sp.Beta == nil {
			return fmt.Errorf("logparabola spectrum of %s needs alpha and beta", s.Name)
		}
	default:
		return fmt.Errorf("unknown spectrum type %q for %s", sp.Type, s.Name)
	}
	return nil
}

// BuildSpectrum converts the entry to a model spectrum in TeV units.
func (sp *SpectrumConfig) BuildSpectrum() model.Spectrum {
	unit := sp.Unit
	if unit == "" {
		unit = units.TeV
	}
	k := units.DifferentialFluxToTeV(sp.K, unit)
	pivot := units.ToTeV(sp.Pivot, unit)
	if sp.Type == "logparabola" {
		return &model.LogParabola{K: k, Alpha: *sp.Alpha, Beta: *sp.Beta, Pivot: pivot}
	}
	return &model.PowerLaw{K: k, Index: *sp.Index, Pivot: pivot}
}

// Build converts the entry to a model source. The entry must be valid.
func (s *SourceConfig) Build() (model.Source, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	spectrum := s.Spectrum.BuildSpectrum()
	var src model.Source
	switch s.Type {
	case "gaussian":
		src = model.NewExtendedSource2D(s.Name, &model.Gaussian{RA: s.RA, Dec: s.Dec, Sigma: *s.Sigma}, spectrum)
	case "disk":
		src = model.NewExtendedSource2D(s.Name, &model.Disk{RA: s.RA, Dec: s.Dec, Radius: *s.Radius}, spectrum)
	default:
		src = model.NewPointSource(s.Name, s.RA, s.Dec, spectrum)
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return src, nil
}

// BuildModel builds the model of all configured sources.
func (c *AnalysisConfig) BuildModel() (*model.Model, error) {
	m, _ := model.NewModel()
	for i := range c.Sources {
		src, err := c.Sources[i].Build()
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		if err := m.Add(src); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// GetName returns the name value or the default.
func (c *AnalysisConfig) GetName() string {
	if c.Name == nil || *c.Name == "" {
		return "HAWC"
	}
	return *c.Name
}

// GetDatabase returns the database path or the default.
func (c *AnalysisConfig) GetDatabase() string {
	if c.Database == nil || *c.Database == "" {
		return "hal.db"
	}
	return *c.Database
}

// GetFlatSkyPixelSize returns the flat_sky_pixel_size value or the default.
func (c *AnalysisConfig) GetFlatSkyPixelSize() float64 {
	if c.FlatSkyPixelSize == nil {
		return 0.17
	}
	return *c.FlatSkyPixelSize
}

// GetBinRange returns the active bin range for a map tree of nBins bins.
// Unset ends default to the first and last bin.
func (c *AnalysisConfig) GetBinRange(nBins int) (lo, hi int) {
	lo, hi = 0, nBins-1
	if c.BinMin != nil {
		lo = *c.BinMin
	}
	if c.BinMax != nil {
		hi = *c.BinMax
	}
	return lo, hi
}

// GetSimulations returns the simulations value or the default.
func (c *AnalysisConfig) GetSimulations() int {
	if c.Simulations == nil {
		return 0 // default: no goodness of fit
	}
	return *c.Simulations
}

// GetSeed returns the seed and whether one was set.
func (c *AnalysisConfig) GetSeed() (uint64, bool) {
	if c.Seed == nil {
		return 0, false
	}
	return *c.Seed, true
}

// GetPlotDir returns the plot_dir value or the default.
func (c *AnalysisConfig) GetPlotDir() string {
	if c.PlotDir == nil {
		return "" // default: no plots
	}
	return *c.PlotDir
}
