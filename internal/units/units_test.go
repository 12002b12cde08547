package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid keV", KeV, true},
		{"valid GeV", GeV, true},
		{"valid TeV", TeV, true},
		{"invalid unit", "erg", false},
		{"empty unit", "", false},
		{"lowercase tev", "tev", false}, // Case-sensitive
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	result := GetValidUnitsString()
	expected := "keV, GeV, TeV"
	if result != expected {
		t.Errorf("GetValidUnitsString() = %s, want %s", result, expected)
	}
}

func TestToTeV(t *testing.T) {
	tests := []struct {
		name     string
		energy   float64
		unit     string
		expected float64
	}{
		{"1 TeV", 1, TeV, 1},
		{"7 TeV", 7, TeV, 7},
		{"1000 GeV", 1000, GeV, 1},
		{"300 GeV", 300, GeV, 0.3},
		{"1e9 keV", 1e9, KeV, 1},
		{"unknown unit", 2.5, "erg", 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToTeV(tt.energy, tt.unit)
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("ToTeV(%f, %s) = %f, want %f", tt.energy, tt.unit, result, tt.expected)
			}
		})
	}
}

func TestDifferentialFluxToTeV(t *testing.T) {
	tests := []struct {
		name     string
		flux     float64
		unit     string
		expected float64
	}{
		{"per TeV", 2.5e-13, TeV, 2.5e-13},
		{"per GeV", 2.5e-16, GeV, 2.5e-13},
		{"per keV", 2.5e-22, KeV, 2.5e-13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DifferentialFluxToTeV(tt.flux, tt.unit)
			if math.Abs(result-tt.expected) > 1e-9*tt.expected {
				t.Errorf("DifferentialFluxToTeV(%g, %s) = %g, want %g", tt.flux, tt.unit, result, tt.expected)
			}
		})
	}
}

// The integral ∫ f dE is invariant under a change of units.
func TestDifferentialFluxToTeV_PreservesIntegral(t *testing.T) {
	const flux, width = 3e-10, 50.0 // per GeV over 50 GeV
	got := DifferentialFluxToTeV(flux, GeV) * ToTeV(width, GeV)
	if math.Abs(got-flux*width) > 1e-20 {
		t.Errorf("integral changed: %g vs %g", got, flux*width)
	}
}
