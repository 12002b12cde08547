// Package units provides shared constants and conversions for energy units
package units

// Unit constants
const (
	KeV = "keV"
	GeV = "GeV"
	TeV = "TeV"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{KeV, GeV, TeV}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "keV, GeV, TeV"
}

// ToTeV converts an energy in the given units to TeV
// Spectra and responses are evaluated in TeV
func ToTeV(energy float64, units string) float64 {
	switch units {
	case KeV:
		return energy * 1e-9
	case GeV:
		return energy * 1e-3
	case TeV:
		return energy
	default:
		return energy // default to TeV if unknown unit
	}
}

// DifferentialFluxToTeV converts a differential flux in 1/(units cm² s) to
// 1/(TeV cm² s)
func DifferentialFluxToTeV(flux float64, units string) float64 {
	return flux / ToTeV(1, units)
}
