// Package sky holds small helpers for equatorial coordinates in degrees.
package sky

import (
	"math"

	"github.com/soniakeys/meeus/v3/angle"
	"github.com/soniakeys/unit"
)

// Separation returns the angular distance in degrees between two equatorial
// positions given in degrees.
func Separation(ra1, dec1, ra2, dec2 float64) float64 {
	return angle.Sep(
		unit.AngleFromDeg(ra1), unit.AngleFromDeg(dec1),
		unit.AngleFromDeg(ra2), unit.AngleFromDeg(dec2),
	).Deg()
}

// NormalizeRA maps ra into [0, 360).
func NormalizeRA(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}

// HealpixLongitude converts RA in [0, 360) to the [-180, 180) longitude used
// by HEALPix map viewers.
func HealpixLongitude(ra float64) float64 {
	ra = NormalizeRA(ra)
	if ra > 180 {
		return ra - 360
	}
	return ra
}
