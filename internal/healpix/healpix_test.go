package healpix

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidNSide(t *testing.T) {
	tests := []struct {
		nside int
		want  bool
	}{
		{1, true},
		{2, true},
		{1024, true},
		{0, false},
		{-4, false},
		{3, false},
		{1000, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidNSide(tt.nside), "nside=%d", tt.nside)
	}
	assert.ErrorIs(t, CheckNSide(12), ErrInvalidNSide)
	assert.NoError(t, CheckNSide(64))
}

func TestPixelArea_CoversSphere(t *testing.T) {
	fullSky := 4 * math.Pi * math.Pow(180/math.Pi, 2)
	for _, nside := range []int{1, 8, 256} {
		total := PixelArea(nside) * float64(NPix(nside))
		assert.InDelta(t, fullSky, total, 1e-6, "nside=%d", nside)
	}
}

func TestPix2Ang_RoundTrip(t *testing.T) {
	for _, nside := range []int{1, 2, 4, 16, 32} {
		for pix := 0; pix < NPix(nside); pix++ {
			theta, phi := Pix2Ang(nside, pix)
			require.GreaterOrEqual(t, theta, 0.0)
			require.LessOrEqual(t, theta, math.Pi)
			got := Ang2Pix(nside, theta, phi)
			require.Equal(t, pix, got, "nside=%d pix=%d", nside, pix)
		}
	}
}

func TestPixelAt_RaDec(t *testing.T) {
	nside := 64
	for _, pix := range []int{0, 17, 1000, NPix(nside) / 2, NPix(nside) - 1} {
		ra, dec := RaDec(nside, pix)
		assert.Equal(t, pix, PixelAt(nside, ra, dec))
		assert.Equal(t, pix, PixelAt(nside, ra+360, dec), "longitude wraps")
	}
}

func greatCircle(ra1, dec1, ra2, dec2 float64) float64 {
	d := math.Pi / 180
	c := math.Sin(dec1*d)*math.Sin(dec2*d) + math.Cos(dec1*d)*math.Cos(dec2*d)*math.Cos((ra1-ra2)*d)
	return math.Acos(math.Max(-1, math.Min(1, c))) / d
}

func TestQueryDisc_MatchesBruteForce(t *testing.T) {
	nside := 32
	cases := []struct{ ra, dec, radius float64 }{
		{166.1, 38.2, 5},
		{10, -80, 7},
		{300, 0, 3},
		{0, 89, 4},
	}
	for _, c := range cases {
		got := QueryDisc(nside, c.ra, c.dec, c.radius, greatCircle)

		var want []int
		for p := 0; p < NPix(nside); p++ {
			ra, dec := RaDec(nside, p)
			if greatCircle(c.ra, c.dec, ra, dec) <= c.radius {
				want = append(want, p)
			}
		}
		require.NotEmpty(t, want)
		assert.Equal(t, want, got, "disc at (%v, %v)", c.ra, c.dec)
	}
}
