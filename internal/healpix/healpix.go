// Package healpix implements the subset of the HEALPix RING scheme needed by
// the likelihood engine: pixel counts and areas, pixel centres, point lookup
// and disc queries.
//
// Angles follow the HEALPix convention (theta is colatitude, phi is longitude,
// both in radians). The RaDec helpers convert to equatorial degrees.
package healpix

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Unseen is the sentinel value HEALPix tools use for pixels without data.
const Unseen = -1.6375e30

// MaxNSide is the largest resolution parameter supported with int pixel indices.
const MaxNSide = 1 << 29

// ErrInvalidNSide is returned when nside is not a positive power of two.
var ErrInvalidNSide = errors.New("healpix: nside must be a power of two between 1 and 2^29")

// ValidNSide reports whether nside is a usable resolution parameter.
func ValidNSide(nside int) bool {
	return nside > 0 && nside <= MaxNSide && nside&(nside-1) == 0
}

// CheckNSide returns ErrInvalidNSide wrapped with the offending value.
func CheckNSide(nside int) error {
	if !ValidNSide(nside) {
		return fmt.Errorf("%w: got %d", ErrInvalidNSide, nside)
	}
	return nil
}

// NPix returns the number of pixels covering the sphere at nside.
func NPix(nside int) int {
	return 12 * nside * nside
}

// PixelArea returns the solid angle of one pixel in square degrees.
func PixelArea(nside int) float64 {
	sr := 4 * math.Pi / float64(NPix(nside))
	deg := 180.0 / math.Pi
	return sr * deg * deg
}

func isqrt(v int) int {
	r := int(math.Sqrt(float64(v) + 0.5))
	for r*r > v {
		r--
	}
	for (r+1)*(r+1) <= v {
		r++
	}
	return r
}

// Pix2Ang returns the colatitude and longitude (radians) of the centre of pix.
func Pix2Ang(nside, pix int) (theta, phi float64) {
	npix := NPix(nside)
	ncap := 2 * nside * (nside - 1)
	fact2 := 4.0 / float64(npix)

	var z float64
	switch {
	case pix < ncap:
		iring := (1 + isqrt(1+2*pix)) >> 1
		iphi := pix + 1 - 2*iring*(iring-1)
		z = 1 - float64(iring*iring)*fact2
		phi = (float64(iphi) - 0.5) * math.Pi / (2 * float64(iring))
	case pix < npix-ncap:
		ip := pix - ncap
		iring := ip/(4*nside) + nside
		iphi := ip%(4*nside) + 1
		fodd := 0.5
		if (iring+nside)&1 == 1 {
			fodd = 1
		}
		fact1 := float64(2*nside) * fact2
		z = float64(2*nside-iring) * fact1
		phi = (float64(iphi) - fodd) * math.Pi / float64(2*nside)
	default:
		ip := npix - pix
		iring := (1 + isqrt(2*ip-1)) >> 1
		iphi := 4*iring + 1 - (ip - 2*iring*(iring-1))
		z = -1 + float64(iring*iring)*fact2
		phi = (float64(iphi) - 0.5) * math.Pi / (2 * float64(iring))
	}
	return math.Acos(z), phi
}

// Ang2Pix returns the pixel containing the direction (theta, phi).
func Ang2Pix(nside int, theta, phi float64) int {
	z := math.Cos(theta)
	za := math.Abs(z)
	tt := math.Mod(phi, 2*math.Pi)
	if tt < 0 {
		tt += 2 * math.Pi
	}
	tt /= math.Pi / 2 // in [0, 4)

	npix := NPix(nside)
	ncap := 2 * nside * (nside - 1)

	if za <= 2.0/3.0 {
		temp1 := float64(nside) * (0.5 + tt)
		temp2 := float64(nside) * z * 0.75
		jp := int(temp1 - temp2)
		jm := int(temp1 + temp2)
		ir := nside + 1 + jp - jm
		kshift := 1 - (ir & 1)
		ip := (jp + jm - nside + kshift + 1) / 2
		ip = mod(ip, 4*nside)
		return ncap + (ir-1)*4*nside + ip
	}

	tp := tt - math.Floor(tt)
	tmp := float64(nside) * math.Sqrt(3*(1-za))
	jp := int(tp * tmp)
	jm := int((1 - tp) * tmp)
	ir := jp + jm + 1
	ip := int(tt * float64(ir))
	ip = mod(ip, 4*ir)
	if z > 0 {
		return 2*ir*(ir-1) + ip
	}
	return npix - 2*ir*(ir+1) + ip
}

func mod(i, n int) int {
	r := i % n
	if r < 0 {
		r += n
	}
	return r
}

// RaDec returns the equatorial coordinates (degrees) of the centre of pix.
func RaDec(nside, pix int) (ra, dec float64) {
	theta, phi := Pix2Ang(nside, pix)
	ra = phi * 180 / math.Pi
	dec = 90 - theta*180/math.Pi
	return ra, dec
}

// PixelAt returns the pixel containing the equatorial position (degrees).
func PixelAt(nside int, ra, dec float64) int {
	theta := (90 - dec) * math.Pi / 180
	phi := ra * math.Pi / 180
	return Ang2Pix(nside, theta, phi)
}

// ring describes one iso-latitude ring: its first pixel, pixel count and z.
type ring struct {
	start, count int
	z            float64
}

func ringInfo(nside, i int) ring {
	npix := NPix(nside)
	ncap := 2 * nside * (nside - 1)
	fact2 := 4.0 / float64(npix)
	switch {
	case i < nside:
		return ring{start: 2 * i * (i - 1), count: 4 * i, z: 1 - float64(i*i)*fact2}
	case i <= 3*nside:
		return ring{
			start: ncap + (i-nside)*4*nside,
			count: 4 * nside,
			z:     float64(2*nside-i) * float64(2*nside) * fact2,
		}
	default:
		ir := 4*nside - i
		return ring{start: npix - 2*ir*(ir+1), count: 4 * ir, z: -1 + float64(ir*ir)*fact2}
	}
}

// QueryDisc returns, in ascending order, the pixels whose centres lie within
// radius degrees of (ra, dec). sep computes the angular distance in degrees
// between two equatorial positions.
func QueryDisc(nside int, ra, dec, radius float64, sep func(ra1, dec1, ra2, dec2 float64) float64) []int {
	thetaC := (90 - dec) * math.Pi / 180
	r := radius * math.Pi / 180
	zMax := math.Cos(math.Max(0, thetaC-r))
	zMin := math.Cos(math.Min(math.Pi, thetaC+r))

	var pixels []int
	for i := 1; i < 4*nside; i++ {
		info := ringInfo(nside, i)
		if info.z > zMax || info.z < zMin {
			continue
		}
		for p := info.start; p < info.start+info.count; p++ {
			pra, pdec := RaDec(nside, p)
			if sep(ra, dec, pra, pdec) <= radius {
				pixels = append(pixels, p)
			}
		}
	}
	sort.Ints(pixels)
	return pixels
}
