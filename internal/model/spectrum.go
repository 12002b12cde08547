package model

import (
	"fmt"
	"math"
)

// Spectrum is a differential photon flux in 1/(TeV cm² s) as a function of
// energy in TeV.
type Spectrum interface {
	Evaluate(energy float64) float64
	Parameters() []float64
}

// PowerLaw is K (E/Pivot)^Index.
type PowerLaw struct {
	K     float64
	Index float64
	Pivot float64
}

func (p *PowerLaw) Evaluate(energy float64) float64 {
	return p.K * math.Pow(energy/p.Pivot, p.Index)
}

func (p *PowerLaw) Parameters() []float64 {
	return []float64{p.K, p.Index, p.Pivot}
}

func (p *PowerLaw) String() string {
	return fmt.Sprintf("powerlaw(K=%.3g, index=%.3f, pivot=%.3g TeV)", p.K, p.Index, p.Pivot)
}

// LogParabola is K (E/Pivot)^(Alpha - Beta ln(E/Pivot)).
type LogParabola struct {
	K     float64
	Alpha float64
	Beta  float64
	Pivot float64
}

func (l *LogParabola) Evaluate(energy float64) float64 {
	x := energy / l.Pivot
	return l.K * math.Pow(x, l.Alpha-l.Beta*math.Log(x))
}

func (l *LogParabola) Parameters() []float64 {
	return []float64{l.K, l.Alpha, l.Beta, l.Pivot}
}

func (l *LogParabola) String() string {
	return fmt.Sprintf("logparabola(K=%.3g, alpha=%.3f, beta=%.3f, pivot=%.3g TeV)", l.K, l.Alpha, l.Beta, l.Pivot)
}

func validateSpectrum(s Spectrum) error {
	if s == nil {
		return fmt.Errorf("%w: missing spectrum", ErrInvalidSource)
	}
	switch sp := s.(type) {
	case *PowerLaw:
		if !(sp.Pivot > 0) || sp.K < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidSource, sp)
		}
	case *LogParabola:
		if !(sp.Pivot > 0) || sp.K < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidSource, sp)
		}
	}
	return nil
}
