// Package likelihood implements the binned Poisson log-likelihood and the
// per-bin constants that keep it well conditioned.
//
// All functions take observed counts, background and model as slices of the
// same length, one entry per pixel.
package likelihood

import "math"

// SaturatedFloor replaces non-positive saturated-model counts so that the
// logarithm stays finite.
const SaturatedFloor = 1e-30

// PoissonLogLikelihood returns Σ o·ln(b+m) − (b+m) over all pixels, without
// the ln(o!) term. A nil model stands for a model that is zero everywhere.
// Pixels with no observed counts contribute −(b+m).
func PoissonLogLikelihood(obs, bkg, model []float64) float64 {
	total := 0.0
	for i, o := range obs {
		predicted := bkg[i]
		if model != nil {
			predicted += model[i]
		}
		if o == 0 {
			total -= predicted
			continue
		}
		total += o*math.Log(predicted) - predicted
	}
	return total
}

// LogFactorial returns ln(n!) for non-negative n, extended to non-integer
// counts through the gamma function.
func LogFactorial(n float64) float64 {
	v, _ := math.Lgamma(n + 1)
	return v
}

// SumLogFactorial returns Σ ln(o!) over all pixels.
func SumLogFactorial(obs []float64) float64 {
	total := 0.0
	for _, o := range obs {
		total += LogFactorial(o)
	}
	return total
}

// SaturatedModel returns the model that reproduces the background-subtracted
// counts, floored at SaturatedFloor.
func SaturatedModel(obs, bkg []float64) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = math.Max(o-bkg[i], SaturatedFloor)
	}
	return out
}

// Bias holds the per-bin constants subtracted from the raw log-likelihood.
type Bias struct {
	// LogFactorial is Σ ln(o!).
	LogFactorial float64
	// Saturated is the log-likelihood of the saturated model, including
	// the ln(o!) term.
	Saturated float64
}

// ComputeBias evaluates the constants of one bin. They only depend on the
// data and must be recomputed whenever the observation changes.
func ComputeBias(obs, bkg []float64) Bias {
	lf := SumLogFactorial(obs)
	return Bias{
		LogFactorial: lf,
		Saturated:    PoissonLogLikelihood(obs, bkg, SaturatedModel(obs, bkg)) - lf,
	}
}

// Corrected returns raw minus both bias terms. It is close to zero when the
// model tracks the background-subtracted data.
func (b Bias) Corrected(raw float64) float64 {
	return raw - b.LogFactorial - b.Saturated
}
