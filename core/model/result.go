package model

import (
	"math"
)

// NonzeroTolerance is the magnitude below which a coefficient counts as zero
// for sparsity reporting. All solvers here use floating-point arithmetic, so
// exact zeros are the exception; a small tolerance makes nonzero counts
// comparable across methods.
const NonzeroTolerance = 1e-8

// FitResult is the immutable outcome of one solver invocation: the intercept,
// the slope coefficients aligned with the design-matrix columns, and the
// fitted values and residuals aligned with the input rows.
//
// A FitResult is produced by exactly one fit and never mutated afterwards;
// concurrent readers are safe. Fields are exported so the result serializes
// as a plain value object.
type FitResult struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Fitted       []float64 `json:"fitted"`
	Residuals    []float64 `json:"residuals"`
}

// NewFitResult assembles a FitResult, copying every slice so the caller's
// internal accumulators cannot alias the returned value.
func NewFitResult(intercept float64, coefficients, fitted, residuals []float64) *FitResult {
	return &FitResult{
		Intercept:    intercept,
		Coefficients: append([]float64(nil), coefficients...),
		Fitted:       append([]float64(nil), fitted...),
		Residuals:    append([]float64(nil), residuals...),
	}
}

// NonzeroCount returns the number of slope coefficients whose magnitude
// exceeds NonzeroTolerance. The intercept is not counted.
func (r *FitResult) NonzeroCount() int {
	count := 0
	for _, c := range r.Coefficients {
		if math.Abs(c) > NonzeroTolerance {
			count++
		}
	}
	return count
}

// NumFeatures returns the number of slope coefficients.
func (r *FitResult) NumFeatures() int {
	return len(r.Coefficients)
}
