package errors

import (
	"math"
)

// CheckScalar returns a ValueError if value is NaN or infinite. The iteration
// number is embedded in the message for iterative solvers.
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Newf("linmod: %s: non-finite value %v at iteration %d", operation, value, iteration)
	}
	return nil
}

// CheckValues returns an error if any value is NaN or infinite.
func CheckValues(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Newf("linmod: %s: non-finite value %v at iteration %d", operation, v, iteration)
		}
	}
	return nil
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SafeDivide performs division with protection against near-zero denominators.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

// ClipValue clips a value to the range [min, max].
func ClipValue(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
