// Package penalized fits coefficient paths for penalized least squares and
// selects the penalty strength by k-fold cross-validation.
//
// Four penalty families are supported:
//
//   - Ridge: λ‖β‖₂², dense solutions, closed-form per strength.
//   - Lasso: λ‖β‖₁, exact sparsity via cyclic coordinate descent.
//   - ElasticNet: λ(α‖β‖₁ + (1−α)/2·‖β‖₂²), mixing both.
//   - SCAD: non-convex penalty with bounded derivative, solved by local
//     linear approximation around the current iterate. Expect it to cost an
//     order of magnitude more than the convex families.
//
// All families share one intercept convention: the engine centers X and y
// internally, fits slopes without an intercept column, and recovers the
// intercept afterwards, so sparsity and fit statistics are comparable
// across families.
package penalized

import (
	"math"
)

// Family identifies a penalty family.
type Family int

const (
	// Ridge is the λ‖β‖₂² penalty. It always retains all coefficients
	// nonzero; included for comparison, never the right choice for sparsity.
	Ridge Family = iota
	// Lasso is the λ‖β‖₁ penalty inducing exact sparsity.
	Lasso
	// ElasticNet mixes L1 and L2 with mixing parameter α.
	ElasticNet
	// SCAD is the smoothly clipped absolute deviation penalty. Its
	// derivative vanishes for large coefficients, reducing the shrinkage
	// bias the lasso applies to large true effects.
	SCAD
)

// String returns the family name used in logs and error messages.
func (f Family) String() string {
	switch f {
	case Ridge:
		return "ridge"
	case Lasso:
		return "lasso"
	case ElasticNet:
		return "elastic-net"
	case SCAD:
		return "scad"
	default:
		return "unknown"
	}
}

// DefaultSCADShape is the conventional SCAD shape parameter.
const DefaultSCADShape = 3.7

// softThreshold is the proximal operator of the L1 penalty:
// S(z, t) = sign(z)·max(|z|−t, 0).
func softThreshold(z, t float64) float64 {
	switch {
	case z > t:
		return z - t
	case z < -t:
		return z + t
	default:
		return 0
	}
}

// scadDerivative is the SCAD penalty derivative p'(t; λ, a) used as the
// per-coordinate weight in the local linear approximation. It equals λ for
// small coefficients, decays linearly on (λ, aλ), and is zero beyond aλ.
func scadDerivative(t, lambda, a float64) float64 {
	t = math.Abs(t)
	switch {
	case t <= lambda:
		return lambda
	case t < a*lambda:
		return (a*lambda - t) / (a - 1)
	default:
		return 0
	}
}
