// Package metrics provides evaluation metrics for regression models.
//
// All functions operate on gonum vectors, validate their inputs, and return
// structured errors from pkg/errors. Adjusted R² penalizes the plain R² by
// the number of fitted parameters so models of different sparsity remain
// comparable.
//
// Example usage:
//
//	mse, err := metrics.MSE(yTrue, yPred)
//	adjR2, err := metrics.AdjustedR2(yTrue, yPred, nFeatures)
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	linmodErrors "github.com/ezoic/linmod/pkg/errors"
)

// MSE calculates the mean squared error between true and predicted values.
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, linmodErrors.NewValueError("MSE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, linmodErrors.NewDimensionError("MSE", n, yPred.Len(), 0)
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE calculates the root mean squared error, the square root of MSE, in
// the same units as the target variable.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE calculates the mean absolute error, which is more robust to outliers
// than MSE.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, linmodErrors.NewValueError("MAE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, linmodErrors.NewDimensionError("MAE", n, yPred.Len(), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score calculates the coefficient of determination. The best possible
// score is 1.0; a model predicting the mean scores 0; worse models score
// negative. Fails when yTrue has no variance.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, linmodErrors.NewValueError("R2Score", "empty vector")
	}
	if yPred.Len() != n {
		return 0, linmodErrors.NewDimensionError("R2Score", n, yPred.Len(), 0)
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		yPredVal := yPred.AtVec(i)

		tss += (yTrueVal - yMean) * (yTrueVal - yMean)
		rss += (yTrueVal - yPredVal) * (yTrueVal - yPredVal)
	}

	if tss == 0 {
		return 0, linmodErrors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// AdjustedR2 calculates R² adjusted for the number of fitted slope
// parameters: 1 - (1-R²)(n-1)/(n-p-1). Requires n > p+1.
func AdjustedR2(yTrue, yPred *mat.VecDense, nFeatures int) (float64, error) {
	n := yTrue.Len()
	if n <= nFeatures+1 {
		return 0, linmodErrors.NewInsufficientDataError("AdjustedR2", n, nFeatures+2)
	}

	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	return 1 - (1-r2)*float64(n-1)/float64(n-nFeatures-1), nil
}
