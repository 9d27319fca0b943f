// Package linear provides ordinary least squares with influence diagnostics.
//
// The OLS estimator solves min‖Xβ−y‖² through a QR factorization of the
// intercept-augmented design matrix; the normal equations are never formed
// explicitly, so ill-conditioned designs do not get squared condition
// numbers. Linearly dependent columns are detected before solving and
// reported as a RankDeficiencyError naming the offending columns.
//
// Example usage:
//
//	ols := linear.NewOLS()
//	if err := ols.FitDesign(dm, y); err != nil {
//	    log.Fatal(err)
//	}
//	result, _ := ols.Result()
//	influential := ols.InfluentialIndices()
package linear

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/linmod/core/model"
	linmodErrors "github.com/ezoic/linmod/pkg/errors"
	"github.com/ezoic/linmod/pkg/log"
	"github.com/ezoic/linmod/preprocessing"
)

// depTolerance is the relative residual-norm threshold below which a column
// counts as linearly dependent on its predecessors.
const depTolerance = 1e-10

// OLS is an ordinary least squares regression model with per-observation
// influence diagnostics.
type OLS struct {
	state     *model.StateManager
	intercept float64
	weights   []float64
	columns   []string

	result      *model.FitResult
	leverage    []float64
	cooks       []float64
	influential []int
	mse         float64
	r2          float64
	adjR2       float64

	logger log.Logger
}

// NewOLS creates a new untrained OLS model.
func NewOLS() *OLS {
	o := &OLS{
		state: model.NewStateManager(),
	}
	o.logger = log.GetLoggerWithName("linear").With(
		log.ModelNameKey, "OLS",
	)
	return o
}

// SetLogger replaces the model's logger, primarily for tests.
func (o *OLS) SetLogger(logger log.Logger) { o.logger = logger }

// FitDesign fits the model on a built DesignMatrix, using its column names
// in diagnostics and rank-deficiency reports.
func (o *OLS) FitDesign(dm *preprocessing.DesignMatrix, y *mat.VecDense) error {
	if err := dm.RequireOLS(); err != nil {
		return err
	}
	return o.fit(dm.Matrix(), y, dm.Columns())
}

// Fit fits the model on a plain matrix. Columns are named x0..x(p-1) in
// diagnostics.
func (o *OLS) Fit(X mat.Matrix, y *mat.VecDense) error {
	_, p := X.Dims()
	names := make([]string, p)
	for j := range names {
		names[j] = fmt.Sprintf("x%d", j)
	}
	return o.fit(X, y, names)
}

func (o *OLS) fit(X mat.Matrix, y *mat.VecDense, names []string) (err error) {
	defer linmodErrors.Recover(&err, "OLS.Fit")

	startTime := time.Now()
	n, p := X.Dims()

	if n == 0 || p == 0 {
		return linmodErrors.NewValueError("OLS.Fit", "empty design matrix")
	}
	if y.Len() != n {
		return linmodErrors.NewDimensionError("OLS.Fit", n, y.Len(), 0)
	}
	if n < p+2 {
		return linmodErrors.NewInsufficientDataError("OLS.Fit", n, p+2)
	}

	o.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
	)

	// Intercept-augmented design: X1 = [1, X].
	augNames := append([]string{"(intercept)"}, names...)
	x1 := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		x1.Set(i, 0, 1.0)
		for j := 0; j < p; j++ {
			x1.Set(i, j+1, X.At(i, j))
		}
	}

	if err := checkFullRank("OLS.Fit", x1, augNames); err != nil {
		return err
	}

	var qr mat.QR
	qr.Factorize(x1)

	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, y); err != nil {
		return linmodErrors.Wrap(err, "OLS.Fit: QR solve failed")
	}

	o.intercept = beta.At(0, 0)
	o.weights = make([]float64, p)
	for j := 0; j < p; j++ {
		o.weights[j] = beta.At(j+1, 0)
	}
	o.columns = append([]string(nil), names...)

	fitted := make([]float64, n)
	residuals := make([]float64, n)
	var rss float64
	for i := 0; i < n; i++ {
		pred := o.intercept
		for j := 0; j < p; j++ {
			pred += X.At(i, j) * o.weights[j]
		}
		fitted[i] = pred
		residuals[i] = y.AtVec(i) - pred
		rss += residuals[i] * residuals[i]
	}

	o.computeDiagnostics(&qr, y, fitted, residuals, rss, n, p)
	o.result = model.NewFitResult(o.intercept, o.weights, fitted, residuals)

	o.state.SetFitted()
	o.state.SetDimensions(p, n)

	o.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
		log.R2ScoreKey, o.r2,
	)
	return nil
}

// computeDiagnostics derives leverage, Cook's distance, and fit statistics
// from the factorization and residuals.
func (o *OLS) computeDiagnostics(qr *mat.QR, y *mat.VecDense, fitted, residuals []float64, rss float64, n, p int) {
	// Leverage h_i is the squared row norm of thin Q: the diagonal of the
	// projection matrix X(XᵀX)⁻¹Xᵀ.
	var q mat.Dense
	qr.QTo(&q)
	o.leverage = make([]float64, n)
	for i := 0; i < n; i++ {
		var h float64
		for j := 0; j < p+1; j++ {
			qij := q.At(i, j)
			h += qij * qij
		}
		o.leverage[i] = h
	}

	dof := n - p - 1
	s2 := rss / float64(dof)
	o.mse = rss / float64(n)

	// Cook's distance D_i = e_i² h_i / ((p+1) s² (1-h_i)²).
	o.cooks = make([]float64, n)
	o.influential = nil
	threshold := 4.0 / float64(dof)
	for i := 0; i < n; i++ {
		h := o.leverage[i]
		denom := float64(p+1) * s2 * (1 - h) * (1 - h)
		switch {
		case denom > 0:
			o.cooks[i] = residuals[i] * residuals[i] * h / denom
		case residuals[i] == 0:
			o.cooks[i] = 0
		default:
			o.cooks[i] = math.Inf(1)
		}
		if o.cooks[i] > threshold {
			o.influential = append(o.influential, i)
		}
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += y.AtVec(i)
	}
	yMean /= float64(n)
	var tss float64
	for i := 0; i < n; i++ {
		d := y.AtVec(i) - yMean
		tss += d * d
	}
	if tss > 0 {
		o.r2 = 1 - rss/tss
		o.adjR2 = 1 - (1-o.r2)*float64(n-1)/float64(dof)
	} else {
		o.r2 = 0
		o.adjR2 = 0
	}
}

// checkFullRank verifies that no column of x1 is a linear combination of the
// columns before it. On detection it solves the small least-squares problem
// of the dependent column against its predecessors to name the support.
func checkFullRank(op string, x1 *mat.Dense, names []string) error {
	n, c := x1.Dims()

	// Modified Gram-Schmidt over a growing orthonormal basis.
	basis := make([]*mat.VecDense, 0, c)
	accepted := make([]int, 0, c)

	for j := 0; j < c; j++ {
		col := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			col.SetVec(i, x1.At(i, j))
		}
		colNorm := mat.Norm(col, 2)

		resid := mat.NewVecDense(n, nil)
		resid.CopyVec(col)
		for _, q := range basis {
			proj := mat.Dot(q, resid)
			resid.AddScaledVec(resid, -proj, q)
		}
		residNorm := mat.Norm(resid, 2)

		if colNorm == 0 || residNorm <= depTolerance*colNorm {
			support := dependencySupport(x1, accepted, col, names)
			return linmodErrors.NewRankDeficiencyError(op, names[j], support)
		}

		resid.ScaleVec(1/residNorm, resid)
		basis = append(basis, resid)
		accepted = append(accepted, j)
	}
	return nil
}

// dependencySupport regresses the dependent column on the accepted columns
// and returns the names of those with non-negligible coefficients.
func dependencySupport(x1 *mat.Dense, accepted []int, col *mat.VecDense, names []string) []string {
	n, _ := x1.Dims()
	if len(accepted) == 0 {
		return nil
	}

	a := mat.NewDense(n, len(accepted), nil)
	for idx, j := range accepted {
		for i := 0; i < n; i++ {
			a.Set(i, idx, x1.At(i, j))
		}
	}

	var qr mat.QR
	qr.Factorize(a)
	var coef mat.Dense
	if err := qr.SolveTo(&coef, false, col); err != nil {
		// Cannot attribute the dependency; report every candidate.
		support := make([]string, len(accepted))
		for idx, j := range accepted {
			support[idx] = names[j]
		}
		return support
	}

	var support []string
	for idx, j := range accepted {
		if math.Abs(coef.At(idx, 0)) > 1e-6 {
			support = append(support, names[j])
		}
	}
	return support
}

// Predict generates predictions for the input feature matrix.
func (o *OLS) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if !o.state.IsFitted() {
		return nil, linmodErrors.NewNotFittedError("OLS", "Predict")
	}

	n, p := X.Dims()
	if p != len(o.weights) {
		return nil, linmodErrors.NewDimensionError("OLS.Predict", len(o.weights), p, 1)
	}

	predictions := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		pred := o.intercept
		for j := 0; j < p; j++ {
			pred += X.At(i, j) * o.weights[j]
		}
		predictions.SetVec(i, pred)
	}
	return predictions, nil
}

// Result returns the immutable fit result.
func (o *OLS) Result() (*model.FitResult, error) {
	if !o.state.IsFitted() {
		return nil, linmodErrors.NewNotFittedError("OLS", "Result")
	}
	return o.result, nil
}

// Intercept returns the fitted intercept.
func (o *OLS) Intercept() float64 { return o.intercept }

// Weights returns a copy of the fitted slope coefficients.
func (o *OLS) Weights() []float64 {
	return append([]float64(nil), o.weights...)
}

// Leverage returns a copy of the hat-matrix diagonal, one value per
// training observation.
func (o *OLS) Leverage() []float64 {
	return append([]float64(nil), o.leverage...)
}

// CooksDistance returns a copy of the per-observation Cook's distances.
func (o *OLS) CooksDistance() []float64 {
	return append([]float64(nil), o.cooks...)
}

// InfluentialIndices returns the row indices whose Cook's distance exceeds
// 4/(n-p-1). Flagged observations are reported, never removed.
func (o *OLS) InfluentialIndices() []int {
	return append([]int(nil), o.influential...)
}

// R2 returns the coefficient of determination on the training data.
func (o *OLS) R2() float64 { return o.r2 }

// AdjustedR2 returns R² adjusted for the parameter count.
func (o *OLS) AdjustedR2() float64 { return o.adjR2 }

// MSE returns the training mean squared error.
func (o *OLS) MSE() float64 { return o.mse }

// IsFitted returns whether the model has been fitted.
func (o *OLS) IsFitted() bool { return o.state.IsFitted() }
