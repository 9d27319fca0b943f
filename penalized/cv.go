package penalized

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/linmod/core/model"
	"github.com/ezoic/linmod/core/parallel"
	linmodErrors "github.com/ezoic/linmod/pkg/errors"
	"github.com/ezoic/linmod/pkg/log"
)

// CVResult holds a cross-validated path fit: the full-data path, the per
// strength mean held-out MSE, and the selected strength (lambda.min).
type CVResult struct {
	Path      *PenaltyPath `json:"path"`
	MeanMSE   []float64    `json:"mean_mse"`
	BestIndex int          `json:"best_index"`

	best *model.FitResult
}

// BestLambda returns the selected strength.
func (r *CVResult) BestLambda() float64 {
	return r.Path.Points[r.BestIndex].Lambda
}

// BestPoint returns the full-data path point at the selected strength.
func (r *CVResult) BestPoint() PathPoint {
	return r.Path.Points[r.BestIndex]
}

// BestResult returns the fit result at the selected strength, evaluated on
// the full training data.
func (r *CVResult) BestResult() *model.FitResult {
	return r.best
}

// CrossValidate fits the path on every training fold of a seeded k-fold
// split, scores each strength on the held-out fold, and selects the
// strength minimizing the mean held-out MSE. The strength grid is derived
// once from the full dataset so every fold scores the same strengths; ties
// resolve toward more regularization. Folds run in parallel.
func (pf *PathFitter) CrossValidate(X mat.Matrix, y *mat.VecDense) (_ *CVResult, err error) {
	defer linmodErrors.Recover(&err, "PathFitter.CrossValidate")

	if err := pf.validate(); err != nil {
		return nil, err
	}
	if pf.folds < 2 {
		return nil, linmodErrors.NewConfigurationError("folds", "must be at least 2", pf.folds)
	}

	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, linmodErrors.NewValueError("PathFitter.CrossValidate", "empty design matrix")
	}
	if y.Len() != n {
		return nil, linmodErrors.NewDimensionError("PathFitter.CrossValidate", n, y.Len(), 0)
	}
	if pf.folds > n {
		return nil, linmodErrors.NewConfigurationError("folds", "cannot exceed sample count", pf.folds)
	}

	startTime := time.Now()
	fullStd := standardize(X, y)
	grid, err := pf.makeGrid(fullStd)
	if err != nil {
		return nil, err
	}

	pf.logger.Info("Cross-validation started",
		log.OperationKey, log.OperationCrossValidate,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.FoldsKey, pf.folds,
		log.SeedKey, pf.seed,
		"family", pf.family.String(),
	)

	folds := pf.assignFolds(n)

	foldMSE := make([][]float64, pf.folds)
	foldErr := make([]error, pf.folds)
	parallel.Parallelize(pf.folds, func(start, end int) {
		for f := start; f < end; f++ {
			foldMSE[f], foldErr[f] = pf.scoreFold(X, y, folds, f, grid)
		}
	})
	for _, e := range foldErr {
		if e != nil {
			return nil, e
		}
	}

	// A fold hitting the time budget can truncate its path; score only the
	// strengths every fold completed.
	points := len(grid)
	for _, mse := range foldMSE {
		if len(mse) < points {
			points = len(mse)
		}
	}
	if points == 0 {
		return nil, linmodErrors.NewDegenerateFitError("PathFitter.CrossValidate", pf.family.String(), len(grid))
	}

	meanMSE := make([]float64, points)
	for _, mse := range foldMSE {
		for i := 0; i < points; i++ {
			meanMSE[i] += mse[i]
		}
	}
	bestIdx := 0
	for i := range meanMSE {
		meanMSE[i] /= float64(pf.folds)
		// Strictly-less keeps ties at the larger strength.
		if meanMSE[i] < meanMSE[bestIdx] {
			bestIdx = i
		}
	}

	path, err := pf.fitPathOnData(fullStd, grid[:points], startTime)
	if err != nil {
		return nil, err
	}
	if len(path.Points) <= bestIdx {
		bestIdx = len(path.Points) - 1
	}
	meanMSE = meanMSE[:len(path.Points)]

	best := path.Points[bestIdx]
	fitted := predictPoint(best, X)
	residuals := make([]float64, n)
	for i := range residuals {
		residuals[i] = y.AtVec(i) - fitted[i]
	}

	result := &CVResult{
		Path:      path,
		MeanMSE:   meanMSE,
		BestIndex: bestIdx,
		best:      model.NewFitResult(best.Intercept, best.Coefficients, fitted, residuals),
	}

	pf.logger.Info("Cross-validation completed",
		log.OperationKey, log.OperationCrossValidate,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
		log.LambdaKey, result.BestLambda(),
		log.MSEKey, meanMSE[bestIdx],
		log.NonzeroKey, best.NonzeroCount(),
	)
	return result, nil
}

// assignFolds returns a fold label per row from a seeded shuffle, so the
// split is deterministic for a fixed seed and balanced to within one row.
func (pf *PathFitter) assignFolds(n int) []int {
	rng := rand.New(rand.NewPCG(uint64(pf.seed), uint64(pf.seed)))
	perm := rng.Perm(n)

	folds := make([]int, n)
	for pos, row := range perm {
		folds[row] = pos % pf.folds
	}
	return folds
}

// scoreFold fits the path on all rows outside fold f and returns the
// held-out MSE at each strength.
func (pf *PathFitter) scoreFold(X mat.Matrix, y *mat.VecDense, folds []int, f int, grid []float64) ([]float64, error) {
	n, p := X.Dims()

	var trainRows, testRows []int
	for i := 0; i < n; i++ {
		if folds[i] == f {
			testRows = append(testRows, i)
		} else {
			trainRows = append(trainRows, i)
		}
	}

	trainX := mat.NewDense(len(trainRows), p, nil)
	trainY := mat.NewVecDense(len(trainRows), nil)
	for idx, i := range trainRows {
		for j := 0; j < p; j++ {
			trainX.Set(idx, j, X.At(i, j))
		}
		trainY.SetVec(idx, y.AtVec(i))
	}

	std := standardize(trainX, trainY)
	path, err := pf.fitPathOnData(std, grid, time.Now())
	if err != nil {
		return nil, err
	}

	mse := make([]float64, len(path.Points))
	for idx, pt := range path.Points {
		var sse float64
		for _, i := range testRows {
			pred := pt.Intercept
			for j := 0; j < p; j++ {
				pred += pt.Coefficients[j] * X.At(i, j)
			}
			d := y.AtVec(i) - pred
			sse += d * d
		}
		mse[idx] = sse / float64(len(testRows))
	}
	return mse, nil
}

// predictPoint evaluates a path point's linear predictor on every row of X.
func predictPoint(pt PathPoint, X mat.Matrix) []float64 {
	n, p := X.Dims()
	fitted := make([]float64, n)
	for i := 0; i < n; i++ {
		pred := pt.Intercept
		for j := 0; j < p; j++ {
			pred += pt.Coefficients[j] * X.At(i, j)
		}
		fitted[i] = pred
	}
	return fitted
}

// Predict evaluates the selected model on new data.
func (r *CVResult) Predict(X mat.Matrix) (*mat.VecDense, error) {
	_, p := X.Dims()
	best := r.BestPoint()
	if p != len(best.Coefficients) {
		return nil, linmodErrors.NewDimensionError("CVResult.Predict", len(best.Coefficients), p, 1)
	}
	fitted := predictPoint(best, X)
	return mat.NewVecDense(len(fitted), fitted), nil
}
