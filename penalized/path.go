package penalized

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/linmod/core/model"
	linmodErrors "github.com/ezoic/linmod/pkg/errors"
	"github.com/ezoic/linmod/pkg/log"
)

// PathPoint is one step of a penalty path: the strength and the coefficients
// fitted at that strength, on the original (unstandardized) scale.
type PathPoint struct {
	Lambda       float64   `json:"lambda"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// NonzeroCount returns the number of coefficients above the shared
// sparsity tolerance.
func (p PathPoint) NonzeroCount() int {
	count := 0
	for _, c := range p.Coefficients {
		if math.Abs(c) > model.NonzeroTolerance {
			count++
		}
	}
	return count
}

// PenaltyPath is the immutable result of one path fit. Points are ordered
// from most to least regularization (descending λ), matching the solver's
// warm-start order.
type PenaltyPath struct {
	Family Family      `json:"family"`
	Alpha  float64     `json:"alpha"`
	Points []PathPoint `json:"points"`
}

// Lambdas returns the strength grid in path order.
func (p *PenaltyPath) Lambdas() []float64 {
	out := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pt.Lambda
	}
	return out
}

// NonzeroCounts returns the per-strength nonzero coefficient counts.
func (p *PenaltyPath) NonzeroCounts() []int {
	out := make([]int, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pt.NonzeroCount()
	}
	return out
}

// PathFitter computes penalty paths for one family. Configure it with
// functional options and reuse it across datasets; each FitPath call is
// independent.
type PathFitter struct {
	family Family
	alpha  float64

	lambdas        []float64
	gridSize       int
	lambdaMinRatio float64

	maxIter    int
	tol        float64
	scadShape  float64
	scadOuter  int
	timeBudget time.Duration

	folds int
	seed  int64

	logger log.Logger
}

// Option configures a PathFitter.
type Option func(*PathFitter)

// WithAlpha sets the elastic-net mixing parameter in [0, 1].
func WithAlpha(alpha float64) Option {
	return func(pf *PathFitter) { pf.alpha = alpha }
}

// WithLambdas sets an explicit strength grid, overriding auto-generation.
func WithLambdas(lambdas []float64) Option {
	return func(pf *PathFitter) { pf.lambdas = append([]float64(nil), lambdas...) }
}

// WithGridSize sets the auto-generated grid length.
func WithGridSize(size int) Option {
	return func(pf *PathFitter) { pf.gridSize = size }
}

// WithLambdaMinRatio sets the ratio of the smallest to the largest
// auto-generated strength.
func WithLambdaMinRatio(ratio float64) Option {
	return func(pf *PathFitter) { pf.lambdaMinRatio = ratio }
}

// WithMaxIter sets the per-strength coordinate-descent iteration budget.
func WithMaxIter(maxIter int) Option {
	return func(pf *PathFitter) { pf.maxIter = maxIter }
}

// WithTol sets the coordinate-descent convergence tolerance on the largest
// coefficient change per sweep.
func WithTol(tol float64) Option {
	return func(pf *PathFitter) { pf.tol = tol }
}

// WithSCADShape sets the SCAD shape parameter (default 3.7).
func WithSCADShape(a float64) Option {
	return func(pf *PathFitter) { pf.scadShape = a }
}

// WithTimeBudget bounds the wall-clock time of a path fit, checked between
// strength steps. There is no mid-step cancellation.
func WithTimeBudget(d time.Duration) Option {
	return func(pf *PathFitter) { pf.timeBudget = d }
}

// WithFolds sets the cross-validation fold count.
func WithFolds(k int) Option {
	return func(pf *PathFitter) { pf.folds = k }
}

// WithSeed sets the seed for the cross-validation fold shuffle.
func WithSeed(seed int64) Option {
	return func(pf *PathFitter) { pf.seed = seed }
}

// NewPathFitter creates a PathFitter for the given family with defaults:
// α = 0.5 (elastic net only), 100-point grid down to λmax·1e-3, 1000
// iterations per strength, 5 folds, seed 1.
func NewPathFitter(family Family, opts ...Option) *PathFitter {
	pf := &PathFitter{
		family:         family,
		alpha:          0.5,
		gridSize:       100,
		lambdaMinRatio: 1e-3,
		maxIter:        1000,
		tol:            1e-7,
		scadShape:      DefaultSCADShape,
		scadOuter:      3,
		folds:          5,
		seed:           1,
	}
	for _, opt := range opts {
		opt(pf)
	}
	pf.logger = log.GetLoggerWithName("penalized").With(
		log.ModelNameKey, "PathFitter",
	)
	return pf
}

// SetLogger replaces the fitter's logger, primarily for tests.
func (pf *PathFitter) SetLogger(logger log.Logger) { pf.logger = logger }

// Family returns the fitter's penalty family.
func (pf *PathFitter) Family() Family { return pf.family }

func (pf *PathFitter) validate() error {
	if pf.alpha < 0 || pf.alpha > 1 {
		return linmodErrors.NewConfigurationError("alpha", "must be in [0, 1]", pf.alpha)
	}
	if pf.gridSize < 2 {
		return linmodErrors.NewConfigurationError("grid_size", "must be at least 2", pf.gridSize)
	}
	if pf.lambdaMinRatio <= 0 || pf.lambdaMinRatio >= 1 {
		return linmodErrors.NewConfigurationError("lambda_min_ratio", "must be in (0, 1)", pf.lambdaMinRatio)
	}
	if pf.maxIter <= 0 {
		return linmodErrors.NewConfigurationError("max_iter", "must be positive", pf.maxIter)
	}
	if pf.scadShape <= 2 {
		return linmodErrors.NewConfigurationError("scad_shape", "must exceed 2", pf.scadShape)
	}
	for _, l := range pf.lambdas {
		if l < 0 {
			return linmodErrors.NewConfigurationError("lambdas", "strengths must be non-negative", l)
		}
	}
	return nil
}

// effectiveAlpha maps the family to the L1 share of the penalty.
func (pf *PathFitter) effectiveAlpha() float64 {
	switch pf.family {
	case Ridge:
		return 0
	case Lasso, SCAD:
		return 1
	default:
		return pf.alpha
	}
}

// FitPath computes the coefficient path over the strength grid. Points are
// ordered from most to least regularization and warm-started in that order.
func (pf *PathFitter) FitPath(X mat.Matrix, y *mat.VecDense) (_ *PenaltyPath, err error) {
	defer linmodErrors.Recover(&err, "PathFitter.FitPath")

	if err := pf.validate(); err != nil {
		return nil, err
	}

	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, linmodErrors.NewValueError("PathFitter.FitPath", "empty design matrix")
	}
	if y.Len() != n {
		return nil, linmodErrors.NewDimensionError("PathFitter.FitPath", n, y.Len(), 0)
	}

	startTime := time.Now()
	std := standardize(X, y)

	grid, err := pf.makeGrid(std)
	if err != nil {
		return nil, err
	}

	pf.logger.Info("Path fit started",
		log.OperationKey, log.OperationFitPath,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		"family", pf.family.String(),
		"grid_size", len(grid),
	)

	path, err := pf.fitPathOnData(std, grid, startTime)
	if err != nil {
		return nil, err
	}

	pf.logger.Info("Path fit completed",
		log.OperationKey, log.OperationFitPath,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
		"points", len(path.Points),
	)
	return path, nil
}

// fitPathOnData runs the per-strength solvers over a prepared dataset. The
// grid must be sorted descending.
func (pf *PathFitter) fitPathOnData(std *standardized, grid []float64, startTime time.Time) (*PenaltyPath, error) {
	alphaEff := pf.effectiveAlpha()

	var ridgeSolver *ridgeState
	if pf.family == Ridge {
		ridgeSolver = newRidgeState(std)
	}

	beta := make([]float64, std.p)
	resid := append([]float64(nil), std.yc...)

	points := make([]PathPoint, 0, len(grid))
	for _, lambda := range grid {
		if pf.timeBudget > 0 && time.Since(startTime) > pf.timeBudget && len(points) > 0 {
			pf.logger.Warn("Path fit time budget exhausted; truncating grid",
				log.LambdaKey, lambda,
				"points", len(points),
			)
			break
		}

		switch pf.family {
		case Ridge:
			ridgeSolver.solve(lambda, beta)
		case SCAD:
			pf.solveSCAD(std, beta, resid, lambda)
		default:
			pf.coordinateDescent(std, beta, resid, lambda*alphaEff, lambda*(1-alphaEff), nil)
		}

		points = append(points, std.unstandardize(lambda, beta))
	}

	if len(points) == 0 {
		return nil, linmodErrors.NewDegenerateFitError("PathFitter.FitPath", pf.family.String(), len(grid))
	}

	path := &PenaltyPath{Family: pf.family, Alpha: alphaEff, Points: points}
	for _, count := range path.NonzeroCounts() {
		if count > 0 {
			return path, nil
		}
	}
	return nil, linmodErrors.NewDegenerateFitError("PathFitter.FitPath", pf.family.String(), len(grid))
}

// makeGrid returns the strength grid sorted descending. The auto-generated
// grid spans from the smallest strength that zeroes every coefficient down
// to a near-zero multiple of it, log-spaced.
func (pf *PathFitter) makeGrid(std *standardized) ([]float64, error) {
	if len(pf.lambdas) > 0 {
		grid := append([]float64(nil), pf.lambdas...)
		sort.Sort(sort.Reverse(sort.Float64Slice(grid)))
		return grid, nil
	}

	alphaEff := pf.effectiveAlpha()
	// Ridge never zeroes coefficients; the same glmnet-style floor keeps its
	// grid on a comparable scale.
	denom := math.Max(alphaEff, 1e-3)

	var lambdaMax float64
	for j := 0; j < std.p; j++ {
		dot := math.Abs(dotProduct(std.cols[j], std.yc)) / float64(std.n)
		if dot > lambdaMax {
			lambdaMax = dot
		}
	}
	lambdaMax /= denom

	if !(lambdaMax > 0) {
		return nil, linmodErrors.NewDegenerateFitError("PathFitter.FitPath", pf.family.String(), pf.gridSize)
	}

	grid := make([]float64, pf.gridSize)
	logMax := math.Log(lambdaMax)
	logMin := math.Log(lambdaMax * pf.lambdaMinRatio)
	for i := range grid {
		frac := float64(i) / float64(pf.gridSize-1)
		grid[i] = math.Exp(logMax + frac*(logMin-logMax))
	}
	return grid, nil
}

// coordinateDescent runs cyclic coordinate descent on standardized data.
// l1 and l2 are the absolute L1/L2 penalty strengths; weights, when non-nil,
// override the per-coordinate L1 threshold (SCAD's local linear
// approximation). beta and resid are updated in place.
func (pf *PathFitter) coordinateDescent(std *standardized, beta, resid []float64, l1, l2 float64, weights []float64) {
	n := float64(std.n)

	for iter := 0; iter < pf.maxIter; iter++ {
		var maxChange float64

		for j := 0; j < std.p; j++ {
			col := std.cols[j]
			old := beta[j]

			// Partial residual correlation; columns have unit mean square,
			// so the coordinate update is a single soft threshold.
			z := dotProduct(col, resid)/n + old*std.colMS[j]

			threshold := l1
			if weights != nil {
				threshold = weights[j]
			}

			var updated float64
			if std.colMS[j] > 0 {
				updated = softThreshold(z, threshold) / (std.colMS[j] + l2)
			}

			if updated != old {
				delta := updated - old
				for i := range resid {
					resid[i] -= delta * col[i]
				}
				beta[j] = updated
				if change := math.Abs(delta); change > maxChange {
					maxChange = change
				}
			}
		}

		if maxChange < pf.tol {
			break
		}
	}
}

// solveSCAD fits one SCAD strength by local linear approximation: the
// penalty is repeatedly linearized at the current iterate and the resulting
// weighted lasso is solved by coordinate descent.
func (pf *PathFitter) solveSCAD(std *standardized, beta, resid []float64, lambda float64) {
	weights := make([]float64, std.p)
	for outer := 0; outer < pf.scadOuter; outer++ {
		for j := range weights {
			weights[j] = scadDerivative(beta[j], lambda, pf.scadShape)
		}
		pf.coordinateDescent(std, beta, resid, lambda, 0, weights)
	}
}

// ridgeState caches the Gram matrix so each strength only pays a Cholesky
// factorization of G + λI.
type ridgeState struct {
	std  *standardized
	gram *mat.SymDense
	xty  []float64
}

func newRidgeState(std *standardized) *ridgeState {
	n := float64(std.n)
	gram := mat.NewSymDense(std.p, nil)
	for j := 0; j < std.p; j++ {
		for k := j; k < std.p; k++ {
			gram.SetSym(j, k, dotProduct(std.cols[j], std.cols[k])/n)
		}
	}
	xty := make([]float64, std.p)
	for j := 0; j < std.p; j++ {
		xty[j] = dotProduct(std.cols[j], std.yc) / n
	}
	return &ridgeState{std: std, gram: gram, xty: xty}
}

// solve writes the exact ridge solution for lambda into beta.
func (rs *ridgeState) solve(lambda float64, beta []float64) {
	p := rs.std.p
	reg := mat.NewSymDense(p, nil)
	reg.CopySym(rs.gram)
	for j := 0; j < p; j++ {
		reg.SetSym(j, j, rs.gram.At(j, j)+lambda)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(reg); !ok {
		// G + λI can only fail to be positive definite at λ = 0 with a
		// degenerate Gram matrix; leave beta at its warm-start value.
		return
	}

	rhs := mat.NewVecDense(p, append([]float64(nil), rs.xty...))
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, rhs); err != nil {
		return
	}
	for j := 0; j < p; j++ {
		beta[j] = sol.AtVec(j)
	}
}

// standardized holds a centered, variance-scaled copy of the data. Columns
// with zero variance get colMS = 0 and are pinned at zero by the solvers.
type standardized struct {
	n, p   int
	cols   [][]float64
	colMS  []float64 // mean square of each standardized column: 1, or 0 if degenerate
	yc     []float64
	ymean  float64
	xmean  []float64
	xscale []float64
}

func standardize(X mat.Matrix, y *mat.VecDense) *standardized {
	n, p := X.Dims()
	std := &standardized{
		n:      n,
		p:      p,
		cols:   make([][]float64, p),
		colMS:  make([]float64, p),
		yc:     make([]float64, n),
		xmean:  make([]float64, p),
		xscale: make([]float64, p),
	}

	for i := 0; i < n; i++ {
		std.ymean += y.AtVec(i)
	}
	std.ymean /= float64(n)
	for i := 0; i < n; i++ {
		std.yc[i] = y.AtVec(i) - std.ymean
	}

	for j := 0; j < p; j++ {
		col := make([]float64, n)
		var mean float64
		for i := 0; i < n; i++ {
			col[i] = X.At(i, j)
			mean += col[i]
		}
		mean /= float64(n)

		var variance float64
		for i := 0; i < n; i++ {
			d := col[i] - mean
			variance += d * d
		}
		variance /= float64(n)

		scale := math.Sqrt(variance)
		std.xmean[j] = mean
		if scale > 0 {
			std.xscale[j] = scale
			std.colMS[j] = 1
			for i := 0; i < n; i++ {
				col[i] = (col[i] - mean) / scale
			}
		} else {
			// Degenerate column: keep it, but solvers will never move it.
			std.xscale[j] = 1
			std.colMS[j] = 0
			for i := 0; i < n; i++ {
				col[i] = 0
			}
		}
		std.cols[j] = col
	}

	return std
}

// unstandardize maps standardized coefficients back to the original scale
// and recovers the intercept.
func (std *standardized) unstandardize(lambda float64, beta []float64) PathPoint {
	coefs := make([]float64, std.p)
	intercept := std.ymean
	for j := 0; j < std.p; j++ {
		coefs[j] = beta[j] / std.xscale[j]
		intercept -= coefs[j] * std.xmean[j]
	}
	return PathPoint{Lambda: lambda, Intercept: intercept, Coefficients: coefs}
}

func dotProduct(a, b []float64) float64 {
	var sum float64
	for i, v := range a {
		sum += v * b[i]
	}
	return sum
}
