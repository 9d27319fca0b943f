// Package optimize implements fixed-step gradient descent for the
// squared-error objective L(β) = (1/n)‖Xβ−y‖², in full-batch and
// mini-batch/stochastic variants.
//
// The engine is deliberately plain: no line search, no adaptive step sizes,
// no momentum. The learning rate and iteration budget are caller-supplied,
// which keeps runs at different batch sizes directly comparable. Every
// iteration records the full-dataset MSE in a ConvergenceTrace, and a run
// whose loss overflows or grows past a configurable multiple of its starting
// value stops with a DivergedError instead of returning garbage.
package optimize

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/linmod/core/model"
	linmodErrors "github.com/ezoic/linmod/pkg/errors"
	"github.com/ezoic/linmod/pkg/log"
)

// fullBatch is the batch-size sentinel meaning "use all n rows".
const fullBatch = -1

// TracePoint is one monitoring sample of a gradient-descent run.
type TracePoint struct {
	Iteration int     `json:"iteration"`
	MSE       float64 `json:"mse"`
}

// ConvergenceTrace is the per-iteration loss history of one run, in
// iteration order. Each run produces its own trace; traces are never shared
// or mutated after the run returns.
type ConvergenceTrace []TracePoint

// Final returns the last recorded point. It panics on an empty trace.
func (t ConvergenceTrace) Final() TracePoint {
	return t[len(t)-1]
}

// MSEs returns the loss values in iteration order.
func (t ConvergenceTrace) MSEs() []float64 {
	out := make([]float64, len(t))
	for i, p := range t {
		out[i] = p.MSE
	}
	return out
}

// GradientDescent minimizes mean-squared error by fixed-step first-order
// updates. The zero batch-size configuration uses the full dataset every
// iteration; any explicit batch size samples that many rows uniformly
// without replacement, fresh each iteration.
type GradientDescent struct {
	state *model.StateManager

	learningRate     float64
	maxIter          int
	batchSize        int
	seed             int64
	divergenceFactor float64

	weights []float64
	trace   ConvergenceTrace
	result  *model.FitResult

	logger log.Logger
}

// Option configures a GradientDescent engine.
type Option func(*GradientDescent)

// WithLearningRate sets the fixed step size.
func WithLearningRate(lr float64) Option {
	return func(gd *GradientDescent) { gd.learningRate = lr }
}

// WithMaxIter sets the iteration budget. The engine always runs the full
// budget unless it diverges.
func WithMaxIter(maxIter int) Option {
	return func(gd *GradientDescent) { gd.maxIter = maxIter }
}

// WithBatchSize sets the mini-batch size, which must lie in [1, n] at fit
// time. Size 1 is pure stochastic gradient descent; size n matches
// full-batch exactly. Without this option the engine runs full-batch.
func WithBatchSize(size int) Option {
	return func(gd *GradientDescent) { gd.batchSize = size }
}

// WithSeed sets the seed of the batch sampler.
func WithSeed(seed int64) Option {
	return func(gd *GradientDescent) { gd.seed = seed }
}

// WithDivergenceFactor sets the multiple of the initial loss beyond which
// the run counts as diverged (default 10).
func WithDivergenceFactor(factor float64) Option {
	return func(gd *GradientDescent) { gd.divergenceFactor = factor }
}

// NewGradientDescent creates an engine with defaults: learning rate 0.01,
// 1000 iterations, full-batch, seed 1, divergence factor 10.
func NewGradientDescent(opts ...Option) *GradientDescent {
	gd := &GradientDescent{
		state:            model.NewStateManager(),
		learningRate:     0.01,
		maxIter:          1000,
		batchSize:        fullBatch,
		seed:             1,
		divergenceFactor: 10,
	}
	for _, opt := range opts {
		opt(gd)
	}
	gd.logger = log.GetLoggerWithName("optimize").With(
		log.ModelNameKey, "GradientDescent",
	)
	return gd
}

// SetLogger replaces the engine's logger, primarily for tests.
func (gd *GradientDescent) SetLogger(logger log.Logger) { gd.logger = logger }

func (gd *GradientDescent) validate(n int) error {
	if gd.learningRate <= 0 {
		return linmodErrors.NewConfigurationError("learning_rate", "must be positive", gd.learningRate)
	}
	if gd.maxIter <= 0 {
		return linmodErrors.NewConfigurationError("max_iter", "must be positive", gd.maxIter)
	}
	if gd.divergenceFactor <= 1 {
		return linmodErrors.NewConfigurationError("divergence_factor", "must exceed 1", gd.divergenceFactor)
	}
	if gd.batchSize != fullBatch && (gd.batchSize < 1 || gd.batchSize > n) {
		return linmodErrors.NewConfigurationError("batch_size", "must be in [1, n]", gd.batchSize)
	}
	return nil
}

// Fit runs the descent from β = 0. All validation happens before the first
// iteration; a divergent run fails with a DivergedError carrying the last
// finite iteration and loss.
func (gd *GradientDescent) Fit(X mat.Matrix, y *mat.VecDense) (err error) {
	defer linmodErrors.Recover(&err, "GradientDescent.Fit")

	n, p := X.Dims()
	if n == 0 || p == 0 {
		return linmodErrors.NewValueError("GradientDescent.Fit", "empty design matrix")
	}
	if y.Len() != n {
		return linmodErrors.NewDimensionError("GradientDescent.Fit", n, y.Len(), 0)
	}
	if err := gd.validate(n); err != nil {
		return err
	}

	batch := gd.batchSize
	if batch == fullBatch {
		batch = n
	}

	startTime := time.Now()
	gd.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.BatchSizeKey, batch,
		log.LearningRateKey, gd.learningRate,
	)

	// Dense row-major copy; the inner loops touch every element per
	// iteration and mat.At is too slow for that.
	rows := make([][]float64, n)
	target := make([]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			rows[i][j] = X.At(i, j)
		}
		target[i] = y.AtVec(i)
	}

	beta := make([]float64, p)
	grad := make([]float64, p)
	trace := make(ConvergenceTrace, 0, gd.maxIter)

	initialMSE := fullMSE(rows, target, beta)
	limit := gd.divergenceFactor * initialMSE

	rng := rand.New(rand.NewPCG(uint64(gd.seed), uint64(gd.seed)))
	canonical := make([]int, n)
	for i := range canonical {
		canonical[i] = i
	}

	lastFinite := TracePoint{Iteration: 0, MSE: initialMSE}
	for iter := 1; iter <= gd.maxIter; iter++ {
		indices := canonical
		if batch < n {
			// Fresh uniform draw without replacement each iteration.
			indices = rng.Perm(n)[:batch]
		}

		for j := range grad {
			grad[j] = 0
		}
		for _, i := range indices {
			row := rows[i]
			var pred float64
			for j, x := range row {
				pred += x * beta[j]
			}
			residual := pred - target[i]
			for j, x := range row {
				grad[j] += residual * x
			}
		}
		scale := gd.learningRate / float64(len(indices))
		for j := range beta {
			beta[j] -= scale * grad[j]
		}

		// Monitoring cost paid on purpose: the loss is evaluated on the
		// whole dataset so traces are comparable across batch sizes.
		mse := fullMSE(rows, target, beta)
		trace = append(trace, TracePoint{Iteration: iter, MSE: mse})

		if math.IsNaN(mse) || math.IsInf(mse, 0) {
			gd.trace = trace
			return linmodErrors.NewDivergedError("GradientDescent.Fit", lastFinite.Iteration, gd.learningRate, lastFinite.MSE)
		}
		if mse > limit {
			gd.trace = trace
			return linmodErrors.NewDivergedError("GradientDescent.Fit", iter, gd.learningRate, mse)
		}
		lastFinite = TracePoint{Iteration: iter, MSE: mse}
	}

	fitted := make([]float64, n)
	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		var pred float64
		for j, x := range rows[i] {
			pred += x * beta[j]
		}
		fitted[i] = pred
		residuals[i] = target[i] - pred
	}

	gd.weights = beta
	gd.trace = trace
	gd.result = model.NewFitResult(0, beta, fitted, residuals)
	gd.state.SetFitted()
	gd.state.SetDimensions(p, n)

	gd.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
		log.IterationKey, gd.maxIter,
		log.MSEKey, trace.Final().MSE,
	)
	return nil
}

func fullMSE(rows [][]float64, target, beta []float64) float64 {
	var sse float64
	for i, row := range rows {
		var pred float64
		for j, x := range row {
			pred += x * beta[j]
		}
		d := pred - target[i]
		sse += d * d
	}
	return sse / float64(len(rows))
}

// Predict generates predictions for the input feature matrix.
func (gd *GradientDescent) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if !gd.state.IsFitted() {
		return nil, linmodErrors.NewNotFittedError("GradientDescent", "Predict")
	}

	n, p := X.Dims()
	if p != len(gd.weights) {
		return nil, linmodErrors.NewDimensionError("GradientDescent.Predict", len(gd.weights), p, 1)
	}

	predictions := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		var pred float64
		for j := 0; j < p; j++ {
			pred += X.At(i, j) * gd.weights[j]
		}
		predictions.SetVec(i, pred)
	}
	return predictions, nil
}

// Weights returns a copy of the fitted coefficients.
func (gd *GradientDescent) Weights() []float64 {
	return append([]float64(nil), gd.weights...)
}

// Trace returns the convergence trace of the most recent run, including a
// diverged one.
func (gd *GradientDescent) Trace() ConvergenceTrace {
	return append(ConvergenceTrace(nil), gd.trace...)
}

// Result returns the immutable fit result. The intercept slot is zero: the
// engine fits exactly the supplied columns, so callers wanting an intercept
// include a constant column.
func (gd *GradientDescent) Result() (*model.FitResult, error) {
	if !gd.state.IsFitted() {
		return nil, linmodErrors.NewNotFittedError("GradientDescent", "Result")
	}
	return gd.result, nil
}

// IsFitted returns whether the engine has completed a run.
func (gd *GradientDescent) IsFitted() bool { return gd.state.IsFitted() }

// CriticalBatchSize estimates the batch size beyond which sampling noise
// stops dominating the step-size constraint: the largest squared row norm
// of X divided by the largest eigenvalue of the Hessian (1/n)XᵀX. It is a
// diagnostic, not an enforced bound.
func CriticalBatchSize(X mat.Matrix) (float64, error) {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return 0, linmodErrors.NewValueError("CriticalBatchSize", "empty design matrix")
	}

	var maxRowNorm float64
	for i := 0; i < n; i++ {
		var norm float64
		for j := 0; j < p; j++ {
			v := X.At(i, j)
			norm += v * v
		}
		if norm > maxRowNorm {
			maxRowNorm = norm
		}
	}

	hessian := mat.NewSymDense(p, nil)
	for j := 0; j < p; j++ {
		for k := j; k < p; k++ {
			var dot float64
			for i := 0; i < n; i++ {
				dot += X.At(i, j) * X.At(i, k)
			}
			hessian.SetSym(j, k, dot/float64(n))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(hessian, false); !ok {
		return 0, linmodErrors.New("CriticalBatchSize: eigendecomposition failed")
	}
	values := eig.Values(nil)
	largest := values[len(values)-1] // EigenSym returns ascending order

	if !(largest > 0) {
		return 0, linmodErrors.NewValueError("CriticalBatchSize", "Hessian has no positive eigenvalue")
	}
	return maxRowNorm / largest, nil
}
