package optimize

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	linmodErrors "github.com/ezoic/linmod/pkg/errors"
	"github.com/ezoic/linmod/pkg/log"
)

func newTestGD(opts ...Option) *GradientDescent {
	gd := NewGradientDescent(opts...)
	gd.SetLogger(log.NewTestLogger())
	return gd
}

// noiselessLine is y = 2x with an explicit intercept column.
func noiselessLine() (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(3, 2, []float64{
		1, 1,
		1, 2,
		1, 3,
	})
	y := mat.NewVecDense(3, []float64{2, 4, 6})
	return X, y
}

func TestGradientDescent_ConvergesToLeastSquares(t *testing.T) {
	X, y := noiselessLine()

	gd := newTestGD(WithLearningRate(0.1), WithMaxIter(1000))
	if err := gd.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	w := gd.Weights()
	if math.Abs(w[0]) > 1e-3 {
		t.Errorf("intercept coefficient = %v, want ≈ 0", w[0])
	}
	if math.Abs(w[1]-2) > 1e-3 {
		t.Errorf("slope coefficient = %v, want ≈ 2", w[1])
	}
}

func TestGradientDescent_TraceNonIncreasing(t *testing.T) {
	X, y := noiselessLine()

	gd := newTestGD(WithLearningRate(0.05), WithMaxIter(200))
	if err := gd.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	trace := gd.Trace()
	if len(trace) != 200 {
		t.Fatalf("trace has %d points, want 200", len(trace))
	}
	for i, pt := range trace {
		if pt.Iteration != i+1 {
			t.Fatalf("trace[%d].Iteration = %d, want %d", i, pt.Iteration, i+1)
		}
	}
	for i := 1; i < len(trace); i++ {
		if trace[i].MSE > trace[i-1].MSE+1e-15 {
			t.Errorf("loss increased at iteration %d: %v > %v", trace[i].Iteration, trace[i].MSE, trace[i-1].MSE)
		}
	}
}

func TestGradientDescent_BatchEqualsNMatchesFullBatch(t *testing.T) {
	X, y := noiselessLine()

	full := newTestGD(WithLearningRate(0.1), WithMaxIter(300))
	if err := full.Fit(X, y); err != nil {
		t.Fatalf("full-batch Fit failed: %v", err)
	}

	batched := newTestGD(WithLearningRate(0.1), WithMaxIter(300), WithBatchSize(3), WithSeed(99))
	if err := batched.Fit(X, y); err != nil {
		t.Fatalf("batch=n Fit failed: %v", err)
	}

	fw, bw := full.Weights(), batched.Weights()
	for j := range fw {
		if fw[j] != bw[j] {
			t.Errorf("weights[%d] differ: full=%v batch=n=%v (must be bit-identical)", j, fw[j], bw[j])
		}
	}
	ft, bt := full.Trace(), batched.Trace()
	for i := range ft {
		if ft[i].MSE != bt[i].MSE {
			t.Fatalf("trace MSE differs at iteration %d: %v vs %v", ft[i].Iteration, ft[i].MSE, bt[i].MSE)
		}
	}
}

func TestGradientDescent_StochasticReducesLoss(t *testing.T) {
	X, y := noiselessLine()

	gd := newTestGD(WithLearningRate(0.02), WithMaxIter(500), WithBatchSize(1), WithSeed(5))
	if err := gd.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	trace := gd.Trace()
	initial := trace[0].MSE
	final := trace.Final().MSE
	if final >= initial {
		t.Errorf("SGD final MSE %v not below first-iteration MSE %v", final, initial)
	}
}

func TestGradientDescent_StochasticDeterministicUnderSeed(t *testing.T) {
	X, y := noiselessLine()

	run := func() []float64 {
		gd := newTestGD(WithLearningRate(0.02), WithMaxIter(100), WithBatchSize(2), WithSeed(17))
		if err := gd.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		return gd.Weights()
	}

	first, second := run(), run()
	for j := range first {
		if first[j] != second[j] {
			t.Errorf("weights[%d] differ across seeded runs: %v vs %v", j, first[j], second[j])
		}
	}
}

func TestGradientDescent_Diverges(t *testing.T) {
	// Learning rate far above 2/λmax forces oscillatory blow-up.
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewVecDense(3, []float64{2, 4, 6})

	gd := newTestGD(WithLearningRate(1.0), WithMaxIter(10000))
	err := gd.Fit(X, y)

	var de *linmodErrors.DivergedError
	if !linmodErrors.As(err, &de) {
		t.Fatalf("expected DivergedError, got %v", err)
	}
	if de.LearningRate != 1.0 {
		t.Errorf("reported learning rate = %v, want 1.0", de.LearningRate)
	}
	// Detection is bounded: blow-up at this rate is caught within a handful
	// of iterations, nowhere near the iteration budget.
	if de.Iteration > 100 {
		t.Errorf("divergence detected at iteration %d, expected early stop", de.Iteration)
	}
	if gd.IsFitted() {
		t.Error("diverged engine must not report fitted state")
	}
	if len(gd.Trace()) == 0 {
		t.Error("diverged run should retain its partial trace")
	}
}

func TestGradientDescent_ConfigurationErrors(t *testing.T) {
	X, y := noiselessLine()

	tests := []struct {
		name string
		opts []Option
	}{
		{"zero batch size", []Option{WithBatchSize(0)}},
		{"batch above n", []Option{WithBatchSize(4)}},
		{"negative learning rate", []Option{WithLearningRate(-0.1)}},
		{"zero learning rate", []Option{WithLearningRate(0)}},
		{"zero iterations", []Option{WithMaxIter(0)}},
		{"divergence factor at one", []Option{WithDivergenceFactor(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gd := newTestGD(tt.opts...)
			err := gd.Fit(X, y)
			var ce *linmodErrors.ConfigurationError
			if !linmodErrors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			// Validation fires before any iteration.
			if len(gd.Trace()) != 0 {
				t.Error("no iterations may run under invalid configuration")
			}
		})
	}
}

func TestGradientDescent_PredictAndResult(t *testing.T) {
	X, y := noiselessLine()

	gd := newTestGD(WithLearningRate(0.1), WithMaxIter(1000))
	if err := gd.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	pred, err := gd.Predict(mat.NewDense(1, 2, []float64{1, 5}))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if math.Abs(pred.AtVec(0)-10) > 1e-2 {
		t.Errorf("prediction = %v, want ≈ 10", pred.AtVec(0))
	}

	result, err := gd.Result()
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if len(result.Fitted) != 3 || len(result.Residuals) != 3 {
		t.Errorf("result has %d fitted / %d residuals, want 3 each", len(result.Fitted), len(result.Residuals))
	}

	if _, err := gd.Predict(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("expected DimensionError for wrong feature count")
	}
}

func TestGradientDescent_NotFitted(t *testing.T) {
	gd := newTestGD()
	var nfe *linmodErrors.NotFittedError
	_, err := gd.Result()
	if !linmodErrors.As(err, &nfe) {
		t.Errorf("expected NotFittedError, got %v", err)
	}
}

func TestCriticalBatchSize(t *testing.T) {
	// Orthonormal rows: every row norm is 1 and the Hessian is I/2, so the
	// critical batch size is exactly 2.
	X := mat.NewDense(2, 2, []float64{
		1, 0,
		0, 1,
	})
	got, err := CriticalBatchSize(X)
	if err != nil {
		t.Fatalf("CriticalBatchSize failed: %v", err)
	}
	if math.Abs(got-2) > 1e-12 {
		t.Errorf("CriticalBatchSize = %v, want 2", got)
	}

	// Single column: max xᵢ² over mean of xᵢ².
	X = mat.NewDense(2, 1, []float64{3, 4})
	got, err = CriticalBatchSize(X)
	if err != nil {
		t.Fatalf("CriticalBatchSize failed: %v", err)
	}
	want := 16.0 / 12.5
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("CriticalBatchSize = %v, want %v", got, want)
	}

	// All-zero design has no positive curvature.
	if _, err := CriticalBatchSize(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected error for zero design matrix")
	}
}
