package compare

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/linmod/core/model"
	linmodErrors "github.com/ezoic/linmod/pkg/errors"
	"github.com/ezoic/linmod/pkg/log"
)

func newTestRunner() *Runner {
	r := NewRunner()
	r.SetLogger(log.NewTestLogger())
	return r
}

func TestRunner_PreservesRunOrder(t *testing.T) {
	r := newTestRunner()

	r.Run("ols", func() (Metrics, error) {
		return Metrics{MSE: 1.5, NonzeroCount: 3, AdjustedR2: 0.9}, nil
	})
	r.Run("lasso", func() (Metrics, error) {
		return Metrics{MSE: 1.7, NonzeroCount: 2, AdjustedR2: 0.88}, nil
	})
	r.Run("sgd", func() (Metrics, error) {
		return Metrics{MSE: 1.9, NonzeroCount: 3, AdjustedR2: 0.85}, nil
	})

	rows := r.Rows()
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	want := []string{"ols", "lasso", "sgd"}
	for i, name := range want {
		if rows[i].Method != name {
			t.Errorf("rows[%d].Method = %q, want %q (run order)", i, rows[i].Method, name)
		}
	}
	if rows[0].MSE != 1.5 || rows[0].NonzeroCount != 3 {
		t.Errorf("rows[0] metrics = %+v, not what the closure reported", rows[0])
	}
}

func TestRunner_FailedMethodDoesNotAbort(t *testing.T) {
	r := newTestRunner()

	r.Run("diverging-sgd", func() (Metrics, error) {
		return Metrics{}, linmodErrors.NewDivergedError("GradientDescent.Fit", 7, 1.0, 1e12)
	})
	r.Run("ols", func() (Metrics, error) {
		return Metrics{MSE: 2.0, NonzeroCount: 1, AdjustedR2: 0.8}, nil
	})

	rows := r.Rows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if !rows[0].Failed() {
		t.Fatal("first row should be marked failed")
	}
	if rows[0].Err != "DivergedError" {
		t.Errorf("error kind = %q, want DivergedError", rows[0].Err)
	}
	if rows[1].Failed() {
		t.Error("second method ran fine and should not be failed")
	}
}

func TestRunner_RowsReturnsCopy(t *testing.T) {
	r := newTestRunner()
	r.Run("ols", func() (Metrics, error) {
		return Metrics{MSE: 1}, nil
	})

	rows := r.Rows()
	rows[0].Method = "mutated"
	if r.Rows()[0].Method != "ols" {
		t.Error("mutating the returned slice must not affect the runner")
	}
}

func TestRunner_String(t *testing.T) {
	r := newTestRunner()
	r.Run("ridge", func() (Metrics, error) {
		return Metrics{MSE: 0.25, NonzeroCount: 5, AdjustedR2: 0.97}, nil
	})
	r.Run("broken", func() (Metrics, error) {
		return Metrics{}, linmodErrors.NewValueError("x", "bad input")
	})

	table := r.String()
	if !strings.Contains(table, "ridge") || !strings.Contains(table, "0.250000") {
		t.Errorf("table missing ridge row:\n%s", table)
	}
	if !strings.Contains(table, "[ValueError]") {
		t.Errorf("table missing failure annotation:\n%s", table)
	}
}

func TestEvaluate(t *testing.T) {
	// Fitted values from a 2-parameter model on 6 observations.
	y := mat.NewVecDense(6, []float64{1, 2, 3, 4, 5, 6})
	result := model.NewFitResult(0.1,
		[]float64{2.0, 0.0},
		[]float64{1.1, 1.9, 3.2, 3.8, 5.1, 5.9},
		[]float64{-0.1, 0.1, -0.2, 0.2, -0.1, 0.1},
	)

	m, err := Evaluate(result, y)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if m.NonzeroCount != 1 {
		t.Errorf("NonzeroCount = %d, want 1 (zero coefficient excluded)", m.NonzeroCount)
	}
	wantMSE := (0.01 + 0.01 + 0.04 + 0.04 + 0.01 + 0.01) / 6
	if math.Abs(m.MSE-wantMSE) > 1e-12 {
		t.Errorf("MSE = %v, want %v", m.MSE, wantMSE)
	}
	if m.AdjustedR2 <= 0.9 || m.AdjustedR2 >= 1 {
		t.Errorf("AdjustedR2 = %v, want in (0.9, 1) for this near-perfect fit", m.AdjustedR2)
	}
}
