package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func vec(values ...float64) *mat.VecDense {
	return mat.NewVecDense(len(values), values)
}

func TestMSE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{"perfect prediction", vec(1, 2, 3), vec(1, 2, 3), 0, false},
		{"constant offset of 1", vec(1, 2, 3), vec(2, 3, 4), 1, false},
		{"mixed errors", vec(0, 0), vec(1, -3), 5, false},
		{"empty", &mat.VecDense{}, &mat.VecDense{}, 0, true},
		{"length mismatch", vec(1, 2, 3), vec(1, 2), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MSE() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("MSE() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRMSE(t *testing.T) {
	got, err := RMSE(vec(0, 0), vec(3, -4))
	if err != nil {
		t.Fatalf("RMSE failed: %v", err)
	}
	want := math.Sqrt(12.5)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("RMSE() = %v, want %v", got, want)
	}
}

func TestMAE(t *testing.T) {
	got, err := MAE(vec(1, 2, 3), vec(2, 0, 3))
	if err != nil {
		t.Fatalf("MAE failed: %v", err)
	}
	if math.Abs(got-1.0) > 1e-12 {
		t.Errorf("MAE() = %v, want 1.0", got)
	}
}

func TestR2Score(t *testing.T) {
	// Perfect fit scores 1.
	r2, err := R2Score(vec(1, 2, 3, 4), vec(1, 2, 3, 4))
	if err != nil {
		t.Fatalf("R2Score failed: %v", err)
	}
	if math.Abs(r2-1.0) > 1e-12 {
		t.Errorf("perfect R² = %v, want 1.0", r2)
	}

	// Predicting the mean scores 0.
	r2, err = R2Score(vec(1, 2, 3, 4), vec(2.5, 2.5, 2.5, 2.5))
	if err != nil {
		t.Fatalf("R2Score failed: %v", err)
	}
	if math.Abs(r2) > 1e-12 {
		t.Errorf("mean-prediction R² = %v, want 0", r2)
	}

	// Zero variance in yTrue is an error.
	if _, err := R2Score(vec(5, 5, 5), vec(1, 2, 3)); err == nil {
		t.Error("expected error for zero-variance yTrue")
	}
}

func TestAdjustedR2(t *testing.T) {
	yTrue := vec(1, 2, 3, 4, 5, 6)
	yPred := vec(1.1, 1.9, 3.2, 3.8, 5.1, 5.9)

	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		t.Fatalf("R2Score failed: %v", err)
	}
	adj, err := AdjustedR2(yTrue, yPred, 2)
	if err != nil {
		t.Fatalf("AdjustedR2 failed: %v", err)
	}

	n := 6.0
	want := 1 - (1-r2)*(n-1)/(n-2-1)
	if math.Abs(adj-want) > 1e-12 {
		t.Errorf("AdjustedR2() = %v, want %v", adj, want)
	}
	if adj >= r2 {
		t.Errorf("adjusted R² (%v) should be below R² (%v) for p > 0", adj, r2)
	}

	// Too few rows for the parameter count.
	if _, err := AdjustedR2(vec(1, 2, 3), vec(1, 2, 3), 2); err == nil {
		t.Error("expected InsufficientDataError when n <= p+1")
	}
}
