package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitResult_NonzeroCount(t *testing.T) {
	tests := []struct {
		name  string
		coefs []float64
		want  int
	}{
		{"all nonzero", []float64{1.0, -2.5, 0.3}, 3},
		{"exact zeros", []float64{1.0, 0, 0}, 1},
		{"below tolerance counts as zero", []float64{1.0, 1e-9, -1e-10}, 1},
		{"just above tolerance counts", []float64{2e-8}, 1},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewFitResult(0.5, tt.coefs, nil, nil)
			if got := r.NonzeroCount(); got != tt.want {
				t.Errorf("NonzeroCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewFitResult_CopiesSlices(t *testing.T) {
	coefs := []float64{1, 2, 3}
	r := NewFitResult(0, coefs, nil, nil)

	coefs[0] = 99
	if r.Coefficients[0] != 1 {
		t.Error("FitResult must not alias the caller's coefficient slice")
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	original := NewFitResult(1.5, []float64{2.0, 0, -0.5}, []float64{1, 2}, []float64{0.1, -0.1})

	path := filepath.Join(t.TempDir(), "fit.json.gz")
	require.NoError(t, SaveArtifact(path, "fit_result", original))

	var restored FitResult
	require.NoError(t, LoadArtifact(path, "fit_result", &restored))

	assert.Equal(t, original.Intercept, restored.Intercept)
	assert.Equal(t, original.Coefficients, restored.Coefficients)
	assert.Equal(t, original.NonzeroCount(), restored.NonzeroCount())
}

func TestReadArtifact_KindMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteArtifact(&buf, "fit_result", NewFitResult(0, nil, nil, nil)))

	var out FitResult
	err := ReadArtifact(&buf, "penalty_path", &out)
	assert.Error(t, err, "mismatched artifact kind must not deserialize")
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	if s.IsFitted() {
		t.Error("new state manager should not be fitted")
	}
	if err := s.RequireFitted(); err == nil {
		t.Error("RequireFitted should fail before SetFitted")
	}

	s.SetFitted()
	s.SetDimensions(5, 100)
	if !s.IsFitted() {
		t.Error("should be fitted after SetFitted")
	}
	if nf, ns := s.GetDimensions(); nf != 5 || ns != 100 {
		t.Errorf("dimensions = (%d, %d), want (5, 100)", nf, ns)
	}

	s.Reset()
	if s.IsFitted() {
		t.Error("should not be fitted after Reset")
	}
}
