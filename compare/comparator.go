// Package compare runs named estimators under one evaluation protocol and
// collects their metrics into a comparison table.
//
// The runner applies no cross-method normalization and no ranking: rows
// carry raw MSE, sparsity, adjusted R², and wall-clock cost in run order,
// and interpretation stays with the caller. A failing method contributes a
// row naming its error kind; it never aborts the remaining runs.
package compare

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/linmod/core/model"
	"github.com/ezoic/linmod/metrics"
	linmodErrors "github.com/ezoic/linmod/pkg/errors"
	"github.com/ezoic/linmod/pkg/log"
)

// Metrics is what one estimator reports to the comparison.
type Metrics struct {
	MSE          float64
	NonzeroCount int
	AdjustedR2   float64
}

// Row is one line of the comparison table.
type Row struct {
	Method       string        `json:"method"`
	MSE          float64       `json:"mse"`
	NonzeroCount int           `json:"nonzero_count"`
	AdjustedR2   float64       `json:"adjusted_r2"`
	Elapsed      time.Duration `json:"elapsed"`

	// Err is the error kind of a failed run ("RankDeficiencyError",
	// "DivergedError", ...), empty on success.
	Err string `json:"error,omitempty"`
}

// Failed reports whether this method's run errored.
func (r Row) Failed() bool { return r.Err != "" }

// Runner accumulates comparison rows in run order.
type Runner struct {
	mu     sync.Mutex
	rows   []Row
	logger log.Logger
}

// NewRunner creates an empty comparison runner.
func NewRunner() *Runner {
	return &Runner{
		logger: log.GetLoggerWithName("compare"),
	}
}

// SetLogger replaces the runner's logger, primarily for tests.
func (r *Runner) SetLogger(logger log.Logger) { r.logger = logger }

// Run executes one named fit-and-evaluate closure, measuring its wall-clock
// time. An error becomes a failed row carrying the error kind; subsequent
// runs proceed normally.
func (r *Runner) Run(name string, fn func() (Metrics, error)) {
	start := time.Now()
	m, err := fn()
	elapsed := time.Since(start)

	row := Row{
		Method:  name,
		Elapsed: elapsed,
	}
	if err != nil {
		row.Err = linmodErrors.Kind(err)
		r.logger.Warn("Method failed",
			log.OperationKey, log.OperationCompare,
			log.ModelNameKey, name,
			"error", err,
		)
	} else {
		row.MSE = m.MSE
		row.NonzeroCount = m.NonzeroCount
		row.AdjustedR2 = m.AdjustedR2
		r.logger.Info("Method evaluated",
			log.OperationKey, log.OperationCompare,
			log.ModelNameKey, name,
			log.MSEKey, m.MSE,
			log.NonzeroKey, m.NonzeroCount,
			log.DurationMsKey, elapsed.Milliseconds(),
		)
	}

	r.mu.Lock()
	r.rows = append(r.rows, row)
	r.mu.Unlock()
}

// Rows returns a copy of the comparison table in run order.
func (r *Runner) Rows() []Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Row(nil), r.rows...)
}

// String renders the comparison as a fixed-width text table.
func (r *Runner) String() string {
	rows := r.Rows()

	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %12s %8s %10s %12s\n", "method", "mse", "nonzero", "adj_r2", "elapsed")
	for _, row := range rows {
		if row.Failed() {
			fmt.Fprintf(&b, "%-24s %12s %8s %10s %12s  [%s]\n", row.Method, "-", "-", "-", row.Elapsed.Round(time.Microsecond), row.Err)
			continue
		}
		fmt.Fprintf(&b, "%-24s %12.6f %8d %10.4f %12s\n", row.Method, row.MSE, row.NonzeroCount, row.AdjustedR2, row.Elapsed.Round(time.Microsecond))
	}
	return b.String()
}

// Evaluate derives comparison metrics from a fit result against the
// observed response. The adjusted R² uses the nonzero coefficient count as
// the parameter count, so sparse and dense methods are penalized for the
// parameters they actually spend.
func Evaluate(result *model.FitResult, y *mat.VecDense) (Metrics, error) {
	fitted := mat.NewVecDense(len(result.Fitted), append([]float64(nil), result.Fitted...))

	mse, err := metrics.MSE(y, fitted)
	if err != nil {
		return Metrics{}, err
	}
	nonzero := result.NonzeroCount()
	adjR2, err := metrics.AdjustedR2(y, fitted, nonzero)
	if err != nil {
		return Metrics{}, err
	}

	return Metrics{
		MSE:          mse,
		NonzeroCount: nonzero,
		AdjustedR2:   adjR2,
	}, nil
}
