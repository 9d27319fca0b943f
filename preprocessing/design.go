// Package preprocessing builds numeric design matrices from raw mixed-type
// tabular data.
//
// The DesignBuilder turns a sequence of records with named numeric and
// categorical fields into an n×p matrix suitable for linear modeling:
//
//   - missing numeric values are imputed with the column median,
//   - missing categorical values become the reserved "None" level,
//   - categorical columns are expanded into indicator columns with a
//     deterministic (lexicographic) level order,
//   - degenerate columns (fewer than two distinct values, or exact duplicates
//     of an earlier column) are dropped and recorded.
//
// The resulting DesignMatrix is immutable and safe for concurrent readers.
package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/linmod/core/parallel"
	linmodErrors "github.com/ezoic/linmod/pkg/errors"
	"github.com/ezoic/linmod/pkg/log"
)

// MissingLevel is the reserved level assigned to missing categorical values.
// It participates in indicator encoding like any observed level.
const MissingLevel = "None"

type valueKind int

const (
	kindMissing valueKind = iota
	kindNumeric
	kindCategorical
)

// Value is one cell of a raw record: explicitly missing, a numeric value, or
// a categorical label. Missingness is a distinct state, never a sentinel.
type Value struct {
	kind valueKind
	num  float64
	cat  string
}

// Num creates a numeric value.
func Num(v float64) Value { return Value{kind: kindNumeric, num: v} }

// Cat creates a categorical value.
func Cat(label string) Value { return Value{kind: kindCategorical, cat: label} }

// Missing creates an explicitly missing value.
func Missing() Value { return Value{kind: kindMissing} }

// IsMissing reports whether the value is missing.
func (v Value) IsMissing() bool { return v.kind == kindMissing }

// Float returns the numeric value and whether the cell holds one.
func (v Value) Float() (float64, bool) { return v.num, v.kind == kindNumeric }

// Label returns the categorical label and whether the cell holds one.
func (v Value) Label() (string, bool) { return v.cat, v.kind == kindCategorical }

// RawRecord is one row of the source table: a mapping from column name to
// cell value. A column absent from the map counts as missing.
type RawRecord map[string]Value

// DesignMatrix is an immutable numeric matrix with provenance-carrying column
// names: "col" for an original numeric column, "col=level" for an indicator.
// Rows are ordered identically to the builder's input.
type DesignMatrix struct {
	x       *mat.Dense
	columns []string
	dropped []string
}

// Dims returns the (rows, columns) of the matrix.
func (d *DesignMatrix) Dims() (n, p int) { return d.x.Dims() }

// Matrix returns the underlying matrix. Callers must treat it as read-only.
func (d *DesignMatrix) Matrix() mat.Matrix { return d.x }

// Columns returns a copy of the column-name sequence.
func (d *DesignMatrix) Columns() []string {
	return append([]string(nil), d.columns...)
}

// DroppedColumns returns a copy of the column names pruned as degenerate.
func (d *DesignMatrix) DroppedColumns() []string {
	return append([]string(nil), d.dropped...)
}

// At returns the matrix entry at (i, j).
func (d *DesignMatrix) At(i, j int) float64 { return d.x.At(i, j) }

// RequireOLS returns an InsufficientDataError when the matrix has too few
// rows for a unique closed-form OLS solution (n < p+2).
func (d *DesignMatrix) RequireOLS() error {
	n, p := d.x.Dims()
	if n < p+2 {
		return linmodErrors.NewInsufficientDataError("DesignMatrix.RequireOLS", n, p+2)
	}
	return nil
}

// column is the builder's working description of one raw column.
type column struct {
	name    string
	numeric bool
	// numeric columns
	median float64
	// categorical columns: sorted levels minus the baseline
	levels []string
}

// DesignBuilder constructs a DesignMatrix and aligned target vector from raw
// records. The zero builder is not usable; create one with NewDesignBuilder.
type DesignBuilder struct {
	logger log.Logger

	// Row counts above this threshold fill the matrix in parallel.
	parallelThreshold int
}

// NewDesignBuilder creates a DesignBuilder.
func NewDesignBuilder() *DesignBuilder {
	return &DesignBuilder{
		logger:            log.GetLoggerWithName("preprocessing"),
		parallelThreshold: 1000,
	}
}

// SetLogger replaces the builder's logger, primarily for tests.
func (b *DesignBuilder) SetLogger(logger log.Logger) { b.logger = logger }

// Build produces a DesignMatrix and target vector from records. The target
// column must hold an observed numeric value in every row; it never enters
// the matrix. Row order is preserved between the matrix and the target.
func (b *DesignBuilder) Build(records []RawRecord, target string) (_ *DesignMatrix, _ *mat.VecDense, err error) {
	defer linmodErrors.Recover(&err, "DesignBuilder.Build")

	if len(records) == 0 {
		return nil, nil, linmodErrors.NewValueError("DesignBuilder.Build", "no records")
	}

	y, err := extractTarget(records, target)
	if err != nil {
		return nil, nil, err
	}

	cols, dropped, err := b.planColumns(records, target)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(cols))
	for _, c := range cols {
		if c.numeric {
			names = append(names, c.name)
		} else {
			for _, level := range c.levels {
				names = append(names, fmt.Sprintf("%s=%s", c.name, level))
			}
		}
	}

	n := len(records)
	p := len(names)
	if p == 0 {
		return nil, nil, linmodErrors.NewValueError("DesignBuilder.Build", "no usable predictor columns")
	}

	x := mat.NewDense(n, p, nil)
	parallel.ParallelizeWithThreshold(n, b.parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			fillRow(x, i, records[i], cols)
		}
	})

	// Indicator columns can still be degenerate (a level present in every row
	// or only outside this subset), and distinct raw columns can encode the
	// same data. Prune on the realized matrix.
	x, names, prunedNames := pruneDegenerate(x, names)
	dropped = append(dropped, prunedNames...)

	if len(names) == 0 {
		return nil, nil, linmodErrors.NewValueError("DesignBuilder.Build", "all predictor columns are degenerate")
	}

	if len(dropped) > 0 {
		b.logger.Warn("Dropped degenerate design columns",
			log.OperationKey, log.OperationBuild,
			log.DroppedColumnsKey, dropped,
		)
	}
	b.logger.Info("Design matrix built",
		log.OperationKey, log.OperationBuild,
		log.SamplesKey, n,
		log.FeaturesKey, len(names),
	)

	return &DesignMatrix{x: x, columns: names, dropped: dropped}, y, nil
}

func extractTarget(records []RawRecord, target string) (*mat.VecDense, error) {
	y := mat.NewVecDense(len(records), nil)
	for i, rec := range records {
		v, ok := rec[target]
		if !ok || v.IsMissing() {
			return nil, linmodErrors.NewValueError("DesignBuilder.Build",
				fmt.Sprintf("target column %q is missing in row %d", target, i))
		}
		f, ok := v.Float()
		if !ok {
			return nil, linmodErrors.NewValueError("DesignBuilder.Build",
				fmt.Sprintf("target column %q is not numeric in row %d", target, i))
		}
		y.SetVec(i, f)
	}
	return y, nil
}

// planColumns inspects all records and decides, per raw column, the encoding
// and imputation values. Column order is lexicographic so coefficient vectors
// are reproducible across runs.
func (b *DesignBuilder) planColumns(records []RawRecord, target string) ([]column, []string, error) {
	nameSet := make(map[string]bool)
	for _, rec := range records {
		for name := range rec {
			if name != target {
				nameSet[name] = true
			}
		}
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	var cols []column
	var dropped []string

	for _, name := range names {
		var nums []float64
		levelSet := make(map[string]bool)
		sawNumeric, sawCategorical, sawMissing := false, false, false

		for _, rec := range records {
			v := rec[name] // zero Value is missing
			switch {
			case v.IsMissing():
				sawMissing = true
			default:
				if f, ok := v.Float(); ok {
					sawNumeric = true
					nums = append(nums, f)
				} else if label, ok := v.Label(); ok {
					sawCategorical = true
					levelSet[label] = true
				}
			}
		}

		if sawNumeric && sawCategorical {
			return nil, nil, linmodErrors.NewValueError("DesignBuilder.Build",
				fmt.Sprintf("column %q mixes numeric and categorical values", name))
		}

		switch {
		case sawNumeric:
			if distinctCount(nums) < 2 {
				dropped = append(dropped, name)
				continue
			}
			cols = append(cols, column{name: name, numeric: true, median: median(nums)})

		case sawCategorical:
			if sawMissing {
				levelSet[MissingLevel] = true
			}
			levels := make([]string, 0, len(levelSet))
			for level := range levelSet {
				levels = append(levels, level)
			}
			sort.Strings(levels)
			if len(levels) < 2 {
				dropped = append(dropped, name)
				continue
			}
			// The lexicographically first level is the baseline: its indicator
			// would be the complement of the others and make an intercepted
			// fit unidentifiable.
			cols = append(cols, column{name: name, levels: levels[1:]})

		default:
			// Entirely missing: constant after any imputation.
			dropped = append(dropped, name)
		}
	}

	return cols, dropped, nil
}

func fillRow(x *mat.Dense, i int, rec RawRecord, cols []column) {
	j := 0
	for _, c := range cols {
		v := rec[c.name]
		if c.numeric {
			f, ok := v.Float()
			if !ok {
				f = c.median
			}
			x.Set(i, j, f)
			j++
			continue
		}

		label := MissingLevel
		if l, ok := v.Label(); ok {
			label = l
		}
		for _, level := range c.levels {
			if label == level {
				x.Set(i, j, 1.0)
			}
			j++
		}
	}
}

// pruneDegenerate removes realized columns with fewer than two distinct
// values, and exact duplicates of an earlier column.
func pruneDegenerate(x *mat.Dense, names []string) (*mat.Dense, []string, []string) {
	n, p := x.Dims()
	keep := make([]int, 0, p)
	var droppedNames []string

	for j := 0; j < p; j++ {
		if distinctInColumn(x, n, j) < 2 {
			droppedNames = append(droppedNames, names[j])
			continue
		}
		dup := false
		for _, k := range keep {
			if columnsEqual(x, n, j, k) {
				droppedNames = append(droppedNames, names[j])
				dup = true
				break
			}
		}
		if !dup {
			keep = append(keep, j)
		}
	}

	if len(keep) == p {
		return x, names, nil
	}

	pruned := mat.NewDense(n, len(keep), nil)
	prunedNames := make([]string, len(keep))
	for idx, j := range keep {
		for i := 0; i < n; i++ {
			pruned.Set(i, idx, x.At(i, j))
		}
		prunedNames[idx] = names[j]
	}
	return pruned, prunedNames, droppedNames
}

func distinctInColumn(x *mat.Dense, n, j int) int {
	seen := make(map[float64]bool)
	for i := 0; i < n; i++ {
		seen[x.At(i, j)] = true
		if len(seen) >= 2 {
			return len(seen)
		}
	}
	return len(seen)
}

func columnsEqual(x *mat.Dense, n, j, k int) bool {
	for i := 0; i < n; i++ {
		if x.At(i, j) != x.At(i, k) {
			return false
		}
	}
	return true
}

func distinctCount(values []float64) int {
	seen := make(map[float64]bool)
	for _, v := range values {
		seen[v] = true
		if len(seen) >= 2 {
			return len(seen)
		}
	}
	return len(seen)
}

// median computes the median of values. The slice is copied before sorting.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
