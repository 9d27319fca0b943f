// Package errors provides the structured error taxonomy for linmod.
//
// Every error type is a plain struct implementing the error interface, with a
// constructor that attaches a stack trace via cockroachdb/errors and a
// MarshalZerologObject method so errors render as structured log fields.
// Callers match on types with errors.As or on sentinels with errors.Is.
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Estimation errors
//
// ===========================================================================

// InsufficientDataError indicates fewer observations than required degrees of
// freedom for the requested fit (closed-form OLS needs n >= p+2).
type InsufficientDataError struct {
	Op      string
	Rows    int
	MinRows int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("linmod: %s: insufficient data: %d rows, need at least %d", e.Op, e.Rows, e.MinRows)
}

// MarshalZerologObject adds structured error information to a zerolog event.
func (e *InsufficientDataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("rows", e.Rows).
		Int("min_rows", e.MinRows).
		Str("type", "InsufficientDataError")
}

// NewInsufficientDataError creates an InsufficientDataError with a stack trace.
func NewInsufficientDataError(op string, rows, minRows int) error {
	err := &InsufficientDataError{Op: op, Rows: rows, MinRows: minRows}
	return errors.WithStack(err)
}

// RankDeficiencyError indicates that a design-matrix column is a linear
// combination of earlier columns. Column names the dependent column and
// DependsOn lists the earlier columns spanning it.
type RankDeficiencyError struct {
	Op        string
	Column    string
	DependsOn []string
}

func (e *RankDeficiencyError) Error() string {
	return fmt.Sprintf("linmod: %s: rank deficiency: column %q is a linear combination of [%s]",
		e.Op, e.Column, strings.Join(e.DependsOn, ", "))
}

// MarshalZerologObject adds structured error information to a zerolog event.
func (e *RankDeficiencyError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("column", e.Column).
		Strs("depends_on", e.DependsOn).
		Str("type", "RankDeficiencyError")
}

// NewRankDeficiencyError creates a RankDeficiencyError with a stack trace.
func NewRankDeficiencyError(op, column string, dependsOn []string) error {
	err := &RankDeficiencyError{Op: op, Column: column, DependsOn: dependsOn}
	return errors.WithStack(err)
}

// DegenerateFitError indicates that a penalized path collapsed to a null model
// at every strength in the grid.
type DegenerateFitError struct {
	Op       string
	Family   string
	GridSize int
}

func (e *DegenerateFitError) Error() string {
	return fmt.Sprintf("linmod: %s: degenerate %s fit: all %d grid strengths yield a null model",
		e.Op, e.Family, e.GridSize)
}

// MarshalZerologObject adds structured error information to a zerolog event.
func (e *DegenerateFitError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("family", e.Family).
		Int("grid_size", e.GridSize).
		Str("type", "DegenerateFitError")
}

// NewDegenerateFitError creates a DegenerateFitError with a stack trace.
func NewDegenerateFitError(op, family string, gridSize int) error {
	err := &DegenerateFitError{Op: op, Family: family, GridSize: gridSize}
	return errors.WithStack(err)
}

// DivergedError indicates that an iterative solver's loss became non-finite or
// grew unboundedly. Iteration is the last iteration with a finite loss.
type DivergedError struct {
	Op           string
	Iteration    int
	LearningRate float64
	LastMSE      float64
}

func (e *DivergedError) Error() string {
	return fmt.Sprintf("linmod: %s: diverged at iteration %d (lr=%g, last finite mse=%g)",
		e.Op, e.Iteration, e.LearningRate, e.LastMSE)
}

// MarshalZerologObject adds structured error information to a zerolog event.
func (e *DivergedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("iteration", e.Iteration).
		Float64("learning_rate", e.LearningRate).
		Float64("last_mse", e.LastMSE).
		Str("type", "DivergedError")
}

// NewDivergedError creates a DivergedError with a stack trace.
func NewDivergedError(op string, iteration int, learningRate, lastMSE float64) error {
	err := &DivergedError{Op: op, Iteration: iteration, LearningRate: learningRate, LastMSE: lastMSE}
	return errors.WithStack(err)
}

// ConfigurationError indicates an invalid hyperparameter value.
type ConfigurationError struct {
	Param  string
	Reason string
	Value  interface{}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("linmod: invalid configuration for %q: %s (got: %v)", e.Param, e.Reason, e.Value)
}

// MarshalZerologObject adds structured error information to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigurationError")
}

// NewConfigurationError creates a ConfigurationError with a stack trace.
func NewConfigurationError(param, reason string, value interface{}) error {
	err := &ConfigurationError{Param: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Ambient errors
//
// ===========================================================================

// NotFittedError is returned when Predict or a diagnostic accessor is called
// on an estimator before Fit has completed.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("linmod: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds structured error information to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError indicates that input data dimensions differ from what the
// operation expects.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("linmod: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds structured error information to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValueError indicates an inappropriate argument value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("linmod: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors re-exports
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates err with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Kind returns a short name for the error's taxonomy type, used by the
// comparator when recording failed rows.
func Kind(err error) string {
	switch {
	case Is(err, nil):
		return ""
	case asType[*InsufficientDataError](err):
		return "InsufficientDataError"
	case asType[*RankDeficiencyError](err):
		return "RankDeficiencyError"
	case asType[*DegenerateFitError](err):
		return "DegenerateFitError"
	case asType[*DivergedError](err):
		return "DivergedError"
	case asType[*ConfigurationError](err):
		return "ConfigurationError"
	case asType[*NotFittedError](err):
		return "NotFittedError"
	case asType[*DimensionError](err):
		return "DimensionError"
	case asType[*ValueError](err):
		return "ValueError"
	default:
		return "Error"
	}
}

func asType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
