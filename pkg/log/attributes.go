// Standard attribute keys for linmod logging. Using these keys keeps log
// output consistent across estimators and makes it filterable downstream.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "OLS", "PathFitter", "GradientDescent"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "fit_path", "cross_validate", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "linear", "penalized", "optimize", "preprocessing"
	ComponentKey = "ml.component"
)

// Data shape.
const (
	// SamplesKey is the number of rows in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of design-matrix columns.
	FeaturesKey = "data.features"

	// DroppedColumnsKey lists design columns pruned as degenerate.
	DroppedColumnsKey = "data.dropped_columns"

	// BatchSizeKey is the mini-batch size of a stochastic run.
	BatchSizeKey = "data.batch_size"
)

// Training and evaluation.
const (
	// DurationMsKey records operation wall-clock time in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the current or final iteration of an iterative solver.
	IterationKey = "training.iteration"

	// LearningRateKey records the fixed step size of a gradient-descent run.
	LearningRateKey = "hyperparams.learning_rate"

	// LambdaKey records a penalty strength.
	LambdaKey = "hyperparams.lambda"

	// AlphaKey records the elastic-net mixing parameter.
	AlphaKey = "hyperparams.alpha"

	// FoldsKey records the cross-validation fold count.
	FoldsKey = "hyperparams.folds"

	// SeedKey records the random seed for reproducibility.
	SeedKey = "config.random_seed"

	// MSEKey records a mean-squared-error value.
	MSEKey = "metrics.mse"

	// R2ScoreKey records an R-squared value.
	R2ScoreKey = "metrics.r2_score"

	// NonzeroKey records a coefficient nonzero count.
	NonzeroKey = "metrics.nonzero"
)

// Standard operation values.
const (
	OperationFit           = "fit"
	OperationPredict       = "predict"
	OperationFitPath       = "fit_path"
	OperationCrossValidate = "cross_validate"
	OperationScore         = "score"
	OperationBuild         = "build"
	OperationCompare       = "compare"
)
