package log

// Standard attribute keys used across practicalml's logging. Using the same
// keys everywhere keeps the JSON output filterable.
const (
	// ModelNameKey identifies the type of model or estimator.
	ModelNameKey = "model.name"

	// OperationKey names the operation being performed: "fit", "predict",
	// "transform", "score", "load".
	OperationKey = "ml.operation"

	// ComponentKey identifies the package or component emitting the record.
	ComponentKey = "ml.component"

	// SamplesKey is the number of samples (rows) being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of features (columns) being processed.
	FeaturesKey = "data.features"

	// ClassesKey is the number of target classes.
	ClassesKey = "data.classes"

	// IterationKey is the current boosting iteration.
	IterationKey = "train.iteration"

	// LossKey is the current training loss.
	LossKey = "train.loss"

	// AccuracyKey is a reported accuracy value.
	AccuracyKey = "metric.accuracy"

	// DurationMsKey is an elapsed wall-clock duration in milliseconds.
	DurationMsKey = "duration.ms"
)
