package gbm

import (
	"github.com/yimp/practicalml/pkg/errors"
)

// TrainingParams holds the boosting hyperparameters.
type TrainingParams struct {
	NumIterations int     `json:"num_iterations"`
	LearningRate  float64 `json:"learning_rate"`
	NumLeaves     int     `json:"num_leaves"`
	MaxDepth      int     `json:"max_depth"`
	MinDataInLeaf int     `json:"min_data_in_leaf"`

	// Regularization.
	Lambda         float64 `json:"lambda_l2"`
	MinGainToSplit float64 `json:"min_gain_to_split"`

	// Sampling.
	BaggingFraction float64 `json:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq"`
	FeatureFraction float64 `json:"feature_fraction"`

	NumClass int `json:"num_class"`

	Seed          int `json:"seed"`
	Verbosity     int `json:"verbosity"`
	EarlyStopping int `json:"early_stopping_rounds"`
}

// withDefaults fills zero-valued fields with the library defaults.
func (p TrainingParams) withDefaults() TrainingParams {
	if p.NumIterations == 0 {
		p.NumIterations = 100
	}
	if p.LearningRate == 0 {
		p.LearningRate = 0.1
	}
	if p.NumLeaves == 0 {
		p.NumLeaves = 31
	}
	if p.MinDataInLeaf == 0 {
		p.MinDataInLeaf = 20
	}
	if p.BaggingFraction == 0 {
		p.BaggingFraction = 1.0
	}
	if p.FeatureFraction == 0 {
		p.FeatureFraction = 1.0
	}
	return p
}

// Validate checks parameter ranges.
func (p TrainingParams) Validate() error {
	if p.NumIterations < 0 {
		return errors.NewValidationError("num_iterations", "must be non-negative", p.NumIterations)
	}
	if p.LearningRate < 0 {
		return errors.NewValidationError("learning_rate", "must be non-negative", p.LearningRate)
	}
	if p.BaggingFraction < 0 || p.BaggingFraction > 1 {
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	}
	if p.FeatureFraction < 0 || p.FeatureFraction > 1 {
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	}
	if p.Lambda < 0 {
		return errors.NewValidationError("lambda_l2", "must be non-negative", p.Lambda)
	}
	return nil
}
