package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter is implemented by estimators trained from a feature matrix and targets.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor is implemented by fitted estimators that produce predictions.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer is implemented by estimators that evaluate themselves on held-out data.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Transformer is implemented by preprocessing steps such as scalers.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
}

// Classifier combines the interfaces a classification model provides.
type Classifier interface {
	Fitter
	Predictor
	Scorer

	// PredictProba returns probability estimates for each class.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the class indices seen during fitting.
	Classes() []int
}
