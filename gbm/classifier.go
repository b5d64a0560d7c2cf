package gbm

import (
	"gonum.org/v1/gonum/mat"

	"github.com/yimp/practicalml/core/model"
	"github.com/yimp/practicalml/metrics"
	pmlErrors "github.com/yimp/practicalml/pkg/errors"
	"github.com/yimp/practicalml/pkg/log"
)

// Classifier is the boosted-tree multiclass classifier with a Fit/Predict
// estimator API. Zero values of the hyperparameter fields mean "library
// default"; NewClassifier sets the defaults explicitly.
type Classifier struct {
	model.BaseEstimator

	Model     *Model
	Predictor *Predictor

	// Hyperparameters.
	NumIterations   int
	LearningRate    float64
	NumLeaves       int
	MaxDepth        int
	MinChildSamples int
	RegLambda       float64
	MinGainToSplit  float64
	Subsample       float64
	SubsampleFreq   int
	ColsampleBytree float64
	RandomState     int
	EarlyStopping   int
	Verbosity       int

	// ShowProgress enables info-level training logs.
	ShowProgress bool

	nFeatures_   int
	nSamples_    int
	nClasses_    int
	lossHistory_ []float64
}

// NewClassifier creates a classifier with default parameters.
func NewClassifier() *Classifier {
	return &Classifier{
		NumIterations:   100,
		LearningRate:    0.1,
		NumLeaves:       31,
		MaxDepth:        -1,
		MinChildSamples: 20,
		RegLambda:       0.0,
		MinGainToSplit:  1e-7,
		Subsample:       1.0,
		SubsampleFreq:   0,
		ColsampleBytree: 1.0,
		RandomState:     42,
		EarlyStopping:   0,
		Verbosity:       -1,
	}
}

// WithNumIterations sets the number of boosting rounds.
func (c *Classifier) WithNumIterations(n int) *Classifier {
	c.NumIterations = n
	return c
}

// WithLearningRate sets the boosting learning rate.
func (c *Classifier) WithLearningRate(lr float64) *Classifier {
	c.LearningRate = lr
	return c
}

// WithNumLeaves sets the leaf limit per tree.
func (c *Classifier) WithNumLeaves(n int) *Classifier {
	c.NumLeaves = n
	return c
}

// WithMaxDepth sets the depth limit per tree.
func (c *Classifier) WithMaxDepth(d int) *Classifier {
	c.MaxDepth = d
	return c
}

// WithMinChildSamples sets the minimum samples per leaf.
func (c *Classifier) WithMinChildSamples(n int) *Classifier {
	c.MinChildSamples = n
	return c
}

// WithRegLambda sets the L2 leaf regularization.
func (c *Classifier) WithRegLambda(l float64) *Classifier {
	c.RegLambda = l
	return c
}

// WithSubsample sets the row bagging fraction and enables per-round bagging.
func (c *Classifier) WithSubsample(fraction float64, freq int) *Classifier {
	c.Subsample = fraction
	c.SubsampleFreq = freq
	return c
}

// WithColsampleBytree sets the feature fraction sampled per round.
func (c *Classifier) WithColsampleBytree(fraction float64) *Classifier {
	c.ColsampleBytree = fraction
	return c
}

// WithRandomState sets the random seed.
func (c *Classifier) WithRandomState(seed int) *Classifier {
	c.RandomState = seed
	return c
}

// WithEarlyStopping sets the early stopping round count.
func (c *Classifier) WithEarlyStopping(rounds int) *Classifier {
	c.EarlyStopping = rounds
	return c
}

// WithProgress enables info-level training logs.
func (c *Classifier) WithProgress() *Classifier {
	c.ShowProgress = true
	return c
}

func (c *Classifier) trainingParams() TrainingParams {
	return TrainingParams{
		NumIterations:   c.NumIterations,
		LearningRate:    c.LearningRate,
		NumLeaves:       c.NumLeaves,
		MaxDepth:        c.MaxDepth,
		MinDataInLeaf:   c.MinChildSamples,
		Lambda:          c.RegLambda,
		MinGainToSplit:  c.MinGainToSplit,
		BaggingFraction: c.Subsample,
		BaggingFreq:     c.SubsampleFreq,
		FeatureFraction: c.ColsampleBytree,
		Seed:            c.RandomState,
		Verbosity:       c.Verbosity,
		EarlyStopping:   c.EarlyStopping,
	}
}

// clone returns an unfitted classifier with the same hyperparameters.
func (c *Classifier) clone() *Classifier {
	clone := NewClassifier()
	clone.NumIterations = c.NumIterations
	clone.LearningRate = c.LearningRate
	clone.NumLeaves = c.NumLeaves
	clone.MaxDepth = c.MaxDepth
	clone.MinChildSamples = c.MinChildSamples
	clone.RegLambda = c.RegLambda
	clone.MinGainToSplit = c.MinGainToSplit
	clone.Subsample = c.Subsample
	clone.SubsampleFreq = c.SubsampleFreq
	clone.ColsampleBytree = c.ColsampleBytree
	clone.RandomState = c.RandomState
	clone.Verbosity = c.Verbosity
	clone.EarlyStopping = c.EarlyStopping
	return clone
}

// Fit trains the classifier on X and class indices y (an n-by-1 matrix).
func (c *Classifier) Fit(X, y mat.Matrix) (err error) {
	return c.FitWithValidation(X, y, nil)
}

// FitWithValidation trains with a held-out set for early stopping.
func (c *Classifier) FitWithValidation(X, y mat.Matrix, val *ValidationData) (err error) {
	defer pmlErrors.Recover(&err, "Classifier.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()

	if rows != yRows {
		return pmlErrors.NewDimensionError("Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return pmlErrors.NewDimensionError("Fit", 1, yCols, 1)
	}

	c.nFeatures_ = cols
	c.nSamples_ = rows

	logger := log.GetLoggerWithName("gbm.classifier")
	if c.ShowProgress {
		logger.Info("training classifier",
			log.SamplesKey, rows,
			log.FeaturesKey, cols)
	}

	params := c.trainingParams()
	if c.ShowProgress && params.Verbosity <= 0 {
		params.Verbosity = 1
	}

	trainer := NewTrainer(params)
	if err := trainer.FitWithValidation(X, y, val); err != nil {
		return pmlErrors.Wrap(err, "training failed")
	}

	c.Model = trainer.GetModel()
	c.nClasses_ = c.Model.NumClass
	c.Predictor = NewPredictor(c.Model)
	c.lossHistory_ = trainer.LossHistory()

	c.SetFitted()

	if c.ShowProgress {
		logger.Info("training completed",
			log.ClassesKey, c.nClasses_,
			log.IterationKey, c.Model.NumIteration)
	}

	return nil
}

// Predict returns the predicted class index for each row of X.
func (c *Classifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, pmlErrors.NewNotFittedError("Classifier", "Predict")
	}

	_, cols := X.Dims()
	if cols != c.nFeatures_ {
		return nil, pmlErrors.NewDimensionError("Predict", c.nFeatures_, cols, 1)
	}

	return c.Predictor.Predict(X)
}

// PredictProba returns per-class probabilities for each row of X.
func (c *Classifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, pmlErrors.NewNotFittedError("Classifier", "PredictProba")
	}

	_, cols := X.Dims()
	if cols != c.nFeatures_ {
		return nil, pmlErrors.NewDimensionError("PredictProba", c.nFeatures_, cols, 1)
	}

	return c.Predictor.PredictProba(X)
}

// Score returns the accuracy of the classifier on X against y.
func (c *Classifier) Score(X, y mat.Matrix) (float64, error) {
	if !c.IsFitted() {
		return 0, pmlErrors.NewNotFittedError("Classifier", "Score")
	}

	predictions, err := c.Predict(X)
	if err != nil {
		return 0, err
	}

	rows, _ := y.Dims()
	yVec := mat.NewVecDense(rows, nil)
	predVec := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yVec.SetVec(i, y.At(i, 0))
		predVec.SetVec(i, predictions.At(i, 0))
	}
	return metrics.Accuracy(yVec, predVec)
}

// Classes returns the class indices seen during fitting.
func (c *Classifier) Classes() []int {
	if !c.IsFitted() {
		return nil
	}
	classes := make([]int, c.nClasses_)
	for i := range classes {
		classes[i] = i
	}
	return classes
}

// FeatureImportance returns importance scores; importanceType is "split" or
// "gain".
func (c *Classifier) FeatureImportance(importanceType string) []float64 {
	if !c.IsFitted() || c.Model == nil {
		return nil
	}
	return c.Model.FeatureImportance(importanceType)
}

// LossHistory returns the per-iteration training loss recorded during the
// last Fit. It returns nil before fitting.
func (c *Classifier) LossHistory() []float64 {
	return c.lossHistory_
}
