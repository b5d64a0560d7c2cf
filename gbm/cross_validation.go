package gbm

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/yimp/practicalml/metrics"
	"github.com/yimp/practicalml/pkg/errors"
)

// CVResult holds per-fold scores and the model fitted on each fold.
type CVResult struct {
	TrainScores []float64
	TestScores  []float64
	Models      []*Classifier
}

// GetMeanScore returns the mean test score across folds.
func (cv *CVResult) GetMeanScore() float64 {
	if len(cv.TestScores) == 0 {
		return 0
	}
	sum := 0.0
	for _, score := range cv.TestScores {
		sum += score
	}
	return sum / float64(len(cv.TestScores))
}

// GetStdScore returns the standard deviation of the test scores.
func (cv *CVResult) GetStdScore() float64 {
	if len(cv.TestScores) < 2 {
		return 0
	}
	mean := cv.GetMeanScore()
	sumSq := 0.0
	for _, score := range cv.TestScores {
		d := score - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(cv.TestScores)))
}

// CrossValidate trains one classifier per fold in parallel and scores it
// with the named metric ("accuracy" or "neg_log_loss"). The template
// classifier provides the hyperparameters; it is never fitted itself.
func CrossValidate(template *Classifier, X, y mat.Matrix, splitter Splitter, metric string) (*CVResult, error) {
	if template == nil {
		return nil, errors.NewValueError("CrossValidate", "template classifier is nil")
	}
	if splitter == nil {
		return nil, errors.NewValueError("CrossValidate", "splitter is nil")
	}
	scoreFn, err := metricFunc(metric)
	if err != nil {
		return nil, err
	}

	folds := splitter.Split(X, y)

	// Too many folds for the sample count leaves some folds without a
	// test partition.
	for i, fold := range folds {
		if len(fold.TestIndices) == 0 {
			return nil, errors.Wrapf(errors.ErrEmptyData, "fold %d has an empty test partition", i)
		}
		if len(fold.TrainIndices) == 0 {
			return nil, errors.Wrapf(errors.ErrEmptyData, "fold %d has an empty training partition", i)
		}
	}

	result := &CVResult{
		TrainScores: make([]float64, len(folds)),
		TestScores:  make([]float64, len(folds)),
		Models:      make([]*Classifier, len(folds)),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(folds))

	for i, fold := range folds {
		wg.Add(1)
		go func(foldIdx int, f Fold) {
			defer wg.Done()

			trainX, trainY := extractSubset(X, y, f.TrainIndices)
			testX, testY := extractSubset(X, y, f.TestIndices)

			clf := template.clone()
			if err := clf.Fit(trainX, trainY); err != nil {
				errs[foldIdx] = errors.Wrapf(err, "fold %d", foldIdx)
				return
			}

			trainScore, err := scoreFn(clf, trainX, trainY)
			if err != nil {
				errs[foldIdx] = errors.Wrapf(err, "fold %d train score", foldIdx)
				return
			}
			testScore, err := scoreFn(clf, testX, testY)
			if err != nil {
				errs[foldIdx] = errors.Wrapf(err, "fold %d test score", foldIdx)
				return
			}

			result.TrainScores[foldIdx] = trainScore
			result.TestScores[foldIdx] = testScore
			result.Models[foldIdx] = clf
		}(i, fold)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// metricFunc resolves a metric name to a scoring function.
func metricFunc(metric string) (func(clf *Classifier, X, y mat.Matrix) (float64, error), error) {
	switch metric {
	case "", "accuracy":
		return scoreAccuracy, nil
	case "neg_log_loss":
		return scoreNegLogLoss, nil
	default:
		return nil, errors.NewValueError("CrossValidate", fmt.Sprintf("unknown metric %q", metric))
	}
}

func scoreAccuracy(clf *Classifier, X, y mat.Matrix) (float64, error) {
	return clf.Score(X, y)
}

func scoreNegLogLoss(clf *Classifier, X, y mat.Matrix) (float64, error) {
	proba, err := clf.PredictProba(X)
	if err != nil {
		return 0, err
	}
	yVec, err := toVecDense(y)
	if err != nil {
		return 0, err
	}
	ll, err := metrics.LogLoss(yVec, proba)
	if err != nil {
		return 0, err
	}
	return -ll, nil
}

// toVecDense views the first column of y as a vector.
func toVecDense(y mat.Matrix) (*mat.VecDense, error) {
	rows, cols := y.Dims()
	if cols != 1 {
		return nil, errors.NewDimensionError("toVecDense", 1, cols, 1)
	}
	if v, ok := y.(*mat.VecDense); ok {
		return v, nil
	}
	data := make([]float64, rows)
	for i := 0; i < rows; i++ {
		data[i] = y.At(i, 0)
	}
	return mat.NewVecDense(rows, data), nil
}
