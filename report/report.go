// Package report runs the end-to-end activity-quality analysis: load the
// sensor CSV, clean and scale the features, cross-validate a boosted-tree
// classifier on the training portion, fit the final model, and score it on
// a held-out partition.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/yimp/practicalml/gbm"
	"github.com/yimp/practicalml/internal/dataset"
	"github.com/yimp/practicalml/metrics"
	"github.com/yimp/practicalml/pkg/errors"
	"github.com/yimp/practicalml/pkg/log"
	"github.com/yimp/practicalml/preprocessing"
)

// Config controls a single analysis run.
type Config struct {
	// InputPath is the CSV file holding the labelled sensor readings.
	InputPath string
	// LabelColumn names the class column. Defaults to "classe".
	LabelColumn string
	// TestFraction is the stratified holdout fraction. Defaults to 0.3.
	TestFraction float64
	// CVFolds is the number of cross-validation folds on the training
	// portion. Defaults to 5.
	CVFolds int
	// MaxMissingRatio drops columns with more missing cells than this
	// fraction. Defaults to 0.5.
	MaxMissingRatio float64
	// Seed drives the split, the fold shuffle and the model bagging.
	Seed int
	// Scaler selects the feature normalization: "standard", "minmax" or
	// "none". Defaults to "standard".
	Scaler string

	// Model hyperparameters. Zero values take the defaults below.
	NumIterations   int     // 150
	LearningRate    float64 // 0.1
	MaxDepth        int     // 5
	MinChildSamples int     // 10
	RegLambda       float64 // 1.0
	Subsample       float64 // 0.8
	ColsampleBytree float64 // 0.8

	// PlotDir, when set, receives PNG plots of the feature importances
	// and the training loss curve.
	PlotDir string

	// Verbose enables per-iteration training logs.
	Verbose bool
}

func (c Config) withDefaults() Config {
	if c.LabelColumn == "" {
		c.LabelColumn = "classe"
	}
	if c.TestFraction == 0 {
		c.TestFraction = 0.3
	}
	if c.CVFolds == 0 {
		c.CVFolds = 5
	}
	if c.MaxMissingRatio == 0 {
		c.MaxMissingRatio = 0.5
	}
	if c.Scaler == "" {
		c.Scaler = "standard"
	}
	if c.NumIterations == 0 {
		c.NumIterations = 150
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.1
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = 5
	}
	if c.MinChildSamples == 0 {
		c.MinChildSamples = 10
	}
	if c.RegLambda == 0 {
		c.RegLambda = 1.0
	}
	if c.Subsample == 0 {
		c.Subsample = 0.8
	}
	if c.ColsampleBytree == 0 {
		c.ColsampleBytree = 0.8
	}
	return c
}

// FeatureScore pairs a feature name with its importance.
type FeatureScore struct {
	Name  string
	Score float64
}

// Result holds everything the rendered report needs.
type Result struct {
	InputPath    string
	NumSamples   int
	NumFeatures  int
	DroppedRows  int
	ClassNames   []string
	ClassCounts  []int
	TrainSamples int
	TestSamples  int

	CVScores []float64
	CVMean   float64
	CVStd    float64

	HoldoutAccuracy float64
	OOSError        float64
	Kappa           float64
	Confusion       *metrics.ConfusionMatrix

	FeatureScores []FeatureScore
	LossHistory   []float64

	TrainDuration time.Duration
	Plots         []string
}

// Run executes the full analysis described by cfg.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	logger := log.GetLoggerWithName("report")

	if cfg.InputPath == "" {
		return nil, errors.NewValueError("report.Run", "InputPath is required")
	}

	table, err := dataset.Load(cfg.InputPath, dataset.LoadOptions{
		LabelColumn:     cfg.LabelColumn,
		MaxMissingRatio: cfg.MaxMissingRatio,
	})
	if err != nil {
		return nil, errors.Wrap(err, "loading dataset")
	}
	dropped := table.DropNaNRows()
	if table.NumRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "all rows dropped during cleaning")
	}

	result := &Result{
		InputPath:   cfg.InputPath,
		NumSamples:  table.NumRows(),
		NumFeatures: table.NumFeatures(),
		DroppedRows: dropped,
		ClassNames:  table.ClassNames,
		ClassCounts: table.ClassCounts(),
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trainX, trainY, testX, testY, err := gbm.TrainTestSplit(
		table.Features(), table.Labels(), cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "splitting dataset")
	}
	trainRows, _ := trainX.Dims()
	testRows, _ := testX.Dims()
	result.TrainSamples = trainRows
	result.TestSamples = testRows

	// The scaler sees only the training portion so holdout scores stay
	// honest.
	scaledTrain, scaledTest, err := scaleFeatures(cfg.Scaler, trainX, testX)
	if err != nil {
		return nil, err
	}

	logger.Info("partitioned dataset",
		log.SamplesKey, result.NumSamples,
		"train_samples", trainRows,
		"test_samples", testRows,
		log.ClassesKey, len(result.ClassNames))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	template := newClassifier(cfg)

	splitter := gbm.NewStratifiedKFold(cfg.CVFolds, true, cfg.Seed)
	cv, err := gbm.CrossValidate(template, scaledTrain, trainY, splitter, "accuracy")
	if err != nil {
		return nil, errors.Wrap(err, "cross-validation")
	}
	result.CVScores = cv.TestScores
	result.CVMean = cv.GetMeanScore()
	result.CVStd = cv.GetStdScore()

	logger.Info("cross-validation finished",
		"folds", cfg.CVFolds,
		log.AccuracyKey, result.CVMean)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final := newClassifier(cfg)
	start := time.Now()
	if err := final.Fit(scaledTrain, trainY); err != nil {
		return nil, errors.Wrap(err, "fitting final model")
	}
	result.TrainDuration = time.Since(start)
	result.LossHistory = final.LossHistory()

	pred, err := final.Predict(scaledTest)
	if err != nil {
		return nil, errors.Wrap(err, "scoring holdout")
	}

	yVec := columnVec(testY)
	predVec := columnVec(pred)

	result.HoldoutAccuracy, err = metrics.Accuracy(yVec, predVec)
	if err != nil {
		return nil, errors.Wrap(err, "holdout accuracy")
	}
	result.OOSError = 1 - result.HoldoutAccuracy

	cm, err := metrics.NewConfusionMatrix(yVec, predVec, result.ClassNames)
	if err != nil {
		return nil, errors.Wrap(err, "confusion matrix")
	}
	result.Confusion = cm
	result.Kappa = cm.KappaScore()

	result.FeatureScores = rankFeatures(table.FeatureNames, final.FeatureImportance("gain"))

	logger.Info("holdout evaluation finished",
		log.AccuracyKey, result.HoldoutAccuracy,
		"kappa", result.Kappa,
		log.DurationMsKey, result.TrainDuration.Milliseconds())

	if cfg.PlotDir != "" {
		plots, err := writePlots(cfg.PlotDir, result)
		if err != nil {
			return nil, errors.Wrap(err, "writing plots")
		}
		result.Plots = plots
	}

	return result, nil
}

// scaleFeatures fits the selected scaler on the training portion and applies
// it to both partitions.
func scaleFeatures(kind string, trainX, testX mat.Matrix) (mat.Matrix, mat.Matrix, error) {
	var scaler interface {
		FitTransform(mat.Matrix) (mat.Matrix, error)
		Transform(mat.Matrix) (mat.Matrix, error)
	}

	switch kind {
	case "standard":
		scaler = preprocessing.NewStandardScalerDefault()
	case "minmax":
		scaler = preprocessing.NewMinMaxScalerDefault()
	case "none":
		return trainX, testX, nil
	default:
		return nil, nil, errors.NewValueError("report.Run", fmt.Sprintf("unknown scaler %q", kind))
	}

	scaledTrain, err := scaler.FitTransform(trainX)
	if err != nil {
		return nil, nil, errors.Wrap(err, "scaling training features")
	}
	scaledTest, err := scaler.Transform(testX)
	if err != nil {
		return nil, nil, errors.Wrap(err, "scaling holdout features")
	}
	return scaledTrain, scaledTest, nil
}

func newClassifier(cfg Config) *gbm.Classifier {
	clf := gbm.NewClassifier().
		WithNumIterations(cfg.NumIterations).
		WithLearningRate(cfg.LearningRate).
		WithMaxDepth(cfg.MaxDepth).
		WithMinChildSamples(cfg.MinChildSamples).
		WithRegLambda(cfg.RegLambda).
		WithSubsample(cfg.Subsample, 1).
		WithColsampleBytree(cfg.ColsampleBytree).
		WithRandomState(cfg.Seed)
	if cfg.Verbose {
		clf.WithProgress()
	}
	return clf
}

// rankFeatures sorts features by importance, highest first.
func rankFeatures(names []string, importance []float64) []FeatureScore {
	if len(importance) == 0 {
		return nil
	}
	scores := make([]FeatureScore, 0, len(names))
	for i, name := range names {
		if i >= len(importance) {
			break
		}
		scores = append(scores, FeatureScore{Name: name, Score: importance[i]})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score == scores[j].Score {
			return scores[i].Name < scores[j].Name
		}
		return scores[i].Score > scores[j].Score
	})
	return scores
}

// columnVec views the first column of m as a VecDense.
func columnVec(m mat.Matrix) *mat.VecDense {
	if v, ok := m.(*mat.VecDense); ok {
		return v
	}
	rows, _ := m.Dims()
	data := make([]float64, rows)
	for i := 0; i < rows; i++ {
		data[i] = m.At(i, 0)
	}
	return mat.NewVecDense(rows, data)
}

// WriteText renders the report as plain text.
func (r *Result) WriteText(w io.Writer) error {
	var errW error
	p := func(format string, args ...any) {
		if errW != nil {
			return
		}
		_, errW = fmt.Fprintf(w, format, args...)
	}

	p("Activity Quality Analysis\n")
	p("=========================\n\n")
	p("Input:            %s\n", r.InputPath)
	p("Samples:          %d (%d rows dropped during cleaning)\n", r.NumSamples, r.DroppedRows)
	p("Features:         %d\n", r.NumFeatures)
	p("Train / holdout:  %d / %d\n\n", r.TrainSamples, r.TestSamples)

	p("Class distribution:\n")
	for i, name := range r.ClassNames {
		count := 0
		if i < len(r.ClassCounts) {
			count = r.ClassCounts[i]
		}
		p("  %-4s %6d (%5.1f%%)\n", name, count, 100*float64(count)/float64(r.NumSamples))
	}
	p("\n")

	p("Cross-validation (%d folds):\n", len(r.CVScores))
	for i, score := range r.CVScores {
		p("  fold %d: %.4f\n", i+1, score)
	}
	p("  mean:   %.4f (+/- %.4f)\n\n", r.CVMean, r.CVStd)

	p("Holdout accuracy:        %.4f\n", r.HoldoutAccuracy)
	p("Out-of-sample error:     %.4f\n", r.OOSError)
	p("Cohen's kappa:           %.4f\n", r.Kappa)
	p("Training time:           %s\n\n", r.TrainDuration.Round(time.Millisecond))

	if r.Confusion != nil {
		p("Confusion matrix (holdout):\n%s\n", r.Confusion.String())

		p("Per-class rates (holdout):\n")
		for i, name := range r.Confusion.ClassNames() {
			p("  %-4s recall %.4f  precision %.4f\n",
				name, r.Confusion.Recall(i), r.Confusion.Precision(i))
		}
		p("\n")
	}

	if len(r.FeatureScores) > 0 {
		n := len(r.FeatureScores)
		if n > 15 {
			n = 15
		}
		p("Top %d features by gain:\n", n)
		for _, fs := range r.FeatureScores[:n] {
			p("  %-28s %.4f\n", fs.Name, fs.Score)
		}
		p("\n")
	}

	for _, plot := range r.Plots {
		p("Wrote plot: %s\n", plot)
	}

	return errW
}
