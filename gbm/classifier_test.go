package gbm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/yimp/practicalml/pkg/errors"
)

// blobs builds a linearly separable three-class dataset: class k occupies a
// tight grid of points around (4k, 4k).
func blobs(perClass int) (*mat.Dense, *mat.Dense) {
	numClasses := 3
	n := perClass * numClasses
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)

	row := 0
	for k := 0; k < numClasses; k++ {
		for i := 0; i < perClass; i++ {
			dx := float64(i%5) * 0.2
			dy := float64(i/5) * 0.2
			X.Set(row, 0, float64(4*k)+dx)
			X.Set(row, 1, float64(4*k)+dy)
			y.Set(row, 0, float64(k))
			row++
		}
	}
	return X, y
}

func newTestClassifier() *Classifier {
	return NewClassifier().
		WithNumIterations(20).
		WithLearningRate(0.3).
		WithMaxDepth(3).
		WithMinChildSamples(2).
		WithRandomState(42)
}

func TestClassifierFitPredict(t *testing.T) {
	X, y := blobs(20)

	clf := newTestClassifier()
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if !clf.IsFitted() {
		t.Fatal("IsFitted() = false after Fit")
	}

	score, err := clf.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score < 0.95 {
		t.Errorf("training accuracy = %v, want >= 0.95 on separable data", score)
	}
}

func TestClassifierPredictProba(t *testing.T) {
	X, y := blobs(15)

	clf := newTestClassifier()
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	proba, err := clf.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}

	rows, cols := proba.Dims()
	n, _ := X.Dims()
	if rows != n || cols != 3 {
		t.Fatalf("PredictProba() dims = %dx%d, want %dx3", rows, cols, n)
	}

	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			p := proba.At(i, j)
			if p < 0 || p > 1 {
				t.Fatalf("proba[%d][%d] = %v outside [0, 1]", i, j, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d probabilities sum to %v, want 1", i, sum)
		}
	}
}

func TestClassifierNotFitted(t *testing.T) {
	clf := NewClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := clf.Predict(X)
	if err == nil {
		t.Fatal("Predict() expected error before Fit")
	}
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("Predict() error = %v, want NotFittedError", err)
	}
}

func TestClassifierDimensionMismatch(t *testing.T) {
	X, y := blobs(10)

	clf := newTestClassifier()
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	bad := mat.NewDense(2, 5, nil)
	if _, err := clf.Predict(bad); err == nil {
		t.Error("Predict() expected error for wrong feature count")
	}
}

func TestClassifierClasses(t *testing.T) {
	X, y := blobs(10)

	clf := newTestClassifier()
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	classes := clf.Classes()
	want := []int{0, 1, 2}
	if len(classes) != len(want) {
		t.Fatalf("Classes() = %v, want %v", classes, want)
	}
	for i := range want {
		if classes[i] != want[i] {
			t.Errorf("Classes()[%d] = %d, want %d", i, classes[i], want[i])
		}
	}
}

func TestClassifierDeterministic(t *testing.T) {
	X, y := blobs(15)

	predict := func() mat.Matrix {
		clf := newTestClassifier().WithSubsample(0.8, 1).WithColsampleBytree(0.8)
		if err := clf.Fit(X, y); err != nil {
			t.Fatalf("Fit() error = %v", err)
		}
		pred, err := clf.Predict(X)
		if err != nil {
			t.Fatalf("Predict() error = %v", err)
		}
		return pred
	}

	predA := predict()
	predB := predict()

	rows, _ := predA.Dims()
	for i := 0; i < rows; i++ {
		if predA.At(i, 0) != predB.At(i, 0) {
			t.Fatalf("prediction %d differs between identically seeded runs", i)
		}
	}
}

func TestClassifierFeatureImportance(t *testing.T) {
	X, y := blobs(15)

	clf := newTestClassifier()
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	for _, importanceType := range []string{"split", "gain"} {
		imp := clf.FeatureImportance(importanceType)
		if len(imp) != 2 {
			t.Fatalf("FeatureImportance(%q) length = %d, want 2", importanceType, len(imp))
		}
		sum := 0.0
		for _, v := range imp {
			if v < 0 {
				t.Errorf("FeatureImportance(%q) has negative value %v", importanceType, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("FeatureImportance(%q) sums to %v, want 1", importanceType, sum)
		}
	}
}

func TestClassifierEarlyStopping(t *testing.T) {
	X, y := blobs(20)

	// Validation labels are rotated one class, so validation loss only
	// worsens as the model gets confident and training must stop early.
	valX, valY := blobs(5)
	rows, _ := valY.Dims()
	for i := 0; i < rows; i++ {
		valY.Set(i, 0, float64((int(valY.At(i, 0))+1)%3))
	}

	clf := newTestClassifier().
		WithNumIterations(200).
		WithEarlyStopping(5)

	err := clf.FitWithValidation(X, y, &ValidationData{X: valX, Y: valY})
	if err != nil {
		t.Fatalf("FitWithValidation() error = %v", err)
	}

	// Separable data converges long before 200 rounds.
	if clf.Model.NumIteration >= 200 {
		t.Errorf("NumIteration = %d, want early stop before 200", clf.Model.NumIteration)
	}
}

func TestClassifierNumLeavesCap(t *testing.T) {
	X, y := blobs(20)

	// A permissive depth and leaf-size setting would otherwise grow the
	// trees well past four leaves.
	clf := newTestClassifier().
		WithMaxDepth(12).
		WithMinChildSamples(1).
		WithNumLeaves(4)

	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	for i, tree := range clf.Model.Trees {
		if tree.NumLeaves > 4 {
			t.Errorf("tree %d has %d leaves, want at most 4", i, tree.NumLeaves)
		}
	}
}

func TestClassifierLossDecreases(t *testing.T) {
	X, y := blobs(20)

	clf := newTestClassifier()
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	history := clf.LossHistory()
	if len(history) == 0 {
		t.Fatal("LossHistory() is empty after Fit")
	}
	first := history[0]
	last := history[len(history)-1]
	if last >= first {
		t.Errorf("loss did not decrease: first %v, last %v", first, last)
	}
}
