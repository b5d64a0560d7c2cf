package gbm

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/yimp/practicalml/pkg/errors"
)

func labelMatrix(labels []int) *mat.Dense {
	data := make([]float64, len(labels))
	for i, v := range labels {
		data[i] = float64(v)
	}
	return mat.NewDense(len(labels), 1, data)
}

func TestKFoldSplit(t *testing.T) {
	nSamples := 10
	X := mat.NewDense(nSamples, 2, nil)
	y := labelMatrix(make([]int, nSamples))

	kf := NewKFold(5, false, 42)
	folds := kf.Split(X, y)

	if len(folds) != 5 {
		t.Fatalf("got %d folds, want 5", len(folds))
	}

	seen := make(map[int]int)
	for _, fold := range folds {
		if len(fold.TestIndices)+len(fold.TrainIndices) != nSamples {
			t.Errorf("fold covers %d samples, want %d",
				len(fold.TestIndices)+len(fold.TrainIndices), nSamples)
		}
		for _, idx := range fold.TestIndices {
			seen[idx]++
		}
	}

	// Every sample appears in exactly one test fold.
	for i := 0; i < nSamples; i++ {
		if seen[i] != 1 {
			t.Errorf("sample %d appears in %d test folds, want 1", i, seen[i])
		}
	}
}

func TestKFoldShuffleDeterministic(t *testing.T) {
	X := mat.NewDense(20, 1, nil)
	y := labelMatrix(make([]int, 20))

	foldsA := NewKFold(4, true, 7).Split(X, y)
	foldsB := NewKFold(4, true, 7).Split(X, y)

	for i := range foldsA {
		if len(foldsA[i].TestIndices) != len(foldsB[i].TestIndices) {
			t.Fatalf("fold %d sizes differ", i)
		}
		for j := range foldsA[i].TestIndices {
			if foldsA[i].TestIndices[j] != foldsB[i].TestIndices[j] {
				t.Fatalf("fold %d differs between runs with the same seed", i)
			}
		}
	}
}

func TestStratifiedKFoldPreservesRatios(t *testing.T) {
	// 12 samples of class 0, 6 of class 1.
	labels := make([]int, 18)
	for i := 12; i < 18; i++ {
		labels[i] = 1
	}
	X := mat.NewDense(18, 2, nil)
	y := labelMatrix(labels)

	skf := NewStratifiedKFold(3, false, 42)
	folds := skf.Split(X, y)

	if len(folds) != 3 {
		t.Fatalf("got %d folds, want 3", len(folds))
	}

	for i, fold := range folds {
		counts := map[int]int{}
		for _, idx := range fold.TestIndices {
			counts[labels[idx]]++
		}
		if counts[0] != 4 || counts[1] != 2 {
			t.Errorf("fold %d test class counts = %v, want map[0:4 1:2]", i, counts)
		}
	}
}

func TestTrainTestSplitStratified(t *testing.T) {
	labels := make([]int, 100)
	for i := 50; i < 100; i++ {
		labels[i] = 1
	}
	X := mat.NewDense(100, 3, nil)
	for i := 0; i < 100; i++ {
		for j := 0; j < 3; j++ {
			X.Set(i, j, float64(i*3+j))
		}
	}
	y := labelMatrix(labels)

	trainX, trainY, testX, testY, err := TrainTestSplit(X, y, 0.3, 42)
	if err != nil {
		t.Fatalf("TrainTestSplit() error = %v", err)
	}

	trainRows, _ := trainX.Dims()
	testRows, _ := testX.Dims()
	if trainRows != 70 || testRows != 30 {
		t.Fatalf("split sizes = %d/%d, want 70/30", trainRows, testRows)
	}

	countClass := func(y mat.Matrix, rows int) map[int]int {
		counts := map[int]int{}
		for i := 0; i < rows; i++ {
			counts[int(y.At(i, 0))]++
		}
		return counts
	}

	trainCounts := countClass(trainY, trainRows)
	testCounts := countClass(testY, testRows)
	if trainCounts[0] != 35 || trainCounts[1] != 35 {
		t.Errorf("train class counts = %v, want 35 each", trainCounts)
	}
	if testCounts[0] != 15 || testCounts[1] != 15 {
		t.Errorf("test class counts = %v, want 15 each", testCounts)
	}
}

func TestTrainTestSplitTinyClasses(t *testing.T) {
	// With three samples per class a 0.1 fraction truncates every
	// per-class holdout count to zero.
	X := mat.NewDense(6, 2, []float64{
		1, 1, 2, 2, 3, 3,
		7, 7, 8, 8, 9, 9,
	})
	y := labelMatrix([]int{0, 0, 0, 1, 1, 1})

	_, _, _, _, err := TrainTestSplit(X, y, 0.1, 42)
	if err == nil {
		t.Fatal("TrainTestSplit() expected error for empty holdout partition")
	}
	if !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("TrainTestSplit() error = %v, want ErrEmptyData", err)
	}
}

func TestTrainTestSplitInvalidFraction(t *testing.T) {
	X := mat.NewDense(4, 1, nil)
	y := labelMatrix([]int{0, 0, 1, 1})

	for _, fraction := range []float64{0, 1, -0.5, 1.5} {
		if _, _, _, _, err := TrainTestSplit(X, y, fraction, 1); err == nil {
			t.Errorf("TrainTestSplit(fraction=%v) expected error", fraction)
		}
	}
}
