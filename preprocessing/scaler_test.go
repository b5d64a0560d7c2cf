package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const tol = 1e-9

func TestStandardScalerFitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	wantMean := []float64{2.5, 25}
	for j, want := range wantMean {
		if math.Abs(scaler.Mean[j]-want) > tol {
			t.Errorf("Mean[%d] = %v, want %v", j, scaler.Mean[j], want)
		}
	}

	// Scaled columns have mean 0 and unit variance.
	rows, cols := scaled.Dims()
	for j := 0; j < cols; j++ {
		sum := 0.0
		sumSq := 0.0
		for i := 0; i < rows; i++ {
			v := scaled.At(i, j)
			sum += v
			sumSq += v * v
		}
		mean := sum / float64(rows)
		variance := sumSq/float64(rows) - mean*mean
		if math.Abs(mean) > tol {
			t.Errorf("column %d mean = %v, want 0", j, mean)
		}
		if math.Abs(variance-1) > 1e-6 {
			t.Errorf("column %d variance = %v, want 1", j, variance)
		}
	}
}

func TestStandardScalerConstantFeature(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{5, 5, 5})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	// Constant columns scale by 1 so the output is finite.
	for i := 0; i < 3; i++ {
		if got := scaled.At(i, 0); math.Abs(got) > tol {
			t.Errorf("scaled[%d] = %v, want 0", i, got)
		}
	}
}

func TestStandardScalerInverseTransform(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1, 100,
		2, 200,
		3, 300,
	})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	restored, err := scaler.InverseTransform(scaled)
	if err != nil {
		t.Fatalf("InverseTransform() error = %v", err)
	}

	rows, cols := X.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if math.Abs(restored.At(i, j)-X.At(i, j)) > 1e-9 {
				t.Errorf("restored[%d][%d] = %v, want %v", i, j, restored.At(i, j), X.At(i, j))
			}
		}
	}
}

func TestStandardScalerNotFitted(t *testing.T) {
	scaler := NewStandardScalerDefault()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	if _, err := scaler.Transform(X); err == nil {
		t.Error("Transform() expected error before Fit")
	}
}

func TestStandardScalerDimensionMismatch(t *testing.T) {
	scaler := NewStandardScalerDefault()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	if err := scaler.Fit(X); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	bad := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	if _, err := scaler.Transform(bad); err == nil {
		t.Error("Transform() expected error for mismatched feature count")
	}
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 5, 10})

	scaler := NewMinMaxScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	want := []float64{0, 0.5, 1}
	for i, w := range want {
		if got := scaled.At(i, 0); math.Abs(got-w) > tol {
			t.Errorf("scaled[%d] = %v, want %v", i, got, w)
		}
	}
}
