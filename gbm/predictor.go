package gbm

import (
	"runtime"

	"gonum.org/v1/gonum/mat"

	"github.com/yimp/practicalml/core/parallel"
	"github.com/yimp/practicalml/pkg/errors"
)

// Predictor evaluates a trained model over batches of samples, splitting the
// rows across CPU cores for large batches.
type Predictor struct {
	model      *Model
	numThreads int
}

// parallelThreshold is the batch size below which prediction stays sequential.
const parallelThreshold = 64

// NewPredictor creates a predictor for the given model.
func NewPredictor(model *Model) *Predictor {
	return &Predictor{
		model:      model,
		numThreads: runtime.NumCPU(),
	}
}

// SetNumThreads caps the worker count; n <= 0 restores the CPU count.
func (p *Predictor) SetNumThreads(n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p.numThreads = n
}

// PredictProba returns class probabilities for each row of X.
func (p *Predictor) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if cols != p.model.NumFeatures {
		return nil, errors.NewDimensionError("Predictor.PredictProba", p.model.NumFeatures, cols, 1)
	}

	xDense := denseCopy(X)
	probs := mat.NewDense(rows, p.model.NumClass, nil)

	rounds := p.model.UsedIterations()
	parallel.ParallelizeWithThreshold(rows, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			probs.SetRow(i, p.model.PredictSingle(xDense.RawRowView(i), rounds))
		}
	})

	return probs, nil
}

// Predict returns the most probable class index for each row of X as an
// n-by-1 matrix.
func (p *Predictor) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if cols != p.model.NumFeatures {
		return nil, errors.NewDimensionError("Predictor.Predict", p.model.NumFeatures, cols, 1)
	}

	xDense := denseCopy(X)
	classes := mat.NewDense(rows, 1, nil)

	rounds := p.model.UsedIterations()
	parallel.ParallelizeWithThreshold(rows, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			scores := p.model.PredictRaw(xDense.RawRowView(i), rounds)
			classes.Set(i, 0, float64(argmax(scores)))
		}
	})

	return classes, nil
}
