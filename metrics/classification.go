package metrics

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/yimp/practicalml/pkg/errors"
)

// Accuracy computes the fraction of exactly matching labels. Labels are
// compared as float64 values; class indices round-trip exactly.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}
	n := yTrue.Len()
	if yPred == nil || yPred.Len() != n {
		got := 0
		if yPred != nil {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError("Accuracy", n, got, 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError computes 1 - Accuracy.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// LogLoss computes the multiclass cross-entropy given true class indices and
// a row-per-sample probability matrix. Probabilities are clipped away from 0
// and 1 to keep the logarithm finite.
func LogLoss(yTrue *mat.VecDense, proba mat.Matrix) (float64, error) {
	if yTrue == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError("LogLoss", "empty vector")
	}
	n := yTrue.Len()
	rows, classes := proba.Dims()
	if rows != n {
		return 0, errors.NewDimensionError("LogLoss", n, rows, 0)
	}

	const eps = 1e-15
	var loss float64
	for i := 0; i < n; i++ {
		k := int(yTrue.AtVec(i))
		if k < 0 || k >= classes {
			return 0, errors.NewValueError("LogLoss", fmt.Sprintf("label %d outside [0, %d)", k, classes))
		}
		p := proba.At(i, k)
		if p < eps {
			p = eps
		} else if p > 1-eps {
			p = 1 - eps
		}
		loss -= math.Log(p)
	}
	return loss / float64(n), nil
}

// ConfusionMatrix tabulates predicted against actual class labels.
// Rows are actual classes, columns are predicted classes.
type ConfusionMatrix struct {
	counts     [][]int
	classNames []string
	total      int
}

// NewConfusionMatrix builds a confusion matrix from true and predicted class
// indices. classNames supplies row/column headers; when nil, numeric labels
// are used. The matrix dimension is max(len(classNames), max label + 1).
func NewConfusionMatrix(yTrue, yPred *mat.VecDense, classNames []string) (*ConfusionMatrix, error) {
	if yTrue == nil || yTrue.Len() == 0 {
		return nil, errors.NewValueError("NewConfusionMatrix", "empty vector")
	}
	n := yTrue.Len()
	if yPred == nil || yPred.Len() != n {
		got := 0
		if yPred != nil {
			got = yPred.Len()
		}
		return nil, errors.NewDimensionError("NewConfusionMatrix", n, got, 0)
	}

	numClasses := len(classNames)
	for i := 0; i < n; i++ {
		t := int(yTrue.AtVec(i))
		p := int(yPred.AtVec(i))
		if t < 0 || p < 0 {
			return nil, errors.NewValueError("NewConfusionMatrix", "negative class label")
		}
		if t+1 > numClasses {
			numClasses = t + 1
		}
		if p+1 > numClasses {
			numClasses = p + 1
		}
	}

	names := classNames
	if len(names) < numClasses {
		names = make([]string, numClasses)
		for i := range names {
			if i < len(classNames) {
				names[i] = classNames[i]
			} else {
				names[i] = fmt.Sprintf("%d", i)
			}
		}
	}

	counts := make([][]int, numClasses)
	for i := range counts {
		counts[i] = make([]int, numClasses)
	}
	for i := 0; i < n; i++ {
		counts[int(yTrue.AtVec(i))][int(yPred.AtVec(i))]++
	}

	return &ConfusionMatrix{
		counts:     counts,
		classNames: names,
		total:      n,
	}, nil
}

// NumClasses returns the matrix dimension.
func (cm *ConfusionMatrix) NumClasses() int {
	return len(cm.counts)
}

// At returns the count of samples with actual class i predicted as class j.
func (cm *ConfusionMatrix) At(i, j int) int {
	return cm.counts[i][j]
}

// Total returns the number of samples tabulated.
func (cm *ConfusionMatrix) Total() int {
	return cm.total
}

// ClassNames returns the class header names.
func (cm *ConfusionMatrix) ClassNames() []string {
	return cm.classNames
}

// Accuracy returns the fraction of samples on the diagonal.
func (cm *ConfusionMatrix) Accuracy() float64 {
	correct := 0
	for i := range cm.counts {
		correct += cm.counts[i][i]
	}
	return float64(correct) / float64(cm.total)
}

// Recall returns the per-class recall (sensitivity) for class i. When the
// class has no actual samples the result is 0 and a warning is raised.
func (cm *ConfusionMatrix) Recall(i int) float64 {
	rowSum := 0
	for j := range cm.counts[i] {
		rowSum += cm.counts[i][j]
	}
	if rowSum == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no samples with this actual class", 0))
		return 0
	}
	return float64(cm.counts[i][i]) / float64(rowSum)
}

// Precision returns the per-class precision for class i. When the class was
// never predicted the result is 0 and a warning is raised.
func (cm *ConfusionMatrix) Precision(i int) float64 {
	colSum := 0
	for r := range cm.counts {
		colSum += cm.counts[r][i]
	}
	if colSum == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "class never predicted", 0))
		return 0
	}
	return float64(cm.counts[i][i]) / float64(colSum)
}

// KappaScore returns Cohen's kappa, chance-corrected agreement between
// predicted and actual labels.
func (cm *ConfusionMatrix) KappaScore() float64 {
	n := float64(cm.total)
	observed := cm.Accuracy()

	expected := 0.0
	for i := range cm.counts {
		rowSum := 0
		colSum := 0
		for j := range cm.counts {
			rowSum += cm.counts[i][j]
			colSum += cm.counts[j][i]
		}
		expected += (float64(rowSum) / n) * (float64(colSum) / n)
	}

	if expected == 1 {
		return 0
	}
	return (observed - expected) / (1 - expected)
}

// String renders the matrix as an aligned table with a Reference (rows) by
// Prediction (columns) layout.
func (cm *ConfusionMatrix) String() string {
	width := 9
	for _, name := range cm.classNames {
		if len(name)+2 > width {
			width = len(name) + 2
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%*s", width, "Ref\\Pred"))
	for _, name := range cm.classNames {
		sb.WriteString(fmt.Sprintf("%*s", width, name))
	}
	sb.WriteString("\n")

	for i, row := range cm.counts {
		sb.WriteString(fmt.Sprintf("%*s", width, cm.classNames[i]))
		for _, c := range row {
			sb.WriteString(fmt.Sprintf("%*d", width, c))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
