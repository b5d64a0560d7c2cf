package gbm

import (
	"math"

	"github.com/yimp/practicalml/core/parallel"
)

// SoftmaxObjective implements the multiclass cross-entropy objective with a
// diagonal hessian approximation, the standard objective for softmax boosting.
type SoftmaxObjective struct {
	numClasses int
}

// NewSoftmaxObjective creates a softmax objective for the given class count.
func NewSoftmaxObjective(numClasses int) *SoftmaxObjective {
	return &SoftmaxObjective{numClasses: numClasses}
}

// NumClasses returns the class count the objective was created with.
func (o *SoftmaxObjective) NumClasses() int {
	return o.numClasses
}

// Name returns the objective identifier.
func (o *SoftmaxObjective) Name() string {
	return "multiclass_softmax"
}

// InitScores returns the per-class log priors used as baseline raw scores.
func (o *SoftmaxObjective) InitScores(yTrue []int) []float64 {
	counts := make([]float64, o.numClasses)
	for _, k := range yTrue {
		counts[k]++
	}

	scores := make([]float64, o.numClasses)
	n := float64(len(yTrue))
	for k := range scores {
		p := counts[k] / n
		if p <= 0 {
			p = 1e-15
		}
		scores[k] = math.Log(p)
	}
	return scores
}

// GradientsAndHessians computes per-sample, per-class gradients and hessians
// for the current raw scores. rawScores is sample-major: sample i, class k is
// rawScores[i*K+k]. The returned slices use the same layout. Samples are
// processed in parallel chunks.
func (o *SoftmaxObjective) GradientsAndHessians(yTrue []int, rawScores []float64) ([]float64, []float64) {
	k := o.numClasses
	n := len(yTrue)
	gradients := make([]float64, n*k)
	hessians := make([]float64, n*k)

	parallel.ParallelizeWithThreshold(n, 256, func(start, end int) {
		probs := make([]float64, k)
		for i := start; i < end; i++ {
			stableSoftmaxInto(rawScores[i*k:(i+1)*k], probs)

			trueClass := yTrue[i]
			for c := 0; c < k; c++ {
				p := probs[c]

				if c == trueClass {
					gradients[i*k+c] = p - 1.0
				} else {
					gradients[i*k+c] = p
				}

				h := p * (1.0 - p)
				if h < 1e-16 {
					h = 1e-16
				}
				hessians[i*k+c] = h
			}
		}
	})

	return gradients, hessians
}

// Loss returns the mean multiclass cross-entropy of rawScores against yTrue.
func (o *SoftmaxObjective) Loss(yTrue []int, rawScores []float64) float64 {
	k := o.numClasses
	n := len(yTrue)

	totalLoss := 0.0
	for i := 0; i < n; i++ {
		logits := rawScores[i*k : (i+1)*k]

		maxLogit := logits[0]
		for _, logit := range logits[1:] {
			if logit > maxLogit {
				maxLogit = logit
			}
		}

		logSumExp := 0.0
		for _, logit := range logits {
			logSumExp += math.Exp(logit - maxLogit)
		}
		logSumExp = math.Log(logSumExp) + maxLogit

		totalLoss -= logits[yTrue[i]] - logSumExp
	}

	return totalLoss / float64(n)
}

// stableSoftmaxInto writes softmax(logits) into out without allocating.
func stableSoftmaxInto(logits, out []float64) {
	maxLogit := logits[0]
	for _, logit := range logits[1:] {
		if logit > maxLogit {
			maxLogit = logit
		}
	}

	expSum := 0.0
	for i, logit := range logits {
		out[i] = math.Exp(logit - maxLogit)
		expSum += out[i]
	}

	if expSum > 0 {
		for i := range out {
			out[i] /= expSum
		}
	}
}
