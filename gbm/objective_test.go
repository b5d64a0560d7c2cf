package gbm

import (
	"math"
	"testing"
)

func TestSoftmaxObjectiveInitScores(t *testing.T) {
	obj := NewSoftmaxObjective(3)

	// 2:1:1 class balance.
	y := []int{0, 0, 1, 2}
	scores := obj.InitScores(y)

	if len(scores) != 3 {
		t.Fatalf("InitScores() length = %d, want 3", len(scores))
	}
	if math.Abs(scores[0]-math.Log(0.5)) > 1e-12 {
		t.Errorf("scores[0] = %v, want log(0.5)", scores[0])
	}
	if math.Abs(scores[1]-math.Log(0.25)) > 1e-12 {
		t.Errorf("scores[1] = %v, want log(0.25)", scores[1])
	}
	if scores[1] != scores[2] {
		t.Errorf("scores for equally frequent classes differ: %v vs %v", scores[1], scores[2])
	}
}

func TestSoftmaxObjectiveGradients(t *testing.T) {
	obj := NewSoftmaxObjective(2)

	y := []int{0, 1}
	raw := []float64{0, 0, 0, 0}

	grads, hess := obj.GradientsAndHessians(y, raw)

	// Uniform scores give p = 0.5 everywhere.
	wantGrads := []float64{-0.5, 0.5, 0.5, -0.5}
	for i, want := range wantGrads {
		if math.Abs(grads[i]-want) > 1e-12 {
			t.Errorf("grads[%d] = %v, want %v", i, grads[i], want)
		}
	}
	for i, h := range hess {
		if math.Abs(h-0.25) > 1e-12 {
			t.Errorf("hess[%d] = %v, want 0.25", i, h)
		}
		if h <= 0 {
			t.Errorf("hess[%d] = %v, want positive", i, h)
		}
	}
}

func TestSoftmaxObjectiveGradientsSumToZero(t *testing.T) {
	obj := NewSoftmaxObjective(3)

	y := []int{0, 1, 2, 1}
	raw := []float64{
		1.0, -0.5, 0.2,
		0.3, 2.0, -1.0,
		0.0, 0.0, 0.0,
		-0.7, 0.4, 0.1,
	}

	grads, _ := obj.GradientsAndHessians(y, raw)

	// Per-sample gradients over the classes sum to zero because the
	// probabilities sum to one.
	for i := 0; i < 4; i++ {
		sum := 0.0
		for k := 0; k < 3; k++ {
			sum += grads[i*3+k]
		}
		if math.Abs(sum) > 1e-9 {
			t.Errorf("sample %d gradient sum = %v, want 0", i, sum)
		}
	}
}

func TestSoftmaxObjectiveLoss(t *testing.T) {
	obj := NewSoftmaxObjective(2)

	y := []int{0, 1}
	uniform := []float64{0, 0, 0, 0}
	confident := []float64{5, -5, -5, 5}

	lossUniform := obj.Loss(y, uniform)
	lossConfident := obj.Loss(y, confident)

	if math.Abs(lossUniform-math.Log(2)) > 1e-12 {
		t.Errorf("uniform loss = %v, want log(2)", lossUniform)
	}
	if lossConfident >= lossUniform {
		t.Errorf("confident loss %v not below uniform loss %v", lossConfident, lossUniform)
	}
}
