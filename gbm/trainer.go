package gbm

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/yimp/practicalml/pkg/errors"
	"github.com/yimp/practicalml/pkg/log"
)

// Trainer runs the gradient boosting loop. Each boosting round computes
// softmax gradients for every sample and class, then grows one regression
// tree per class against that class's gradient column.
type Trainer struct {
	params TrainingParams

	X *mat.Dense
	y []int

	numClasses int
	numSamples int
	numCols    int

	// rawScores, gradients and hessians are sample-major [n*K].
	rawScores []float64
	gradients []float64
	hessians  []float64

	trees       []Tree
	objective   *SoftmaxObjective
	initScores  []float64
	lossHistory []float64

	rng *rand.Rand

	// Bagging state, resampled every BaggingFreq rounds.
	baggedRows []int

	iteration     int
	bestIteration int
}

// ValidationData is a held-out set monitored for early stopping.
type ValidationData struct {
	X mat.Matrix
	Y mat.Matrix
}

// NewTrainer creates a trainer with defaults applied to params.
func NewTrainer(params TrainingParams) *Trainer {
	p := params.withDefaults()
	return &Trainer{
		params:        p,
		bestIteration: -1,
	}
}

// Fit trains the ensemble on X and class indices y (an n-by-1 matrix).
func (t *Trainer) Fit(X, y mat.Matrix) error {
	return t.FitWithValidation(X, y, nil)
}

// FitWithValidation trains the ensemble, monitoring val for early stopping
// when EarlyStopping rounds is set.
func (t *Trainer) FitWithValidation(X, y mat.Matrix, val *ValidationData) error {
	if err := t.params.Validate(); err != nil {
		return err
	}
	if err := t.initData(X, y); err != nil {
		return err
	}

	t.objective = NewSoftmaxObjective(t.numClasses)
	t.initScores = t.objective.InitScores(t.y)

	t.rawScores = make([]float64, t.numSamples*t.numClasses)
	for i := 0; i < t.numSamples; i++ {
		copy(t.rawScores[i*t.numClasses:(i+1)*t.numClasses], t.initScores)
	}

	// Validation raw scores are maintained incrementally alongside training.
	var valY []int
	var valRaw []float64
	var valX *mat.Dense
	if val != nil {
		var err error
		valX, valY, err = t.convertValidation(val)
		if err != nil {
			return err
		}
		valRaw = make([]float64, len(valY)*t.numClasses)
		for i := range valY {
			copy(valRaw[i*t.numClasses:(i+1)*t.numClasses], t.initScores)
		}
	}

	logger := log.GetLoggerWithName("gbm.trainer")
	if t.params.Verbosity > 0 {
		logger.Info("training started",
			log.SamplesKey, t.numSamples,
			log.FeaturesKey, t.numCols,
			log.ClassesKey, t.numClasses)
	}

	bestValLoss := math.MaxFloat64
	roundsSinceBest := 0

	for iter := 0; iter < t.params.NumIterations; iter++ {
		t.iteration = iter

		t.gradients, t.hessians = t.objective.GradientsAndHessians(t.y, t.rawScores)

		rowIndices := t.baggingIndices(iter)
		featIndices := t.featureIndices()

		for k := 0; k < t.numClasses; k++ {
			tree := t.buildTree(rowIndices, featIndices, k)
			t.trees = append(t.trees, tree)
			t.applyTree(&tree, k, valX, valRaw)
		}

		loss := t.objective.Loss(t.y, t.rawScores)
		t.lossHistory = append(t.lossHistory, loss)

		if valRaw != nil && t.params.EarlyStopping > 0 {
			valLoss := t.objective.Loss(valY, valRaw)
			if valLoss < bestValLoss {
				bestValLoss = valLoss
				t.bestIteration = iter
				roundsSinceBest = 0
			} else {
				roundsSinceBest++
				if roundsSinceBest >= t.params.EarlyStopping {
					if t.params.Verbosity > 0 {
						logger.Info("early stopping",
							log.IterationKey, iter,
							"best_iteration", t.bestIteration)
					}
					break
				}
			}
		}

		if t.params.Verbosity > 0 && iter%10 == 0 {
			logger.Debug("training progress",
				log.IterationKey, iter,
				log.LossKey, loss)
		}
	}

	return nil
}

// initData validates and stores the training matrices.
func (t *Trainer) initData(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()

	if rows == 0 || cols == 0 {
		return errors.NewModelError("Trainer.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("Trainer.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("Trainer.Fit", 1, yCols, 1)
	}

	t.X = denseCopy(X)
	t.numSamples = rows
	t.numCols = cols

	t.y = make([]int, rows)
	maxClass := 0
	for i := 0; i < rows; i++ {
		k := int(y.At(i, 0))
		if k < 0 {
			return errors.NewValueError("Trainer.Fit", "negative class label")
		}
		t.y[i] = k
		if k > maxClass {
			maxClass = k
		}
	}

	t.numClasses = maxClass + 1
	if t.params.NumClass > t.numClasses {
		t.numClasses = t.params.NumClass
	}
	if t.numClasses < 2 {
		return errors.Wrap(errors.ErrSingleClass, "Trainer.Fit")
	}

	seed := uint64(t.params.Seed)
	if seed == 0 {
		seed = 1
	}
	t.rng = rand.New(rand.NewPCG(seed, seed))

	return nil
}

func (t *Trainer) convertValidation(val *ValidationData) (*mat.Dense, []int, error) {
	vRows, vCols := val.X.Dims()
	if vCols != t.numCols {
		return nil, nil, errors.NewDimensionError("Trainer.FitWithValidation", t.numCols, vCols, 1)
	}

	valX := denseCopy(val.X)
	valY := make([]int, vRows)
	for i := 0; i < vRows; i++ {
		k := int(val.Y.At(i, 0))
		if k < 0 || k >= t.numClasses {
			return nil, nil, errors.NewValueError("Trainer.FitWithValidation", "validation label outside training classes")
		}
		valY[i] = k
	}
	return valX, valY, nil
}

// baggingIndices returns the row subset for the current round. The subset is
// resampled every BaggingFreq rounds; bagging is off when the fraction is 1.
func (t *Trainer) baggingIndices(iter int) []int {
	if t.params.BaggingFraction >= 1.0 || t.params.BaggingFreq <= 0 {
		return t.allRows()
	}

	if t.baggedRows == nil || iter%t.params.BaggingFreq == 0 {
		m := int(t.params.BaggingFraction * float64(t.numSamples))
		if m < 1 {
			m = 1
		}
		perm := t.rng.Perm(t.numSamples)
		t.baggedRows = perm[:m]
		sort.Ints(t.baggedRows)
	}
	return t.baggedRows
}

// featureIndices returns the feature subset for the current round.
func (t *Trainer) featureIndices() []int {
	if t.params.FeatureFraction >= 1.0 {
		return t.allFeatures()
	}

	m := int(t.params.FeatureFraction * float64(t.numCols))
	if m < 1 {
		m = 1
	}
	perm := t.rng.Perm(t.numCols)
	feats := perm[:m]
	sort.Ints(feats)
	return feats
}

func (t *Trainer) allRows() []int {
	indices := make([]int, t.numSamples)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

func (t *Trainer) allFeatures() []int {
	indices := make([]int, t.numCols)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// applyTree adds the shrunk tree output for class k to every sample's raw
// score, including the held-out set when present.
func (t *Trainer) applyTree(tree *Tree, k int, valX *mat.Dense, valRaw []float64) {
	for i := 0; i < t.numSamples; i++ {
		t.rawScores[i*t.numClasses+k] += tree.Predict(t.X.RawRowView(i))
	}

	if valX != nil {
		vRows, _ := valX.Dims()
		for i := 0; i < vRows; i++ {
			valRaw[i*t.numClasses+k] += tree.Predict(valX.RawRowView(i))
		}
	}
}

// grad and hess read the class-k gradient column for a sample.
func (t *Trainer) grad(i, k int) float64 { return t.gradients[i*t.numClasses+k] }
func (t *Trainer) hess(i, k int) float64 { return t.hessians[i*t.numClasses+k] }

// splitInfo describes a candidate split.
type splitInfo struct {
	feature    int
	threshold  float64
	gain       float64
	leftCount  int
	rightCount int
}

// buildTree grows one regression tree for class k on the given row subset.
func (t *Trainer) buildTree(rowIndices, featIndices []int, k int) Tree {
	tree := Tree{
		TreeIndex:     len(t.trees),
		ShrinkageRate: t.params.LearningRate,
		Nodes:         []Node{},
	}

	// The unsplit root counts as one prospective leaf; every split adds one.
	leaves := 1
	t.buildNode(&tree, rowIndices, featIndices, -1, 0, k, &leaves)
	tree.NumLeaves = countLeaves(&tree)

	return tree
}

// buildNode recursively grows nodes depth-first and returns the node index.
// leaves tracks the leaf count the finished tree will have, so the NumLeaves
// cap holds regardless of growth order.
func (t *Trainer) buildNode(tree *Tree, indices, featIndices []int, parentIdx, depth, k int, leaves *int) int {
	nodeIdx := len(tree.Nodes)

	atLimit := (t.params.MaxDepth > 0 && depth >= t.params.MaxDepth) ||
		len(indices) < 2*t.params.MinDataInLeaf ||
		(t.params.NumLeaves > 0 && *leaves >= t.params.NumLeaves)

	if !atLimit {
		bestSplit := t.findBestSplit(indices, featIndices, k)
		if bestSplit.gain > t.params.MinGainToSplit {
			tree.Nodes = append(tree.Nodes, Node{
				NodeID:       nodeIdx,
				ParentID:     parentIdx,
				NodeType:     SplitNode,
				SplitFeature: bestSplit.feature,
				Threshold:    bestSplit.threshold,
				Gain:         bestSplit.gain,
				LeftChild:    -1,
				RightChild:   -1,
			})

			leftIndices, rightIndices := t.splitData(indices, bestSplit)
			*leaves++

			leftChild := t.buildNode(tree, leftIndices, featIndices, nodeIdx, depth+1, k, leaves)
			rightChild := t.buildNode(tree, rightIndices, featIndices, nodeIdx, depth+1, k, leaves)

			tree.Nodes[nodeIdx].LeftChild = leftChild
			tree.Nodes[nodeIdx].RightChild = rightChild

			return nodeIdx
		}
	}

	tree.Nodes = append(tree.Nodes, Node{
		NodeID:     nodeIdx,
		ParentID:   parentIdx,
		NodeType:   LeafNode,
		LeafValue:  t.leafValue(indices, k),
		LeafCount:  len(indices),
		LeftChild:  -1,
		RightChild: -1,
	})
	return nodeIdx
}

// findBestSplit scans the allowed features for the highest-gain split.
func (t *Trainer) findBestSplit(indices, featIndices []int, k int) splitInfo {
	bestSplit := splitInfo{gain: -math.MaxFloat64}

	for _, j := range featIndices {
		split := t.findBestSplitForFeature(indices, j, k)
		if split.gain > bestSplit.gain {
			bestSplit = split
		}
	}

	return bestSplit
}

// findBestSplitForFeature sorts the subset by one feature and scans every
// boundary between distinct values.
func (t *Trainer) findBestSplitForFeature(indices []int, feature, k int) splitInfo {
	type valueIdx struct {
		value float64
		idx   int
	}
	values := make([]valueIdx, len(indices))
	for i, idx := range indices {
		values[i] = valueIdx{value: t.X.At(idx, feature), idx: idx}
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].value < values[j].value
	})

	totalGrad := 0.0
	totalHess := 0.0
	for _, idx := range indices {
		totalGrad += t.grad(idx, k)
		totalHess += t.hess(idx, k)
	}

	bestSplit := splitInfo{
		feature: feature,
		gain:    -math.MaxFloat64,
	}

	leftGrad := 0.0
	leftHess := 0.0
	leftCount := 0

	for i := 0; i < len(values)-1; i++ {
		idx := values[i].idx
		leftGrad += t.grad(idx, k)
		leftHess += t.hess(idx, k)
		leftCount++

		// Can only split between distinct values.
		if values[i].value == values[i+1].value {
			continue
		}

		rightCount := len(indices) - leftCount
		if leftCount < t.params.MinDataInLeaf || rightCount < t.params.MinDataInLeaf {
			continue
		}

		rightGrad := totalGrad - leftGrad
		rightHess := totalHess - leftHess

		gain := t.splitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess)
		if gain > bestSplit.gain {
			bestSplit.gain = gain
			bestSplit.threshold = (values[i].value + values[i+1].value) / 2
			bestSplit.leftCount = leftCount
			bestSplit.rightCount = rightCount
		}
	}

	return bestSplit
}

// splitGain is the standard second-order gain formula with L2 regularization.
func (t *Trainer) splitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := t.params.Lambda

	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)

	return 0.5 * (leftScore + rightScore - totalScore)
}

func (t *Trainer) splitData(indices []int, split splitInfo) ([]int, []int) {
	var leftIndices, rightIndices []int

	for _, idx := range indices {
		if t.X.At(idx, split.feature) <= split.threshold {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}

	return leftIndices, rightIndices
}

// leafValue is the optimal leaf output -G/(H+lambda).
func (t *Trainer) leafValue(indices []int, k int) float64 {
	sumGrad := 0.0
	sumHess := 0.0
	for _, idx := range indices {
		sumGrad += t.grad(idx, k)
		sumHess += t.hess(idx, k)
	}

	const epsilon = 1e-10
	if math.Abs(sumHess) < epsilon {
		sumHess = epsilon
	}

	return -sumGrad / (sumHess + t.params.Lambda + epsilon)
}

func countLeaves(tree *Tree) int {
	count := 0
	for i := range tree.Nodes {
		if tree.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

// LossHistory returns the training loss recorded at each boosting round.
func (t *Trainer) LossHistory() []float64 {
	return t.lossHistory
}

// GetModel returns the trained model.
func (t *Trainer) GetModel() *Model {
	model := NewModel()
	model.Trees = t.trees
	model.NumClass = t.numClasses
	model.NumIteration = len(t.trees) / t.numClasses
	model.NumFeatures = t.numCols
	model.LearningRate = t.params.LearningRate
	model.NumLeaves = t.params.NumLeaves
	model.MaxDepth = t.params.MaxDepth
	model.InitScores = t.initScores
	model.BestIteration = t.bestIteration
	return model
}

// denseCopy converts any matrix into a fresh *mat.Dense.
func denseCopy(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	rows, cols := X.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(i, j))
		}
	}
	return out
}
