// Package gbm implements the gradient-boosted decision-tree classifier used
// by the activity-quality analysis. Training grows one regression tree per
// class per boosting round against softmax gradients; prediction sums raw
// tree outputs per class and applies softmax.
package gbm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/yimp/practicalml/pkg/errors"
)

// NodeType represents the type of a tree node.
type NodeType int

const (
	// LeafNode is a terminal node holding a value.
	LeafNode NodeType = iota
	// SplitNode is an internal node with a numerical threshold split.
	SplitNode
)

// Node is a single node in a decision tree. Nodes are stored in a flat slice
// and reference children by index.
type Node struct {
	NodeID     int      `json:"node_id"`
	ParentID   int      `json:"parent_id"`   // -1 for root
	LeftChild  int      `json:"left_child"`  // -1 if leaf
	RightChild int      `json:"right_child"` // -1 if leaf
	NodeType   NodeType `json:"node_type"`

	// Split information, valid for SplitNode.
	SplitFeature int     `json:"split_feature"`
	Threshold    float64 `json:"threshold"`
	Gain         float64 `json:"gain"`

	// Leaf information, valid for LeafNode.
	LeafValue float64 `json:"leaf_value"`
	LeafCount int     `json:"leaf_count"`
}

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is a single regression tree in the ensemble. For a K-class model,
// tree i contributes to class i % K.
type Tree struct {
	TreeIndex     int     `json:"tree_index"`
	NumLeaves     int     `json:"num_leaves"`
	ShrinkageRate float64 `json:"shrinkage_rate"`
	Nodes         []Node  `json:"nodes"`
}

// Predict evaluates the tree for one sample and returns the shrunk leaf value.
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]

		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}

		if features[node.SplitFeature] <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}

	return 0.0
}

// Model is a trained boosted-tree ensemble for multiclass classification.
type Model struct {
	NumClass     int
	NumIteration int
	LearningRate float64
	NumLeaves    int
	MaxDepth     int

	// Trees are stored round-major: round r, class k is Trees[r*NumClass+k].
	Trees []Tree

	NumFeatures  int
	FeatureNames []string

	// ClassNames maps class index back to the original label.
	ClassNames []string

	// InitScores are the per-class baseline raw scores (log priors).
	InitScores []float64

	// BestIteration is set when early stopping fired, -1 otherwise.
	BestIteration int
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{
		Trees:         make([]Tree, 0),
		LearningRate:  0.1,
		NumLeaves:     31,
		MaxDepth:      -1,
		BestIteration: -1,
	}
}

// UsedIterations returns the boosting rounds prediction should use: up to
// and including the best round when early stopping recorded one, all rounds
// otherwise.
func (m *Model) UsedIterations() int {
	if m.BestIteration >= 0 {
		return m.BestIteration + 1
	}
	return -1
}

// PredictRaw returns the per-class raw (pre-softmax) scores for one sample.
// numIteration limits how many boosting rounds are used; -1 means all.
func (m *Model) PredictRaw(features []float64, numIteration int) []float64 {
	rounds := len(m.Trees) / m.NumClass
	if numIteration >= 0 && numIteration < rounds {
		rounds = numIteration
	}

	scores := make([]float64, m.NumClass)
	copy(scores, m.InitScores)

	for r := 0; r < rounds; r++ {
		for k := 0; k < m.NumClass; k++ {
			scores[k] += m.Trees[r*m.NumClass+k].Predict(features)
		}
	}

	return scores
}

// PredictSingle returns the softmax class probabilities for one sample.
func (m *Model) PredictSingle(features []float64, numIteration int) []float64 {
	return softmax(m.PredictRaw(features, numIteration))
}

// Predict returns class probabilities for each row of X, one column per class.
func (m *Model) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, errors.NewDimensionError("Model.Predict", m.NumFeatures, cols, 1)
	}

	predictions := mat.NewDense(rows, m.NumClass, nil)
	for i := 0; i < rows; i++ {
		features := mat.Row(nil, i, X)
		predictions.SetRow(i, m.PredictSingle(features, m.UsedIterations()))
	}

	return predictions, nil
}

// FeatureImportance returns normalized per-feature importance scores.
// importanceType is "split" (number of uses) or "gain" (summed split gain).
func (m *Model) FeatureImportance(importanceType string) []float64 {
	importance := make([]float64, m.NumFeatures)

	for _, tree := range m.Trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			switch importanceType {
			case "gain":
				importance[node.SplitFeature] += node.Gain
			default: // "split"
				importance[node.SplitFeature]++
			}
		}
	}

	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}

	return importance
}

func softmax(x []float64) []float64 {
	maxVal := x[0]
	for _, v := range x[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	expSum := 0.0
	result := make([]float64, len(x))
	for i, v := range x {
		result[i] = math.Exp(v - maxVal)
		expSum += result[i]
	}

	for i := range result {
		result[i] /= expSum
	}

	return result
}

func argmax(x []float64) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}
