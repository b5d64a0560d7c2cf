package gbm

import (
	"encoding/json"
	"os"

	"github.com/yimp/practicalml/pkg/errors"
)

// modelFile is the on-disk JSON layout for a trained model.
type modelFile struct {
	NumClass      int       `json:"num_class"`
	NumIteration  int       `json:"num_iteration"`
	LearningRate  float64   `json:"learning_rate"`
	NumLeaves     int       `json:"num_leaves"`
	MaxDepth      int       `json:"max_depth"`
	NumFeatures   int       `json:"num_features"`
	FeatureNames  []string  `json:"feature_names,omitempty"`
	ClassNames    []string  `json:"class_names,omitempty"`
	InitScores    []float64 `json:"init_scores"`
	BestIteration int       `json:"best_iteration"`
	Trees         []Tree    `json:"trees"`
}

// SaveToFile writes the model as JSON.
func (m *Model) SaveToFile(path string) error {
	if len(m.Trees) == 0 {
		return errors.NewValueError("Model.SaveToFile", "model has no trees")
	}

	data, err := json.MarshalIndent(modelFile{
		NumClass:      m.NumClass,
		NumIteration:  m.NumIteration,
		LearningRate:  m.LearningRate,
		NumLeaves:     m.NumLeaves,
		MaxDepth:      m.MaxDepth,
		NumFeatures:   m.NumFeatures,
		FeatureNames:  m.FeatureNames,
		ClassNames:    m.ClassNames,
		InitScores:    m.InitScores,
		BestIteration: m.BestIteration,
		Trees:         m.Trees,
	}, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// LoadFromFile reads a model saved by SaveToFile.
func LoadFromFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var f modelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing model file %s", path)
	}
	if f.NumClass < 2 || len(f.Trees) == 0 {
		return nil, errors.NewValueError("LoadFromFile", "model file has no usable ensemble")
	}
	if len(f.InitScores) != f.NumClass {
		return nil, errors.NewDimensionError("LoadFromFile", f.NumClass, len(f.InitScores), 1)
	}

	return &Model{
		NumClass:      f.NumClass,
		NumIteration:  f.NumIteration,
		LearningRate:  f.LearningRate,
		NumLeaves:     f.NumLeaves,
		MaxDepth:      f.MaxDepth,
		NumFeatures:   f.NumFeatures,
		FeatureNames:  f.FeatureNames,
		ClassNames:    f.ClassNames,
		InitScores:    f.InitScores,
		BestIteration: f.BestIteration,
		Trees:         f.Trees,
	}, nil
}
