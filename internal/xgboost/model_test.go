package xgboost

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/sales-forecast/internal/features"
)

const testModel = `{
  "learner": {
    "learner_model_param": {"base_score": "[5E-1]", "num_feature": "3"},
    "objective": {"name": "reg:squarederror"},
    "gradient_booster": {
      "name": "gbtree",
      "model": {
        "trees": [
          {
            "left_children": [1, -1, 3, -1, -1],
            "right_children": [2, -1, 4, -1, -1],
            "split_indices": [0, 0, 2, 0, 0],
            "split_conditions": [0.5, 10, 100, 1, 2],
            "default_left": [1, 0, 0, 0, 0]
          },
          {
            "left_children": [-1],
            "right_children": [-1],
            "split_indices": [0],
            "split_conditions": [0.25],
            "default_left": [false]
          }
        ]
      }
    }
  },
  "version": [2, 0, 3]
}`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(testModel))
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 2, cfg.NumTrees)
	assert.Equal(t, 3, cfg.NumFeatures)
	assert.Equal(t, "reg:squarederror", cfg.Objective)
	assert.InDelta(t, 0.5, cfg.BaseScore, 1e-12)
	assert.Equal(t, 3, m.NumFeatures())
}

func TestPredict(t *testing.T) {
	m, err := Parse([]byte(testModel))
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    []float64
		expected float64
	}{
		{"left leaf", []float64{0, 0, 0}, 10.75},
		{"right then left", []float64{1, 0, 50}, 1.75},
		{"right then right", []float64{1, 0, 200}, 2.75},
		{"threshold goes right", []float64{0.5, 0, 100}, 2.75},
		{"missing follows default left", []float64{math.NaN(), 0, 0}, 10.75},
		{"missing follows default right", []float64{1, 0, math.NaN()}, 2.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Predict(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-12)
		})
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	m, err := Parse([]byte(testModel))
	require.NoError(t, err)

	_, err = m.Predict([]float64{1, 2})
	var dim *features.DimensionMismatchError
	require.ErrorAs(t, err, &dim)
	assert.Equal(t, 3, dim.Expected)
	assert.Equal(t, 2, dim.Got)
}

func TestPoissonObjective(t *testing.T) {
	model := `{"learner": {
	  "learner_model_param": {"base_score": "1", "num_feature": "1"},
	  "objective": {"name": "count:poisson"},
	  "gradient_booster": {"name": "gbtree", "model": {"trees": [
	    {"left_children": [-1], "right_children": [-1], "split_indices": [0],
	     "split_conditions": [0.693147180559945], "default_left": [0]}
	  ]}}}}`

	m, err := Parse([]byte(model))
	require.NoError(t, err)

	got, err := m.Predict([]float64{3})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestNumFeaturesFromSplits(t *testing.T) {
	model := `{"learner": {
	  "learner_model_param": {"base_score": "0"},
	  "gradient_booster": {"name": "gbtree", "model": {"trees": [
	    {"left_children": [1, -1, -1], "right_children": [2, -1, -1], "split_indices": [4, 0, 0],
	     "split_conditions": [1, -1, 1]}
	  ]}}}}`

	m, err := Parse([]byte(model))
	require.NoError(t, err)
	assert.Equal(t, 5, m.NumFeatures())
	assert.Equal(t, "reg:squarederror", m.GetConfig().Objective)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		model string
	}{
		{"invalid json", `{"learner":`},
		{"linear booster", `{"learner": {"gradient_booster": {"name": "gblinear"}}}`},
		{"dart booster", `{"learner": {"gradient_booster": {"name": "dart", "gbtree": {"model": {"trees": [
			{"left_children": [-1], "right_children": [-1], "split_indices": [0], "split_conditions": [1]}]}},
			"weight_drop": [0.5]}}}`},
		{"no trees", `{"learner": {"gradient_booster": {"name": "gbtree", "model": {"trees": []}}}}`},
		{"unknown objective", `{"learner": {"objective": {"name": "rank:pairwise"},
			"gradient_booster": {"name": "gbtree", "model": {"trees": [
			{"left_children": [-1], "right_children": [-1], "split_indices": [0], "split_conditions": [1]}]}}}}`},
		{"inconsistent arrays", `{"learner": {"gradient_booster": {"name": "gbtree", "model": {"trees": [
			{"left_children": [1, -1, -1], "right_children": [2, -1], "split_indices": [0, 0, 0], "split_conditions": [1, 1, 1]}]}}}}`},
		{"child out of range", `{"learner": {"gradient_booster": {"name": "gbtree", "model": {"trees": [
			{"left_children": [1, -1], "right_children": [5, -1], "split_indices": [0, 0], "split_conditions": [1, 1]}]}}}}`},
		{"cycle", `{"learner": {"gradient_booster": {"name": "gbtree", "model": {"trees": [
			{"left_children": [1, 0, -1], "right_children": [2, 2, -1], "split_indices": [0, 0, 0], "split_conditions": [1, 1, 1]}]}}}}`},
		{"bad base score", `{"learner": {"learner_model_param": {"base_score": "abc"},
			"gradient_booster": {"name": "gbtree", "model": {"trees": [
			{"left_children": [-1], "right_children": [-1], "split_indices": [0], "split_conditions": [1]}]}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.model))
			assert.Error(t, err)
		})
	}
}

