package xgboost

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kartoza/sales-forecast/internal/features"
)

// Model is a gradient-boosted tree ensemble read from XGBoost's JSON
// model format. It is immutable after loading and safe for concurrent use.
type Model struct {
	trees       []tree
	baseMargin  float64
	numFeatures int
	objective   string
	link        linkFunc
}

// Config summarises a loaded model
type Config struct {
	NumTrees    int     `json:"num_trees"`
	NumFeatures int     `json:"num_features"`
	Objective   string  `json:"objective"`
	BaseScore   float64 `json:"base_score"`
}

type tree struct {
	left         []int
	right        []int
	splitIndex   []int
	splitCond    []float64
	defaultLeft  []bool
	maxSplitFeat int
}

// modelFile is the subset of the XGBoost JSON schema needed for inference
type modelFile struct {
	Learner struct {
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumFeature string `json:"num_feature"`
		} `json:"learner_model_param"`
		GradientBooster struct {
			Name  string `json:"name"`
			Model struct {
				Trees []treeFile `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
	} `json:"learner"`
}

type treeFile struct {
	LeftChildren    []int     `json:"left_children"`
	RightChildren   []int     `json:"right_children"`
	SplitIndices    []int     `json:"split_indices"`
	SplitConditions []float64 `json:"split_conditions"`
	DefaultLeft     flexBools `json:"default_left"`
}

// flexBools accepts both [true,false] and [1,0]; XGBoost has written both.
type flexBools []bool

func (f *flexBools) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, r := range raw {
		switch strings.TrimSpace(string(r)) {
		case "true", "1":
			out[i] = true
		case "false", "0":
			out[i] = false
		default:
			return fmt.Errorf("default_left[%d]: unexpected value %s", i, r)
		}
	}
	*f = out
	return nil
}

// linkFunc maps between output space and margin space for an objective
type linkFunc struct {
	toMargin func(float64) float64
	toOutput func(float64) float64
}

func identity(x float64) float64 { return x }

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func logit(p float64) float64 { return math.Log(p / (1 - p)) }

func linkFor(objective string) (linkFunc, error) {
	switch objective {
	case "reg:squarederror", "reg:linear", "reg:absoluteerror", "reg:pseudohubererror", "reg:quantileerror", "reg:squaredlogerror":
		return linkFunc{toMargin: identity, toOutput: identity}, nil
	case "count:poisson", "reg:gamma", "reg:tweedie":
		return linkFunc{toMargin: math.Log, toOutput: math.Exp}, nil
	case "reg:logistic", "binary:logistic":
		return linkFunc{toMargin: logit, toOutput: sigmoid}, nil
	default:
		return linkFunc{}, fmt.Errorf("unsupported objective %q", objective)
	}
}

// Parse decodes an XGBoost JSON model and checks its tree structure
func Parse(data []byte) (*Model, error) {
	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	booster := mf.Learner.GradientBooster
	// dart stores its trees elsewhere and scales them by weight_drop
	if booster.Name != "gbtree" {
		return nil, fmt.Errorf("unsupported booster %q", booster.Name)
	}
	if len(booster.Model.Trees) == 0 {
		return nil, fmt.Errorf("model has no trees")
	}

	objective := mf.Learner.Objective.Name
	if objective == "" {
		objective = "reg:squarederror"
	}
	link, err := linkFor(objective)
	if err != nil {
		return nil, err
	}

	baseScore, err := parseXGBFloat(mf.Learner.LearnerModelParam.BaseScore, 0.5)
	if err != nil {
		return nil, fmt.Errorf("base_score: %w", err)
	}

	m := &Model{
		trees:      make([]tree, 0, len(booster.Model.Trees)),
		baseMargin: link.toMargin(baseScore),
		objective:  objective,
		link:       link,
	}

	maxFeat := -1
	for i, tf := range booster.Model.Trees {
		t, err := buildTree(tf)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		if t.maxSplitFeat > maxFeat {
			maxFeat = t.maxSplitFeat
		}
		m.trees = append(m.trees, t)
	}

	numFeature, err := parseXGBFloat(mf.Learner.LearnerModelParam.NumFeature, 0)
	if err != nil {
		return nil, fmt.Errorf("num_feature: %w", err)
	}
	m.numFeatures = int(numFeature)
	if m.numFeatures <= maxFeat {
		m.numFeatures = maxFeat + 1
	}

	return m, nil
}

// parseXGBFloat reads XGBoost's string-encoded numbers, e.g. "5E-1" or "[5E-1]"
func parseXGBFloat(s string, fallback float64) (float64, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(s, 64)
}

func buildTree(tf treeFile) (tree, error) {
	n := len(tf.LeftChildren)
	if n == 0 {
		return tree{}, fmt.Errorf("empty tree")
	}
	if len(tf.RightChildren) != n || len(tf.SplitIndices) != n || len(tf.SplitConditions) != n {
		return tree{}, fmt.Errorf("inconsistent node arrays")
	}

	defaultLeft := []bool(tf.DefaultLeft)
	if len(defaultLeft) == 0 {
		defaultLeft = make([]bool, n)
	}
	if len(defaultLeft) != n {
		return tree{}, fmt.Errorf("inconsistent default_left length")
	}

	t := tree{
		left:         tf.LeftChildren,
		right:        tf.RightChildren,
		splitIndex:   tf.SplitIndices,
		splitCond:    tf.SplitConditions,
		defaultLeft:  defaultLeft,
		maxSplitFeat: -1,
	}

	// Walk every node reachable from the root once. A node reached twice
	// means the arrays do not describe a tree and evaluation could loop.
	visited := make([]bool, n)
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[i] {
			return tree{}, fmt.Errorf("node %d: reached twice", i)
		}
		visited[i] = true

		l, r := t.left[i], t.right[i]
		if l == -1 {
			continue
		}
		if l < 0 || r < 0 || l >= n || r >= n {
			return tree{}, fmt.Errorf("node %d: invalid children %d/%d", i, l, r)
		}
		if t.splitIndex[i] < 0 {
			return tree{}, fmt.Errorf("node %d: negative split index", i)
		}
		if t.splitIndex[i] > t.maxSplitFeat {
			t.maxSplitFeat = t.splitIndex[i]
		}
		stack = append(stack, l, r)
	}
	return t, nil
}

// leaf walks one tree for a feature row and returns the leaf value
func (t *tree) leaf(x []float64) float64 {
	node := 0
	for t.left[node] != -1 {
		v := x[t.splitIndex[node]]
		switch {
		case math.IsNaN(v):
			if t.defaultLeft[node] {
				node = t.left[node]
			} else {
				node = t.right[node]
			}
		case v < t.splitCond[node]:
			node = t.left[node]
		default:
			node = t.right[node]
		}
	}
	// leaf values are stored in split_conditions
	return t.splitCond[node]
}

// Predict runs inference for one feature row
func (m *Model) Predict(x []float64) (float64, error) {
	if len(x) != m.numFeatures {
		return 0, &features.DimensionMismatchError{Component: "xgboost model", Expected: m.numFeatures, Got: len(x)}
	}

	margin := m.baseMargin
	for i := range m.trees {
		margin += m.trees[i].leaf(x)
	}
	return m.link.toOutput(margin), nil
}

// NumFeatures returns the input width the model was trained on
func (m *Model) NumFeatures() int {
	return m.numFeatures
}

// GetConfig returns the model configuration
func (m *Model) GetConfig() Config {
	return Config{
		NumTrees:    len(m.trees),
		NumFeatures: m.numFeatures,
		Objective:   m.objective,
		BaseScore:   m.link.toOutput(m.baseMargin),
	}
}
