package ml

import (
	"bytes"
	"encoding/json"
	"os"

	"tptpredict/errors"
)

type DecisionTree struct {
	classes   []string
	nFeatures int
	nClasses  int
	nodes     []TreeNode
}

// TreeNode is one node of a flattened tree. Value holds the per-class sample
// counts of a leaf; leaves without Value vote for ClassLabel only.
type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	ClassLabel int       `json:"class_label"`
	IsLeaf     bool      `json:"is_leaf"`
	Value      []float64 `json:"value,omitempty"`
}

type treeDocument struct {
	Type      string     `json:"type"`
	Classes   []string   `json:"classes"`
	NFeatures int        `json:"n_features"`
	Nodes     []TreeNode `json:"nodes"`
}

// NewDecisionTree validates nodes and builds a tree. classes may be empty.
func NewDecisionTree(classes []string, nFeatures int, nodes []TreeNode) (*DecisionTree, error) {
	dt := &DecisionTree{
		classes:   append([]string(nil), classes...),
		nFeatures: nFeatures,
		nodes:     append([]TreeNode(nil), nodes...),
	}
	if err := dt.validate(); err != nil {
		return nil, err
	}
	return dt, nil
}

func (dt *DecisionTree) Classes() []string {
	return dt.classes
}

func (dt *DecisionTree) Predict(rows [][]float64) ([]string, error) {
	proba, err := dt.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	return labelsFromProba(dt.classes, proba), nil
}

func (dt *DecisionTree) PredictProba(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		proba, err := dt.predictRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = proba
	}
	return out, nil
}

func (dt *DecisionTree) predictRow(features []float64) ([]float64, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	if dt.nFeatures > 0 && len(features) != dt.nFeatures {
		return nil, errors.Newf("expected %d features, got %d", dt.nFeatures, len(features))
	}
	idx := 0
	for steps := 0; steps <= len(dt.nodes); steps++ {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return dt.leafProba(node), nil
		}
		if node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
	return nil, errors.New("invalid tree state")
}

func (dt *DecisionTree) leafProba(node TreeNode) []float64 {
	if len(node.Value) > 0 {
		proba := normalize(node.Value)
		if len(proba) < dt.nClasses {
			proba = append(proba, make([]float64, dt.nClasses-len(proba))...)
		}
		if proba[argmax(proba)] > 0 {
			return proba
		}
	}
	proba := make([]float64, dt.nClasses)
	proba[node.ClassLabel] = 1
	return proba
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := decodeTree(payload)
	if err != nil {
		return err
	}
	loaded, err := NewDecisionTree(doc.Classes, doc.NFeatures, doc.Nodes)
	if err != nil {
		return err
	}
	*dt = *loaded
	return nil
}

// decodeTree accepts both the object form and a bare node array, which
// carries no class labels.
func decodeTree(payload []byte) (treeDocument, error) {
	var doc treeDocument
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Nodes); err != nil {
			return doc, err
		}
		return doc, nil
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func (dt *DecisionTree) validate() error {
	if len(dt.nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	nClasses := len(dt.classes)
	for i, node := range dt.nodes {
		if node.IsLeaf {
			if node.ClassLabel < 0 {
				return errors.Newf("node %d: negative class label", i)
			}
			if node.ClassLabel+1 > nClasses {
				nClasses = node.ClassLabel + 1
			}
			if len(node.Value) > nClasses {
				nClasses = len(node.Value)
			}
			continue
		}
		if node.FeatureIdx < 0 || (dt.nFeatures > 0 && node.FeatureIdx >= dt.nFeatures) {
			return errors.Newf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		if node.LeftChild <= 0 || node.LeftChild >= len(dt.nodes) ||
			node.RightChild <= 0 || node.RightChild >= len(dt.nodes) {
			return errors.Newf("node %d: child index out of range", i)
		}
	}
	if len(dt.classes) > 0 && nClasses > len(dt.classes) {
		return errors.Newf("tree references %d classes but declares %d", nClasses, len(dt.classes))
	}
	dt.nClasses = nClasses
	return nil
}
