package ml

import (
	"encoding/json"
	"os"

	"tptpredict/errors"
)

// RandomForest averages the leaf distributions of its trees.
type RandomForest struct {
	classes []string
	trees   []*DecisionTree
}

type forestDocument struct {
	Type      string   `json:"type"`
	Classes   []string `json:"classes"`
	NFeatures int      `json:"n_features"`
	Trees     []struct {
		Nodes []TreeNode `json:"nodes"`
	} `json:"trees"`
}

func NewRandomForest(classes []string, trees []*DecisionTree) (*RandomForest, error) {
	if len(trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	width := trees[0].nClasses
	for i, tree := range trees {
		if tree.nClasses != width {
			return nil, errors.Newf("tree %d predicts %d classes, tree 0 predicts %d", i, tree.nClasses, width)
		}
	}
	return &RandomForest{classes: append([]string(nil), classes...), trees: trees}, nil
}

func (rf *RandomForest) Classes() []string {
	return rf.classes
}

func (rf *RandomForest) Predict(rows [][]float64) ([]string, error) {
	proba, err := rf.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	return labelsFromProba(rf.classes, proba), nil
}

func (rf *RandomForest) PredictProba(rows [][]float64) ([][]float64, error) {
	if len(rf.trees) == 0 {
		return nil, errors.New("model not trained")
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		sum := make([]float64, rf.trees[0].nClasses)
		for _, tree := range rf.trees {
			proba, err := tree.predictRow(row)
			if err != nil {
				return nil, err
			}
			for c, p := range proba {
				sum[c] += p
			}
		}
		for c := range sum {
			sum[c] /= float64(len(rf.trees))
		}
		out[i] = sum
	}
	return out, nil
}

func (rf *RandomForest) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc forestDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return err
	}
	trees := make([]*DecisionTree, 0, len(doc.Trees))
	for i, t := range doc.Trees {
		tree, err := NewDecisionTree(doc.Classes, doc.NFeatures, t.Nodes)
		if err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		trees = append(trees, tree)
	}
	loaded, err := NewRandomForest(doc.Classes, trees)
	if err != nil {
		return err
	}
	*rf = *loaded
	return nil
}
