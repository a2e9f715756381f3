package ml

import (
	"encoding/json"
	"os"

	"tptpredict/errors"
)

// LogisticRegression is a linear classifier. With two classes and a single
// coefficient row it is binary (sigmoid), otherwise multinomial (softmax).
type LogisticRegression struct {
	classes   []string
	coef      [][]float64
	intercept []float64
	scaler    *Scaler
}

type logisticDocument struct {
	Type      string      `json:"type"`
	Classes   []string    `json:"classes"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
	Scaler    *Scaler     `json:"scaler,omitempty"`
}

func NewLogisticRegression(classes []string, coef [][]float64, intercept []float64, scaler *Scaler) (*LogisticRegression, error) {
	if len(coef) == 0 || len(coef[0]) == 0 {
		return nil, errors.New("logistic regression has no coefficients")
	}
	if len(intercept) != len(coef) {
		return nil, errors.Newf("intercept has %d entries, coef has %d rows", len(intercept), len(coef))
	}
	nFeatures := len(coef[0])
	for i, row := range coef {
		if len(row) != nFeatures {
			return nil, errors.Newf("coef row %d has %d entries, want %d", i, len(row), nFeatures)
		}
	}
	if len(classes) > 0 {
		binary := len(coef) == 1 && len(classes) == 2
		if !binary && len(coef) != len(classes) {
			return nil, errors.Newf("%d coef rows for %d classes", len(coef), len(classes))
		}
	}
	if err := scaler.validate(nFeatures); err != nil {
		return nil, err
	}
	return &LogisticRegression{
		classes:   append([]string(nil), classes...),
		coef:      coef,
		intercept: intercept,
		scaler:    scaler,
	}, nil
}

func (lr *LogisticRegression) Classes() []string {
	return lr.classes
}

func (lr *LogisticRegression) Predict(rows [][]float64) ([]string, error) {
	proba, err := lr.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	return labelsFromProba(lr.classes, proba), nil
}

func (lr *LogisticRegression) PredictProba(rows [][]float64) ([][]float64, error) {
	if len(lr.coef) == 0 {
		return nil, errors.New("model not trained")
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(lr.coef[0]) {
			return nil, errors.Newf("expected %d features, got %d", len(lr.coef[0]), len(row))
		}
		x, err := lr.scaler.Transform(row)
		if err != nil {
			return nil, err
		}
		if len(lr.coef) == 1 {
			p := sigmoid(dot(lr.coef[0], x) + lr.intercept[0])
			out[i] = []float64{1 - p, p}
			continue
		}
		logits := make([]float64, len(lr.coef))
		for c, w := range lr.coef {
			logits[c] = dot(w, x) + lr.intercept[c]
		}
		out[i] = softmax(logits)
	}
	return out, nil
}

func (lr *LogisticRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc logisticDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return err
	}
	loaded, err := NewLogisticRegression(doc.Classes, doc.Coef, doc.Intercept, doc.Scaler)
	if err != nil {
		return err
	}
	*lr = *loaded
	return nil
}
