// Package inference turns an input row into a prediction using the loaded
// artifact snapshot.
package inference

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"tptpredict/artifact"
	"tptpredict/errors"
)

// InputRow maps feature names to the values entered on the form.
type InputRow map[string]float64

// String renders the row sorted by name.
func (r InputRow) String() string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + strconv.FormatFloat(r[name], 'g', -1, 64)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type ClassProbability struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

type PredictionResult struct {
	Label         string             `json:"label"`
	Probabilities []ClassProbability `json:"probabilities"`
	// ClassesFallback is set when the labels come from the configured
	// fallback set instead of the model.
	ClassesFallback bool `json:"classes_fallback"`
	// OrderVerified is false when the predicted label is not the label of
	// the highest probability.
	OrderVerified bool      `json:"order_verified"`
	Vector        []float64 `json:"vector"`
	Cached        bool      `json:"cached"`
}

// clone copies r so that cache entries never share slices with callers.
func (r PredictionResult) clone() *PredictionResult {
	r.Probabilities = append([]ClassProbability(nil), r.Probabilities...)
	r.Vector = append([]float64(nil), r.Vector...)
	return &r
}

// Vector orders row by the trained feature list. Keys not in names are
// ignored.
func Vector(names []string, row InputRow) ([]float64, error) {
	vector := make([]float64, len(names))
	var missing []string
	for i, name := range names {
		v, ok := row[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		vector[i] = v
	}
	if len(missing) > 0 {
		return nil, errors.Inferencef(nil, "missing input features: %s", strings.Join(missing, ", "))
	}
	return vector, nil
}

// Predict runs the snapshot model on row. It has no side effects.
func Predict(a *artifact.Artifacts, row InputRow) (*PredictionResult, error) {
	vector, err := Vector(a.FeatureNames, row)
	if err != nil {
		return nil, withDiagnostics(err, a, row)
	}
	rows := [][]float64{vector}

	labels, err := a.Model.Predict(rows)
	if err != nil {
		return nil, withDiagnostics(errors.Inferencef(err, "predict"), a, row)
	}
	proba, err := a.Model.PredictProba(rows)
	if err != nil {
		return nil, withDiagnostics(errors.Inferencef(err, "predict probabilities"), a, row)
	}
	if len(labels) != 1 || len(proba) != 1 {
		return nil, withDiagnostics(errors.Inferencef(nil,
			"model returned %d labels and %d probability rows for one input", len(labels), len(proba)), a, row)
	}
	probs := proba[0]
	if len(probs) != len(a.Classes) {
		return nil, withDiagnostics(errors.Inferencef(nil,
			"model returned %d probabilities for %d class labels", len(probs), len(a.Classes)), a, row)
	}

	result := &PredictionResult{
		Label:           displayLabel(labels[0], a),
		Probabilities:   make([]ClassProbability, len(probs)),
		ClassesFallback: a.ClassesFallback,
		Vector:          vector,
	}
	best := 0
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, withDiagnostics(errors.Inferencef(nil,
				"probability for %q is not finite", a.Classes[i]), a, row)
		}
		if p > probs[best] {
			best = i
		}
		result.Probabilities[i] = ClassProbability{Label: a.Classes[i], Probability: p}
	}
	result.OrderVerified = result.Label == a.Classes[best]
	return result, nil
}

// displayLabel maps a bare class index onto the fallback labels when the
// model carries no labels of its own.
func displayLabel(label string, a *artifact.Artifacts) string {
	if !a.ClassesFallback {
		return label
	}
	idx, err := strconv.Atoi(label)
	if err != nil || idx < 0 || idx >= len(a.Classes) {
		return label
	}
	return a.Classes[idx]
}

func withDiagnostics(err error, a *artifact.Artifacts, row InputRow) error {
	err = errors.WithDetailf(err, "received inputs: %s", row)
	return errors.WithDetailf(err, "expected features: %s", fmt.Sprint(a.FeatureNames))
}
