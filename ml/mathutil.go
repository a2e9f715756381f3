package ml

import (
	"math"
	"strconv"
)

func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	total := 0.0
	for _, v := range values {
		if v > 0 {
			total += v
		}
	}
	if total == 0 {
		return out
	}
	for i, v := range values {
		if v > 0 {
			out[i] = v / total
		}
	}
	return out
}

// softmax is shifted by the max logit to stay finite.
func softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxLogit := logits[argmax(logits)]
	total := 0.0
	for i, z := range logits {
		out[i] = math.Exp(z - maxLogit)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// labelFor maps a class index to its label, or to the decimal index when the
// model carries no labels.
func labelFor(classes []string, idx int) string {
	if idx >= 0 && idx < len(classes) {
		return classes[idx]
	}
	return strconv.Itoa(idx)
}

func labelsFromProba(classes []string, proba [][]float64) []string {
	labels := make([]string, len(proba))
	for i, row := range proba {
		labels[i] = labelFor(classes, argmax(row))
	}
	return labels
}
