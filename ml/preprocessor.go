package ml

import (
	"tptpredict/errors"
)

// Scaler is the preprocessing step stored next to a linear model. Kind is
// "standard" (subtract Mean, divide by Scale) or "minmax" (map Min..Max onto
// 0..1).
type Scaler struct {
	Kind  string    `json:"kind"`
	Mean  []float64 `json:"mean,omitempty"`
	Scale []float64 `json:"scale,omitempty"`
	Min   []float64 `json:"min,omitempty"`
	Max   []float64 `json:"max,omitempty"`
}

func (s *Scaler) validate(nFeatures int) error {
	if s == nil {
		return nil
	}
	switch s.Kind {
	case "standard":
		if len(s.Mean) != nFeatures || len(s.Scale) != nFeatures {
			return errors.Newf("standard scaler expects %d means and scales", nFeatures)
		}
	case "minmax":
		if len(s.Min) != nFeatures || len(s.Max) != nFeatures {
			return errors.Newf("minmax scaler expects %d mins and maxs", nFeatures)
		}
	default:
		return errors.Newf("unsupported scaler kind %q", s.Kind)
	}
	return nil
}

// Transform returns a scaled copy of values.
func (s *Scaler) Transform(values []float64) ([]float64, error) {
	if s == nil {
		return values, nil
	}
	switch s.Kind {
	case "standard":
		if len(values) != len(s.Mean) {
			return nil, errors.New("values/means length mismatch")
		}
		out := make([]float64, len(values))
		for i, v := range values {
			scale := s.Scale[i]
			if scale == 0 {
				scale = 1
			}
			out[i] = (v - s.Mean[i]) / scale
		}
		return out, nil
	case "minmax":
		return NormalizeVector(values, s.Min, s.Max)
	default:
		return nil, errors.Newf("unsupported scaler kind %q", s.Kind)
	}
}

func NormalizeFeature(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

func NormalizeVector(values []float64, mins []float64, maxs []float64) ([]float64, error) {
	if len(values) != len(mins) || len(values) != len(maxs) {
		return nil, errors.New("values/mins/maxs length mismatch")
	}
	result := make([]float64, len(values))
	for i := range values {
		result[i] = NormalizeFeature(values[i], mins[i], maxs[i])
	}
	return result, nil
}
