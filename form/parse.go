package form

import (
	"net/url"
)

// Parse builds an input row from submitted form values. Values are clamped
// to their widget bounds. A field that is absent or not a number is left out
// of the row so that inference reports it instead of guessing a value.
func (f *Form) Parse(values url.Values) map[string]float64 {
	row := make(map[string]float64, len(f.Features)+2)

	if v, ok := parseNumber(values.Get(f.Period.Name)); ok {
		row[f.Period.Name] = float64(int64(Clamp(f.Period, v)))
	}
	if code, ok := MonthCode(values.Get(f.Month.Name)); ok {
		row[f.Month.Name] = float64(code)
	}
	for _, spec := range f.Features {
		if v, ok := parseNumber(values.Get(spec.Name)); ok {
			row[spec.Name] = Clamp(spec, v)
		}
	}
	return row
}

// Values renders row back into form values, falling back to the widget
// defaults for fields the row does not hold.
func (f *Form) Values(row map[string]float64) map[string]string {
	out := make(map[string]string, len(f.Features)+2)
	for _, spec := range f.Specs() {
		v, ok := row[spec.Name]
		if !ok {
			v = spec.Default
		}
		out[spec.Name] = FormatValue(spec, v)
	}
	return out
}
