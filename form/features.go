// Package form describes the input widgets derived from the trained feature
// list and turns submitted values back into an input row.
package form

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

type WidgetKind string

const (
	WidgetYear    WidgetKind = "year"
	WidgetMonth   WidgetKind = "month"
	WidgetPercent WidgetKind = "percent"
)

// Time-related features get dedicated sidebar widgets.
const (
	PeriodFeature = "Periode"
	MonthFeature  = "Bulan_Numerik"
)

const (
	MinPeriod     = 2009
	MaxPeriod     = 2030
	DefaultPeriod = 2023

	MinPercent  = 0.0
	MaxPercent  = 100.0
	PercentStep = 0.1
)

// Option is one entry of an enumerated widget.
type Option struct {
	Code  int    `json:"code"`
	Label string `json:"label"`
}

type FeatureSpec struct {
	Name    string     `json:"name"`
	Label   string     `json:"label"`
	Kind    WidgetKind `json:"kind"`
	Min     float64    `json:"min"`
	Max     float64    `json:"max"`
	Step    float64    `json:"step,omitempty"`
	Default float64    `json:"default"`
	Options []Option   `json:"options,omitempty"`
	// Column places percent widgets in the left (0) or right (1) column.
	Column int `json:"column"`
}

// Form is the full widget set for one artifact snapshot.
type Form struct {
	Locale   language.Tag
	Period   FeatureSpec
	Month    FeatureSpec
	Features []FeatureSpec
}

// IsTimeFeature reports whether name has a dedicated sidebar widget.
func IsTimeFeature(name string) bool {
	return name == PeriodFeature || name == MonthFeature
}

// Build derives the widgets for featureNames. Generic widgets are seeded with
// the stored default, or 0 when there is none.
func Build(featureNames []string, defaults map[string]float64, locale language.Tag) *Form {
	p := NewPrinter(locale)
	f := &Form{Locale: locale}

	f.Period = FeatureSpec{
		Name:    PeriodFeature,
		Label:   p.Sprintf(MsgPeriod),
		Kind:    WidgetYear,
		Min:     MinPeriod,
		Max:     MaxPeriod,
		Step:    1,
		Default: DefaultPeriod,
	}
	// The year widget cannot hold a value outside its bounds, so the seed is
	// clamped the same way a submission is.
	if v, ok := defaults[PeriodFeature]; ok {
		f.Period.Default = Clamp(f.Period, math.Trunc(v))
	}

	options := MonthOptions(locale)
	month := float64(options[0].Code)
	if v, ok := defaults[MonthFeature]; ok {
		for _, opt := range options {
			if float64(opt.Code) == math.Trunc(v) {
				month = float64(opt.Code)
			}
		}
	}
	f.Month = FeatureSpec{
		Name:    MonthFeature,
		Label:   p.Sprintf(MsgMonth),
		Kind:    WidgetMonth,
		Default: month,
		Options: options,
	}

	column := 0
	for _, name := range featureNames {
		if IsTimeFeature(name) {
			continue
		}
		f.Features = append(f.Features, FeatureSpec{
			Name:    name,
			Label:   p.Sprintf(MsgFeature, name),
			Kind:    WidgetPercent,
			Min:     MinPercent,
			Max:     MaxPercent,
			Step:    PercentStep,
			Default: defaults[name],
			Column:  column % 2,
		})
		column++
	}
	return f
}

// Specs returns every widget, sidebar first.
func (f *Form) Specs() []FeatureSpec {
	specs := make([]FeatureSpec, 0, len(f.Features)+2)
	specs = append(specs, f.Period, f.Month)
	return append(specs, f.Features...)
}

// Column returns the percent widgets placed in column col.
func (f *Form) Column(col int) []FeatureSpec {
	var out []FeatureSpec
	for _, spec := range f.Features {
		if spec.Column == col {
			out = append(out, spec)
		}
	}
	return out
}

// DefaultRow is the input row of an untouched form.
func (f *Form) DefaultRow() map[string]float64 {
	row := make(map[string]float64, len(f.Features)+2)
	for _, spec := range f.Specs() {
		row[spec.Name] = spec.Default
	}
	return row
}

// FormatValue renders a widget value for the input element. Percent values
// keep every digit so that an untouched form submits the loaded default.
func FormatValue(spec FeatureSpec, v float64) string {
	switch spec.Kind {
	case WidgetYear, WidgetMonth:
		return strconv.FormatInt(int64(v), 10)
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// DisplayValue renders v for reading: percent values get two decimals.
func DisplayValue(spec FeatureSpec, v float64) string {
	if spec.Kind == WidgetPercent {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return FormatValue(spec, v)
}

// Clamp limits v to the widget bounds. Month widgets are not clamped.
func Clamp(spec FeatureSpec, v float64) float64 {
	if spec.Kind == WidgetMonth {
		return v
	}
	if v < spec.Min {
		return spec.Min
	}
	if v > spec.Max {
		return spec.Max
	}
	return v
}

func parseNumber(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
