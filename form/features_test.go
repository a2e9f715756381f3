package form

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

var featureNames = []string{"Periode", "Bulan_Numerik", "Aceh", "Bali", "Banten", "Papua"}

func TestBuildSeedsDefaults(t *testing.T) {
	defaults := map[string]float64{
		"Periode":       2019.7,
		"Bulan_Numerik": 8,
		"Aceh":          6.17,
		"Bali":          1.21,
	}
	f := Build(featureNames, defaults, language.Indonesian)

	assert.Equal(t, WidgetYear, f.Period.Kind)
	assert.Equal(t, 2019.0, f.Period.Default)
	assert.Equal(t, WidgetMonth, f.Month.Kind)
	assert.Equal(t, 8.0, f.Month.Default)

	require.Len(t, f.Features, 4)
	want := map[string]float64{"Aceh": 6.17, "Bali": 1.21, "Banten": 0, "Papua": 0}
	for _, spec := range f.Features {
		assert.Equal(t, WidgetPercent, spec.Kind)
		assert.Equal(t, want[spec.Name], spec.Default, spec.Name)
		assert.Equal(t, 0.0, spec.Min)
		assert.Equal(t, 100.0, spec.Max)
		assert.Equal(t, 0.1, spec.Step)
	}
	assert.Equal(t, "TPT Aceh (%):", f.Features[0].Label)
}

func TestBuildWithoutTimeDefaults(t *testing.T) {
	f := Build(featureNames, map[string]float64{"Bulan_Numerik": 5}, language.English)
	assert.Equal(t, float64(DefaultPeriod), f.Period.Default)
	assert.Equal(t, float64(February), f.Month.Default)
	assert.Equal(t, "February", f.Month.Options[0].Label)
}

func TestBuildAlternatesColumns(t *testing.T) {
	f := Build(featureNames, nil, language.Indonesian)
	left := f.Column(0)
	right := f.Column(1)
	require.Len(t, left, 2)
	require.Len(t, right, 2)
	assert.Equal(t, "Aceh", left[0].Name)
	assert.Equal(t, "Bali", right[0].Name)
	assert.Equal(t, "Banten", left[1].Name)
}

func TestDefaultRowCoversEveryFeature(t *testing.T) {
	f := Build(featureNames, map[string]float64{"Aceh": 3.5}, language.Indonesian)
	row := f.DefaultRow()
	assert.Len(t, row, len(featureNames))
	assert.Equal(t, 3.5, row["Aceh"])
	assert.Equal(t, 2023.0, row["Periode"])
	assert.Equal(t, 2.0, row["Bulan_Numerik"])
}

func TestMonthCodeIgnoresOptionOrder(t *testing.T) {
	cases := map[string]int{
		"February": 2,
		"Februari": 2,
		"august":   8,
		"Agustus":  8,
		"2":        2,
		"8":        8,
	}
	for label, code := range cases {
		got, ok := MonthCode(label)
		assert.True(t, ok, label)
		assert.Equal(t, code, got, label)
	}
	_, ok := MonthCode("March")
	assert.False(t, ok)
	_, ok = MonthCode("3")
	assert.False(t, ok)
}

func TestMonthLabelFollowsLocale(t *testing.T) {
	label, ok := MonthLabel(8, language.Indonesian)
	require.True(t, ok)
	assert.Equal(t, "Agustus", label)
	label, ok = MonthLabel(8, language.English)
	require.True(t, ok)
	assert.Equal(t, "August", label)
}

func TestParseClampsToWidgetBounds(t *testing.T) {
	f := Build(featureNames, nil, language.Indonesian)
	values := url.Values{
		"Periode":       {"2045.6"},
		"Bulan_Numerik": {"Agustus"},
		"Aceh":          {"150"},
		"Bali":          {"-3"},
		"Banten":        {"7,25"},
		"Papua":         {"3.1"},
	}
	row := f.Parse(values)
	assert.Equal(t, map[string]float64{
		"Periode":       2030,
		"Bulan_Numerik": 8,
		"Aceh":          100,
		"Bali":          0,
		"Banten":        7.25,
		"Papua":         3.1,
	}, row)
}

func TestParseOmitsInvalidValues(t *testing.T) {
	f := Build(featureNames, nil, language.Indonesian)
	values := url.Values{
		"Periode":       {"2020"},
		"Bulan_Numerik": {"Maret"},
		"Aceh":          {"abc"},
		"Bali":          {""},
		"Banten":        {"NaN"},
	}
	row := f.Parse(values)
	assert.Equal(t, map[string]float64{"Periode": 2020}, row)
}

func TestValuesRoundTripsThroughParse(t *testing.T) {
	defaults := map[string]float64{"Periode": 2021, "Bulan_Numerik": 8, "Aceh": 5.5}
	f := Build(featureNames, defaults, language.Indonesian)
	values := f.Values(nil)
	assert.Equal(t, "2021", values["Periode"])
	assert.Equal(t, "8", values["Bulan_Numerik"])
	assert.Equal(t, "5.5", values["Aceh"])

	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	assert.Equal(t, f.DefaultRow(), f.Parse(form))
}

func TestSeededValuesAreExact(t *testing.T) {
	defaults := map[string]float64{"Aceh": 6.504, "Bali": 0.1 + 0.2, "Banten": 12.3456789}
	f := Build(featureNames, defaults, language.Indonesian)
	values := f.Values(nil)
	assert.Equal(t, "6.504", values["Aceh"])

	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	row := f.Parse(form)
	for name, v := range defaults {
		assert.Equal(t, v, row[name], name)
	}
	assert.Equal(t, f.DefaultRow(), row)
}

func TestDisplayValueRoundsPercent(t *testing.T) {
	f := Build(featureNames, map[string]float64{"Aceh": 6.504}, language.Indonesian)
	assert.Equal(t, "6.50", DisplayValue(f.Features[0], 6.504))
	assert.Equal(t, "2023", DisplayValue(f.Period, 2023))
}

func TestBuildClampsPeriodDefault(t *testing.T) {
	f := Build(featureNames, map[string]float64{"Periode": 2045.9}, language.Indonesian)
	assert.Equal(t, 2030.0, f.Period.Default)
	f = Build(featureNames, map[string]float64{"Periode": 1999}, language.Indonesian)
	assert.Equal(t, 2009.0, f.Period.Default)

	values := url.Values{}
	for k, v := range f.Values(nil) {
		values.Set(k, v)
	}
	assert.Equal(t, f.DefaultRow(), f.Parse(values))
}

func TestParseLocale(t *testing.T) {
	assert.Equal(t, language.Indonesian, ParseLocale("id"))
	assert.Equal(t, language.English, ParseLocale("en-US"))
	assert.Equal(t, language.Indonesian, ParseLocale("not a locale"))
}

func TestFormatProbability(t *testing.T) {
	assert.Equal(t, "12.34%", FormatProbability(language.English, 0.1234))
	assert.Equal(t, "12,34%", FormatProbability(language.Indonesian, 0.1234))
}

func TestPrinterTranslatesKeys(t *testing.T) {
	assert.Equal(t, "Prediksi Kategori TPT Indonesia", NewPrinter(language.Indonesian).Sprintf(MsgPredict))
	assert.Equal(t, "Predicted Indonesia TPT category: Tinggi",
		NewPrinter(language.English).Sprintf(MsgPredicted, "Tinggi"))
}
