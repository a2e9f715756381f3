package form

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

const (
	February = 2
	August   = 8
)

var monthNames = map[int][2]string{
	// code: {Indonesian, English}
	February: {"Februari", "February"},
	August:   {"Agustus", "August"},
}

// MonthOptions lists the survey months in calendar order, labelled for tag.
func MonthOptions(tag language.Tag) []Option {
	lang := 1
	if IsIndonesian(tag) {
		lang = 0
	}
	return []Option{
		{Code: February, Label: monthNames[February][lang]},
		{Code: August, Label: monthNames[August][lang]},
	}
}

// MonthCode maps a month label in either language, or its numeric code, to
// the code the model was trained on.
func MonthCode(value string) (int, bool) {
	value = strings.TrimSpace(value)
	for code, names := range monthNames {
		for _, name := range names {
			if strings.EqualFold(value, name) {
				return code, true
			}
		}
	}
	if code, err := strconv.Atoi(value); err == nil {
		if _, ok := monthNames[code]; ok {
			return code, true
		}
	}
	return 0, false
}

// MonthLabel returns the label of code for tag.
func MonthLabel(code int, tag language.Tag) (string, bool) {
	for _, opt := range MonthOptions(tag) {
		if opt.Code == code {
			return opt.Label, true
		}
	}
	return "", false
}
