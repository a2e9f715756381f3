package form

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys used by the page.
const (
	MsgIntro        = "intro"
	MsgSidebar      = "sidebar"
	MsgPeriod       = "period"
	MsgMonth        = "month"
	MsgProvinces    = "provinces"
	MsgFeature      = "feature"
	MsgPredict      = "predict"
	MsgResult       = "result"
	MsgPredicted    = "predicted"
	MsgProbability  = "probability"
	MsgError        = "error"
	MsgErrorHint    = "error_hint"
	MsgReceived     = "received"
	MsgExpected     = "expected"
	MsgFallback     = "fallback"
	MsgFallbackHint = "fallback_hint"
	MsgOrder        = "order"
	MsgReloaded     = "reloaded"
	MsgFooter       = "footer"
)

var translations = map[string][2]string{
	// key: {Indonesian, English}
	MsgIntro: {
		"Aplikasi ini memprediksi kategori TPT Indonesia (Rendah, Sedang, atau Tinggi) berdasarkan data TPT provinsi lain dan periode waktu. Silakan masukkan nilai-nilai di bawah ini:",
		"This app predicts Indonesia's TPT category (Low, Medium or High) from the TPT of other provinces and the time period. Enter the values below:",
	},
	MsgSidebar:      {"Input Data:", "Input data:"},
	MsgPeriod:       {"Tahun Periode:", "Period year:"},
	MsgMonth:        {"Bulan:", "Month:"},
	MsgProvinces:    {"Input TPT Provinsi Lain (%):", "TPT of other provinces (%):"},
	MsgFeature:      {"TPT %s (%%):", "TPT %s (%%):"},
	MsgPredict:      {"Prediksi Kategori TPT Indonesia", "Predict Indonesia TPT category"},
	MsgResult:       {"Hasil Prediksi:", "Prediction result:"},
	MsgPredicted:    {"Kategori TPT Indonesia diprediksi: %s", "Predicted Indonesia TPT category: %s"},
	MsgProbability:  {"Probabilitas untuk setiap kategori:", "Probability for each category:"},
	MsgError:        {"Terjadi kesalahan saat prediksi: %s", "Prediction failed: %s"},
	MsgErrorHint:    {"Pastikan semua input numerik diisi dengan benar dan model_feature_names sesuai.", "Make sure every numeric input is filled in and model_feature_names matches the model."},
	MsgReceived:     {"Input yang diterima: %s", "Received inputs: %s"},
	MsgExpected:     {"Fitur yang diharapkan model: %s", "Features expected by the model: %s"},
	MsgFallback:     {"Atribut kelas tidak ditemukan pada model. Harap simpan kelas target saat training.", "The model does not expose its class labels. Store the target classes when training."},
	MsgFallbackHint: {"Menggunakan kelas default: %s. Sesuaikan jika perlu.", "Using default classes: %s. Adjust if needed."},
	MsgOrder:        {"Urutan probabilitas tidak cocok dengan kelas yang diprediksi.", "Probability order does not match the predicted class."},
	MsgReloaded:     {"Model diperbarui. Muat ulang halaman untuk memakai artefak terbaru.", "The model was updated. Reload the page to use the new artifacts."},
	MsgFooter:       {"Proyek Machine Learning - Tingkat Pengangguran Terbuka", "Machine Learning Project - Open Unemployment Rate"},
}

var messages = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, tr := range translations {
		_ = b.SetString(language.Indonesian, key, tr[0])
		_ = b.SetString(language.English, key, tr[1])
	}
	return b
}

var supported = language.NewMatcher([]language.Tag{language.Indonesian, language.English})

// ParseLocale matches locale against the supported languages. Unknown or
// malformed locales resolve to Indonesian.
func ParseLocale(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.Indonesian
	}
	_, idx, conf := supported.Match(tag)
	if conf == language.No {
		return language.Indonesian
	}
	if idx == 1 {
		return language.English
	}
	return language.Indonesian
}

// NewPrinter returns a printer bound to the page catalog.
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}

// IsIndonesian reports whether tag selects the Indonesian texts.
func IsIndonesian(tag language.Tag) bool {
	base, _ := tag.Base()
	id, _ := language.Indonesian.Base()
	return base == id
}

// FormatProbability renders p as a percentage with two decimals in the
// number format of tag.
func FormatProbability(tag language.Tag, p float64) string {
	return message.NewPrinter(tag).Sprintf("%.2f%%", p*100)
}
