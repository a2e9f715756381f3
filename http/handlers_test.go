package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"tptpredict/artifact"
	"tptpredict/form"
	"tptpredict/inference"
	"tptpredict/ml"
)

func testArtifacts(t *testing.T, classes []string) *artifact.Artifacts {
	t.Helper()
	tree, err := ml.NewDecisionTree(classes, 4, []ml.TreeNode{
		{FeatureIdx: 2, Threshold: 5, LeftChild: 1, RightChild: 2},
		{IsLeaf: true, Value: []float64{6, 3, 1}},
		{IsLeaf: true, Value: []float64{1, 2, 7}},
	})
	require.NoError(t, err)
	a := &artifact.Artifacts{
		Model:        tree,
		FeatureNames: []string{"Periode", "Bulan_Numerik", "Aceh", "Bali"},
		Defaults:     map[string]float64{"Periode": 2022, "Bulan_Numerik": 8, "Aceh": 6.5, "Bali": 1.25},
		Classes:      classes,
		LoadedAt:     time.Now(),
	}
	if len(classes) == 0 {
		a.Classes = []string{"Rendah", "Sedang", "Tinggi"}
		a.ClassesFallback = true
	}
	return a
}

func newTestServer(t *testing.T, a *artifact.Artifacts, locale language.Tag) http.Handler {
	t.Helper()
	inv, err := inference.NewInvoker(artifact.NewStaticLoader(a), 16)
	require.NoError(t, err)
	cfg := DefaultServerConfig()
	cfg.Locale = locale
	srv, err := NewServer(cfg, inv)
	require.NoError(t, err)
	return srv.Handler()
}

func TestFormPageSeedsDefaults(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.Indonesian)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Prediksi Kategori TPT Indonesia")
	assert.Contains(t, body, `name="Periode" min="2009" max="2030" step="1" value="2022"`)
	assert.Contains(t, body, `<option value="8" selected>Agustus</option>`)
	assert.Contains(t, body, `value="6.5"`)
	assert.Contains(t, body, "TPT Bali (%):")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestSubmitShowsPrediction(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.English)

	submitted := url.Values{
		"Periode":       {"2021"},
		"Bulan_Numerik": {"2"},
		"Aceh":          {"7"},
		"Bali":          {"1"},
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(submitted.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Predicted Indonesia TPT category: Tinggi")
	assert.Contains(t, body, "<strong>Rendah</strong>: 10.00%")
	assert.Contains(t, body, "<strong>Tinggi</strong>: 70.00%")
}

var (
	inputValuePattern    = regexp.MustCompile(`<input type="number" id="[^"]*" name="([^"]+)"[^>]*value="([^"]*)"`)
	selectedMonthPattern = regexp.MustCompile(`<option value="(\d+)" selected>`)
)

// pageValues collects the values a browser would submit for an untouched page.
func pageValues(t *testing.T, body string) url.Values {
	t.Helper()
	values := url.Values{}
	for _, m := range inputValuePattern.FindAllStringSubmatch(body, -1) {
		values.Set(m[1], m[2])
	}
	month := selectedMonthPattern.FindStringSubmatch(body)
	require.NotNil(t, month)
	values.Set(form.MonthFeature, month[1])
	return values
}

func TestUntouchedSubmitMatchesDefaultRow(t *testing.T) {
	tree, err := ml.NewDecisionTree([]string{"Rendah", "Sedang", "Tinggi"}, 4, []ml.TreeNode{
		{FeatureIdx: 2, Threshold: 6.5, LeftChild: 1, RightChild: 2},
		{IsLeaf: true, Value: []float64{6, 3, 1}},
		{IsLeaf: true, Value: []float64{1, 2, 7}},
	})
	require.NoError(t, err)
	a := &artifact.Artifacts{
		Model:        tree,
		FeatureNames: []string{"Periode", "Bulan_Numerik", "Aceh", "Bali"},
		Defaults:     map[string]float64{"Periode": 2022, "Bulan_Numerik": 8, "Aceh": 6.504, "Bali": 1.2345},
		Classes:      []string{"Rendah", "Sedang", "Tinggi"},
		LoadedAt:     time.Now(),
	}
	inv, err := inference.NewInvoker(artifact.NewStaticLoader(a), 0)
	require.NoError(t, err)
	cfg := DefaultServerConfig()
	cfg.Locale = language.English
	srv, err := NewServer(cfg, inv)
	require.NoError(t, err)
	h := srv.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	values := pageValues(t, w.Body.String())
	assert.Equal(t, "6.504", values.Get("Aceh"))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	f := form.Build(a.FeatureNames, a.Defaults, language.English)
	direct, err := inv.Invoke(context.Background(), inference.InputRow(f.DefaultRow()))
	require.NoError(t, err)
	assert.Equal(t, "Tinggi", direct.Label)
	assert.Equal(t, []float64{2022, 8, 6.504, 1.2345}, direct.Vector)

	body := w.Body.String()
	assert.Contains(t, body, "Predicted Indonesia TPT category: "+direct.Label)
	for _, p := range direct.Probabilities {
		assert.Contains(t, body, "<strong>"+p.Label+"</strong>: "+form.FormatProbability(language.English, p.Probability))
	}
}

func TestSubmitInvalidValueShowsErrorPanel(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.Indonesian)

	submitted := url.Values{
		"Periode":       {"2021"},
		"Bulan_Numerik": {"2"},
		"Aceh":          {"abc"},
		"Bali":          {"1"},
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(submitted.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Terjadi kesalahan saat prediksi")
	assert.Contains(t, body, "Fitur yang diharapkan model: Periode, Bulan_Numerik, Aceh, Bali")
	assert.Contains(t, body, `value="abc"`)
}

func TestFallbackWarningIsVisible(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, nil), language.Indonesian)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Menggunakan kelas default: Rendah, Sedang, Tinggi")
}

func TestAPIPredict(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.Indonesian)

	body := `{"inputs": {"Periode": 2021, "Bulan_Numerik": "Agustus", "Aceh": "2.5", "Bali": 1}}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Result inference.PredictionResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "Rendah", payload.Result.Label)
	assert.Equal(t, []float64{2021, 8, 2.5, 1}, payload.Result.Vector)
	assert.Len(t, payload.Result.Probabilities, 3)
}

func TestAPIPredictWithDefaults(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.Indonesian)

	body := `{"use_defaults": true, "inputs": {"Aceh": 9}}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"label":"Tinggi"`)
}

func TestAPIPredictMissingFeature(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.Indonesian)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"inputs": {"Aceh": 1}}`)))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var payload errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Contains(t, payload.Error, "Periode")
	assert.Equal(t, []string{"Periode", "Bulan_Numerik", "Aceh", "Bali"}, payload.Expected)
	assert.Equal(t, map[string]float64{"Aceh": 1}, payload.Received)
}

func TestAPIPredictRejectsNonNumericInput(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.Indonesian)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"inputs": {"Aceh": "high"}}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIPredictRejectsNonFiniteInput(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.Indonesian)

	for _, raw := range []string{`"NaN"`, `"Inf"`, `"-Inf"`} {
		body := `{"inputs": {"Periode": 2020, "Bulan_Numerik": 2, "Aceh": ` + raw + `, "Bali": 1}}`
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)

		var payload errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), raw)
		assert.Contains(t, payload.Error, "Aceh", raw)
	}
}

func TestCancelledRequestIsNotReportedAsMissingArtifacts(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.Indonesian)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	submitted := url.Values{"Periode": {"2021"}, "Bulan_Numerik": {"2"}, "Aceh": {"7"}, "Bali": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(submitted.Encode())).WithContext(ctx)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.NotContains(t, w.Body.String(), "artifacts unavailable")

	req = httptest.NewRequest(http.MethodPost, "/api/predict",
		strings.NewReader(`{"inputs": {"Periode": 2020, "Bulan_Numerik": 2, "Aceh": 1, "Bali": 1}}`)).WithContext(ctx)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), "canceled")
}

func TestAPIFeatures(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.English)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/features", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		FeatureNames []string `json:"feature_names"`
		Features     []struct {
			Name    string  `json:"name"`
			Kind    string  `json:"kind"`
			Default float64 `json:"default"`
		} `json:"features"`
		Classes []string `json:"classes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, []string{"Periode", "Bulan_Numerik", "Aceh", "Bali"}, payload.FeatureNames)
	require.Len(t, payload.Features, 4)
	assert.Equal(t, "year", payload.Features[0].Kind)
	assert.Equal(t, "month", payload.Features[1].Kind)
	assert.Equal(t, 6.5, payload.Features[2].Default)
	assert.Equal(t, []string{"Rendah", "Sedang", "Tinggi"}, payload.Classes)
}

func TestHealthHandler(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.Indonesian)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHealthHandlerWithoutArtifacts(t *testing.T) {
	loader := artifact.NewLoader(artifact.Options{
		Dir:              t.TempDir(),
		ModelFile:        "model_tpt_indo.json",
		FeatureNamesFile: "model_feature_names.json",
		DefaultsFile:     "default_input_values.json",
	})
	inv, err := inference.NewInvoker(loader, 0)
	require.NoError(t, err)
	srv, err := NewServer(DefaultServerConfig(), inv)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
