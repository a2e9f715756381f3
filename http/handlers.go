package http

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/text/message"

	"tptpredict/artifact"
	"tptpredict/errors"
	"tptpredict/form"
	"tptpredict/inference"
	"tptpredict/logger"
	"tptpredict/monitoring"
)

//go:embed templates/*.html static/*.js
var assets embed.FS

type handlers struct {
	config  ServerConfig
	invoker *inference.Invoker
	printer *message.Printer
	page    *template.Template
}

func newHandlers(config ServerConfig, invoker *inference.Invoker) (*handlers, error) {
	h := &handlers{
		config:  config,
		invoker: invoker,
		printer: form.NewPrinter(config.Locale),
	}
	funcs := template.FuncMap{
		"T": h.printer.Sprintf,
	}
	page, err := template.New("index.html").Funcs(funcs).ParseFS(assets, "templates/index.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse page template")
	}
	h.page = page
	return h, nil
}

func (h *handlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleForm)
	mux.HandleFunc("POST /{$}", h.handleSubmit)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/features", h.handleFeatures)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.Handle("GET /metrics", monitoring.Handler())
	mux.HandleFunc("GET /static/events.js", handleEventsScript)
}

func handleEventsScript(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(assets, "static/events.js")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Write(data)
}

type pageData struct {
	Title    string
	Lang     string
	Form     *form.Form
	Values   map[string]string
	Classes  string
	Fallback bool
	Result   *resultView
	Error    *errorView
}

type resultView struct {
	Label         string
	Probabilities []probabilityView
	OrderVerified bool
}

type probabilityView struct {
	Label   string
	Percent string
}

type errorView struct {
	Message  string
	Received string
	Expected string
}

func (h *handlers) newPage(a *artifact.Artifacts) *pageData {
	f := form.Build(a.FeatureNames, a.Defaults, h.config.Locale)
	return &pageData{
		Title:    h.config.Title,
		Lang:     h.config.Locale.String(),
		Form:     f,
		Values:   f.Values(nil),
		Classes:  strings.Join(a.Classes, ", "),
		Fallback: a.ClassesFallback,
	}
}

func (h *handlers) handleForm(w http.ResponseWriter, r *http.Request) {
	a, err := h.invoker.Artifacts()
	if err != nil {
		h.unavailable(w, err)
		return
	}
	h.render(w, http.StatusOK, h.newPage(a))
}

func (h *handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	a, err := h.invoker.Artifacts()
	if err != nil {
		h.unavailable(w, err)
		return
	}
	page := h.newPage(a)
	row := page.Form.Parse(r.PostForm)
	page.Values = page.Form.Values(row)
	for name := range page.Values {
		if _, ok := row[name]; !ok {
			page.Values[name] = r.PostForm.Get(name)
		}
	}

	result, err := h.invoker.Invoke(r.Context(), inference.InputRow(row))
	if err != nil {
		if isContextError(err) {
			h.interrupted(w, err)
			return
		}
		if !errors.IsInferenceError(err) {
			h.unavailable(w, err)
			return
		}
		page.Error = &errorView{
			Message:  err.Error(),
			Received: inference.InputRow(row).String(),
			Expected: strings.Join(a.FeatureNames, ", "),
		}
		h.render(w, http.StatusUnprocessableEntity, page)
		return
	}

	view := &resultView{Label: result.Label, OrderVerified: result.OrderVerified}
	for _, p := range result.Probabilities {
		view.Probabilities = append(view.Probabilities, probabilityView{
			Label:   p.Label,
			Percent: form.FormatProbability(h.config.Locale, p.Probability),
		})
	}
	page.Result = view
	h.render(w, http.StatusOK, page)
}

func (h *handlers) render(w http.ResponseWriter, status int, page *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.page.Execute(w, page); err != nil {
		logger.Errorw("render page failed", "error", err)
	}
}

func (h *handlers) unavailable(w http.ResponseWriter, err error) {
	logger.Errorw("artifacts unavailable", "error", err)
	http.Error(w, "model artifacts unavailable: "+err.Error(), http.StatusServiceUnavailable)
}

// interrupted reports a request whose context ended before inference ran.
func (h *handlers) interrupted(w http.ResponseWriter, err error) {
	logger.Warnw("prediction interrupted", "error", err)
	http.Error(w, "prediction interrupted: "+err.Error(), http.StatusGatewayTimeout)
}

func isContextError(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

type predictRequest struct {
	Inputs map[string]interface{} `json:"inputs"`
	// UseDefaults fills features absent from Inputs with the stored defaults.
	UseDefaults bool `json:"use_defaults"`
}

type errorResponse struct {
	Error    string             `json:"error"`
	Details  []string           `json:"details,omitempty"`
	Received map[string]float64 `json:"received,omitempty"`
	Expected []string           `json:"expected,omitempty"`
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	a, err := h.invoker.Artifacts()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	row := inference.InputRow{}
	if req.UseDefaults {
		for name, v := range form.Build(a.FeatureNames, a.Defaults, h.config.Locale).DefaultRow() {
			row[name] = v
		}
	}
	for name, raw := range req.Inputs {
		v, err := inputValue(name, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		row[name] = v
	}

	result, err := h.invoker.Invoke(r.Context(), row)
	if err != nil {
		status := http.StatusServiceUnavailable
		switch {
		case isContextError(err):
			status = http.StatusGatewayTimeout
		case errors.IsInferenceError(err):
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, errorResponse{
			Error:    err.Error(),
			Details:  errors.GetAllDetails(err),
			Received: row,
			Expected: a.FeatureNames,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"result":      result,
		"duration_ms": time.Since(GetStartTime(r.Context())).Milliseconds(),
	})
}

// inputValue accepts finite numbers, numeric strings and, for the month
// feature, month names.
func inputValue(name string, raw interface{}) (float64, error) {
	if name == form.MonthFeature {
		if s, ok := raw.(string); ok {
			if code, ok := form.MonthCode(s); ok {
				return float64(code), nil
			}
		}
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "input %q is not numeric", name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Newf("input %q is not a finite number", name)
	}
	return v, nil
}

func (h *handlers) handleFeatures(w http.ResponseWriter, r *http.Request) {
	a, err := h.invoker.Artifacts()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	f := form.Build(a.FeatureNames, a.Defaults, h.config.Locale)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feature_names":    a.FeatureNames,
		"features":         f.Specs(),
		"classes":          a.Classes,
		"classes_fallback": a.ClassesFallback,
	})
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	a, err := h.invoker.Artifacts()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"features":  len(a.FeatureNames),
		"loaded_at": a.LoadedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnw("encode response failed", "error", err)
	}
}
