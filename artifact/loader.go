// Package artifact loads the model, feature-name list and default-value
// table produced by the training process, and caches them for the lifetime
// of the process.
package artifact

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cast"

	"tptpredict/config"
	"tptpredict/errors"
	"tptpredict/logger"
	"tptpredict/ml"
	"tptpredict/monitoring"
)

// Artifacts is one immutable snapshot of the loaded artifact triple.
type Artifacts struct {
	Model        ml.Classifier
	FeatureNames []string
	Defaults     map[string]float64
	// Classes are the labels zipped against the probability vector.
	Classes []string
	// ClassesFallback is set when the model exposes no labels and Classes
	// holds the configured fallback set.
	ClassesFallback bool
	LoadedAt        time.Time
}

// Default returns the stored default for name.
func (a *Artifacts) Default(name string) (float64, bool) {
	v, ok := a.Defaults[name]
	return v, ok
}

type Options struct {
	Dir              string
	ModelFile        string
	FeatureNamesFile string
	DefaultsFile     string
	ModelType        string
	FallbackClasses  []string
	ONNX             ml.ONNXOptions
}

// OptionsFromConfig maps the artifact and model sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Dir:              cfg.Artifacts.Dir,
		ModelFile:        cfg.Artifacts.ModelFile,
		FeatureNamesFile: cfg.Artifacts.FeatureNamesFile,
		DefaultsFile:     cfg.Artifacts.DefaultsFile,
		ModelType:        strings.ToLower(cfg.Model.Type),
		FallbackClasses:  cfg.Model.FallbackClasses,
		ONNX: ml.ONNXOptions{
			Library:     cfg.Model.ONNX.Library,
			Input:       cfg.Model.ONNX.Input,
			ProbaOutput: cfg.Model.ONNX.ProbaOutput,
		},
	}
}

func (o Options) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(o.Dir, name)
}

// Paths lists the three artifact files in load order.
func (o Options) Paths() []string {
	return []string{o.path(o.ModelFile), o.path(o.FeatureNamesFile), o.path(o.DefaultsFile)}
}

// Load reads all three artifacts. It fails with ErrArtifactMissing when a file
// is absent and ErrArtifactCorrupt when one cannot be deserialized.
func Load(opts Options) (*Artifacts, error) {
	for _, p := range opts.Paths() {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WithHint(errors.Missingf(err, "artifact %s", p),
					"run the training export and copy its output into the artifact directory")
			}
			return nil, errors.Wrapf(err, "stat artifact %s", p)
		}
	}

	modelPath := opts.path(opts.ModelFile)
	model, err := ml.LoadModel(opts.ModelType, modelPath, opts.ONNX)
	if err != nil {
		return nil, errors.Corruptf(err, "load model %s", modelPath)
	}

	names, err := loadFeatureNames(opts.path(opts.FeatureNamesFile))
	if err != nil {
		_ = ml.Close(model)
		return nil, err
	}
	defaults, err := loadDefaults(opts.path(opts.DefaultsFile))
	if err != nil {
		_ = ml.Close(model)
		return nil, err
	}

	a := &Artifacts{
		Model:        model,
		FeatureNames: names,
		Defaults:     defaults,
		LoadedAt:     time.Now(),
	}
	if classes, ok := ml.ClassesOf(model); ok {
		a.Classes = classes
	} else {
		a.Classes = append([]string(nil), opts.FallbackClasses...)
		a.ClassesFallback = true
		logger.Warnw("model exposes no class labels, using fallback set",
			"error", errors.ErrClassLabelsUnavailable,
			"fallback", a.Classes)
	}

	for name := range defaults {
		if !contains(names, name) {
			logger.Debugw("default value for unknown feature ignored", "feature", name)
		}
	}
	return a, nil
}

func loadFeatureNames(path string) ([]string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read feature names %s", path)
	}
	var names []string
	if err := json.Unmarshal(payload, &names); err != nil {
		return nil, errors.Corruptf(err, "decode feature names %s", path)
	}
	if len(names) == 0 {
		return nil, errors.Corruptf(nil, "feature names %s: list is empty", path)
	}
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, errors.Corruptf(nil, "feature names %s: entry %d is blank", path, i)
		}
		if _, dup := seen[name]; dup {
			return nil, errors.Corruptf(nil, "feature names %s: duplicate %q", path, name)
		}
		seen[name] = struct{}{}
	}
	return names, nil
}

func loadDefaults(path string) (map[string]float64, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read default values %s", path)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Corruptf(err, "decode default values %s", path)
	}
	defaults := make(map[string]float64, len(raw))
	for name, value := range raw {
		if value == nil {
			return nil, errors.Corruptf(nil, "default value for %q in %s is null", name, path)
		}
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, errors.Corruptf(err, "default value for %q in %s", name, path)
		}
		defaults[name] = f
	}
	return defaults, nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Loader caches one Artifacts snapshot and swaps it atomically on Reload.
type Loader struct {
	opts    Options
	mu      sync.Mutex
	current atomic.Pointer[Artifacts]

	listenersMu sync.RWMutex
	listeners   []func(*Artifacts)

	// closeDelay keeps a replaced model open for requests still using it.
	closeDelay time.Duration
}

func NewLoader(opts Options) *Loader {
	return &Loader{opts: opts, closeDelay: time.Minute}
}

// NewStaticLoader returns a loader that serves a fixed snapshot.
func NewStaticLoader(a *Artifacts) *Loader {
	l := NewLoader(Options{})
	l.current.Store(a)
	return l
}

// Options returns the loader configuration.
func (l *Loader) Options() Options {
	return l.opts
}

// Get returns the cached snapshot, loading it on first use.
func (l *Loader) Get() (*Artifacts, error) {
	if a := l.current.Load(); a != nil {
		return a, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if a := l.current.Load(); a != nil {
		return a, nil
	}
	a, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current.Store(a)
	return a, nil
}

// Reload loads a fresh snapshot and swaps it in. On failure the previous
// snapshot stays active.
func (l *Loader) Reload() error {
	l.mu.Lock()
	a, err := l.load()
	if err != nil {
		l.mu.Unlock()
		return err
	}
	prev := l.current.Swap(a)
	l.mu.Unlock()

	if prev != nil {
		model := prev.Model
		time.AfterFunc(l.closeDelay, func() {
			if err := ml.Close(model); err != nil {
				logger.Warnw("closing replaced model failed", "error", err)
			}
		})
	}

	l.listenersMu.RLock()
	listeners := make([]func(*Artifacts), len(l.listeners))
	copy(listeners, l.listeners)
	l.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(a)
	}
	return nil
}

// OnReload registers fn to run after every successful Reload.
func (l *Loader) OnReload(fn func(*Artifacts)) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Close releases the current model.
func (l *Loader) Close() error {
	a := l.current.Swap(nil)
	if a == nil {
		return nil
	}
	return ml.Close(a.Model)
}

func (l *Loader) load() (*Artifacts, error) {
	a, err := Load(l.opts)
	if err != nil {
		monitoring.ArtifactLoads.WithLabelValues(monitoring.StatusError).Inc()
		return nil, err
	}
	monitoring.ArtifactLoads.WithLabelValues(monitoring.StatusSuccess).Inc()
	monitoring.SetClassLabelsFallback(a.ClassesFallback)
	logger.Infow("artifacts loaded",
		"dir", l.opts.Dir,
		"features", len(a.FeatureNames),
		"classes", a.Classes,
		"fallback", a.ClassesFallback)
	return a, nil
}
