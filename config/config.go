// Package config loads the service configuration from config.yaml.
package config

import (
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"tptpredict/errors"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxRequestSize int64         `yaml:"max_request_size"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		Env        string `yaml:"env"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Artifacts struct {
		Dir              string `yaml:"dir"`
		ModelFile        string `yaml:"model_file"`
		FeatureNamesFile string `yaml:"feature_names_file"`
		DefaultsFile     string `yaml:"defaults_file"`
		Watch            bool   `yaml:"watch"`
	} `yaml:"artifacts"`
	Model struct {
		Type            string   `yaml:"type"`
		FallbackClasses []string `yaml:"fallback_classes"`
		ONNX            struct {
			Library     string `yaml:"library"`
			Input       string `yaml:"input"`
			ProbaOutput string `yaml:"proba_output"`
		} `yaml:"onnx"`
	} `yaml:"model"`
	UI struct {
		Locale string `yaml:"locale"`
		Title  string `yaml:"title"`
	} `yaml:"ui"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path. A missing file yields the defaults; any other read or
// decode failure is returned.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Wrapf(err, "open config %s", path)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = 8501
	}
	if c.Http.Timeout == 0 {
		c.Http.Timeout = 30 * time.Second
	}
	if c.Http.MaxRequestSize == 0 {
		c.Http.MaxRequestSize = 1 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Env == "" {
		c.Log.Env = "development"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "artifacts"
	}
	if c.Artifacts.ModelFile == "" {
		c.Artifacts.ModelFile = "model_tpt_indo.json"
	}
	if c.Artifacts.FeatureNamesFile == "" {
		c.Artifacts.FeatureNamesFile = "model_feature_names.json"
	}
	if c.Artifacts.DefaultsFile == "" {
		c.Artifacts.DefaultsFile = "default_input_values.json"
	}
	if len(c.Model.FallbackClasses) == 0 {
		c.Model.FallbackClasses = []string{"Rendah", "Sedang", "Tinggi"}
	}
	if c.Model.ONNX.Input == "" {
		c.Model.ONNX.Input = "float_input"
	}
	if c.Model.ONNX.ProbaOutput == "" {
		c.Model.ONNX.ProbaOutput = "output_probability"
	}
	if c.UI.Locale == "" {
		c.UI.Locale = "id"
	}
	if c.UI.Title == "" {
		c.UI.Title = "Prediksi Tingkat Pengangguran Terbuka (TPT) Indonesia"
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = 256
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Http.Port < 0 || c.Http.Port > 65535 {
		return errors.Newf("http.port out of range: %d", c.Http.Port)
	}
	switch strings.ToLower(c.Model.Type) {
	case "", "decision_tree", "random_forest", "logistic_regression", "onnx":
	default:
		return errors.Newf("unsupported model.type %q", c.Model.Type)
	}
	if c.Cache.Size < 0 {
		return errors.Newf("cache.size must not be negative: %d", c.Cache.Size)
	}
	return nil
}
