// Package config loads lakeguide configuration from a YAML file with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all lakeguide configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configures the intent analyzer backend.
	LLM LLMConfig `yaml:"llm"`

	// QA configures the plain question-answering fallback service.
	QA QAConfig `yaml:"qa"`

	// Backend configures the knowledge-service HTTP API.
	Backend BackendConfig `yaml:"backend"`

	// Store configures the conversation context store.
	Store StoreConfig `yaml:"store"`

	// Lexicon configures the synonym/canonical-name tables.
	Lexicon LexiconConfig `yaml:"lexicon"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the LLM completion endpoint.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// QAConfig configures the opt-in plain Q&A fallback service.
type QAConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// BackendConfig configures the knowledge backend.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout applies to primary lookups; ProbeTimeout to the short
	// relaxation probes.
	Timeout      string `yaml:"timeout"`
	ProbeTimeout string `yaml:"probe_timeout"`
	// PageSize is the disambiguation page size requested from the backend.
	PageSize int `yaml:"page_size"`
}

// StoreConfig configures the context store.
type StoreConfig struct {
	// Driver selects the backing store: "sqlite" or "memory".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`

	HistoryTTL        string `yaml:"history_ttl"`
	DisambiguationTTL string `yaml:"disambiguation_ttl"`
	FallbackTTL       string `yaml:"fallback_ttl"`
}

// LexiconConfig configures the synonym tables.
type LexiconConfig struct {
	// Path to a YAML tables file. Empty means the embedded defaults.
	Path string `yaml:"path"`
	// Watch enables hot reload when the tables file changes on disk.
	Watch bool `yaml:"watch"`
	// FuzzyThreshold is the 0-100 acceptance score for canonical matching.
	FuzzyThreshold int `yaml:"fuzzy_threshold"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
	// AuditPath is the append-only unhandled-query audit log.
	AuditPath string `yaml:"audit_path"`
}

// Default returns a configuration with working local defaults.
func Default() *Config {
	return &Config{
		Name:    "lakeguide",
		Version: "1.0.0",
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "60s",
		},
		QA: QAConfig{
			Enabled: false,
			BaseURL: "http://localhost:8087",
			Timeout: "30s",
		},
		Backend: BackendConfig{
			BaseURL:      "http://localhost:8086",
			Timeout:      "20s",
			ProbeTimeout: "6s",
			PageSize:     4,
		},
		Store: StoreConfig{
			Driver:            "sqlite",
			Path:              ".lakeguide/context.db",
			HistoryTTL:        "10m",
			DisambiguationTTL: "5m",
			FallbackTTL:       "10m",
		},
		Lexicon: LexiconConfig{
			FuzzyThreshold: 65,
		},
		Logging: LoggingConfig{
			AuditPath: ".lakeguide/unhandled.jsonl",
		},
	}
}

// Load reads configuration from path, layered over defaults. A missing file
// is not an error: defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays secret-bearing settings from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("LAKEGUIDE_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LAKEGUIDE_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LAKEGUIDE_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("LAKEGUIDE_QA_URL"); v != "" {
		c.QA.BaseURL = v
		c.QA.Enabled = true
	}
}

// Duration parses a duration string with a fallback default.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
