// Package config loads and validates Veriado's runtime configuration:
// page sizing, idempotency TTLs, analyzer profiles, and write-ahead
// retry policy, per spec.md §6. Structure and defaulting style follow
// the teacher's internal/config package (nested structs, yaml tags,
// one Default*Config constructor per concern).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Veriado configuration.
type Config struct {
	Search   SearchConfig   `yaml:"search"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`

	IdempotencyKeyTTL          time.Duration `yaml:"idempotency_key_ttl"`
	IdempotencyCleanupInterval time.Duration `yaml:"idempotency_cleanup_interval"`

	WriteAhead WriteAheadConfig `yaml:"write_ahead"`

	Logging LoggingConfig `yaml:"logging"`

	DatabasePath string `yaml:"database_path"`
}

// SearchConfig controls paging and score weighting.
type SearchConfig struct {
	MaxPageSize        int         `yaml:"max_page_size"`
	MaxCandidateResults int        `yaml:"max_candidate_results"`
	Score              ScoreConfig `yaml:"score"`
}

// ScoreConfig holds the BM25/trigram score blending weights
// (search.score.* in spec.md §6).
type ScoreConfig struct {
	BM25Weight    float64 `yaml:"bm25_weight"`
	TrigramWeight float64 `yaml:"trigram_weight"`
	RecencyWeight float64 `yaml:"recency_weight"`
}

// AnalyzerConfig names the default profile and lists all configured
// profiles.
type AnalyzerConfig struct {
	DefaultProfile string          `yaml:"default_profile"`
	Profiles       []ProfileConfig `yaml:"profiles"`
}

// ProfileConfig is one analyzer.profiles[*] entry.
type ProfileConfig struct {
	Name            string   `yaml:"name"`
	Lowercase       bool     `yaml:"lowercase"`
	StripDiacritics bool     `yaml:"strip_diacritics"`
	Stopwords       []string `yaml:"stopwords"`
	MinLen          int      `yaml:"min_len"`
	MaxLen          int      `yaml:"max_len"`
}

// WriteAheadConfig controls drain retry policy.
type WriteAheadConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	IterationTimeout  time.Duration `yaml:"iteration_timeout"`
	MaxParallelism    int           `yaml:"max_parallelism"`
}

// LoggingConfig mirrors internal/logging's config surface.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the defaults enumerated in spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			MaxPageSize:         200,
			MaxCandidateResults: 2000,
			Score: ScoreConfig{
				BM25Weight:    0.7,
				TrigramWeight: 0.3,
				RecencyWeight: 0.0,
			},
		},
		Analyzer: AnalyzerConfig{
			DefaultProfile: "cs",
			Profiles: []ProfileConfig{
				{
					Name:            "cs",
					Lowercase:       true,
					StripDiacritics: true,
					Stopwords:       []string{"a", "an", "the", "and", "or", "not"},
					MinLen:          1,
					MaxLen:          64,
				},
			},
		},
		IdempotencyKeyTTL:          24 * time.Hour,
		IdempotencyCleanupInterval: time.Hour,
		WriteAhead: WriteAheadConfig{
			MaxAttempts:      5,
			IterationTimeout: 5 * time.Minute,
			MaxParallelism:   4,
		},
		Logging: LoggingConfig{
			DebugMode:  false,
			Level:      "info",
			JSONFormat: true,
		},
		DatabasePath: "data/veriado.db",
	}
}

// Load reads YAML config from path, applying it on top of DefaultConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets a handful of hot config keys be overridden by
// environment variables, following the teacher's env-override test
// pattern (internal/config/env_override_test.go checked env vars take
// precedence over file config).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VERIADO_MAX_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxPageSize = n
		}
	}
	if v := os.Getenv("VERIADO_MAX_CANDIDATE_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxCandidateResults = n
		}
	}
	if v := os.Getenv("VERIADO_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("VERIADO_DEBUG"); v != "" {
		cfg.Logging.DebugMode = v == "1" || v == "true"
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Search.MaxPageSize <= 0 {
		return fmt.Errorf("search.max_page_size must be positive")
	}
	if c.Search.MaxCandidateResults < c.Search.MaxPageSize {
		return fmt.Errorf("search.max_candidate_results must be >= max_page_size")
	}
	if c.Analyzer.DefaultProfile == "" {
		return fmt.Errorf("analyzer.default_profile must be set")
	}
	found := false
	for _, p := range c.Analyzer.Profiles {
		if p.Name == c.Analyzer.DefaultProfile {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("analyzer.default_profile %q not present in analyzer.profiles", c.Analyzer.DefaultProfile)
	}
	if c.WriteAhead.MaxAttempts <= 0 {
		return fmt.Errorf("write_ahead.max_attempts must be positive")
	}
	return nil
}
