package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Sanitize holds the tunable thresholds for the detection ruleset.
type Sanitize struct {
	// StrictMinDigits is the minimum digit count for strict-level
	// numeric-sequence detection.
	StrictMinDigits int `yaml:"strict_min_digits"`
	// GateLongDigits is the digit-run length the admission gate
	// treats as identity residue.
	GateLongDigits int `yaml:"gate_long_digits"`
	// NameLabels are role labels whose trailing line content is masked
	// at the paranoid level ("Sökande Anna Berg" style).
	NameLabels []string `yaml:"name_labels"`
}

// Policy is a named compilation policy. Mode "external" is the
// stricter of the two: it demands strict-level sanitization and a
// tighter verbatim-quote budget.
type Policy struct {
	Version           string   `yaml:"version"`
	Mode              string   `yaml:"mode"`
	SanitizeMinLevel  string   `yaml:"sanitize_min_level"`
	QuoteLimitWords   int      `yaml:"quote_limit_words"`
	RiskBudget        int      `yaml:"risk_budget"`
	ForbiddenElements []string `yaml:"forbidden_elements"`
}

// Generation configures the completion backend for report compilation.
// These fields are read once at startup: swapping the backend under
// in-flight compiles is not supported, so a change here needs a restart.
// Sanitize thresholds and policies hot-reload.
type Generation struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
	TestMode       bool   `yaml:"test_mode"`
}

// Config is the full YAML-backed runtime configuration.
type Config struct {
	Sanitize   Sanitize          `yaml:"sanitize"`
	Policies   map[string]Policy `yaml:"policies"`
	Generation Generation        `yaml:"generation"`
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	return &Config{
		Sanitize: Sanitize{
			StrictMinDigits: 5,
			GateLongDigits:  9,
			NameLabels:      []string{"Sökande", "Motpart", "Ombud", "Applicant", "Counterpart", "Counsel"},
		},
		Policies: map[string]Policy{
			"internal": {
				Version:          "1",
				Mode:             "internal",
				SanitizeMinLevel: "normal",
				QuoteLimitWords:  12,
				RiskBudget:       3,
			},
			"external": {
				Version:           "1",
				Mode:              "external",
				SanitizeMinLevel:  "strict",
				QuoteLimitWords:   8,
				RiskBudget:        1,
				ForbiddenElements: []string{"names", "case_numbers"},
			},
		},
		Generation: Generation{
			URL:            "http://localhost:8080",
			TimeoutSeconds: 120,
			MaxAttempts:    2,
		},
	}
}

// Load reads configuration from a YAML file and returns it together
// with the ruleset hash: SHA-256 over the raw file bytes. A missing
// file yields defaults and the hash of empty input. Invalid YAML or
// invalid values return an error; the caller keeps its previous
// configuration in that case.
func Load(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return Default(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("read config: %w", err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Defaults first; the file overrides only what it names.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, hash, nil
}

// Validate rejects configurations the pipeline cannot run safely with.
func (c *Config) Validate() error {
	if c.Sanitize.StrictMinDigits < 2 {
		return fmt.Errorf("sanitize.strict_min_digits must be at least 2, got %d", c.Sanitize.StrictMinDigits)
	}
	if c.Sanitize.GateLongDigits < c.Sanitize.StrictMinDigits {
		return fmt.Errorf("sanitize.gate_long_digits (%d) must not be below strict_min_digits (%d)",
			c.Sanitize.GateLongDigits, c.Sanitize.StrictMinDigits)
	}
	for name, p := range c.Policies {
		if p.Mode != "internal" && p.Mode != "external" {
			return fmt.Errorf("policy %q: unknown mode %q", name, p.Mode)
		}
		switch p.SanitizeMinLevel {
		case "normal", "strict", "paranoid":
		default:
			return fmt.Errorf("policy %q: unknown sanitize_min_level %q", name, p.SanitizeMinLevel)
		}
		if p.Mode == "external" && p.SanitizeMinLevel == "normal" {
			return fmt.Errorf("policy %q: external mode requires sanitize_min_level strict or paranoid", name)
		}
		if p.QuoteLimitWords < 1 {
			return fmt.Errorf("policy %q: quote_limit_words must be positive, got %d", name, p.QuoteLimitWords)
		}
	}
	if c.Generation.TimeoutSeconds < 1 {
		return fmt.Errorf("generation.timeout_seconds must be positive, got %d", c.Generation.TimeoutSeconds)
	}
	if c.Generation.MaxAttempts < 1 {
		return fmt.Errorf("generation.max_attempts must be positive, got %d", c.Generation.MaxAttempts)
	}
	return nil
}
