// Package config loads image-forensics settings from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Molcarrus/image-forensics/internal/forensics"
	"github.com/Molcarrus/image-forensics/internal/forensics/copymove"
)

// Text mask kinds.
const (
	MaskNone  = "none"
	MaskEdges = "edges"
	MaskOCR   = "ocr"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel = "IMAGE_FORENSICS_LOG_LEVEL"
	EnvWorkers  = "IMAGE_FORENSICS_WORKERS"
	EnvTextMask = "IMAGE_FORENSICS_TEXT_MASK"
	EnvLanguage = "IMAGE_FORENSICS_OCR_LANGUAGE"
)

// Config holds every tunable of the tool.
type Config struct {
	CopyMove copymove.Params `yaml:"copy_move"`

	// Workers bounds analysis parallelism; zero uses every CPU.
	Workers int `yaml:"workers"`

	// LogLevel is "info" or "debug".
	LogLevel string `yaml:"log_level"`

	// TextMask selects how text regions are excluded from copy-move
	// matching: "none", "edges" or "ocr".
	TextMask string `yaml:"text_mask"`

	// OCRLanguage is the Tesseract language used by the "ocr" mask.
	OCRLanguage string `yaml:"ocr_language"`

	// MemoryHeadroom is the fraction of available memory one analysis may use.
	MemoryHeadroom float64 `yaml:"memory_headroom"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CopyMove:       copymove.DefaultParams(),
		LogLevel:       "info",
		TextMask:       MaskNone,
		OCRLanguage:    "eng",
		MemoryHeadroom: 0.5,
	}
}

// Load returns the defaults overlaid with the file at path (if path is not
// empty) and then with environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys not present in the
// file keep their current values; unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the IMAGE_FORENSICS_* environment variables.
func (c *Config) ApplyEnv() error {
	c.LogLevel = strings.ToLower(getEnv(EnvLogLevel, c.LogLevel))
	c.TextMask = strings.ToLower(getEnv(EnvTextMask, c.TextMask))
	c.OCRLanguage = getEnv(EnvLanguage, c.OCRLanguage)

	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", forensics.ErrInvalidParameter, EnvWorkers, v)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks every field, including the copy-move parameters.
func (c *Config) Validate() error {
	if err := c.DetectorParams().Validate(); err != nil {
		return err
	}
	switch c.TextMask {
	case MaskNone, MaskEdges, MaskOCR:
	default:
		return fmt.Errorf("%w: unknown text mask %q", forensics.ErrInvalidParameter, c.TextMask)
	}
	switch c.LogLevel {
	case "info", "debug":
	default:
		return fmt.Errorf("%w: unknown log level %q", forensics.ErrInvalidParameter, c.LogLevel)
	}
	if !(c.MemoryHeadroom > 0 && c.MemoryHeadroom <= 1) {
		return fmt.Errorf("%w: memory headroom must be in (0, 1], got %v", forensics.ErrInvalidParameter, c.MemoryHeadroom)
	}
	return nil
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

// DetectorParams returns the copy-move parameters with the global worker
// count applied when the section does not set its own.
func (c *Config) DetectorParams() copymove.Params {
	p := c.CopyMove
	if p.Workers == 0 {
		p.Workers = c.Workers
	}
	return p
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
