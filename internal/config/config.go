// Package config loads eaftools settings from a YAML file.
//
// Settings come from three layers, later ones winning: built-in defaults,
// the config file (--config or $EAF_CONFIG) and command-line flags.
package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/eaftools/core/errors"
	"github.com/FocuswithJustin/eaftools/core/redact"
	"github.com/FocuswithJustin/eaftools/internal/display"
	"github.com/FocuswithJustin/eaftools/internal/logging"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "EAF_CONFIG"

// Config is the complete configuration.
type Config struct {
	GDPR    GDPRConfig    `yaml:"gdpr"`
	Display DisplayConfig `yaml:"display"`
	Logging LoggingConfig `yaml:"logging"`
}

// GDPRConfig configures the redaction tool.
type GDPRConfig struct {
	Marker      string `yaml:"marker"`
	Prefix      string `yaml:"prefix"`
	SummaryTier string `yaml:"summary_tier"`
	SummaryType string `yaml:"summary_type"`
	Anchor      string `yaml:"anchor"`
	KeyDB       string `yaml:"key_db"`
	Manifest    string `yaml:"manifest"`
	XZ          bool   `yaml:"xz"`
}

// DisplayConfig configures annotation output.
type DisplayConfig struct {
	Color string `yaml:"color"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GetDefaults returns the built-in configuration.
func GetDefaults() *Config {
	return &Config{
		GDPR: GDPRConfig{
			Marker:      redact.DefaultMarker,
			Prefix:      redact.DefaultPrefix,
			SummaryTier: redact.DefaultSummaryTier,
			SummaryType: redact.DefaultSummaryType,
			Anchor:      string(redact.AnchorCenter),
		},
		Display: DisplayConfig{
			Color: string(display.ColorAuto),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at path over the defaults. With an empty
// path, $EAF_CONFIG is used; with neither set, the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := GetDefaults()
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read config", path, err)
	}
	if err := decode(data, cfg); err != nil {
		return nil, &errors.ParseError{Format: "YAML", Path: path, Message: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// decode applies YAML data over cfg, rejecting unknown keys.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the settings that have a fixed set of values.
func (c *Config) Validate() error {
	if c.GDPR.Marker == "" {
		return errors.NewValidation("gdpr.marker", "must not be empty")
	}
	if _, err := redact.ParseAnchor(c.GDPR.Anchor); err != nil {
		return err
	}
	if _, err := display.ParseColorMode(c.Display.Color); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return &errors.ValidationError{Field: "logging.level", Value: c.Logging.Level, Message: err.Error()}
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return &errors.ValidationError{Field: "logging.format", Value: c.Logging.Format, Message: err.Error()}
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
