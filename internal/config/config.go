package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/alnah/go-tpl2pdf/internal/fileutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// MaxInputSize limits config files to prevent memory exhaustion (1MB).
var MaxInputSize = 1 << 20

// Field length limits.
const (
	MaxPathLength     = 4096
	MaxDurationLength = 30
	MaxLevelLength    = 10
)

// Margin bounds in inches, mirrored from the library.
const (
	minMargin = 0.0
	maxMargin = 3.0
)

// Config holds the CLI configuration for document generation.
type Config struct {
	Roots   RootsConfig   `yaml:"roots"`
	Render  RenderConfig  `yaml:"render"`
	Data    DataConfig    `yaml:"data"`
	Logging LoggingConfig `yaml:"logging"`
}

// RootsConfig defines the templates and output directories.
type RootsConfig struct {
	Templates   string `yaml:"templates"`
	Output      string `yaml:"output"`
	ForceCreate bool   `yaml:"forceCreate"` // create missing output directories
}

// RenderConfig defines browser and page options.
type RenderConfig struct {
	Timeout     string       `yaml:"timeout"` // Go duration, e.g. "30s" (empty = library default)
	Workers     int          `yaml:"workers"` // 0 = auto
	PageNumbers bool         `yaml:"pageNumbers"`
	Margin      *float64     `yaml:"margin"` // uniform margin in inches
	Margins     MarginConfig `yaml:"margins"`
}

// MarginConfig overrides individual sides. Unset sides fall back to Margin.
type MarginConfig struct {
	Top    *float64 `yaml:"top"`
	Right  *float64 `yaml:"right"`
	Bottom *float64 `yaml:"bottom"`
	Left   *float64 `yaml:"left"`
}

// DataConfig defines how the payload file is framed.
type DataConfig struct {
	Framing string `yaml:"framing"` // "global" (default) or "module"
}

// LoggingConfig defines log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Validate checks field lengths and value ranges.
// Called automatically by LoadConfig, but available for callers
// who construct Config manually.
func (c *Config) Validate() error {
	if err := validateFieldLength("roots.templates", c.Roots.Templates, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("roots.output", c.Roots.Output, MaxPathLength); err != nil {
		return err
	}

	if err := validateFieldLength("render.timeout", c.Render.Timeout, MaxDurationLength); err != nil {
		return err
	}
	if c.Render.Timeout != "" {
		d, err := time.ParseDuration(c.Render.Timeout)
		if err != nil {
			return fmt.Errorf("%w: render.timeout: %q is not a duration", ErrInvalidValue, c.Render.Timeout)
		}
		if d <= 0 {
			return fmt.Errorf("%w: render.timeout: must be positive, got %s", ErrInvalidValue, d)
		}
	}
	if c.Render.Workers < 0 {
		return fmt.Errorf("%w: render.workers: must be >= 0, got %d", ErrInvalidValue, c.Render.Workers)
	}

	margins := []struct {
		name  string
		value *float64
	}{
		{"render.margin", c.Render.Margin},
		{"render.margins.top", c.Render.Margins.Top},
		{"render.margins.right", c.Render.Margins.Right},
		{"render.margins.bottom", c.Render.Margins.Bottom},
		{"render.margins.left", c.Render.Margins.Left},
	}
	for _, m := range margins {
		if err := validateMargin(m.name, m.value); err != nil {
			return err
		}
	}

	switch strings.ToLower(c.Data.Framing) {
	case "", "global", "module":
	default:
		return fmt.Errorf("%w: data.framing: %q (must be global or module)", ErrInvalidValue, c.Data.Framing)
	}

	if err := validateFieldLength("logging.level", c.Logging.Level, MaxLevelLength); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: logging.level: %q (must be debug, info, warn, or error)", ErrInvalidValue, c.Logging.Level)
	}

	return nil
}

// TimeoutDuration returns the parsed render timeout, or zero when unset.
// Assumes Validate has passed.
func (c *Config) TimeoutDuration() time.Duration {
	if c.Render.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Render.Timeout)
	return d
}

func validateMargin(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || *v < minMargin || *v > maxMargin {
		return fmt.Errorf("%w: %s: must be between %.1f and %.1f inches, got %v", ErrInvalidValue, name, minMargin, maxMargin, *v)
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns a configuration with every option left to the library defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML config data. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrConfigParse)
	}
	if len(data) > MaxInputSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigParse, len(data), MaxInputSize)
	}

	var cfg Config
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UserConfigDirName is the directory searched under os.UserConfigDir.
const UserConfigDirName = "go-tpl2pdf"

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-tpl2pdf/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, UserConfigDirName, name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
