package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/alnah/go-tpl2pdf/internal/config"
)

// envPrefix namespaces every environment variable the CLI reads.
const envPrefix = "TPL2PDF_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath string // TPL2PDF_CONFIG: config file path
	Templates  string // TPL2PDF_TEMPLATES: templates root
	Output     string // TPL2PDF_OUTPUT: output root
	Timeout    string // TPL2PDF_TIMEOUT: render timeout, e.g. 45s
	Workers    int    // TPL2PDF_WORKERS: concurrent renders
	LogLevel   string // TPL2PDF_LOG_LEVEL: debug, info, warn, error
}

// knownEnvVars lists valid TPL2PDF_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"TPL2PDF_CONFIG":    true,
	"TPL2PDF_TEMPLATES": true,
	"TPL2PDF_OUTPUT":    true,
	"TPL2PDF_TIMEOUT":   true,
	"TPL2PDF_WORKERS":   true,
	"TPL2PDF_LOG_LEVEL": true,
}

// loadEnvConfig reads configuration from environment variables.
// Malformed numbers are ignored; durations are checked later by config validation.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("TPL2PDF_CONFIG"),
		Templates:  os.Getenv("TPL2PDF_TEMPLATES"),
		Output:     os.Getenv("TPL2PDF_OUTPUT"),
		Timeout:    os.Getenv("TPL2PDF_TIMEOUT"),
		LogLevel:   os.Getenv("TPL2PDF_LOG_LEVEL"),
	}

	if workers := os.Getenv("TPL2PDF_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}

	return cfg
}

// warnUnknownEnvVars logs warnings for unrecognized TPL2PDF_* variables,
// in name order.
func warnUnknownEnvVars(w io.Writer) {
	var unknown []string
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, envPrefix) {
			continue
		}
		name := strings.SplitN(env, "=", 2)[0]
		if !knownEnvVars[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
	}
}

// applyEnvConfig applies environment variable values to config.
// Only sets values if the env var is set AND the config value is empty/zero.
// This ensures: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeFlags)
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Templates != "" && cfg.Roots.Templates == "" {
		cfg.Roots.Templates = env.Templates
	}
	if env.Output != "" && cfg.Roots.Output == "" {
		cfg.Roots.Output = env.Output
	}
	if env.Timeout != "" && cfg.Render.Timeout == "" {
		cfg.Render.Timeout = env.Timeout
	}
	if env.Workers > 0 && cfg.Render.Workers == 0 {
		cfg.Render.Workers = env.Workers
	}
	if env.LogLevel != "" && cfg.Logging.Level == "" {
		cfg.Logging.Level = env.LogLevel
	}
}
