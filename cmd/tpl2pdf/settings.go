package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tpl2pdf "github.com/alnah/go-tpl2pdf"
	"github.com/alnah/go-tpl2pdf/internal/config"
	"github.com/alnah/go-tpl2pdf/internal/fileutil"
	"github.com/alnah/go-tpl2pdf/internal/logging"
	"github.com/alnah/go-tpl2pdf/internal/paths"
)

// ErrNoRoots indicates the templates or output root was not configured.
var ErrNoRoots = errors.New("templates and output roots are required")

// loadSettings resolves configuration with precedence
// CLI flags > env vars > config file > defaults.
// Command specific flags are merged by the caller before validation.
func loadSettings(common commonFlags, roots rootFlags) (*config.Config, error) {
	env := loadEnvConfig()

	cfg := config.DefaultConfig()
	name := common.config
	if name == "" {
		name = env.ConfigPath
	}
	if name != "" {
		loaded, err := config.LoadConfig(name)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	applyEnvConfig(env, cfg)
	mergeRootFlags(roots, cfg)
	return cfg, nil
}

// mergeRootFlags applies root flags over cfg.
func mergeRootFlags(f rootFlags, cfg *config.Config) {
	if f.templates != "" {
		cfg.Roots.Templates = f.templates
	}
	if f.output != "" {
		cfg.Roots.Output = f.output
	}
	if f.force {
		cfg.Roots.ForceCreate = true
	}
}

// requireRoots checks both roots are set.
func requireRoots(cfg *config.Config) error {
	var missing []string
	if cfg.Roots.Templates == "" {
		missing = append(missing, "--templates")
	}
	if cfg.Roots.Output == "" {
		missing = append(missing, "--output-root")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s, TPL2PDF_* variables, or a config file", ErrNoRoots, strings.Join(missing, " and "))
	}
	return nil
}

// newLogger builds the stderr logger. --verbose and --quiet override the
// configured level.
func newLogger(cfg *config.Config, common commonFlags, w io.Writer) *slog.Logger {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.Level == "" {
		level = slog.LevelWarn
	}
	switch {
	case common.verbose:
		level = slog.LevelDebug
	case common.quiet:
		level = slog.LevelError
	}
	return logging.New(w, level)
}

// generatorConfig maps cfg onto the library's root configuration.
func generatorConfig(cfg *config.Config) tpl2pdf.Config {
	return tpl2pdf.Config{
		TemplatesRoot: cfg.Roots.Templates,
		OutputRoot:    cfg.Roots.Output,
		ForceCreate:   cfg.Roots.ForceCreate,
	}
}

// generatorOptions maps cfg onto generator options.
func generatorOptions(cfg *config.Config, logger *slog.Logger) []tpl2pdf.Option {
	opts := []tpl2pdf.Option{
		tpl2pdf.WithPoolSize(tpl2pdf.ResolvePoolSize(cfg.Render.Workers)),
		tpl2pdf.WithMargins(marginsFrom(cfg)),
		tpl2pdf.WithPageNumbers(cfg.Render.PageNumbers),
		tpl2pdf.WithLogger(logger),
	}
	if d := cfg.TimeoutDuration(); d > 0 {
		opts = append(opts, tpl2pdf.WithTimeout(d))
	}
	if strings.EqualFold(cfg.Data.Framing, "module") {
		opts = append(opts, tpl2pdf.WithFraming(tpl2pdf.FramingModule))
	}
	return opts
}

// marginsFrom resolves the uniform margin and per-side overrides.
func marginsFrom(cfg *config.Config) tpl2pdf.Margins {
	base := tpl2pdf.DefaultMargin
	if cfg.Render.Margin != nil {
		base = *cfg.Render.Margin
	}
	m := tpl2pdf.UniformMargins(base)

	sides := cfg.Render.Margins
	if sides.Top != nil {
		m.Top = *sides.Top
	}
	if sides.Right != nil {
		m.Right = *sides.Right
	}
	if sides.Bottom != nil {
		m.Bottom = *sides.Bottom
	}
	if sides.Left != nil {
		m.Left = *sides.Left
	}
	return m
}

// listTemplates returns the names of directories under root that hold an
// entry document.
func listTemplates(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && fileutil.FileExists(filepath.Join(root, e.Name(), paths.EntryDocument)) {
			names = append(names, e.Name())
		}
	}
	return names
}
