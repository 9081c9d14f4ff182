package tpl2pdf

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alnah/go-tpl2pdf/internal/paths"
	"github.com/alnah/go-tpl2pdf/internal/payload"
)

// Margin bounds in inches.
const (
	MinMargin     = 0.0
	MaxMargin     = 3.0
	DefaultMargin = 0.4
)

// Framing prefixes for the generated data script.
const (
	// FramingGlobal binds the payload to the global "data" (default).
	FramingGlobal = payload.FramingGlobal

	// FramingModule exposes the payload as an ES module default export.
	FramingModule = payload.FramingModule
)

// Config holds the root locations shared by every build of a Generator.
type Config struct {
	TemplatesRoot string // one sub-directory per template (required, never created)
	OutputRoot    string // workspaces are created under OutputRoot/<template>/
	ForceCreate   bool   // create missing output directories instead of failing
}

// Request describes a single build.
type Request struct {
	Template string // template directory name under TemplatesRoot
	Output   string // output file name, without the .pdf extension

	// Payload is written to data.js. A string, []byte or json.RawMessage is
	// used verbatim; any other value is serialized to JSON with camelCase keys.
	Payload any

	// Margins overrides the generator margins for this build (optional).
	Margins *Margins
}

// Result describes a successful build.
type Result struct {
	Path         string // final PDF: OutputRoot/<template>/<id>/<output>.pdf
	WorkspaceID  string
	WorkspaceDir string
	Pages        int // page count, known only when page numbers are stamped
}

// Margins configures PDF page margins in inches.
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// DefaultMargins returns DefaultMargin on every side.
func DefaultMargins() Margins {
	return UniformMargins(DefaultMargin)
}

// UniformMargins returns m on every side.
func UniformMargins(m float64) Margins {
	return Margins{Top: m, Right: m, Bottom: m, Left: m}
}

// Validate checks that every side is within [MinMargin, MaxMargin].
// Returns nil if m is nil (nil means use the generator margins).
func (m *Margins) Validate() error {
	if m == nil {
		return nil
	}
	sides := []struct {
		name  string
		value float64
	}{
		{"top", m.Top},
		{"right", m.Right},
		{"bottom", m.Bottom},
		{"left", m.Left},
	}
	for _, s := range sides {
		// Written as a negated range check so NaN is rejected.
		if !(s.value >= MinMargin && s.value <= MaxMargin) {
			return fmt.Errorf("%w: %s %.2f (must be between %.2f and %.2f)", ErrInvalidMargin, s.name, s.value, MinMargin, MaxMargin)
		}
	}
	return nil
}

// Validate checks the request names and margins.
func (r Request) Validate() error {
	if err := validateName("template", r.Template); err != nil {
		return err
	}
	if err := validateName("output", r.Output); err != nil {
		return err
	}
	return r.Margins.Validate()
}

// validateName rejects names that are not a single path element.
func validateName(kind, name string) error {
	if err := paths.ValidateName(name); err != nil {
		return fmt.Errorf("%s name: %w", kind, translatePathError(err))
	}
	return nil
}

// Option configures a Generator.
type Option func(*generatorConfig)

// generatorConfig holds internal configuration for Generator.
type generatorConfig struct {
	timeout     time.Duration
	poolSize    int
	margins     Margins
	pageNumbers bool
	framing     string
	logger      *slog.Logger
	registerer  prometheus.Registerer

	// Injected by tests.
	newRenderer func() renderer
	stamper     stamper
}

// defaultTimeout is used when no timeout is specified.
const defaultTimeout = 30 * time.Second

// WithTimeout bounds navigation and export of each render.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("tpl2pdf: WithTimeout duration must be positive")
	}
	return func(c *generatorConfig) {
		c.timeout = d
	}
}

// WithPoolSize sets how many browsers may render at once.
// Zero or negative falls back to ResolvePoolSize(0).
func WithPoolSize(n int) Option {
	return func(c *generatorConfig) {
		c.poolSize = n
	}
}

// WithMargins sets the default page margins. Validated by NewGenerator.
func WithMargins(m Margins) Option {
	return func(c *generatorConfig) {
		c.margins = m
	}
}

// WithPageNumbers enables the page-number stamping pass.
func WithPageNumbers(enabled bool) Option {
	return func(c *generatorConfig) {
		c.pageNumbers = enabled
	}
}

// WithFraming sets the prefix written before the serialized payload
// (FramingGlobal or FramingModule, or any custom assignment).
func WithFraming(prefix string) Option {
	return func(c *generatorConfig) {
		c.framing = prefix
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *generatorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics registers the generator's collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *generatorConfig) {
		c.registerer = reg
	}
}
