package tpl2pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-tpl2pdf/internal/fileutil"
	"github.com/alnah/go-tpl2pdf/internal/logging"
	"github.com/alnah/go-tpl2pdf/internal/process"
)

// renderer abstracts template rendering to enable testing without a browser.
// A renderer serves one job at a time; RendererPool hands it out exclusively.
type renderer interface {
	Render(ctx context.Context, job renderJob) error
	Close() error
}

// Compile-time interface check.
var _ renderer = (*rodRenderer)(nil)

// renderJob is one entry document to export as a PDF.
type renderJob struct {
	EntryPath  string // absolute path of template.html inside the workspace
	OutputPath string // where the PDF is written
	Margins    Margins
}

// A4 page dimensions in inches.
const (
	paperWidthInches  = 8.27
	paperHeightInches = 11.69
)

// networkIdle is how long the page must go without network requests before
// it is considered fully loaded.
const networkIdle = 500 * time.Millisecond

// idleIgnoredTypes are the only requests the network-idle wait ignores.
// Both stay open for the page's lifetime. Images, fonts and media added after
// the load event are waited for.
var idleIgnoredTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeWebSocket,
	proto.NetworkResourceTypeEventSource,
}

const outputPerm = 0o644

var pdfMagic = []byte("%PDF-")

// renderStage tracks how far a render got, for error reporting.
type renderStage int

const (
	renderIdle renderStage = iota
	renderLaunching
	renderPageOpen
	renderContentLoaded
	renderExported
	renderClosed
	renderFailed
)

func (s renderStage) String() string {
	switch s {
	case renderIdle:
		return "idle"
	case renderLaunching:
		return "launching"
	case renderPageOpen:
		return "page-open"
	case renderContentLoaded:
		return "content-loaded"
	case renderExported:
		return "exported"
	case renderClosed:
		return "closed"
	case renderFailed:
		return "failed"
	}
	return fmt.Sprintf("renderStage(%d)", int(s))
}

// rodRenderer implements renderer using go-rod.
// Rod automatically downloads Chromium on first run if not found.
// The browser is launched lazily and reused across renders until Close.
type rodRenderer struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	idle     time.Duration
	logger   *slog.Logger
}

// newRodRenderer creates a rodRenderer with the given per-render timeout.
func newRodRenderer(timeout time.Duration, logger *slog.Logger) *rodRenderer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &rodRenderer{timeout: timeout, idle: networkIdle, logger: logger}
}

// ensureBrowser lazily launches and connects to the browser.
func (r *rodRenderer) ensureBrowser() error {
	if r.browser != nil {
		return nil
	}

	// Entry documents read sibling files (data.js, images) over file://, which
	// Chrome blocks by default. Only browsers owned by the pool get these flags.
	l := launcher.New().
		Headless(true).
		Set("allow-file-access-from-files").
		Set("disable-web-security")

	// Use pre-installed browser if specified (Docker/containerized environments)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" || os.Getenv("ROD_NO_SANDBOX") == "1" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		l.Kill()
		return err
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		killLauncher(l)
		return err
	}

	r.browser = b
	r.launcher = l
	r.logger.Debug("browser launched", "pid", l.PID())
	return nil
}

// Close shuts the browser down and kills its process tree.
func (r *rodRenderer) Close() error {
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	killLauncher(r.launcher)
	r.browser = nil
	r.launcher = nil
	return err
}

// killLauncher kills the browser process group, then lets the launcher reap
// the process and remove its user data directory.
func killLauncher(l *launcher.Launcher) {
	if l == nil {
		return
	}
	if pid := l.PID(); pid > 0 {
		// Best-effort; launcher.Kill below is the fallback.
		_ = process.KillTree(pid)
	}
	l.Kill()
	l.Cleanup()
}

// Render opens job.EntryPath in a fresh page, waits for the network to settle
// and writes the exported PDF to job.OutputPath. The page is always closed;
// the browser is kept for the next render.
func (r *rodRenderer) Render(ctx context.Context, job renderJob) error {
	stage := renderIdle
	fail := func(sentinel, cause error) error {
		at := stage
		stage = renderFailed
		r.logger.Debug("render stage", "stage", stage, "at", at, "entry", job.EntryPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s (stage %s): %w", sentinel, job.EntryPath, at, ctxErr)
		}
		return fmt.Errorf("%w: %s (stage %s): %v", sentinel, job.EntryPath, at, cause)
	}
	advance := func(next renderStage) {
		stage = next
		r.logger.Debug("render stage", "stage", stage, "entry", job.EntryPath)
	}

	if err := ctx.Err(); err != nil {
		return fail(ErrRender, err)
	}

	advance(renderLaunching)
	if err := r.ensureBrowser(); err != nil {
		return fail(ErrBrowserConnect, err)
	}

	page, err := r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fail(ErrPageCreate, err)
	}
	defer func() {
		_ = page.Close()
		if stage != renderFailed {
			advance(renderClosed)
		}
	}()
	advance(renderPageOpen)

	if err := (proto.PageSetBypassCSP{Enabled: true}).Call(page); err != nil {
		return fail(ErrPageCreate, err)
	}

	p := page.Context(ctx).Timeout(r.timeout)
	defer p.CancelTimeout()

	waitIdle := p.WaitRequestIdle(r.idle, nil, nil, idleIgnoredTypes)
	if err := p.Navigate(fileURL(job.EntryPath)); err != nil {
		return fail(ErrPageLoad, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fail(ErrPageLoad, err)
	}
	waitIdle()
	if err := p.GetContext().Err(); err != nil {
		return fail(ErrPageLoad, fmt.Errorf("network did not settle within %s: %w", r.timeout, err))
	}
	advance(renderContentLoaded)

	reader, err := p.PDF(buildPDFOptions(job.Margins))
	if err != nil {
		return fail(ErrPDFGeneration, err)
	}
	pdf, err := io.ReadAll(reader)
	if err != nil {
		return fail(ErrPDFGeneration, fmt.Errorf("reading PDF stream: %w", err))
	}
	if !bytes.HasPrefix(pdf, pdfMagic) {
		return fail(ErrPDFGeneration, errors.New("browser output is not a PDF"))
	}
	if err := fileutil.WriteFileAtomic(job.OutputPath, pdf, outputPerm); err != nil {
		return fail(ErrPDFGeneration, err)
	}
	advance(renderExported)
	return nil
}

// buildPDFOptions returns A4 export options with backgrounds enabled.
func buildPDFOptions(m Margins) *proto.PagePrintToPDF {
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(paperWidthInches),
		PaperHeight:     floatPtr(paperHeightInches),
		MarginTop:       floatPtr(m.Top),
		MarginRight:     floatPtr(m.Right),
		MarginBottom:    floatPtr(m.Bottom),
		MarginLeft:      floatPtr(m.Left),
		PrintBackground: true,
	}
}

// fileURL converts an absolute filesystem path to a file:// URL.
func fileURL(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p // windows drive letter
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
