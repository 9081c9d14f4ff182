package tpl2pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/alnah/go-tpl2pdf/internal/fileutil"
	"github.com/alnah/go-tpl2pdf/internal/logging"
	"github.com/alnah/go-tpl2pdf/internal/paths"
	"github.com/alnah/go-tpl2pdf/internal/payload"
	"github.com/alnah/go-tpl2pdf/internal/workspace"
)

// Generator builds PDFs from templates. Create with NewGenerator, call Build
// from any number of goroutines, and Close when done.
// A Generator holds no per-request state; its configuration is fixed at
// construction.
type Generator struct {
	cfg        generatorConfig
	resolver   *paths.Resolver
	workspaces *workspace.Manager
	pool       *rendererPool
	stamper    stamper
	metrics    *metrics
	logger     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewGenerator validates cfg eagerly and returns a ready Generator.
// A missing templates root always fails; a missing output root fails unless
// cfg.ForceCreate is set, in which case it is created.
func NewGenerator(cfg Config, opts ...Option) (*Generator, error) {
	c := generatorConfig{
		timeout: defaultTimeout,
		margins: DefaultMargins(),
		framing: FramingGlobal,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&c)
	}

	if err := c.margins.Validate(); err != nil {
		return nil, err
	}

	resolver, err := paths.NewResolver(paths.Roots{
		Templates:   cfg.TemplatesRoot,
		Output:      cfg.OutputRoot,
		ForceCreate: cfg.ForceCreate,
	})
	if err != nil {
		return nil, translatePathError(err)
	}
	if err := resolver.ValidateRoots(); err != nil {
		return nil, translatePathError(err)
	}

	m, err := newMetrics(c.registerer)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	g := &Generator{
		cfg:        c,
		resolver:   resolver,
		workspaces: workspace.NewManager(resolver),
		metrics:    m,
		logger:     c.logger,
	}

	// Test hooks may have injected a renderer factory or stamper.
	newFn := c.newRenderer
	if newFn == nil {
		newFn = func() renderer { return newRodRenderer(c.timeout, c.logger) }
	}
	g.pool = newRendererPool(ResolvePoolSize(c.poolSize), newFn, m)

	if c.pageNumbers {
		g.stamper = c.stamper
		if g.stamper == nil {
			g.stamper = newPDFCPUStamper()
		}
	}

	g.logger.Debug("generator ready",
		"templates_root", resolver.Roots().Templates,
		"output_root", resolver.Roots().Output,
		"pool_size", g.pool.capacity(),
		"page_numbers", c.pageNumbers,
	)
	return g, nil
}

// Build renders req.Template with req.Payload into
// OutputRoot/<template>/<workspace-id>/<output>.pdf and returns its location.
//
// Stages run in order and the first failure aborts the build. A failed build
// leaves its workspace in place for diagnosis. Build recovers from internal
// panics to prevent crashes from propagating to callers.
func (g *Generator) Build(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("internal error: %v", r)
		}
		g.finish(req, start, res, err)
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	margins := g.cfg.margins
	if req.Margins != nil {
		margins = *req.Margins
	}

	g.logger.Info("build started", "template", req.Template, "output", req.Output)

	var tpl *paths.Template
	if err := g.timed(stageResolve, func() error {
		var err error
		tpl, err = g.resolver.ResolveTemplate(req.Template)
		return translateTemplateError(err)
	}); err != nil {
		return nil, err
	}

	var ws *workspace.Workspace
	if err := g.timed(stageWorkspace, func() error {
		if _, err := g.resolver.EnsureTemplateOutputDir(tpl.Name); err != nil {
			return translatePathError(err)
		}
		var err error
		ws, err = g.workspaces.Create(tpl.Name)
		return translatePathError(err)
	}); err != nil {
		return nil, err
	}
	logger := g.logger.With("template", tpl.Name, "workspace", ws.ID)

	if err := g.timed(stageAssets, func() error {
		copied, err := fileutil.CopyFlat(ctx, tpl.AssetDir, ws.Dir)
		if err != nil {
			return translateCopyError(err)
		}
		logger.Debug("assets copied", "files", len(copied))
		return nil
	}); err != nil {
		return nil, err
	}

	if err := g.timed(stageData, func() error {
		if _, err := payload.WriteDataFile(ws.Dir, req.Payload, g.cfg.framing); err != nil {
			return translatePayloadError(err, req.Payload)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	final := filepath.Join(ws.Dir, req.Output+".pdf")
	target := final
	if g.stamper != nil {
		target = filepath.Join(ws.Dir, req.Output+".unstamped.pdf")
	}

	if err := g.timed(stageRender, func() error {
		return g.render(ctx, renderJob{
			EntryPath:  filepath.Join(ws.Dir, paths.EntryDocument),
			OutputPath: target,
			Margins:    margins,
		})
	}); err != nil {
		return nil, err
	}

	res = &Result{Path: final, WorkspaceID: ws.ID, WorkspaceDir: ws.Dir}
	if g.stamper == nil {
		return res, nil
	}

	if err := g.timed(stageStamp, func() error {
		pages, err := g.stamper.Stamp(ctx, target, final)
		if err != nil {
			return err
		}
		res.Pages = pages
		return nil
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// render runs job on a pooled renderer. The renderer is returned to the pool
// on every exit path; one whose browser failed is discarded instead.
func (g *Generator) render(ctx context.Context, job renderJob) error {
	r, err := g.pool.acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquiring renderer for %s: %w", ErrRender, job.EntryPath, err)
	}

	err = r.Render(ctx, job)
	if errors.Is(err, ErrBrowserConnect) || errors.Is(err, ErrPageCreate) {
		if cerr := g.pool.discard(r); cerr != nil {
			g.logger.Warn("closing failed renderer", "error", cerr)
		}
		return err
	}
	g.pool.release(r)
	return err
}

// timed runs fn as the named stage, recording its duration.
func (g *Generator) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	g.metrics.observeStage(stage, d)
	if err != nil {
		g.logger.Debug("build stage failed", "stage", stage, "duration", d, "error", err)
		return err
	}
	g.logger.Debug("build stage done", "stage", stage, "duration", d)
	return nil
}

// finish records the build outcome.
func (g *Generator) finish(req Request, start time.Time, res *Result, err error) {
	d := time.Since(start)
	label := req.Template
	switch {
	case errors.Is(err, ErrInvalidName):
		label = templateLabelInvalid
	case errors.Is(err, ErrTemplateNotFound):
		label = templateLabelUnknown
	}

	switch {
	case err == nil:
		g.metrics.observeBuild(label, outcomeSuccess)
		g.logger.Info("build finished", "template", req.Template, "workspace", res.WorkspaceID, "path", res.Path, "duration", d)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		g.metrics.observeBuild(label, outcomeCancel)
		g.logger.Warn("build canceled", "template", req.Template, "duration", d, "error", err)
	default:
		g.metrics.observeBuild(label, outcomeFailure)
		g.logger.Error("build failed", "template", req.Template, "duration", d, "error", err)
	}
}

// RemoveWorkspace deletes the workspace of a finished build, PDF included.
func (g *Generator) RemoveWorkspace(res *Result) error {
	if res == nil {
		return nil
	}
	return g.workspaces.Remove(&workspace.Workspace{ID: res.WorkspaceID, Dir: res.WorkspaceDir})
}

// SweepWorkspaces removes workspaces older than olderThan across all templates
// and returns how many were removed. Builds never call it implicitly.
func (g *Generator) SweepWorkspaces(ctx context.Context, olderThan time.Duration) (int, error) {
	n, err := g.workspaces.Sweep(ctx, olderThan)
	if n > 0 {
		g.logger.Info("workspaces swept", "removed", n, "older_than", olderThan)
	}
	return n, err
}

// Close releases browser resources. Safe to call more than once.
func (g *Generator) Close() error {
	g.closeOnce.Do(func() {
		g.closeErr = g.pool.close()
	})
	return g.closeErr
}
