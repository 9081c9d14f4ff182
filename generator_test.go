package tpl2pdf

// Notes:
// - Tests Generator.Build with a mocked renderer and stamper to isolate
//   orchestration from the browser. The real renderer is covered by
//   render_integration_test.go.
// - Internal test options (withRendererFactory, withStamper) inject the mocks.
// - The workspace layout assertions mirror the documented file layout:
//   out/<template>/<id>/{template.html, assets..., data.js, <output>.pdf}.

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

type mockRenderer struct {
	mu     sync.Mutex
	jobs   []renderJob
	data   []string // data.js content seen at render time
	err    error
	closed bool
	block  chan struct{} // if set, Render waits on it or ctx
}

func (m *mockRenderer) Render(ctx context.Context, job renderJob) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	data, _ := os.ReadFile(filepath.Join(filepath.Dir(job.EntryPath), "data.js"))

	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.data = append(m.data, string(data))
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return os.WriteFile(job.OutputPath, []byte("%PDF-1.4 mock"), 0o644)
}

func (m *mockRenderer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type mockStamper struct {
	pages  int
	err    error
	called bool
	in     string
}

func (m *mockStamper) Stamp(ctx context.Context, in, out string) (int, error) {
	m.called = true
	m.in = in
	if m.err != nil {
		return 0, m.err
	}
	content, err := os.ReadFile(in)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(out, append(content, []byte(" stamped")...), 0o644); err != nil {
		return 0, err
	}
	return m.pages, os.Remove(in)
}

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func withRendererFactory(fn func() renderer) Option {
	return func(c *generatorConfig) {
		c.newRenderer = fn
	}
}

func withRenderer(r renderer) Option {
	return withRendererFactory(func() renderer { return r })
}

func withStamper(s stamper) Option {
	return func(c *generatorConfig) {
		c.stamper = s
	}
}

// newFixtureRoots creates a templates root holding template "template1"
// (template.html + style.css + a sub-directory) and an empty output root.
func newFixtureRoots(t *testing.T) Config {
	t.Helper()

	templates := t.TempDir()
	dir := filepath.Join(templates, "template1")
	mustMkdir(t, filepath.Join(dir, "partials"))
	mustWrite(t, filepath.Join(dir, "template.html"), `<script src="data.js"></script><p id="name"></p>`)
	mustWrite(t, filepath.Join(dir, "style.css"), `body { color: red; }`)
	mustWrite(t, filepath.Join(dir, "partials", "skip.html"), `nested`)

	return Config{TemplatesRoot: templates, OutputRoot: t.TempDir(), ForceCreate: true}
}

func newTestGenerator(t *testing.T, cfg Config, opts ...Option) *Generator {
	t.Helper()
	g, err := NewGenerator(cfg, opts...)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// TestNewGenerator - Root Validation
// ---------------------------------------------------------------------------

func TestNewGenerator(t *testing.T) {
	t.Parallel()

	t.Run("missing templates root", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "templates")
		_, err := NewGenerator(Config{TemplatesRoot: missing, OutputRoot: t.TempDir(), ForceCreate: true})
		if !errors.Is(err, ErrPathNotFound) {
			t.Fatalf("error = %v, want ErrPathNotFound", err)
		}
		if !strings.Contains(err.Error(), missing) {
			t.Errorf("error %q should contain path %q", err, missing)
		}
	})

	t.Run("missing output root without force", func(t *testing.T) {
		t.Parallel()

		cfg := newFixtureRoots(t)
		cfg.OutputRoot = filepath.Join(t.TempDir(), "out")
		cfg.ForceCreate = false

		_, err := NewGenerator(cfg)
		if !errors.Is(err, ErrPathNotFound) {
			t.Fatalf("error = %v, want ErrPathNotFound", err)
		}
		if _, statErr := os.Stat(cfg.OutputRoot); !os.IsNotExist(statErr) {
			t.Errorf("output root should not be created, stat error = %v", statErr)
		}
	})

	t.Run("missing output root with force", func(t *testing.T) {
		t.Parallel()

		cfg := newFixtureRoots(t)
		cfg.OutputRoot = filepath.Join(t.TempDir(), "out")

		newTestGenerator(t, cfg, withRenderer(&mockRenderer{}))
		if info, err := os.Stat(cfg.OutputRoot); err != nil || !info.IsDir() {
			t.Errorf("output root should be created, stat error = %v", err)
		}
	})

	t.Run("invalid default margins", func(t *testing.T) {
		t.Parallel()

		_, err := NewGenerator(newFixtureRoots(t), WithMargins(UniformMargins(-1)))
		if !errors.Is(err, ErrInvalidMargin) {
			t.Errorf("error = %v, want ErrInvalidMargin", err)
		}
	})

	t.Run("pool size", func(t *testing.T) {
		t.Parallel()

		g := newTestGenerator(t, newFixtureRoots(t), WithPoolSize(3), withRenderer(&mockRenderer{}))
		if got := g.pool.capacity(); got != 3 {
			t.Errorf("pool capacity = %d, want 3", got)
		}
	})
}

// ---------------------------------------------------------------------------
// TestBuild - Success Paths
// ---------------------------------------------------------------------------

func TestBuild_Success(t *testing.T) {
	t.Parallel()

	cfg := newFixtureRoots(t)
	r := &mockRenderer{}
	g := newTestGenerator(t, cfg, withRenderer(r))

	res, err := g.Build(context.Background(), Request{
		Template: "template1",
		Output:   "report",
		Payload:  map[string]any{"id": 1, "name": "Joao"},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := uuid.Parse(res.WorkspaceID); err != nil {
		t.Errorf("WorkspaceID %q is not a UUID: %v", res.WorkspaceID, err)
	}

	absOut, _ := filepath.Abs(cfg.OutputRoot)
	wantDir := filepath.Join(absOut, "template1", res.WorkspaceID)
	if res.WorkspaceDir != wantDir {
		t.Errorf("WorkspaceDir = %q, want %q", res.WorkspaceDir, wantDir)
	}
	if want := filepath.Join(wantDir, "report.pdf"); res.Path != want {
		t.Errorf("Path = %q, want %q", res.Path, want)
	}

	content, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if !strings.HasPrefix(string(content), "%PDF-") {
		t.Errorf("result does not look like a PDF: %q", content)
	}

	// Flat copy: top-level files only.
	for _, name := range []string{"template.html", "style.css"} {
		if _, err := os.Stat(filepath.Join(wantDir, name)); err != nil {
			t.Errorf("asset %s not copied: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(wantDir, "partials")); !os.IsNotExist(err) {
		t.Errorf("sub-directories should not be copied, stat error = %v", err)
	}

	if len(r.jobs) != 1 {
		t.Fatalf("renderer called %d times, want 1", len(r.jobs))
	}
	job := r.jobs[0]
	if job.EntryPath != filepath.Join(wantDir, "template.html") {
		t.Errorf("EntryPath = %q", job.EntryPath)
	}
	if job.Margins != DefaultMargins() {
		t.Errorf("Margins = %+v, want defaults", job.Margins)
	}
	if want := `var data = {"id":1,"name":"Joao"}`; r.data[0] != want {
		t.Errorf("data.js = %q, want %q", r.data[0], want)
	}
}

func TestBuild_PayloadFraming(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []Option
		payload any
		want    string
	}{
		{
			name:    "pre-serialized string verbatim",
			payload: `[{"id":1,"name":"Joao"}]`,
			want:    `var data = [{"id":1,"name":"Joao"}]`,
		},
		{
			name:    "struct keys camel cased",
			payload: struct{ DataNasc string }{"31/05/1960"},
			want:    `var data = {"dataNasc":"31/05/1960"}`,
		},
		{
			name:    "module framing",
			opts:    []Option{WithFraming(FramingModule)},
			payload: `[]`,
			want:    `export default []`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &mockRenderer{}
			g := newTestGenerator(t, newFixtureRoots(t), append(tt.opts, withRenderer(r))...)

			if _, err := g.Build(context.Background(), Request{Template: "template1", Output: "out", Payload: tt.payload}); err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if r.data[0] != tt.want {
				t.Errorf("data.js = %q, want %q", r.data[0], tt.want)
			}
		})
	}
}

func TestBuild_RequestMarginsOverride(t *testing.T) {
	t.Parallel()

	r := &mockRenderer{}
	g := newTestGenerator(t, newFixtureRoots(t), WithMargins(UniformMargins(1)), withRenderer(r))

	custom := Margins{Top: 0, Right: 0.25, Bottom: 2, Left: 3}
	if _, err := g.Build(context.Background(), Request{Template: "template1", Output: "a", Margins: &custom}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := g.Build(context.Background(), Request{Template: "template1", Output: "b"}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if r.jobs[0].Margins != custom {
		t.Errorf("request margins = %+v, want %+v", r.jobs[0].Margins, custom)
	}
	if r.jobs[1].Margins != UniformMargins(1) {
		t.Errorf("generator margins = %+v, want %+v", r.jobs[1].Margins, UniformMargins(1))
	}
}

func TestBuild_PageNumbers(t *testing.T) {
	t.Parallel()

	r := &mockRenderer{}
	s := &mockStamper{pages: 3}
	g := newTestGenerator(t, newFixtureRoots(t), WithPageNumbers(true), withRenderer(r), withStamper(s))

	res, err := g.Build(context.Background(), Request{Template: "template1", Output: "report", Payload: "{}"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !s.called {
		t.Fatal("stamper not called")
	}
	if s.in == res.Path {
		t.Error("renderer should write an intermediate, not the final path")
	}
	if _, err := os.Stat(s.in); !os.IsNotExist(err) {
		t.Errorf("intermediate %s should be removed, stat error = %v", s.in, err)
	}
	if res.Pages != 3 {
		t.Errorf("Pages = %d, want 3", res.Pages)
	}
	content, _ := os.ReadFile(res.Path)
	if !strings.HasSuffix(string(content), "stamped") {
		t.Errorf("final PDF not produced by stamper: %q", content)
	}
}

func TestBuild_PageNumbersDisabledSkipsStamper(t *testing.T) {
	t.Parallel()

	s := &mockStamper{}
	g := newTestGenerator(t, newFixtureRoots(t), withRenderer(&mockRenderer{}), withStamper(s))

	if _, err := g.Build(context.Background(), Request{Template: "template1", Output: "report"}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if s.called {
		t.Error("stamper should not run without WithPageNumbers(true)")
	}
}

// ---------------------------------------------------------------------------
// TestBuild - Error Paths
// ---------------------------------------------------------------------------

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     Request
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown template",
			req:     Request{Template: "missing", Output: "report"},
			wantErr: ErrTemplateNotFound,
			wantMsg: filepath.Join("missing", "template.html"),
		},
		{
			name:    "template traversal",
			req:     Request{Template: "..", Output: "report"},
			wantErr: ErrInvalidName,
		},
		{
			name:    "output with separator",
			req:     Request{Template: "template1", Output: "../report"},
			wantErr: ErrInvalidName,
		},
		{
			name:    "empty output",
			req:     Request{Template: "template1"},
			wantErr: ErrInvalidName,
		},
		{
			name:    "invalid request margins",
			req:     Request{Template: "template1", Output: "r", Margins: &Margins{Top: 4}},
			wantErr: ErrInvalidMargin,
		},
		{
			name:    "unencodable payload",
			req:     Request{Template: "template1", Output: "r", Payload: map[string]any{"c": make(chan int)}},
			wantErr: ErrSerialization,
			wantMsg: "map[string]interface {} payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &mockRenderer{}
			g := newTestGenerator(t, newFixtureRoots(t), withRenderer(r))

			res, err := g.Build(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
			}
			if res != nil {
				t.Errorf("Build() result = %+v, want nil", res)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err, tt.wantMsg)
			}
			if len(r.jobs) != 0 {
				t.Error("renderer should not run after an earlier stage failed")
			}
		})
	}
}

func TestBuild_TemplateNotFoundIsPathNotFound(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, newFixtureRoots(t), withRenderer(&mockRenderer{}))

	_, err := g.Build(context.Background(), Request{Template: "missing", Output: "report"})
	if !errors.Is(err, ErrPathNotFound) {
		t.Errorf("error = %v, want ErrPathNotFound", err)
	}
}

func TestBuild_TemplateOutputDirRequiredWithoutForce(t *testing.T) {
	t.Parallel()

	cfg := newFixtureRoots(t)
	cfg.ForceCreate = false
	g := newTestGenerator(t, cfg, withRenderer(&mockRenderer{}))

	_, err := g.Build(context.Background(), Request{Template: "template1", Output: "report"})
	if !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("error = %v, want ErrPathNotFound", err)
	}

	mustMkdir(t, filepath.Join(cfg.OutputRoot, "template1"))
	if _, err := g.Build(context.Background(), Request{Template: "template1", Output: "report"}); err != nil {
		t.Errorf("Build() with existing template output dir error = %v", err)
	}
}

func TestBuild_RenderErrorKeepsWorkspace(t *testing.T) {
	t.Parallel()

	cfg := newFixtureRoots(t)
	renderErr := errors.New("navigation timeout")
	r := &mockRenderer{err: errors.Join(ErrPageLoad, renderErr)}
	g := newTestGenerator(t, cfg, withRenderer(r))

	_, err := g.Build(context.Background(), Request{Template: "template1", Output: "report", Payload: "[]"})
	if !errors.Is(err, ErrRender) {
		t.Fatalf("error = %v, want ErrRender", err)
	}

	// The workspace is left populated for diagnosis.
	entries, _ := os.ReadDir(filepath.Join(cfg.OutputRoot, "template1"))
	if len(entries) != 1 {
		t.Fatalf("expected 1 workspace, got %d", len(entries))
	}
	ws := filepath.Join(cfg.OutputRoot, "template1", entries[0].Name())
	if _, err := os.Stat(filepath.Join(ws, "data.js")); err != nil {
		t.Errorf("data.js should remain in failed workspace: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, "report.pdf")); !os.IsNotExist(err) {
		t.Errorf("no PDF should exist after a failed render, stat error = %v", err)
	}
}

func TestBuild_BrowserFailureDiscardsRenderer(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		created []*mockRenderer
	)
	factory := func() renderer {
		mu.Lock()
		defer mu.Unlock()
		r := &mockRenderer{}
		if len(created) == 0 {
			r.err = ErrBrowserConnect
		}
		created = append(created, r)
		return r
	}
	g := newTestGenerator(t, newFixtureRoots(t), WithPoolSize(1), withRendererFactory(factory))

	if _, err := g.Build(context.Background(), Request{Template: "template1", Output: "a"}); !errors.Is(err, ErrBrowserConnect) {
		t.Fatalf("first Build() error = %v, want ErrBrowserConnect", err)
	}
	if _, err := g.Build(context.Background(), Request{Template: "template1", Output: "b"}); err != nil {
		t.Fatalf("second Build() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(created) != 2 {
		t.Fatalf("renderers created = %d, want 2", len(created))
	}
	if !created[0].closed {
		t.Error("failed renderer should be closed")
	}
}

func TestBuild_StampErrorPreservesIntermediate(t *testing.T) {
	t.Parallel()

	s := &mockStamper{err: ErrStamp}
	g := newTestGenerator(t, newFixtureRoots(t), WithPageNumbers(true), withRenderer(&mockRenderer{}), withStamper(s))

	_, err := g.Build(context.Background(), Request{Template: "template1", Output: "report"})
	if !errors.Is(err, ErrStamp) {
		t.Fatalf("error = %v, want ErrStamp", err)
	}
	if _, statErr := os.Stat(s.in); statErr != nil {
		t.Errorf("intermediate should be preserved: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(s.in), "report.pdf")); !os.IsNotExist(statErr) {
		t.Errorf("final path should not exist, stat error = %v", statErr)
	}
}

func TestBuild_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, newFixtureRoots(t), withRenderer(panicRenderer{}))

	_, err := g.Build(context.Background(), Request{Template: "template1", Output: "report"})
	if err == nil || !strings.Contains(err.Error(), "internal error") {
		t.Errorf("error = %v, want internal error", err)
	}
}

type panicRenderer struct{}

func (panicRenderer) Render(context.Context, renderJob) error { panic("boom") }
func (panicRenderer) Close() error                           { return nil }

// ---------------------------------------------------------------------------
// TestBuild - Concurrency and Cancellation
// ---------------------------------------------------------------------------

func TestBuild_ConcurrentBuildsAreIsolated(t *testing.T) {
	t.Parallel()

	const n = 50
	r := &mockRenderer{}
	g := newTestGenerator(t, newFixtureRoots(t), WithPoolSize(4), withRendererFactory(func() renderer { return r }))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		dirs    = make(map[string]int)
		errList []error
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.Build(context.Background(), Request{
				Template: "template1",
				Output:   "report",
				Payload:  map[string]int{"i": i},
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errList = append(errList, err)
				return
			}
			dirs[res.WorkspaceDir] = i
		}()
	}
	wg.Wait()

	if len(errList) > 0 {
		t.Fatalf("Build() errors: %v", errList)
	}
	if len(dirs) != n {
		t.Fatalf("distinct workspaces = %d, want %d", len(dirs), n)
	}

	// Each workspace holds exactly its own payload.
	for dir, i := range dirs {
		got, err := os.ReadFile(filepath.Join(dir, "data.js"))
		if err != nil {
			t.Fatal(err)
		}
		if want := `var data = {"i":` + strconv.Itoa(i) + `}`; string(got) != want {
			t.Errorf("%s: data.js = %q, want %q", dir, got, want)
		}
	}
}

func TestBuild_CanceledWhilePoolSaturated(t *testing.T) {
	t.Parallel()

	blocker := &mockRenderer{block: make(chan struct{})}
	g := newTestGenerator(t, newFixtureRoots(t), WithPoolSize(1), withRenderer(blocker))

	done := make(chan error, 1)
	go func() {
		_, err := g.Build(context.Background(), Request{Template: "template1", Output: "first"})
		done <- err
	}()

	// Wait until the first build holds the only renderer.
	deadline := time.Now().Add(5 * time.Second)
	for len(g.pool.idle) != 0 || poolCreated(g.pool) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first build never acquired the renderer")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Build(ctx, Request{Template: "template1", Output: "second"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("queued Build() error = %v, want context.DeadlineExceeded", err)
	}
	if !errors.Is(err, ErrRender) {
		t.Errorf("queued Build() error = %v, want ErrRender", err)
	}

	close(blocker.block)
	if err := <-done; err != nil {
		t.Errorf("first Build() error = %v", err)
	}
}

func TestBuild_AfterClose(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(newFixtureRoots(t), withRenderer(&mockRenderer{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := g.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	_, err = g.Build(context.Background(), Request{Template: "template1", Output: "report"})
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Build() after Close error = %v, want ErrPoolClosed", err)
	}
}

func poolCreated(p *rendererPool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// ---------------------------------------------------------------------------
// TestWorkspaceRetention
// ---------------------------------------------------------------------------

func TestRemoveWorkspace(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, newFixtureRoots(t), withRenderer(&mockRenderer{}))

	res, err := g.Build(context.Background(), Request{Template: "template1", Output: "report"})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.RemoveWorkspace(res); err != nil {
		t.Fatalf("RemoveWorkspace() error = %v", err)
	}
	if _, err := os.Stat(res.WorkspaceDir); !os.IsNotExist(err) {
		t.Errorf("workspace should be removed, stat error = %v", err)
	}
	if err := g.RemoveWorkspace(nil); err != nil {
		t.Errorf("RemoveWorkspace(nil) error = %v", err)
	}
}

func TestRemoveWorkspace_RefusesForeignDirectory(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, newFixtureRoots(t), withRenderer(&mockRenderer{}))
	foreign := t.TempDir()

	if err := g.RemoveWorkspace(&Result{WorkspaceDir: foreign}); err == nil {
		t.Error("RemoveWorkspace() outside the output root should fail")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("foreign directory should survive: %v", err)
	}
}

func TestSweepWorkspaces(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, newFixtureRoots(t), withRenderer(&mockRenderer{}))

	old, err := g.Build(context.Background(), Request{Template: "template1", Output: "old"})
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := g.Build(context.Background(), Request{Template: "template1", Output: "fresh"})
	if err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old.WorkspaceDir, past, past); err != nil {
		t.Fatal(err)
	}

	n, err := g.SweepWorkspaces(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("SweepWorkspaces() error = %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if _, err := os.Stat(old.WorkspaceDir); !os.IsNotExist(err) {
		t.Error("old workspace should be swept")
	}
	if _, err := os.Stat(fresh.WorkspaceDir); err != nil {
		t.Errorf("fresh workspace should survive: %v", err)
	}
}
