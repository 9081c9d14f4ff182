// Package tpl2pdf renders HTML/JS report templates with a data payload into
// PDF documents using headless Chrome.
//
// # Quick Start
//
// Create a generator over a templates root and an output root, build, and
// close when done:
//
//	gen, err := tpl2pdf.NewGenerator(tpl2pdf.Config{
//	    TemplatesRoot: "templates",
//	    OutputRoot:    "out",
//	    ForceCreate:   true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gen.Close()
//
//	res, err := gen.Build(ctx, tpl2pdf.Request{
//	    Template: "invoice",
//	    Output:   "report",
//	    Payload:  []Client{{ID: 1, Name: "Joao"}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Path) // out/invoice/<workspace-id>/report.pdf
//
// # Layout
//
// Each template is a directory holding an entry document and its assets:
//
//	templates/
//	└── invoice/
//	    ├── template.html
//	    ├── style.css
//	    └── logo.png
//
// Every build gets its own workspace directory named by a random UUID, so
// concurrent builds of the same template never share files:
//
//	out/
//	└── invoice/
//	    └── 6f1c1a0e-54c4-4a55-9e3e-6f1a4c9d2b10/
//	        ├── template.html   (copied)
//	        ├── style.css       (copied)
//	        ├── data.js         var data = {...}
//	        └── report.pdf
//
// # Build Pipeline
//
//  1. Template resolution (templates/<name>/template.html must exist)
//  2. Workspace creation under out/<name>/<id>
//  3. Flat asset copy and data.js generation
//  4. Rendering via a pooled headless Chrome (go-rod), A4 with backgrounds,
//     after the page's network activity has settled
//  5. Optional page-number stamping (pdfcpu)
//
// # Data Injection
//
// A string, []byte or json.RawMessage payload is written verbatim after the
// framing prefix. Any other value is encoded to JSON with lowerCamelCase keys;
// values that would form a reference cycle are dropped. Templates include the
// data with a plain script tag:
//
//	<script src="data.js"></script>
//	<script>document.title = data[0].name</script>
//
// Use WithFraming(FramingModule) for templates that import the data as an ES
// module default export.
//
// # Configuration
//
// Use functional options to customize the generator:
//
//	gen, err := tpl2pdf.NewGenerator(cfg,
//	    tpl2pdf.WithTimeout(time.Minute),
//	    tpl2pdf.WithPoolSize(4),
//	    tpl2pdf.WithMargins(tpl2pdf.UniformMargins(0.5)),
//	    tpl2pdf.WithPageNumbers(true),
//	    tpl2pdf.WithLogger(slog.Default()),
//	    tpl2pdf.WithMetrics(prometheus.DefaultRegisterer),
//	)
//
// # Workspace Retention
//
// Workspaces are kept after a build, failed or not. Remove them explicitly
// with RemoveWorkspace or by age with SweepWorkspaces.
//
// # Error Handling
//
// Errors wrap the sentinels in errors.go and carry the offending path or a
// payload summary:
//
//	res, err := gen.Build(ctx, req)
//	switch {
//	case errors.Is(err, tpl2pdf.ErrTemplateNotFound):
//	    // unknown template
//	case errors.Is(err, tpl2pdf.ErrRender):
//	    // browser failure or timeout
//	}
package tpl2pdf
