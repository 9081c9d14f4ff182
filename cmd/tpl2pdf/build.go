package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	tpl2pdf "github.com/alnah/go-tpl2pdf"
	"github.com/alnah/go-tpl2pdf/internal/config"
	"github.com/alnah/go-tpl2pdf/internal/fileutil"
	"github.com/alnah/go-tpl2pdf/internal/hints"
)

// Sentinel errors for CLI operations.
var (
	ErrNoTemplate         = errors.New("no template specified")
	ErrUnexpectedArgs     = errors.New("unexpected arguments")
	ErrReadData           = errors.New("failed to read data")
	ErrInvalidData        = errors.New("invalid JSON data")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// stdinName is the --data value that reads the payload from stdin.
const stdinName = "-"

// buildPlan is a validated build command, ready to run.
type buildPlan struct {
	cfg      *config.Config
	template string
	name     string
	each     bool
	payloads []any
}

// hintContext carries what hintFor needs to pick a hint.
type hintContext struct {
	cfg        *config.Config
	configName string
	raw        bool
}

// runBuildCmd runs the build command and returns the exit code.
func runBuildCmd(args []string, env *Environment) int {
	flags, positional, err := parseBuildFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, err)
		return ExitUsage
	}

	if !flags.common.quiet {
		warnUnknownEnvVars(env.Stderr)
	}

	hc := hintContext{configName: flags.common.config, raw: flags.data.raw}
	plan, err := planBuild(positional, flags, env.Stdin)
	if err != nil {
		return report(env.Stderr, err, hc)
	}
	hc.cfg = plan.cfg

	setMaxProcs(flags.common.verbose, env.Stderr)
	logger := newLogger(plan.cfg, flags.common, env.Stderr)

	ctx, stop := notifyContext(context.Background())
	defer stop()

	built, err := executeBuild(ctx, plan, logger)
	for _, p := range built {
		fmt.Fprintln(env.Stdout, p)
	}
	if err != nil {
		return report(env.Stderr, err, hc)
	}
	return ExitSuccess
}

// planBuild resolves settings, reads the payload, and validates everything
// that can be checked before a browser is involved.
func planBuild(positional []string, flags *buildFlags, stdin io.Reader) (*buildPlan, error) {
	if flags.workers < 0 {
		return nil, fmt.Errorf("%w: %d (must be >= 0)", ErrInvalidWorkerCount, flags.workers)
	}

	template, err := resolveTemplateName(positional, flags.template)
	if err != nil {
		return nil, err
	}

	cfg, err := loadSettings(flags.common, flags.roots)
	if err != nil {
		return nil, err
	}
	mergeBuildFlags(flags, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := requireRoots(cfg); err != nil {
		return nil, err
	}

	data, source, err := readData(flags.data.path, stdin)
	if err != nil {
		return nil, err
	}
	payloads, err := decodePayloads(data, source, flags.data)
	if err != nil {
		return nil, err
	}

	name := flags.name
	if name == "" {
		name = template
	}

	return &buildPlan{
		cfg:      cfg,
		template: template,
		name:     name,
		each:     flags.data.each,
		payloads: payloads,
	}, nil
}

// resolveTemplateName picks the template from the first argument or --template.
func resolveTemplateName(positional []string, flagValue string) (string, error) {
	switch {
	case len(positional) > 1:
		return "", fmt.Errorf("%w: %v", ErrUnexpectedArgs, positional[1:])
	case len(positional) == 1 && flagValue != "" && positional[0] != flagValue:
		return "", fmt.Errorf("%w: template given as %q and --template %q", ErrUnexpectedArgs, positional[0], flagValue)
	case len(positional) == 1:
		return positional[0], nil
	case flagValue != "":
		return flagValue, nil
	default:
		return "", ErrNoTemplate
	}
}

// mergeBuildFlags applies build flags over cfg (CLI wins).
func mergeBuildFlags(flags *buildFlags, cfg *config.Config) {
	if flags.timeout != "" {
		cfg.Render.Timeout = flags.timeout
	}
	if flags.workers > 0 {
		cfg.Render.Workers = flags.workers
	}
	if flags.margin != marginUnset {
		m := flags.margin
		cfg.Render.Margin = &m
		cfg.Render.Margins = config.MarginConfig{}
	}
	if flags.pageNumbers {
		cfg.Render.PageNumbers = true
	}
	if flags.data.module {
		cfg.Data.Framing = "module"
	}
}

// readData reads the payload from path, or stdin for "-".
// An empty path means no payload.
func readData(path string, stdin io.Reader) ([]byte, string, error) {
	switch path {
	case "":
		return nil, "", nil
	case stdinName:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, "stdin", fmt.Errorf("%w: stdin: %w", ErrReadData, err)
		}
		return data, "stdin", nil
	default:
		data, err := os.ReadFile(path) // #nosec G304 -- data path is user-provided
		if err != nil {
			return nil, path, fmt.Errorf("%w: %s: %w", ErrReadData, path, err)
		}
		return data, path, nil
	}
}

// decodePayloads turns the raw input into one payload per build.
//
// Raw payloads are written unchanged: the whole input as a string, or with
// --each each array element as json.RawMessage. Otherwise the input is
// decoded so keys are normalised by the library serializer.
func decodePayloads(data []byte, source string, f dataFlags) ([]any, error) {
	if data == nil {
		if f.each {
			return nil, fmt.Errorf("%w: --each requires --data", ErrInvalidData)
		}
		return []any{nil}, nil
	}

	if !f.each {
		if f.raw {
			return []any{string(data)}, nil
		}
		v, err := decodeJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidData, source, err)
		}
		return []any{v}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: --each expects a JSON array: %v", ErrInvalidData, source, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s: --each array is empty", ErrInvalidData, source)
	}

	payloads := make([]any, len(items))
	for i, item := range items {
		if f.raw {
			payloads[i] = item
			continue
		}
		v, err := decodeJSON(item)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidData, source, i, err)
		}
		payloads[i] = v
	}
	return payloads, nil
}

// decodeJSON decodes one JSON document. Numbers stay json.Number so integers
// beyond float64 precision reach the data script unchanged.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after the JSON document")
	}
	return v, nil
}

// itemName names the i-th of n outputs. Numbers are zero padded so the
// files sort in input order.
func itemName(base string, i, n int) string {
	width := len(strconv.Itoa(n))
	return fmt.Sprintf("%s-%0*d", base, width, i+1)
}

// executeBuild runs every planned build on one generator and returns the
// paths of the PDFs produced, in input order. With --each, the first failure
// cancels the builds still running.
func executeBuild(ctx context.Context, plan *buildPlan, logger *slog.Logger) ([]string, error) {
	gen, err := tpl2pdf.NewGenerator(generatorConfig(plan.cfg), generatorOptions(plan.cfg, logger)...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := gen.Close(); cerr != nil {
			logger.Warn("closing generator", "error", cerr)
		}
	}()

	results := make([]string, len(plan.payloads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tpl2pdf.ResolvePoolSize(plan.cfg.Render.Workers))

	for i, p := range plan.payloads {
		name := plan.name
		if plan.each {
			name = itemName(plan.name, i, len(plan.payloads))
		}
		g.Go(func() error {
			res, err := gen.Build(gctx, tpl2pdf.Request{
				Template: plan.template,
				Output:   name,
				Payload:  p,
			})
			if err != nil {
				if plan.each {
					return fmt.Errorf("item %d: %w", i+1, err)
				}
				return err
			}
			results[i] = res.Path
			return nil
		})
	}
	err = g.Wait()

	built := results[:0]
	for _, p := range results {
		if p != "" {
			built = append(built, p)
		}
	}
	return built, err
}

// report prints err with an actionable hint and returns its exit code.
func report(w io.Writer, err error, hc hintContext) int {
	fmt.Fprintf(w, "error: %v%s\n", err, hintFor(err, hc))
	return exitCodeFor(err)
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error, hc hintContext) string {
	switch {
	case errors.Is(err, tpl2pdf.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, tpl2pdf.ErrPageLoad):
		return hints.ForTimeout()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(configCandidates(hc.configName))
	case errors.Is(err, ErrInvalidData), errors.Is(err, tpl2pdf.ErrSerialization):
		return hints.ForPayload(hc.raw)
	}

	if hc.cfg == nil {
		return ""
	}
	switch {
	case errors.Is(err, tpl2pdf.ErrTemplateNotFound):
		return hints.ForTemplateNotFound(listTemplates(hc.cfg.Roots.Templates))
	case errors.Is(err, tpl2pdf.ErrDirectoryCreation):
		return hints.ForOutputDirectory(hc.cfg.Roots.ForceCreate)
	case errors.Is(err, tpl2pdf.ErrPathNotFound) && fileutil.DirExists(hc.cfg.Roots.Templates):
		return hints.ForOutputDirectory(hc.cfg.Roots.ForceCreate)
	}
	return ""
}

// configCandidates lists the files searched for a config name.
func configCandidates(name string) []string {
	if name == "" || fileutil.IsFilePath(name) {
		return nil
	}
	candidates := []string{name + ".yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, config.UserConfigDirName, name+".yaml"))
	}
	return candidates
}
