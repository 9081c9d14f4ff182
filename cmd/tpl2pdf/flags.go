package main

import (
	"io"

	flag "github.com/spf13/pflag"
)

// marginUnset detects if --margin was explicitly set.
// Since 0 is a valid margin, we use an out-of-range sentinel.
const marginUnset = -1.0

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// rootFlags holds the templates and output root locations.
type rootFlags struct {
	templates string
	output    string
	force     bool
}

// dataFlags holds payload input flags.
type dataFlags struct {
	path   string // file path, "-" for stdin, empty for no payload
	raw    bool   // write the payload verbatim
	each   bool   // one build per element of a top-level JSON array
	module bool   // export the payload as an ES module
}

// buildFlags holds all flags for the build command.
type buildFlags struct {
	common      commonFlags
	roots       rootFlags
	data        dataFlags
	template    string
	name        string
	timeout     string
	workers     int
	margin      float64
	pageNumbers bool
}

// sweepFlags holds all flags for the sweep command.
type sweepFlags struct {
	common    commonFlags
	roots     rootFlags
	olderThan string
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show build stages and timing")
}

// addRootFlags adds root location flags to a FlagSet.
func addRootFlags(fs *flag.FlagSet, f *rootFlags) {
	fs.StringVar(&f.templates, "templates", "", "templates root directory")
	fs.StringVar(&f.output, "output-root", "", "output root directory")
	fs.BoolVarP(&f.force, "force", "f", false, "create missing output directories")
}

// addDataFlags adds payload flags to a FlagSet.
func addDataFlags(fs *flag.FlagSet, f *dataFlags) {
	fs.StringVarP(&f.path, "data", "d", "", "JSON payload file (\"-\" = stdin)")
	fs.BoolVar(&f.raw, "raw", false, "write the payload unchanged")
	fs.BoolVar(&f.each, "each", false, "build one PDF per element of a JSON array")
	fs.BoolVar(&f.module, "module", false, "expose the payload as an ES module default export")
}

// parseBuildFlags parses build command flags and returns positional args.
func parseBuildFlags(args []string, stderr io.Writer) (*buildFlags, []string, error) {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &buildFlags{}

	fs.StringVarP(&f.template, "template", "t", "", "template name")
	fs.StringVarP(&f.name, "name", "n", "", "output file name without .pdf (default: template name)")
	fs.StringVar(&f.timeout, "timeout", "", "render timeout (e.g., 30s, 2m)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "concurrent renders with --each (0 = auto)")
	fs.Float64Var(&f.margin, "margin", marginUnset, "page margin in inches (0-3)")
	fs.BoolVar(&f.pageNumbers, "page-numbers", false, "stamp page numbers")

	addCommonFlags(fs, &f.common)
	addRootFlags(fs, &f.roots)
	addDataFlags(fs, &f.data)

	fs.Usage = func() { printBuildUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}

// parseSweepFlags parses sweep command flags and returns positional args.
func parseSweepFlags(args []string, stderr io.Writer) (*sweepFlags, []string, error) {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &sweepFlags{}

	fs.StringVar(&f.olderThan, "older-than", "24h", "remove workspaces last modified before this age")

	addCommonFlags(fs, &f.common)
	addRootFlags(fs, &f.roots)

	fs.Usage = func() { printSweepUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}
