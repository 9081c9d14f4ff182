package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tpl2pdf <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  build      Render a template with a JSON payload to PDF")
	fmt.Fprintln(w, "  sweep      Remove old build workspaces")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'tpl2pdf help <command>' for details on a specific command.")
}

// printBuildUsage prints usage for the build command.
func printBuildUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tpl2pdf build <template> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render <templates>/<template>/template.html with a JSON payload and write")
	fmt.Fprintln(w, "the PDF into a fresh workspace under <output-root>/<template>/<id>/.")
	fmt.Fprintln(w, "The PDF path is printed on stdout.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Locations:")
	fmt.Fprintln(w, "      --templates <dir>     Templates root")
	fmt.Fprintln(w, "      --output-root <dir>   Output root")
	fmt.Fprintln(w, "  -f, --force               Create missing output directories")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Build:")
	fmt.Fprintln(w, "  -t, --template <name>     Template name (or first argument)")
	fmt.Fprintln(w, "  -n, --name <s>            Output file name without .pdf")
	fmt.Fprintln(w, "      --timeout <d>         Render timeout (e.g., 30s, 2m)")
	fmt.Fprintln(w, "  -w, --workers <n>         Concurrent renders with --each (0 = auto)")
	fmt.Fprintln(w, "      --margin <f>          Page margin in inches (0-3)")
	fmt.Fprintln(w, "      --page-numbers        Stamp page numbers")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Data:")
	fmt.Fprintln(w, "  -d, --data <path>         JSON payload file (\"-\" = stdin)")
	fmt.Fprintln(w, "      --raw                 Write the payload unchanged")
	fmt.Fprintln(w, "      --each                One PDF per element of a JSON array")
	fmt.Fprintln(w, "      --module              Expose the payload as an ES module")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show build stages and timing")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  TPL2PDF_CONFIG, TPL2PDF_TEMPLATES, TPL2PDF_OUTPUT, TPL2PDF_TIMEOUT,")
	fmt.Fprintln(w, "  TPL2PDF_WORKERS, TPL2PDF_LOG_LEVEL, ROD_BROWSER_BIN, ROD_NO_SANDBOX")
}

// printSweepUsage prints usage for the sweep command.
func printSweepUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tpl2pdf sweep [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Remove workspaces under the output root older than --older-than.")
	fmt.Fprintln(w, "The number of removed workspaces is printed on stdout.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --older-than <d>      Minimum workspace age (default 24h)")
	fmt.Fprintln(w, "      --templates <dir>     Templates root")
	fmt.Fprintln(w, "      --output-root <dir>   Output root")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show debug logs")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "build":
		printBuildUsage(env.Stdout)
	case "sweep":
		printSweepUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: tpl2pdf version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: tpl2pdf help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
