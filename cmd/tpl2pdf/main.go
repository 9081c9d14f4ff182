package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	os.Exit(runMain(os.Args, DefaultEnv()))
}

// runMain dispatches to a command and returns the process exit code.
func runMain(args []string, env *Environment) int {
	if len(args) < 2 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	switch args[1] {
	case "build":
		return runBuildCmd(args[2:], env)
	case "sweep":
		return runSweepCmd(args[2:], env)
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "go-tpl2pdf %s\n", Version)
		return ExitSuccess
	case "help", "-h", "--help":
		return runHelp(args[2:], env)
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[1])
		printUsage(env.Stderr)
		return ExitUsage
	}
}

// setMaxProcs configures GOMAXPROCS from the container CPU quota.
// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
// in which case Go runtime defaults apply and the program continues safely.
func setMaxProcs(verbose bool, w io.Writer) {
	if verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			fmt.Fprintf(w, format+"\n", args...)
		}))
		return
	}
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
}
