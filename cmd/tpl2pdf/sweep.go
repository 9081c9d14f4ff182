package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	tpl2pdf "github.com/alnah/go-tpl2pdf"
)

// ErrInvalidAge indicates a malformed --older-than value.
var ErrInvalidAge = errors.New("invalid workspace age")

// runSweepCmd removes workspaces older than --older-than and prints how many
// were removed.
func runSweepCmd(args []string, env *Environment) int {
	flags, positional, err := parseSweepFlags(args, env.Stderr)
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

	hc := hintContext{configName: flags.common.config}
	if len(positional) > 0 {
		return report(env.Stderr, fmt.Errorf("%w: %v", ErrUnexpectedArgs, positional), hc)
	}

	olderThan, err := parseAge(flags.olderThan)
	if err != nil {
		return report(env.Stderr, err, hc)
	}

	cfg, err := loadSettings(flags.common, flags.roots)
	if err == nil {
		err = cfg.Validate()
	}
	if err == nil {
		err = requireRoots(cfg)
	}
	if err != nil {
		return report(env.Stderr, err, hc)
	}
	hc.cfg = cfg

	logger := newLogger(cfg, flags.common, env.Stderr)
	gen, err := tpl2pdf.NewGenerator(generatorConfig(cfg), tpl2pdf.WithLogger(logger))
	if err != nil {
		return report(env.Stderr, err, hc)
	}
	defer func() { _ = gen.Close() }()

	ctx, stop := notifyContext(context.Background())
	defer stop()

	removed, err := gen.SweepWorkspaces(ctx, olderThan)
	fmt.Fprintln(env.Stdout, removed)
	if err != nil {
		return report(env.Stderr, err, hc)
	}
	return ExitSuccess
}

// parseAge parses a non-negative duration.
func parseAge(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAge, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidAge, d)
	}
	return d, nil
}
