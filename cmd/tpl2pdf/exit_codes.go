package main

import (
	"errors"
	"os"

	tpl2pdf "github.com/alnah/go-tpl2pdf"
	"github.com/alnah/go-tpl2pdf/internal/config"
)

// Exit codes for tpl2pdf CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Successful build
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, payload, or validation
	ExitIO      = 3 // Missing template or root, permission denied, copy failure
	ExitBrowser = 4 // Browser/Chrome errors
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser errors (exit 4)
	if errors.Is(err, tpl2pdf.ErrRender) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, tpl2pdf.ErrPathNotFound) ||
		errors.Is(err, tpl2pdf.ErrDirectoryCreation) ||
		errors.Is(err, tpl2pdf.ErrAssetCopy) ||
		errors.Is(err, ErrReadData) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, tpl2pdf.ErrInvalidName) ||
		errors.Is(err, tpl2pdf.ErrInvalidMargin) ||
		errors.Is(err, tpl2pdf.ErrSerialization) ||
		errors.Is(err, ErrNoTemplate) ||
		errors.Is(err, ErrNoRoots) ||
		errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrInvalidAge) ||
		errors.Is(err, ErrUnexpectedArgs) {
		return ExitUsage
	}

	return ExitGeneral
}
