package tpl2pdf

import (
	"errors"
	"fmt"

	"github.com/alnah/go-tpl2pdf/internal/fileutil"
	"github.com/alnah/go-tpl2pdf/internal/paths"
	"github.com/alnah/go-tpl2pdf/internal/payload"
	"github.com/alnah/go-tpl2pdf/internal/workspace"
)

// Sentinel errors for library operations.
var (
	ErrPathNotFound      = errors.New("path not found")
	ErrTemplateNotFound  = fmt.Errorf("%w: template", ErrPathNotFound)
	ErrDirectoryCreation = errors.New("directory creation failed")
	ErrAssetCopy         = errors.New("asset copy failed")
	ErrSerialization     = errors.New("payload serialization failed")
	ErrRender            = errors.New("render failed")
	ErrStamp             = errors.New("page stamping failed")

	// Render detail errors. All of them match ErrRender.
	ErrBrowserConnect = fmt.Errorf("%w: failed to connect to browser", ErrRender)
	ErrPageCreate     = fmt.Errorf("%w: failed to create browser page", ErrRender)
	ErrPageLoad       = fmt.Errorf("%w: failed to load page", ErrRender)
	ErrPDFGeneration  = fmt.Errorf("%w: PDF generation failed", ErrRender)

	// Request validation errors.
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidMargin = errors.New("invalid margin")

	// ErrPoolClosed is returned when acquiring from a closed renderer pool.
	ErrPoolClosed = errors.New("renderer pool closed")
)

// translatePathError maps internal path and workspace errors to public sentinels,
// keeping the original chain for errors.Is and the message for diagnostics.
func translatePathError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, paths.ErrInvalidName), errors.Is(err, paths.ErrPathTraversal):
		return fmt.Errorf("%w: %w", ErrInvalidName, err)
	case errors.Is(err, paths.ErrCreateDir), errors.Is(err, workspace.ErrCreate),
		errors.Is(err, workspace.ErrIDGeneration):
		return fmt.Errorf("%w: %w", ErrDirectoryCreation, err)
	case errors.Is(err, paths.ErrNotFound), errors.Is(err, paths.ErrNotDirectory):
		return fmt.Errorf("%w: %w", ErrPathNotFound, err)
	}
	return err
}

// translateTemplateError is translatePathError for template resolution,
// where a missing entry document is a missing template.
func translateTemplateError(err error) error {
	if errors.Is(err, paths.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrTemplateNotFound, err)
	}
	return translatePathError(err)
}

// translateCopyError wraps an asset copy failure.
func translateCopyError(err error) error {
	if errors.Is(err, fileutil.ErrNotDirectory) {
		return fmt.Errorf("%w: %w", ErrPathNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrAssetCopy, err)
}

// translatePayloadError wraps a data file failure with the payload summary.
func translatePayloadError(err error, v any) error {
	return fmt.Errorf("%w: %s: %w", ErrSerialization, payload.Summary(v), err)
}
