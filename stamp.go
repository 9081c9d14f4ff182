package tpl2pdf

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// stamper overlays page numbers on a rendered PDF.
type stamper interface {
	// Stamp writes the stamped copy of in to out and removes in.
	// On failure in is left untouched and out is never created.
	Stamp(ctx context.Context, in, out string) (pages int, err error)
}

// Compile-time interface check.
var _ stamper = (*pdfcpuStamper)(nil)

// Page number stamp: the current page number, bottom right, right aligned,
// 28pt from the right edge and 20pt from the bottom edge.
const (
	stampText        = "%p"
	stampDescription = "fontname:Helvetica, points:9, position:br, offset:-28 20, " +
		"scalefactor:1 abs, rotation:0, aligntext:r, fillcolor:#000000, opacity:1"
)

var disableConfigDir sync.Once

// pdfcpuStamper implements stamper with pdfcpu text stamps.
type pdfcpuStamper struct{}

func newPDFCPUStamper() *pdfcpuStamper {
	// pdfcpu otherwise writes a config directory under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)
	return &pdfcpuStamper{}
}

// newStampConfig returns a fresh configuration per call; pdfcpu mutates it.
func newStampConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Stamp numbers every page of in. The result is written to a temporary file
// next to out and renamed into place only once it is complete.
func (s *pdfcpuStamper) Stamp(ctx context.Context, in, out string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrStamp, in, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), ".stamp-*.pdf")
	if err != nil {
		return 0, fmt.Errorf("%w: creating temp file for %s: %v", ErrStamp, out, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := api.AddTextWatermarksFile(in, tmpPath, nil, true, stampText, stampDescription, newStampConfig()); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrStamp, in, err)
	}

	pages, err := api.PageCountFile(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("%w: counting pages of %s: %v", ErrStamp, in, err)
	}

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrStamp, in, err)
	}

	if err := os.Rename(tmpPath, out); err != nil {
		return 0, fmt.Errorf("%w: %s -> %s: %v", ErrStamp, tmpPath, out, err)
	}
	committed = true

	if err := os.Remove(in); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return pages, fmt.Errorf("%w: removing intermediate %s: %v", ErrStamp, in, err)
	}
	return pages, nil
}
