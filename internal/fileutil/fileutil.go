// Package fileutil provides file and path utility functions.
package fileutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Sentinel errors for file utility operations.
var (
	ErrNotDirectory = errors.New("not a directory")
	ErrCopy         = errors.New("copy failed")
)

// copyConcurrency bounds parallel file copies within one CopyFlat call.
const copyConcurrency = 4

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// DirExists returns true if the path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsFilePath returns true if the string looks like a file path rather than a name.
// A string containing path separators (/, \) is treated as a path.
//
// Examples:
//   - "production" -> false (name)
//   - "./tpl2pdf.yaml" -> true (relative path)
//   - "/etc/tpl2pdf/prod.yaml" -> true (absolute)
//   - "C:\config\prod.yaml" -> true (Windows)
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// CopyFile copies src to dst, truncating dst if it already exists.
// The destination keeps the source permission bits.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src) // #nosec G304 -- caller-resolved template path
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrCopy, src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrCopy, src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()) // #nosec G304 -- workspace path
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrCopy, dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: closing %s: %w", ErrCopy, dst, closeErr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: %s -> %s: %w", ErrCopy, src, dst, err)
	}
	return nil
}

// CopyFlat copies every regular file directly inside srcDir into dstDir.
// Subdirectories are skipped. Files are copied concurrently; the first
// failure cancels the remaining copies and is returned. Files already copied
// are left in place.
// Returns the names of the files copied, in directory order.
func CopyFlat(ctx context.Context, srcDir, dstDir string) ([]string, error) {
	if !DirExists(dstDir) {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dstDir)
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrCopy, srcDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(copyConcurrency)
	for _, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return CopyFile(filepath.Join(srcDir, name), filepath.Join(dstDir, name))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place, so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}
