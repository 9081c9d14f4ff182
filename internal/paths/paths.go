// Package paths resolves and validates the templates and output roots and the
// per-template and per-workspace locations derived from them.
//
// Layout:
//
//	templatesRoot/<template>/template.html   entry document (+ sibling assets)
//	outputRoot/<template>/<workspace-id>/    one directory per build
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EntryDocument is the fixed filename of a template's entry document.
const EntryDocument = "template.html"

// dirPerm is used for every directory the resolver creates.
const dirPerm = 0o755

// Sentinel errors for path resolution.
var (
	// ErrNotFound indicates a required root, template or entry document is missing.
	ErrNotFound = errors.New("path not found")

	// ErrNotDirectory indicates a root exists but is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrCreateDir indicates an output directory could not be created.
	ErrCreateDir = errors.New("directory creation failed")

	// ErrInvalidName indicates a template or output name is unsafe as a path element.
	ErrInvalidName = errors.New("invalid name")

	// ErrPathTraversal indicates a resolved path escapes its root.
	ErrPathTraversal = errors.New("path traversal detected")
)

// Roots holds the two root locations and the force-create policy.
type Roots struct {
	Templates   string
	Output      string
	ForceCreate bool
}

// Template describes a resolved template directory.
type Template struct {
	Name      string
	EntryPath string // absolute path to template.html
	AssetDir  string // directory whose files are copied into each workspace
}

// Resolver validates roots and derives paths from them.
// A Resolver is immutable after NewResolver and safe for concurrent use.
type Resolver struct {
	roots Roots
}

// NewResolver returns a Resolver over absolute, cleaned copies of roots.
// It does not touch the filesystem; call ValidateRoots for that.
func NewResolver(roots Roots) (*Resolver, error) {
	if roots.Templates == "" {
		return nil, fmt.Errorf("%w: empty templates root", ErrNotFound)
	}
	if roots.Output == "" {
		return nil, fmt.Errorf("%w: empty output root", ErrNotFound)
	}

	tpl, err := filepath.Abs(roots.Templates)
	if err != nil {
		return nil, fmt.Errorf("resolving templates root %q: %w", roots.Templates, err)
	}
	out, err := filepath.Abs(roots.Output)
	if err != nil {
		return nil, fmt.Errorf("resolving output root %q: %w", roots.Output, err)
	}

	return &Resolver{roots: Roots{Templates: tpl, Output: out, ForceCreate: roots.ForceCreate}}, nil
}

// Roots returns the resolved roots.
func (r *Resolver) Roots() Roots {
	return r.roots
}

// ValidateRoots checks the templates root exists and is readable, and that the
// output root exists. With ForceCreate, a missing output root is created;
// without it, nothing is created and ErrNotFound is returned.
func (r *Resolver) ValidateRoots() error {
	if err := checkReadableDir(r.roots.Templates); err != nil {
		return fmt.Errorf("templates root: %w", err)
	}

	info, err := os.Stat(r.roots.Output)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("output root: %w: %s", ErrNotDirectory, r.roots.Output)
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return fmt.Errorf("output root: %s: %w", r.roots.Output, err)
	case !r.roots.ForceCreate:
		return fmt.Errorf("output root: %w: %s (set force-create to create it)", ErrNotFound, r.roots.Output)
	}

	if err := os.MkdirAll(r.roots.Output, dirPerm); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCreateDir, r.roots.Output, err)
	}
	return nil
}

// ResolveTemplate derives the template descriptor for name and checks that
// its entry document exists. There is no fallback search.
func (r *Resolver) ResolveTemplate(name string) (*Template, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	dir := filepath.Join(r.roots.Templates, name)
	if err := verifyContainment(r.roots.Templates, dir); err != nil {
		return nil, err
	}

	entry := filepath.Join(dir, EntryDocument)
	info, err := os.Stat(entry)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: template %q: %s", ErrNotFound, name, entry)
		}
		return nil, fmt.Errorf("template %q: %s: %w", name, entry, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: template %q: %s is not a regular file", ErrNotFound, name, entry)
	}

	return &Template{Name: name, EntryPath: entry, AssetDir: dir}, nil
}

// TemplateOutputDir returns outputRoot/<template>.
func (r *Resolver) TemplateOutputDir(template string) string {
	return filepath.Join(r.roots.Output, template)
}

// WorkspacePath returns outputRoot/<template>/<id>.
func (r *Resolver) WorkspacePath(template, id string) string {
	return filepath.Join(r.roots.Output, template, id)
}

// EnsureTemplateOutputDir makes sure outputRoot/<template> exists. It is
// created with ForceCreate and must already exist otherwise.
func (r *Resolver) EnsureTemplateOutputDir(template string) (string, error) {
	if err := ValidateName(template); err != nil {
		return "", err
	}

	dir := r.TemplateOutputDir(template)
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return dir, nil
	case err == nil:
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	case !os.IsNotExist(err):
		return "", fmt.Errorf("template output dir %s: %w", dir, err)
	case !r.roots.ForceCreate:
		return "", fmt.Errorf("%w: template output dir %s", ErrNotFound, dir)
	}

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrCreateDir, dir, err)
	}
	return dir, nil
}

// Contains reports whether path lies strictly inside the output root.
func (r *Resolver) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(abs, r.roots.Output+string(filepath.Separator))
}

// ValidateName checks that a template or output name is safe to use as a
// single path element.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// checkReadableDir verifies path is an existing, listable directory.
func checkReadableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}
	if _, err := os.ReadDir(path); err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	return nil
}

// verifyContainment ensures target, after symlink resolution, stays within root.
func verifyContainment(root, target string) error {
	realRoot := root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		realRoot = resolved
	}

	realTarget := target
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		realTarget = resolved
	} else {
		// Target may not exist yet; compare against the unresolved root too.
		realRoot = root
	}

	if !strings.HasPrefix(realTarget, realRoot+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s escapes %s", ErrPathTraversal, target, root)
	}
	return nil
}
