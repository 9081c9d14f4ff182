// Package workspace allocates one isolated directory per build under
// outputRoot/<template>/<id> and manages its lifecycle.
//
// Identifiers are random (version 4) UUIDs read from crypto/rand, so two
// builds never share a directory without any coordination between goroutines
// or processes. Workspaces are retained until the caller removes them with
// Remove or evicts them by age with Sweep.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/alnah/go-tpl2pdf/internal/paths"
)

// dirPerm is used for workspace directories.
const dirPerm = 0o755

// Sentinel errors for workspace operations.
var (
	// ErrCreate indicates the workspace directory could not be created.
	ErrCreate = errors.New("workspace creation failed")

	// ErrOutsideRoot indicates a removal target is not under the output root.
	ErrOutsideRoot = errors.New("workspace outside output root")

	// ErrIDGeneration indicates the random source failed.
	ErrIDGeneration = errors.New("workspace id generation failed")
)

// Workspace is the isolated working directory of a single build.
type Workspace struct {
	ID        string
	Template  string
	Dir       string
	CreatedAt time.Time
}

// Manager creates and tracks workspaces below the resolver's output root.
// Safe for concurrent use.
type Manager struct {
	resolver *paths.Resolver
	newID    func() (uuid.UUID, error)
	now      func() time.Time
}

// NewManager creates a Manager over resolver's output root.
func NewManager(resolver *paths.Resolver) *Manager {
	return &Manager{
		resolver: resolver,
		newID:    uuid.NewRandom,
		now:      time.Now,
	}
}

// Create allocates a fresh workspace for template. The per-template output
// directory must already exist. An already existing workspace directory is
// accepted as success.
func (m *Manager) Create(template string) (*Workspace, error) {
	id, err := m.newID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIDGeneration, err)
	}

	dir := m.resolver.WorkspacePath(template, id.String())
	if err := os.Mkdir(dir, dirPerm); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreate, dir, err)
	}

	return &Workspace{
		ID:        id.String(),
		Template:  template,
		Dir:       dir,
		CreatedAt: m.now(),
	}, nil
}

// Exists reports whether the workspace directory is present on disk.
func (m *Manager) Exists(ws *Workspace) bool {
	if ws == nil {
		return false
	}
	info, err := os.Stat(ws.Dir)
	return err == nil && info.IsDir()
}

// Remove deletes the workspace directory and everything in it.
// Refuses any directory outside the output root.
func (m *Manager) Remove(ws *Workspace) error {
	if ws == nil {
		return nil
	}
	if !m.resolver.Contains(ws.Dir) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, ws.Dir)
	}
	if err := os.RemoveAll(ws.Dir); err != nil {
		return fmt.Errorf("removing workspace %s: %w", ws.Dir, err)
	}
	return nil
}

// Sweep removes workspace directories last modified before now-olderThan.
// Only directories named like workspace ids, two levels under the output
// root, are considered. Returns the number of workspaces removed.
func (m *Manager) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	root := m.resolver.Roots().Output
	cutoff := m.now().Add(-olderThan)

	templates, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("sweeping %s: %w", root, err)
	}

	removed := 0
	var errs []error
	for _, tpl := range templates {
		if !tpl.IsDir() {
			continue
		}
		tplDir := filepath.Join(root, tpl.Name())
		entries, err := os.ReadDir(tplDir)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweeping %s: %w", tplDir, err))
			continue
		}

		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			if !e.IsDir() {
				continue
			}
			if _, err := uuid.Parse(e.Name()); err != nil {
				continue
			}
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			dir := filepath.Join(tplDir, e.Name())
			if err := os.RemoveAll(dir); err != nil {
				errs = append(errs, fmt.Errorf("removing workspace %s: %w", dir, err))
				continue
			}
			removed++
		}
	}
	return removed, errors.Join(errs...)
}
