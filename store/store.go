// Package store implements the server-level name -> Workspace mapping:
// the "outer mapping" of the core, deliberately thin, sitting below
// whatever transport layer a caller wires on top.
package store

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/lme/lmecore/molecule"
	"github.com/lme/lmecore/workspace"
)

// Error kinds named by §7.
var (
	ErrNoSuchWorkspace       = errors.New("store: no such workspace")
	ErrWorkspaceNameConflict = errors.New("store: workspace name already exists")
)

// entry pairs a workspace with the generation ID stamped on it at
// creation, so callers can tell two same-named workspaces created at
// different times apart (e.g. after a delete-then-recreate) without
// depending on pointer identity.
type entry struct {
	workspace  *workspace.Workspace
	generation uuid.UUID
}

// Store maps workspace name to *workspace.Workspace under a readers-writer
// discipline (§5): Create/Delete take the writer side; per-workspace
// operations take the reader side just long enough to fetch the pointer,
// then operate through the workspace's own lock.
type Store struct {
	mu         sync.RWMutex
	workspaces map[string]entry
}

// New returns an empty store.
func New() *Store {
	return &Store{workspaces: make(map[string]entry)}
}

// Create adds a new workspace named name, owning base, and stamps it
// with a fresh generation ID. Returns ErrWorkspaceNameConflict if name is
// already taken.
func (s *Store) Create(name string, base molecule.Molecule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[name]; ok {
		return pkgerrors.Wrapf(ErrWorkspaceNameConflict, "name %q", name)
	}
	s.workspaces[name] = entry{workspace: workspace.New(base), generation: uuid.New()}
	return nil
}

// Delete removes the workspace named name. Returns ErrNoSuchWorkspace if
// absent.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[name]; !ok {
		return pkgerrors.Wrapf(ErrNoSuchWorkspace, "name %q", name)
	}
	delete(s.workspaces, name)
	return nil
}

// Get returns the workspace named name. Returns ErrNoSuchWorkspace if
// absent. The returned pointer is stable even if the workspace is later
// deleted from the store: callers holding it may keep using it.
func (s *Store) Get(name string) (*workspace.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.workspaces[name]
	if !ok {
		return nil, pkgerrors.Wrapf(ErrNoSuchWorkspace, "name %q", name)
	}
	return e.workspace, nil
}

// Generation returns the creation-stamped generation ID of the workspace
// named name. Returns ErrNoSuchWorkspace if absent.
func (s *Store) Generation(name string) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.workspaces[name]
	if !ok {
		return uuid.UUID{}, pkgerrors.Wrapf(ErrNoSuchWorkspace, "name %q", name)
	}
	return e.generation, nil
}

// Names returns every workspace name currently held, in no particular
// order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.workspaces))
	for name := range s.workspaces {
		out = append(out, name)
	}
	return out
}

// Len returns the number of workspaces currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workspaces)
}
