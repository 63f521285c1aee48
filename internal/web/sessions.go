package web

import (
	"context"
	"fmt"
	"sync"

	"github.com/JonMunkholm/csvmerge/internal/core"
)

// SessionStore owns the live merge workspaces, keyed by workspace ID.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Workspace
	max      int
	opts     core.WorkspaceOptions
}

// NewSessionStore creates a store holding at most max sessions.
func NewSessionStore(max int, opts core.WorkspaceOptions) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*core.Workspace),
		max:      max,
		opts:     opts,
	}
}

// Create opens a new workspace.
func (s *SessionStore) Create() (*core.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.max > 0 && len(s.sessions) >= s.max {
		return nil, fmt.Errorf("%w: %d open", core.ErrSessionLimit, len(s.sessions))
	}
	ws := core.NewWorkspace(s.opts)
	s.sessions[ws.ID] = ws
	return ws, nil
}

// Get returns the workspace with the given ID.
func (s *SessionStore) Get(id string) (*core.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return ws, nil
}

// Delete closes the session. Exports it started keep running to completion.
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of open sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// WaitForExports waits for the exports of every open session.
func (s *SessionStore) WaitForExports(ctx context.Context) error {
	s.mu.RLock()
	open := make([]*core.Workspace, 0, len(s.sessions))
	for _, ws := range s.sessions {
		open = append(open, ws)
	}
	s.mu.RUnlock()

	for _, ws := range open {
		if err := ws.WaitForExports(ctx); err != nil {
			return err
		}
	}
	return nil
}
