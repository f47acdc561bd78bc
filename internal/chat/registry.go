package chat

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"unifiedai/pkg/aitypes"
)

// Registry maps session ids to live sessions. It is safe for concurrent use.
//
// An id can be reserved before its session exists. A reserved id is refused by Reserve
// and is invisible to Get, IDs and Len until the session is registered.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*ChatClient
	reserved map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*ChatClient),
		reserved: make(map[string]struct{}),
	}
}

// Register adds a session, consuming a reservation for its id if one exists.
// An id held by another session yields *aitypes.DuplicateSessionError and leaves
// the existing entry untouched.
func (r *Registry) Register(session *ChatClient) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID()]; exists {
		return &aitypes.DuplicateSessionError{SessionID: session.ID()}
	}
	delete(r.reserved, session.ID())
	r.sessions[session.ID()] = session
	return nil
}

// Reserve claims id for a session that is still being built. It fails with
// *aitypes.DuplicateSessionError when the id is registered or already reserved.
// The caller must either Register a session with that id or Release it.
func (r *Registry) Reserve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return &aitypes.DuplicateSessionError{SessionID: id}
	}
	if _, pending := r.reserved[id]; pending {
		return &aitypes.DuplicateSessionError{SessionID: id}
	}
	r.reserved[id] = struct{}{}
	return nil
}

// Release drops a reservation. Registered sessions are not affected.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	delete(r.reserved, id)
	r.mu.Unlock()
}

// Remove deletes a session if it is the one registered under its id.
// It reports whether anything was removed.
func (r *Registry) Remove(session *ChatClient) bool {
	if session == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[session.ID()]; ok && current == session {
		delete(r.sessions, session.ID())
		return true
	}
	return false
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*ChatClient, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// IDs returns the registered ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll closes every registered session and empties the registry. Every session is
// attempted; failures are joined into one error.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	sessions := make([]*ChatClient, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*ChatClient)
	r.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID() < sessions[j].ID() })

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", s.ID(), err))
		}
	}
	return errors.Join(errs...)
}
