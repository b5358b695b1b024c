package memory

import (
	"context"
	"sync"

	"github.com/wolfeidau/orgscope/internal/store"
)

type overlayEntry struct {
	userID         int64
	organizationID int64
}

// SessionOverlay holds the per-session current organization override.
// Entries live only in process memory and are lost on restart.
type SessionOverlay struct {
	mu sync.RWMutex

	sessions map[string]overlayEntry // session_id -> override
}

// NewSessionOverlay creates an empty overlay.
func NewSessionOverlay() *SessionOverlay {
	return &SessionOverlay{
		sessions: make(map[string]overlayEntry),
	}
}

// Get returns the override for sessionID. An entry written for a different
// user is never returned.
func (s *SessionOverlay) Get(ctx context.Context, sessionID string, userID int64) (int64, bool, error) {
	if sessionID == "" {
		return 0, false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.sessions[sessionID]
	if !exists || entry.userID != userID {
		return 0, false, nil
	}
	return entry.organizationID, true, nil
}

// Set writes the override for sessionID.
func (s *SessionOverlay) Set(ctx context.Context, sessionID string, userID, orgID int64) error {
	if sessionID == "" {
		return store.ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = overlayEntry{userID: userID, organizationID: orgID}
	return nil
}

// Forget drops the override for sessionID (logout). Forgetting an unknown
// session is not an error.
func (s *SessionOverlay) Forget(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// ForgetOrganization drops every override pointing at orgID and returns how
// many were removed. Used after an organization is deleted.
func (s *SessionOverlay) ForgetOrganization(ctx context.Context, orgID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, entry := range s.sessions {
		if entry.organizationID == orgID {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}
