package gbaw

import (
	"context"
	"sync"

	"github.com/atwrap/go-bluesky-api-wrapper/pkg/types"
)

// SessionManager owns zero or one current Session and knows how to refresh
// and release the credentials behind it. Implementations cover the three
// authentication strategies: none, password, and OAuth2.
//
// A manager never mutates a Session in place; every update installs a new
// snapshot. Callers that captured a manager reference before a swap may keep
// using it until their call completes.
type SessionManager interface {
	// CurrentSession returns the held Session snapshot, or nil.
	CurrentSession() *types.Session

	// SetSession replaces the held Session atomically and fires the
	// session-updated notification.
	SetSession(session *types.Session)

	// RefreshSession derives a new Session from the stored refresh token.
	// On failure the existing Session is retained; the caller decides
	// whether the failure is fatal. The unauthenticated manager returns
	// (nil, nil) immediately without a network call.
	RefreshSession(ctx context.Context) (*types.Session, error)

	// IsAuthenticated reports whether a Session is held under a strategy
	// that can authorize requests.
	IsAuthenticated() bool

	// Dispose releases the manager's resources and any transient
	// authorization state. It is idempotent.
	Dispose()
}

// sessionStore holds the Session snapshot shared by every manager variant.
// The notification hook is installed by the owning client before the manager
// is put into service.
type sessionStore struct {
	mu       sync.Mutex
	session  *types.Session
	onUpdate func(*types.Session)
	disposed bool
}

func (s *sessionStore) CurrentSession() *types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *sessionStore) SetSession(session *types.Session) {
	s.mu.Lock()
	if s.disposed {
		// A call that was already in flight when the manager was swapped
		// out may land here; its result still goes back to the caller,
		// but the retired store stays empty and stays quiet.
		s.mu.Unlock()
		return
	}
	s.session = session
	notify := s.onUpdate
	s.mu.Unlock()

	if notify != nil && session != nil {
		notify(session)
	}
}

// dispose clears the session without firing a notification. Returns false if
// the store was already disposed.
func (s *sessionStore) dispose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return false
	}
	s.disposed = true
	s.session = nil
	return true
}

// unauthenticatedSessionManager is the strategy used before any credentials
// are supplied, and by clients constructed for a foreign PDS during
// resolution.
type unauthenticatedSessionManager struct {
	sessionStore
}

func newUnauthenticatedManager(onUpdate func(*types.Session)) *unauthenticatedSessionManager {
	m := &unauthenticatedSessionManager{}
	m.onUpdate = onUpdate
	return m
}

// RefreshSession is a no-op success: there are no credentials to refresh.
func (m *unauthenticatedSessionManager) RefreshSession(ctx context.Context) (*types.Session, error) {
	return nil, nil
}

// IsAuthenticated is always false for the unauthenticated strategy, even if
// a Session snapshot was preloaded into it.
func (m *unauthenticatedSessionManager) IsAuthenticated() bool {
	return false
}

func (m *unauthenticatedSessionManager) Dispose() {
	m.dispose()
}
