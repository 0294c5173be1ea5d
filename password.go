package gbaw

import (
	"context"

	"github.com/atwrap/go-bluesky-api-wrapper/internal"
	pkgerrs "github.com/atwrap/go-bluesky-api-wrapper/pkg/errors"
	"github.com/atwrap/go-bluesky-api-wrapper/pkg/types"
)

const (
	createSessionNSID  = "com.atproto.server.createSession"
	refreshSessionNSID = "com.atproto.server.refreshSession"
	getSessionNSID     = "com.atproto.server.getSession"
)

// passwordSessionManager authenticates with an identifier and app password
// against the server's session endpoints.
type passwordSessionManager struct {
	sessionStore
	transport *internal.Client
}

func newPasswordManager(transport *internal.Client, onUpdate func(*types.Session)) *passwordSessionManager {
	m := &passwordSessionManager{transport: transport}
	m.onUpdate = onUpdate
	return m
}

// bindTransport points the manager at a different origin. Used when the
// client pivots to the actor's own PDS after login.
func (m *passwordSessionManager) bindTransport(transport *internal.Client) {
	m.mu.Lock()
	m.transport = transport
	m.mu.Unlock()
}

func (m *passwordSessionManager) currentTransport() *internal.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

// Authenticate exchanges the identifier and password for a Session.
func (m *passwordSessionManager) Authenticate(ctx context.Context, identifier, password string) (*types.Session, error) {
	if identifier == "" || password == "" {
		return nil, &pkgerrs.AuthError{Message: "identifier and password are required"}
	}

	resp, err := internal.Post[types.CreateSessionResponse](ctx, m.currentTransport(), createSessionNSID, &types.CreateSessionRequest{
		Identifier: identifier,
		Password:   password,
	}, nil)
	if err != nil {
		return nil, err
	}

	session := resp.Session()
	m.SetSession(session)
	return session, nil
}

// RefreshSession exchanges the stored refresh token for a new token pair.
// The held Session is only replaced on success.
func (m *passwordSessionManager) RefreshSession(ctx context.Context) (*types.Session, error) {
	session := m.CurrentSession()
	if session == nil {
		return nil, &pkgerrs.StateError{Operation: "RefreshSession", Message: "no session to refresh"}
	}

	resp, err := internal.Post[types.CreateSessionResponse](ctx, m.currentTransport(), refreshSessionNSID, nil, bearerHeader(session.RefreshJWT))
	if err != nil {
		return nil, err
	}

	refreshed := resp.Session()
	m.SetSession(refreshed)
	return refreshed, nil
}

func (m *passwordSessionManager) IsAuthenticated() bool {
	return m.CurrentSession() != nil
}

func (m *passwordSessionManager) Dispose() {
	m.dispose()
}

// bearerHeader builds the Authorization header for a token.
func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
