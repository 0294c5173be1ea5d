package gbaw

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/atwrap/go-bluesky-api-wrapper/internal"
	pkgerrs "github.com/atwrap/go-bluesky-api-wrapper/pkg/errors"
	"github.com/atwrap/go-bluesky-api-wrapper/pkg/types"
	"github.com/google/uuid"
)

const (
	authorizePath = "oauth/authorize"
	tokenPath     = "oauth/token"

	codeVerifierBytes   = 32
	codeChallengeMethod = "S256"
)

// pendingAuthorization is the transient PKCE state held between
// StartAuthorization and CompleteAuthorization. At most one authorization
// attempt is outstanding per manager; starting a new one discards the
// previous attempt.
type pendingAuthorization struct {
	verifier string
	state    string
}

// oauthSessionManager implements the redirect-based OAuth2 flow with PKCE.
// The token exchange talks to the authorization server directly, outside the
// XRPC transport, the same way the password manager's server predecessor
// handled its token endpoint.
type oauthSessionManager struct {
	sessionStore
	httpClient  *http.Client
	transport   *internal.Client
	userAgent   string
	clientID    string
	redirectURL string
	scopes      []string

	// guarded by sessionStore.mu
	pending  *pendingAuthorization
	tokenURL *url.URL
}

func newOAuthManager(transport *internal.Client, httpClient *http.Client, userAgent, clientID, redirectURL string, scopes []string, onUpdate func(*types.Session)) *oauthSessionManager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	m := &oauthSessionManager{
		httpClient:  httpClient,
		transport:   transport,
		userAgent:   userAgent,
		clientID:    clientID,
		redirectURL: redirectURL,
		scopes:      scopes,
	}
	m.onUpdate = onUpdate
	return m
}

func (m *oauthSessionManager) bindTransport(transport *internal.Client) {
	m.mu.Lock()
	m.transport = transport
	m.mu.Unlock()
}

func (m *oauthSessionManager) currentTransport() *internal.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

// StartAuthorization generates fresh PKCE state and returns the URL the user
// must be sent to. instanceURL selects the authorization server; leave it
// empty to use the transport's base URL. Calling StartAuthorization again
// while an attempt is pending discards the previous attempt.
func (m *oauthSessionManager) StartAuthorization(instanceURL string) (string, error) {
	if m.clientID == "" || m.redirectURL == "" {
		return "", &pkgerrs.ConfigError{Field: "OAuthClientID", Message: "OAuth client ID and redirect URL are required"}
	}

	if instanceURL == "" {
		instanceURL = m.currentTransport().BaseURL.String()
	}
	instance, err := url.Parse(instanceURL)
	if err != nil || instance.Scheme == "" || instance.Host == "" {
		return "", &pkgerrs.ConfigError{Field: "instanceURL", Message: fmt.Sprintf("invalid instance URL %q", instanceURL)}
	}
	if !strings.HasSuffix(instance.Path, "/") {
		instance.Path += "/"
	}

	verifier, err := generateCodeVerifier()
	if err != nil {
		return "", &pkgerrs.AuthError{Message: "failed to generate code verifier", Err: err}
	}
	state := uuid.NewString()

	authorizeURL, err := instance.Parse(authorizePath)
	if err != nil {
		return "", &pkgerrs.AuthError{Message: "failed to build authorization URL", Err: err}
	}
	tokenURL, err := instance.Parse(tokenPath)
	if err != nil {
		return "", &pkgerrs.AuthError{Message: "failed to build token URL", Err: err}
	}

	q := url.Values{}
	q.Set("client_id", m.clientID)
	q.Set("redirect_uri", m.redirectURL)
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge(verifier))
	q.Set("code_challenge_method", codeChallengeMethod)
	if len(m.scopes) > 0 {
		q.Set("scope", strings.Join(m.scopes, " "))
	}
	authorizeURL.RawQuery = q.Encode()

	m.mu.Lock()
	m.pending = &pendingAuthorization{verifier: verifier, state: state}
	m.tokenURL = tokenURL
	m.mu.Unlock()

	return authorizeURL.String(), nil
}

// CompleteAuthorization exchanges the callback code for a Session. Calling it
// without a pending authorization is caller misuse and fails immediately with
// a StateError; no request is made.
func (m *oauthSessionManager) CompleteAuthorization(ctx context.Context, params types.OAuthCallbackParams) (*types.Session, error) {
	m.mu.Lock()
	pending := m.pending
	tokenURL := m.tokenURL
	m.mu.Unlock()

	if pending == nil {
		return nil, &pkgerrs.StateError{Operation: "CompleteAuthorization", Message: "no authorization is pending; call StartAuthorization first"}
	}
	if params.State != pending.state {
		return nil, &pkgerrs.AuthError{Message: "authorization state mismatch"}
	}
	if params.Code == "" {
		return nil, &pkgerrs.AuthError{Message: "authorization callback did not include a code"}
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", params.Code)
	form.Set("redirect_uri", m.redirectURL)
	form.Set("client_id", m.clientID)
	form.Set("code_verifier", pending.verifier)

	token, err := m.exchangeToken(ctx, tokenURL, form)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()

	session := &types.Session{
		DID:        token.Sub,
		AccessJWT:  token.AccessToken,
		RefreshJWT: token.RefreshToken,
	}

	// The token endpoint only identifies the actor; fill in the handle and
	// identity document when the session endpoint is reachable.
	if described, err := internal.Get[types.CreateSessionResponse](ctx, m.currentTransport(), getSessionNSID, nil, bearerHeader(session.AccessJWT)); err == nil {
		if described.DID != "" {
			session.DID = described.DID
		}
		session.Handle = described.Handle
		session.DidDoc = described.DidDoc
	}

	m.SetSession(session)
	return session, nil
}

// RefreshSession exchanges the stored refresh token for a new token pair via
// the authorization server. The held Session is only replaced on success.
func (m *oauthSessionManager) RefreshSession(ctx context.Context) (*types.Session, error) {
	session := m.CurrentSession()
	if session == nil {
		return nil, &pkgerrs.StateError{Operation: "RefreshSession", Message: "no session to refresh"}
	}

	m.mu.Lock()
	tokenURL := m.tokenURL
	m.mu.Unlock()
	if tokenURL == nil {
		return nil, &pkgerrs.StateError{Operation: "RefreshSession", Message: "no token endpoint known for this session"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", session.RefreshJWT)
	form.Set("client_id", m.clientID)

	token, err := m.exchangeToken(ctx, tokenURL, form)
	if err != nil {
		return nil, err
	}

	refreshed := &types.Session{
		DID:        session.DID,
		Handle:     session.Handle,
		AccessJWT:  token.AccessToken,
		RefreshJWT: token.RefreshToken,
		DidDoc:     session.DidDoc,
	}
	if token.Sub != "" {
		refreshed.DID = token.Sub
	}
	if refreshed.RefreshJWT == "" {
		refreshed.RefreshJWT = session.RefreshJWT
	}

	m.SetSession(refreshed)
	return refreshed, nil
}

func (m *oauthSessionManager) IsAuthenticated() bool {
	return m.CurrentSession() != nil
}

// Dispose discards the pending PKCE state along with the session.
func (m *oauthSessionManager) Dispose() {
	if m.dispose() {
		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
	}
}

// exchangeToken performs a form-encoded grant against the token endpoint.
func (m *oauthSessionManager) exchangeToken(ctx context.Context, tokenURL *url.URL, form url.Values) (*types.TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &pkgerrs.AuthError{Message: "failed to create token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", m.userAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: "token exchange", URL: tokenURL.String(), Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &pkgerrs.AuthError{StatusCode: resp.StatusCode, Message: "failed to read token response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var token types.TokenResponse
	if err := json.Unmarshal(bodyBytes, &token); err != nil {
		return nil, &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(bodyBytes), Err: err}
	}
	if token.AccessToken == "" {
		return nil, &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(bodyBytes), Message: "access token was empty in response"}
	}

	return &token, nil
}

func generateCodeVerifier() (string, error) {
	buf := make([]byte, codeVerifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
