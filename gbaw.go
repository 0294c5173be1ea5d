// Package gbaw provides a Go wrapper for the Bluesky AT Protocol APIs with
// password and OAuth2 (PKCE) authentication support.
//
// The package manages the session lifecycle, typed XRPC requests, rate
// limiting, and the cross-server identity resolution needed to address
// requests at the personal data server (PDS) that is authoritative for a
// given actor.
//
// Basic usage:
//
//	config := &gbaw.Config{
//		UserAgent: "myapp/1.0",
//	}
//
//	client, err := gbaw.NewClient(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	session, err := client.Login(ctx, "alice.bsky.social", "app-password")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Println("logged in as", session.DID)
package gbaw

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/atwrap/go-bluesky-api-wrapper/internal"
	pkgerrs "github.com/atwrap/go-bluesky-api-wrapper/pkg/errors"
	"github.com/atwrap/go-bluesky-api-wrapper/pkg/types"
)

const (
	// DefaultBaseURL is the default network entry host.
	DefaultBaseURL = "https://bsky.social/"
	// DefaultUserAgent is the default user agent string
	DefaultUserAgent = "go-bluesky-api-wrapper/0.1"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
)

const (
	describeRepoNSID  = "com.atproto.repo.describeRepo"
	getBlobNSID       = "com.atproto.sync.getBlob"
	getRepoNSID       = "com.atproto.sync.getRepo"
	deleteSessionNSID = "com.atproto.server.deleteSession"
)

// Config holds the configuration for the Bluesky client.
//
// A zero-credential config produces an unauthenticated client that can read
// public data and resolve identities. Call Login or the StartOAuth /
// CompleteOAuth pair to authenticate, or preload Session to resume a
// previously persisted login without re-authenticating.
type Config struct {
	// BaseURL for the XRPC API.
	// Defaults to DefaultBaseURL if not specified.
	BaseURL string

	// UserAgent string to identify your application.
	UserAgent string

	// HTTPClient to use for requests.
	// Defaults to a client with DefaultTimeout if not specified.
	HTTPClient *http.Client

	// Logger for structured diagnostics.
	// Optional. If provided, debug information will be logged during API calls.
	Logger *slog.Logger

	// Session resumes a persisted session instead of starting unauthenticated.
	Session *types.Session

	// PivotToPDS moves the client's base URL to the authenticated actor's
	// own declared service endpoint after a successful login.
	PivotToPDS bool

	// OAuthClientID, OAuthRedirectURL and OAuthScopes configure the OAuth2
	// authorization flow. Required only when using StartOAuth.
	OAuthClientID    string
	OAuthRedirectURL string
	OAuthScopes      []string

	// RateLimitPerMinute and RateLimitBurst tune client-side throttling.
	// Zero values use the transport defaults.
	RateLimitPerMinute float64
	RateLimitBurst     int
}

// StreamDecoder consumes a repository archive stream. Implementations decode
// records incrementally from the reader; the client never buffers the full
// archive. Decoding the archive contents is outside this package.
type StreamDecoder interface {
	DecodeStream(ctx context.Context, r io.Reader) error
}

// Client is the main Bluesky API client.
//
// The client owns exactly one session manager at a time. Switching
// authentication strategies (for example, the first Login on an
// unauthenticated client) replaces the manager wholesale: the new manager is
// installed before the old one is disposed, and calls already in flight
// against the old manager run to completion. Every operation captures the
// current manager and transport once at call start and uses that snapshot
// throughout.
type Client struct {
	mu        sync.RWMutex
	config    *Config
	transport *internal.Client
	manager   SessionManager

	validator *internal.Validator

	cbMu      sync.Mutex
	callbacks []func(*types.Session)
}

// NewClient creates a client from the provided configuration. It validates
// the configuration and installs the initial session manager, but performs
// no network calls.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}

	// Set defaults
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	transport, err := internal.NewClient(config.HTTPClient, config.BaseURL, config.UserAgent, config.rateConfig(), config.Logger)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:    config,
		transport: transport,
		validator: internal.NewValidator(),
	}

	if config.Session != nil {
		m := newPasswordManager(transport, c.notifySessionUpdated)
		m.session = config.Session
		c.manager = m
	} else {
		c.manager = newUnauthenticatedManager(c.notifySessionUpdated)
	}

	return c, nil
}

func (cfg *Config) rateConfig() *internal.RateLimitConfig {
	if cfg.RateLimitPerMinute == 0 && cfg.RateLimitBurst == 0 {
		return nil
	}
	return &internal.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	}
}

// snapshot captures the manager and transport that are current right now.
// Operations hold the snapshot for their full duration even if the client is
// reconfigured mid-flight.
func (c *Client) snapshot() (SessionManager, *internal.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager, c.transport
}

// swapManager installs the new manager before disposing the old one, so a
// concurrent reader never observes a disposed manager as current.
func (c *Client) swapManager(next SessionManager) {
	c.mu.Lock()
	old := c.manager
	c.manager = next
	c.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
}

func (c *Client) swapTransport(next *internal.Client) {
	c.mu.Lock()
	c.transport = next
	c.mu.Unlock()
}

// OnSessionUpdated registers fn to be called whenever a session manager
// installs a new Session: login, OAuth completion, refresh. Useful for
// persisting credentials.
func (c *Client) OnSessionUpdated(fn func(*types.Session)) {
	if fn == nil {
		return
	}
	c.cbMu.Lock()
	c.callbacks = append(c.callbacks, fn)
	c.cbMu.Unlock()
}

func (c *Client) notifySessionUpdated(session *types.Session) {
	c.cbMu.Lock()
	callbacks := make([]func(*types.Session), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.cbMu.Unlock()

	for _, fn := range callbacks {
		fn(session)
	}
}

// BaseURL returns the origin the client currently targets.
func (c *Client) BaseURL() string {
	_, transport := c.snapshot()
	return transport.BaseURL.String()
}

// CurrentSession returns the current Session snapshot, or nil.
func (c *Client) CurrentSession() *types.Session {
	mgr, _ := c.snapshot()
	return mgr.CurrentSession()
}

// IsAuthenticated reports whether the client holds a usable session.
func (c *Client) IsAuthenticated() bool {
	mgr, _ := c.snapshot()
	return mgr.IsAuthenticated()
}

// Login authenticates with an identifier (handle or DID) and app password.
// It swaps the client over to the password strategy, so any previously held
// credentials are released.
func (c *Client) Login(ctx context.Context, identifier, password string) (*types.Session, error) {
	if err := c.validator.ValidateIdentifier(identifier); err != nil {
		return nil, err
	}

	_, transport := c.snapshot()
	m := newPasswordManager(transport, c.notifySessionUpdated)
	c.swapManager(m)

	session, err := m.Authenticate(ctx, identifier, password)
	if err != nil {
		return nil, err
	}

	c.maybePivot(session, m.bindTransport)
	return session, nil
}

// Logout releases the current credentials. The server-side session is
// deleted on a best-effort basis; local credentials are dropped regardless.
func (c *Client) Logout(ctx context.Context) error {
	mgr, transport := c.snapshot()
	session := mgr.CurrentSession()

	var err error
	if session != nil && session.RefreshJWT != "" {
		_, err = internal.Post[struct{}](ctx, transport, deleteSessionNSID, nil, bearerHeader(session.RefreshJWT))
	}

	c.swapManager(newUnauthenticatedManager(c.notifySessionUpdated))
	return err
}

// StartOAuth begins the OAuth2 authorization flow and returns the URL to
// send the user to. instanceURL selects the authorization server; leave it
// empty to authorize against the client's base URL. The client swaps over to
// the OAuth strategy; the returned state is held until CompleteOAuth.
func (c *Client) StartOAuth(instanceURL string) (string, error) {
	mgr, transport := c.snapshot()

	if om, ok := mgr.(*oauthSessionManager); ok {
		return om.StartAuthorization(instanceURL)
	}

	om := newOAuthManager(transport, c.config.HTTPClient, c.config.UserAgent,
		c.config.OAuthClientID, c.config.OAuthRedirectURL, c.config.OAuthScopes,
		c.notifySessionUpdated)

	authURL, err := om.StartAuthorization(instanceURL)
	if err != nil {
		return "", err
	}

	c.swapManager(om)
	return authURL, nil
}

// CompleteOAuth finishes the authorization flow with the callback
// parameters. Calling it without a prior StartOAuth fails immediately with a
// StateError; no request is made.
func (c *Client) CompleteOAuth(ctx context.Context, params types.OAuthCallbackParams) (*types.Session, error) {
	mgr, _ := c.snapshot()

	om, ok := mgr.(*oauthSessionManager)
	if !ok {
		return nil, &pkgerrs.StateError{Operation: "CompleteOAuth", Message: "no OAuth authorization in progress; call StartOAuth first"}
	}

	session, err := om.CompleteAuthorization(ctx, params)
	if err != nil {
		return nil, err
	}

	c.maybePivot(session, om.bindTransport)
	return session, nil
}

// RefreshSession asks the current session manager for a fresh token pair.
// There is no automatic refresh: a 401 from an API call does not trigger
// this, callers decide when to refresh.
func (c *Client) RefreshSession(ctx context.Context) (*types.Session, error) {
	mgr, _ := c.snapshot()
	return mgr.RefreshSession(ctx)
}

// maybePivot rebinds the client and its manager to the session's declared
// PDS endpoint when the config asks for it. A pivot failure keeps the client
// on the entry host; the session itself is already valid.
func (c *Client) maybePivot(session *types.Session, bind func(*internal.Client)) {
	if !c.config.PivotToPDS || session == nil {
		return
	}

	endpoint := session.DidDoc.PDSEndpoint()
	if endpoint == "" {
		return
	}

	_, current := c.snapshot()
	if current.BaseURL.String() == endpoint || current.BaseURL.String() == endpoint+"/" {
		return
	}

	next, err := internal.NewClient(c.config.HTTPClient, endpoint, c.config.UserAgent, c.config.rateConfig(), c.config.Logger)
	if err != nil {
		if c.config.Logger != nil {
			c.config.Logger.Warn("cannot pivot to PDS endpoint", "endpoint", endpoint, "err", err)
		}
		return
	}

	c.swapTransport(next)
	bind(next)
}

// DescribeRepo fetches the repository description for an actor, including
// its identity document and declared service endpoints.
func (c *Client) DescribeRepo(ctx context.Context, identifier string) (*types.DescribeRepoResponse, error) {
	if err := c.validator.ValidateIdentifier(identifier); err != nil {
		return nil, err
	}

	mgr, transport := c.snapshot()

	params := url.Values{}
	params.Set("repo", identifier)
	return internal.Get[types.DescribeRepoResponse](ctx, transport, describeRepoNSID, params, sessionHeaders(mgr))
}

// ResolveClientForIdentifier decides which client is authoritative for the
// given actor identifier (handle or DID) and returns it together with the
// actor's DID when known.
//
// The current client is reused when its base URL is the default network
// entry host (which proxies for any identifier, so no resolution round-trip
// is spent) or when the identifier matches the current session. Otherwise
// one describeRepo call resolves the actor's declared PDS endpoint and a
// new, unauthenticated client bound to that endpoint is returned: the target
// is a different server whose credentials are unknown. A resolution failure
// propagates as-is; callers are never redirected to a guessed origin.
func (c *Client) ResolveClientForIdentifier(ctx context.Context, identifier string) (*Client, string, error) {
	if err := c.validator.ValidateIdentifier(identifier); err != nil {
		return nil, "", err
	}

	mgr, transport := c.snapshot()
	session := mgr.CurrentSession()

	if transport.BaseURL.String() == DefaultBaseURL {
		return c, knownDID(identifier, session), nil
	}

	if session != nil {
		if internal.IsDID(identifier) && identifier == session.DID {
			return c, session.DID, nil
		}
		if !internal.IsDID(identifier) && identifier == session.Handle {
			return c, session.DID, nil
		}
	}

	params := url.Values{}
	params.Set("repo", identifier)
	described, err := internal.Get[types.DescribeRepoResponse](ctx, transport, describeRepoNSID, params, sessionHeaders(mgr))
	if err != nil {
		return nil, "", err
	}

	endpoint := described.DidDoc.PDSEndpoint()
	if endpoint == "" {
		return nil, "", &pkgerrs.RequestError{
			Operation: "ResolveClientForIdentifier",
			Message:   "identity document for " + identifier + " does not declare a PDS endpoint",
		}
	}

	resolved, err := NewClient(&Config{
		BaseURL:            endpoint,
		UserAgent:          c.config.UserAgent,
		HTTPClient:         c.config.HTTPClient,
		Logger:             c.config.Logger,
		RateLimitPerMinute: c.config.RateLimitPerMinute,
		RateLimitBurst:     c.config.RateLimitBurst,
	})
	if err != nil {
		return nil, "", err
	}

	return resolved, described.DID, nil
}

// knownDID returns the DID for an identifier without a network call, when
// the identifier itself or the current session already carries it.
func knownDID(identifier string, session *types.Session) string {
	if internal.IsDID(identifier) {
		return identifier
	}
	if session != nil && identifier == session.Handle {
		return session.DID
	}
	return ""
}

// GetBlob fetches a single blob from the PDS that hosts the actor's
// repository.
func (c *Client) GetBlob(ctx context.Context, did, cid string) ([]byte, error) {
	if cid == "" {
		return nil, &pkgerrs.ConfigError{Field: "cid", Message: "cid cannot be empty"}
	}

	resolved, resolvedDID, err := c.ResolveClientForIdentifier(ctx, did)
	if err != nil {
		return nil, err
	}
	if resolvedDID == "" {
		resolvedDID = did
	}

	return resolved.fetchBlob(ctx, resolvedDID, cid)
}

// fetchBlob issues the blob request against this client's own origin,
// without another resolution round-trip.
func (c *Client) fetchBlob(ctx context.Context, did, cid string) ([]byte, error) {
	mgr, transport := c.snapshot()

	params := url.Values{}
	params.Set("did", did)
	params.Set("cid", cid)
	req, err := transport.NewRequest(ctx, http.MethodGet, getBlobNSID, nil, params, sessionHeaders(mgr))
	if err != nil {
		return nil, err
	}

	return transport.DoBlob(req)
}

// GetBlobs fetches multiple blobs from one actor's PDS in parallel. Results
// are returned in input order; if any fetch fails the first error is
// returned alongside the blobs that did succeed.
func (c *Client) GetBlobs(ctx context.Context, did string, cids []string) ([][]byte, error) {
	if len(cids) == 0 {
		return [][]byte{}, nil
	}

	resolved, resolvedDID, err := c.ResolveClientForIdentifier(ctx, did)
	if err != nil {
		return nil, err
	}
	if resolvedDID == "" {
		resolvedDID = did
	}

	type result struct {
		index int
		data  []byte
		err   error
	}
	resultChan := make(chan result, len(cids))

	for i, cid := range cids {
		go func(index int, cid string) {
			data, err := resolved.fetchBlob(ctx, resolvedDID, cid)
			resultChan <- result{index: index, data: data, err: err}
		}(i, cid)
	}

	results := make([][]byte, len(cids))
	var firstError error
	for range cids {
		res := <-resultChan
		if res.err != nil && firstError == nil {
			firstError = res.err
		}
		results[res.index] = res.data
	}

	if firstError != nil {
		return results, firstError
	}
	return results, nil
}

// DownloadRepo streams the actor's full repository archive into the decoder.
// The response body is handed to the decoder as a live stream, so archives
// larger than memory can be processed record by record.
func (c *Client) DownloadRepo(ctx context.Context, identifier string, decoder StreamDecoder) error {
	if decoder == nil {
		return &pkgerrs.ConfigError{Field: "decoder", Message: "decoder cannot be nil"}
	}

	resolved, did, err := c.ResolveClientForIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	if did == "" {
		described, err := resolved.DescribeRepo(ctx, identifier)
		if err != nil {
			return err
		}
		did = described.DID
	}

	mgr, transport := resolved.snapshot()

	params := url.Values{}
	params.Set("did", did)
	req, err := transport.NewRequest(ctx, http.MethodGet, getRepoNSID, nil, params, sessionHeaders(mgr))
	if err != nil {
		return err
	}

	return transport.DoStream(req, func(r io.Reader) error {
		return decoder.DecodeStream(ctx, r)
	})
}

// sessionHeaders returns the Authorization header for the manager's current
// session, or nil when unauthenticated.
func sessionHeaders(mgr SessionManager) map[string]string {
	if session := mgr.CurrentSession(); session != nil && session.AccessJWT != "" {
		return bearerHeader(session.AccessJWT)
	}
	return nil
}
