// Package gbaw provides a Go wrapper for the Bluesky AT Protocol APIs with
// password and OAuth2 authentication.
//
// # Overview
//
// This package lets Go applications talk to an AT Protocol network through a
// clean, type-safe interface. It manages the whole session lifecycle
// (unauthenticated, app-password, OAuth2 with PKCE), executes typed XRPC
// requests with a unified error model, and resolves which personal data
// server (PDS) is authoritative for a given actor.
//
// # Features
//
//   - App-password login and refresh via the server session endpoints
//   - OAuth2 authorization-code flow with PKCE
//   - Session resume from a persisted snapshot
//   - Typed XRPC GET/POST helpers with a structured error model
//   - Built-in client-side rate limiting honoring server throttle headers
//   - Cross-server identity resolution and client redirection
//   - Streaming repository archive download without full buffering
//   - Structured logging support via Go's slog package
//
// # Quick Start
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
// # Authentication Strategies
//
// The client owns one session manager at a time, selected by how you
// authenticate:
//
// Unauthenticated:
//   - The initial state, and the state of clients produced by identity
//     resolution for foreign servers
//   - Can read public data and resolve identities
//
// Password:
//   - Login exchanges an identifier and app password for a session
//   - RefreshSession exchanges the refresh token for a new token pair
//
// OAuth2:
//   - StartOAuth returns an authorization URL carrying PKCE state
//   - CompleteOAuth exchanges the callback code for a session
//
// Switching strategies replaces the manager wholesale. Calls already in
// flight complete against the manager they captured at call start.
//
// # Error Model
//
// Every operation returns a typed error that identifies its failure class:
//
//   - *errors.APIError: the server answered with a non-success status. The
//     status code is always present; the decoded {error, message} pair is
//     attached when the body was well formed, the raw body otherwise.
//   - *errors.RequestError: the request never meaningfully reached the
//     server (connectivity, timeout, cancellation). Wraps the cause, so
//     errors.Is(err, context.Canceled) works.
//   - *errors.StateError: caller misuse, such as completing an OAuth flow
//     that was never started. Raised before any request is dispatched.
//   - *errors.AuthError: a credential exchange was rejected.
//   - *errors.ConfigError: invalid configuration or malformed input.
//
// Use errors.As to branch on the class:
//
//	var apiErr *errors.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
//		_, err = client.RefreshSession(ctx)
//	}
//
// There is no automatic retry or refresh; callers decide both.
//
// # Identity Resolution
//
// Operations addressed to a specific actor use ResolveClientForIdentifier to
// find the server that hosts the actor's repository. The current client is
// reused when it can serve the identifier; otherwise one describeRepo call
// resolves the actor's declared PDS endpoint and a new, unauthenticated
// client bound to that endpoint is returned.
//
//	target, did, err := client.ResolveClientForIdentifier(ctx, "bob.example.com")
//	if err != nil {
//		log.Fatal(err)
//	}
//	blob, err := target.GetBlob(ctx, did, cid)
//
// # Session Persistence
//
// Register a callback to persist sessions as they are issued or refreshed,
// and preload Config.Session to resume:
//
//	client.OnSessionUpdated(func(s *types.Session) {
//		saveToDisk(s)
//	})
package gbaw
