// Package types defines the data structures exchanged with the AT Protocol
// XRPC endpoints used by the session and transport layers.
package types

// Session is an immutable snapshot of an authenticated identity.
//
// A Session is never mutated in place: token refresh and handle changes
// produce a new Session value for the same DID, and the owning session
// manager swaps the reference. The DID is stable for the lifetime of the
// account; the handle and tokens may differ between snapshots.
type Session struct {
	// DID is the stable decentralized identifier of the actor.
	DID string `json:"did"`
	// Handle is the actor's current human-readable alias.
	Handle string `json:"handle"`
	// AccessJWT authorizes requests made under this identity.
	AccessJWT string `json:"accessJwt"`
	// RefreshJWT is exchanged for a fresh token pair.
	RefreshJWT string `json:"refreshJwt"`
	// DidDoc is the actor's identity document, when the server included one.
	DidDoc *IdentityDocument `json:"didDoc,omitempty"`
}

// IdentityDocument is the subset of a DID document the client cares about:
// the identifier, its alias URIs, and the declared service endpoints.
type IdentityDocument struct {
	ID          string    `json:"id"`
	AlsoKnownAs []string  `json:"alsoKnownAs,omitempty"`
	Service     []Service `json:"service,omitempty"`
}

// Service is one named service endpoint inside an identity document.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// PDS service markers as they appear in DID documents.
const (
	pdsServiceID   = "#atproto_pds"
	pdsServiceType = "AtprotoPersonalDataServer"
)

// PDSEndpoint returns the personal data server URL declared in the document,
// or an empty string when the document does not declare one.
func (d *IdentityDocument) PDSEndpoint() string {
	if d == nil {
		return ""
	}
	for _, svc := range d.Service {
		if svc.ID == pdsServiceID || svc.Type == pdsServiceType {
			return svc.ServiceEndpoint
		}
	}
	return ""
}

// CreateSessionRequest is the payload for com.atproto.server.createSession.
type CreateSessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// CreateSessionResponse is returned by createSession, refreshSession and
// getSession; all three describe the same session shape.
type CreateSessionResponse struct {
	DID        string            `json:"did"`
	Handle     string            `json:"handle"`
	AccessJWT  string            `json:"accessJwt"`
	RefreshJWT string            `json:"refreshJwt"`
	DidDoc     *IdentityDocument `json:"didDoc,omitempty"`
	Active     *bool             `json:"active,omitempty"`
}

// Session converts the wire payload into a Session snapshot.
func (r *CreateSessionResponse) Session() *Session {
	return &Session{
		DID:        r.DID,
		Handle:     r.Handle,
		AccessJWT:  r.AccessJWT,
		RefreshJWT: r.RefreshJWT,
		DidDoc:     r.DidDoc,
	}
}

// DescribeRepoResponse is returned by com.atproto.repo.describeRepo.
type DescribeRepoResponse struct {
	DID             string            `json:"did"`
	Handle          string            `json:"handle"`
	DidDoc          *IdentityDocument `json:"didDoc,omitempty"`
	Collections     []string          `json:"collections,omitempty"`
	HandleIsCorrect bool              `json:"handleIsCorrect"`
}

// TokenResponse is the OAuth token endpoint payload for both the
// authorization-code and refresh-token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	// Sub carries the DID the tokens were issued for.
	Sub string `json:"sub,omitempty"`
}

// OAuthCallbackParams carries the query parameters delivered to the redirect
// URL at the end of an authorization flow.
type OAuthCallbackParams struct {
	Code  string
	State string
	// Iss identifies the authorization server that issued the code.
	Iss string
}
