package types

import (
	"encoding/json"
	"testing"
)

func TestPDSEndpoint(t *testing.T) {
	tests := []struct {
		name string
		doc  *IdentityDocument
		want string
	}{
		{
			name: "nil document",
			doc:  nil,
			want: "",
		},
		{
			name: "matched by id",
			doc: &IdentityDocument{Service: []Service{
				{ID: "#atproto_labeler", Type: "AtprotoLabeler", ServiceEndpoint: "https://mod.example.com"},
				{ID: "#atproto_pds", Type: "AtprotoPersonalDataServer", ServiceEndpoint: "https://pds.example.com"},
			}},
			want: "https://pds.example.com",
		},
		{
			name: "matched by type",
			doc: &IdentityDocument{Service: []Service{
				{ID: "#custom", Type: "AtprotoPersonalDataServer", ServiceEndpoint: "https://pds2.example.com"},
			}},
			want: "https://pds2.example.com",
		},
		{
			name: "no pds declared",
			doc: &IdentityDocument{Service: []Service{
				{ID: "#atproto_labeler", Type: "AtprotoLabeler", ServiceEndpoint: "https://mod.example.com"},
			}},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.PDSEndpoint(); got != tt.want {
				t.Errorf("PDSEndpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCreateSessionResponseSession(t *testing.T) {
	payload := `{
		"did": "did:plc:ewvi7nxzyoun6zhxrhs64oiz",
		"handle": "alice.bsky.social",
		"accessJwt": "access-token",
		"refreshJwt": "refresh-token",
		"didDoc": {
			"id": "did:plc:ewvi7nxzyoun6zhxrhs64oiz",
			"service": [{"id": "#atproto_pds", "type": "AtprotoPersonalDataServer", "serviceEndpoint": "https://morel.us-east.host.bsky.network"}]
		}
	}`

	var resp CreateSessionResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	session := resp.Session()
	if session.DID != "did:plc:ewvi7nxzyoun6zhxrhs64oiz" {
		t.Errorf("DID = %q", session.DID)
	}
	if session.Handle != "alice.bsky.social" {
		t.Errorf("Handle = %q", session.Handle)
	}
	if session.AccessJWT != "access-token" || session.RefreshJWT != "refresh-token" {
		t.Errorf("tokens = %q / %q", session.AccessJWT, session.RefreshJWT)
	}
	if got := session.DidDoc.PDSEndpoint(); got != "https://morel.us-east.host.bsky.network" {
		t.Errorf("PDSEndpoint = %q", got)
	}
}
