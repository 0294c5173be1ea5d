package internal

import "testing"

func TestIsDID(t *testing.T) {
	if !IsDID("did:plc:abc123") {
		t.Error("did:plc:abc123 should be a DID")
	}
	if IsDID("alice.bsky.social") {
		t.Error("alice.bsky.social should not be a DID")
	}
}

func TestValidateDID(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		did     string
		wantErr bool
	}{
		{name: "valid plc", did: "did:plc:ewvi7nxzyoun6zhxrhs64oiz"},
		{name: "valid web", did: "did:web:example.com"},
		{name: "missing prefix", did: "plc:abc", wantErr: true},
		{name: "no identifier", did: "did:plc:", wantErr: true},
		{name: "no method", did: "did::abc", wantErr: true},
		{name: "uppercase method", did: "did:PLC:abc", wantErr: true},
		{name: "missing separator", did: "did:plc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDID(tt.did)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDID(%q) error = %v, wantErr %v", tt.did, err, tt.wantErr)
			}
		})
	}
}

func TestValidateHandle(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		handle  string
		wantErr bool
	}{
		{name: "valid", handle: "alice.bsky.social"},
		{name: "valid two segments", handle: "example.com"},
		{name: "valid with hyphen", handle: "my-name.example.com"},
		{name: "empty", handle: "", wantErr: true},
		{name: "single segment", handle: "alice", wantErr: true},
		{name: "empty segment", handle: "alice..social", wantErr: true},
		{name: "leading dot", handle: ".alice.social", wantErr: true},
		{name: "leading hyphen in segment", handle: "-alice.social", wantErr: true},
		{name: "trailing hyphen in segment", handle: "alice-.social", wantErr: true},
		{name: "invalid character", handle: "al!ce.social", wantErr: true},
		{name: "space", handle: "alice smith.social", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateHandle(tt.handle)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHandle(%q) error = %v, wantErr %v", tt.handle, err, tt.wantErr)
			}
		})
	}
}

func TestValidateIdentifierDispatches(t *testing.T) {
	v := NewValidator()

	if err := v.ValidateIdentifier("did:plc:abc123"); err != nil {
		t.Errorf("valid DID rejected: %v", err)
	}
	if err := v.ValidateIdentifier("alice.bsky.social"); err != nil {
		t.Errorf("valid handle rejected: %v", err)
	}
	if err := v.ValidateIdentifier(""); err == nil {
		t.Error("empty identifier accepted")
	}
	if err := v.ValidateIdentifier("did:bad"); err == nil {
		t.Error("malformed DID accepted")
	}
}
