package internal

import (
	"fmt"
	"strings"

	pkgerrs "github.com/atwrap/go-bluesky-api-wrapper/pkg/errors"
)

const (
	// Handle constraints per the protocol's hostname-based handle syntax.
	maxHandleLength  = 253
	maxSegmentLength = 63

	// DID constraints.
	didPrefix    = "did:"
	maxDIDLength = 2048
)

// IsDID reports whether the identifier is a DID rather than a handle.
func IsDID(identifier string) bool {
	return strings.HasPrefix(identifier, didPrefix)
}

// Validator provides syntax checks for actor identifiers so malformed input
// is rejected before any network call.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateIdentifier checks an at-identifier: either a DID or a handle.
func (v *Validator) ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return &pkgerrs.ConfigError{Field: "identifier", Message: "identifier cannot be empty"}
	}
	if IsDID(identifier) {
		return v.ValidateDID(identifier)
	}
	return v.ValidateHandle(identifier)
}

// ValidateDID checks the did:method:identifier shape.
func (v *Validator) ValidateDID(did string) error {
	if !strings.HasPrefix(did, didPrefix) {
		return &pkgerrs.ConfigError{Field: "did", Message: "DID must start with \"did:\""}
	}
	if len(did) > maxDIDLength {
		return &pkgerrs.ConfigError{Field: "did", Message: fmt.Sprintf("DID cannot exceed %d characters", maxDIDLength)}
	}

	rest := did[len(didPrefix):]
	method, identifier, found := strings.Cut(rest, ":")
	if !found || identifier == "" {
		return &pkgerrs.ConfigError{Field: "did", Message: "DID must have the form did:method:identifier"}
	}
	if method == "" {
		return &pkgerrs.ConfigError{Field: "did", Message: "DID method cannot be empty"}
	}
	for i, ch := range method {
		if !(ch >= 'a' && ch <= 'z') && !(ch >= '0' && ch <= '9') {
			return &pkgerrs.ConfigError{Field: "did", Message: fmt.Sprintf("DID method contains invalid character '%c' at position %d", ch, i)}
		}
	}
	return nil
}

// ValidateHandle checks the dotted hostname form handles use.
func (v *Validator) ValidateHandle(handle string) error {
	if handle == "" {
		return &pkgerrs.ConfigError{Field: "handle", Message: "handle cannot be empty"}
	}
	if len(handle) > maxHandleLength {
		return &pkgerrs.ConfigError{Field: "handle", Message: fmt.Sprintf("handle cannot exceed %d characters", maxHandleLength)}
	}

	segments := strings.Split(handle, ".")
	if len(segments) < 2 {
		return &pkgerrs.ConfigError{Field: "handle", Message: "handle must contain at least two dot-separated segments"}
	}

	for _, segment := range segments {
		if segment == "" {
			return &pkgerrs.ConfigError{Field: "handle", Message: "handle cannot contain empty segments"}
		}
		if len(segment) > maxSegmentLength {
			return &pkgerrs.ConfigError{Field: "handle", Message: fmt.Sprintf("handle segment cannot exceed %d characters", maxSegmentLength)}
		}
		if segment[0] == '-' || segment[len(segment)-1] == '-' {
			return &pkgerrs.ConfigError{Field: "handle", Message: "handle segment cannot start or end with a hyphen"}
		}
		for i, ch := range segment {
			if !(ch >= 'a' && ch <= 'z') && !(ch >= 'A' && ch <= 'Z') && !(ch >= '0' && ch <= '9') && ch != '-' {
				return &pkgerrs.ConfigError{Field: "handle", Message: fmt.Sprintf("handle contains invalid character '%c' at position %d", ch, i)}
			}
		}
	}
	return nil
}
