package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "with field",
			err:  &ConfigError{Field: "BaseURL", Message: "must be absolute"},
			want: "config error in field BaseURL: must be absolute",
		},
		{
			name: "without field",
			err:  &ConfigError{Message: "config cannot be nil"},
			want: "config error: config cannot be nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *AuthError
		want string
	}{
		{
			name: "bare",
			err:  &AuthError{},
			want: "auth error",
		},
		{
			name: "status and body",
			err:  &AuthError{StatusCode: 401, Body: `{"error":"bad"}`},
			want: `auth error: status code 401, body: "{\"error\":\"bad\"}"`,
		},
		{
			name: "message only",
			err:  &AuthError{Message: "state mismatch"},
			want: "auth error: state mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &AuthError{Err: cause}

	if !errors.Is(err, cause) {
		t.Error("AuthError should unwrap to its cause")
	}
}

func TestStateErrorFormat(t *testing.T) {
	err := &StateError{Operation: "CompleteAuthorization", Message: "no authorization is pending"}
	want := "state error during CompleteAuthorization: no authorization is pending"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRequestErrorFormatAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &RequestError{Operation: "describeRepo", URL: "https://pds.example.com/xrpc/x", Err: cause}

	want := "request error during describeRepo to https://pds.example.com/xrpc/x: dial tcp: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("RequestError should unwrap to its cause")
	}
}

func TestAPIErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "structured",
			err:  &APIError{StatusCode: 400, Kind: "InvalidRequest", Message: "bad cursor"},
			want: "API error (status 400, kind InvalidRequest): bad cursor",
		},
		{
			name: "raw body",
			err:  &APIError{StatusCode: 502, Body: "<html>bad gateway</html>"},
			want: `API request failed with status 502: "<html>bad gateway</html>"`,
		},
		{
			name: "status only",
			err:  &APIError{StatusCode: 404},
			want: "API request failed with status 404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	apiErr := &APIError{StatusCode: 429, Kind: "RateLimitExceeded"}
	wrapped := fmt.Errorf("fetching profile: %w", apiErr)

	var target *APIError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As failed through wrapping")
	}
	if target.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", target.StatusCode)
	}
}
