// Package transport defines the request/response contract between
// authentication strategies and an auth backend. The backend may be a
// real HTTP service (Client) or the in-process simulator in mockbackend.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
)

// Method is the subset of HTTP methods the auth endpoints use.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// Endpoints consumed by the authentication strategies.
const (
	EndpointLogin   = "/auth/login"
	EndpointRefresh = "/auth/refresh"
	EndpointLogout  = "/auth/logout"
	EndpointSession = "/auth/session"

	EndpointOAuth2Token  = "/oauth2/token"
	EndpointOAuth2Revoke = "/oauth2/revoke"
)

// Error codes carried in the envelope Error field. Strategies switch on
// these to map backend rejections onto the local error taxonomy.
const (
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeSessionExpired     = "session_expired"
	ErrCodeInvalidToken       = "invalid_token"
	ErrCodeInvalidGrant       = "invalid_grant"
	ErrCodeRateLimited        = "rate_limited"
)

// Requester sends a request to the auth backend and returns the
// envelope-wrapped response. Implementations must honor ctx cancellation.
type Requester interface {
	Request(ctx context.Context, endpoint string, method Method, body []byte, headers map[string]string) (*Response, error)
}

// Response is the envelope every auth endpoint wraps its payload in.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Decode unmarshals the envelope payload into v.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return &Error{Err: fmt.Errorf("response has no data payload")}
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return &Error{Err: fmt.Errorf("decode payload: %w", err)}
	}
	return nil
}

// Error wraps a transport-level failure: the request never completed, or
// the backend answered with something that is not a valid envelope.
type Error struct {
	Endpoint string
	Status   int // HTTP status when known, 0 otherwise
	Err      error
}

func (e *Error) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
