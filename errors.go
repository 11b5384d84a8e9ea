package avanza

import (
	"errors"
	"fmt"
	"strings"
)

// Authentication failures.
var (
	ErrMissingCredentials      = errors.New("username and password are required")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrSecondFactorRejected    = errors.New("second factor rejected")
	ErrSecondFactorExpired     = errors.New("second factor expired")
	ErrUnsupportedSecondFactor = errors.New("unsupported second factor method")
)

// Operation failures.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
)

const maxErrorBody = 500

// TransportError is returned for anything that went wrong on the wire:
// connection failures, timeouts, cancellation and non-2xx statuses.
// StatusCode is zero when no response was received.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	Err        error

	// Response is set for non-2xx statuses so callers can classify them.
	Response *Response
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Response != nil:
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, truncate(string(e.Body)))
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a field whose JSON value could not be lifted into the
// expected type. Field is the dotted path from the document root.
type DecodeError struct {
	Field string
	Raw   string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("malformed response: field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("malformed response: field %q = %s: %v", e.Field, truncate(e.Raw), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// AuthError is returned by Authenticate. Kind is one of the authentication
// sentinels, or nil when Err is a *TransportError.
type AuthError struct {
	Kind error
	Err  error
}

func (e *AuthError) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("authenticate: %v: %v", e.Kind, e.Err)
	case e.Kind != nil:
		return "authenticate: " + e.Kind.Error()
	default:
		return fmt.Sprintf("authenticate: %v", e.Err)
	}
}

func (e *AuthError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	// Missing credentials are a form of invalid credentials.
	if e.Kind == ErrMissingCredentials {
		errs = append(errs, ErrInvalidCredentials)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// APIError is returned by every authenticated operation. Op names the
// operation, e.g. "get positions".
type APIError struct {
	Op  string
	Err error
}

func (e *APIError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *APIError) Unwrap() error { return e.Err }

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
