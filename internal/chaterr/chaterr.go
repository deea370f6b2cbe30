// Package chaterr holds the error kinds surfaced by the chat integration.
package chaterr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBadHTTPMethod       = errors.New("bad HTTP method")
	ErrBadCredentials      = errors.New("bad credentials")
	ErrOAuthTokenRefused   = errors.New("oauth token refused")
	ErrFilesNotFound       = errors.New("files not found")
	ErrInvalidClientSecret = errors.New("invalid client secret")
	ErrTransport           = errors.New("transport error")

	ErrOAuthNotConfigured = errors.New("oauth not configured")
	ErrInvalidOAuthState  = errors.New("invalid oauth state")
	ErrNotAFile           = errors.New("not a file")
	ErrInvalidRequest     = errors.New("invalid request")
)

// TransportError carries a network or serialization failure from the HTTP client.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NewTransport wraps err as a TransportError.
func NewTransport(err error) error {
	return &TransportError{Err: err}
}

// Message returns the user-facing text for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBadHTTPMethod):
		return "Bad HTTP method"
	case errors.Is(err, ErrBadCredentials):
		return "Bad credentials"
	case errors.Is(err, ErrOAuthTokenRefused):
		return "OAuth access token refused"
	case errors.Is(err, ErrFilesNotFound):
		return "No file to send"
	case errors.Is(err, ErrInvalidClientSecret):
		return "Invalid client secret"
	case errors.Is(err, ErrOAuthNotConfigured):
		return "OAuth is not configured"
	case errors.Is(err, ErrInvalidOAuthState):
		return "Error during OAuth exchanges"
	case errors.Is(err, ErrNotAFile):
		return "Directories cannot be sent as a file"
	case errors.Is(err, ErrTransport):
		var te *TransportError
		if errors.As(err, &te) && te.Err != nil {
			return te.Err.Error()
		}
		return "Connection error"
	default:
		return err.Error()
	}
}

// HTTPStatus maps err to the status returned by the HTTP API.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrBadCredentials), errors.Is(err, ErrOAuthTokenRefused):
		return http.StatusUnauthorized
	case errors.Is(err, ErrFilesNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNotAFile), errors.Is(err, ErrInvalidOAuthState):
		return http.StatusBadRequest
	case errors.Is(err, ErrOAuthNotConfigured):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
