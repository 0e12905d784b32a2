package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse means a 2xx response body could not be decoded.
var ErrMalformedResponse = errors.New("client: malformed response")

// Result is the outcome of Login, Signup and AdminLogin.
type Result struct {
	Success bool
	Message string
}

// APIError is a non-2xx response from the auth API.
type APIError struct {
	StatusCode int
	// Message is the server's "error" text, possibly empty.
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// IsUnauthorized means the session is gone and the user must log in.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsForbidden means the user is logged in but not allowed.
func (e *APIError) IsForbidden() bool {
	return e.StatusCode == http.StatusForbidden
}

// UserMessage is display text for the failure.
func (e *APIError) UserMessage() string {
	if e.IsForbidden() {
		return "You are not authorized to perform this action"
	}
	return "Something went wrong"
}

// UserMessage returns display text for any error returned by the supplemental
// reads.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return "Something went wrong"
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsUnauthorized()
}
