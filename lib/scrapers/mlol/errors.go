package mlol

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginFailed means the cookie login was rejected for every
	// library id that was attempted.
	ErrLoginFailed = errors.New("mlol: login failed")
	// ErrNotAuthenticated is returned by operations that need the web
	// session when the client is anonymous.
	ErrNotAuthenticated = errors.New("mlol: not authenticated")
	// ErrAPIUnavailable means the web login succeeded but no API token
	// could be obtained, so API-channel operations cannot proceed.
	ErrAPIUnavailable = errors.New("mlol: api channel unavailable")
	// ErrNotFound marks an expected lookup that came up empty, such as
	// a loan id missing from the active-loans listing.
	ErrNotFound = errors.New("mlol: not found")
	// ErrUnknownOutcome means the server response matched no known
	// success or failure marker; treated as failure rather than
	// guessing.
	ErrUnknownOutcome = errors.New("mlol: unknown outcome")
)

// StatusError is a precondition violation: the operation is only valid
// for books in Want state. No request is sent when it is returned.
type StatusError struct {
	Op   string
	Want BookStatus
	Got  BookStatus
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mlol: %s requires status %q, book has %q", e.Op, e.Want, e.Got)
}

// HTTPError is a response that still had a failing status after the
// retry budget was exhausted.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("mlol: %s %s: status %d", e.Method, e.URL, e.StatusCode)
}
