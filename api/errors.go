package api

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExpired means the refresh handshake failed and the local
	// session was cleared; the user has to log in again.
	ErrSessionExpired = errors.New("api: session expired")
	// ErrEmptyRecording rejects zero-byte uploads before any network work.
	ErrEmptyRecording = errors.New("api: recording is empty")
	// ErrUnsupportedFormat rejects file uploads whose extension maps to no
	// MIME type the backend accepts.
	ErrUnsupportedFormat = errors.New("api: unsupported audio format")
)

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("api: server returned %d: %s", e.Status, e.Body)
}

// NetError is a transport failure: the request never produced a response.
type NetError struct {
	Err error
}

func (e *NetError) Error() string {
	return fmt.Sprintf("api: request failed: %v", e.Err)
}

func (e *NetError) Unwrap() error { return e.Err }
