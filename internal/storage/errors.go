// Package storage persists per-user calibration documents to a remote backend
// with a local SQLite fallback.
package storage

import "errors"

// Remote error taxonomy. Backends wrap their native failures with one of these
// so the Store can decide how to fall back without inspecting messages.
var (
	// ErrPermissionDenied disables the remote backend for the Store's lifetime.
	ErrPermissionDenied = errors.New("remote permission denied")
	// ErrTransient falls back for the current call only.
	ErrTransient = errors.New("remote temporarily unavailable")
	// ErrNotFound means the backend has no document under the key.
	ErrNotFound = errors.New("document not found")
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
)
