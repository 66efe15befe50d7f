// Package errors defines the sentinel errors shared by every warp-kv layer.
// Callers test for them with the standard errors.Is.
package errors

import "errors"

var (
	// ErrNotFound reports a cache miss. It is a normal outcome, not a failure.
	ErrNotFound = errors.New("warpkv: not found")
	// ErrInvalidKey is returned when a request carries an empty key.
	ErrInvalidKey = errors.New("warpkv: invalid key")
	// ErrStore wraps any persistence failure.
	ErrStore = errors.New("warpkv: store failure")
	// ErrConfig reports invalid startup configuration.
	ErrConfig = errors.New("warpkv: invalid configuration")

	ErrTimeout          = errors.New("timeout")
	ErrConnectionClosed = errors.New("connection closed")
)
