// Package core implements the warp-kv cache service: request validation on
// top of a Store and the mapping of store outcomes onto the error taxonomy
// in package errors.
package core
