// Package cache defines the value types shared by every warp-kv layer: the
// Entry returned by a lookup and the second-resolution UTC Timestamp used for
// created_at both on the wire and in storage.
package cache
