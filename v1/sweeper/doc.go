// Package sweeper runs the background expiry pass of warp-kv. On every tick
// it removes the entries whose creation time is older than the configured
// TTL. A failed tick is logged and the next tick acts as the retry. The loop
// stops when its context is cancelled.
package sweeper
