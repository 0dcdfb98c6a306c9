// Package cache provides the content-addressed audio cache: deterministic
// key derivation from synthesis requests and a directory-backed store with
// atomic publishes, optional zstd compression and explicit maintenance
// operations (clear, prune, trim).
package cache
