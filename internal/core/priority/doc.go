// Package priority assigns load balancer routing-rule priorities to apps.
//
// This package is part of the functional core. Assignment is a pure function
// of the app name: no I/O, no randomness, no shared state. It may be called
// from any number of goroutines.
//
// # Algorithm
//
// The name's bytes are hashed with an explicitly named, stable hash family and
// reduced into [1, MaxPriority]:
//
//	priority = hash(name) mod MaxPriority + 1
//
// Supported hash families:
//
//   - fnv1a32: 32-bit FNV-1a (default)
//   - xxhash64: 64-bit XXH64 with seed 0
//   - sha256: first 8 bytes of the SHA-256 digest, big-endian
//
// # Collisions
//
// Distinct names can map to the same priority. The assigner does not detect
// this; the plan builder (internal/core/deployment) checks the full set of
// assigned priorities and rejects the plan on a collision.
//
// # Usage
//
//	a, err := priority.New(priority.DefaultConfig())
//	p, err := a.Assign("chat-app")
package priority
