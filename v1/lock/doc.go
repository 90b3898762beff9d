// Package lock defines a minimal key-based locking contract with
// file-backed, in-memory and Redis implementations. The file backend wraps
// the latch engine and is the reference implementation; the others offer the
// same TryLock/Acquire/Release surface for callers that already run the
// corresponding infrastructure. Locks can have an optional TTL to avoid
// deadlocks.
package lock
