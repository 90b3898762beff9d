// Package heartbeat keeps a held lock's marker fresh. While a session holds
// a lock, its scheduler periodically rewrites the marker's modification time
// so concurrent acquirers never judge it stale. The same tick doubles as a
// compromise detector: a marker that vanished or carries a timestamp this
// session did not write means the lock's protection has been lost.
package heartbeat
