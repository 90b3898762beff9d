// Package latch implements advisory, cross-process file locking. A lock is
// represented on disk by a marker next to the target resource: a directory
// for plain exclusive locks (mkdir atomicity is the mutual-exclusion
// primitive) or a JSON record for shared/exclusive holder sets. Held locks
// are kept alive by a heartbeat that refreshes the marker's modification
// time; markers whose holder stopped heartbeating become stale and are
// reclaimed by the next acquirer.
//
// The coordination point is the filesystem itself, so independent processes,
// including processes on different machines sharing a filesystem, need no
// central coordinator. The design favors correctness over lock churn.
package latch
