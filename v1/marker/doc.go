// Package marker manages the on-disk objects that represent claimed locks.
// A directory marker relies on mkdir atomicity for exclusive claims; a record
// marker is a JSON file listing shared readers and an optional writer. The
// package also owns the staleness policy that decides when a marker left by a
// crashed process may be reclaimed.
package marker
