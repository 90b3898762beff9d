// Package mtime probes how finely a filesystem stores modification times.
// Network and older filesystems round mtimes to whole seconds, which matters
// when a heartbeat compares the timestamp it wrote against the one it reads
// back. The probe result is cached process-wide after the first measurement.
package mtime
