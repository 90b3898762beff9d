// Package fsx defines the narrow filesystem surface the locking core relies
// on, with a real-OS adapter and an in-memory fake. Injecting the interface
// lets tests simulate slow, coarse-grained or faulty filesystems without
// touching the disk.
package fsx
