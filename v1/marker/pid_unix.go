//go:build unix

package marker

import (
	"os"
	"syscall"
)

// pidAlive probes a process with signal 0, which performs the permission and
// existence checks without delivering anything. EPERM means the process
// exists but belongs to someone else, so it counts as alive.
func pidAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
