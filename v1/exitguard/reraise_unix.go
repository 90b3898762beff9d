//go:build unix

package exitguard

import (
	"os"
	"os/signal"
	"syscall"
)

// reraise restores default disposition and re-delivers the signal so the
// process terminates with the conventional exit status.
func reraise(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		os.Exit(1)
	}
	signal.Reset(sig)
	_ = syscall.Kill(os.Getpid(), s)
}
