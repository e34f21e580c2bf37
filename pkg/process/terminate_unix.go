//go:build !windows

package process

import (
	"syscall"
)

// SendTerminationSignal sends SIGTERM to the child's process group
// (negative PID) so the entire process tree is asked to stop.
func SendTerminationSignal(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}
