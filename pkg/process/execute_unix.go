//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setupProcessAttributes configures Unix-specific process attributes.
// The child gets its own process group so a single signal to -pid reaches
// the serving binary and anything it forked.
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
