//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// setupProcessAttributes configures Windows-specific process attributes.
// The child runs in its own process group so CTRL_BREAK can be delivered
// to it without tearing down the launcher's console.
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
