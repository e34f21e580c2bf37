package process

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/serve-tools/ollama-launcher/pkg/errors"
	"github.com/serve-tools/ollama-launcher/pkg/logging"
)

// ExecutionConfig describes how to launch the serving binary.
type ExecutionConfig struct {
	ExecutablePath   string        `yaml:"executable_path" json:"executable_path" toml:"executable_path"`
	Args             []string      `yaml:"args,omitempty" json:"args,omitempty" toml:"args,omitempty"`
	Environment      []string      `yaml:"environment,omitempty" json:"environment,omitempty" toml:"environment,omitempty"`
	WorkingDirectory string        `yaml:"working_directory,omitempty" json:"working_directory,omitempty" toml:"working_directory,omitempty"`
	WaitDelay        time.Duration `yaml:"wait_delay,omitempty" json:"wait_delay,omitempty" toml:"wait_delay,omitempty"`
}

// Child is a handle on the spawned serving process. The launcher owns at
// most one Child per invocation.
type Child struct {
	cmd *exec.Cmd
	id  string
}

// PID returns the OS process id of the child.
func (c *Child) PID() int {
	return c.cmd.Process.Pid
}

// Wait blocks until the child exits and returns its exit error, if any.
// This is the launcher's keep-alive point: waiting on the handle means a
// child exit wakes the launcher immediately, and launcher termination is
// free to signal the whole process group.
func (c *Child) Wait() error {
	return c.cmd.Wait()
}

// Terminate signals the child's process group so the entire tree stops,
// leaving nothing listening on the serving port.
func (c *Child) Terminate() error {
	if c.cmd.Process == nil {
		return nil
	}
	return SendTerminationSignal(c.cmd.Process.Pid)
}

// Kill forcibly terminates the child. Last resort after Terminate and the
// grace period.
func (c *Child) Kill() error {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Kill()
}

// Spawn starts the serving binary as a background child in its own process
// group. It returns the child handle and a combined stdout+stderr pipe for
// log forwarding. Spawn failures are fatal to the launcher.
func Spawn(ctx context.Context, execution ExecutionConfig, id string, logger logging.Logger) (*Child, io.ReadCloser, error) {
	if ctx == nil {
		return nil, nil, errors.NewValidationError("context cannot be nil", nil).WithContext("id", id)
	}

	if err := ValidateExecutionConfig(execution); err != nil {
		logger.Errorf("Execution configuration validation failed, id: %s, error: %v", id, err)
		return nil, nil, errors.NewValidationError("invalid execution configuration", err).WithContext("id", id)
	}

	// A bare binary name like "ollama" resolves through PATH.
	executablePath, err := resolveExecutable(execution.ExecutablePath)
	if err != nil {
		return nil, nil, errors.NewSpawnError("executable not found", err).
			WithContext("id", id).
			WithContext("executable_path", execution.ExecutablePath)
	}

	env := os.Environ()
	env = append(env, execution.Environment...)

	cmd := exec.CommandContext(ctx, executablePath, execution.Args...)
	cmd.Env = env
	if execution.WorkingDirectory != "" {
		cmd.Dir = execution.WorkingDirectory
	}

	// Platform-specific setup lives in execute_unix.go / execute_windows.go.
	setupProcessAttributes(cmd)

	// Grace period between the interrupt and the kill on context cancel.
	cmd.WaitDelay = execution.WaitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, errors.NewSpawnError("failed to create stdout pipe", err).
			WithContext("id", id).
			WithContext("executable_path", executablePath)
	}
	cmd.Stderr = cmd.Stdout

	logger.Infof("Spawning serving process, id: %s, path: %s, args: %v", id, executablePath, execution.Args)

	if err := cmd.Start(); err != nil {
		return nil, nil, errors.NewSpawnError("failed to start the serving process", err).
			WithContext("id", id).
			WithContext("executable_path", executablePath)
	}

	logger.Infof("Spawned serving process, id: %s, PID: %d", id, cmd.Process.Pid)

	return &Child{cmd: cmd, id: id}, stdout, nil
}

// resolveExecutable makes a runnable path out of the configured one:
// absolute and relative paths are used as-is, bare names go through PATH.
func resolveExecutable(path string) (string, error) {
	if filepath.Base(path) != path {
		return path, nil
	}
	return exec.LookPath(path)
}
