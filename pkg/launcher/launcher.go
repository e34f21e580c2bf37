// Package launcher sequences the serving process lifecycle: spawn, poll
// readiness, provision the model and its alias, then keep the container
// alive by waiting on the child handle.
package launcher

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"github.com/serve-tools/ollama-launcher/pkg/errors"
	"github.com/serve-tools/ollama-launcher/pkg/logging"
	"github.com/serve-tools/ollama-launcher/pkg/ollama"
	"github.com/serve-tools/ollama-launcher/pkg/process"
	"github.com/serve-tools/ollama-launcher/pkg/readiness"
)

// Launcher owns at most one serving process per invocation.
type Launcher struct {
	config *Config
	logger logging.Logger
	client *ollama.Client

	mu            sync.Mutex
	state         State
	pid           int
	startedAt     time.Time
	readyAt       time.Time
	probeAttempts int
	lastErr       error
}

// New validates the configuration and returns a launcher in the initial
// state.
func New(config *Config, logger logging.Logger) (*Launcher, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return &Launcher{
		config: config,
		logger: logger,
		client: ollama.NewClient(config.Server.BaseURL(), logger),
		state:  StateInitial,
	}, nil
}

// Status returns a point-in-time snapshot for logs and the status endpoint.
func (l *Launcher) Status() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	snapshot := Snapshot{
		State:         l.state,
		PID:           l.pid,
		StartedAt:     l.startedAt,
		ReadyAt:       l.readyAt,
		ProbeAttempts: l.probeAttempts,
	}
	if l.lastErr != nil {
		snapshot.LastError = l.lastErr.Error()
	}
	return snapshot
}

func (l *Launcher) setState(state State) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
	l.logger.Infof("Launcher state: %s", state)
}

func (l *Launcher) fail(err error) error {
	l.mu.Lock()
	l.state = StateFailed
	l.lastErr = err
	l.mu.Unlock()
	l.logger.Errorf("Launcher failed: %v", err)
	return err
}

// Run executes the full lifecycle. It blocks until the serving process
// exits or ctx is cancelled (the external stop signal), and returns nil
// only for a clean externally-requested stop after reaching ready-idle.
func (l *Launcher) Run(ctx context.Context) error {
	// The spawn context is deliberately detached from ctx: cancellation
	// must first deliver a graceful group signal, with the hard kill held
	// back as the shutdown-grace fallback.
	spawnCtx, cancelSpawn := context.WithCancel(context.Background())
	defer cancelSpawn()

	l.setState(StateStarting)

	child, output, err := process.Spawn(spawnCtx, l.config.Server.Execution, "serve", l.logger)
	if err != nil {
		return l.fail(err)
	}

	l.mu.Lock()
	l.pid = child.PID()
	l.startedAt = time.Now()
	l.mu.Unlock()

	go l.forwardOutput(output)

	// Single watcher goroutine; everything below selects on exited.
	exited := make(chan struct{})
	var exitErr error
	go func() {
		exitErr = child.Wait()
		close(exited)
	}()

	// Readiness gate. A child that dies mid-wait cancels the poll loop so
	// the launcher fails with the process error, not a misleading timeout.
	l.setState(StateWaitingReady)

	waitCtx, cancelWait := context.WithCancel(ctx)
	go func() {
		select {
		case <-exited:
			cancelWait()
		case <-waitCtx.Done():
		}
	}()

	probe, err := readiness.NewProbe(l.config.Readiness, l.config.Server.Host, l.config.Server.Port)
	if err != nil {
		cancelWait()
		l.terminateChild(child, exited)
		return l.fail(err)
	}

	result, waitErr := readiness.Wait(waitCtx, probe, l.config.Readiness, l.logger)
	cancelWait()

	l.mu.Lock()
	l.probeAttempts = result.Attempts
	l.mu.Unlock()

	if waitErr != nil {
		if childExited(exited) {
			return l.fail(errors.NewProcessExitError("serving process exited during readiness wait", exitErr).
				WithContext("pid", child.PID()))
		}
		if ctx.Err() != nil {
			l.terminateChild(child, exited)
			return l.fail(waitErr)
		}
		if errors.IsType(waitErr, errors.ErrorTypeReadinessTimeout) &&
			l.config.Readiness.Policy == readiness.PolicyLenient {
			l.logger.Warnf("Proceeding despite readiness timeout (lenient policy): %v", waitErr)
		} else {
			l.terminateChild(child, exited)
			return l.fail(waitErr)
		}
	}

	// One-shot provisioning.
	l.setState(StateProvisioning)
	if err := l.provision(ctx); err != nil {
		l.terminateChild(child, exited)
		return l.fail(err)
	}

	l.mu.Lock()
	l.readyAt = time.Now()
	l.mu.Unlock()
	l.setState(StateReadyIdle)
	l.logger.Infof("Serving process is ready, PID: %d, keeping alive", child.PID())

	// Keep-alive: block on the child handle or the external stop.
	select {
	case <-exited:
		return l.fail(errors.NewProcessExitError("serving process exited unexpectedly", exitErr).
			WithContext("pid", child.PID()))
	case <-ctx.Done():
		l.logger.Infof("Termination requested, stopping serving process, PID: %d", child.PID())
		l.terminateChild(child, exited)
		l.logger.Infof("Serving process stopped")
		return nil
	}
}

// provision pulls the base model (skipped when already present, unless
// always_pull is set) and creates the alias from the Modelfile. Both calls
// are idempotent; each failure is fatal with its own error class.
func (l *Launcher) provision(ctx context.Context) error {
	provision := l.config.Provision

	callCtx := ctx
	if provision.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, provision.CallTimeout)
		defer cancel()
	}

	if provision.Model != "" {
		pull := true
		if !provision.AlwaysPull {
			has, err := l.client.Has(callCtx, provision.Model)
			if err != nil {
				l.logger.Warnf("Could not list models, pulling anyway: %v", err)
			} else if has {
				l.logger.Infof("Model already present, skipping pull: %s", provision.Model)
				pull = false
			}
		}
		if pull {
			if err := l.client.Pull(callCtx, provision.Model); err != nil {
				return err
			}
		}
	}

	if provision.Alias != "" {
		if err := l.client.Create(callCtx, provision.Alias, provision.ModelfilePath); err != nil {
			return err
		}
	}

	return nil
}

// terminateChild signals the child's process group and waits out the
// shutdown grace before falling back to the hard kill.
func (l *Launcher) terminateChild(child *process.Child, exited <-chan struct{}) {
	if childExited(exited) {
		return
	}

	if err := child.Terminate(); err != nil {
		l.logger.Warnf("Failed to signal serving process group: %v", err)
	}

	select {
	case <-exited:
	case <-time.After(l.config.Server.ShutdownGrace):
		l.logger.Warnf("Serving process did not stop within %v, killing", l.config.Server.ShutdownGrace)
		_ = child.Kill()
		<-exited
	}
}

func childExited(exited <-chan struct{}) bool {
	select {
	case <-exited:
		return true
	default:
		return false
	}
}

// forwardOutput streams the child's combined output through the launcher's
// logger, one line per entry.
func (l *Launcher) forwardOutput(output io.ReadCloser) {
	defer output.Close()
	scanner := bufio.NewScanner(output)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		l.logger.Infof("server> %s", scanner.Text())
	}
}
