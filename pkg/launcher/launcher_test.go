package launcher

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serve-tools/ollama-launcher/pkg/errors"
	"github.com/serve-tools/ollama-launcher/pkg/logging"
	"github.com/serve-tools/ollama-launcher/pkg/process"
	"github.com/serve-tools/ollama-launcher/pkg/readiness"
)

func loggingNop() logging.Logger { return logging.NopLogger{} }

// fakeAPI imitates the serving process's API surface so lifecycle tests can
// run without the real binary. The "serving process" itself is stood in by
// a plain sleep command.
type fakeAPI struct {
	mu          sync.Mutex
	models      map[string]bool
	pulls       int
	creates     int
	versionHits int
	server      *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{models: make(map[string]bool)}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.versionHits++
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"version": "0.1.0"})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		models := []map[string]string{}
		for name := range f.models {
			models = append(models, map[string]string{"name": name})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"models": models})
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.pulls++
		f.models[req.Name+":latest"] = true
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	})
	mux.HandleFunc("/api/create", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.creates++
		f.models[req.Name+":latest"] = true
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) hostPort(t *testing.T) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(f.server.URL, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func (f *fakeAPI) counts() (pulls, creates, versionHits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulls, f.creates, f.versionHits
}

// freePort returns a port nothing listens on.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func testModelfile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Modelfile")
	require.NoError(t, os.WriteFile(path, []byte("FROM tinyllama\n"), 0o644))
	return path
}

func lifecycleConfig(t *testing.T, host string, port int) *Config {
	t.Helper()
	config := DefaultConfig()
	config.Server.Execution = process.ExecutionConfig{
		ExecutablePath: "sleep",
		Args:           []string{"60"},
	}
	config.Server.Host = host
	config.Server.Port = port
	config.Server.ShutdownGrace = 3 * time.Second
	config.Readiness.Interval = 30 * time.Millisecond
	config.Readiness.Timeout = 2 * time.Second
	config.Readiness.ProbeTimeout = 500 * time.Millisecond
	config.Provision.ModelfilePath = testModelfile(t)
	config.Provision.CallTimeout = 5 * time.Second
	return config
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("lifecycle tests use unix commands")
	}
}

func waitForState(t *testing.T, l *Launcher, want State, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if l.Status().State == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("launcher never reached state %s, current: %s", want, l.Status().State)
}

func TestRun_FullLifecycle(t *testing.T) {
	skipOnWindows(t)

	fake := newFakeAPI(t)
	host, port := fake.hostPort(t)
	config := lifecycleConfig(t, host, port)

	l, err := New(config, loggingNop())
	require.NoError(t, err)
	assert.Equal(t, StateInitial, l.Status().State)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	waitForState(t, l, StateReadyIdle, 5*time.Second)

	pulls, creates, versionHits := fake.counts()
	assert.Equal(t, 1, pulls)
	assert.Equal(t, 1, creates)
	assert.Positive(t, versionHits)

	snapshot := l.Status()
	assert.Positive(t, snapshot.PID)
	assert.Positive(t, snapshot.ProbeAttempts)
	assert.False(t, snapshot.ReadyAt.IsZero())

	// External stop: clean return and no orphan on the port.
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("launcher did not stop after cancellation")
	}

	assert.Eventually(t, func() bool {
		running, _ := process.IsRunning(snapshot.PID)
		return !running
	}, 3*time.Second, 50*time.Millisecond, "serving process left running")
}

func TestRun_SpawnFailure(t *testing.T) {
	skipOnWindows(t)

	fake := newFakeAPI(t)
	host, port := fake.hostPort(t)
	config := lifecycleConfig(t, host, port)
	config.Server.Execution.ExecutablePath = "definitely-not-a-real-serve-binary"

	l, err := New(config, loggingNop())
	require.NoError(t, err)

	err = l.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSpawn))
	assert.Equal(t, errors.ExitSpawn, errors.ExitCode(err))
	assert.Equal(t, StateFailed, l.Status().State)

	// Failed before any readiness poll.
	_, _, versionHits := fake.counts()
	assert.Zero(t, versionHits)
}

func TestRun_ReadinessTimeoutStrict(t *testing.T) {
	skipOnWindows(t)

	config := lifecycleConfig(t, "127.0.0.1", freePort(t))
	config.Readiness.Timeout = 150 * time.Millisecond
	config.Readiness.Interval = 30 * time.Millisecond

	l, err := New(config, loggingNop())
	require.NoError(t, err)

	start := time.Now()
	err = l.Run(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeReadinessTimeout))
	assert.Equal(t, errors.ExitReadinessTimeout, errors.ExitCode(err))
	assert.Contains(t, err.Error(), "server not ready after")
	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, StateFailed, l.Status().State)
}

func TestRun_LenientProceedsToProvisioning(t *testing.T) {
	skipOnWindows(t)

	config := lifecycleConfig(t, "127.0.0.1", freePort(t))
	config.Readiness.Timeout = 150 * time.Millisecond
	config.Readiness.Interval = 30 * time.Millisecond
	config.Readiness.Policy = readiness.PolicyLenient
	config.Provision.CallTimeout = time.Second

	l, err := New(config, loggingNop())
	require.NoError(t, err)

	err = l.Run(context.Background())
	require.Error(t, err)
	// Lenient mode moves past the timeout; the pull then fails on its own.
	assert.True(t, errors.IsType(err, errors.ErrorTypeModelPull))
	assert.Equal(t, errors.ExitModelPull, errors.ExitCode(err))
}

func TestRun_ChildExitDuringWait(t *testing.T) {
	skipOnWindows(t)

	config := lifecycleConfig(t, "127.0.0.1", freePort(t))
	config.Server.Execution = process.ExecutionConfig{
		ExecutablePath: "/bin/echo",
		Args:           []string{"done"},
	}
	config.Readiness.Timeout = 10 * time.Second

	start := time.Now()
	l, err := New(config, loggingNop())
	require.NoError(t, err)

	err = l.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProcessExit))
	// Fails on the child exit, not the 10s readiness deadline.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_ChildExitAfterReady(t *testing.T) {
	skipOnWindows(t)

	fake := newFakeAPI(t)
	host, port := fake.hostPort(t)
	config := lifecycleConfig(t, host, port)
	config.Server.Execution = process.ExecutionConfig{
		ExecutablePath: "/bin/sh",
		Args:           []string{"-c", "sleep 0.5"},
	}

	l, err := New(config, loggingNop())
	require.NoError(t, err)

	err = l.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProcessExit))
	assert.Equal(t, errors.ExitProcessExit, errors.ExitCode(err))
}

func TestProvision_Idempotent(t *testing.T) {
	fake := newFakeAPI(t)
	host, port := fake.hostPort(t)
	config := lifecycleConfig(t, host, port)

	l, err := New(config, loggingNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.provision(ctx))
	require.NoError(t, l.provision(ctx))

	pulls, creates, _ := fake.counts()
	// Second pull is skipped via the model listing; re-creating the same
	// alias is accepted by the server.
	assert.Equal(t, 1, pulls)
	assert.Equal(t, 2, creates)
}

func TestProvision_AlwaysPull(t *testing.T) {
	fake := newFakeAPI(t)
	host, port := fake.hostPort(t)
	config := lifecycleConfig(t, host, port)
	config.Provision.AlwaysPull = true

	l, err := New(config, loggingNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.provision(ctx))
	require.NoError(t, l.provision(ctx))

	pulls, _, _ := fake.counts()
	assert.Equal(t, 2, pulls)
}
