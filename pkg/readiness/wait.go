package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/serve-tools/ollama-launcher/pkg/errors"
	"github.com/serve-tools/ollama-launcher/pkg/logging"
)

// Result carries partial-progress diagnostics out of the wait loop, so a
// timeout can name the elapsed wait and attempt count instead of failing
// silently.
type Result struct {
	Ready       bool
	Attempts    int
	Elapsed     time.Duration
	LastMessage string
}

// Wait polls the probe at a fixed interval until it succeeds, the wall-clock
// deadline passes, or the context is cancelled. The first check happens
// immediately, so a server that is already up costs no full interval. The
// deadline is checked each iteration rather than delegated to an outer
// timeout wrapper.
func Wait(ctx context.Context, probe Probe, config Config, logger logging.Logger) (Result, error) {
	start := time.Now()
	deadline := start.Add(config.Timeout)

	var result Result

	logger.Infof("Waiting for readiness, probe: %s, interval: %v, timeout: %v",
		probe.Kind(), config.Interval, config.Timeout)

	for {
		result.Attempts++
		ok, message := probe.Check(ctx)
		result.Elapsed = time.Since(start)
		result.LastMessage = message

		if ok {
			result.Ready = true
			logger.Infof("Server is ready, attempts: %d, elapsed: %v", result.Attempts, result.Elapsed)
			return result, nil
		}

		logger.Debugf("Not ready yet, attempt: %d, elapsed: %v, message: %s",
			result.Attempts, result.Elapsed, message)

		if time.Now().After(deadline) {
			return result, errors.NewReadinessTimeoutError(
				fmt.Sprintf("server not ready after %v (%d attempts)",
					result.Elapsed.Round(time.Millisecond), result.Attempts), nil).
				WithContext("last_message", message).
				WithContext("timeout", config.Timeout.String())
		}

		select {
		case <-time.After(config.Interval):
		case <-ctx.Done():
			result.Elapsed = time.Since(start)
			return result, errors.NewInternalError("readiness wait cancelled", ctx.Err()).
				WithContext("elapsed", result.Elapsed.String())
		}
	}
}
