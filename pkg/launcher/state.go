package launcher

import (
	"time"
)

// State is the launcher's lifecycle state. The only steady states are
// StateReadyIdle (persists until external termination) and StateFailed.
type State string

const (
	StateInitial      State = "initial"
	StateStarting     State = "starting"
	StateWaitingReady State = "waiting_ready"
	StateProvisioning State = "provisioning"
	StateReadyIdle    State = "ready_idle"
	StateFailed       State = "failed"
)

// StateValue maps states to stable numeric codes for the metrics gauge.
func StateValue(s State) float64 {
	switch s {
	case StateInitial:
		return 0
	case StateStarting:
		return 1
	case StateWaitingReady:
		return 2
	case StateProvisioning:
		return 3
	case StateReadyIdle:
		return 4
	case StateFailed:
		return -1
	}
	return -2
}

// Snapshot is a point-in-time view of the launcher for logs and the status
// endpoint.
type Snapshot struct {
	State         State     `json:"state"`
	PID           int       `json:"pid,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	ReadyAt       time.Time `json:"ready_at,omitempty"`
	ProbeAttempts int       `json:"probe_attempts,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Uptime is the time since the serving process was spawned.
func (s Snapshot) Uptime(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}
