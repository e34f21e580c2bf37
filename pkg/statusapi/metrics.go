package statusapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/serve-tools/ollama-launcher/pkg/launcher"
)

// registerMetrics wires launcher state into a registry as pull-style
// gauges, so nothing needs to push updates from the control loop.
func registerMetrics(registry *prometheus.Registry, status StatusFunc) {
	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "launcher",
			Name:      "state",
			Help:      "Launcher lifecycle state (0 initial, 1 starting, 2 waiting_ready, 3 provisioning, 4 ready_idle, -1 failed)",
		},
		func() float64 {
			return launcher.StateValue(status().State)
		},
	))

	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "launcher",
			Name:      "server_uptime_seconds",
			Help:      "Seconds since the serving process was spawned",
		},
		func() float64 {
			return status().Uptime(time.Now()).Seconds()
		},
	))

	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "launcher",
			Name:      "readiness_probe_attempts",
			Help:      "Readiness probe attempts performed during the wait phase",
		},
		func() float64 {
			return float64(status().ProbeAttempts)
		},
	))
}
