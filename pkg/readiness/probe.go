package readiness

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/serve-tools/ollama-launcher/pkg/errors"
)

// ProbeKind selects the readiness check implementation.
type ProbeKind string

const (
	ProbeKindTCP  ProbeKind = "tcp"
	ProbeKindHTTP ProbeKind = "http"
)

// Policy decides what a readiness timeout means.
type Policy string

const (
	// PolicyStrict aborts the launcher when the server never becomes
	// ready. Provisioning would fail anyway against a dead server.
	PolicyStrict Policy = "strict"
	// PolicyLenient logs a warning and proceeds, letting provisioning
	// fail with its own diagnostics.
	PolicyLenient Policy = "lenient"
)

// Config is the readiness section of the launcher configuration.
type Config struct {
	Probe        ProbeKind     `yaml:"probe,omitempty" json:"probe,omitempty" toml:"probe,omitempty"`
	Path         string        `yaml:"path,omitempty" json:"path,omitempty" toml:"path,omitempty"`
	Interval     time.Duration `yaml:"interval,omitempty" json:"interval,omitempty" toml:"interval,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" toml:"timeout,omitempty"`
	ProbeTimeout time.Duration `yaml:"probe_timeout,omitempty" json:"probe_timeout,omitempty" toml:"probe_timeout,omitempty"`
	Policy       Policy        `yaml:"policy,omitempty" json:"policy,omitempty" toml:"policy,omitempty"`
}

// ValidateConfig validates the readiness section.
func ValidateConfig(config Config) error {
	switch config.Probe {
	case ProbeKindTCP, ProbeKindHTTP:
	default:
		return errors.NewValidationError("probe must be 'tcp' or 'http': "+string(config.Probe), nil)
	}
	switch config.Policy {
	case PolicyStrict, PolicyLenient:
	default:
		return errors.NewValidationError("policy must be 'strict' or 'lenient': "+string(config.Policy), nil)
	}
	if config.Interval <= 0 {
		return errors.NewValidationError("interval must be positive", nil)
	}
	if config.Timeout <= 0 {
		return errors.NewValidationError("timeout must be positive", nil)
	}
	if config.ProbeTimeout < 0 {
		return errors.NewValidationError("probe timeout cannot be negative", nil)
	}
	if config.Probe == ProbeKindHTTP && config.Path == "" {
		return errors.NewValidationError("path is required for the http probe", nil)
	}
	return nil
}

// Probe is a single transient readiness check with a boolean outcome and a
// human-readable message for diagnostics.
type Probe interface {
	Kind() ProbeKind
	Check(ctx context.Context) (bool, string)
}

// TCPProbe reports ready once a TCP connection to the address succeeds.
type TCPProbe struct {
	Address string
	Timeout time.Duration
}

func (p *TCPProbe) Kind() ProbeKind { return ProbeKindTCP }

func (p *TCPProbe) Check(ctx context.Context) (bool, string) {
	dialer := net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return false, fmt.Sprintf("TCP connection failed: %v", err)
	}
	defer conn.Close()
	return true, fmt.Sprintf("TCP connection successful to %s", p.Address)
}

// HTTPProbe reports ready once a GET to the URL returns any 2xx status.
type HTTPProbe struct {
	URL     string
	Timeout time.Duration

	client *http.Client
}

func (p *HTTPProbe) Kind() ProbeKind { return ProbeKindHTTP }

func (p *HTTPProbe) Check(ctx context.Context) (bool, string) {
	if p.client == nil {
		p.client = &http.Client{Timeout: p.Timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false, fmt.Sprintf("failed to create HTTP request: %v", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("HTTP request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, fmt.Sprintf("HTTP probe passed: %d %s", resp.StatusCode, resp.Status)
	}
	return false, fmt.Sprintf("HTTP probe failed: %d %s", resp.StatusCode, resp.Status)
}

// NewProbe builds the configured probe against host:port.
func NewProbe(config Config, host string, port int) (Probe, error) {
	probeTimeout := config.ProbeTimeout
	if probeTimeout == 0 {
		probeTimeout = 2 * time.Second
	}

	switch config.Probe {
	case ProbeKindTCP:
		return &TCPProbe{
			Address: net.JoinHostPort(host, fmt.Sprintf("%d", port)),
			Timeout: probeTimeout,
		}, nil
	case ProbeKindHTTP:
		return &HTTPProbe{
			URL:     fmt.Sprintf("http://%s%s", net.JoinHostPort(host, fmt.Sprintf("%d", port)), config.Path),
			Timeout: probeTimeout,
		}, nil
	default:
		return nil, errors.NewValidationError("unsupported probe kind: "+string(config.Probe), nil)
	}
}
