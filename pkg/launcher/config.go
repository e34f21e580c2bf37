package launcher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/serve-tools/ollama-launcher/pkg/errors"
	"github.com/serve-tools/ollama-launcher/pkg/logging"
	"github.com/serve-tools/ollama-launcher/pkg/process"
	"github.com/serve-tools/ollama-launcher/pkg/readiness"
)

// Config is the full launcher configuration.
type Config struct {
	Server    ServerConfig      `yaml:"server" json:"server" toml:"server"`
	Readiness readiness.Config  `yaml:"readiness,omitempty" json:"readiness,omitempty" toml:"readiness,omitempty"`
	Provision ProvisionConfig   `yaml:"provision,omitempty" json:"provision,omitempty" toml:"provision,omitempty"`
	Logging   logging.ZapConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`
	Status    StatusConfig      `yaml:"status,omitempty" json:"status,omitempty" toml:"status,omitempty"`
}

// ServerConfig describes the serving process and where to reach it.
type ServerConfig struct {
	Execution     process.ExecutionConfig `yaml:"execution" json:"execution" toml:"execution"`
	Host          string                  `yaml:"host,omitempty" json:"host,omitempty" toml:"host,omitempty"`
	Port          int                     `yaml:"port,omitempty" json:"port,omitempty" toml:"port,omitempty"`
	ShutdownGrace time.Duration           `yaml:"shutdown_grace,omitempty" json:"shutdown_grace,omitempty" toml:"shutdown_grace,omitempty"`
}

// BaseURL is the server's API address derived from host and port.
func (s ServerConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

// ProvisionConfig names the one-shot setup work: the base model to pull
// and the alias to create from a Modelfile. Empty model or alias skips
// that step.
type ProvisionConfig struct {
	Model         string        `yaml:"model,omitempty" json:"model,omitempty" toml:"model,omitempty"`
	Alias         string        `yaml:"alias,omitempty" json:"alias,omitempty" toml:"alias,omitempty"`
	ModelfilePath string        `yaml:"modelfile_path,omitempty" json:"modelfile_path,omitempty" toml:"modelfile_path,omitempty"`
	CallTimeout   time.Duration `yaml:"call_timeout,omitempty" json:"call_timeout,omitempty" toml:"call_timeout,omitempty"`
	AlwaysPull    bool          `yaml:"always_pull,omitempty" json:"always_pull,omitempty" toml:"always_pull,omitempty"`
}

// StatusConfig enables the local status endpoint when Addr is set.
type StatusConfig struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty" toml:"addr,omitempty"`
}

// DefaultConfig returns the configuration matching the original deployment:
// "ollama serve" on 11434, strict 30s readiness via HTTP, tinyllama pulled
// and a paper-analyzer alias created from /app/Modelfile.
func DefaultConfig() *Config {
	config := &Config{}
	setConfigDefaults(config)
	return config
}

// LoadConfigFromFile loads the configuration, choosing the format by file
// extension (.yaml/.yml, .json, .toml), then applies defaults.
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config Config
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, errors.NewValidationError("failed to parse JSON configuration", err).WithContext("filename", filename)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, errors.NewValidationError("failed to parse TOML configuration", err).WithContext("filename", filename)
		}
	default:
		return nil, errors.NewValidationError("unsupported configuration extension: "+ext, nil).WithContext("filename", filename)
	}

	setConfigDefaults(&config)
	return &config, nil
}

func setConfigDefaults(config *Config) {
	if config.Server.Execution.ExecutablePath == "" {
		config.Server.Execution.ExecutablePath = "ollama"
		if config.Server.Execution.Args == nil {
			config.Server.Execution.Args = []string{"serve"}
		}
	}
	if config.Server.Execution.WaitDelay == 0 {
		config.Server.Execution.WaitDelay = 10 * time.Second
	}
	if config.Server.Host == "" {
		config.Server.Host = "127.0.0.1"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 11434
	}
	if config.Server.ShutdownGrace == 0 {
		config.Server.ShutdownGrace = 15 * time.Second
	}

	if config.Readiness.Probe == "" {
		config.Readiness.Probe = readiness.ProbeKindHTTP
	}
	if config.Readiness.Path == "" && config.Readiness.Probe == readiness.ProbeKindHTTP {
		config.Readiness.Path = "/api/version"
	}
	if config.Readiness.Interval == 0 {
		config.Readiness.Interval = time.Second
	}
	if config.Readiness.Timeout == 0 {
		config.Readiness.Timeout = 30 * time.Second
	}
	if config.Readiness.ProbeTimeout == 0 {
		config.Readiness.ProbeTimeout = 2 * time.Second
	}
	if config.Readiness.Policy == "" {
		config.Readiness.Policy = readiness.PolicyStrict
	}

	if config.Provision.Model == "" && config.Provision.Alias == "" {
		config.Provision.Model = "tinyllama"
		config.Provision.Alias = "paper-analyzer"
	}
	if config.Provision.Alias != "" && config.Provision.ModelfilePath == "" {
		config.Provision.ModelfilePath = "/app/Modelfile"
	}
	if config.Provision.CallTimeout == 0 {
		config.Provision.CallTimeout = 10 * time.Minute
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "console"
	}
}
