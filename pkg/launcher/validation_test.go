package launcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/serve-tools/ollama-launcher/pkg/errors"
	"github.com/serve-tools/ollama-launcher/pkg/readiness"
)

func validTestConfig() *Config {
	config := DefaultConfig()
	// A bare name keeps validation independent of an installed binary.
	config.Server.Execution.ExecutablePath = "ollama"
	return config
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{name: "valid defaults", mutate: func(c *Config) {}, expectError: false},
		{name: "nil-safe provisioning skip", mutate: func(c *Config) {
			c.Provision.Model = ""
			c.Provision.Alias = ""
			c.Provision.ModelfilePath = ""
		}, expectError: false},
		{name: "missing executable", mutate: func(c *Config) { c.Server.Execution.ExecutablePath = "" }, expectError: true},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }, expectError: true},
		{name: "zero port", mutate: func(c *Config) { c.Server.Port = 0 }, expectError: true},
		{name: "empty host", mutate: func(c *Config) { c.Server.Host = "" }, expectError: true},
		{name: "bad probe kind", mutate: func(c *Config) { c.Readiness.Probe = "icmp" }, expectError: true},
		{name: "bad policy", mutate: func(c *Config) { c.Readiness.Policy = "hopeful" }, expectError: true},
		{name: "alias without modelfile", mutate: func(c *Config) {
			c.Provision.Alias = "paper-analyzer"
			c.Provision.ModelfilePath = ""
		}, expectError: true},
		{name: "negative call timeout", mutate: func(c *Config) { c.Provision.CallTimeout = -1 }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validTestConfig()
			tt.mutate(config)
			err := ValidateConfig(config)
			if tt.expectError {
				assert.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	assert.Error(t, ValidateConfig(nil))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	config := validTestConfig()
	config.Readiness.Policy = readiness.Policy("hopeful")

	_, err := New(config, loggingNop())
	assert.Error(t, err)
}
