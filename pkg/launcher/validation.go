package launcher

import (
	"github.com/serve-tools/ollama-launcher/pkg/errors"
	"github.com/serve-tools/ollama-launcher/pkg/process"
	"github.com/serve-tools/ollama-launcher/pkg/readiness"
)

// ValidateConfig validates the whole launcher configuration before any
// process is spawned.
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return errors.NewValidationError("invalid server configuration", err)
	}

	if err := readiness.ValidateConfig(config.Readiness); err != nil {
		return errors.NewValidationError("invalid readiness configuration", err)
	}

	if err := validateProvisionConfig(&config.Provision); err != nil {
		return errors.NewValidationError("invalid provision configuration", err)
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	if err := process.ValidateExecutionConfig(config.Execution); err != nil {
		return err
	}
	if config.Port <= 0 || config.Port > 65535 {
		return errors.NewValidationError("port must be between 1 and 65535", nil)
	}
	if config.Host == "" {
		return errors.NewValidationError("host cannot be empty", nil)
	}
	if config.ShutdownGrace < 0 {
		return errors.NewValidationError("shutdown grace cannot be negative", nil)
	}
	return nil
}

func validateProvisionConfig(config *ProvisionConfig) error {
	if config.Alias != "" && config.ModelfilePath == "" {
		return errors.NewValidationError("modelfile path is required when an alias is configured", nil)
	}
	if config.CallTimeout < 0 {
		return errors.NewValidationError("call timeout cannot be negative", nil)
	}
	return nil
}
