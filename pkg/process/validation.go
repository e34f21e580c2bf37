package process

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/serve-tools/ollama-launcher/pkg/errors"
)

// ValidateExecutionConfig validates the serving binary's execution config.
// A bare binary name is allowed; PATH resolution happens at spawn time.
func ValidateExecutionConfig(config ExecutionConfig) error {
	if config.ExecutablePath == "" {
		return errors.NewValidationError("executable path is required", nil)
	}

	// Absolute and relative paths must exist up front; bare names are
	// deferred to PATH lookup.
	if filepath.Base(config.ExecutablePath) != config.ExecutablePath {
		if _, err := os.Stat(config.ExecutablePath); os.IsNotExist(err) {
			return errors.NewValidationError("executable not found: "+config.ExecutablePath, err)
		}
	}

	if config.WorkingDirectory != "" {
		if !filepath.IsAbs(config.WorkingDirectory) {
			return errors.NewValidationError("working directory must be absolute path", nil)
		}
		if info, err := os.Stat(config.WorkingDirectory); err != nil {
			return errors.NewValidationError("working directory not accessible: "+config.WorkingDirectory, err)
		} else if !info.IsDir() {
			return errors.NewValidationError("working directory is not a directory: "+config.WorkingDirectory, nil)
		}
	}

	for _, env := range config.Environment {
		if !strings.Contains(env, "=") {
			return errors.NewValidationError("invalid environment variable format: "+env, nil)
		}
	}

	if config.WaitDelay < 0 {
		return errors.NewValidationError("wait delay cannot be negative", nil)
	}

	return nil
}
