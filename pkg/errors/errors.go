package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies launcher failures. Each type maps to a distinct
// process exit code so supervisors can tell the stages apart.
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeSpawn            ErrorType = "spawn"
	ErrorTypeReadinessTimeout ErrorType = "readiness_timeout"
	ErrorTypeModelPull        ErrorType = "model_pull"
	ErrorTypeAliasCreate      ErrorType = "alias_create"
	ErrorTypeProcessExit      ErrorType = "process_exit"
	ErrorTypeIO               ErrorType = "io"
	ErrorTypeNetwork          ErrorType = "network"
	ErrorTypeInternal         ErrorType = "internal"
)

// Process exit codes per failure class. Zero is reserved for a clean stop
// after the launcher reached its ready-idle state.
const (
	ExitOK               = 0
	ExitInternal         = 1
	ExitValidation       = 2
	ExitSpawn            = 3
	ExitReadinessTimeout = 4
	ExitModelPull        = 5
	ExitAliasCreate      = 6
	ExitProcessExit      = 7
)

var exitCodes = map[ErrorType]int{
	ErrorTypeValidation:       ExitValidation,
	ErrorTypeSpawn:            ExitSpawn,
	ErrorTypeReadinessTimeout: ExitReadinessTimeout,
	ErrorTypeModelPull:        ExitModelPull,
	ErrorTypeAliasCreate:      ExitAliasCreate,
	ErrorTypeProcessExit:      ExitProcessExit,
	ErrorTypeIO:               ExitInternal,
	ErrorTypeNetwork:          ExitInternal,
	ErrorTypeInternal:         ExitInternal,
}

// DomainError is a structured error with a type and free-form context.
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on error type, so callers can compare against a prototype
// error of the same class.
func (e *DomainError) Is(target error) bool {
	if other, ok := target.(*DomainError); ok {
		return e.Type == other.Type
	}
	return false
}

// WithContext attaches a key/value pair to the error for diagnostics.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

func NewValidationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, cause)
}

func NewSpawnError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeSpawn, message, cause)
}

func NewReadinessTimeoutError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeReadinessTimeout, message, cause)
}

func NewModelPullError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeModelPull, message, cause)
}

func NewAliasCreateError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeAliasCreate, message, cause)
}

func NewProcessExitError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeProcessExit, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeIO, message, cause)
}

func NewNetworkError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeNetwork, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeInternal, message, cause)
}

// ExitCode returns the process exit code for an error. A nil error maps to
// ExitOK; errors without a DomainError in their chain map to ExitInternal.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if code, ok := exitCodes[domainErr.Type]; ok {
			return code
		}
	}
	return ExitInternal
}

// GetErrorType extracts the error type from an error chain.
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether the error chain contains a DomainError of the
// given type.
func IsType(err error, errorType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errorType
	}
	return false
}
