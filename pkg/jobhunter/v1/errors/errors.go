package errors

import (
	"errors"
	"fmt"
)

// --- Core Error Types ---

// ConfigError represents an error encountered while loading, parsing,
// or validating a pipeline definition or the runtime settings.
type ConfigError struct {
	Message string
	Cause   error
}

func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{Message: message, Cause: cause}
}
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}
func (e *ConfigError) Unwrap() error { return e.Cause }

// ValidationError indicates that some input (pipeline structure, worker
// parameters, document type) failed validation checks.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
func (e *ValidationError) Unwrap() error { return e.Cause }

// ListenerError is recorded when a state listener fails (returns an error or
// panics) while being notified of a write. The store never returns it to the
// writer; it is logged and published on the event bus instead.
type ListenerError struct {
	Key           string
	ApplicationID string // Empty for the global namespace.
	Listener      string // Dynamic type of the failing listener.
	Cause         error
}

func NewListenerError(key, applicationID, listener string, cause error) *ListenerError {
	return &ListenerError{Key: key, ApplicationID: applicationID, Listener: listener, Cause: cause}
}
func (e *ListenerError) Error() string {
	scope := "global"
	if e.ApplicationID != "" {
		scope = fmt.Sprintf("application '%s'", e.ApplicationID)
	}
	return fmt.Sprintf("listener %s failed for key '%s' (%s): %v", e.Listener, e.Key, scope, e.Cause)
}
func (e *ListenerError) Unwrap() error { return e.Cause }

// StageExecutionError represents a fatal error raised while a pipeline stage
// was running its worker.
type StageExecutionError struct {
	Stage  string
	Worker string
	Cause  error
}

func NewStageExecutionError(stage, worker string, cause error) *StageExecutionError {
	return &StageExecutionError{Stage: stage, Worker: worker, Cause: cause}
}
func (e *StageExecutionError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("worker '%s' execution failed: %v", e.Worker, e.Cause)
	}
	return fmt.Sprintf("stage '%s' (worker '%s') execution failed: %v", e.Stage, e.Worker, e.Cause)
}
func (e *StageExecutionError) Unwrap() error { return e.Cause }

// WorkerNotFoundError indicates that a stage references a worker type that is
// not present in the worker registry.
type WorkerNotFoundError struct {
	Name string
}

func NewWorkerNotFoundError(name string) *WorkerNotFoundError {
	return &WorkerNotFoundError{Name: name}
}
func (e *WorkerNotFoundError) Error() string {
	return fmt.Sprintf("worker not found: %s", e.Name)
}

// SnapshotNotFoundError is returned by session repositories when no snapshot
// is stored under the requested id.
type SnapshotNotFoundError struct {
	ID string
}

func NewSnapshotNotFoundError(id string) *SnapshotNotFoundError {
	return &SnapshotNotFoundError{ID: id}
}
func (e *SnapshotNotFoundError) Error() string {
	return fmt.Sprintf("session snapshot '%s' not found", e.ID)
}

// IsSnapshotNotFound checks if an error is a SnapshotNotFoundError using errors.As.
func IsSnapshotNotFound(err error) bool {
	var nf *SnapshotNotFoundError
	return errors.As(err, &nf)
}
