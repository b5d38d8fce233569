package errors

import (
	"errors"
	"strings"
)

// Category groups failures by the part of the system a user should look at.
type Category string

const (
	CategoryInputValidation Category = "input_validation"
	CategoryExternalService Category = "external_service"
	CategoryStateManagement Category = "state_management"
	CategoryAgentExecution  Category = "agent_execution"
	CategoryUnknown         Category = "unknown"
)

// categoryKeywords is checked in order; the first category with a keyword
// contained in the lowercased error message wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryInputValidation, []string{"invalid", "missing", "required", "empty", "format"}},
	{CategoryExternalService, []string{"api", "network", "timeout", "connection", "rate limit"}},
	{CategoryStateManagement, []string{"state", "key", "session", "storage"}},
	{CategoryAgentExecution, []string{"agent", "tool", "model", "generation"}},
}

// Categorize maps an error to a Category. Typed errors from this package are
// classified by type; anything else falls back to keyword matching on the
// error message.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var (
		cfgErr   *ConfigError
		valErr   *ValidationError
		lstErr   *ListenerError
		snapErr  *SnapshotNotFoundError
		stageErr *StageExecutionError
		wnfErr   *WorkerNotFoundError
	)
	switch {
	case errors.As(err, &valErr), errors.As(err, &cfgErr):
		return CategoryInputValidation
	case errors.As(err, &lstErr), errors.As(err, &snapErr):
		return CategoryStateManagement
	case errors.As(err, &wnfErr):
		return CategoryAgentExecution
	case errors.As(err, &stageErr):
		// The worker's own cause is usually more telling than the wrapper.
		if stageErr.Cause != nil {
			if c := categorizeMessage(stageErr.Cause.Error()); c != CategoryUnknown {
				return c
			}
		}
		return CategoryAgentExecution
	}
	return categorizeMessage(err.Error())
}

func categorizeMessage(msg string) Category {
	lower := strings.ToLower(msg)
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.category
			}
		}
	}
	return CategoryUnknown
}
