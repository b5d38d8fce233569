package config

import (
	"time"
)

// Pipeline is a career pipeline definition: a sequence of stages, each
// running one worker and writing its result to the state store.
type Pipeline struct {
	SchemaVersion string `yaml:"schemaVersion"`
	Name          string `yaml:"name"`
	// ApplicationID selects the application namespace the stages read from
	// and write to. Empty means the global namespace.
	ApplicationID string                 `yaml:"application_id,omitempty"`
	Vars          map[string]interface{} `yaml:"vars,omitempty"`
	Stages        []Stage                `yaml:"stages"`

	// FilePath records where the definition was loaded from.
	FilePath string `yaml:"-"`
}

// Stage is a single unit of work within a pipeline.
type Stage struct {
	Name   string `yaml:"name"`
	Worker string `yaml:"worker"`
	// Inputs are state keys handed to the worker. Each is looked up in the
	// pipeline's application namespace first, then in the global one.
	Inputs []string `yaml:"inputs,omitempty"`
	// Output is the state key the worker result is stored under.
	Output       string                 `yaml:"output,omitempty"`
	Params       map[string]interface{} `yaml:"params,omitempty"`
	Retry        *RetryConfig           `yaml:"retry,omitempty"`
	Timeout      string                 `yaml:"timeout,omitempty"`
	IgnoreErrors bool                   `yaml:"ignore_errors,omitempty"`
}

// RetryConfig defines how a failing worker call is retried.
type RetryConfig struct {
	Attempts      int      `yaml:"attempts,omitempty"`
	Delay         string   `yaml:"delay,omitempty"`
	MaxDelay      string   `yaml:"max_delay,omitempty"`
	BackoffFactor *float64 `yaml:"backoff_factor,omitempty"`
	Jitter        *float64 `yaml:"jitter,omitempty"`
	OnError       *bool    `yaml:"on_error,omitempty"`
}

// GetRetryAttempts returns the configured number of attempts or the default (1).
func (s *Stage) GetRetryAttempts() int {
	if s.Retry != nil && s.Retry.Attempts >= 1 {
		return s.Retry.Attempts
	}
	return 1
}

// GetRetryDelay returns the base retry delay or the default (1 second).
func (s *Stage) GetRetryDelay() time.Duration {
	if s.Retry == nil || s.Retry.Delay == "" {
		return time.Second
	}
	d, err := time.ParseDuration(s.Retry.Delay)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// GetRetryMaxDelay returns the maximum retry delay, or 0 if unset.
func (s *Stage) GetRetryMaxDelay() time.Duration {
	if s.Retry == nil || s.Retry.MaxDelay == "" {
		return 0
	}
	d, err := time.ParseDuration(s.Retry.MaxDelay)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetRetryBackoffFactor returns the backoff factor, defaulting to 1.0.
func (s *Stage) GetRetryBackoffFactor() float64 {
	if s.Retry != nil && s.Retry.BackoffFactor != nil && *s.Retry.BackoffFactor >= 1.0 {
		return *s.Retry.BackoffFactor
	}
	return 1.0
}

// GetRetryJitter returns the jitter factor clamped to [0, 1].
func (s *Stage) GetRetryJitter() float64 {
	if s.Retry == nil || s.Retry.Jitter == nil {
		return 0
	}
	j := *s.Retry.Jitter
	if j < 0 {
		return 0
	}
	if j > 1 {
		return 1
	}
	return j
}

// ShouldRetryOnError reports whether failures are retried, defaulting to true.
func (s *Stage) ShouldRetryOnError() bool {
	if s.Retry != nil && s.Retry.OnError != nil {
		return *s.Retry.OnError
	}
	return true
}

// GetTimeout returns the stage timeout, or 0 when the stage has none.
func (s *Stage) GetTimeout() time.Duration {
	if s.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
