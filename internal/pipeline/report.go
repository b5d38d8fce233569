package pipeline

import (
	"time"
)

// Stage and run statuses.
const (
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
	StatusSkipped   = "Skipped"
)

// StageResult is the outcome of a single stage.
type StageResult struct {
	Name          string        `json:"name"`
	Worker        string        `json:"worker"`
	Output        string        `json:"output,omitempty"`
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
	ErrorCategory string        `json:"error_category,omitempty"`
	Ignored       bool          `json:"ignored,omitempty"`
	Attempts      int           `json:"attempts"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
}

// Report summarizes a pipeline run. Stages are listed in definition order;
// stages that never started are reported as Skipped.
type Report struct {
	RunID           string        `json:"run_id"`
	PipelineName    string        `json:"pipeline_name"`
	ApplicationID   string        `json:"application_id,omitempty"`
	Status          string        `json:"status"`
	Error           string        `json:"error,omitempty"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Duration        time.Duration `json:"duration"`
	CompletedStages int           `json:"completed_stages"`
	FailedStages    int           `json:"failed_stages"`
	SkippedStages   int           `json:"skipped_stages"`
	Stages          []StageResult `json:"stages"`
}

// Stage returns the result for the named stage.
func (r *Report) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

func (r *Report) tally() {
	r.CompletedStages, r.FailedStages, r.SkippedStages = 0, 0, 0
	for _, s := range r.Stages {
		switch s.Status {
		case StatusCompleted:
			r.CompletedStages++
		case StatusFailed:
			r.FailedStages++
		case StatusSkipped:
			r.SkippedStages++
		}
	}
}
