package events

import "time"

// EventType identifies the kind of an Event.
type EventType string

// State store events.
const (
	StateStored        EventType = "StateStored"
	StateDeleted       EventType = "StateDeleted"
	ApplicationDeleted EventType = "ApplicationDeleted"
	StateCleared       EventType = "StateCleared"
	SessionRestored    EventType = "SessionRestored"
	ListenerFailed     EventType = "ListenerFailed"
)

// Pipeline events.
const (
	PipelineStart EventType = "PipelineStart"
	PipelineEnd   EventType = "PipelineEnd"
	StageStart    EventType = "StageStart"
	StageEnd      EventType = "StageEnd"
	ATSAnalyzed   EventType = "ATSAnalyzed"
)

// Event is a notable occurrence in the state store or the stage runner.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	// ApplicationID is empty for events in the global namespace.
	ApplicationID string `json:"application_id,omitempty"`
	Key           string `json:"key,omitempty"`
	PipelineName  string `json:"pipeline_name,omitempty"`
	RunID         string `json:"run_id,omitempty"`
	StageName     string `json:"stage_name,omitempty"`
	// Payload carries event specific data. Stored values are never included,
	// only descriptors of them.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Bus publishes events. Emit must not block the caller for long: the state
// store emits from inside write operations.
type Bus interface {
	Emit(event Event)
}
