package pipeline

import (
	"time"

	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"
)

// stageBus stamps the run identifiers on events published by workers.
type stageBus struct {
	next          events.Bus
	pipelineName  string
	runID         string
	stageName     string
	applicationID string
}

func (b *stageBus) Emit(event events.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.PipelineName == "" {
		event.PipelineName = b.pipelineName
	}
	if event.RunID == "" {
		event.RunID = b.runID
	}
	if event.StageName == "" {
		event.StageName = b.stageName
	}
	if event.ApplicationID == "" {
		event.ApplicationID = b.applicationID
	}
	b.next.Emit(event)
}
