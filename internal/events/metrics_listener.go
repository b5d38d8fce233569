package events

import (
	"context"

	"github.com/jobhunter-labs/jobhunter/internal/metrics"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"
	jhlog "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/log"
)

// MetricsEventListener consumes a ChannelEventBus and keeps the Prometheus
// collectors up to date.
type MetricsEventListener struct {
	bus        *ChannelEventBus
	collectors *metrics.Collectors
	log        jhlog.Logger
}

func NewMetricsEventListener(bus *ChannelEventBus, collectors *metrics.Collectors, log jhlog.Logger) *MetricsEventListener {
	if bus == nil || collectors == nil || log == nil {
		panic("MetricsEventListener requires a non-nil ChannelEventBus, Collectors, and Logger")
	}
	return &MetricsEventListener{
		bus:        bus,
		collectors: collectors,
		log:        log.With("component", "MetricsEventListener"),
	}
}

// Start blocks until the bus is closed or ctx is done. Run it in a goroutine.
func (l *MetricsEventListener) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-l.bus.GetChannel():
			if !ok {
				l.log.Debugf("Event bus channel closed, stopping listener.")
				return
			}
			l.HandleEvent(event)
		case <-ctx.Done():
			l.log.Debugf("Context cancelled, stopping metrics event listener.")
			return
		}
	}
}

// HandleEvent applies a single event to the collectors.
func (l *MetricsEventListener) HandleEvent(event events.Event) {
	switch event.Type {
	case events.StateStored:
		scope := "global"
		if event.ApplicationID != "" {
			scope = "application"
		}
		l.collectors.StateWrites.WithLabelValues(scope).Inc()
	case events.ListenerFailed:
		l.collectors.ListenerFailures.Inc()
	case events.StageEnd:
		status, _ := event.Payload["status"].(string)
		l.collectors.StageRuns.WithLabelValues(event.StageName, status).Inc()
		if secs, ok := event.Payload["duration_seconds"].(float64); ok {
			l.collectors.StageDuration.WithLabelValues(event.StageName).Observe(secs)
		}
	case events.ATSAnalyzed:
		if pct, ok := event.Payload["match_percentage"].(float64); ok {
			l.collectors.ATSMatch.Observe(pct)
		}
	}
}
