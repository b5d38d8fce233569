package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intevents "github.com/jobhunter-labs/jobhunter/internal/events"
	"github.com/jobhunter-labs/jobhunter/internal/logger"
	"github.com/jobhunter-labs/jobhunter/internal/metrics"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{exchange, key, msg})
	return nil
}

func (f *fakePublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

type sliceBus struct{ got []events.Event }

func (s *sliceBus) Emit(e events.Event) { s.got = append(s.got, e) }

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "state.global.StateStored", intevents.RoutingKey(events.Event{Type: events.StateStored}))
	assert.Equal(t, "state.acme_backend_v2.StageEnd",
		intevents.RoutingKey(events.Event{Type: events.StageEnd, ApplicationID: "acme.backend.v2"}))
}

func TestAMQPEventBus_PublishesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	bus := intevents.NewAMQPEventBus(pub, "", 4, logger.NewDiscardLogger())

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	bus.Emit(events.Event{Type: events.StateStored, Timestamp: ts, ApplicationID: "app1", Key: "resume"})
	bus.Emit(events.Event{Type: events.PipelineEnd, Timestamp: ts, Payload: map[string]interface{}{"status": "Completed"}})
	bus.Close()
	bus.Close()
	bus.Emit(events.Event{Type: events.StateCleared})

	msgs := pub.snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, intevents.DefaultExchange, msgs[0].exchange)
	assert.Equal(t, "state.app1.StateStored", msgs[0].key)
	assert.Equal(t, "application/json", msgs[0].msg.ContentType)
	assert.Equal(t, "StateStored", msgs[0].msg.Type)
	assert.Equal(t, ts, msgs[0].msg.Timestamp)

	var decoded events.Event
	require.NoError(t, json.Unmarshal(msgs[1].msg.Body, &decoded))
	assert.Equal(t, events.PipelineEnd, decoded.Type)
	assert.Equal(t, "Completed", decoded.Payload["status"])
	assert.Equal(t, "state.global.PipelineEnd", msgs[1].key)
}

func TestAMQPEventBus_PublishErrorsAreSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	bus := intevents.NewAMQPEventBus(pub, "x", 1, logger.NewDiscardLogger())
	for i := 0; i < 10; i++ {
		bus.Emit(events.Event{Type: events.StateStored})
	}
	bus.Close()
	assert.Empty(t, pub.snapshot())
}

func TestChannelEventBus_DropsWhenFull(t *testing.T) {
	bus := intevents.NewChannelEventBus(2, logger.NewDiscardLogger())
	for i := 0; i < 5; i++ {
		bus.Emit(events.Event{Type: events.StateStored})
	}
	bus.Close()
	bus.Emit(events.Event{Type: events.StateStored})

	var n int
	for range bus.GetChannel() {
		n++
	}
	assert.Equal(t, 2, n)
}

func TestMultiBus(t *testing.T) {
	a, b := &sliceBus{}, &sliceBus{}
	multi := intevents.MultiBus{a, nil, b, intevents.NewNoOpEventBus()}
	multi.Emit(events.Event{Type: events.StageStart})
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func gatherValues(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += "," + lp.GetName() + "=" + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				values[name] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				values[name] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return values
}

func TestMetricsEventListener(t *testing.T) {
	provider := metrics.NewPrometheusRegistryProvider()
	collectors, err := metrics.NewCollectors(provider.Registry())
	require.NoError(t, err)

	bus := intevents.NewChannelEventBus(16, logger.NewDiscardLogger())
	listener := intevents.NewMetricsEventListener(bus, collectors, logger.NewDiscardLogger())
	done := make(chan struct{})
	go func() {
		defer close(done)
		listener.Start(context.Background())
	}()

	bus.Emit(events.Event{Type: events.StateStored})
	bus.Emit(events.Event{Type: events.StateStored, ApplicationID: "app1"})
	bus.Emit(events.Event{Type: events.StateStored, ApplicationID: "app2"})
	bus.Emit(events.Event{Type: events.ListenerFailed})
	bus.Emit(events.Event{Type: events.StageEnd, StageName: "score",
		Payload: map[string]interface{}{"status": "Completed", "duration_seconds": 0.25}})
	bus.Emit(events.Event{Type: events.ATSAnalyzed, Payload: map[string]interface{}{"match_percentage": 57.14}})
	bus.Emit(events.Event{Type: events.PipelineEnd})
	bus.Close()
	<-done

	values := gatherValues(t, provider.Registry())
	assert.Equal(t, 1.0, values["jobhunter_state_writes_total,scope=global"])
	assert.Equal(t, 2.0, values["jobhunter_state_writes_total,scope=application"])
	assert.Equal(t, 1.0, values["jobhunter_listener_failures_total"])
	assert.Equal(t, 1.0, values["jobhunter_stage_runs_total,stage=score,status=Completed"])
	assert.Equal(t, 1.0, values["jobhunter_stage_duration_seconds,stage=score"])
	assert.Equal(t, 1.0, values["jobhunter_ats_match_percentage"])
}

func TestMetricsEventListener_StopsOnContext(t *testing.T) {
	provider := metrics.NewPrometheusRegistryProvider()
	collectors, err := metrics.NewCollectors(provider.Registry())
	require.NoError(t, err)
	bus := intevents.NewChannelEventBus(1, logger.NewDiscardLogger())
	listener := intevents.NewMetricsEventListener(bus, collectors, logger.NewDiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	listener.Start(ctx)

	_, err = metrics.NewCollectors(provider.Registry())
	assert.Error(t, err, "collectors register only once per registry")
}
