package events

import "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"

// NoOpEventBus discards every event. It is the default bus of components
// constructed without one.
type NoOpEventBus struct{}

func NewNoOpEventBus() events.Bus {
	return &NoOpEventBus{}
}

func (n *NoOpEventBus) Emit(event events.Event) {}

var _ events.Bus = (*NoOpEventBus)(nil)
