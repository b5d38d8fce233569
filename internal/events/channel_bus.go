package events

import (
	"sync"

	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"
	jhlog "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/log"
)

const defaultBufferSize = 100

// ChannelEventBus delivers events to in-process consumers through a buffered
// channel. Emit never blocks: when the buffer is full the event is dropped
// and a warning is logged.
type ChannelEventBus struct {
	channel chan events.Event
	log     jhlog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewChannelEventBus creates a bus with the given buffer size (100 when not
// positive). It panics on a nil logger.
func NewChannelEventBus(bufferSize int, log jhlog.Logger) *ChannelEventBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if log == nil {
		panic("ChannelEventBus requires a non-nil logger")
	}
	bus := &ChannelEventBus{
		channel: make(chan events.Event, bufferSize),
		log:     log.With("component", "ChannelEventBus"),
	}
	bus.log.Debugf("ChannelEventBus initialized with buffer size %d", bufferSize)
	return bus
}

func (c *ChannelEventBus) Emit(event events.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.channel <- event:
	default:
		c.log.Warnf("Event channel buffer full, dropping event type '%s'", event.Type)
	}
}

// GetChannel exposes the receive side to consumers such as
// MetricsEventListener.
func (c *ChannelEventBus) GetChannel() <-chan events.Event {
	return c.channel
}

// Close closes the channel. Later Emit calls are ignored.
func (c *ChannelEventBus) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.channel)
}

var _ events.Bus = (*ChannelEventBus)(nil)
