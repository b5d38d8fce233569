package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/streadway/amqp"

	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"
	jhlog "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/log"
)

// DefaultExchange is the topic exchange events are published to when none is
// configured.
const DefaultExchange = "jobhunter_events"

// Publisher is the part of *amqp.Channel used by AMQPEventBus.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPEventBus publishes events as JSON to a RabbitMQ topic exchange so that
// other services (a web UI streaming session progress, for instance) can
// follow pipeline activity. Routing keys have the form
// "state.<application id or global>.<event type>".
//
// Emit only enqueues; a background goroutine does the publishing, so a slow
// broker never stalls state writes. Events are dropped when the queue is full.
type AMQPEventBus struct {
	pub      Publisher
	exchange string
	log      jhlog.Logger
	queue    chan events.Event
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAMQPEventBus starts the publishing goroutine. Call Close to flush.
func NewAMQPEventBus(pub Publisher, exchange string, bufferSize int, log jhlog.Logger) *AMQPEventBus {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	b := &AMQPEventBus{
		pub:      pub,
		exchange: exchange,
		log:      log.With("component", "AMQPEventBus", "exchange", exchange),
		queue:    make(chan events.Event, bufferSize),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// DialAMQPEventBus connects to url, declares the topic exchange, and returns
// a bus publishing on it together with a closer for the connection.
func DialAMQPEventBus(url, exchange string, log jhlog.Logger) (*AMQPEventBus, func() error, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("error dialling rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("error opening rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}

	bus := NewAMQPEventBus(ch, exchange, 0, log)
	closer := func() error {
		bus.Close()
		ch.Close()
		return conn.Close()
	}
	return bus, closer, nil
}

func (b *AMQPEventBus) Emit(event events.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- event:
	default:
		b.log.Warnf("AMQP publish queue full, dropping event type '%s'", event.Type)
	}
}

// Close stops accepting events and waits until queued ones are published.
func (b *AMQPEventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *AMQPEventBus) run() {
	defer b.wg.Done()
	for event := range b.queue {
		if err := b.publish(event); err != nil {
			b.log.Warnf("Failed to publish event type '%s': %v", event.Type, err)
		}
	}
}

func (b *AMQPEventBus) publish(event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return b.pub.Publish(
		b.exchange,
		RoutingKey(event),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   event.Timestamp,
			Type:        string(event.Type),
			Body:        body,
		},
	)
}

// RoutingKey returns "state.<scope>.<type>" where scope is the application
// id, or "global". Dots in the id are replaced so it stays a single word.
func RoutingKey(event events.Event) string {
	scope := "global"
	if event.ApplicationID != "" {
		scope = strings.ReplaceAll(event.ApplicationID, ".", "_")
	}
	return fmt.Sprintf("state.%s.%s", scope, event.Type)
}

var _ events.Bus = (*AMQPEventBus)(nil)
