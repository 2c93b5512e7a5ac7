package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	authcore "github.com/insano70/bcos-sub014"
)

// defaultPublishTimeout bounds a single publish so a stalled broker cannot
// wedge the audit dispatcher goroutine.
const defaultPublishTimeout = 5 * time.Second

// Channel is the subset of [amqp.Channel] the sink publishes through,
// split out so tests can record messages without a broker.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Sink publishes audit events to a RabbitMQ queue as persistent JSON messages.
type Sink struct {
	conn    *amqp.Connection
	ch      Channel
	queue   string
	timeout time.Duration
	dropped atomic.Uint64
}

// NewSink dials the broker, declares a durable queue, and returns a ready
// sink that owns the connection.
func NewSink(url, queue string) (*Sink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}

	s := NewSinkWithChannel(ch, queue)
	s.conn = conn
	return s, nil
}

// NewSinkWithChannel wraps an already-open channel, for tests or callers
// that share one connection across publishers. The queue must exist;
// Close closes the channel but not the caller's connection.
func NewSinkWithChannel(ch Channel, queue string) *Sink {
	return &Sink{ch: ch, queue: queue, timeout: defaultPublishTimeout}
}

// Emit publishes one event. Encoding or broker errors increment the drop
// counter; they are never returned to the caller.
func (s *Sink) Emit(ctx context.Context, event authcore.AuditEvent) {
	if s == nil || s.ch == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.dropped.Add(1)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Timestamp,
		Type:         event.EventType,
		Body:         payload,
	}
	if err := s.ch.PublishWithContext(ctx, "", s.queue, false, false, publishing); err != nil {
		s.dropped.Add(1)
	}
}

// Dropped reports how many events failed to encode or publish.
func (s *Sink) Dropped() uint64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}

// Close closes the channel, and the connection when the sink owns it.
func (s *Sink) Close() error {
	if s == nil || s.ch == nil {
		return nil
	}
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
