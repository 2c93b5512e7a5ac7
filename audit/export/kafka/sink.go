package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	skafka "github.com/segmentio/kafka-go"

	authcore "github.com/insano70/bcos-sub014"
)

// defaultPublishTimeout bounds a single publish so a stalled broker cannot
// wedge the audit dispatcher goroutine.
const defaultPublishTimeout = 5 * time.Second

// Writer is the subset of [skafka.Writer] the sink publishes through,
// split out so tests can record messages without a broker.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Sink publishes audit events to a Kafka topic as JSON messages.
type Sink struct {
	writer  Writer
	timeout time.Duration
	dropped atomic.Uint64
}

// NewSink creates a sink writing to the given brokers and topic. The writer
// acknowledges on the partition leader and balances by message size.
func NewSink(brokers []string, topic string) *Sink {
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.LeastBytes{},
		RequiredAcks: skafka.RequireOne,
	}
	return NewSinkWithWriter(w)
}

// NewSinkWithWriter wraps an existing writer, for tests or custom tuning.
func NewSinkWithWriter(w Writer) *Sink {
	return &Sink{writer: w, timeout: defaultPublishTimeout}
}

// Emit publishes one event. Encoding or broker errors increment the drop
// counter; they are never returned to the caller.
func (s *Sink) Emit(ctx context.Context, event authcore.AuditEvent) {
	if s == nil || s.writer == nil {
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

	msg := skafka.Message{
		Key:   messageKey(event),
		Value: payload,
		Time:  event.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.dropped.Add(1)
	}
}

// messageKey partitions by user so one account's events stay ordered.
// Events with no user fall back to the event type.
func messageKey(event authcore.AuditEvent) []byte {
	if event.UserID != "" {
		return []byte(event.UserID)
	}
	return []byte(event.EventType)
}

// Dropped reports how many events failed to encode or publish.
func (s *Sink) Dropped() uint64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}

// Close flushes and closes the underlying writer.
func (s *Sink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
