package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher forwards audit events to a sink from its own goroutine, so
// emitting never adds sink latency to the security operation that produced
// the event.
type Dispatcher struct {
	sink     Sink
	queue    chan Event
	stop     chan struct{}
	dropFull bool
	closed   atomic.Bool
	dropped  atomic.Uint64
	once     sync.Once
	relay    sync.WaitGroup
}

// NewDispatcher starts the relay goroutine. Returns nil when auditing is
// disabled; a nil *Dispatcher is safe to emit to and drops everything.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	buffer := cfg.BufferSize
	if buffer < 1 {
		buffer = 1
	}

	d := &Dispatcher{
		sink:     sink,
		queue:    make(chan Event, buffer),
		stop:     make(chan struct{}),
		dropFull: cfg.DropIfFull,
	}
	d.relay.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.relay.Done()
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain flushes whatever is still buffered at close time.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit queues the event. With DropIfFull set a full buffer increments the
// dropped counter instead of blocking the caller; otherwise Emit waits until
// there is room, the context ends, or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops intake, drains the buffer, and waits for the relay goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.relay.Wait()
	})
}

// Dropped reports how many events were discarded by drop-if-full backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
