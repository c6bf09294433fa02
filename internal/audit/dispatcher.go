package audit

import (
	"context"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// OnDrop, if set, observes every event discarded under backpressure,
	// in addition to the dispatcher's own Dropped counter. The engine
	// wires this into its metrics.
	OnDrop func()
}

// Dispatcher decouples engine operations from sink latency: events are
// relayed to the sink by a single worker goroutine. A full buffer either
// drops the event (counted, and reported through OnDrop) or blocks the
// emitter until space frees, per Config.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	onDrop     func()

	events  chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	drained chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher starts the relay worker. A disabled config yields a nil
// dispatcher; all methods are safe on a nil receiver.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		onDrop:     cfg.OnDrop,
		events:     make(chan Event, cfg.BufferSize),
		ctx:        ctx,
		cancel:     cancel,
		drained:    make(chan struct{}),
	}

	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer close(d.drained)

	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.ctx.Done():
			// Deliver what was buffered before teardown; nothing new is
			// accepted once the context is cancelled.
			for {
				select {
				case event := <-d.events:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues an event for delivery. After Close it is a no-op.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.ctx.Err() != nil {
		return
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
			if d.onDrop != nil {
				d.onDrop()
			}
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.ctx.Done():
	}
}

// Close stops intake, flushes the buffer to the sink, and waits for the
// relay worker to exit. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.cancel()
	<-d.drained
}

// Dropped reports how many events were discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
