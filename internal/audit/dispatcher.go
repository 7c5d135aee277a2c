package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Overflow decides what Emit does when the queue is full.
type Overflow int

const (
	// Block waits for queue room or for the caller's context to end.
	Block Overflow = iota
	// Drop discards the event and counts it.
	Drop
)

type Config struct {
	Enabled  bool
	Queue    int
	Overflow Overflow
}

// Dispatcher moves events off the request path onto a single worker that
// feeds the sink in order. A nil *Dispatcher accepts every call and does
// nothing, which is what NewDispatcher returns for a disabled config.
type Dispatcher struct {
	sink     Sink
	overflow Overflow

	mu     sync.RWMutex
	closed bool
	queue  chan Event

	worker  sync.WaitGroup
	dropped atomic.Uint64
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:     sink,
		overflow: cfg.Overflow,
		queue:    make(chan Event, max(cfg.Queue, 1)),
	}
	d.worker.Add(1)
	go d.drain()
	return d
}

func (d *Dispatcher) drain() {
	defer d.worker.Done()
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit enqueues event. Events emitted after Close are discarded without
// being counted as drops.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.overflow == Drop {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops intake and blocks until every queued event reached the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.worker.Wait()
}

// Dropped counts events lost to a full queue under the Drop policy.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
