// Package notify delivers "record logged" notifications after the logging
// call that produced them has returned.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/sentrylog/internal/model"
)

const defaultDrainTimeout = 5 * time.Second

// Listener observes processed records.
type Listener func(model.Record)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDrainTimeout bounds how long Close waits for queued notifications.
// Default: 5s.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.drainTimeout = timeout }
}

// WithOnPanic sets the callback invoked when a listener panics.
// Default: logs a warning via slog.
func WithOnPanic(f func(error)) Option {
	return func(d *Dispatcher) { d.panicFunc = f }
}

// Dispatcher queues notifications and runs listeners on a single drain
// goroutine in posting order. Post never waits for listeners, so a
// listener that logs again only enqueues more work.
type Dispatcher struct {
	mu        sync.Mutex
	listeners []Listener
	queue     []model.Record
	closed    bool

	wake         chan struct{}
	done         chan struct{}
	drainTimeout time.Duration
	panicFunc    func(error)
	closeOnce    sync.Once
}

// New starts a Dispatcher. The drain goroutine starts immediately.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		drainTimeout: defaultDrainTimeout,
		panicFunc:    func(err error) { slog.Warn("logged listener panic", "error", err) },
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.drain()
	return d
}

// Subscribe registers a listener for subsequent notifications.
func (d *Dispatcher) Subscribe(l Listener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

// Post schedules a notification for rec. Posts after Close are dropped.
func (d *Dispatcher) Post(rec model.Record) {
	d.mu.Lock()
	if d.closed || len(d.listeners) == 0 {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, rec)
	select {
	case d.wake <- struct{}{}:
	default:
	}
	d.mu.Unlock()
}

// Close stops accepting posts and waits (bounded by the drain timeout) for
// queued notifications to be delivered.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.wake)
		d.mu.Unlock()

		select {
		case <-d.done:
		case <-time.After(d.drainTimeout):
			slog.Warn("logged notification drain timed out")
		}
	})
}

func (d *Dispatcher) drain() {
	defer close(d.done)
	for {
		_, ok := <-d.wake
		for {
			rec, listeners, more := d.next()
			if !more {
				break
			}
			for _, l := range listeners {
				d.deliver(l, rec)
			}
		}
		if !ok {
			return
		}
	}
}

func (d *Dispatcher) next() (model.Record, []Listener, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return model.Record{}, nil, false
	}
	rec := d.queue[0]
	d.queue[0] = model.Record{}
	d.queue = d.queue[1:]
	return rec, d.listeners, true
}

func (d *Dispatcher) deliver(l Listener, rec model.Record) {
	defer func() {
		if r := recover(); r != nil {
			d.panicFunc(fmt.Errorf("notify: %v", r))
		}
	}()
	l(rec)
}
