// Package pubsub relays chat results and typing status to live subscribers.
package pubsub

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

// Broker fans every published value out to all current subscribers.
// By default a subscriber whose buffer is full misses new values rather
// than blocking the publisher. WithSendTimeout makes Publish wait for
// room instead, up to the timeout.
type Broker[T any] struct {
	name        string
	buffer      int
	sendTimeout time.Duration

	mu     sync.RWMutex
	subs   map[uint64]chan T
	nextID uint64
}

// BrokerOption configures a Broker.
type BrokerOption func(*brokerOptions)

type brokerOptions struct {
	buffer      int
	sendTimeout time.Duration
}

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) BrokerOption {
	return func(o *brokerOptions) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithSendTimeout makes Publish wait up to d for a full subscriber before
// dropping the value. The wait is shared by all subscribers of one Publish.
func WithSendTimeout(d time.Duration) BrokerOption {
	return func(o *brokerOptions) {
		o.sendTimeout = d
	}
}

// NewBroker creates a broker. The name only appears in logs.
func NewBroker[T any](name string, opts ...BrokerOption) *Broker[T] {
	o := brokerOptions{buffer: DefaultBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	return &Broker[T]{
		name:        name,
		buffer:      o.buffer,
		sendTimeout: o.sendTimeout,
		subs:        make(map[uint64]chan T),
	}
}

// Subscribe registers a subscriber. The returned channel is closed once ctx
// is done.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish delivers v to every subscriber. Without a send timeout it never
// blocks. With one it returns at most the timeout after the first full
// subscriber is met.
func (b *Broker[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var deadline <-chan time.Time
	for id, ch := range b.subs {
		select {
		case ch <- v:
			continue
		default:
		}

		if b.sendTimeout > 0 {
			if deadline == nil {
				timer := time.NewTimer(b.sendTimeout)
				defer timer.Stop()
				deadline = timer.C
			}
			select {
			case ch <- v:
				continue
			case <-deadline:
				// Later subscribers in this call get no further wait.
				deadline = closedDeadline
			}
		}
		slog.Warn("dropping event for slow subscriber", "broker", b.name, "subscriber", id)
	}
}

var closedDeadline = func() <-chan time.Time {
	c := make(chan time.Time)
	close(c)
	return c
}()

// Subscribers returns the number of active subscribers.
func (b *Broker[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func forward[T, U any](ctx context.Context, in <-chan T, keep func(T) bool, fn func(T) U) <-chan U {
	out := make(chan U, DefaultBuffer)
	go func() {
		defer close(out)
		for v := range in {
			if !keep(v) {
				continue
			}
			select {
			case out <- fn(v):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
