// Package eventbus provides a single-sink, fire-and-forget event dispatcher.
package eventbus

import (
	"context"
	"log"
	"sync"
)

// Sink receives one published event. Returned errors are logged, never
// surfaced to the publisher.
type Sink[T any] func(ctx context.Context, event T) error

// Bus dispatches events to at most one registered sink.
type Bus[T any] struct {
	name string
	mu   sync.RWMutex
	sink Sink[T]
}

// New returns an empty bus. name prefixes log lines.
func New[T any](name string) *Bus[T] {
	return &Bus[T]{name: name}
}

// Register installs sink, replacing any previous one. A nil sink clears
// the registration.
func (b *Bus[T]) Register(sink Sink[T]) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
}

// Publish hands event to the registered sink in the caller's goroutine.
// It never panics and never reports failure; with no sink it drops event.
func (b *Bus[T]) Publish(ctx context.Context, event T) {
	if b == nil {
		return
	}
	b.mu.RLock()
	sink := b.sink
	b.mu.RUnlock()
	if sink == nil {
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			log.Printf("%s: sink panic: %v", b.name, recovered)
		}
	}()
	if err := sink(ctx, event); err != nil {
		log.Printf("%s: sink failed: %v", b.name, err)
	}
}
