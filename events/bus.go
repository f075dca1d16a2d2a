// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package events

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
)

var ErrBusClosed = errors.New("event bus closed")

// Handler consumes one event. Errors are logged and the event is dropped.
type Handler func(ctx context.Context, ev Event) error

// Bus hands published events to a Handler on background workers. Each key
// is pinned to one worker so its events keep their publish order.
type Bus struct {
	handler Handler
	logger  *slog.Logger
	queues  []chan Event

	mu      sync.RWMutex
	closed  bool
	running sync.WaitGroup
}

func NewBus(handler Handler, workers, queueSize int, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	queues := make([]chan Event, workers)
	for i := range queues {
		queues[i] = make(chan Event, queueSize)
	}
	return &Bus{handler: handler, logger: logger, queues: queues}
}

// Publish enqueues ev without blocking. It reports false when the event was
// dropped because the bus is closed or the worker's queue is full.
func (b *Bus) Publish(ev Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("event dropped, bus closed", "key", ev.Key())
		return false
	}

	select {
	case b.queues[b.shard(ev.Key())] <- ev:
		return true
	default:
		b.logger.Warn("event dropped, queue full", "key", ev.Key())
		return false
	}
}

func (b *Bus) shard(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(b.queues)))
}

// Run processes events until ctx is cancelled, then stops accepting new
// events and drains what is already queued.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.running.Add(len(b.queues))
	b.mu.Unlock()

	// handlers keep a live context while draining
	handlerCtx := context.WithoutCancel(ctx)
	for _, q := range b.queues {
		go b.work(handlerCtx, q)
	}

	<-ctx.Done()
	b.close()
	b.running.Wait()
	return nil
}

func (b *Bus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
}

func (b *Bus) work(ctx context.Context, q <-chan Event) {
	defer b.running.Done()
	for ev := range q {
		b.dispatch(ctx, ev)
	}
}

func (b *Bus) dispatch(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "key", ev.Key(), "panic", r)
		}
	}()

	if err := b.handler(ctx, ev); err != nil {
		b.logger.Error("event handler failed", "key", ev.Key(), "error", err)
	}
}
