package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// batcher moves rows off the request path. A single goroutine drains the
// queue so rows of one stream are written in enqueue order.
type batcher[T any] struct {
	stream   string
	ch       chan T
	write    func(ctx context.Context, batch []T) error
	size     int
	interval time.Duration
	log      *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func newBatcher[T any](stream string, buffer, size int, interval time.Duration, log *slog.Logger, write func(context.Context, []T) error) *batcher[T] {
	b := &batcher[T]{
		stream:   stream,
		ch:       make(chan T, buffer),
		write:    write,
		size:     size,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// enqueue never blocks. It reports false when the row was dropped because the
// queue is full or already closed.
func (b *batcher[T]) enqueue(item T) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.log.Warn("audit row dropped after close", "stream", b.stream)
		return false
	}
	select {
	case b.ch <- item:
		return true
	default:
		b.log.Warn("audit queue full, row dropped", "stream", b.stream, "capacity", cap(b.ch))
		return false
	}
}

func (b *batcher[T]) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	buf := make([]T, 0, b.size)
	for {
		select {
		case item, ok := <-b.ch:
			if !ok {
				b.flush(buf)
				return
			}
			buf = append(buf, item)
			if len(buf) >= b.size {
				b.flush(buf)
				buf = make([]T, 0, b.size)
			}
		case <-ticker.C:
			if len(buf) > 0 {
				b.flush(buf)
				buf = make([]T, 0, b.size)
			}
		}
	}
}

func (b *batcher[T]) flush(batch []T) {
	if len(batch) == 0 {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error("audit flush panicked", "stream", b.stream, "rows", len(batch), "panic", fmt.Sprint(rec))
		}
	}()
	if err := b.write(context.Background(), batch); err != nil {
		b.log.Error("audit flush failed", "stream", b.stream, "rows", len(batch), "error", err)
	}
}

// close stops intake and waits until queued rows are flushed or ctx ends.
func (b *batcher[T]) close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
