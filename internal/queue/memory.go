package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yikoni/docbase/internal/model"
)

var ErrQueueClosed = errors.New("queue closed")

// Memory is a channel-backed Queue. Nack redelivers through a timer so
// backoff delays do not hold a worker slot. Shutdown is signalled through a
// done channel rather than closing the delivery channel: producers may still
// race Close, and a send must fail with ErrQueueClosed, never panic.
type Memory struct {
	ch     chan *Delivery
	done   chan struct{}
	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 256
	}
	return &Memory{
		ch:     make(chan *Delivery, size),
		done:   make(chan struct{}),
		timers: map[*time.Timer]struct{}{},
	}
}

func (m *Memory) Enqueue(ctx context.Context, job *model.EmbeddingJob) error {
	return m.push(ctx, &Delivery{Job: job, Attempt: 1})
}

func (m *Memory) push(ctx context.Context, d *Delivery) error {
	select {
	case <-m.done:
		return ErrQueueClosed
	default:
	}
	select {
	case m.ch <- d:
		return nil
	case <-m.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Dequeue(ctx context.Context) (*Delivery, error) {
	// deliveries already buffered drain even after Close
	select {
	case d := <-m.ch:
		return d, nil
	default:
	}
	select {
	case d := <-m.ch:
		return d, nil
	case <-m.done:
		select {
		case d := <-m.ch:
			return d, nil
		default:
			return nil, ErrQueueClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Memory) Ack(ctx context.Context, d *Delivery) error {
	return nil
}

func (m *Memory) Nack(ctx context.Context, d *Delivery, delay time.Duration) error {
	next := &Delivery{Job: d.Job, Attempt: d.Attempt + 1}
	if delay <= 0 {
		return m.push(ctx, next)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrQueueClosed
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.timers, timer)
		m.mu.Unlock()
		select {
		case m.ch <- next:
		case <-m.done:
		default:
			// full queue: drop the redelivery; the resync job will
			// pick the document up again
		}
	})
	m.timers[timer] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for timer := range m.timers {
		timer.Stop()
	}
	close(m.done)
}
