package receipt

import (
	"context"
	"errors"
	"sync"

	"restaurant_pos/model"
)

var (
	ErrQueueFull   = errors.New("receipt queue is full")
	ErrQueueClosed = errors.New("receipt queue is closed")
)

// QueueSink A lightweight in-process receipt queue based on Golang channel, not support message persistence.
type QueueSink struct {
	mu      sync.RWMutex
	closed  bool
	channel chan *model.Invoice
}

func NewQueueSink(size int) *QueueSink {
	if size <= 0 {
		size = 10000
	}
	return &QueueSink{channel: make(chan *model.Invoice, size)}
}

// Print enqueues without blocking the cashier.
func (q *QueueSink) Print(ctx context.Context, invoice *model.Invoice) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.channel <- invoice:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until an invoice arrives. ok is false once the queue is closed and drained.
func (q *QueueSink) Dequeue(ctx context.Context) (*model.Invoice, bool) {
	select {
	case invoice, ok := <-q.channel:
		return invoice, ok
	case <-ctx.Done():
		return nil, false
	}
}

func (q *QueueSink) GetMsgCount() int {
	return len(q.channel)
}

// CloseQueue stops accepting receipts. Queued ones can still be dequeued.
func (q *QueueSink) CloseQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.channel)
}

// Drain forwards queued invoices to next until the queue closes or ctx ends.
func (q *QueueSink) Drain(ctx context.Context, next *Dispatcher) {
	for {
		invoice, ok := q.Dequeue(ctx)
		if !ok {
			return
		}
		next.Dispatch(ctx, invoice)
	}
}
