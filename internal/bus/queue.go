package bus

import (
	"context"
	"sync"

	"main/internal/schema"
	"main/pkg/exception"
)

// Event is the unit passed through the in-memory bus. Feed and gateway
// goroutines publish, the supervisor is the only consumer.
type Event struct {
	Header schema.EventHeader

	Market  schema.MarketEvent
	Ack     schema.OrderAck
	Fill    schema.Fill
	Feed    schema.FeedState
	Gateway schema.GatewayState
	FeedErr error
}

// Queue is a bounded, non-blocking event queue.
type Queue struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// TryPublish enqueues an event without blocking. The read lock keeps
// the send out of Close's critical section, so a publisher can never
// hit a freshly closed channel.
func (q *Queue) TryPublish(e Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return exception.ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return exception.ErrQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
