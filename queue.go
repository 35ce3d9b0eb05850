package slacksink

import "sync"

// eventQueue is a FIFO buffer between producers and the batching goroutine.
// Producers only take a mutex; they never wait for the consumer.
type eventQueue struct {
	mu sync.Mutex

	// events[head:] are queued, oldest first.
	events []*LogEvent
	head   int

	limit     int
	batchSize int

	// ready receives a signal when the queue holds at least batchSize events.
	ready chan struct{}
}

// newEventQueue creates a queue; limit <= 0 means unbounded.
func newEventQueue(limit, batchSize int) *eventQueue {
	return &eventQueue{
		limit:     limit,
		batchSize: batchSize,
		ready:     make(chan struct{}, 1),
	}
}

// push appends e and reports whether it was accepted.
// A full bounded queue rejects the newest event.
func (q *eventQueue) push(e *LogEvent) bool {
	q.mu.Lock()

	if q.limit > 0 && q.count() >= q.limit {
		q.mu.Unlock()

		return false
	}

	q.events = append(q.events, e)
	full := q.count() >= q.batchSize

	q.mu.Unlock()

	if full {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}

	return true
}

// drain removes and returns up to size of the oldest events; size <= 0 drains everything.
func (q *eventQueue) drain(size int) []*LogEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count()
	if size > 0 && n > size {
		n = size
	}

	if n == 0 {
		return nil
	}

	batch := make([]*LogEvent, n)
	copy(batch, q.events[q.head:q.head+n])

	for i := q.head; i < q.head+n; i++ {
		q.events[i] = nil
	}

	q.head += n
	q.compact()

	return batch
}

// compact reclaims the consumed prefix of the backing array.
func (q *eventQueue) compact() {
	const threshold = 1024

	switch {
	case q.head == len(q.events):
		if cap(q.events) > threshold {
			q.events = nil
		} else {
			q.events = q.events[:0]
		}

		q.head = 0
	case q.head > threshold && q.head > len(q.events)/2:
		rest := make([]*LogEvent, len(q.events)-q.head)
		copy(rest, q.events[q.head:])
		q.events = rest
		q.head = 0
	}
}

func (q *eventQueue) count() int {
	return len(q.events) - q.head
}

// len returns the number of queued events.
func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.count()
}
