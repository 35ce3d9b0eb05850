package slacksink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// deliverer posts one message. *WebhookClient is the production implementation.
type deliverer interface {
	Deliver(ctx context.Context, webhookURL string, msg *Message) error
	Close() error
}

// batcher owns the single goroutine that formats and delivers queued events.
// Flushes never overlap because nothing else touches the client.
type batcher struct {
	queue     *eventQueue
	formatter *MessageFormatter
	client    deliverer
	url       string
	batchSize int
	period    time.Duration

	diag    *selfLog
	metrics *sinkMetrics

	// ctx is cancelled only when a shutdown deadline expires.
	ctx    context.Context
	cancel context.CancelFunc

	flushReq chan chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// discarded is written by the scheduler goroutine before done is closed.
	discarded int
}

func newBatcher(opts Options, queue *eventQueue, client deliverer, diag *selfLog, metrics *sinkMetrics) *batcher {
	ctx, cancel := context.WithCancel(context.Background())

	return &batcher{
		queue:     queue,
		formatter: newMessageFormatter(opts, diag),
		client:    client,
		url:       opts.WebhookURL,
		batchSize: opts.BatchSizeLimit,
		period:    opts.Period,
		diag:      diag,
		metrics:   metrics,
		ctx:       ctx,
		cancel:    cancel,
		flushReq:  make(chan chan struct{}),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (b *batcher) start() {
	go b.run()
}

func (b *batcher) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			b.final()

			return
		case <-ticker.C:
			b.flush(false)
		case <-b.queue.ready:
			b.flush(true)
		case ack := <-b.flushReq:
			b.flush(false)
			close(ack)
		}
	}
}

// flush delivers the events queued when it was called, one batch at a time.
// With fullOnly set it stops as soon as less than a full batch is left.
func (b *batcher) flush(fullOnly bool) {
	pending := b.queue.len()

	for pending > 0 {
		if fullOnly && pending < b.batchSize {
			return
		}

		batch := b.queue.drain(b.batchSize)
		if len(batch) == 0 {
			return
		}

		pending -= len(batch)
		b.metrics.QueueLength.Set(float64(b.queue.len()))

		if unsent := b.send(batch); unsent > 0 {
			b.discard(unsent)

			return
		}
	}
}

// final drains the queue after stop. Whatever is left when the shutdown
// deadline cancels ctx is discarded.
func (b *batcher) final() {
	var sent int

	for {
		batch := b.queue.drain(b.batchSize)
		if len(batch) == 0 {
			break
		}

		b.metrics.QueueLength.Set(float64(b.queue.len()))

		unsent := b.send(batch)
		sent += len(batch) - unsent

		if unsent > 0 {
			b.discard(unsent + len(b.queue.drain(0)))

			break
		}
	}

	b.metrics.QueueLength.Set(0)

	if b.discarded > 0 {
		b.diag.warn("shutdown deadline exceeded, discarding queued events", "count", b.discarded)

		return
	}

	if sent > 0 {
		b.diag.info("final flush completed", "count", sent)
	}
}

func (b *batcher) discard(n int) {
	b.discarded += n
	b.metrics.EventsTotal.WithLabelValues(eventDiscarded).Add(float64(n))
}

// send delivers batch in order and returns how many events were left unsent
// because ctx was cancelled.
func (b *batcher) send(batch []*LogEvent) int {
	id := uuid.NewString()

	b.metrics.BatchesTotal.Inc()

	for i, e := range batch {
		if b.ctx.Err() != nil {
			return len(batch) - i
		}

		b.deliver(id, e)
	}

	return 0
}

// deliver posts a single event. Failures and panics are reported to the
// self-log and never stop the batch.
func (b *batcher) deliver(batchID string, e *LogEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.MessagesTotal.WithLabelValues(messageFailed).Inc()
			b.diag.error("recovered from panic while delivering event", "batch", batchID, "panic", fmt.Sprint(r))
		}
	}()

	msg := b.formatter.Format(e)

	start := time.Now()
	err := b.client.Deliver(b.ctx, b.url, msg)
	b.metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		b.metrics.MessagesTotal.WithLabelValues(messageFailed).Inc()
		b.diag.error("failed to deliver message", "batch", batchID, "level", e.Level.String(), "error", err)

		return
	}

	b.metrics.MessagesTotal.WithLabelValues(messageDelivered).Inc()
}

// flushNow asks the scheduler to deliver everything queued and waits until it
// is done or ctx ends. ctx bounds the wait, not the deliveries themselves.
func (b *batcher) flushNow(ctx context.Context) error {
	ack := make(chan struct{})

	select {
	case b.flushReq <- ack:
	case <-b.stop:
		return ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown stops the scheduler after a final flush bounded by timeout and ctx.
// It returns ErrShutdownTimeout if queued events had to be discarded.
func (b *batcher) shutdown(ctx context.Context, timeout time.Duration) error {
	b.stopOnce.Do(func() {
		close(b.stop)
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-b.done:
	case <-timer.C:
		b.cancel()
		<-b.done
	case <-ctx.Done():
		b.cancel()
		<-b.done
	}

	b.cancel()

	if b.discarded > 0 {
		return fmt.Errorf("%w: %d queued events discarded", ErrShutdownTimeout, b.discarded)
	}

	return nil
}
