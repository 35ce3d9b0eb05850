// Package slacksink delivers structured log events to a Slack incoming webhook.
//
// Events handed to a Sink are buffered in memory and posted in batches from a
// single background goroutine, one webhook message per event. Logging calls
// never wait for the network: when the buffer is full, new events are dropped
// and reported on the sink's diagnostic writer.
//
//	sink, err := slacksink.New(os.Getenv("SLACK_WEBHOOK_URL"),
//		slacksink.WithMinimumLevel(slacksink.LevelWarning),
//		slacksink.WithChannel("#alerts"),
//	)
//	if err != nil {
//		return err
//	}
//	defer sink.Close()
//
//	sink.Emit(slacksink.NewEvent(slacksink.LevelError, "Payment {OrderID} failed", "OrderID", 42))
package slacksink

import (
	"context"
	"fmt"
	"sync"
)

// Sink buffers log events and delivers them to Slack in the background.
// Instances of Sink are safe for concurrent use.
type Sink struct {
	opts Options

	queue   *eventQueue
	batcher *batcher
	client  deliverer
	diag    *selfLog
	metrics *sinkMetrics

	mu     sync.RWMutex
	closed bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a sink posting to webhookURL and starts its background scheduler.
// Configuration errors are returned immediately and wrap ErrInvalidOptions.
func New(webhookURL string, opts ...Option) (*Sink, error) {
	o, err := NewOptions(webhookURL, opts...)
	if err != nil {
		return nil, err
	}

	return newSink(o, NewWebhookClient(o.RequestTimeout)), nil
}

// NewFromConfig creates a sink from environment configuration. opts are applied
// after the configuration and win over it.
func NewFromConfig(cfg *Config, opts ...Option) (*Sink, error) {
	if cfg == nil {
		return nil, invalidOptionf("config is nil")
	}

	cfgOpts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	return New(cfg.WebhookURL, append(cfgOpts, opts...)...)
}

func newSink(o Options, client deliverer) *Sink {
	diag := newSelfLog(o.SelfLog, o.Name, o.SelfLogColor)
	metrics := newSinkMetrics(o.MetricsRegisterer, o.Name)

	queueLimit := o.QueueLimit
	if queueLimit == UnboundedQueue {
		queueLimit = 0
	}

	queue := newEventQueue(queueLimit, o.BatchSizeLimit)

	s := &Sink{
		opts:    o,
		queue:   queue,
		client:  client,
		diag:    diag,
		metrics: metrics,
		batcher: newBatcher(o, queue, client, diag, metrics),
	}

	s.batcher.start()

	return s
}

// Enabled reports whether events of the given level pass the sink's minimum level.
func (s *Sink) Enabled(level Level) bool {
	if s == nil {
		return false
	}

	return level.IsValid() && level >= s.opts.MinimumLevel
}

// Emit queues e for delivery. It returns immediately and never panics; events
// below the minimum level are ignored and events that cannot be queued are
// dropped and reported on the self-log.
func (s *Sink) Emit(e *LogEvent) {
	if s == nil || e == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.diag.error("recovered from panic in Emit", "panic", fmt.Sprint(r))
		}
	}()

	if !s.Enabled(e.Level) {
		s.metrics.EventsTotal.WithLabelValues(eventFiltered).Inc()

		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.metrics.EventsTotal.WithLabelValues(eventDropped).Inc()
		s.diag.warn("event dropped, sink is closed", "level", e.Level.String())

		return
	}

	if !s.queue.push(e) {
		s.metrics.EventsTotal.WithLabelValues(eventDropped).Inc()
		s.diag.warn("event dropped, queue is full", "limit", s.opts.QueueLimit, "level", e.Level.String())

		return
	}

	s.metrics.EventsTotal.WithLabelValues(eventAccepted).Inc()
	s.metrics.QueueLength.Set(float64(s.queue.len()))
}

// Flush delivers every event queued so far and waits until that is done or ctx ends.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return ErrSinkClosed
	}

	return s.batcher.flushNow(ctx)
}

// Shutdown stops accepting events, delivers what is queued and releases the
// HTTP transport. The final flush ends at ShutdownTimeout or when ctx is done,
// whichever comes first; events still queued then are discarded and
// ErrShutdownTimeout is returned. Calling Shutdown again returns the first result.
func (s *Sink) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		err := s.batcher.shutdown(ctx, s.opts.ShutdownTimeout)

		if cerr := s.client.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close webhook client: %w", cerr)
		}

		s.shutdownErr = err
	})

	return s.shutdownErr
}

// Close is Shutdown bounded only by ShutdownTimeout.
func (s *Sink) Close() error {
	return s.Shutdown(context.Background())
}
