package slacksink

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink is an EventSink that keeps events in memory.
type memorySink struct {
	mu     sync.Mutex
	min    Level
	events []*LogEvent
}

func (s *memorySink) Enabled(level Level) bool {
	return level >= s.min
}

func (s *memorySink) Emit(e *LogEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
}

func (s *memorySink) last(t *testing.T) *LogEvent {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	require.NotEmpty(t, s.events)

	return s.events[len(s.events)-1]
}

func propertyNames(e *LogEvent) []string {
	names := make([]string, 0, len(e.Properties))
	for _, p := range e.Properties {
		names = append(names, p.Name)
	}

	return names
}

func TestHandler_Enabled(t *testing.T) {
	sink := &memorySink{min: LevelWarning}
	logger := slog.New(NewHandler(sink, nil))

	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	logger.Info("dropped")
	logger.Warn("kept")

	require.Len(t, sink.events, 1)
	assert.Equal(t, LevelWarning, sink.events[0].Level)
}

func TestHandler_Handle(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewHandler(sink, nil)).With("service", "checkout")

	logger.Error("payment {declined}",
		"error", errors.New("card expired"),
		slog.Group("request", "method", "POST", slog.Group("client", "ip", "10.0.0.1")),
		"duration", 2*time.Second,
		"count", 3,
	)

	e := sink.last(t)
	assert.Equal(t, LevelError, e.Level)
	assert.False(t, e.Timestamp.IsZero())

	// slog messages are not templates.
	assert.Equal(t, "payment {declined}", e.RenderMessage())

	require.NotNil(t, e.Exception)
	assert.Equal(t, "card expired", e.Exception.Message)

	assert.Equal(t, []string{"service", "request.method", "request.client.ip", "duration", "count"}, propertyNames(e))
	assert.Equal(t, 2*time.Second, e.Properties[3].Value)
	assert.Equal(t, int64(3), e.Properties[4].Value)
}

func TestHandler_WithGroup(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewHandler(sink, nil)).WithGroup("http").With("path", "/pay").WithGroup("")

	logger.Info("done", "status", 200, "err", errors.New("not an exception inside a group"))

	e := sink.last(t)
	assert.Equal(t, []string{"http.path", "http.status", "http.err"}, propertyNames(e))
	assert.Nil(t, e.Exception)
}

func TestHandler_WithAttrsError(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewHandler(sink, nil)).With("err", errors.New("from context"))

	logger.Warn("first")
	logger.Warn("second", "error", errors.New("ignored, context error wins"))

	assert.Equal(t, "from context", sink.events[0].Exception.Message)
	assert.Equal(t, "from context", sink.events[1].Exception.Message)
	assert.Equal(t, []string{"error"}, propertyNames(sink.events[1]))
}

func TestHandler_EmptyAttrsAreSkipped(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewHandler(sink, nil))

	logger.Info("msg", slog.Attr{}, slog.Group("empty"), "k", "v")

	assert.Equal(t, []string{"k"}, propertyNames(sink.last(t)))
}

func TestHandler_AddSource(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewHandler(sink, &HandlerOptions{AddSource: true}))

	logger.Info("where")

	p, ok := sink.last(t).Property("Source")
	require.True(t, ok)
	assert.True(t, strings.Contains(p.Value.(string), "handler_test.go:"), p.Value)
}

func TestHandler_WithSink(t *testing.T) {
	hook := newWebhookRecorder(t, nil)
	s, _ := newTestSink(t, hook.server.URL)

	slog.New(NewHandler(s, nil)).Warn("disk full", "disk", "sda")

	require.NoError(t, s.Close())
	require.Equal(t, 1, hook.count())
	assert.Equal(t, "disk full", hook.messages[0].Text)
}
