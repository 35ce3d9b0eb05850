package slacksink

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// EventSink receives log events. *Sink implements it; Handler and Logger
// write to any EventSink, so tests and fan-out sinks can stand in for Slack.
//
// Emit must not block on I/O and must be safe for concurrent use.
type EventSink interface {
	// Enabled reports whether events of level would be kept.
	Enabled(level Level) bool

	// Emit takes ownership of e. Callers must not modify it afterwards.
	Emit(e *LogEvent)
}

var _ EventSink = (*Sink)(nil)

// LevelFromSlog maps a slog level onto the sink's levels. Levels below
// slog.LevelDebug become Verbose and levels from slog.LevelError+4 become Fatal.
func LevelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelDebug:
		return LevelVerbose
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInformation
	case l < slog.LevelError:
		return LevelWarning
	case l < slog.LevelError+4:
		return LevelError
	default:
		return LevelFatal
	}
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// AddSource records the caller as a "Source" property ("file:line").
	AddSource bool
}

// Handler is a slog.Handler that forwards records to an EventSink.
//
// Attributes become event properties in the order they were added; attributes
// inside groups are named "group.key". An error value under the key "error"
// or "err" becomes the event's exception instead of a property.
type Handler struct {
	sink   EventSink
	opts   HandlerOptions
	attrs  []Property
	err    *Exception
	prefix string
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler creates a handler writing to sink. opts may be nil.
func NewHandler(sink EventSink, opts *HandlerOptions) *Handler {
	h := &Handler{sink: sink}
	if opts != nil {
		h.opts = *opts
	}

	return h
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.sink.Enabled(LevelFromSlog(level))
}

// Handle implements slog.Handler. It never returns an error; delivery problems
// are reported by the sink itself.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	e := &LogEvent{
		Level:           LevelFromSlog(r.Level),
		Timestamp:       ts,
		MessageTemplate: r.Message,
		Message:         r.Message,
		Properties:      make([]Property, 0, len(h.attrs)+r.NumAttrs()+1),
		Exception:       h.err,
	}

	e.Properties = append(e.Properties, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		e.Properties, e.Exception = appendAttr(e.Properties, e.Exception, h.prefix, a)

		return true
	})

	if h.opts.AddSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			e.Properties = append(e.Properties, Property{Name: "Source", Value: fmt.Sprintf("%s:%d", frame.File, frame.Line)})
		}
	}

	h.sink.Emit(e)

	return nil
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	h2 := h.clone()

	for _, a := range attrs {
		h2.attrs, h2.err = appendAttr(h2.attrs, h2.err, h2.prefix, a)
	}

	return h2
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	h2 := h.clone()
	h2.prefix = h.prefix + name + "."

	return h2
}

func (h *Handler) clone() *Handler {
	return &Handler{
		sink:   h.sink,
		opts:   h.opts,
		attrs:  append([]Property(nil), h.attrs...),
		err:    h.err,
		prefix: h.prefix,
	}
}

// appendAttr flattens a into props. The first error found under an error key
// is returned as the exception.
func appendAttr(props []Property, x *Exception, prefix string, a slog.Attr) ([]Property, *Exception) {
	a.Value = a.Value.Resolve()

	if a.Equal(slog.Attr{}) {
		return props, x
	}

	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = prefix + a.Key + "."
		}

		for _, ga := range a.Value.Group() {
			props, x = appendAttr(props, x, groupPrefix, ga)
		}

		return props, x
	}

	if x == nil && prefix == "" && isErrorKey(a.Key) {
		if err, ok := a.Value.Any().(error); ok && err != nil {
			return props, ExceptionFromError(err)
		}
	}

	return append(props, Property{Name: prefix + a.Key, Value: a.Value.Any()}), x
}

func isErrorKey(key string) bool {
	return key == "error" || key == "err"
}
