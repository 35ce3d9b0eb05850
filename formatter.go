package slacksink

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// TextFormatter renders the "text" of a Slack message from a log event.
type TextFormatter interface {
	Format(e *LogEvent) (string, error)
}

// TextFormatterFunc adapts an ordinary function to the TextFormatter interface.
type TextFormatterFunc func(e *LogEvent) (string, error)

// Format calls f(e).
func (f TextFormatterFunc) Format(e *LogEvent) (string, error) {
	return f(e)
}

// messageTextFormatter renders only the event message.
type messageTextFormatter struct{}

// NewMessageTextFormatter creates the default formatter, which renders the event message.
func NewMessageTextFormatter() *messageTextFormatter {
	return &messageTextFormatter{}
}

// Format returns the rendered message.
func (f *messageTextFormatter) Format(e *LogEvent) (string, error) {
	return e.RenderMessage(), nil
}

// lineTextFormatter renders a single human-readable line.
type lineTextFormatter struct {
	timeLayout string
}

// LineOption configures a line formatter.
type LineOption func(*lineTextFormatter)

// WithLineTimeLayout sets the layout of the leading timestamp.
func WithLineTimeLayout(layout string) LineOption {
	return func(f *lineTextFormatter) {
		f.timeLayout = layout
	}
}

// NewLineTextFormatter creates a formatter producing lines such as
//
//	2025-09-27T11:30:00Z [Error] request failed {path="/api/v1/users", status=500}
func NewLineTextFormatter(opts ...LineOption) *lineTextFormatter {
	f := &lineTextFormatter{timeLayout: time.RFC3339}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Format converts a log event to a single-line text format.
func (f *lineTextFormatter) Format(e *LogEvent) (string, error) {
	var b bytes.Buffer

	// Timestamp
	b.WriteString(e.Timestamp.Format(f.timeLayout))
	b.WriteString(" ")

	// Level
	b.WriteString("[")
	b.WriteString(e.Level.String())
	b.WriteString("] ")

	// Message
	b.WriteString(strings.TrimRight(e.RenderMessage(), "\n"))

	// Add properties only if they exist, in event order.
	if len(e.Properties) > 0 {
		b.WriteString(" {")

		for i, p := range e.Properties {
			if i > 0 {
				b.WriteString(", ")
			}

			b.WriteString(p.Name)
			b.WriteString("=")

			// Handle strings and other types differently for quoting.
			if s, ok := p.Value.(string); ok {
				b.WriteString(fmt.Sprintf("%q", s))
			} else {
				b.WriteString(RenderValue(p.Value))
			}
		}

		b.WriteString("}")
	}

	return b.String(), nil
}
