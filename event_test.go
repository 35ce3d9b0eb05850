package slacksink

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	t.Run("Pairs become ordered properties", func(t *testing.T) {
		e := NewEvent(LevelWarning, "msg", "b", 2, "a", "x")

		assert.Equal(t, LevelWarning, e.Level)
		assert.Equal(t, "msg", e.MessageTemplate)
		assert.False(t, e.Timestamp.IsZero())
		assert.Equal(t, []Property{{Name: "b", Value: 2}, {Name: "a", Value: "x"}}, e.Properties)
	})

	t.Run("Odd and non-string keys", func(t *testing.T) {
		e := NewEvent(LevelInformation, "msg", 1, "skipped", "k", "v", "dangling")

		assert.Equal(t, []Property{
			{Name: "k", Value: "v"},
			{Name: "dangling", Value: "KEY_WITHOUT_VALUE"},
		}, e.Properties)
	})

	t.Run("Trailing key keeps event order", func(t *testing.T) {
		e := NewEvent(LevelInformation, "x", "A", 1, "B")

		assert.Equal(t, []string{"A", "B"}, propertyNames(e))
	})

	t.Run("Error key becomes the exception", func(t *testing.T) {
		err := errors.New("boom")
		e := NewEvent(LevelError, "failed", "error", err, "err", errors.New("second"))

		require.NotNil(t, e.Exception)
		assert.Equal(t, "boom", e.Exception.Message)

		// Only the first error is taken; the next one stays a property.
		require.Len(t, e.Properties, 1)
		assert.Equal(t, "err", e.Properties[0].Name)
	})

	t.Run("Non-error value under error key stays a property", func(t *testing.T) {
		e := NewEvent(LevelError, "failed", "error", "just text")

		assert.Nil(t, e.Exception)
		assert.Equal(t, []Property{{Name: "error", Value: "just text"}}, e.Properties)
	})
}

func TestLogEvent_Property(t *testing.T) {
	e := NewEvent(LevelInformation, "", "CustomChannel", "#ops")

	p, ok := e.Property("customchannel")
	require.True(t, ok)
	assert.Equal(t, "#ops", p.Value)

	_, ok = e.Property("missing")
	assert.False(t, ok)
}

func TestRenderMessage(t *testing.T) {
	tests := []struct {
		name  string
		event *LogEvent
		want  string
	}{
		{
			name:  "Rendered message wins",
			event: &LogEvent{MessageTemplate: "{A}", Message: "already rendered", Properties: []Property{{Name: "A", Value: 1}}},
			want:  "already rendered",
		},
		{
			name:  "Plain template",
			event: &LogEvent{MessageTemplate: "no placeholders"},
			want:  "no placeholders",
		},
		{
			name: "Placeholders, escapes and formats",
			event: &LogEvent{
				MessageTemplate: "{{literal}} {Name} {@Obj} {Missing} {N:000} {$S,10}",
				Properties: []Property{
					{Name: "Name", Value: "x"},
					{Name: "Obj", Value: map[string]int{"a": 1}},
					{Name: "N", Value: 5},
					{Name: "S", Value: "str"},
				},
			},
			want: `{literal} x {"a":1} {Missing} 5 str`,
		},
		{
			name:  "Unclosed brace",
			event: &LogEvent{MessageTemplate: "open {Name", Properties: []Property{{Name: "Name", Value: "x"}}},
			want:  "open {Name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.RenderMessage())
		})
	}
}

func TestRenderValue(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, "null"},
		{"string", "plain", "plain"},
		{"error", errors.New("bad"), "bad"},
		{"time", ts, "2025-01-02T03:04:05Z"},
		{"stringer", 1500 * time.Millisecond, "1.5s"},
		{"bool", true, "true"},
		{"bytes", []byte("raw"), "raw"},
		{"int", 42, "42"},
		{"float", 91.5, "91.5"},
		{"slice", []int{1, 2}, "[1,2]"},
		{"struct", struct {
			ID int `json:"id"`
		}{7}, `{"id":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderValue(tt.in))
		})
	}
}
