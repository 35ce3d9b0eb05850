package slacksink

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 9, 27, 11, 30, 0, 0, time.UTC)

func newTestFormatter(t *testing.T, opts ...Option) *MessageFormatter {
	t.Helper()

	o, err := NewOptions(testWebhookURL, opts...)
	require.NoError(t, err)

	return NewMessageFormatter(o)
}

func testEvent(level Level, template string, kvs ...interface{}) *LogEvent {
	e := NewEvent(level, template, kvs...)
	e.Timestamp = testTime

	return e
}

func fieldTitles(a Attachment) []string {
	titles := make([]string, 0, len(a.Fields))
	for _, f := range a.Fields {
		titles = append(titles, f.Title)
	}

	return titles
}

func TestMessageFormatter_Defaults(t *testing.T) {
	f := newTestFormatter(t, WithChannel("#general"), WithUserName("bot"), WithIcon(":ghost:"))

	msg := f.Format(testEvent(LevelWarning, "Disk {Disk} at {Percent}%", "Disk", "sda", "Percent", 91))

	assert.Equal(t, "Disk sda at 91%", msg.Text)
	assert.Equal(t, "#general", msg.Channel)
	assert.Equal(t, "bot", msg.UserName)
	assert.Equal(t, ":ghost:", msg.IconEmoji)
	require.Len(t, msg.Attachments, 2)

	def := msg.Attachments[0]
	assert.Equal(t, "[Warning]Disk sda at 91%", def.Fallback)
	assert.Equal(t, "#f0ad4e", def.Color)
	assert.Equal(t, []string{"Level", "Timestamp"}, fieldTitles(def))
	assert.Equal(t, "Warning", def.Fields[0].Value)
	assert.Equal(t, "2025-09-27T11:30:00Z", def.Fields[1].Value)
	require.NotNil(t, def.Fields[0].Short)
	assert.True(t, *def.Fields[0].Short)

	props := msg.Attachments[1]
	assert.Equal(t, def.Fallback, props.Fallback)
	assert.Equal(t, def.Color, props.Color)
	assert.Equal(t, []string{"Disk", "Percent"}, fieldTitles(props))
	assert.Equal(t, "91", props.Fields[1].Value)
}

func TestMessageFormatter_AttachmentToggles(t *testing.T) {
	e := testEvent(LevelError, "failed", "Op", "save", "error", errors.New("boom"))

	t.Run("Short format off", func(t *testing.T) {
		f := newTestFormatter(t, WithDefaultAttachments(true, false), WithPropertyAttachments(true, false))

		msg := f.Format(e)
		require.Len(t, msg.Attachments, 3)
		assert.False(t, *msg.Attachments[0].Fields[0].Short)
		assert.False(t, *msg.Attachments[1].Fields[0].Short)
	})

	t.Run("All hidden", func(t *testing.T) {
		f := newTestFormatter(t,
			WithDefaultAttachments(false, true),
			WithPropertyAttachments(false, true),
			WithExceptionAttachments(false),
		)

		msg := f.Format(e)
		assert.Empty(t, msg.Attachments)
		assert.Equal(t, "failed", msg.Text)
	})

	t.Run("Custom timestamp format", func(t *testing.T) {
		f := newTestFormatter(t, WithTimestampFormat("2006-01-02 15:04"))

		msg := f.Format(e)
		assert.Equal(t, "2025-09-27 11:30", msg.Attachments[0].Fields[1].Value)
	})
}

// An attachment whose fields are all filtered out is not sent.
func TestMessageFormatter_EmptyAttachmentsDropped(t *testing.T) {
	t.Run("No properties", func(t *testing.T) {
		f := newTestFormatter(t)

		msg := f.Format(testEvent(LevelInformation, "hello"))
		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, "Level", msg.Attachments[0].Fields[0].Title)
	})

	t.Run("All properties denied", func(t *testing.T) {
		f := newTestFormatter(t, WithPropertyDenyList("a", "b"))

		msg := f.Format(testEvent(LevelInformation, "hello", "a", 1, "B", 2))
		require.Len(t, msg.Attachments, 1)
	})

	t.Run("All exception fields outside allow list", func(t *testing.T) {
		f := newTestFormatter(t, WithPropertyAllowList("user_id"), WithDefaultAttachments(false, false))

		msg := f.Format(testEvent(LevelError, "failed", "other", 1, "error", errors.New("boom")))
		assert.Empty(t, msg.Attachments)
	})

	t.Run("Encoded message omits attachments", func(t *testing.T) {
		f := newTestFormatter(t, WithDefaultAttachments(false, false))

		b, err := f.Format(testEvent(LevelInformation, "hello")).Encode()
		require.NoError(t, err)
		assert.JSONEq(t, `{"text":"hello"}`, string(b))
	})
}

func TestMessageFormatter_Overrides(t *testing.T) {
	t.Run("Enabled override wins", func(t *testing.T) {
		f := newTestFormatter(t, WithChannel("#general"), WithPropertyOverrides(OverrideCustomChannel))

		msg := f.Format(testEvent(LevelInformation, "hi", "CustomChannel", "#ops", "User", "bob"))

		assert.Equal(t, "#ops", msg.Channel)
		// The override property is consumed and not shown as a field.
		require.Len(t, msg.Attachments, 2)
		assert.Equal(t, []string{"User"}, fieldTitles(msg.Attachments[1]))
	})

	t.Run("Quotes are stripped", func(t *testing.T) {
		f := newTestFormatter(t, WithPropertyOverrides(OverrideCustomUserName, OverrideCustomIcon))

		msg := f.Format(testEvent(LevelInformation, "hi", "customusername", `"deploy-bot"`, "CustomIcon", ":rocket:"))

		assert.Equal(t, "deploy-bot", msg.UserName)
		assert.Equal(t, ":rocket:", msg.IconEmoji)
	})

	t.Run("Disabled override is a plain property", func(t *testing.T) {
		f := newTestFormatter(t, WithChannel("#general"))

		msg := f.Format(testEvent(LevelInformation, "hi", "CustomChannel", "#ops"))

		assert.Equal(t, "#general", msg.Channel)
		assert.Equal(t, []string{"CustomChannel"}, fieldTitles(msg.Attachments[1]))
	})

	t.Run("Empty value keeps the default", func(t *testing.T) {
		f := newTestFormatter(t, WithChannel("#general"), WithPropertyOverrides(OverrideCustomChannel))

		msg := f.Format(testEvent(LevelInformation, "hi", "CustomChannel", `""`))

		assert.Equal(t, "#general", msg.Channel)
	})
}

func TestMessageFormatter_AllowDeny(t *testing.T) {
	t.Run("Allow wins over deny", func(t *testing.T) {
		f := newTestFormatter(t, WithPropertyAllowList("user_id"), WithPropertyDenyList("user_id"))

		msg := f.Format(testEvent(LevelInformation, "hi", "user_id", 7, "other", 1))

		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, []string{"user_id"}, fieldTitles(msg.Attachments[0]))
	})

	t.Run("Deny list is case-insensitive", func(t *testing.T) {
		f := newTestFormatter(t, WithPropertyDenyList("PASSWORD"))

		msg := f.Format(testEvent(LevelInformation, "hi", "password", "x", "user", "bob"))

		assert.Equal(t, []string{"user"}, fieldTitles(msg.Attachments[1]))
	})

	t.Run("Default fields are filtered", func(t *testing.T) {
		f := newTestFormatter(t, WithPropertyDenyList("Timestamp"))

		msg := f.Format(testEvent(LevelInformation, "hi", "user", "bob"))

		require.Len(t, msg.Attachments, 2)
		assert.Equal(t, []string{"Level"}, fieldTitles(msg.Attachments[0]))
	})

	t.Run("Allow list without default fields drops the default attachment", func(t *testing.T) {
		f := newTestFormatter(t, WithPropertyAllowList("user_id"))

		msg := f.Format(testEvent(LevelInformation, "hi", "user_id", 7))

		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, []string{"user_id"}, fieldTitles(msg.Attachments[0]))
	})

	t.Run("Exception fields are filtered", func(t *testing.T) {
		f := newTestFormatter(t, WithPropertyDenyList("Stack Trace", "Type"))

		msg := f.Format(testEvent(LevelError, "failed", "error", WithStack(errors.New("boom"))))

		require.Len(t, msg.Attachments, 2)
		assert.Equal(t, []string{"Message", "Exception"}, fieldTitles(msg.Attachments[1]))
	})
}

func TestMessageFormatter_Exception(t *testing.T) {
	f := newTestFormatter(t, WithAttachmentColors(map[Level]string{LevelFatal: "#000"}))

	e := testEvent(LevelError, "failed")
	e.Exception = &Exception{
		Type:       "InvalidOperation",
		Message:    "outer",
		StackTrace: "at main()",
		Aggregate: []*Exception{
			{Message: "first"},
			{Message: "second"},
		},
	}

	msg := f.Format(e)
	require.Len(t, msg.Attachments, 2)

	a := msg.Attachments[1]
	assert.Equal(t, "Exception", a.Title)
	assert.Equal(t, "Exception: outer \n at main()", a.Fallback)
	assert.Equal(t, "#000", a.Color)
	assert.Equal(t, []string{"fields"}, a.MrkdwnIn)
	assert.Equal(t, []string{"Message", "Type", "Exception", "Stack Trace"}, fieldTitles(a))

	assert.Equal(t, "outer", a.Fields[0].Value)
	assert.Nil(t, a.Fields[0].Short)
	assert.Equal(t, "`InvalidOperation`", a.Fields[1].Value)
	assert.Equal(t, "```outer ---> first | second```", a.Fields[2].Value)
	require.NotNil(t, a.Fields[2].Short)
	assert.False(t, *a.Fields[2].Short)
	assert.Equal(t, "```at main()```", a.Fields[3].Value)

	t.Run("No stack trace field without a stack", func(t *testing.T) {
		e := testEvent(LevelError, "failed", "error", errors.New("boom"))

		a := f.Format(e).Attachments[1]
		assert.Equal(t, []string{"Message", "Type", "Exception"}, fieldTitles(a))
		assert.Equal(t, "`errorString`", a.Fields[1].Value)
	})

	t.Run("Wrapped error keeps inner type and stack", func(t *testing.T) {
		err := fmt.Errorf("save order: %w", WithStack(errors.New("disk full")))
		e := testEvent(LevelError, "failed", "error", err)

		a := f.Format(e).Attachments[1]
		require.Equal(t, []string{"Message", "Type", "Exception", "Stack Trace"}, fieldTitles(a))
		assert.Equal(t, "`wrapError ---> errorString`", a.Fields[1].Value)
		assert.Equal(t, "```save order: disk full ---> disk full```", a.Fields[2].Value)
		assert.NotContains(t, a.Fields[3].Value, innerSeparator)
		assert.Contains(t, a.Fields[3].Value, "goroutine")
	})

	t.Run("Long stack trace is truncated", func(t *testing.T) {
		e := testEvent(LevelError, "failed")
		e.Exception = &Exception{Type: "T", Message: "m", StackTrace: strings.Repeat("s", 5000)}

		a := f.Format(e).Attachments[1]
		stack := strings.TrimSuffix(strings.TrimPrefix(a.Fields[3].Value, "```"), "```")

		assert.Equal(t, 1000, len(stack))
		assert.True(t, strings.HasSuffix(stack, "..."))
	})
}

func TestMessageFormatter_TextFormatterError(t *testing.T) {
	failing := TextFormatterFunc(func(*LogEvent) (string, error) { return "", errors.New("template broken") })

	f := newTestFormatter(t, WithTextFormatter(failing))

	msg := f.Format(testEvent(LevelInformation, "Hello {Name}", "Name", "gopher"))
	assert.Equal(t, "Hello gopher", msg.Text)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantLen int
		cut     bool
	}{
		{"Short", "abc", 3, false},
		{"Exactly the limit", strings.Repeat("a", 1000), 1000, false},
		{"One over", strings.Repeat("a", 1001), 1000, true},
		{"Very long", strings.Repeat("a", 5000), 1000, true},
		{"Multi-byte", strings.Repeat("é", 1200), 1000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, maxFieldLength)

			assert.Equal(t, tt.wantLen, utf8.RuneCountInString(got))
			assert.Equal(t, tt.cut, strings.HasSuffix(got, "...") && got != tt.in)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
