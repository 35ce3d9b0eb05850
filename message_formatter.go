package slacksink

import (
	"strings"
	"time"
)

const (
	maxFieldLength = 1000
	ellipsis       = "..."
)

// MessageFormatter turns log events into webhook messages.
// It is safe for concurrent use; it never modifies the events it formats.
type MessageFormatter struct {
	opts      Options
	filter    propertyFilter
	overrides nameSet
	diag      *selfLog
}

// NewMessageFormatter creates a formatter for the given options.
// Options are copied; later changes by the caller have no effect.
func NewMessageFormatter(opts Options) *MessageFormatter {
	return newMessageFormatter(opts.clone(), nil)
}

func newMessageFormatter(opts Options, diag *selfLog) *MessageFormatter {
	if opts.TextFormatter == nil {
		opts.TextFormatter = NewMessageTextFormatter()
	}

	overrides := make(nameSet, len(opts.PropertyOverrideList))
	for _, p := range opts.PropertyOverrideList {
		overrides.add(p.String())
	}

	return &MessageFormatter{
		opts: opts,
		filter: propertyFilter{
			allow: newNameSet(opts.PropertyAllowList),
			deny:  newNameSet(opts.PropertyDenyList),
		},
		overrides: overrides,
		diag:      diag,
	}
}

// Format builds the message for e. Level filtering is the caller's job.
func (f *MessageFormatter) Format(e *LogEvent) *Message {
	return &Message{
		Text:        f.text(e),
		Channel:     f.overridable(e, OverrideCustomChannel, f.opts.CustomChannel),
		UserName:    f.overridable(e, OverrideCustomUserName, f.opts.CustomUserName),
		IconEmoji:   f.overridable(e, OverrideCustomIcon, f.opts.CustomIcon),
		Attachments: f.attachments(e),
	}
}

func (f *MessageFormatter) text(e *LogEvent) string {
	text, err := f.opts.TextFormatter.Format(e)
	if err != nil {
		if f.diag != nil {
			f.diag.warn("text formatter failed, using rendered message", "error", err)
		}

		return e.RenderMessage()
	}

	return text
}

// overridable returns the value of the same-named event property when the
// override is enabled and the property renders to a non-empty value.
func (f *MessageFormatter) overridable(e *LogEvent, prop OverridableProperty, fallback string) string {
	if !f.overrides.contains(prop.String()) {
		return fallback
	}

	p, ok := e.Property(prop.String())
	if !ok {
		return fallback
	}

	value := strings.ReplaceAll(RenderValue(p.Value), `"`, "")
	if value == "" {
		return fallback
	}

	return value
}

// attachments builds, in order, the default, property and exception attachments.
// Attachments left without fields are not emitted.
func (f *MessageFormatter) attachments(e *LogEvent) []Attachment {
	var out []Attachment

	if f.opts.ShowDefaultAttachments {
		if a := f.defaultAttachment(e); len(a.Fields) > 0 {
			out = append(out, a)
		}
	}

	if f.opts.ShowPropertyAttachments {
		if a := f.propertyAttachment(e); len(a.Fields) > 0 {
			out = append(out, a)
		}
	}

	if e.Exception != nil && f.opts.ShowExceptionAttachments {
		if a := f.exceptionAttachment(e.Exception); len(a.Fields) > 0 {
			out = append(out, a)
		}
	}

	return out
}

func (f *MessageFormatter) fallback(e *LogEvent) string {
	return "[" + e.Level.String() + "]" + e.RenderMessage()
}

func (f *MessageFormatter) defaultAttachment(e *LogEvent) Attachment {
	short := boolPtr(f.opts.DefaultAttachmentsShortFormat)

	a := Attachment{
		Fallback: f.fallback(e),
		Color:    f.opts.colorFor(e.Level),
	}

	f.addField(&a, Field{Title: "Level", Value: e.Level.String(), Short: short})
	f.addField(&a, Field{Title: "Timestamp", Value: f.timestamp(e.Timestamp), Short: short})

	return a
}

func (f *MessageFormatter) timestamp(t time.Time) string {
	layout := f.opts.TimestampFormat
	if layout == "" {
		layout = time.RFC3339
	}

	return t.Format(layout)
}

func (f *MessageFormatter) propertyAttachment(e *LogEvent) Attachment {
	a := Attachment{
		Fallback: f.fallback(e),
		Color:    f.opts.colorFor(e.Level),
	}

	for _, p := range e.Properties {
		// Consumed as a channel/username/icon override.
		if f.overrides.contains(p.Name) {
			continue
		}

		if !f.filter.includes(p.Name) {
			continue
		}

		a.Fields = append(a.Fields, Field{
			Title: p.Name,
			Value: RenderValue(p.Value),
			Short: boolPtr(f.opts.PropertyAttachmentsShortFormat),
		})
	}

	return a
}

func (f *MessageFormatter) exceptionAttachment(x *Exception) Attachment {
	a := Attachment{
		Title:    "Exception",
		Fallback: "Exception: " + x.Message + " \n " + truncate(x.FlattenedStackTrace(), maxFieldLength),
		Color:    f.opts.colorFor(LevelFatal),
		MrkdwnIn: []string{"fields"},
	}

	f.addField(&a, Field{Title: "Message", Value: truncate(x.Message, maxFieldLength)})
	f.addField(&a, Field{Title: "Type", Value: "`" + x.FlattenedType() + "`"})
	f.addField(&a, Field{
		Title: "Exception",
		Value: codeBlock(truncate(x.FlattenedMessage(), maxFieldLength)),
		Short: boolPtr(false),
	})

	if x.hasStackTrace() {
		f.addField(&a, Field{
			Title: "Stack Trace",
			Value: codeBlock(truncate(x.FlattenedStackTrace(), maxFieldLength)),
			Short: boolPtr(false),
		})
	}

	return a
}

// addField appends field unless the allow/deny lists exclude its title.
func (f *MessageFormatter) addField(a *Attachment, field Field) {
	if !f.filter.includes(field.Title) {
		return
	}

	a.Fields = append(a.Fields, field)
}

func codeBlock(s string) string {
	return "```" + s + "```"
}

// truncate shortens s to at most limit runes, ending in "..." when cut.
func truncate(s string, limit int) string {
	if limit <= len(ellipsis) || len(s) <= limit {
		return s
	}

	r := []rune(s)
	if len(r) <= limit {
		return s
	}

	return string(r[:limit-len(ellipsis)]) + ellipsis
}
