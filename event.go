package slacksink

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Property is a single named value attached to a log event.
type Property struct {
	Name  string
	Value interface{}
}

// LogEvent is a structured log event handed to a sink by the logging pipeline.
// The sink treats it as read-only.
type LogEvent struct {
	Level     Level
	Timestamp time.Time

	// MessageTemplate is the message with {Name} placeholders for properties.
	MessageTemplate string

	// Message is the already rendered message. When empty, RenderMessage
	// renders MessageTemplate against Properties.
	Message string

	// Properties keeps the order in which the application supplied them.
	Properties []Property

	Exception *Exception
}

// NewEvent creates an event stamped with the current time.
// kvs are alternating name/value pairs; a trailing key without a value is recorded
// with the value "KEY_WITHOUT_VALUE" and non-string keys are skipped. An error
// under the key "error" or "err" becomes the event's exception.
func NewEvent(level Level, messageTemplate string, kvs ...interface{}) *LogEvent {
	e := &LogEvent{
		Level:           level,
		Timestamp:       time.Now(),
		MessageTemplate: messageTemplate,
	}

	e.applyKVs(kvs...)

	return e
}

// Property returns the first property whose name matches name case-insensitively.
func (e *LogEvent) Property(name string) (Property, bool) {
	for _, p := range e.Properties {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}

	return Property{}, false
}

// RenderMessage returns the display message of the event.
func (e *LogEvent) RenderMessage() string {
	if e.Message != "" {
		return e.Message
	}

	return renderTemplate(e.MessageTemplate, e.Properties)
}

// renderTemplate substitutes {Name} placeholders. "{{" and "}}" are literal braces,
// a leading "@" or "$" and any ":format" suffix in a placeholder are ignored,
// and placeholders without a matching property are left untouched.
func renderTemplate(tmpl string, props []Property) string {
	if !strings.ContainsAny(tmpl, "{}") {
		return tmpl
	}

	var b strings.Builder

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]

		if c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}' {
			b.WriteByte('}')
			i++

			continue
		}

		if c != '{' {
			b.WriteByte(c)

			continue
		}

		if i+1 < len(tmpl) && tmpl[i+1] == '{' {
			b.WriteByte('{')
			i++

			continue
		}

		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			b.WriteString(tmpl[i:])

			break
		}

		token := tmpl[i : i+end+1]
		name := strings.TrimLeft(token[1:len(token)-1], "@$")

		if idx := strings.IndexAny(name, ":,"); idx >= 0 {
			name = name[:idx]
		}

		if v, ok := findProperty(props, name); ok {
			b.WriteString(RenderValue(v))
		} else {
			b.WriteString(token)
		}

		i += end
	}

	return b.String()
}

func findProperty(props []Property, name string) (interface{}, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}

	return nil, false
}

// RenderValue converts a property value into the text shown in messages.
func RenderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case error:
		return val.Error()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case []byte:
		return string(val)
	}

	switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}

	return fmt.Sprint(v)
}
