package slacksink

import (
	"fmt"
	"runtime"
	"time"
)

// Logger writes leveled events with key/value properties to an EventSink.
// Instances of Logger are safe for concurrent use; With returns a new Logger.
type Logger struct {
	sink      EventSink
	props     []Property
	addSource bool
}

// NewLogger creates a logger writing to sink.
func NewLogger(sink EventSink) *Logger {
	return &Logger{sink: sink}
}

// With returns a new logger whose events carry the given key/value pairs.
// It panics if the number of arguments is odd or if a key is not a string.
func (l *Logger) With(kvs ...interface{}) *Logger {
	n := len(kvs)

	if n%2 != 0 {
		panic("slacksink.With: odd number of arguments received")
	}

	newLogger := l.clone()

	for i := 0; i < n; i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			panic(fmt.Sprintf("slacksink.With: non-string key at argument position %d", i))
		}

		newLogger.props = append(newLogger.props, Property{Name: key, Value: kvs[i+1]})
	}

	return newLogger
}

// WithSource returns a new logger that records the calling file and line as a "Source" property.
func (l *Logger) WithSource() *Logger {
	newLogger := l.clone()
	newLogger.addSource = true

	return newLogger
}

func (l *Logger) clone() *Logger {
	return &Logger{
		sink:      l.sink,
		props:     append([]Property(nil), l.props...),
		addSource: l.addSource,
	}
}

// IsEnabled reports whether events of level reach the sink.
func (l *Logger) IsEnabled(level Level) bool {
	return l.sink.Enabled(level)
}

// Verbosew logs a Verbose event. msg is a message template whose {Name}
// placeholders are filled from the properties.
func (l *Logger) Verbosew(msg string, kvs ...interface{}) {
	l.log(LevelVerbose, msg, kvs...)
}

// Debugw logs a Debug event.
func (l *Logger) Debugw(msg string, kvs ...interface{}) {
	l.log(LevelDebug, msg, kvs...)
}

// Infow logs an Information event.
func (l *Logger) Infow(msg string, kvs ...interface{}) {
	l.log(LevelInformation, msg, kvs...)
}

// Warnw logs a Warning event.
func (l *Logger) Warnw(msg string, kvs ...interface{}) {
	l.log(LevelWarning, msg, kvs...)
}

// Errorw logs an Error event. An error under the key "error" or "err" becomes the event's exception.
func (l *Logger) Errorw(msg string, kvs ...interface{}) {
	l.log(LevelError, msg, kvs...)
}

// Fatalw logs a Fatal event. Unlike log.Fatal it does not exit the program.
func (l *Logger) Fatalw(msg string, kvs ...interface{}) {
	l.log(LevelFatal, msg, kvs...)
}

// log must be called directly by the exported level methods so the caller
// frame is found at a fixed depth.
func (l *Logger) log(level Level, msg string, kvs ...interface{}) {
	if !l.sink.Enabled(level) {
		return
	}

	e := &LogEvent{
		Level:           level,
		Timestamp:       time.Now(),
		MessageTemplate: msg,
		Properties:      make([]Property, 0, len(l.props)+len(kvs)/2+1),
	}

	e.Properties = append(e.Properties, l.props...)
	e.applyKVs(kvs...)

	if l.addSource {
		// 0: log, 1: the level method, 2: its caller.
		if _, file, line, ok := runtime.Caller(2); ok {
			e.Properties = append(e.Properties, Property{Name: "Source", Value: fmt.Sprintf("%s:%d", file, line)})
		}
	}

	l.sink.Emit(e)
}

// applyKVs appends key/value pairs as properties. The first error under an
// error key becomes the exception.
func (e *LogEvent) applyKVs(kvs ...interface{}) {
	n := len(kvs) - len(kvs)%2

	for i := 0; i < n; i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			continue
		}

		if isErrorKey(key) && e.Exception == nil {
			if err, ok := kvs[i+1].(error); ok && err != nil {
				e.Exception = ExceptionFromError(err)

				continue
			}
		}

		e.Properties = append(e.Properties, Property{Name: key, Value: kvs[i+1]})
	}

	if n < len(kvs) {
		// confirm whether last key is string or not
		if key, ok := kvs[n].(string); ok {
			e.Properties = append(e.Properties, Property{Name: key, Value: "KEY_WITHOUT_VALUE"})
		}
	}
}
