package slacksink

import (
	"fmt"
	"strings"
)

// Level defines the severity of a log event. Levels are ordered, so
// a sink configured with a minimum level accepts that level and everything above it.
type Level int

const (
	LevelVerbose Level = iota
	LevelDebug
	LevelInformation
	LevelWarning
	LevelError
	LevelFatal
)

// levels lists every level in ascending order.
var levels = []Level{
	LevelVerbose,
	LevelDebug,
	LevelInformation,
	LevelWarning,
	LevelError,
	LevelFatal,
}

var levelNames = map[Level]string{
	LevelVerbose:     "Verbose",
	LevelDebug:       "Debug",
	LevelInformation: "Information",
	LevelWarning:     "Warning",
	LevelError:       "Error",
	LevelFatal:       "Fatal",
}

// levelMap holds every accepted spelling, lower-cased.
var levelMap = map[string]Level{
	"verbose":     LevelVerbose,
	"trace":       LevelVerbose,
	"debug":       LevelDebug,
	"information": LevelInformation,
	"info":        LevelInformation,
	"warning":     LevelWarning,
	"warn":        LevelWarning,
	"error":       LevelError,
	"fatal":       LevelFatal,
	"critical":    LevelFatal,
}

// String returns the level name as it appears in messages, e.g. "Information".
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}

	return fmt.Sprintf("Level(%d)", int(l))
}

// Levels returns every level in ascending order.
func Levels() []Level {
	return append([]Level(nil), levels...)
}

// IsValid reports whether l is one of the defined levels.
func (l Level) IsValid() bool {
	_, ok := levelNames[l]

	return ok
}

// ParseLevel parses a string into a Level.
// It is case-insensitive and accepts common aliases such as "info", "warn" and "critical".
// It returns an error wrapping ErrInvalidLevel if the input is not a known level.
func ParseLevel(levelStr string) (Level, error) {
	if level, ok := levelMap[strings.ToLower(strings.TrimSpace(levelStr))]; ok {
		return level, nil
	}

	return LevelVerbose, fmt.Errorf("%w: %q", ErrInvalidLevel, levelStr)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so levels can be read
// straight from environment variables and config files.
func (l *Level) UnmarshalText(text []byte) error {
	level, err := ParseLevel(string(text))
	if err != nil {
		return err
	}

	*l = level

	return nil
}
