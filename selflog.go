package slacksink

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// selfLog is the sink's diagnostic channel. It writes to its own writer and
// never back into a sink, so a failing sink cannot recurse into itself.
type selfLog struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
	colors map[string]*color.Color
	now    func() time.Time
}

const (
	selfLogInfo  = "INFO"
	selfLogWarn  = "WARN"
	selfLogError = "ERROR"
)

// newSelfLog creates a diagnostic logger. When forceColor is nil, color is
// enabled only if out is a terminal.
func newSelfLog(out io.Writer, name string, forceColor *bool) *selfLog {
	if out == nil {
		out = io.Discard
	}

	enabled := isTerminal(out)
	if forceColor != nil {
		enabled = *forceColor
	}

	colors := map[string]*color.Color{
		selfLogInfo:  color.New(color.FgCyan),
		selfLogWarn:  color.New(color.FgYellow),
		selfLogError: color.New(color.FgRed, color.Bold),
	}

	for _, c := range colors {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return &selfLog{
		out:    out,
		prefix: "slacksink(" + name + "): ",
		colors: colors,
		now:    time.Now,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (l *selfLog) info(msg string, kvs ...interface{}) {
	l.write(selfLogInfo, msg, kvs...)
}

func (l *selfLog) warn(msg string, kvs ...interface{}) {
	l.write(selfLogWarn, msg, kvs...)
}

func (l *selfLog) error(msg string, kvs ...interface{}) {
	l.write(selfLogError, msg, kvs...)
}

// write emits one line:
//
//	2025-09-27T11:30:00Z [WARN] slacksink(slack): event dropped {reason="queue full"}
func (l *selfLog) write(level, msg string, kvs ...interface{}) {
	var b bytes.Buffer

	b.WriteString(l.now().Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(l.colors[level].Sprint("[" + level + "]"))
	b.WriteString(" ")
	b.WriteString(l.prefix)
	b.WriteString(msg)

	if len(kvs) > 0 {
		b.WriteString(" {")

		for i := 0; i+1 < len(kvs); i += 2 {
			if i > 0 {
				b.WriteString(", ")
			}

			fmt.Fprint(&b, kvs[i])
			b.WriteString("=")

			if s, ok := kvs[i+1].(string); ok {
				fmt.Fprintf(&b, "%q", s)
			} else {
				b.WriteString(RenderValue(kvs[i+1]))
			}
		}

		b.WriteString("}")
	}

	b.WriteString("\n")

	l.mu.Lock()
	defer l.mu.Unlock()

	// There is nowhere left to report a failing diagnostic writer.
	_, _ = l.out.Write(b.Bytes())
}
