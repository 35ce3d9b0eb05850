package slacksink

import (
	"reflect"
	"runtime/debug"
	"strings"
)

const (
	innerSeparator     = " ---> "
	aggregateSeparator = " | "

	maxExceptionDepth = 64
)

// Exception describes the error attached to a log event. It forms a tree:
// a node either stands alone, wraps a single Inner exception, or aggregates
// several parallel exceptions. When Aggregate is non-empty, Inner is ignored.
type Exception struct {
	Type       string
	Message    string
	StackTrace string

	Inner     *Exception
	Aggregate []*Exception
}

// ExceptionFromError converts a Go error chain into an Exception tree.
// Errors implementing Unwrap() []error (errors.Join and friends) become aggregates,
// errors implementing Unwrap() error become wrapped nodes. A StackTrace() string
// method, or a stack captured with WithStack, fills StackTrace.
func ExceptionFromError(err error) *Exception {
	if err == nil {
		return nil
	}

	return exceptionFromError(err, 0)
}

func exceptionFromError(err error, depth int) *Exception {
	var stack string

	if se, ok := err.(*stackError); ok {
		stack = se.stack
		err = se.err
	}

	if st, ok := err.(interface{ StackTrace() string }); ok && stack == "" {
		stack = st.StackTrace()
	}

	x := &Exception{
		Type:       typeName(err),
		Message:    err.Error(),
		StackTrace: stack,
	}

	if depth >= maxExceptionDepth {
		return x
	}

	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if inner != nil {
				x.Aggregate = append(x.Aggregate, exceptionFromError(inner, depth+1))
			}
		}
	case interface{ Unwrap() error }:
		if inner := u.Unwrap(); inner != nil {
			x.Inner = exceptionFromError(inner, depth+1)
		}
	}

	return x
}

// typeName returns the simple name of the dynamic type of v, without package or pointer.
func typeName(v interface{}) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if name := t.Name(); name != "" {
		return name
	}

	return t.String()
}

// FlattenedMessage joins the messages of the whole tree.
func (x *Exception) FlattenedMessage() string {
	return x.flatten(func(n *Exception) string { return n.Message })
}

// FlattenedStackTrace joins the stack traces of the whole tree.
func (x *Exception) FlattenedStackTrace() string {
	return x.flatten(func(n *Exception) string { return n.StackTrace })
}

// FlattenedType joins the type names of the whole tree.
func (x *Exception) FlattenedType() string {
	return x.flatten(func(n *Exception) string { return n.Type })
}

// hasStackTrace reports whether any node of the tree carries a stack trace.
func (x *Exception) hasStackTrace() bool {
	return x.flatten(func(n *Exception) string { return n.StackTrace }) != ""
}

func (x *Exception) children() []*Exception {
	if len(x.Aggregate) > 0 {
		return x.Aggregate
	}

	if x.Inner != nil {
		return []*Exception{x.Inner}
	}

	return nil
}

// flatten walks the tree depth-first in pre-order using an explicit stack.
// A node's text is followed by " ---> " and its first child; further children of
// an aggregate are separated by " | ". Nodes with empty text are skipped along
// with their separator. Each node is visited at most once, so malformed trees
// containing cycles still terminate.
func (x *Exception) flatten(text func(*Exception) string) string {
	if x == nil {
		return ""
	}

	type step struct {
		node   *Exception
		prefix string
	}

	var b strings.Builder

	visited := make(map[*Exception]struct{})
	stack := []step{{node: x}}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[s.node]; seen {
			continue
		}

		visited[s.node] = struct{}{}

		if t := text(s.node); t != "" {
			if b.Len() > 0 {
				b.WriteString(s.prefix)
			}

			b.WriteString(t)
		}

		children := s.node.children()

		for i := len(children) - 1; i >= 0; i-- {
			if children[i] == nil {
				continue
			}

			prefix := aggregateSeparator
			if i == firstChild(children) {
				prefix = innerSeparator
			}

			stack = append(stack, step{node: children[i], prefix: prefix})
		}
	}

	return b.String()
}

func firstChild(children []*Exception) int {
	for i, c := range children {
		if c != nil {
			return i
		}
	}

	return -1
}

// stackError carries the goroutine stack captured by WithStack.
type stackError struct {
	err   error
	stack string
}

func (e *stackError) Error() string { return e.err.Error() }

func (e *stackError) Unwrap() error { return e.err }

func (e *stackError) StackTrace() string { return e.stack }

// WithStack records the current goroutine stack on err so that the exception
// attachment can show a stack trace. It returns nil for a nil error.
func WithStack(err error) error {
	if err == nil {
		return nil
	}

	return &stackError{err: err, stack: string(debug.Stack())}
}
