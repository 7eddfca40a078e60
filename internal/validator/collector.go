package validator

import (
	"fmt"
	"strings"
)

type line struct {
	depth int
	msg   string
}

// ErrorCollector accumulates subtype violations as a tree of messages. An
// empty collector means the check held.
type ErrorCollector struct {
	lines []line
}

// Push appends a top-level message.
func (c *ErrorCollector) Push(format string, args ...any) {
	c.lines = append(c.lines, line{msg: fmt.Sprintf(format, args...)})
}

// Nest appends every message of child one level deeper.
func (c *ErrorCollector) Nest(child *ErrorCollector) {
	for _, l := range child.lines {
		c.lines = append(c.lines, line{depth: l.depth + 1, msg: l.msg})
	}
}

// PushNested appends a heading followed by child's messages nested under it.
func (c *ErrorCollector) PushNested(child *ErrorCollector, format string, args ...any) {
	c.Push(format, args...)
	c.Nest(child)
}

// IsEmpty reports whether no violation was recorded.
func (c *ErrorCollector) IsEmpty() bool {
	return len(c.lines) == 0
}

// Len returns the number of recorded lines.
func (c *ErrorCollector) Len() int {
	return len(c.lines)
}

// Errors renders every line with its nesting prefix: " - " for one level,
// " - - " for two, and so on.
func (c *ErrorCollector) Errors() []string {
	out := make([]string, len(c.lines))
	for i, l := range c.lines {
		out[i] = render(l)
	}
	return out
}

// Depths returns the nesting depth of each line, aligned with Errors.
func (c *ErrorCollector) Depths() []int {
	out := make([]int, len(c.lines))
	for i, l := range c.lines {
		out[i] = l.depth
	}
	return out
}

func (c *ErrorCollector) String() string {
	return strings.Join(c.Errors(), "\n")
}

func render(l line) string {
	if l.depth == 0 {
		return l.msg
	}
	return strings.Repeat(" -", l.depth) + " " + l.msg
}
