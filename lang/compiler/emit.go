package compiler

import (
	"fmt"
	"strings"
)

// writer accumulates IR text. Instructions are indented by two spaces;
// labels and definitions are flush left.
type writer struct {
	sb *strings.Builder
}

func newWriter(sb *strings.Builder) *writer { return &writer{sb: sb} }

// linef writes one indented instruction line.
func (w *writer) linef(format string, args ...interface{}) {
	w.sb.WriteString("  ")
	fmt.Fprintf(w.sb, format, args...)
	w.sb.WriteByte('\n')
}

// labelf writes a block label (or any flush-left line).
func (w *writer) labelf(format string, args ...interface{}) {
	fmt.Fprintf(w.sb, format, args...)
	w.sb.WriteByte('\n')
}
