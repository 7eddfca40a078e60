package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Benny93/typegraph-go/internal/conversion"
	"github.com/Benny93/typegraph-go/internal/validator"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	faint  = color.New(color.Faint)
	bold   = color.New(color.Bold)
)

// consoleLogger writes pipeline diagnostics to the terminal.
type consoleLogger struct {
	out     io.Writer
	verbose bool
	quiet   bool
}

func (l *consoleLogger) Debugf(format string, args ...any) {
	if l.verbose {
		faint.Fprintf(l.out, format+"\n", args...)
	}
}

func (l *consoleLogger) Infof(format string, args ...any) {
	if !l.quiet {
		fmt.Fprintf(l.out, format+"\n", args...)
	}
}

func (l *consoleLogger) Warnf(format string, args ...any) {
	yellow.Fprintf(l.out, "warning: "+format+"\n", args...)
}

func (l *consoleLogger) Errorf(format string, args ...any) {
	red.Fprintf(l.out, "error: "+format+"\n", args...)
}

// tracer prints every conversion step at debug level.
func (l *consoleLogger) tracer() conversion.Tracer {
	return func(ev conversion.Event) {
		if ev.ShortCircuit {
			l.Debugf("  %-8s %-6s %s (short-circuit)", ev.Kind, ev.Key, ev.Path)
			return
		}
		l.Debugf("  %-8s %-6s %s", ev.Kind, ev.Key, ev.Path)
	}
}

// printDiagnostics renders a subtype error tree. Top-level lines are red,
// nested lines keep their indentation.
func printDiagnostics(w io.Writer, indent string, errs *validator.ErrorCollector) {
	depths := errs.Depths()
	for i, line := range errs.Errors() {
		if depths[i] == 0 {
			red.Fprintf(w, "%s%s\n", indent, line)
		} else {
			faint.Fprintf(w, "%s%s\n", indent, line)
		}
	}
}

// printReport renders an evolution report.
func printReport(w io.Writer, report *validator.EvolutionReport) {
	for _, path := range report.Added {
		green.Fprintf(w, "  + %s\n", path)
	}
	for _, path := range report.Removed {
		red.Fprintf(w, "  - %s\n", path)
	}
	for i := range report.Changes {
		change := &report.Changes[i]
		if !change.Breaking() {
			faint.Fprintf(w, "  = %s\n", change.Path)
			continue
		}
		yellow.Fprintf(w, "  ~ %s\n", change.Path)
		if !change.Input.IsEmpty() {
			fmt.Fprintln(w, "    input no longer accepts old arguments:")
			printDiagnostics(w, "      ", &change.Input)
		}
		if !change.Output.IsEmpty() {
			fmt.Fprintln(w, "    output no longer satisfies old callers:")
			printDiagnostics(w, "      ", &change.Output)
		}
	}
}
