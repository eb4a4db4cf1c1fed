// Package diagnostics wires rashc's structured logging and
// caret-style source error reporting: tliron/commonlog for the former
// (the same library kanso-lang/kanso's language server uses) and
// fatih/color for the latter (grounded the same way kanso's CLI
// colorizes diagnostics), with the same terminal-detection suppression
// heuristic mvdan.cc/sh/v3's cmd/shfmt uses for its --diff output.
package diagnostics

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/fatih/color"
	"github.com/tliron/commonlog"
	"golang.org/x/term"
)

// Logger is the process-wide structured logger, backed by commonlog's
// "simple" backend (level-filtered, writes to stderr).
var Logger commonlog.Logger

func init() {
	commonlog.Configure(1, nil)
	Logger = commonlog.GetLogger("rashc")
}

// SetVerbose raises the configured log level to include Info/Debug
// output; the default level only surfaces warnings and errors.
func SetVerbose(verbose bool) {
	if verbose {
		commonlog.Configure(3, nil)
	} else {
		commonlog.Configure(1, nil)
	}
	Logger = commonlog.GetLogger("rashc")
}

// colorEnabled mirrors shfmt's heuristic: color by default, suppressed
// when stderr isn't a terminal, NO_COLOR is set, or TERM=dumb.
func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// Report prints a caret-style diagnostic for a source parse or
// validation error to w: the filename, the offending line with a caret
// under the column if pos carries position information, and the
// message, colorized the way color.New(color.FgRed) highlights errors
// in kanso's CLI output.
func Report(w io.Writer, filename string, pos lexer.Position, source string, err error) {
	c := color.New(color.FgRed, color.Bold)
	if !colorEnabled() {
		color.NoColor = true
	}

	if pos.Line <= 0 {
		c.Fprintf(w, "%s: ", filename)
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}

	c.Fprintf(w, "%s:%d:%d: ", filename, pos.Line, pos.Column)
	fmt.Fprintf(w, "error: %v\n", err)

	line := lineAt(source, pos.Line)
	if line == "" {
		return
	}
	fmt.Fprintf(w, "    %s\n", line)
	if pos.Column > 0 && pos.Column <= len(line)+1 {
		pad := make([]byte, pos.Column+3)
		for i := range pad {
			pad[i] = ' '
		}
		c.Fprintf(w, "%s^\n", string(pad))
	}
}

func lineAt(source string, n int) string {
	line := 1
	start := 0
	for i := 0; i < len(source); i++ {
		if line == n {
			end := i
			for end < len(source) && source[end] != '\n' {
				end++
			}
			return source[start:end]
		}
		if source[i] == '\n' {
			line++
			start = i + 1
		}
	}
	if line == n {
		return source[start:]
	}
	return ""
}
