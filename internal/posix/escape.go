package posix

import "strings"

// EscapeShellString renders s as a word that a POSIX shell will read
// back as exactly s's bytes. Strings made entirely of the "safe class"
// (letters, digits, and `_.-/+=:@`) are returned unquoted; anything else
// is single-quoted, with each embedded single quote spliced out via the
// `'"'"'` idiom (close the quoted string, emit a double-quoted single
// quote, reopen the quoted string) so the result still parses as one
// shell word.
func EscapeShellString(s string) string {
	if s == "" {
		return "''"
	}
	if isSafeShellString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\'' {
			b.WriteString(`'"'"'`)
		} else {
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// EscapeVariableName maps s to a valid POSIX shell variable name of the
// same length: letters, digits and underscore survive, every other byte
// becomes '_', and a leading digit in the result is replaced with '_'
// (a bare leading digit would make the assignment a positional
// parameter reference rather than a variable, not an assignment at
// all). The one exception is a name made only of digits, which is
// returned unchanged so that it still addresses a positional parameter.
func EscapeVariableName(s string) string {
	if s == "" {
		return ""
	}
	if isAllDigits(s) {
		// A purely numeric name addresses a positional parameter
		// ($1, $12, ...), not a variable; mangling it would make it
		// unreferenceable.
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if !isVarNameByte(c) {
			b[i] = '_'
		}
	}
	if b[0] >= '0' && b[0] <= '9' {
		b[0] = '_'
	}
	return string(b)
}

// EscapeCommandName renders a command/program name for use as the first
// word of a command: unquoted when it matches the unambiguous
// `[A-Za-z0-9_./-]+` class, otherwise passed through EscapeShellString.
func EscapeCommandName(s string) string {
	if isSafeCommandName(s) {
		return s
	}
	return EscapeShellString(s)
}

func isSafeShellString(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isSafeShellStringByte(s[i]) {
			return false
		}
	}
	return true
}

// isSafeShellStringByte implements the "safe class" from spec.md §4.2.5:
// [A-Za-z0-9_.\-/+=:@].
func isSafeShellStringByte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '-', '/', '+', '=', ':', '@':
		return true
	}
	return false
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isVarNameByte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
		return true
	}
	return false
}

func isSafeCommandName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '_', c == '.', c == '/', c == '-':
		default:
			return false
		}
	}
	return true
}
