package source

import (
	"io"

	"github.com/alecthomas/participle/v2"

	"github.com/rash-tools/rashc/internal/restrict"
)

var parser = participle.MustBuild[File](
	participle.Lexer(Lexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// Parse reads rashc source from r (named filename, used only in error
// messages) and returns the restricted program it describes, with
// entryPoint designated as the entry point function.
func Parse(filename string, r io.Reader, entryPoint string) (*restrict.Program, error) {
	f, err := parser.Parse(filename, r)
	if err != nil {
		return nil, err
	}
	return Convert(f, entryPoint)
}

// ParseString is a convenience wrapper around Parse for in-memory
// source, used heavily by tests.
func ParseString(filename, src, entryPoint string) (*restrict.Program, error) {
	f, err := parser.ParseString(filename, src)
	if err != nil {
		return nil, err
	}
	return Convert(f, entryPoint)
}
