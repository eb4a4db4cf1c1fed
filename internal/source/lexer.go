// Package source parses rashc's restricted surface syntax into
// restrict.Program using a participle/v2 stateful lexer and grammar,
// the way kanso-lang/kanso's grammar package does for its own
// restricted language.
package source

import "github.com/alecthomas/participle/v2/lexer"

// Lexer tokenizes rashc source. Rule order matters: Ident must be tried
// before keyword-shaped punctuation, and multi-character operators must
// precede their single-character prefixes.
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"DocComment", `///[^\n]*`, nil},
		{"Comment", `//[^\n]*`, nil},
		{"String", `"(\\.|[^"\\])*"`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Integer", `[0-9]+`, nil},
		{"Operator", `(==|!=|<=|>=|&&|\|\|)`, nil},
		{"Punctuation", `[{}()\[\],:;=!<>+\-*/%]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
