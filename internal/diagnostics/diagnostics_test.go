package diagnostics

import (
	"bytes"
	"errors"
	"testing"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestReportWithPosition(t *testing.T) {
	var buf bytes.Buffer
	color.NoColor = true
	Report(&buf, "sample.rh", lexer.Position{Line: 2, Column: 5}, "fn main() {\n    bogus\n}\n", errors.New("unexpected token"))
	out := buf.String()
	assert.Contains(t, out, "sample.rh:2:5:")
	assert.Contains(t, out, "unexpected token")
	assert.Contains(t, out, "bogus")
	assert.Contains(t, out, "^")
}

func TestReportWithoutPosition(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, "sample.rh", lexer.Position{}, "", errors.New("boom"))
	assert.Contains(t, buf.String(), "sample.rh: error: boom")
}
