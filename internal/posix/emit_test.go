package posix

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rash-tools/rashc/internal/rashconfig"
	"github.com/rash-tools/rashc/internal/shellir"
)

func TestEmitDocumentShape(t *testing.T) {
	t.Parallel()
	out, err := Emit(shellir.Noop(), rashconfig.Default())
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "#!/bin/sh", lines[0])
	assert.Contains(t, out, banner)
	assert.Contains(t, out, "set -euf\n")
	assert.Contains(t, out, "IFS=' \t\n'\n")
	assert.Contains(t, out, "export LC_ALL=C\n")
	assert.Contains(t, out, "rash_require()")
	assert.Contains(t, out, "rash_download_verified()")
	assert.Contains(t, out, "main() {")
	assert.Contains(t, out, "trap 'rm -rf")
	assert.Contains(t, out, `EXIT`)
	assert.True(t, strings.HasSuffix(out, `main "$@"`+"\n"))
}

func TestEmitVerifyModeSwapsRuntimeStub(t *testing.T) {
	t.Parallel()
	out, err := Emit(shellir.Noop(), rashconfig.New(rashconfig.WithVerifyMode(false)))
	require.NoError(t, err)
	assert.Contains(t, out, "download verification is disabled")
	assert.NotContains(t, out, "sha256sum")
}

func TestEmitLetSafeValueUnquoted(t *testing.T) {
	t.Parallel()
	ir := shellir.Let("greeting", shellir.String("hello"), shellir.Pure())
	out, err := Emit(ir, rashconfig.Default())
	require.NoError(t, err)
	assert.Contains(t, out, "    readonly greeting=hello\n")
}

func TestEmitLetUnsafeValueQuoted(t *testing.T) {
	t.Parallel()
	ir := shellir.Let("test_var", shellir.String("hello world"), shellir.Pure())
	out, err := Emit(ir, rashconfig.Default())
	require.NoError(t, err)
	assert.Contains(t, out, "    readonly test_var='hello world'\n")
}

func TestEmitExecSimpleCommand(t *testing.T) {
	t.Parallel()
	ir := shellir.Exec(shellir.Command{Program: "echo", Args: []shellir.Value{shellir.String("hello")}}, shellir.Pure())
	out, err := Emit(ir, rashconfig.Default())
	require.NoError(t, err)
	assert.Contains(t, out, "    echo hello\n")
}

func TestEmitIfWithElse(t *testing.T) {
	t.Parallel()
	then := shellir.Exec(shellir.Command{Program: "echo", Args: []shellir.Value{shellir.String("yes")}}, shellir.Pure())
	els := shellir.Exec(shellir.Command{Program: "echo", Args: []shellir.Value{shellir.String("no")}}, shellir.Pure())
	ir := shellir.If(shellir.Variable("flag"), then, &els)
	out, err := Emit(ir, rashconfig.Default())
	require.NoError(t, err)
	assert.Contains(t, out, `    if test -n "$flag"; then`+"\n")
	assert.Contains(t, out, "        echo yes\n")
	assert.Contains(t, out, "    else\n")
	assert.Contains(t, out, "        echo no\n")
	assert.Contains(t, out, "    fi\n")
}

func TestEmitIfWithoutElse(t *testing.T) {
	t.Parallel()
	then := shellir.Exit(1, "boom")
	ir := shellir.If(shellir.Bool(true), then, nil)
	out, err := Emit(ir, rashconfig.Default())
	require.NoError(t, err)
	assert.Contains(t, out, "if true; then\n")
	// The embedded runtime functions contain their own else branches, so
	// only main()'s body is checked.
	mainIdx := strings.Index(out, "main() {")
	require.NotEqual(t, -1, mainIdx)
	assert.NotContains(t, out[mainIdx:], "else\n")
}

func TestEmitExitWithMessage(t *testing.T) {
	t.Parallel()
	ir := shellir.Exit(1, "Error occurred")
	out, err := Emit(ir, rashconfig.Default())
	require.NoError(t, err)
	assert.Contains(t, out, "echo 'Error occurred' >&2\n")
	assert.Contains(t, out, "exit 1\n")
}

func TestEmitExitCodeOnly(t *testing.T) {
	t.Parallel()
	ir := shellir.ExitCodeOnly(0)
	out, err := Emit(ir, rashconfig.Default())
	require.NoError(t, err)
	assert.Contains(t, out, "    exit 0\n")
	// rash_require in the runtime preamble echoes its own error, so only
	// main()'s body is checked.
	mainIdx := strings.Index(out, "main() {")
	require.NotEqual(t, -1, mainIdx)
	assert.NotContains(t, out[mainIdx:], "echo")
}

func TestEmitExitCodeOutOfRangeErrors(t *testing.T) {
	t.Parallel()
	ir := shellir.ExitCodeOnly(256)
	_, err := Emit(ir, rashconfig.Default())
	assert.Error(t, err)
}

func TestEmitSequencePreservesOrder(t *testing.T) {
	t.Parallel()
	ir := shellir.Sequence(
		shellir.Let("x", shellir.String("1"), shellir.Pure()),
		shellir.Exec(shellir.Command{Program: "echo", Args: []shellir.Value{shellir.Variable("x")}}, shellir.Pure()),
	)
	out, err := Emit(ir, rashconfig.Default())
	require.NoError(t, err)
	letIdx := strings.Index(out, "readonly x=1")
	echoIdx := strings.Index(out, `echo "$x"`)
	require.NotEqual(t, -1, letIdx)
	require.NotEqual(t, -1, echoIdx)
	assert.Less(t, letIdx, echoIdx)
}

func TestEmitProgramWithNamedFunctions(t *testing.T) {
	t.Parallel()
	helper := shellir.Exec(shellir.Command{Program: "echo", Args: []shellir.Value{shellir.String("helper")}}, shellir.Pure())
	e := New(rashconfig.Default())
	out, err := e.EmitProgram([]NamedFunction{{Name: "do_thing", Body: helper}}, shellir.Noop())
	require.NoError(t, err)
	assert.Contains(t, out, "do_thing() {\n")
	assert.Contains(t, out, "    echo helper\n")
	doThingIdx := strings.Index(out, "do_thing() {")
	mainIdx := strings.Index(out, "main() {")
	require.NotEqual(t, -1, doThingIdx)
	require.NotEqual(t, -1, mainIdx)
	assert.Less(t, doThingIdx, mainIdx)
}

func TestEmitShellValueVariants(t *testing.T) {
	t.Parallel()
	e := New(rashconfig.Default())

	tests := []struct {
		name string
		v    shellir.Value
		want string
	}{
		{"safe string", shellir.String("hello"), "hello"},
		{"unsafe string", shellir.String("hello world"), "'hello world'"},
		{"bool true", shellir.Bool(true), "true"},
		{"bool false", shellir.Bool(false), "false"},
		{"variable", shellir.Variable("name"), `"$name"`},
		{
			"concat with variable",
			shellir.Concat(shellir.String("Hello "), shellir.Variable("name"), shellir.String("!")),
			`"Hello ${name}!"`,
		},
		{
			"command subst",
			shellir.CommandSubst(shellir.Command{Program: "date", Args: []shellir.Value{shellir.String("+%Y")}}),
			`"$(date '+%Y')"`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := e.EmitShellValue(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmitShellValueEmptyVariableNameErrors(t *testing.T) {
	t.Parallel()
	e := New(rashconfig.Default())
	_, err := e.EmitShellValue(shellir.Variable(""))
	assert.Error(t, err)
}

func TestEmitTestExpressionVariants(t *testing.T) {
	t.Parallel()
	e := New(rashconfig.Default())

	tests := []struct {
		name string
		v    shellir.Value
		want string
	}{
		{"bool true", shellir.Bool(true), "true"},
		{"bool false", shellir.Bool(false), "false"},
		{"string true literal", shellir.String("true"), "true"},
		{"string false literal", shellir.String("false"), "false"},
		{"other string", shellir.String("hi"), "test -n 'hi'"},
		{"variable", shellir.Variable("flag"), `test -n "$flag"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := e.EmitTestExpression(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmitTestExpressionQuotesEmbeddedSingleQuote(t *testing.T) {
	t.Parallel()
	e := New(rashconfig.Default())
	got, err := e.EmitTestExpression(shellir.String("don't"))
	require.NoError(t, err)
	assert.Equal(t, `test -n 'don'"'"'t'`, got)
}

func TestEmitConcatEscapesDoubleQuoteMetacharacters(t *testing.T) {
	t.Parallel()
	e := New(rashconfig.Default())
	got, err := e.EmitShellValue(shellir.Concat(shellir.String(`a"b\c$d`+"`e")))
	require.NoError(t, err)
	assert.Equal(t, `"a\"b\\c\$d\`+"`e\"", got)
}

func TestEmitEmptyProgramNonStrictSkipsProgramWord(t *testing.T) {
	t.Parallel()
	e := New(rashconfig.New(rashconfig.WithStrictMode(false)))
	ir := shellir.Exec(shellir.Command{Program: "", Args: []shellir.Value{shellir.String("x")}}, shellir.Pure())
	out, err := e.Emit(ir)
	require.NoError(t, err)
	assert.Contains(t, out, "\n    x\n")
	assert.NotContains(t, out, "''")
}

func TestEmitEmptyProgramStrictErrors(t *testing.T) {
	t.Parallel()
	e := New(rashconfig.New(rashconfig.WithStrictMode(true)))
	ir := shellir.Exec(shellir.Command{Program: "", Args: []shellir.Value{shellir.String("x")}}, shellir.Pure())
	_, err := e.Emit(ir)
	assert.Error(t, err)
}

func TestEmitDeterministic(t *testing.T) {
	t.Parallel()
	ir := shellir.Sequence(
		shellir.Let("x", shellir.String("1"), shellir.Pure()),
		shellir.If(shellir.Variable("x"), shellir.Exec(shellir.Command{Program: "echo", Args: []shellir.Value{shellir.Variable("x")}}, shellir.Pure()), nil),
	)
	cfg := rashconfig.Default()
	a, err := Emit(ir, cfg)
	require.NoError(t, err)
	b, err := Emit(ir, cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
