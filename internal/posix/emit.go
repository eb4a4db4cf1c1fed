// Package posix lowers shellir.IR into a hardened POSIX shell script:
// shebang, safety preamble, runtime helper functions, a main() body, and
// a cleanup footer. Emission is pure and deterministic — the same
// (ir, config) pair always yields byte-identical output — and never
// produces a partial script: either a complete document comes back, or
// an error does and the caller discards whatever text was buffered.
package posix

import (
	"fmt"
	"strings"

	"github.com/rash-tools/rashc/internal/rashconfig"
	"github.com/rash-tools/rashc/internal/runtime"
	"github.com/rash-tools/rashc/internal/shellir"
)

// banner is the fixed marker consumers may rely on being present,
// verbatim, in every emitted script (spec.md §4.2.1 step 2).
const banner = "# Generated by Rash"

const indentUnit = "    "

// Emitter lowers shellir.IR to POSIX shell text under a fixed Config.
type Emitter struct {
	cfg rashconfig.Config
}

// New returns an Emitter for cfg.
func New(cfg rashconfig.Config) *Emitter {
	return &Emitter{cfg: cfg}
}

// Emit produces the complete, runnable script for ir: the fixed
// document shape from spec.md §4.2.1 with ir lowered into main()'s body.
func Emit(ir shellir.IR, cfg rashconfig.Config) (string, error) {
	return New(cfg).Emit(ir)
}

// Emit is the method form of the package-level Emit.
func (e *Emitter) Emit(ir shellir.IR) (string, error) {
	return e.EmitProgram(nil, ir)
}

// NamedFunction is a shell function definition lowered ahead of main(),
// used by internal/lower to place non-entry-point functions in the
// emitted script (SPEC_FULL.md's internal/lower module). It is not part
// of the core spec.md contract: Emit/EmitProgram with no NamedFunctions
// is exactly spec.md's single-main() document shape.
type NamedFunction struct {
	Name string
	Body shellir.IR
}

// EmitProgram is the expansion entry point supporting multiple shell
// functions ahead of main(), for programs with more than one restricted
// AST function. EmitProgram(nil, ir) is byte-identical to Emit(ir).
func (e *Emitter) EmitProgram(funcs []NamedFunction, mainIR shellir.IR) (string, error) {
	var b strings.Builder

	b.WriteString("#!/bin/sh\n")
	b.WriteString(banner)
	b.WriteByte('\n')
	b.WriteString("set -euf\n")
	b.WriteString("IFS=' \t\n'\n")
	b.WriteString("export LC_ALL=C\n")
	b.WriteByte('\n')
	b.WriteString(`RASH_TMPDIR=$(mktemp -d "${TMPDIR:-/tmp}/rash.XXXXXX")` + "\n")
	b.WriteByte('\n')

	b.WriteString(runtime.Require)
	b.WriteByte('\n')
	if e.cfg.VerifyMode {
		b.WriteString(runtime.DownloadVerified)
	} else {
		b.WriteString(runtime.DownloadVerifiedDisabled)
	}
	b.WriteByte('\n')

	for _, fn := range funcs {
		name := EscapeVariableName(fn.Name)
		b.WriteString(name)
		b.WriteString("() {\n")
		body, err := e.renderBody(fn.Body, 1)
		if err != nil {
			return "", fmt.Errorf("rendering function %q: %w", fn.Name, err)
		}
		b.WriteString(body)
		b.WriteString("}\n\n")
	}

	b.WriteString("main() {\n")
	body, err := e.renderBody(mainIR, 1)
	if err != nil {
		return "", fmt.Errorf("rendering main: %w", err)
	}
	b.WriteString(body)
	b.WriteString("}\n\n")

	b.WriteString(`trap 'rm -rf "$RASH_TMPDIR"' EXIT` + "\n")
	b.WriteString(`main "$@"` + "\n")

	return b.String(), nil
}

// renderBody renders a single IR node as zero or more fully-indented
// lines at the given nesting level (1 = inside main()/a function body).
func (e *Emitter) renderBody(ir shellir.IR, level int) (string, error) {
	var b strings.Builder
	if err := e.renderNode(&b, ir, level); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (e *Emitter) renderNode(b *strings.Builder, ir shellir.IR, level int) error {
	indent := strings.Repeat(indentUnit, level)
	switch ir.Kind {
	case shellir.KindNoop:
		b.WriteString(indent)
		b.WriteString("# noop\n")
		return nil

	case shellir.KindLet:
		if ir.LetName == "" {
			return fmt.Errorf("malformed IR: Let with empty name")
		}
		val, err := e.EmitShellValue(ir.LetValue)
		if err != nil {
			return err
		}
		b.WriteString(indent)
		b.WriteString("readonly ")
		b.WriteString(EscapeVariableName(ir.LetName))
		b.WriteByte('=')
		b.WriteString(val)
		b.WriteByte('\n')
		return nil

	case shellir.KindExec:
		line, err := e.renderCommand(ir.ExecCmd)
		if err != nil {
			return err
		}
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteByte('\n')
		return nil

	case shellir.KindIf:
		test, err := e.EmitTestExpression(ir.IfTest)
		if err != nil {
			return err
		}
		b.WriteString(indent)
		b.WriteString("if ")
		b.WriteString(test)
		b.WriteString("; then\n")
		if ir.IfThen == nil {
			return fmt.Errorf("malformed IR: If with nil then branch")
		}
		if err := e.renderNode(b, *ir.IfThen, level+1); err != nil {
			return err
		}
		if ir.IfElse != nil {
			b.WriteString(indent)
			b.WriteString("else\n")
			if err := e.renderNode(b, *ir.IfElse, level+1); err != nil {
				return err
			}
		}
		b.WriteString(indent)
		b.WriteString("fi\n")
		return nil

	case shellir.KindSequence:
		for _, node := range ir.Seq {
			if err := e.renderNode(b, node, level); err != nil {
				return err
			}
		}
		return nil

	case shellir.KindExit:
		if ir.ExitCode < 0 || ir.ExitCode > 255 {
			return fmt.Errorf("malformed IR: Exit code %d out of range 0..=255", ir.ExitCode)
		}
		if ir.ExitHasMsg {
			b.WriteString(indent)
			b.WriteString("echo ")
			b.WriteString(EscapeShellString(ir.ExitMessage))
			b.WriteString(" >&2\n")
		}
		b.WriteString(indent)
		fmt.Fprintf(b, "exit %d\n", ir.ExitCode)
		return nil

	default:
		return fmt.Errorf("unsupported construct: unknown ShellIR kind %d", ir.Kind)
	}
}

func (e *Emitter) renderCommand(cmd shellir.Command) (string, error) {
	var parts []string
	if cmd.Program == "" {
		if e.cfg.StrictMode {
			return "", fmt.Errorf("malformed IR: Exec with empty program name")
		}
		// Non-strict mode: skip the program-word slot entirely rather
		// than falling through to EscapeCommandName("") and emitting a
		// quoted empty string as the command name.
	} else {
		parts = append(parts, EscapeCommandName(cmd.Program))
	}
	for _, arg := range cmd.Args {
		v, err := e.EmitShellValue(arg)
		if err != nil {
			return "", err
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, " "), nil
}

// EmitShellValue renders a ShellValue in value context: as a word
// substituted into a command line (spec.md §4.2.3).
func (e *Emitter) EmitShellValue(v shellir.Value) (string, error) {
	switch v.Kind {
	case shellir.ValueString:
		return EscapeShellString(v.Str), nil
	case shellir.ValueBool:
		if v.Bool {
			return "true", nil
		}
		return "false", nil
	case shellir.ValueVariable:
		if v.VarName == "" {
			return "", fmt.Errorf("malformed IR: Variable with empty name")
		}
		return `"$` + EscapeVariableName(v.VarName) + `"`, nil
	case shellir.ValueConcat:
		var b strings.Builder
		b.WriteByte('"')
		for _, part := range v.Parts {
			seg, err := concatSegment(part)
			if err != nil {
				return "", err
			}
			b.WriteString(seg)
		}
		b.WriteByte('"')
		return b.String(), nil
	case shellir.ValueCommandSubst:
		cmd, err := e.renderCommand(v.SubstCmd)
		if err != nil {
			return "", err
		}
		return `"$(` + cmd + `)"`, nil
	default:
		return "", fmt.Errorf("unsupported construct: unknown ShellValue kind %d", v.Kind)
	}
}

// concatSegment renders one element of a Concat for placement inside
// the surrounding double-quoted string: literal text is escaped for
// double-quote context, and a Variable contribution uses the braced
// ${name} form to keep it unambiguous next to adjacent literal
// characters, per spec.md §4.2.3's worked example.
func concatSegment(v shellir.Value) (string, error) {
	switch v.Kind {
	case shellir.ValueString:
		return escapeForDoubleQuoted(v.Str), nil
	case shellir.ValueBool:
		if v.Bool {
			return "true", nil
		}
		return "false", nil
	case shellir.ValueVariable:
		if v.VarName == "" {
			return "", fmt.Errorf("malformed IR: Variable with empty name")
		}
		return "${" + EscapeVariableName(v.VarName) + "}", nil
	default:
		return "", fmt.Errorf("unsupported construct: %d cannot appear inside Concat", v.Kind)
	}
}

// escapeForDoubleQuoted backslash-escapes the bytes that are special
// inside a double-quoted POSIX shell string so no ShellValue::String
// content placed into a Concat can break out of the surrounding quotes,
// per spec.md §4.2.6's injection-safety guarantee.
func escapeForDoubleQuoted(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\\', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// EmitTestExpression renders a ShellValue as the condition of an `if`,
// per spec.md §4.2.4.
func (e *Emitter) EmitTestExpression(v shellir.Value) (string, error) {
	switch v.Kind {
	case shellir.ValueBool:
		if v.Bool {
			return "true", nil
		}
		return "false", nil
	case shellir.ValueString:
		switch v.Str {
		case "true":
			return "true", nil
		case "false":
			return "false", nil
		default:
			return "test -n " + forceQuote(v.Str), nil
		}
	case shellir.ValueVariable:
		if v.VarName == "" {
			return "", fmt.Errorf("malformed IR: Variable with empty name")
		}
		return `test -n "$` + EscapeVariableName(v.VarName) + `"`, nil
	case shellir.ValueConcat, shellir.ValueCommandSubst:
		val, err := e.EmitShellValue(v)
		if err != nil {
			return "", err
		}
		return "test -n " + val, nil
	default:
		return "", fmt.Errorf("unsupported construct: unknown ShellValue kind %d", v.Kind)
	}
}

// forceQuote always single-quotes s, splicing embedded single quotes
// via the same '"'"' idiom EscapeShellString uses, rather than taking
// EscapeShellString's safe-class shortcut — spec.md §4.2.4's template
// for the fallback String(s) case shows literal surrounding quotes.
func forceQuote(s string) string {
	var b strings.Builder
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
