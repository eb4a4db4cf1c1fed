// Package lower turns a validated restrict.Program into shellir.IR: the
// entry point function's body becomes the script's main() body, and
// every other function becomes a named shell function emitted ahead of
// it. The lowering itself is a Builder that walks the restricted AST
// once and accumulates IR, mirroring the Builder kanso's internal/ir
// package uses to turn a typed AST into its own lower-level form.
package lower

import (
	"fmt"
	"strconv"

	"github.com/rash-tools/rashc/internal/posix"
	"github.com/rash-tools/rashc/internal/restrict"
	"github.com/rash-tools/rashc/internal/shellir"
)

// Builder accumulates the result of lowering one restrict.Program.
type Builder struct {
	prog *restrict.Program
}

// NewBuilder returns a Builder for prog. Callers are expected to have
// already run restrict.Validate(prog); Builder does not re-check subset
// discipline, only translates it.
func NewBuilder(prog *restrict.Program) *Builder {
	return &Builder{prog: prog}
}

// Lower runs the full program through the Builder.
func Lower(prog *restrict.Program) (shellir.IR, []posix.NamedFunction, error) {
	return NewBuilder(prog).Lower()
}

// Lower returns the entry point's lowered body plus every other
// function lowered into a NamedFunction, in program order.
func (b *Builder) Lower() (shellir.IR, []posix.NamedFunction, error) {
	var entry *restrict.Function
	var funcs []posix.NamedFunction

	for _, fn := range b.prog.Functions {
		if fn.Name == b.prog.EntryPoint {
			entry = fn
			continue
		}
		body, err := b.lowerFunctionBody(fn, false)
		if err != nil {
			return shellir.IR{}, nil, fmt.Errorf("lowering function %q: %w", fn.Name, err)
		}
		funcs = append(funcs, posix.NamedFunction{Name: fn.Name, Body: body})
	}

	if entry == nil {
		return shellir.IR{}, nil, fmt.Errorf("lower: entry point %q not found", b.prog.EntryPoint)
	}
	mainIR, err := b.lowerFunctionBody(entry, true)
	if err != nil {
		return shellir.IR{}, nil, fmt.Errorf("lowering entry point %q: %w", entry.Name, err)
	}
	return mainIR, funcs, nil
}

func (b *Builder) lowerFunctionBody(fn *restrict.Function, isEntry bool) (shellir.IR, error) {
	var nodes []shellir.IR
	if !isEntry {
		for i, p := range fn.Params {
			nodes = append(nodes, shellir.Let(p.Name, shellir.Variable(strconv.Itoa(i+1)), shellir.Pure()))
		}
	}
	for _, s := range fn.Body {
		node, err := b.lowerStmt(s, fn, isEntry)
		if err != nil {
			return shellir.IR{}, err
		}
		nodes = append(nodes, node)
	}
	return shellir.Sequence(nodes...), nil
}

func (b *Builder) lowerBlock(stmts []restrict.Stmt, fn *restrict.Function, isEntry bool) (shellir.IR, error) {
	var nodes []shellir.IR
	for _, s := range stmts {
		node, err := b.lowerStmt(s, fn, isEntry)
		if err != nil {
			return shellir.IR{}, err
		}
		nodes = append(nodes, node)
	}
	return shellir.Sequence(nodes...), nil
}

func (b *Builder) lowerStmt(s restrict.Stmt, fn *restrict.Function, isEntry bool) (shellir.IR, error) {
	switch s.Kind {
	case restrict.StmtLet:
		value, err := b.lowerExpr(s.Let.Value, false)
		if err != nil {
			return shellir.IR{}, err
		}
		return shellir.Let(s.Let.Name, value, exprEffects(s.Let.Value)), nil

	case restrict.StmtIf:
		cond, err := b.lowerExpr(s.If.Condition, true)
		if err != nil {
			return shellir.IR{}, err
		}
		thenIR, err := b.lowerBlock(s.If.Then, fn, isEntry)
		if err != nil {
			return shellir.IR{}, err
		}
		var elsePtr *shellir.IR
		if s.If.Else != nil {
			elseIR, err := b.lowerBlock(s.If.Else, fn, isEntry)
			if err != nil {
				return shellir.IR{}, err
			}
			elsePtr = &elseIR
		}
		return shellir.If(cond, thenIR, elsePtr), nil

	case restrict.StmtExpr:
		return b.lowerExprStmt(s.Expr)

	case restrict.StmtReturn:
		return b.lowerReturn(s.Return.Value, fn.ReturnType, isEntry)

	default:
		return shellir.IR{}, fmt.Errorf("lower: unsupported statement kind %d", s.Kind)
	}
}

func (b *Builder) lowerExprStmt(e restrict.Expr) (shellir.IR, error) {
	if e.Kind == restrict.ExprCall {
		if ir, ok, err := b.lowerPrimitiveCall(e.CallName, e.CallArgs); err != nil || ok {
			return ir, err
		}
		if err := b.resolveCallee(e.CallName); err != nil {
			return shellir.IR{}, err
		}
		args, err := b.lowerArgs(e.CallArgs)
		if err != nil {
			return shellir.IR{}, err
		}
		return shellir.Exec(shellir.Command{Program: e.CallName, Args: args}, shellir.WithEffects(shellir.EffectProcess)), nil
	}
	// A bare value-producing statement: evaluate for any side effect
	// (e.g. a command substitution) and discard the result, the way
	// a script uses ": $(cmd)" to run something purely for effect.
	value, err := b.lowerExpr(e, false)
	if err != nil {
		return shellir.IR{}, err
	}
	return shellir.Exec(shellir.Command{Program: ":", Args: []shellir.Value{value}}, exprEffects(e)), nil
}

// primitiveNames are the runtime primitives internal/runtime embeds ahead
// of main(); a call to one of these bypasses the ordinary user-function
// call convention entirely and lowers straight to the matching Exec/Exit
// node.
var primitiveNames = map[string]bool{
	"require":  true,
	"download": true,
	"println":  true,
	"exit":     true,
}

// lowerPrimitiveCall lowers a call to a known runtime primitive. ok is
// false (with a nil error) when name names no primitive, signaling the
// caller to fall through to the ordinary user-function-call path.
func (b *Builder) lowerPrimitiveCall(name string, args []restrict.Expr) (shellir.IR, bool, error) {
	switch name {
	case "require":
		if len(args) != 1 {
			return shellir.IR{}, false, fmt.Errorf("lower: require() takes exactly 1 argument, got %d", len(args))
		}
		lowered, err := b.lowerArgs(args)
		if err != nil {
			return shellir.IR{}, false, err
		}
		return shellir.Exec(shellir.Command{Program: "rash_require", Args: lowered}, shellir.WithEffects(shellir.EffectProcess)), true, nil

	case "download":
		if len(args) != 3 {
			return shellir.IR{}, false, fmt.Errorf("lower: download() takes exactly 3 arguments (url, dest, sha256), got %d", len(args))
		}
		lowered, err := b.lowerArgs(args)
		if err != nil {
			return shellir.IR{}, false, err
		}
		return shellir.Exec(shellir.Command{Program: "rash_download_verified", Args: lowered}, shellir.WithEffects(shellir.EffectNetwork, shellir.EffectFilesystem)), true, nil

	case "println":
		if len(args) != 1 {
			return shellir.IR{}, false, fmt.Errorf("lower: println() takes exactly 1 argument, got %d", len(args))
		}
		lowered, err := b.lowerArgs(args)
		if err != nil {
			return shellir.IR{}, false, err
		}
		return shellir.Exec(shellir.Command{Program: "echo", Args: lowered}, shellir.Pure()), true, nil

	case "exit":
		if len(args) != 1 {
			return shellir.IR{}, false, fmt.Errorf("lower: exit() takes exactly 1 argument, got %d", len(args))
		}
		if args[0].Kind != restrict.ExprLiteral || args[0].Literal.Kind != restrict.LiteralU32 {
			return shellir.IR{}, false, fmt.Errorf("lower: exit() requires a literal U32 argument, got a computed expression")
		}
		return shellir.ExitCodeOnly(int(args[0].Literal.U32)), true, nil

	default:
		return shellir.IR{}, false, nil
	}
}

// resolveCallee enforces the lowering-layer half of the unknown-callee
// Open Question: the validator leaves a call to an unrecognized function
// non-fatal (the call graph edge simply points outside the graph), but
// emitting a shell invocation of a function that was never defined is a
// real bug, so lowering rejects it.
func (b *Builder) resolveCallee(name string) error {
	if primitiveNames[name] {
		return nil
	}
	for _, fn := range b.prog.Functions {
		if fn.Name == name {
			return nil
		}
	}
	return fmt.Errorf("lower: call to unknown function %q", name)
}

func (b *Builder) lowerArgs(exprs []restrict.Expr) ([]shellir.Value, error) {
	args := make([]shellir.Value, len(exprs))
	for i, e := range exprs {
		v, err := b.lowerExpr(e, false)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// lowerReturn lowers a return statement. Non-entry functions communicate
// their result to the caller either via stdout (Str/U32, captured by the
// caller's CommandSubst) or via exit status (Bool, read with `if callee;
// then`). The entry point's return becomes the script's own exit status,
// which shellir.IR can only express as a static literal: a non-literal
// return from the entry point is outside what this lowering supports.
func (b *Builder) lowerReturn(value restrict.Expr, retType restrict.Type, isEntry bool) (shellir.IR, error) {
	if isEntry {
		switch retType.Kind {
		case restrict.TypeBool:
			if value.Kind == restrict.ExprLiteral && value.Literal.Kind == restrict.LiteralBool {
				return shellir.ExitCodeOnly(boolExitCode(value.Literal.Bool)), nil
			}
			cond, err := b.lowerExpr(value, true)
			if err != nil {
				return shellir.IR{}, err
			}
			thenIR := shellir.ExitCodeOnly(0)
			elseIR := shellir.ExitCodeOnly(1)
			return shellir.If(cond, thenIR, &elseIR), nil
		case restrict.TypeU32:
			if value.Kind == restrict.ExprLiteral && value.Literal.Kind == restrict.LiteralU32 {
				return shellir.ExitCodeOnly(int(value.Literal.U32)), nil
			}
			return shellir.IR{}, fmt.Errorf("lower: entry point must return a literal exit status, got a computed U32 expression")
		default:
			return shellir.ExitCodeOnly(0), nil
		}
	}

	switch retType.Kind {
	case restrict.TypeBool:
		if value.Kind == restrict.ExprLiteral && value.Literal.Kind == restrict.LiteralBool {
			return returnCommand(boolExitCode(value.Literal.Bool)), nil
		}
		cond, err := b.lowerExpr(value, true)
		if err != nil {
			return shellir.IR{}, err
		}
		thenIR := returnCommand(0)
		elseIR := returnCommand(1)
		return shellir.If(cond, thenIR, &elseIR), nil
	case restrict.TypeU32, restrict.TypeStr:
		v, err := b.lowerExpr(value, false)
		if err != nil {
			return shellir.IR{}, err
		}
		return shellir.Exec(shellir.Command{Program: "printf", Args: []shellir.Value{shellir.String("%s"), v}}, shellir.Pure()), nil
	default:
		return shellir.IR{}, fmt.Errorf("lower: returning %s is not supported by this lowering", retType.Kind)
	}
}

func returnCommand(code int) shellir.IR {
	return shellir.Exec(shellir.Command{Program: "return", Args: []shellir.Value{shellir.String(strconv.Itoa(code))}}, shellir.Pure())
}

func boolExitCode(b bool) int {
	if b {
		return 0
	}
	return 1
}

// lowerExpr lowers a restricted expression to a ShellValue. boolCtx
// selects, for Binary/Unary expressions, between the arithmetic-result
// template (used when the value itself is wanted) and the condition
// template (used when only truth or falsehood matters, e.g. an If
// test): the two differ in whether a falsy/zero result prints anything
// at all, since EmitTestExpression reads a CommandSubst's truth from
// whether its output is non-empty.
func (b *Builder) lowerExpr(e restrict.Expr, boolCtx bool) (shellir.Value, error) {
	switch e.Kind {
	case restrict.ExprLiteral:
		switch e.Literal.Kind {
		case restrict.LiteralBool:
			return shellir.Bool(e.Literal.Bool), nil
		case restrict.LiteralU32:
			return shellir.String(strconv.FormatUint(uint64(e.Literal.U32), 10)), nil
		case restrict.LiteralStr:
			return shellir.String(e.Literal.Str), nil
		default:
			return shellir.Value{}, fmt.Errorf("lower: unsupported literal kind %d", e.Literal.Kind)
		}

	case restrict.ExprVariable:
		return shellir.Variable(e.Variable), nil

	case restrict.ExprCall:
		if err := b.resolveCallee(e.CallName); err != nil {
			return shellir.Value{}, err
		}
		args, err := b.lowerArgs(e.CallArgs)
		if err != nil {
			return shellir.Value{}, err
		}
		return shellir.CommandSubst(shellir.Command{Program: e.CallName, Args: args}), nil

	case restrict.ExprBinary, restrict.ExprUnary:
		parts, err := arithParts(e)
		if err != nil {
			return shellir.Value{}, err
		}
		var prefix, suffix string
		if boolCtx {
			prefix, suffix = "BEGIN{if(", ")print 1}"
		} else {
			prefix, suffix = "BEGIN{print (", ")}"
		}
		concatParts := append([]shellir.Value{shellir.String(prefix)}, parts...)
		concatParts = append(concatParts, shellir.String(suffix))
		script := shellir.Concat(concatParts...)
		return shellir.CommandSubst(shellir.Command{Program: "awk", Args: []shellir.Value{script}}), nil

	default:
		return shellir.Value{}, fmt.Errorf("lower: unsupported expression kind %d", e.Kind)
	}
}

// arithParts flattens a Binary/Unary expression tree into a sequence of
// ShellValue fragments suitable as Concat parts (String and Variable
// only — Concat has no nested-Concat or CommandSubst case), so the
// awk program text it assembles can still interpolate shell variables
// via the ordinary double-quoted Concat mechanism.
func arithParts(e restrict.Expr) ([]shellir.Value, error) {
	switch e.Kind {
	case restrict.ExprLiteral:
		switch e.Literal.Kind {
		case restrict.LiteralBool:
			if e.Literal.Bool {
				return []shellir.Value{shellir.String("1")}, nil
			}
			return []shellir.Value{shellir.String("0")}, nil
		case restrict.LiteralU32:
			return []shellir.Value{shellir.String(strconv.FormatUint(uint64(e.Literal.U32), 10))}, nil
		case restrict.LiteralStr:
			return []shellir.Value{shellir.String(awkStringLiteral(e.Literal.Str))}, nil
		default:
			return nil, fmt.Errorf("lower: unsupported literal kind %d in arithmetic expression", e.Literal.Kind)
		}

	case restrict.ExprVariable:
		return []shellir.Value{shellir.Variable(e.Variable)}, nil

	case restrict.ExprBinary:
		left, err := arithParts(*e.BinaryLeft)
		if err != nil {
			return nil, err
		}
		right, err := arithParts(*e.BinaryRight)
		if err != nil {
			return nil, err
		}
		parts := []shellir.Value{shellir.String("(")}
		parts = append(parts, left...)
		parts = append(parts, shellir.String(awkOperator(e.BinaryOp)))
		parts = append(parts, right...)
		parts = append(parts, shellir.String(")"))
		return parts, nil

	case restrict.ExprUnary:
		operand, err := arithParts(*e.UnaryOperand)
		if err != nil {
			return nil, err
		}
		parts := []shellir.Value{shellir.String("!(")}
		parts = append(parts, operand...)
		parts = append(parts, shellir.String(")"))
		return parts, nil

	default:
		return nil, fmt.Errorf("lower: arithmetic operand must be a literal, variable, or nested arithmetic expression, not kind %d", e.Kind)
	}
}

func awkOperator(op restrict.BinaryOp) string {
	switch op {
	case restrict.OpAdd:
		return "+"
	case restrict.OpSub:
		return "-"
	case restrict.OpMul:
		return "*"
	case restrict.OpDiv:
		return "/"
	case restrict.OpMod:
		return "%"
	case restrict.OpEq:
		return "=="
	case restrict.OpNe:
		return "!="
	case restrict.OpLt:
		return "<"
	case restrict.OpLe:
		return "<="
	case restrict.OpGt:
		return ">"
	case restrict.OpGe:
		return ">="
	case restrict.OpAnd:
		return "&&"
	case restrict.OpOr:
		return "||"
	default:
		return "?"
	}
}

// awkStringLiteral quotes s for embedding in an awk program text that is
// itself already inside a double-quoted shell word; only backslash and
// the awk-level double quote need escaping at this layer.
func awkStringLiteral(s string) string {
	escaped := make([]byte, 0, len(s)+2)
	escaped = append(escaped, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' || c == '"' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, c)
	}
	escaped = append(escaped, '"')
	return string(escaped)
}

// exprEffects reports the effects evaluating e may perform. Only a
// direct call carries one in this lowering; arithmetic operands are
// restricted to literals and variables (see arithParts), so they cannot
// hide a call.
func exprEffects(e restrict.Expr) shellir.EffectSet {
	if e.Kind == restrict.ExprCall {
		return shellir.WithEffects(shellir.EffectProcess)
	}
	return shellir.Pure()
}
