package source

import (
	"fmt"
	"strconv"

	"github.com/rash-tools/rashc/internal/restrict"
)

// Convert turns a parsed File into a restrict.Program with the given
// entry point name. It performs no subset-discipline checking itself —
// that is restrict.Validate's job — only syntax-to-AST translation.
func Convert(f *File, entryPoint string) (*restrict.Program, error) {
	prog := &restrict.Program{EntryPoint: entryPoint}
	for _, fn := range f.Functions {
		rfn, err := convertFunction(fn)
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, rfn)
	}
	return prog, nil
}

func convertFunction(fn *FunctionDecl) (*restrict.Function, error) {
	rfn := &restrict.Function{Name: fn.Name}
	for _, p := range fn.Params {
		t, err := convertType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("function %s, param %s: %w", fn.Name, p.Name, err)
		}
		rfn.Params = append(rfn.Params, restrict.Param{Name: p.Name, Type: t})
	}
	if fn.Return != nil {
		t, err := convertType(fn.Return)
		if err != nil {
			return nil, fmt.Errorf("function %s return type: %w", fn.Name, err)
		}
		rfn.ReturnType = t
	} else {
		rfn.ReturnType = restrict.Bool()
	}
	body, err := convertBlock(fn.Body)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", fn.Name, err)
	}
	rfn.Body = body
	return rfn, nil
}

func convertType(t *TypeExpr) (restrict.Type, error) {
	switch t.Name {
	case "Bool":
		return restrict.Bool(), nil
	case "U32":
		return restrict.U32(), nil
	case "Str":
		return restrict.Str(), nil
	case "Result":
		if len(t.Generics) != 2 {
			return restrict.Type{}, fmt.Errorf("Result requires exactly 2 type arguments, got %d", len(t.Generics))
		}
		ok, err := convertType(t.Generics[0])
		if err != nil {
			return restrict.Type{}, err
		}
		errType, err := convertType(t.Generics[1])
		if err != nil {
			return restrict.Type{}, err
		}
		return restrict.Result(ok, errType), nil
	case "Option":
		if len(t.Generics) != 1 {
			return restrict.Type{}, fmt.Errorf("Option requires exactly 1 type argument, got %d", len(t.Generics))
		}
		inner, err := convertType(t.Generics[0])
		if err != nil {
			return restrict.Type{}, err
		}
		return restrict.Option(inner), nil
	default:
		return restrict.Type{}, fmt.Errorf("unknown type %q", t.Name)
	}
}

func convertBlock(b *Block) ([]restrict.Stmt, error) {
	stmts := make([]restrict.Stmt, 0, len(b.Statements))
	for _, s := range b.Statements {
		rs, err := convertStmt(s)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, rs)
	}
	return stmts, nil
}

func convertStmt(s *Statement) (restrict.Stmt, error) {
	switch {
	case s.Let != nil:
		v, err := convertExpr(s.Let.Value)
		if err != nil {
			return restrict.Stmt{}, err
		}
		return restrict.Let(s.Let.Name, v), nil

	case s.If != nil:
		cond, err := convertExpr(s.If.Condition)
		if err != nil {
			return restrict.Stmt{}, err
		}
		then, err := convertBlock(s.If.Then)
		if err != nil {
			return restrict.Stmt{}, err
		}
		var els []restrict.Stmt
		if s.If.Else != nil {
			els, err = convertBlock(s.If.Else)
			if err != nil {
				return restrict.Stmt{}, err
			}
		}
		return restrict.If(cond, then, els), nil

	case s.Return != nil:
		if s.Return.Value == nil {
			return restrict.ReturnStmtOf(restrict.LitBool(true)), nil
		}
		v, err := convertExpr(s.Return.Value)
		if err != nil {
			return restrict.Stmt{}, err
		}
		return restrict.ReturnStmtOf(v), nil

	case s.Expr != nil:
		v, err := convertExpr(s.Expr.Value)
		if err != nil {
			return restrict.Stmt{}, err
		}
		return restrict.ExprStmt(v), nil

	default:
		return restrict.Stmt{}, fmt.Errorf("empty statement")
	}
}

// convertExpr folds a flat left-to-right operator chain without
// precedence climbing: "a + b * c" parses as "(a + b) * c". rashc
// source is expected to use parentheses to disambiguate, the same
// discipline spec.md's own worked examples follow.
func convertExpr(e *Expr) (restrict.Expr, error) {
	left, err := convertUnary(e.Left)
	if err != nil {
		return restrict.Expr{}, err
	}
	for _, op := range e.Ops {
		right, err := convertUnary(op.Right)
		if err != nil {
			return restrict.Expr{}, err
		}
		binOp, err := convertBinOp(op.Operator)
		if err != nil {
			return restrict.Expr{}, err
		}
		left = restrict.Binary(binOp, left, right)
	}
	return left, nil
}

func convertBinOp(op string) (restrict.BinaryOp, error) {
	switch op {
	case "+":
		return restrict.OpAdd, nil
	case "-":
		return restrict.OpSub, nil
	case "*":
		return restrict.OpMul, nil
	case "/":
		return restrict.OpDiv, nil
	case "%":
		return restrict.OpMod, nil
	case "==":
		return restrict.OpEq, nil
	case "!=":
		return restrict.OpNe, nil
	case "<":
		return restrict.OpLt, nil
	case "<=":
		return restrict.OpLe, nil
	case ">":
		return restrict.OpGt, nil
	case ">=":
		return restrict.OpGe, nil
	case "&&":
		return restrict.OpAnd, nil
	case "||":
		return restrict.OpOr, nil
	default:
		return restrict.OpInvalid, fmt.Errorf("unknown operator %q", op)
	}
}

func convertUnary(u *UnaryExpr) (restrict.Expr, error) {
	operand, err := convertPrimary(u.Primary)
	if err != nil {
		return restrict.Expr{}, err
	}
	if u.Not {
		return restrict.Unary(restrict.UnaryNot, operand), nil
	}
	return operand, nil
}

func convertPrimary(p *PrimaryExpr) (restrict.Expr, error) {
	switch {
	case p.Bool != nil:
		return restrict.LitBool(*p.Bool == "true"), nil
	case p.Int != nil:
		n, err := strconv.ParseUint(*p.Int, 10, 32)
		if err != nil {
			return restrict.Expr{}, fmt.Errorf("integer literal %q out of range for U32: %w", *p.Int, err)
		}
		return restrict.LitU32(uint32(n)), nil
	case p.Str != nil:
		unquoted, err := strconv.Unquote(*p.Str)
		if err != nil {
			return restrict.Expr{}, fmt.Errorf("invalid string literal %s: %w", *p.Str, err)
		}
		return restrict.LitStr(unquoted), nil
	case p.Call != nil:
		args := make([]restrict.Expr, 0, len(p.Call.Args))
		for _, a := range p.Call.Args {
			v, err := convertExpr(a)
			if err != nil {
				return restrict.Expr{}, err
			}
			args = append(args, v)
		}
		return restrict.Call(p.Call.Name, args...), nil
	case p.Ident != nil:
		return restrict.Var(*p.Ident), nil
	case p.Parens != nil:
		return convertExpr(p.Parens)
	default:
		return restrict.Expr{}, fmt.Errorf("empty primary expression")
	}
}
