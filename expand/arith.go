// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/token"
)

// errDivByZero is a sentinel: every caller that walks back up through
// Arith's recursive evaluation just propagates it like any other
// error, but expand.go's *ast.ArithmExp case specifically recognizes
// it to substitute "0" text and keep going, rather than aborting the
// whole command (spec.md §4.C.3: "on failure the substitution yields
// 0", matching _examples/original_source/src/arith.c's "error -
// output 0" handling).
var errDivByZero = errors.New("expand: division by zero")

// Arith evaluates an arithmetic expression tree, per spec.md §4.C.3.
// Assignment and increment/decrement operators write back through
// cfg.Env, the same AST-walking approach as the teacher's
// expand/arith.go Arithm function.
func Arith(cfg *Config, x ast.ArithmExpr) (int64, error) {
	switch x := x.(type) {
	case *ast.NumLit:
		return parseArithNum(x.Value)
	case *ast.VarExpr:
		v, _ := cfg.Env.Get(x.Name)
		return parseArithNum(v)
	case *ast.ParenArithm:
		return Arith(cfg, x.X)
	case *ast.UnaryArithm:
		return arithUnary(cfg, x)
	case *ast.BinaryArithm:
		return arithBinary(cfg, x)
	case *ast.TernaryArithm:
		c, err := Arith(cfg, x.Cond)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return Arith(cfg, x.Then)
		}
		return Arith(cfg, x.Else)
	}
	return 0, fmt.Errorf("expand: unknown arithmetic node %T", x)
}

func parseArithNum(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("expand: not a number: %q", s)
	}
	return n, nil
}

func arithLValueName(x ast.ArithmExpr) (string, bool) {
	v, ok := x.(*ast.VarExpr)
	if !ok {
		return "", false
	}
	return v.Name, true
}

func arithUnary(cfg *Config, u *ast.UnaryArithm) (int64, error) {
	if u.Op == token.INC || u.Op == token.DEC {
		name, ok := arithLValueName(u.X)
		if !ok {
			return 0, fmt.Errorf("expand: %s requires a variable operand", u.Op)
		}
		old, err := Arith(cfg, u.X)
		if err != nil {
			return 0, err
		}
		next := old + 1
		if u.Op == token.DEC {
			next = old - 1
		}
		if err := cfg.Env.Set(name, strconv.FormatInt(next, 10)); err != nil {
			return 0, err
		}
		if u.Post {
			return old, nil
		}
		return next, nil
	}

	v, err := Arith(cfg, u.X)
	if err != nil {
		return 0, err
	}
	switch u.Op {
	case token.ADD:
		return v, nil
	case token.SUB:
		return -v, nil
	case token.NOT:
		if v == 0 {
			return 1, nil
		}
		return 0, nil
	case token.BNOT:
		return ^v, nil
	}
	return 0, fmt.Errorf("expand: unknown unary operator %s", u.Op)
}

func arithBinary(cfg *Config, b *ast.BinaryArithm) (int64, error) {
	switch b.Op {
	case token.LAND:
		x, err := Arith(cfg, b.X)
		if err != nil {
			return 0, err
		}
		if x == 0 {
			return 0, nil
		}
		y, err := Arith(cfg, b.Y)
		if err != nil {
			return 0, err
		}
		if y != 0 {
			return 1, nil
		}
		return 0, nil
	case token.LOR:
		x, err := Arith(cfg, b.X)
		if err != nil {
			return 0, err
		}
		if x != 0 {
			return 1, nil
		}
		y, err := Arith(cfg, b.Y)
		if err != nil {
			return 0, err
		}
		if y != 0 {
			return 1, nil
		}
		return 0, nil
	case token.COMMA:
		if _, err := Arith(cfg, b.X); err != nil {
			return 0, err
		}
		return Arith(cfg, b.Y)
	}

	if isArithAssign(b.Op) {
		name, ok := arithLValueName(b.X)
		if !ok {
			return 0, fmt.Errorf("expand: %s requires a variable operand", b.Op)
		}
		rhs, err := Arith(cfg, b.Y)
		if err != nil {
			return 0, err
		}
		result := rhs
		if b.Op != token.ASSIGN {
			cur, err := Arith(cfg, b.X)
			if err != nil {
				return 0, err
			}
			result, err = applyArithOp(compoundBaseOp(b.Op), cur, rhs)
			if err != nil {
				return 0, err
			}
		}
		if err := cfg.Env.Set(name, strconv.FormatInt(result, 10)); err != nil {
			return 0, err
		}
		return result, nil
	}

	x, err := Arith(cfg, b.X)
	if err != nil {
		return 0, err
	}
	y, err := Arith(cfg, b.Y)
	if err != nil {
		return 0, err
	}
	return applyArithOp(b.Op, x, y)
}

func isArithAssign(op token.Token) bool {
	switch op {
	case token.ASSIGN, token.ADDASSGN, token.SUBASSGN, token.MULASSGN,
		token.QUOASSGN, token.REMASSGN:
		return true
	}
	return false
}

func compoundBaseOp(op token.Token) token.Token {
	switch op {
	case token.ADDASSGN:
		return token.ADD
	case token.SUBASSGN:
		return token.SUB
	case token.MULASSGN:
		return token.MUL
	case token.QUOASSGN:
		return token.QUO
	case token.REMASSGN:
		return token.REM
	}
	return op
}

func applyArithOp(op token.Token, x, y int64) (int64, error) {
	switch op {
	case token.ADD:
		return x + y, nil
	case token.SUB:
		return x - y, nil
	case token.MUL:
		return x * y, nil
	case token.QUO:
		if y == 0 {
			return 0, errDivByZero
		}
		return x / y, nil
	case token.REM:
		if y == 0 {
			return 0, errDivByZero
		}
		return x % y, nil
	case token.SHL:
		return x << uint(y), nil
	case token.SHR:
		return x >> uint(y), nil
	case token.LSS:
		return boolInt(x < y), nil
	case token.GTR:
		return boolInt(x > y), nil
	case token.LEQ:
		return boolInt(x <= y), nil
	case token.GEQ:
		return boolInt(x >= y), nil
	case token.EQL:
		return boolInt(x == y), nil
	case token.NEQ:
		return boolInt(x != y), nil
	case token.BAND:
		return x & y, nil
	case token.BOR:
		return x | y, nil
	case token.XOR:
		return x ^ y, nil
	}
	return 0, fmt.Errorf("expand: unknown arithmetic operator %s", op)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
