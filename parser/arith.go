// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package parser

import (
	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/token"
)

// Arithmetic precedence levels, low to high, per spec.md §4.C.3's
// grammar: comma, assignment, ternary, logical OR, logical AND,
// bitwise OR/XOR/AND, equality, relational, shift, additive,
// multiplicative, unary, postfix, primary.
const (
	precComma = iota
	precAssign
	precTernary
	precLogOr
	precLogAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
)

func (ps *parserState) skipArithBlank() {
	for !ps.eof() {
		switch ps.peekByte() {
		case ' ', '\t', '\n', '\r':
			ps.advance()
		default:
			return
		}
	}
}

// parseArithmExpr parses an arithmetic expression at the given minimum
// precedence, implementing spec.md §4.C.3's grammar via precedence
// climbing.
func (ps *parserState) parseArithmExpr(minPrec int) (ast.ArithmExpr, error) {
	left, err := ps.parseArithUnary()
	if err != nil {
		return nil, err
	}
	return ps.parseArithBinRHS(minPrec, left)
}

func (ps *parserState) parseArithBinRHS(minPrec int, left ast.ArithmExpr) (ast.ArithmExpr, error) {
	for {
		ps.skipArithBlank()
		op, prec, ok := ps.peekArithOp()
		if !ok || prec < minPrec {
			return left, nil
		}

		if prec == precTernary {
			ps.consumeArithOp(op)
			then, err := ps.parseArithmExpr(precComma)
			if err != nil {
				return nil, err
			}
			ps.skipArithBlank()
			if !ps.eof() && ps.peekByte() == ':' {
				ps.advance()
			} else {
				return nil, ps.errf("expected ':' in ternary")
			}
			els, err := ps.parseArithmExpr(precTernary)
			if err != nil {
				return nil, err
			}
			left = &ast.TernaryArithm{Cond: left, Then: then, Else: els}
			continue
		}

		if prec == precAssign {
			ps.consumeArithOp(op)
			right, err := ps.parseArithmExpr(precAssign)
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryArithm{Op: op, X: left, Y: right}
			continue
		}

		ps.consumeArithOp(op)
		right, err := ps.parseArithUnary()
		if err != nil {
			return nil, err
		}
		right, err = ps.parseArithBinRHS(prec+1, right)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryArithm{Op: op, X: left, Y: right}
		if prec == precComma {
			continue
		}
	}
}

// peekArithOp looks ahead (without consuming on failure) for a binary
// or ternary operator and reports its precedence.
func (ps *parserState) peekArithOp() (token.Token, int, bool) {
	if ps.eof() {
		return 0, 0, false
	}
	b := ps.peekByte()
	b2 := ps.peekAt(1)
	switch b {
	case ',':
		return token.COMMA, precComma, true
	case '?':
		return token.QUEST, precTernary, true
	case '=':
		if b2 == '=' {
			return token.EQL, precEquality, true
		}
		return token.ASSIGN, precAssign, true
	case '+':
		if b2 == '=' {
			return token.ADDASSGN, precAssign, true
		}
		if b2 == '+' {
			return 0, 0, false // handled as postfix, not binary
		}
		return token.ADD, precAdditive, true
	case '-':
		if b2 == '=' {
			return token.SUBASSGN, precAssign, true
		}
		if b2 == '-' {
			return 0, 0, false
		}
		return token.SUB, precAdditive, true
	case '*':
		if b2 == '=' {
			return token.MULASSGN, precAssign, true
		}
		return token.MUL, precMultiplicative, true
	case '/':
		if b2 == '=' {
			return token.QUOASSGN, precAssign, true
		}
		return token.QUO, precMultiplicative, true
	case '%':
		if b2 == '=' {
			return token.REMASSGN, precAssign, true
		}
		return token.REM, precMultiplicative, true
	case '<':
		if b2 == '<' {
			return token.SHL, precShift, true
		}
		if b2 == '=' {
			return token.LEQ, precRelational, true
		}
		return token.LSS, precRelational, true
	case '>':
		if b2 == '>' {
			return token.SHR, precShift, true
		}
		if b2 == '=' {
			return token.GEQ, precRelational, true
		}
		return token.GTR, precRelational, true
	case '!':
		if b2 == '=' {
			return token.NEQ, precEquality, true
		}
		return 0, 0, false
	case '&':
		if b2 == '&' {
			return token.LAND, precLogAnd, true
		}
		return token.BAND, precBitAnd, true
	case '|':
		if b2 == '|' {
			return token.LOR, precLogOr, true
		}
		return token.BOR, precBitOr, true
	case '^':
		return token.XOR, precBitXor, true
	}
	return 0, 0, false
}

func (ps *parserState) consumeArithOp(t token.Token) {
	switch t {
	case token.COMMA, token.QUEST, token.ASSIGN, token.ADD, token.SUB,
		token.MUL, token.QUO, token.REM, token.LSS, token.GTR, token.BAND,
		token.BOR, token.XOR:
		ps.advance()
	default:
		ps.advance()
		ps.advance()
	}
}

// parseArithUnary handles unary prefix operators and `++x`/`--x`, then
// falls through to postfix/primary.
func (ps *parserState) parseArithUnary() (ast.ArithmExpr, error) {
	ps.skipArithBlank()
	if ps.eof() {
		return nil, ps.incomplete("))")
	}
	b := ps.peekByte()
	switch {
	case b == '+' && ps.peekAt(1) == '+':
		ps.advance()
		ps.advance()
		x, err := ps.parseArithUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryArithm{Op: token.INC, X: x}, nil
	case b == '-' && ps.peekAt(1) == '-':
		ps.advance()
		ps.advance()
		x, err := ps.parseArithUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryArithm{Op: token.DEC, X: x}, nil
	case b == '+':
		ps.advance()
		x, err := ps.parseArithUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryArithm{Op: token.ADD, X: x}, nil
	case b == '-':
		ps.advance()
		x, err := ps.parseArithUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryArithm{Op: token.SUB, X: x}, nil
	case b == '!':
		ps.advance()
		x, err := ps.parseArithUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryArithm{Op: token.NOT, X: x}, nil
	case b == '~':
		ps.advance()
		x, err := ps.parseArithUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryArithm{Op: token.BNOT, X: x}, nil
	}
	return ps.parseArithPostfix()
}

func (ps *parserState) parseArithPostfix() (ast.ArithmExpr, error) {
	x, err := ps.parseArithPrimary()
	if err != nil {
		return nil, err
	}
	if !ps.eof() {
		if ps.peekByte() == '+' && ps.peekAt(1) == '+' {
			ps.advance()
			ps.advance()
			return &ast.UnaryArithm{Op: token.INC, Post: true, X: x}, nil
		}
		if ps.peekByte() == '-' && ps.peekAt(1) == '-' {
			ps.advance()
			ps.advance()
			return &ast.UnaryArithm{Op: token.DEC, Post: true, X: x}, nil
		}
	}
	return x, nil
}

func (ps *parserState) parseArithPrimary() (ast.ArithmExpr, error) {
	ps.skipArithBlank()
	if ps.eof() {
		return nil, ps.incomplete("))")
	}
	b := ps.peekByte()
	switch {
	case b == '(':
		ps.advance()
		x, err := ps.parseArithmExpr(precComma)
		if err != nil {
			return nil, err
		}
		ps.skipArithBlank()
		if ps.eof() || ps.peekByte() != ')' {
			return nil, ps.incomplete(")")
		}
		ps.advance()
		return &ast.ParenArithm{X: x}, nil
	case b == '$':
		// A nested $((..)) or $NAME inside arithmetic; fold straight to
		// the name/value, since arithmetic already operates on variables
		// directly (spec.md §4.C.3: primary is "number | variable | ( expr )").
		parts, err := ps.parseDollar(false)
		if err != nil {
			return nil, err
		}
		if pe, ok := parts[0].(*ast.ParamExp); ok && pe.Exp == nil && !pe.Length {
			return &ast.VarExpr{Name: pe.Param}, nil
		}
		return &ast.NumLit{Value: ""}, nil
	case b >= '0' && b <= '9':
		start := ps.pos
		for !ps.eof() && (isAlnum(ps.peekByte())) {
			ps.advance()
		}
		return &ast.NumLit{Value: ps.src[start:ps.pos]}, nil
	case isNameByte(b, true):
		start := ps.pos
		for !ps.eof() && isNameByte(ps.peekByte(), false) {
			ps.advance()
		}
		return &ast.VarExpr{Name: ps.src[start:ps.pos]}, nil
	}
	return nil, ps.errf("arithmetic syntax error near %q", string(b))
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b == 'x' || b == 'X'
}
