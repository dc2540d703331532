// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package parser

import (
	"strings"

	"github.com/kshku/hash/ast"
)

// parseWord scans a single word, stopping at an unquoted word-ending
// byte (spec.md §4.B rule 9, plus the redirection-starting bytes of
// rule 8). It implements rules 1-7 of spec.md §4.B.
func (ps *parserState) parseWord() (ast.Word, error) {
	return ps.parseWordIn(atWordEnd)
}

// parseWordIn is parseWord generalized with a custom stop predicate,
// used for words that may contain spaces verbatim (a parameter
// expansion's default/alternate/pattern operand runs up to an
// unescaped '}', not up to whitespace).
func (ps *parserState) parseWordIn(stop func(byte) bool) (ast.Word, error) {
	var w ast.Word
	var lit strings.Builder
	flush := func(quoted bool) {
		if lit.Len() > 0 {
			w.Parts = append(w.Parts, &ast.Lit{Value: lit.String(), Quoted: quoted})
			lit.Reset()
		}
	}
	for !ps.eof() {
		b := ps.peekByte()
		if stop(b) {
			break
		}
		switch b {
		case '\'':
			flush(false)
			sq, err := ps.parseSingleQuoted()
			if err != nil {
				return w, err
			}
			w.Parts = append(w.Parts, sq)
		case '"':
			flush(false)
			dq, err := ps.parseDoubleQuoted()
			if err != nil {
				return w, err
			}
			w.Parts = append(w.Parts, dq)
		case '$':
			flush(false)
			parts, err := ps.parseDollar(false)
			if err != nil {
				return w, err
			}
			w.Parts = append(w.Parts, parts...)
		case '`':
			flush(false)
			cs, err := ps.parseBacktick()
			if err != nil {
				return w, err
			}
			w.Parts = append(w.Parts, cs)
		case '\\':
			ps.advance()
			if ps.eof() {
				lit.WriteByte('\\')
				break
			}
			nb := ps.peekByte()
			if nb == '\n' {
				ps.advance() // line continuation: elided entirely
				continue
			}
			ps.advance()
			flush(false)
			w.Parts = append(w.Parts, &ast.Lit{Value: string(nb), Quoted: true})
		default:
			lit.WriteByte(b)
			ps.advance()
		}
	}
	flush(false)
	return w, nil
}

// ParseHeredocBody parses an unquoted heredoc's body for the `$`/`` ` ``
// expansions spec.md §4.E still allows there: a backslash keeps its
// escaping power only before `$`, `` ` ``, `\`, and a newline; every
// other byte, including a bare backslash, is literal. It is the one
// entry point into package parser that does not start from a full
// program, since the heredoc body was already carved out by the line
// scanner in stmt.go.
func ParseHeredocBody(body string) (ast.Word, error) {
	ps := &parserState{src: body, line: 1, col: 1}
	var w ast.Word
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			w.Parts = append(w.Parts, &ast.Lit{Value: lit.String(), Quoted: true})
			lit.Reset()
		}
	}
	for !ps.eof() {
		b := ps.peekByte()
		switch b {
		case '\\':
			ps.advance()
			if ps.eof() {
				lit.WriteByte('\\')
				break
			}
			nb := ps.peekByte()
			switch nb {
			case '$', '`', '\\':
				ps.advance()
				lit.WriteByte(nb)
			case '\n':
				ps.advance()
			default:
				lit.WriteByte('\\')
			}
		case '$':
			flush()
			parts, err := ps.parseDollar(true)
			if err != nil {
				return w, err
			}
			w.Parts = append(w.Parts, parts...)
		case '`':
			flush()
			cs, err := ps.parseBacktick()
			if err != nil {
				return w, err
			}
			cs.InDouble = true
			w.Parts = append(w.Parts, cs)
		default:
			lit.WriteByte(b)
			ps.advance()
		}
	}
	flush()
	return w, nil
}

// parseSingleQuoted reads 'literal text'. Per spec.md §4.B rule 1,
// backslash has no escaping power inside single quotes: it is literal
// content, and the first unescaped `'` always closes the string.
func (ps *parserState) parseSingleQuoted() (*ast.SglQuoted, error) {
	ps.advance() // opening '
	start := ps.pos
	for {
		if ps.eof() {
			return nil, ps.incomplete("'")
		}
		if ps.peekByte() == '\'' {
			break
		}
		ps.advance()
	}
	val := ps.src[start:ps.pos]
	ps.advance() // closing '
	return &ast.SglQuoted{Value: val}, nil
}

// parseDoubleQuoted reads "parts..." per spec.md §4.B rule 2: `\$`,
// `` \` ``, `\"`, `\\` drop the backslash; `\<newline>` is elided; any
// other `\x` is kept verbatim (both bytes). $ and ` still trigger
// expansion, with InDouble set on the resulting node (spec.md §3's STX
// marker).
func (ps *parserState) parseDoubleQuoted() (*ast.DblQuoted, error) {
	ps.advance() // opening "
	var dq ast.DblQuoted
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			dq.Parts = append(dq.Parts, &ast.Lit{Value: lit.String(), Quoted: true})
			lit.Reset()
		}
	}
	for {
		if ps.eof() {
			return nil, ps.incomplete(`"`)
		}
		b := ps.peekByte()
		if b == '"' {
			ps.advance()
			break
		}
		switch b {
		case '\\':
			ps.advance()
			if ps.eof() {
				lit.WriteByte('\\')
				break
			}
			nb := ps.peekByte()
			switch nb {
			case '$', '`', '"', '\\':
				ps.advance()
				lit.WriteByte(nb)
			case '\n':
				ps.advance() // elided
			default:
				lit.WriteByte('\\')
				// nb itself is handled as a literal byte on the next iteration.
			}
		case '$':
			flush()
			parts, err := ps.parseDollar(true)
			if err != nil {
				return nil, err
			}
			dq.Parts = append(dq.Parts, parts...)
		case '`':
			flush()
			cs, err := ps.parseBacktick()
			if err != nil {
				return nil, err
			}
			cs.InDouble = true
			dq.Parts = append(dq.Parts, cs)
		default:
			lit.WriteByte(b)
			ps.advance()
		}
	}
	flush()
	return &dq, nil
}

// parseBacktick reads `...`, unescaping `` \` ``, `\\`, and `\$` per
// traditional backtick rules, then reparses the result as a nested
// statement list (spec.md §4.B rule 6: "copy verbatim ... for the
// command-substitution expander").
func (ps *parserState) parseBacktick() (*ast.CmdSubst, error) {
	ps.advance() // opening `
	var sb strings.Builder
	for {
		if ps.eof() {
			return nil, ps.incomplete("`")
		}
		b := ps.peekByte()
		if b == '`' {
			break
		}
		if b == '\\' {
			nb := ps.peekAt(1)
			if nb == '`' || nb == '\\' || nb == '$' {
				ps.advance()
				ps.advance()
				sb.WriteByte(nb)
				continue
			}
		}
		sb.WriteByte(b)
		ps.advance()
	}
	ps.advance() // closing `
	sub := &parserState{src: sb.String(), line: ps.line, col: ps.col}
	stmts, err := sub.stmtsUntilEOF()
	if err != nil {
		return nil, err
	}
	return &ast.CmdSubst{Stmts: stmts}, nil
}

// parseDollar handles every `$...` form of spec.md §4.B rule 5 plus
// §4.C.4's parameter forms. inDouble records whether the `$` appeared
// inside double quotes (spec.md §3's STX marker).
func (ps *parserState) parseDollar(inDouble bool) ([]ast.WordPart, error) {
	ps.advance() // consume '$'
	if ps.eof() {
		return []ast.WordPart{&ast.Lit{Value: "$"}}, nil
	}
	b := ps.peekByte()
	switch {
	case b == '(' && ps.peekAt(1) == '(':
		ps.advance()
		ps.advance()
		x, err := ps.parseArithmExpr(precComma)
		if err != nil {
			return nil, err
		}
		if ps.eof() {
			return nil, ps.incomplete("))")
		}
		if ps.peekByte() != ')' || ps.peekAt(1) != ')' {
			return nil, ps.errf("expected ))")
		}
		ps.advance()
		ps.advance()
		return []ast.WordPart{&ast.ArithmExp{X: x, InDouble: inDouble}}, nil
	case b == '(':
		ps.advance()
		stmts, err := ps.stmtsUntilClose(')')
		if err != nil {
			return nil, err
		}
		return []ast.WordPart{&ast.CmdSubst{Stmts: stmts, InDouble: inDouble}}, nil
	case b == '{':
		return ps.parseParamBrace(inDouble)
	case isNameByte(b, true):
		start := ps.pos
		for !ps.eof() && isNameByte(ps.peekByte(), false) {
			ps.advance()
		}
		name := ps.src[start:ps.pos]
		return []ast.WordPart{&ast.ParamExp{Short: true, Param: name, InDouble: inDouble}}, nil
	case b >= '0' && b <= '9':
		ps.advance()
		return []ast.WordPart{&ast.ParamExp{Short: true, Param: string(b), InDouble: inDouble}}, nil
	case b == '@' || b == '*' || b == '#' || b == '?' || b == '$' || b == '!' || b == '-':
		ps.advance()
		return []ast.WordPart{&ast.ParamExp{Short: true, Param: string(b), InDouble: inDouble}}, nil
	default:
		return []ast.WordPart{&ast.Lit{Value: "$"}}, nil
	}
}

// parseParamBrace handles ${...} after the leading "${" has been seen
// (the '{' is still unconsumed on entry). It covers every form in
// spec.md §4.C.4.
func (ps *parserState) parseParamBrace(inDouble bool) ([]ast.WordPart, error) {
	ps.advance() // '{'
	length := false
	if ps.peekByte() == '#' && ps.peekAt(1) != '}' && ps.peekAt(1) != 0 {
		length = true
		ps.advance()
	}
	name, err := ps.readParamName()
	if err != nil {
		return nil, err
	}
	if ps.eof() {
		return nil, ps.incomplete("}")
	}
	if length {
		if ps.peekByte() != '}' {
			return nil, ps.errf("bad substitution")
		}
		ps.advance()
		return []ast.WordPart{&ast.ParamExp{Length: true, Param: name, InDouble: inDouble}}, nil
	}
	if ps.peekByte() == '}' {
		ps.advance()
		return []ast.WordPart{&ast.ParamExp{Param: name, InDouble: inDouble}}, nil
	}
	op, colon, err := ps.readParamOp()
	if err != nil {
		return nil, err
	}
	word, err := ps.parseWordIn(func(b byte) bool { return b == '}' })
	if err != nil {
		return nil, err
	}
	if ps.eof() || ps.peekByte() != '}' {
		return nil, ps.incomplete("}")
	}
	ps.advance()
	return []ast.WordPart{&ast.ParamExp{
		Param:    name,
		InDouble: inDouble,
		Exp:      &ast.ParamExpansion{Op: op, Colon: colon, Word: word},
	}}, nil
}

func (ps *parserState) readParamName() (string, error) {
	if ps.eof() {
		return "", ps.incomplete("}")
	}
	b := ps.peekByte()
	switch {
	case b >= '0' && b <= '9':
		start := ps.pos
		for !ps.eof() && ps.peekByte() >= '0' && ps.peekByte() <= '9' {
			ps.advance()
		}
		return ps.src[start:ps.pos], nil
	case b == '@' || b == '*' || b == '#' || b == '?' || b == '$' || b == '!' || b == '-':
		ps.advance()
		return string(b), nil
	case isNameByte(b, true):
		start := ps.pos
		for !ps.eof() && isNameByte(ps.peekByte(), false) {
			ps.advance()
		}
		return ps.src[start:ps.pos], nil
	}
	return "", ps.errf("bad substitution")
}

func (ps *parserState) readParamOp() (ast.ParExpOp, bool, error) {
	colon := false
	if ps.peekByte() == ':' {
		colon = true
		ps.advance()
	}
	if ps.eof() {
		return 0, false, ps.incomplete("}")
	}
	switch ps.peekByte() {
	case '-':
		ps.advance()
		return ast.ParDefault, colon, nil
	case '=':
		ps.advance()
		return ast.ParAssign, colon, nil
	case '+':
		ps.advance()
		return ast.ParAlt, colon, nil
	case '?':
		ps.advance()
		return ast.ParError, colon, nil
	case '#':
		ps.advance()
		if ps.peekByte() == '#' {
			ps.advance()
			return ast.ParRemLargePrefix, false, nil
		}
		return ast.ParRemSmallPrefix, false, nil
	case '%':
		ps.advance()
		if ps.peekByte() == '%' {
			ps.advance()
			return ast.ParRemLargeSuffix, false, nil
		}
		return ast.ParRemSmallSuffix, false, nil
	}
	return 0, false, ps.errf("bad substitution")
}
