// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package parser

import (
	"strings"

	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/token"
)

// stmtsUntil parses a whole program: a statement list running to EOF.
func (ps *parserState) stmtsUntil() ([]*ast.Stmt, error) {
	return ps.parseStmtList(func() bool { return ps.eof() })
}

// stmtsUntilEOF is stmtsUntil under the name backtick command
// substitution expects; a substituted script is parsed the same way a
// top-level program is.
func (ps *parserState) stmtsUntilEOF() ([]*ast.Stmt, error) {
	return ps.stmtsUntil()
}

// stmtsUntilClose parses a statement list up to and including a
// matching close byte, used for `$(...)` and `(...)`.
func (ps *parserState) stmtsUntilClose(closeByte byte) ([]*ast.Stmt, error) {
	stmts, err := ps.parseStmtList(func() bool {
		return !ps.eof() && ps.peekByte() == closeByte
	})
	if err != nil {
		return nil, err
	}
	if ps.eof() || ps.peekByte() != closeByte {
		return nil, ps.incomplete(string(closeByte))
	}
	ps.advance()
	return stmts, nil
}

// stmtsUntilWords parses a statement list up to (but not including) one
// of the given reserved words, used for compound-construct bodies like
// `then ... fi`.
func (ps *parserState) stmtsUntilWords(words ...string) ([]*ast.Stmt, error) {
	return ps.parseStmtList(func() bool { return ps.atReserved(words...) != "" })
}

// parseStmtList is the shared and_or-list loop: and_or (separator
// and_or)*, where separator is `;`, a newline, or the `&` already
// consumed as part of an and_or's trailing background marker.
func (ps *parserState) parseStmtList(stop func() bool) ([]*ast.Stmt, error) {
	var stmts []*ast.Stmt
	for {
		ps.skipBlankNL()
		if ps.herr != nil {
			err := ps.herr
			ps.herr = nil
			return stmts, err
		}
		if ps.eof() || stop() {
			break
		}
		st, err := ps.parseAndOr()
		if err != nil {
			return stmts, err
		}
		stmts = append(stmts, st)

		ps.skipBlank()
		if ps.eof() || stop() {
			break
		}
		if !st.Background {
			switch ps.peekByte() {
			case ';', '\n':
			default:
				return stmts, ps.errf("unexpected token %q", string(ps.peekByte()))
			}
		}
	}
	return stmts, nil
}

// parseAndOr parses one `pipeline (('&&'|'||') pipeline)*` list item,
// then consumes a trailing `&` as a background marker.
func (ps *parserState) parseAndOr() (*ast.Stmt, error) {
	left, err := ps.parsePipeline()
	if err != nil {
		return nil, err
	}
	for {
		ps.skipBlank()
		if ps.eof() {
			break
		}
		switch {
		case ps.peekByte() == '&' && ps.peekAt(1) == '&':
			ps.advance()
			ps.advance()
			ps.skipBlankNL()
			right, err := ps.parsePipeline()
			if err != nil {
				return nil, err
			}
			left = &ast.Stmt{Pos: left.Pos, Cmd: &ast.BinaryCmd{Op: token.LAND, X: left, Y: right}}
			continue
		case ps.peekByte() == '|' && ps.peekAt(1) == '|':
			ps.advance()
			ps.advance()
			ps.skipBlankNL()
			right, err := ps.parsePipeline()
			if err != nil {
				return nil, err
			}
			left = &ast.Stmt{Pos: left.Pos, Cmd: &ast.BinaryCmd{Op: token.LOR, X: left, Y: right}}
			continue
		}
		break
	}
	ps.skipBlank()
	if !ps.eof() && ps.peekByte() == '&' && ps.peekAt(1) != '&' {
		ps.advance()
		left.Background = true
	}
	return left, nil
}

// parsePipeline parses `['!'] command ('|' command)*`.
func (ps *parserState) parsePipeline() (*ast.Stmt, error) {
	ps.skipBlank()
	negated := ps.atNegation()
	if negated {
		ps.advance()
	}
	left, err := ps.parseCommandStmt()
	if err != nil {
		return nil, err
	}
	for {
		ps.skipBlank()
		if ps.eof() || ps.peekByte() != '|' || ps.peekAt(1) == '|' {
			break
		}
		ps.advance()
		ps.skipBlankNL()
		right, err := ps.parseCommandStmt()
		if err != nil {
			return nil, err
		}
		left = &ast.Stmt{Pos: left.Pos, Cmd: &ast.BinaryCmd{Op: token.OR, X: left, Y: right}}
	}
	left.Negated = negated
	return left, nil
}

// parseCommandStmt parses one pipeline stage: leading assignments and
// redirections (interleaved, in any order), then either a compound
// command or a simple command's argument words (also interleaved with
// redirections), per spec.md §4.E/§4.F.
func (ps *parserState) parseCommandStmt() (*ast.Stmt, error) {
	pos := ps.position()
	var assigns []*ast.Assign
	var redirs []*ast.Redirect

prefixLoop:
	for {
		ps.skipBlank()
		if ps.eof() || ps.atStmtEnd() {
			break
		}
		switch {
		case ps.isRedirStart():
			r, err := ps.parseRedirect()
			if err != nil {
				return nil, err
			}
			redirs = append(redirs, r)
		case ps.isAssignAhead():
			a, err := ps.parseAssign()
			if err != nil {
				return nil, err
			}
			assigns = append(assigns, a)
		default:
			break prefixLoop
		}
	}

	ps.skipBlank()
	if cmd, ok, err := ps.tryParseCompound(); ok {
		if err != nil {
			return nil, err
		}
		for {
			ps.skipBlank()
			if !ps.isRedirStart() {
				break
			}
			r, err := ps.parseRedirect()
			if err != nil {
				return nil, err
			}
			redirs = append(redirs, r)
		}
		return &ast.Stmt{Pos: pos, Cmd: cmd, Assigns: assigns, Redirs: redirs}, nil
	}

	var args []ast.Word
	for {
		ps.skipBlank()
		if ps.eof() || ps.atStmtEnd() {
			break
		}
		if ps.isRedirStart() {
			r, err := ps.parseRedirect()
			if err != nil {
				return nil, err
			}
			redirs = append(redirs, r)
			continue
		}
		w, err := ps.parseWord()
		if err != nil {
			return nil, err
		}
		args = append(args, w)
	}

	return &ast.Stmt{Pos: pos, Cmd: &ast.CallExpr{Args: args}, Assigns: assigns, Redirs: redirs}, nil
}

func (ps *parserState) atStmtEnd() bool {
	if ps.eof() {
		return true
	}
	switch ps.peekByte() {
	case '\n', ';', '&', '|', ')':
		return true
	}
	return ps.atCloseBrace()
}

func (ps *parserState) atNegation() bool {
	if ps.eof() || ps.peekByte() != '!' {
		return false
	}
	switch ps.peekAt(1) {
	case 0, ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

func (ps *parserState) atOpenBrace() bool {
	if ps.eof() || ps.peekByte() != '{' {
		return false
	}
	switch ps.peekAt(1) {
	case 0, ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

func (ps *parserState) atCloseBrace() bool {
	if ps.eof() || ps.peekByte() != '}' {
		return false
	}
	switch ps.peekAt(1) {
	case 0, ' ', '\t', '\n', '\r', ';', '&', '|', ')':
		return true
	}
	return false
}

func (ps *parserState) isAssignAhead() bool {
	i := ps.pos
	if i >= len(ps.src) || !isNameByte(ps.src[i], true) {
		return false
	}
	i++
	for i < len(ps.src) && isNameByte(ps.src[i], false) {
		i++
	}
	return i < len(ps.src) && ps.src[i] == '='
}

func (ps *parserState) isRedirStart() bool {
	i := ps.pos
	for i < len(ps.src) && ps.src[i] >= '0' && ps.src[i] <= '9' {
		i++
	}
	if i >= len(ps.src) {
		return false
	}
	if c := ps.src[i]; c == '<' || c == '>' {
		return true
	}
	return i == ps.pos && ps.src[i] == '&' && i+1 < len(ps.src) && ps.src[i+1] == '>'
}

// peekFuncName looks ahead for a POSIX function-definition header,
// `name()`, without consuming it. It returns the name and the number of
// bytes the header occupies (so the caller can skip past it), or ""/0
// if the next tokens don't form one.
func (ps *parserState) peekFuncName() (name string, n int) {
	i := ps.pos
	if i >= len(ps.src) || !isNameByte(ps.src[i], true) {
		return "", 0
	}
	start := i
	for i < len(ps.src) && isNameByte(ps.src[i], false) {
		i++
	}
	name = ps.src[start:i]
	j := i
	for j < len(ps.src) && (ps.src[j] == ' ' || ps.src[j] == '\t') {
		j++
	}
	if j+1 < len(ps.src) && ps.src[j] == '(' && ps.src[j+1] == ')' {
		return name, (j + 2) - ps.pos
	}
	return "", 0
}

func (ps *parserState) advancePastWord(word string) {
	for i := 0; i < len(word); i++ {
		ps.advance()
	}
}

func atoiSimple(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

// parseAssign reads a NAME=word prefix; isAssignAhead has already
// confirmed the '=' is there.
func (ps *parserState) parseAssign() (*ast.Assign, error) {
	start := ps.pos
	ps.advance()
	for !ps.eof() && isNameByte(ps.peekByte(), false) {
		ps.advance()
	}
	name := ps.src[start:ps.pos]
	ps.advance() // '='
	val, err := ps.parseWord()
	if err != nil {
		return nil, err
	}
	return &ast.Assign{Name: name, Value: val}, nil
}

// parseRedirect reads one redirection operator and its operand,
// queuing heredoc bodies for fillHeredocs to fill in once the current
// input line ends (spec.md §4.E).
func (ps *parserState) parseRedirect() (*ast.Redirect, error) {
	pos := ps.position()
	n := -1
	start := ps.pos
	for !ps.eof() && ps.peekByte() >= '0' && ps.peekByte() <= '9' {
		ps.advance()
	}
	if ps.pos > start {
		n = atoiSimple(ps.src[start:ps.pos])
	}

	if !ps.eof() && ps.peekByte() == '&' && ps.peekAt(1) == '>' {
		ps.advance()
		ps.advance()
		op := ast.RedirBoth
		if !ps.eof() && ps.peekByte() == '>' {
			ps.advance()
			op = ast.RedirBothApp
		}
		ps.skipBlank()
		w, err := ps.parseWord()
		if err != nil {
			return nil, err
		}
		return &ast.Redirect{Pos: pos, Op: op, N: n, Word: w}, nil
	}

	switch ps.peekByte() {
	case '<':
		ps.advance()
		switch {
		case !ps.eof() && ps.peekByte() == '<':
			ps.advance()
			strip := false
			if !ps.eof() && ps.peekByte() == '-' {
				strip = true
				ps.advance()
			}
			ps.skipBlank()
			delim, quoted, err := ps.readHeredocDelim()
			if err != nil {
				return nil, err
			}
			op := ast.RedirHeredoc
			if strip {
				op = ast.RedirHeredocStrip
			}
			r := &ast.Redirect{Pos: pos, Op: op, N: n, Hdoc: &ast.Heredoc{Delim: delim, Quoted: quoted}}
			ps.pendingHeredocs = append(ps.pendingHeredocs, r)
			return r, nil
		case !ps.eof() && ps.peekByte() == '&':
			ps.advance()
			ps.skipBlank()
			w, err := ps.parseWord()
			if err != nil {
				return nil, err
			}
			return &ast.Redirect{Pos: pos, Op: ast.RedirDupFd, N: n, Word: w}, nil
		default:
			ps.skipBlank()
			w, err := ps.parseWord()
			if err != nil {
				return nil, err
			}
			return &ast.Redirect{Pos: pos, Op: ast.RedirInput, N: n, Word: w}, nil
		}
	case '>':
		ps.advance()
		switch {
		case !ps.eof() && ps.peekByte() == '>':
			ps.advance()
			ps.skipBlank()
			w, err := ps.parseWord()
			if err != nil {
				return nil, err
			}
			return &ast.Redirect{Pos: pos, Op: ast.RedirAppend, N: n, Word: w}, nil
		case !ps.eof() && ps.peekByte() == '&':
			ps.advance()
			ps.skipBlank()
			w, err := ps.parseWord()
			if err != nil {
				return nil, err
			}
			return &ast.Redirect{Pos: pos, Op: ast.RedirDupFd, N: n, Word: w}, nil
		case !ps.eof() && ps.peekByte() == '|':
			ps.advance()
			ps.skipBlank()
			w, err := ps.parseWord()
			if err != nil {
				return nil, err
			}
			return &ast.Redirect{Pos: pos, Op: ast.RedirClobberOverride, N: n, Word: w}, nil
		default:
			ps.skipBlank()
			w, err := ps.parseWord()
			if err != nil {
				return nil, err
			}
			return &ast.Redirect{Pos: pos, Op: ast.RedirOutput, N: n, Word: w}, nil
		}
	}
	return nil, ps.errf("expected a redirection operator")
}

// readHeredocDelim reads the delimiter word of a `<<`/`<<-` redirect
// and reports whether any part of it was quoted, which per spec.md
// §4.E decides whether the body is expanded or taken verbatim.
func (ps *parserState) readHeredocDelim() (string, bool, error) {
	w, err := ps.parseWord()
	if err != nil {
		return "", false, err
	}
	var sb strings.Builder
	quoted := false
	for _, p := range w.Parts {
		switch x := p.(type) {
		case *ast.Lit:
			sb.WriteString(x.Value)
		case *ast.SglQuoted:
			quoted = true
			sb.WriteString(x.Value)
		case *ast.DblQuoted:
			quoted = true
			for _, pp := range x.Parts {
				if lit, ok := pp.(*ast.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		}
	}
	return sb.String(), quoted, nil
}

// fillHeredocs reads the bodies of every heredoc redirect queued on the
// line just ended, in the order their `<<` operators appeared.
func (ps *parserState) fillHeredocs() error {
	if len(ps.pendingHeredocs) == 0 {
		return nil
	}
	pending := ps.pendingHeredocs
	ps.pendingHeredocs = nil
	for _, r := range pending {
		strip := r.Op == ast.RedirHeredocStrip
		var body strings.Builder
		for {
			if ps.eof() {
				return ps.incomplete(r.Hdoc.Delim)
			}
			lineStart := ps.pos
			for !ps.eof() && ps.peekByte() != '\n' {
				ps.advance()
			}
			line := ps.src[lineStart:ps.pos]
			hadNL := !ps.eof()
			if hadNL {
				ps.advance()
			}
			cmp := line
			if strip {
				cmp = strings.TrimLeft(line, "\t")
			}
			if cmp == r.Hdoc.Delim {
				break
			}
			if strip {
				body.WriteString(strings.TrimLeft(line, "\t"))
			} else {
				body.WriteString(line)
			}
			if !hadNL {
				break
			}
			body.WriteByte('\n')
		}
		r.Hdoc.Body = body.String()
	}
	return nil
}

// tryParseCompound recognizes a compound command or function
// definition at the current position. The bool result reports whether
// one was recognized at all (as opposed to this being a simple
// command), independent of whether parsing it then failed.
func (ps *parserState) tryParseCompound() (ast.Command, bool, error) {
	ps.skipBlank()
	if ps.eof() {
		return nil, false, nil
	}

	if w := ps.atReserved("function"); w != "" {
		ps.advancePastWord(w)
		name, err := ps.readBareName()
		if err != nil {
			return nil, true, err
		}
		ps.skipBlank()
		if !ps.eof() && ps.peekByte() == '(' && ps.peekAt(1) == ')' {
			ps.advance()
			ps.advance()
		}
		ps.skipBlankNL()
		fd, err := ps.parseFuncBody(name)
		return fd, true, err
	}

	if name, n := ps.peekFuncName(); name != "" {
		for i := 0; i < n; i++ {
			ps.advance()
		}
		ps.skipBlankNL()
		fd, err := ps.parseFuncBody(name)
		return fd, true, err
	}

	switch {
	case ps.peekByte() == '(' && ps.peekAt(1) == '(':
		ps.advance()
		ps.advance()
		x, err := ps.parseArithmExpr(precComma)
		if err != nil {
			return nil, true, err
		}
		ps.skipBlank()
		if ps.eof() || ps.peekByte() != ')' || ps.peekAt(1) != ')' {
			return nil, true, ps.incomplete("))")
		}
		ps.advance()
		ps.advance()
		return &ast.ArithmCmd{X: x}, true, nil
	case ps.peekByte() == '(':
		ps.advance()
		stmts, err := ps.stmtsUntilClose(')')
		if err != nil {
			return nil, true, err
		}
		return &ast.Subshell{Stmts: stmts}, true, nil
	case ps.atOpenBrace():
		ps.advance()
		stmts, err := ps.parseBraceBody()
		if err != nil {
			return nil, true, err
		}
		return &ast.Block{Stmts: stmts}, true, nil
	}

	switch ps.atReserved("if", "while", "until", "for", "case") {
	case "if":
		ps.advancePastWord("if")
		cl, err := ps.parseIfClause()
		return cl, true, err
	case "while":
		ps.advancePastWord("while")
		cl, err := ps.parseWhileClause(false)
		return cl, true, err
	case "until":
		ps.advancePastWord("until")
		cl, err := ps.parseWhileClause(true)
		return cl, true, err
	case "for":
		ps.advancePastWord("for")
		cl, err := ps.parseForClause()
		return cl, true, err
	case "case":
		ps.advancePastWord("case")
		cl, err := ps.parseCaseClause()
		return cl, true, err
	}

	return nil, false, nil
}

func (ps *parserState) parseBraceBody() ([]*ast.Stmt, error) {
	stmts, err := ps.parseStmtList(func() bool { return ps.atCloseBrace() })
	if err != nil {
		return nil, err
	}
	if !ps.atCloseBrace() {
		return nil, ps.incomplete("}")
	}
	ps.advance()
	return stmts, nil
}

func (ps *parserState) parseFuncBody(name string) (*ast.FuncDecl, error) {
	start := ps.pos
	cmd, ok, err := ps.tryParseCompound()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ps.errf("expected a function body")
	}
	bodyText := ps.src[start:ps.pos]
	return &ast.FuncDecl{Name: name, Body: &ast.Stmt{Cmd: cmd}, BodyText: bodyText}, nil
}

func (ps *parserState) readBareName() (string, error) {
	ps.skipBlank()
	if ps.eof() || !isNameByte(ps.peekByte(), true) {
		return "", ps.errf("expected a name")
	}
	start := ps.pos
	for !ps.eof() && isNameByte(ps.peekByte(), false) {
		ps.advance()
	}
	return ps.src[start:ps.pos], nil
}

func (ps *parserState) parseIfClause() (*ast.IfClause, error) {
	cond, err := ps.stmtsUntilWords("then")
	if err != nil {
		return nil, err
	}
	if ps.atReserved("then") == "" {
		return nil, ps.incomplete("then")
	}
	ps.advancePastWord("then")
	then, err := ps.stmtsUntilWords("elif", "else", "fi")
	if err != nil {
		return nil, err
	}

	var elifs []*ast.Elif
	for ps.atReserved("elif") != "" {
		ps.advancePastWord("elif")
		econd, err := ps.stmtsUntilWords("then")
		if err != nil {
			return nil, err
		}
		if ps.atReserved("then") == "" {
			return nil, ps.incomplete("then")
		}
		ps.advancePastWord("then")
		ethen, err := ps.stmtsUntilWords("elif", "else", "fi")
		if err != nil {
			return nil, err
		}
		elifs = append(elifs, &ast.Elif{CondStmts: econd, ThenStmts: ethen})
	}

	var elseStmts []*ast.Stmt
	if ps.atReserved("else") != "" {
		ps.advancePastWord("else")
		elseStmts, err = ps.stmtsUntilWords("fi")
		if err != nil {
			return nil, err
		}
	}
	if ps.atReserved("fi") == "" {
		return nil, ps.incomplete("fi")
	}
	ps.advancePastWord("fi")
	return &ast.IfClause{CondStmts: cond, ThenStmts: then, Elifs: elifs, ElseStmts: elseStmts}, nil
}

func (ps *parserState) parseWhileClause(until bool) (*ast.WhileClause, error) {
	cond, err := ps.stmtsUntilWords("do")
	if err != nil {
		return nil, err
	}
	if ps.atReserved("do") == "" {
		return nil, ps.incomplete("do")
	}
	ps.advancePastWord("do")
	body, err := ps.stmtsUntilWords("done")
	if err != nil {
		return nil, err
	}
	if ps.atReserved("done") == "" {
		return nil, ps.incomplete("done")
	}
	ps.advancePastWord("done")
	return &ast.WhileClause{CondStmts: cond, DoStmts: body, Until: until}, nil
}

func (ps *parserState) parseForClause() (*ast.ForClause, error) {
	name, err := ps.readBareName()
	if err != nil {
		return nil, err
	}
	ps.skipBlankNL()

	hasIn := false
	var words []ast.Word
	if ps.atReserved("in") != "" {
		hasIn = true
		ps.advancePastWord("in")
		for {
			ps.skipBlank()
			if ps.eof() || ps.peekByte() == ';' || ps.peekByte() == '\n' {
				break
			}
			w, err := ps.parseWord()
			if err != nil {
				return nil, err
			}
			words = append(words, w)
		}
	}
	ps.skipBlankNL()
	if ps.atReserved("do") == "" {
		return nil, ps.incomplete("do")
	}
	ps.advancePastWord("do")
	body, err := ps.stmtsUntilWords("done")
	if err != nil {
		return nil, err
	}
	if ps.atReserved("done") == "" {
		return nil, ps.incomplete("done")
	}
	ps.advancePastWord("done")
	return &ast.ForClause{Var: name, Words: words, HasIn: hasIn, DoStmts: body}, nil
}

func (ps *parserState) parseCaseClause() (*ast.CaseClause, error) {
	ps.skipBlank()
	word, err := ps.parseWord()
	if err != nil {
		return nil, err
	}
	ps.skipBlankNL()
	if ps.atReserved("in") == "" {
		return nil, ps.errf("expected 'in'")
	}
	ps.advancePastWord("in")
	ps.skipBlankNL()

	var items []*ast.CaseItem
	for ps.atReserved("esac") == "" {
		if ps.eof() {
			return nil, ps.incomplete("esac")
		}
		if ps.peekByte() == '(' {
			ps.advance()
			ps.skipBlank()
		}
		var pats []ast.Word
		for {
			p, err := ps.parseWordIn(func(b byte) bool { return b == '|' || b == ')' })
			if err != nil {
				return nil, err
			}
			pats = append(pats, p)
			ps.skipBlank()
			if !ps.eof() && ps.peekByte() == '|' {
				ps.advance()
				ps.skipBlank()
				continue
			}
			break
		}
		if ps.eof() || ps.peekByte() != ')' {
			return nil, ps.incomplete(")")
		}
		ps.advance()
		stmts, err := ps.parseStmtList(func() bool {
			if ps.atReserved("esac") != "" {
				return true
			}
			return !ps.eof() && ps.peekByte() == ';' &&
				(ps.peekAt(1) == ';' || ps.peekAt(1) == '&')
		})
		if err != nil {
			return nil, err
		}
		term, err := ps.readCaseTerm()
		if err != nil {
			return nil, err
		}
		items = append(items, &ast.CaseItem{Patterns: pats, Stmts: stmts, Fallthru: term})
		ps.skipBlankNL()
	}
	ps.advancePastWord("esac")
	return &ast.CaseClause{Word: word, List: items}, nil
}

func (ps *parserState) readCaseTerm() (ast.CaseOp, error) {
	ps.skipBlank()
	if !ps.eof() && ps.peekByte() == ';' {
		if ps.peekAt(1) == ';' {
			ps.advance()
			ps.advance()
			if !ps.eof() && ps.peekByte() == '&' {
				ps.advance()
				return ast.CaseTestNext, nil
			}
			return ast.CaseBreak, nil
		}
		if ps.peekAt(1) == '&' {
			ps.advance()
			ps.advance()
			return ast.CaseFallthru, nil
		}
	}
	return ast.CaseBreak, nil
}
