// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package parser implements spec.md's components B (Tokenizer) and F
// (Chain & Pipeline Parser), plus the compound-construct recognition
// half of G (Script Interpreter): it turns shell source text into an
// ast.File.
//
// Unlike the teacher's separate lexer/parser-with-token-lookahead
// design, this package folds byte-level scanning and grammar-level
// recursive descent into a single parser type, because command
// substitution and arithmetic expansion both need to recurse back into
// full statement/expression parsing from the middle of scanning a word.
package parser

import (
	"fmt"

	"github.com/kshku/hash/ast"
)

// IncompleteError is returned when the input ends in the middle of an
// open construct (an unterminated quote, heredoc, or compound command).
// Interactive callers (cmd/hash) catch this, read another line, append
// it to the buffer, and re-parse, per spec.md §4.G.
type IncompleteError struct {
	// Want names what is still open, e.g. "fi", "'", "done".
	Want string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("shell: unexpected EOF, expected %q", e.Want)
}

// SyntaxError is a plain parse error: bad syntax that is not simply
// "need more input". It corresponds to spec.md §7's ParseError.
type SyntaxError struct {
	Pos ast.Position
	Msg string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

// Parser holds no state between calls to Parse; it exists so that
// future configuration (e.g. a stricter POSIX mode) has somewhere to
// live, matching the teacher's syntax.NewParser() constructor shape.
type Parser struct{}

// NewParser returns a ready-to-use Parser.
func NewParser() *Parser { return &Parser{} }

// Parse parses a complete program from src. name is used only for
// File.Name (diagnostics).
func (p *Parser) Parse(src, name string) (*ast.File, error) {
	ps := &parserState{src: src, line: 1, col: 1}
	stmts, err := ps.stmtsUntil()
	if err != nil {
		return nil, err
	}
	if !ps.eof() {
		return nil, ps.errf("unexpected %q", string(ps.peekByte()))
	}
	return &ast.File{Name: name, Stmts: stmts}, nil
}

// parserState is the scanning/parsing cursor. All fields are private;
// Parser.Parse is the only exported entry point.
type parserState struct {
	src  string
	pos  int
	line int
	col  int

	// pendingHeredocs accumulates <<DELIM redirects seen on the current
	// input line; their bodies are read starting at the next newline,
	// in the order the redirects appeared (spec.md §4.E).
	pendingHeredocs []*ast.Redirect

	// herr latches an error raised while filling heredoc bodies from
	// inside skipBlankNL, which has no error return of its own; callers
	// that loop on skipBlankNL check it afterwards.
	herr error
}

func (ps *parserState) eof() bool { return ps.pos >= len(ps.src) }

func (ps *parserState) peekByte() byte {
	if ps.eof() {
		return 0
	}
	return ps.src[ps.pos]
}

func (ps *parserState) peekAt(off int) byte {
	if ps.pos+off >= len(ps.src) {
		return 0
	}
	return ps.src[ps.pos+off]
}

func (ps *parserState) rest() string { return ps.src[ps.pos:] }

func (ps *parserState) position() ast.Position { return ast.Position{Line: ps.line, Col: ps.col} }

func (ps *parserState) advance() byte {
	b := ps.src[ps.pos]
	ps.pos++
	if b == '\n' {
		ps.line++
		ps.col = 1
	} else {
		ps.col++
	}
	return b
}

func (ps *parserState) errf(format string, args ...any) error {
	return &SyntaxError{Pos: ps.position(), Msg: fmt.Sprintf(format, args...)}
}

func (ps *parserState) incomplete(want string) error {
	return &IncompleteError{Want: want}
}

// skipBlank consumes spaces, tabs, comments, and escaped newlines
// (line continuation, spec.md §4.B rule 3), stopping at a real newline
// or any other significant byte.
func (ps *parserState) skipBlank() {
	for !ps.eof() {
		switch c := ps.peekByte(); {
		case c == ' ' || c == '\t' || c == '\r':
			ps.advance()
		case c == '\\' && ps.peekAt(1) == '\n':
			ps.advance()
			ps.advance()
		case c == '#':
			for !ps.eof() && ps.peekByte() != '\n' {
				ps.advance()
			}
		default:
			return
		}
	}
}

// skipBlankNL is skipBlank plus newlines and `;`, used between list
// items where an empty statement is allowed (e.g. right after `do`).
// Every newline it consumes may close off a pending heredoc's opening
// line, so it fills those bodies in as it goes.
func (ps *parserState) skipBlankNL() {
	for {
		ps.skipBlank()
		if ps.eof() {
			return
		}
		switch ps.peekByte() {
		case '\n':
			ps.advance()
			if err := ps.fillHeredocs(); err != nil && ps.herr == nil {
				ps.herr = err
			}
		case ';':
			ps.advance()
		default:
			return
		}
	}
}

func atWordEnd(b byte) bool {
	switch b {
	case 0, ' ', '\t', '\n', '\r', ';', '&', '|', '(', ')', '<', '>':
		return true
	}
	return false
}

func isNameByte(b byte, first bool) bool {
	if b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') {
		return true
	}
	if !first && b >= '0' && b <= '9' {
		return true
	}
	return false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// peekWord returns the next bare literal word without consuming input,
// used to look ahead for reserved words like "then"/"do"/"in". It does
// not cross quotes or expansions; such a word isn't reserved.
func (ps *parserState) peekWord() string {
	i := ps.pos
	start := i
	for i < len(ps.src) && !atWordEnd(ps.src[i]) {
		i++
	}
	return ps.src[start:i]
}

// atReserved reports whether the next bare word equals one of words,
// and is followed by a word boundary (so "iffy" doesn't match "if").
func (ps *parserState) atReserved(words ...string) string {
	w := ps.peekWord()
	for _, want := range words {
		if w == want {
			return w
		}
	}
	return ""
}
