// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package pattern implements the basic shell pattern matching notation
// spec.md §4.C/§4.D rely on: `*`, `?`, and `[...]` character classes.
// Unlike a full shell's globbing, this package intentionally leaves out
// ksh-style extended globs (`!(...)`, `@(...)`, ...) and bash's `**`,
// matching spec.md §1's Non-goals.
package pattern

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// SyntaxError is returned for a malformed pattern, e.g. an unterminated
// `[...]` class.
type SyntaxError struct {
	msg string
	err error
}

func (e *SyntaxError) Error() string { return e.msg }
func (e *SyntaxError) Unwrap() error { return e.err }

// Mode tweaks how a pattern is translated.
type Mode uint

const (
	// EntireString anchors the translated regexp with ^ and $, for
	// whole-string matches like `case` arms. Without it, the regexp is
	// meant to be used unanchored is never what callers want here, so
	// pathname expansion always sets it too (globbing a path segment is
	// a whole-string match against each candidate name).
	EntireString Mode = 1 << iota
)

// Regexp translates a shell pattern into a regular expression usable
// with [regexp.Compile]. For example, Regexp("foo*bar?", 0) returns
// "(?s)foo.*bar.".
func Regexp(pat string, mode Mode) (string, error) {
	var sb strings.Builder
	sb.WriteString("(?s)")
	if mode&EntireString != 0 {
		sb.WriteString("^")
	}
	sl := &stringLexer{s: pat}
	for {
		if err := regexpNext(&sb, sl); err == io.EOF {
			break
		} else if err != nil {
			return "", err
		}
	}
	if mode&EntireString != 0 {
		sb.WriteString("$")
	}
	return sb.String(), nil
}

// QuoteMeta returns s with every pattern metacharacter escaped, so that
// it matches only the literal string s.
func QuoteMeta(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// HasMeta reports whether s contains any of the glob metacharacters
// that pathname expansion must react to, outside of a quoted/guarded
// context (spec.md §4.C.6).
func HasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

type stringLexer struct {
	s string
	i int
}

func (sl *stringLexer) next() byte {
	if sl.i >= len(sl.s) {
		return 0
	}
	c := sl.s[sl.i]
	sl.i++
	return c
}

func (sl *stringLexer) peek() byte {
	if sl.i >= len(sl.s) {
		return 0
	}
	return sl.s[sl.i]
}

func (sl *stringLexer) rest() string { return sl.s[sl.i:] }

func regexpNext(sb *strings.Builder, sl *stringLexer) error {
	switch c := sl.next(); c {
	case 0:
		return io.EOF
	case '*':
		sb.WriteString(".*")
	case '?':
		sb.WriteByte('.')
	case '\\':
		c := sl.next()
		if c == 0 {
			return &SyntaxError{msg: `\ at end of pattern`}
		}
		writeQuoted(sb, c)
	case '[':
		return bracketClass(sb, sl)
	default:
		writeQuoted(sb, c)
	}
	return nil
}

// writeQuoted appends c to sb, escaping it if it's a regexp
// metacharacter. c is one byte of the pattern's underlying UTF-8 text,
// not necessarily a whole rune: converting it through string(c) would
// reinterpret a multi-byte sequence's lead/continuation bytes as
// unrelated Unicode code points (e.g. string(byte(0xC3)) is "Ã", not
// the original byte), so non-ASCII bytes are written through as-is.
func writeQuoted(sb *strings.Builder, c byte) {
	if c < 0x80 {
		sb.WriteString(regexp.QuoteMeta(string(c)))
		return
	}
	sb.WriteByte(c)
}

// bracketClass handles a `[...]` character class, including the POSIX
// `[:alpha:]`-style named classes and `[!...]`/`[^...]` negation. A
// named class occupying the whole expression (e.g. `[[:digit:]]`) is
// passed through byte-for-byte: Go's regexp engine already understands
// `[:name:]` inside a bracket expression, so there is nothing to
// translate, only to validate and re-close.
func bracketClass(sb *strings.Builder, sl *stringLexer) error {
	if name, raw, n, found := namedClass(sl.rest()); found {
		if !posixClassNames[name] {
			return &SyntaxError{msg: fmt.Sprintf("not a valid named class: %q", name)}
		}
		sl.i += n
		if sl.next() != ']' {
			return &SyntaxError{msg: "[ was not matched with a closing ]"}
		}
		sb.WriteByte('[')
		sb.WriteString(raw)
		sb.WriteByte(']')
		return nil
	}
	sb.WriteByte('[')
	c := sl.next()
	if c == 0 {
		return &SyntaxError{msg: "[ was not matched with a closing ]"}
	}
	if c == '!' || c == '^' {
		sb.WriteByte('^')
		c = sl.next()
		if c == 0 {
			return &SyntaxError{msg: "[ was not matched with a closing ]"}
		}
	}
	// a ']' right after the opening (or negation) is literal.
	if c == ']' {
		sb.WriteString("\\]")
		c = sl.next()
		if c == 0 {
			return &SyntaxError{msg: "[ was not matched with a closing ]"}
		}
	}
	for {
		if c == ']' {
			sb.WriteByte(']')
			return nil
		}
		if c == 0 {
			return &SyntaxError{msg: "[ was not matched with a closing ]"}
		}
		switch c {
		case '\\', '^':
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
		c = sl.next()
	}
}

// posixClassNames are the named classes Go's regexp engine recognizes
// inside a bracket expression.
var posixClassNames = map[string]bool{
	"alpha": true, "digit": true, "alnum": true, "upper": true,
	"lower": true, "space": true, "blank": true, "punct": true,
	"cntrl": true, "graph": true, "print": true, "xdigit": true,
	"ascii": true, "word": true,
}

// namedClass recognizes a leading `[:name:]` inside a bracket
// expression, regardless of whether name is one bracketClass
// recognizes: an unknown name is a syntax error, not "not a named
// class after all". found reports whether `[:...:]` syntax was seen at
// all; name is its contents; raw is the matched text to pass through
// unchanged; n is the number of bytes consumed from rest.
func namedClass(rest string) (name, raw string, n int, found bool) {
	if !strings.HasPrefix(rest, "[:") {
		return "", "", 0, false
	}
	end := strings.Index(rest[2:], ":]")
	if end < 0 {
		return "", "", 0, false
	}
	return rest[2 : 2+end], rest[:2+end+2], 2 + end + 2, true
}

// wrapErr wraps a pattern compile error with the offending pattern, so
// callers like Compile can surface which pattern failed.
func wrapErr(pat string, err error) error {
	return fmt.Errorf("invalid pattern %q: %w", pat, err)
}

// Compile translates pat and compiles it to a *regexp.Regexp in one
// step, the form every caller outside this package actually wants
// (glob matching and ${NAME#pat}-style trimming both just need a
// matcher, not the intermediate regexp source).
func Compile(pat string, mode Mode) (*regexp.Regexp, error) {
	restr, err := Regexp(pat, mode)
	if err != nil {
		return nil, wrapErr(pat, err)
	}
	re, err := regexp.Compile(restr)
	if err != nil {
		return nil, wrapErr(pat, err)
	}
	return re, nil
}
