// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"errors"
	"path"
	"strconv"
	"strings"

	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/pattern"
)

// segment is one run of a Word's expansion: either quoted text (never
// split or globbed) or unquoted text (subject to both). It is the
// typed stand-in for spec.md §3's SOH/STX marker bytes.
type segment struct {
	text    string // literal value, after quote removal
	glob    string // same characters, but with quoted runs glob-escaped
	quoted  bool
	bound   bool // force a field break right after this segment (used by $@)

	// fromExpansion is true only for text produced by parameter,
	// command, or arithmetic expansion. Only such text is ever
	// IFS-split when unquoted (spec.md §3: the split-marker only
	// brackets "the result of an unquoted command substitution or
	// parameter expansion"); literal source text never is, regardless
	// of IFS content.
	fromExpansion bool
}

// Literal expands w to a single string with no field splitting or
// globbing, for contexts where the result is used as one unit: a
// variable assignment's RHS, a heredoc delimiter, a case pattern word,
// redirection targets, etc.
func Literal(cfg *Config, w ast.Word) (string, error) {
	segs, err := expandParts(cfg, w.Parts, false)
	if err != nil {
		return "", err
	}
	if len(segs) > 0 {
		if lit, ok := segs[0].tildeCandidate(); ok {
			segs[0].text = expandTilde(cfg, lit)
		}
	}
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.text)
	}
	return sb.String(), nil
}

// Pattern expands w into a single string meant to be compiled as a
// glob/case pattern: like Literal, but metacharacters contributed by a
// quoted segment are escaped so they match literally (spec.md §4.C.6's
// quoting-guards-globbing rule, e.g. `case` arms and `${x#pat}`).
func Pattern(cfg *Config, w ast.Word) (string, error) {
	segs, err := expandParts(cfg, w.Parts, false)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.glob)
	}
	return sb.String(), nil
}

// Fields expands w into the list of argv-style words it produces after
// tilde/parameter/command/arithmetic expansion, IFS splitting, and
// pathname expansion, in that order (spec.md §4.C-§4.D).
func Fields(cfg *Config, words ...ast.Word) ([]string, error) {
	var out []string
	for _, w := range words {
		segs, err := expandParts(cfg, w.Parts, false)
		if err != nil {
			return nil, err
		}
		if len(segs) > 0 {
			if lit, ok := segs[0].tildeCandidate(); ok {
				segs[0].text = expandTilde(cfg, lit)
				segs[0].glob = pattern.QuoteMeta(segs[0].text)
			}
		}
		fields := splitFields(cfg, segs)
		for _, f := range fields {
			names, matched, err := maybeGlob(cfg, f.glob)
			if err != nil {
				return nil, err
			}
			if matched {
				out = append(out, names...)
			} else {
				out = append(out, f.text)
			}
		}
	}
	return out, nil
}

func (s segment) tildeCandidate() (string, bool) {
	if s.quoted || !strings.HasPrefix(s.text, "~") {
		return "", false
	}
	return s.text, true
}

// expandTilde replaces a leading `~` or `~user` run (up to the first
// `/` or end of string) with the corresponding home directory, per
// spec.md §4.C.1. It is a no-op if cfg.HomeDir is nil or the lookup
// fails, leaving the `~...` text untouched.
func expandTilde(cfg *Config, s string) string {
	if cfg.HomeDir == nil || !strings.HasPrefix(s, "~") {
		return s
	}
	rest := s[1:]
	user := rest
	tail := ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		user = rest[:i]
		tail = rest[i:]
	}
	home, ok := cfg.HomeDir(user)
	if !ok {
		return s
	}
	return home + tail
}

// expandParts walks a Word's parts into a flat segment list. quotedCtx
// is true while expanding the parts of a double-quoted string.
func expandParts(cfg *Config, parts []ast.WordPart, quotedCtx bool) ([]segment, error) {
	var segs []segment
	for _, p := range parts {
		switch p := p.(type) {
		case *ast.Lit:
			q := quotedCtx || p.Quoted
			segs = append(segs, segment{text: p.Value, glob: globText(p.Value, q), quoted: q})
		case *ast.SglQuoted:
			segs = append(segs, segment{text: p.Value, glob: pattern.QuoteMeta(p.Value), quoted: true})
		case *ast.DblQuoted:
			inner, err := expandParts(cfg, p.Parts, true)
			if err != nil {
				return nil, err
			}
			segs = append(segs, inner...)
		case *ast.ParamExp:
			more, err := expandParam(cfg, p, quotedCtx)
			if err != nil {
				return nil, err
			}
			segs = append(segs, more...)
		case *ast.CmdSubst:
			out, err := cfg.CmdSubst(p.Stmts)
			if err != nil {
				return nil, err
			}
			out = strings.TrimRight(out, "\n")
			q := quotedCtx || p.InDouble
			segs = append(segs, segment{text: out, glob: globText(out, q), quoted: q, fromExpansion: true})
		case *ast.ArithmExp:
			n, err := Arith(cfg, p.X)
			if err != nil {
				if !errors.Is(err, errDivByZero) {
					return nil, err
				}
				n = 0
			}
			v := strconv.FormatInt(n, 10)
			q := quotedCtx || p.InDouble
			segs = append(segs, segment{text: v, glob: globText(v, q), quoted: q, fromExpansion: true})
		}
	}
	return segs, nil
}

func globText(s string, quoted bool) string {
	if quoted {
		return pattern.QuoteMeta(s)
	}
	return s
}

// expandParam resolves one ParamExp part. $@ fans out into one segment
// per positional parameter, each force-bounded so it becomes its own
// field even when quoted ("$@"); every other parameter yields exactly
// one segment.
func expandParam(cfg *Config, pe *ast.ParamExp, quotedCtx bool) ([]segment, error) {
	q := quotedCtx || pe.InDouble
	wordString := func(w ast.Word) (string, bool, error) {
		s, err := Literal(cfg, w)
		return s, true, err
	}

	if pe.Param == "@" && pe.Exp == nil && !pe.Length {
		pos := cfg.Env.Positional()
		if len(pos) == 0 {
			if q {
				return nil, nil
			}
			return []segment{{text: "", glob: "", fromExpansion: true}}, nil
		}
		segs := make([]segment, len(pos))
		for i, v := range pos {
			// Each positional parameter is its own field, quoted or not:
			// without a forced break here, an unquoted "$@" would let one
			// parameter's trailing text run into the next's leading text
			// before IFS splitting ever sees a separator between them.
			segs[i] = segment{text: v, glob: globText(v, q), quoted: q, bound: i < len(pos)-1, fromExpansion: true}
		}
		return segs, nil
	}

	val, _, err := expandParamExp(cfg, pe, func(w ast.Word) (string, error) {
		s, _, err := wordString(w)
		return s, err
	})
	if err != nil {
		return nil, err
	}
	return []segment{{text: val, glob: globText(val, q), quoted: q, fromExpansion: true}}, nil
}

type field struct {
	text string
	glob string
}

// splitFields applies IFS word splitting to a segment list (spec.md
// §4.C.5): quoted segments are never split; runs of IFS whitespace
// between unquoted segments collapse without producing empty fields,
// while a non-whitespace IFS character always introduces a field
// break, even when adjacent fields are empty.
func splitFields(cfg *Config, segs []segment) []field {
	ifs := cfg.IFS
	isSep := func(r rune) bool { return strings.ContainsRune(ifs, r) }
	isWhite := func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }

	var fields []field
	var text, glob strings.Builder
	forced := false

	flush := func() {
		if text.Len() > 0 || forced {
			fields = append(fields, field{text: text.String(), glob: glob.String()})
		}
		text.Reset()
		glob.Reset()
		forced = false
	}

	for _, seg := range segs {
		if seg.quoted {
			text.WriteString(seg.text)
			glob.WriteString(seg.glob)
			forced = true
		} else if !seg.fromExpansion {
			// Literal source text is never split-eligible, regardless of
			// IFS: `IFS=":"; echo a:b:c` is one field. Only text that came
			// from an expansion can ever introduce a field break.
			text.WriteString(seg.text)
			glob.WriteString(seg.glob)
		} else {
			// An unquoted segment's glob form is identical to its text
			// form (escaping only ever applies to quoted segments), so
			// both builders advance together rune for rune.
			runes := []rune(seg.text)
			i := 0
			for i < len(runes) {
				r := runes[i]
				if isSep(r) {
					if isWhite(r) {
						for i < len(runes) && isSep(runes[i]) && isWhite(runes[i]) {
							i++
						}
						flush()
						continue
					}
					forced = true
					flush()
					i++
					continue
				}
				text.WriteRune(r)
				glob.WriteRune(r)
				i++
			}
		}
		if seg.bound {
			flush()
		}
	}
	flush()
	return fields
}

// hasUnescapedMeta reports whether s (a field's glob-escaped form,
// where a quoted segment's metacharacters were backslash-escaped by
// pattern.QuoteMeta) contains a wildcard that is still "live": a
// backslash always protects exactly the byte after it, so a fully
// quoted pattern like `\*.go` must never reach cfg.Glob at all, even if
// a file literally named "*.go" happens to exist.
func hasUnescapedMeta(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// maybeGlob expands a glob pattern field into matching pathnames. It
// reports matched=false (caller should keep the literal value) when
// globbing is disabled, the field has no metacharacters, or nothing
// matches — spec.md §4.C.6's "no match: keep the pattern" default.
func maybeGlob(cfg *Config, globPat string) ([]string, bool, error) {
	if cfg.NoGlob || cfg.Glob == nil || !hasUnescapedMeta(globPat) {
		return nil, false, nil
	}
	dir, base := path.Split(globPat)
	names, err := cfg.Glob(dir, base)
	if err != nil || len(names) == 0 {
		return nil, false, nil
	}
	if dir != "" {
		for i, n := range names {
			names[i] = dir + n
		}
	}
	return names, true, nil
}
