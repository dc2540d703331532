// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package expand implements spec.md's expansion pipeline (component C):
// tilde, command substitution, arithmetic, parameter expansion, IFS
// splitting, quote removal, and pathname expansion, applied to an
// ast.Word in that order.
package expand

import "github.com/kshku/hash/ast"

// Environ is the variable-store surface the expander needs. The
// interpreter's store implements it; expand never holds variables
// itself, the same separation the teacher draws between expand.Environ
// and interp's own environment (interp/vars.go).
type Environ interface {
	Get(name string) (value string, isSet bool)
	Set(name, value string) error
	Positional() []string
	// Special looks up a one-character special parameter: ? $ ! # - 0.
	Special(name byte) (value string, isSet bool)
}

// Config bundles an Environ with the callbacks expansion needs from the
// interpreter: running a command substitution's statement list and
// resolving a glob pattern against the filesystem.
type Config struct {
	Env Environ

	// IFS is the current field-splitting separator set; callers read it
	// fresh from Env before each expansion, since a script can reassign
	// IFS between words.
	IFS string

	// NoGlob disables pathname expansion (`set -f`).
	NoGlob bool

	// NoUnset makes a bare reference to an unset variable an error
	// (`set -u`), per spec.md §4.G.
	NoUnset bool

	// CmdSubst runs stmts in a subshell and returns its trimmed stdout.
	CmdSubst func(stmts []*ast.Stmt) (string, error)

	// Glob lists the names in dir matching pattern, a glob for a single
	// path segment. dir is "" for the current directory of a relative
	// pattern segment. Glob returns the names sorted lexically; the
	// caller does not quote or re-sort them.
	Glob func(dir, pattern string) ([]string, error)

	// HomeDir resolves `~`/`~user` for tilde expansion. user == "" asks
	// for the invoking user's own home directory.
	HomeDir func(user string) (string, bool)
}
