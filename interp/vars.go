// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package interp implements spec.md's execution side: the Variable
// Store (A), Redirection Planner (E), Script Interpreter (G), Executor
// (H), Job Control (I), Trap Engine (J), and Builtins (K). Parsing
// (components B/F) lives in package parser; expansion (component C)
// lives in package expand.
package interp

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// variable is one named shell variable and its attributes.
type variable struct {
	value    string
	exported bool
	readonly bool
}

// Store is the variable store (spec.md component A): named variables
// plus the positional parameter list and special parameters, with
// export/readonly attribute tracking. It implements expand.Environ so
// package expand can read and (for arithmetic/`:=`) write through it.
type Store struct {
	vars  map[string]*variable
	pos   []string
	name0 string // $0
	pid   int    // $$
	lastBg string // $! : PID of the most recently started background job
	lastStatus int // $?
	optFlags string // $- : currently active single-letter options
}

// NewStore creates a Store seeded from the process environment, the
// way a freshly started shell inherits its parent's environment
// (spec.md §4.A).
func NewStore(environ []string, args []string) *Store {
	s := &Store{vars: make(map[string]*variable), pid: os.Getpid()}
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			s.vars[kv[:i]] = &variable{value: kv[i+1:], exported: true}
		}
	}
	if len(args) > 0 {
		s.name0 = args[0]
		s.pos = append([]string(nil), args[1:]...)
	}
	return s
}

func (s *Store) Get(name string) (string, bool) {
	v, ok := s.vars[name]
	if !ok {
		return "", false
	}
	return v.value, true
}

func (s *Store) Set(name, value string) error {
	v, ok := s.vars[name]
	if ok && v.readonly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	if !ok {
		v = &variable{}
		s.vars[name] = v
	}
	v.value = value
	return nil
}

// SetExported is Set plus marking the variable for export to child
// processes, the way `export NAME=value` does in one step.
func (s *Store) SetExported(name, value string) error {
	if err := s.Set(name, value); err != nil {
		return err
	}
	s.vars[name].exported = true
	return nil
}

func (s *Store) Export(name string) error {
	v, ok := s.vars[name]
	if !ok {
		v = &variable{}
		s.vars[name] = v
	}
	v.exported = true
	return nil
}

func (s *Store) Readonly(name string) error {
	v, ok := s.vars[name]
	if !ok {
		v = &variable{}
		s.vars[name] = v
	}
	v.readonly = true
	return nil
}

func (s *Store) IsReadonly(name string) bool {
	v, ok := s.vars[name]
	return ok && v.readonly
}

func (s *Store) Unset(name string) error {
	if v, ok := s.vars[name]; ok && v.readonly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	delete(s.vars, name)
	return nil
}

func (s *Store) Positional() []string { return s.pos }

func (s *Store) SetPositional(args []string) { s.pos = append([]string(nil), args...) }

func (s *Store) ShiftPositional(n int) error {
	if n > len(s.pos) {
		return fmt.Errorf("shift count must be <= %d", len(s.pos))
	}
	s.pos = s.pos[n:]
	return nil
}

// Special resolves a one-byte special parameter.
func (s *Store) Special(name byte) (string, bool) {
	switch name {
	case '?':
		return fmt.Sprintf("%d", s.lastStatus), true
	case '$':
		return fmt.Sprintf("%d", s.pid), true
	case '!':
		return s.lastBg, s.lastBg != ""
	case '-':
		return s.optFlags, true
	case '0':
		return s.name0, s.name0 != ""
	}
	return "", false
}

func (s *Store) SetLastStatus(code int) { s.lastStatus = code }
func (s *Store) LastStatus() int        { return s.lastStatus }
func (s *Store) SetLastBgPID(pid int)   { s.lastBg = fmt.Sprintf("%d", pid) }
func (s *Store) SetOptFlags(f string)   { s.optFlags = f }

// Environ returns the strings []string form (NAME=value pairs) for
// every exported variable, suitable for exec.Cmd.Env.
func (s *Store) Environ() []string {
	out := make([]string, 0, len(s.vars))
	for name, v := range s.vars {
		if v.exported {
			out = append(out, name+"="+v.value)
		}
	}
	sort.Strings(out)
	return out
}

// Names returns every variable name currently set, sorted, for the
// listing output of `export` and `readonly` with no arguments.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.vars))
	for name := range s.vars {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Store) IsExported(name string) bool {
	v, ok := s.vars[name]
	return ok && v.exported
}

// Clone makes an independent copy of s for a subshell or command
// substitution: the child can mutate and unset variables freely
// without the parent ever seeing it (spec.md §4.H's subshell
// isolation).
func (s *Store) Clone() *Store {
	ns := &Store{
		vars:       make(map[string]*variable, len(s.vars)),
		pos:        append([]string(nil), s.pos...),
		name0:      s.name0,
		pid:        s.pid,
		lastBg:     s.lastBg,
		lastStatus: s.lastStatus,
		optFlags:   s.optFlags,
	}
	for name, v := range s.vars {
		cp := *v
		ns.vars[name] = &cp
	}
	return ns
}
