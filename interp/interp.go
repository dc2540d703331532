// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/expand"
)

// ExitStatus is returned by Runner.Run when the script (or an `exit`
// builtin) finished with a nonzero status, mirroring the teacher's
// interp.ExitStatus/errors.As pattern so cmd/hash can recover the code
// without inspecting error text.
type ExitStatus uint8

func (e ExitStatus) Error() string { return fmt.Sprintf("exit status %d", uint8(e)) }

// Options, per spec.md §4.G's `set` flags.
type options struct {
	errexit    bool // -e
	nounset    bool // -u
	xtrace     bool // -x
	noclobber  bool // -C
	verbose    bool // -v
	allexport  bool // -a
	noglob     bool // -f
	monitor    bool // -m, job control / terminal handoff
	noexec     bool // -n
}

// Runner interprets a parsed program. It holds no state between
// top-level Run calls except what spec.md's components define
// (variables, functions, traps, jobs) — the same shape as the
// teacher's interp.Runner, built via functional options.
type Runner struct {
	Store *Store

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Dir    string

	Interactive bool
	Params      []string

	opts options

	funcs   map[string]*ast.FuncDecl
	aliases map[string]string
	expAliases map[string]bool // allocated for every Runner; nothing reads it

	traps    map[string]string // signal name (or "EXIT") -> command
	inTrap   bool

	jobs *jobTable

	// cmdHash caches name -> resolved absolute path lookups, backing
	// the `hash` builtin. hashPath is the PATH value the cache was
	// built against; lookPath discards the whole cache the first time
	// it notices PATH has changed since, rather than tracking individual
	// invalidations.
	cmdHash  map[string]string
	hashPath string

	// lastPipeStatuses is PIPESTATUS-equivalent bookkeeping kept for the
	// benefit of a future `$PIPESTATUS` builtin; not yet exposed.
	lastPipeStatuses []int

	// exited is set once an `exit` builtin has actually unwound to the
	// top of Run, as opposed to the top-level statement list merely
	// finishing with a nonzero status. cmd/hash's REPL uses this to
	// decide whether a failing line should end the session.
	exited bool

	// execKeepRedirects is set by the no-argument form of the exec
	// builtin to tell execStmtSync not to restore the previous
	// Stdin/Stdout/Stderr once the statement finishes, so a bare
	// `exec > file` redirects the rest of the session permanently.
	execKeepRedirects bool
}

// Exited reports whether the most recent Run call ended because an
// `exit` builtin was invoked, rather than merely returning a nonzero
// status from its last command.
func (r *Runner) Exited() bool {
	return r.exited
}

// Option configures a Runner, following the teacher's interp.New /
// interp.Option functional-options shape (interp/interp.go).
type Option func(*Runner) error

func Interactive(v bool) Option {
	return func(r *Runner) error {
		r.Interactive = v
		r.opts.monitor = v // -m defaults on for interactive shells
		return nil
	}
}

func Dir(dir string) Option {
	return func(r *Runner) error { r.Dir = dir; return nil }
}

func StdIO(in io.Reader, out, errw io.Writer) Option {
	return func(r *Runner) error {
		r.Stdin, r.Stdout, r.Stderr = in, out, errw
		return nil
	}
}

func Params(args ...string) Option {
	return func(r *Runner) error { r.Params = args; return nil }
}

// New builds a ready-to-run Runner, seeded from the OS environment.
// $0/positional parameters come from the Params option (defaulting to
// a bare "hash" with no arguments), not the host process's own argv:
// Params is applied after every Option has run, so a caller that wants
// hash -c STRING ARGS... to see ARGS as $1, $2... (rather than the
// flag package's own os.Args) must route them through Params.
func New(opts ...Option) (*Runner, error) {
	r := &Runner{
		Store:   NewStore(os.Environ(), nil),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Params:  []string{"hash"},
		funcs:   make(map[string]*ast.FuncDecl),
		aliases: make(map[string]string),
		expAliases: make(map[string]bool),
		traps:   make(map[string]string),
		jobs:    newJobTable(),
	}
	if wd, err := os.Getwd(); err == nil {
		r.Dir = wd
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if len(r.Params) == 0 {
		r.Params = []string{"hash"}
	}
	r.Store.name0 = r.Params[0]
	r.Store.pos = append([]string(nil), r.Params[1:]...)
	return r, nil
}

// Run executes file's top-level statement list to completion (or until
// an `exit`), returning an ExitStatus error when the final
// status was nonzero, per spec.md §4.G/§7.
func (r *Runner) Run(ctx context.Context, file *ast.File) error {
	err := r.runStmts(ctx, file.Stmts)
	status := r.Store.LastStatus()
	var ex exitSignal
	if errors.As(err, &ex) {
		status = int(ex)
		err = nil
		r.exited = true
	} else if err != nil {
		status = 1
	}
	if err == nil {
		if code := r.runExitTrap(ctx); code >= 0 {
			status = code
		}
	}
	r.Store.SetLastStatus(status)
	if err != nil {
		return err
	}
	if status != 0 {
		return ExitStatus(status)
	}
	return nil
}

func (r *Runner) runExitTrap(ctx context.Context) int {
	cmd, ok := r.traps["EXIT"]
	if !ok {
		return -1
	}
	return r.runTrapCommand(ctx, cmd)
}

// expandConfig builds the expand.Config this Runner currently presents
// to package expand: its Store as the Environ, plus callbacks for
// command substitution and globbing that re-enter the Runner itself.
func (r *Runner) expandConfig() *expand.Config {
	ifs, ok := r.Store.Get("IFS")
	if !ok {
		ifs = " \t\n"
	}
	return &expand.Config{
		Env:     r.Store,
		IFS:     ifs,
		NoGlob:  r.opts.noglob,
		NoUnset: r.opts.nounset,
		CmdSubst: func(stmts []*ast.Stmt) (string, error) {
			return r.captureOutput(context.Background(), stmts)
		},
		Glob:    r.globDir,
		HomeDir: r.homeDir,
	}
}
