// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	osuser "os/user"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/expand"
	"github.com/kshku/hash/parser"
	"github.com/kshku/hash/pattern"
	"github.com/kshku/hash/token"
)

// runStmts runs a statement list to completion, checking `set -e`
// after each one: a failing command anywhere in the list (other than
// the right-hand side of `&&`/`||` or a condition list, which never
// reach here — see runCond) aborts the whole script.
func (r *Runner) runStmts(ctx context.Context, stmts []*ast.Stmt) error {
	for _, st := range stmts {
		if err := r.runStmt(ctx, st); err != nil {
			return err
		}
		if r.opts.errexit && r.Store.LastStatus() != 0 {
			return exitSignal(r.Store.LastStatus())
		}
	}
	return nil
}

// runCond runs a condition list (an `if`/`while`/`until` test) without
// the errexit check: POSIX exempts these from `set -e`.
func (r *Runner) runCond(ctx context.Context, stmts []*ast.Stmt) error {
	for _, st := range stmts {
		if err := r.runStmt(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// runStmt runs one statement, diverting it to the background job
// table instead of waiting on it when it ends in `&`.
func (r *Runner) runStmt(ctx context.Context, st *ast.Stmt) error {
	if r.opts.noexec {
		return nil
	}
	if st.Background {
		r.startBackground(ctx, st)
		return nil
	}
	return r.execStmtSync(ctx, st)
}

// execStmtSync applies st's redirections and assignments, executes its
// command, and applies a leading `!` to the resulting status.
func (r *Runner) execStmtSync(ctx context.Context, st *ast.Stmt) error {
	rs, err := r.applyRedirects(st.Redirs)
	if err != nil {
		fmt.Fprintln(r.Stderr, "hash: "+err.Error())
		r.Store.SetLastStatus(1)
		return nil
	}

	oldIn, oldOut, oldErr := r.Stdin, r.Stdout, r.Stderr
	r.Stdin, r.Stdout, r.Stderr = rs.stdin, rs.stdout, rs.stderr
	defer func() {
		// exec with no command keeps these redirections for the rest of
		// the session instead of restoring the old streams (spec.md
		// §4.H): biExec sets the flag, and consumes it here so it only
		// ever applies to the one exec statement that requested it.
		if r.execKeepRedirects {
			r.execKeepRedirects = false
			return
		}
		r.Stdin, r.Stdout, r.Stderr = oldIn, oldOut, oldErr
		rs.Close()
	}()

	if ce, ok := st.Cmd.(*ast.CallExpr); ok && len(ce.Args) == 0 {
		if err := r.runBareAssigns(st.Assigns); err != nil {
			fmt.Fprintln(r.Stderr, "hash: "+err.Error())
			r.Store.SetLastStatus(1)
			return nil
		}
		r.Store.SetLastStatus(0)
		r.applyNegation(st)
		return nil
	}

	err = r.dispatch(ctx, st)
	r.applyNegation(st)
	return err
}

func (r *Runner) applyNegation(st *ast.Stmt) {
	if !st.Negated {
		return
	}
	if r.Store.LastStatus() == 0 {
		r.Store.SetLastStatus(1)
	} else {
		r.Store.SetLastStatus(0)
	}
}

// runBareAssigns persists a command-less assignment list (`X=1 Y=2`)
// straight into the store, the way the teacher's interp handles a
// CallExpr with no words.
func (r *Runner) runBareAssigns(assigns []*ast.Assign) error {
	for _, a := range assigns {
		val, err := r.assignValue(a)
		if err != nil {
			return err
		}
		if err := r.Store.Set(a.Name, val); err != nil {
			return err
		}
		if r.opts.allexport {
			r.Store.Export(a.Name)
		}
	}
	return nil
}

func (r *Runner) assignValue(a *ast.Assign) (string, error) {
	if a.Naked {
		return "", nil
	}
	return expand.Literal(r.expandConfig(), a.Value)
}

// withTempAssigns sets assigns in the store for the duration of fn
// only, restoring whatever was there before — the `FOO=bar cmd`
// prefix-assignment form, scoped to a single simple command.
func (r *Runner) withTempAssigns(assigns []*ast.Assign, fn func() error) error {
	if len(assigns) == 0 {
		return fn()
	}
	type saved struct {
		name string
		had  bool
		val  string
	}
	saves := make([]saved, 0, len(assigns))
	for _, a := range assigns {
		val, err := r.assignValue(a)
		if err != nil {
			return err
		}
		old, had := r.Store.Get(a.Name)
		saves = append(saves, saved{a.Name, had, old})
		if err := r.Store.Set(a.Name, val); err != nil {
			return err
		}
	}
	err := fn()
	for _, s := range saves {
		if s.had {
			r.Store.Set(s.name, s.val)
		} else {
			r.Store.Unset(s.name)
		}
	}
	return err
}

// dispatch runs st's command node, assuming redirections/assignments
// have already been applied by execStmtSync.
func (r *Runner) dispatch(ctx context.Context, st *ast.Stmt) error {
	switch c := st.Cmd.(type) {
	case *ast.CallExpr:
		return r.runCallExpr(ctx, c, st.Assigns)
	case *ast.BinaryCmd:
		switch c.Op {
		case token.LAND:
			if err := r.runStmt(ctx, c.X); err != nil {
				return err
			}
			if r.Store.LastStatus() == 0 {
				return r.runStmt(ctx, c.Y)
			}
			return nil
		case token.LOR:
			if err := r.runStmt(ctx, c.X); err != nil {
				return err
			}
			if r.Store.LastStatus() != 0 {
				return r.runStmt(ctx, c.Y)
			}
			return nil
		case token.OR:
			return r.runPipeline(ctx, st)
		}
		return fmt.Errorf("interp: unknown binary command operator %v", c.Op)
	case *ast.Block:
		return r.runStmts(ctx, c.Stmts)
	case *ast.Subshell:
		return r.runSubshell(ctx, c.Stmts)
	case *ast.IfClause:
		return r.runIf(ctx, c)
	case *ast.WhileClause:
		return r.runWhile(ctx, c)
	case *ast.ForClause:
		return r.runFor(ctx, c)
	case *ast.CaseClause:
		return r.runCase(ctx, c)
	case *ast.FuncDecl:
		r.funcs[c.Name] = c
		r.Store.SetLastStatus(0)
		return nil
	case *ast.ArithmCmd:
		n, err := expand.Arith(r.expandConfig(), c.X)
		if err != nil {
			fmt.Fprintln(r.Stderr, "hash: "+err.Error())
			r.Store.SetLastStatus(1)
			return nil
		}
		if n == 0 {
			r.Store.SetLastStatus(1)
		} else {
			r.Store.SetLastStatus(0)
		}
		return nil
	}
	return fmt.Errorf("interp: unhandled command %T", st.Cmd)
}

// runCallExpr expands a simple command's words and dispatches to a
// function, a builtin, or an external program, in that precedence
// order (spec.md §4.H).
func (r *Runner) runCallExpr(ctx context.Context, ce *ast.CallExpr, assigns []*ast.Assign) error {
	return r.withTempAssigns(assigns, func() error {
		cfg := r.expandConfig()
		argv, err := expand.Fields(cfg, ce.Args...)
		if err != nil {
			fmt.Fprintln(r.Stderr, "hash: "+err.Error())
			r.Store.SetLastStatus(1)
			return nil
		}
		if len(argv) == 0 {
			r.Store.SetLastStatus(0)
			return nil
		}
		if r.opts.xtrace {
			fmt.Fprintln(r.Stderr, "+ "+strings.Join(argv, " "))
		}
		name := argv[0]
		if fd, ok := r.funcs[name]; ok {
			return r.callFunc(ctx, fd, argv[1:])
		}
		if bi, ok := builtins[name]; ok {
			return bi(r, ctx, argv[1:])
		}
		return r.execExternal(ctx, argv)
	})
}

// callFunc runs a function body with argv rebound as "$1 $2 ...",
// catching a `return` that unwinds only as far as this call.
func (r *Runner) callFunc(ctx context.Context, fd *ast.FuncDecl, args []string) error {
	oldPos := r.Store.Positional()
	r.Store.SetPositional(args)
	defer r.Store.SetPositional(oldPos)

	err := r.runStmt(ctx, fd.Body)
	var ret returnSignal
	if errors.As(err, &ret) {
		r.Store.SetLastStatus(int(ret))
		return nil
	}
	return err
}

// execExternal runs argv[0] as an external program, per spec.md
// component H: a failed lookup is a 127 status, not a Go error, so a
// script's own `||`/`if` can react to it.
func (r *Runner) execExternal(ctx context.Context, argv []string) error {
	path, err := lookPath(r, argv[0])
	if err != nil {
		fmt.Fprintf(r.Stderr, "hash: %s: command not found\n", argv[0])
		r.Store.SetLastStatus(127)
		return nil
	}
	cmd := exec.CommandContext(ctx, path, argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = r.Stdin, r.Stdout, r.Stderr
	cmd.Dir = r.Dir
	cmd.Env = r.Store.Environ()
	setpgid(cmd)

	status := 0
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		switch {
		case errors.As(err, &ee):
			if sig, ok := signaledExitStatus(ee); ok {
				status = sig
			} else {
				status = ee.ExitCode()
			}
		case errors.Is(err, exec.ErrNotFound), os.IsNotExist(err):
			fmt.Fprintf(r.Stderr, "hash: %s: not found\n", argv[0])
			status = 127
		default:
			fmt.Fprintln(r.Stderr, "hash: "+err.Error())
			status = 126
		}
	}
	r.Store.SetLastStatus(status)
	return nil
}

// lookPath resolves name to an absolute path, searching r's own PATH
// variable rather than the host process's environment (a script that
// reassigns PATH must see that take effect immediately), and consults
// and updates r's command hash table along the way (spec.md's "update
// the command hash table on success"). A name containing a slash is
// never cached: POSIX only hashes bare command names found via a PATH
// search.
func lookPath(r *Runner, name string) (string, error) {
	if strings.ContainsRune(name, '/') {
		if st, err := os.Stat(name); err == nil && !st.IsDir() {
			return name, nil
		}
		return "", exec.ErrNotFound
	}
	path, _ := r.Store.Get("PATH")
	if r.hashPath != path {
		r.cmdHash = nil
		r.hashPath = path
	}
	if p, ok := r.cmdHash[name]; ok {
		if st, err := os.Stat(p); err == nil && !st.IsDir() && isExecutable(st) {
			return p, nil
		}
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		st, err := os.Stat(candidate)
		if err != nil || st.IsDir() || !isExecutable(st) {
			continue
		}
		if r.cmdHash == nil {
			r.cmdHash = make(map[string]string)
		}
		r.cmdHash[name] = candidate
		return candidate, nil
	}
	return "", exec.ErrNotFound
}

func isExecutable(st os.FileInfo) bool {
	return st.Mode()&0111 != 0
}

// flattenPipeline turns the left-leaning `BinaryCmd{Op: token.OR}` tree
// parser/stmt.go builds for `a | b | c` back into the ordered stage
// list spec.md §3 calls a Pipeline.
func flattenPipeline(st *ast.Stmt) []*ast.Stmt {
	bc, ok := st.Cmd.(*ast.BinaryCmd)
	if !ok || bc.Op != token.OR {
		return []*ast.Stmt{st}
	}
	return append(flattenPipeline(bc.X), bc.Y)
}

// runPipeline wires every stage's stdout to the next stage's stdin
// through an os.Pipe and runs all stages concurrently via an
// errgroup, so a stage that never reads its input can't deadlock a
// producer further up the chain — the same "fork everything first"
// shape the teacher's interp uses for pipelines.
//
// Each stage executes against a shallow copy of the Runner sharing the
// same variable Store, rather than a forked subshell: a builtin or
// function on the left of a pipe can therefore observe variables set
// by a later stage's sibling statements once the pipeline returns, a
// simplification from POSIX's full subshell-per-stage semantics that
// this interpreter accepts in exchange for not needing a process-level
// fork.
func (r *Runner) runPipeline(ctx context.Context, st *ast.Stmt) error {
	stages := flattenPipeline(st)
	n := len(stages)

	readers := make([]io.Reader, n)
	writers := make([]io.Writer, n)
	readers[0] = r.Stdin
	writers[n-1] = r.Stdout
	var closers []io.Closer
	for i := 0; i < n-1; i++ {
		pr, pw, err := os.Pipe()
		if err != nil {
			return err
		}
		writers[i] = pw
		readers[i+1] = pr
		closers = append(closers, pr, pw)
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	statuses := make([]int, n)
	g, gctx := errgroup.WithContext(ctx)
	for i, stage := range stages {
		i, stage := i, stage
		g.Go(func() error {
			sub := r.forStage(readers[i], writers[i], r.Stderr)
			err := sub.execStmtSync(gctx, stage)
			statuses[i] = sub.Store.LastStatus()
			if i < n-1 {
				if c, ok := writers[i].(io.Closer); ok {
					c.Close()
				}
			}
			if i > 0 {
				if c, ok := readers[i].(io.Closer); ok {
					c.Close()
				}
			}
			return err
		})
	}
	err := g.Wait()
	r.lastPipeStatuses = statuses
	r.Store.SetLastStatus(statuses[n-1])
	return err
}

// forStage returns a shallow copy of r with its own stdio streams, so
// concurrent pipeline stages don't race on the Runner's Stdin/Stdout/
// Stderr fields.
func (r *Runner) forStage(in io.Reader, out, errw io.Writer) *Runner {
	sub := *r
	sub.Stdin, sub.Stdout, sub.Stderr = in, out, errw
	return &sub
}

// runSubshell runs stmts against a Store clone: variable assignments,
// `cd`, and `exit` inside the subshell never escape back to r.
func (r *Runner) runSubshell(ctx context.Context, stmts []*ast.Stmt) error {
	sub := &Runner{
		Store:       r.Store.Clone(),
		Stdin:       r.Stdin,
		Stdout:      r.Stdout,
		Stderr:      r.Stderr,
		Dir:         r.Dir,
		Interactive: false,
		Params:      r.Params,
		opts:        r.opts,
		funcs:       r.funcs,
		aliases:     r.aliases,
		expAliases:  make(map[string]bool),
		traps:       make(map[string]string),
		jobs:        newJobTable(),
	}
	err := sub.runStmts(ctx, stmts)
	status := sub.Store.LastStatus()
	var ex exitSignal
	if errors.As(err, &ex) {
		status = int(ex)
		err = nil
	}
	r.Store.SetLastStatus(status)
	return err
}

// soloExternalCallExpr reports whether st is a single, unnegated
// command call, the shape startBackground needs to spawn a real OS
// process (and so track a genuine PID in the job table) rather than
// approximating the background job with a goroutine.
func soloExternalCallExpr(st *ast.Stmt) (*ast.CallExpr, bool) {
	if st.Negated {
		return nil, false
	}
	ce, ok := st.Cmd.(*ast.CallExpr)
	if !ok || len(ce.Args) == 0 {
		return nil, false
	}
	return ce, true
}

// startBackground runs st without waiting for it, recording it in the
// job table (spec.md component I) and setting `$!`. A solo external
// command is spawned as a real child process (so fg/wait/kill act on
// an actual PID); anything else — a builtin, a function, a pipeline, a
// compound command — is approximated by running it on a goroutine
// against a private Runner view, with a synthetic negative PID.
func (r *Runner) startBackground(ctx context.Context, st *ast.Stmt) {
	if ce, ok := soloExternalCallExpr(st); ok {
		cfg := r.expandConfig()
		argv, err := expand.Fields(cfg, ce.Args...)
		if err == nil && len(argv) > 0 {
			_, isFunc := r.funcs[argv[0]]
			_, isBuiltin := builtins[argv[0]]
			if !isFunc && !isBuiltin {
				if path, err := lookPath(r, argv[0]); err == nil {
					cmd := exec.Command(path, argv[1:]...)
					cmd.Stdin, cmd.Stdout, cmd.Stderr = r.Stdin, r.Stdout, r.Stderr
					cmd.Dir = r.Dir
					cmd.Env = r.Store.Environ()
					setpgid(cmd)
					if err := cmd.Start(); err == nil {
						job := r.jobs.add(cmd.Process, strings.Join(argv, " "))
						r.Store.SetLastBgPID(job.PID)
						r.Store.SetLastStatus(0)
						go func() {
							status := 0
							if err := cmd.Wait(); err != nil {
								var ee *exec.ExitError
								if errors.As(err, &ee) {
									if sig, ok := signaledExitStatus(ee); ok {
										status = sig
									} else {
										status = ee.ExitCode()
									}
								} else {
									status = 127
								}
							}
							r.jobs.finish(job, status)
						}()
						return
					}
				}
			}
		}
	}

	sub := r.forStage(r.Stdin, r.Stdout, r.Stderr)
	job := r.jobs.add(nil, "background job")
	r.Store.SetLastBgPID(job.PID)
	r.Store.SetLastStatus(0)
	go func() {
		st2 := *st
		st2.Background = false
		_ = sub.execStmtSync(ctx, &st2)
		r.jobs.finish(job, sub.Store.LastStatus())
	}()
}

// captureOutput runs stmts in a subshell with stdout captured to a
// buffer, for `$(...)`/`` `...` `` command substitution.
func (r *Runner) captureOutput(ctx context.Context, stmts []*ast.Stmt) (string, error) {
	var buf bytes.Buffer
	sub := &Runner{
		Store:      r.Store.Clone(),
		Stdin:      r.Stdin,
		Stdout:     &buf,
		Stderr:     r.Stderr,
		Dir:        r.Dir,
		Params:     r.Params,
		opts:       r.opts,
		funcs:      r.funcs,
		aliases:    r.aliases,
		expAliases: make(map[string]bool),
		traps:      make(map[string]string),
		jobs:       newJobTable(),
	}
	err := sub.runStmts(ctx, stmts)
	var ex exitSignal
	if errors.As(err, &ex) {
		err = nil
	} else if err != nil {
		return buf.String(), err
	}
	return buf.String(), nil
}

// globDir lists dir's entries matching pat, implementing
// expand.Config.Glob against the real filesystem (spec.md §4.C.6): a
// leading dot in a name only matches a pattern that itself starts with
// a literal dot, same as every POSIX shell's globbing.
func (r *Runner) globDir(dir, pat string) ([]string, error) {
	d := dir
	if d == "" {
		d = "."
	}
	entries, err := os.ReadDir(d)
	if err != nil {
		return nil, nil
	}
	re, err := pattern.Compile(pat, pattern.EntireString)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(pat, ".") {
			continue
		}
		if re.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// homeDir resolves `~`/`~user` for expand.Config.HomeDir.
func (r *Runner) homeDir(user string) (string, bool) {
	if user == "" {
		if h, ok := r.Store.Get("HOME"); ok && h != "" {
			return h, true
		}
		if u, err := osuser.Current(); err == nil {
			return u.HomeDir, true
		}
		return "", false
	}
	u, err := osuser.Lookup(user)
	if err != nil {
		return "", false
	}
	return u.HomeDir, true
}

// parseString re-parses a command string, for `eval`, `trap`, and
// `source`'s in-memory (non-file) uses.
func (r *Runner) parseString(src string) (*ast.File, error) {
	return parser.NewParser().Parse(src, "")
}
