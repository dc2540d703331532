// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// builtinFunc is one builtin's implementation. A returned error is
// always a control-flow sentinel (exit/return/break/continue); an
// ordinary failure is reported on Stderr and recorded as a nonzero
// status via r.Store.SetLastStatus, exactly like an external command.
type builtinFunc func(r *Runner, ctx context.Context, args []string) error

// builtins is the Builtins table (spec.md component K): special forms
// that must run in the current shell process rather than a forked one
// (cd, exit, export, ...), plus the handful POSIX expects every shell
// to ship even though they could in principle be external programs
// (true, false, echo, test).
var builtins = map[string]builtinFunc{
	"cd":       biCd,
	"pwd":      biPwd,
	"echo":     biEcho,
	"exit":     biExit,
	":":        biTrue,
	"true":     biTrue,
	"false":    biFalse,
	"export":   biExport,
	"readonly": biReadonly,
	"unset":    biUnset,
	"set":      biSet,
	"shift":    biShift,
	"return":   biReturn,
	"break":    biBreak,
	"continue": biContinue,
	"trap":     biTrap,
	"read":     biRead,
	"test":     biTest,
	"[":        biTestBracket,
	"[[":       biTestDoubleBracket,
	".":        biSource,
	"source":   biSource,
	"eval":     biEval,
	"type":     biType,
	"command":  biCommand,
	"hash":     biHash,
	"jobs":     biJobs,
	"fg":       biFg,
	"bg":       biBg,
	"wait":     biWait,
	"kill":     biKill,
	"alias":    biAlias,
	"unalias":  biUnalias,
	"exec":     biExec,
	"times":    biTimes,
}

func fail(r *Runner, status int, format string, args ...any) error {
	fmt.Fprintf(r.Stderr, "hash: "+format+"\n", args...)
	r.Store.SetLastStatus(status)
	return nil
}

func ok(r *Runner) error {
	r.Store.SetLastStatus(0)
	return nil
}

func biCd(r *Runner, ctx context.Context, args []string) error {
	var target string
	switch len(args) {
	case 0:
		home, ok := r.Store.Get("HOME")
		if !ok || home == "" {
			return fail(r, 1, "cd: HOME not set")
		}
		target = home
	case 1:
		target = args[0]
		if target == "-" {
			old, ok := r.Store.Get("OLDPWD")
			if !ok {
				return fail(r, 1, "cd: OLDPWD not set")
			}
			target = old
			fmt.Fprintln(r.Stdout, target)
		}
	default:
		return fail(r, 2, "cd: too many arguments")
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(r.Dir, target)
	}
	target = filepath.Clean(target)
	st, err := os.Stat(target)
	if err != nil || !st.IsDir() {
		return fail(r, 1, "cd: %s: No such file or directory", args0(args, target))
	}
	r.Store.Set("OLDPWD", r.Dir)
	r.Dir = target
	r.Store.Set("PWD", target)
	return ok(r)
}

func args0(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}

func biPwd(r *Runner, ctx context.Context, args []string) error {
	fmt.Fprintln(r.Stdout, r.Dir)
	return ok(r)
}

func biEcho(r *Runner, ctx context.Context, args []string) error {
	noNewline := false
	for len(args) > 0 && args[0] == "-n" {
		noNewline = true
		args = args[1:]
	}
	fmt.Fprint(r.Stdout, strings.Join(args, " "))
	if !noNewline {
		fmt.Fprint(r.Stdout, "\n")
	}
	return ok(r)
}

func biExit(r *Runner, ctx context.Context, args []string) error {
	status := r.Store.LastStatus()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fail(r, 2, "exit: %s: numeric argument required", args[0])
		}
		status = n & 0xff
	}
	return exitSignal(status)
}

func biTrue(r *Runner, ctx context.Context, args []string) error  { return ok(r) }
func biFalse(r *Runner, ctx context.Context, args []string) error { r.Store.SetLastStatus(1); return nil }

func biExport(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 {
		for _, name := range r.Store.Names() {
			if r.Store.IsExported(name) {
				v, _ := r.Store.Get(name)
				fmt.Fprintf(r.Stdout, "export %s=%s\n", name, v)
			}
		}
		return ok(r)
	}
	for _, a := range args {
		if i := strings.IndexByte(a, '='); i >= 0 {
			if err := r.Store.SetExported(a[:i], a[i+1:]); err != nil {
				return fail(r, 1, "export: %s", err)
			}
		} else if err := r.Store.Export(a); err != nil {
			return fail(r, 1, "export: %s", err)
		}
	}
	return ok(r)
}

func biReadonly(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 {
		for _, name := range r.Store.Names() {
			if r.Store.IsReadonly(name) {
				v, _ := r.Store.Get(name)
				fmt.Fprintf(r.Stdout, "readonly %s=%s\n", name, v)
			}
		}
		return ok(r)
	}
	for _, a := range args {
		if i := strings.IndexByte(a, '='); i >= 0 {
			if err := r.Store.Set(a[:i], a[i+1:]); err != nil {
				return fail(r, 1, "readonly: %s", err)
			}
			r.Store.Readonly(a[:i])
		} else if err := r.Store.Readonly(a); err != nil {
			return fail(r, 1, "readonly: %s", err)
		}
	}
	return ok(r)
}

func biUnset(r *Runner, ctx context.Context, args []string) error {
	funcMode := false
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case "-f":
			funcMode = true
		case "-v":
			funcMode = false
		default:
			return fail(r, 2, "unset: %s: invalid option", args[0])
		}
		args = args[1:]
	}
	for _, name := range args {
		if funcMode {
			delete(r.funcs, name)
			continue
		}
		if r.Store.IsReadonly(name) {
			return fail(r, 1, "unset: %s: readonly variable", name)
		}
		r.Store.Unset(name)
	}
	return ok(r)
}

// setFlags maps `set -X`/`set +X`'s single-letter options to the
// options struct field they drive, per spec.md §4.G.
var setFlags = map[byte]func(*options, bool){
	'e': func(o *options, v bool) { o.errexit = v },
	'u': func(o *options, v bool) { o.nounset = v },
	'x': func(o *options, v bool) { o.xtrace = v },
	'C': func(o *options, v bool) { o.noclobber = v },
	'v': func(o *options, v bool) { o.verbose = v },
	'a': func(o *options, v bool) { o.allexport = v },
	'f': func(o *options, v bool) { o.noglob = v },
	'm': func(o *options, v bool) { o.monitor = v },
	'n': func(o *options, v bool) { o.noexec = v },
}

var longOptNames = map[string]byte{
	"errexit": 'e', "nounset": 'u', "xtrace": 'x', "noclobber": 'C',
	"verbose": 'v', "allexport": 'a', "noglob": 'f', "monitor": 'm', "noexec": 'n',
}

func biSet(r *Runner, ctx context.Context, args []string) error {
	i := 0
	for i < len(args) {
		a := args[i]
		switch {
		case a == "--":
			i++
			r.Store.SetPositional(args[i:])
			return ok(r)
		case a == "-o" || a == "+o":
			i++
			if i >= len(args) {
				printSetOptions(r)
				return ok(r)
			}
			letter, known := longOptNames[args[i]]
			if !known {
				return fail(r, 2, "set: %s: no such option", args[i])
			}
			setFlags[letter](&r.opts, a == "-o")
			i++
		case len(a) >= 2 && (a[0] == '-' || a[0] == '+'):
			on := a[0] == '-'
			for j := 1; j < len(a); j++ {
				fn, known := setFlags[a[j]]
				if !known {
					return fail(r, 2, "set: -%c: invalid option", a[j])
				}
				fn(&r.opts, on)
			}
			i++
		default:
			r.Store.SetPositional(args[i:])
			return ok(r)
		}
	}
	return ok(r)
}

// printSetOptions implements `set -o`/`set +o` with no option name:
// list every long option name and whether it is currently on, in
// alphabetical order (matching POSIX `set -o`'s plain report form,
// rather than bash's additional `set +o`-re-executable form).
func printSetOptions(r *Runner) {
	names := make([]string, 0, len(longOptNames))
	for name := range longOptNames {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		state := "off"
		if setFlagIsOn(&r.opts, longOptNames[name]) {
			state = "on"
		}
		fmt.Fprintf(r.Stdout, "%-12s%s\n", name, state)
	}
}

func setFlagIsOn(o *options, letter byte) bool {
	switch letter {
	case 'e':
		return o.errexit
	case 'u':
		return o.nounset
	case 'x':
		return o.xtrace
	case 'C':
		return o.noclobber
	case 'v':
		return o.verbose
	case 'a':
		return o.allexport
	case 'f':
		return o.noglob
	case 'm':
		return o.monitor
	case 'n':
		return o.noexec
	}
	return false
}

func biShift(r *Runner, ctx context.Context, args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fail(r, 1, "shift: %s: numeric argument required", args[0])
		}
		n = v
	}
	if err := r.Store.ShiftPositional(n); err != nil {
		return fail(r, 1, "shift: %s", err)
	}
	return ok(r)
}

func biReturn(r *Runner, ctx context.Context, args []string) error {
	status := r.Store.LastStatus()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fail(r, 2, "return: %s: numeric argument required", args[0])
		}
		status = n & 0xff
	}
	return returnSignal(status)
}

func biBreak(r *Runner, ctx context.Context, args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err == nil && v > 0 {
			n = v
		}
	}
	return breakSignal(n)
}

func biContinue(r *Runner, ctx context.Context, args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err == nil && v > 0 {
			n = v
		}
	}
	return continueSignal(n)
}

func biTrap(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 {
		names := make([]string, 0, len(r.traps))
		for name := range r.traps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(r.Stdout, "trap -- %q %s\n", r.traps[name], name)
		}
		return ok(r)
	}
	if args[0] == "-l" {
		names := make([]string, 0, len(trapSignals))
		for name := range trapSignals {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(r.Stdout, strings.Join(names, " "))
		return ok(r)
	}
	action := args[0]
	for _, sig := range args[1:] {
		r.SetTrap(strings.ToUpper(strings.TrimPrefix(sig, "SIG")), action)
	}
	return ok(r)
}

func biRead(r *Runner, ctx context.Context, args []string) error {
	raw := false
	prompt := ""
	i := 0
loop:
	for i < len(args) {
		switch {
		case args[i] == "-r":
			raw = true
			i++
		case args[i] == "-p" && i+1 < len(args):
			prompt = args[i+1]
			i += 2
		default:
			break loop
		}
	}
	names := args[i:]
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	if prompt != "" && r.Interactive {
		fmt.Fprint(r.Stderr, prompt)
	}
	line, err := readLine(r.Stdin, raw)
	if err != nil && line == "" {
		r.Store.SetLastStatus(1)
		return nil
	}
	ifs, has := r.Store.Get("IFS")
	if !has {
		ifs = " \t\n"
	}
	fields := strings.FieldsFunc(line, func(rn rune) bool { return strings.ContainsRune(ifs, rn) })
	for idx, name := range names {
		if idx == len(names)-1 {
			val := ""
			if idx < len(fields) {
				val = strings.Join(fields[idx:], " ")
			}
			r.Store.Set(name, val)
			continue
		}
		val := ""
		if idx < len(fields) {
			val = fields[idx]
		}
		r.Store.Set(name, val)
	}
	return ok(r)
}

// readLine reads one line from in, honoring a trailing backslash as a
// line-continuation escape unless raw is set (the `read -r` form).
func readLine(in io.Reader, raw bool) (string, error) {
	br := bufio.NewReader(in)
	var sb strings.Builder
	for {
		line, err := br.ReadString('\n')
		line = strings.TrimSuffix(line, "\n")
		if !raw && strings.HasSuffix(line, "\\") {
			sb.WriteString(strings.TrimSuffix(line, "\\"))
			if err != nil {
				return sb.String(), err
			}
			continue
		}
		sb.WriteString(line)
		return sb.String(), err
	}
}

func biSource(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fail(r, 2, ".: filename argument required")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fail(r, 1, ".: %s: %s", args[0], err)
	}
	file, err := r.parseString(string(data))
	if err != nil {
		return fail(r, 1, ".: %s: %s", args[0], err)
	}
	if len(args) > 1 {
		old := r.Store.Positional()
		r.Store.SetPositional(args[1:])
		defer r.Store.SetPositional(old)
	}
	return r.runStmts(ctx, file.Stmts)
}

func biEval(r *Runner, ctx context.Context, args []string) error {
	src := strings.Join(args, " ")
	if src == "" {
		return ok(r)
	}
	file, err := r.parseString(src)
	if err != nil {
		return fail(r, 2, "eval: %s", err)
	}
	return r.runStmts(ctx, file.Stmts)
}

// biExec implements the `exec` special builtin (spec.md §4.H). With no
// command argument it only marks the redirections execStmtSync just
// applied as permanent, rather than letting them get restored when the
// statement returns. With a command, it runs that command in the
// current process (a function, builtin, or external program, in the
// usual lookup order) and then unwinds the whole shell with its exit
// status: real exec replaces the shell's process image outright, which
// this interpreter can't do for a function or builtin, so running the
// command and exiting with its status is the closest equivalent for
// every command form.
func biExec(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 {
		r.execKeepRedirects = true
		return ok(r)
	}
	name := args[0]
	var err error
	switch {
	case r.funcs[name] != nil:
		err = r.callFunc(ctx, r.funcs[name], args[1:])
	case builtins[name] != nil:
		err = builtins[name](r, ctx, args[1:])
	default:
		err = r.execExternal(ctx, args)
	}
	if err != nil {
		return err
	}
	return exitSignal(r.Store.LastStatus())
}

// biTimes reports accumulated CPU time for the shell itself and for
// its terminated children, in POSIX `times`'s two-line
// "<user> <system>" format (seconds rendered as "<minutes>m<seconds>s",
// e.g. "0m0.020s").
func biTimes(r *Runner, ctx context.Context, args []string) error {
	selfUser, selfSys, childUser, childSys := cpuTimes()
	fmt.Fprintf(r.Stdout, "%s %s\n", formatClockTime(selfUser), formatClockTime(selfSys))
	fmt.Fprintf(r.Stdout, "%s %s\n", formatClockTime(childUser), formatClockTime(childSys))
	return ok(r)
}

func formatClockTime(secs float64) string {
	m := int(secs) / 60
	s := secs - float64(m*60)
	return fmt.Sprintf("%dm%.3fs", m, s)
}

func biType(r *Runner, ctx context.Context, args []string) error {
	status := 0
	for _, name := range args {
		switch {
		case r.funcs[name] != nil:
			fmt.Fprintf(r.Stdout, "%s is a function\n", name)
		case builtins[name] != nil:
			fmt.Fprintf(r.Stdout, "%s is a shell builtin\n", name)
		default:
			if path, err := lookPath(r, name); err == nil {
				fmt.Fprintf(r.Stdout, "%s is %s\n", name, path)
			} else {
				fmt.Fprintf(r.Stderr, "type: %s: not found\n", name)
				status = 1
			}
		}
	}
	r.Store.SetLastStatus(status)
	return nil
}

func biCommand(r *Runner, ctx context.Context, args []string) error {
	showPath := false
	verbose := false
optLoop:
	for len(args) > 0 {
		switch args[0] {
		case "-v":
			showPath = true
			args = args[1:]
		case "-V":
			verbose = true
			args = args[1:]
		default:
			break optLoop
		}
	}
	if len(args) == 0 {
		return ok(r)
	}
	if showPath || verbose {
		name := args[0]
		if builtins[name] != nil {
			fmt.Fprintf(r.Stdout, "%s is a shell builtin\n", name)
			return ok(r)
		}
		if path, err := lookPath(r, name); err == nil {
			if verbose {
				fmt.Fprintf(r.Stdout, "%s is %s\n", name, path)
			} else {
				fmt.Fprintln(r.Stdout, path)
			}
			return ok(r)
		}
		r.Store.SetLastStatus(1)
		return nil
	}
	name := args[0]
	if bi, isBuiltin := builtins[name]; isBuiltin {
		return bi(r, ctx, args[1:])
	}
	return r.execExternal(ctx, args)
}

// biHash inspects and manages r's command hash table (the cache
// lookPath maintains in interp/exec.go). With no arguments it lists
// the table; `-r` clears it; `-p path name` records an explicit
// mapping without resolving it; any other arguments are resolved and
// hashed eagerly.
func biHash(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 {
		if len(r.cmdHash) == 0 {
			fmt.Fprintln(r.Stderr, "hash: hash table empty")
			return ok(r)
		}
		names := make([]string, 0, len(r.cmdHash))
		for name := range r.cmdHash {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(r.Stdout, "%s\t%s\n", name, r.cmdHash[name])
		}
		return ok(r)
	}
	switch args[0] {
	case "-r":
		r.cmdHash = nil
		return ok(r)
	case "-p":
		if len(args) != 3 {
			return fail(r, 2, "hash: -p requires a path and a name")
		}
		if r.cmdHash == nil {
			r.cmdHash = make(map[string]string)
		}
		r.cmdHash[args[2]] = args[1]
		return ok(r)
	}
	status := 0
	for _, name := range args {
		if _, err := lookPath(r, name); err != nil {
			fmt.Fprintf(r.Stderr, "hash: %s: not found\n", name)
			status = 1
		}
	}
	r.Store.SetLastStatus(status)
	return nil
}

func biJobs(r *Runner, ctx context.Context, args []string) error {
	jobs := r.jobs.list()
	for i, j := range jobs {
		fmt.Fprintln(r.Stdout, formatJobLine(j, i == len(jobs)-1))
	}
	return ok(r)
}

func jobByArg(r *Runner, arg string) (*Job, bool) {
	id := strings.TrimPrefix(arg, "%")
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, false
	}
	return r.jobs.get(n)
}

func biFg(r *Runner, ctx context.Context, args []string) error {
	jobs := r.jobs.list()
	var j *Job
	if len(args) > 0 {
		j, _ = jobByArg(r, args[0])
	} else if len(jobs) > 0 {
		j = jobs[len(jobs)-1]
	}
	if j == nil {
		return fail(r, 1, "fg: no such job")
	}
	fmt.Fprintln(r.Stdout, j.Text)

	if r.Interactive && r.opts.monitor && j.PID > 0 {
		if f, ok := r.Stdin.(*os.File); ok {
			fd := int(f.Fd())
			if own, err := foregroundPgrp(fd); err == nil {
				handToForeground(fd, j.PID)
				defer handToForeground(fd, own)
			}
		}
	}

	status := j.Wait()
	r.jobs.remove(j.ID)
	r.Store.SetLastStatus(status)
	return nil
}

func biBg(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ok(r)
	}
	j, found := jobByArg(r, args[0])
	if !found {
		return fail(r, 1, "bg: no such job")
	}
	fmt.Fprintln(r.Stdout, j.Text)
	return ok(r)
}

func biWait(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 {
		status := 0
		for _, j := range r.jobs.list() {
			status = j.Wait()
			r.jobs.remove(j.ID)
		}
		r.Store.SetLastStatus(status)
		return nil
	}
	status := 0
	for _, a := range args {
		var j *Job
		if strings.HasPrefix(a, "%") {
			j, _ = jobByArg(r, a)
		} else if pid, err := strconv.Atoi(a); err == nil {
			j, _ = r.jobs.byPID(pid)
		}
		if j == nil {
			continue
		}
		status = j.Wait()
		r.jobs.remove(j.ID)
	}
	r.Store.SetLastStatus(status)
	return nil
}

func biKill(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fail(r, 1, "kill: usage: kill [-SIG] pid|%%job")
	}
	sigName := "TERM"
	if strings.HasPrefix(args[0], "-") {
		sigName = strings.TrimPrefix(args[0], "-")
		args = args[1:]
	}
	sig, known := trapSignals[strings.ToUpper(strings.TrimPrefix(sigName, "SIG"))]
	if !known {
		return fail(r, 1, "kill: %s: invalid signal", sigName)
	}
	for _, a := range args {
		var pid int
		if strings.HasPrefix(a, "%") {
			j, found := jobByArg(r, a)
			if !found {
				return fail(r, 1, "kill: %s: no such job", a)
			}
			pid = j.PID
		} else {
			n, err := strconv.Atoi(a)
			if err != nil {
				return fail(r, 1, "kill: %s: arguments must be process or job IDs", a)
			}
			pid = n
		}
		if pid <= 0 {
			continue
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			return fail(r, 1, "kill: %s", err)
		}
		if err := proc.Signal(sig); err != nil {
			return fail(r, 1, "kill: %s", err)
		}
	}
	return ok(r)
}

func biAlias(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 {
		names := make([]string, 0, len(r.aliases))
		for name := range r.aliases {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(r.Stdout, "alias %s=%q\n", name, r.aliases[name])
		}
		return ok(r)
	}
	for _, a := range args {
		if i := strings.IndexByte(a, '='); i >= 0 {
			r.aliases[a[:i]] = a[i+1:]
		} else if v, found := r.aliases[a]; found {
			fmt.Fprintf(r.Stdout, "alias %s=%q\n", a, v)
		} else {
			return fail(r, 1, "alias: %s: not found", a)
		}
	}
	return ok(r)
}

func biUnalias(r *Runner, ctx context.Context, args []string) error {
	for _, a := range args {
		delete(r.aliases, a)
	}
	return ok(r)
}
