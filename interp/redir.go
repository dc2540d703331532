// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/expand"
	"github.com/kshku/hash/parser"
)

// redirState is the Redirection Planner's output (spec.md component E):
// the effective stdin/stdout/stderr for one command, plus anything that
// needs closing once the command finishes. Only fds 0/1/2 are modeled;
// an explicit redirect to another fd (`3>file`) is accepted but only
// observable to a script via exec's fd inheritance, which this
// interpreter does not expose beyond the three standard streams.
type redirState struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	closers []io.Closer
}

func (r *Runner) newRedirState() *redirState {
	return &redirState{stdin: r.Stdin, stdout: r.Stdout, stderr: r.Stderr}
}

func (rs *redirState) Close() {
	for i := len(rs.closers) - 1; i >= 0; i-- {
		rs.closers[i].Close()
	}
}

// applyRedirects builds the effective I/O for a command by folding
// redirs, left to right, over the Runner's current streams (so `2>&1
// >out` and `>out 2>&1` differ exactly as a real shell's do).
func (r *Runner) applyRedirects(redirs []*ast.Redirect) (*redirState, error) {
	rs := r.newRedirState()
	for _, rd := range redirs {
		if err := r.applyOne(rs, rd); err != nil {
			rs.Close()
			return nil, err
		}
	}
	return rs, nil
}

func (r *Runner) applyOne(rs *redirState, rd *ast.Redirect) error {
	cfg := r.expandConfig()
	fd := rd.N

	switch rd.Op {
	case ast.RedirInput:
		path, err := expand.Literal(cfg, rd.Word)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		rs.closers = append(rs.closers, f)
		rs.assignReader(fd, 0, f)

	case ast.RedirOutput, ast.RedirClobberOverride:
		path, err := expand.Literal(cfg, rd.Word)
		if err != nil {
			return err
		}
		if r.opts.noclobber && rd.Op == ast.RedirOutput {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s: cannot overwrite existing file", path)
			}
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		rs.closers = append(rs.closers, f)
		rs.assignWriter(fd, 1, f)

	case ast.RedirAppend:
		path, err := expand.Literal(cfg, rd.Word)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		rs.closers = append(rs.closers, f)
		rs.assignWriter(fd, 1, f)

	case ast.RedirBoth, ast.RedirBothApp:
		path, err := expand.Literal(cfg, rd.Word)
		if err != nil {
			return err
		}
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if rd.Op == ast.RedirBothApp {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		f, err := os.OpenFile(path, flags, 0644)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		rs.closers = append(rs.closers, f)
		rs.stdout = f
		rs.stderr = f

	case ast.RedirDupFd:
		target, err := expand.Literal(cfg, rd.Word)
		if err != nil {
			return err
		}
		if target == "-" {
			rs.closeFd(fd)
			return nil
		}
		n, err := strconv.Atoi(target)
		if err != nil {
			return fmt.Errorf("%s: bad file descriptor", target)
		}
		rs.dupFd(fd, n)

	case ast.RedirHeredoc, ast.RedirHeredocStrip:
		body := rd.Hdoc.Body
		if !rd.Hdoc.Quoted {
			w, err := parser.ParseHeredocBody(body)
			if err != nil {
				return err
			}
			body, err = expand.Literal(cfg, w)
			if err != nil {
				return err
			}
		}
		rs.assignReader(fd, 0, strings.NewReader(body))
	}
	return nil
}

// assignReader points fd (or defFd if fd is unset, i.e. -1) at f. Only
// fd 0 is meaningfully modeled.
func (rs *redirState) assignReader(fd, defFd int, f io.Reader) {
	if fd == -1 {
		fd = defFd
	}
	if fd == 0 {
		rs.stdin = f
	}
}

func (rs *redirState) assignWriter(fd, defFd int, f io.Writer) {
	if fd == -1 {
		fd = defFd
	}
	switch fd {
	case 1:
		rs.stdout = f
	case 2:
		rs.stderr = f
	}
}

// dupFd implements `N>&M`/`N<&M` for the fds this planner tracks (0-2):
// fd N becomes an alias of fd M's current stream.
func (rs *redirState) dupFd(fd, target int) {
	if fd == -1 {
		fd = 1 // bare `>&M` duplicates stdout
	}
	var src any
	switch target {
	case 0:
		src = rs.stdin
	case 1:
		src = rs.stdout
	case 2:
		src = rs.stderr
	}
	switch fd {
	case 0:
		if s, ok := src.(io.Reader); ok {
			rs.stdin = s
		}
	case 1:
		if s, ok := src.(io.Writer); ok {
			rs.stdout = s
		}
	case 2:
		if s, ok := src.(io.Writer); ok {
			rs.stderr = s
		}
	}
}

func (rs *redirState) closeFd(fd int) {
	switch fd {
	case 0:
		rs.stdin = nil
	case 1:
		rs.stdout = io.Discard
	case 2:
		rs.stderr = io.Discard
	}
}
