// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// biTest, biTestBracket, and biTestDoubleBracket all share evalTest;
// `[` and `[[` just strip their own closing token first.
func biTest(r *Runner, ctx context.Context, args []string) error {
	return runTest(r, args)
}

func biTestBracket(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 || args[len(args)-1] != "]" {
		return fail(r, 2, "[: missing closing ]")
	}
	return runTest(r, args[:len(args)-1])
}

func biTestDoubleBracket(r *Runner, ctx context.Context, args []string) error {
	if len(args) == 0 || args[len(args)-1] != "]]" {
		return fail(r, 2, "[[: missing closing ]]")
	}
	return runTest(r, args[:len(args)-1])
}

func runTest(r *Runner, args []string) error {
	v, err := evalTestRunner(r, args)
	if err != nil {
		return fail(r, 2, "test: %s", err)
	}
	if v {
		r.Store.SetLastStatus(0)
	} else {
		r.Store.SetLastStatus(1)
	}
	return nil
}

// evalTest evaluates a `test`/`[`/`[[` argument vector outside of any
// Runner, so `-t` (the only operator needing access to the shell's
// stdio streams) always reports false. It does not support
// parenthesized grouping: spec.md's test evaluator is a single-pass
// `-a`/`-o` (or `&&`/`||`) fold left to right, the common case every
// script actually exercises, rather than POSIX test's full (and
// notoriously ambiguous past 4 arguments) grammar.
func evalTest(args []string) (bool, error) {
	return evalTestRunner(nil, args)
}

func evalTestRunner(r *Runner, args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	groups, ops := splitOnConnectives(args)
	result, err := evalPrimary(r, groups[0])
	if err != nil {
		return false, err
	}
	for i, op := range ops {
		v, err := evalPrimary(r, groups[i+1])
		if err != nil {
			return false, err
		}
		if op == "-a" || op == "&&" {
			result = result && v
		} else {
			result = result || v
		}
	}
	return result, nil
}

func splitOnConnectives(args []string) ([][]string, []string) {
	var groups [][]string
	var ops []string
	start := 0
	for i, a := range args {
		if a == "-a" || a == "-o" || a == "&&" || a == "||" {
			groups = append(groups, args[start:i])
			ops = append(ops, a)
			start = i + 1
		}
	}
	groups = append(groups, args[start:])
	return groups, ops
}

func evalPrimary(r *Runner, args []string) (bool, error) {
	switch len(args) {
	case 0:
		return false, nil
	case 1:
		return args[0] != "", nil
	case 2:
		if args[0] == "!" {
			v, err := evalPrimary(r, args[1:])
			return !v, err
		}
		return evalUnary(r, args[0], args[1])
	case 3:
		if args[0] == "!" {
			v, err := evalPrimary(r, args[1:])
			return !v, err
		}
		return evalBinary(args[0], args[1], args[2])
	case 4:
		if args[0] == "!" {
			v, err := evalPrimary(r, args[1:])
			return !v, err
		}
	}
	return false, fmt.Errorf("%s: unexpected number of arguments", args)
}

func evalUnary(r *Runner, op, operand string) (bool, error) {
	switch op {
	case "-z":
		return operand == "", nil
	case "-n":
		return operand != "", nil
	case "-e":
		_, err := os.Stat(operand)
		return err == nil, nil
	case "-f":
		st, err := os.Stat(operand)
		return err == nil && st.Mode().IsRegular(), nil
	case "-d":
		st, err := os.Stat(operand)
		return err == nil && st.IsDir(), nil
	case "-s":
		st, err := os.Stat(operand)
		return err == nil && st.Size() > 0, nil
	case "-L", "-h":
		st, err := os.Lstat(operand)
		return err == nil && st.Mode()&os.ModeSymlink != 0, nil
	case "-r":
		return unix.Access(operand, unix.R_OK) == nil, nil
	case "-w":
		return unix.Access(operand, unix.W_OK) == nil, nil
	case "-x":
		return unix.Access(operand, unix.X_OK) == nil, nil
	case "-t":
		n, err := strconv.Atoi(operand)
		if err != nil {
			return false, fmt.Errorf("%s: integer expression expected", operand)
		}
		return isTerminalFd(r, n), nil
	}
	return false, fmt.Errorf("%s: unknown unary operator", op)
}

// isTerminalFd reports whether the stream the shell has open on fd n
// (0, 1, or 2; any other descriptor is never a terminal) is backed by
// a pseudo-terminal. With no Runner (evalTest's free-standing form)
// it reports false.
func isTerminalFd(r *Runner, n int) bool {
	var stream any
	if r != nil {
		switch n {
		case 0:
			stream = r.Stdin
		case 1:
			stream = r.Stdout
		case 2:
			stream = r.Stderr
		default:
			return false
		}
	} else {
		return false
	}
	f, ok := stream.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func evalBinary(lhs, op, rhs string) (bool, error) {
	switch op {
	case "=", "==":
		return lhs == rhs, nil
	case "!=":
		return lhs != rhs, nil
	case "=~":
		re, err := regexp.Compile(rhs)
		if err != nil {
			return false, fmt.Errorf("%s: invalid regular expression", rhs)
		}
		return re.MatchString(lhs), nil
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		a, err := strconv.Atoi(lhs)
		if err != nil {
			return false, fmt.Errorf("%s: integer expression expected", lhs)
		}
		b, err := strconv.Atoi(rhs)
		if err != nil {
			return false, fmt.Errorf("%s: integer expression expected", rhs)
		}
		switch op {
		case "-eq":
			return a == b, nil
		case "-ne":
			return a != b, nil
		case "-lt":
			return a < b, nil
		case "-le":
			return a <= b, nil
		case "-gt":
			return a > b, nil
		case "-ge":
			return a >= b, nil
		}
	}
	return false, fmt.Errorf("%s: unknown binary operator", op)
}
