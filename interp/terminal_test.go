// Copyright (c) 2019, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build !windows

package interp

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/creack/pty"

	"github.com/kshku/hash/parser"
)

// TestRunnerTerminalStdIO exercises `[[ -t 1 ]]` against the three
// kinds of stream a Runner's stdout can be backed by: a plain
// in-memory buffer, an os.Pipe, and a real pseudo-terminal — only the
// pseudo-terminal should report true, matching a real shell's
// isatty(3) behavior. The script's output is tiny, so writing it
// synchronously can't fill a pipe/pty buffer and block.
func TestRunnerTerminalStdIO(t *testing.T) {
	t.Parallel()

	file, err := parser.NewParser().Parse(
		"if [[ -t 1 ]]; then echo -n yes; else echo -n no; fi; echo end\n",
		"test",
	)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tests := []struct {
		name string
		open func(t *testing.T) (out io.Writer, in io.Reader)
		want string
	}{
		{"Buffer", func(t *testing.T) (io.Writer, io.Reader) {
			var buf bytes.Buffer
			return &buf, &buf
		}, "noend\n"},
		{"Pipe", func(t *testing.T) (io.Writer, io.Reader) {
			pr, pw := os.Pipe()
			t.Cleanup(func() { pr.Close(); pw.Close() })
			return pw, pr
		}, "noend\n"},
		{"Pseudo", func(t *testing.T) (io.Writer, io.Reader) {
			ptyFile, tty, err := pty.Open()
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { ptyFile.Close(); tty.Close() })
			return tty, ptyFile
		}, "yesend\r\n"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			out, in := test.open(t)

			r, err := New(StdIO(strings.NewReader(""), out, out))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := r.Run(context.Background(), file); err != nil {
				t.Fatalf("Run: %v", err)
			}

			got, err := bufio.NewReader(in).ReadString('\n')
			if err != nil {
				t.Fatal(err)
			}
			if got != test.want {
				t.Fatalf("\nwant: %q\ngot:  %q", test.want, got)
			}
		})
	}
}

func TestIsTerminalFdNonStdFd(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if isTerminalFd(r, 7) {
		t.Fatal("fd 7 reported as a terminal, want false")
	}
}

func TestIsTerminalFdNoRunner(t *testing.T) {
	// With no Runner, evalTest's free-standing form can't know what a
	// script's fds are backed by, so -t always reports false.
	v, err := evalTest([]string{"-t", "1"})
	if err != nil {
		t.Fatalf("evalTest: %v", err)
	}
	if v {
		t.Fatal("evalTest(-t 1) with no Runner reported true, want false")
	}
}
