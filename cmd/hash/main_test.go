// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/kshku/hash/interp"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"hash": main1,
	}))
}

var update = flag.Bool("u", false, "update testscript output files")

func TestScripts(t *testing.T) {
	t.Parallel()
	testscript.Run(t, testscript.Params{
		Dir: filepath.Join("testdata", "scripts"),
		Setup: func(env *testscript.Env) error {
			bindir := filepath.Join(env.WorkDir, ".bin")
			if err := os.Mkdir(bindir, 0777); err != nil {
				return err
			}
			binfile := filepath.Join(bindir, "hash")
			if runtime.GOOS == "windows" {
				binfile += ".exe"
			}
			if err := os.Symlink(os.Args[0], binfile); err != nil {
				return err
			}
			env.Vars = append(env.Vars, fmt.Sprintf("PATH=%s%c%s", bindir, filepath.ListSeparator, os.Getenv("PATH")))
			env.Vars = append(env.Vars, "TESTSCRIPT_COMMAND=hash")
			return nil
		},
		UpdateScripts: *update,
	})
}

// interactiveTests drives runInteractive over an in-memory pipe, in the
// same input/output-pair style as the teacher's cmd/gosh test: each
// even-indexed string is typed by the user, each odd-indexed string is
// what the shell must have printed back by the time the next input is
// sent. The leading "$ " prompt is implicit and checked first.
var interactiveTests = []struct {
	pairs   []string
	wantErr string
}{
	{
		pairs: []string{
			"\n",
			"$ ",
		},
	},
	{
		pairs: []string{
			"echo foo\n",
			"foo\n$ ",
		},
	},
	{
		pairs: []string{
			"echo foo\n",
			"foo\n$ ",
			"echo bar\n",
			"bar\n$ ",
		},
	},
	{
		pairs: []string{
			"if true\n",
			"> ",
			"then echo bar; fi\n",
			"bar\n$ ",
		},
	},
	{
		pairs: []string{
			"echo 'foo\n",
			"> ",
			"bar'\n",
			"foo\nbar\n$ ",
		},
	},
	{
		pairs: []string{
			"echo foo; echo bar\n",
			"foo\nbar\n$ ",
		},
	},
	{
		pairs: []string{
			"echo foo ||\n",
			"> ",
			"echo bar\n",
			"foo\n$ ",
		},
	},
	{
		pairs: []string{
			"echo foo |\n",
			"> ",
			"read var; echo $var\n",
			"foo\n$ ",
		},
	},
	{
		pairs: []string{
			"echo foo; exit 0; echo bar\n",
			"foo\n",
		},
	},
	{
		pairs: []string{
			"echo foo; exit 3; echo bar\n",
			"foo\n",
		},
		wantErr: "exit status 3",
	},
}

func TestInteractive(t *testing.T) {
	t.Parallel()
	for i, tc := range interactiveTests {
		tc := tc
		t.Run(fmt.Sprintf("%02d", i), func(t *testing.T) {
			t.Parallel()
			inReader, inWriter := io.Pipe()
			outReader, outWriter := io.Pipe()
			runner, err := interp.New(interp.StdIO(inReader, outWriter, outWriter))
			if err != nil {
				t.Fatalf("interp.New: %v", err)
			}
			errc := make(chan error, 1)
			go func() {
				errc <- runInteractive(context.Background(), runner, inReader, outWriter, outWriter)
				io.Copy(io.Discard, inReader)
			}()

			if err := readString(outReader, "$ "); err != nil {
				t.Fatal(err)
			}

			pairs := tc.pairs
			for len(pairs) > 0 {
				if _, err := io.WriteString(inWriter, pairs[0]); err != nil {
					t.Fatal(err)
				}
				if err := readString(outReader, pairs[1]); err != nil {
					t.Fatal(err)
				}
				pairs = pairs[2:]
			}

			inWriter.Close()
			outReader.Close()

			err = <-errc
			if err != nil && tc.wantErr == "" {
				t.Fatalf("unexpected error: %v", err)
			} else if tc.wantErr != "" && fmt.Sprint(err) != tc.wantErr {
				t.Fatalf("want error %q, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestInteractiveExitOnEOFAfterIncompleteConstruct(t *testing.T) {
	inReader, inWriter := io.Pipe()
	outReader, outWriter := io.Pipe()
	runner, err := interp.New(interp.StdIO(inReader, outWriter, outWriter))
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	errc := make(chan error, 1)
	go func() {
		errc <- runInteractive(context.Background(), runner, inReader, outWriter, outWriter)
	}()

	if err := readString(outReader, "$ "); err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(inWriter, "(\n"); err != nil {
		t.Fatal(err)
	}
	if err := readString(outReader, "> "); err != nil {
		t.Fatal(err)
	}
	// Close stdin while "(" is still open: the shell must report the
	// unterminated construct rather than exiting silently.
	inWriter.Close()
	outReader.Close()

	if err := <-errc; err != nil {
		t.Fatalf("runInteractive returned %v, want nil (error goes to stderr)", err)
	}
}

// readString keeps reading from r until all bytes of want have been
// consumed, failing if what comes back doesn't match.
func readString(r io.Reader, want string) error {
	p := make([]byte, len(want))
	if _, err := io.ReadFull(r, p); err != nil {
		return err
	}
	if got := string(p); got != want {
		return fmt.Errorf("read %q, wanted %q", got, want)
	}
	return nil
}
