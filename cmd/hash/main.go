// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// hash is a POSIX-flavored interactive shell built on top of
// [interp], [parser], [expand], and [pattern].
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/interp"
	"github.com/kshku/hash/parser"
)

const version = "hash version 0.1.0"

var (
	flagC       = flag.String("c", "", "run STRING, remaining args are $0, $1...")
	flagI       = flag.Bool("i", false, "force interactive")
	flagLogin   = flag.Bool("l", false, "login shell (runs startup & logout files)")
	flagLoginL  = flag.Bool("login", false, "login shell (runs startup & logout files)")
	flagS       = flag.Bool("s", false, "read commands from stdin, positional args = ARGS")
	flagVersion = flag.Bool("v", false, "print version and exit")
	flagVersionL = flag.Bool("version", false, "print version and exit")
)

func main() { os.Exit(main1()) }

// main1 holds main's actual logic and returns a process exit code
// instead of calling os.Exit itself, so testscript.RunMain can invoke
// it as the "hash" subcommand of the test binary.
func main1() int {
	flag.Usage = usage
	flag.Parse()

	if *flagVersion || *flagVersionL {
		fmt.Println(version)
		return 0
	}

	err := run()
	var es interp.ExitStatus
	if errors.As(err, &es) {
		return int(es)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash: "+err.Error())
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: hash [OPTIONS] [SCRIPT [ARGS...]]
  -c STRING        run STRING, remaining args are $0, $1...
  -i               force interactive
  -l, --login      login shell (runs startup & logout files)
  -s               read commands from stdin, positional args = ARGS
  -v, --version    print version and exit 0
  -h, --help       print help and exit 0
  --               end options
`)
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	login := *flagLogin || *flagLoginL
	args := flag.Args()

	var params []string
	var interactive bool

	switch {
	case *flagC != "":
		params = append([]string{"hash"}, args...)
	case *flagS:
		params = append([]string{"hash"}, args...)
		interactive = *flagI
	case len(args) > 0:
		params = args
	default:
		params = []string{"hash"}
		interactive = *flagI || term.IsTerminal(int(os.Stdin.Fd()))
	}

	r, err := interp.New(
		interp.Interactive(interactive),
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		interp.Params(params...),
	)
	if err != nil {
		return err
	}
	r.Store.SetOptFlags(optFlagString(login, interactive))
	r.InstallSignalWatch(ctx)

	if login || interactive {
		runStartupFiles(ctx, r, login)
	}
	if login {
		defer runLogoutFile(ctx, r)
	}

	switch {
	case *flagC != "":
		return runSource(ctx, r, *flagC, "")
	case *flagS:
		return runReader(ctx, r, os.Stdin, "")
	case len(args) > 0:
		return runFile(ctx, r, args[0])
	default:
		if interactive {
			return runInteractive(ctx, r, os.Stdin, os.Stdout, os.Stderr)
		}
		return runReader(ctx, r, os.Stdin, "")
	}
}

func optFlagString(login, interactive bool) string {
	var sb strings.Builder
	if login {
		sb.WriteByte('l')
	}
	if interactive {
		sb.WriteByte('i')
	}
	return sb.String()
}

func runStartupFiles(ctx context.Context, r *interp.Runner, login bool) {
	home, _ := r.Store.Get("HOME")
	if login {
		sourceIfExists(ctx, r, "/etc/profile")
		for _, name := range []string{".hash_profile", ".hash_login", ".profile"} {
			if sourceIfExists(ctx, r, filepath.Join(home, name)) {
				break
			}
		}
	}
	sourceIfExists(ctx, r, filepath.Join(home, ".hashrc"))
}

func runLogoutFile(ctx context.Context, r *interp.Runner) {
	home, _ := r.Store.Get("HOME")
	sourceIfExists(ctx, r, filepath.Join(home, ".hash_logout"))
}

// sourceIfExists runs path through the same Runner as an ordinary
// script (not a subshell), so startup-file assignments and function
// definitions take effect in the interactive session that follows.
func sourceIfExists(ctx context.Context, r *interp.Runner, path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	file, err := parser.NewParser().Parse(string(data), path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash: "+path+": "+err.Error())
		return true
	}
	r.Run(ctx, file)
	return true
}

func runSource(ctx context.Context, r *interp.Runner, src, name string) error {
	file, err := parser.NewParser().Parse(src, name)
	if err != nil {
		return err
	}
	return r.Run(ctx, file)
}

func runReader(ctx context.Context, r *interp.Runner, reader io.Reader, name string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	return runSource(ctx, r, string(data), name)
}

func runFile(ctx context.Context, r *interp.Runner, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return runReader(ctx, r, f, path)
}

// runInteractive implements the read-eval-print loop: it accumulates
// lines until the parser reports a complete statement list or a
// genuine syntax error, printing PS1/PS2 the way spec.md §4.G
// describes, and keeps going after a script error instead of exiting
// the process (only `exit` or EOF ends the session).
func runInteractive(ctx context.Context, r *interp.Runner, stdin io.Reader, stdout, stderr io.Writer) error {
	in := bufio.NewReader(stdin)
	var buf strings.Builder

	for {
		fmt.Fprint(stdout, prompt(r, buf.Len() > 0))
		line, err := in.ReadString('\n')
		atEOF := err != nil
		if line == "" && atEOF && buf.Len() == 0 {
			// Ctrl-D with nothing pending: a clean end of session.
			fmt.Fprintln(stdout)
			return nil
		}
		buf.WriteString(line)
		if atEOF {
			buf.WriteByte('\n')
		}

		file, perr := parser.NewParser().Parse(buf.String(), "")
		var incomplete *parser.IncompleteError
		if errors.As(perr, &incomplete) {
			if atEOF {
				// EOF in the middle of an open construct: report and stop,
				// rather than silently dropping the unterminated input.
				fmt.Fprintln(stderr, "hash: "+perr.Error())
				return nil
			}
			continue
		}
		buf.Reset()
		if perr != nil {
			fmt.Fprintln(stderr, "hash: "+perr.Error())
			if atEOF {
				return nil
			}
			continue
		}
		if exitErr := runInteractiveFile(ctx, r, file, stderr); r.Exited() {
			return exitErr
		}
		if atEOF {
			return nil
		}
	}
}

// runInteractiveFile runs one parsed interactive line, printing a
// non-exit failure to stderr rather than aborting the session; the
// caller decides whether to stop based on r.Exited().
func runInteractiveFile(ctx context.Context, r *interp.Runner, file *ast.File, stderr io.Writer) error {
	err := r.Run(ctx, file)
	var es interp.ExitStatus
	if err != nil && !errors.As(err, &es) {
		fmt.Fprintln(stderr, "hash: "+err.Error())
	}
	return err
}

func prompt(r *interp.Runner, continuation bool) string {
	if continuation {
		if ps2, ok := r.Store.Get("PS2"); ok {
			return ps2
		}
		return "> "
	}
	if ps1, ok := r.Store.Get("PS1"); ok {
		return ps1
	}
	return "$ "
}
