// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
)

// trapSignals maps the signal names `trap`/`kill` accept to the
// os.Signal the runtime listens for (spec.md component J).
var trapSignals = map[string]os.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"QUIT": syscall.SIGQUIT,
	"ILL":  syscall.SIGILL,
	"TRAP": syscall.SIGTRAP,
	"ABRT": syscall.SIGABRT,
	"KILL": syscall.SIGKILL,
	"PIPE": syscall.SIGPIPE,
	"ALRM": syscall.SIGALRM,
	"TERM": syscall.SIGTERM,
	"USR1": syscall.SIGUSR1,
	"USR2": syscall.SIGUSR2,
	"CHLD": syscall.SIGCHLD,
	"CONT": syscall.SIGCONT,
	"STOP": syscall.SIGSTOP,
	"TSTP": syscall.SIGTSTP,
	"TTIN": syscall.SIGTTIN,
	"TTOU": syscall.SIGTTOU,
}

// SetTrap registers (or, for action "" / "-", clears) a handler for a
// named signal or "EXIT". An empty action means "reset to the default
// disposition", matching `trap - SIG` / `trap SIG` with no command.
func (r *Runner) SetTrap(name, action string) {
	if action == "" || action == "-" {
		delete(r.traps, name)
		return
	}
	r.traps[name] = action
}

// InstallSignalWatch starts the trap-dispatch goroutine for ctx's
// lifetime; cmd/hash calls this once on the top-level Runner before
// entering script or interactive execution.
func (r *Runner) InstallSignalWatch(ctx context.Context) {
	r.watchSignals(ctx)
}

// watchSignals starts a background goroutine that runs a script's
// registered trap command whenever the matching OS signal arrives.
// Only meaningful once; cmd/hash calls it once per top-level Runner.
func (r *Runner) watchSignals(ctx context.Context) {
	ch := make(chan os.Signal, 8)
	watched := make([]os.Signal, 0, len(trapSignals))
	for _, sig := range trapSignals {
		watched = append(watched, sig)
	}
	signal.Notify(ch, watched...)
	go func() {
		for {
			select {
			case <-ctx.Done():
				signal.Stop(ch)
				return
			case sig := <-ch:
				r.handleSignal(ctx, sig)
			}
		}
	}()
}

func (r *Runner) handleSignal(ctx context.Context, sig os.Signal) {
	for name, s := range trapSignals {
		if s != sig {
			continue
		}
		if cmd, ok := r.traps[name]; ok {
			r.runTrapCommand(ctx, cmd)
		}
		return
	}
}

// runTrapCommand parses and runs a trap action string in the current
// environment. inTrap guards against a trap handler recursively
// retriggering itself (e.g. a SIGTERM handler that itself raises
// SIGTERM).
func (r *Runner) runTrapCommand(ctx context.Context, cmd string) int {
	if r.inTrap {
		return -1
	}
	r.inTrap = true
	defer func() { r.inTrap = false }()
	file, err := r.parseString(cmd)
	if err != nil {
		return -1
	}
	runErr := r.runStmts(ctx, file.Stmts)
	status := r.Store.LastStatus()
	var ex exitSignal
	if errors.As(runErr, &ex) {
		status = int(ex)
	}
	r.Store.SetLastStatus(status)
	return status
}
