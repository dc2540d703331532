// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix

package interp

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setpgid puts cmd in its own process group before it execs, the way
// the teacher's interp/handler_unix.go prepares a child for job
// control: without it, signals sent to the shell's process group (e.g.
// ^C at the terminal) would also hit every backgrounded child.
func setpgid(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// handToForeground gives the terminal to pgid, and back to the shell's
// own process group once fg is done (or interrupted). Job Control
// (spec.md component I) only matters in interactive mode, where stdin
// is a terminal.
func handToForeground(fd int, pgid int) {
	_ = unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, pgid)
}

func foregroundPgrp(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCGPGRP)
}

// cpuTimes backs the times builtin with the kernel's own accounting of
// CPU time spent by the shell and by its exited children, rather than
// a hand-rolled wall-clock stopwatch.
func cpuTimes() (selfUser, selfSys, childUser, childSys float64) {
	var self, children syscall.Rusage
	syscall.Getrusage(syscall.RUSAGE_SELF, &self)
	syscall.Getrusage(syscall.RUSAGE_CHILDREN, &children)
	return timevalSeconds(self.Utime), timevalSeconds(self.Stime),
		timevalSeconds(children.Utime), timevalSeconds(children.Stime)
}

func timevalSeconds(tv syscall.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}

// signaledExitStatus reports the 128+signal status a child killed by a
// signal should leave in $? (spec.md's SignalDeath edge case).
// exec.ExitError.ExitCode() returns -1 for a signal death, which is not
// a usable status on its own, so callers must check ok here first.
func signaledExitStatus(ee *exec.ExitError) (int, bool) {
	ws, ok := ee.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	return 128 + int(ws.Signal()), true
}
