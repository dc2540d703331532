// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build !unix

package interp

import (
	"errors"
	"os/exec"
)

// setpgid is a no-op off Unix: there is no process-group concept for
// fg/bg to hand the terminal around with.
func setpgid(cmd *exec.Cmd) {}

func handToForeground(fd int, pgid int) {}

func foregroundPgrp(fd int) (int, error) {
	return 0, errors.New("job control unsupported on this platform")
}

// cpuTimes has no rusage equivalent wired up off Unix, so times
// reports all-zero CPU usage there.
func cpuTimes() (selfUser, selfSys, childUser, childSys float64) {
	return 0, 0, 0, 0
}

// signaledExitStatus has no signal concept off Unix: ExitCode()'s -1
// is the best this platform can report, so callers always fall back
// to it.
func signaledExitStatus(ee *exec.ExitError) (int, bool) {
	return 0, false
}
