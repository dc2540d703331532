// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import "fmt"

// The script-level control-flow builtins (`exit`, `return`, `break`,
// `continue`) unwind the Go call stack that is executing the AST by
// returning a sentinel error value, which the matching enclosing
// construct (a loop, a function call, Runner.Run itself) catches with
// errors.As and stops propagating. This mirrors how the teacher's
// interp/runner.go uses a handful of named error values for the same
// purpose (see runner.go's exit/return handling), generalized to carry
// a level count for `break N`/`continue N`.

// exitSignal unwinds all the way out of Run; its value is the process
// exit status.
type exitSignal int

func (e exitSignal) Error() string { return fmt.Sprintf("exit %d", int(e)) }

// returnSignal unwinds out of the nearest enclosing function call.
type returnSignal int

func (e returnSignal) Error() string { return fmt.Sprintf("return %d", int(e)) }

// breakSignal unwinds out of n enclosing loops (for/while/until).
type breakSignal int

func (e breakSignal) Error() string { return fmt.Sprintf("break %d", int(e)) }

// continueSignal unwinds out of n-1 enclosing loops and restarts the
// nth.
type continueSignal int

func (e continueSignal) Error() string { return fmt.Sprintf("continue %d", int(e)) }
