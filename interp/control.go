// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"errors"
	"fmt"

	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/expand"
	"github.com/kshku/hash/pattern"
)

func asBreak(err error) (int, bool) {
	var b breakSignal
	if errors.As(err, &b) {
		return int(b), true
	}
	return 0, false
}

func asContinue(err error) (int, bool) {
	var c continueSignal
	if errors.As(err, &c) {
		return int(c), true
	}
	return 0, false
}

func (r *Runner) runIf(ctx context.Context, c *ast.IfClause) error {
	if err := r.runCond(ctx, c.CondStmts); err != nil {
		return err
	}
	if r.Store.LastStatus() == 0 {
		return r.runStmts(ctx, c.ThenStmts)
	}
	for _, elif := range c.Elifs {
		if err := r.runCond(ctx, elif.CondStmts); err != nil {
			return err
		}
		if r.Store.LastStatus() == 0 {
			return r.runStmts(ctx, elif.ThenStmts)
		}
	}
	if c.ElseStmts != nil {
		return r.runStmts(ctx, c.ElseStmts)
	}
	r.Store.SetLastStatus(0)
	return nil
}

// runWhile handles both `while` and `until` (c.Until negates the
// condition test). Per POSIX, the loop's own exit status is that of
// the last command run in the body, or 0 if the body never ran.
func (r *Runner) runWhile(ctx context.Context, c *ast.WhileClause) error {
	status := 0
	for {
		if err := r.runCond(ctx, c.CondStmts); err != nil {
			return err
		}
		cond := r.Store.LastStatus() == 0
		if c.Until {
			cond = !cond
		}
		if !cond {
			break
		}
		err := r.runStmts(ctx, c.DoStmts)
		status = r.Store.LastStatus()
		if n, ok := asBreak(err); ok {
			if n > 1 {
				return breakSignal(n - 1)
			}
			break
		}
		if n, ok := asContinue(err); ok {
			if n > 1 {
				return continueSignal(n - 1)
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	r.Store.SetLastStatus(status)
	return nil
}

func (r *Runner) runFor(ctx context.Context, c *ast.ForClause) error {
	var items []string
	if !c.HasIn {
		items = append([]string(nil), r.Store.Positional()...)
	} else {
		vals, err := expand.Fields(r.expandConfig(), c.Words...)
		if err != nil {
			fmt.Fprintln(r.Stderr, "hash: "+err.Error())
			r.Store.SetLastStatus(1)
			return nil
		}
		items = vals
	}

	ran := false
	for _, it := range items {
		if err := r.Store.Set(c.Var, it); err != nil {
			fmt.Fprintln(r.Stderr, "hash: "+err.Error())
			r.Store.SetLastStatus(1)
			return nil
		}
		ran = true
		err := r.runStmts(ctx, c.DoStmts)
		if n, ok := asBreak(err); ok {
			if n > 1 {
				return breakSignal(n - 1)
			}
			break
		}
		if n, ok := asContinue(err); ok {
			if n > 1 {
				return continueSignal(n - 1)
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	if !ran {
		r.Store.SetLastStatus(0)
	}
	return nil
}

// runCase matches c.Word against each arm's patterns in turn, per
// spec.md §4.F's `;;`/`;&`/`;;&` terminators: `;&` runs the next arm's
// body unconditionally, `;;&` re-tests the next arm's patterns instead
// of stopping.
func (r *Runner) runCase(ctx context.Context, c *ast.CaseClause) error {
	cfg := r.expandConfig()
	subject, err := expand.Literal(cfg, c.Word)
	if err != nil {
		fmt.Fprintln(r.Stderr, "hash: "+err.Error())
		r.Store.SetLastStatus(1)
		return nil
	}

	matched := false
	for _, item := range c.List {
		if !matched {
			for _, patWord := range item.Patterns {
				patStr, err := expand.Pattern(cfg, patWord)
				if err != nil {
					continue
				}
				re, err := pattern.Compile(patStr, pattern.EntireString)
				if err != nil {
					continue
				}
				if re.MatchString(subject) {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}
		if err := r.runStmts(ctx, item.Stmts); err != nil {
			return err
		}
		switch item.Fallthru {
		case ast.CaseBreak:
			return nil
		case ast.CaseFallthru:
			// matched stays true: run the next arm's body with no test.
		case ast.CaseTestNext:
			matched = false
		}
	}
	r.Store.SetLastStatus(0)
	return nil
}
