// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/token"
)

// fakeEnviron is a minimal in-memory Environ, the same role the
// teacher's expand_test.go plays with its own stub environments: just
// enough to drive the expansion pipeline without an interp.Runner.
type fakeEnviron struct {
	vars    map[string]string
	pos     []string
	special map[byte]string
}

func newFakeEnviron() *fakeEnviron {
	return &fakeEnviron{vars: map[string]string{}, special: map[byte]string{}}
}

func (e *fakeEnviron) Get(name string) (string, bool) {
	v, ok := e.vars[name]
	return v, ok
}

func (e *fakeEnviron) Set(name, value string) error {
	e.vars[name] = value
	return nil
}

func (e *fakeEnviron) Positional() []string { return e.pos }

func (e *fakeEnviron) Special(name byte) (string, bool) {
	v, ok := e.special[name]
	return v, ok
}

func word(parts ...ast.WordPart) ast.Word { return ast.Word{Parts: parts} }

func lit(s string) *ast.Lit                   { return &ast.Lit{Value: s} }
func sq(s string) *ast.SglQuoted              { return &ast.SglQuoted{Value: s} }
func dq(parts ...ast.WordPart) *ast.DblQuoted { return &ast.DblQuoted{Parts: parts} }

func param(name string) *ast.ParamExp { return &ast.ParamExp{Short: true, Param: name} }

func paramOp(name string, op ast.ParExpOp, colon bool, w ast.Word) *ast.ParamExp {
	return &ast.ParamExp{Param: name, Exp: &ast.ParamExpansion{Op: op, Colon: colon, Word: w}}
}

func newCfg(env *fakeEnviron) *Config {
	return &Config{Env: env, IFS: " \t\n"}
}

func TestLiteral(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	env.vars["foo"] = "bar"
	cfg := newCfg(env)

	got, err := Literal(cfg, word(lit("x="), param("foo"), lit("-y")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "x=bar-y")
}

func TestLiteralSingleQuoted(t *testing.T) {
	c := qt.New(t)
	cfg := newCfg(newFakeEnviron())

	got, err := Literal(cfg, word(sq("a*b")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "a*b")
}

func TestPatternQuotingGuardsGlob(t *testing.T) {
	c := qt.New(t)
	cfg := newCfg(newFakeEnviron())

	// a quoted '*' must come out escaped in the glob form, so a case arm
	// or ${v#pat} treats it as a literal asterisk rather than a wildcard.
	got, err := Pattern(cfg, word(lit("a"), sq("*"), lit("b")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, `a\*b`)

	got, err = Pattern(cfg, word(lit("a*b")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "a*b")
}

func TestFieldsSplitting(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	env.vars["x"] = "  one  two\tthree  "
	cfg := newCfg(env)

	got, err := Fields(cfg, word(param("x")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"one", "two", "three"})
}

func TestFieldsCustomIFS(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	env.vars["x"] = "a:b::c"
	cfg := newCfg(env)
	cfg.IFS = ":"

	// a non-whitespace IFS char always introduces a field break, even
	// producing an empty field between two adjacent separators.
	got, err := Fields(cfg, word(param("x")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"a", "b", "", "c"})
}

func TestFieldsLiteralNotSplitByCustomIFS(t *testing.T) {
	c := qt.New(t)
	cfg := newCfg(newFakeEnviron())
	cfg.IFS = ":"

	// literal source text is never split-eligible, unlike an expansion
	// result containing the same characters (TestFieldsCustomIFS):
	// `IFS=":"; echo a:b:c` is one field.
	got, err := Fields(cfg, word(lit("a:b:c")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"a:b:c"})
}

func TestFieldsQuotedNotSplit(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	env.vars["x"] = "one two"
	cfg := newCfg(env)

	got, err := Fields(cfg, word(dq(param("x"))))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"one two"})
}

func TestFieldsPositionalFanOut(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	env.pos = []string{"one", "two three", "four"}
	cfg := newCfg(env)

	// "$@" fans out into one field per positional parameter, regardless
	// of embedded whitespace.
	got, err := Fields(cfg, word(dq(param("@"))))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"one", "two three", "four"})

	// unquoted $@ is just like $*: subject to normal IFS splitting.
	got, err = Fields(cfg, word(param("@")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"one", "two", "three", "four"})
}

func TestFieldsPositionalStar(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	env.pos = []string{"one", "two", "three"}
	cfg := newCfg(env)
	cfg.IFS = ","

	// "$*" joins with the first IFS character, one single field.
	got, err := Fields(cfg, word(dq(param("*"))))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"one,two,three"})
}

func TestFieldsHashCount(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	env.pos = []string{"a", "b"}
	cfg := newCfg(env)

	got, err := Fields(cfg, word(param("#")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"2"})
}

func TestParamExpDefault(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	cfg := newCfg(env)

	// unset + ${x:-word}: trigger, yield word, does not assign.
	got, err := Literal(cfg, word(paramOp("x", ast.ParDefault, true, word(lit("def")))))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "def")
	_, isSet := env.Get("x")
	c.Assert(isSet, qt.IsFalse)

	// set-but-empty + ${x:-word} (colon form): still triggers.
	env.vars["x"] = ""
	got, err = Literal(cfg, word(paramOp("x", ast.ParDefault, true, word(lit("def")))))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "def")

	// set-but-empty + ${x-word} (no colon): does not trigger on empty.
	got, err = Literal(cfg, word(paramOp("x", ast.ParDefault, false, word(lit("def")))))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "")
}

func TestParamExpAssign(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	cfg := newCfg(env)

	got, err := Literal(cfg, word(paramOp("x", ast.ParAssign, true, word(lit("val")))))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "val")
	v, isSet := env.Get("x")
	c.Assert(isSet, qt.IsTrue)
	c.Assert(v, qt.Equals, "val")
}

func TestParamExpAlt(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	env.vars["x"] = "set"
	cfg := newCfg(env)

	got, err := Literal(cfg, word(paramOp("x", ast.ParAlt, true, word(lit("alt")))))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "alt")

	got, err = Literal(cfg, word(paramOp("y", ast.ParAlt, true, word(lit("alt")))))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "")
}

func TestParamExpError(t *testing.T) {
	c := qt.New(t)
	cfg := newCfg(newFakeEnviron())

	_, err := Literal(cfg, word(paramOp("x", ast.ParError, true, word(lit("custom message")))))
	if err == nil {
		t.Fatal("expected an error from ${x:?custom message}")
	}
	var ue *UnboundError
	if !errors.As(err, &ue) {
		t.Fatalf("error %v is not an *UnboundError", err)
	}
	c.Assert(ue.Msg, qt.Equals, "custom message")
}

func TestParamExpLength(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	env.vars["x"] = "hello"
	cfg := newCfg(env)

	got, err := Literal(cfg, word(&ast.ParamExp{Length: true, Param: "x"}))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "5")
}

func TestParamExpTrim(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	env.vars["x"] = "path/to/file.tar.gz"
	cfg := newCfg(env)

	tests := []struct {
		op   ast.ParExpOp
		pat  string
		want string
	}{
		{ast.ParRemSmallPrefix, "*/", "to/file.tar.gz"},
		{ast.ParRemLargePrefix, "*/", "file.tar.gz"},
		{ast.ParRemSmallSuffix, "*.*", "path/to/file.tar"},
		// the whole string already matches "*.*" (it contains a dot, and
		// the leading/trailing "*" absorb everything else), so the
		// largest matching suffix is the entire value.
		{ast.ParRemLargeSuffix, "*.*", ""},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.op), func(t *testing.T) {
			got, err := Literal(cfg, word(paramOp("x", tc.op, false, word(lit(tc.pat)))))
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.Equals, tc.want)
		})
	}
}

func TestNoUnset(t *testing.T) {
	env := newFakeEnviron()
	cfg := newCfg(env)
	cfg.NoUnset = true

	_, err := Literal(cfg, word(param("x")))
	if err == nil {
		t.Fatal("expected an UnboundError under NoUnset")
	}
	var ue *UnboundError
	if !errors.As(err, &ue) {
		t.Fatalf("error %v is not an *UnboundError", err)
	}
}

func TestNoUnsetAlwaysSetSpecials(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	cfg := newCfg(env)
	cfg.NoUnset = true

	// $@/$*/$#/$?/$-/$$/$!/$0 are never "unset", even under set -u.
	for _, name := range []string{"@", "*", "#", "?", "-", "$", "!", "0"} {
		_, err := Literal(cfg, word(param(name)))
		c.Assert(err, qt.IsNil, qt.Commentf("param %q", name))
	}
}

func TestTildeExpansion(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	cfg := newCfg(env)
	cfg.HomeDir = func(user string) (string, bool) {
		switch user {
		case "":
			return "/home/me", true
		case "bob":
			return "/home/bob", true
		}
		return "", false
	}

	got, err := Literal(cfg, word(lit("~/docs")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "/home/me/docs")

	got, err = Literal(cfg, word(lit("~bob")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "/home/bob")

	// unknown user: left untouched.
	got, err = Literal(cfg, word(lit("~nobody/x")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "~nobody/x")

	// a quoted tilde is never expanded.
	got, err = Literal(cfg, word(sq("~/docs")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "~/docs")
}

func TestTildeOnlyLeadsFirstField(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	cfg := newCfg(env)
	cfg.HomeDir = func(string) (string, bool) { return "/home/me", true }

	// a `~` that isn't the start of the (first) field is left alone.
	got, err := Fields(cfg, word(lit("a~b")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"a~b"})
}

func TestGlobExpansion(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	cfg := newCfg(env)
	cfg.Glob = func(dir, pat string) ([]string, error) {
		c.Assert(dir, qt.Equals, "")
		c.Assert(pat, qt.Equals, "*.go")
		names := []string{"b.go", "a.go"}
		sort.Strings(names)
		return names, nil
	}

	got, err := Fields(cfg, word(lit("*.go")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"a.go", "b.go"})
}

func TestGlobNoMatchKeepsLiteral(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	cfg := newCfg(env)
	cfg.Glob = func(dir, pat string) ([]string, error) { return nil, nil }

	got, err := Fields(cfg, word(lit("*.missing")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"*.missing"})
}

func TestGlobDisabledByNoGlob(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	cfg := newCfg(env)
	cfg.NoGlob = true
	cfg.Glob = func(dir, pat string) ([]string, error) {
		t.Fatalf("Glob should not be called when NoGlob is set")
		return nil, nil
	}

	got, err := Fields(cfg, word(lit("*.go")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"*.go"})
}

func TestGlobGuardedByQuoting(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	cfg := newCfg(env)
	cfg.Glob = func(dir, pat string) ([]string, error) {
		t.Fatalf("Glob should not be called on a quoted literal")
		return nil, nil
	}

	got, err := Fields(cfg, word(sq("*.go")))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"*.go"})
}

func TestCmdSubstTrimsTrailingNewlines(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	cfg := newCfg(env)
	cfg.CmdSubst = func(stmts []*ast.Stmt) (string, error) {
		return "hello\n\n", nil
	}

	got, err := Literal(cfg, word(&ast.CmdSubst{}))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "hello")
}

func TestArithExpansion(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnviron()
	cfg := newCfg(env)

	x := &ast.BinaryArithm{Op: token.ADD, X: &ast.NumLit{Value: "2"}, Y: &ast.NumLit{Value: "3"}}
	got, err := Literal(cfg, word(&ast.ArithmExp{X: x}))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "5")
}

func TestArithDivByZeroSubstitutesZero(t *testing.T) {
	c := qt.New(t)
	cfg := newCfg(newFakeEnviron())

	// a division-by-zero failure yields "0" and the rest of the word
	// still expands, rather than aborting the whole command.
	x := &ast.BinaryArithm{Op: token.QUO, X: &ast.NumLit{Value: "1"}, Y: &ast.NumLit{Value: "0"}}
	got, err := Literal(cfg, word(lit("x="), &ast.ArithmExp{X: x}))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "x=0")
}
