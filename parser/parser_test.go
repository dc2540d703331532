// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package parser

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	qt "github.com/frankban/quicktest"

	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/token"
)

func parse(t *testing.T, src string) *ast.File {
	t.Helper()
	f, err := NewParser().Parse(src, "test")
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", src, err)
	}
	return f
}

func assertLen(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Fatalf("len = %d, want %d", got, want)
	}
}

func TestParseSimpleCommand(t *testing.T) {
	f := parse(t, "echo foo bar\n")
	assertLen(t, len(f.Stmts), 1)
	call, ok := f.Stmts[0].Cmd.(*ast.CallExpr)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.CallExpr", f.Stmts[0].Cmd)
	}
	assertLen(t, len(call.Args), 3)
	for i, want := range []string{"echo", "foo", "bar"} {
		lit, ok := call.Args[i].Parts[0].(*ast.Lit)
		if !ok || lit.Value != want {
			t.Fatalf("arg %d = %#v, want literal %q", i, call.Args[i], want)
		}
	}
}

func TestParseAssignPrefix(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "FOO=bar echo $FOO\n")
	assertLen(t, len(f.Stmts), 1)
	st := f.Stmts[0]
	assertLen(t, len(st.Assigns), 1)
	c.Assert(st.Assigns[0].Name, qt.Equals, "FOO")
	lit, ok := st.Assigns[0].Value.Parts[0].(*ast.Lit)
	if !ok || lit.Value != "bar" {
		t.Fatalf("assign value = %#v, want literal \"bar\"", st.Assigns[0].Value)
	}
}

func TestParseBareAssignment(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "x=1\n")
	assertLen(t, len(f.Stmts), 1)
	st := f.Stmts[0]
	// A bare assignment still parses to an (argless) CallExpr, not a nil Cmd.
	call, ok := st.Cmd.(*ast.CallExpr)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.CallExpr", st.Cmd)
	}
	assertLen(t, len(call.Args), 0)
	assertLen(t, len(st.Assigns), 1)
	c.Assert(st.Assigns[0].Name, qt.Equals, "x")
}

func TestParsePipeline(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "a | b | c\n")
	assertLen(t, len(f.Stmts), 1)
	// left-leaning: (a | b) | c
	bin, ok := f.Stmts[0].Cmd.(*ast.BinaryCmd)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.BinaryCmd", f.Stmts[0].Cmd)
	}
	c.Assert(bin.Op, qt.Equals, token.OR)
	if _, ok := bin.Y.Cmd.(*ast.CallExpr); !ok {
		t.Fatalf("Y.Cmd is %T, want *ast.CallExpr", bin.Y.Cmd)
	}
	inner, ok := bin.X.Cmd.(*ast.BinaryCmd)
	if !ok {
		t.Fatalf("X.Cmd is %T, want *ast.BinaryCmd", bin.X.Cmd)
	}
	c.Assert(inner.Op, qt.Equals, token.OR)
}

func TestParseAndOr(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "a && b || c\n")
	assertLen(t, len(f.Stmts), 1)
	top, ok := f.Stmts[0].Cmd.(*ast.BinaryCmd)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.BinaryCmd", f.Stmts[0].Cmd)
	}
	// && and || have equal precedence and group left to right, so this
	// should be (a && b) || c.
	c.Assert(top.Op, qt.Equals, token.LOR)
	left, ok := top.X.Cmd.(*ast.BinaryCmd)
	if !ok {
		t.Fatalf("X.Cmd is %T, want *ast.BinaryCmd", top.X.Cmd)
	}
	c.Assert(left.Op, qt.Equals, token.LAND)
}

func TestParseBackground(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "sleep 1 &\n")
	assertLen(t, len(f.Stmts), 1)
	c.Assert(f.Stmts[0].Background, qt.IsTrue)
}

func TestParseNegation(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "! true\n")
	assertLen(t, len(f.Stmts), 1)
	c.Assert(f.Stmts[0].Negated, qt.IsTrue)
}

func TestParseSequence(t *testing.T) {
	f := parse(t, "a; b; c\n")
	assertLen(t, len(f.Stmts), 3)
}

func TestParseComment(t *testing.T) {
	f := parse(t, "echo hi # this is a comment\necho bye\n")
	assertLen(t, len(f.Stmts), 2)
}

func TestParseLineContinuation(t *testing.T) {
	f := parse(t, "echo foo \\\nbar\n")
	assertLen(t, len(f.Stmts), 1)
	call := f.Stmts[0].Cmd.(*ast.CallExpr)
	assertLen(t, len(call.Args), 3)
}

func TestParseRedirects(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "cmd > out.txt 2>> err.txt < in.txt\n")
	assertLen(t, len(f.Stmts), 1)
	redirs := f.Stmts[0].Redirs
	assertLen(t, len(redirs), 3)
	c.Assert(redirs[0].Op, qt.Equals, ast.RedirOutput)
	c.Assert(redirs[1].Op, qt.Equals, ast.RedirAppend)
	c.Assert(redirs[1].N, qt.Equals, 2)
	c.Assert(redirs[2].Op, qt.Equals, ast.RedirInput)
}

func TestParseDupRedirect(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "cmd 2>&1\n")
	redirs := f.Stmts[0].Redirs
	assertLen(t, len(redirs), 1)
	c.Assert(redirs[0].Op, qt.Equals, ast.RedirDupFd)
	c.Assert(redirs[0].N, qt.Equals, 2)
}

func TestParseIfElifElse(t *testing.T) {
	f := parse(t, "if a; then b; elif c; then d; else e; fi\n")
	assertLen(t, len(f.Stmts), 1)
	ifc, ok := f.Stmts[0].Cmd.(*ast.IfClause)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.IfClause", f.Stmts[0].Cmd)
	}
	assertLen(t, len(ifc.CondStmts), 1)
	assertLen(t, len(ifc.ThenStmts), 1)
	assertLen(t, len(ifc.Elifs), 1)
	assertLen(t, len(ifc.ElseStmts), 1)
}

func TestParseIfNoElse(t *testing.T) {
	f := parse(t, "if a; then b; fi\n")
	ifc := f.Stmts[0].Cmd.(*ast.IfClause)
	if ifc.ElseStmts != nil {
		t.Fatalf("ElseStmts = %#v, want nil", ifc.ElseStmts)
	}
}

func TestParseWhile(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "while a; do b; done\n")
	wc, ok := f.Stmts[0].Cmd.(*ast.WhileClause)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.WhileClause", f.Stmts[0].Cmd)
	}
	c.Assert(wc.Until, qt.IsFalse)
}

func TestParseUntil(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "until a; do b; done\n")
	wc, ok := f.Stmts[0].Cmd.(*ast.WhileClause)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.WhileClause", f.Stmts[0].Cmd)
	}
	c.Assert(wc.Until, qt.IsTrue)
}

func TestParseForIn(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "for x in a b c; do echo $x; done\n")
	fc, ok := f.Stmts[0].Cmd.(*ast.ForClause)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.ForClause", f.Stmts[0].Cmd)
	}
	c.Assert(fc.Var, qt.Equals, "x")
	c.Assert(fc.HasIn, qt.IsTrue)
	assertLen(t, len(fc.Words), 3)
}

func TestParseForBare(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "for x; do echo $x; done\n")
	fc, ok := f.Stmts[0].Cmd.(*ast.ForClause)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.ForClause", f.Stmts[0].Cmd)
	}
	c.Assert(fc.HasIn, qt.IsFalse)
	if fc.Words != nil {
		t.Fatalf("Words = %#v, want nil for bare for", fc.Words)
	}
}

func TestParseCase(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "case $x in a) foo;; b|c) bar;; *) baz;; esac\n")
	cc, ok := f.Stmts[0].Cmd.(*ast.CaseClause)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.CaseClause", f.Stmts[0].Cmd)
	}
	assertLen(t, len(cc.List), 3)
	assertLen(t, len(cc.List[1].Patterns), 2)
	c.Assert(cc.List[0].Fallthru, qt.Equals, ast.CaseBreak)
}

func TestParseFuncDecl(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "foo() { echo hi; }\n")
	fd, ok := f.Stmts[0].Cmd.(*ast.FuncDecl)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.FuncDecl", f.Stmts[0].Cmd)
	}
	c.Assert(fd.Name, qt.Equals, "foo")
	if fd.Body == nil {
		t.Fatal("Body is nil")
	}
}

func TestParseSubshell(t *testing.T) {
	f := parse(t, "(cd /tmp; ls)\n")
	_, ok := f.Stmts[0].Cmd.(*ast.Subshell)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.Subshell", f.Stmts[0].Cmd)
	}
}

func TestParseBlock(t *testing.T) {
	f := parse(t, "{ echo hi; }\n")
	blk, ok := f.Stmts[0].Cmd.(*ast.Block)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.Block", f.Stmts[0].Cmd)
	}
	assertLen(t, len(blk.Stmts), 1)
}

func TestParseArithmCmd(t *testing.T) {
	f := parse(t, "((x + 1))\n")
	_, ok := f.Stmts[0].Cmd.(*ast.ArithmCmd)
	if !ok {
		t.Fatalf("Cmd is %T, want *ast.ArithmCmd", f.Stmts[0].Cmd)
	}
}

func TestParseSingleQuote(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "echo 'a $b c'\n")
	call := f.Stmts[0].Cmd.(*ast.CallExpr)
	assertLen(t, len(call.Args), 2)
	sq, ok := call.Args[1].Parts[0].(*ast.SglQuoted)
	if !ok {
		t.Fatalf("arg 1 is %T, want *ast.SglQuoted", call.Args[1].Parts[0])
	}
	c.Assert(sq.Value, qt.Equals, "a $b c")
}

func TestParseDoubleQuote(t *testing.T) {
	f := parse(t, "echo \"a $b c\"\n")
	call := f.Stmts[0].Cmd.(*ast.CallExpr)
	dq, ok := call.Args[1].Parts[0].(*ast.DblQuoted)
	if !ok {
		t.Fatalf("arg 1 is %T, want *ast.DblQuoted", call.Args[1].Parts[0])
	}
	assertLen(t, len(dq.Parts), 3)
}

func TestParseHeredoc(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "cat <<EOF\nhello $x\nEOF\n")
	assertLen(t, len(f.Stmts), 1)
	redirs := f.Stmts[0].Redirs
	assertLen(t, len(redirs), 1)
	c.Assert(redirs[0].Op, qt.Equals, ast.RedirHeredoc)
	if redirs[0].Hdoc == nil {
		t.Fatal("Hdoc is nil")
	}
	c.Assert(redirs[0].Hdoc.Delim, qt.Equals, "EOF")
	c.Assert(redirs[0].Hdoc.Body, qt.Equals, "hello $x\n")
}

func TestParseHeredocQuotedDelim(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "cat <<'EOF'\nhello $x\nEOF\n")
	redirs := f.Stmts[0].Redirs
	c.Assert(redirs[0].Hdoc.Quoted, qt.IsTrue)
}

func TestParseHeredocBodyExpands(t *testing.T) {
	c := qt.New(t)
	w, err := ParseHeredocBody("hello $x\n")
	c.Assert(err, qt.IsNil)
	// "hello ", then the $x expansion, then the trailing newline as its
	// own trailing literal part.
	assertLen(t, len(w.Parts), 3)
	lit, ok := w.Parts[0].(*ast.Lit)
	if !ok || lit.Value != "hello " {
		t.Fatalf("part 0 = %#v, want literal \"hello \"", w.Parts[0])
	}
	pe, ok := w.Parts[1].(*ast.ParamExp)
	if !ok || pe.Param != "x" {
		t.Fatalf("part 1 = %#v, want ParamExp{Param: \"x\"}", w.Parts[1])
	}
}

func TestParseIncompleteIf(t *testing.T) {
	_, err := NewParser().Parse("if true; then echo hi\n", "test")
	var ie *IncompleteError
	if !errors.As(err, &ie) {
		t.Fatalf("error %v is not an *IncompleteError", err)
	}
}

func TestParseIncompleteSingleQuote(t *testing.T) {
	_, err := NewParser().Parse("echo 'unterminated\n", "test")
	var ie *IncompleteError
	if !errors.As(err, &ie) {
		t.Fatalf("error %v is not an *IncompleteError", err)
	}
}

// lit builds a single-part Word holding an unquoted literal, the
// shape most CallExpr.Args entries take once tokenized.
func lit(s string) ast.Word {
	return ast.Word{Parts: []ast.WordPart{&ast.Lit{Value: s}}}
}

// TestParseCallExprArgsShape diffs a CallExpr's whole Args tree
// against an expected Word tree in one shot with cmp.Diff, rather than
// indexing into call.Args[i].Parts[0] field by field as the other
// TestParse* cases do; useful once a case's argv mixes quoted and
// unquoted words, where a full-tree diff reads better than a chain of
// type assertions.
func TestParseCallExprArgsShape(t *testing.T) {
	tests := []struct {
		src  string
		want []ast.Word
	}{
		{
			"echo foo bar\n",
			[]ast.Word{lit("echo"), lit("foo"), lit("bar")},
		},
		{
			"printf 'a b' c\n",
			[]ast.Word{
				lit("printf"),
				{Parts: []ast.WordPart{&ast.SglQuoted{Value: "a b"}}},
				lit("c"),
			},
		},
		{
			"echo a\"b\"c\n",
			[]ast.Word{
				lit("echo"),
				{Parts: []ast.WordPart{
					&ast.Lit{Value: "a"},
					&ast.DblQuoted{Parts: []ast.WordPart{&ast.Lit{Value: "b", Quoted: true}}},
					&ast.Lit{Value: "c"},
				}},
			},
		},
	}
	for _, tc := range tests {
		f := parse(t, tc.src)
		call, ok := f.Stmts[0].Cmd.(*ast.CallExpr)
		if !ok {
			t.Fatalf("Parse(%q): Cmd is %T, want *ast.CallExpr", tc.src, f.Stmts[0].Cmd)
		}
		if diff := cmp.Diff(tc.want, call.Args); diff != "" {
			t.Fatalf("Parse(%q): Args mismatch (-want +got):\n%s", tc.src, diff)
		}
	}
}

func TestParseSyntaxErrorUnexpectedToken(t *testing.T) {
	_, err := NewParser().Parse(")\n", "test")
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a *SyntaxError", err)
	}
}
