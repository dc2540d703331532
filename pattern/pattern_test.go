// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package pattern

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

var regexpTests = []struct {
	pat     string
	mode    Mode
	want    string
	wantErr bool

	mustMatch    []string
	mustNotMatch []string
}{
	{pat: ``, want: `(?s)`},
	{pat: `foo`, want: `(?s)foo`},
	{pat: `foóà中`, want: `(?s)foóà中`},
	{pat: `.`, want: `(?s)\.`},
	{pat: `foo*`, want: `(?s)foo.*`},
	{
		pat: `*foo`, mode: EntireString, want: `(?s)^.*foo$`,
		mustMatch:    []string{"foo", "prefix-foo"},
		mustNotMatch: []string{"foo-suffix"},
	},
	{pat: `\*`, want: `(?s)\*`},
	{pat: `\`, wantErr: true},
	{pat: `?`, want: `(?s).`},
	{pat: `?à`, want: `(?s).à`},
	{pat: `\a`, want: `(?s)a`},
	{pat: `(`, want: `(?s)\(`},
	{pat: `a|b`, want: `(?s)a\|b`},
	{pat: `[a]`, want: `(?s)[a]`},
	{pat: `[abc]`, want: `(?s)[abc]`},
	{pat: `[^bc]`, want: `(?s)[^bc]`},
	{pat: `[!bc]`, want: `(?s)[^bc]`},
	{pat: `[[]`, want: `(?s)[[]`},
	{pat: `[\]]`, want: `(?s)[\]]`},
	{pat: `[]]`, want: `(?s)[\]]`},
	{pat: `[`, wantErr: true},
	{pat: `[\`, wantErr: true},
	{pat: `[^`, wantErr: true},
	{pat: `[!`, wantErr: true},
	{pat: `[]`, wantErr: true},
	{pat: `[a-]`, want: `(?s)[a-]`},
	{pat: `[0-4A-Z]`, want: `(?s)[0-4A-Z]`},
	{pat: `[[:digit:]]`, want: `(?s)[[:digit:]]`},
	{pat: `[[:`, wantErr: true},
	{pat: `[[:wrong:]]`, wantErr: true},
}

func TestRegexp(t *testing.T) {
	t.Parallel()
	for i, tc := range regexpTests {
		tc := tc
		t.Run(fmt.Sprintf("%02d", i), func(t *testing.T) {
			got, gotErr := Regexp(tc.pat, tc.mode)
			if tc.wantErr {
				if gotErr == nil {
					t.Fatalf("(%q, %#b) did not error", tc.pat, tc.mode)
				}
				return
			}
			qt.Assert(t, gotErr, qt.IsNil)
			qt.Assert(t, got, qt.Equals, tc.want)

			_, rxErr := syntax.Parse(got, syntax.Perl)
			qt.Assert(t, rxErr, qt.IsNil)

			rx := regexp.MustCompile(got)
			for _, s := range tc.mustMatch {
				qt.Check(t, rx.MatchString(s), qt.IsTrue, qt.Commentf("must match: %q", s))
			}
			for _, s := range tc.mustNotMatch {
				qt.Check(t, rx.MatchString(s), qt.IsFalse, qt.Commentf("must not match: %q", s))
			}
		})
	}
}

var metaTests = []struct {
	pat       string
	wantHas   bool
	wantQuote string
}{
	{``, false, ``},
	{`foo`, false, `foo`},
	{`.`, false, `.`},
	{`*`, true, `\*`},
	{`foo?`, true, `foo\?`},
	{`{`, false, `{`},
}

func TestMeta(t *testing.T) {
	t.Parallel()
	for _, tc := range metaTests {
		qt.Check(t, HasMeta(tc.pat), qt.Equals, tc.wantHas)
		qt.Check(t, QuoteMeta(tc.pat), qt.Equals, tc.wantQuote)
	}
}

func TestCompile(t *testing.T) {
	t.Parallel()
	re, err := Compile("foo*bar", EntireString)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, re.MatchString("foo-baz-bar"), qt.IsTrue)
	qt.Assert(t, re.MatchString("foo-baz-bar-extra"), qt.IsFalse)

	_, err = Compile("[", 0)
	if err == nil {
		t.Fatal("Compile(\"[\", 0) did not error")
	}
	if got, want := err.Error(), `invalid pattern "["`; !strings.Contains(got, want) {
		t.Fatalf("error %q does not mention %q", got, want)
	}
}
