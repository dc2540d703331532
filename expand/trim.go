// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"github.com/kshku/hash/ast"
	"github.com/kshku/hash/pattern"
)

// trimByPattern implements ${NAME#pat}/${NAME##pat}/${NAME%pat}/
// ${NAME%%pat}, per spec.md §4.C.4: compile pat as a whole-segment
// glob and try candidate prefix/suffix lengths from shortest to
// longest (or the reverse for the "large" operators), keeping the
// first that matches.
func trimByPattern(val, pat string, op ast.ParExpOp) string {
	if pat == "" {
		return val
	}
	re, err := pattern.Compile(pat, pattern.EntireString)
	if err != nil {
		return val
	}

	switch op {
	case ast.ParRemSmallPrefix:
		for k := 0; k <= len(val); k++ {
			if re.MatchString(val[:k]) {
				return val[k:]
			}
		}
	case ast.ParRemLargePrefix:
		for k := len(val); k >= 0; k-- {
			if re.MatchString(val[:k]) {
				return val[k:]
			}
		}
	case ast.ParRemSmallSuffix:
		for m := 0; m <= len(val); m++ {
			if re.MatchString(val[len(val)-m:]) {
				return val[:len(val)-m]
			}
		}
	case ast.ParRemLargeSuffix:
		for m := len(val); m >= 0; m-- {
			if re.MatchString(val[len(val)-m:]) {
				return val[:len(val)-m]
			}
		}
	}
	return val
}
