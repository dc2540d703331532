// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kshku/hash/ast"
)

// paramValue looks up a single scalar parameter's value, per spec.md
// §4.C.4: named variables, positional parameters, and the special
// parameters (@ * # ? - $ ! 0).
func paramValue(cfg *Config, name string) (value string, isSet bool) {
	if name == "" {
		return "", false
	}
	if isAllDigitsLocal(name) {
		n, _ := strconv.Atoi(name)
		pos := cfg.Env.Positional()
		if n == 0 {
			v, ok := cfg.Env.Special('0')
			return v, ok
		}
		if n < 1 || n > len(pos) {
			return "", false
		}
		return pos[n-1], true
	}
	switch name {
	case "@", "*":
		return strings.Join(cfg.Env.Positional(), ifsJoinSep(cfg)), true
	case "#":
		return strconv.Itoa(len(cfg.Env.Positional())), true
	case "?", "-", "$", "!", "0":
		return cfg.Env.Special(name[0])
	}
	return cfg.Env.Get(name)
}

func ifsJoinSep(cfg *Config) string {
	if cfg.IFS == "" {
		return ""
	}
	return cfg.IFS[:1]
}

// isAlwaysSet reports parameters `set -u` never complains about: the
// special ones that are always considered set, and $@/$*/$# which are
// handled separately from plain scalar lookups.
func isAlwaysSet(name string) bool {
	switch name {
	case "@", "*", "#", "?", "-", "$", "!", "0":
		return true
	}
	return false
}

func isAllDigitsLocal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// expandParamExp resolves one ${...}/$NAME node to its scalar string
// value, applying the ${NAME op word} operator (if any). wordString
// expands an operand word to plain text (used for the default/
// alternate/pattern operands, which themselves may contain further
// expansions).
func expandParamExp(cfg *Config, pe *ast.ParamExp, wordString func(ast.Word) (string, error)) (string, bool, error) {
	if pe.Length {
		v, _ := paramValue(cfg, pe.Param)
		return strconv.Itoa(len([]rune(v))), true, nil
	}

	val, isSet := paramValue(cfg, pe.Param)
	if pe.Exp == nil {
		if !isSet && cfg.NoUnset && !isAlwaysSet(pe.Param) {
			return "", false, &UnboundError{Name: pe.Param, Msg: "unbound variable"}
		}
		return val, isSet, nil
	}

	empty := !isSet || val == ""
	trigger := (pe.Exp.Colon && empty) || (!pe.Exp.Colon && !isSet)

	switch pe.Exp.Op {
	case ast.ParDefault:
		if trigger {
			w, err := wordString(pe.Exp.Word)
			return w, true, err
		}
		return val, isSet, nil
	case ast.ParAlt:
		if trigger {
			return "", true, nil
		}
		w, err := wordString(pe.Exp.Word)
		return w, true, err
	case ast.ParAssign:
		if trigger {
			w, err := wordString(pe.Exp.Word)
			if err != nil {
				return "", false, err
			}
			if err := cfg.Env.Set(pe.Param, w); err != nil {
				return "", false, err
			}
			return w, true, nil
		}
		return val, isSet, nil
	case ast.ParError:
		if trigger {
			msg, _ := wordString(pe.Exp.Word)
			if msg == "" {
				msg = "parameter null or not set"
			}
			return "", false, &UnboundError{Name: pe.Param, Msg: msg}
		}
		return val, isSet, nil
	case ast.ParRemSmallPrefix, ast.ParRemLargePrefix, ast.ParRemSmallSuffix, ast.ParRemLargeSuffix:
		pat, err := wordString(pe.Exp.Word)
		if err != nil {
			return "", false, err
		}
		return trimByPattern(val, pat, pe.Exp.Op), isSet, nil
	}
	return val, isSet, nil
}

// UnboundError is raised by ${NAME?word} and by `set -u` references to
// an unset variable.
type UnboundError struct {
	Name string
	Msg  string
}

func (e *UnboundError) Error() string { return fmt.Sprintf("%s: %s", e.Name, e.Msg) }
