package debug

import (
	"strconv"
	"strings"
)

// Breakpoint conditions are closed predicates of the form
//
//	path op literal
//
// where path is a dotted lookup into the break context ("tool_name",
// "state.iteration"), op is one of ==, !=, <, <=, >, >=, contains, and
// literal is a quoted string, a number, or true/false. There is no way to
// execute code from a condition. Anything that does not parse, or a path
// that does not resolve, evaluates to false.

// operators ordered longest first so "<=" wins over "<".
var operators = []string{"contains", "==", "!=", "<=", ">=", "<", ">"}

func evalCondition(cond string, ctx map[string]any) bool {
	path, op, lit, ok := splitCondition(cond)
	if !ok {
		return false
	}
	value, ok := resolvePath(ctx, path)
	if !ok {
		return false
	}
	return compare(value, op, lit)
}

// splitCondition finds the operator and returns the trimmed path and literal.
func splitCondition(cond string) (path, op, lit string, ok bool) {
	for _, candidate := range operators {
		idx := strings.Index(cond, " "+candidate+" ")
		if idx < 0 {
			continue
		}
		path = strings.TrimSpace(cond[:idx])
		lit = strings.TrimSpace(cond[idx+len(candidate)+2:])
		if path == "" || lit == "" {
			return "", "", "", false
		}
		return path, candidate, lit, true
	}
	return "", "", "", false
}

// resolvePath walks dotted map keys.
func resolvePath(ctx map[string]any, path string) (any, bool) {
	var value any = ctx
	for _, seg := range strings.Split(path, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return value, true
}

func compare(value any, op, lit string) bool {
	switch op {
	case "contains":
		s, ok := value.(string)
		if !ok {
			return false
		}
		needle, ok := parseString(lit)
		if !ok {
			return false
		}
		return strings.Contains(s, needle)

	case "==", "!=":
		eq, ok := equals(value, lit)
		if !ok {
			return false
		}
		if op == "!=" {
			return !eq
		}
		return eq

	case "<", "<=", ">", ">=":
		vf, ok := toFloat(value)
		if !ok {
			return false
		}
		lf, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return false
		}
		switch op {
		case "<":
			return vf < lf
		case "<=":
			return vf <= lf
		case ">":
			return vf > lf
		default:
			return vf >= lf
		}
	}
	return false
}

func equals(value any, lit string) (eq, ok bool) {
	if s, isStr := parseString(lit); isStr {
		vs, isVS := value.(string)
		return isVS && vs == s, true
	}
	if lit == "true" || lit == "false" {
		vb, isB := value.(bool)
		return isB && vb == (lit == "true"), true
	}
	if lf, err := strconv.ParseFloat(lit, 64); err == nil {
		vf, isNum := toFloat(value)
		return isNum && vf == lf, true
	}
	return false, false
}

// parseString strips matching single or double quotes.
func parseString(lit string) (string, bool) {
	if len(lit) < 2 {
		return "", false
	}
	first, last := lit[0], lit[len(lit)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return lit[1 : len(lit)-1], true
	}
	return "", false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	return 0, false
}
