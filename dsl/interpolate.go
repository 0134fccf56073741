package dsl

import (
	"fmt"
	"strings"
)

// Interpolate replaces ${name} references in strings with run variables.
// Maps and slices are walked recursively and copied; other values are
// returned as is. A string that is exactly one reference keeps the
// variable's type. Unknown references are left untouched.
func Interpolate(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		return interpolateString(val, vars)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Interpolate(item, vars)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Interpolate(item, vars)
		}
		return out
	default:
		return v
	}
}

// InterpolateParams interpolates every value of params.
func InterpolateParams(params map[string]any, vars map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = Interpolate(v, vars)
	}
	return out
}

func interpolateString(s string, vars map[string]any) any {
	if !strings.Contains(s, "${") {
		return s
	}
	if strings.HasPrefix(s, "${") && strings.Index(s, "}") == len(s)-1 {
		if v, ok := resolvePath(s[2:len(s)-1], vars); ok {
			return v
		}
		return s
	}

	var sb strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start == -1 {
			sb.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end == -1 {
			sb.WriteString(rest)
			break
		}
		ref := rest[start+2 : start+end]
		sb.WriteString(rest[:start])
		if v, ok := resolvePath(ref, vars); ok {
			sb.WriteString(fmt.Sprint(v))
		} else {
			sb.WriteString(rest[start : start+end+1])
		}
		rest = rest[start+end+1:]
	}
	return sb.String()
}

// resolvePath follows a dot path such as "user.name" through nested maps.
func resolvePath(path string, vars map[string]any) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	var current any = vars
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// VariableRefs returns the ${name} references in s, in order.
func VariableRefs(s string) []string {
	var refs []string
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			break
		}
		refs = append(refs, strings.TrimSpace(s[start+2:start+end]))
		s = s[start+end+1:]
	}
	return refs
}
