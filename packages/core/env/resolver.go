package env

import (
	"os"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc receives a message for every reference that could not be resolved
type WarnFunc func(format string, args ...any)

// Resolver expands {{$NAME}} references. Dotenv values take precedence over
// the process environment.
type Resolver struct {
	vars     map[string]string
	lookup   func(string) (string, bool)
	warnFunc WarnFunc
}

func NewResolver(vars map[string]string) *Resolver {
	if vars == nil {
		vars = map[string]string{}
	}
	return &Resolver{
		vars:   vars,
		lookup: os.LookupEnv,
	}
}

func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	if r.warnFunc != nil {
		r.warnFunc(format, args...)
	}
}

// Lookup returns the value of name from the dotenv values or the environment.
func (r *Resolver) Lookup(name string) (string, bool) {
	if v, ok := r.vars[name]; ok {
		return v, true
	}
	return r.lookup(name)
}

// Resolve replaces every {{$NAME}} in input. Expressions without the leading
// $ are not environment references and are kept as they are.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if !strings.HasPrefix(expr, "$") {
			return match
		}

		name := expr[1:]
		if val, ok := r.Lookup(name); ok {
			return val
		}
		r.warn("unresolved environment variable: $%s", name)
		return match
	})
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// HasUnresolved reports whether input still holds a {{$NAME}} reference
// after resolution.
func (r *Resolver) HasUnresolved(input string) bool {
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if !strings.HasPrefix(expr, "$") {
			continue
		}
		if _, ok := r.Lookup(expr[1:]); !ok {
			return true
		}
	}
	return false
}
