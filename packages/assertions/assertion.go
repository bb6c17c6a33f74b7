package assertions

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hostfetch/packages/capture"
)

// Operator is a comparison applied to the subject's value.
type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpMatches
	OpExists
	OpNotExists
	OpLength
	OpIncludes
	OpIn
	OpType
	OpSchema
)

var operatorNames = map[string]Operator{
	"==":         OpEquals,
	"!=":         OpNotEquals,
	">":          OpGreaterThan,
	">=":         OpGreaterOrEqual,
	"<":          OpLessThan,
	"<=":         OpLessOrEqual,
	"contains":   OpContains,
	"!contains":  OpNotContains,
	"startsWith": OpStartsWith,
	"endsWith":   OpEndsWith,
	"matches":    OpMatches,
	"exists":     OpExists,
	"!exists":    OpNotExists,
	"length":     OpLength,
	"includes":   OpIncludes,
	"in":         OpIn,
	"type":       OpType,
	"schema":     OpSchema,
}

func (op Operator) String() string {
	for name, o := range operatorNames {
		if o == op {
			return name
		}
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// takesValue reports whether the operator needs a right-hand side
func (op Operator) takesValue() bool {
	return op != OpExists && op != OpNotExists
}

// Assertion is one parsed expectation.
type Assertion struct {
	Subject  string
	Expr     capture.Expression
	Operator Operator
	Expected any
}

func (a *Assertion) String() string {
	if !a.Operator.takesValue() {
		return a.Subject + " " + a.Operator.String()
	}
	return fmt.Sprintf("%s %s %v", a.Subject, a.Operator, a.Expected)
}

// Parse parses "<subject> <operator> [value]".
func Parse(input string) (*Assertion, error) {
	fields := strings.Fields(input)
	if len(fields) < 2 {
		return nil, fmt.Errorf("expectation %q needs a subject and an operator", input)
	}

	subject := fields[0]
	expr, err := capture.Parse(subject)
	if err != nil {
		return nil, err
	}

	op, ok := operatorNames[fields[1]]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q in %q", fields[1], input)
	}

	a := &Assertion{
		Subject:  subject,
		Expr:     expr,
		Operator: op,
	}

	// the value is everything after the operator, spaces included
	rest := strings.TrimSpace(input)
	rest = strings.TrimSpace(strings.TrimPrefix(rest, subject))
	rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))

	switch {
	case !op.takesValue() && rest != "":
		return nil, fmt.Errorf("operator %s takes no value: %q", fields[1], input)
	case op.takesValue() && rest == "":
		return nil, fmt.Errorf("operator %s needs a value: %q", fields[1], input)
	case op.takesValue():
		a.Expected = parseValue(op, rest)
	}

	return a, nil
}

// ParseAll parses every expectation, stopping at the first error.
func ParseAll(inputs []string) ([]*Assertion, error) {
	parsed := make([]*Assertion, 0, len(inputs))
	for _, in := range inputs {
		a, err := Parse(in)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, a)
	}
	return parsed, nil
}

func parseValue(op Operator, raw string) any {
	// patterns and schema paths are never JSON
	if op == OpMatches || op == OpSchema {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
