package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/hostfetch/packages/capture"
	"github.com/abdul-hamid-achik/hostfetch/packages/http"
)

type Result struct {
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
}

type Evaluator struct {
	extractor *capture.Extractor
	baseDir   string // schema paths resolve against it and may not leave it
}

type EvaluatorOption func(*Evaluator)

// WithBaseDir confines schema files to dir.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

func NewEvaluator(env *http.Envelope, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		extractor: capture.NewExtractor(env),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Evaluate(a *Assertion) *Result {
	result := &Result{
		Subject:  a.Subject,
		Operator: a.Operator.String(),
		Expected: a.Expected,
	}

	actual, _ := e.extractor.Extract(a.Expr)
	result.Actual = actual

	result.Passed, result.Message = e.compare(actual, a.Operator, a.Expected)

	if a.Operator == OpLength {
		result.Actual = computeLength(actual)
	}
	return result
}

// EvaluateAll evaluates every assertion against env.
func EvaluateAll(env *http.Envelope, assertions []*Assertion, opts ...EvaluatorOption) []*Result {
	evaluator := NewEvaluator(env, opts...)
	results := make([]*Result, len(assertions))
	for i, a := range assertions {
		results[i] = evaluator.Evaluate(a)
	}
	return results
}

// AllPassed reports whether no result failed.
func AllPassed(results []*Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func (e *Evaluator) compare(actual any, op Operator, expected any) (bool, string) {
	switch op {
	case OpEquals:
		return equals(actual, expected)
	case OpNotEquals:
		if passed, _ := equals(actual, expected); passed {
			return false, fmt.Sprintf("expected not to equal %v", expected)
		}
		return true, ""
	case OpGreaterThan:
		return compareNumeric(actual, expected, ">")
	case OpGreaterOrEqual:
		return compareNumeric(actual, expected, ">=")
	case OpLessThan:
		return compareNumeric(actual, expected, "<")
	case OpLessOrEqual:
		return compareNumeric(actual, expected, "<=")
	case OpContains:
		return contains(actual, expected)
	case OpNotContains:
		if passed, _ := contains(actual, expected); passed {
			return false, fmt.Sprintf("expected not to contain %v", expected)
		}
		return true, ""
	case OpStartsWith:
		if strings.HasPrefix(stringify(actual), stringify(expected)) {
			return true, ""
		}
		return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
	case OpEndsWith:
		if strings.HasSuffix(stringify(actual), stringify(expected)) {
			return true, ""
		}
		return false, fmt.Sprintf("expected '%v' to end with '%v'", actual, expected)
	case OpMatches:
		return matches(actual, expected)
	case OpExists:
		if actual == nil {
			return false, "expected to exist"
		}
		return true, ""
	case OpNotExists:
		if actual != nil {
			return false, "expected not to exist"
		}
		return true, ""
	case OpLength:
		return length(actual, expected)
	case OpIncludes:
		return includes(actual, expected)
	case OpIn:
		return in(actual, expected)
	case OpType:
		return typeCheck(actual, expected)
	case OpSchema:
		return e.schema(actual, expected)
	default:
		return false, fmt.Sprintf("unknown operator: %v", op)
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if actual != nil && stringify(actual) == stringify(expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func compareNumeric(actual, expected any, op string) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)

	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

func contains(actual, expected any) (bool, string) {
	if actual != nil && strings.Contains(stringify(actual), stringify(expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func matches(actual, expected any) (bool, string) {
	pattern := stringify(expected)
	pattern = strings.TrimPrefix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}

	if actual != nil && re.MatchString(stringify(actual)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern)
}

// computeLength returns the length of a value, or -1 if it has none
func computeLength(actual any) int {
	switch v := actual.(type) {
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		return -1
	}
}

func length(actual, expected any) (bool, string) {
	expectedLen, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}

	actualLen := computeLength(actual)
	if actualLen == -1 {
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}

	if actualLen == expectedLen {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", expectedLen, actualLen)
}

func includes(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}

	for _, item := range arr {
		if passed, _ := equals(item, expected); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected array to include %v", expected)
}

func in(actual, expected any) (bool, string) {
	arr, ok := expected.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'in' operator, got %T", expected)
	}

	for _, item := range arr {
		if passed, _ := equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func typeCheck(actual, expected any) (bool, string) {
	expectedType := stringify(expected)
	var actualType string

	switch actual.(type) {
	case nil:
		actualType = "null"
	case bool:
		actualType = "boolean"
	case float64, int, int64:
		actualType = "number"
	case string:
		actualType = "string"
	case []any:
		actualType = "array"
	case map[string]any:
		actualType = "object"
	default:
		actualType = reflect.TypeOf(actual).String()
	}

	if actualType == expectedType {
		return true, ""
	}
	return false, fmt.Sprintf("expected type %s, got %s", expectedType, actualType)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
	}
	return 0, false
}

// validatePathWithinBase checks that path stays within baseDir
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

func (e *Evaluator) schema(actual, expected any) (bool, string) {
	schemaPath := stringify(expected)
	if !filepath.IsAbs(schemaPath) && e.baseDir != "" {
		schemaPath = filepath.Join(e.baseDir, schemaPath)
	}

	if err := validatePathWithinBase(schemaPath, e.baseDir); err != nil {
		return false, err.Error()
	}

	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		return false, fmt.Sprintf("failed to read schema file: %v", err)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		return false, fmt.Sprintf("failed to marshal actual value: %v", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(actualJSON),
	)
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}

	if result.Valid() {
		return true, ""
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(errors, "; "))
}
