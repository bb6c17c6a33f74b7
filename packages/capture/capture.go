package capture

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hostfetch/packages/http"
)

// Source names the part of an envelope an expression reads.
type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
)

// Expression is a parsed capture expression.
type Expression struct {
	Source Source
	Path   string
}

// Parse parses "status", "duration", "header.<name>", "body" or "body.<path>".
func Parse(expr string) (Expression, error) {
	expr = strings.TrimSpace(expr)
	head, rest, hasRest := strings.Cut(expr, ".")

	switch head {
	case "status":
		if hasRest {
			return Expression{}, fmt.Errorf("status takes no path: %q", expr)
		}
		return Expression{Source: SourceStatus}, nil
	case "duration":
		if hasRest {
			return Expression{}, fmt.Errorf("duration takes no path: %q", expr)
		}
		return Expression{Source: SourceDuration}, nil
	case "header":
		if !hasRest || rest == "" {
			return Expression{}, fmt.Errorf("header expression needs a name: %q", expr)
		}
		return Expression{Source: SourceHeader, Path: rest}, nil
	case "body":
		if hasRest && rest == "" {
			return Expression{}, fmt.Errorf("empty body path: %q", expr)
		}
		return Expression{Source: SourceBody, Path: rest}, nil
	default:
		return Expression{}, fmt.Errorf("unknown capture source %q (use status, duration, header.<name> or body[.<path>])", head)
	}
}

type Extractor struct {
	envelope *http.Envelope
	bodyJSON gjson.Result
}

func NewExtractor(env *http.Envelope) *Extractor {
	e := &Extractor{
		envelope: env,
	}
	if env.IsJSON() && gjson.Valid(env.Body) {
		e.bodyJSON = gjson.Parse(env.Body)
	}
	return e
}

func (e *Extractor) Extract(expr Expression) (any, bool) {
	switch expr.Source {
	case SourceBody:
		return e.extractFromBody(expr.Path)
	case SourceHeader:
		return e.extractFromHeader(expr.Path)
	case SourceStatus:
		return e.envelope.Status, true
	case SourceDuration:
		return e.envelope.DurationMs(), true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.envelope.Body, true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value, ok := e.envelope.Headers[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return value, true
}

// Select evaluates expr against env and renders the value as text. Strings
// come back unquoted; objects and arrays come back as their raw JSON.
func Select(env *http.Envelope, expr string) (string, error) {
	parsed, err := Parse(expr)
	if err != nil {
		return "", err
	}

	extractor := NewExtractor(env)
	if parsed.Source == SourceBody && parsed.Path != "" && extractor.bodyJSON.Exists() {
		result := extractor.bodyJSON.Get(parsed.Path)
		if !result.Exists() {
			return "", fmt.Errorf("no value at %q", expr)
		}
		if result.IsObject() || result.IsArray() {
			return result.Raw, nil
		}
		return result.String(), nil
	}

	value, ok := extractor.Extract(parsed)
	if !ok {
		return "", fmt.Errorf("no value at %q", expr)
	}
	if parsed.Source == SourceBody && extractor.bodyJSON.Exists() {
		return extractor.bodyJSON.Raw, nil
	}
	return fmt.Sprint(value), nil
}

// ExtractAll evaluates named expressions and keeps those that resolve.
func ExtractAll(env *http.Envelope, exprs map[string]string) (map[string]any, error) {
	extractor := NewExtractor(env)
	results := make(map[string]any)

	for name, raw := range exprs {
		expr, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", name, err)
		}
		if value, ok := extractor.Extract(expr); ok {
			results[name] = value
		}
	}

	return results, nil
}
