package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Header is a single request header pair. On the wire it is a two element
// array, ["name", "value"], so that order and duplicates survive encoding.
type Header struct {
	Name  string
	Value string
}

func (h Header) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{h.Name, h.Value})
}

func (h *Header) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("header must be a [name, value] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("header must be a [name, value] pair, got %d elements", len(pair))
	}
	h.Name, h.Value = pair[0], pair[1]
	return nil
}

// ValidateHeader checks a header pair against the RFC 9110 field grammar.
// It returns false instead of an error so callers can drop bad pairs and
// keep going.
func ValidateHeader(name, value string) (Header, bool) {
	if !httpguts.ValidHeaderFieldName(name) {
		return Header{}, false
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return Header{}, false
	}
	return Header{Name: name, Value: value}, true
}

// FilterHeaders applies ValidateHeader over pairs and keeps the valid ones
// in their original order.
func FilterHeaders(pairs []Header) []Header {
	valid := make([]Header, 0, len(pairs))
	for _, p := range pairs {
		if h, ok := ValidateHeader(p.Name, p.Value); ok {
			valid = append(valid, h)
		}
	}
	return valid
}

// ParseHeaderLine parses "Name: value" as written on a command line.
func ParseHeaderLine(line string) (Header, error) {
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return Header{}, fmt.Errorf("invalid header %q: expected \"Name: value\"", line)
	}
	return Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)}, nil
}

// collectHeaders flattens response headers into lowercase names. When a name
// repeats, the last decodable value wins; undecodable values are skipped.
func collectHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		lower := strings.ToLower(name)
		for _, v := range values {
			if !isHeaderText(v) {
				continue
			}
			out[lower] = v
		}
	}
	return out
}

// isHeaderText reports whether v is visible ASCII, space, or tab.
func isHeaderText(v string) bool {
	for i := 0; i < len(v); i++ {
		b := v[i]
		if b == '\t' {
			continue
		}
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return true
}

func validMethod(method string) bool {
	if method == "" {
		return false
	}
	return strings.IndexFunc(method, func(r rune) bool {
		return !httpguts.IsTokenRune(r)
	}) == -1
}
