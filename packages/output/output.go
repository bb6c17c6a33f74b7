package output

import (
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/hostfetch/packages/assertions"
	"github.com/abdul-hamid-achik/hostfetch/packages/history"
	"github.com/abdul-hamid-achik/hostfetch/packages/http"
)

// Formatter renders fetch outcomes.
type Formatter interface {
	FormatEnvelope(env *http.Envelope) error
	FormatError(err error)
	FormatHistory(entries []history.Entry) error
	FormatAssertions(results []*assertions.Result) error
}

// ErrorJSON is the JSON shape of a failed fetch.
type ErrorJSON struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// NewErrorJSON describes err, using "internal" when err carries no kind.
func NewErrorJSON(err error) ErrorJSON {
	kind, ok := http.KindOf(err)
	if !ok {
		kind = http.KindInternal
	}
	return ErrorJSON{Error: err.Error(), Kind: kind.String()}
}

// New returns the formatter registered under name.
func New(name string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch name {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use console or json)", name)
	}
}
