package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/abdul-hamid-achik/hostfetch/packages/assertions"
	"github.com/abdul-hamid-achik/hostfetch/packages/history"
	"github.com/abdul-hamid-achik/hostfetch/packages/http"
)

// JSONFormatter writes envelopes in their wire form, one per line.
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatEnvelope(env *http.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.writer.Write(data)
	return err
}

func (f *JSONFormatter) FormatError(err error) {
	_ = json.NewEncoder(f.writer).Encode(NewErrorJSON(err))
}

func (f *JSONFormatter) FormatHistory(entries []history.Entry) error {
	if entries == nil {
		entries = []history.Entry{}
	}
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}

func (f *JSONFormatter) FormatAssertions(results []*assertions.Result) error {
	if results == nil {
		results = []*assertions.Result{}
	}
	return json.NewEncoder(f.writer).Encode(results)
}
