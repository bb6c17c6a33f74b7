package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hostfetch/packages/assertions"
	"github.com/abdul-hamid-achik/hostfetch/packages/history"
	"github.com/abdul-hamid-achik/hostfetch/packages/http"
)

// formatValue truncates long values for single-line display
func formatValue(v string, maxLen int) string {
	if utf8.RuneCountInString(v) <= maxLen {
		return v
	}
	runes := []rune(v)
	return string(runes[:maxLen]) + "..."
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose prints response headers and timing before the body.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func statusColor(status int) *color.Color {
	switch {
	case status >= 500:
		return color.New(color.FgRed, color.Bold)
	case status >= 400:
		return color.New(color.FgRed)
	case status >= 300:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func (f *ConsoleFormatter) FormatEnvelope(env *http.Envelope) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	if f.verbose {
		fmt.Fprintf(f.writer, "%s %s\n", statusColor(env.Status).Sprintf("%d", env.Status), cyan(fmt.Sprintf("(%dms)", env.DurationMs())))

		names := make([]string, 0, len(env.Headers))
		for name := range env.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(f.writer, "%s %s\n", faint(name+":"), env.Headers[name])
		}
		fmt.Fprintln(f.writer)
	}

	if env.IsBase64 {
		raw, err := env.Bytes()
		if err != nil {
			return fmt.Errorf("decode body: %w", err)
		}
		fmt.Fprintf(f.writer, "%s\n", faint(fmt.Sprintf("<%d bytes of %s, use --json to get base64>", len(raw), contentTypeOrUnknown(env))))
		return nil
	}

	fmt.Fprint(f.writer, env.Body)
	if env.Body != "" && !strings.HasSuffix(env.Body, "\n") {
		fmt.Fprintln(f.writer)
	}
	return nil
}

func contentTypeOrUnknown(env *http.Envelope) string {
	if ct := env.ContentType(); ct != "" {
		return ct
	}
	return "unknown type"
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	if kind, ok := http.KindOf(err); ok {
		fmt.Fprintf(f.writer, "%s %v\n", red(fmt.Sprintf("Error (%s):", kind)), err)
		return
	}
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHistory(entries []history.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(f.writer, "No fetches recorded")
		return nil
	}

	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	for _, e := range entries {
		outcome := red(e.ErrorKind)
		if e.ErrorKind == "" {
			outcome = statusColor(e.Status).Sprintf("%d", e.Status)
		}
		fmt.Fprintf(f.writer, "%s  %-7s %s %s %s\n",
			faint(e.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			e.Method,
			outcome,
			formatValue(e.URL, 80),
			cyan(fmt.Sprintf("(%dms)", e.DurationMs)),
		)
		if f.verbose && e.Error != "" {
			fmt.Fprintf(f.writer, "    %s\n", e.Error)
		}
	}
	return nil
}

// FormatAssertions lists failed expectations. Passing ones are listed only
// in verbose mode.
func (f *ConsoleFormatter) FormatAssertions(results []*assertions.Result) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	failed := 0
	for _, r := range results {
		label := fmt.Sprintf("%s %s", r.Subject, r.Operator)
		if r.Expected != nil {
			label = fmt.Sprintf("%s %v", label, r.Expected)
		}
		if r.Passed {
			if f.verbose {
				fmt.Fprintf(f.writer, "%s %s\n", green("✓"), label)
			}
			continue
		}
		failed++
		fmt.Fprintf(f.writer, "%s %s: %s\n", red("✗"), label, r.Message)
	}

	if failed > 0 {
		fmt.Fprintf(f.writer, "%s\n", red(fmt.Sprintf("%d of %d expectations failed", failed, len(results))))
	}
	return nil
}
