package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hostfetch/packages/assertions"
	"github.com/abdul-hamid-achik/hostfetch/packages/capture"
	"github.com/abdul-hamid-achik/hostfetch/packages/core/config"
	"github.com/abdul-hamid-achik/hostfetch/packages/curl"
	"github.com/abdul-hamid-achik/hostfetch/packages/history"
	"github.com/abdul-hamid-achik/hostfetch/packages/http"
	"github.com/abdul-hamid-achik/hostfetch/packages/output"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Execute one HTTP request and print the response",
	Long: `Execute one HTTP request and print the response.

Text bodies (text/*, application/json or no content-type) print as-is;
anything else is summarized on the console and base64-encoded in --output json.

Examples:
  hostfetch fetch https://api.example.com/users
  hostfetch fetch -X POST -H "Content-Type: application/json" -d '{"name":"ada"}' https://api.example.com/users
  hostfetch fetch -d @payload.bin -H "Content-Type: application/octet-stream" https://api.example.com/upload
  hostfetch fetch --redirect manual https://example.com/old
  hostfetch fetch --select body.user.id https://api.example.com/me
  hostfetch fetch --expect "status == 200" --expect "body.items length 3" https://api.example.com/items
  echo '{"url":"https://example.com","method":"GET"}' | hostfetch fetch --descriptor -
  hostfetch fetch --curl "curl -L -H 'Accept: text/html' https://example.com"`,
	Args: cobra.MaximumNArgs(1),
	RunE: fetchCommand,
}

// fetchOptions holds the fetch flags
type fetchOptions struct {
	method       string
	headers      []string
	data         string
	binary       bool
	redirect     string
	referrer     string
	timeout      string
	maxRedirects int
	insecure     bool
	descriptor   string
	curl         string
	output       string
	selectExpr   string
	expect       []string
	config       string
	history      string
	verbose      bool
	noColor      bool
}

var fetchOpts fetchOptions

func init() {
	f := fetchCmd.Flags()
	f.StringVarP(&fetchOpts.method, "request", "X", "", "HTTP method (default GET, or POST when --data is set)")
	f.StringArrayVarP(&fetchOpts.headers, "header", "H", nil, `Request header "Name: value" (repeatable)`)
	f.StringVarP(&fetchOpts.data, "data", "d", "", "Request body; @file reads it from a file")
	f.BoolVar(&fetchOpts.binary, "binary", false, "Treat the body as binary (--data is base64, @file is sent raw)")
	f.StringVar(&fetchOpts.redirect, "redirect", "follow", "Redirect policy: follow or manual")
	f.StringVar(&fetchOpts.referrer, "referrer", "", "Referer header value")
	f.StringVar(&fetchOpts.timeout, "timeout", getEnvString("HOSTFETCH_TIMEOUT", ""), "Request timeout (e.g., 5s, 1m) (env: HOSTFETCH_TIMEOUT)")
	f.IntVar(&fetchOpts.maxRedirects, "max-redirects", 0, "Maximum redirects to follow (default from config)")
	f.BoolVarP(&fetchOpts.insecure, "insecure", "k", getEnvBool("HOSTFETCH_INSECURE", false), "Disable SSL certificate validation (env: HOSTFETCH_INSECURE)")
	f.StringVar(&fetchOpts.descriptor, "descriptor", "", "Read a JSON request descriptor from a file (- for stdin)")
	f.StringVar(&fetchOpts.curl, "curl", "", "Build the request from a curl command line")
	f.StringVarP(&fetchOpts.output, "output", "o", getEnvString("HOSTFETCH_OUTPUT", "console"), "Output format: console, json (env: HOSTFETCH_OUTPUT)")
	f.StringVarP(&fetchOpts.selectExpr, "select", "s", "", "Print one value: status, duration, header.<name>, body or body.<path>")
	f.StringArrayVar(&fetchOpts.expect, "expect", nil, `Check the response, e.g. "status == 200" (repeatable, exit 1 on failure)`)
	f.StringVar(&fetchOpts.config, "config", getEnvString("HOSTFETCH_CONFIG", ""), "Path to config file (env: HOSTFETCH_CONFIG)")
	f.StringVar(&fetchOpts.history, "history", getEnvString("HOSTFETCH_HISTORY", ""), "Record the fetch in this SQLite database (env: HOSTFETCH_HISTORY)")
	f.BoolVarP(&fetchOpts.verbose, "verbose", "v", false, "Print status, headers and timing")
	f.BoolVar(&fetchOpts.noColor, "no-color", getEnvBool("HOSTFETCH_NO_COLOR", false), "Disable colored output (env: HOSTFETCH_NO_COLOR)")
}

func fetchCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return runFetch(ctx, &fetchOpts, args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// overrides turns explicitly set flags into a config layered over the file
func (o *fetchOptions) overrides() (*config.Config, error) {
	override := &config.Config{
		MaxRedirects: o.maxRedirects,
		History:      o.history,
	}
	if o.timeout != "" {
		d, err := time.ParseDuration(o.timeout)
		if err != nil {
			return nil, usageError(fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", o.timeout, err))
		}
		if d <= 0 {
			return nil, usageError(fmt.Errorf("timeout must be positive, got %s", o.timeout))
		}
		override.Timeout = int(d.Milliseconds())
	}
	if o.insecure {
		override.ValidateSSL = config.BoolPtr(false)
	}
	if o.verbose {
		override.Verbose = config.BoolPtr(true)
	}
	if o.noColor {
		override.NoColor = config.BoolPtr(true)
	}
	return override, nil
}

// buildDescriptor assembles the request from flags, from a descriptor
// document (--descriptor) or from a curl command line (--curl).
func (o *fetchOptions) buildDescriptor(args []string, stdin io.Reader) (*http.Descriptor, error) {
	if o.curl != "" {
		if len(args) > 0 || o.descriptor != "" {
			return nil, usageError(fmt.Errorf("--curl cannot be combined with a URL argument or --descriptor"))
		}
		parsed, err := curl.Parse(o.curl)
		if err != nil {
			return nil, usageError(fmt.Errorf("invalid curl command: %w", err))
		}
		// -k applies to the client
		if parsed.Insecure {
			o.insecure = true
		}
		return parsed.Descriptor, nil
	}

	if o.descriptor != "" {
		if len(args) > 0 {
			return nil, usageError(fmt.Errorf("a URL argument cannot be combined with --descriptor"))
		}
		data, err := readSource(o.descriptor, stdin)
		if err != nil {
			return nil, usageError(fmt.Errorf("failed to read descriptor: %w", err))
		}
		return http.DecodeDescriptor(data)
	}

	if len(args) != 1 {
		return nil, usageError(fmt.Errorf("a URL is required (or use --descriptor)"))
	}

	method := strings.TrimSpace(o.method)
	if method == "" {
		method = "GET"
		if o.data != "" {
			method = "POST"
		}
	}
	d := http.NewDescriptor(method, args[0])

	for _, line := range o.headers {
		h, err := http.ParseHeaderLine(line)
		if err != nil {
			return nil, usageError(err)
		}
		d.SetHeader(h.Name, h.Value)
	}

	if o.data != "" {
		if err := o.applyBody(d, stdin); err != nil {
			return nil, err
		}
	}

	switch o.redirect {
	case "", "follow":
	case http.RedirectManual:
		d.SetRedirect(http.RedirectManual)
	default:
		return nil, usageError(fmt.Errorf("invalid redirect policy %q (use follow or manual)", o.redirect))
	}

	if o.referrer != "" {
		d.SetReferrer(o.referrer)
	}
	return d, nil
}

func (o *fetchOptions) applyBody(d *http.Descriptor, stdin io.Reader) error {
	if !strings.HasPrefix(o.data, "@") {
		if o.binary {
			// already base64; it is checked when the request is built
			d.SetBody(o.data)
			d.IsBodyBinary = true
			return nil
		}
		d.SetBody(o.data)
		return nil
	}

	raw, err := readSource(strings.TrimPrefix(o.data, "@"), stdin)
	if err != nil {
		return usageError(fmt.Errorf("failed to read body: %w", err))
	}
	if o.binary || !utf8.Valid(raw) {
		d.SetBinaryBody(raw)
		return nil
	}
	d.SetBody(string(raw))
	return nil
}

// readSource reads a file, or stdin when path is "-"
func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func runFetch(ctx context.Context, o *fetchOptions, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fileConfig, _, err := loadConfig(o.config)
	if err != nil {
		return err
	}
	d, err := o.buildDescriptor(args, stdin)
	if err != nil {
		return err
	}
	expectations, err := assertions.ParseAll(o.expect)
	if err != nil {
		return usageError(err)
	}
	override, err := o.overrides()
	if err != nil {
		return err
	}
	cfg := fileConfig.Merge(override)

	formatter, err := output.New(o.output, stdout, cfg.GetVerbose(), cfg.GetNoColor())
	if err != nil {
		return usageError(err)
	}
	errFormatter, _ := output.New(o.output, stderr, cfg.GetVerbose(), cfg.GetNoColor())

	prov, err := initTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer prov.Shutdown(context.Background())

	client := newClient(cfg, prov)

	logger := log.New(stderr, "", 0)
	if cfg.GetVerbose() {
		logger.Printf("> %s %s", d.Method, d.URL)
		for _, h := range d.Headers {
			logger.Printf("> %s: %s", h.Name, h.Value)
		}
	}

	start := time.Now()
	env, err := client.Execute(ctx, d)
	elapsed := time.Since(start)

	if cfg.History != "" {
		recordHistory(ctx, cfg.History, history.NewEntry(d, env, err, elapsed), logger)
	}

	if err != nil {
		errFormatter.FormatError(err)
		return &exitError{code: exitCodeFor(err), err: err, reported: true}
	}

	if o.selectExpr != "" {
		value, err := capture.Select(env, o.selectExpr)
		if err != nil {
			return usageError(err)
		}
		fmt.Fprintln(stdout, value)
	} else if err := formatter.FormatEnvelope(env); err != nil {
		return &exitError{code: ExitInternalError, err: err}
	}

	if len(expectations) == 0 {
		return nil
	}
	results := assertions.EvaluateAll(env, expectations)
	if err := errFormatter.FormatAssertions(results); err != nil {
		return &exitError{code: ExitInternalError, err: err}
	}
	if !assertions.AllPassed(results) {
		return &exitError{code: ExitFailure, err: fmt.Errorf("response did not meet expectations"), reported: true}
	}
	return nil
}

func recordHistory(ctx context.Context, path string, entry history.Entry, logger *log.Logger) {
	store, err := history.Open(path)
	if err != nil {
		logger.Printf("Warning: %v", err)
		return
	}
	defer store.Close()

	if _, err := store.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Printf("Warning: %v", err)
	}
}
