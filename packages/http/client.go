package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/abdul-hamid-achik/hostfetch/packages/tracing"
)

const (
	// DefaultTimeout bounds a whole exchange when neither the client nor the
	// descriptor sets one.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the hop bound of the follow policy
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Client executes descriptors. It holds configuration only; every call
// assembles its own http.Client around the shared transport, so a Client is
// safe for concurrent use.
type Client struct {
	transport      http.RoundTripper
	timeout        time.Duration
	maxRedirects   int
	validateSSL    bool
	defaultHeaders []Header
	tracer         trace.Tracer
	propagate      bool
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:      DefaultTimeout,
		maxRedirects: DefaultMaxRedirects,
		validateSSL:  true,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		transport := &http.Transport{
			MaxIdleConns:        DefaultMaxIdleConns,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		}
		if !c.validateSSL {
			transport.TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}
		c.transport = transport
	}

	if c.tracer == nil {
		c.tracer = tracing.DefaultTracer()
	}

	return c
}

// WithTimeout sets the default per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

// WithValidateSSL enables or disables certificate validation. It has no
// effect when WithTransport is used.
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

func WithDefaultHeader(name, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders = append(c.defaultHeaders, Header{Name: name, Value: value})
	}
}

// WithDefaultHeaders adds headers sent before the descriptor's own headers.
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders = append(c.defaultHeaders, Header{Name: k, Value: v})
		}
	}
}

// WithTransport replaces the round tripper. The transport owns connection
// pooling.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

func WithTracer(tracer trace.Tracer) ClientOption {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithPropagation injects W3C trace context into outgoing headers.
func WithPropagation(enabled bool) ClientOption {
	return func(c *Client) {
		c.propagate = enabled
	}
}

// Execute performs the request described by d and returns its envelope.
// Construction errors are returned before any network I/O.
func (c *Client) Execute(ctx context.Context, d *Descriptor) (*Envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := c.timeout
	if d != nil && d.Timeout() > 0 {
		timeout = d.Timeout()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := buildRequest(ctx, d, c.defaultHeaders)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartFetchSpan(ctx, c.tracer, req.Method, req.URL.String())
	req = req.WithContext(ctx)
	if c.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	env, err := c.send(req, d.FollowsRedirects())
	if err != nil {
		kind, _ := KindOf(err)
		tracing.EndSpan(span, err, attribute.String("hostfetch.error.kind", kind.String()))
		return nil, err
	}
	tracing.EndSpan(span, nil,
		attribute.Int("http.response.status_code", env.Status),
		attribute.Bool("hostfetch.body.base64", env.IsBase64),
	)
	return env, nil
}

// Fetch executes d and returns the envelope in its wire form.
func (c *Client) Fetch(ctx context.Context, d *Descriptor) (string, error) {
	env, err := c.Execute(ctx, d)
	if err != nil {
		return "", err
	}
	data, err := env.Marshal()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) send(req *http.Request, follow bool) (*Envelope, error) {
	client := &http.Client{
		Transport:     c.transport,
		CheckRedirect: c.redirectPolicy(follow),
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	headers := collectHeaders(resp.Header)
	env := &Envelope{
		Status:  resp.StatusCode,
		Headers: headers,
	}

	switch ClassifyBody(headers["content-type"]) {
	case BodyBinary:
		env.Body = readBase64(resp.Body)
		env.IsBase64 = true
	default:
		env.Body = readText(resp.Body)
	}
	env.Duration = time.Since(start)

	return env, nil
}

func (c *Client) redirectPolicy(follow bool) func(*http.Request, []*http.Request) error {
	if !follow {
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	max := c.maxRedirects
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}

func (c *Client) Get(ctx context.Context, url string) (*Envelope, error) {
	return c.Execute(ctx, NewDescriptor(http.MethodGet, url))
}

func (c *Client) Post(ctx context.Context, url, body string, headers ...Header) (*Envelope, error) {
	d := NewDescriptor(http.MethodPost, url).SetBody(body)
	d.Headers = append(d.Headers, headers...)
	return c.Execute(ctx, d)
}
