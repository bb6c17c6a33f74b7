package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	neturl "net/url"
	"time"
)

// RedirectManual disables automatic redirect following.
const RedirectManual = "manual"

// Descriptor describes one request to perform. The zero value of every
// optional field means "absent".
type Descriptor struct {
	URL          string   `json:"url"`
	Method       string   `json:"method"`
	Body         *string  `json:"body,omitempty"`
	IsBodyBinary bool     `json:"is_body_binary,omitempty"`
	Headers      []Header `json:"headers,omitempty"`
	Redirect     string   `json:"redirect,omitempty"`
	Referrer     string   `json:"referrer,omitempty"`
	TimeoutMs    int      `json:"timeout_ms,omitempty"`
}

func NewDescriptor(method, requestURL string) *Descriptor {
	return &Descriptor{
		Method: method,
		URL:    requestURL,
	}
}

func (d *Descriptor) SetHeader(name, value string) *Descriptor {
	d.Headers = append(d.Headers, Header{Name: name, Value: value})
	return d
}

func (d *Descriptor) SetBody(body string) *Descriptor {
	d.Body = &body
	d.IsBodyBinary = false
	return d
}

// SetBinaryBody stores raw bytes as base64 and marks the body binary.
func (d *Descriptor) SetBinaryBody(body []byte) *Descriptor {
	encoded := base64.StdEncoding.EncodeToString(body)
	d.Body = &encoded
	d.IsBodyBinary = true
	return d
}

func (d *Descriptor) SetRedirect(policy string) *Descriptor {
	d.Redirect = policy
	return d
}

func (d *Descriptor) SetReferrer(referrer string) *Descriptor {
	d.Referrer = referrer
	return d
}

func (d *Descriptor) SetTimeout(t time.Duration) *Descriptor {
	d.TimeoutMs = int(t.Milliseconds())
	return d
}

// maxTimeoutMs is the largest millisecond count a time.Duration can hold.
const maxTimeoutMs = math.MaxInt64 / int64(time.Millisecond)

// Timeout returns the per-call timeout, zero when unset. Values beyond the
// range of time.Duration are clamped.
func (d *Descriptor) Timeout() time.Duration {
	ms := int64(d.TimeoutMs)
	if ms > maxTimeoutMs {
		ms = maxTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// FollowsRedirects reports whether the descriptor uses the default policy.
func (d *Descriptor) FollowsRedirects() bool {
	return d.Redirect != RedirectManual
}

// DecodeDescriptor parses the JSON wire form of a descriptor.
func DecodeDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, invalidRequest("decode", err)
	}
	return &d, nil
}

// ValidateURL checks that a URL is absolute and uses http or https.
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}

// decodeBody returns the payload to send, or nil when there is none.
func (d *Descriptor) decodeBody() ([]byte, error) {
	if d.Body == nil {
		return nil, nil
	}
	if !d.IsBodyBinary {
		return []byte(*d.Body), nil
	}
	raw, err := base64.StdEncoding.DecodeString(*d.Body)
	if err != nil {
		return nil, fmt.Errorf("binary body is not valid base64: %w", err)
	}
	return raw, nil
}

// buildRequest turns a descriptor into an outgoing request. Every check runs
// here so that nothing is sent when any of them fails.
func buildRequest(ctx context.Context, d *Descriptor, defaults []Header) (*http.Request, error) {
	if d == nil {
		return nil, invalidRequest("descriptor", fmt.Errorf("descriptor cannot be nil"))
	}

	if !validMethod(d.Method) {
		return nil, invalidRequest("method", fmt.Errorf("invalid HTTP method %q", d.Method))
	}

	if err := ValidateURL(d.URL); err != nil {
		return nil, invalidRequest("url", err)
	}

	staged := http.Header{}
	for _, h := range FilterHeaders(defaults) {
		staged.Set(h.Name, h.Value)
	}
	if d.Referrer != "" {
		h, ok := ValidateHeader("Referer", d.Referrer)
		if !ok {
			return nil, invalidRequest("referrer", fmt.Errorf("invalid referrer %q", d.Referrer))
		}
		staged.Set(h.Name, h.Value)
	}

	payload, err := d.decodeBody()
	if err != nil {
		return nil, invalidRequest("body", err)
	}

	// Descriptor headers go last so they replace defaults and the referrer.
	for _, h := range FilterHeaders(d.Headers) {
		staged.Set(h.Name, h.Value)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, d.URL, body)
	if err != nil {
		return nil, invalidRequest("build", err)
	}
	for name, values := range staged {
		req.Header[name] = values
	}
	// net/http sends req.Host, not a Host entry in the header map.
	if host := staged.Get("Host"); host != "" {
		req.Host = host
	}

	return req, nil
}
