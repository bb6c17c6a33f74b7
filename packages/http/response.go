package http

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// Envelope is the normalized, serializable form of a response.
type Envelope struct {
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers"`
	Body     string            `json:"body"`
	IsBase64 bool              `json:"is_base64"`

	// Duration is the time from send to fully read body. It is not part of
	// the wire form.
	Duration time.Duration `json:"-"`
}

// Bytes returns the raw body, decoding base64 when IsBase64 is set.
func (e *Envelope) Bytes() ([]byte, error) {
	if !e.IsBase64 {
		return []byte(e.Body), nil
	}
	return base64.StdEncoding.DecodeString(e.Body)
}

func (e *Envelope) Header(name string) string {
	return e.Headers[strings.ToLower(name)]
}

func (e *Envelope) ContentType() string {
	return e.Header("content-type")
}

func (e *Envelope) IsJSON() bool {
	return !e.IsBase64 && strings.HasPrefix(strings.ToLower(e.ContentType()), "application/json")
}

func (e *Envelope) IsSuccess() bool {
	return e.Status >= 200 && e.Status < 300
}

func (e *Envelope) IsRedirect() bool {
	return e.Status >= 300 && e.Status < 400
}

func (e *Envelope) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

func (e *Envelope) IsServerError() bool {
	return e.Status >= 500
}

func (e *Envelope) DurationMs() int64 {
	return e.Duration.Milliseconds()
}

// Marshal encodes the envelope in its wire form.
func (e *Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, internalError("serialize", err)
	}
	return data, nil
}

// ParseEnvelope decodes the wire form produced by Marshal.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Headers == nil {
		env.Headers = map[string]string{}
	}
	return &env, nil
}
