package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hostfetch/packages/http"
)

func jsonEnvelope() *http.Envelope {
	return &http.Envelope{
		Status: 200,
		Headers: map[string]string{
			"content-type": "application/json; charset=utf-8",
			"x-request-id": "abc-123",
		},
		Body:     `{"user":{"id":7,"name":"ada","tags":["a","b"]},"ok":true}`,
		Duration: 42 * time.Millisecond,
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr    string
		want    Expression
		wantErr bool
	}{
		{expr: "status", want: Expression{Source: SourceStatus}},
		{expr: " duration ", want: Expression{Source: SourceDuration}},
		{expr: "header.Content-Type", want: Expression{Source: SourceHeader, Path: "Content-Type"}},
		{expr: "body", want: Expression{Source: SourceBody}},
		{expr: "body.user.name", want: Expression{Source: SourceBody, Path: "user.name"}},
		{expr: "status.code", wantErr: true},
		{expr: "header", wantErr: true},
		{expr: "header.", wantErr: true},
		{expr: "body.", wantErr: true},
		{expr: "cookies.session", wantErr: true},
		{expr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractor_Extract(t *testing.T) {
	e := NewExtractor(jsonEnvelope())

	v, ok := e.Extract(Expression{Source: SourceStatus})
	assert.True(t, ok)
	assert.Equal(t, 200, v)

	v, ok = e.Extract(Expression{Source: SourceDuration})
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	v, ok = e.Extract(Expression{Source: SourceHeader, Path: "X-Request-ID"})
	assert.True(t, ok)
	assert.Equal(t, "abc-123", v)

	_, ok = e.Extract(Expression{Source: SourceHeader, Path: "x-missing"})
	assert.False(t, ok)

	v, ok = e.Extract(Expression{Source: SourceBody, Path: "user.id"})
	assert.True(t, ok)
	assert.Equal(t, float64(7), v)

	_, ok = e.Extract(Expression{Source: SourceBody, Path: "user.email"})
	assert.False(t, ok)
}

func TestExtractor_NonJSONBody(t *testing.T) {
	env := &http.Envelope{
		Status:  200,
		Headers: map[string]string{"content-type": "text/plain"},
		Body:    "plain text",
	}
	e := NewExtractor(env)

	v, ok := e.Extract(Expression{Source: SourceBody})
	assert.True(t, ok)
	assert.Equal(t, "plain text", v)

	_, ok = e.Extract(Expression{Source: SourceBody, Path: "field"})
	assert.False(t, ok)
}

func TestSelect(t *testing.T) {
	env := jsonEnvelope()

	tests := []struct {
		expr string
		want string
	}{
		{"status", "200"},
		{"duration", "42"},
		{"header.x-request-id", "abc-123"},
		{"body.user.name", "ada"},
		{"body.user.id", "7"},
		{"body.ok", "true"},
		{"body.user.tags", `["a","b"]`},
		{"body.user", `{"id":7,"name":"ada","tags":["a","b"]}`},
		{"body", env.Body},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Select(env, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Select(env, "body.nothing")
	assert.Error(t, err)

	_, err = Select(env, "bogus")
	assert.Error(t, err)
}

func TestSelect_Base64Body(t *testing.T) {
	env := &http.Envelope{
		Status:   200,
		Headers:  map[string]string{"content-type": "image/png"},
		Body:     "iVBORw==",
		IsBase64: true,
	}

	got, err := Select(env, "body")
	require.NoError(t, err)
	assert.Equal(t, "iVBORw==", got)
}

func TestExtractAll(t *testing.T) {
	results, err := ExtractAll(jsonEnvelope(), map[string]string{
		"id":      "body.user.id",
		"status":  "status",
		"missing": "header.x-none",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": float64(7), "status": 200}, results)

	_, err = ExtractAll(jsonEnvelope(), map[string]string{"bad": "nope"})
	assert.Error(t, err)
}
