package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// countingTransport records how many requests reached the network layer.
type countingTransport struct {
	calls atomic.Int32
	next  http.RoundTripper
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	if t.next == nil {
		return nil, errors.New("unexpected round trip")
	}
	return t.next.RoundTrip(req)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func stubResponse(status int, header http.Header, body io.Reader) roundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     header,
			Body:       io.NopCloser(body),
			Request:    req,
		}, nil
	}
}

func echoServer(t *testing.T, contentType string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if contentType == "" {
			w.Header()["Content-Type"] = nil
		} else {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Execute_EchoText(t *testing.T) {
	server := echoServer(t, "text/plain")

	d := NewDescriptor("POST", server.URL+"/echo").SetBody("hello")
	env, err := NewClient().Execute(context.Background(), d)

	require.NoError(t, err)
	assert.Equal(t, 200, env.Status)
	assert.Equal(t, "hello", env.Body)
	assert.False(t, env.IsBase64)
	assert.Equal(t, "text/plain", env.Headers["content-type"])
}

func TestClient_Execute_BinaryRoundTrip(t *testing.T) {
	server := echoServer(t, "application/octet-stream")
	payload := []byte{0x00, 0xff, 0x10, 0x80, 'P', 'N', 'G'}

	d := NewDescriptor("PUT", server.URL).SetBinaryBody(payload)
	env, err := NewClient().Execute(context.Background(), d)

	require.NoError(t, err)
	assert.True(t, env.IsBase64)
	decoded, err := base64.StdEncoding.DecodeString(env.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)

	raw, err := env.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, raw)
}

func TestClient_Execute_BodyClassification(t *testing.T) {
	tests := []struct {
		contentType string
		wantBase64  bool
	}{
		{"application/json", false},
		{"application/json; charset=utf-8", false},
		{"text/plain", false},
		{"text/html; charset=iso-8859-1", false},
		{"", false},
		{"application/octet-stream", true},
		{"image/png", true},
		{"application/xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			server := echoServer(t, tt.contentType)
			d := NewDescriptor("POST", server.URL).SetBody(`{"ok":true}`)

			env, err := NewClient().Execute(context.Background(), d)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase64, env.IsBase64)

			if tt.wantBase64 {
				decoded, err := base64.StdEncoding.DecodeString(env.Body)
				require.NoError(t, err)
				assert.Equal(t, `{"ok":true}`, string(decoded))
			} else {
				assert.Equal(t, `{"ok":true}`, env.Body)
			}
		})
	}
}

func TestClient_Execute_FollowRedirects(t *testing.T) {
	hops := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("final"))
			return
		}
		hops++
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	for _, policy := range []string{"", "follow", "error", "MANUAL"} {
		hops = 0
		d := NewDescriptor("GET", server.URL+"/start").SetRedirect(policy)
		env, err := NewClient().Execute(context.Background(), d)

		require.NoError(t, err, "policy %q", policy)
		assert.Equal(t, 200, env.Status, "policy %q", policy)
		assert.Equal(t, "final", env.Body)
		assert.Equal(t, 1, hops)
	}
}

func TestClient_Execute_ManualRedirect(t *testing.T) {
	var finalHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			finalHits.Add(1)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/final", http.StatusMovedPermanently)
	}))
	defer server.Close()

	d := NewDescriptor("GET", server.URL+"/start").SetRedirect(RedirectManual)
	env, err := NewClient().Execute(context.Background(), d)

	require.NoError(t, err)
	assert.Equal(t, 301, env.Status)
	assert.Equal(t, "/final", env.Headers["location"])
	assert.True(t, env.IsRedirect())
	assert.Zero(t, finalHits.Load())
}

func TestClient_Execute_TooManyRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer server.Close()

	_, err := NewClient(WithMaxRedirects(3)).Get(context.Background(), server.URL)

	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Contains(t, err.Error(), "stopped after 3 redirects")
}

func TestClient_Execute_InvalidBase64NeverSends(t *testing.T) {
	transport := &countingTransport{}
	client := NewClient(WithTransport(transport))

	body := "not-valid-base64!!"
	d := &Descriptor{
		URL:          "https://example.test/echo",
		Method:       "POST",
		Body:         &body,
		IsBodyBinary: true,
	}
	_, err := client.Execute(context.Background(), d)

	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
	assert.Contains(t, err.Error(), "body")
	assert.Zero(t, transport.calls.Load())
}

func TestClient_Execute_InvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
	}{
		{"empty method", "", "https://example.test"},
		{"method with space", "GE T", "https://example.test"},
		{"method with slash", "GET/1", "https://example.test"},
		{"relative url", "GET", "/just/a/path"},
		{"unsupported scheme", "GET", "ftp://example.test/file"},
		{"missing host", "GET", "http://"},
		{"unparsable url", "GET", "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &countingTransport{}
			_, err := NewClient(WithTransport(transport)).Execute(context.Background(), NewDescriptor(tt.method, tt.url))

			require.Error(t, err)
			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, KindInvalidRequest, kind)
			assert.Zero(t, transport.calls.Load())
		})
	}
}

func TestClient_Execute_NilDescriptor(t *testing.T) {
	_, err := NewClient().Execute(context.Background(), nil)
	assert.True(t, IsInvalidRequest(err))
}

func TestClient_Execute_ExtensionMethod(t *testing.T) {
	var gotMethod string
	client := NewClient(WithTransport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotMethod = req.Method
		return stubResponse(204, http.Header{}, strings.NewReader(""))(req)
	})))

	env, err := client.Execute(context.Background(), NewDescriptor("PROPFIND", "https://example.test/dav"))

	require.NoError(t, err)
	assert.Equal(t, 204, env.Status)
	assert.Equal(t, "PROPFIND", gotMethod)
}

func TestClient_Execute_DropsInvalidHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDescriptor("GET", server.URL).
		SetHeader("X Header", "dropped").
		SetHeader("X-Ctl\x01", "dropped").
		SetHeader("X-Bad-Value", "line\r\nbreak").
		SetHeader("", "empty").
		SetHeader("X-Good", "kept")

	env, err := NewClient().Execute(context.Background(), d)

	require.NoError(t, err)
	assert.Equal(t, 200, env.Status)
	assert.Equal(t, "kept", got.Get("X-Good"))
	assert.Empty(t, got.Get("X-Bad-Value"))
	assert.Empty(t, got.Values("X Header"))
}

func TestClient_Execute_DuplicateRequestHeadersLastWins(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Values("X-Trace")
	}))
	defer server.Close()

	d := NewDescriptor("GET", server.URL).
		SetHeader("x-trace", "first").
		SetHeader("X-Trace", "second")
	_, err := NewClient().Execute(context.Background(), d)

	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, got)
}

func TestClient_Execute_Referrer(t *testing.T) {
	var referer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("Referer")
	}))
	defer server.Close()

	t.Run("sent as Referer", func(t *testing.T) {
		d := NewDescriptor("GET", server.URL).SetReferrer("https://app.example.test/page")
		_, err := NewClient().Execute(context.Background(), d)
		require.NoError(t, err)
		assert.Equal(t, "https://app.example.test/page", referer)
	})

	t.Run("explicit header applied after referrer", func(t *testing.T) {
		d := NewDescriptor("GET", server.URL).
			SetReferrer("https://app.example.test/page").
			SetHeader("Referer", "https://other.example.test/")
		_, err := NewClient().Execute(context.Background(), d)
		require.NoError(t, err)
		assert.Equal(t, "https://other.example.test/", referer)
	})

	t.Run("invalid referrer", func(t *testing.T) {
		d := NewDescriptor("GET", server.URL).SetReferrer("bad\nvalue")
		_, err := NewClient().Execute(context.Background(), d)
		assert.True(t, IsInvalidRequest(err))
	})
}

func TestClient_Execute_DefaultHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer server.Close()

	client := NewClient(
		WithDefaultHeader("User-Agent", "hostfetch-test"),
		WithDefaultHeaders(map[string]string{"Accept": "*/*"}),
	)
	d := NewDescriptor("GET", server.URL).SetHeader("Accept", "application/json")
	_, err := client.Execute(context.Background(), d)

	require.NoError(t, err)
	assert.Equal(t, "hostfetch-test", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
}

func TestClient_Execute_ResponseHeaders(t *testing.T) {
	header := http.Header{}
	header["X-Multi"] = []string{"one", "two"}
	header["X-Binary"] = []string{"caf\xe9"}
	header["X-Partly"] = []string{"good", "bad\x7f"}
	header["Content-Type"] = []string{"text/plain"}

	client := NewClient(WithTransport(stubResponse(200, header, strings.NewReader("ok"))))
	env, err := client.Get(context.Background(), "https://example.test")

	require.NoError(t, err)
	assert.Equal(t, "two", env.Headers["x-multi"])
	assert.Equal(t, "good", env.Headers["x-partly"])
	assert.NotContains(t, env.Headers, "x-binary")
	assert.Equal(t, "text/plain", env.Header("Content-Type"))
	for name := range env.Headers {
		assert.Equal(t, strings.ToLower(name), name)
	}
}

func TestClient_Execute_UndecodableContentTypeTreatedAsText(t *testing.T) {
	header := http.Header{"Content-Type": []string{"image/p\xf1g"}}
	client := NewClient(WithTransport(stubResponse(200, header, strings.NewReader("plain"))))

	env, err := client.Get(context.Background(), "https://example.test")

	require.NoError(t, err)
	assert.False(t, env.IsBase64)
	assert.Equal(t, "plain", env.Body)
}

func TestClient_Execute_BodyReadFailures(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		header := http.Header{"Content-Type": []string{"text/plain"}}
		client := NewClient(WithTransport(stubResponse(200, header, failingReader{})))

		env, err := client.Get(context.Background(), "https://example.test")
		require.NoError(t, err)
		assert.Equal(t, "", env.Body)
		assert.False(t, env.IsBase64)
	})

	t.Run("binary", func(t *testing.T) {
		header := http.Header{"Content-Type": []string{"application/octet-stream"}}
		client := NewClient(WithTransport(stubResponse(200, header, failingReader{})))

		env, err := client.Get(context.Background(), "https://example.test")
		require.NoError(t, err)
		assert.Equal(t, "", env.Body)
		assert.True(t, env.IsBase64)
	})
}

func TestClient_Execute_InvalidUTF8IsLossy(t *testing.T) {
	header := http.Header{"Content-Type": []string{"text/plain; charset=latin1"}}
	client := NewClient(WithTransport(stubResponse(200, header, strings.NewReader("caf\xe9"))))

	env, err := client.Get(context.Background(), "https://example.test")

	require.NoError(t, err)
	assert.Equal(t, "caf\uFFFD", env.Body)
}

func TestClient_Execute_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	env, err := NewClient().Get(context.Background(), url)

	require.Error(t, err)
	assert.Nil(t, env)
	assert.True(t, IsTransport(err))
	assert.Contains(t, err.Error(), "connect")
}

func TestClient_Execute_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	t.Run("client timeout", func(t *testing.T) {
		_, err := NewClient(WithTimeout(50*time.Millisecond)).Get(context.Background(), server.URL)
		require.Error(t, err)
		assert.True(t, IsTransport(err))
		assert.Contains(t, err.Error(), "context deadline exceeded")
	})

	t.Run("descriptor timeout overrides client", func(t *testing.T) {
		d := NewDescriptor("GET", server.URL).SetTimeout(50 * time.Millisecond)
		_, err := NewClient(WithTimeout(time.Minute)).Execute(context.Background(), d)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestClient_Execute_Cancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := NewClient().Get(ctx, server.URL)

	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_Fetch_WireForm(t *testing.T) {
	server := echoServer(t, "text/plain")

	out, err := NewClient().Fetch(context.Background(), NewDescriptor("POST", server.URL).SetBody("hello"))
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &wire))
	assert.Equal(t, float64(200), wire["status"])
	assert.Equal(t, "hello", wire["body"])
	assert.Equal(t, false, wire["is_base64"])
	assert.Contains(t, wire, "headers")
	assert.Len(t, wire, 4)

	env, err := ParseEnvelope([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, 200, env.Status)
}

func TestClient_Execute_Concurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			_, _ = w.Write([]byte("final"))
			return
		}
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(manual bool) {
			defer wg.Done()
			d := NewDescriptor("GET", server.URL+"/start")
			if manual {
				d.SetRedirect(RedirectManual)
			}
			env, err := client.Execute(context.Background(), d)
			if !assert.NoError(t, err) {
				return
			}
			if manual {
				assert.Equal(t, 302, env.Status)
			} else {
				assert.Equal(t, 200, env.Status)
			}
		}(i%2 == 0)
	}
	wg.Wait()
}

func TestClient_Execute_Span(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	server := echoServer(t, "image/png")
	client := NewClient(WithTracer(tp.Tracer("test")))

	_, err := client.Execute(context.Background(), NewDescriptor("POST", server.URL).SetBody("x"))
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "fetch POST", spans[0].Name)

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(200), attrs["http.response.status_code"])
	assert.Equal(t, true, attrs["hostfetch.body.base64"])
}
