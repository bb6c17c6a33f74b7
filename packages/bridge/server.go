package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hostfetch/packages/history"
	fetch "github.com/abdul-hamid-achik/hostfetch/packages/http"
	"github.com/abdul-hamid-achik/hostfetch/packages/output"
	"github.com/abdul-hamid-achik/hostfetch/packages/stats"
)

const (
	// DefaultAddr binds to loopback only
	DefaultAddr = "127.0.0.1:7878"
	// MaxDescriptorBytes bounds a request body
	MaxDescriptorBytes = 10 << 20

	kindRateLimited = "rate_limited"
)

// Server serves fetch descriptors over HTTP
type Server struct {
	addr    string
	client  atomic.Pointer[fetch.Client]
	limiter *rate.Limiter
	verbose bool
	logger  *log.Logger
	history *history.Store
	metrics *stats.Metrics
}

// Option is a functional option for Server
type Option func(*Server)

// WithAddr sets the listen address
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithClient sets the client that executes descriptors
func WithClient(c *fetch.Client) Option {
	return func(s *Server) {
		s.client.Store(c)
	}
}

// WithRateLimit caps accepted fetches per second. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithVerbose enables verbose logging
func WithVerbose(verbose bool) Option {
	return func(s *Server) {
		s.verbose = verbose
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithHistory journals every executed fetch
func WithHistory(store *history.Store) Option {
	return func(s *Server) {
		s.history = store
	}
}

func WithMetrics(m *stats.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a bridge server
func NewServer(opts ...Option) *Server {
	s := &Server{
		addr:   DefaultAddr,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client.Load() == nil {
		s.client.Store(fetch.NewClient())
	}
	if s.metrics == nil {
		s.metrics = stats.NewMetrics()
	}
	return s
}

// SetClient swaps the client used for subsequent fetches. In-flight fetches
// finish on the client they started with.
func (s *Server) SetClient(c *fetch.Client) {
	if c != nil {
		s.client.Store(c)
	}
}

func (s *Server) Metrics() *stats.Metrics {
	return s.metrics
}

func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the bridge routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /fetch", s.handleFetch)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /metrics", s.handlePrometheus)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start starts the server and blocks until it fails
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext starts the server with context for graceful shutdown
func (s *Server) StartWithContext(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.Printf("Fetch bridge listening on http://%s", s.addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.RecordRejected()
		if s.verbose {
			s.logger.Printf("POST /fetch -> 429 rate limited")
		}
		writeJSON(w, http.StatusTooManyRequests, output.ErrorJSON{Error: "rate limit exceeded", Kind: kindRateLimited})
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDescriptorBytes))
	if err != nil {
		s.reject(w, "read", err)
		return
	}
	if err := ValidateDescriptorJSON(data); err != nil {
		s.reject(w, "schema", err)
		return
	}

	d, err := fetch.DecodeDescriptor(data)
	if err != nil {
		s.fail(w, nil, err, time.Since(start))
		return
	}

	env, err := s.client.Load().Execute(r.Context(), d)
	elapsed := time.Since(start)
	s.journal(r.Context(), d, env, err, elapsed)
	if err != nil {
		s.fail(w, d, err, elapsed)
		return
	}

	s.metrics.Record(elapsed, env, nil)

	body, err := env.Marshal()
	if err != nil {
		s.fail(w, d, err, elapsed)
		return
	}

	if s.verbose {
		s.logger.Printf("%s %s -> %d (%s)", d.Method, d.URL, env.Status, elapsed)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// reject answers a body that never became a descriptor
func (s *Server) reject(w http.ResponseWriter, op string, err error) {
	s.fail(w, nil, fetch.NewError(fetch.KindInvalidRequest, op, err), 0)
}

func (s *Server) fail(w http.ResponseWriter, d *fetch.Descriptor, err error, elapsed time.Duration) {
	s.metrics.Record(elapsed, nil, err)

	payload := output.NewErrorJSON(err)
	status := statusForKind(err)
	if s.verbose {
		target := "descriptor"
		if d != nil {
			target = d.Method + " " + d.URL
		}
		s.logger.Printf("%s -> %d %s (%v)", target, status, payload.Kind, err)
	}
	writeJSON(w, status, payload)
}

func (s *Server) journal(ctx context.Context, d *fetch.Descriptor, env *fetch.Envelope, err error, elapsed time.Duration) {
	if s.history == nil {
		return
	}
	if _, recErr := s.history.Record(context.WithoutCancel(ctx), history.NewEntry(d, env, err, elapsed)); recErr != nil {
		s.logger.Printf("Warning: failed to record fetch: %v", recErr)
	}
}

func statusForKind(err error) int {
	kind, _ := fetch.KindOf(err)
	switch kind {
	case fetch.KindInvalidRequest:
		return http.StatusBadRequest
	case fetch.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handlePrometheus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", stats.PrometheusContentType)
	if err := stats.WritePrometheus(w, s.metrics.Snapshot()); err != nil && s.verbose {
		s.logger.Printf("GET /metrics: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
