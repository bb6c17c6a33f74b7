// Package stats aggregates fetch outcomes and latency for the bridge.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	fetch "github.com/abdul-hamid-achik/hostfetch/packages/http"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics collects fetch counters and a latency histogram. It is safe for
// concurrent use.
type Metrics struct {
	mu sync.Mutex

	total     atomic.Int64
	success   atomic.Int64
	invalid   atomic.Int64
	transport atomic.Int64
	internal  atomic.Int64
	rejected  atomic.Int64
	binary    atomic.Int64

	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram

	// guarded by mu
	statusCodes map[int]int64

	startTime time.Time
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		// Histogram: 1us to 60s range, 3 significant digits
		histogram:   hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		statusCodes: make(map[int]int64),
		startTime:   time.Now(),
	}
}

// Record records one completed call. env is nil when err is set.
func (m *Metrics) Record(duration time.Duration, env *fetch.Envelope, err error) {
	m.total.Add(1)

	if err != nil {
		kind, _ := fetch.KindOf(err)
		switch kind {
		case fetch.KindInvalidRequest:
			m.invalid.Add(1)
			// nothing was sent, so there is no latency to record
			return
		case fetch.KindInternal:
			m.internal.Add(1)
		default:
			m.transport.Add(1)
		}
	} else {
		m.success.Add(1)
		if env != nil && env.IsBase64 {
			m.binary.Add(1)
		}
	}

	latencyUs := duration.Microseconds()
	if latencyUs < minLatencyUs {
		latencyUs = minLatencyUs
	}
	if latencyUs > maxLatencyUs {
		latencyUs = maxLatencyUs
	}

	m.mu.Lock()
	_ = m.histogram.RecordValue(latencyUs)
	if env != nil {
		m.statusCodes[env.Status]++
	}
	m.mu.Unlock()
}

// RecordRejected counts a call refused before execution, e.g. by a rate limiter
func (m *Metrics) RecordRejected() {
	m.rejected.Add(1)
}

// Snapshot is a point-in-time view of the metrics
type Snapshot struct {
	Uptime         string  `json:"uptime"`
	Total          int64   `json:"total"`
	Success        int64   `json:"success"`
	Binary         int64   `json:"binary"`
	InvalidRequest int64   `json:"invalid_request"`
	Transport      int64   `json:"transport"`
	Internal       int64   `json:"internal"`
	Rejected       int64   `json:"rejected"`
	ErrorRate      float64 `json:"error_rate"`
	P50Ms          float64 `json:"p50_ms"`
	P95Ms          float64 `json:"p95_ms"`
	P99Ms          float64 `json:"p99_ms"`
	MaxMs          float64 `json:"max_ms"`
	MeanMs         float64 `json:"mean_ms"`

	StatusCodes map[int]int64 `json:"status_codes"`
}

// Snapshot returns current statistics
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.total.Load()
	errors := m.invalid.Load() + m.transport.Load() + m.internal.Load()

	codes := make(map[int]int64, len(m.statusCodes))
	for code, n := range m.statusCodes {
		codes[code] = n
	}

	errorRate := float64(0)
	if total > 0 {
		errorRate = float64(errors) / float64(total)
	}

	return Snapshot{
		Uptime:         time.Since(m.startTime).Round(time.Second).String(),
		Total:          total,
		Success:        m.success.Load(),
		Binary:         m.binary.Load(),
		InvalidRequest: m.invalid.Load(),
		Transport:      m.transport.Load(),
		Internal:       m.internal.Load(),
		Rejected:       m.rejected.Load(),
		ErrorRate:      errorRate,
		P50Ms:          usToMs(m.histogram.ValueAtQuantile(50)),
		P95Ms:          usToMs(m.histogram.ValueAtQuantile(95)),
		P99Ms:          usToMs(m.histogram.ValueAtQuantile(99)),
		MaxMs:          usToMs(m.histogram.Max()),
		MeanMs:         m.histogram.Mean() / 1000,
		StatusCodes:    codes,
	}
}

// Reset clears all counters and the histogram
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total.Store(0)
	m.success.Store(0)
	m.invalid.Store(0)
	m.transport.Store(0)
	m.internal.Store(0)
	m.rejected.Store(0)
	m.binary.Store(0)
	m.histogram.Reset()
	m.statusCodes = make(map[int]int64)
	m.startTime = time.Now()
}

func usToMs(us int64) float64 {
	return float64(us) / 1000
}
