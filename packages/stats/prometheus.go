package stats

import (
	"fmt"
	"io"
	"sort"
)

// PrometheusContentType is the text exposition format served by WritePrometheus
const PrometheusContentType = "text/plain; version=0.0.4; charset=utf-8"

// WritePrometheus writes s in the Prometheus text exposition format.
func WritePrometheus(w io.Writer, s Snapshot) error {
	ew := &errWriter{w: w}

	ew.counter("hostfetch_fetches_total", "Fetches executed, including rejected descriptors", float64(s.Total))
	ew.counter("hostfetch_fetches_success_total", "Fetches that produced an envelope", float64(s.Success))
	ew.counter("hostfetch_fetches_binary_total", "Envelopes carrying a base64 body", float64(s.Binary))
	ew.counter("hostfetch_fetches_rejected_total", "Fetches refused by the rate limiter", float64(s.Rejected))

	ew.printf("# HELP hostfetch_fetch_errors_total Failed fetches by error kind\n")
	ew.printf("# TYPE hostfetch_fetch_errors_total counter\n")
	ew.printf("hostfetch_fetch_errors_total{kind=\"invalid_request\"} %d\n", s.InvalidRequest)
	ew.printf("hostfetch_fetch_errors_total{kind=\"transport\"} %d\n", s.Transport)
	ew.printf("hostfetch_fetch_errors_total{kind=\"internal\"} %d\n", s.Internal)
	ew.printf("\n")

	ew.printf("# HELP hostfetch_fetch_duration_ms Fetch latency in milliseconds\n")
	ew.printf("# TYPE hostfetch_fetch_duration_ms summary\n")
	ew.printf("hostfetch_fetch_duration_ms{quantile=\"0.5\"} %.3f\n", s.P50Ms)
	ew.printf("hostfetch_fetch_duration_ms{quantile=\"0.95\"} %.3f\n", s.P95Ms)
	ew.printf("hostfetch_fetch_duration_ms{quantile=\"0.99\"} %.3f\n", s.P99Ms)
	ew.printf("hostfetch_fetch_duration_ms{quantile=\"1\"} %.3f\n", s.MaxMs)
	ew.printf("\n")

	ew.printf("# HELP hostfetch_responses_total Responses by HTTP status code\n")
	ew.printf("# TYPE hostfetch_responses_total counter\n")

	// Sort status codes for consistent output
	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		ew.printf("hostfetch_responses_total{status=\"%d\"} %d\n", code, s.StatusCodes[code])
	}

	return ew.err
}

// errWriter keeps the first write error and skips later writes
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) counter(name, help string, value float64) {
	ew.printf("# HELP %s %s\n", name, help)
	ew.printf("# TYPE %s counter\n", name)
	ew.printf("%s %g\n", name, value)
	ew.printf("\n")
}
