// Package bridge exposes the fetch primitive over a local HTTP endpoint.
//
// A host that cannot make network calls itself POSTs a JSON descriptor to
// /fetch and receives the envelope back. Failures come back as
// {"error": ..., "kind": ...} with a status derived from the kind:
//   - invalid_request: 400
//   - transport: 502
//   - internal: 500
//   - rate_limited: 429
//
// GET /stats reports counters and latency percentiles as JSON, GET /metrics
// serves the same numbers in the Prometheus text format and GET /healthz
// reports liveness.
package bridge
