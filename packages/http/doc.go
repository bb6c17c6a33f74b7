// Package http executes one HTTP request per call from a declarative
// Descriptor and returns a normalized Envelope.
//
// It wraps the standard library's http package with:
//   - Per-call redirect policy ("manual" returns 3xx responses as-is)
//   - Lenient header handling: malformed pairs are dropped, not rejected
//   - Text or base64 body encoding chosen from the content-type
//   - Tagged errors separating invalid requests, transport failures and
//     serialization failures
//   - Caller timeouts and context cancellation around the single send
package http
