// Package capture extracts single values from a fetch envelope.
//
// Expressions select the value:
//   - status: the response status code
//   - duration: the elapsed time in milliseconds
//   - header.<name>: a response header (case-insensitive)
//   - body: the whole body (parsed when it is JSON)
//   - body.<path>: a gjson path into a JSON body
//
// The CLI uses it for --select so scripts can read one field without a JSON
// tool.
package capture
