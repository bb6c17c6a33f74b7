// Package output renders fetch results for the terminal.
//
// Supported output formats:
//   - Console: colored status line, optional headers, then the body
//   - JSON: the envelope wire form, one document per fetch
//
// Errors render with their kind so scripts can tell a rejected request from
// a network failure. Expectation results list only failures unless verbose.
package output
