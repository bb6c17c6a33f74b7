// Package cmd implements the hostfetch CLI commands using Cobra.
//
// Available commands:
//   - fetch: Execute one request and print the envelope
//   - serve: Expose fetch to a host application over HTTP
//   - history: List or prune recorded fetches
//   - extract: Unpack a plugin tarball
//   - platform: Print the operating system name
//   - admin: Report administrative rights
//   - init: Create a hostfetch.yaml config file
//   - version: Show hostfetch version information
//
// Failures exit with a code derived from the error kind, see exitcodes.go.
package cmd
