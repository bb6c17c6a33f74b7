// Package env expands {{$NAME}} references in configuration values.
//
// Values come from a .env file placed next to the configuration file, then
// from the process environment. References that resolve to nothing are left
// untouched so that a missing secret shows up verbatim in verbose output
// instead of silently becoming an empty header.
package env
