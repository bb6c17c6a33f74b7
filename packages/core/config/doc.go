// Package config handles configuration loading and management for hostfetch.
//
// It provides functionality for:
//   - Loading configuration from .hostfetch.yaml or .hostfetch.json files
//   - Default configuration values
//   - Expanding {{$NAME}} references from a sibling .env file or the environment
//   - Merging command line overrides over file values
package config
