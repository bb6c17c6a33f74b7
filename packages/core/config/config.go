package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hostfetch/packages/core/env"
	"github.com/abdul-hamid-achik/hostfetch/packages/http"
	"github.com/abdul-hamid-achik/hostfetch/packages/tracing"
)

// Config represents the hostfetch configuration
type Config struct {
	Timeout      int               `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	MaxRedirects int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL  *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	History      string            `json:"history,omitempty" yaml:"history,omitempty"` // SQLite journal path
	Verbose      *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor      *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	Serve        ServeConfig       `json:"serve,omitempty" yaml:"serve,omitempty"`
	Tracing      tracing.Settings  `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// ServeConfig configures the bridge server
type ServeConfig struct {
	Addr      string  `json:"addr,omitempty" yaml:"addr,omitempty"`
	RateLimit float64 `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"` // requests per second, 0 = unlimited
	Burst     int     `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration returns Timeout as a duration
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// ClientOptions translates the config into fetch client options
func (c *Config) ClientOptions() []http.ClientOption {
	opts := []http.ClientOption{
		http.WithTimeout(c.TimeoutDuration()),
		http.WithValidateSSL(c.GetValidateSSL()),
	}
	if c.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(c.MaxRedirects))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(c.Headers))
	}
	return opts
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".hostfetch.yaml",
	"hostfetch.yaml",
	".hostfetch.yml",
	"hostfetch.yml",
	".hostfetch.json",
	"hostfetch.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindConfigFile returns the first config file found in dir, or ""
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if configPath := FindConfigFile(dir); configPath != "" {
		return loadConfigFromFile(configPath)
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile loads configuration from a specific file. JSON is a
// subset of YAML, so one decoder covers both.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	vars, err := env.LoadBeside(path)
	if err != nil {
		return nil, err
	}
	config.expand(env.NewResolver(vars))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return config, nil
}

// expand resolves {{$NAME}} references in values that commonly carry
// secrets or per-machine paths.
func (c *Config) expand(r *env.Resolver) {
	c.Headers = r.ResolveAll(c.Headers)
	c.History = r.Resolve(c.History)
	c.Serve.Addr = r.Resolve(c.Serve.Addr)
	c.Tracing.Endpoint = r.Resolve(c.Tracing.Endpoint)
}

// Validate rejects values that cannot be turned into a working client
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.Timeout)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("maxRedirects must not be negative, got %d", c.MaxRedirects)
	}
	if c.Serve.RateLimit < 0 {
		return fmt.Errorf("serve.rateLimit must not be negative, got %g", c.Serve.RateLimit)
	}
	for name, value := range c.Headers {
		if _, ok := http.ValidateHeader(name, value); !ok {
			return fmt.Errorf("invalid default header %q", name)
		}
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.History != "" {
		result.History = other.History
	}
	if other.Serve.Addr != "" {
		result.Serve.Addr = other.Serve.Addr
	}
	if other.Serve.RateLimit > 0 {
		result.Serve.RateLimit = other.Serve.RateLimit
	}
	if other.Serve.Burst > 0 {
		result.Serve.Burst = other.Serve.Burst
	}
	if other.Tracing.Endpoint != "" {
		result.Tracing = other.Tracing
	}

	// Boolean flags - only override if explicitly set in other config
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge headers
	if len(other.Headers) > 0 {
		merged := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			merged[k] = v
		}
		for k, v := range other.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}

	return &result
}

// SaveConfig saves the configuration to a YAML file
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
