package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:      30000, // 30 seconds
		MaxRedirects: 10,
		ValidateSSL:  BoolPtr(true),
		Headers:      nil,
		Verbose:      BoolPtr(false),
		NoColor:      BoolPtr(false),
		Serve: ServeConfig{
			Addr:  "127.0.0.1:7878",
			Burst: 1,
		},
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Timeout == defaults.Timeout &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		len(c.Headers) == 0 &&
		c.History == defaults.History &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.Serve == defaults.Serve &&
		c.Tracing == defaults.Tracing
}
