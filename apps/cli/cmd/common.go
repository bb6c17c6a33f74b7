package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/abdul-hamid-achik/hostfetch/packages/core/config"
	"github.com/abdul-hamid-achik/hostfetch/packages/http"
	"github.com/abdul-hamid-achik/hostfetch/packages/tracing"
)

// exitError carries the process exit code for a failed command. reported
// marks errors that were already printed.
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func usageError(err error) error {
	return &exitError{code: ExitUsageError, err: err}
}

func configError(err error) error {
	return &exitError{code: ExitConfigError, err: err}
}

// exitCodeFor maps an error to a process exit code
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	if kind, ok := http.KindOf(err); ok {
		return exitCodeForKind(kind)
	}
	return ExitFailure
}

func exitCodeForKind(kind http.Kind) int {
	switch kind {
	case http.KindInvalidRequest:
		return ExitInvalidRequest
	case http.KindTransport:
		return ExitNetworkError
	case http.KindInternal:
		return ExitInternalError
	default:
		return ExitFailure
	}
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// loadConfig loads the config file (explicit or discovered) and returns the
// path it came from, "" when defaults were used.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		path = config.FindConfigFile(".")
	}
	if path == "" {
		return config.DefaultConfig(), "", nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, "", configError(fmt.Errorf("failed to load config: %w", err))
	}
	return cfg, path, nil
}

// newClient builds a fetch client from cfg, traced through prov
func newClient(cfg *config.Config, prov *tracing.Provider) *http.Client {
	opts := cfg.ClientOptions()
	opts = append(opts,
		http.WithTracer(prov.Tracer()),
		http.WithPropagation(prov.ShouldPropagate()),
	)
	return http.NewClient(opts...)
}

func initTracing(ctx context.Context, cfg *config.Config) (*tracing.Provider, error) {
	prov, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, configError(fmt.Errorf("failed to initialize tracing: %w", err))
	}
	return prov, nil
}
