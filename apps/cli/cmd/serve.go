package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hostfetch/packages/bridge"
	"github.com/abdul-hamid-achik/hostfetch/packages/core/config"
	"github.com/abdul-hamid-achik/hostfetch/packages/history"
	"github.com/abdul-hamid-achik/hostfetch/packages/tracing"
)

const (
	// WatchDebounceDelay is the debounce delay for config file events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	serveAddrFlag    string
	serveRateFlag    float64
	serveBurstFlag   int
	serveConfigFlag  string
	serveHistoryFlag string
	serveWatchFlag   bool
	serveVerboseFlag bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose fetch to a host application over a local HTTP bridge",
	Long: `Start a local HTTP server that executes fetch descriptors for a host
application.

Endpoints:
  POST /fetch    execute a JSON descriptor, answer with the envelope
  GET  /stats    counters and latency percentiles
  GET  /metrics  the same numbers in the Prometheus text format
  GET  /healthz  liveness

With --watch, edits to the config file rebuild the client without
dropping in-flight requests.

Examples:
  hostfetch serve
  hostfetch serve --addr 127.0.0.1:9000 --rate 50 --burst 10
  hostfetch serve --config hostfetch.yaml --watch --verbose`,
	Args: cobra.NoArgs,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", getEnvString("HOSTFETCH_ADDR", ""), "Listen address (default from config, 127.0.0.1:7878) (env: HOSTFETCH_ADDR)")
	serveCmd.Flags().Float64Var(&serveRateFlag, "rate", 0, "Maximum fetches per second (0 = unlimited)")
	serveCmd.Flags().IntVar(&serveBurstFlag, "burst", 0, "Rate limiter burst size")
	serveCmd.Flags().StringVar(&serveConfigFlag, "config", getEnvString("HOSTFETCH_CONFIG", ""), "Path to config file (env: HOSTFETCH_CONFIG)")
	serveCmd.Flags().StringVar(&serveHistoryFlag, "history", getEnvString("HOSTFETCH_HISTORY", ""), "Record fetches in this SQLite database (env: HOSTFETCH_HISTORY)")
	serveCmd.Flags().BoolVarP(&serveWatchFlag, "watch", "w", false, "Reload the client when the config file changes")
	serveCmd.Flags().BoolVarP(&serveVerboseFlag, "verbose", "v", false, "Enable verbose logging")
}

func serveOverrides() *config.Config {
	override := &config.Config{
		History: serveHistoryFlag,
		Serve: config.ServeConfig{
			Addr:      serveAddrFlag,
			RateLimit: serveRateFlag,
			Burst:     serveBurstFlag,
		},
	}
	if serveVerboseFlag {
		override.Verbose = config.BoolPtr(true)
	}
	return override
}

func serveCommand(cmd *cobra.Command, args []string) error {
	fileConfig, configPath, err := loadConfig(serveConfigFlag)
	if err != nil {
		return err
	}
	if serveRateFlag < 0 {
		return usageError(fmt.Errorf("--rate must not be negative"))
	}
	cfg := fileConfig.Merge(serveOverrides())

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nShutting down fetch bridge...")
			cancel()
		case <-ctx.Done():
		}
	}()

	prov, err := initTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer prov.Shutdown(context.Background())

	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

	opts := []bridge.Option{
		bridge.WithAddr(cfg.Serve.Addr),
		bridge.WithClient(newClient(cfg, prov)),
		bridge.WithRateLimit(cfg.Serve.RateLimit, cfg.Serve.Burst),
		bridge.WithVerbose(cfg.GetVerbose()),
		bridge.WithLogger(logger),
	}

	if cfg.History != "" {
		store, err := history.Open(cfg.History)
		if err != nil {
			return configError(err)
		}
		defer store.Close()
		opts = append(opts, bridge.WithHistory(store))
	}

	server := bridge.NewServer(opts...)

	if serveWatchFlag {
		if configPath == "" {
			return usageError(fmt.Errorf("--watch needs a config file (use --config or create one with 'hostfetch init')"))
		}
		stopWatch, err := watchConfig(configPath, serveOverrides(), server, prov, logger)
		if err != nil {
			return err
		}
		defer stopWatch()
	}

	return server.StartWithContext(ctx)
}

// watchConfig swaps the bridge client whenever the config file is written.
// An invalid file keeps the current client.
func watchConfig(path string, override *config.Config, server *bridge.Server, prov *tracing.Provider, logger *log.Logger) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// editors replace files, so watch the directory and filter by name
	absPath, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	reload := func() {
		fileConfig, err := config.LoadConfig(absPath)
		if err != nil {
			logger.Printf("Config reload failed, keeping current client: %v", err)
			return
		}
		server.SetClient(newClient(fileConfig.Merge(override), prov))
		logger.Printf("Config reloaded from %s", path)
	}

	var (
		mu            sync.Mutex
		debounceTimer *time.Timer
		wg            sync.WaitGroup
	)
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absPath || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				mu.Lock()
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(WatchDebounceDelay, reload)
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Printf("watcher error: %v", err)

			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
		wg.Wait()
		mu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		mu.Unlock()
	}, nil
}
