package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hostfetch/packages/history"
	"github.com/abdul-hamid-achik/hostfetch/packages/output"
)

var (
	historyLimitFlag   int
	historyPruneFlag   string
	historyOutputFlag  string
	historyConfigFlag  string
	historyPathFlag    string
	historyVerboseFlag bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded fetches",
	Long: `Show fetches recorded by "fetch --history" or "serve --history".

Examples:
  hostfetch history --history fetches.db
  hostfetch history --limit 50 --output json
  hostfetch history --prune 168h`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", getEnvInt("HOSTFETCH_HISTORY_LIMIT", 20), "Number of entries to show, 0 for all (env: HOSTFETCH_HISTORY_LIMIT)")
	historyCmd.Flags().StringVar(&historyPruneFlag, "prune", "", "Delete entries older than this duration (e.g., 24h) instead of listing")
	historyCmd.Flags().StringVarP(&historyOutputFlag, "output", "o", "console", "Output format: console, json")
	historyCmd.Flags().StringVar(&historyConfigFlag, "config", getEnvString("HOSTFETCH_CONFIG", ""), "Path to config file (env: HOSTFETCH_CONFIG)")
	historyCmd.Flags().StringVar(&historyPathFlag, "history", getEnvString("HOSTFETCH_HISTORY", ""), "SQLite database to read (env: HOSTFETCH_HISTORY)")
	historyCmd.Flags().BoolVarP(&historyVerboseFlag, "verbose", "v", false, "Show error messages")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(historyConfigFlag)
	if err != nil {
		return err
	}
	path := historyPathFlag
	if path == "" {
		path = cfg.History
	}
	if path == "" {
		return configError(fmt.Errorf("no history database configured (use --history or set history in the config file)"))
	}

	store, err := history.Open(path)
	if err != nil {
		return configError(err)
	}
	defer store.Close()

	if historyPruneFlag != "" {
		age, err := time.ParseDuration(historyPruneFlag)
		if err != nil {
			return usageError(fmt.Errorf("invalid prune value %q: %w", historyPruneFlag, err))
		}
		removed, err := store.Prune(cmd.Context(), time.Now().Add(-age))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", removed)
		return nil
	}

	formatter, err := output.New(historyOutputFlag, cmd.OutOrStdout(), historyVerboseFlag, cfg.GetNoColor())
	if err != nil {
		return usageError(err)
	}

	entries, err := store.List(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	return formatter.FormatHistory(entries)
}
