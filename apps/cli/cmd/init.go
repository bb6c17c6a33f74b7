package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hostfetch/packages/core/config"
	"github.com/abdul-hamid-achik/hostfetch/packages/http"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize hostfetch in the current directory",
	Long: `Initialize hostfetch in the current directory.

This creates:
  - hostfetch.yaml  - Configuration file with client and bridge defaults
  - example.json    - Example request descriptor

Examples:
  hostfetch init
  hostfetch init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

func starterConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{
		"User-Agent": "hostfetch/" + version,
	}
	cfg.History = ".hostfetch/history.db"
	cfg.Serve.RateLimit = 20
	cfg.Serve.Burst = 5
	return cfg
}

func starterDescriptor() *http.Descriptor {
	return http.NewDescriptor("POST", "https://httpbin.org/anything").
		SetHeader("Content-Type", "application/json").
		SetBody(`{"hello":"world"}`).
		SetReferrer("https://example.com/")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "hostfetch.yaml")
	exampleFile := filepath.Join(cwd, "example.json")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	if err := starterConfig().SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	example, err := json.MarshalIndent(starterDescriptor(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(exampleFile, append(example, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhostfetch initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hostfetch fetch --descriptor example.json' to send the example request.\n")

	return nil
}
