package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hostfetch/packages/host"
)

var extractDestFlag string

var extractCmd = &cobra.Command{
	Use:   "extract <archive.tar.gz>",
	Short: "Unpack a gzip-compressed tarball next to itself",
	Long: `Unpack a gzip-compressed tar archive into the directory that contains it,
or into --dest. Entries that would escape the destination are rejected.

Examples:
  hostfetch extract plugins/my-plugin.tgz
  hostfetch extract my-plugin.tgz --dest ./plugins`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := extractDestFlag
		if dest == "" {
			dest = filepath.Dir(args[0])
		}
		if err := host.ExtractTarballTo(args[0], dest); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Extracted %s into %s\n", args[0], dest)
		return nil
	},
}

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Print the operating system name",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), host.Platform())
	},
}

var adminCheckFlag bool

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Report whether the process has administrative rights",
	Long: `Report whether the process has administrative rights. Platforms without
privilege elevation always report true.

With --check the result is only reported through the exit code.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := host.IsAdmin()
		if err != nil {
			return err
		}
		if adminCheckFlag {
			if !admin {
				return &exitError{code: ExitFailure, err: fmt.Errorf("not running as administrator"), reported: true}
			}
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), admin)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractDestFlag, "dest", "", "Destination directory (default: the archive's directory)")
	adminCmd.Flags().BoolVar(&adminCheckFlag, "check", false, "Exit 1 instead of printing false")
}
