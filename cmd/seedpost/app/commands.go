// Package app provides the command line interface of the seedpost uploader.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/seedpost/seedpost/internal/versions"
)

// NewRootCmd creates the root command. level is raised to debug by --debug.
func NewRootCmd(level zap.AtomicLevel) *cobra.Command {
	v := viper.New()
	rootCmd := &cobra.Command{
		Use:               "seedpost",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Swarm to channel uploader",
		Long: `seedpost polls a listing for new items, fetches each one through a
BitTorrent swarm and publishes the finished files to a Telegram channel.
An operator steers it with bot commands.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if v.GetBool("debug") {
				level.SetLevel(DebugLevel)
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLedgerCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info: %w", err)
				}
				_, err = fmt.Fprintln(out, string(output))
				return err
			}
			_, err = fmt.Fprintf(out, "seedpost %s (commit %s, built %s, %s %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
