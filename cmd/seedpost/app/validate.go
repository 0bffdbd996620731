package app

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Long: `Load the configuration the same way serve does, from --config and
SEEDPOST_* environment variables, and report whether it is valid.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "✓ Valid configuration\n")
			_, _ = fmt.Fprintf(out, "  Listing: %s (%s, limit %d)\n", cfg.Listing.URL, cfg.Listing.Format, cfg.Listing.Limit)
			_, _ = fmt.Fprintf(out, "  Poll interval: %s\n", cfg.GetPollInterval())
			_, _ = fmt.Fprintf(out, "  Max upload size: %s\n", humanize.IBytes(uint64(cfg.GetMaxSizeBytes())))
			_, _ = fmt.Fprintf(out, "  Ledger: %s (on corrupt: %s)\n", cfg.Ledger.Path, cfg.Ledger.OnCorrupt)
			return nil
		},
	}
}
