package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seedpost/seedpost/internal/app"
	"github.com/seedpost/seedpost/internal/config"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the uploader",
		Long: `Run the scan, transfer and publish loop together with the operator
command plane and the HTTP status server.

Configuration comes from an optional YAML file (--config) overridden by
SEEDPOST_* environment variables. channel.target, channel.operator and a bot
token are required.`,
		RunE: runServe,
	}
	cmd.Flags().String("address", "", "Address the status server listens on, overrides server.address")
	return cmd
}

// loadConfig loads the configuration named by --config, or environment only
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	var opts []config.Option
	if path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}
	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	slog.Info("Loaded configuration",
		"listing", cfg.Listing.URL,
		"format", cfg.Listing.Format,
		"interval", cfg.GetPollInterval().String())

	opts := []app.SeedpostAppOption{app.WithConfig(cfg)}
	if address, _ := cmd.Flags().GetString("address"); address != "" {
		opts = append(opts, app.WithAddress(address))
	}

	// The app outlives the signal context so a shutdown can finish its work
	seedpost, err := app.NewSeedpostApp(context.WithoutCancel(ctx), opts...)
	if err != nil {
		return fmt.Errorf("failed to start uploader: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- seedpost.Start() }()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err = <-errCh:
		if err != nil {
			slog.Error("Uploader stopped with error", "error", err)
		}
		errCh = nil
	}

	if stopErr := seedpost.Stop(defaultGracefulTimeout); stopErr != nil {
		slog.Error("Shutdown incomplete", "error", stopErr)
	}
	if errCh != nil {
		err = <-errCh
	}
	return err
}
