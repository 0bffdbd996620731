// Package app provides application lifecycle management for the uploader.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seedpost/seedpost/internal/config"
)

// SeedpostApp encapsulates all components needed to run the uploader.
// It provides lifecycle management and graceful shutdown capabilities.
type SeedpostApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server
	notices    []string

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start runs the orchestrator, the command plane and the HTTP server.
// It blocks until Stop is called or one of them fails.
func (app *SeedpostApp) Start() error {
	app.notifyOperator()

	g, ctx := errgroup.WithContext(app.ctx)

	g.Go(func() error {
		if err := app.components.Orchestrator.Start(ctx); err != nil {
			return fmt.Errorf("orchestrator failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := app.components.Plane.Run(ctx); err != nil {
			return fmt.Errorf("command plane failed: %w", err)
		}
		return nil
	})

	if app.httpServer != nil {
		g.Go(func() error {
			slog.Info("Server listening", "address", app.httpServer.Addr)
			if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
			defer cancel()
			if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Stop gracefully stops the application. A publish in flight finishes
// before the components are released. timeout bounds the telemetry flush;
// the HTTP server drains in Start.
func (app *SeedpostApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down uploader...")

	if err := app.components.Orchestrator.Stop(); err != nil {
		slog.Error("Failed to stop orchestrator", "error", err)
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.components.Engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close transfer engine: %w", err))
	}
	if err := app.components.Ledger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close ledger: %w", err))
	}
	if app.components.Telemetry != nil {
		if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	slog.Info("Shutdown complete")
	return errors.Join(errs...)
}

// GetConfig returns the application configuration
func (app *SeedpostApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server, nil when server.address is empty
func (app *SeedpostApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired components
func (app *SeedpostApp) Components() *AppComponents {
	return app.components
}

func (app *SeedpostApp) notifyOperator() {
	operator := app.config.Channel.Operator
	for _, text := range app.notices {
		if err := app.components.Channel.SendMessage(app.ctx, operator, text); err != nil {
			slog.Warn("Failed to notify operator", "error", err)
		}
	}
}
