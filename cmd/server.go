/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopfront/apiserver/config"
	"github.com/shopfront/apiserver/internal/logging"
	"github.com/shopfront/apiserver/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 20 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the shopfront API server",
	Long: `Starts the shopfront API server. Usage:

	shopfront server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		log := logging.New(cfg.Env)

		srv, err := server.New(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		return serve(cmd.Context(), srv, log)
	},
}

// runner is the lifecycle of *server.Server.
type runner interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serve runs srv until ctx is cancelled or Start fails. Either way the
// server is shut down, so its backends are released.
func serve(ctx context.Context, srv runner, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var (
		stopped  bool
		startErr error
	)
	select {
	case startErr = <-errCh:
		stopped = true
		if startErr != nil {
			log.Error("server stopped", logging.Err(startErr))
		}
	case <-ctx.Done():
		log.Info("shutting down", slog.Duration("timeout", shutdownTimeout))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)

	if !stopped {
		startErr = <-errCh
	}
	if startErr != nil {
		return fmt.Errorf("server error: %w", startErr)
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
