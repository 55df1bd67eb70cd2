package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"paperguild/internal/auth"
	"paperguild/internal/jobs"
	"paperguild/internal/logger"
	"paperguild/internal/server"
)

const jobQueueSize = 8

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the paperguild API server.

The server accepts pipeline jobs over POST /jobs and executes them one at a
time on a background worker. Job status, logs and results are served from
the same database the CLI run command writes to.

Examples:
  # Start on the configured port (default 8080)
  paperguild serve

  # Start on a custom port
  paperguild serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}

			ctx := cmd.Context()
			p, db, err := buildPipeline(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			authn := auth.New(db)
			if err := authn.EnsureUser(cfg.Admin.User, cfg.Admin.Password); err != nil {
				return fmt.Errorf("seeding admin user: %w", err)
			}

			runner := jobs.NewRunner(db, p, jobQueueSize, 30*time.Minute)
			runner.Start()
			defer runner.Stop()

			srv := server.New(db, runner, authn, cfg.Server, cfg.Pipeline)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info("shutting down on signal", "signal", sig.String())
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}
