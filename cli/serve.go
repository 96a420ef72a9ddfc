/*
serve.go - HTTP server command

PURPOSE:
  Wires configuration, logging, the dataset session and the API router, then
  runs the HTTP server until interrupted.

STARTUP SEQUENCE:
  1. Load config (file + environment) and build the zap logger
  2. Create the dataset session with metrics attached as load observer
  3. Warm the session (a load failure is logged, requests then get 500)
  4. Start the file watcher when data.refresh_interval > 0 (the interval is
     the polling fallback)
  5. Start the server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the refresher
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - dataset/session.go: Memoized dataset
*/
package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/inclusion-dashboard/api"
	"github.com/warp/inclusion-dashboard/config"
	"github.com/warp/inclusion-dashboard/dataset"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			if opts.Addr != "" {
				cfg.Server.Addr = opts.Addr
			}
			log, err := newLogger(cfg, rootOpts.Verbose)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "invalid log level", Err: err}
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, log, nil)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// runServe serves until ctx is cancelled. A non-nil ready receives the bound
// address once the listener is open.
func runServe(ctx context.Context, cfg *config.Config, log *zap.Logger, ready chan<- string) error {
	metrics := api.NewMetrics()
	session := dataset.NewSession(dataset.NewLoader(log), cfg.Data.DatasetPath, cfg.Data.ForecastPath).
		WithObserver(metrics)

	if _, err := session.Snapshot(ctx); err != nil {
		log.Warn("dataset not loaded at startup", zap.String("path", cfg.Data.DatasetPath), zap.Error(err))
	}

	if cfg.Data.RefreshInterval > 0 {
		refresher := dataset.NewRefresher(session, log)
		refresher.PollInterval = cfg.Data.RefreshInterval
		refresher.Start()
		defer refresher.Stop()
	}

	handler := api.NewHandler(session, cfg, log, metrics)
	server := &http.Server{
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "failed to listen", Err: err}
	}
	addr := listener.Addr().String()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", addr), zap.String("dataset", cfg.Data.DatasetPath))
		serveErr <- server.Serve(listener)
	}()
	if ready != nil {
		ready <- addr
	}

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return &ExitError{Code: ExitFailure, Message: "server failed", Err: err}
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return &ExitError{Code: ExitFailure, Message: "server forced to shutdown", Err: err}
	}
	log.Info("server stopped")
	return nil
}
