// Package shutdown provides graceful HTTP server shutdown with connection
// draining for the batch jobs trigger API, invoking a caller-supplied
// cancel func when shutdown begins.
package shutdown

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// GracefulServe starts srv and blocks until SIGTERM or SIGINT. On signal it
// stops accepting new connections, drains active ones up to drainTimeout,
// then returns. cancel is invoked as soon as the signal is observed, in
// parallel with HTTP drain. It does not wait for background work: jobs
// already running in the orchestrator's worker pool are neither cancelled
// nor awaited by this function.
func GracefulServe(srv *http.Server, drainTimeout time.Duration, logger *slog.Logger, cancel context.CancelFunc) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErr:
		cancel()
		return err
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}

	logger.Info("draining connections", "timeout", drainTimeout.String())
	ctx, done := context.WithTimeout(context.Background(), drainTimeout)
	defer done()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return err
	}

	logger.Info("server stopped cleanly")
	return nil
}
