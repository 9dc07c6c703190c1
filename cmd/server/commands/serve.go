package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asisten-gizi/server/internal/api"
	"github.com/asisten-gizi/server/internal/app"
	"github.com/asisten-gizi/server/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

The index is loaded (or built from CORPUS_DIR) before the listener opens.
Endpoints: GET /health, POST /ask, POST /generate-diet and GET /metrics,
also mounted under /api.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	rt, err := app.Bootstrap(ctx, cfg, log, app.Options{Metrics: metrics})
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer rt.Close()

	apiHandler := api.NewAPIHandler(rt.Answers, rt.Programs, log, api.WithRequestTimeout(cfg.RequestTimeout()))
	router := api.NewRouter(apiHandler, api.RouterOptions{Logger: log, Metrics: metrics, Auth: rt.Auth})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout, // a full program is several sequential generations
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.Bool("auth", rt.Auth != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", srv.Addr, err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}
