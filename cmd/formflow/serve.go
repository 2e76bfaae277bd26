package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	httpAdapter "github.com/aretw0/formflow/pkg/adapters/http"
	"github.com/aretw0/formflow/pkg/loader"
	"github.com/aretw0/formflow/pkg/observability"
	"github.com/aretw0/formflow/pkg/session"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve <form.yaml>...",
	Short: "Serve forms over HTTP",
	Long: `Registers the given forms and exposes a JSON API for filling them: sessions,
answers, navigation, submission and a server-sent event stream per session.
Prometheus metrics are served at /metrics.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := cfg.Logger()

		backend, err := cfg.OpenBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)
		streams := httpAdapter.NewStreamManager(logger)

		opts := []session.Option{
			session.WithEngineOptions(cfg.EngineOptions(cfg.ProgressStore(backend, logger))...),
			session.WithHooks(observability.Combine(metrics.Hooks(), observability.LogHooks(logger))),
			session.WithSessionHooks(streams.Hooks),
			session.WithLogger(logger),
		}
		if backend.Locker != nil {
			opts = append(opts, session.WithLocker(backend.Locker))
		}
		sessions := session.NewManager(opts...)
		defer sessions.Shutdown(context.WithoutCancel(ctx))

		for _, path := range args {
			def, err := loader.LoadFile(path)
			if err != nil {
				return err
			}
			if err := sessions.Register(def); err != nil {
				return fmt.Errorf("failed to register %s: %w", path, err)
			}
			logger.Info("form registered", "form_id", def.ID, "path", path)
		}

		handler, err := httpAdapter.NewHandler(ctx, sessions,
			httpAdapter.WithStreams(streams),
			httpAdapter.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
			httpAdapter.WithLogger(logger),
		)
		if err != nil {
			return err
		}

		if cfg.Server.IdleTimeout > 0 {
			go reapIdle(ctx, sessions, cfg.Server.IdleTimeout)
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting formflow server", "addr", srv.Addr, "forms", len(args))
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				_ = srv.Close()
			}
			logger.Info("formflow server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("submit-url", "", "POST completed answers to this URL")
}

// reapIdle closes sessions untouched for longer than maxIdle. Their progress
// is flushed on close, so a respondent can pick up again in a new session.
func reapIdle(ctx context.Context, sessions *session.Manager, maxIdle time.Duration) {
	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.CloseIdle(ctx, maxIdle)
		}
	}
}
