package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conorfennell/lingosrs/internal/srs"
	decksync "github.com/conorfennell/lingosrs/internal/sync"
	"github.com/conorfennell/lingosrs/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the review API",
		Long: `Serve the review API over HTTP. Deck sources are synced on the
configured interval, and local sources are watched for changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must be set to serve (LINGOSRS_AUTH__JWT_SECRET)")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svcs, err := a.open(ctx, srs.WithMetrics(srs.NewMetrics(reg)))
	if err != nil {
		return err
	}
	defer svcs.Close()

	auth, err := web.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	handler, err := web.NewServer(svcs.srs, svcs.syncer, web.Options{
		Logger:         logger,
		Auth:           auth,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Health:         svcs.db.Ping,
	})
	if err != nil {
		return err
	}

	if cfg.Sync.Interval > 0 {
		sched, err := decksync.StartScheduler(svcs.syncer, cfg.Sync.Interval)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}
	if cfg.Sync.Watch {
		w, err := decksync.NewWatcher(ctx, svcs.syncer, decksync.DefaultDebounce)
		if err != nil {
			return err
		}
		go w.Run(ctx)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
