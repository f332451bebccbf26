package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cafeteria/internal/api"
	"cafeteria/internal/database"
	"cafeteria/internal/metrics"
	"cafeteria/internal/scheduler"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server, the daily close schedule and backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			return serve(ctx, app)
		},
	}
}

func serve(ctx context.Context, app *App) error {
	cfg, logger := app.Config, app.Logger

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
	}

	if app.DB != nil && cfg.Backup.Enabled {
		go database.NewBackupService(app.DB, cfg.Backup, logger).Start(ctx)
	}

	hour, minute, err := cfg.SendListTime()
	if err != nil {
		return err
	}
	if hour >= 0 {
		sched := scheduler.New(scheduler.Config{
			Location:    app.Rules.Location,
			DailyHour:   hour,
			DailyMinute: minute,
			Weekdays:    ScheduledWeekdays(cfg.Rules.Weekdays),
		}, func(ctx context.Context) error {
			_, err := app.DailyClose.SendListAndClose(ctx)
			return err
		}, logger)
		go sched.Start(ctx)
		defer sched.Stop()
	}

	router := api.NewRouter(api.Deps{
		Catalog:      app.Catalog,
		Reservations: app.Reservations,
		DailyClose:   app.DailyClose,
		Till:         app.Till,
		Importer:     app.Importer,
		Store:        app.Store,
		Rules:        app.Rules,
		Redis:        app.Redis,
		Limiter:      app.Limiter,
	}, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.RateLimit.Requests,
		RateWindow:     cfg.RateLimitWindow(),
		Debug:          cfg.Server.Debug,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("addr", cfg.Server.Address).Str("public_url", cfg.Server.PublicURL).Msg("cafeteria started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info().Msg("cafeteria stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
