package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mlguard/internal/alerts"
	"mlguard/internal/api"
	"mlguard/internal/costs"
	"mlguard/internal/drift"
	"mlguard/internal/metrics"
	"mlguard/internal/notify"
	"mlguard/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st := mustOpenStore()
		defer st.Close()

		// A typed nil service must not end up inside the interface.
		var costSvc api.CostService
		if svc := costService(ctx, st); svc != nil {
			costSvc = svc
		}

		server := api.NewServer(
			st,
			metrics.NewEngine(st, st),
			drift.NewEngine(st, st, st),
			alerts.NewService(st),
			notify.NewSlack(cfg.SlackEnabled, cfg.SlackWebhookURL),
			costSvc,
			api.Options{
				EnableAuth:   cfg.EnableAuth,
				APIKeyHeader: cfg.APIKeyHeader,
				APIKey:       cfg.APIKey,
				SlackEnabled: cfg.SlackEnabled,
			},
		)

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           server.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("HTTP server failed")
			}
		}()

		<-ctx.Done()
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
	},
}

// mustOpenStore connects to Postgres and applies pending migrations.
func mustOpenStore() *store.Store {
	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := st.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}
	return st
}

// costService builds the Cost Explorer service; a missing AWS setup
// disables the cost endpoints rather than failing startup.
func costService(ctx context.Context, st *store.Store) *costs.Service {
	client, err := costs.NewCostExplorerClient(ctx, cfg.AWS.Profile, cfg.AWS.Region)
	if err != nil {
		log.Warn().Err(err).Msg("Cost Explorer unavailable, cost features disabled")
		return nil
	}
	return costs.NewService(st, client, cfg.AWS.CostMetric)
}
