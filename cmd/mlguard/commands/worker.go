package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mlguard/internal/drift"
	"mlguard/internal/metrics"
	"mlguard/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the daily background computation loop",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st := mustOpenStore()
		defer st.Close()

		var costPuller worker.CostPuller
		if svc := costService(ctx, st); svc != nil {
			costPuller = svc
		}

		w := worker.New(
			st,
			metrics.NewEngine(st, st),
			drift.NewEngine(st, st, st),
			costPuller,
			worker.Options{
				TZ:         cfg.Worker.TZ,
				Overwrite:  cfg.Worker.Overwrite,
				Sleep:      time.Duration(cfg.Worker.SleepSeconds) * time.Second,
				MinSamples: cfg.Worker.DriftMinSamples,
				DayOffset:  cfg.Worker.DayOffset,
			},
		)

		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal().Err(err).Msg("Worker failed")
		}
	},
}
