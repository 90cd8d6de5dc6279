package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mlguard/internal/config"
	"mlguard/internal/logging"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "mlguard",
	Short: "ML Guard is an ML observability service",
	Long: `An observability service for deployed ML models: ingests prediction events,
aggregates per-day metrics, detects PSI drift against captured baselines,
raises deduplicated alerts and optionally notifies Slack.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		// Load configuration
		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("env", cfg.Env).
			Msg("ML Guard starting")
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
}
