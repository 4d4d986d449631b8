package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketsight/marketsight/internal/config"
	"github.com/marketsight/marketsight/internal/persistence"
	"github.com/marketsight/marketsight/internal/persistence/postgres"
	"github.com/marketsight/marketsight/internal/persistence/sqlitestore"
)

var rootCmd = &cobra.Command{
	Use:   "marketsight",
	Short: "Real-estate market anomaly detection engine",
	Long: `MarketSight ingests real-estate listings, gates them for data quality,
computes group price statistics, trains a fair-value model and flags
listings whose price deviates from the market.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	SilenceUsage: true,
}

var (
	flagConfigFile string
	flagLogLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "config.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug|info|warn|error)")
}

func setupLogging() {
	level, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
}

// loadConfig reads .env (best effort, matching local-dev expectations) and
// then the YAML config with environment overrides.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load(flagConfigFile)
}

// openStore selects Postgres when a usable DSN is configured and falls back
// to the local SQLite file otherwise. All writes go through the circuit
// breaker.
func openStore(ctx context.Context, cfg *config.Config) (persistence.Store, error) {
	var (
		inner persistence.Store
		err   error
	)
	if cfg.Database.UsePostgres() {
		inner, err = postgres.Open(ctx, postgres.Config{
			DSN:             cfg.Database.DSN,
			Timeout:         cfg.Database.Timeout,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
	} else {
		log.Warn().Str("path", cfg.Database.SQLitePath).
			Msg("DATABASE_URL not configured, using local sqlite database")
		inner, err = sqlitestore.Open(ctx, cfg.Database.SQLitePath, cfg.Database.Timeout)
	}
	if err != nil {
		return nil, err
	}
	return persistence.NewBreakerStore(inner), nil
}
