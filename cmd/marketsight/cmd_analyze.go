package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketsight/marketsight/internal/engine"
	"github.com/marketsight/marketsight/internal/metrics"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the market anomaly analysis for a scope",
	Long: `Execute one full analysis pass: data-quality gating, group statistics,
fair-value model training (with statistical fallback), deviation
classification, persistence and report generation.

Examples:
  marketsight analyze --scope 12345
  marketsight analyze --scope 12345 --config config.yaml`,
	RunE: runAnalyze,
}

var analyzeScope string

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeScope, "scope", "", "Geographic group key to analyze (defaults to target_scope from config)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	scope := analyzeScope
	if scope == "" {
		scope = cfg.TargetScope
	}
	if scope == "" {
		return fmt.Errorf("no scope given: set --scope or target_scope in config")
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	eng := engine.New(store, cfg.Engine, cfg.Paths, engine.WithMetrics(metrics.NewCollector()))
	rep, err := eng.Run(ctx, scope)
	if err != nil {
		return err
	}

	if _, _, err := rep.Write(cfg.Paths.ReportsDir); err != nil {
		return err
	}
	fmt.Print(rep.RenderText())
	log.Info().Str("scope", scope).Msg("analysis finished")
	return nil
}
