package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketsight/marketsight/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo listing fixtures into the store",
	Long: `Insert the eight-listing demo batch (six houses, two condos in scope
12345) so an analysis run can be exercised without a crawler.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	rows := seed.Demo(time.Now().UTC())
	res, err := store.UpsertListings(ctx, rows)
	if err != nil {
		return fmt.Errorf("failed to seed listings: %w", err)
	}
	if err := res.Err(); err != nil {
		return err
	}

	log.Info().Int("listings", res.Succeeded).Msg("demo listings seeded")
	return nil
}
