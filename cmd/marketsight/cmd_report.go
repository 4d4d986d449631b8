package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/marketsight/marketsight/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Re-render the latest run report for a scope",
	RunE:  runReport,
}

var reportScope string

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportScope, "scope", "", "Geographic group key (defaults to target_scope from config)")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	scope := reportScope
	if scope == "" {
		scope = cfg.TargetScope
	}
	if scope == "" {
		return fmt.Errorf("no scope given: set --scope or target_scope in config")
	}

	pattern := filepath.Join(cfg.Paths.ReportsDir, fmt.Sprintf("report_%s_*.json", scope))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("failed to scan reports dir: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no reports found for scope %s in %s", scope, cfg.Paths.ReportsDir)
	}
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		return fmt.Errorf("failed to read report %s: %w", latest, err)
	}
	var rep report.RunReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return fmt.Errorf("failed to parse report %s: %w", latest, err)
	}

	fmt.Print(rep.RenderText())
	return nil
}
