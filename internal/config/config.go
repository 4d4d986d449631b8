package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration, loaded from YAML with
// environment overrides. All engine thresholds are explicit values handed
// into components, never ambient state.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Paths    PathsConfig    `yaml:"paths"`

	// TargetScope is the geographic group key analyzed by default.
	TargetScope string `yaml:"target_scope"`
}

// DatabaseConfig selects the store. An empty or placeholder DSN falls back
// to a local SQLite file so the engine runs in development without Postgres.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	SQLitePath      string        `yaml:"sqlite_path"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// EngineConfig carries the anomaly-engine thresholds.
type EngineConfig struct {
	MinArea               float64 `yaml:"min_area"`
	DeviationThresholdPct float64 `yaml:"deviation_threshold_pct"`
	SigmaMultiplier       float64 `yaml:"sigma_multiplier"`
	TrainingWindowDays    int     `yaml:"training_window_days"`
	MinTrainingSize       int     `yaml:"min_training_size"`
	ModelTrees            int     `yaml:"model_trees"`
	ModelMaxDepth         int     `yaml:"model_max_depth"`
	ModelSeed             int64   `yaml:"model_seed"`
}

// PathsConfig locates on-disk artifacts.
type PathsConfig struct {
	ReportsDir string `yaml:"reports_dir"`
	ModelsDir  string `yaml:"models_dir"`
}

// Load reads configPath (optional), applies environment overrides and
// defaults. A missing file is not an error; the defaults are complete.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// UsePostgres reports whether a usable Postgres DSN is configured.
// Placeholder values like "[HOST]" left over from a template count as
// unconfigured.
func (d DatabaseConfig) UsePostgres() bool {
	dsn := strings.TrimSpace(d.DSN)
	if dsn == "" {
		return false
	}
	if strings.Contains(dsn, "[HOST]") || strings.Contains(dsn, "[USER]") || strings.Contains(dsn, "[PASSWORD]") {
		return false
	}
	return true
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TARGET_SCOPE"); v != "" {
		cfg.TargetScope = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "marketsight.db"
	}
	if cfg.Database.Timeout == 0 {
		cfg.Database.Timeout = 30 * time.Second
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if cfg.Engine.MinArea == 0 {
		cfg.Engine.MinArea = 500
	}
	if cfg.Engine.DeviationThresholdPct == 0 {
		cfg.Engine.DeviationThresholdPct = 15
	}
	if cfg.Engine.SigmaMultiplier == 0 {
		cfg.Engine.SigmaMultiplier = 1.5
	}
	if cfg.Engine.TrainingWindowDays == 0 {
		cfg.Engine.TrainingWindowDays = 90
	}
	if cfg.Engine.MinTrainingSize == 0 {
		cfg.Engine.MinTrainingSize = 10
	}
	if cfg.Engine.ModelTrees == 0 {
		cfg.Engine.ModelTrees = 100
	}
	if cfg.Engine.ModelMaxDepth == 0 {
		cfg.Engine.ModelMaxDepth = 15
	}
	if cfg.Engine.ModelSeed == 0 {
		cfg.Engine.ModelSeed = 42
	}

	if cfg.Paths.ReportsDir == "" {
		cfg.Paths.ReportsDir = "reports"
	}
	if cfg.Paths.ModelsDir == "" {
		cfg.Paths.ModelsDir = "models"
	}
}
