package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/marketsight/marketsight/internal/listing"
	"github.com/marketsight/marketsight/internal/persistence"
	"github.com/marketsight/marketsight/internal/stats"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	DSN             string
	Timeout         time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// store implements persistence.Store for PostgreSQL.
type store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Open connects and verifies the database is reachable.
func Open(ctx context.Context, cfg Config) (persistence.Store, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &store{db: db, timeout: cfg.Timeout}, nil
}

const upsertListingSQL = `
	INSERT INTO listings (
		listing_id, price, beds, baths, area, year_built, property_type,
		group_key, address, city, locality, listing_url, agent_name,
		num_photos, days_on_market, ingestion_quality, scraped_at
	) VALUES (
		:listing_id, :price, :beds, :baths, :area, :year_built, :property_type,
		:group_key, :address, :city, :locality, :listing_url, :agent_name,
		:num_photos, :days_on_market, :ingestion_quality, :scraped_at
	)
	ON CONFLICT (listing_id) DO UPDATE SET
		price = EXCLUDED.price,
		beds = EXCLUDED.beds,
		baths = EXCLUDED.baths,
		area = EXCLUDED.area,
		year_built = EXCLUDED.year_built,
		property_type = EXCLUDED.property_type,
		group_key = EXCLUDED.group_key,
		address = EXCLUDED.address,
		city = EXCLUDED.city,
		locality = EXCLUDED.locality,
		listing_url = EXCLUDED.listing_url,
		agent_name = EXCLUDED.agent_name,
		num_photos = EXCLUDED.num_photos,
		days_on_market = EXCLUDED.days_on_market,
		ingestion_quality = EXCLUDED.ingestion_quality,
		scraped_at = EXCLUDED.scraped_at`

func (s *store) UpsertListings(ctx context.Context, rows []listing.Listing) (persistence.UpsertResult, error) {
	var res persistence.UpsertResult
	if len(rows) == 0 {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for i := range rows {
		if _, err := s.db.NamedExecContext(ctx, upsertListingSQL, &rows[i]); err != nil {
			res.Failed = append(res.Failed, persistence.RowError{
				Key: rows[i].ID,
				Err: fmt.Errorf("failed to upsert listing: %w", err),
			})
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

func (s *store) RecentByScope(ctx context.Context, scope string, since time.Time) ([]listing.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT listing_id, price, beds, baths, area, year_built, property_type,
		       group_key, address, city, locality, listing_url, agent_name,
		       num_photos, days_on_market, ingestion_quality, scraped_at
		FROM listings
		WHERE group_key = $1 AND scraped_at >= $2
		ORDER BY listing_id`

	var rows []listing.Listing
	if err := s.db.SelectContext(ctx, &rows, query, scope, since); err != nil {
		return nil, fmt.Errorf("failed to load listings for scope %s: %w", scope, err)
	}
	return rows, nil
}

const upsertGroupStatSQL = `
	INSERT INTO group_stats (group_key, property_type, stat_date, mean_ppa, std_ppa, listing_count)
	VALUES (:group_key, :property_type, :stat_date, :mean_ppa, :std_ppa, :listing_count)
	ON CONFLICT (group_key, property_type, stat_date) DO UPDATE SET
		mean_ppa = EXCLUDED.mean_ppa,
		std_ppa = EXCLUDED.std_ppa,
		listing_count = EXCLUDED.listing_count`

func (s *store) UpsertGroupStats(ctx context.Context, rows []stats.GroupStat) (persistence.UpsertResult, error) {
	var res persistence.UpsertResult
	if len(rows) == 0 {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for i := range rows {
		if _, err := s.db.NamedExecContext(ctx, upsertGroupStatSQL, &rows[i]); err != nil {
			res.Failed = append(res.Failed, persistence.RowError{
				Key: fmt.Sprintf("%s/%s", rows[i].GroupKey, rows[i].PropertyType),
				Err: fmt.Errorf("failed to upsert group stat: %w", err),
			})
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

const upsertAnalysisSQL = `
	INSERT INTO listing_analysis (
		listing_id, price_per_area, predicted_price, deviation_pct, is_anomaly,
		anomaly_kind, group_mean, group_std, ingestion_quality, analysis_mode, analyzed_at
	) VALUES (
		:listing_id, :price_per_area, :predicted_price, :deviation_pct, :is_anomaly,
		:anomaly_kind, :group_mean, :group_std, :ingestion_quality, :analysis_mode, :analyzed_at
	)
	ON CONFLICT (listing_id) DO UPDATE SET
		price_per_area = EXCLUDED.price_per_area,
		predicted_price = EXCLUDED.predicted_price,
		deviation_pct = EXCLUDED.deviation_pct,
		is_anomaly = EXCLUDED.is_anomaly,
		anomaly_kind = EXCLUDED.anomaly_kind,
		group_mean = EXCLUDED.group_mean,
		group_std = EXCLUDED.group_std,
		ingestion_quality = EXCLUDED.ingestion_quality,
		analysis_mode = EXCLUDED.analysis_mode,
		analyzed_at = EXCLUDED.analyzed_at`

func (s *store) UpsertAnalyses(ctx context.Context, rows []persistence.Analysis) (persistence.UpsertResult, error) {
	var res persistence.UpsertResult
	if len(rows) == 0 {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for i := range rows {
		if _, err := s.db.NamedExecContext(ctx, upsertAnalysisSQL, &rows[i]); err != nil {
			res.Failed = append(res.Failed, persistence.RowError{
				Key: rows[i].ListingID,
				Err: fmt.Errorf("failed to upsert analysis: %w", err),
			})
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

func (s *store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *store) Close() error {
	return s.db.Close()
}
