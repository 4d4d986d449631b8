package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/marketsight/marketsight/internal/listing"
	"github.com/marketsight/marketsight/internal/persistence"
	"github.com/marketsight/marketsight/internal/stats"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know a bind type for.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// store implements persistence.Store on a local SQLite file, the development
// fallback used when no PostgreSQL DSN is configured.
type store struct {
	db      *sqlx.DB
	timeout time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	listing_id        TEXT PRIMARY KEY,
	price             REAL,
	beds              INTEGER,
	baths             REAL,
	area              REAL,
	year_built        INTEGER,
	property_type     TEXT,
	group_key         TEXT,
	address           TEXT,
	city              TEXT,
	locality          TEXT,
	listing_url       TEXT,
	agent_name        TEXT,
	num_photos        INTEGER,
	days_on_market    INTEGER,
	ingestion_quality TEXT,
	scraped_at        TIMESTAMP
);

CREATE TABLE IF NOT EXISTS group_stats (
	group_key     TEXT NOT NULL,
	property_type TEXT NOT NULL,
	stat_date     TIMESTAMP NOT NULL,
	mean_ppa      REAL,
	std_ppa       REAL,
	listing_count INTEGER,
	PRIMARY KEY (group_key, property_type, stat_date)
);

CREATE TABLE IF NOT EXISTS listing_analysis (
	listing_id        TEXT PRIMARY KEY,
	price_per_area    REAL,
	predicted_price   REAL,
	deviation_pct     REAL,
	is_anomaly        BOOLEAN,
	anomaly_kind      TEXT,
	group_mean        REAL,
	group_std         REAL,
	ingestion_quality TEXT,
	analysis_mode     TEXT,
	analyzed_at       TIMESTAMP
);
`

// Open creates or opens the SQLite database at path (":memory:" for tests)
// and applies the schema.
func Open(ctx context.Context, path string, timeout time.Duration) (persistence.Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// modernc sqlite is single-writer; serialize access through one conn.
	db.SetMaxOpenConns(1)

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &store{db: db, timeout: timeout}, nil
}

const upsertListingSQL = `
	INSERT OR REPLACE INTO listings (
		listing_id, price, beds, baths, area, year_built, property_type,
		group_key, address, city, locality, listing_url, agent_name,
		num_photos, days_on_market, ingestion_quality, scraped_at
	) VALUES (
		:listing_id, :price, :beds, :baths, :area, :year_built, :property_type,
		:group_key, :address, :city, :locality, :listing_url, :agent_name,
		:num_photos, :days_on_market, :ingestion_quality, :scraped_at
	)`

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
		WHERE group_key = ? AND scraped_at >= ?
		ORDER BY listing_id`

	var rows []listing.Listing
	if err := s.db.SelectContext(ctx, &rows, query, scope, since); err != nil {
		return nil, fmt.Errorf("failed to load listings for scope %s: %w", scope, err)
	}
	return rows, nil
}

const upsertGroupStatSQL = `
	INSERT OR REPLACE INTO group_stats (group_key, property_type, stat_date, mean_ppa, std_ppa, listing_count)
	VALUES (:group_key, :property_type, :stat_date, :mean_ppa, :std_ppa, :listing_count)`

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
	INSERT OR REPLACE INTO listing_analysis (
		listing_id, price_per_area, predicted_price, deviation_pct, is_anomaly,
		anomaly_kind, group_mean, group_std, ingestion_quality, analysis_mode, analyzed_at
	) VALUES (
		:listing_id, :price_per_area, :predicted_price, :deviation_pct, :is_anomaly,
		:anomaly_kind, :group_mean, :group_std, :ingestion_quality, :analysis_mode, :analyzed_at
	)`

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

// AnalysisByID loads one analysis row, used by tests to inspect persisted
// scoring columns.
func AnalysisByID(ctx context.Context, st persistence.Store, id string) (*persistence.Analysis, error) {
	s, ok := st.(*store)
	if !ok {
		return nil, fmt.Errorf("store is not a sqlite store")
	}
	var a persistence.Analysis
	err := s.db.GetContext(ctx, &a, `
		SELECT listing_id, price_per_area, predicted_price, deviation_pct, is_anomaly,
		       anomaly_kind, group_mean, group_std, ingestion_quality, analysis_mode, analyzed_at
		FROM listing_analysis WHERE listing_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis %s: %w", id, err)
	}
	return &a, nil
}

func (s *store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *store) Close() error {
	return s.db.Close()
}
