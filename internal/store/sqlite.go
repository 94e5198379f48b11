package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

// SQLiteStore implements FundamentalsStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based fundamentals store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Static fundamentals keyed by ticker string
	CREATE TABLE IF NOT EXISTS fundamentals (
		ticker TEXT PRIMARY KEY,
		shares_outstanding REAL,
		trailing_pe REAL,
		trailing_eps REAL,
		name TEXT,
		sector TEXT,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_fundamentals_updated ON fundamentals(updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Name identifies the store when it serves as a fundamentals source.
func (s *SQLiteStore) Name() string {
	return "sqlite"
}

// Fundamentals looks up one ticker in the static table.
func (s *SQLiteStore) Fundamentals(ctx context.Context, ticker string) (models.FundamentalsRecord, error) {
	row, err := s.GetFundamentals(ctx, ticker)
	if err != nil {
		return models.FundamentalsRecord{Ticker: ticker}, err
	}
	rec := row.Record
	rec.Ticker = ticker
	return rec, nil
}

// SaveFundamentals upserts records. Tickers are stored upper-cased.
func (s *SQLiteStore) SaveFundamentals(ctx context.Context, records []models.FundamentalsRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO fundamentals (ticker, shares_outstanding, trailing_pe, trailing_eps, name, sector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		ticker := strings.ToUpper(strings.TrimSpace(r.Ticker))
		if ticker == "" {
			return apperrors.NewInputError("ticker", r.Ticker, "ticker must not be empty")
		}
		_, err := stmt.ExecContext(ctx, ticker,
			nullFloat(r.SharesOutstanding), nullFloat(r.TrailingPE), nullFloat(r.TrailingEPS),
			r.Name, r.Sector, now)
		if err != nil {
			return fmt.Errorf("failed to insert fundamentals for %s: %w", ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetFundamentals retrieves one ticker's row.
func (s *SQLiteStore) GetFundamentals(ctx context.Context, ticker string) (*StoredFundamentals, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ticker, shares_outstanding, trailing_pe, trailing_eps, name, sector, updated_at
		FROM fundamentals WHERE ticker = ?
	`, strings.ToUpper(strings.TrimSpace(ticker)))

	stored, err := scanFundamentals(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("static fundamentals for %s", ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get fundamentals: %v", apperrors.ErrDatabaseError, err)
	}
	return stored, nil
}

// ListFundamentals lists rows ordered by ticker.
func (s *SQLiteStore) ListFundamentals(ctx context.Context, filter FundamentalsFilter) ([]StoredFundamentals, error) {
	query := `SELECT ticker, shares_outstanding, trailing_pe, trailing_eps, name, sector, updated_at FROM fundamentals WHERE 1=1`
	var args []interface{}

	if len(filter.Tickers) > 0 {
		placeholders := make([]string, len(filter.Tickers))
		for i, t := range filter.Tickers {
			placeholders[i] = "?"
			args = append(args, strings.ToUpper(strings.TrimSpace(t)))
		}
		query += " AND ticker IN (" + strings.Join(placeholders, ",") + ")"
	}
	if filter.MissingOnly {
		query += " AND shares_outstanding IS NULL"
	}
	if !filter.UpdatedAfter.IsZero() {
		query += " AND updated_at > ?"
		args = append(args, filter.UpdatedAfter.UTC())
	}

	query += " ORDER BY ticker ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fundamentals: %w", err)
	}
	defer rows.Close()

	var out []StoredFundamentals
	for rows.Next() {
		stored, err := scanFundamentals(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fundamentals: %w", err)
		}
		out = append(out, *stored)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fundamentals: %w", err)
	}

	return out, nil
}

// DeleteFundamentals removes one ticker's row.
func (s *SQLiteStore) DeleteFundamentals(ctx context.Context, ticker string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM fundamentals WHERE ticker = ?`,
		strings.ToUpper(strings.TrimSpace(ticker)))
	if err != nil {
		return fmt.Errorf("failed to delete fundamentals: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFoundf("static fundamentals for %s", ticker)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFundamentals(row rowScanner) (*StoredFundamentals, error) {
	var (
		ticker       string
		shares       sql.NullFloat64
		pe           sql.NullFloat64
		eps          sql.NullFloat64
		name, sector sql.NullString
		updatedAt    time.Time
	)
	if err := row.Scan(&ticker, &shares, &pe, &eps, &name, &sector, &updatedAt); err != nil {
		return nil, err
	}

	return &StoredFundamentals{
		Record: models.FundamentalsRecord{
			Ticker:            ticker,
			SharesOutstanding: fromNull(shares),
			TrailingPE:        fromNull(pe),
			TrailingEPS:       fromNull(eps),
			Name:              name.String,
			Sector:            sector.String,
		},
		UpdatedAt: updatedAt,
	}, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}
