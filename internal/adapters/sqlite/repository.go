package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"moonalarm/internal/domain"
	"moonalarm/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.CandleRepository using SQLite. It backs
// the candle archiver; the live session never touches it.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (or creates) the archive database and ensures the
// schema exists.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/candles.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// The sqlite3 driver serializes writes; one connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "Candle archive opened", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS candles (
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		open_time INTEGER NOT NULL, -- unix milliseconds
		close_time INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		quote_volume REAL NOT NULL,
		trade_count INTEGER NOT NULL,
		PRIMARY KEY (symbol, interval, open_time)
	);
	CREATE INDEX IF NOT EXISTS idx_candles_symbol_interval_open_time
		ON candles (symbol, interval, open_time);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing candle archive")
		return r.db.Close()
	}
	return nil
}

// SaveCandles upserts a batch of candles in one transaction. Unfinished
// candles are skipped; the archive only holds closed buckets.
func (r *Repository) SaveCandles(ctx context.Context, candles domain.CandleSeries) error {
	const query = `
	INSERT INTO candles (symbol, interval, open_time, close_time, open, high, low, close, volume, quote_volume, trade_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, interval, open_time) DO UPDATE SET
		close_time = excluded.close_time,
		open = excluded.open,
		high = excluded.high,
		low = excluded.low,
		close = excluded.close,
		volume = excluded.volume,
		quote_volume = excluded.quote_volume,
		trade_count = excluded.trade_count`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %v", ports.ErrQueryFailed, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare candle insert: %w: %v", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	saved := 0
	for _, c := range candles {
		if !c.IsFinal {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			c.Symbol, c.Interval, c.OpenTime.UnixMilli(), c.CloseTime.UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume, c.QuoteVolume, c.TradeCount,
		); err != nil {
			return fmt.Errorf("failed to insert candle %s/%s@%d: %w: %v",
				c.Symbol, c.Interval, c.OpenTime.UnixMilli(), ports.ErrQueryFailed, err)
		}
		saved++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit candle batch: %w: %v", ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Candles saved", map[string]interface{}{"count": saved})
	return nil
}

// FindBySymbol retrieves up to limit candles for a symbol/interval,
// oldest first.
func (r *Repository) FindBySymbol(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error) {
	const query = `
	SELECT symbol, interval, open_time, close_time, open, high, low, close, volume, quote_volume, trade_count
	FROM candles
	WHERE symbol = ? AND interval = ?
	ORDER BY open_time ASC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles for %s/%s: %w: %v", symbol, interval, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var series domain.CandleSeries
	for rows.Next() {
		var c domain.Candle
		var openMs, closeMs int64
		if err := rows.Scan(&c.Symbol, &c.Interval, &openMs, &closeMs,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.QuoteVolume, &c.TradeCount); err != nil {
			return nil, fmt.Errorf("failed to scan candle row: %w: %v", ports.ErrQueryFailed, err)
		}
		c.OpenTime = time.UnixMilli(openMs)
		c.CloseTime = time.UnixMilli(closeMs)
		c.IsFinal = true
		series = append(series, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candle rows: %w: %v", ports.ErrQueryFailed, err)
	}
	return series, nil
}

// CountBySymbol counts the stored candles for a symbol/interval.
func (r *Repository) CountBySymbol(ctx context.Context, symbol, interval string) (int, error) {
	const query = `SELECT COUNT(*) FROM candles WHERE symbol = ? AND interval = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, symbol, interval).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count candles for %s/%s: %w: %v", symbol, interval, ports.ErrQueryFailed, err)
	}
	return count, nil
}

// LatestOpenTime returns the open time of the newest stored candle, or
// the zero time when none exist.
func (r *Repository) LatestOpenTime(ctx context.Context, symbol, interval string) (time.Time, error) {
	const query = `SELECT open_time FROM candles WHERE symbol = ? AND interval = ? ORDER BY open_time DESC LIMIT 1`
	var openMs int64
	err := r.db.QueryRowContext(ctx, query, symbol, interval).Scan(&openMs)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest candle for %s/%s: %w: %v", symbol, interval, ports.ErrQueryFailed, err)
	}
	return time.UnixMilli(openMs), nil
}
