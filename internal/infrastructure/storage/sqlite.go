package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/trade_signal_bot/internal/domain"
)

// SQLiteStore persists the bar cache and the trade log. It implements both
// domain.BarRepository and domain.TradeRepository.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			time DATETIME NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume REAL NOT NULL,
			PRIMARY KEY (symbol, timeframe, time)
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			action TEXT NOT NULL,
			price REAL NOT NULL,
			qty REAL NOT NULL,
			entire_position BOOLEAN NOT NULL DEFAULT 0,
			realized_pnl REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BarRepository Implementation

// UpsertBars writes the batch in one transaction. Re-fetched bars overwrite
// their previous row, so repeated syncs never duplicate timestamps.
func (s *SQLiteStore) UpsertBars(ctx context.Context, symbol, timeframe string, bars []domain.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO bars (symbol, timeframe, time, open, high, low, close, volume)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(symbol, timeframe, time) DO UPDATE SET
			  open=excluded.open,
			  high=excluded.high,
			  low=excluded.low,
			  close=excluded.close,
			  volume=excluded.volume`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, timeframe, b.Time.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetBars(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]domain.Bar, error) {
	query := `SELECT time, open, high, low, close, volume FROM bars
			  WHERE symbol = ? AND timeframe = ? AND time >= ? AND time <= ?
			  ORDER BY time ASC`
	rows, err := s.db.QueryContext(ctx, query, symbol, timeframe, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// TradeRepository Implementation

func (s *SQLiteStore) SaveTrade(ctx context.Context, trade domain.TradeRecord) error {
	query := `INSERT INTO trades (id, symbol, action, price, qty, entire_position, realized_pnl, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		trade.ID, trade.Symbol, trade.Action, trade.Price,
		trade.Qty.Amount, trade.Qty.EntirePosition, trade.RealizedPnL, trade.At.UTC())
	return err
}

func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT id, symbol, action, price, qty, entire_position, realized_pnl, created_at
			  FROM trades ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Action, &t.Price,
			&t.Qty.Amount, &t.Qty.EntirePosition, &t.RealizedPnL, &t.At); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
