package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/types"
)

// SQLite stores advisories in a single table, queryable by symbol.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

var _ interfaces.Journal = (*SQLite)(nil)

// NewSQLite opens (or creates) the database and runs migrations.
func NewSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps :memory: databases alive across calls
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS advisories (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			session_id     TEXT,
			request_id     TEXT,
			symbol         TEXT NOT NULL,
			timeframe      TEXT,
			price          REAL,
			rsi            REAL,
			adx            REAL,
			technical      TEXT,
			technical_rule TEXT,
			signal         TEXT NOT NULL,
			confidence     INTEGER,
			reason         TEXT,
			oracle         TEXT,
			latency_ms     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_advisories_symbol_ts ON advisories(symbol, timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLite) Record(ctx context.Context, e types.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	var adx sql.NullFloat64
	if e.ADX != nil {
		adx = sql.NullFloat64{Float64: *e.ADX, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO advisories
		(timestamp, session_id, request_id, symbol, timeframe, price, rsi, adx,
		 technical, technical_rule, signal, confidence, reason, oracle, latency_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.Time.UTC().UnixMilli(), e.SessionID, e.RequestID, e.Symbol, string(e.Timeframe),
		e.Price, e.RSI, adx, string(e.Technical), e.TechnicalRule,
		string(e.Signal), e.Confidence, e.Reason, e.Oracle, e.LatencyMs,
	)
	return err
}

// Recent returns the latest entries for symbol, newest first.
func (s *SQLite) Recent(ctx context.Context, symbol string, limit int) ([]types.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT timestamp, session_id, request_id, symbol, timeframe, price, rsi, adx,
		technical, technical_rule, signal, confidence, reason, oracle, latency_ms
		FROM advisories WHERE symbol = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.JournalEntry
	for rows.Next() {
		var (
			e                     types.JournalEntry
			ts                    int64
			tf, technical, signal string
			adx                   sql.NullFloat64
		)
		if err := rows.Scan(&ts, &e.SessionID, &e.RequestID, &e.Symbol, &tf, &e.Price, &e.RSI, &adx,
			&technical, &e.TechnicalRule, &signal, &e.Confidence, &e.Reason, &e.Oracle, &e.LatencyMs); err != nil {
			return nil, err
		}
		e.Time = time.UnixMilli(ts).UTC()
		e.Timeframe = types.Timeframe(tf)
		e.Technical = types.Action(technical)
		e.Signal = types.AdvisorySignal(signal)
		if adx.Valid {
			v := adx.Float64
			e.ADX = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
