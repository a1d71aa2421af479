package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs(
    run_id    TEXT NOT NULL,
    ts        INTEGER NOT NULL,
    host      TEXT NOT NULL,
    mode      TEXT NOT NULL,
    module    TEXT NOT NULL,
    status    TEXT NOT NULL,
    detected  INTEGER NOT NULL,
    processed INTEGER NOT NULL,
    failed    INTEGER NOT NULL,
    message   TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(ts);
`

// History persists per-module run outcomes to a local SQLite file.
type History struct {
	db *sql.DB
}

func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history: %w", err)
	}
	if _, err := db.ExecContext(ctx, historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history schema: %w", err)
	}
	return &History{db: db}, nil
}

// Record inserts one row per module result.
func (h *History) Record(ctx context.Context, r Report) error {
	ts := r.Timestamp.Unix()
	for _, m := range r.Modules {
		status := string(m.Result.Status)
		message := m.Result.Message
		if m.Error != "" {
			status = "error"
			message = m.Error
		}
		_, err := h.db.ExecContext(ctx,
			`INSERT INTO runs(run_id, ts, host, mode, module, status, detected, processed, failed, message)
			 VALUES(?,?,?,?,?,?,?,?,?,?)`,
			r.RunID, ts, r.Host, r.Mode, m.Module, status,
			m.Result.ItemsDetected, m.Result.ItemsProcessed, m.Result.ItemsFailed, message)
		if err != nil {
			return fmt.Errorf("record run %s: %w", r.RunID, err)
		}
	}
	return nil
}

type HistoryEntry struct {
	RunID     string
	Timestamp time.Time
	Host      string
	Mode      string
	Module    string
	Status    string
	Detected  int
	Processed int
	Failed    int
	Message   string
}

// Recent returns the newest rows first, capped at limit.
func (h *History) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT run_id, ts, host, mode, module, status, detected, processed, failed, message
		 FROM runs ORDER BY ts DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var ts int64
		var message sql.NullString
		if err := rows.Scan(&e.RunID, &ts, &e.Host, &e.Mode, &e.Module, &e.Status,
			&e.Detected, &e.Processed, &e.Failed, &message); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		e.Message = message.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (h *History) Close() error {
	return h.db.Close()
}
