package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banglabot/quest-service/internal/badge"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS region_progress (
    user_id    TEXT NOT NULL,
    region_id  TEXT NOT NULL,
    completed  INTEGER NOT NULL DEFAULT 0,
    progress   REAL NOT NULL DEFAULT 0,
    best_score INTEGER NOT NULL DEFAULT 0,
    attempts   INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (user_id, region_id)
);
CREATE TABLE IF NOT EXISTS user_badges (
    user_id     TEXT NOT NULL,
    badge_id    TEXT NOT NULL,
    category    TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL,
    icon        TEXT NOT NULL,
    awarded_at  TEXT NOT NULL,
    PRIMARY KEY (user_id, badge_id)
);
CREATE TABLE IF NOT EXISTS quest_attempts (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    region_id       TEXT NOT NULL,
    score           INTEGER NOT NULL,
    total_questions INTEGER NOT NULL,
    recorded_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quest_attempts_user ON quest_attempts (user_id, recorded_at);
`

// SQLiteRepository stores progress in a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes read-modify-write transactions and keeps
	// ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *SQLiteRepository) Load(ctx context.Context, userID string) (Record, error) {
	return loadRecord(ctx, r.db, userID)
}

func (r *SQLiteRepository) Apply(ctx context.Context, userID string, attempt Attempt, mutate func(*Record) error) (Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	working, err := loadRecord(ctx, tx, userID)
	if err != nil {
		return Record{}, err
	}
	if err := mutate(&working); err != nil {
		return Record{}, err
	}

	for regionID, rp := range working.Progress {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO region_progress (user_id, region_id, completed, progress, best_score, attempts, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (user_id, region_id) DO UPDATE SET
                completed = excluded.completed,
                progress = excluded.progress,
                best_score = excluded.best_score,
                attempts = excluded.attempts,
                updated_at = excluded.updated_at`,
			userID, regionID, rp.Completed, rp.Progress, rp.BestScore, rp.Attempts, formatTime(rp.UpdatedAt),
		); err != nil {
			return Record{}, fmt.Errorf("upsert region progress: %w", err)
		}
	}

	for _, b := range working.Badges {
		if _, err := tx.ExecContext(ctx, `
            INSERT OR IGNORE INTO user_badges (user_id, badge_id, category, name, description, icon, awarded_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, b.ID, string(b.Category), b.Name, b.Description, b.Icon, formatTime(b.AwardedAt),
		); err != nil {
			return Record{}, fmt.Errorf("insert badge: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO quest_attempts (id, user_id, region_id, score, total_questions, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		attempt.ID, userID, attempt.Region, attempt.Score, attempt.TotalQuestions, formatTime(attempt.RecordedAt),
	); err != nil {
		return Record{}, fmt.Errorf("insert attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	return working, nil
}

func (r *SQLiteRepository) Attempts(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, region_id, score, total_questions, recorded_at
        FROM quest_attempts WHERE user_id = ?
        ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a          Attempt
			recordedAt string
		)
		if err := rows.Scan(&a.ID, &a.Region, &a.Score, &a.TotalQuestions, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.RecordedAt = parseTime(recordedAt)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func loadRecord(ctx context.Context, q queryer, userID string) (Record, error) {
	rec := emptyRecord()

	rows, err := q.QueryContext(ctx, `
        SELECT region_id, completed, progress, best_score, attempts, updated_at
        FROM region_progress WHERE user_id = ?`, userID)
	if err != nil {
		return Record{}, fmt.Errorf("query progress: %w", err)
	}
	for rows.Next() {
		var (
			regionID  string
			rp        RegionProgress
			updatedAt string
		)
		if err := rows.Scan(&regionID, &rp.Completed, &rp.Progress, &rp.BestScore, &rp.Attempts, &updatedAt); err != nil {
			rows.Close()
			return Record{}, fmt.Errorf("scan progress: %w", err)
		}
		rp.UpdatedAt = parseTime(updatedAt)
		rec.Progress[regionID] = rp
	}
	if err := closeRows(rows); err != nil {
		return Record{}, err
	}

	rows, err = q.QueryContext(ctx, `
        SELECT badge_id, category, name, description, icon, awarded_at
        FROM user_badges WHERE user_id = ? ORDER BY awarded_at, rowid`, userID)
	if err != nil {
		return Record{}, fmt.Errorf("query badges: %w", err)
	}
	for rows.Next() {
		var (
			b         badge.Badge
			category  string
			awardedAt string
		)
		if err := rows.Scan(&b.ID, &category, &b.Name, &b.Description, &b.Icon, &awardedAt); err != nil {
			rows.Close()
			return Record{}, fmt.Errorf("scan badge: %w", err)
		}
		b.Category = badge.Category(category)
		b.AwardedAt = parseTime(awardedAt)
		rec.Badges = append(rec.Badges, b)
	}
	if err := closeRows(rows); err != nil {
		return Record{}, err
	}

	return rec, nil
}

func closeRows(rows *sql.Rows) error {
	iterErr := rows.Err()
	closeErr := rows.Close()
	return errors.Join(iterErr, closeErr)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
