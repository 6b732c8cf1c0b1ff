package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ericfisherdev/forumbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MappingSnapshotStore = (*MappingRepo)(nil)

// MappingRepo stores the thread-to-issue snapshot in SQLite. Thread IDs are
// kept as TEXT because Discord snowflakes can exceed the signed 64-bit range.
type MappingRepo struct {
	db *DB
}

// NewMappingRepo creates a new MappingRepo.
func NewMappingRepo(db *DB) *MappingRepo {
	return &MappingRepo{db: db}
}

// Load returns the saved snapshot. found is false until Save has run once.
func (r *MappingRepo) Load(ctx context.Context) (map[uint64]int, bool, error) {
	var entries int
	err := r.db.Reader.QueryRowContext(ctx, `SELECT entries FROM snapshot_meta WHERE id = 1`).Scan(&entries)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot meta: %w", err)
	}

	rows, err := r.db.Reader.QueryContext(ctx, `SELECT thread_id, issue_number FROM thread_issues`)
	if err != nil {
		return nil, false, fmt.Errorf("list thread issues: %w", err)
	}
	defer rows.Close()

	issues := make(map[uint64]int, entries)
	for rows.Next() {
		var rawThreadID string
		var number int
		if err := rows.Scan(&rawThreadID, &number); err != nil {
			return nil, false, fmt.Errorf("scan thread issue: %w", err)
		}

		threadID, err := strconv.ParseUint(rawThreadID, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("parse thread id %q: %w", rawThreadID, err)
		}
		issues[threadID] = number
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate thread issues: %w", err)
	}

	return issues, true, nil
}

// Save replaces the stored snapshot with issues in a single transaction.
func (r *MappingRepo) Save(ctx context.Context, issues map[uint64]int) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_issues`); err != nil {
		return fmt.Errorf("clear thread issues: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO thread_issues (thread_id, issue_number) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare thread issue insert: %w", err)
	}
	defer stmt.Close()

	for threadID, number := range issues {
		if _, err := stmt.ExecContext(ctx, strconv.FormatUint(threadID, 10), number); err != nil {
			return fmt.Errorf("insert thread %d: %w", threadID, err)
		}
	}

	const upsertMeta = `
		INSERT INTO snapshot_meta (id, saved_at, entries) VALUES (1, CURRENT_TIMESTAMP, ?)
		ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at, entries = excluded.entries`
	if _, err := tx.ExecContext(ctx, upsertMeta, len(issues)); err != nil {
		return fmt.Errorf("update snapshot meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// SavedAt returns when the snapshot was last written. ok is false if never.
func (r *MappingRepo) SavedAt(ctx context.Context) (time.Time, bool, error) {
	var raw string
	err := r.db.Reader.QueryRowContext(ctx, `SELECT saved_at FROM snapshot_meta WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read snapshot saved_at: %w", err)
	}

	t, err := parseTime(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse saved_at: %w", err)
	}
	return t, true, nil
}

// parseTime accepts the timestamp layouts the driver returns for DATETIME columns.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
