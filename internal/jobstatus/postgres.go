package jobstatus

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresChecker answers AllCompleted from a background_jobs table for
// dispatchers that persist their jobs instead of using a Tracker.
// A job counts as running while its finished_at column is NULL; ids
// missing from the table count as completed.
type PostgresChecker struct {
	db *sql.DB
}

// NewPostgresChecker creates a checker backed by db.
func NewPostgresChecker(db *sql.DB) *PostgresChecker {
	return &PostgresChecker{db: db}
}

// NumRunning returns how many of ids are unfinished. Duplicate ids are
// counted once.
func (c *PostgresChecker) NumRunning(ctx context.Context, ids []string) (int, error) {
	seen := make(map[string]struct{}, len(ids))
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	if len(args) == 0 {
		return 0, nil
	}

	query := `
		SELECT count(*)
		FROM background_jobs
		WHERE id IN (` + strings.Join(placeholders, ", ") + `) AND finished_at IS NULL
	`

	var running int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&running); err != nil {
		return 0, fmt.Errorf("count running jobs: %w", err)
	}
	return running, nil
}

// AllCompleted reports whether every job in ids has finished.
func (c *PostgresChecker) AllCompleted(ctx context.Context, ids []string) (bool, error) {
	running, err := c.NumRunning(ctx, ids)
	if err != nil {
		return false, err
	}
	return running == 0, nil
}
