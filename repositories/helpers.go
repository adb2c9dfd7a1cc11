package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLExecutor lets mutation methods run either directly on *sql.DB or inside
// a caller-owned *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

// TryAdvisoryLeagueLock attempts to take the transaction-scoped advisory lock
// for a league. It returns false when another transaction already holds it,
// which callers surface as a retryable concurrency error. The lock is released
// automatically at commit/rollback.
func TryAdvisoryLeagueLock(ctx context.Context, exec SQLExecutor, leagueID int) (bool, error) {
	var acquired bool
	err := exec.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, int64(leagueID)).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("failed to acquire advisory lock for league %d: %w", leagueID, err)
	}
	return acquired, nil
}
