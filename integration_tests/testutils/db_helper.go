package testutils

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// Raffle tables in truncation order.
var appTables = []string{"raffle_entries", "raffle_winners", "raffle_rounds", "raffle_accounts"}

// CleanupRiverJobs deletes all jobs from the River queue
func CleanupRiverJobs(ctx context.Context, db *bun.DB) error {
	_, err := db.ExecContext(ctx, "DELETE FROM river_job")
	return err
}

// CleanupDatabase truncates all raffle tables and the River job table.
func CleanupDatabase(ctx context.Context, db *bun.DB) error {
	if err := TruncateTables(ctx, db, appTables...); err != nil {
		return err
	}
	if err := CleanupRiverJobs(ctx, db); err != nil && !strings.Contains(err.Error(), "does not exist") {
		return fmt.Errorf("failed to cleanup river jobs: %w", err)
	}
	return nil
}

// TruncateTables truncates the specified tables
func TruncateTables(ctx context.Context, db *bun.DB, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}

	quoted := make([]string, len(tables))
	for i, table := range tables {
		quoted[i] = fmt.Sprintf(`"%s"`, table)
	}

	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(quoted, ", "))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate tables %v: %w", tables, err)
	}
	return nil
}
