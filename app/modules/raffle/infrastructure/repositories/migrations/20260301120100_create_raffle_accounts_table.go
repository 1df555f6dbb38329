package rafflemigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating raffle_accounts table...")
		_, err := db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS raffle_accounts (
				address BYTEA PRIMARY KEY,
				balance NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (balance >= 0),
				frozen BOOLEAN NOT NULL DEFAULT FALSE,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`)
		if err != nil {
			return fmt.Errorf("failed to create raffle_accounts table: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping raffle_accounts table...")
		_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS raffle_accounts;`)
		return err
	})
}
