package rafflemigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating raffle tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS raffle_rounds (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					round_number BIGINT NOT NULL,
					state SMALLINT NOT NULL CHECK (state IN (0, 1)),
					started_at TIMESTAMPTZ NOT NULL,
					balance NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (balance >= 0),
					pending_request TEXT NOT NULL DEFAULT '',
					recent_winner BYTEA NOT NULL,
					config JSONB NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CHECK ((state = 1) = (pending_request <> ''))
				);
			`); err != nil {
				return fmt.Errorf("failed to create raffle_rounds table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS raffle_entries (
					round_number BIGINT NOT NULL,
					slot INTEGER NOT NULL CHECK (slot >= 0),
					participant BYTEA NOT NULL,
					amount NUMERIC(78,0) NOT NULL CHECK (amount > 0),
					entered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (round_number, slot)
				);
				CREATE INDEX IF NOT EXISTS idx_raffle_entries_participant ON raffle_entries(participant);
			`); err != nil {
				return fmt.Errorf("failed to create raffle_entries table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS raffle_winners (
					round_number BIGINT PRIMARY KEY,
					winner BYTEA NOT NULL,
					winner_index INTEGER NOT NULL,
					payout NUMERIC(78,0) NOT NULL,
					random_word NUMERIC(78,0) NOT NULL,
					request_id TEXT NOT NULL UNIQUE,
					paid_at TIMESTAMPTZ NOT NULL
				);
			`); err != nil {
				return fmt.Errorf("failed to create raffle_winners table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping raffle tables...")

		_, err := db.ExecContext(ctx, `
			DROP TABLE IF EXISTS raffle_winners;
			DROP TABLE IF EXISTS raffle_entries;
			DROP TABLE IF EXISTS raffle_rounds;
		`)
		return err
	})
}
