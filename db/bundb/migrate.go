package bundb

import (
	"context"
	"fmt"
	"log/slog"

	rafflemigrations "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// NewMigrator returns the bun migrator of the raffle tables.
func NewMigrator(db *bun.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, rafflemigrations.Migrations)
}

// SchemaStatus describes both schemas the service owns.
type SchemaStatus struct {
	Raffle       migrate.MigrationSlice
	RiverPending []int
}

// MigrateUp brings the schema up to date: River's queue tables first, then
// the raffle tables.
func MigrateUp(ctx context.Context, db *bun.DB, dsn string, logger *slog.Logger) error {
	if err := MigrateRiver(ctx, dsn, logger); err != nil {
		return err
	}

	migrator := NewMigrator(db)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration tables: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run raffle migrations: %w", err)
	}
	if group.IsZero() {
		logger.InfoContext(ctx, "Raffle tables are up to date")
	} else {
		logger.InfoContext(ctx, "Migrated raffle tables", slog.String("group", group.String()))
	}
	return nil
}

// Rollback reverts the last raffle migration group. With river set it also
// reverts the latest River version.
func Rollback(ctx context.Context, db *bun.DB, dsn string, river bool, logger *slog.Logger) error {
	group, err := NewMigrator(db).Rollback(ctx)
	if err != nil {
		return fmt.Errorf("failed to roll back raffle migrations: %w", err)
	}
	if group.IsZero() {
		logger.InfoContext(ctx, "No raffle migration group to roll back")
	} else {
		logger.InfoContext(ctx, "Rolled back raffle tables", slog.String("group", group.String()))
	}

	if !river {
		return nil
	}
	return withRiverMigrator(ctx, dsn, func(m *rivermigrate.Migrator[pgx.Tx]) error {
		res, err := m.Migrate(ctx, rivermigrate.DirectionDown, &rivermigrate.MigrateOpts{MaxSteps: 1})
		if err != nil {
			return fmt.Errorf("failed to roll back River migrations: %w", err)
		}
		for _, v := range res.Versions {
			logger.InfoContext(ctx, "Rolled back River version", slog.Int("version", v.Version))
		}
		return nil
	})
}

// Status reports applied and pending migrations of both schemas.
func Status(ctx context.Context, db *bun.DB, dsn string) (*SchemaStatus, error) {
	ms, err := NewMigrator(db).MigrationsWithStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read raffle migration status: %w", err)
	}
	status := &SchemaStatus{Raffle: ms}

	err = withRiverMigrator(ctx, dsn, func(m *rivermigrate.Migrator[pgx.Tx]) error {
		res, err := m.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{DryRun: true})
		if err != nil {
			return fmt.Errorf("failed to read River migration status: %w", err)
		}
		for _, v := range res.Versions {
			status.RiverPending = append(status.RiverPending, v.Version)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// MigrateRiver runs River queue migrations. River requires pgx, not database/sql.
func MigrateRiver(ctx context.Context, dsn string, logger *slog.Logger) error {
	return withRiverMigrator(ctx, dsn, func(m *rivermigrate.Migrator[pgx.Tx]) error {
		res, err := m.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{})
		if err != nil {
			return fmt.Errorf("failed to run River migrations: %w", err)
		}
		logger.InfoContext(ctx, "River queue migrations completed", slog.Int("versions", len(res.Versions)))
		return nil
	})
}

func withRiverMigrator(ctx context.Context, dsn string, fn func(*rivermigrate.Migrator[pgx.Tx]) error) error {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse DSN for River migrations: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool for River migrations: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	return fn(migrator)
}
