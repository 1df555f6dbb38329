// db/bundb/bundb.go
package bundb

import (
	"context"
	"database/sql"
	"fmt"

	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	rafflewallet "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/wallet"
	"github.com/Black-And-White-Club/frolf-raffle/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewBunDB opens the raffle database described by cfg and registers its models.
func NewBunDB(ctx context.Context, cfg config.PostgresConfig) (*bun.DB, error) {
	sqldb, err := pgConn(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return BunDB(sqldb), nil
}

// BunDB returns a new bun.DB for given sql.DB connection pool.
func BunDB(sqldb *sql.DB) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	db.RegisterModel(
		(*raffledb.RoundRecord)(nil),
		(*raffledb.EntryRecord)(nil),
		(*raffledb.WinnerRecord)(nil),
		(*rafflewallet.Account)(nil),
	)
	return db
}

func pgConn(ctx context.Context, dsn string) (*sql.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return sqldb, nil
}
