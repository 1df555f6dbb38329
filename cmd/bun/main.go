package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/Black-And-White-Club/frolf-raffle/config"
	"github.com/Black-And-White-Club/frolf-raffle/db/bundb"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
)

type schemaAction func(ctx context.Context, db *bun.DB, dsn string, logger *slog.Logger) error

func main() {
	cliApp := &cli.App{
		Name:  "bun",
		Usage: "manage the raffle and River schemas",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"RAFFLE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			upCommand(),
			downCommand(),
			statusCommand(),
			createCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func upCommand() *cli.Command {
	return &cli.Command{
		Name:  "up",
		Usage: "apply River and raffle migrations",
		Action: func(c *cli.Context) error {
			return withSchema(c, bundb.MigrateUp)
		},
	}
}

func downCommand() *cli.Command {
	return &cli.Command{
		Name:  "down",
		Usage: "roll back the last raffle migration group",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "river", Usage: "also roll back the latest River version"},
		},
		Action: func(c *cli.Context) error {
			return withSchema(c, func(ctx context.Context, db *bun.DB, dsn string, logger *slog.Logger) error {
				return bundb.Rollback(ctx, db, dsn, c.Bool("river"), logger)
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print applied and pending migrations",
		Action: func(c *cli.Context) error {
			return withSchema(c, func(ctx context.Context, db *bun.DB, dsn string, _ *slog.Logger) error {
				status, err := bundb.Status(ctx, db, dsn)
				if err != nil {
					return err
				}
				fmt.Printf("raffle applied:   %s\n", status.Raffle.Applied())
				fmt.Printf("raffle unapplied: %s\n", status.Raffle.Unapplied())
				fmt.Printf("river pending:    %v\n", status.RiverPending)
				return nil
			})
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "create a raffle migration",
		ArgsUsage: "<name words...>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "sql", Usage: "create up and down SQL files instead of a Go migration"},
		},
		Action: func(c *cli.Context) error {
			name := strings.Join(c.Args().Slice(), "_")
			if name == "" {
				return fmt.Errorf("migration name is required")
			}

			return withSchema(c, func(ctx context.Context, db *bun.DB, _ string, _ *slog.Logger) error {
				migrator := bundb.NewMigrator(db)
				if !c.Bool("sql") {
					mf, err := migrator.CreateGoMigration(ctx, name)
					if err != nil {
						return err
					}
					fmt.Printf("created %s (%s)\n", mf.Name, mf.Path)
					return nil
				}

				files, err := migrator.CreateSQLMigrations(ctx, name)
				if err != nil {
					return err
				}
				for _, mf := range files {
					fmt.Printf("created %s (%s)\n", mf.Name, mf.Path)
				}
				return nil
			})
		},
	}
}

// withSchema opens the configured database for the duration of one command.
func withSchema(c *cli.Context, fn schemaAction) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	db, err := bundb.NewBunDB(c.Context, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return fn(c.Context, db, cfg.Postgres.DSN, logger)
}
