package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Black-And-White-Club/frolf-raffle/app"
	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	rafflewallet "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/wallet"
	"github.com/Black-And-White-Club/frolf-raffle/config"
	"github.com/Black-And-White-Club/frolf-raffle/db/bundb"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/jwt"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "raffle",
		Usage: "recurring raffle service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"RAFFLE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			fundCommand(),
			freezeCommand(),
			statusCommand(),
			tokenCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the raffle service",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "run database migrations before starting"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			application, err := app.NewApp(ctx, cfg, app.Options{Migrate: c.Bool("migrate")})
			if err != nil {
				return err
			}

			runErr := application.Run(ctx)
			closeErr := application.Close()
			if runErr != nil {
				return runErr
			}
			return closeErr
		},
	}
}

func fundCommand() *cli.Command {
	return &cli.Command{
		Name:      "fund",
		Usage:     "credit a participant's wallet",
		ArgsUsage: "<address> <amount>",
		Action: func(c *cli.Context) error {
			account, err := parseAddress(c.Args().Get(0))
			if err != nil {
				return err
			}
			amount, err := uint256.FromDecimal(c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", c.Args().Get(1), err)
			}

			return withDB(c, func(ctx context.Context, _ *config.Config, db *bun.DB) error {
				ledger := rafflewallet.NewLedger(db)
				err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
					return ledger.Deposit(ctx, tx, account, amount)
				})
				if err != nil {
					return err
				}
				balance, err := ledger.Balance(ctx, db, account)
				if err != nil {
					return err
				}
				fmt.Printf("%s balance: %s\n", account.Hex(), balance.Dec())
				return nil
			})
		},
	}
}

func freezeCommand() *cli.Command {
	return &cli.Command{
		Name:      "freeze",
		Usage:     "block or unblock a wallet",
		ArgsUsage: "<address>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "unfreeze", Usage: "lift a freeze instead of setting one"},
		},
		Action: func(c *cli.Context) error {
			account, err := parseAddress(c.Args().First())
			if err != nil {
				return err
			}
			frozen := !c.Bool("unfreeze")

			return withDB(c, func(ctx context.Context, _ *config.Config, db *bun.DB) error {
				if err := rafflewallet.NewLedger(db).SetFrozen(ctx, db, account, frozen); err != nil {
					return err
				}
				fmt.Printf("%s frozen: %t\n", account.Hex(), frozen)
				return nil
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print the live round and recent winners",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "winners", Value: 5, Usage: "number of recent winners to list"},
		},
		Action: func(c *cli.Context) error {
			return withDB(c, func(ctx context.Context, cfg *config.Config, db *bun.DB) error {
				raffleCfg, err := cfg.RaffleDomainConfig()
				if err != nil {
					return err
				}
				obs := observability.NewNoop()
				// Read-only: no coordinator or publisher is needed.
				service, err := raffleservice.NewRaffleService(
					raffledb.NewRepository(db), rafflewallet.NewLedger(db), nil, nil,
					raffleCfg, obs.Logger, nil, obs.Tracer, db,
				)
				if err != nil {
					return err
				}

				snapshot, err := service.Snapshot(ctx)
				if err != nil {
					return err
				}
				winners, err := service.Winners(ctx, c.Int("winners"))
				if err != nil {
					return err
				}

				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"round":           snapshot.Round,
					"state":           snapshot.State.String(),
					"players":         snapshot.Players,
					"balance":         snapshot.Balance,
					"last_timestamp":  snapshot.LastTimestamp,
					"recent_winner":   snapshot.RecentWinner,
					"pending_request": snapshot.PendingRequest,
					"upkeep_needed":   snapshot.UpkeepNeeded,
					"entrance_fee":    service.EntranceFee(),
					"interval":        service.Interval().String(),
					"winners":         winners,
				})
			})
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "issue a bearer token for the HTTP API",
		ArgsUsage: "<subject>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "scope", Value: jwt.ScopeEnter, Usage: "raffle:enter, raffle:upkeep or raffle:fulfill"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.JWT.Secret == "" {
				return fmt.Errorf("jwt secret is not configured")
			}
			subject := c.Args().First()
			if subject == "" {
				return fmt.Errorf("subject is required")
			}

			token, err := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer).GenerateToken(subject, c.String("scope"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func withDB(c *cli.Context, fn func(ctx context.Context, cfg *config.Config, db *bun.DB) error) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	db, err := bundb.NewBunDB(c.Context, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(c.Context, cfg, db)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
