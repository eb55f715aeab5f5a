package main

import (
	"github.com/urfave/cli/v2"

	"github.com/example/ec-storefront/internal/infrastructure/migrations"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back the database schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					cfg, log, err := setup()
					if err != nil {
						return err
					}
					db, err := store.ConnectPostgres(cfg.DatabaseURL, log)
					if err != nil {
						return err
					}
					defer db.Close()
					return migrations.Up(db, log.WithField("component", "migrate"))
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
				},
				Action: func(c *cli.Context) error {
					cfg, log, err := setup()
					if err != nil {
						return err
					}
					db, err := store.ConnectPostgres(cfg.DatabaseURL, log)
					if err != nil {
						return err
					}
					defer db.Close()
					return migrations.Down(db, c.Int("steps"), log.WithField("component", "migrate"))
				},
			},
		},
	}
}
