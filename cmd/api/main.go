package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/logging"
)

func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "checkout, order administration and payment reconciliation API",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			tokenCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("storefront")
	}
}

// setup loads configuration and the process logger shared by every command.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint a session token for local testing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true},
			&cli.StringFlag{Name: "email"},
			&cli.StringFlag{Name: "role", Value: auth.RoleCustomer},
		},
		Action: func(c *cli.Context) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			if cfg.AppEnv == "production" {
				return cli.Exit("refusing to mint tokens in production", 1)
			}
			jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL)
			token, expiresAt, err := jwtService.GenerateAccessToken(c.String("user"), c.String("email"), c.String("role"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			fmt.Fprintf(c.App.ErrWriter, "expires at %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}
