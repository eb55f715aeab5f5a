package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/example/ec-storefront/internal/api"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/gateway"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/migrations"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/query"
	"github.com/example/ec-storefront/internal/webhook"
)

const minJWTSecretLength = 32

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			return serve(c.Context, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return errors.Errorf("JWT_SECRET must be at least %d characters long", minJWTSecretLength)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"env":   cfg.AppEnv,
		"kafka": cfg.KafkaBrokers,
		"topic": cfg.KafkaTopic,
	}).Info("starting storefront API")

	db, err := store.ConnectPostgres(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	if cfg.MigrateOnStart {
		if err := migrations.Up(db, log.WithField("component", "migrate")); err != nil {
			return err
		}
	}

	pgStore := store.NewPostgresStore(db)

	var publisher kafka.Publisher = kafka.NopPublisher{}
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
	} else {
		log.Warn("KAFKA_BROKERS not set, order events are not published")
	}

	creds := gateway.NewCachedCredentials(
		gateway.NewSettingsCredentials(pgStore.Settings(), cfg.Gateway.AccessToken),
		cfg.Gateway.CredentialTTL,
	)
	gw := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		Timeout:   cfg.Gateway.Timeout,
		RateLimit: cfg.Gateway.RateLimit,
		RateBurst: cfg.Gateway.RateBurst,
	}, creds, log)

	cmdHandler := command.NewHandler(pgStore, gw, publisher, command.CheckoutSettings{
		Currency:        cfg.Gateway.Currency,
		PublicSiteURL:   cfg.PublicSiteURL,
		NotificationURL: cfg.WebhookURL(),
	}, log)
	queryHandler := query.NewHandler(pgStore)
	reconciler := webhook.NewReconciler(pgStore, gw, publisher, log)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL)
	handlers := api.NewHandlers(cmdHandler, queryHandler, reconciler, log)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(handlers, jwtService, log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return errors.Wrap(server.Shutdown(shutdownCtx), "shutdown")
}
