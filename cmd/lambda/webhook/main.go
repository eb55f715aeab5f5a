package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/gateway"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/webhook"
)

// The connection pool and credential cache live across warm invocations.
var apiGatewayHandler *webhook.APIGatewayHandler

func init() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.LogLevel, "json")

	db, err := store.ConnectPostgres(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("connect to PostgreSQL")
	}
	pgStore := store.NewPostgresStore(db)

	var publisher kafka.Publisher = kafka.NopPublisher{}
	if cfg.KafkaEnabled() {
		publisher = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
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

	apiGatewayHandler = webhook.NewAPIGatewayHandler(webhook.NewReconciler(pgStore, gw, publisher, log))
	log.Info("webhook lambda initialized")
}

func main() {
	lambda.Start(apiGatewayHandler.Handle)
}
