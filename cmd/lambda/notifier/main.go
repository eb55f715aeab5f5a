package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/notification"
)

var (
	notificationHandler *notification.Handler
	log                 logrus.FieldLogger
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := logging.New(cfg.LogLevel, "json")
	log = logger.WithField("component", "lambda-notifier")

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	notificationHandler = notification.NewHandler(emailSvc, cfg.AdminEmail, logger)

	log.WithField("smtp", cfg.SMTPHost+":"+cfg.SMTPPort).Info("initialized")
}

func handler(ctx context.Context, event events.KafkaEvent) error {
	processed, failed := kafka.ConsumeLambdaEvent(ctx, event, notificationHandler.HandleEvent, log)
	log.WithFields(logrus.Fields{"processed": processed, "failed": failed}).Info("batch done")
	return nil
}

func main() {
	lambda.Start(handler)
}
