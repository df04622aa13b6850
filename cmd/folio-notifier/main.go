// Package main provides the notification worker. It consumes manuscript events
// from the bus and fans them out as in-app notifications, optionally mirrored
// by email through SES.
package main

import (
	"context"
	"os"
	"time"

	"github.com/dukex/folio/pkg/cmd"
	"github.com/dukex/folio/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "folio-notifier"

func main() {
	cmd := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Deliver notifications for manuscript events",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://path or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "role-cache-url",
				Usage:   "Redis URL for the shared role cache; in-process cache when empty",
				Sources: cli.EnvVars("ROLE_CACHE_URL"),
			},
			&cli.DurationFlag{
				Name:    "role-cache-ttl",
				Usage:   "How long cached users are trusted",
				Value:   5 * time.Minute,
				Sources: cli.EnvVars("ROLE_CACHE_TTL"),
			},
			&cli.StringFlag{
				Name:    "watched-status",
				Usage:   "Status whose entry notifies the recipient role",
				Value:   "Back to Admin",
				Sources: cli.EnvVars("NOTIFY_WATCHED_STATUS"),
			},
			&cli.StringFlag{
				Name:    "ses-region",
				Usage:   "AWS region for email mirroring; email is disabled when empty",
				Sources: cli.EnvVars("SES_REGION"),
			},
			&cli.StringFlag{
				Name:    "ses-from",
				Usage:   "Verified SES sender address",
				Sources: cli.EnvVars("SES_FROM"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(serviceName, command.String("log-level"))

			logger := log.WithModule(serviceName)

			logger.InfoContext(ctx, "Initializing folio notifier")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), serviceName, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			directory, err := cmd.NewDirectory(persistence, command.String("role-cache-url"), command.Duration("role-cache-ttl"), logger)
			if err != nil {
				return err
			}

			worker, err := NewNotifier(ctx, Config{
				WatchedStatus: command.String("watched-status"),
				SESRegion:     command.String("ses-region"),
				SESFrom:       command.String("ses-from"),
			}, persistence, directory, eventBus, logger)
			if err != nil {
				return err
			}

			return worker.Start(ctx)
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
