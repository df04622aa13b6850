// Package main provides the deadline reminder worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/folio/pkg/cmd"
	"github.com/dukex/folio/pkg/log"
	"github.com/dukex/folio/pkg/notification"
	"github.com/dukex/folio/pkg/reminder"
	"github.com/dukex/folio/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "folio-reminder"

func main() {
	cmd := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Remind reviewers of approaching deadlines",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://path or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
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
				Name:    "settings-path",
				Usage:   "JSON file with deadline windows; stored settings are used when empty",
				Sources: cli.EnvVars("SETTINGS_PATH"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for reminder passes",
				Value:   reminder.DefaultSchedule,
				Sources: cli.EnvVars("REMINDER_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single pass and exit",
				Value: false,
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

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			directory, err := cmd.NewDirectory(persistence, command.String("role-cache-url"), command.Duration("role-cache-ttl"), logger)
			if err != nil {
				return err
			}

			provider := cmd.NewSettingsProvider(persistence, command.String("settings-path"))
			ctrl := workflow.NewController(persistence.ManuscriptRepository(), directory, provider, logger)
			notifications := notification.NewService(persistence.NotificationRepository(), directory, logger)

			poller := reminder.NewPoller(ctrl, notifications, logger, reminder.WithSchedule(command.String("schedule")))

			if command.Bool("once") {
				sent, err := poller.RunOnce(ctx)
				logger.InfoContext(ctx, "reminder pass finished", "sent", sent)

				return err
			}

			if err := poller.Start(ctx); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down reminder poller...")
			poller.Stop()

			return nil
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
