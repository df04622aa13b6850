// Package main provides the folio API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/folio/pkg/cmd"
	"github.com/dukex/folio/pkg/log"
	"github.com/dukex/folio/pkg/metrics"
	"github.com/dukex/folio/pkg/notification"
	"github.com/dukex/folio/pkg/otelhelper"
	"github.com/dukex/folio/pkg/outbox"
	"github.com/dukex/folio/pkg/settings"
	"github.com/dukex/folio/pkg/web"
	"github.com/dukex/folio/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort = 9091
	serviceName = "folio-api"
)

func main() {
	cmd := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Serve the manuscript review workflow",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://path or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
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
				Name:    "settings-path",
				Usage:   "JSON file with deadline windows; stored settings are used when empty",
				Sources: cli.EnvVars("SETTINGS_PATH"),
			},
			&cli.DurationFlag{
				Name:    "relay-interval",
				Usage:   "How often committed events are relayed to the bus",
				Value:   outbox.DefaultInterval,
				Sources: cli.EnvVars("RELAY_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:    "embedded-notifier",
				Usage:   "Handle notification triggers in this process",
				Value:   false,
				Sources: cli.EnvVars("EMBEDDED_NOTIFIER"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Value:   false,
				Sources: cli.EnvVars("OTEL_TRACING_ENABLED"),
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

			logger := log.WithModule("api")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Initializing folio API")

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

			m, err := metrics.New(serviceName)
			if err != nil {
				return err
			}

			defer func() { _ = m.Shutdown(context.Background()) }()

			opts := []workflow.Option{workflow.WithMetrics(m)}

			if command.Bool("tracing") {
				tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
				if err != nil {
					return err
				}

				defer func() { _ = shutdown(context.Background()) }()

				opts = append(opts, workflow.WithTracer(tracer))
			}

			provider := cmd.NewSettingsProvider(persistence, command.String("settings-path"))
			ctrl := workflow.NewController(persistence.ManuscriptRepository(), directory, provider, logger, opts...)
			notifications := notification.NewService(persistence.NotificationRepository(), directory, logger, notification.WithMetrics(m))

			if command.Bool("embedded-notifier") {
				if err := notification.Subscribe(ctx, eventBus, notifications, logger); err != nil {
					return err
				}
			}

			relay := outbox.NewRelay(persistence.OutboxRepository(), eventBus, logger,
				outbox.WithInterval(command.Duration("relay-interval")),
				outbox.WithMetrics(m),
			)

			go func() {
				_ = relay.Run(ctx)
			}()

			var store web.SettingsStore
			if rp, ok := provider.(*settings.RepositoryProvider); ok {
				store = rp
			}

			api := NewAPI(logger, persistence, ctrl, notifications, directory, store, m)

			return api.Start(ctx, command.Int("port"))
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
