package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/folio/pkg/eventbus"
	"github.com/dukex/folio/pkg/identity"
	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/notification"
	"github.com/dukex/folio/pkg/persistence"
)

type Config struct {
	WatchedStatus string
	SESRegion     string
	SESFrom       string
}

type Notifier struct {
	bus     eventbus.EventSubscriber
	service *notification.Service
	watched models.Status
	logger  *slog.Logger
}

func NewNotifier(
	ctx context.Context,
	cfg Config,
	p persistence.Persistence,
	directory identity.Directory,
	bus eventbus.EventSubscriber,
	logger *slog.Logger,
) (*Notifier, error) {
	watched := models.Status(cfg.WatchedStatus)
	if !watched.Valid() {
		return nil, fmt.Errorf("unknown watched status %q", cfg.WatchedStatus)
	}

	var opts []notification.Option

	if cfg.SESRegion != "" {
		mailer, err := notification.NewSESMailerFromRegion(ctx, cfg.SESRegion, cfg.SESFrom)
		if err != nil {
			return nil, fmt.Errorf("failed to create SES mailer: %w", err)
		}

		opts = append(opts, notification.WithMailer(mailer))
	}

	return &Notifier{
		bus:     bus,
		service: notification.NewService(p.NotificationRepository(), directory, logger, opts...),
		watched: watched,
		logger:  logger,
	}, nil
}

// Start subscribes and blocks until SIGINT or SIGTERM.
func (n *Notifier) Start(ctx context.Context) error {
	n.logger.InfoContext(ctx, "Starting notifier", "watched_status", n.watched)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := notification.Subscribe(ctx, n.bus, n.service, n.logger, notification.WithWatchedStatus(n.watched)); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	n.logger.InfoContext(ctx, "Shutting down notifier...")

	return nil
}
