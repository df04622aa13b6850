package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/folio/pkg/identity"
	"github.com/dukex/folio/pkg/metrics"
	"github.com/dukex/folio/pkg/notification"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/dukex/folio/pkg/web"
	"github.com/dukex/folio/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger        *slog.Logger
	persistence   persistence.Persistence
	workflow      *workflow.Controller
	notifications *notification.Service
	directory     identity.Directory
	settings      web.SettingsStore
	metrics       *metrics.Metrics
	validate      *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	ctrl *workflow.Controller,
	notifications *notification.Service,
	directory identity.Directory,
	settings web.SettingsStore,
	m *metrics.Metrics,
) *API {
	return &API{
		logger:        logger,
		persistence:   persistence,
		workflow:      ctrl,
		notifications: notifications,
		directory:     directory,
		settings:      settings,
		metrics:       m,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.workflow, a.notifications, a.directory, a.persistence, a.settings, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Folio API")
	})

	m := app.Group("/manuscripts")
	m.Post("/", handlers.SubmitManuscript)
	m.Get("/", handlers.ListManuscripts)
	m.Get("/:id", handlers.GetManuscript)
	m.Post("/:id/accept", handlers.AcceptManuscript)
	m.Post("/:id/reject-submission", handlers.RejectSubmission)
	m.Post("/:id/decision", handlers.Decide)
	m.Post("/:id/resubmissions", handlers.Resubmit)
	m.Get("/:id/aggregate", handlers.GetAggregate)
	m.Get("/:id/deadline", handlers.GetDeadline)
	m.Post("/:id/deadlines", handlers.UpdateReviewerDeadlines)

	// Reviewer endpoints:
	m.Get("/:id/candidates", handlers.GetCandidates)
	m.Post("/:id/reviewers", handlers.AssignReviewer)
	m.Delete("/:id/reviewers/:reviewerId", handlers.UnassignReviewer)
	m.Post("/:id/reviewers/:reviewerId/response", handlers.RespondToInvitation)
	m.Patch("/:id/reviewers/:reviewerId/deadline", handlers.UpdateReviewerDeadline)
	m.Post("/:id/reviews", handlers.SubmitReview)

	n := app.Group("/notifications")
	n.Post("/bulk", handlers.SendBulkNotifications)
	n.Get("/", handlers.ListNotifications)
	n.Post("/seen", handlers.MarkNotificationsSeen)

	app.Get("/views", handlers.GetViews)
	app.Get("/settings/deadlines", handlers.GetDeadlineSettings)
	app.Put("/settings/deadlines", handlers.UpdateDeadlineSettings)

	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))

	return app
}

// Start serves until ctx is cancelled.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		a.logger.Info("Shutting down API...")

		if err := app.Shutdown(); err != nil {
			a.logger.Error("Failed to shut down API", "error", err)
		}
	}()

	return app.Listen(":" + strconv.Itoa(port))
}
