package web

import (
	"errors"

	"github.com/dukex/folio/pkg/notification"
	"github.com/dukex/folio/pkg/settings"
	"github.com/dukex/folio/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func unauthenticated(c fiber.Ctx) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthenticated").
		WithDetail("missing " + CallerHeader + " header")

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func forbidden(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(403).
		WithInstance(c.Path()).
		WithType("forbidden").
		WithDetail(detail)

	return c.Status(fiber.StatusForbidden).JSON(problem)
}

// handleServiceError maps workflow and notification errors onto problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case workflow.IsUnauthenticated(err), notification.IsUnauthenticated(err):
		return unauthenticated(c)

	case workflow.IsForbidden(err), notification.IsForbidden(err):
		return forbidden(c, err.Error())

	case workflow.IsNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("manuscript_not_found").
			WithDetail("manuscript not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case workflow.IsReviewerNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("reviewer_not_assigned").
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case workflow.IsValidation(err), notification.IsValidation(err), errors.Is(err, settings.ErrInvalidDocument):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case workflow.IsConflict(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
