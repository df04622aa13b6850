// Package web provides the HTTP handlers of the review workflow API.
package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/folio/pkg/deadline"
	"github.com/dukex/folio/pkg/identity"
	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/notification"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/dukex/folio/pkg/projection"
	"github.com/dukex/folio/pkg/review"
	"github.com/dukex/folio/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// SettingsStore reads and replaces the deadline settings document.
type SettingsStore interface {
	Windows(ctx context.Context) (deadline.Windows, error)
	Save(ctx context.Context, days map[string]int) error
}

type APIHandlers struct {
	workflow      *workflow.Controller
	notifications *notification.Service
	directory     identity.Directory
	persistence   persistence.Persistence
	settings      SettingsStore
	validator     *validator.Validate
	now           func() time.Time
}

// NewAPIHandlers wires the handlers. settings may be nil, in which case the
// settings endpoints answer 404.
func NewAPIHandlers(
	ctrl *workflow.Controller,
	notifications *notification.Service,
	directory identity.Directory,
	persistence persistence.Persistence,
	settings SettingsStore,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflow:      ctrl,
		notifications: notifications,
		directory:     directory,
		persistence:   persistence,
		settings:      settings,
		validator:     validator,
		now:           time.Now,
	}
}

func caller(c fiber.Ctx) string {
	return c.Get(CallerHeader)
}

// currentUser resolves the caller. Unknown users are forbidden, not unauthenticated.
func (h *APIHandlers) currentUser(c fiber.Ctx) (*models.User, error) {
	id := caller(c)
	if id == "" {
		return nil, workflow.ErrUnauthenticated
	}

	user, err := h.directory.Lookup(c.Context(), id)
	if err != nil {
		if identity.IsNotFound(err) {
			return nil, fmt.Errorf("%w: unknown user %s", workflow.ErrForbidden, id)
		}

		return nil, err
	}

	return user, nil
}

func (h *APIHandlers) requireAdmin(c fiber.Ctx) (*models.User, error) {
	user, err := h.currentUser(c)
	if err != nil {
		return nil, err
	}

	if user.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: %s has role %s", workflow.ErrForbidden, user.ID, user.Role)
	}

	return user, nil
}

// visible returns the caller's projection of one manuscript.
func (h *APIHandlers) visible(c fiber.Ctx, user *models.User, id string) (*projection.View, error) {
	m, err := h.workflow.Get(c.Context(), id)
	if err != nil {
		return nil, err
	}

	views := projection.For(user, []*models.Manuscript{m}, h.now())
	if len(views) == 0 {
		return nil, workflow.ErrNotFound
	}

	return &views[0], nil
}

// respondProjected answers non-admin writes with the caller's view of the result.
func (h *APIHandlers) respondProjected(c fiber.Ctx, status int, m *models.Manuscript) error {
	user, err := h.currentUser(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	views := projection.For(user, []*models.Manuscript{m}, h.now())
	if len(views) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(status).JSON(views[0])
}

func (h *APIHandlers) SubmitManuscript(c fiber.Ctx) error {
	var draft workflow.Draft
	if err := c.Bind().JSON(&draft); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(draft); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	m, err := h.workflow.Submit(c.Context(), caller(c), draft)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(m)
}

func (h *APIHandlers) ListManuscripts(c fiber.Ctx) error {
	if _, err := h.requireAdmin(c); err != nil {
		return handleServiceError(c, err)
	}

	opts, err := parseListManuscriptsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	manuscripts, err := h.workflow.List(c.Context(), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"manuscripts": manuscripts,
		"pagination": fiber.Map{
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
	})
}

func parseListManuscriptsOptions(c fiber.Ctx) (persistence.ListManuscriptsOptions, error) {
	opts := persistence.ListManuscriptsOptions{
		SubmitterID: c.Query("submitter_id"),
		ReviewerID:  c.Query("reviewer_id"),
	}

	if status := c.Query("status"); status != "" {
		s := models.Status(status)
		if !s.Valid() {
			return opts, fmt.Errorf("unknown status %q", status)
		}

		opts.Status = &s
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return opts, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return opts, err
		}

		opts.Offset = offset
	}

	return opts, nil
}

// GetManuscript returns the stored document to admins and the caller's
// projection to everyone else.
func (h *APIHandlers) GetManuscript(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Manuscript ID is required")
	}

	user, err := h.currentUser(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	if user.Role == models.RoleAdmin {
		m, err := h.workflow.Get(c.Context(), id)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(m)
	}

	view, err := h.visible(c, user, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) AcceptManuscript(c fiber.Ctx) error {
	m, err := h.workflow.Accept(c.Context(), caller(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(m)
}

func (h *APIHandlers) RejectSubmission(c fiber.Ctx) error {
	m, err := h.workflow.RejectSubmission(c.Context(), caller(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(m)
}

func (h *APIHandlers) AssignReviewer(c fiber.Ctx) error {
	var req AssignReviewerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	m, err := h.workflow.AssignReviewer(c.Context(), caller(c), c.Params("id"), req.ReviewerID, workflow.AssignOptions{
		Deadline:           req.Deadline,
		ReminderEnabled:    req.ReminderEnabled,
		ReminderDaysBefore: req.ReminderDaysBefore,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(m)
}

func (h *APIHandlers) UnassignReviewer(c fiber.Ctx) error {
	m, err := h.workflow.UnassignReviewer(c.Context(), caller(c), c.Params("id"), c.Params("reviewerId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(m)
}

// RespondToInvitation only lets reviewers answer their own invitation.
func (h *APIHandlers) RespondToInvitation(c fiber.Ctx) error {
	actor := caller(c)
	if actor == "" {
		return unauthenticated(c)
	}

	if actor != c.Params("reviewerId") {
		return forbidden(c, "reviewers may only respond to their own invitation")
	}

	var req InvitationResponseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	m, err := h.workflow.RespondToInvitation(c.Context(), actor, c.Params("id"), req.Response)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.respondProjected(c, fiber.StatusOK, m)
}

func (h *APIHandlers) UpdateReviewerDeadline(c fiber.Ctx) error {
	var req UpdateDeadlineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	m, err := h.workflow.UpdateReviewerDeadline(c.Context(), caller(c), c.Params("id"), c.Params("reviewerId"), review.DeadlineUpdate{
		Deadline:           req.Deadline,
		ReminderEnabled:    req.ReminderEnabled,
		ReminderDaysBefore: req.ReminderDaysBefore,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(m)
}

// UpdateReviewerDeadlines resets every outstanding reviewer deadline to the
// configured window of the given kind.
func (h *APIHandlers) UpdateReviewerDeadlines(c fiber.Ctx) error {
	var req UpdateDeadlinesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	m, err := h.workflow.UpdateReviewerDeadlines(c.Context(), caller(c), c.Params("id"), req.Kind)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(m)
}

func (h *APIHandlers) SubmitReview(c fiber.Ctx) error {
	var req workflow.ReviewInput
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	m, err := h.workflow.SubmitReview(c.Context(), caller(c), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.respondProjected(c, fiber.StatusCreated, m)
}

func (h *APIHandlers) Decide(c fiber.Ctx) error {
	var req DecisionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	m, err := h.workflow.Decide(c.Context(), caller(c), c.Params("id"), req.Outcome)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(m)
}

func (h *APIHandlers) Resubmit(c fiber.Ctx) error {
	var req workflow.ResubmitInput
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	m, err := h.workflow.Resubmit(c.Context(), caller(c), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.respondProjected(c, fiber.StatusCreated, m)
}

func (h *APIHandlers) GetCandidates(c fiber.Ctx) error {
	users, err := h.workflow.Candidates(c.Context(), caller(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"candidates": users,
	})
}

func (h *APIHandlers) GetAggregate(c fiber.Ctx) error {
	if _, err := h.requireAdmin(c); err != nil {
		return handleServiceError(c, err)
	}

	m, err := h.workflow.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(review.Aggregate(m))
}

// GetDeadline reports the deadlines visible to the caller: the manuscript
// deadline for admins and authors plus every open reviewer deadline for
// admins, or the reviewer's own deadline.
func (h *APIHandlers) GetDeadline(c fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	view, err := h.visible(c, user, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	resp := DeadlineResponse{ManuscriptID: view.ID}

	switch user.Role {
	case models.RolePeerReviewer:
		if view.Deadline != nil {
			resp.Reviewers = map[string]deadline.Info{user.ID: *view.Deadline}
		}
	default:
		resp.Manuscript = view.Deadline

		for _, rv := range view.Reviewers {
			if rv.Deadline == nil {
				continue
			}

			if resp.Reviewers == nil {
				resp.Reviewers = map[string]deadline.Info{}
			}

			resp.Reviewers[rv.ReviewerID] = *rv.Deadline
		}
	}

	return c.JSON(resp)
}

func (h *APIHandlers) GetViews(c fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	manuscripts, err := h.workflow.List(c.Context(), persistence.ListManuscriptsOptions{})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"role":        user.Role,
		"manuscripts": projection.For(user, manuscripts, h.now()),
	})
}

func (h *APIHandlers) SendBulkNotifications(c fiber.Ctx) error {
	var req notification.Request
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	user, err := h.currentUser(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	result, err := h.notifications.SendBulk(c.Context(), user.ID, req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ListNotifications(c fiber.Ctx) error {
	recipient := caller(c)
	if recipient == "" {
		return unauthenticated(c)
	}

	unseenOnly := c.Query("unseen") == "true"

	views, err := h.notifications.List(c.Context(), recipient, unseenOnly)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"notifications": views,
	})
}

func (h *APIHandlers) MarkNotificationsSeen(c fiber.Ctx) error {
	recipient := caller(c)
	if recipient == "" {
		return unauthenticated(c)
	}

	var req MarkSeenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	n, err := h.notifications.MarkSeen(c.Context(), recipient, req.IDs)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"updated": n,
	})
}

func (h *APIHandlers) GetDeadlineSettings(c fiber.Ctx) error {
	if h.settings == nil {
		return notFound(c, "deadline settings are not managed by this server")
	}

	if _, err := h.requireAdmin(c); err != nil {
		return handleServiceError(c, err)
	}

	windows, err := h.settings.Windows(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(windows)
}

func (h *APIHandlers) UpdateDeadlineSettings(c fiber.Ctx) error {
	if h.settings == nil {
		return notFound(c, "deadline settings are not managed by this server")
	}

	if _, err := h.requireAdmin(c); err != nil {
		return handleServiceError(c, err)
	}

	var days map[string]int
	if err := c.Bind().JSON(&days); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.settings.Save(c.Context(), days); err != nil {
		return handleServiceError(c, err)
	}

	windows, err := h.settings.Windows(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(windows)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := workflow.HealthCheck(c.Context(), h.persistence)

	status := "unhealthy"
	message := "Folio API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Folio API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
	})
}
