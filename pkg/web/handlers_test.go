package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/folio/pkg/identity"
	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/notification"
	"github.com/dukex/folio/pkg/persistence/file"
	"github.com/dukex/folio/pkg/projection"
	"github.com/dukex/folio/pkg/review"
	"github.com/dukex/folio/pkg/settings"
	"github.com/dukex/folio/pkg/web"
	"github.com/dukex/folio/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	for _, u := range []*models.User{
		{ID: "admin", Role: models.RoleAdmin, Email: "admin@example.org"},
		{ID: "author", Role: models.RoleResearcher},
		{ID: "r1", Role: models.RolePeerReviewer},
		{ID: "r2", Role: models.RolePeerReviewer},
	} {
		require.NoError(t, store.UserRepository().Save(t.Context(), u))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	directory := identity.NewService(store.UserRepository(), identity.NewMemoryCache(0), logger)
	provider := settings.NewRepositoryProvider(store.SettingsRepository())
	ctrl := workflow.NewController(store.ManuscriptRepository(), directory, provider, logger)
	notifications := notification.NewService(store.NotificationRepository(), directory, logger)

	handlers := web.NewAPIHandlers(ctrl, notifications, directory, store, provider, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	m := app.Group("/manuscripts")
	m.Post("/", handlers.SubmitManuscript)
	m.Get("/", handlers.ListManuscripts)
	m.Get("/:id", handlers.GetManuscript)
	m.Post("/:id/accept", handlers.AcceptManuscript)
	m.Post("/:id/reject-submission", handlers.RejectSubmission)
	m.Post("/:id/reviewers", handlers.AssignReviewer)
	m.Delete("/:id/reviewers/:reviewerId", handlers.UnassignReviewer)
	m.Post("/:id/reviewers/:reviewerId/response", handlers.RespondToInvitation)
	m.Patch("/:id/reviewers/:reviewerId/deadline", handlers.UpdateReviewerDeadline)
	m.Post("/:id/deadlines", handlers.UpdateReviewerDeadlines)
	m.Post("/:id/reviews", handlers.SubmitReview)
	m.Post("/:id/decision", handlers.Decide)
	m.Post("/:id/resubmissions", handlers.Resubmit)
	m.Get("/:id/candidates", handlers.GetCandidates)
	m.Get("/:id/aggregate", handlers.GetAggregate)
	m.Get("/:id/deadline", handlers.GetDeadline)

	n := app.Group("/notifications")
	n.Post("/bulk", handlers.SendBulkNotifications)
	n.Get("/", handlers.ListNotifications)
	n.Post("/seen", handlers.MarkNotificationsSeen)

	app.Get("/views", handlers.GetViews)
	app.Get("/settings/deadlines", handlers.GetDeadlineSettings)
	app.Put("/settings/deadlines", handlers.UpdateDeadlineSettings)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func do(t *testing.T, app *fiber.App, method, path, userID string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if userID != "" {
		req.Header.Set(web.CallerHeader, userID)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

var draft = workflow.Draft{
	Title: "Sparse attention at scale",
	File:  models.FileRef{URL: "https://files.example.org/m.pdf", Name: "m.pdf"},
}

func submit(t *testing.T, app *fiber.App) *models.Manuscript {
	t.Helper()

	status, body := do(t, app, http.MethodPost, "/manuscripts", "author", draft)
	require.Equal(t, http.StatusCreated, status, string(body))

	var m models.Manuscript
	require.NoError(t, json.Unmarshal(body, &m))

	return &m
}

func TestAPIHandlers_SubmitManuscript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		userID         string
		requestBody    any
		expectedStatus int
	}{
		{name: "successful submission", userID: "author", requestBody: draft, expectedStatus: http.StatusCreated},
		{name: "invalid JSON", userID: "author", requestBody: "invalid-json", expectedStatus: http.StatusBadRequest},
		{
			name:           "validation error - missing title",
			userID:         "author",
			requestBody:    workflow.Draft{File: draft.File},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "validation error - bad file url",
			userID:         "author",
			requestBody:    workflow.Draft{Title: "x", File: models.FileRef{URL: "not a url", Name: "m.pdf"}},
			expectedStatus: http.StatusBadRequest,
		},
		{name: "missing caller", requestBody: draft, expectedStatus: http.StatusUnauthorized},
		{name: "reviewers cannot submit", userID: "r1", requestBody: draft, expectedStatus: http.StatusForbidden},
		{name: "unknown caller", userID: "ghost", requestBody: draft, expectedStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)

			status, body := do(t, app, http.MethodPost, "/manuscripts", tt.userID, tt.requestBody)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedStatus == http.StatusCreated {
				var m models.Manuscript
				require.NoError(t, json.Unmarshal(body, &m))
				assert.NotEmpty(t, m.ID)
				assert.Equal(t, models.StatusPending, m.Status)
				assert.Equal(t, 1, m.VersionNumber)
				assert.Len(t, m.SubmissionHistory, 1)
			}
		})
	}
}

func TestAPIHandlers_ReviewRoundOverHTTP(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	m := submit(t, app)
	base := "/manuscripts/" + m.ID

	status, body := do(t, app, http.MethodPost, base+"/reviewers", "admin", web.AssignReviewerRequest{ReviewerID: "r1"})
	require.Equal(t, http.StatusCreated, status, string(body))

	var assigned models.Manuscript
	require.NoError(t, json.Unmarshal(body, &assigned))
	assert.Equal(t, models.StatusAssigningReviewer, assigned.Status)

	status, body = do(t, app, http.MethodPost, base+"/reviewers/r1/response", "r1", web.InvitationResponseRequest{Response: models.InvitationAccepted})
	require.Equal(t, http.StatusOK, status, string(body))

	var reviewerView projection.View
	require.NoError(t, json.Unmarshal(body, &reviewerView))
	require.NotNil(t, reviewerView.Assignment)
	assert.Equal(t, models.InvitationAccepted, reviewerView.Assignment.InvitationStatus)
	assert.Equal(t, models.StatusReviewerAssigned, reviewerView.Status)

	status, body = do(t, app, http.MethodGet, base+"/deadline", "r1", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var dl web.DeadlineResponse
	require.NoError(t, json.Unmarshal(body, &dl))
	assert.Nil(t, dl.Manuscript)
	assert.Contains(t, dl.Reviewers, "r1")

	status, body = do(t, app, http.MethodPost, base+"/reviews", "r1", workflow.ReviewInput{Decision: models.DecisionMinor, Comment: "clarify the baseline"})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = do(t, app, http.MethodGet, base+"/aggregate", "admin", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var summary review.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.True(t, summary.AllDecided)
	assert.Equal(t, 1, summary.Decisions[models.DecisionMinor])

	status, _ = do(t, app, http.MethodGet, base+"/aggregate", "author", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = do(t, app, http.MethodPost, base+"/decision", "admin", web.DecisionRequest{Outcome: models.StatusRevisionMinor})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = do(t, app, http.MethodGet, base, "author", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var authorView projection.View
	require.NoError(t, json.Unmarshal(body, &authorView))
	assert.Equal(t, models.StatusRevisionMinor, authorView.Status)
	require.Len(t, authorView.Reviews, 1)
	assert.Empty(t, authorView.Reviews[0].ReviewerID)
	assert.Equal(t, "clarify the baseline", authorView.Reviews[0].Comment)

	status, body = do(t, app, http.MethodPost, base+"/resubmissions", "author", workflow.ResubmitInput{
		File:          models.FileRef{URL: "https://files.example.org/m-v2.pdf", Name: "m-v2.pdf"},
		RevisionNotes: "baseline clarified",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	require.NoError(t, json.Unmarshal(body, &authorView))
	assert.Equal(t, 2, authorView.VersionNumber)
	assert.Equal(t, models.StatusAssigningReviewer, authorView.Status)

	status, body = do(t, app, http.MethodGet, base+"/candidates", "admin", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var candidates struct {
		Candidates []*models.User `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(body, &candidates))
	require.Len(t, candidates.Candidates, 1)
	assert.Equal(t, "r2", candidates.Candidates[0].ID)
}

func TestAPIHandlers_StatusErrors(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	m := submit(t, app)
	base := "/manuscripts/" + m.ID

	status, _ := do(t, app, http.MethodPost, base+"/accept", "admin", nil)
	require.Equal(t, http.StatusOK, status)

	status, body := do(t, app, http.MethodPost, base+"/accept", "admin", nil)
	assert.Equal(t, http.StatusConflict, status, string(body))

	status, _ = do(t, app, http.MethodPost, base+"/decision", "admin", web.DecisionRequest{Outcome: models.StatusPending})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, base+"/decision", "admin", web.DecisionRequest{Outcome: models.StatusForPublication})
	assert.Equal(t, http.StatusConflict, status, "not back to admin yet")

	status, _ = do(t, app, http.MethodPost, "/manuscripts/missing/accept", "admin", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodPost, base+"/reviewers", "admin", web.AssignReviewerRequest{ReviewerID: "author"})
	assert.Equal(t, http.StatusBadRequest, status, "only peer reviewers can be invited")

	status, _ = do(t, app, http.MethodPost, base+"/reviewers", "admin", web.AssignReviewerRequest{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, base+"/reject-submission", "r1", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = do(t, app, http.MethodPost, base+"/reject-submission", "admin", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var rejected models.Manuscript
	require.NoError(t, json.Unmarshal(body, &rejected))
	assert.Equal(t, models.StatusNonAcceptance, rejected.Status)
}

func TestAPIHandlers_ReviewerRoster(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	m := submit(t, app)
	base := "/manuscripts/" + m.ID

	for _, id := range []string{"r1", "r2"} {
		status, body := do(t, app, http.MethodPost, base+"/reviewers", "admin", web.AssignReviewerRequest{ReviewerID: id})
		require.Equal(t, http.StatusCreated, status, string(body))
	}

	status, _ := do(t, app, http.MethodPost, base+"/reviewers/r1/response", "r2", web.InvitationResponseRequest{Response: models.InvitationAccepted})
	assert.Equal(t, http.StatusForbidden, status, "r2 cannot answer for r1")

	status, _ = do(t, app, http.MethodPost, base+"/reviewers/r1/response", "r1", web.InvitationResponseRequest{Response: "maybe"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, base+"/reviewers/r1/response", "", web.InvitationResponseRequest{Response: models.InvitationAccepted})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := do(t, app, http.MethodPost, base+"/reviewers/r2/response", "r2", web.InvitationResponseRequest{Response: models.InvitationDeclined})
	require.Equal(t, http.StatusNoContent, status, string(body), "declined reviewers no longer see the manuscript")

	status, _ = do(t, app, http.MethodGet, base, "r2", nil)
	assert.Equal(t, http.StatusNotFound, status)

	enabled := true
	days := 2
	status, body = do(t, app, http.MethodPatch, base+"/reviewers/r1/deadline", "admin", web.UpdateDeadlineRequest{ReminderEnabled: &enabled, ReminderDaysBefore: &days})
	require.Equal(t, http.StatusOK, status, string(body))

	var updated models.Manuscript
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.True(t, updated.AssignedReviewersMeta["r1"].ReminderEnabled)
	assert.Equal(t, 2, updated.AssignedReviewersMeta["r1"].ReminderDaysBefore)

	status, _ = do(t, app, http.MethodPost, base+"/deadlines", "admin", web.UpdateDeadlinesRequest{Kind: "forever"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, app, http.MethodPost, base+"/deadlines", "admin", web.UpdateDeadlinesRequest{Kind: "invitation"})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = do(t, app, http.MethodDelete, base+"/reviewers/r1", "admin", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.NotContains(t, updated.AssignedReviewers, "r1")
}

func TestAPIHandlers_ReviewerNotOnRoster(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	m := submit(t, app)
	base := "/manuscripts/" + m.ID

	status, body := do(t, app, http.MethodPost, base+"/reviewers", "admin", web.AssignReviewerRequest{ReviewerID: "r1"})
	require.Equal(t, http.StatusCreated, status, string(body))

	enabled := true
	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "unassign", method: http.MethodDelete, path: base + "/reviewers/r2"},
		{name: "update deadline", method: http.MethodPatch, path: base + "/reviewers/r2/deadline", body: web.UpdateDeadlineRequest{ReminderEnabled: &enabled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, tt.method, tt.path, "admin", tt.body)
			assert.Equal(t, http.StatusNotFound, status, string(body))
			assert.Contains(t, string(body), "reviewer_not_assigned")
		})
	}
}

func TestAPIHandlers_ListAndViews(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	m := submit(t, app)
	submit(t, app)

	status, _ := do(t, app, http.MethodPost, "/manuscripts/"+m.ID+"/reviewers", "admin", web.AssignReviewerRequest{ReviewerID: "r1"})
	require.Equal(t, http.StatusCreated, status)

	status, _ = do(t, app, http.MethodGet, "/manuscripts", "author", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, app, http.MethodGet, "/manuscripts?limit=abc", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodGet, "/manuscripts?status=Unknown", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := do(t, app, http.MethodGet, "/manuscripts?status=Pending", "admin", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var listed struct {
		Manuscripts []*models.Manuscript `json:"manuscripts"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed.Manuscripts, 1)

	var views struct {
		Role        models.Role       `json:"role"`
		Manuscripts []projection.View `json:"manuscripts"`
	}

	status, body = do(t, app, http.MethodGet, "/views", "r1", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &views))
	assert.Equal(t, models.RolePeerReviewer, views.Role)
	require.Len(t, views.Manuscripts, 1)
	assert.Equal(t, m.ID, views.Manuscripts[0].ID)

	status, body = do(t, app, http.MethodGet, "/views", "author", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &views))
	assert.Len(t, views.Manuscripts, 2)

	status, _ = do(t, app, http.MethodGet, "/views", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPIHandlers_Notifications(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, _ := do(t, app, http.MethodPost, "/notifications/bulk", "", notification.Request{
		RecipientIDs: []string{"author"}, Type: "announcement", Title: "t", Message: "m",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	for _, id := range []string{"ghost-not-a-user", models.SystemActor} {
		status, body := do(t, app, http.MethodPost, "/notifications/bulk", id, notification.Request{
			RecipientIDs: []string{"author", "admin"}, Type: "announcement", Title: "t", Message: "m",
		})
		assert.Equal(t, http.StatusForbidden, status, string(body))
	}

	status, _ = do(t, app, http.MethodPost, "/notifications/bulk", "admin", notification.Request{
		RecipientIDs: []string{"author"}, Type: "announcement", Title: "t",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := do(t, app, http.MethodPost, "/notifications/bulk", "admin", notification.Request{
		RecipientIDs: []string{"author", "ghost"},
		Type:         "announcement",
		Title:        "Call for papers",
		Message:      "Submissions close on Friday.",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var result notification.Result
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Success)
	require.Len(t, result.Created, 1)
	assert.Equal(t, []string{"ghost"}, result.Skipped)

	var listed struct {
		Notifications []notification.View `json:"notifications"`
	}

	status, body = do(t, app, http.MethodGet, "/notifications?unseen=true", "author", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed.Notifications, 1)

	status, _ = do(t, app, http.MethodPost, "/notifications/seen", "author", web.MarkSeenRequest{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, app, http.MethodPost, "/notifications/seen", "author", web.MarkSeenRequest{IDs: []string{listed.Notifications[0].ID}})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"updated":1}`, string(body))

	status, body = do(t, app, http.MethodGet, "/notifications?unseen=true", "author", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Empty(t, listed.Notifications)

	status, _ = do(t, app, http.MethodGet, "/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPIHandlers_DeadlineSettings(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/settings/deadlines", "admin", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"invitation":5,"review":6,"minor":5,"major":6,"finalization":5}`, string(body))

	status, _ = do(t, app, http.MethodPut, "/settings/deadlines", "author", map[string]int{"review": 10})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, app, http.MethodPut, "/settings/deadlines", "admin", map[string]int{"review": 0})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, app, http.MethodPut, "/settings/deadlines", "admin", map[string]int{"review": 10, "For Revision (Major)": 14})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"invitation":5,"review":10,"minor":5,"major":14,"finalization":5}`, string(body))
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)

	var response map[string]any
	require.NoError(t, json.Unmarshal(body, &response))
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "Persistence layer is healthy", response["checkers"].(map[string]any)["repository"])
}
