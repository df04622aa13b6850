package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/folio/pkg/channels/gochannel"
	"github.com/dukex/folio/pkg/eventbus"
	"github.com/dukex/folio/pkg/identity"
	"github.com/dukex/folio/pkg/metrics"
	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/notification"
	"github.com/dukex/folio/pkg/outbox"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/dukex/folio/pkg/persistence/file"
	"github.com/dukex/folio/pkg/settings"
	"github.com/dukex/folio/pkg/web"
	"github.com/dukex/folio/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app           *fiber.App
	store         persistence.Persistence
	notifications *notification.Service
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())

	for _, u := range []*models.User{
		{ID: "admin", Role: models.RoleAdmin},
		{ID: "author", Role: models.RoleResearcher},
		{ID: "r1", Role: models.RolePeerReviewer},
	} {
		require.NoError(t, store.UserRepository().Save(t.Context(), u))
	}

	m, err := metrics.New("folio-api-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(t.Context()) })

	directory := identity.NewService(store.UserRepository(), identity.NewMemoryCache(time.Minute), logger)
	provider := settings.NewRepositoryProvider(store.SettingsRepository())
	ctrl := workflow.NewController(store.ManuscriptRepository(), directory, provider, logger, workflow.WithMetrics(m))
	notifications := notification.NewService(store.NotificationRepository(), directory, logger, notification.WithMetrics(m))

	api := NewAPI(logger, store, ctrl, notifications, directory, provider, m)

	return &testEnv{app: api.App(), store: store, notifications: notifications}
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if userID != "" {
		req.Header.Set(web.CallerHeader, userID)
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

func TestAPI_RootEndpoint(t *testing.T) {
	env := setupTestApp(t)

	status, body := env.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Folio API", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	env := setupTestApp(t)

	status, body := env.do(t, http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", string(body))

	status, _ = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_Metrics(t *testing.T) {
	env := setupTestApp(t)

	status, _ := env.do(t, http.MethodPost, "/manuscripts", "author", workflow.Draft{
		Title: "Metrics",
		File:  models.FileRef{URL: "https://files.example.org/m.pdf", Name: "m.pdf"},
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "workflow_operation_duration")
}

// The embedded notifier sees committed transitions once the relay publishes them.
func TestAPI_EmbeddedNotifier(t *testing.T) {
	env := setupTestApp(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)
	t.Cleanup(func() { _ = bus.Close() })

	require.NoError(t, notification.Subscribe(t.Context(), bus, env.notifications, logger))

	status, body := env.do(t, http.MethodPost, "/manuscripts", "author", workflow.Draft{
		Title: "Relayed",
		File:  models.FileRef{URL: "https://files.example.org/m.pdf", Name: "m.pdf"},
	})
	require.Equal(t, http.StatusCreated, status)

	var m models.Manuscript
	require.NoError(t, json.Unmarshal(body, &m))

	base := "/manuscripts/" + m.ID
	status, _ = env.do(t, http.MethodPost, base+"/reviewers", "admin", web.AssignReviewerRequest{ReviewerID: "r1"})
	require.Equal(t, http.StatusCreated, status)
	status, _ = env.do(t, http.MethodPost, base+"/reviewers/r1/response", "r1", web.InvitationResponseRequest{Response: models.InvitationAccepted})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPost, base+"/reviews", "r1", workflow.ReviewInput{Decision: models.DecisionPublication})
	require.Equal(t, http.StatusCreated, status)

	relay := outbox.NewRelay(env.store.OutboxRepository(), bus, logger)
	n, err := relay.RelayOnce(t.Context())
	require.NoError(t, err)
	assert.Positive(t, n)

	assert.Eventually(t, func() bool {
		got, err := env.store.NotificationRepository().ListByRecipient(t.Context(), "admin", false)
		return err == nil && len(got) == 1 && got[0].Type == models.NotificationTypeReviewsCompleted
	}, 5*time.Second, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		got, err := env.store.NotificationRepository().ListByRecipient(t.Context(), "r1", false)
		return err == nil && len(got) == 1 && got[0].Type == models.NotificationTypeReviewerInvited
	}, 5*time.Second, 20*time.Millisecond)
}
