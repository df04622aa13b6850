package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ExportsToPrometheus(t *testing.T) {
	m, err := New("folio-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(t.Context()) })

	ctx := t.Context()
	m.RecordTransition(ctx, "Peer Reviewer Reviewing", "Back to Admin")
	m.RecordConflict(ctx, "SubmitReview")
	m.RecordNotifications(ctx, "bulk", 3)
	m.RecordRelayed(ctx, 2)
	m.RecordOperation(ctx, "SubmitReview", 12*time.Millisecond, errors.New("boom"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "workflow_transitions")
	assert.Contains(t, body, "workflow_conflicts")
	assert.Contains(t, body, "notifications_created")
	assert.Contains(t, body, "outbox_relayed")
}

func TestMetrics_Noop(t *testing.T) {
	m := NewNoop()

	m.RecordTransition(t.Context(), "a", "b")
	require.NoError(t, m.Shutdown(t.Context()))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
