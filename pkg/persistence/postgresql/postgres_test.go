package postgresql

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Persistence, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return newPersistence(db, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func testManuscript() *models.Manuscript {
	return &models.Manuscript{
		ID:            "m-1",
		Title:         "Graph Rewriting",
		Status:        models.StatusPending,
		VersionNumber: 1,
		SubmitterID:   "author",
		SubmittedAt:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		SubmissionHistory: []models.SubmissionVersion{
			{VersionNumber: 1, SubmittedBy: "author"},
		},
	}
}

func testEvent() models.OutboxEvent {
	return models.OutboxEvent{
		ID:          "e-1",
		AggregateID: "m-1",
		Type:        "manuscript.submitted",
		Payload:     json.RawMessage(`{}`),
		CreatedAt:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestManuscriptRepository_GetByID(t *testing.T) {
	p, mock := newMock(t)

	doc, err := json.Marshal(testManuscript())
	require.NoError(t, err)

	mock.ExpectQuery("FROM manuscripts").WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows([]string{"document", "revision"}).AddRow(doc, int64(7)))

	m, err := p.ManuscriptRepository().GetByID(t.Context(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Graph Rewriting", m.Title)
	assert.Equal(t, int64(7), m.Revision, "the revision column is authoritative")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManuscriptRepository_GetByID_NotFound(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery("FROM manuscripts").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := p.ManuscriptRepository().GetByID(t.Context(), "missing")
	assert.True(t, persistence.IsManuscriptNotFound(err))
}

func TestManuscriptRepository_CreateWritesOutboxInSameTransaction(t *testing.T) {
	p, mock := newMock(t)
	m := testManuscript()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO manuscripts").
		WithArgs("m-1", "Pending", "author", 1, sqlmock.AnyArg(), int64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("e-1", "m-1", "manuscript.submitted", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, p.ManuscriptRepository().Create(t.Context(), m, []models.OutboxEvent{testEvent()}))
	assert.Equal(t, int64(1), m.Revision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManuscriptRepository_CreateDuplicate(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO manuscripts").WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	err := p.ManuscriptRepository().Create(t.Context(), testManuscript(), nil)
	assert.ErrorIs(t, err, persistence.ErrManuscriptAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManuscriptRepository_Update(t *testing.T) {
	p, mock := newMock(t)
	m := testManuscript()
	m.Status = models.StatusAccepted

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND revision = $2")).
		WithArgs("m-1", int64(3), "Accepted", "author", 1, sqlmock.AnyArg(), int64(4), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, p.ManuscriptRepository().Update(t.Context(), m, 3, []models.OutboxEvent{testEvent()}))
	assert.Equal(t, int64(4), m.Revision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManuscriptRepository_UpdateConflict(t *testing.T) {
	p, mock := newMock(t)
	m := testManuscript()
	m.Revision = 3

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE manuscripts SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := p.ManuscriptRepository().Update(t.Context(), m, 3, []models.OutboxEvent{testEvent()})
	require.ErrorIs(t, err, persistence.ErrConflict)
	assert.Equal(t, int64(3), m.Revision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManuscriptRepository_UpdateMissing(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE manuscripts SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := p.ManuscriptRepository().Update(t.Context(), testManuscript(), 1, nil)
	assert.True(t, persistence.IsManuscriptNotFound(err))
}

func TestManuscriptRepository_buildListQuery(t *testing.T) {
	repo := &ManuscriptRepository{}
	status := models.StatusBackToAdmin

	tests := []struct {
		name          string
		opts          persistence.ListManuscriptsOptions
		expectedQuery string
		expectedArgs  []any
	}{
		{
			name:          "no filters",
			opts:          persistence.ListManuscriptsOptions{},
			expectedQuery: "SELECT document, revision FROM manuscripts ORDER BY submitted_at DESC, id ASC",
		},
		{
			name: "all filters",
			opts: persistence.ListManuscriptsOptions{
				Status: &status, SubmitterID: "author", ReviewerID: "r1", Limit: 10, Offset: 20,
			},
			expectedQuery: "SELECT document, revision FROM manuscripts WHERE status = $1 AND submitter_id = $2 AND " +
				"document->'assigned_reviewers' ? $3 ORDER BY submitted_at DESC, id ASC LIMIT $4 OFFSET $5",
			expectedArgs: []any{"Back to Admin", "author", "r1", 10, 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := repo.buildListQuery(tt.opts)
			assert.Equal(t, tt.expectedQuery, query)
			assert.Equal(t, tt.expectedArgs, args)
		})
	}
}

func TestManuscriptRepository_List(t *testing.T) {
	p, mock := newMock(t)

	first, _ := json.Marshal(testManuscript())
	second := testManuscript()
	second.ID = "m-2"
	secondDoc, _ := json.Marshal(second)

	mock.ExpectQuery("SELECT document, revision FROM manuscripts").
		WillReturnRows(sqlmock.NewRows([]string{"document", "revision"}).AddRow(first, int64(1)).AddRow(secondDoc, int64(2)))

	list, err := p.ManuscriptRepository().List(t.Context(), persistence.ListManuscriptsOptions{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "m-2", list[1].ID)
	assert.Equal(t, int64(2), list[1].Revision)
}

func TestOutboxRepository(t *testing.T) {
	p, mock := newMock(t)
	created := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM outbox_events").WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "created_at"}).
			AddRow("e-1", "m-1", "manuscript.status_changed", []byte(`{"to":"Back to Admin"}`), created))
	mock.ExpectExec("UPDATE outbox_events SET published_at").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	events, err := p.OutboxRepository().Pending(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"to":"Back to Admin"}`, string(events[0].Payload))

	require.NoError(t, p.OutboxRepository().MarkPublished(t.Context(), []string{"e-1"}, time.Now()))
	require.NoError(t, p.OutboxRepository().MarkPublished(t.Context(), nil, time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_CreateBatch(t *testing.T) {
	p, mock := newMock(t)
	serverTime := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()

	for _, recipient := range []string{"a", "b"} {
		mock.ExpectQuery("INSERT INTO notifications").
			WithArgs(sqlmock.AnyArg(), recipient, "t", "title", "msg", sqlmock.AnyArg(), false, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(serverTime))
	}

	mock.ExpectCommit()

	batch := []*models.Notification{
		{RecipientID: "a", Type: "t", Title: "title", Message: "msg"},
		{RecipientID: "b", Type: "t", Title: "title", Message: "msg"},
	}

	require.NoError(t, p.NotificationRepository().CreateBatch(t.Context(), batch))

	for _, n := range batch {
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, serverTime, n.CreatedAt)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_CreateBatchRollsBackOnFailure(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO notifications").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectQuery("INSERT INTO notifications").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := p.NotificationRepository().CreateBatch(t.Context(), []*models.Notification{
		{RecipientID: "a"}, {RecipientID: "b"},
	})
	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_MarkSeen(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectExec("UPDATE notifications SET seen = TRUE").
		WithArgs("a", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := p.NotificationRepository().MarkSeen(t.Context(), "a", []string{"n1", "n2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUserRepository(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery("FROM users WHERE id").WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "display_name"}).
			AddRow("u-1", "Admin", "admin@example.org", nil))
	mock.ExpectQuery("FROM users WHERE id").WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("FROM users WHERE role").WithArgs("Peer Reviewer").
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "display_name"}).
			AddRow("r1", "Peer Reviewer", nil, "R One"))

	u, err := p.UserRepository().GetByID(t.Context(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.Equal(t, "admin@example.org", u.Email)
	assert.Empty(t, u.DisplayName)

	_, err = p.UserRepository().GetByID(t.Context(), "ghost")
	assert.True(t, persistence.IsUserNotFound(err))

	reviewers, err := p.UserRepository().ListByRole(t.Context(), models.RolePeerReviewer)
	require.NoError(t, err)
	require.Len(t, reviewers, 1)
	assert.Equal(t, "R One", reviewers[0].DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepository(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery("SELECT value FROM settings").WithArgs("deadlines").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT value FROM settings").WithArgs("deadlines").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"review": 8}`)))

	days, err := p.SettingsRepository().DeadlineDays(t.Context())
	require.NoError(t, err)
	assert.Nil(t, days)

	days, err = p.SettingsRepository().DeadlineDays(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"review": 8}, days)
}
