package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// ManuscriptRepository handles manuscript-related database operations.
type ManuscriptRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewManuscriptRepository creates a new manuscript repository.
func NewManuscriptRepository(db *sql.DB, logger *slog.Logger) *ManuscriptRepository {
	return &ManuscriptRepository{db: db, logger: logger}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanManuscript(row scanner) (*models.Manuscript, error) {
	var (
		document []byte
		revision int64
	)

	if err := row.Scan(&document, &revision); err != nil {
		return nil, err
	}

	var m models.Manuscript
	if err := json.Unmarshal(document, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manuscript document: %w", err)
	}

	m.Revision = revision

	return &m, nil
}

func (r *ManuscriptRepository) GetByID(ctx context.Context, id string) (*models.Manuscript, error) {
	query := `
		SELECT
			document
		  , revision
		FROM manuscripts
		WHERE id = $1
	`

	m, err := scanManuscript(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewManuscriptError("GetByID", id, persistence.ErrManuscriptNotFound)
		}

		return nil, fmt.Errorf("failed to scan manuscript: %w", err)
	}

	return m, nil
}

func (r *ManuscriptRepository) buildListQuery(opts persistence.ListManuscriptsOptions) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}

	if opts.SubmitterID != "" {
		args = append(args, opts.SubmitterID)
		conditions = append(conditions, "submitter_id = $"+strconv.Itoa(len(args)))
	}

	if opts.ReviewerID != "" {
		args = append(args, opts.ReviewerID)
		conditions = append(conditions, "document->'assigned_reviewers' ? $"+strconv.Itoa(len(args)))
	}

	var b strings.Builder

	b.WriteString("SELECT document, revision FROM manuscripts")

	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}

	b.WriteString(" ORDER BY submitted_at DESC, id ASC")

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		b.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	return b.String(), args
}

func (r *ManuscriptRepository) List(ctx context.Context, opts persistence.ListManuscriptsOptions) ([]*models.Manuscript, error) {
	query, args := r.buildListQuery(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query manuscripts: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	out := make([]*models.Manuscript, 0)

	for rows.Next() {
		m, err := scanManuscript(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan manuscript: %w", err)
		}

		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating manuscripts: %w", err)
	}

	return out, nil
}

func (r *ManuscriptRepository) Create(ctx context.Context, m *models.Manuscript, events []models.OutboxEvent) error {
	next := *m
	next.Revision = 1

	document, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal manuscript %s: %w", m.ID, err)
	}

	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO manuscripts (id, status, submitter_id, version_number, document, revision, submitted_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			next.ID,
			string(next.Status),
			next.SubmitterID,
			next.VersionNumber,
			document,
			next.Revision,
			next.SubmittedAt,
			next.UpdatedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return persistence.NewManuscriptError("Create", m.ID, persistence.ErrManuscriptAlreadyExists)
			}

			return fmt.Errorf("failed to insert manuscript: %w", err)
		}

		return insertOutbox(ctx, tx, events)
	})
	if err != nil {
		return err
	}

	m.Revision = next.Revision

	return nil
}

func (r *ManuscriptRepository) Update(ctx context.Context, m *models.Manuscript, expectedRevision int64, events []models.OutboxEvent) error {
	next := *m
	next.Revision = expectedRevision + 1

	document, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal manuscript %s: %w", m.ID, err)
	}

	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE manuscripts SET
				status = $3,
				submitter_id = $4,
				version_number = $5,
				document = $6,
				revision = $7,
				updated_at = $8
			WHERE id = $1 AND revision = $2
		`,
			next.ID,
			expectedRevision,
			string(next.Status),
			next.SubmitterID,
			next.VersionNumber,
			document,
			next.Revision,
			next.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update manuscript: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}

		if affected == 0 {
			var exists bool

			err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM manuscripts WHERE id = $1)", next.ID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to check manuscript existence: %w", err)
			}

			if !exists {
				return persistence.NewManuscriptError("Update", m.ID, persistence.ErrManuscriptNotFound)
			}

			return persistence.NewConflictError("Update", m.ID, expectedRevision)
		}

		return insertOutbox(ctx, tx, events)
	})
	if err != nil {
		return err
	}

	m.Revision = next.Revision

	return nil
}

func insertOutbox(ctx context.Context, tx *sql.Tx, events []models.OutboxEvent) error {
	for _, e := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, e.ID, e.AggregateID, e.Type, []byte(e.Payload), e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert outbox event %s: %w", e.ID, err)
		}
	}

	return nil
}

// withTx commits when fn succeeds and rolls back otherwise.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
