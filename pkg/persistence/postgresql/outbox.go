package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/folio/pkg/models"
	"github.com/lib/pq"
)

// OutboxRepository reads and acknowledges committed outbox events.
type OutboxRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewOutboxRepository(db *sql.DB, logger *slog.Logger) *OutboxRepository {
	return &OutboxRepository{db: db, logger: logger}
}

func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id
		  , aggregate_id
		  , event_type
		  , payload
		  , created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	out := make([]models.OutboxEvent, 0)

	for rows.Next() {
		var (
			e       models.OutboxEvent
			payload []byte
		)

		if err := rows.Scan(&e.ID, &e.AggregateID, &e.Type, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}

		e.Payload = payload
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox: %w", err)
	}

	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		"UPDATE outbox_events SET published_at = $1 WHERE id = ANY($2) AND published_at IS NULL",
		at, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox events published: %w", err)
	}

	return nil
}
