package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/folio/pkg/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// NotificationRepository handles notification-related database operations.
type NotificationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewNotificationRepository(db *sql.DB, logger *slog.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// CreateBatch inserts all notifications in one transaction. created_at comes
// from the database clock.
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, n := range notifications {
			if n.ID == "" {
				id, err := uuid.NewV7()
				if err != nil {
					return fmt.Errorf("failed to generate notification ID: %w", err)
				}

				n.ID = id.String()
			}

			metadata, err := json.Marshal(n.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal metadata: %w", err)
			}

			err = tx.QueryRowContext(ctx, `
				INSERT INTO notifications (id, recipient_id, type, title, message, metadata, seen, created_at_client)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING created_at
			`, n.ID, n.RecipientID, n.Type, n.Title, n.Message, metadata, n.Seen, nullTime(n.CreatedAtClient)).Scan(&n.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert notification for %s: %w", n.RecipientID, err)
			}
		}

		return nil
	})
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unseenOnly bool) ([]*models.Notification, error) {
	query := `
		SELECT
			id
		  , recipient_id
		  , type
		  , title
		  , message
		  , metadata
		  , seen
		  , created_at
		  , created_at_client
		FROM notifications
		WHERE recipient_id = $1 AND ($2 = FALSE OR seen = FALSE)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, recipientID, unseenOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	out := make([]*models.Notification, 0)

	for rows.Next() {
		var (
			n        models.Notification
			metadata []byte
			client   sql.NullTime
		)

		err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &metadata, &n.Seen, &n.CreatedAt, &client)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification metadata: %w", err)
			}
		}

		if client.Valid {
			n.CreatedAtClient = client.Time
		}

		out = append(out, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return out, nil
}

func (r *NotificationRepository) MarkSeen(ctx context.Context, recipientID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET seen = TRUE WHERE recipient_id = $1 AND id = ANY($2) AND seen = FALSE",
		recipientID, pq.Array(ids),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications seen: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return int(affected), nil
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
