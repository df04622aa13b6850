package file

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dukex/folio/pkg/models"
	"github.com/google/uuid"
)

// NotificationRepository stores each batch in one file so a batch is written
// or not written as a whole.
type NotificationRepository struct {
	root string
	mu   *sync.Mutex
	now  func() time.Time
}

func (r *NotificationRepository) dir() string {
	return filepath.Join(r.root, "notifications")
}

func (r *NotificationRepository) clock() time.Time {
	if r.now != nil {
		return r.now().UTC()
	}

	return time.Now().UTC()
}

// CreateBatch writes every notification or none. IDs are generated when empty.
func (r *NotificationRepository) CreateBatch(_ context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	batch := make([]models.Notification, 0, len(notifications))

	for _, n := range notifications {
		if n.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate notification ID: %w", err)
			}

			n.ID = id.String()
		}

		n.CreatedAt = now
		batch = append(batch, *n)
	}

	batchID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate batch ID: %w", err)
	}

	return writeJSON(filepath.Join(r.dir(), batchID.String()+".json"), batch)
}

func (r *NotificationRepository) loadBatches() (map[string][]models.Notification, error) {
	files, err := jsonFiles(r.dir())
	if err != nil {
		return nil, err
	}

	batches := make(map[string][]models.Notification, len(files))

	for _, f := range files {
		var batch []models.Notification
		if err := readJSON(f, &batch); err != nil {
			return nil, err
		}

		batches[f] = batch
	}

	return batches, nil
}

// ListByRecipient returns the recipient's notifications newest first.
func (r *NotificationRepository) ListByRecipient(_ context.Context, recipientID string, unseenOnly bool) ([]*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	batches, err := r.loadBatches()
	if err != nil {
		return nil, err
	}

	out := make([]*models.Notification, 0)

	for _, batch := range batches {
		for i := range batch {
			n := batch[i]
			if n.RecipientID != recipientID || (unseenOnly && n.Seen) {
				continue
			}

			out = append(out, &n)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}

		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

// MarkSeen flags the recipient's notifications with the given ids as seen and
// returns how many changed. Notifications of other recipients are untouched.
func (r *NotificationRepository) MarkSeen(_ context.Context, recipientID string, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	batches, err := r.loadBatches()
	if err != nil {
		return 0, err
	}

	changed := 0

	for path, batch := range batches {
		dirty := false

		for i := range batch {
			if batch[i].RecipientID != recipientID || batch[i].Seen || !slices.Contains(ids, batch[i].ID) {
				continue
			}

			batch[i].Seen = true
			dirty = true
			changed++
		}

		if dirty {
			if err := writeJSON(path, batch); err != nil {
				return changed, err
			}
		}
	}

	return changed, nil
}
