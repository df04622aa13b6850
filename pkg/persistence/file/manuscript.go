package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/persistence"
)

// record is the on-disk envelope: the manuscript plus outbox events that
// have not been published yet.
type record struct {
	Manuscript *models.Manuscript   `json:"manuscript"`
	Outbox     []models.OutboxEvent `json:"outbox,omitempty"`
}

// ManuscriptRepository handles manuscript and outbox file operations.
type ManuscriptRepository struct {
	root string
	mu   *sync.Mutex
}

func (r *ManuscriptRepository) dir() string {
	return filepath.Join(r.root, "manuscripts")
}

func (r *ManuscriptRepository) path(id string) string {
	return filepath.Join(r.dir(), id+".json")
}

func (r *ManuscriptRepository) load(id string) (*record, error) {
	if !validName(id) {
		return nil, persistence.NewManuscriptError("GetByID", id, persistence.ErrManuscriptNotFound)
	}

	var rec record

	err := readJSON(r.path(id), &rec)
	if errors.Is(err, os.ErrNotExist) {
		return nil, persistence.NewManuscriptError("GetByID", id, persistence.ErrManuscriptNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch manuscript %s: %w", id, err)
	}

	if rec.Manuscript == nil {
		return nil, fmt.Errorf("manuscript file %s has no document", id)
	}

	return &rec, nil
}

// GetByID retrieves a manuscript by its ID from the file system.
func (r *ManuscriptRepository) GetByID(_ context.Context, id string) (*models.Manuscript, error) {
	rec, err := r.load(id)
	if err != nil {
		return nil, err
	}

	return rec.Manuscript, nil
}

// List returns manuscripts newest first. A non-positive limit returns everything.
func (r *ManuscriptRepository) List(_ context.Context, opts persistence.ListManuscriptsOptions) ([]*models.Manuscript, error) {
	files, err := jsonFiles(r.dir())
	if err != nil {
		return nil, err
	}

	out := make([]*models.Manuscript, 0, len(files))

	for _, f := range files {
		var rec record
		if err := readJSON(f, &rec); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return nil, err
		}

		m := rec.Manuscript
		if m == nil || !matches(m, opts) {
			continue
		}

		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}

		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []*models.Manuscript{}, nil
		}

		out = out[opts.Offset:]
	}

	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}

	return out, nil
}

func matches(m *models.Manuscript, opts persistence.ListManuscriptsOptions) bool {
	if opts.Status != nil && m.Status != *opts.Status {
		return false
	}

	if opts.SubmitterID != "" && m.SubmitterID != opts.SubmitterID {
		return false
	}

	if opts.ReviewerID != "" && !slices.Contains(m.AssignedReviewers, opts.ReviewerID) {
		return false
	}

	return true
}

// Create writes a new manuscript at revision 1.
func (r *ManuscriptRepository) Create(_ context.Context, m *models.Manuscript, events []models.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !validName(m.ID) {
		return persistence.NewManuscriptError("Create", m.ID, errors.New("invalid manuscript id"))
	}

	if _, err := os.Stat(r.path(m.ID)); err == nil {
		return persistence.NewManuscriptError("Create", m.ID, persistence.ErrManuscriptAlreadyExists)
	}

	m.Revision = 1

	return writeJSON(r.path(m.ID), record{Manuscript: m, Outbox: slices.Clone(events)})
}

// Update replaces the manuscript if its stored revision equals expectedRevision.
func (r *ManuscriptRepository) Update(_ context.Context, m *models.Manuscript, expectedRevision int64, events []models.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.load(m.ID)
	if err != nil {
		return err
	}

	if current.Manuscript.Revision != expectedRevision {
		return persistence.NewConflictError("Update", m.ID, expectedRevision)
	}

	next := *m
	next.Revision = expectedRevision + 1

	if err := writeJSON(r.path(m.ID), record{Manuscript: &next, Outbox: append(current.Outbox, events...)}); err != nil {
		return err
	}

	m.Revision = next.Revision

	return nil
}

// Pending returns unpublished outbox events ordered by creation time.
func (r *ManuscriptRepository) Pending(_ context.Context, limit int) ([]models.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	files, err := jsonFiles(r.dir())
	if err != nil {
		return nil, err
	}

	var out []models.OutboxEvent

	for _, f := range files {
		var rec record
		if err := readJSON(f, &rec); err != nil {
			return nil, err
		}

		out = append(out, rec.Outbox...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// MarkPublished drops the given events from their manuscript files.
func (r *ManuscriptRepository) MarkPublished(_ context.Context, ids []string, _ time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	files, err := jsonFiles(r.dir())
	if err != nil {
		return err
	}

	for _, f := range files {
		var rec record
		if err := readJSON(f, &rec); err != nil {
			return err
		}

		kept := slices.DeleteFunc(slices.Clone(rec.Outbox), func(e models.OutboxEvent) bool {
			return slices.Contains(ids, e.ID)
		})

		if len(kept) == len(rec.Outbox) {
			continue
		}

		rec.Outbox = kept
		if err := writeJSON(f, rec); err != nil {
			return err
		}
	}

	return nil
}
