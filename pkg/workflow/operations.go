package workflow

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dukex/folio/pkg/deadline"
	"github.com/dukex/folio/pkg/events"
	"github.com/dukex/folio/pkg/identity"
	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/review"
)

// Draft is a new manuscript submission.
type Draft struct {
	Title       string         `json:"title"         validate:"required,max=500"`
	Abstract    string         `json:"abstract"      validate:"max=10000"`
	Keywords    []string       `json:"keywords"      validate:"max=20,dive,required"`
	CoAuthorIDs []string       `json:"co_author_ids" validate:"dive,required"`
	File        models.FileRef `json:"file"          validate:"required"`
}

// Submit creates a manuscript in Pending with version 1.
func (c *Controller) Submit(ctx context.Context, actor string, d Draft) (*models.Manuscript, error) {
	const op = "Submit"

	if _, err := c.requireRole(ctx, op, actor, models.RoleResearcher, models.RoleAdmin); err != nil {
		return nil, err
	}

	if err := c.check(op, d); err != nil {
		return nil, err
	}

	id := c.newID()

	return c.observe(ctx, op, id, actor, func(ctx context.Context) (*models.Manuscript, error) {
		tx := c.begin(op, actor)

		coAuthors := make([]string, 0, len(d.CoAuthorIDs))
		for _, coAuthor := range d.CoAuthorIDs {
			if coAuthor != actor && !slices.Contains(coAuthors, coAuthor) {
				coAuthors = append(coAuthors, coAuthor)
			}
		}

		m := &models.Manuscript{
			ID:                    id,
			Title:                 d.Title,
			Abstract:              d.Abstract,
			Keywords:              slices.Clone(d.Keywords),
			Status:                models.StatusPending,
			VersionNumber:         1,
			SubmitterID:           actor,
			CoAuthorIDs:           coAuthors,
			CurrentFile:           d.File,
			AssignedReviewers:     []string{},
			AssignedReviewersMeta: map[string]*models.ReviewerAssignment{},
			ReviewerDecisionMeta:  map[string]models.ReviewerDecision{},
			ReviewerSubmissions:   []models.ReviewerSubmission{},
			SubmissionHistory: []models.SubmissionVersion{
				{VersionNumber: 1, File: d.File, SubmittedBy: actor, SubmittedAt: tx.now},
			},
			StatusHistory: []models.StatusChange{
				{To: models.StatusPending, ChangedBy: actor, ChangedAt: tx.now},
			},
			SubmittedAt: tx.now,
			UpdatedAt:   tx.now,
		}

		tx.emit(events.ManuscriptSubmitted{
			BaseEvent:   tx.base(m, events.ManuscriptSubmittedEvent),
			SubmitterID: actor,
			Title:       m.Title,
		})

		records, err := tx.outbox(m.ID)
		if err != nil {
			return nil, err
		}

		if err := c.repo.Create(ctx, m, records); err != nil {
			return nil, err
		}

		c.logger.InfoContext(ctx, "manuscript submitted", "manuscript_id", m.ID, "submitter_id", actor)

		return m, nil
	})
}

// Accept moves a Pending manuscript to Accepted.
func (c *Controller) Accept(ctx context.Context, actor, id string) (*models.Manuscript, error) {
	const op = "Accept"

	if _, err := c.requireRole(ctx, op, actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	return c.mutate(ctx, op, id, actor, ActionAccept, func(m *models.Manuscript, tx *txn) error {
		return tx.setStatus(m, models.StatusAccepted)
	})
}

// RejectSubmission desk-rejects a manuscript before review.
func (c *Controller) RejectSubmission(ctx context.Context, actor, id string) (*models.Manuscript, error) {
	const op = "RejectSubmission"

	if _, err := c.requireRole(ctx, op, actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	return c.mutate(ctx, op, id, actor, ActionRejectSubmission, func(m *models.Manuscript, tx *txn) error {
		return tx.setStatus(m, models.StatusNonAcceptance)
	})
}

// AssignOptions are the admin's choices for a new reviewer invitation.
// A nil Deadline uses the configured invitation window.
type AssignOptions struct {
	Deadline           *time.Time `json:"deadline,omitempty"`
	ReminderEnabled    bool       `json:"reminder_enabled"`
	ReminderDaysBefore int        `json:"reminder_days_before" validate:"gte=0,lte=30"`
}

// AssignReviewer invites a peer reviewer. Assigning from Pending accepts the
// manuscript first.
func (c *Controller) AssignReviewer(ctx context.Context, actor, id, reviewerID string, opts AssignOptions) (*models.Manuscript, error) {
	const op = "AssignReviewer"

	if _, err := c.requireRole(ctx, op, actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	if err := c.check(op, opts); err != nil {
		return nil, err
	}

	if err := c.requireReviewer(ctx, op, reviewerID); err != nil {
		return nil, err
	}

	windows := c.windows(ctx)

	return c.mutate(ctx, op, id, actor, ActionAssignReviewer, func(m *models.Manuscript, tx *txn) error {
		if m.Status == models.StatusPending {
			if err := tx.setStatus(m, models.StatusAccepted); err != nil {
				return err
			}
		}

		due := windows.For(deadline.KindInvitation, tx.now)
		if opts.Deadline != nil {
			due = opts.Deadline.UTC()
		}

		err := review.Invite(m, reviewerID, actor, tx.now, review.InviteOptions{
			Deadline:           due,
			ReminderEnabled:    opts.ReminderEnabled,
			ReminderDaysBefore: opts.ReminderDaysBefore,
		})
		if err != nil {
			return err
		}

		m.InvitationDeadline = &due

		tx.emit(events.ReviewerAssigned{
			BaseEvent:  tx.base(m, events.ReviewerAssignedEvent),
			ReviewerID: reviewerID,
			Deadline:   &due,
		})

		return c.settle(m, tx, windows)
	})
}

func (c *Controller) requireReviewer(ctx context.Context, op, reviewerID string) error {
	if reviewerID == "" {
		return validationError(op, review.ErrEmptyReviewerID)
	}

	user, err := c.directory.Lookup(ctx, reviewerID)
	if err != nil {
		if identity.IsNotFound(err) {
			return fmt.Errorf("%s: %w: %s", op, ErrUnknownReviewer, reviewerID)
		}

		return err
	}

	if user.Role != models.RolePeerReviewer {
		return fmt.Errorf("%s: %w: %s has role %s", op, ErrReviewerRole, reviewerID, user.Role)
	}

	return nil
}

// RespondToInvitation records the calling reviewer's accept or decline.
func (c *Controller) RespondToInvitation(ctx context.Context, actor, id string, response models.InvitationStatus) (*models.Manuscript, error) {
	const op = "RespondToInvitation"

	if err := requireActor(op, actor); err != nil {
		return nil, err
	}

	if response != models.InvitationAccepted && response != models.InvitationDeclined {
		return nil, validationError(op, fmt.Errorf("response must be %q or %q", models.InvitationAccepted, models.InvitationDeclined))
	}

	windows := c.windows(ctx)

	return c.mutate(ctx, op, id, actor, ActionRespond, func(m *models.Manuscript, tx *txn) error {
		if !m.IsAssigned(actor) {
			return fmt.Errorf("%s: %w: %s is not assigned to %s", op, ErrForbidden, actor, m.ID)
		}

		if response == models.InvitationAccepted {
			due := windows.For(deadline.KindReview, tx.now)
			if err := review.Accept(m, actor, tx.now, due); err != nil {
				return err
			}

			m.ReviewDeadline = &due
		} else if err := review.Decline(m, actor, tx.now); err != nil {
			return err
		}

		tx.emit(events.ReviewerResponded{
			BaseEvent:  tx.base(m, events.ReviewerRespondedEvent),
			ReviewerID: actor,
			Response:   response,
		})

		return c.settle(m, tx, windows)
	})
}

// ReviewInput is a reviewer's completed review.
type ReviewInput struct {
	Decision   models.Decision `json:"decision"              validate:"required,oneof=minor major publication reject"`
	Comment    string          `json:"comment"               validate:"max=50000"`
	ReviewFile *models.FileRef `json:"review_file,omitempty" validate:"omitempty"`
}

// SubmitReview records the calling reviewer's decision for the current version.
// The manuscript goes Back to Admin once every active reviewer has completed.
func (c *Controller) SubmitReview(ctx context.Context, actor, id string, in ReviewInput) (*models.Manuscript, error) {
	const op = "SubmitReview"

	if err := requireActor(op, actor); err != nil {
		return nil, err
	}

	if err := c.check(op, in); err != nil {
		return nil, err
	}

	windows := c.windows(ctx)

	return c.mutate(ctx, op, id, actor, ActionSubmitReview, func(m *models.Manuscript, tx *txn) error {
		if !m.IsAssigned(actor) {
			return fmt.Errorf("%s: %w: %s is not assigned to %s", op, ErrForbidden, actor, m.ID)
		}

		err := review.RecordSubmission(m, actor, review.SubmissionInput{
			Decision:   in.Decision,
			Comment:    in.Comment,
			ReviewFile: in.ReviewFile,
		}, tx.now)
		if err != nil {
			return err
		}

		tx.emit(events.ReviewSubmitted{
			BaseEvent:     tx.base(m, events.ReviewSubmittedEvent),
			ReviewerID:    actor,
			Decision:      in.Decision,
			VersionNumber: m.VersionNumber,
		})

		return c.settle(m, tx, windows)
	})
}

// settle applies the roster-derived status and opens the finalization window
// when review completes.
func (c *Controller) settle(m *models.Manuscript, tx *txn, windows deadline.Windows) error {
	status := review.DeriveStatus(m)

	if status == models.StatusBackToAdmin && m.Status != models.StatusBackToAdmin {
		due := windows.For(deadline.KindFinalization, tx.now)
		m.FinalizationDeadline = &due
	}

	if status != models.StatusBackToAdmin {
		m.FinalizationDeadline = nil
	}

	return tx.setStatus(m, status)
}

// UnassignReviewer removes a reviewer from the roster and recomputes status.
func (c *Controller) UnassignReviewer(ctx context.Context, actor, id, reviewerID string) (*models.Manuscript, error) {
	const op = "UnassignReviewer"

	if _, err := c.requireRole(ctx, op, actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	windows := c.windows(ctx)

	return c.mutate(ctx, op, id, actor, ActionUnassignReviewer, func(m *models.Manuscript, tx *txn) error {
		if err := review.Remove(m, reviewerID); err != nil {
			return err
		}

		tx.emit(events.ReviewerUnassigned{
			BaseEvent:  tx.base(m, events.ReviewerUnassignedEvent),
			ReviewerID: reviewerID,
		})

		return c.settle(m, tx, windows)
	})
}

// Decide records the administrator's outcome for a manuscript Back to Admin
// and freezes the version's roster and decisions into its history entry.
func (c *Controller) Decide(ctx context.Context, actor, id string, outcome models.Status) (*models.Manuscript, error) {
	const op = "Decide"

	if _, err := c.requireRole(ctx, op, actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	if !slices.Contains(Outcomes, outcome) {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidOutcome, outcome)
	}

	windows := c.windows(ctx)

	return c.mutate(ctx, op, id, actor, ActionDecide, func(m *models.Manuscript, tx *txn) error {
		reviewers, decisions := review.Freeze(m)
		if n := len(m.SubmissionHistory); n > 0 {
			m.SubmissionHistory[n-1].Reviewers = reviewers
			m.SubmissionHistory[n-1].Decisions = decisions
		}

		m.RevisionDeadline = nil
		m.FinalizationDeadline = nil

		if kind, ok := deadline.ForStatus(outcome); ok {
			due := windows.For(kind, tx.now)
			m.RevisionDeadline = &due
		}

		return tx.setStatus(m, outcome)
	})
}

// ResubmitInput is an author's revised version.
type ResubmitInput struct {
	File          models.FileRef `json:"file"           validate:"required"`
	RevisionNotes string         `json:"revision_notes" validate:"max=20000"`
}

// Resubmit starts a new version from a revision status. A minor revision
// retires the roster for a fresh selection; a major revision sends the same
// reviewers back into review with new deadlines.
func (c *Controller) Resubmit(ctx context.Context, actor, id string, in ResubmitInput) (*models.Manuscript, error) {
	const op = "Resubmit"

	if err := requireActor(op, actor); err != nil {
		return nil, err
	}

	if err := c.check(op, in); err != nil {
		return nil, err
	}

	windows := c.windows(ctx)

	return c.mutate(ctx, op, id, actor, ActionResubmit, func(m *models.Manuscript, tx *txn) error {
		if !m.IsAuthor(actor) {
			return fmt.Errorf("%s: %w: %s is not an author of %s", op, ErrForbidden, actor, m.ID)
		}

		revision := m.Status

		m.VersionNumber++
		m.SubmissionHistory = append(m.SubmissionHistory, models.SubmissionVersion{
			VersionNumber: m.VersionNumber,
			File:          in.File,
			SubmittedBy:   actor,
			SubmittedAt:   tx.now,
			RevisionNotes: in.RevisionNotes,
		})
		resubmittedAt := tx.now
		m.CurrentFile = in.File
		m.ResubmittedAt = &resubmittedAt
		m.RevisionDeadline = nil

		tx.emit(events.Resubmitted{
			BaseEvent:     tx.base(m, events.ManuscriptResubmittedEvent),
			VersionNumber: m.VersionNumber,
			Revision:      revision,
		})

		if revision == models.StatusRevisionMinor {
			review.RetireAll(m)

			due := windows.For(deadline.KindInvitation, tx.now)
			m.InvitationDeadline = &due
			m.ReviewDeadline = nil

			return tx.setStatus(m, models.StatusAssigningReviewer)
		}

		due := windows.For(deadline.KindReview, tx.now)
		review.ResetForReReview(m, tx.now, due)
		pushDeadlines(m, tx, due)

		m.ReviewDeadline = &due

		return tx.setStatus(m, review.DeriveStatus(m))
	})
}

// pushDeadlines sets due on every reviewer still engaged with the current
// version and emits one event listing them.
func pushDeadlines(m *models.Manuscript, tx *txn, due time.Time) int {
	before := map[string]bool{}
	for _, id := range review.Gating(m) {
		if _, done := m.SubmissionFor(id, m.VersionNumber); !done {
			before[id] = true
		}
	}

	n := review.PushDeadline(m, due)
	if n == 0 {
		return 0
	}

	ids := make([]string, 0, len(before))
	for _, id := range m.AssignedReviewers {
		if before[id] {
			ids = append(ids, id)
		}
	}

	tx.emit(events.DeadlinesUpdated{
		BaseEvent:   tx.base(m, events.DeadlinesUpdatedEvent),
		ReviewerIDs: ids,
		Deadline:    due,
	})

	return n
}

// UpdateReviewerDeadline edits one assignment's deadline and reminder settings.
func (c *Controller) UpdateReviewerDeadline(ctx context.Context, actor, id, reviewerID string, u review.DeadlineUpdate) (*models.Manuscript, error) {
	const op = "UpdateReviewerDeadline"

	if _, err := c.requireRole(ctx, op, actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	return c.mutate(ctx, op, id, actor, ActionUpdateDeadline, func(m *models.Manuscript, tx *txn) error {
		if u.Deadline != nil && !u.Deadline.After(tx.now) {
			return validationError(op, review.ErrDeadlineInThePast)
		}

		if err := review.UpdateDeadline(m, reviewerID, u); err != nil {
			return err
		}

		if u.Deadline != nil {
			tx.emit(events.DeadlinesUpdated{
				BaseEvent:   tx.base(m, events.DeadlinesUpdatedEvent),
				ReviewerIDs: []string{reviewerID},
				Deadline:    u.Deadline.UTC(),
			})
		}

		return nil
	})
}

// UpdateReviewerDeadlines recomputes the kind window from now and pushes it to
// every reviewer still engaged with the current version.
func (c *Controller) UpdateReviewerDeadlines(ctx context.Context, actor, id string, kind deadline.Kind) (*models.Manuscript, error) {
	const op = "UpdateReviewerDeadlines"

	if _, err := c.requireRole(ctx, op, actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	if _, ok := deadline.DefaultWindows()[kind]; !ok {
		return nil, validationError(op, fmt.Errorf("unknown deadline window %q", kind))
	}

	windows := c.windows(ctx)

	return c.mutate(ctx, op, id, actor, ActionUpdateDeadline, func(m *models.Manuscript, tx *txn) error {
		due := windows.For(kind, tx.now)
		pushDeadlines(m, tx, due)

		if kind == deadline.KindReview {
			m.ReviewDeadline = &due
		}

		return nil
	})
}

// RecordReminder claims the reminder slot for one assignment. It fails with
// ErrReminderNotDue when another poller already claimed it or the assignment
// no longer qualifies, so the caller sends at most one reminder per interval.
func (c *Controller) RecordReminder(ctx context.Context, id, reviewerID string) (*models.Manuscript, error) {
	const op = "RecordReminder"

	return c.mutate(ctx, op, id, SystemActor, ActionRecordReminder, func(m *models.Manuscript, tx *txn) error {
		if !review.ReminderDue(m, reviewerID, tx.now) {
			return fmt.Errorf("%s %s/%s: %w", op, id, reviewerID, ErrReminderNotDue)
		}

		remindedAt := tx.now
		a, _ := m.Assignment(reviewerID)
		a.LastReminderAt = &remindedAt

		return nil
	})
}

// Candidates returns the peer reviewers eligible for a fresh invitation.
func (c *Controller) Candidates(ctx context.Context, actor, id string) ([]*models.User, error) {
	const op = "Candidates"

	if _, err := c.requireRole(ctx, op, actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	m, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	pool, err := c.directory.UsersByRole(ctx, models.RolePeerReviewer)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(pool))
	byID := make(map[string]*models.User, len(pool))

	for _, u := range pool {
		ids = append(ids, u.ID)
		byID[u.ID] = u
	}

	eligible := review.Candidates(m, ids)
	out := make([]*models.User, 0, len(eligible))

	for _, uid := range eligible {
		out = append(out, byID[uid])
	}

	return out, nil
}
