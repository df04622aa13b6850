// Package reminder sends deadline reminders to reviewers on a schedule.
// Polling is best effort: a reminder goes out on the first run after it
// becomes due, not at an exact time.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/notification"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/dukex/folio/pkg/review"
	"github.com/dukex/folio/pkg/workflow"
	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "@every 15m"

// Workflow is the part of the controller the poller drives.
type Workflow interface {
	List(ctx context.Context, opts persistence.ListManuscriptsOptions) ([]*models.Manuscript, error)
	RecordReminder(ctx context.Context, id, reviewerID string) (*models.Manuscript, error)
}

type Notifier interface {
	SendBulk(ctx context.Context, caller string, req notification.Request) (*notification.Result, error)
}

var reviewStatuses = []models.Status{
	models.StatusAssigningReviewer,
	models.StatusReviewerAssigned,
	models.StatusReviewerReviewing,
}

type Poller struct {
	workflow Workflow
	notifier Notifier
	logger   *slog.Logger
	schedule string
	now      func() time.Time
	cron     *cron.Cron
}

type Option func(*Poller)

func WithSchedule(expr string) Option {
	return func(p *Poller) {
		if expr != "" {
			p.schedule = expr
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

func NewPoller(w Workflow, n Notifier, logger *slog.Logger, opts ...Option) *Poller {
	p := &Poller{
		workflow: w,
		notifier: n,
		logger:   logger.With("module", "reminder"),
		schedule: DefaultSchedule,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// RunOnce claims and sends every reminder due now and returns how many were sent.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	manuscripts, err := p.workflow.List(ctx, persistence.ListManuscriptsOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to list manuscripts: %w", err)
	}

	now := p.now()
	sent := 0

	for _, m := range manuscripts {
		if !slices.Contains(reviewStatuses, m.Status) {
			continue
		}

		for _, reviewerID := range m.AssignedReviewers {
			if !review.ReminderDue(m, reviewerID, now) {
				continue
			}

			if p.remind(ctx, m, reviewerID) {
				sent++
			}
		}
	}

	if sent > 0 {
		p.logger.InfoContext(ctx, "deadline reminders sent", "count", sent)
	}

	return sent, nil
}

// remind claims the slot first so concurrent pollers send at most one reminder.
func (p *Poller) remind(ctx context.Context, m *models.Manuscript, reviewerID string) bool {
	logger := p.logger.With("manuscript_id", m.ID, "reviewer_id", reviewerID)

	claimed, err := p.workflow.RecordReminder(ctx, m.ID, reviewerID)
	if errors.Is(err, workflow.ErrReminderNotDue) {
		return false
	}

	if err != nil {
		logger.WarnContext(ctx, "failed to claim reminder", "error", err)

		return false
	}

	a, ok := claimed.Assignment(reviewerID)
	if !ok || a.Deadline == nil {
		return false
	}

	_, err = p.notifier.SendBulk(ctx, workflow.SystemActor, notification.Request{
		RecipientIDs: []string{reviewerID},
		Type:         models.NotificationTypeDeadlineReminder,
		Title:        "Review deadline approaching",
		Message:      fmt.Sprintf("Your review of %q is due on %s.", claimed.Title, a.Deadline.Format("2006-01-02 15:04 MST")),
		Metadata: map[string]any{
			"manuscript_id": claimed.ID,
			"deadline":      a.Deadline.Format(time.RFC3339),
		},
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to send reminder", "error", err)

		return false
	}

	return true
}

// Start runs RunOnce on the configured schedule until Stop.
func (p *Poller) Start(ctx context.Context) error {
	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", p.schedule, err)
	}

	p.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := p.cron.AddFunc(p.schedule, func() {
		if _, err := p.RunOnce(ctx); err != nil {
			p.logger.ErrorContext(ctx, "reminder run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}

	p.cron.Start()
	p.logger.InfoContext(ctx, "reminder poller started", "schedule", p.schedule)

	return nil
}

// Stop waits for a running pass to finish.
func (p *Poller) Stop() {
	if p.cron == nil {
		return
	}

	<-p.cron.Stop().Done()
	p.logger.Info("reminder poller stopped")
}
