// Package workflow owns manuscript status. Every operation reads the document,
// applies a pure transition and commits the result with a revision check,
// re-reading and recomputing on conflict.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/folio/pkg/deadline"
	"github.com/dukex/folio/pkg/events"
	"github.com/dukex/folio/pkg/identity"
	"github.com/dukex/folio/pkg/metrics"
	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/otelhelper"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/dukex/folio/pkg/settings"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxRetries = 5

// SystemActor attributes changes made by background workers.
const SystemActor = models.SystemActor

type Controller struct {
	repo       persistence.ManuscriptRepository
	directory  identity.Directory
	settings   settings.Provider
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	validate   *validator.Validate
	now        func() time.Time
	newID      func() string
	maxRetries int
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) {
		c.newID = newID
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = tracer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithMaxRetries bounds how many times a conflicting write is recomputed.
func WithMaxRetries(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func NewController(
	repo persistence.ManuscriptRepository,
	directory identity.Directory,
	provider settings.Provider,
	logger *slog.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		repo:       repo,
		directory:  directory,
		settings:   provider,
		logger:     logger.With("module", "workflow"),
		tracer:     otel.Tracer("folio/workflow"),
		metrics:    metrics.NewNoop(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		now:        time.Now,
		newID:      newUUID,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// txn collects the side effects of one attempt at an operation.
type txn struct {
	op          string
	actor       string
	now         time.Time
	newID       func() string
	events      []events.Event
	transitions []models.StatusChange
}

func (c *Controller) begin(op, actor string) *txn {
	return &txn{op: op, actor: actor, now: c.now().UTC(), newID: c.newID}
}

func (tx *txn) base(m *models.Manuscript, eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:           tx.newID(),
		Type:         eventType,
		Timestamp:    tx.now,
		ManuscriptID: m.ID,
		ActorID:      tx.actor,
	}
}

func (tx *txn) emit(event events.Event) {
	tx.events = append(tx.events, event)
}

// setStatus moves m to status, recording history and the StatusChanged event
// only when the value actually changes.
func (tx *txn) setStatus(m *models.Manuscript, to models.Status) error {
	from := m.Status
	if from == to {
		return nil
	}

	if !CanTransition(from, to) {
		return transitionError(tx.op, m.ID, from, to)
	}

	change := models.StatusChange{From: from, To: to, ChangedBy: tx.actor, ChangedAt: tx.now}

	m.Status = to
	m.StatusHistory = append(m.StatusHistory, change)
	tx.transitions = append(tx.transitions, change)

	tx.emit(events.StatusChanged{
		BaseEvent:     tx.base(m, events.ManuscriptStatusChangedEvent),
		From:          from,
		To:            to,
		VersionNumber: m.VersionNumber,
	})

	return nil
}

func (tx *txn) outbox(manuscriptID string) ([]models.OutboxEvent, error) {
	records := make([]models.OutboxEvent, 0, len(tx.events))

	for _, event := range tx.events {
		record, err := events.ToOutbox(event.GetID(), manuscriptID, tx.now, event)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

// observe wraps an operation in a span and records its duration.
func (c *Controller) observe(ctx context.Context, op, id, actor string, fn func(ctx context.Context) (*models.Manuscript, error)) (*models.Manuscript, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "workflow."+op,
		attribute.String(otelhelper.OperationKey, op),
		attribute.String(otelhelper.ManuscriptIDKey, id),
		attribute.String(otelhelper.ActorIDKey, actor),
	)
	defer span.End()

	started := c.now()
	m, err := fn(ctx)
	c.metrics.RecordOperation(ctx, op, c.now().Sub(started), err)

	if err != nil {
		otelhelper.SetError(span, err, ErrorKind(err), attribute.String(otelhelper.OperationKey, op))
	}

	return m, err
}

// mutate reads the manuscript, applies fn to a copy and commits it against the
// revision that was read. fn must not block: everything it needs from other
// collaborators is resolved before mutate is called.
func (c *Controller) mutate(ctx context.Context, op, id, actor string, action Action, fn func(m *models.Manuscript, tx *txn) error) (*models.Manuscript, error) {
	return c.observe(ctx, op, id, actor, func(ctx context.Context) (*models.Manuscript, error) {
		for attempt := 1; ; attempt++ {
			current, err := c.repo.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}

			if !Allows(action, current.Status) {
				return nil, transitionError(op, id, current.Status, "")
			}

			next := current.Clone()
			tx := c.begin(op, actor)

			if err := fn(next, tx); err != nil {
				return nil, err
			}

			next.UpdatedAt = tx.now

			records, err := tx.outbox(next.ID)
			if err != nil {
				return nil, err
			}

			err = c.repo.Update(ctx, next, current.Revision, records)
			if err == nil {
				c.committed(ctx, next, tx)

				return next, nil
			}

			if !persistence.IsConflict(err) {
				return nil, err
			}

			c.metrics.RecordConflict(ctx, op)

			if attempt > c.maxRetries {
				return nil, fmt.Errorf("%s %s: %w: %w", op, id, ErrTooManyConflicts, err)
			}

			c.logger.DebugContext(ctx, "revision conflict, recomputing",
				"operation", op, "manuscript_id", id, "attempt", attempt)
		}
	})
}

func (c *Controller) committed(ctx context.Context, m *models.Manuscript, tx *txn) {
	for _, change := range tx.transitions {
		c.metrics.RecordTransition(ctx, string(change.From), string(change.To))
		c.logger.InfoContext(ctx, "manuscript status changed",
			"manuscript_id", m.ID, "from", change.From, "to", change.To, "by", change.ChangedBy, "operation", tx.op)
	}
}

// requireRole resolves the caller and checks they hold one of roles.
func (c *Controller) requireRole(ctx context.Context, op, actor string, roles ...models.Role) (*models.User, error) {
	if actor == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	user, err := c.directory.Lookup(ctx, actor)
	if err != nil {
		if identity.IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w: unknown user %s", op, ErrForbidden, actor)
		}

		return nil, err
	}

	if !slices.Contains(roles, user.Role) {
		return nil, fmt.Errorf("%s: %w: %s has role %s", op, ErrForbidden, actor, user.Role)
	}

	return user, nil
}

func requireActor(op, actor string) error {
	if actor == "" {
		return fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	return nil
}

// windows returns the configured deadline windows, falling back to defaults
// when the settings collaborator fails.
func (c *Controller) windows(ctx context.Context) deadline.Windows {
	if c.settings == nil {
		return deadline.DefaultWindows()
	}

	w, err := c.settings.Windows(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "using default deadline windows", "error", err)

		return deadline.DefaultWindows()
	}

	return w
}

func (c *Controller) check(op string, v any) error {
	if err := c.validate.Struct(v); err != nil {
		return validationError(op, err)
	}

	return nil
}

// Get returns the manuscript as stored.
func (c *Controller) Get(ctx context.Context, id string) (*models.Manuscript, error) {
	return c.repo.GetByID(ctx, id)
}

// List returns manuscripts matching opts.
func (c *Controller) List(ctx context.Context, opts persistence.ListManuscriptsOptions) ([]*models.Manuscript, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, validationError("List", fmt.Errorf("limit and offset must not be negative"))
	}

	return c.repo.List(ctx, opts)
}

// HealthCheck reports whether the controller can reach its store.
func HealthCheck(ctx context.Context, p persistence.Persistence) (string, bool) {
	if p == nil {
		return "Persistence layer not initialized", false
	}

	if err := p.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}
