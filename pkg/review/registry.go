// Package review maintains the per-reviewer assignment records embedded in a
// manuscript and summarizes reviewer decisions. Functions here mutate the
// aggregate in memory only; committing is the workflow controller's job.
package review

import (
	"maps"
	"slices"
	"time"

	"github.com/dukex/folio/pkg/models"
)

// InviteOptions are the admin-supplied knobs for a new assignment.
type InviteOptions struct {
	Deadline           time.Time
	ReminderEnabled    bool
	ReminderDaysBefore int
}

// Invite adds a pending assignment for reviewerID. A reviewer who previously
// declined on the current roster is re-invited in place.
func Invite(m *models.Manuscript, reviewerID, by string, now time.Time, opts InviteOptions) error {
	const op = "Invite"

	if reviewerID == "" {
		return assignmentError(op, reviewerID, ErrEmptyReviewerID)
	}

	if m.IsAuthor(reviewerID) {
		return assignmentError(op, reviewerID, ErrAuthorConflict)
	}

	if opts.ReminderDaysBefore < 0 {
		return assignmentError(op, reviewerID, ErrInvalidReminder)
	}

	if !opts.Deadline.IsZero() && !opts.Deadline.After(now) {
		return assignmentError(op, reviewerID, ErrDeadlineInThePast)
	}

	if a, ok := m.Assignment(reviewerID); ok && a.InvitationStatus != models.InvitationDeclined {
		return assignmentError(op, reviewerID, ErrAlreadyAssigned)
	}

	if m.AssignedReviewersMeta == nil {
		m.AssignedReviewersMeta = map[string]*models.ReviewerAssignment{}
	}

	if !m.IsAssigned(reviewerID) {
		m.AssignedReviewers = append(m.AssignedReviewers, reviewerID)
	}

	a := &models.ReviewerAssignment{
		ReviewerID:         reviewerID,
		InvitationStatus:   models.InvitationPending,
		AssignedAt:         now,
		AssignedBy:         by,
		ReminderEnabled:    opts.ReminderEnabled,
		ReminderDaysBefore: opts.ReminderDaysBefore,
	}

	if !opts.Deadline.IsZero() {
		d := opts.Deadline
		a.Deadline = &d
	}

	m.AssignedReviewersMeta[reviewerID] = a

	return nil
}

// Accept marks the reviewer's invitation as accepted and opens their review window.
func Accept(m *models.Manuscript, reviewerID string, now, reviewDeadline time.Time) error {
	a, err := pendingAssignment(m, "Accept", reviewerID)
	if err != nil {
		return err
	}

	a.InvitationStatus = models.InvitationAccepted
	a.RespondedAt = &now
	a.Deadline = &reviewDeadline

	return nil
}

// Decline marks the reviewer's invitation as declined. A reviewer who already
// took part in an earlier version leaves the roster and is kept in
// PreviousReviewers; anyone else stays listed as declined.
func Decline(m *models.Manuscript, reviewerID string, now time.Time) error {
	a, err := pendingAssignment(m, "Decline", reviewerID)
	if err != nil {
		return err
	}

	if m.HasParticipated(reviewerID) {
		retire(m, reviewerID)

		return nil
	}

	a.InvitationStatus = models.InvitationDeclined
	a.RespondedAt = &now
	a.Deadline = nil

	return nil
}

func pendingAssignment(m *models.Manuscript, op, reviewerID string) (*models.ReviewerAssignment, error) {
	a, ok := m.Assignment(reviewerID)
	if !ok {
		return nil, assignmentError(op, reviewerID, ErrNotAssigned)
	}

	if a.InvitationStatus != models.InvitationPending {
		return nil, assignmentError(op, reviewerID, ErrAlreadyResponded)
	}

	return a, nil
}

// SubmissionInput is what a reviewer hands in.
type SubmissionInput struct {
	Decision   models.Decision
	Comment    string
	ReviewFile *models.FileRef
}

// RecordSubmission appends the reviewer's completed review for the current
// version and sets their active decision.
func RecordSubmission(m *models.Manuscript, reviewerID string, in SubmissionInput, now time.Time) error {
	const op = "RecordSubmission"

	if !in.Decision.Valid() {
		return assignmentError(op, reviewerID, ErrInvalidDecision)
	}

	a, ok := m.Assignment(reviewerID)
	if !ok {
		return assignmentError(op, reviewerID, ErrNotAssigned)
	}

	if a.InvitationStatus != models.InvitationAccepted {
		return assignmentError(op, reviewerID, ErrNotAccepted)
	}

	if _, done := m.SubmissionFor(reviewerID, m.VersionNumber); done {
		return assignmentError(op, reviewerID, ErrAlreadySubmitted)
	}

	var file *models.FileRef
	if in.ReviewFile != nil {
		f := *in.ReviewFile
		file = &f
	}

	m.ReviewerSubmissions = append(m.ReviewerSubmissions, models.ReviewerSubmission{
		ReviewerID:              reviewerID,
		ManuscriptVersionNumber: m.VersionNumber,
		Decision:                in.Decision,
		Comment:                 in.Comment,
		ReviewFile:              file,
		CompletedAt:             now,
		Status:                  models.SubmissionStatusCompleted,
	})

	if m.ReviewerDecisionMeta == nil {
		m.ReviewerDecisionMeta = map[string]models.ReviewerDecision{}
	}

	m.ReviewerDecisionMeta[reviewerID] = models.ReviewerDecision{
		Decision:      in.Decision,
		DecidedAt:     now,
		VersionNumber: m.VersionNumber,
	}

	return nil
}

// Remove takes the reviewer off the roster. Their submissions stay in the
// append-only log and their id is kept in PreviousReviewers.
func Remove(m *models.Manuscript, reviewerID string) error {
	if !m.IsAssigned(reviewerID) {
		return assignmentError("Remove", reviewerID, ErrNotAssigned)
	}

	retire(m, reviewerID)

	return nil
}

func retire(m *models.Manuscript, reviewerID string) {
	m.AssignedReviewers = slices.DeleteFunc(m.AssignedReviewers, func(id string) bool { return id == reviewerID })
	delete(m.AssignedReviewersMeta, reviewerID)
	delete(m.ReviewerDecisionMeta, reviewerID)

	if !slices.Contains(m.PreviousReviewers, reviewerID) {
		m.PreviousReviewers = append(m.PreviousReviewers, reviewerID)
	}
}

// RetireAll clears the roster for a fresh round of reviewer selection.
func RetireAll(m *models.Manuscript) {
	for _, id := range slices.Clone(m.AssignedReviewers) {
		retire(m, id)
	}

	m.AssignedReviewers = nil
	m.AssignedReviewersMeta = map[string]*models.ReviewerAssignment{}
	m.ReviewerDecisionMeta = map[string]models.ReviewerDecision{}
}

// ResetForReReview puts every reviewer who is still engaged back to pending
// for a new version. The roster itself is unchanged: declined reviewers stay
// on it as declined and keep not gating.
func ResetForReReview(m *models.Manuscript, now, deadline time.Time) {
	for _, id := range m.AssignedReviewers {
		a, ok := m.Assignment(id)
		if !ok || a.InvitationStatus == models.InvitationDeclined {
			continue
		}

		d := deadline
		a.InvitationStatus = models.InvitationPending
		a.IsReReview = true
		a.AssignedAt = now
		a.RespondedAt = nil
		a.LastReminderAt = nil
		a.Deadline = &d
	}

	m.ReviewerDecisionMeta = map[string]models.ReviewerDecision{}
}

// DeadlineUpdate edits one assignment's deadline and reminder settings.
// Nil fields are left unchanged.
type DeadlineUpdate struct {
	Deadline           *time.Time
	ReminderEnabled    *bool
	ReminderDaysBefore *int
}

// UpdateDeadline applies u to the reviewer's assignment.
func UpdateDeadline(m *models.Manuscript, reviewerID string, u DeadlineUpdate) error {
	const op = "UpdateDeadline"

	a, ok := m.Assignment(reviewerID)
	if !ok {
		return assignmentError(op, reviewerID, ErrNotAssigned)
	}

	if u.ReminderDaysBefore != nil && *u.ReminderDaysBefore < 0 {
		return assignmentError(op, reviewerID, ErrInvalidReminder)
	}

	if u.Deadline != nil {
		if !u.Deadline.After(a.AssignedAt) {
			return assignmentError(op, reviewerID, ErrDeadlineInThePast)
		}

		d := *u.Deadline
		a.Deadline = &d
		a.LastReminderAt = nil
	}

	if u.ReminderEnabled != nil {
		a.ReminderEnabled = *u.ReminderEnabled
	}

	if u.ReminderDaysBefore != nil {
		a.ReminderDaysBefore = *u.ReminderDaysBefore
	}

	return nil
}

// PushDeadline sets deadline on every reviewer still engaged with the current
// version and returns how many assignments changed.
func PushDeadline(m *models.Manuscript, deadline time.Time) int {
	changed := 0

	for _, id := range Gating(m) {
		if _, done := m.SubmissionFor(id, m.VersionNumber); done {
			continue
		}

		a, _ := m.Assignment(id)
		d := deadline
		a.Deadline = &d
		a.LastReminderAt = nil
		changed++
	}

	return changed
}

// Freeze returns the roster and the decisions that apply to the current
// version, detached from the live maps.
func Freeze(m *models.Manuscript) ([]string, map[string]models.ReviewerDecision) {
	reviewers := Gating(m)
	decisions := map[string]models.ReviewerDecision{}

	for id, d := range m.ReviewerDecisionMeta {
		if d.VersionNumber == m.VersionNumber {
			decisions[id] = d
		}
	}

	return reviewers, maps.Clone(decisions)
}

// Candidates filters pool down to reviewers that may be invited to a fresh round:
// not an author, not on the roster and not a previous reviewer of the manuscript.
func Candidates(m *models.Manuscript, pool []string) []string {
	out := make([]string, 0, len(pool))

	for _, id := range pool {
		if id == "" || m.IsAuthor(id) || m.IsAssigned(id) || slices.Contains(m.PreviousReviewers, id) {
			continue
		}

		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	return out
}

// ReminderInterval is the minimum gap between two reminders for one assignment.
const ReminderInterval = 24 * time.Hour

// ReminderDue reports whether the reviewer should get a deadline reminder at now:
// reminders are on, the review is still outstanding, the deadline is within
// ReminderDaysBefore days and no reminder went out in the last ReminderInterval.
func ReminderDue(m *models.Manuscript, reviewerID string, now time.Time) bool {
	a, ok := m.Assignment(reviewerID)
	if !ok || !a.ReminderEnabled || a.Deadline == nil || a.InvitationStatus == models.InvitationDeclined {
		return false
	}

	if _, done := m.SubmissionFor(reviewerID, m.VersionNumber); done {
		return false
	}

	if now.Before(a.Deadline.AddDate(0, 0, -a.ReminderDaysBefore)) {
		return false
	}

	return a.LastReminderAt == nil || now.Sub(*a.LastReminderAt) >= ReminderInterval
}
