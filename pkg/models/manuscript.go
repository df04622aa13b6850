// Package models defines the core domain models for manuscript peer review.
package models

import (
	"maps"
	"slices"
	"time"
)

// Status represents the lifecycle state of a manuscript.
type Status string

const (
	StatusPending              Status = "Pending"
	StatusAccepted             Status = "Accepted"
	StatusAssigningReviewer    Status = "Assigning Peer Reviewer"
	StatusReviewerAssigned     Status = "Peer Reviewer Assigned"
	StatusReviewerReviewing    Status = "Peer Reviewer Reviewing"
	StatusBackToAdmin          Status = "Back to Admin"
	StatusRevisionMinor        Status = "For Revision (Minor)"
	StatusRevisionMajor        Status = "For Revision (Major)"
	StatusForPublication       Status = "For Publication"
	StatusRejected             Status = "Rejected"
	StatusPeerReviewerRejected Status = "Peer Reviewer Rejected"
	StatusNonAcceptance        Status = "Non-Acceptance"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusAssigningReviewer,
	StatusReviewerAssigned,
	StatusReviewerReviewing,
	StatusBackToAdmin,
	StatusRevisionMinor,
	StatusRevisionMajor,
	StatusForPublication,
	StatusRejected,
	StatusPeerReviewerRejected,
	StatusNonAcceptance,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return slices.Contains(AllStatuses, s)
}

// IsTerminal reports whether no further transition is possible for the current version.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusPeerReviewerRejected, StatusNonAcceptance, StatusForPublication:
		return true
	default:
		return false
	}
}

// IsRevision reports whether the author is expected to resubmit.
func (s Status) IsRevision() bool {
	return s == StatusRevisionMinor || s == StatusRevisionMajor
}

// Decision is a reviewer's recommendation for a manuscript version.
type Decision string

const (
	DecisionMinor       Decision = "minor"
	DecisionMajor       Decision = "major"
	DecisionPublication Decision = "publication"
	DecisionReject      Decision = "reject"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionMinor, DecisionMajor, DecisionPublication, DecisionReject:
		return true
	default:
		return false
	}
}

// InvitationStatus tracks a reviewer's response to an assignment.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// SubmissionStatusCompleted is the only status a reviewer submission can hold.
const SubmissionStatusCompleted = "Completed"

// FileRef is the tuple returned by the object storage collaborator.
// Bytes never pass through the workflow core.
type FileRef struct {
	URL  string `json:"url"  validate:"required,url"`
	Name string `json:"name" validate:"required"`
	Type string `json:"type"`
	Size int64  `json:"size" validate:"gte=0"`
	Path string `json:"path"`
}

// ReviewerAssignment is the per-reviewer invitation record embedded in a manuscript.
type ReviewerAssignment struct {
	ReviewerID         string           `json:"reviewer_id"`
	InvitationStatus   InvitationStatus `json:"invitation_status"`
	AssignedAt         time.Time        `json:"assigned_at"`
	AssignedBy         string           `json:"assigned_by"`
	RespondedAt        *time.Time       `json:"responded_at,omitempty"`
	Deadline           *time.Time       `json:"deadline,omitempty"`
	ReminderEnabled    bool             `json:"reminder_enabled"`
	ReminderDaysBefore int              `json:"reminder_days_before"`
	IsReReview         bool             `json:"is_re_review"`
	LastReminderAt     *time.Time       `json:"last_reminder_at,omitempty"`
}

// ReviewerDecision is the active decision a reviewer holds for a manuscript version.
type ReviewerDecision struct {
	Decision      Decision  `json:"decision"`
	DecidedAt     time.Time `json:"decided_at"`
	VersionNumber int       `json:"version_number"`
}

// ReviewerSubmission is an immutable record of one completed review.
type ReviewerSubmission struct {
	ReviewerID              string    `json:"reviewer_id"`
	ManuscriptVersionNumber int       `json:"manuscript_version_number"`
	Decision                Decision  `json:"decision"`
	Comment                 string    `json:"comment"`
	ReviewFile              *FileRef  `json:"review_file,omitempty"`
	CompletedAt             time.Time `json:"completed_at"`
	Status                  string    `json:"status"`
}

// SubmissionVersion is an immutable snapshot of one author submission.
// Reviewers and Decisions are frozen when the version's review round closes.
type SubmissionVersion struct {
	VersionNumber int                         `json:"version_number"`
	File          FileRef                     `json:"file"`
	SubmittedBy   string                      `json:"submitted_by"`
	SubmittedAt   time.Time                   `json:"submitted_at"`
	RevisionNotes string                      `json:"revision_notes,omitempty"`
	Reviewers     []string                    `json:"reviewers,omitempty"`
	Decisions     map[string]ReviewerDecision `json:"decisions,omitempty"`
}

// StatusChange is one entry of the manuscript's audit trail.
type StatusChange struct {
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

// Manuscript is the aggregate root. Every field lives in one document so that a
// status transition and its roster changes commit together.
type Manuscript struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	Keywords []string `json:"keywords,omitempty"`

	Status        Status   `json:"status"`
	VersionNumber int      `json:"version_number"`
	SubmitterID   string   `json:"submitter_id"`
	CoAuthorIDs   []string `json:"co_author_ids,omitempty"`
	CurrentFile   FileRef  `json:"current_file"`

	AssignedReviewers     []string                       `json:"assigned_reviewers"`
	AssignedReviewersMeta map[string]*ReviewerAssignment `json:"assigned_reviewers_meta"`
	ReviewerDecisionMeta  map[string]ReviewerDecision    `json:"reviewer_decision_meta"`
	PreviousReviewers     []string                       `json:"previous_reviewers,omitempty"`
	ReviewerSubmissions   []ReviewerSubmission           `json:"reviewer_submissions"`
	SubmissionHistory     []SubmissionVersion            `json:"submission_history"`
	StatusHistory         []StatusChange                 `json:"status_history,omitempty"`

	InvitationDeadline   *time.Time `json:"invitation_deadline,omitempty"`
	ReviewDeadline       *time.Time `json:"review_deadline,omitempty"`
	RevisionDeadline     *time.Time `json:"revision_deadline,omitempty"`
	FinalizationDeadline *time.Time `json:"finalization_deadline,omitempty"`

	SubmittedAt   time.Time  `json:"submitted_at"`
	ResubmittedAt *time.Time `json:"resubmitted_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Revision is the storage compare-and-set counter.
	Revision int64 `json:"revision"`
}

// IsAuthor reports whether userID is the submitter or a co-author.
func (m *Manuscript) IsAuthor(userID string) bool {
	return m.SubmitterID == userID || slices.Contains(m.CoAuthorIDs, userID)
}

// IsAssigned reports whether reviewerID is on the current roster.
func (m *Manuscript) IsAssigned(reviewerID string) bool {
	return slices.Contains(m.AssignedReviewers, reviewerID)
}

// Assignment returns the roster entry for reviewerID, if any.
func (m *Manuscript) Assignment(reviewerID string) (*ReviewerAssignment, bool) {
	if !m.IsAssigned(reviewerID) {
		return nil, false
	}

	a, ok := m.AssignedReviewersMeta[reviewerID]

	return a, ok && a != nil
}

// SubmissionFor returns the reviewer's completed submission for a version.
func (m *Manuscript) SubmissionFor(reviewerID string, version int) (ReviewerSubmission, bool) {
	for _, s := range m.ReviewerSubmissions {
		if s.ReviewerID == reviewerID && s.ManuscriptVersionNumber == version && s.Status == SubmissionStatusCompleted {
			return s, true
		}
	}

	return ReviewerSubmission{}, false
}

// HasParticipated reports whether the reviewer ever submitted or decided on any version.
func (m *Manuscript) HasParticipated(reviewerID string) bool {
	if _, ok := m.ReviewerDecisionMeta[reviewerID]; ok {
		return true
	}

	for _, s := range m.ReviewerSubmissions {
		if s.ReviewerID == reviewerID {
			return true
		}
	}

	for _, v := range m.SubmissionHistory {
		if _, ok := v.Decisions[reviewerID]; ok {
			return true
		}
	}

	return false
}

// Clone returns a deep copy so a transition can be computed without touching the stored value.
func (m *Manuscript) Clone() *Manuscript {
	if m == nil {
		return nil
	}

	c := *m
	c.Keywords = slices.Clone(m.Keywords)
	c.CoAuthorIDs = slices.Clone(m.CoAuthorIDs)
	c.AssignedReviewers = slices.Clone(m.AssignedReviewers)
	c.PreviousReviewers = slices.Clone(m.PreviousReviewers)
	c.ReviewerSubmissions = slices.Clone(m.ReviewerSubmissions)
	c.StatusHistory = slices.Clone(m.StatusHistory)
	c.InvitationDeadline = cloneTime(m.InvitationDeadline)
	c.ReviewDeadline = cloneTime(m.ReviewDeadline)
	c.RevisionDeadline = cloneTime(m.RevisionDeadline)
	c.FinalizationDeadline = cloneTime(m.FinalizationDeadline)
	c.ResubmittedAt = cloneTime(m.ResubmittedAt)

	for i := range c.ReviewerSubmissions {
		if f := c.ReviewerSubmissions[i].ReviewFile; f != nil {
			cp := *f
			c.ReviewerSubmissions[i].ReviewFile = &cp
		}
	}

	if m.AssignedReviewersMeta != nil {
		c.AssignedReviewersMeta = make(map[string]*ReviewerAssignment, len(m.AssignedReviewersMeta))
	}

	for id, a := range m.AssignedReviewersMeta {
		if a == nil {
			continue
		}

		cp := *a
		cp.RespondedAt = cloneTime(a.RespondedAt)
		cp.Deadline = cloneTime(a.Deadline)
		cp.LastReminderAt = cloneTime(a.LastReminderAt)
		c.AssignedReviewersMeta[id] = &cp
	}

	if m.ReviewerDecisionMeta != nil {
		c.ReviewerDecisionMeta = maps.Clone(m.ReviewerDecisionMeta)
	}

	c.SubmissionHistory = slices.Clone(m.SubmissionHistory)
	for i := range c.SubmissionHistory {
		c.SubmissionHistory[i].Reviewers = slices.Clone(c.SubmissionHistory[i].Reviewers)
		c.SubmissionHistory[i].Decisions = maps.Clone(c.SubmissionHistory[i].Decisions)
	}

	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	v := *t

	return &v
}
