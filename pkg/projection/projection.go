// Package projection builds the role-filtered manuscript views each party sees.
// Deadline urgency is derived here at read time; nothing is stored.
package projection

import (
	"slices"
	"time"

	"github.com/dukex/folio/pkg/deadline"
	"github.com/dukex/folio/pkg/models"
)

type ReviewerView struct {
	ReviewerID       string                  `json:"reviewer_id"`
	InvitationStatus models.InvitationStatus `json:"invitation_status"`
	IsReReview       bool                    `json:"is_re_review"`
	Completed        bool                    `json:"completed"`
	Decision         models.Decision         `json:"decision,omitempty"`
	ReminderEnabled  bool                    `json:"reminder_enabled"`
	Deadline         *deadline.Info          `json:"deadline,omitempty"`
}

// Review is a completed review as shown to its audience. ReviewerID is empty
// for authors.
type Review struct {
	ReviewerID    string          `json:"reviewer_id,omitempty"`
	VersionNumber int             `json:"version_number"`
	Decision      models.Decision `json:"decision"`
	Comment       string          `json:"comment"`
	ReviewFile    *models.FileRef `json:"review_file,omitempty"`
	CompletedAt   time.Time       `json:"completed_at"`
}

type View struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Abstract      string         `json:"abstract,omitempty"`
	Keywords      []string       `json:"keywords,omitempty"`
	Status        models.Status  `json:"status"`
	VersionNumber int            `json:"version_number"`
	SubmitterID   string         `json:"submitter_id"`
	CoAuthorIDs   []string       `json:"co_author_ids,omitempty"`
	CurrentFile   models.FileRef `json:"current_file"`
	SubmittedAt   time.Time      `json:"submitted_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	Deadline   *deadline.Info `json:"deadline,omitempty"`
	Reviewers  []ReviewerView `json:"reviewers,omitempty"`
	Assignment *ReviewerView  `json:"assignment,omitempty"`
	Reviews    []Review       `json:"reviews,omitempty"`
}

// For returns the views user may see, in the order given. Unknown roles see nothing.
func For(user *models.User, manuscripts []*models.Manuscript, now time.Time) []View {
	out := []View{}
	if user == nil {
		return out
	}

	for _, m := range manuscripts {
		if m == nil {
			continue
		}

		var (
			v  View
			ok bool
		)

		switch user.Role {
		case models.RoleAdmin:
			v, ok = forAdmin(m, now), true
		case models.RoleResearcher:
			v, ok = forAuthor(m, user.ID, now)
		case models.RolePeerReviewer:
			v, ok = forReviewer(m, user.ID, now)
		}

		if ok {
			out = append(out, v)
		}
	}

	return out
}

func base(m *models.Manuscript) View {
	return View{
		ID:            m.ID,
		Title:         m.Title,
		Abstract:      m.Abstract,
		Keywords:      slices.Clone(m.Keywords),
		Status:        m.Status,
		VersionNumber: m.VersionNumber,
		SubmitterID:   m.SubmitterID,
		CoAuthorIDs:   slices.Clone(m.CoAuthorIDs),
		CurrentFile:   m.CurrentFile,
		SubmittedAt:   m.SubmittedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func manuscriptDeadline(m *models.Manuscript, now time.Time) *deadline.Info {
	if info, ok := deadline.ForManuscript(m, now); ok {
		return &info
	}

	return nil
}

func forAdmin(m *models.Manuscript, now time.Time) View {
	v := base(m)
	v.Deadline = manuscriptDeadline(m, now)

	for _, id := range m.AssignedReviewers {
		if rv, ok := reviewer(m, id, now); ok {
			v.Reviewers = append(v.Reviewers, rv)
		}
	}

	for _, s := range m.ReviewerSubmissions {
		v.Reviews = append(v.Reviews, toReview(s, true))
	}

	return v
}

func forAuthor(m *models.Manuscript, userID string, now time.Time) (View, bool) {
	if !m.IsAuthor(userID) {
		return View{}, false
	}

	v := base(m)
	v.Deadline = manuscriptDeadline(m, now)

	for _, s := range m.ReviewerSubmissions {
		if released(m, s.ManuscriptVersionNumber) {
			v.Reviews = append(v.Reviews, toReview(s, false))
		}
	}

	return v, true
}

// released reports whether reviews of version are visible to the authors:
// earlier versions always, the current one once a decision was made.
func released(m *models.Manuscript, version int) bool {
	if version < m.VersionNumber {
		return true
	}

	return m.Status.IsRevision() || m.Status.IsTerminal()
}

func forReviewer(m *models.Manuscript, userID string, now time.Time) (View, bool) {
	rv, ok := reviewer(m, userID, now)
	if !ok || rv.InvitationStatus == models.InvitationDeclined {
		return View{}, false
	}

	v := base(m)
	v.Assignment = &rv
	v.Deadline = rv.Deadline

	for _, s := range m.ReviewerSubmissions {
		if s.ReviewerID == userID {
			v.Reviews = append(v.Reviews, toReview(s, true))
		}
	}

	return v, true
}

func reviewer(m *models.Manuscript, id string, now time.Time) (ReviewerView, bool) {
	a, ok := m.Assignment(id)
	if !ok {
		return ReviewerView{}, false
	}

	rv := ReviewerView{
		ReviewerID:       id,
		InvitationStatus: a.InvitationStatus,
		IsReReview:       a.IsReReview,
		ReminderEnabled:  a.ReminderEnabled,
	}

	if s, done := m.SubmissionFor(id, m.VersionNumber); done {
		rv.Completed = true
		rv.Decision = s.Decision
	}

	if info, ok := deadline.ForReviewer(m, id, now); ok && !rv.Completed {
		rv.Deadline = &info
	}

	return rv, true
}

func toReview(s models.ReviewerSubmission, identified bool) Review {
	r := Review{
		VersionNumber: s.ManuscriptVersionNumber,
		Decision:      s.Decision,
		Comment:       s.Comment,
		ReviewFile:    s.ReviewFile,
		CompletedAt:   s.CompletedAt,
	}

	if identified {
		r.ReviewerID = s.ReviewerID
	}

	return r
}
