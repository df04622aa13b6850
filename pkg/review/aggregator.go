package review

import (
	"github.com/dukex/folio/pkg/models"
)

// Gating returns the roster members whose reviews gate completion of the
// current version, in roster order. Declined reviewers never gate.
func Gating(m *models.Manuscript) []string {
	out := make([]string, 0, len(m.AssignedReviewers))

	for _, id := range m.AssignedReviewers {
		a, ok := m.Assignment(id)
		if !ok || a.InvitationStatus == models.InvitationDeclined {
			continue
		}

		out = append(out, id)
	}

	return out
}

// AllCompleted reports whether the gating set is non-empty and every member
// has a completed submission for the current version.
func AllCompleted(m *models.Manuscript) bool {
	gating := Gating(m)
	if len(gating) == 0 {
		return false
	}

	for _, id := range gating {
		if _, ok := m.SubmissionFor(id, m.VersionNumber); !ok {
			return false
		}
	}

	return true
}

// DeriveStatus computes the review-phase status implied by the roster.
// Reviewers carried over into a re-review count as assigned while their
// invitation is still pending.
func DeriveStatus(m *models.Manuscript) models.Status {
	gating := Gating(m)
	if len(gating) == 0 {
		return models.StatusAssigningReviewer
	}

	if AllCompleted(m) {
		return models.StatusBackToAdmin
	}

	var accepted, submitted bool

	for _, id := range gating {
		if _, ok := m.SubmissionFor(id, m.VersionNumber); ok {
			submitted = true
		}

		if a, _ := m.Assignment(id); a.InvitationStatus == models.InvitationAccepted || a.IsReReview {
			accepted = true
		}
	}

	switch {
	case submitted:
		return models.StatusReviewerReviewing
	case accepted:
		return models.StatusReviewerAssigned
	default:
		return models.StatusAssigningReviewer
	}
}

// Summary describes where the reviewer decisions for the current version stand.
// It never recommends a winner; the outcome is the administrator's call.
type Summary struct {
	VersionNumber int                        `json:"version_number"`
	AllDecided    bool                       `json:"all_decided"`
	Active        []string                   `json:"active"`
	Decided       []string                   `json:"decided"`
	Pending       []string                   `json:"pending"`
	Decisions     map[models.Decision]int    `json:"decisions,omitempty"`
	ByReviewer    map[string]models.Decision `json:"by_reviewer,omitempty"`
}

// Aggregate summarizes the active decisions of the current roster. The
// decision multiset is only populated once every active reviewer has decided.
func Aggregate(m *models.Manuscript) Summary {
	s := Summary{
		VersionNumber: m.VersionNumber,
		Active:        Gating(m),
		Decided:       []string{},
		Pending:       []string{},
	}

	byReviewer := map[string]models.Decision{}

	for _, id := range s.Active {
		d, ok := m.ReviewerDecisionMeta[id]
		if !ok || d.VersionNumber != m.VersionNumber {
			s.Pending = append(s.Pending, id)

			continue
		}

		s.Decided = append(s.Decided, id)
		byReviewer[id] = d.Decision
	}

	s.AllDecided = len(s.Active) > 0 && len(s.Pending) == 0
	if !s.AllDecided {
		return s
	}

	s.ByReviewer = byReviewer
	s.Decisions = map[models.Decision]int{}

	for _, d := range byReviewer {
		s.Decisions[d]++
	}

	return s
}
