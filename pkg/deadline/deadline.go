// Package deadline computes remaining time, urgency tiers and concrete deadlines
// for manuscripts and reviewer assignments. Everything here is a pure function of
// its inputs; overdue is derived at read time and never fired by a timer.
package deadline

import (
	"time"

	"github.com/dukex/folio/pkg/models"
)

// Tier is a coarse urgency bucket derived from the fraction of a window that remains.
type Tier string

const (
	TierOK       Tier = "ok"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
	TierOverdue  Tier = "overdue"
)

const (
	criticalFraction = 0.25
	warningFraction  = 0.60
)

// Remaining is the time left until a deadline decomposed for display.
type Remaining struct {
	Days      int  `json:"days"`
	Hours     int  `json:"hours"`
	Minutes   int  `json:"minutes"`
	IsOverdue bool `json:"is_overdue"`
}

// ComputeRemaining decomposes end-now into days, hours and minutes.
// When the deadline has passed the components describe how long ago it was.
func ComputeRemaining(end, now time.Time) Remaining {
	diff := end.Sub(now)
	overdue := diff <= 0

	if overdue {
		diff = -diff
	}

	days := int(diff / (24 * time.Hour))
	diff -= time.Duration(days) * 24 * time.Hour
	hours := int(diff / time.Hour)
	diff -= time.Duration(hours) * time.Hour
	minutes := int(diff / time.Minute)

	return Remaining{
		Days:      days,
		Hours:     hours,
		Minutes:   minutes,
		IsOverdue: overdue,
	}
}

// ComputeTier buckets the remaining fraction of the (start, end) window.
// The fraction is relative, so a one-day and a thirty-day window turn critical
// at the same proportion elapsed.
func ComputeTier(start, end, now time.Time) Tier {
	if !now.Before(end) {
		return TierOverdue
	}

	window := end.Sub(start)
	if window <= 0 {
		return TierCritical
	}

	fraction := float64(end.Sub(now)) / float64(window)

	switch {
	case fraction < criticalFraction:
		return TierCritical
	case fraction < warningFraction:
		return TierWarning
	default:
		return TierOK
	}
}

// Info is a fully annotated deadline.
type Info struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Remaining Remaining `json:"remaining"`
	Tier      Tier      `json:"tier"`
}

// Describe annotates a (start, end) pair as of now.
func Describe(start, end, now time.Time) Info {
	return Info{
		Start:     start,
		End:       end,
		Remaining: ComputeRemaining(end, now),
		Tier:      ComputeTier(start, end, now),
	}
}

// ForReviewer returns the deadline owned by one reviewer. The window starts
// when the reviewer accepted, or when they were invited while still pending.
func ForReviewer(m *models.Manuscript, reviewerID string, now time.Time) (Info, bool) {
	a, ok := m.Assignment(reviewerID)
	if !ok || a.Deadline == nil || a.InvitationStatus == models.InvitationDeclined {
		return Info{}, false
	}

	start := a.AssignedAt
	if a.InvitationStatus == models.InvitationAccepted && a.RespondedAt != nil {
		start = *a.RespondedAt
	}

	return Describe(start, *a.Deadline, now), true
}

// LatestActive returns the furthest-in-future deadline among accepted
// reviewers who have not completed the current version. Admins and authors
// see this binding constraint instead of every individual deadline.
func LatestActive(m *models.Manuscript, now time.Time) (Info, bool) {
	var (
		best  Info
		found bool
	)

	for _, id := range m.AssignedReviewers {
		a, ok := m.Assignment(id)
		if !ok || a.InvitationStatus != models.InvitationAccepted || a.Deadline == nil {
			continue
		}

		if _, done := m.SubmissionFor(id, m.VersionNumber); done {
			continue
		}

		info, _ := ForReviewer(m, id, now)
		if !found || info.End.After(best.End) {
			best = info
			found = true
		}
	}

	return best, found
}

// ForManuscript returns the manuscript-level deadline relevant to its current status.
func ForManuscript(m *models.Manuscript, now time.Time) (Info, bool) {
	start := m.SubmittedAt
	if m.ResubmittedAt != nil {
		start = *m.ResubmittedAt
	}

	if len(m.StatusHistory) > 0 {
		start = m.StatusHistory[len(m.StatusHistory)-1].ChangedAt
	}

	var end *time.Time

	switch m.Status {
	case models.StatusAssigningReviewer:
		end = m.InvitationDeadline
	case models.StatusReviewerAssigned, models.StatusReviewerReviewing:
		if info, ok := LatestActive(m, now); ok {
			return info, true
		}

		end = m.ReviewDeadline
	case models.StatusRevisionMinor, models.StatusRevisionMajor:
		end = m.RevisionDeadline
	case models.StatusBackToAdmin:
		end = m.FinalizationDeadline
	case models.StatusPending, models.StatusAccepted, models.StatusForPublication,
		models.StatusRejected, models.StatusPeerReviewerRejected, models.StatusNonAcceptance:
		return Info{}, false
	}

	if end == nil {
		return Info{}, false
	}

	return Describe(start, *end, now), true
}
