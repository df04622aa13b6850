package deadline

import (
	"time"

	"github.com/dukex/folio/pkg/models"
)

// Kind names one of the configurable deadline windows.
type Kind string

const (
	KindInvitation    Kind = "invitation"
	KindReview        Kind = "review"
	KindMinorRevision Kind = "minor"
	KindMajorRevision Kind = "major"
	KindFinalization  Kind = "finalization"
)

// Kinds lists every window kind.
var Kinds = []Kind{KindInvitation, KindReview, KindMinorRevision, KindMajorRevision, KindFinalization}

// Windows maps each kind to a duration in days.
type Windows map[Kind]int

// DefaultWindows are used when the settings document omits a kind.
func DefaultWindows() Windows {
	return Windows{
		KindInvitation:    5,
		KindReview:        6,
		KindMinorRevision: 5,
		KindMajorRevision: 6,
		KindFinalization:  5,
	}
}

// statusKinds maps settings keys written as status names onto window kinds.
var statusKinds = map[string]Kind{
	string(models.StatusAssigningReviewer): KindInvitation,
	string(models.StatusReviewerAssigned):  KindReview,
	string(models.StatusReviewerReviewing): KindReview,
	string(models.StatusRevisionMinor):     KindMinorRevision,
	string(models.StatusRevisionMajor):     KindMajorRevision,
	string(models.StatusBackToAdmin):       KindFinalization,
}

// Resolve builds windows from a settings document keyed by status name or
// kind name. Missing or non-positive entries fall back to the defaults.
// Status keys apply in lifecycle order and kind keys apply last, so when
// several keys name one kind the kind key wins, then the latest status.
func Resolve(settings map[string]int) Windows {
	w := DefaultWindows()

	for _, status := range models.AllStatuses {
		kind, ok := statusKinds[string(status)]
		if !ok {
			continue
		}

		if days := settings[string(status)]; days > 0 {
			w[kind] = days
		}
	}

	for _, kind := range Kinds {
		if days := settings[string(kind)]; days > 0 {
			w[kind] = days
		}
	}

	return w
}

// Days returns the configured number of days for kind.
func (w Windows) Days(kind Kind) int {
	if days, ok := w[kind]; ok && days > 0 {
		return days
	}

	return DefaultWindows()[kind]
}

// For returns the concrete deadline of a window opening at start.
func (w Windows) For(kind Kind, start time.Time) time.Time {
	return start.AddDate(0, 0, w.Days(kind))
}

// ForStatus returns the window that governs a manuscript-level deadline for
// status, if any.
func ForStatus(status models.Status) (Kind, bool) {
	kind, ok := statusKinds[string(status)]

	return kind, ok
}
