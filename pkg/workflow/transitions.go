package workflow

import (
	"slices"

	"github.com/dukex/folio/pkg/models"
)

// Action names a controller operation for the purpose of status checks.
type Action string

const (
	ActionAccept           Action = "accept"
	ActionRejectSubmission Action = "reject_submission"
	ActionAssignReviewer   Action = "assign_reviewer"
	ActionRespond          Action = "respond"
	ActionSubmitReview     Action = "submit_review"
	ActionUnassignReviewer Action = "unassign_reviewer"
	ActionDecide           Action = "decide"
	ActionResubmit         Action = "resubmit"
	ActionUpdateDeadline   Action = "update_deadline"
	ActionRecordReminder   Action = "record_reminder"
)

var reviewPhase = []models.Status{
	models.StatusAssigningReviewer,
	models.StatusReviewerAssigned,
	models.StatusReviewerReviewing,
	models.StatusBackToAdmin,
}

// Outcomes an administrator may choose from Back to Admin.
var Outcomes = []models.Status{
	models.StatusRevisionMinor,
	models.StatusRevisionMajor,
	models.StatusForPublication,
	models.StatusRejected,
	models.StatusPeerReviewerRejected,
}

// transitions lists every status change the controller may commit. A status
// without outgoing edges is terminal.
var transitions = map[models.Status][]models.Status{
	models.StatusPending: {
		models.StatusAccepted,
		models.StatusNonAcceptance,
	},
	models.StatusAccepted: {
		models.StatusAssigningReviewer,
		models.StatusNonAcceptance,
	},
	models.StatusAssigningReviewer: {
		models.StatusReviewerAssigned,
		models.StatusReviewerReviewing,
		models.StatusBackToAdmin,
	},
	models.StatusReviewerAssigned: {
		models.StatusAssigningReviewer,
		models.StatusReviewerReviewing,
		models.StatusBackToAdmin,
	},
	models.StatusReviewerReviewing: {
		models.StatusAssigningReviewer,
		models.StatusReviewerAssigned,
		models.StatusBackToAdmin,
	},
	models.StatusBackToAdmin: {
		models.StatusAssigningReviewer,
		models.StatusReviewerAssigned,
		models.StatusReviewerReviewing,
		models.StatusRevisionMinor,
		models.StatusRevisionMajor,
		models.StatusForPublication,
		models.StatusRejected,
		models.StatusPeerReviewerRejected,
	},
	models.StatusRevisionMinor: {
		models.StatusAssigningReviewer,
	},
	models.StatusRevisionMajor: {
		models.StatusReviewerAssigned,
		models.StatusAssigningReviewer,
	},
	models.StatusForPublication:       {},
	models.StatusRejected:             {},
	models.StatusPeerReviewerRejected: {},
	models.StatusNonAcceptance:        {},
}

// allowedFrom lists the statuses each action may start from.
var allowedFrom = map[Action][]models.Status{
	ActionAccept:           {models.StatusPending},
	ActionRejectSubmission: {models.StatusPending, models.StatusAccepted},
	ActionAssignReviewer:   append([]models.Status{models.StatusPending, models.StatusAccepted}, reviewPhase...),
	ActionRespond:          reviewPhase,
	ActionSubmitReview:     {models.StatusReviewerAssigned, models.StatusReviewerReviewing},
	ActionUnassignReviewer: reviewPhase,
	ActionDecide:           {models.StatusBackToAdmin},
	ActionResubmit:         {models.StatusRevisionMinor, models.StatusRevisionMajor},
	ActionUpdateDeadline:   reviewPhase,
	ActionRecordReminder:   reviewPhase,
}

// CanTransition reports whether from → to is a legal status change.
// Staying in the same status is always legal.
func CanTransition(from, to models.Status) bool {
	if from == to {
		return true
	}

	return slices.Contains(transitions[from], to)
}

// Allows reports whether action may run while the manuscript is in status.
func Allows(action Action, status models.Status) bool {
	return slices.Contains(allowedFrom[action], status)
}

// Next returns the statuses reachable from status in one step.
func Next(status models.Status) []models.Status {
	return slices.Clone(transitions[status])
}
