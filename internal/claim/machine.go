// AngelaMos | 2026
// machine.go

package claim

import (
	"github.com/carterperez-dev/insurance-backend/internal/core"
)

type Action string

const (
	ActionCancel  Action = "cancel"
	ActionReview  Action = "review"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionSettle  Action = "settle"
)

const submittedTitle = "Siniestro registrado"

var transitions = map[Status]map[Action]Status{
	StatusSubmitted: {
		ActionCancel: StatusCancelled,
		ActionReview: StatusUnderReview,
	},
	StatusUnderReview: {
		ActionApprove: StatusApproved,
		ActionReject:  StatusRejected,
		ActionCancel:  StatusCancelled,
	},
	StatusApproved: {
		ActionSettle: StatusPaid,
	},
}

var actionTitles = map[Action]string{
	ActionCancel:  "Siniestro cancelado",
	ActionReview:  "Siniestro en revisión",
	ActionApprove: "Siniestro aprobado",
	ActionReject:  "Siniestro rechazado",
	ActionSettle:  "Siniestro pagado",
}

// Next returns the status reached by applying action to from, or an
// InvalidTransitionError when the pair is not an edge of the machine.
func Next(from Status, action Action) (Status, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	return "", core.InvalidTransitionError(string(from), string(action))
}

// IsTerminal reports whether no action leaves s.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// IsStaffAction reports whether action is reserved for staff. Owners may
// only cancel.
func IsStaffAction(action Action) bool {
	switch action {
	case ActionReview, ActionApprove, ActionReject, ActionSettle:
		return true
	}
	return false
}
