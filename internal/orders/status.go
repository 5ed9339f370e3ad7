package orders

import (
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
)

// transitions lists the statuses reachable in one step. Anything not listed is
// illegal; states are never skipped.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusAccepted, enums.OrderStatusRejected},
	enums.OrderStatusAccepted:   {enums.OrderStatusInProgress, enums.OrderStatusRejected},
	enums.OrderStatusInProgress: {enums.OrderStatusCompleted},
}

// CanTransition reports whether from -> to is a single legal step.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from current.
func NextStatuses(current enums.OrderStatus) []enums.OrderStatus {
	next := transitions[current]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

func validateTransition(from, to enums.OrderStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order cannot move from "+string(from)+" to "+string(to)).
		WithDetails(map[string]any{
			"current_status": from,
			"target_status":  to,
			"allowed":        NextStatuses(from),
		})
}
