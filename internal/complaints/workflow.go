package complaints

import (
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
)

type action string

const (
	actionResolve     action = "resolve"
	actionEscalate    action = "escalate"
	actionSatisfied   action = "feedback_satisfied"
	actionUnsatisfied action = "feedback_unsatisfied"
)

// apply returns the complaint as it looks after a, or INVALID_TRANSITION.
//
//	open        -> resolved (resolve), in_progress (escalate, once)
//	in_progress -> resolved (resolve)
//	resolved    -> resolved (satisfied), open (unsatisfied); only while feedback is unset
//
// Reopening clears feedback and the resolution time so the next resolution can
// be rated. The escalation mark survives a reopen.
func apply(c models.Complaint, a action, now time.Time) (models.Complaint, error) {
	switch a {
	case actionResolve:
		if c.Status == enums.ComplaintStatusResolved {
			return c, invalidTransition(c, a)
		}
		c.Status = enums.ComplaintStatusResolved
		c.ResolvedAt = &now
	case actionEscalate:
		if c.Status != enums.ComplaintStatusOpen || c.EscalatedAt != nil {
			return c, invalidTransition(c, a)
		}
		c.Status = enums.ComplaintStatusInProgress
		c.EscalatedAt = &now
	case actionSatisfied, actionUnsatisfied:
		if c.Status != enums.ComplaintStatusResolved || c.ConsumerFeedback != nil {
			return c, invalidTransition(c, a)
		}
		if a == actionSatisfied {
			satisfied := true
			c.ConsumerFeedback = &satisfied
			break
		}
		c.Status = enums.ComplaintStatusOpen
		c.ConsumerFeedback = nil
		c.ResolvedAt = nil
	default:
		return c, pkgerrors.New(pkgerrors.CodeValidation, "unknown complaint action")
	}
	c.UpdatedAt = now
	return c, nil
}

func invalidTransition(c models.Complaint, a action) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "complaint cannot "+string(a)+" while "+string(c.Status)).
		WithDetails(map[string]any{
			"current_status": c.Status,
			"action":         string(a),
			"escalated":      c.EscalatedAt != nil,
		})
}

// changes lists the columns apply may touch.
func changes(c models.Complaint) map[string]any {
	return map[string]any{
		"status":            c.Status,
		"consumer_feedback": c.ConsumerFeedback,
		"escalated_at":      c.EscalatedAt,
		"resolved_at":       c.ResolvedAt,
		"updated_at":        c.UpdatedAt,
	}
}
