package complaints

import (
	"testing"
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var allActions = []action{actionResolve, actionEscalate, actionSatisfied, actionUnsatisfied}

func TestApplyEscalatedComplaintIsResolvable(t *testing.T) {
	now := time.Now().UTC()
	c := models.Complaint{Status: enums.ComplaintStatusOpen}

	c, err := apply(c, actionEscalate, now)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if c.Status != enums.ComplaintStatusInProgress || c.EscalatedAt == nil {
		t.Fatalf("unexpected complaint after escalate: %+v", c)
	}
	if _, err := apply(c, actionEscalate, now); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected second escalate to fail, got %v", err)
	}
	c, err = apply(c, actionResolve, now)
	if err != nil || c.Status != enums.ComplaintStatusResolved {
		t.Fatalf("expected resolve from in_progress, got %v %v", c.Status, err)
	}
}

func TestApplyUnsatisfiedFeedbackReopens(t *testing.T) {
	now := time.Now().UTC()
	c := models.Complaint{Status: enums.ComplaintStatusResolved, ResolvedAt: &now}

	c, err := apply(c, actionUnsatisfied, now)
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if c.Status != enums.ComplaintStatusOpen || c.ConsumerFeedback != nil || c.ResolvedAt != nil {
		t.Fatalf("unexpected complaint after reopen: %+v", c)
	}
	if _, err := apply(c, actionResolve, now); err != nil {
		t.Fatalf("expected a new resolution to be allowed: %v", err)
	}
}

func TestApplyFeedbackOnlyOnceWhileResolved(t *testing.T) {
	now := time.Now().UTC()
	open := models.Complaint{Status: enums.ComplaintStatusOpen}
	if _, err := apply(open, actionSatisfied, now); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected feedback on open complaint to fail, got %v", err)
	}

	resolved := models.Complaint{Status: enums.ComplaintStatusResolved}
	rated, err := apply(resolved, actionSatisfied, now)
	if err != nil || rated.ConsumerFeedback == nil || !*rated.ConsumerFeedback {
		t.Fatalf("expected satisfied feedback, got %+v %v", rated, err)
	}
	if _, err := apply(rated, actionUnsatisfied, now); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected second feedback to fail, got %v", err)
	}
}

func TestComplaintWorkflowProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("escalation happens at most once and state stays consistent", prop.ForAll(
		func(steps []int) bool {
			now := time.Now().UTC()
			c := models.Complaint{Status: enums.ComplaintStatusOpen}
			escalations := 0
			for _, step := range steps {
				next, err := apply(c, allActions[step], now)
				if err != nil {
					if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
						return false
					}
					if next.Status != c.Status {
						return false
					}
					continue
				}
				if allActions[step] == actionEscalate {
					escalations++
				}
				c = next
				if !c.Status.IsValid() {
					return false
				}
				if c.ConsumerFeedback != nil && c.Status != enums.ComplaintStatusResolved {
					return false
				}
				if (c.Status == enums.ComplaintStatusResolved) != (c.ResolvedAt != nil) {
					return false
				}
			}
			return escalations <= 1
		},
		gen.SliceOf(gen.IntRange(0, len(allActions)-1)),
	))

	properties.Property("resolved complaints cannot be resolved again", prop.ForAll(
		func(satisfied bool) bool {
			now := time.Now().UTC()
			c := models.Complaint{Status: enums.ComplaintStatusResolved, ResolvedAt: &now}
			if satisfied {
				c.ConsumerFeedback = &satisfied
			}
			_, err := apply(c, actionResolve, now)
			return pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition)
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}
