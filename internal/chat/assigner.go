package chat

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/google/uuid"
)

type salesRepDirectory interface {
	SalesReps(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error)
}

// Assigner routes newly started sessions to the supplier's least busy sales rep.
type Assigner struct {
	repo Repository
	reps salesRepDirectory
	logg *logger.Logger
}

func NewAssigner(repo Repository, reps salesRepDirectory, logg *logger.Logger) (*Assigner, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "chat repository required")
	}
	if reps == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sales rep directory required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Assigner{repo: repo, reps: reps, logg: logg}, nil
}

// Subscribe registers the assigner on bus.
func (a *Assigner) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe("chat-assigner", a, enums.EventChatSessionStarted)
}

// Handle assigns a rep unless the session already has one. Redelivery is harmless.
func (a *Assigner) Handle(ctx context.Context, event eventbus.Event) error {
	started, ok := eventbus.PayloadAs[eventbus.ChatSessionStarted](event)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	ctx = a.logg.WithFields(ctx, map[string]any{
		"session_id":  started.SessionID.String(),
		"supplier_id": started.SupplierID.String(),
	})

	reps, err := a.reps.SalesReps(ctx, started.SupplierID)
	if err != nil {
		return err
	}
	if len(reps) == 0 {
		a.logg.Warn(ctx, "no sales reps available; session left unassigned")
		return nil
	}
	counts, err := a.repo.CountSessionsByRep(ctx, started.SupplierID, reps)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count rep sessions")
	}

	chosen := reps[0]
	for _, rep := range reps[1:] {
		if counts[rep] < counts[chosen] {
			chosen = rep
		}
	}

	assigned, err := a.repo.AssignSalesRep(ctx, started.SessionID, chosen)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign sales rep")
	}
	if !assigned {
		a.logg.Debug(ctx, "session already assigned")
		return nil
	}
	ctx = a.logg.WithField(ctx, "sales_rep_id", chosen.String())
	a.logg.Info(ctx, "chat session assigned")
	return nil
}
