package notifications

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/angelmondragon/tradelink-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tradelink-backend/pkg/outbox/registry"
	"github.com/google/uuid"
)

const domainEventConsumer = "domain-events"

type messageResolver interface {
	ResolveMessage(data []byte, attrs map[string]string) (*registry.ResolvedEvent, error)
}

type processedGuard interface {
	Run(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Consumer relays domain events from the Pub/Sub subscription onto the
// in-process bus, where the dispatcher and the chat assigner pick them up.
type Consumer struct {
	subscription *pubsub.Subscriber
	resolver     messageResolver
	bus          eventbus.Publisher
	idempotency  processedGuard
	logg         *logger.Logger
}

// NewConsumer builds the domain event consumer.
func NewConsumer(subscription *pubsub.Subscriber, resolver messageResolver, bus eventbus.Publisher, guard processedGuard, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: subscription,
		resolver:     resolver,
		bus:          bus,
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Data, msg.Attributes)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, messageID string, data []byte, attrs map[string]string) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": attrs[registry.AttrEventType],
	})

	resolved, err := c.resolver.ResolveMessage(data, attrs)
	if err != nil {
		var nonRetryable registry.NonRetryableError
		if errors.As(err, &nonRetryable) {
			c.logg.Error(logCtx, "dropping undecodable event", err)
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "failed to resolve event", err)
		return processResult{nack: true}
	}

	event := resolved.Event
	logCtx = c.logg.WithEvent(logCtx, string(event.Type), event.ID.String())

	skipped, err := c.idempotency.Run(ctx, domainEventConsumer, event.ID, func(ctx context.Context) error {
		return c.bus.Publish(ctx, event)
	})
	if errors.Is(err, idempotency.ErrInFlight) {
		c.logg.Info(logCtx, "event claimed by another worker")
		return processResult{nack: true}
	}
	if err != nil {
		c.logg.Error(logCtx, "event handling failed", err)
		return processResult{nack: true}
	}
	if skipped {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}
	c.logg.Debug(logCtx, "event relayed")
	return processResult{ack: true}
}
