package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/angelmondragon/tradelink-backend/pkg/outbox/registry"
)

// verdict is the relay's decision for one row. An empty reason with a non-nil err
// means the row stays pending for another attempt.
type verdict struct {
	topic  string
	err    error
	reason enums.OutboxDLQErrorReason
}

// processBatch claims up to batchSize pending rows and settles each inside one
// transaction. It reports whether any row was claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(events)
		for _, event := range events {
			if err := s.settle(ctx, tx, event, s.relay(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	s.metrics.ObserveBatch(claimed)
	return claimed > 0, err
}

func (s *Service) relay(ctx context.Context, event models.OutboxEvent) verdict {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return verdict{err: err, reason: enums.OutboxDLQReasonNonRetryable}
	}

	v := verdict{topic: resolved.Descriptor.Topic}
	v.err = s.publish(ctx, v.topic, routedMessage(event, resolved.Envelope.EventID))
	var nonRetryable registry.NonRetryableError
	switch {
	case v.err == nil:
	case errors.As(v.err, &nonRetryable):
		v.reason = enums.OutboxDLQReasonNonRetryable
	case event.NextAttempt() >= s.maxAttempts:
		v.reason = enums.OutboxDLQReasonMaxAttempts
		v.err = fmt.Errorf("gave up after %d attempts: %w", event.NextAttempt(), v.err)
	}
	return v
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, v verdict) error {
	logCtx := s.logg.WithFields(ctx, eventFields(event, v.topic))
	eventType := string(event.EventType)

	switch {
	case v.err == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.Published(eventType)
		s.logg.Info(logCtx, "outbox.published")

	case v.reason == "":
		if err := s.repo.MarkFailedTx(tx, event.ID, v.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
		s.metrics.Retried(eventType)
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"error":         v.err.Error(),
			"attempt_count": event.NextAttempt(),
		}), "outbox.retry_scheduled")

	default:
		entry := models.DeadLetter(event, v.reason, v.err, time.Now())
		if err := s.dlq.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("dead-letter %s: %w", event.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, event.ID, v.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
		s.metrics.DeadLettered(eventType, v.reason.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"error": v.err.Error(), "error_reason": v.reason})
		s.logg.Warn(logCtx, "outbox.dead_lettered")
		s.forwardDeadLetter(logCtx, event, v.reason)
	}
	return nil
}

// forwardDeadLetter mirrors a dead-lettered row onto the DLQ topic. The DLQ table is
// the record of truth, so a failed forward is only logged.
func (s *Service) forwardDeadLetter(ctx context.Context, event models.OutboxEvent, reason enums.OutboxDLQErrorReason) {
	topic := s.cfg.PubSub.DLQTopic
	if topic == "" {
		return
	}
	msg := routedMessage(event, event.ID.String())
	msg.Attributes["error_reason"] = reason.String()
	if err := s.publish(ctx, topic, msg); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "dlq_topic", topic), "outbox.dlq_forward_failed", err)
	}
}

func eventFields(event models.OutboxEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
