package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tradelink-backend/internal/chat"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
)

type systemMessenger interface {
	AppendSystemMessage(ctx context.Context, input chat.SystemMessageInput) (*models.ChatMessage, bool, error)
}

type recipientDirectory interface {
	SupplierStaff(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error)
	Managers(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error)
	ConsumerUsers(ctx context.Context, consumerID uuid.UUID) ([]uuid.UUID, error)
}

// Dispatcher fans bus events out to inbox notifications and system chat
// messages. It holds no state of its own; redelivering an event writes nothing
// new because both sinks are keyed on the event id.
type Dispatcher struct {
	repo      Repository
	messenger systemMessenger
	directory recipientDirectory
	logg      *logger.Logger
}

func NewDispatcher(repo Repository, messenger systemMessenger, directory recipientDirectory, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if messenger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "chat messenger required")
	}
	if directory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "account directory required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Dispatcher{repo: repo, messenger: messenger, directory: directory, logg: logg}, nil
}

// Subscribe registers the dispatcher for every event on bus.
func (d *Dispatcher) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe("notification-dispatcher", d)
}

// delivery is one notification fanned out to a recipient set.
type delivery struct {
	recipients []uuid.UUID
	kind       enums.NotificationType
	message    string
	entityType enums.EntityType
	entityID   uuid.UUID
}

// systemNote is the chat line appended to an order's session.
type systemNote struct {
	orderID     uuid.UUID
	consumerID  uuid.UUID
	supplierID  uuid.UUID
	text        string
	severity    enums.MessageSeverity
	// openSession is set for consumer-initiated events, which may start the
	// order's session. Other notes are skipped when no session exists.
	openSession bool
}

// plan is what a single event turns into.
type plan struct {
	deliveries []delivery
	note       *systemNote
}

// Handle writes the notifications and system message mapped from event. Both
// sinks are attempted even if one fails; the failures are combined.
func (d *Dispatcher) Handle(ctx context.Context, event eventbus.Event) error {
	ctx = d.logg.WithEvent(ctx, string(event.Type), event.ID.String())

	p, err := d.plan(ctx, event)
	if err != nil {
		return err
	}

	var errs error
	written, err := d.notify(ctx, event.ID, p.deliveries)
	errs = multierr.Append(errs, err)

	appended := false
	if p.note != nil {
		_, inserted, err := d.messenger.AppendSystemMessage(ctx, chat.SystemMessageInput{
			OrderID:     p.note.orderID,
			ConsumerID:  p.note.consumerID,
			SupplierID:  p.note.supplierID,
			EventID:     event.ID,
			Text:        p.note.text,
			Severity:    p.note.severity,
			OpenSession: p.note.openSession,
		})
		errs = multierr.Append(errs, err)
		appended = inserted
	}
	if errs != nil {
		return errs
	}

	if written > 0 || appended {
		d.logg.Info(d.logg.WithFields(ctx, map[string]any{
			"notifications":  written,
			"system_message": appended,
		}), "event dispatched")
	}
	return nil
}

func (d *Dispatcher) notify(ctx context.Context, eventID uuid.UUID, deliveries []delivery) (int64, error) {
	var rows []models.Notification
	for _, del := range deliveries {
		seen := make(map[uuid.UUID]struct{}, len(del.recipients))
		for _, recipient := range del.recipients {
			if _, dup := seen[recipient]; dup || recipient == uuid.Nil {
				continue
			}
			seen[recipient] = struct{}{}
			entityType := del.entityType
			entityID := del.entityID
			id := eventID
			rows = append(rows, models.Notification{
				RecipientID: recipient,
				Type:        del.kind,
				Message:     del.message,
				EntityType:  &entityType,
				EntityID:    &entityID,
				EventID:     &id,
			})
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}
	written, err := d.repo.CreateMany(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("create notifications: %w", err)
	}
	return written, nil
}

func (d *Dispatcher) plan(ctx context.Context, event eventbus.Event) (plan, error) {
	switch event.Type {
	case enums.EventLinkRequested:
		payload, ok := eventbus.PayloadAs[eventbus.LinkRequested](event)
		if !ok {
			return plan{}, unexpectedPayload(event)
		}
		staff, err := d.directory.SupplierStaff(ctx, payload.SupplierID)
		if err != nil {
			return plan{}, err
		}
		return plan{deliveries: []delivery{{
			recipients: staff,
			kind:       enums.NotificationTypeLinkRequest,
			message:    "A consumer has requested to link with your account.",
			entityType: enums.EntityLinkRequest,
			entityID:   payload.RequestID,
		}}}, nil

	case enums.EventLinkDecided:
		payload, ok := eventbus.PayloadAs[eventbus.LinkDecided](event)
		if !ok {
			return plan{}, unexpectedPayload(event)
		}
		users, err := d.directory.ConsumerUsers(ctx, payload.ConsumerID)
		if err != nil {
			return plan{}, err
		}
		return plan{deliveries: []delivery{{
			recipients: users,
			kind:       enums.NotificationTypeLinkRequest,
			message:    fmt.Sprintf("Your link request was %s.", payload.Status),
			entityType: enums.EntityLinkRequest,
			entityID:   payload.RequestID,
		}}}, nil

	case enums.EventOrderCreated:
		payload, ok := eventbus.PayloadAs[eventbus.OrderCreated](event)
		if !ok {
			return plan{}, unexpectedPayload(event)
		}
		staff, err := d.directory.SupplierStaff(ctx, payload.SupplierID)
		if err != nil {
			return plan{}, err
		}
		return plan{
			deliveries: []delivery{{
				recipients: staff,
				kind:       enums.NotificationTypeOrderUpdate,
				message:    fmt.Sprintf("New order %s received.", shortID(payload.OrderID)),
				entityType: enums.EntityOrder,
				entityID:   payload.OrderID,
			}},
			note: &systemNote{
				orderID:    payload.OrderID,
				consumerID: payload.ConsumerID,
				supplierID: payload.SupplierID,
				text:       fmt.Sprintf("Order placed with %d item(s).", payload.ItemCount),
				severity:   enums.SeverityInfo,
			},
		}, nil

	case enums.EventOrderStatusChanged:
		payload, ok := eventbus.PayloadAs[eventbus.OrderStatusChanged](event)
		if !ok {
			return plan{}, unexpectedPayload(event)
		}
		users, err := d.directory.ConsumerUsers(ctx, payload.ConsumerID)
		if err != nil {
			return plan{}, err
		}
		return plan{
			deliveries: []delivery{{
				recipients: users,
				kind:       enums.NotificationTypeOrderUpdate,
				message:    fmt.Sprintf("Order %s is now %s.", shortID(payload.OrderID), payload.NewStatus),
				entityType: enums.EntityOrder,
				entityID:   payload.OrderID,
			}},
			note: &systemNote{
				orderID:    payload.OrderID,
				consumerID: payload.ConsumerID,
				supplierID: payload.SupplierID,
				text:       fmt.Sprintf("Order status changed from %s to %s.", payload.OldStatus, payload.NewStatus),
				severity:   statusSeverity(payload.NewStatus),
			},
		}, nil

	case enums.EventComplaintFiled:
		payload, ok := eventbus.PayloadAs[eventbus.ComplaintFiled](event)
		if !ok {
			return plan{}, unexpectedPayload(event)
		}
		return d.complaintPlan(ctx, payload.ComplaintRef, complaintNotice{
			toSupplier: fmt.Sprintf("A complaint was filed on order %s.", shortID(payload.OrderID)),
			note:       "A complaint was filed on this order.",
			severity:   enums.SeverityWarning,
			byConsumer: true,
		})

	case enums.EventComplaintReopened:
		payload, ok := eventbus.PayloadAs[eventbus.ComplaintReopened](event)
		if !ok {
			return plan{}, unexpectedPayload(event)
		}
		return d.complaintPlan(ctx, payload.ComplaintRef, complaintNotice{
			toSupplier: fmt.Sprintf("The complaint on order %s was reopened by the consumer.", shortID(payload.OrderID)),
			note:       "The complaint was reopened by the consumer.",
			severity:   enums.SeverityWarning,
			byConsumer: true,
		})

	case enums.EventComplaintFeedbackRecorded:
		payload, ok := eventbus.PayloadAs[eventbus.ComplaintFeedbackRecorded](event)
		if !ok {
			return plan{}, unexpectedPayload(event)
		}
		if !payload.Satisfied {
			return plan{}, nil
		}
		return d.complaintPlan(ctx, payload.ComplaintRef, complaintNotice{
			toSupplier: fmt.Sprintf("The consumer is satisfied with the resolution on order %s.", shortID(payload.OrderID)),
			note:       "The consumer confirmed the complaint resolution. Thank you!",
			severity:   enums.SeveritySuccess,
			byConsumer: true,
		})

	case enums.EventComplaintResolved:
		payload, ok := eventbus.PayloadAs[eventbus.ComplaintResolved](event)
		if !ok {
			return plan{}, unexpectedPayload(event)
		}
		return d.complaintPlan(ctx, payload.ComplaintRef, complaintNotice{
			toConsumer: fmt.Sprintf("Your complaint on order %s was resolved. Let us know if you are satisfied.", shortID(payload.OrderID)),
			note:       "The complaint was marked as resolved.",
			severity:   enums.SeveritySuccess,
		})

	case enums.EventComplaintEscalated:
		payload, ok := eventbus.PayloadAs[eventbus.ComplaintEscalated](event)
		if !ok {
			return plan{}, unexpectedPayload(event)
		}
		return d.complaintPlan(ctx, payload.ComplaintRef, complaintNotice{
			toManagers: fmt.Sprintf("The complaint on order %s was escalated.", shortID(payload.OrderID)),
			toConsumer: fmt.Sprintf("Your complaint on order %s was escalated to supplier management.", shortID(payload.OrderID)),
			note:       "The complaint was escalated to supplier management.",
			severity:   enums.SeverityWarning,
		})

	case enums.EventMessageSent:
		payload, ok := eventbus.PayloadAs[eventbus.MessageSent](event)
		if !ok {
			return plan{}, unexpectedPayload(event)
		}
		return d.messagePlan(ctx, payload)

	default:
		return plan{}, nil
	}
}

type complaintNotice struct {
	toSupplier string
	toManagers string
	toConsumer string
	note       string
	severity   enums.MessageSeverity
	byConsumer bool
}

func (d *Dispatcher) complaintPlan(ctx context.Context, ref eventbus.ComplaintRef, notice complaintNotice) (plan, error) {
	var p plan
	if notice.toSupplier != "" {
		staff, err := d.directory.SupplierStaff(ctx, ref.SupplierID)
		if err != nil {
			return plan{}, err
		}
		p.deliveries = append(p.deliveries, complaintDelivery(staff, enums.NotificationTypeComplaintUpdate, notice.toSupplier, ref))
	}
	if notice.toManagers != "" {
		managers, err := d.directory.Managers(ctx, ref.SupplierID)
		if err != nil {
			return plan{}, err
		}
		p.deliveries = append(p.deliveries, complaintDelivery(managers, enums.NotificationTypeEscalation, notice.toManagers, ref))
	}
	if notice.toConsumer != "" {
		kind := enums.NotificationTypeComplaintUpdate
		if notice.toManagers != "" {
			kind = enums.NotificationTypeEscalation
		}
		users, err := d.directory.ConsumerUsers(ctx, ref.ConsumerID)
		if err != nil {
			return plan{}, err
		}
		p.deliveries = append(p.deliveries, complaintDelivery(users, kind, notice.toConsumer, ref))
	}
	p.note = &systemNote{
		orderID:     ref.OrderID,
		consumerID:  ref.ConsumerID,
		supplierID:  ref.SupplierID,
		text:        notice.note,
		severity:    notice.severity,
		openSession: notice.byConsumer,
	}
	return p, nil
}

func complaintDelivery(recipients []uuid.UUID, kind enums.NotificationType, message string, ref eventbus.ComplaintRef) delivery {
	return delivery{
		recipients: recipients,
		kind:       kind,
		message:    message,
		entityType: enums.EntityComplaint,
		entityID:   ref.ComplaintID,
	}
}

// messagePlan notifies the side of the conversation that did not send. A
// consumer's message goes to the assigned rep, or all supplier staff when the
// session is still unassigned.
func (d *Dispatcher) messagePlan(ctx context.Context, payload eventbus.MessageSent) (plan, error) {
	var (
		recipients []uuid.UUID
		err        error
	)
	switch {
	case payload.SenderRole.Kind() == enums.AccountKindConsumer && payload.SalesRepID != nil:
		recipients = []uuid.UUID{*payload.SalesRepID}
	case payload.SenderRole.Kind() == enums.AccountKindConsumer:
		recipients, err = d.directory.SupplierStaff(ctx, payload.SupplierID)
	default:
		recipients, err = d.directory.ConsumerUsers(ctx, payload.ConsumerID)
	}
	if err != nil {
		return plan{}, err
	}

	filtered := recipients[:0:0]
	for _, id := range recipients {
		if id != payload.SenderID {
			filtered = append(filtered, id)
		}
	}

	message := "New message: " + payload.Preview
	if payload.Preview == "" && payload.HasAttachment {
		message = "New message with an attachment."
	}
	return plan{deliveries: []delivery{{
		recipients: filtered,
		kind:       enums.NotificationTypeChatMessage,
		message:    message,
		entityType: enums.EntityChatSession,
		entityID:   payload.SessionID,
	}}}, nil
}

func statusSeverity(status enums.OrderStatus) enums.MessageSeverity {
	switch status {
	case enums.OrderStatusCompleted:
		return enums.SeveritySuccess
	case enums.OrderStatusRejected:
		return enums.SeverityError
	default:
		return enums.SeverityInfo
	}
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func unexpectedPayload(event eventbus.Event) error {
	return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
}
