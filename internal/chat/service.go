package chat

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/tradelink-backend/pkg/auth"
	"github.com/angelmondragon/tradelink-backend/pkg/db"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/angelmondragon/tradelink-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	uniqueOrderConstraint = "uq_chat_sessions_order_id"
	maxTextLength         = 4000
	previewLength         = 80
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// ConsumerChatOps is the consumer side of the directory. Only consumers start
// order sessions.
type ConsumerChatOps interface {
	OpenForOrder(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*models.ChatSession, error)
	Send(ctx context.Context, caller auth.Caller, input SendInput) (*models.ChatMessage, error)
	Messages(ctx context.Context, caller auth.Caller, sessionID uuid.UUID, params pagination.Params) (*MessagePage, error)
	ListSessions(ctx context.Context, caller auth.Caller, params pagination.Params) (*SessionPage, error)
}

// SupplierChatOps is the supplier side of the directory.
type SupplierChatOps interface {
	FindForOrder(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*Lookup, error)
	Send(ctx context.Context, caller auth.Caller, input SendInput) (*models.ChatMessage, error)
	Messages(ctx context.Context, caller auth.Caller, sessionID uuid.UUID, params pagination.Params) (*MessagePage, error)
	ListSessions(ctx context.Context, caller auth.Caller, params pagination.Params) (*SessionPage, error)
}

// SendInput is a user message. At least one of Text and AttachmentURL is set.
type SendInput struct {
	SessionID     uuid.UUID
	Text          *string
	AttachmentURL *string
}

// SystemMessageInput is a dispatcher-authored message bound to an order.
type SystemMessageInput struct {
	OrderID    uuid.UUID
	ConsumerID uuid.UUID
	SupplierID uuid.UUID
	EventID    uuid.UUID
	Text       string
	Severity   enums.MessageSeverity
	// OpenSession lets a consumer-initiated event start the session when the
	// order has none. Without it the message is dropped instead.
	OpenSession bool
}

// Lookup is the supplier's view of an order session that may not exist yet.
type Lookup struct {
	Started bool
	Session *models.ChatSession
}

type MessagePage struct {
	Items  []models.ChatMessage
	Cursor string
}

type SessionPage struct {
	Items  []models.ChatSession
	Cursor string
}

// Service is the Chat Session Directory.
type Service struct {
	repo    Repository
	tx      txRunner
	emitter eventbus.Emitter
	orders  orderReader
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(repo Repository, tx txRunner, emitter eventbus.Emitter, orders orderReader, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "chat repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event emitter required")
	}
	if orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order reader required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{
		repo:    repo,
		tx:      tx,
		emitter: emitter,
		orders:  orders,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) Consumer() ConsumerChatOps {
	return consumerOps{s}
}

func (s *Service) Supplier() SupplierChatOps {
	return supplierOps{s}
}

type consumerOps struct {
	s *Service
}

type supplierOps struct {
	s *Service
}

// OpenForOrder returns the order's session, creating it on first use. Safe to
// call concurrently; the order_id unique index settles races.
func (c consumerOps) OpenForOrder(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*models.ChatSession, error) {
	s := c.s
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ConsumerID != caller.AccountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.provision(ctx, order.ID, order.ConsumerID, order.SupplierID, caller.Actor())
}

func (c consumerOps) Send(ctx context.Context, caller auth.Caller, input SendInput) (*models.ChatMessage, error) {
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	return c.s.send(ctx, caller, input, func(session *models.ChatSession) bool { return session.ConsumerID == caller.AccountID })
}

func (c consumerOps) Messages(ctx context.Context, caller auth.Caller, sessionID uuid.UUID, params pagination.Params) (*MessagePage, error) {
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	return c.s.messages(ctx, sessionID, params, func(session *models.ChatSession) bool { return session.ConsumerID == caller.AccountID })
}

func (c consumerOps) ListSessions(ctx context.Context, caller auth.Caller, params pagination.Params) (*SessionPage, error) {
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	accountID := caller.AccountID
	return c.s.listSessions(ctx, sessionListParams{ConsumerID: &accountID}, params)
}

// FindForOrder looks up the session a consumer started. Absence is reported
// as Started=false, not as an error.
func (sp supplierOps) FindForOrder(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*Lookup, error) {
	s := sp.s
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SupplierID != caller.AccountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	session, err := s.repo.FindSessionByOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Lookup{Started: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chat session")
	}
	return &Lookup{Started: true, Session: session}, nil
}

func (sp supplierOps) Send(ctx context.Context, caller auth.Caller, input SendInput) (*models.ChatMessage, error) {
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	return sp.s.send(ctx, caller, input, func(session *models.ChatSession) bool { return session.SupplierID == caller.AccountID })
}

func (sp supplierOps) Messages(ctx context.Context, caller auth.Caller, sessionID uuid.UUID, params pagination.Params) (*MessagePage, error) {
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	return sp.s.messages(ctx, sessionID, params, func(session *models.ChatSession) bool { return session.SupplierID == caller.AccountID })
}

func (sp supplierOps) ListSessions(ctx context.Context, caller auth.Caller, params pagination.Params) (*SessionPage, error) {
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	accountID := caller.AccountID
	return sp.s.listSessions(ctx, sessionListParams{SupplierID: &accountID}, params)
}

// AppendSystemMessage posts a dispatcher message on the order's session. When
// the order has no session it is started only if input.OpenSession is set;
// otherwise nothing is written. Repeats for the same event are no-ops; the bool
// reports whether a row was written.
func (s *Service) AppendSystemMessage(ctx context.Context, input SystemMessageInput) (*models.ChatMessage, bool, error) {
	if input.OrderID == uuid.Nil || input.EventID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "order id and event id required")
	}
	if !input.Severity.IsValid() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "invalid severity")
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "system message text required")
	}

	var session *models.ChatSession
	var err error
	if input.OpenSession {
		session, err = s.provision(ctx, input.OrderID, input.ConsumerID, input.SupplierID, nil)
	} else {
		session, err = s.repo.FindSessionByOrder(ctx, input.OrderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		if err != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chat session")
		}
	}
	if err != nil {
		return nil, false, err
	}
	return s.appendTo(ctx, session, input.EventID, text, input.Severity)
}

func (s *Service) appendTo(ctx context.Context, session *models.ChatSession, eventID uuid.UUID, text string, severity enums.MessageSeverity) (*models.ChatMessage, bool, error) {
	message := &models.ChatMessage{
		ID:        uuid.New(),
		SessionID: session.ID,
		Text:      &text,
		Severity:  &severity,
		EventID:   &eventID,
		CreatedAt: s.now(),
	}
	var inserted bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.CreateSystemMessage(ctx, message)
		if err != nil {
			return err
		}
		inserted = ok
		if !ok {
			return nil
		}
		return repo.TouchSession(ctx, session.ID, message.CreatedAt)
	})
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append system message")
	}
	return message, inserted, nil
}

// provision finds or creates the session bound to orderID.
func (s *Service) provision(ctx context.Context, orderID, consumerID, supplierID uuid.UUID, actor *eventbus.Actor) (*models.ChatSession, error) {
	existing, err := s.repo.FindSessionByOrder(ctx, orderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chat session")
	}
	if consumerID == uuid.Nil || supplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consumer and supplier ids required")
	}

	now := s.now()
	id := orderID
	session := &models.ChatSession{
		ID:         uuid.New(),
		ConsumerID: consumerID,
		SupplierID: supplierID,
		OrderID:    &id,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateSession(ctx, session); err != nil {
			return err
		}
		event := eventbus.NewEvent(eventbus.ChatSessionStarted{
			SessionID:  session.ID,
			ConsumerID: session.ConsumerID,
			SupplierID: session.SupplierID,
			OrderID:    session.OrderID,
		}, actor)
		if err := s.emitter.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit chat session started")
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, uniqueOrderConstraint) {
			if existing, findErr := s.repo.FindSessionByOrder(ctx, orderID); findErr == nil {
				return existing, nil
			}
		}
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create chat session")
		}
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"session_id": session.ID.String(),
		"order_id":   orderID.String(),
	})
	s.logg.Info(ctx, "chat session started")
	return session, nil
}

func (s *Service) send(ctx context.Context, caller auth.Caller, input SendInput, participant func(*models.ChatSession) bool) (*models.ChatMessage, error) {
	text := trimOptional(input.Text)
	attachment := trimOptional(input.AttachmentURL)
	if text == nil && attachment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message text or attachment required")
	}
	if text != nil && utf8.RuneCountInString(*text) > maxTextLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message text is too long")
	}
	if attachment != nil && !validAttachmentURL(*attachment) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attachment must be an absolute http(s) url")
	}

	session, err := s.loadSession(ctx, input.SessionID, participant)
	if err != nil {
		return nil, err
	}

	sender := caller.UserID
	message := &models.ChatMessage{
		ID:            uuid.New(),
		SessionID:     session.ID,
		SenderID:      &sender,
		Text:          text,
		AttachmentURL: attachment,
		CreatedAt:     s.now(),
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateMessage(ctx, message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create chat message")
		}
		if err := repo.TouchSession(ctx, session.ID, message.CreatedAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch chat session")
		}
		event := eventbus.NewEvent(eventbus.MessageSent{
			MessageID:     message.ID,
			SessionID:     session.ID,
			SenderID:      sender,
			SenderRole:    caller.Role,
			ConsumerID:    session.ConsumerID,
			SupplierID:    session.SupplierID,
			SalesRepID:    session.SalesRepID,
			OrderID:       session.OrderID,
			Preview:       preview(text),
			HasAttachment: attachment != nil,
		}, caller.Actor())
		if err := s.emitter.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit message sent")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"session_id": session.ID.String(),
		"message_id": message.ID.String(),
	})
	s.logg.Info(ctx, "chat message sent")
	return message, nil
}

func (s *Service) messages(ctx context.Context, sessionID uuid.UUID, params pagination.Params, participant func(*models.ChatSession) bool) (*MessagePage, error) {
	session, err := s.loadSession(ctx, sessionID, participant)
	if err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListMessages(ctx, session.ID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list chat messages")
	}
	return &MessagePage{Items: rows, Cursor: pagination.NextCursor(next)}, nil
}

func (s *Service) listSessions(ctx context.Context, query sessionListParams, params pagination.Params) (*SessionPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Limit = params.Limit
	query.Cursor = cursor
	rows, next, err := s.repo.ListSessions(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list chat sessions")
	}
	return &SessionPage{Items: rows, Cursor: pagination.NextCursor(next)}, nil
}

func (s *Service) loadSession(ctx context.Context, sessionID uuid.UUID, participant func(*models.ChatSession) bool) (*models.ChatSession, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	session, err := s.repo.FindSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "chat session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chat session")
	}
	if !participant(session) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "chat session not found")
	}
	return session, nil
}

func (s *Service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func validAttachmentURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "https" || parsed.Scheme == "http") && parsed.Host != ""
}

func preview(text *string) string {
	if text == nil {
		return ""
	}
	if utf8.RuneCountInString(*text) <= previewLength {
		return *text
	}
	runes := []rune(*text)
	return string(runes[:previewLength]) + "…"
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
