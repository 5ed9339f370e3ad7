package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
)

// Handler reacts to events delivered by the bus.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher is the producer-side view of the bus.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

type dispatchObserver interface {
	ObserveDispatch(eventType, handler string, took time.Duration, err error)
}

type subscription struct {
	name    string
	handler Handler
}

// Bus is a synchronous in-process publish/subscribe channel. It owns no domain state.
type Bus struct {
	mu       sync.RWMutex
	byType   map[enums.OutboxEventType][]subscription
	wildcard []subscription
	logg     *logger.Logger
	metrics  dispatchObserver
}

// Option customizes a Bus.
type Option func(*Bus)

// WithMetrics records dispatch outcomes on m.
func WithMetrics(m dispatchObserver) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

func New(logg *logger.Logger, opts ...Option) *Bus {
	b := &Bus{
		byType: make(map[enums.OutboxEventType][]subscription),
		logg:   logg,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler under name for the given types; no types means every event.
func (b *Bus) Subscribe(name string, handler Handler, types ...enums.OutboxEventType) {
	if handler == nil {
		return
	}
	sub := subscription{name: name, handler: handler}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		b.wildcard = append(b.wildcard, sub)
		return
	}
	for _, t := range types {
		b.byType[t] = append(b.byType[t], sub)
	}
}

// Publish delivers every event to its handlers in subscription order. Every
// handler runs even when an earlier one fails; the failures are combined.
func (b *Bus) Publish(ctx context.Context, events ...Event) error {
	var errs error
	for _, event := range events {
		for _, sub := range b.handlersFor(event.Type) {
			if err := b.dispatch(ctx, sub, event); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", sub.name, err))
			}
		}
	}
	return errs
}

func (b *Bus) handlersFor(eventType enums.OutboxEventType) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]subscription, 0, len(b.byType[eventType])+len(b.wildcard))
	subs = append(subs, b.byType[eventType]...)
	subs = append(subs, b.wildcard...)
	return subs
}

func (b *Bus) dispatch(ctx context.Context, sub subscription, event Event) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
		if b.metrics != nil {
			b.metrics.ObserveDispatch(string(event.Type), sub.name, time.Since(start), err)
		}
		if err != nil && b.logg != nil {
			logCtx := b.logg.WithEvent(ctx, string(event.Type), event.ID.String())
			logCtx = b.logg.WithField(logCtx, "handler", sub.name)
			b.logg.Error(logCtx, "event handler failed", err)
		}
	}()
	return sub.handler.Handle(ctx, event)
}
