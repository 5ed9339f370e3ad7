package eventbus

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

const pendingEventsKey = "eventbus:pending"

// Emitter is how state-owning components announce changes. It is called inside
// the component's write transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event Event) error
}

// TxRunner matches the transaction helper every service depends on.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InlineEmitter hands events straight to an in-process publisher. Handler
// failures are logged by the bus and never fail the originating write.
//
// Events emitted on a transaction opened through Transactional are held until
// that transaction commits and dropped if it rolls back.
type InlineEmitter struct {
	bus Publisher
}

func NewInlineEmitter(bus Publisher) *InlineEmitter {
	return &InlineEmitter{bus: bus}
}

func (e *InlineEmitter) Emit(ctx context.Context, tx *gorm.DB, event Event) error {
	if e == nil || e.bus == nil {
		return nil
	}
	if tx != nil {
		if v, ok := tx.Get(pendingEventsKey); ok {
			if pending, ok := v.(*pendingEvents); ok {
				pending.add(event)
				return nil
			}
		}
	}
	_ = e.bus.Publish(ctx, event)
	return nil
}

// Transactional wraps runner so events emitted inside a transaction are
// published after commit.
func (e *InlineEmitter) Transactional(runner TxRunner) TxRunner {
	return &afterCommitRunner{runner: runner, emitter: e}
}

type afterCommitRunner struct {
	runner  TxRunner
	emitter *InlineEmitter
}

func (r *afterCommitRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	pending := &pendingEvents{}
	err := r.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if tx != nil {
			tx = tx.Set(pendingEventsKey, pending)
		}
		return fn(tx)
	})
	if err != nil {
		return err
	}
	if events := pending.drain(); len(events) > 0 && r.emitter.bus != nil {
		_ = r.emitter.bus.Publish(ctx, events...)
	}
	return nil
}

type pendingEvents struct {
	mu     sync.Mutex
	events []Event
}

func (p *pendingEvents) add(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *pendingEvents) drain() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}
