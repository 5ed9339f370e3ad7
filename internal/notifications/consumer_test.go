package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/config"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/angelmondragon/tradelink-backend/pkg/outbox"
	"github.com/angelmondragon/tradelink-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tradelink-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.keys[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = value.(string)
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "tl:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type recordingBus struct {
	events []eventbus.Event
	err    error
}

func (b *recordingBus) Publish(_ context.Context, events ...eventbus.Event) error {
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, events...)
	return nil
}

func newTestConsumer(t *testing.T, bus *recordingBus) *Consumer {
	t.Helper()
	reg, err := registry.NewEventRegistry(config.PubSubConfig{DomainTopic: "domain-topic"})
	require.NoError(t, err)
	manager, err := idempotency.NewManager(&memoryStore{keys: map[string]string{}}, time.Hour)
	require.NoError(t, err)
	return &Consumer{
		resolver:    reg,
		bus:         bus,
		idempotency: manager,
		logg:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
}

func relayedMessage(t *testing.T, event eventbus.Event) ([]byte, map[string]string) {
	t.Helper()
	data, err := json.Marshal(event.Payload)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    event.ID.String(),
		OccurredAt: event.OccurredAt,
		Data:       data,
	})
	require.NoError(t, err)
	return body, map[string]string{
		registry.AttrEventID:       event.ID.String(),
		registry.AttrEventType:     string(event.Type),
		registry.AttrAggregateType: string(event.AggregateType),
		registry.AttrAggregateID:   event.AggregateID.String(),
	}
}

func TestConsumerRelaysDecodedEventOnce(t *testing.T) {
	bus := &recordingBus{}
	consumer := newTestConsumer(t, bus)
	event := eventbus.NewEvent(eventbus.OrderCreated{OrderID: uuid.New(), ConsumerID: uuid.New(), SupplierID: uuid.New(), TotalCents: 2500, ItemCount: 2}, nil)
	data, attrs := relayedMessage(t, event)

	first := consumer.process(context.Background(), "m-1", data, attrs)
	assert.True(t, first.ack)
	second := consumer.process(context.Background(), "m-2", data, attrs)
	assert.True(t, second.ack)

	require.Len(t, bus.events, 1)
	assert.Equal(t, event.ID, bus.events[0].ID)
	assert.Equal(t, enums.EventOrderCreated, bus.events[0].Type)
	created, ok := eventbus.PayloadAs[eventbus.OrderCreated](bus.events[0])
	require.True(t, ok)
	assert.Equal(t, int64(2500), created.TotalCents)
}

func TestConsumerNacksAndRetriesWhenHandlersFail(t *testing.T) {
	bus := &recordingBus{err: errors.New("dispatcher failed")}
	consumer := newTestConsumer(t, bus)
	event := eventbus.NewEvent(eventbus.LinkRequested{RequestID: uuid.New(), ConsumerID: uuid.New(), SupplierID: uuid.New()}, nil)
	data, attrs := relayedMessage(t, event)

	result := consumer.process(context.Background(), "m-1", data, attrs)
	assert.True(t, result.nack)

	bus.err = nil
	result = consumer.process(context.Background(), "m-1", data, attrs)
	assert.True(t, result.ack)
	assert.Len(t, bus.events, 1)
}

func TestConsumerAcksUndecodableMessages(t *testing.T) {
	bus := &recordingBus{}
	consumer := newTestConsumer(t, bus)

	result := consumer.process(context.Background(), "m-1", []byte("{}"), map[string]string{
		registry.AttrEventType: "not_an_event",
	})
	assert.True(t, result.ack)
	assert.Empty(t, bus.events)
}
