package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
)

func TestEncodeEnvelopeIsDecodable(t *testing.T) {
	event := eventbus.Event{
		ID:         uuid.New(),
		Type:       enums.EventOrderCreated,
		OccurredAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.FixedZone("EST", -5*3600)),
		Payload:    eventbus.OrderCreated{OrderID: uuid.New(), TotalCents: 1250, ItemCount: 2},
	}
	raw, err := EncodeEnvelope(event)
	require.NoError(t, err)

	env, id, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, event.ID, id)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.JSONEq(t, `{"orderId":"`+event.Payload.(eventbus.OrderCreated).OrderID.String()+`","consumerId":"00000000-0000-0000-0000-000000000000","supplierId":"00000000-0000-0000-0000-000000000000","totalCents":1250,"itemCount":2}`, string(env.Data))
}

func TestDecodeEnvelopeRejects(t *testing.T) {
	id := uuid.NewString()
	cases := map[string]string{
		"not json":       `{`,
		"future version": `{"version":2,"eventId":"` + id + `","data":{}}`,
		"bad event id":   `{"version":1,"eventId":"nope","data":{}}`,
		"null data":      `{"version":1,"eventId":"` + id + `","data":null}`,
		"missing data":   `{"version":1,"eventId":"` + id + `"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeEnvelope(json.RawMessage(raw))
			assert.Error(t, err)
		})
	}
}
