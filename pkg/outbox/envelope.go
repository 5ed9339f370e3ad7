package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
)

// EnvelopeVersion is written on every new row. Readers accept it and older versions.
const EnvelopeVersion = 1

// PayloadEnvelope is stored in outbox_events.payload_json and sent unchanged as the
// Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *eventbus.Actor `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// EncodeEnvelope wraps event's payload for storage.
func EncodeEnvelope(event eventbus.Event) ([]byte, error) {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	return json.Marshal(PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    event.ID.String(),
		OccurredAt: event.OccurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	})
}

// DecodeEnvelope parses raw and checks the fields every reader relies on.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, uuid.UUID, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, uuid.Nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version > EnvelopeVersion {
		return env, uuid.Nil, fmt.Errorf("envelope version %d is newer than %d", env.Version, EnvelopeVersion)
	}
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return env, uuid.Nil, fmt.Errorf("invalid event id %q: %w", env.EventID, err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, uuid.Nil, fmt.Errorf("envelope %s has no data", id)
	}
	return env, id, nil
}
