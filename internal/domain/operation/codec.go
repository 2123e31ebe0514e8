package operation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// record is the persisted layout of one queued operation.
type record struct {
	ID         uuid.UUID       `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	RetryCount int             `json:"retryCount"`
}

func (o Operation) MarshalJSON() ([]byte, error) {
	if o.Payload == nil {
		return nil, fmt.Errorf("operation %s has no payload", o.ID)
	}
	payload, err := encodePayload(o.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", o.Kind, err)
	}
	return json.Marshal(record{
		ID:         o.ID,
		Kind:       o.Kind,
		Payload:    payload,
		EnqueuedAt: o.EnqueuedAt,
		RetryCount: o.RetryCount,
	})
}

// UnmarshalJSON never fails on a bad payload: records whose kind is unknown or
// whose payload does not match the kind are kept as Unknown so replay can
// account for them through the normal retry path.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	payload, err := DecodePayload(rec.Kind, rec.Payload)
	if err != nil {
		payload = Unknown{RawKind: rec.Kind, Raw: rec.Payload}
	}
	*o = Operation{
		ID:         rec.ID,
		Kind:       rec.Kind,
		Payload:    payload,
		EnqueuedAt: rec.EnqueuedAt,
		RetryCount: rec.RetryCount,
	}
	return nil
}

// EncodeQueue serialises the queue as a JSON array, oldest first.
func EncodeQueue(ops []*Operation) ([]byte, error) {
	if ops == nil {
		ops = []*Operation{}
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("encode queue: %w", err)
	}
	return data, nil
}

// DecodeQueue parses a persisted queue. Empty input is an empty queue.
func DecodeQueue(data []byte) ([]*Operation, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var ops []*Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	out := ops[:0]
	for _, op := range ops {
		if op != nil {
			out = append(out, op)
		}
	}
	return out, nil
}
