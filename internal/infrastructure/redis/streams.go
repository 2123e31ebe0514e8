package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	domainErrors "github.com/cassiomorais/storesync/internal/domain/errors"
	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultDeadLetterStream = "storesync:dead_letters"
	deadLetterMaxLen        = 10000
)

// DeadLetter is an operation dropped after exhausting its retries.
type DeadLetter struct {
	StreamID   string               `json:"stream_id"`
	Operation  *operation.Operation `json:"operation"`
	Reason     string               `json:"reason"`
	DroppedAt  time.Time            `json:"dropped_at"`
	Kind       operation.Kind       `json:"kind"`
	RetryCount int                  `json:"retry_count"`
}

// DeadLetterStream appends dropped operations to a capped Redis stream so
// they can be inspected or replayed by hand.
type DeadLetterStream struct {
	client redis.Cmdable
	stream string
}

func NewDeadLetterStream(client redis.Cmdable, stream string) *DeadLetterStream {
	if stream == "" {
		stream = DefaultDeadLetterStream
	}
	return &DeadLetterStream{client: client, stream: stream}
}

func (d *DeadLetterStream) PublishDeadLetter(ctx context.Context, op operation.Operation, reason string) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("%w: marshal operation %s: %v", domainErrors.ErrDeadLetterFail, op.ID, err)
	}

	args := &redis.XAddArgs{
		Stream: d.stream,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		Values: map[string]any{
			"operation_id": op.ID.String(),
			"kind":         string(op.Kind),
			"retry_count":  op.RetryCount,
			"reason":       reason,
			"operation":    string(payload),
			"timestamp":    time.Now().Unix(),
		},
	}

	if err := d.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrDeadLetterFail, err)
	}
	return nil
}

// Recent returns up to count dead letters, newest first.
func (d *DeadLetterStream) Recent(ctx context.Context, count int64) ([]DeadLetter, error) {
	msgs, err := d.client.XRevRangeN(ctx, d.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}

	out := make([]DeadLetter, 0, len(msgs))
	for _, msg := range msgs {
		dl, err := parseDeadLetter(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, dl)
	}
	return out, nil
}

func (d *DeadLetterStream) Len(ctx context.Context) (int64, error) {
	return d.client.XLen(ctx, d.stream).Result()
}

func parseDeadLetter(msg redis.XMessage) (DeadLetter, error) {
	dl := DeadLetter{StreamID: msg.ID}

	dl.Reason, _ = msg.Values["reason"].(string)
	kind, _ := msg.Values["kind"].(string)
	dl.Kind = operation.Kind(kind)

	if raw, ok := msg.Values["retry_count"].(string); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return DeadLetter{}, fmt.Errorf("dead letter %s: bad retry_count %q", msg.ID, raw)
		}
		dl.RetryCount = n
	}
	if raw, ok := msg.Values["timestamp"].(string); ok {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return DeadLetter{}, fmt.Errorf("dead letter %s: bad timestamp %q", msg.ID, raw)
		}
		dl.DroppedAt = time.Unix(sec, 0).UTC()
	}
	if raw, ok := msg.Values["operation"].(string); ok && raw != "" {
		var op operation.Operation
		if err := json.Unmarshal([]byte(raw), &op); err != nil {
			return DeadLetter{}, fmt.Errorf("dead letter %s: %w", msg.ID, err)
		}
		dl.Operation = &op
	}
	return dl, nil
}
