package controller

import (
	"encoding/json"
	"time"

	"github.com/cassiomorais/storesync/internal/domain/operation"
	infraRedis "github.com/cassiomorais/storesync/internal/infrastructure/redis"
)

// --- Request DTOs ---

// EnqueueRequest carries one remote mutation to be queued. Payload is
// decoded against Kind before validation.
type EnqueueRequest struct {
	Kind    string          `json:"kind" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// ConnectivityRequest forwards the host's network signal.
type ConnectivityRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// --- Response DTOs ---

type EnqueueResponse struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Pending int    `json:"pending"`
}

// OperationResponse represents a queued operation in API responses.
type OperationResponse struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Payload    any       `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
}

type QueueResponse struct {
	Operations []OperationResponse `json:"operations"`
	Pending    int                 `json:"pending"`
	Processing bool                `json:"processing"`
}

type CountResponse struct {
	Pending int `json:"pending"`
}

type SyncResponse struct {
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Pending   int  `json:"pending"`
	Online    bool `json:"online"`
}

type ConnectivityResponse struct {
	Online bool   `json:"online"`
	Mode   string `json:"mode"`
}

type DeadLetterResponse struct {
	StreamID    string    `json:"stream_id"`
	OperationID string    `json:"operation_id"`
	Kind        string    `json:"kind"`
	RetryCount  int       `json:"retry_count"`
	Reason      string    `json:"reason"`
	DroppedAt   time.Time `json:"dropped_at"`
}

type DeadLettersResponse struct {
	DeadLetters []DeadLetterResponse `json:"dead_letters"`
	Total       int64                `json:"total"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func toOperationResponse(op operation.Operation) OperationResponse {
	var payload any = op.Payload
	if u, ok := op.Payload.(operation.Unknown); ok {
		payload = u.Raw
	}
	return OperationResponse{
		ID:         op.ID.String(),
		Kind:       string(op.Kind),
		Payload:    payload,
		EnqueuedAt: op.EnqueuedAt,
		RetryCount: op.RetryCount,
	}
}

func toDeadLetterResponse(dl infraRedis.DeadLetter) DeadLetterResponse {
	resp := DeadLetterResponse{
		StreamID:   dl.StreamID,
		Kind:       string(dl.Kind),
		RetryCount: dl.RetryCount,
		Reason:     dl.Reason,
		DroppedAt:  dl.DroppedAt,
	}
	if dl.Operation != nil {
		resp.OperationID = dl.Operation.ID.String()
	}
	return resp
}
