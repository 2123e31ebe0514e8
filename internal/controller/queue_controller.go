package controller

import (
	"context"
	"net/http"

	"github.com/cassiomorais/storesync/internal/application/offlinequeue"
	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/google/uuid"
)

// Queue is the subset of the offline queue exposed over HTTP.
type Queue interface {
	Enqueue(ctx context.Context, payload operation.Payload) uuid.UUID
	Snapshot() []operation.Operation
	PendingCount() int
	Processing() bool
	Process(ctx context.Context) offlinequeue.Result
	Clear(ctx context.Context) error
}

// QueueController handles the offline queue endpoints.
type QueueController struct {
	queue  Queue
	online func() bool
}

func NewQueueController(queue Queue, online func() bool) *QueueController {
	return &QueueController{queue: queue, online: online}
}

// Enqueue handles POST /api/v1/operations
func (h *QueueController) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	payload, err := decodePayload(req)
	if err != nil {
		writeError(w, err)
		return
	}

	// Enqueue persists synchronously; a client disconnect must not abort the write.
	id := h.queue.Enqueue(context.WithoutCancel(r.Context()), payload)

	writeJSON(w, http.StatusAccepted, EnqueueResponse{
		ID:      id.String(),
		Kind:    string(payload.Kind()),
		Pending: h.queue.PendingCount(),
	})
}

// List handles GET /api/v1/operations
func (h *QueueController) List(w http.ResponseWriter, r *http.Request) {
	ops := h.queue.Snapshot()
	items := make([]OperationResponse, 0, len(ops))
	for _, op := range ops {
		items = append(items, toOperationResponse(op))
	}

	writeJSON(w, http.StatusOK, QueueResponse{
		Operations: items,
		Pending:    len(items),
		Processing: h.queue.Processing(),
	})
}

// Count handles GET /api/v1/operations/count
func (h *QueueController) Count(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CountResponse{Pending: h.queue.PendingCount()})
}

// Clear handles DELETE /api/v1/operations
func (h *QueueController) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Clear(context.WithoutCancel(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sync handles POST /api/v1/sync. It runs one replay pass to completion and
// reports {0,0} when offline or when another pass is already running.
func (h *QueueController) Sync(w http.ResponseWriter, r *http.Request) {
	res := h.queue.Process(context.WithoutCancel(r.Context()))

	writeJSON(w, http.StatusOK, SyncResponse{
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Pending:   h.queue.PendingCount(),
		Online:    h.online(),
	})
}
