package controller

import (
	"context"
	"net/http"
	"strconv"

	infraRedis "github.com/cassiomorais/storesync/internal/infrastructure/redis"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

// DeadLetterReader lists operations dropped after exhausting their retries.
type DeadLetterReader interface {
	Recent(ctx context.Context, count int64) ([]infraRedis.DeadLetter, error)
	Len(ctx context.Context) (int64, error)
}

type DeadLetterController struct {
	reader DeadLetterReader
}

func NewDeadLetterController(reader DeadLetterReader) *DeadLetterController {
	return &DeadLetterController{reader: reader}
}

// List handles GET /api/v1/dead-letters?limit=N
func (h *DeadLetterController) List(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultDeadLetterLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Code: "invalid_limit"})
			return
		}
		limit = min(n, maxDeadLetterLimit)
	}

	letters, err := h.reader.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := h.reader.Len(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]DeadLetterResponse, 0, len(letters))
	for _, dl := range letters {
		items = append(items, toDeadLetterResponse(dl))
	}
	writeJSON(w, http.StatusOK, DeadLettersResponse{DeadLetters: items, Total: total})
}
