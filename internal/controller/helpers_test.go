package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/cassiomorais/storesync/internal/domain/errors"
	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON_SetsContentType(t *testing.T) {
	w := httptest.NewRecorder()

	writeJSON(w, http.StatusAccepted, EnqueueResponse{ID: "op-1", Kind: "restock", Pending: 2})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"op-1","kind":"restock","pending":2}`, w.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", domainErrors.NewValidationError("kind", "required validation failed"), http.StatusBadRequest, "validation_error"},
		{"unknown operation", domainErrors.ErrUnknownOperation, http.StatusBadRequest, "unknown_operation"},
		{"invalid payload", domainErrors.ErrInvalidPayload, http.StatusBadRequest, "invalid_payload"},
		{"store not ready", domainErrors.ErrStoreNotReady, http.StatusServiceUnavailable, "store_not_ready"},
		{"persist failed", fmt.Errorf("%w: disk full", domainErrors.ErrPersistFailed), http.StatusServiceUnavailable, "persist_failed"},
		{"queue owned", domainErrors.ErrQueueOwned, http.StatusConflict, "queue_owned"},
		{"lease lost", domainErrors.ErrLeaseLost, http.StatusServiceUnavailable, "lease_lost"},
		{"unauthorized", domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{
			"wrapped sentinel",
			domainErrors.NewDomainError("unknown_operation", "unsupported operation kind x", domainErrors.ErrUnknownOperation),
			http.StatusBadRequest,
			"unknown_operation",
		},
		{"bare domain error", domainErrors.NewDomainError("custom_error", "custom", nil), http.StatusUnprocessableEntity, "custom_error"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()

	writeError(w, errors.New("dial tcp 10.0.0.4:5432: connection refused"))

	assert.NotContains(t, w.Body.String(), "10.0.0.4")
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"valid enqueue", `{"kind":"restock","payload":{"product_id":"p-1","quantity":2}}`, ""},
		{"malformed json", `{"kind":`, "body"},
		{"empty body", ``, "body"},
		{"missing kind", `{"payload":{}}`, "Kind"},
		{"missing payload", `{"kind":"restock"}`, "Payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", strings.NewReader(tt.body))

			var dst EnqueueRequest
			err := decodeAndValidate(req, &dst)

			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "restock", dst.Kind)
				return
			}
			var ve *domainErrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestDecodeAndValidate_ConnectivityRequiresExplicitFlag(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/connectivity", strings.NewReader(`{"online":false}`))

	var dst ConnectivityRequest
	require.NoError(t, decodeAndValidate(req, &dst))
	require.NotNil(t, dst.Online)
	assert.False(t, *dst.Online)
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name     string
		req      EnqueueRequest
		wantKind operation.Kind
		wantErr  error
	}{
		{
			name:     "restock",
			req:      EnqueueRequest{Kind: "restock", Payload: json.RawMessage(`{"product_id":"p-1","quantity":4}`)},
			wantKind: operation.KindRestock,
		},
		{
			name:     "partial update",
			req:      EnqueueRequest{Kind: "update_product", Payload: json.RawMessage(`{"product_id":"p-1","price_ngn":2500}`)},
			wantKind: operation.KindUpdateProduct,
		},
		{
			name:     "order",
			req:      EnqueueRequest{Kind: "create_order", Payload: json.RawMessage(`{"user_id":"+2348000000000","items":[{"product_id":"p-1","quantity":1}]}`)},
			wantKind: operation.KindCreateOrder,
		},
		{
			name:    "unknown kind",
			req:     EnqueueRequest{Kind: "delete_product", Payload: json.RawMessage(`{}`)},
			wantErr: domainErrors.ErrUnknownOperation,
		},
		{
			name:    "wrong field type",
			req:     EnqueueRequest{Kind: "restock", Payload: json.RawMessage(`{"product_id":"p-1","quantity":"lots"}`)},
			wantErr: domainErrors.ErrInvalidPayload,
		},
		{
			name:    "zero quantity",
			req:     EnqueueRequest{Kind: "restock", Payload: json.RawMessage(`{"product_id":"p-1","quantity":0}`)},
			wantErr: domainErrors.ErrValidationFailed,
		},
		{
			name:    "order without items",
			req:     EnqueueRequest{Kind: "create_order", Payload: json.RawMessage(`{"user_id":"+234","items":[]}`)},
			wantErr: domainErrors.ErrValidationFailed,
		},
		{
			name:    "expense without category",
			req:     EnqueueRequest{Kind: "log_expense", Payload: json.RawMessage(`{"amount":5000,"description":"fuel"}`)},
			wantErr: domainErrors.ErrValidationFailed,
		},
		{
			name:    "negative expense",
			req:     EnqueueRequest{Kind: "log_expense", Payload: json.RawMessage(`{"amount":-5,"description":"fuel"}`)},
			wantErr: domainErrors.ErrValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := decodePayload(tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, payload.Kind())
		})
	}
}
