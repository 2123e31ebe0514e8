package commerce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/storesync/internal/domain/errors"
	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var reqs []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}
		reqs = append(reqs, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   body,
		})
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"detail":"nope"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestClient_Routes(t *testing.T) {
	name := "Rice 50kg"
	tests := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name: "create product",
			call: func(c *Client) error {
				return c.CreateProduct(context.Background(), operation.CreateProduct{Name: "Garri", PriceNGN: 1500, StockLevel: 10})
			},
			wantMethod: http.MethodPost,
			wantPath:   "/products",
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "Garri", body["name"])
				assert.Equal(t, float64(1500), body["price_ngn"])
			},
		},
		{
			name: "update product omits id and unset fields",
			call: func(c *Client) error {
				return c.UpdateProduct(context.Background(), operation.UpdateProduct{ProductID: "p-1", Name: &name})
			},
			wantMethod: http.MethodPut,
			wantPath:   "/products/p-1",
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, map[string]any{"name": "Rice 50kg"}, body)
			},
		},
		{
			name: "restock",
			call: func(c *Client) error {
				return c.Restock(context.Background(), operation.Restock{ProductID: "p-2", Quantity: 4})
			},
			wantMethod: http.MethodPost,
			wantPath:   "/products/p-2/restock",
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, map[string]any{"quantity": float64(4)}, body)
			},
		},
		{
			name: "create order",
			call: func(c *Client) error {
				return c.CreateOrder(context.Background(), operation.CreateOrder{
					UserID: "+2348000000000",
					Items:  []operation.OrderItem{{ProductID: "p-1", Quantity: 2}},
				})
			},
			wantMethod: http.MethodPost,
			wantPath:   "/orders",
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "+2348000000000", body["user_id"])
				assert.Len(t, body["items"], 1)
			},
		},
		{
			name: "log expense defaults type",
			call: func(c *Client) error {
				return c.LogExpense(context.Background(), operation.LogExpense{Amount: 2500, Description: "diesel", Category: "transport"})
			},
			wantMethod: http.MethodPost,
			wantPath:   "/expenses/log",
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, operation.ExpenseTypeBusiness, body["expense_type"])
				assert.Equal(t, "diesel", body["description"])
				assert.Equal(t, "transport", body["category"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, reqs := newCaptureServer(t, http.StatusCreated)
			c := NewClient(srv.URL+"/", WithAPIKey("secret"))

			require.NoError(t, tt.call(c))
			require.Len(t, *reqs, 1)

			got := (*reqs)[0]
			assert.Equal(t, tt.wantMethod, got.Method)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
			assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
			tt.check(t, got.Body)
		})
	}
}

func TestClient_IdempotencyKeyHeader(t *testing.T) {
	srv, reqs := newCaptureServer(t, http.StatusOK)
	c := NewClient(srv.URL)

	ctx := WithIdempotencyKey(context.Background(), "op-123")
	require.NoError(t, c.Restock(ctx, operation.Restock{ProductID: "p", Quantity: 1}))

	require.Len(t, *reqs, 1)
	assert.Equal(t, "op-123", (*reqs)[0].Header.Get("Idempotency-Key"))
}

func TestClient_Non2xxIsRejected(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusUnprocessableEntity)
	c := NewClient(srv.URL)

	err := c.CreateProduct(context.Background(), operation.CreateProduct{Name: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrBackendRejected)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
	assert.Contains(t, se.Body, "nope")
	assert.False(t, se.ServerSide())
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTimeout(30*time.Millisecond))

	err := c.Restock(context.Background(), operation.Restock{ProductID: "p", Quantity: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrBackendTimeout)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url)
	err := c.Restock(context.Background(), operation.Restock{ProductID: "p", Quantity: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrBackendUnavailable)
	assert.NotErrorIs(t, err, domainErrors.ErrCircuitOpen, "a failed dial still reached for the backend")
}

func TestClient_CircuitBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithCircuitBreaker(2, time.Minute))
	p := operation.Restock{ProductID: "p", Quantity: 1}

	assert.ErrorIs(t, c.Restock(context.Background(), p), domainErrors.ErrBackendRejected)
	assert.ErrorIs(t, c.Restock(context.Background(), p), domainErrors.ErrBackendRejected)

	err := c.Restock(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrBackendUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, domainErrors.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithCircuitBreaker(2, time.Minute))
	p := operation.Restock{ProductID: "p", Quantity: 1}

	for range 4 {
		assert.ErrorIs(t, c.Restock(context.Background(), p), domainErrors.ErrBackendRejected)
	}
	assert.Equal(t, int32(4), hits.Load())
}
