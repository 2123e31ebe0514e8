package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/storesync/internal/domain/errors"
	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/cassiomorais/storesync/internal/infrastructure/observability"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
	breakerName    = "commerce-backend"
)

// Client is the HTTP implementation of Backend. Every call is bounded by a
// timeout and guarded by a circuit breaker.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[struct{}]
	metrics *observability.Metrics

	breakerThreshold uint32
	breakerTimeout   time.Duration
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithCircuitBreaker trips after threshold consecutive failures and stays
// open for openFor before letting a probe request through.
func WithCircuitBreaker(threshold int, openFor time.Duration) ClientOption {
	return func(c *Client) {
		if threshold > 0 {
			c.breakerThreshold = uint32(threshold)
		}
		if openFor > 0 {
			c.breakerTimeout = openFor
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		timeout:          DefaultTimeout,
		breakerThreshold: 5,
		breakerTimeout:   30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	threshold := c.breakerThreshold
	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A rejected request proves the backend is up.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return !se.ServerSide()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if c.metrics != nil {
				c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

func (c *Client) CreateProduct(ctx context.Context, p operation.CreateProduct) error {
	return c.do(ctx, operation.KindCreateProduct, http.MethodPost, "/products", p)
}

type updateProductBody struct {
	Name        *string   `json:"name,omitempty"`
	PriceNGN    *float64  `json:"price_ngn,omitempty"`
	StockLevel  *int      `json:"stock_level,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	VoiceTags   *[]string `json:"voice_tags,omitempty"`
}

func (c *Client) UpdateProduct(ctx context.Context, p operation.UpdateProduct) error {
	body := updateProductBody{
		Name:        p.Name,
		PriceNGN:    p.PriceNGN,
		StockLevel:  p.StockLevel,
		Description: p.Description,
		Category:    p.Category,
		VoiceTags:   p.VoiceTags,
	}
	return c.do(ctx, operation.KindUpdateProduct, http.MethodPut, "/products/"+url.PathEscape(p.ProductID), body)
}

func (c *Client) Restock(ctx context.Context, p operation.Restock) error {
	body := map[string]int{"quantity": p.Quantity}
	return c.do(ctx, operation.KindRestock, http.MethodPost, "/products/"+url.PathEscape(p.ProductID)+"/restock", body)
}

func (c *Client) CreateOrder(ctx context.Context, p operation.CreateOrder) error {
	return c.do(ctx, operation.KindCreateOrder, http.MethodPost, "/orders", p)
}

func (c *Client) LogExpense(ctx context.Context, p operation.LogExpense) error {
	if p.ExpenseType == "" {
		p.ExpenseType = operation.ExpenseTypeBusiness
	}
	return c.do(ctx, operation.KindLogExpense, http.MethodPost, "/expenses/log", p)
}

func (c *Client) do(ctx context.Context, kind operation.Kind, method, path string, body any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.send(ctx, method, path, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %w: %w", domainErrors.ErrBackendUnavailable, domainErrors.ErrCircuitOpen, err)
	}

	if c.metrics != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		c.metrics.BackendCallDuration.WithLabelValues(string(kind), result).Observe(time.Since(start).Seconds())
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if key, ok := idempotencyKeyFrom(ctx); ok {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s after %s", domainErrors.ErrBackendTimeout, method, path, c.timeout)
		}
		return fmt.Errorf("%w: %s %s: %v", domainErrors.ErrBackendUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method: method,
		Path:   path,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(msg)),
	}
}
