package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/cassiomorais/storesync/internal/domain/idempotency"
	"github.com/rs/zerolog/log"
)

const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	IdempotencyReplayHeader = "X-Idempotency-Replayed"
	maxIdempotencyBodySize  = 1 << 20
	maxIdempotencyKeyLength = 255
)

// Idempotency replays the stored reply when a client retries a request with
// the same Idempotency-Key, so a retried enqueue does not queue the
// operation twice. Keys are scoped to the authenticated merchant and the
// route; reusing a key with a different body is rejected with 422.
func Idempotency(repo idempotency.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(IdempotencyKeyHeader)
			if clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxIdempotencyKeyLength {
				writeMiddlewareError(w, http.StatusBadRequest, "invalid_idempotency_key", "idempotency key too long")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotencyBodySize+1))
			if err != nil {
				writeMiddlewareError(w, http.StatusBadRequest, "invalid_body", "could not read request body")
				return
			}
			if len(body) > maxIdempotencyBodySize {
				writeMiddlewareError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := scopedIdempotencyKey(r, clientKey)
			fingerprint := requestFingerprint(r, body)
			logger := log.With().Str("idempotency_key", clientKey).Logger()

			entry, err := repo.Get(r.Context(), key)
			if err != nil {
				logger.Warn().Err(err).Msg("Idempotency lookup failed")
			}
			if err == nil && entry != nil {
				if !entry.Matches(fingerprint) {
					writeMiddlewareError(w, http.StatusUnprocessableEntity, "idempotency_key_reused",
						"idempotency key was already used for a different request")
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(IdempotencyReplayHeader, "true")
				w.WriteHeader(entry.ResponseStatus)
				w.Write([]byte(entry.ResponseBody))
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			// 5xx replies are transient; the client should be able to retry them.
			if rec.statusCode >= 500 || rec.bodyTruncated {
				return
			}
			now := time.Now()
			err = repo.Set(context.WithoutCancel(r.Context()), &idempotency.Entry{
				Key:            key,
				RequestHash:    fingerprint,
				ResponseBody:   rec.body.String(),
				ResponseStatus: rec.statusCode,
				CreatedAt:      now,
				ExpiresAt:      now.Add(idempotency.TTL),
			})
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to store idempotent response")
			}
		})
	}
}

func scopedIdempotencyKey(r *http.Request, clientKey string) string {
	merchant, _ := GetMerchantID(r.Context())
	return merchant + "|" + r.Method + " " + r.URL.Path + "|" + clientKey
}

func requestFingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method + " " + r.URL.Path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	body          *bytes.Buffer
	bodyTruncated bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.bodyTruncated {
		if r.body.Len()+len(b) > maxIdempotencyBodySize {
			r.bodyTruncated = true
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}
