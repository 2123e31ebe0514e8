package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit caps requests per minute for each client IP and, once
// RequireAuth has run, for each merchant behind that IP.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, keyByMerchant),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeMiddlewareError(w, http.StatusTooManyRequests, "rate_limit", "rate limit exceeded")
		}),
	)
}

func keyByMerchant(r *http.Request) (string, error) {
	merchantID, _ := GetMerchantID(r.Context())
	return merchantID, nil
}
