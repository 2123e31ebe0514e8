package middleware

import (
	"encoding/json"
	"net/http"
)

// writeMiddlewareError mirrors the controller error body so clients see one
// shape no matter which layer rejected the request.
func writeMiddlewareError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
