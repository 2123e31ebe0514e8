package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestRequireAuth(t *testing.T) {
	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		MerchantID: "merchant-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	subjectOnly := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "merchant-2"},
	})
	expired := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		MerchantID: "merchant-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), Claims{MerchantID: "m"})
	wrongAlg := signToken(t, jwt.SigningMethodHS512, []byte(testSecret), Claims{MerchantID: "m"})

	tests := []struct {
		name         string
		header       string
		wantStatus   int
		wantCode     string
		wantMerchant string
	}{
		{"missing header", "", http.StatusUnauthorized, "auth_required", ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "auth_invalid_scheme", ""},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, "auth_invalid", ""},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "auth_invalid", ""},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized, "auth_invalid", ""},
		{"wrong algorithm", "Bearer " + wrongAlg, http.StatusUnauthorized, "auth_invalid", ""},
		{"valid", "Bearer " + valid, http.StatusOK, "", "merchant-1"},
		{"subject fallback", "Bearer " + subjectOnly, http.StatusOK, "", "merchant-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMerchant string
			handler := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMerchant, _ = GetMerchantID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/operations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), tt.wantCode)
			}
			assert.Equal(t, tt.wantMerchant, gotMerchant)
		})
	}
}
