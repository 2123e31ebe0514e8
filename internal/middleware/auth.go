package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const MerchantIDKey contextKey = "merchant_id"

// Claims identifies the merchant app talking to the agent.
type Claims struct {
	MerchantID string `json:"merchant_id"`
	jwt.RegisteredClaims
}

// RequireAuth accepts HS256 bearer tokens signed with jwtSecret.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeMiddlewareError(w, http.StatusUnauthorized, "auth_required", "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeMiddlewareError(w, http.StatusUnauthorized, "auth_invalid_scheme", "invalid authorization scheme")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			claims := &Claims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid {
				writeMiddlewareError(w, http.StatusUnauthorized, "auth_invalid", "invalid token")
				return
			}

			merchantID := claims.MerchantID
			if merchantID == "" {
				merchantID = claims.Subject
			}

			ctx := context.WithValue(r.Context(), MerchantIDKey, merchantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetMerchantID(ctx context.Context) (string, bool) {
	merchantID, ok := ctx.Value(MerchantIDKey).(string)
	return merchantID, ok && merchantID != ""
}
