package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dias221467/ZielManager/pkg/jwt"
	"github.com/Dias221467/ZielManager/pkg/logger"
)

type contextKey string

const userContextKey contextKey = "user"

// AuthMiddleware rejects requests without a valid bearer token and stores
// the token claims in the request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(header, "Bearer ")
			if header == "" || tokenString == header {
				http.Error(w, "Missing or malformed authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := jwt.ParseToken(tokenString, secret)
			if err != nil {
				logger.Log.WithError(err).Warn("Rejected request with invalid token")
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
		})
	}
}

func WithUser(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// GetUserFromContext returns nil for unauthenticated requests.
func GetUserFromContext(ctx context.Context) *jwt.Claims {
	claims, _ := ctx.Value(userContextKey).(*jwt.Claims)
	return claims
}
