package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ContextKey is a private key type to avoid collisions in request contexts.
type ContextKey string

// UserIDCtxKey holds the authenticated user's UID, set by JWTAuth.
const UserIDCtxKey = ContextKey("user_id")

// Claims is the token payload issued by the auth service.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// UserIDFromContext returns the authenticated UID, or "" when the request
// did not pass through JWTAuth.
func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDCtxKey).(string)
	return uid
}

// respondUnauthorized mirrors the handlers' JSON error envelope so
// clients can parse every error body the same way.
func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// JWTAuth validates a Bearer token and injects the user ID into the
// request context. Mutating listing routes sit behind it; the feed and
// seller reads stay public.
func JWTAuth(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondUnauthorized(w, "authorization token is not provided")
				return
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				logger.Warn("Invalid authorization header format", zap.String("path", r.URL.Path))
				respondUnauthorized(w, "authorization token format is invalid, expected 'Bearer <token>'")
				return
			}
			tokenString := parts[1]

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(jwtSecret), nil
			})
			if err != nil {
				logger.Warn("Token parsing or validation failed", zap.String("path", r.URL.Path), zap.Error(err))
				if errors.Is(err, jwt.ErrTokenExpired) {
					respondUnauthorized(w, "token has expired")
					return
				}
				respondUnauthorized(w, "token is invalid")
				return
			}
			if !token.Valid || claims.UserID == "" {
				logger.Warn("Token is not valid or has no user ID", zap.String("path", r.URL.Path))
				respondUnauthorized(w, "token is not valid")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDCtxKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
