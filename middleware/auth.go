package middleware

import (
	"context"
	"net/http"
	"strings"

	"mypeeps/pkg/logger"
	"mypeeps/pkg/respond"
)

type contextKey string

const UserIDKey contextKey = "userID"

// TokenValidator turns a bearer token into the authenticated user id.
type TokenValidator interface {
	UserID(token string) (string, error)
}

// GetUserID returns the authenticated user id or "".
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// WithUserID is used by tests and by handlers that authenticate by other means.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Websocket clients cannot always set headers, so the query wins.
			tokenString := r.URL.Query().Get("token")
			if tokenString == "" {
				authHeader := r.Header.Get("Authorization")
				tokenString = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			}

			if tokenString == "" {
				respond.Error(w, http.StatusUnauthorized, "authorization token required")
				return
			}

			userID, err := tokens.UserID(tokenString)
			if err != nil {
				logger.Sugar.Debugf("Invalid token: %v", err)
				respond.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
