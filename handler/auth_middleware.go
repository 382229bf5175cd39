package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"go-dine-api/common"
	"go-dine-api/model"
)

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	UserRoleKey contextKey = "userRole"
)

// HeaderAPIKey carries the static key every app sends.
const HeaderAPIKey = "X-API-KEY"

// ITokenParser validates access tokens.
type ITokenParser interface {
	ParseAccessToken(token string) (*model.AppClaims, error)
}

// APIKeyMiddleware rejects requests whose X-API-KEY does not match key. An
// empty key disables the check.
func APIKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAPIKey)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				common.NewAppError(http.StatusForbidden, "Invalid API key", nil).Send(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AuthMiddleware(tokens ITokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				common.NewAppError(http.StatusUnauthorized, "Authorization header is required", nil).Send(w)
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				common.NewAppError(http.StatusUnauthorized, "Invalid authorization header format", nil).Send(w)
				return
			}

			claims, err := tokens.ParseAccessToken(headerParts[1])
			if err != nil {
				common.NewAppError(http.StatusUnauthorized, "Invalid or expired token", nil).Send(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(UserRoleKey).(model.Role)

		if !ok || role != model.RoleAdmin {
			common.NewAppError(http.StatusForbidden, "Access denied. Admin privileges required.", nil).Send(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// identity returns the caller set by AuthMiddleware.
func identity(r *http.Request) (int, model.Role, *common.AppError) {
	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return 0, "", common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}
	role, ok := r.Context().Value(UserRoleKey).(model.Role)
	if !ok {
		return 0, "", common.NewAppError(http.StatusUnauthorized, "Invalid user role in token", nil)
	}
	return userID, role, nil
}
