package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/segyhp/lending-ledger/internal/domain"
	apperrors "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/response"
)

// TokenCookie is the cookie the login endpoint sets alongside the JSON token.
const TokenCookie = "jwt"

// SessionValidator turns a session token into the claims of a live account.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*domain.Claims, error)
}

type contextKey int

const (
	claimsKey contextKey = iota
	userIDKey
)

// Auth accepts a bearer token or the session cookie and stores the claims in
// the request context.
func Auth(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				response.Unauthorized(w, "Authentication required")
				return
			}

			claims, err := validator.ValidateSession(r.Context(), token)
			switch {
			case errors.Is(err, apperrors.ErrForbidden):
				response.Forbidden(w, apperrors.Message(err))
				return
			case errors.Is(err, apperrors.ErrUnauthorized):
				response.Unauthorized(w, "Invalid or expired token")
				return
			case err != nil:
				response.FromError(w, err)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				response.Unauthorized(w, "Invalid token subject")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles lets the request through only when the authenticated role is
// one of roles.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.Unauthorized(w, "Authentication required")
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			response.Forbidden(w, "Insufficient permissions")
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*domain.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*domain.Claims)
	return claims, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return ""
		}
		return strings.TrimSpace(token)
	}

	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
