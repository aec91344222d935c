package middleware

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/luzparatodos-am/localidades-backend/internal/utils"
)

// SessionCookie carries the session id.
const SessionCookie = "session_id"

type SessionFetcher interface {
	FindSessionByID(ctx context.Context, id string) (utils.SessionData, error)
}

// RoleFetcher looks up the role of a user.
type RoleFetcher interface {
	UserRole(ctx context.Context, userID string) (string, error)
}

// SessionMiddleware rejects requests without a live session and puts the
// session's user id in the request context.
func SessionMiddleware(fetcher SessionFetcher, clock clockwork.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				http.Error(w, "Couldn't find cookie", http.StatusUnauthorized)
				return
			}

			session, err := fetcher.FindSessionByID(r.Context(), cookie.Value)
			if err != nil {
				http.Error(w, "Couldn't find session", http.StatusUnauthorized)
				return
			}

			if session.ExpiresAt.Before(clock.Now()) {
				http.Error(w, "Session expired", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithUserID(r.Context(), session.UserID)))
		})
	}
}

// AdminMiddleware must run after SessionMiddleware.
func AdminMiddleware(roles RoleFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
				return
			}

			role, err := roles.UserRole(r.Context(), userID)
			if err != nil {
				http.Error(w, "Unauthorized: user not found", http.StatusUnauthorized)
				return
			}

			if role != "admin" {
				http.Error(w, "Forbidden: admin access required", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Passthrough is the gate used when authentication is disabled.
func Passthrough(next http.Handler) http.Handler { return next }
