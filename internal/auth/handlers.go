package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/luzparatodos-am/localidades-backend/internal/config"
	"github.com/luzparatodos-am/localidades-backend/internal/middleware"
	"github.com/luzparatodos-am/localidades-backend/internal/utils"
)

// Handlers serves the session endpoints.
type Handlers struct {
	store   *Store
	clock   clockwork.Clock
	logger  *slog.Logger
	ttl     time.Duration
	secure  bool
	limiter *loginLimiter
}

func NewHandlers(store *Store, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:   store,
		clock:   clock,
		logger:  logger,
		ttl:     cfg.SessionTTL,
		secure:  cfg.CookieSecure,
		limiter: newLoginLimiter(cfg.LoginRateLimit, cfg.LoginBurst),
	}
}

func (h *Handlers) sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// CSRFHandler issues the csrftoken cookie, reusing one the client already has.
func (h *Handlers) CSRFHandler(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(middleware.CSRFCookie); err == nil && c.Value != "" {
		token = c.Value
	} else {
		token = utils.GenerateUUID()
	}
	// Readable by scripts so they can echo it in the header.
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CSRFCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(utils.ClientIP(r)) {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "Too many login attempts", http.StatusTooManyRequests)
		return
	}

	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "Invalid Data", http.StatusBadRequest)
		return
	}
	if creds.Username == "" || creds.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.store.Authenticate(r.Context(), creds.Username, creds.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		h.logger.Info("login rejected", "username", creds.Username, "ip", utils.ClientIP(r))
		http.Error(w, "Invalid Credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.logger.Error("login failed", "error", err)
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}

	session, err := h.store.StartSession(r.Context(), user.UserID, h.clock.Now().Add(h.ttl))
	if err != nil {
		h.logger.Error("login failed", "error", err)
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, h.sessionCookie(session.SessionID, session.ExpiresAt))
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":  user.UserID,
		"username": user.Username,
	})
}

func (h *Handlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookie)
	if err != nil {
		http.Error(w, "Couldn't find cookie", http.StatusUnauthorized)
		return
	}

	err = h.store.DeleteSession(r.Context(), cookie.Value)
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "Couldn't find session", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.logger.Error("logout failed", "error", err)
		http.Error(w, "Logout failed", http.StatusInternalServerError)
		return
	}

	expired := h.sessionCookie("", time.Unix(0, 0))
	expired.MaxAge = -1
	http.SetCookie(w, expired)
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Logout successful"})
}

type userResponse struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Username        string `json:"username,omitempty"`
}

// UserHandler reports who the session cookie belongs to. It never fails with
// 401: an anonymous caller gets isAuthenticated=false.
func (h *Handlers) UserHandler(w http.ResponseWriter, r *http.Request) {
	anonymous := userResponse{}

	cookie, err := r.Cookie(middleware.SessionCookie)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusOK, anonymous)
		return
	}
	session, err := h.store.FindSessionByID(r.Context(), cookie.Value)
	if err != nil || session.ExpiresAt.Before(h.clock.Now()) {
		writeJSON(w, http.StatusOK, anonymous)
		return
	}
	user, err := h.store.FindUserByID(r.Context(), session.UserID)
	if err != nil {
		writeJSON(w, http.StatusOK, anonymous)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{IsAuthenticated: true, Username: user.Username})
}
