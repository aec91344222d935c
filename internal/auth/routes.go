package auth

import (
	"github.com/go-chi/chi/v5"
)

// Routes registers csrf, login, logout and user on r. The caller applies
// the CSRF check to unsafe methods.
func Routes(r chi.Router, h *Handlers) {
	r.Get("/csrf", h.CSRFHandler)
	r.Get("/user", h.UserHandler)
	r.Post("/login", h.LoginHandler)
	r.Post("/logout", h.LogoutHandler)
}
