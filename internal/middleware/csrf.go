package middleware

import (
	"crypto/subtle"
	"net/http"
)

const (
	CSRFCookie = "csrftoken"
	CSRFHeader = "X-CSRFToken"
)

// CSRFMiddleware requires unsafe requests to echo the csrftoken cookie in the
// X-CSRFToken header.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CSRFCookie)
		if err != nil || cookie.Value == "" {
			http.Error(w, "CSRF cookie not set", http.StatusForbidden)
			return
		}
		header := r.Header.Get(CSRFHeader)
		if subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
			http.Error(w, "CSRF token missing or incorrect", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
