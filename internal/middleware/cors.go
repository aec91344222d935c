package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSMiddleware allows credentialed requests from origins.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", CSRFHeader},
		ExposedHeaders: []string{"Retry-After", "Cache-Control"},
		MaxAge:         600,
	}).Handler
}
