package localidades

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes registers the read API on r behind gate (the session check, or a no-op).
func Routes(r chi.Router, api *API, gate func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(gate)

		r.Get("/localidades", api.ListLocalities)
		r.Get("/localidades/extent", api.Extent)
		r.Get("/localidades/{id}", api.GetLocality)
		r.Get("/calhas", api.ListBasins)
		r.Post("/distancia", api.Distance)
	})
}

// AdminRoutes registers the write endpoints. The caller gates them.
func AdminRoutes(r chi.Router, api *API) {
	r.Delete("/calhas/{id}", api.DeleteBasin)
}
