package localidades

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/luzparatodos-am/localidades-backend/internal/spatial"
	gocache "github.com/patrickmn/go-cache"
)

// API serves the locality, basin and distance endpoints.
type API struct {
	store  *Store
	logger *slog.Logger
	cache  *gocache.Cache
}

func NewAPI(store *Store, logger *slog.Logger) *API {
	return &API{
		store:  store,
		logger: logger,
		cache:  gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// Invalidate drops cached basin lists and extents. Call it after writes.
func (a *API) Invalidate() {
	a.cache.Flush()
}

type localityJSON struct {
	ID               uint    `json:"id"`
	IBGE             *string `json:"ibge"`
	UF               string  `json:"uf"`
	Municipality     string  `json:"municipio"`
	Community        string  `json:"nome_comunidade"`
	CommunityType    *string `json:"tipo_comunidade"`
	Households       *int    `json:"domicilios"`
	TotalConnections *int    `json:"total_ligacoes"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Basin            *string `json:"calha_rio"`
	Source           string  `json:"fonte_dados"`
}

func toJSON(l Locality) localityJSON {
	out := localityJSON{
		ID:               l.ID,
		IBGE:             l.IBGE,
		UF:               l.UF,
		Municipality:     l.Municipality,
		Community:        l.Community,
		CommunityType:    l.CommunityType,
		Households:       l.Households,
		TotalConnections: l.TotalConnections,
		Latitude:         l.Latitude,
		Longitude:        l.Longitude,
		Source:           string(l.Source),
	}
	if l.Basin != nil {
		name := l.Basin.Name
		out.Basin = &name
	}
	return out
}

func (a *API) ListLocalities(w http.ResponseWriter, r *http.Request) {
	f, err := FilterFromQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	locs, err := a.store.QueryAll(r.Context(), f)
	if err != nil {
		a.logger.Error("list localities", "error", err)
		http.Error(w, "Failed to load localities", http.StatusInternalServerError)
		return
	}

	out := make([]localityJSON, 0, len(locs))
	for _, l := range locs {
		out = append(out, toJSON(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) GetLocality(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid locality id", http.StatusBadRequest)
		return
	}

	l, err := a.store.Get(r.Context(), uint(id))
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Locality not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("get locality", "id", id, "error", err)
		http.Error(w, "Failed to load locality", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(*l))
}

// Extent returns the bounding box of the localities matching the list filters.
func (a *API) Extent(w http.ResponseWriter, r *http.Request) {
	f, err := FilterFromQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := "extent:" + r.URL.Query().Encode()
	if v, ok := a.cache.Get(key); ok {
		writeJSON(w, http.StatusOK, v)
		return
	}

	locs, err := a.store.QueryAll(r.Context(), f)
	if err != nil {
		a.logger.Error("locality extent", "error", err)
		http.Error(w, "Failed to load localities", http.StatusInternalServerError)
		return
	}
	box, ok := spatial.Extent(locs)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	a.cache.SetDefault(key, box)
	writeJSON(w, http.StatusOK, box)
}

func (a *API) ListBasins(w http.ResponseWriter, r *http.Request) {
	if v, ok := a.cache.Get("basins"); ok {
		writeJSON(w, http.StatusOK, v)
		return
	}

	basins, err := a.store.ListBasins(r.Context())
	if err != nil {
		a.logger.Error("list basins", "error", err)
		http.Error(w, "Failed to load basins", http.StatusInternalServerError)
		return
	}
	a.cache.SetDefault("basins", basins)
	writeJSON(w, http.StatusOK, basins)
}

// DeleteBasin removes a basin. Its localities stay, with no basin.
func (a *API) DeleteBasin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid basin id", http.StatusBadRequest)
		return
	}

	err = a.store.DeleteBasin(r.Context(), uint(id))
	if errors.Is(err, ErrBasinNotFound) {
		http.Error(w, "Basin not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("delete basin", "id", id, "error", err)
		http.Error(w, "Failed to delete basin", http.StatusInternalServerError)
		return
	}
	a.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

type distanceRequest struct {
	A uint `json:"ponto_a_id"`
	B uint `json:"ponto_b_id"`
}

// Distance reports the geodesic distance in km between two stored localities.
func (a *API) Distance(w http.ResponseWriter, r *http.Request) {
	var req distanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}
	if req.A == 0 || req.B == 0 {
		http.Error(w, "ponto_a_id and ponto_b_id are required", http.StatusBadRequest)
		return
	}

	pa, err := a.store.Get(r.Context(), req.A)
	if err != nil {
		a.lookupFailed(w, req.A, err)
		return
	}
	pb, err := a.store.Get(r.Context(), req.B)
	if err != nil {
		a.lookupFailed(w, req.B, err)
		return
	}

	km, err := spatial.Distance(pa, pb)
	if err != nil {
		http.Error(w, "Localities must have valid coordinates", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"distancia_km": km})
}

func (a *API) lookupFailed(w http.ResponseWriter, id uint, err error) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Locality not found", http.StatusNotFound)
		return
	}
	a.logger.Error("distance lookup", "id", id, "error", err)
	http.Error(w, "Failed to load localities", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client disconnects are not actionable
}
