package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/luzparatodos-am/localidades-backend/internal/auth"
	"github.com/luzparatodos-am/localidades-backend/internal/basin"
	"github.com/luzparatodos-am/localidades-backend/internal/config"
	"github.com/luzparatodos-am/localidades-backend/internal/db"
	"github.com/luzparatodos-am/localidades-backend/internal/db/dbtest"
	"github.com/luzparatodos-am/localidades-backend/internal/ingest"
	"github.com/luzparatodos-am/localidades-backend/internal/localidades"
	"github.com/luzparatodos-am/localidades-backend/internal/middleware"
	"github.com/luzparatodos-am/localidades-backend/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notReady struct{}

func (notReady) CheckReadiness(context.Context) error { return errors.New("db down") }

func newTestRouter(t *testing.T, authRequired bool, ready ReadinessChecker) (http.Handler, *auth.Store) {
	t.Helper()
	d := dbtest.Open(t, &localidades.RiverBasin{}, &localidades.Locality{}, &auth.User{}, &auth.Session{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewRealClock()
	cfg := &config.Config{AuthRequired: authRequired, SessionTTL: time.Hour, CORSOrigins: []string{"http://localhost:3000"}}

	if ready == nil {
		ready = db.Readiness{DB: d}
	}
	store := localidades.NewStore(d)
	sessions := auth.NewStore(d)
	h := NewRouter(Deps{
		Config:         cfg,
		Logger:         logger,
		Metrics:        metrics,
		Ready:          ready,
		Localities:     localidades.NewAPI(store, logger),
		Auth:           auth.NewHandlers(sessions, cfg, clock, logger),
		Sessions:       sessions,
		Runner:         ingest.NewRunner(store, basin.Default(), logger, metrics),
		Clock:          clock,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "# metrics") }),
	})
	return h, sessions
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	return serve(h, httptest.NewRequest(http.MethodGet, path, nil))
}

func TestInfraRoutes(t *testing.T) {
	h, _ := newTestRouter(t, true, nil)

	rec := get(h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Server is up!")

	assert.JSONEq(t, `{"status":"healthy"}`, get(h, "/healthz").Body.String())
	assert.JSONEq(t, `{"status":"ready"}`, get(h, "/readyz").Body.String())
	assert.Equal(t, "# metrics", get(h, "/metrics").Body.String())
}

func TestReadyzReportsFailure(t *testing.T) {
	h, _ := newTestRouter(t, true, notReady{})
	rec := get(h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

func TestDataRoutesGatedWhenAuthRequired(t *testing.T) {
	h, _ := newTestRouter(t, true, nil)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/localidades").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/calhas").Code)

	rec := get(h, "/api/user")
	assert.Equal(t, http.StatusOK, rec.Code, "user endpoint is public")
	assert.JSONEq(t, `{"isAuthenticated":false}`, rec.Body.String())
}

func TestDataRoutesOpenWhenAuthDisabled(t *testing.T) {
	h, _ := newTestRouter(t, false, nil)
	rec := get(h, "/api/localidades")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUnsafeRequestsNeedCSRF(t *testing.T) {
	h, _ := newTestRouter(t, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/distancia", strings.NewReader(`{"ponto_a_id":1,"ponto_b_id":2}`))
	assert.Equal(t, http.StatusForbidden, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/distancia", strings.NewReader(`{"ponto_a_id":1,"ponto_b_id":2}`))
	req.AddCookie(&http.Cookie{Name: middleware.CSRFCookie, Value: "tok"})
	req.Header.Set(middleware.CSRFHeader, "tok")
	assert.Equal(t, http.StatusNotFound, serve(h, req).Code)
}

func TestAdminRoutesNeedAdminSession(t *testing.T) {
	h, sessions := newTestRouter(t, false, nil)
	ctx := context.Background()

	post := func(sessionID string) int {
		req := httptest.NewRequest(http.MethodDelete, "/api/admin/calhas/1", nil)
		req.AddCookie(&http.Cookie{Name: middleware.CSRFCookie, Value: "tok"})
		req.Header.Set(middleware.CSRFHeader, "tok")
		if sessionID != "" {
			req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sessionID})
		}
		return serve(h, req).Code
	}

	assert.Equal(t, http.StatusUnauthorized, post(""), "admin routes are gated even with auth disabled")

	user, err := sessions.CreateUser(ctx, "ana", "pw", auth.RoleUser)
	require.NoError(t, err)
	s, err := sessions.StartSession(ctx, user.UserID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, post(s.SessionID))

	admin, err := sessions.CreateUser(ctx, "root", "pw", auth.RoleAdmin)
	require.NoError(t, err)
	s, err = sessions.StartSession(ctx, admin.UserID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, post(s.SessionID), "no basin 1 in an empty store")
}
