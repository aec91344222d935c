package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/luzparatodos-am/localidades-backend/internal/auth"
	"github.com/luzparatodos-am/localidades-backend/internal/config"
	"github.com/luzparatodos-am/localidades-backend/internal/db/dbtest"
	"github.com/luzparatodos-am/localidades-backend/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store  *auth.Store
	clock  *clockwork.FakeClock
	server *httptest.Server
}

// newHarness serves the auth routes plus one session-gated and one
// admin-gated endpoint, wired the way the API server wires them.
func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{SessionTTL: 6 * time.Hour}
	}
	store := auth.NewStore(dbtest.Open(t, &auth.User{}, &auth.Session{}))
	// Real start time: the cookie jar expires cookies by wall clock.
	clock := clockwork.NewFakeClockAt(time.Now())
	h := auth.NewHandlers(store, cfg, clock, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.CSRFMiddleware)
		auth.Routes(api, h)
		session := middleware.SessionMiddleware(store, clock)
		api.With(session).Get("/private", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		api.With(session, middleware.AdminMiddleware(store)).Post("/admin", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &harness{store: store, clock: clock, server: srv}
}

func (h *harness) createUser(t *testing.T, username, role string) string {
	t.Helper()
	_, err := h.store.CreateUser(context.Background(), username, "TestPass123!", role)
	require.NoError(t, err)
	return "TestPass123!"
}

type client struct {
	t    *testing.T
	h    *harness
	http *http.Client
}

func (h *harness) newClient(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, h: h, http: &http.Client{Jar: jar}}
}

func (c *client) csrf() string {
	resp := c.get("/api/csrf")
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	return body["csrfToken"]
}

func (c *client) get(path string) *http.Response {
	resp, err := c.http.Get(c.h.server.URL + path)
	require.NoError(c.t, err)
	return resp
}

func (c *client) post(path string, body any, token string) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, c.h.server.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.CSRFHeader, token)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	return resp
}

func (c *client) login(username, password string) *http.Response {
	return c.post("/api/login", map[string]string{"username": username, "password": password}, c.csrf())
}

func (c *client) whoami() (bool, string) {
	resp := c.get("/api/user")
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	var body struct {
		IsAuthenticated bool   `json:"isAuthenticated"`
		Username        string `json:"username"`
	}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&body))
	return body.IsAuthenticated, body.Username
}

func status(resp *http.Response) int {
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginReturnsSessionCookie(t *testing.T) {
	h := newHarness(t, nil)
	password := h.createUser(t, "ana", auth.RoleUser)
	c := h.newClient(t)

	resp := c.login("ana", password)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), middleware.SessionCookie)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["user_id"])
	assert.Equal(t, "ana", body["username"])

	ok, name := c.whoami()
	assert.True(t, ok)
	assert.Equal(t, "ana", name)
	assert.Equal(t, http.StatusOK, status(c.get("/api/private")))
}

func TestLoginRequiresCSRFToken(t *testing.T) {
	h := newHarness(t, nil)
	h.createUser(t, "ana", auth.RoleUser)
	c := h.newClient(t)

	resp := c.post("/api/login", map[string]string{"username": "ana", "password": "TestPass123!"}, "")
	assert.Equal(t, http.StatusForbidden, status(resp))

	c.csrf()
	resp = c.post("/api/login", map[string]string{"username": "ana", "password": "TestPass123!"}, "forged")
	assert.Equal(t, http.StatusForbidden, status(resp))
}

func TestCSRFTokenIsStable(t *testing.T) {
	c := newHarness(t, nil).newClient(t)
	first := c.csrf()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, c.csrf())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t, nil)
	h.createUser(t, "ana", auth.RoleUser)
	c := h.newClient(t)

	assert.Equal(t, http.StatusUnauthorized, status(c.login("ana", "wrong")))
	assert.Equal(t, http.StatusUnauthorized, status(c.login("nobody", "TestPass123!")))
	assert.Equal(t, http.StatusBadRequest, status(c.login("", "")))

	ok, _ := c.whoami()
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, status(c.get("/api/private")))
}

func TestLogoutClearsSession(t *testing.T) {
	h := newHarness(t, nil)
	password := h.createUser(t, "ana", auth.RoleUser)
	c := h.newClient(t)
	require.Equal(t, http.StatusOK, status(c.login("ana", password)))

	token := c.csrf()
	require.Equal(t, http.StatusOK, status(c.post("/api/logout", nil, token)))

	ok, _ := c.whoami()
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, status(c.get("/api/private")))
	assert.Equal(t, http.StatusUnauthorized, status(c.post("/api/logout", nil, token)))
}

func TestSecondLoginReplacesSession(t *testing.T) {
	h := newHarness(t, nil)
	password := h.createUser(t, "ana", auth.RoleUser)
	first, second := h.newClient(t), h.newClient(t)

	require.Equal(t, http.StatusOK, status(first.login("ana", password)))
	require.Equal(t, http.StatusOK, status(second.login("ana", password)))

	assert.Equal(t, http.StatusUnauthorized, status(first.get("/api/private")), "one session per user")
	assert.Equal(t, http.StatusOK, status(second.get("/api/private")))
}

func TestExpiredSessionRejected(t *testing.T) {
	h := newHarness(t, nil)
	password := h.createUser(t, "ana", auth.RoleUser)
	c := h.newClient(t)
	require.Equal(t, http.StatusOK, status(c.login("ana", password)))

	h.clock.Advance(6*time.Hour + time.Second)

	resp := c.get("/api/private")
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "Session expired")

	ok, _ := c.whoami()
	assert.False(t, ok)
}

func TestAdminGate(t *testing.T) {
	h := newHarness(t, nil)
	h.createUser(t, "admin", auth.RoleAdmin)
	h.createUser(t, "ana", auth.RoleUser)

	admin, user := h.newClient(t), h.newClient(t)
	require.Equal(t, http.StatusOK, status(admin.login("admin", "TestPass123!")))
	require.Equal(t, http.StatusOK, status(user.login("ana", "TestPass123!")))

	assert.Equal(t, http.StatusOK, status(admin.post("/api/admin", nil, admin.csrf())))
	assert.Equal(t, http.StatusForbidden, status(user.post("/api/admin", nil, user.csrf())))
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness(t, &config.Config{SessionTTL: time.Hour, LoginRateLimit: 0.001, LoginBurst: 2})
	h.createUser(t, "ana", auth.RoleUser)
	c := h.newClient(t)

	assert.Equal(t, http.StatusUnauthorized, status(c.login("ana", "wrong")))
	assert.Equal(t, http.StatusUnauthorized, status(c.login("ana", "wrong")))

	resp := c.login("ana", "TestPass123!")
	assert.Equal(t, http.StatusTooManyRequests, status(resp))
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestCreateUser(t *testing.T) {
	store := auth.NewStore(dbtest.Open(t, &auth.User{}, &auth.Session{}))
	ctx := context.Background()

	u, err := store.CreateUser(ctx, " ana ", "secret", "superuser")
	require.NoError(t, err)
	assert.Equal(t, "ana", u.Username)
	assert.Equal(t, auth.RoleUser, u.Role, "unknown roles fall back to user")
	assert.NotEqual(t, "secret", u.HashedPassword)

	_, err = store.CreateUser(ctx, "ana", "other", auth.RoleUser)
	assert.ErrorIs(t, err, auth.ErrUsernameTaken)

	_, err = store.CreateUser(ctx, "", "x", auth.RoleUser)
	assert.Error(t, err)

	_, err = store.Authenticate(ctx, "ana", "secret")
	assert.NoError(t, err)
	_, err = store.Authenticate(ctx, "ana", "nope")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestSessionCookieAttributes(t *testing.T) {
	h := newHarness(t, &config.Config{SessionTTL: time.Hour, CookieSecure: true})
	h.createUser(t, "ana", auth.RoleUser)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, err := url.Parse(h.server.URL)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: middleware.CSRFCookie, Value: "tok", Path: "/"}})
	c := &client{t: t, h: h, http: &http.Client{Jar: jar}}

	resp := c.post("/api/login", map[string]string{"username": "ana", "password": "TestPass123!"}, "tok")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.SessionCookie {
			session = ck
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.True(t, session.Secure)
	assert.Equal(t, "/", session.Path)
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)
}
