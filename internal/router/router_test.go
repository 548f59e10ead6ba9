// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router tests verify the HTTP routing configuration, middleware
// chains, and the health endpoint.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/catalog"
	"marketplace/internal/catalog/catalogtest"
	"marketplace/internal/handlers"
	"marketplace/internal/metrics"
	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/session"
	"marketplace/internal/session/sessiontest"
)

// noUsers is a UserStore without any accounts.
type noUsers struct{}

func (noUsers) FindByEmail(context.Context, string) (*models.User, error) { return nil, nil }
func (noUsers) FindByID(context.Context, uuid.UUID) (*models.User, error) { return nil, nil }
func (noUsers) SetTOTPSecret(context.Context, uuid.UUID, string) error { return nil }
func (noUsers) EnableTOTP(context.Context, uuid.UUID) error { return nil }
func (noUsers) CheckPassword(*models.User, string) bool { return false }

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

type testApp struct {
	router   chi.Router
	sessions *sessiontest.Memory
	metrics  *metrics.Metrics
}

func newTestApp(t *testing.T, limiter *middleware.RateLimiter, db Pinger, opts ...func(*Deps)) *testApp {
	t.Helper()
	svc := catalog.NewService(catalogtest.New())
	mem := sessiontest.New()
	m := metrics.New("test")
	d := Deps{
		Sessions:     mem,
		Admin:        handlers.NewAdmin(svc, nil),
		Auth:         handlers.NewAuth(mem, noUsers{}, m),
		Public:       handlers.NewPublic(svc, nil, m),
		Metrics:      m,
		LoginLimiter: limiter,
		DB:           db,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return &testApp{
		router:   New(d),
		sessions: mem,
		metrics:  m,
	}
}

func (a *testApp) do(method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// csrfCookie returns a fixed token cookie; requests echo it in the header.
func csrfCookie() *http.Cookie {
	return &http.Cookie{Name: middleware.CSRFCookieName, Value: strings.Repeat("ab", 32)}
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	healthHandler(nil)(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealthDatabaseDown(t *testing.T) {
	app := newTestApp(t, nil, pinger{err: errors.New("connection refused")})

	w := app.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, w.Body.String())

	app = newTestApp(t, nil, pinger{})
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/health", "").Code)
}

func TestPublicRoutes(t *testing.T) {
	app := newTestApp(t, nil, nil)

	w := app.do(http.MethodGet, "/api/v1/categories", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = app.do(http.MethodGet, "/api/v1/categories/"+uuid.NewString()+"/fields", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",path="/api/v1/categories`)
}

func TestAdminRequiresVerifiedAdmin(t *testing.T) {
	app := newTestApp(t, nil, nil)

	w := app.do(http.MethodGet, "/admin/api/categories", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	pending := app.sessions.Put(session.Data{UserID: uuid.New(), Role: "admin"})
	w = app.do(http.MethodGet, "/admin/api/categories", "", pending)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The pending session can still reach the 2FA routes.
	w = app.do(http.MethodGet, "/admin/api/me", "", pending)
	assert.Equal(t, http.StatusOK, w.Code)

	editor := app.sessions.Put(session.Data{UserID: uuid.New(), Role: "editor", TwoFADone: true})
	w = app.do(http.MethodGet, "/admin/api/categories", "", editor)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := app.sessions.Put(session.Data{UserID: uuid.New(), Role: "admin", TwoFADone: true})
	w = app.do(http.MethodGet, "/admin/api/categories", "", admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestAdminMutationsRequireCSRF(t *testing.T) {
	app := newTestApp(t, nil, nil)
	admin := app.sessions.Put(session.Data{UserID: uuid.New(), Role: "admin", TwoFADone: true})

	w := app.do(http.MethodPost, "/admin/api/categories", `{"name":"Vehicles"}`, admin)
	assert.Equal(t, http.StatusForbidden, w.Code)

	token := csrfCookie()
	req := httptest.NewRequest(http.MethodPost, "/admin/api/categories", strings.NewReader(`{"name":"Vehicles"}`))
	req.AddCookie(admin)
	req.AddCookie(token)
	req.Header.Set(middleware.CSRFHeaderName, token.Value)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	w = app.do(http.MethodGet, "/admin/api/categories/"+created.ID.String(), "", admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/api/v1/categories", "")
	assert.Contains(t, w.Body.String(), `"slug":"vehicles"`)
}

func TestLoginRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute)
	defer limiter.Stop()
	app := newTestApp(t, limiter, nil)
	token := csrfCookie()

	login := func() int {
		req := httptest.NewRequest(http.MethodPost, "/admin/api/login",
			strings.NewReader(`{"email":"a@example.com","password":"x"}`))
		req.RemoteAddr = "203.0.113.7:4000"
		req.AddCookie(token)
		req.Header.Set(middleware.CSRFHeaderName, token.Value)
		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusTooManyRequests, login())
}

func TestTwoFAVerifyRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute)
	defer limiter.Stop()
	app := newTestApp(t, nil, nil, func(d *Deps) { d.TwoFALimiter = limiter })
	pending := app.sessions.Put(session.Data{UserID: uuid.New(), Role: "admin"})
	token := csrfCookie()

	verify := func() int {
		req := httptest.NewRequest(http.MethodPost, "/admin/api/2fa/verify",
			strings.NewReader(`{"code":"123456"}`))
		req.RemoteAddr = "203.0.113.8:4000"
		req.AddCookie(pending)
		req.AddCookie(token)
		req.Header.Set(middleware.CSRFHeaderName, token.Value)
		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)
		return w.Code
	}

	assert.NotEqual(t, http.StatusTooManyRequests, verify())
	assert.Equal(t, http.StatusTooManyRequests, verify())
	assert.Equal(t, http.StatusTooManyRequests, verify())
}
