// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Handlers run against the in-memory catalog repository and session store,
// so no PostgreSQL or Valkey is needed.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"marketplace/internal/catalog"
	"marketplace/internal/catalog/catalogtest"
	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/session"
)

func newCatalog(t *testing.T) *catalog.Service {
	t.Helper()
	return catalog.NewService(catalogtest.New())
}

func mustCreate(t *testing.T, svc *catalog.Service, name string, parent *uuid.UUID) *models.Category {
	t.Helper()
	c, err := svc.Create(context.Background(), catalog.CreateInput{Name: name, ParentID: parent})
	require.NoError(t, err, "create %q", name)
	return c
}

// do routes one request through a chi router holding a single route, so
// URL parameters resolve as in production.
func do(t *testing.T, method, pattern string, h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doAs(t, nil, method, pattern, h, target, body)
}

// doAs is do with sess stored in the request context.
func doAs(t *testing.T, sess *session.Data, method, pattern string, h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.SessionKey, sess))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decode unmarshals a recorded JSON body into v.
func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

// detail returns the "detail" of an error envelope.
func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decode(t, w, &body)
	return body.Detail
}

// memCache is an in-memory ResponseCache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok
}

func (c *memCache) Set(_ context.Context, key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = body
	c.sets++
}

func (c *memCache) clear(context.Context, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
}
