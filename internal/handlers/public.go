// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"marketplace/internal/cache"
	"marketplace/internal/catalog"
	"marketplace/internal/metrics"
)

// ResponseCache stores encoded JSON bodies. *cache.CatalogCache satisfies it.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
}

// Public groups the unauthenticated category API. It checks the Valkey
// response cache before building the tree and stores the encoded result
// on a miss.
type Public struct {
	catalog *catalog.Service
	cache   ResponseCache
	metrics *metrics.Metrics
}

// NewPublic creates a new Public handler group. respCache and m may be nil.
func NewPublic(svc *catalog.Service, respCache ResponseCache, m *metrics.Metrics) *Public {
	return &Public{catalog: svc, cache: respCache, metrics: m}
}

// Categories serves the whole forest as a nested JSON array.
func (p *Public) Categories(w http.ResponseWriter, r *http.Request) {
	p.cached(w, r, cache.TreeKey(), func(ctx context.Context) (any, error) {
		return p.catalog.Tree(ctx)
	})
}

// CategoryFields serves the field schema listings in a category must follow.
func (p *Public) CategoryFields(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p.cached(w, r, cache.SchemaKey(id), func(ctx context.Context) (any, error) {
		return p.catalog.Schema(ctx, id)
	})
}

// cached serves key from the response cache, or calls build, encodes its
// result and caches it. Errors are never cached.
func (p *Public) cached(w http.ResponseWriter, r *http.Request, key string, build func(context.Context) (any, error)) {
	ctx := r.Context()

	if p.cache != nil {
		body, hit := p.cache.Get(ctx, key)
		if p.metrics != nil {
			p.metrics.RecordCacheLookup(hit)
		}
		if hit {
			w.Header().Set("X-Cache", "HIT")
			writeBody(w, http.StatusOK, body)
			return
		}
	}

	v, err := build(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode categories failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if p.cache != nil {
		p.cache.Set(ctx, key, body)
		w.Header().Set("X-Cache", "MISS")
	}
	writeBody(w, http.StatusOK, body)
}
