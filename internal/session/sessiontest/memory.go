// Package sessiontest provides an in-memory session.Manager for handler
// and middleware tests that run without Valkey.
package sessiontest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"marketplace/internal/session"
)

// Memory keeps sessions in a map keyed by cookie value.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]session.Data
}

var _ session.Manager = (*Memory)(nil)

// New returns an empty Memory store.
func New() *Memory {
	return &Memory{sessions: make(map[string]session.Data)}
}

// Put stores data under a fresh id and returns a cookie that selects it.
func (m *Memory) Put(data session.Data) *http.Cookie {
	id, err := session.GenerateID()
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	m.sessions[id] = data
	m.mu.Unlock()
	return &http.Cookie{Name: session.CookieName, Value: id}
}

// Len returns the number of live sessions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Memory) Create(_ context.Context, w http.ResponseWriter, data *session.Data) (string, error) {
	data.CreatedAt = time.Now()
	c := m.Put(*data)
	session.SetCookie(w, c.Value, session.DefaultTTL, false)
	return c.Value, nil
}

func (m *Memory) Get(_ context.Context, r *http.Request) (*session.Data, error) {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.sessions[cookie.Value]
	if !ok {
		return nil, nil
	}
	return &data, nil
}

func (m *Memory) Update(_ context.Context, r *http.Request, data *session.Data) error {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil {
		return errors.New("session update: no cookie")
	}
	m.mu.Lock()
	m.sessions[cookie.Value] = *data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Destroy(_ context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil {
		return nil
	}
	m.mu.Lock()
	delete(m.sessions, cookie.Value)
	m.mu.Unlock()
	session.ClearCookie(w)
	return nil
}
