// Package router sets up all HTTP routes and middleware chains for the
// marketplace category API. It organizes routes into public and admin
// groups with appropriate middleware stacks.
package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"marketplace/internal/handlers"
	"marketplace/internal/metrics"
	"marketplace/internal/middleware"
	"marketplace/internal/session"
)

// Pinger reports whether the database is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds everything the router wires into routes.
type Deps struct {
	Sessions     session.Manager
	Admin        *handlers.Admin
	Auth         *handlers.Auth
	Public       *handlers.Public
	Metrics      *metrics.Metrics
	LoginLimiter *middleware.RateLimiter
	TwoFALimiter *middleware.RateLimiter
	DB           Pinger
	SecureCookie bool
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	// Health check: no auth, no CSRF.
	r.Get("/health", healthHandler(d.DB))

	// Public read API.
	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Get("/", d.Public.Categories)
		r.Get("/{id}/fields", d.Public.CategoryFields)
	})

	// Admin API: sessions and CSRF protection.
	r.Route("/admin/api", func(r chi.Router) {
		r.Use(middleware.LoadSession(d.Sessions))
		r.Use(middleware.NewCSRF(d.SecureCookie))

		r.Get("/csrf", d.Auth.CSRFToken)
		r.With(limit(d.LoginLimiter)...).Post("/login", d.Auth.Login)

		// Signed in, 2FA not necessarily complete.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/logout", d.Auth.Logout)
			r.Get("/me", d.Auth.Me)
			r.Get("/2fa/setup", d.Auth.TwoFASetup)
			r.With(limit(d.TwoFALimiter)...).Post("/2fa/verify", d.Auth.TwoFAVerify)
		})

		// Authenticated, 2FA-verified administrators.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.Require2FA)
			r.Use(middleware.RequireAdmin)

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", d.Admin.ListCategories)
				r.Post("/", d.Admin.CreateCategory)
				r.Post("/import", d.Admin.ImportCategories)
				r.Get("/export", d.Admin.ExportCategories)
				r.Post("/snapshots", d.Admin.CreateSnapshot)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", d.Admin.GetCategory)
					r.Patch("/", d.Admin.UpdateCategory)
					r.Delete("/", d.Admin.DeleteCategory)
					r.Get("/tree", d.Admin.CategorySubtree)
					r.Put("/parent", d.Admin.ReparentCategory)
					r.Get("/parent/check", d.Admin.CheckReparent)
					r.Get("/fields", d.Admin.CategoryFields)
					r.Post("/fields", d.Admin.AttachField)
					r.Delete("/fields/{fieldID}", d.Admin.DetachField)
				})
			})

			r.Route("/fields", func(r chi.Router) {
				r.Get("/", d.Admin.ListFields)
				r.Post("/", d.Admin.CreateField)
				r.Delete("/{fieldID}", d.Admin.DeleteField)
			})
		})
	})

	return r
}

// healthHandler reports liveness and, when db is set, database reachability.
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				slog.Warn("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// limit returns the limiter's middleware, or nothing when rl is nil.
func limit(rl *middleware.RateLimiter) []func(http.Handler) http.Handler {
	if rl == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{rl.Middleware}
}
