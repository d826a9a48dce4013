/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. CORS:       Cross-origin requests for the frontend
  4. requestLogger: structured access log via zerolog

ROUTE GROUPS:
  /api/login            Public: credential exchange
  /api/attendance/*     Authenticated: clocking and standing
  /api/profile/*        Authenticated: own account
  /api/admin/*          Authenticated + admin role

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token middleware and role guard
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(h.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Middleware)

			r.Route("/attendance", func(r chi.Router) {
				r.Get("/", h.GetAttendance)
				r.Post("/toggle", h.ToggleDuty)
			})

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", h.GetProfile)
				r.Post("/password", h.ChangePassword)
				r.Post("/update", h.UpdateProfile)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)

				r.Get("/panel", h.AdminPanel)
				r.Get("/meta", h.Meta)
				r.Get("/export", h.ExportPayroll)
				r.Post("/reconcile", h.TriggerReconcile)
				r.Post("/reset-all-salary", h.ResetAllSalaries)

				r.Route("/users", func(r chi.Router) {
					r.Post("/", h.CreateUser)
					r.Delete("/{id}", h.DeleteUser)
					r.Get("/{id}/history", h.UserHistory)
					r.Post("/{id}/force-on", h.ForceOn)
					r.Post("/{id}/force-off", h.ForceOff)
					r.Post("/{id}/reset-day", h.ResetDay)
					r.Post("/{id}/reset-salary", h.ResetSalary)
					r.Post("/{id}/role", h.SetRole)
					r.Post("/{id}/position", h.SetPosition)
				})
			})
		})
	})

	return r
}

// requestLogger emits one structured log line per request.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.Log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
