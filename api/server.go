/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the community frontend

ROUTE GROUPS:
  /api/users/*          Balances, history, per-user quest status
  /api/points/*         Transfers, awards, penalties
  /api/quests/*         Quest lifecycle
  /api/achievements/*   One-shot unlocks
  /api/lottery/*        Weighted draws
  /api/leaderboard      Ranked views
  /api/admin/*          Catalog management
  /metrics              Prometheus scrape endpoint
  /health               Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Get("/{id}/quests", h.GetUserQuests)
		})

		// Point operations
		r.Route("/points", func(r chi.Router) {
			r.Post("/transfer", h.Transfer)
			r.Post("/award", h.Award)
			r.Post("/penalty", h.Penalty)
		})

		// Quest routes
		r.Route("/quests", func(r chi.Router) {
			r.Get("/", h.ListQuests)
			r.Post("/{id}/accept", h.AcceptQuest)
			r.Post("/{id}/progress", h.ReportProgress)
			r.Post("/{id}/claim", h.ClaimQuest)
		})

		// Achievement routes
		r.Route("/achievements", func(r chi.Router) {
			r.Post("/{id}/unlock", h.UnlockAchievement)
		})

		// Lottery routes
		r.Route("/lottery", func(r chi.Router) {
			r.Get("/", h.GetLottery)
			r.Post("/draw", h.DrawLottery)
		})

		// Leaderboard
		r.Get("/leaderboard", h.GetLeaderboard)

		// Admin routes (catalog management)
		if h.Admin != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Post("/quests", h.SaveQuest)
				r.Post("/achievements", h.SaveAchievement)
			})
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
