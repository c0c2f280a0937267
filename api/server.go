/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the web frontend
  5. RequireAuth on everything that acts as an account

ROUTE GROUPS:
  /api/auth/*       Signup, login, logout
  /api/accounts/*   Balance and activity
  /api/points/*     Award operations
  /api/market/*     Catalog and redemptions
  /api/budget/*     Budget tracker
  /api/calories/*   Calorie tracker
  /api/leaderboard  Points-earned ranking
  /ws/chat          Live chat room (WebSocket)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kabayanhub/points-engine/auth"
	"github.com/kabayanhub/points-engine/chat"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	requireAuth := auth.RequireAuth(h.Auth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
			r.With(requireAuth).Post("/logout", h.Logout)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", h.Me)
			r.Get("/me/entries", h.MyEntries)
		})

		r.Route("/points", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/claim", h.ClaimAction)
			r.Post("/checkin", h.Checkin)
			r.Post("/quiz", h.Quiz)
		})

		r.Get("/leaderboard", h.Leaderboard)

		r.Route("/market", func(r chi.Router) {
			r.Get("/items", h.ListItems)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/items", h.CreateItem)
				r.Put("/items/{id}", h.UpdateItem)
				r.Post("/items/{id}/redeem", h.RedeemItem)
				r.Get("/redemptions", h.ListRedemptions)
				r.Post("/redemptions/{id}/redeem", h.MarkRedeemed)
			})
		})

		r.Route("/budget", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/entries", h.ListBudget)
			r.Post("/entries", h.CreateBudgetEntry)
			r.Delete("/entries/{id}", h.DeleteBudgetEntry)
			r.Get("/summary", h.BudgetSummary)
		})

		r.Route("/calories", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/entries", h.CreateCalorieEntry)
			r.Delete("/entries/{id}", h.DeleteCalorieEntry)
			r.Get("/summary", h.CalorieDay)
		})
	})

	r.With(requireAuth).Get("/ws/chat", chat.Handler(h.Hub))

	return r
}
