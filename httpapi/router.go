package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"splitpay/auth"
)

// NewRouter wires all endpoints. Everything except health, metrics and
// session creation sits behind the session middleware.
func NewRouter(server *Server, sessions *auth.SessionManager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)

	r.Get("/healthz", server.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/auth/session", server.handleCreateSession)

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(sessions))

		r.Post("/auth/logout", server.handleLogout)

		r.Post("/expenses", server.handleCreateExpense)
		r.Get("/expenses", server.handleListExpenses)
		r.Get("/expenses/{id}", server.handleGetExpense)

		r.Get("/balances", server.handleGetBalances)
		r.Get("/balances/suggestions", server.handleGetSuggestions)

		r.Post("/settlements", server.handleCreateSettlement)
		r.Get("/settlements", server.handleListSettlements)
		r.Get("/settlements/{id}", server.handleGetSettlement)
		r.Post("/settlements/{id}/approve", server.handleApproveSettlement)
		r.Post("/settlements/{id}/complete", server.handleCompleteSettlement)

		r.Get("/activities", server.handleListActivities)
	})

	return r
}
