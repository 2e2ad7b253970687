// Package server exposes the HTTP API over chi.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielodicho/lumo/internal/auth"
	"github.com/danielodicho/lumo/internal/middleware"
	"github.com/danielodicho/lumo/internal/orchestrator"
	"github.com/danielodicho/lumo/internal/service"
	"github.com/danielodicho/lumo/internal/storage"
)

// Server wires the HTTP routes to the participant service, the orchestrator,
// and the record store.
type Server struct {
	participants *service.Participants
	orch         *orchestrator.Orchestrator
	store        storage.Store
	tokens       *auth.TokenManager
}

// New creates a server. A nil token manager disables authentication.
func New(participants *service.Participants, orch *orchestrator.Orchestrator, store storage.Store, tokens *auth.TokenManager) *Server {
	return &Server{
		participants: participants,
		orch:         orch,
		store:        store,
		tokens:       tokens,
	}
}

// Handler builds the full route tree with logging and CORS applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging, middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAuth(s.tokens))

		r.Route("/participants", func(r chi.Router) {
			r.Get("/", s.listParticipants)
			r.Post("/", s.createParticipant)
			r.Get("/{id}", s.getParticipant)
			r.Post("/{id}/payment-method", s.addPaymentMethod)
			r.Patch("/{id}/pledge", s.updatePledge)
			r.Delete("/{id}", s.deleteParticipant)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", s.processTransaction)
			r.Get("/", s.listTransactions)
			r.Get("/{id}", s.getTransaction)
			r.Delete("/{id}", s.deleteTransaction)
		})
	})

	return r
}
