/**
 * @description
 * This file sets up the HTTP router for the bank-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies the
 * middleware for logging, recovery, CORS and authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling for the back-office web client.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and returns the router for the bank-service. auth is the
// middleware that authenticates callers and stores their Principal.
func NewRouter(h *Handlers, auth func(http.Handler) http.Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"Link", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/transactions", h.CreateTransactionHandler)
		r.With(RequireRole(RoleAdmin)).Get("/transactions", h.ListTransactionsHandler)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccountsHandler)
			r.With(RequireRole(RoleAdmin)).Post("/", h.CreateAccountHandler)
			r.Get("/{id}", h.GetAccountHandler)
			r.Get("/{id}/transactions", h.ListAccountTransactionsHandler)
			r.With(RequireRole(RoleAdmin)).Post("/{id}/close", h.CloseAccountHandler)
			r.With(RequireRole(RoleAdmin)).Post("/{id}/adjustments", h.AdjustBalanceHandler)
		})

		r.Route("/account-types", func(r chi.Router) {
			r.Get("/", h.ListAccountTypesHandler)
			r.With(RequireRole(RoleAdmin)).Post("/", h.CreateAccountTypeHandler)
			r.With(RequireRole(RoleAdmin)).Put("/{id}", h.UpdateAccountTypeHandler)
			r.With(RequireRole(RoleAdmin)).Delete("/{id}", h.DeleteAccountTypeHandler)
		})

		r.Get("/currencies", h.ListCurrenciesHandler)
		r.With(RequireRole(RoleAdmin)).Post("/currencies", h.CreateCurrencyHandler)
	})

	return r
}
