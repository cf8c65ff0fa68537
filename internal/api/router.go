/**
 * @description
 * This file sets up the HTTP router for walletd. It defines the wallet
 * endpoints, associates them with their handlers, and applies the session,
 * CSRF and role middleware.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/transfa/wallet-desk/internal/domain"
)

// RouterOptions configures the wallet router.
type RouterOptions struct {
	JWTSecret      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// WalletRoutes creates and returns the router for walletd.
func WalletRoutes(h *WalletHandlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CSRFHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(opts.JWTSecret))
		r.Use(CSRFMiddleware(h.csrfSecret))

		r.Get("/session", h.SessionHandler)
		r.Get("/contacts/list", h.ListContactsHandler)
		r.Post("/contacts/wallets/transfer", h.TransferHandler)

		r.Route("/contacts/{id}/wallet", func(r chi.Router) {
			r.Get("/balance", h.GetBalanceHandler)
			r.Get("/transactions", h.ListTransactionsHandler)

			r.Group(func(r chi.Router) {
				r.Use(RequireAnyRole(domain.RoleAdmin, domain.RoleManager))
				r.Post("/add-funds", h.AddFundsHandler)
				r.Post("/deduct-funds", h.DeductFundsHandler)
			})
		})
	})

	return r
}
