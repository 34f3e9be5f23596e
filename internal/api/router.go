// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"propshare-wallet/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(walletHandler *handler.WalletHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/wallet", func(r chi.Router) {
		r.Get("/", walletHandler.GetWallet)
		r.Get("/valuation", walletHandler.GetValuation)
		r.Post("/connect", walletHandler.Connect)
		r.Post("/disconnect", walletHandler.Disconnect)
		r.Post("/refresh", walletHandler.Refresh)
		r.Post("/credit", walletHandler.Credit)
		r.Post("/debit", walletHandler.Debit)
	})

	return r
}
