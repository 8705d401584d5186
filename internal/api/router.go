// Package api exposes the portfolio service over HTTP and WebSocket.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tradesim/portfolio-engine/internal/metrics"
	"github.com/tradesim/portfolio-engine/internal/portfolio"
)

// RouterOptions tunes the HTTP surface.
type RouterOptions struct {
	RequestTimeout time.Duration // 0 disables the per-request timeout
}

// NewRouter wires every route onto a chi router. hub may be nil when live
// updates are not needed.
func NewRouter(svc *portfolio.Service, hub *WSHub, opts RouterOptions) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors)

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// The WebSocket route stays outside the timeout group: the
		// connection outlives any request deadline.
		if hub != nil {
			r.Get("/ws", hub.HandleWS)
		}

		r.Group(func(r chi.Router) {
			if opts.RequestTimeout > 0 {
				r.Use(middleware.Timeout(opts.RequestTimeout))
			}

			r.Get("/quotes", h.ListQuotes)
			r.Get("/quotes/{symbol}", h.GetQuote)

			r.Group(func(r chi.Router) {
				r.Use(h.requireReady)

				r.Get("/portfolio", h.GetPortfolio)
				r.Get("/portfolio/valuation", h.GetValuation)
				r.Get("/portfolio/cash-history", h.GetCashHistory)
				r.Get("/transactions", h.ListTransactions)

				r.Post("/portfolio/initialize", h.Initialize)
				r.Post("/trades/buy", h.Buy)
				r.Post("/trades/sell", h.Sell)
				r.Post("/cash/deposit", h.Deposit)
				r.Post("/cash/withdraw", h.Withdraw)
			})
		})
	})

	return r
}

// cors allows browser frontends on other origins.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
