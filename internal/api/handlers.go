package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/ledger"
	"github.com/tradesim/portfolio-engine/internal/model"
	"github.com/tradesim/portfolio-engine/internal/portfolio"
	"github.com/tradesim/portfolio-engine/internal/quote"
)

// Handler serves the portfolio operations.
type Handler struct {
	svc *portfolio.Service
}

// NewHandler creates a handler over svc.
func NewHandler(svc *portfolio.Service) *Handler {
	return &Handler{svc: svc}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trades/buy and /trades/sell.
// When Price is omitted the current quote is used.
type TradeRequest struct {
	Symbol   string           `json:"symbol"`
	Quantity int64            `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// AmountRequest is the JSON body for initialize, deposit and withdraw.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// OperationResponse is returned from every mutating endpoint, accepted or
// rejected, along with the ledger as it stands afterwards.
type OperationResponse struct {
	Result    ledger.Result  `json:"result"`
	Portfolio model.Snapshot `json:"portfolio"`
}

// --- HTTP Handlers ---

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "portfolio-engine",
		"ready":   h.svc.Ready(),
	})
}

// GetPortfolio handles GET /api/v1/portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot())
}

// GetValuation handles GET /api/v1/portfolio/valuation
func (h *Handler) GetValuation(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Valuation(r.Context())
	if err != nil {
		slog.Error("valuation failed", "err", err)
		writeError(w, "failed to value portfolio", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetCashHistory handles GET /api/v1/portfolio/cash-history
func (h *Handler) GetCashHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CashHistory())
}

// ListTransactions handles GET /api/v1/transactions
// Newest first, optionally filtered by ?symbol=.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := h.svc.Snapshot().Transactions
	sym := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))

	out := make([]model.Transaction, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		if sym == "" || txs[i].Symbol == sym {
			out = append(out, txs[i])
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Initialize handles POST /api/v1/portfolio/initialize
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	h.amountOp(w, r, h.svc.Initialize)
}

// Deposit handles POST /api/v1/cash/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.amountOp(w, r, h.svc.AddCash)
}

// Withdraw handles POST /api/v1/cash/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.amountOp(w, r, h.svc.WithdrawCash)
}

// Buy handles POST /api/v1/trades/buy
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	h.tradeOp(w, r, h.svc.Buy)
}

// Sell handles POST /api/v1/trades/sell
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	h.tradeOp(w, r, h.svc.Sell)
}

// GetQuote handles GET /api/v1/quotes/{symbol}
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	sym := chi.URLParam(r, "symbol")

	q, err := h.svc.Quote(r.Context(), sym)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, q)
	case errors.Is(err, quote.ErrNoQuote):
		writeError(w, "no quote for symbol: "+sym, http.StatusNotFound)
	case errors.Is(err, portfolio.ErrNoQuoteProvider):
		writeError(w, "quotes are not configured", http.StatusNotFound)
	default:
		slog.Warn("quote lookup failed", "symbol", sym, "err", err)
		writeError(w, "quote provider unavailable", http.StatusBadGateway)
	}
}

// ListQuotes handles GET /api/v1/quotes
func (h *Handler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.svc.Quotes(r.Context())
	if err != nil {
		if errors.Is(err, portfolio.ErrNoQuoteProvider) {
			writeError(w, "quote listing is not available", http.StatusNotFound)
			return
		}
		slog.Warn("quote listing failed", "err", err)
		writeError(w, "quote provider unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

type amountFunc func(context.Context, decimal.Decimal) (ledger.Result, error)

type tradeFunc func(context.Context, string, int64, decimal.Decimal) (ledger.Result, error)

func (h *Handler) amountOp(w http.ResponseWriter, r *http.Request, op amountFunc) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := op(r.Context(), req.Amount)
	h.writeOutcome(w, res, err)
}

func (h *Handler) tradeOp(w http.ResponseWriter, r *http.Request, op tradeFunc) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}

	var price decimal.Decimal
	if req.Price != nil {
		price = *req.Price
	} else {
		q, err := h.svc.Quote(r.Context(), req.Symbol)
		switch {
		case err == nil:
			price = q.Price
		case errors.Is(err, quote.ErrNoQuote), errors.Is(err, portfolio.ErrNoQuoteProvider):
			res := ledger.Reject(ledger.ErrInvalidPrice,
				fmt.Sprintf("No market price available for %s.", strings.ToUpper(req.Symbol)))
			h.writeOutcome(w, res, nil)
			return
		default:
			slog.Warn("quote lookup failed", "symbol", req.Symbol, "err", err)
			writeError(w, "quote provider unavailable", http.StatusBadGateway)
			return
		}
	}

	res, err := op(r.Context(), req.Symbol, req.Quantity, price)
	h.writeOutcome(w, res, err)
}

// writeOutcome maps a service outcome onto HTTP: 200 accepted, 422
// rejected by ledger rules, 503 not hydrated, 500 storage failure.
func (h *Handler) writeOutcome(w http.ResponseWriter, res ledger.Result, err error) {
	if err != nil {
		if errors.Is(err, portfolio.ErrNotReady) {
			writeError(w, "portfolio is still loading", http.StatusServiceUnavailable)
			return
		}
		writeError(w, "failed to persist portfolio", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, OperationResponse{Result: res, Portfolio: h.svc.Snapshot()})
}

func (h *Handler) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.svc.Ready() {
			w.Header().Set("Retry-After", "1")
			writeError(w, "portfolio is still loading", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
