package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/api"
	"github.com/tradesim/portfolio-engine/internal/gateway"
	"github.com/tradesim/portfolio-engine/internal/ledger"
	"github.com/tradesim/portfolio-engine/internal/model"
	"github.com/tradesim/portfolio-engine/internal/portfolio"
	"github.com/tradesim/portfolio-engine/internal/quote"
	"github.com/tradesim/portfolio-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type testEnv struct {
	svc    *portfolio.Service
	gw     *gateway.Gateway
	store  *store.MemoryStore
	quotes *quote.StaticProvider
	router chi.Router
}

// newTestEnv creates a router over an in-memory store. The ledger is
// hydrated unless hydrate is false.
func newTestEnv(t *testing.T, hydrate bool) *testEnv {
	t.Helper()
	ms := store.NewMemoryStore()
	quotes := quote.NewStaticProvider(model.Quote{Symbol: "TCS", Name: "Tata Consultancy Services", Price: d(3450.5)})
	state := ledger.NewState()
	gw := gateway.New(ms, state)
	svc := portfolio.NewService(state, gw, portfolio.Options{InitialCash: d(1000000), Quotes: quotes})

	if hydrate {
		if err := gw.Hydrate(context.Background()); err != nil {
			t.Fatalf("hydrate: %v", err)
		}
	}

	return &testEnv{
		svc:    svc,
		gw:     gw,
		store:  ms,
		quotes: quotes,
		router: api.NewRouter(svc, nil, api.RouterOptions{}),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type opResponse struct {
	Result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"result"`
	Portfolio model.Snapshot `json:"portfolio"`
}

func decodeOp(t *testing.T, w *httptest.ResponseRecorder) opResponse {
	t.Helper()
	var resp opResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, w.Body.String())
	}
	return resp
}

func (e *testEnv) initialize(t *testing.T, amount float64) {
	t.Helper()
	w := e.do(t, "POST", "/api/v1/portfolio/initialize", api.AmountRequest{Amount: d(amount)})
	if w.Code != http.StatusOK {
		t.Fatalf("initialize: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func price(f float64) *decimal.Decimal {
	p := d(f)
	return &p
}

// --- Trade tests ---

func TestBuyAndSell(t *testing.T) {
	env := newTestEnv(t, true)
	env.initialize(t, 1000000)

	w := env.do(t, "POST", "/api/v1/trades/buy", api.TradeRequest{Symbol: "TCS", Quantity: 10, Price: price(3000)})
	if w.Code != http.StatusOK {
		t.Fatalf("buy: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeOp(t, w)
	if !resp.Result.Success || resp.Result.Message != "Successfully purchased 10 shares of TCS." {
		t.Errorf("unexpected result %+v", resp.Result)
	}
	if !resp.Portfolio.Cash.Decimal.Equal(d(970000)) {
		t.Errorf("expected cash 970000, got %s", resp.Portfolio.Cash.Decimal)
	}

	w = env.do(t, "POST", "/api/v1/trades/sell", api.TradeRequest{Symbol: "TCS", Quantity: 10, Price: price(3500)})
	if w.Code != http.StatusOK {
		t.Fatalf("sell: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp = decodeOp(t, w)
	if !resp.Portfolio.Cash.Decimal.Equal(d(1005000)) || len(resp.Portfolio.Holdings) != 0 {
		t.Errorf("unexpected portfolio after sell %+v", resp.Portfolio)
	}
}

func TestBuy_PriceFromQuote(t *testing.T) {
	env := newTestEnv(t, true)
	env.initialize(t, 1000000)

	w := env.do(t, "POST", "/api/v1/trades/buy", api.TradeRequest{Symbol: "tcs", Quantity: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeOp(t, w)
	h, ok := resp.Portfolio.Holding("TCS")
	if !ok || !h.AvgPrice.Equal(d(3450.5)) {
		t.Errorf("expected fill at quoted 3450.5, got %+v", h)
	}
}

func TestBuy_NoQuoteRejected(t *testing.T) {
	env := newTestEnv(t, true)
	env.initialize(t, 1000000)

	w := env.do(t, "POST", "/api/v1/trades/buy", api.TradeRequest{Symbol: "WIPRO", Quantity: 1})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeOp(t, w); resp.Result.Reason != "invalid_price" {
		t.Errorf("expected invalid_price, got %q", resp.Result.Reason)
	}
}

func TestBuy_InsufficientFunds(t *testing.T) {
	env := newTestEnv(t, true)
	env.initialize(t, 100)

	w := env.do(t, "POST", "/api/v1/trades/buy", api.TradeRequest{Symbol: "TCS", Quantity: 1, Price: price(3000)})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	resp := decodeOp(t, w)
	if resp.Result.Success || resp.Result.Reason != "insufficient_funds" ||
		resp.Result.Message != "Not enough cash to complete purchase." {
		t.Errorf("unexpected result %+v", resp.Result)
	}
	if !resp.Portfolio.Cash.Decimal.Equal(d(100)) {
		t.Errorf("cash must be unchanged, got %s", resp.Portfolio.Cash.Decimal)
	}
}

func TestSell_InsufficientShares(t *testing.T) {
	env := newTestEnv(t, true)
	env.initialize(t, 100000)
	env.do(t, "POST", "/api/v1/trades/buy", api.TradeRequest{Symbol: "TCS", Quantity: 5, Price: price(3000)})

	w := env.do(t, "POST", "/api/v1/trades/sell", api.TradeRequest{Symbol: "TCS", Quantity: 6, Price: price(3000)})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if resp := decodeOp(t, w); resp.Result.Message != "You only own 5 shares of TCS." {
		t.Errorf("unexpected message %q", resp.Result.Message)
	}
}

func TestTrade_MalformedInput(t *testing.T) {
	env := newTestEnv(t, true)
	env.initialize(t, 1000)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing symbol", `{"quantity": 1, "price": 10}`},
		{"fractional quantity", `{"symbol": "TCS", "quantity": 1.5, "price": 10}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/trades/buy", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

// --- Cash tests ---

func TestDepositAndWithdraw(t *testing.T) {
	env := newTestEnv(t, true)
	env.initialize(t, 1000)

	w := env.do(t, "POST", "/api/v1/cash/deposit", api.AmountRequest{Amount: d(250.5)})
	if w.Code != http.StatusOK {
		t.Fatalf("deposit: expected 200, got %d", w.Code)
	}

	w = env.do(t, "POST", "/api/v1/cash/withdraw", api.AmountRequest{Amount: d(2000)})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("withdraw: expected 422, got %d", w.Code)
	}

	w = env.do(t, "POST", "/api/v1/cash/withdraw", api.AmountRequest{Amount: d(1250.5)})
	if w.Code != http.StatusOK {
		t.Fatalf("withdraw: expected 200, got %d", w.Code)
	}
	if resp := decodeOp(t, w); !resp.Portfolio.Cash.Decimal.IsZero() {
		t.Errorf("expected zero cash, got %s", resp.Portfolio.Cash.Decimal)
	}

	w = env.do(t, "POST", "/api/v1/cash/deposit", api.AmountRequest{Amount: d(0)})
	if resp := decodeOp(t, w); w.Code != http.StatusUnprocessableEntity || resp.Result.Reason != "invalid_amount" {
		t.Errorf("expected invalid_amount 422, got %d %+v", w.Code, resp.Result)
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	env := newTestEnv(t, true)
	env.initialize(t, 1000)
	env.initialize(t, 5000)

	w := env.do(t, "GET", "/api/v1/portfolio", nil)
	var snap model.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if !snap.Cash.Decimal.Equal(d(1000)) {
		t.Errorf("second initialize must be a no-op, got cash %s", snap.Cash.Decimal)
	}
}

// --- Hydration gating ---

func TestNotReady_Returns503(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{"/api/v1/portfolio", "/api/v1/transactions"} {
		if w := env.do(t, "GET", path, nil); w.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s: expected 503, got %d", path, w.Code)
		}
	}
	w := env.do(t, "POST", "/api/v1/trades/buy", api.TradeRequest{Symbol: "TCS", Quantity: 1, Price: price(1)})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("POST buy: expected 503, got %d", w.Code)
	}
	if env.store.Saves() != 0 {
		t.Error("nothing may be saved before hydration")
	}

	// Quotes do not depend on the ledger.
	if w := env.do(t, "GET", "/api/v1/quotes/TCS", nil); w.Code != http.StatusOK {
		t.Errorf("quote: expected 200, got %d", w.Code)
	}

	env.gw.Hydrate(context.Background())
	if w := env.do(t, "GET", "/api/v1/portfolio", nil); w.Code != http.StatusOK {
		t.Errorf("after hydration: expected 200, got %d", w.Code)
	}
}

// --- Queries ---

func TestValuationAndHistory(t *testing.T) {
	env := newTestEnv(t, true)
	env.initialize(t, 1000000)
	env.do(t, "POST", "/api/v1/trades/buy", api.TradeRequest{Symbol: "TCS", Quantity: 10, Price: price(3000)})
	env.do(t, "POST", "/api/v1/trades/buy", api.TradeRequest{Symbol: "INFY", Quantity: 4, Price: price(1500)})

	w := env.do(t, "GET", "/api/v1/portfolio/valuation", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("valuation: expected 200, got %d", w.Code)
	}
	var v model.Valuation
	json.NewDecoder(w.Body).Decode(&v)
	if !v.HoldingsValue.Equal(d(34505)) {
		t.Errorf("expected holdings value 34505, got %s", v.HoldingsValue)
	}
	if !v.TotalValue.Equal(d(1000000 - 30000 - 6000 + 34505)) {
		t.Errorf("unexpected total value %s", v.TotalValue)
	}

	w = env.do(t, "GET", "/api/v1/portfolio/cash-history", nil)
	var points []model.CashPoint
	json.NewDecoder(w.Body).Decode(&points)
	if len(points) != 3 || points[2].Label != "Trade #2" || !points[2].Cash.Equal(d(964000)) {
		t.Errorf("unexpected cash history %+v", points)
	}

	w = env.do(t, "GET", "/api/v1/transactions?symbol=infy", nil)
	var txs []model.Transaction
	json.NewDecoder(w.Body).Decode(&txs)
	if len(txs) != 1 || txs[0].Symbol != "INFY" {
		t.Errorf("expected only INFY transactions, got %+v", txs)
	}

	w = env.do(t, "GET", "/api/v1/transactions", nil)
	txs = nil
	json.NewDecoder(w.Body).Decode(&txs)
	if len(txs) != 2 || txs[0].Symbol != "INFY" {
		t.Errorf("expected newest first, got %+v", txs)
	}
}

func TestValuation_CamelCaseFields(t *testing.T) {
	env := newTestEnv(t, true)
	env.initialize(t, 1000000)
	env.do(t, "POST", "/api/v1/trades/buy", api.TradeRequest{Symbol: "TCS", Quantity: 2, Price: price(3000)})

	var raw map[string]json.RawMessage
	w := env.do(t, "GET", "/api/v1/portfolio/valuation", nil)
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, k := range []string{"cash", "positions", "holdingsValue", "totalValue", "unrealizedPnl", "realizedPnl"} {
		if _, ok := raw[k]; !ok {
			t.Errorf("valuation missing %q", k)
		}
	}

	var positions []map[string]json.RawMessage
	if err := json.Unmarshal(raw["positions"], &positions); err != nil || len(positions) != 1 {
		t.Fatalf("expected one position, got %s err=%v", raw["positions"], err)
	}
	for _, k := range []string{"symbol", "quantity", "avgPrice", "currentPrice", "costBasis", "marketValue", "unrealizedPnl", "quoted"} {
		if _, ok := positions[0][k]; !ok {
			t.Errorf("position missing %q", k)
		}
	}
}

func TestQuotes(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(t, "GET", "/api/v1/quotes/tcs", nil)
	var q model.Quote
	json.NewDecoder(w.Body).Decode(&q)
	if w.Code != http.StatusOK || !q.Price.Equal(d(3450.5)) {
		t.Errorf("expected TCS quote, got %d %+v", w.Code, q)
	}

	if w := env.do(t, "GET", "/api/v1/quotes/NOPE", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w = env.do(t, "GET", "/api/v1/quotes", nil)
	var all []model.Quote
	json.NewDecoder(w.Body).Decode(&all)
	if len(all) != 1 {
		t.Errorf("expected 1 quote, got %d", len(all))
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, "GET", "/health", nil)
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if w.Code != http.StatusOK || body["status"] != "ok" || body["ready"] != false {
		t.Errorf("unexpected health response %d %v", w.Code, body)
	}
}
