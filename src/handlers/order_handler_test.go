package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"crossbook/src/config"
	"crossbook/src/engine"
	"crossbook/src/handlers"
	"crossbook/src/logger"
	"crossbook/src/models"
	"crossbook/src/routes"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                   "8080",
		RequestLoggingDisabled: true,
		RateLimitDisabled:      true,
		OrderbookDefaultDepth:  10,
		OrderbookMaxDepth:      1000,
		MetricsMaxLatencies:    1000,
		RateLimitMax:           100,
		RateLimitWindow:        time.Second,
	}
}

func setupTestApp() *fiber.App {
	logger.InitLogger("warn", "", "")

	cfg := testConfig()
	eng := engine.NewEngine(nil)
	processor := engine.NewProcessor(eng)
	orderHandler := handlers.NewOrderHandler(processor, eng, nil, cfg)

	app := fiber.New()
	routes.SetupRoutes(app, orderHandler, cfg)
	return app
}

func postOrder(t *testing.T, app *fiber.App, body map[string]interface{}) (*http.Response, models.SubmitOrderResponse) {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var out models.SubmitOrderResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestSubmitLimitOrderRests(t *testing.T) {
	app := setupTestApp()

	resp, out := postOrder(t, app, map[string]interface{}{
		"market": "USD-EUR",
		"sender": "alice",
		"side":   "BUY",
		"price":  10000,
		"size":   100,
	})

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected status 201, got: %d", resp.StatusCode)
	}
	if out.Status != string(engine.StatusNew) {
		t.Errorf("Expected status NEW, got: %s", out.Status)
	}
	if out.OrderID == "" {
		t.Error("Expected an order id")
	}
	if out.RemainingSize != 100 {
		t.Errorf("Expected remaining 100, got: %d", out.RemainingSize)
	}
}

func TestSubmitInvalidOrder(t *testing.T) {
	app := setupTestApp()

	cases := []map[string]interface{}{
		{"market": "USD-EUR", "side": "BUY", "price": 100, "size": 0},
		{"market": "USD-EUR", "side": "HOLD", "price": 100, "size": 10},
		{"market": "", "side": "SELL", "price": 100, "size": 10},
		{"market": "USD-EUR", "side": "SELL", "price": -1, "size": 10},
	}
	for _, body := range cases {
		resp, _ := postOrder(t, app, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400 for %v, got: %d", body, resp.StatusCode)
		}
	}
}

func TestSubmitCrossingOrders(t *testing.T) {
	app := setupTestApp()

	postOrder(t, app, map[string]interface{}{
		"market": "USD-EUR", "sender": "alice", "side": "SELL", "price": 10000, "size": 100,
	})
	resp, out := postOrder(t, app, map[string]interface{}{
		"market": "USD-EUR", "sender": "bob", "side": "BUY", "price": 10000, "size": 100,
	})

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got: %d", resp.StatusCode)
	}
	if out.Status != string(engine.StatusFilled) {
		t.Errorf("Expected status FILLED, got: %s", out.Status)
	}
	if len(out.Trades) != 1 {
		t.Fatalf("Expected 1 trade, got: %d", len(out.Trades))
	}
	if out.Trades[0].Price != 10000 || out.Trades[0].Size != 100 {
		t.Errorf("Expected trade 100@10000, got: %d@%d", out.Trades[0].Size, out.Trades[0].Price)
	}
}

func TestSubmitMarketOrderNoLiquidity(t *testing.T) {
	app := setupTestApp()

	resp, out := postOrder(t, app, map[string]interface{}{
		"market": "USD-EUR", "sender": "bob", "side": "BUY", "price": 0, "size": 50,
	})

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got: %d", resp.StatusCode)
	}
	if out.Status != string(engine.StatusCancelled) {
		t.Errorf("Unfillable market order must report CANCELLED, got: %s", out.Status)
	}
	if len(out.Trades) != 0 {
		t.Errorf("Expected no trades, got: %d", len(out.Trades))
	}
}

func TestOrderBookEndpoint(t *testing.T) {
	app := setupTestApp()

	postOrder(t, app, map[string]interface{}{
		"market": "USD-EUR", "side": "BUY", "price": 9900, "size": 40,
	})
	postOrder(t, app, map[string]interface{}{
		"market": "USD-EUR", "side": "BUY", "price": 9900, "size": 10,
	})
	postOrder(t, app, map[string]interface{}{
		"market": "USD-EUR", "side": "SELL", "price": 10100, "size": 25,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orderbook/USD-EUR", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", resp.StatusCode)
	}

	var book models.OrderBookResponse
	_ = json.NewDecoder(resp.Body).Decode(&book)
	if len(book.Bids) != 1 || book.Bids[0].Price != 9900 || book.Bids[0].Size != 50 {
		t.Errorf("Expected one bid level 50@9900, got: %+v", book.Bids)
	}
	if len(book.Asks) != 1 || book.Asks[0].Price != 10100 || book.Asks[0].Size != 25 {
		t.Errorf("Expected one ask level 25@10100, got: %+v", book.Asks)
	}
}

func TestBestPricesEndpoint(t *testing.T) {
	app := setupTestApp()

	postOrder(t, app, map[string]interface{}{
		"market": "USD-EUR", "side": "BUY", "price": 9900, "size": 10,
	})
	postOrder(t, app, map[string]interface{}{
		"market": "USD-EUR", "side": "SELL", "price": 10100, "size": 10,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orderbook/USD-EUR/best", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var best models.BestPricesResponse
	_ = json.NewDecoder(resp.Body).Decode(&best)
	if best.Bid == nil || *best.Bid != 9900 {
		t.Errorf("Expected bid 9900, got: %v", best.Bid)
	}
	if best.Ask == nil || *best.Ask != 10100 {
		t.Errorf("Expected ask 10100, got: %v", best.Ask)
	}
}

func TestCancelOrderEndpoint(t *testing.T) {
	app := setupTestApp()

	_, out := postOrder(t, app, map[string]interface{}{
		"market": "USD-EUR", "side": "BUY", "price": 9900, "size": 10,
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/orders/"+out.OrderID, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got: %d", resp.StatusCode)
	}

	// edge case: without an archive the order is simply gone afterwards
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/orders/"+out.OrderID, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got: %d", resp.StatusCode)
	}
}

func TestGetOrderStatusEndpoint(t *testing.T) {
	app := setupTestApp()

	_, out := postOrder(t, app, map[string]interface{}{
		"market": "USD-EUR", "sender": "alice", "side": "SELL", "price": 10100, "size": 10,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+out.OrderID, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", resp.StatusCode)
	}
	var status models.OrderStatusResponse
	_ = json.NewDecoder(resp.Body).Decode(&status)
	if status.Status != string(engine.StatusNew) || status.Sender != "alice" {
		t.Errorf("Unexpected status payload: %+v", status)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/orders/unknown", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown order, got: %d", resp.StatusCode)
	}
}

func TestTradesEndpointDisabledWithoutStore(t *testing.T) {
	app := setupTestApp()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trades/USD-EUR", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got: %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", resp.StatusCode)
	}
	var health models.HealthResponse
	_ = json.NewDecoder(resp.Body).Decode(&health)
	if health.Status != "healthy" {
		t.Errorf("Expected healthy, got: %s", health.Status)
	}
}
