package handlers

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"crossbook/src/config"
	"crossbook/src/engine"
	"crossbook/src/models"
	"crossbook/src/store"
)

type OrderHandler struct {
	Processor *engine.Processor
	Engine    *engine.Engine
	Store     *store.Store // nil disables the ledger endpoints
	StartTime time.Time

	drainOnSubmit bool
	defaultDepth  int
	maxDepth      int

	OrdersReceived  int64
	OrdersMatched   int64
	OrdersCancelled int64
	TradesExecuted  int64

	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int
}

func NewOrderHandler(processor *engine.Processor, eng *engine.Engine, st *store.Store, cfg *config.Config) *OrderHandler {
	return &OrderHandler{
		Processor:     processor,
		Engine:        eng,
		Store:         st,
		StartTime:     time.Now(),
		drainOnSubmit: cfg.DrainInterval <= 0,
		defaultDepth:  cfg.OrderbookDefaultDepth,
		maxDepth:      cfg.OrderbookMaxDepth,
		latencies:     make([]time.Duration, 0, cfg.MetricsMaxLatencies),
		maxLatencies:  cfg.MetricsMaxLatencies,
	}
}

func (h *OrderHandler) SubmitOrder(c *fiber.Ctx) error {
	var req models.SubmitOrderRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	draft := engine.OrderDraft{
		Market:    req.Market,
		Sender:    req.Sender,
		Side:      engine.OrderSide(req.Side),
		Price:     req.Price,
		Size:      req.Size,
		Signature: req.Signature,
	}

	order, err := h.Processor.Submit(draft)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			log.Warn().
				Err(err).
				Str("market", req.Market).
				Str("side", req.Side).
				Str("ip", c.IP()).
				Msg("Invalid order request")
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: err.Error(),
			})
		}
		log.Error().Err(err).Str("market", req.Market).Msg("Order submission failed")
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
		})
	}

	atomic.AddInt64(&h.OrdersReceived, 1)

	log.Info().
		Str("order_id", order.ID).
		Str("market", order.Market).
		Str("side", string(order.Side)).
		Int64("price", order.Price).
		Int64("size", order.Size).
		Uint64("seq", order.Seq).
		Str("ip", c.IP()).
		Msg("Order submitted")

	if !h.drainOnSubmit {
		// the periodic drain job will pick it up
		return c.Status(fiber.StatusAccepted).JSON(models.SubmitOrderResponse{
			OrderID:       order.ID,
			Status:        string(order.GetStatus()),
			Message:       "Order queued for matching",
			RemainingSize: order.Size,
		})
	}

	start := time.Now()
	result, err := h.Processor.Drain(order.Market)
	h.recordLatency(time.Since(start))
	h.archiveOrders(result)

	if err != nil {
		log.Error().
			Err(err).
			Str("order_id", order.ID).
			Str("market", order.Market).
			Msg("Matching pass failed")
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
		})
	}

	trades := make([]models.TradeInfo, 0)
	for _, trade := range result.Trades {
		if trade.BuyOrderID != order.ID && trade.SellOrderID != order.ID {
			continue
		}
		trades = append(trades, tradeInfo(trade))
	}

	status := order.GetStatus()
	response := models.SubmitOrderResponse{
		OrderID:       order.ID,
		Status:        string(status),
		FilledSize:    order.GetFilled(),
		RemainingSize: order.Remaining(),
		Trades:        trades,
	}

	if status == engine.StatusPartialFill || status == engine.StatusFilled {
		atomic.AddInt64(&h.OrdersMatched, 1)
	}
	atomic.AddInt64(&h.TradesExecuted, int64(len(trades)))

	log.Info().
		Str("order_id", order.ID).
		Str("status", string(status)).
		Int64("filled_size", response.FilledSize).
		Int64("remaining_size", response.RemainingSize).
		Int("trades_count", len(trades)).
		Msg("Order processed")

	switch status {
	case engine.StatusNew, engine.StatusUpdated:
		response.Message = "Order resting on book"
		return c.Status(fiber.StatusCreated).JSON(response)
	case engine.StatusPartialFill:
		if order.Price != 0 {
			response.Message = "Order partially filled, remainder resting on book"
			return c.Status(fiber.StatusCreated).JSON(response)
		}
		response.Message = "Market order partially filled, remainder cancelled"
		return c.Status(fiber.StatusOK).JSON(response)
	case engine.StatusCancelled:
		response.Message = "Market order cancelled: no crossable liquidity"
		return c.Status(fiber.StatusOK).JSON(response)
	default:
		return c.Status(fiber.StatusOK).JSON(response)
	}
}

func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	order, ok := h.Processor.Cancel(orderID)
	if !ok {
		// edge case: cannot cancel an order that already reached a terminal
		// state, whether still indexed or archived
		if order == nil {
			order = h.lookupArchived(orderID)
		}
		if order != nil {
			log.Warn().
				Str("order_id", orderID).
				Str("status", string(order.GetStatus())).
				Msg("Cancel order: order already terminal")
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: "Cannot cancel: order already " + string(order.GetStatus()),
			})
		}
		log.Warn().
			Str("order_id", orderID).
			Str("ip", c.IP()).
			Msg("Cancel order: order not found")
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Order not found",
		})
	}

	h.archiveOrder(order)
	atomic.AddInt64(&h.OrdersCancelled, 1)

	log.Info().
		Str("order_id", orderID).
		Str("market", order.Market).
		Str("ip", c.IP()).
		Msg("Order cancelled")

	return c.Status(fiber.StatusOK).JSON(models.CancelOrderResponse{
		OrderID: orderID,
		Status:  string(engine.StatusCancelled),
	})
}

func (h *OrderHandler) GetOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")

	order, found := h.Processor.Waiting(orderID)
	if !found {
		order, found = h.Engine.FindOrder(orderID)
	}
	if !found {
		if order = h.lookupArchived(orderID); order != nil {
			found = true
		}
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Order not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.OrderStatusResponse{
		OrderID:    order.ID,
		Market:     order.Market,
		Sender:     order.Sender,
		Side:       string(order.Side),
		Price:      order.Price,
		Size:       order.Size,
		FilledSize: order.GetFilled(),
		Status:     string(order.GetStatus()),
		Timestamp:  order.CreatedAt,
	})
}

func (h *OrderHandler) GetOrderBook(c *fiber.Ctx) error {
	market := c.Params("market")
	depth := c.QueryInt("depth", h.defaultDepth)
	if depth <= 0 {
		depth = h.defaultDepth
	}
	// edge case: enforce maximum depth limit
	if depth > h.maxDepth {
		depth = h.maxDepth
	}

	bids := levelInfo(h.Engine.Level2(market, engine.SideBuy, depth))
	asks := levelInfo(h.Engine.Level2(market, engine.SideSell, depth))

	return c.Status(fiber.StatusOK).JSON(models.OrderBookResponse{
		Market:    market,
		Timestamp: time.Now().UnixMilli(),
		Bids:      bids,
		Asks:      asks,
	})
}

func (h *OrderHandler) GetBestPrices(c *fiber.Ctx) error {
	market := c.Params("market")

	bid, hasBid, ask, hasAsk := h.Engine.BestPrices(market)
	response := models.BestPricesResponse{Market: market}
	if hasBid {
		response.Bid = &bid
	}
	if hasAsk {
		response.Ask = &ask
	}
	return c.Status(fiber.StatusOK).JSON(response)
}

func (h *OrderHandler) GetTrades(c *fiber.Ctx) error {
	if h.Store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Trade history is disabled",
		})
	}

	market := c.Params("market")
	limit := c.QueryInt("limit", 100)
	if limit <= 0 {
		limit = 100
	}

	trades, err := h.Store.TradesByMarket(market, limit)
	if err != nil {
		log.Error().Err(err).Str("market", market).Msg("Failed to read trade ledger")
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
		})
	}

	out := make([]models.TradeInfo, 0, len(trades))
	for _, trade := range trades {
		out = append(out, tradeInfo(trade))
	}
	return c.Status(fiber.StatusOK).JSON(models.TradesResponse{
		Market: market,
		Trades: out,
	})
}

func (h *OrderHandler) HealthCheck(c *fiber.Ctx) error {
	uptime := time.Since(h.StartTime).Seconds()

	var resting int64
	for _, book := range h.Engine.Books() {
		resting += int64(book.Resting())
	}

	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(uptime),
		OrdersResting: resting,
		OrdersWaiting: int64(h.Processor.WaitingCount()),
	})
}

func (h *OrderHandler) Metrics(c *fiber.Ctx) error {
	var resting int64
	for _, book := range h.Engine.Books() {
		resting += int64(book.Resting())
	}

	p50, p99, p999 := h.latencyPercentiles()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		OrdersReceived:         atomic.LoadInt64(&h.OrdersReceived),
		OrdersMatched:          atomic.LoadInt64(&h.OrdersMatched),
		OrdersCancelled:        atomic.LoadInt64(&h.OrdersCancelled),
		OrdersResting:          resting,
		TradesExecuted:         atomic.LoadInt64(&h.TradesExecuted),
		LatencyP50Ms:           p50,
		LatencyP99Ms:           p99,
		LatencyP999Ms:          p999,
		ThroughputOrdersPerSec: h.throughput(),
	})
}

// archiveOrders persists the state of every order a drain touched.
func (h *OrderHandler) archiveOrders(result *engine.DrainResult) {
	if h.Store == nil || result == nil {
		return
	}
	for _, order := range result.Orders {
		h.archiveOrder(order)
	}
}

func (h *OrderHandler) archiveOrder(order *engine.Order) {
	if h.Store == nil {
		return
	}
	if err := h.Store.PutOrder(order); err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("Failed to archive order")
	}
}

func (h *OrderHandler) lookupArchived(orderID string) *engine.Order {
	if h.Store == nil {
		return nil
	}
	order, found, err := h.Store.GetOrder(orderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("Failed to read order archive")
		return nil
	}
	if !found {
		return nil
	}
	return order
}

func tradeInfo(t *engine.Trade) models.TradeInfo {
	return models.TradeInfo{
		TradeID:     t.ID,
		Price:       t.Price,
		Size:        t.Size,
		Side:        string(t.Side),
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Timestamp:   t.CreatedAt,
	}
}

func levelInfo(levels []engine.Level) []models.PriceLevelInfo {
	out := make([]models.PriceLevelInfo, 0, len(levels))
	for _, level := range levels {
		out = append(out, models.PriceLevelInfo{Price: level.Price, Size: level.Size})
	}
	return out
}

func (h *OrderHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		h.latencies = h.latencies[len(h.latencies)-h.maxLatencies:]
	}
}

func (h *OrderHandler) latencyPercentiles() (p50, p99, p999 float64) {
	h.latenciesMu.RLock()
	defer h.latenciesMu.RUnlock()

	if len(h.latencies) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(h.latencies))
	copy(sorted, h.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	at := func(q float64) float64 {
		idx := int(float64(len(sorted)) * q)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return float64(sorted[idx].Nanoseconds()) / 1e6
	}
	return at(0.50), at(0.99), at(0.999)
}

func (h *OrderHandler) throughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&h.OrdersReceived)) / uptime
}
