package models

type SubmitOrderRequest struct {
	Market    string `json:"market"`
	Sender    string `json:"sender"`
	Side      string `json:"side"`
	Price     int64  `json:"price"` // minimal price units, 0 submits a market order
	Size      int64  `json:"size"`
	Signature string `json:"signature,omitempty"`
}

type SubmitOrderResponse struct {
	OrderID       string      `json:"order_id"`
	Status        string      `json:"status"`
	Message       string      `json:"message,omitempty"`
	FilledSize    int64       `json:"filled_size"`
	RemainingSize int64       `json:"remaining_size"`
	Trades        []TradeInfo `json:"trades,omitempty"`
}

type TradeInfo struct {
	TradeID     string `json:"trade_id"`
	Price       int64  `json:"price"`
	Size        int64  `json:"size"`
	Side        string `json:"side"` // side of the taking order
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
	Timestamp   int64  `json:"timestamp"` // unix milliseconds
}

type CancelOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type OrderBookResponse struct {
	Market    string           `json:"market"`
	Timestamp int64            `json:"timestamp"`
	Bids      []PriceLevelInfo `json:"bids"` // best (highest) price first
	Asks      []PriceLevelInfo `json:"asks"` // best (lowest) price first
}

type PriceLevelInfo struct {
	Price int64 `json:"price"`
	Size  int64 `json:"size"` // aggregate remaining size at this price
}

type BestPricesResponse struct {
	Market string `json:"market"`
	Bid    *int64 `json:"bid"` // null when the side is empty
	Ask    *int64 `json:"ask"`
}

type OrderStatusResponse struct {
	OrderID    string `json:"order_id"`
	Market     string `json:"market"`
	Sender     string `json:"sender"`
	Side       string `json:"side"`
	Price      int64  `json:"price"`
	Size       int64  `json:"size"`
	FilledSize int64  `json:"filled_size"`
	Status     string `json:"status"`
	Timestamp  int64  `json:"timestamp"`
}

type TradesResponse struct {
	Market string      `json:"market"`
	Trades []TradeInfo `json:"trades"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	OrdersResting int64  `json:"orders_resting"`
	OrdersWaiting int64  `json:"orders_waiting"`
}

type MetricsResponse struct {
	OrdersReceived         int64   `json:"orders_received"`
	OrdersMatched          int64   `json:"orders_matched"`
	OrdersCancelled        int64   `json:"orders_cancelled"`
	OrdersResting          int64   `json:"orders_resting"`
	TradesExecuted         int64   `json:"trades_executed"`
	LatencyP50Ms           float64 `json:"latency_p50_ms"`
	LatencyP99Ms           float64 `json:"latency_p99_ms"`
	LatencyP999Ms          float64 `json:"latency_p999_ms"`
	ThroughputOrdersPerSec float64 `json:"throughput_orders_per_sec"`
}
