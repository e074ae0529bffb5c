package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderStatus string

// Lifecycle: WAITING -> NEW -> PARTIAL_FILL/UPDATED -> FILLED.
// CANCELLED is terminal and reached either by external cancellation or by a
// market order that could not take enough liquidity.
const (
	StatusWaiting     OrderStatus = "WAITING"
	StatusNew         OrderStatus = "NEW"
	StatusPartialFill OrderStatus = "PARTIALLY_FILLED"
	StatusUpdated     OrderStatus = "UPDATED"
	StatusFilled      OrderStatus = "FILLED"
	StatusCancelled   OrderStatus = "CANCELLED"
)

// edge case: prices are int64 in the market's minimal unit to avoid
// floating-point precision errors. Price 0 is the market-order sentinel:
// such an order takes whatever liquidity is available and never rests.
type Order struct {
	ID        string
	Market    string
	Sender    string
	Side      OrderSide
	Price     int64 // minimal price units, 0 for market orders
	Size      int64
	Filled    int64 // atomic for thread-safety
	Status    OrderStatus
	Seq       uint64 // submission sequence, time-priority tie-break
	CreatedAt int64
	Signature string // opaque, never interpreted here
	statusMu  sync.Mutex
}

// OrderDraft is what external callers supply at submission time. ID, Seq and
// CreatedAt are assigned by the Processor.
type OrderDraft struct {
	Market    string
	Sender    string
	Side      OrderSide
	Price     int64
	Size      int64
	Signature string
}

type Trade struct {
	ID          string
	Market      string
	BuyOrderID  string
	SellOrderID string
	Price       int64 // always the resting (maker) order's price
	Side        OrderSide
	Size        int64
	Seq         uint64
	CreatedAt   int64
}

func NewOrder(id string, draft OrderDraft, seq uint64) *Order {
	return &Order{
		ID:        id,
		Market:    draft.Market,
		Sender:    draft.Sender,
		Side:      draft.Side,
		Price:     draft.Price,
		Size:      draft.Size,
		Filled:    0,
		Status:    StatusWaiting,
		Seq:       seq,
		CreatedAt: time.Now().UnixMilli(),
		Signature: draft.Signature,
	}
}

func (o *Order) GetFilled() int64 {
	return atomic.LoadInt64(&o.Filled)
}

func (o *Order) Remaining() int64 {
	return o.Size - atomic.LoadInt64(&o.Filled)
}

func (o *Order) IsFilled() bool {
	return atomic.LoadInt64(&o.Filled) >= o.Size
}

// Fill advances the cumulative executed quantity and recomputes status. A
// resting order that still has remaining size becomes UPDATED, an incoming
// one PARTIALLY_FILLED; both stay book-eligible.
func (o *Order) Fill(quantity int64, resting bool) {
	newFilled := atomic.AddInt64(&o.Filled, quantity)

	o.statusMu.Lock()
	if newFilled >= o.Size {
		o.Status = StatusFilled
	} else if resting {
		o.Status = StatusUpdated
	} else {
		o.Status = StatusPartialFill
	}
	o.statusMu.Unlock()
}

func (o *Order) GetStatus() OrderStatus {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	return o.Status
}

func (o *Order) SetStatus(status OrderStatus) {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	o.Status = status
}

// Eligible reports whether the order may rest on the book: a priced order in
// a non-terminal, accepted state. Market orders are never eligible.
func (o *Order) Eligible() bool {
	if o.Price == 0 {
		return false
	}
	switch o.GetStatus() {
	case StatusNew, StatusUpdated, StatusPartialFill:
		return true
	}
	return false
}

// Terminal reports whether the order can make no further transitions.
func (o *Order) Terminal() bool {
	switch o.GetStatus() {
	case StatusFilled, StatusCancelled:
		return true
	case StatusPartialFill:
		// edge case: a market order never rests, so its partial fill is final
		return o.Price == 0
	}
	return false
}
