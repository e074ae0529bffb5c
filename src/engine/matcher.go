package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TradeSink receives every trade in emission order, no later than the end of
// the matching pass that produced it. Used to wire the ledger and the feed.
type TradeSink func(*Trade)

// Engine crosses incoming orders against the opposite side of their market's
// book under price-time priority. Process must run single-writer per market;
// the Processor's drain lock enforces that.
type Engine struct {
	books    map[string]*OrderBook
	mu       sync.RWMutex
	sink     TradeSink
	tradeSeq atomic.Uint64
}

func NewEngine(sink TradeSink) *Engine {
	return &Engine{
		books: make(map[string]*OrderBook),
		sink:  sink,
	}
}

// SeedTradeSeq advances the trade sequence counter to at least seq. Called
// at startup with the ledger's highest persisted sequence so trades emitted
// after a restart continue the sequence instead of reusing ledger keys.
func (e *Engine) SeedTradeSeq(seq uint64) {
	for {
		cur := e.tradeSeq.Load()
		if cur >= seq || e.tradeSeq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

func (e *Engine) Book(market string) *OrderBook {
	e.mu.RLock()
	if ob, exists := e.books[market]; exists {
		e.mu.RUnlock()
		return ob
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// edge case: double-check after acquiring write lock
	if ob, exists := e.books[market]; exists {
		return ob
	}

	ob := NewOrderBook(market)
	e.books[market] = ob
	return ob
}

// Books returns a point-in-time copy of the market -> book map.
func (e *Engine) Books() map[string]*OrderBook {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snapshot := make(map[string]*OrderBook, len(e.books))
	for k, v := range e.books {
		snapshot[k] = v
	}
	return snapshot
}

// Process runs one matching pass for a freshly dequeued order and returns the
// trades it produced. The pass walks the opposite side's depth best price
// first, fills min(remaining, remaining) at the resting order's price, and
// stops as soon as prices no longer cross or the incoming order is filled.
//
// A priced order with remaining size rests on its own side afterwards. A
// market order (price 0) never rests: whatever could not be taken is
// cancelled (no fills at all) or left PARTIALLY_FILLED as a terminal state.
func (e *Engine) Process(order *Order) ([]*Trade, error) {
	if status := order.GetStatus(); status != StatusWaiting {
		return nil, &InconsistentStateError{
			OrderID: order.ID,
			Status:  status,
			Filled:  order.GetFilled(),
			Size:    order.Size,
		}
	}
	if filled := order.GetFilled(); filled < 0 || filled > order.Size || order.Size <= 0 {
		return nil, &InconsistentStateError{
			OrderID: order.ID,
			Status:  order.GetStatus(),
			Filled:  order.GetFilled(),
			Size:    order.Size,
		}
	}

	order.SetStatus(StatusNew)

	book := e.Book(order.Market)
	opposite := SideSell
	if order.Side == SideSell {
		opposite = SideBuy
	}

	var trades []*Trade
	for _, resting := range book.Depth(opposite) {
		// edge case: a candidate cancelled mid-pass is skipped, not matched
		if !resting.Eligible() {
			continue
		}

		// Crossing test. Depth is price-ordered, so the first candidate that
		// fails cannot be followed by one that crosses.
		if order.Price != 0 {
			if order.Side == SideSell && order.Price > resting.Price {
				break
			}
			if order.Side == SideBuy && order.Price < resting.Price {
				break
			}
		}

		fill := order.Remaining()
		if r := resting.Remaining(); r < fill {
			fill = r
		}
		if fill <= 0 {
			continue
		}

		resting.Fill(fill, true)
		order.Fill(fill, false)

		trade := &Trade{
			ID:        uuid.New().String(),
			Market:    order.Market,
			Price:     resting.Price, // maker pricing
			Side:      order.Side,
			Size:      fill,
			Seq:       e.tradeSeq.Add(1),
			CreatedAt: time.Now().UnixMilli(),
		}
		if order.Side == SideBuy {
			trade.BuyOrderID = order.ID
			trade.SellOrderID = resting.ID
		} else {
			trade.BuyOrderID = resting.ID
			trade.SellOrderID = order.ID
		}
		trades = append(trades, trade)
		if e.sink != nil {
			e.sink(trade)
		}

		if resting.IsFilled() {
			book.Remove(resting.ID)
		}
		if order.IsFilled() {
			break
		}
	}

	if order.Price == 0 {
		// edge case: market order remainder is cancelled, never reported
		// filled and never rested
		if order.GetFilled() == 0 {
			order.SetStatus(StatusCancelled)
		}
		return trades, nil
	}

	if !order.IsFilled() {
		book.Insert(order)
	}
	return trades, nil
}

// FindOrder scans all books for a resting order.
func (e *Engine) FindOrder(orderID string) (*Order, bool) {
	for _, book := range e.Books() {
		if order, exists := book.Get(orderID); exists {
			return order, true
		}
	}
	return nil, false
}

// CancelResting removes a resting order from its book and marks it CANCELLED.
func (e *Engine) CancelResting(orderID string) (*Order, bool) {
	for _, book := range e.Books() {
		order, exists := book.Get(orderID)
		if !exists {
			continue
		}
		if order.Terminal() {
			return order, false
		}
		book.Remove(orderID)
		order.SetStatus(StatusCancelled)
		return order, true
	}
	return nil, false
}
