package engine

import (
	"sync"

	"github.com/google/btree"
)

type PriceLevel struct {
	Price  int64
	Orders []*Order // fifo ordering for time priority, ascending Seq
}

// bidLevel sorts descending so the tree's minimum is the best (highest) bid.
type bidLevel struct {
	level *PriceLevel
}

func (b *bidLevel) Less(than btree.Item) bool {
	return b.level.Price > than.(*bidLevel).level.Price
}

// askLevel sorts ascending so the tree's minimum is the best (lowest) ask.
type askLevel struct {
	level *PriceLevel
}

func (a *askLevel) Less(than btree.Item) bool {
	return a.level.Price < than.(*askLevel).level.Price
}

// OrderBook holds the resting, book-eligible orders of one market: two trees
// of price levels ordered best-price-first, each level a FIFO queue. Only the
// matcher mutates book contents; readers aggregate remaining size on the fly,
// so a partial fill needs no explicit re-index.
type OrderBook struct {
	Market string
	bids   *btree.BTree
	asks   *btree.BTree
	orders map[string]*Order // resting orders by id
	mu     sync.RWMutex
}

func NewOrderBook(market string) *OrderBook {
	return &OrderBook{
		Market: market,
		bids:   btree.New(32),
		asks:   btree.New(32),
		orders: make(map[string]*Order),
	}
}

func (ob *OrderBook) lookupItem(side OrderSide, price int64) btree.Item {
	if side == SideBuy {
		return &bidLevel{level: &PriceLevel{Price: price}}
	}
	return &askLevel{level: &PriceLevel{Price: price}}
}

func (ob *OrderBook) tree(side OrderSide) *btree.BTree {
	if side == SideBuy {
		return ob.bids
	}
	return ob.asks
}

func levelOf(item btree.Item) *PriceLevel {
	switch it := item.(type) {
	case *bidLevel:
		return it.level
	case *askLevel:
		return it.level
	}
	return nil
}

// Insert rests an order at its price level. The caller guarantees the order
// is book-eligible; insertion order within a level preserves time priority
// because the single writer processes orders in submission sequence.
func (ob *OrderBook) Insert(order *Order) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.orders[order.ID] = order

	tree := ob.tree(order.Side)
	item := tree.Get(ob.lookupItem(order.Side, order.Price))
	if item == nil {
		level := &PriceLevel{Price: order.Price, Orders: []*Order{order}}
		if order.Side == SideBuy {
			tree.ReplaceOrInsert(&bidLevel{level: level})
		} else {
			tree.ReplaceOrInsert(&askLevel{level: level})
		}
		return
	}
	level := levelOf(item)
	level.Orders = append(level.Orders, order)
}

// Remove takes an order off the book, dropping its price level when empty.
func (ob *OrderBook) Remove(orderID string) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, exists := ob.orders[orderID]
	if !exists {
		return false
	}
	delete(ob.orders, orderID)

	tree := ob.tree(order.Side)
	key := ob.lookupItem(order.Side, order.Price)
	item := tree.Get(key)
	if item == nil {
		return false
	}
	level := levelOf(item)
	for i, o := range level.Orders {
		if o.ID == orderID {
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			break
		}
	}
	// edge case: remove empty price level
	if len(level.Orders) == 0 {
		tree.Delete(key)
	}
	return true
}

func (ob *OrderBook) Get(orderID string) (*Order, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	order, exists := ob.orders[orderID]
	return order, exists
}

// Resting returns the number of orders currently on the book.
func (ob *OrderBook) Resting() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return len(ob.orders)
}

// BestBid returns the highest bid price with eligible liquidity.
func (ob *OrderBook) BestBid() (int64, bool) {
	return ob.bestPrice(SideBuy)
}

// BestAsk returns the lowest ask price with eligible liquidity.
func (ob *OrderBook) BestAsk() (int64, bool) {
	return ob.bestPrice(SideSell)
}

func (ob *OrderBook) bestPrice(side OrderSide) (int64, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	var price int64
	var found bool
	ob.tree(side).Ascend(func(item btree.Item) bool {
		level := levelOf(item)
		// edge case: a level can be dirtied by a cancellation mid-drain;
		// skip levels with no eligible remaining size
		if eligibleSize(level) == 0 {
			return true
		}
		price = level.Price
		found = true
		return false
	})
	return price, found
}

// Depth returns one side's eligible resting orders in matching priority order
// (best price first, earliest sequence within a price). Each call produces a
// fresh traversal; it is not a point-in-time snapshot under concurrent drains.
func (ob *OrderBook) Depth(side OrderSide) []*Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	out := make([]*Order, 0, len(ob.orders))
	ob.tree(side).Ascend(func(item btree.Item) bool {
		for _, o := range levelOf(item).Orders {
			if o.Eligible() {
				out = append(out, o)
			}
		}
		return true
	})
	return out
}

// Levels aggregates one side into level-2 depth: remaining eligible size per
// price, in price priority order, at most limit levels (0 means no limit).
func (ob *OrderBook) Levels(side OrderSide, limit int) []Level {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	out := make([]Level, 0, limit)
	ob.tree(side).Ascend(func(item btree.Item) bool {
		level := levelOf(item)
		size := eligibleSize(level)
		if size == 0 {
			return true
		}
		out = append(out, Level{Price: level.Price, Size: size})
		return limit <= 0 || len(out) < limit
	})
	return out
}

func eligibleSize(level *PriceLevel) int64 {
	var total int64
	for _, o := range level.Orders {
		if o.Eligible() {
			total += o.Remaining()
		}
	}
	return total
}
