package engine_test

import (
	"testing"

	"crossbook/src/engine"
)

var restingSeq uint64

func restingOrder(market string, side engine.OrderSide, price, size int64) *engine.Order {
	restingSeq++
	order := engine.NewOrder("", engine.OrderDraft{
		Market: market,
		Sender: "tester",
		Side:   side,
		Price:  price,
		Size:   size,
	}, restingSeq)
	order.ID = order.Market + "-" + string(order.Side) + "-" + itoa(order.Seq)
	order.SetStatus(engine.StatusNew)
	return order
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func TestOrderBookInsertAndGet(t *testing.T) {
	book := engine.NewOrderBook("USD-EUR")

	order := restingOrder("USD-EUR", engine.SideBuy, 100, 50)
	book.Insert(order)

	retrieved, exists := book.Get(order.ID)
	if !exists {
		t.Fatal("Order should exist in order book")
	}
	if retrieved.ID != order.ID {
		t.Errorf("Expected order ID %s, got: %s", order.ID, retrieved.ID)
	}
	if book.Resting() != 1 {
		t.Errorf("Expected 1 resting order, got: %d", book.Resting())
	}
}

func TestOrderBookBestBidAsk(t *testing.T) {
	book := engine.NewOrderBook("USD-EUR")

	book.Insert(restingOrder("USD-EUR", engine.SideBuy, 100, 10))
	book.Insert(restingOrder("USD-EUR", engine.SideBuy, 110, 10))
	book.Insert(restingOrder("USD-EUR", engine.SideBuy, 90, 10))
	book.Insert(restingOrder("USD-EUR", engine.SideSell, 130, 10))
	book.Insert(restingOrder("USD-EUR", engine.SideSell, 120, 10))
	book.Insert(restingOrder("USD-EUR", engine.SideSell, 140, 10))

	bid, ok := book.BestBid()
	if !ok || bid != 110 {
		t.Errorf("Expected best bid 110, got: %d (ok=%v)", bid, ok)
	}
	ask, ok := book.BestAsk()
	if !ok || ask != 120 {
		t.Errorf("Expected best ask 120, got: %d (ok=%v)", ask, ok)
	}
}

func TestOrderBookEmptySides(t *testing.T) {
	book := engine.NewOrderBook("USD-EUR")

	if _, ok := book.BestBid(); ok {
		t.Error("Empty book should have no best bid")
	}
	if _, ok := book.BestAsk(); ok {
		t.Error("Empty book should have no best ask")
	}
	if depth := book.Depth(engine.SideBuy); len(depth) != 0 {
		t.Errorf("Empty book depth should be empty, got %d orders", len(depth))
	}
}

func TestOrderBookDepthOrdering(t *testing.T) {
	book := engine.NewOrderBook("USD-EUR")

	late := restingOrder("USD-EUR", engine.SideSell, 100, 10)
	early := restingOrder("USD-EUR", engine.SideSell, 100, 20)
	// insert the level's earlier-sequence order first, as the single writer does
	book.Insert(restingOrder("USD-EUR", engine.SideSell, 110, 5))
	book.Insert(early)
	book.Insert(late)

	depth := book.Depth(engine.SideSell)
	if len(depth) != 3 {
		t.Fatalf("Expected 3 orders in depth, got: %d", len(depth))
	}
	if depth[0].ID != early.ID {
		t.Errorf("Best price, earliest order first; got: %s", depth[0].ID)
	}
	if depth[1].ID != late.ID {
		t.Errorf("Same price, later order second; got: %s", depth[1].ID)
	}
	if depth[2].Price != 110 {
		t.Errorf("Worse price last; got price: %d", depth[2].Price)
	}
}

func TestOrderBookExcludesIneligible(t *testing.T) {
	book := engine.NewOrderBook("USD-EUR")

	active := restingOrder("USD-EUR", engine.SideBuy, 100, 10)
	cancelled := restingOrder("USD-EUR", engine.SideBuy, 120, 10)
	book.Insert(active)
	book.Insert(cancelled)
	cancelled.SetStatus(engine.StatusCancelled)

	bid, ok := book.BestBid()
	if !ok || bid != 100 {
		t.Errorf("Cancelled order must not set the best bid; got %d (ok=%v)", bid, ok)
	}
	depth := book.Depth(engine.SideBuy)
	if len(depth) != 1 || depth[0].ID != active.ID {
		t.Errorf("Depth must exclude ineligible orders, got %d orders", len(depth))
	}
}

func TestOrderBookRemove(t *testing.T) {
	book := engine.NewOrderBook("USD-EUR")

	order := restingOrder("USD-EUR", engine.SideSell, 100, 10)
	book.Insert(order)

	if !book.Remove(order.ID) {
		t.Fatal("Remove should report success")
	}
	if _, exists := book.Get(order.ID); exists {
		t.Error("Removed order should not be retrievable")
	}
	if _, ok := book.BestAsk(); ok {
		t.Error("Empty price level should be dropped")
	}
	if book.Remove(order.ID) {
		t.Error("Removing twice should report failure")
	}
}

func TestOrderBookLevels(t *testing.T) {
	book := engine.NewOrderBook("USD-EUR")

	book.Insert(restingOrder("USD-EUR", engine.SideSell, 100, 10))
	book.Insert(restingOrder("USD-EUR", engine.SideSell, 100, 15))
	book.Insert(restingOrder("USD-EUR", engine.SideSell, 110, 5))
	partially := restingOrder("USD-EUR", engine.SideSell, 120, 30)
	partially.Fill(10, true)
	book.Insert(partially)

	levels := book.Levels(engine.SideSell, 0)
	if len(levels) != 3 {
		t.Fatalf("Expected 3 levels, got: %d", len(levels))
	}
	expected := []engine.Level{{Price: 100, Size: 25}, {Price: 110, Size: 5}, {Price: 120, Size: 20}}
	for i, want := range expected {
		if levels[i] != want {
			t.Errorf("Level %d: expected %+v, got %+v", i, want, levels[i])
		}
	}

	limited := book.Levels(engine.SideSell, 2)
	if len(limited) != 2 {
		t.Errorf("Expected 2 levels with limit, got: %d", len(limited))
	}
}
