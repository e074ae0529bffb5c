package engine_test

import (
	"testing"

	"crossbook/src/engine"
)

func TestLevel2Aggregation(t *testing.T) {
	eng, proc := newPair()
	market := "USD-EUR"

	submit(t, proc, market, engine.SideBuy, 100, 10)
	submit(t, proc, market, engine.SideBuy, 100, 5)
	submit(t, proc, market, engine.SideBuy, 90, 20)
	submit(t, proc, market, engine.SideSell, 110, 7)
	drain(t, proc, market)

	bids := eng.Level2(market, engine.SideBuy, 0)
	if len(bids) != 2 {
		t.Fatalf("Expected 2 bid levels, got: %d", len(bids))
	}
	if bids[0] != (engine.Level{Price: 100, Size: 15}) {
		t.Errorf("Best bid level should aggregate to 15@100, got: %+v", bids[0])
	}
	if bids[1] != (engine.Level{Price: 90, Size: 20}) {
		t.Errorf("Second bid level should be 20@90, got: %+v", bids[1])
	}

	asks := eng.Level2(market, engine.SideSell, 0)
	if len(asks) != 1 || asks[0] != (engine.Level{Price: 110, Size: 7}) {
		t.Errorf("Ask side should be one level 7@110, got: %+v", asks)
	}
}

func TestLevel2ReflectsPartialFills(t *testing.T) {
	eng, proc := newPair()
	market := "USD-EUR"

	submit(t, proc, market, engine.SideSell, 100, 30)
	drain(t, proc, market)
	submit(t, proc, market, engine.SideBuy, 100, 12)
	drain(t, proc, market)

	asks := eng.Level2(market, engine.SideSell, 0)
	if len(asks) != 1 || asks[0].Size != 18 {
		t.Errorf("Level should report remaining size 18, got: %+v", asks)
	}
}

func TestLevel2Limit(t *testing.T) {
	eng, proc := newPair()
	market := "USD-EUR"

	for i := int64(0); i < 5; i++ {
		submit(t, proc, market, engine.SideSell, 100+i*10, 10)
	}
	drain(t, proc, market)

	levels := eng.Level2(market, engine.SideSell, 3)
	if len(levels) != 3 {
		t.Fatalf("Expected 3 levels, got: %d", len(levels))
	}
	if levels[0].Price != 100 || levels[2].Price != 120 {
		t.Errorf("Levels must come best price first, got: %+v", levels)
	}
}

func TestBestPrices(t *testing.T) {
	eng, proc := newPair()
	market := "USD-EUR"

	bid, hasBid, ask, hasAsk := eng.BestPrices(market)
	if hasBid || hasAsk {
		t.Errorf("Empty market should have no best prices, got bid=%d ask=%d", bid, ask)
	}

	submit(t, proc, market, engine.SideBuy, 95, 10)
	submit(t, proc, market, engine.SideSell, 105, 10)
	drain(t, proc, market)

	bid, hasBid, ask, hasAsk = eng.BestPrices(market)
	if !hasBid || bid != 95 {
		t.Errorf("Expected best bid 95, got: %d (ok=%v)", bid, hasBid)
	}
	if !hasAsk || ask != 105 {
		t.Errorf("Expected best ask 105, got: %d (ok=%v)", ask, hasAsk)
	}
}
