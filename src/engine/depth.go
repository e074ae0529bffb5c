package engine

// Level is one rung of level-2 depth: a price and the aggregate remaining
// size resting at it.
type Level struct {
	Price int64
	Size  int64
}

// Level2 aggregates one side of a market's book by price, in priority order.
// It is a best-effort read projection: it may run concurrently with a drain
// and does not guarantee a point-in-time snapshot.
func (e *Engine) Level2(market string, side OrderSide, limit int) []Level {
	return e.Book(market).Levels(side, limit)
}

// BestPrices returns the best bid and ask of a market, if present.
func (e *Engine) BestPrices(market string) (bid int64, hasBid bool, ask int64, hasAsk bool) {
	book := e.Book(market)
	bid, hasBid = book.BestBid()
	ask, hasAsk = book.BestAsk()
	return bid, hasBid, ask, hasAsk
}
