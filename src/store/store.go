package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"crossbook/src/engine"
)

// Store is the append-only trade ledger plus an archive of orders that left
// the engine (terminal status, or rested at shutdown). Trades are keyed by
// market and emission sequence so a prefix scan replays them in order.
//
// keys: t:<market>:<8-byte-seq>, o:<order-id>
type Store struct {
	db *pebble.DB
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func tradeKey(market string, seq uint64) []byte {
	key := make([]byte, 0, len(market)+11)
	key = append(key, 't', ':')
	key = append(key, market...)
	key = append(key, ':')
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}

func orderKey(id string) []byte {
	return append([]byte("o:"), id...)
}

type storedTrade struct {
	ID          string `json:"id"`
	Market      string `json:"market"`
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
	Price       int64  `json:"price"`
	Side        string `json:"side"`
	Size        int64  `json:"size"`
	Seq         uint64 `json:"seq"`
	CreatedAt   int64  `json:"created_at"`
}

type storedOrder struct {
	ID        string `json:"id"`
	Market    string `json:"market"`
	Sender    string `json:"sender"`
	Side      string `json:"side"`
	Price     int64  `json:"price"`
	Size      int64  `json:"size"`
	Filled    int64  `json:"filled"`
	Status    string `json:"status"`
	Seq       uint64 `json:"seq"`
	CreatedAt int64  `json:"created_at"`
	Signature string `json:"signature"`
}

// AppendTrade persists one trade. Trades are immutable; an existing key is
// never rewritten with different content.
func (s *Store) AppendTrade(t *engine.Trade) error {
	rec := storedTrade{
		ID:          t.ID,
		Market:      t.Market,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Price:       t.Price,
		Side:        string(t.Side),
		Size:        t.Size,
		Seq:         t.Seq,
		CreatedAt:   t.CreatedAt,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	if err := s.db.Set(tradeKey(t.Market, t.Seq), data, pebble.Sync); err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

// MaxTradeSeq returns the highest trade sequence persisted across all
// markets, 0 when the ledger is empty. Used to seed the engine's trade
// counter on startup so a restart never reuses a ledger key.
func (s *Store) MaxTradeSeq() (uint64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("t:"),
		UpperBound: []byte("t;"), // ';' is ':'+1
	})
	if err != nil {
		return 0, fmt.Errorf("scan trade seq: %w", err)
	}
	defer iter.Close()

	var max uint64
	for ok := iter.First(); ok; ok = iter.Next() {
		key := iter.Key()
		if len(key) < 8 {
			continue
		}
		seq := binary.BigEndian.Uint64(key[len(key)-8:])
		if seq > max {
			max = seq
		}
	}
	return max, nil
}

// TradesByMarket returns up to limit trades for a market, newest first.
func (s *Store) TradesByMarket(market string, limit int) ([]*engine.Trade, error) {
	lower := tradeKey(market, 0)
	upper := tradeKey(market, ^uint64(0))
	upper = append(upper, 0xff)

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	defer iter.Close()

	out := make([]*engine.Trade, 0, limit)
	for ok := iter.Last(); ok && (limit <= 0 || len(out) < limit); ok = iter.Prev() {
		var rec storedTrade
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal trade: %w", err)
		}
		// edge case: a market id extending this one (AB vs AB:CD) sorts
		// inside the scan bounds; keep only exact matches
		if rec.Market != market {
			continue
		}
		out = append(out, &engine.Trade{
			ID:          rec.ID,
			Market:      rec.Market,
			BuyOrderID:  rec.BuyOrderID,
			SellOrderID: rec.SellOrderID,
			Price:       rec.Price,
			Side:        engine.OrderSide(rec.Side),
			Size:        rec.Size,
			Seq:         rec.Seq,
			CreatedAt:   rec.CreatedAt,
		})
	}
	return out, nil
}

// PutOrder archives an order's current state.
func (s *Store) PutOrder(o *engine.Order) error {
	rec := storedOrder{
		ID:        o.ID,
		Market:    o.Market,
		Sender:    o.Sender,
		Side:      string(o.Side),
		Price:     o.Price,
		Size:      o.Size,
		Filled:    o.GetFilled(),
		Status:    string(o.GetStatus()),
		Seq:       o.Seq,
		CreatedAt: o.CreatedAt,
		Signature: o.Signature,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	if err := s.db.Set(orderKey(o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// GetOrder loads an archived order by id.
func (s *Store) GetOrder(id string) (*engine.Order, bool, error) {
	val, closer, err := s.db.Get(orderKey(id))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get order: %w", err)
	}
	defer closer.Close()

	var rec storedOrder
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal order: %w", err)
	}
	order := &engine.Order{
		ID:        rec.ID,
		Market:    rec.Market,
		Sender:    rec.Sender,
		Side:      engine.OrderSide(rec.Side),
		Price:     rec.Price,
		Size:      rec.Size,
		Filled:    rec.Filled,
		Status:    engine.OrderStatus(rec.Status),
		Seq:       rec.Seq,
		CreatedAt: rec.CreatedAt,
		Signature: rec.Signature,
	}
	return order, true, nil
}
