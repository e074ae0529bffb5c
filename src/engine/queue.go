package engine

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DrainResult reports one drain pass: every order fed to the matcher and
// every trade those orders produced, both in execution order.
type DrainResult struct {
	Orders []*Order
	Trades []*Trade
}

// Processor is the WAITING queue in front of the matcher. Submission assigns
// each order a monotonically increasing sequence number; a drain feeds a
// market's waiting orders to the matcher one at a time in that sequence,
// under a per-market writer lock. That ordering is the sole source of
// determinism for simultaneous submissions, and an order never re-enters the
// queue once it has left WAITING.
type Processor struct {
	engine  *Engine
	seq     atomic.Uint64
	mu      sync.Mutex
	waiting map[string][]*Order // market -> fifo
	index   map[string]*Order   // waiting orders by id
	drainMu sync.Mutex
	drains  map[string]*sync.Mutex // per-market writer locks
}

func NewProcessor(engine *Engine) *Processor {
	return &Processor{
		engine:  engine,
		waiting: make(map[string][]*Order),
		index:   make(map[string]*Order),
		drains:  make(map[string]*sync.Mutex),
	}
}

func validateDraft(draft OrderDraft) error {
	if draft.Market == "" {
		return &ValidationError{Message: "invalid order: market is required"}
	}
	if draft.Side != SideBuy && draft.Side != SideSell {
		return &ValidationError{Message: "invalid order: side must be BUY or SELL"}
	}
	if draft.Size <= 0 {
		return &ValidationError{Message: "invalid order: size must be positive"}
	}
	if draft.Price < 0 {
		return &ValidationError{Message: "invalid order: price must not be negative"}
	}
	return nil
}

// Submit validates a draft and enqueues it in WAITING state. Invalid drafts
// are rejected before they ever reach the queue.
func (p *Processor) Submit(draft OrderDraft) (*Order, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	order := NewOrder(uuid.New().String(), draft, p.seq.Add(1))

	p.mu.Lock()
	p.waiting[order.Market] = append(p.waiting[order.Market], order)
	p.index[order.ID] = order
	p.mu.Unlock()

	return order, nil
}

func (p *Processor) marketLock(market string) *sync.Mutex {
	p.drainMu.Lock()
	defer p.drainMu.Unlock()

	lock, exists := p.drains[market]
	if !exists {
		lock = &sync.Mutex{}
		p.drains[market] = lock
	}
	return lock
}

// Drain runs the matcher over one market's waiting orders in submission
// order. Exactly one drain runs per market at a time; independent markets
// drain concurrently. An inconsistent order aborts the pass and surfaces the
// error together with the partial result.
func (p *Processor) Drain(market string) (*DrainResult, error) {
	lock := p.marketLock(market)
	lock.Lock()
	defer lock.Unlock()

	p.mu.Lock()
	batch := p.waiting[market]
	delete(p.waiting, market)
	for _, o := range batch {
		delete(p.index, o.ID)
	}
	p.mu.Unlock()

	result := &DrainResult{}
	for _, order := range batch {
		// edge case: an order cancelled while waiting is skipped
		if order.GetStatus() != StatusWaiting {
			continue
		}
		trades, err := p.engine.Process(order)
		result.Orders = append(result.Orders, order)
		result.Trades = append(result.Trades, trades...)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// DrainAll drains every market with waiting orders. Used by the periodic
// drain job.
func (p *Processor) DrainAll() (*DrainResult, error) {
	p.mu.Lock()
	markets := make([]string, 0, len(p.waiting))
	for market := range p.waiting {
		markets = append(markets, market)
	}
	p.mu.Unlock()

	combined := &DrainResult{}
	for _, market := range markets {
		result, err := p.Drain(market)
		combined.Orders = append(combined.Orders, result.Orders...)
		combined.Trades = append(combined.Trades, result.Trades...)
		if err != nil {
			return combined, err
		}
	}
	return combined, nil
}

// Waiting looks up an order still in the queue.
func (p *Processor) Waiting(orderID string) (*Order, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, exists := p.index[orderID]
	return order, exists
}

// WaitingCount reports how many orders sit in the queue across all markets.
func (p *Processor) WaitingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.index)
}

// Cancel marks an order CANCELLED before it is matched: either while it sits
// in the WAITING queue or while it rests on the book. Terminal orders cannot
// be cancelled.
func (p *Processor) Cancel(orderID string) (*Order, bool) {
	p.mu.Lock()
	if order, exists := p.index[orderID]; exists {
		delete(p.index, orderID)
		queue := p.waiting[order.Market]
		for i, o := range queue {
			if o.ID == orderID {
				p.waiting[order.Market] = append(queue[:i], queue[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
		order.SetStatus(StatusCancelled)
		return order, true
	}
	p.mu.Unlock()

	return p.engine.CancelResting(orderID)
}
