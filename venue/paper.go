package venue

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrade/ledger"
	"github.com/rustyeddy/papertrade/order"
	"github.com/rustyeddy/papertrade/sim"
)

// Paper is a simulated venue: orders are matched by the fill simulator
// against historical bars and positions accrue in a venue-local book,
// the way a real exchange account would hold them. One Paper instance
// is one exchange account.
type Paper struct {
	name      string
	account   string
	quoteCcy  string
	simulator *sim.Simulator
	book      *ledger.Ledger
	log       *zap.Logger

	mu      sync.Mutex
	cash    float64
	pending map[string]order.Request
}

// NewPaper builds a paper venue with the given starting cash in the
// quote currency (usually USD).
func NewPaper(name string, simulator *sim.Simulator, startingCash float64, quoteCcy string, log *zap.Logger) *Paper {
	if log == nil {
		log = zap.NewNop()
	}
	if quoteCcy == "" {
		quoteCcy = "USD"
	}
	return &Paper{
		name:      name,
		account:   name,
		quoteCcy:  quoteCcy,
		simulator: simulator,
		book:      ledger.New(ledger.NewMemoryRepository(), log),
		log:       log,
		cash:      startingCash,
		pending:   make(map[string]order.Request),
	}
}

func (p *Paper) Name() string { return p.name }

// PlaceOrder runs one simulation pass for req. Filled orders mutate
// the venue book and cash; untouched limit orders rest as pending and
// can be canceled or re-evaluated later.
func (p *Paper) PlaceOrder(ctx context.Context, req order.Request) (OrderResult, error) {
	outcome, err := p.simulator.Evaluate(ctx, req)
	if err != nil {
		return OrderResult{}, fmt.Errorf("paper %s: %w", p.name, err)
	}

	switch outcome.Result {
	case sim.Filled:
		f := *outcome.Fill
		if err := p.applyFill(f); err != nil {
			return OrderResult{}, err
		}
		return OrderResult{OrderID: req.ID, Status: order.StatusFilled, Fill: &f}, nil

	case sim.Rejected:
		return OrderResult{OrderID: req.ID, Status: order.StatusRejected, Reason: outcome.Reason}, nil

	default:
		p.mu.Lock()
		p.pending[req.ID] = req
		p.mu.Unlock()
		return OrderResult{OrderID: req.ID, Status: order.StatusNew, Reason: outcome.Reason}, nil
	}
}

func (p *Paper) applyFill(f order.Fill) error {
	// The venue book is keyed by the venue account, not the submitting
	// owner; an exchange account holds one book.
	f.Owner = p.account
	if _, err := p.book.ApplyFill(f); err != nil {
		return fmt.Errorf("paper %s: apply fill: %w", p.name, err)
	}

	p.mu.Lock()
	p.cash -= f.SignedQuantity()*f.Price + f.Commission
	cash := p.cash
	p.mu.Unlock()

	p.log.Debug("paper fill applied",
		zap.String("venue", p.name),
		zap.String("order_id", f.OrderID),
		zap.String("symbol", f.Symbol),
		zap.Float64("price", f.Price),
		zap.Float64("cash", cash))
	return nil
}

// CancelOrder removes a resting limit order.
func (p *Paper) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pending[orderID]; !ok {
		return fmt.Errorf("paper %s: cancel %s: %w", p.name, orderID, ErrUnknownOrder)
	}
	delete(p.pending, orderID)
	return nil
}

// RetryPending re-evaluates resting limit orders against fresh data
// and returns the fills produced. Orders that still do not touch stay
// pending.
func (p *Paper) RetryPending(ctx context.Context) ([]order.Fill, error) {
	p.mu.Lock()
	resting := make([]order.Request, 0, len(p.pending))
	for _, req := range p.pending {
		resting = append(resting, req)
	}
	p.mu.Unlock()

	var fills []order.Fill
	for _, req := range resting {
		outcome, err := p.simulator.Evaluate(ctx, req)
		if err != nil {
			return fills, err
		}
		switch outcome.Result {
		case sim.Filled:
			if err := p.applyFill(*outcome.Fill); err != nil {
				return fills, err
			}
			fills = append(fills, *outcome.Fill)
			p.mu.Lock()
			delete(p.pending, req.ID)
			p.mu.Unlock()
		case sim.Rejected:
			p.mu.Lock()
			delete(p.pending, req.ID)
			p.mu.Unlock()
		}
	}
	return fills, nil
}

func (p *Paper) GetPositions(ctx context.Context) ([]Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	book, err := p.book.Positions(p.account)
	if err != nil {
		return nil, err
	}

	out := make([]Position, 0, len(book))
	for _, pos := range book {
		out = append(out, Position{
			Symbol:     pos.Symbol,
			Quantity:   pos.Quantity,
			EntryPrice: pos.AvgEntryPrice,
		})
	}
	return out, nil
}

func (p *Paper) GetBalance(ctx context.Context) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]float64{p.quoteCcy: p.cash}, nil
}

// PendingOrders returns the IDs of resting limit orders.
func (p *Paper) PendingOrders() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.pending))
	for id := range p.pending {
		out = append(out, id)
	}
	return out
}

var _ Client = (*Paper)(nil)
