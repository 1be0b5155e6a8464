// Package engine is the caller-facing surface of the paper-trading
// core: order intake, risk gating, simulated execution, ledger and
// history updates, valuation and reconciliation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrade/history"
	"github.com/rustyeddy/papertrade/ledger"
	"github.com/rustyeddy/papertrade/market"
	"github.com/rustyeddy/papertrade/multix"
	"github.com/rustyeddy/papertrade/order"
	"github.com/rustyeddy/papertrade/portfolio"
	"github.com/rustyeddy/papertrade/reconcile"
	"github.com/rustyeddy/papertrade/risk"
	"github.com/rustyeddy/papertrade/sim"
	"github.com/rustyeddy/papertrade/venue"
)

// ErrNotCancellable is returned when canceling an order whose status
// is terminal.
var ErrNotCancellable = errors.New("engine: order not cancellable")

// ErrUnknownOwner is returned for cancels against another owner's
// order.
var ErrUnknownOwner = errors.New("engine: order belongs to another owner")

// Options wires an Engine. Gate, Simulator, Ledger and History are
// required; Quotes enables valuation; Registry enables multi-venue
// distribution and reconciliation.
type Options struct {
	Gate         *risk.Gate
	Simulator    *sim.Simulator
	Ledger       *ledger.Ledger
	History      history.Store
	Quotes       market.QuoteSource
	Registry     *venue.Registry
	VenueTimeout time.Duration
	Tolerance    float64
	Log          *zap.Logger
}

// Engine drives the order pipeline: Order Request → Risk Gate → Fill
// Simulator (or venue fan-out) → Position Ledger + Trade History.
type Engine struct {
	gate      *risk.Gate
	simulator *sim.Simulator
	ledger    *ledger.Ledger
	store     history.Store
	quotes    market.QuoteSource
	registry  *venue.Registry
	valuator  *portfolio.Valuator
	coord     *multix.Coordinator
	tolerance float64
	log       *zap.Logger

	mu       sync.Mutex
	balances map[string]float64
}

func New(opts Options) (*Engine, error) {
	if opts.Gate == nil || opts.Simulator == nil || opts.Ledger == nil || opts.History == nil {
		return nil, errors.New("engine: gate, simulator, ledger and history are required")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		gate:      opts.Gate,
		simulator: opts.Simulator,
		ledger:    opts.Ledger,
		store:     opts.History,
		quotes:    opts.Quotes,
		registry:  opts.Registry,
		tolerance: opts.Tolerance,
		log:       log,
		balances:  make(map[string]float64),
	}
	if opts.Quotes != nil {
		e.valuator = portfolio.NewValuator(opts.Ledger, opts.Quotes)
	}
	if opts.Registry != nil {
		e.coord = multix.NewCoordinator(opts.Registry, opts.Gate, e, opts.Quotes, opts.VenueTimeout, log)
	}
	return e, nil
}

// SetBalance seeds or resets an owner's cash balance.
func (e *Engine) SetBalance(owner string, cash float64) {
	e.mu.Lock()
	e.balances[owner] = cash
	e.mu.Unlock()
}

// Balance returns an owner's current cash balance.
func (e *Engine) Balance(owner string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[owner], nil
}

// Positions returns an owner's open positions from the ledger.
func (e *Engine) Positions(owner string) ([]ledger.Position, error) {
	return e.ledger.Positions(owner)
}

var _ multix.AccountSource = (*Engine)(nil)

func (e *Engine) adjustBalance(owner string, delta float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[owner] += delta
	return e.balances[owner]
}

// referencePrice picks the price the risk gate values the order at:
// the limit price when present, otherwise the current mid.
func (e *Engine) referencePrice(ctx context.Context, req order.Request) float64 {
	if req.LimitPrice != nil {
		return *req.LimitPrice
	}
	if e.quotes != nil {
		if q, err := e.quotes.GetQuote(ctx, req.Symbol); err == nil {
			return q.Mid()
		}
	}
	return 0
}

// SubmitOrder runs one order through the single-venue pipeline. Risk
// rejections and simulator outcomes come back as the record's status,
// not as errors; the error return covers storage and infrastructure
// failures only.
func (e *Engine) SubmitOrder(ctx context.Context, ownerID string, req order.Request) (history.TradeRecord, error) {
	if req.Owner != ownerID {
		return history.TradeRecord{}, &order.ValidationError{
			Field: "owner", Reason: fmt.Sprintf("request owner %q does not match caller %q", req.Owner, ownerID),
		}
	}

	balance, _ := e.Balance(ownerID)
	positions, err := e.ledger.Positions(ownerID)
	if err != nil {
		return history.TradeRecord{}, fmt.Errorf("engine: load positions: %w", err)
	}

	accepted, reason := e.gate.Validate(risk.Context{
		Order:     req,
		Price:     e.referencePrice(ctx, req),
		Balance:   balance,
		Positions: positions,
		Metrics:   e.gate.Snapshot(),
	})
	if !accepted {
		rec := history.NewRecord(req)
		rec.Status = order.StatusRejected
		rec.Reason = reason
		if err := e.store.Append(rec); err != nil {
			return history.TradeRecord{}, fmt.Errorf("engine: append rejected record: %w", err)
		}
		return rec, nil
	}

	rec := history.NewRecord(req)
	if err := e.store.Append(rec); err != nil {
		return history.TradeRecord{}, fmt.Errorf("engine: append record: %w", err)
	}

	outcome, err := e.simulator.Evaluate(ctx, req)
	if err != nil {
		return history.TradeRecord{}, fmt.Errorf("engine: simulate order %s: %w", req.ID, err)
	}

	now := time.Now().UTC()
	switch outcome.Result {
	case sim.Filled:
		if err := e.applyFill(*outcome.Fill); err != nil {
			return history.TradeRecord{}, err
		}
		newBalance := e.adjustBalance(ownerID, -outcome.Fill.SignedQuantity()*outcome.Fill.Price-outcome.Fill.Commission)
		e.gate.UpdateMetrics(newBalance, true, now)

	case sim.Rejected:
		if err := e.store.UpdateStatus(req.ID, order.StatusRejected, outcome.Reason, now); err != nil {
			return history.TradeRecord{}, fmt.Errorf("engine: update status: %w", err)
		}
		e.gate.UpdateMetrics(balance, false, now)

	case sim.Pending:
		// The order stays NEW; only the explanatory note is recorded.
		if err := e.store.UpdateStatus(req.ID, order.StatusNew, outcome.Reason, now); err != nil {
			return history.TradeRecord{}, fmt.Errorf("engine: update status: %w", err)
		}
		e.gate.UpdateMetrics(balance, false, now)
	}

	return e.store.Get(req.ID)
}

// applyFill updates the ledger and the history for one fill. Both are
// always attempted; history replay is idempotent on fill id, so a
// retry after a partial failure cannot double-count.
func (e *Engine) applyFill(f order.Fill) error {
	_, ledgerErr := e.ledger.ApplyFill(f)
	historyErr := e.store.RecordFill(f)

	if ledgerErr != nil || historyErr != nil {
		return errors.Join(ledgerErr, historyErr)
	}
	return nil
}

// CancelOrder cancels an owner's order while it is still open.
// Canceling a FILLED, CANCELED or REJECTED order fails with
// ErrNotCancellable.
func (e *Engine) CancelOrder(ctx context.Context, ownerID, orderID string) (history.TradeRecord, error) {
	rec, err := e.store.Get(orderID)
	if err != nil {
		return history.TradeRecord{}, err
	}
	if rec.Owner != ownerID {
		return history.TradeRecord{}, fmt.Errorf("%w: order %s", ErrUnknownOwner, orderID)
	}
	if !rec.Status.Cancellable() {
		return history.TradeRecord{}, fmt.Errorf("%w: order %s is %s", ErrNotCancellable, orderID, rec.Status)
	}

	// An order resting on a venue must leave the venue's pending book
	// too, or a later retry pass could fill a canceled order.
	if e.registry != nil {
		for _, name := range e.registry.Names() {
			client, err := e.registry.Get(name)
			if err != nil {
				continue
			}
			if err := client.CancelOrder(ctx, orderID); err != nil && !errors.Is(err, venue.ErrUnknownOrder) {
				return history.TradeRecord{}, fmt.Errorf("engine: cancel order %s on venue %s: %w", orderID, name, err)
			}
		}
	}

	if err := e.store.UpdateStatus(orderID, order.StatusCanceled, "canceled by owner", time.Now().UTC()); err != nil {
		return history.TradeRecord{}, fmt.Errorf("engine: cancel order: %w", err)
	}
	return e.store.Get(orderID)
}

// GetOpenOrders lists an owner's orders that may still fill or be
// canceled.
func (e *Engine) GetOpenOrders(ownerID string) ([]history.TradeRecord, error) {
	return e.store.ListOpen(ownerID)
}

// GetProcessedTrades FIFO-matches an owner's fill history into closed
// round trips.
func (e *Engine) GetProcessedTrades(ownerID string) ([]history.ProcessedTrade, error) {
	return history.GetProcessedTrades(e.store, ownerID)
}

// GetPortfolioValuation marks the owner's portfolio to market.
func (e *Engine) GetPortfolioValuation(ctx context.Context, ownerID string) (portfolio.Valuation, error) {
	if e.valuator == nil {
		return portfolio.Valuation{}, errors.New("engine: no quote source configured")
	}
	cash, _ := e.Balance(ownerID)
	return e.valuator.Value(ctx, ownerID, cash)
}

// DistributeOrder fans req out across the registered venues and folds
// every child fill into the ledger, the history and the owner's cash.
// Per-venue failures live in the result map; the call itself only
// fails on storage errors.
func (e *Engine) DistributeOrder(ctx context.Context, ownerID string, req order.Request, weights map[string]float64) (map[string]multix.Result, error) {
	if e.coord == nil {
		return nil, errors.New("engine: no venue registry configured")
	}
	if req.Owner != ownerID {
		return nil, &order.ValidationError{
			Field: "owner", Reason: fmt.Sprintf("request owner %q does not match caller %q", req.Owner, ownerID),
		}
	}

	results := e.coord.Distribute(ctx, req, weights)

	now := time.Now().UTC()
	filled := false
	for _, res := range results {
		rec := history.NewRecord(res.Request)
		switch {
		case res.Rejected:
			rec.Status = order.StatusRejected
			rec.Reason = res.Reason
		case res.Err != nil:
			rec.Status = order.StatusRejected
			rec.Reason = "venue error: " + res.Err.Error()
		}
		if err := e.store.Append(rec); err != nil {
			return results, fmt.Errorf("engine: append child record: %w", err)
		}

		if res.Fill != nil {
			if err := e.applyFill(*res.Fill); err != nil {
				return results, err
			}
			e.adjustBalance(ownerID, -res.Fill.SignedQuantity()*res.Fill.Price-res.Fill.Commission)
			filled = true
		}
	}

	balance, _ := e.Balance(ownerID)
	e.gate.UpdateMetrics(balance, filled, now)
	return results, nil
}

// Reconcile compares ledger positions for ownerID against every
// registered venue. Discrepancies are report entries, never errors.
func (e *Engine) Reconcile(ctx context.Context, ownerID string) (reconcile.Report, error) {
	if e.registry == nil {
		return reconcile.Report{}, errors.New("engine: no venue registry configured")
	}
	r := reconcile.New(e.ledger, e.registry, ownerID, e.tolerance, e.log)
	return r.Reconcile(ctx)
}

// SetCircuitBreaker arms or clears the manual risk circuit breaker.
func (e *Engine) SetCircuitBreaker(on bool) {
	e.gate.SetCircuitBreaker(on)
}
