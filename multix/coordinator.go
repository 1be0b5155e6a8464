// Package multix fans one logical order out across venue clients and
// aggregates the per-venue results. One venue failing, timing out or
// being risk-rejected never blocks or cancels the others.
package multix

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrade/ledger"
	"github.com/rustyeddy/papertrade/market"
	"github.com/rustyeddy/papertrade/order"
	"github.com/rustyeddy/papertrade/risk"
	"github.com/rustyeddy/papertrade/venue"
)

// Result is one venue's share of a distribution: a fill or ack on
// success, a rejection reason when the risk gate vetoed the child, or
// the venue error.
type Result struct {
	Venue    string
	Request  order.Request
	Quantity float64
	Fill     *order.Fill
	Status   order.Status
	Rejected bool
	Reason   string
	Err      error
}

// AccountSource supplies the balance and position snapshots the risk
// gate reads when judging each child order.
type AccountSource interface {
	Balance(owner string) (float64, error)
	Positions(owner string) ([]ledger.Position, error)
}

// Coordinator distributes orders across the registered venues.
type Coordinator struct {
	registry *venue.Registry
	gate     *risk.Gate
	account  AccountSource
	quotes   market.QuoteSource
	timeout  time.Duration
	log      *zap.Logger
}

func NewCoordinator(registry *venue.Registry, gate *risk.Gate, account AccountSource, quotes market.QuoteSource, timeout time.Duration, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{
		registry: registry,
		gate:     gate,
		account:  account,
		quotes:   quotes,
		timeout:  timeout,
		log:      log,
	}
}

// Distribute splits req across venues by weight and dispatches the
// accepted children concurrently. A nil or empty weights map splits
// evenly across every registered venue; weights are normalized to sum
// to 1.
// Venues whose share rounds to zero are skipped silently. The call
// waits for all venues and never fails wholesale because one did.
func (c *Coordinator) Distribute(ctx context.Context, req order.Request, weights map[string]float64) map[string]Result {
	venues := c.registry.Names()
	shares := splitQuantity(req.Quantity, venues, weights)

	results := make(map[string]Result, len(shares))
	var mu sync.Mutex
	var wg sync.WaitGroup

	refPrice := c.referencePrice(ctx, req)

	for name, qty := range shares {
		child := req.Child(qty)

		if rejected, reason := c.checkChild(child, refPrice); rejected {
			mu.Lock()
			results[name] = Result{
				Venue:    name,
				Request:  child,
				Quantity: qty,
				Status:   order.StatusRejected,
				Rejected: true,
				Reason:   reason,
			}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(name string, child order.Request) {
			defer wg.Done()

			res := c.dispatch(ctx, name, child)

			mu.Lock()
			results[name] = res
			mu.Unlock()
		}(name, child)
	}

	wg.Wait()

	c.log.Info("order distributed",
		zap.String("order_id", req.ID),
		zap.String("symbol", req.Symbol),
		zap.Int("venues", len(results)))
	return results
}

// checkChild runs the risk gate for one child order. Gate failures to
// read account state are treated as rejections rather than dispatching
// unchecked.
func (c *Coordinator) checkChild(child order.Request, refPrice float64) (rejected bool, reason string) {
	balance, err := c.account.Balance(child.Owner)
	if err != nil {
		return true, "account balance unavailable: " + err.Error()
	}
	positions, err := c.account.Positions(child.Owner)
	if err != nil {
		return true, "account positions unavailable: " + err.Error()
	}

	ok, why := c.gate.Validate(risk.Context{
		Order:     child,
		Price:     refPrice,
		Balance:   balance,
		Positions: positions,
		Metrics:   c.gate.Snapshot(),
	})
	return !ok, why
}

// referencePrice is the price the risk gate values children at: the
// limit or stop price when present, otherwise the current mid, so
// market-order notionals are gated too.
func (c *Coordinator) referencePrice(ctx context.Context, req order.Request) float64 {
	if req.LimitPrice != nil {
		return *req.LimitPrice
	}
	if req.StopPrice != nil {
		return *req.StopPrice
	}
	if c.quotes != nil {
		if q, err := c.quotes.GetQuote(ctx, req.Symbol); err == nil {
			return q.Mid()
		}
	}
	return 0
}

func (c *Coordinator) dispatch(ctx context.Context, name string, child order.Request) Result {
	client, err := c.registry.Get(name)
	if err != nil {
		return Result{Venue: name, Request: child, Quantity: child.Quantity, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := client.PlaceOrder(callCtx, child)
	if err != nil {
		c.log.Warn("venue dispatch failed",
			zap.String("venue", name),
			zap.String("order_id", child.ID),
			zap.Error(err))
		return Result{Venue: name, Request: child, Quantity: child.Quantity, Err: err}
	}

	return Result{
		Venue:    name,
		Request:  child,
		Quantity: child.Quantity,
		Fill:     res.Fill,
		Status:   res.Status,
		Reason:   res.Reason,
	}
}

// FilledQuantity sums the filled quantity across a result map.
func FilledQuantity(results map[string]Result) float64 {
	var total float64
	for _, r := range results {
		if r.Fill != nil {
			total += r.Fill.Quantity
		}
	}
	return total
}
