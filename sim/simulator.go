// Package sim matches accepted order requests against historical bars.
// One call is one evaluation pass over a bounded window; the simulator
// keeps no standing watch on pending orders.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrade/market"
	"github.com/rustyeddy/papertrade/order"
)

// Result of one evaluation pass.
type Result int

const (
	// Filled: the order matched and Outcome.Fill is set.
	Filled Result = iota
	// Rejected: the order can never fill from this window (market
	// order with no usable bar).
	Rejected
	// Pending: a limit order whose price was not touched; the caller
	// decides whether to keep waiting or expire it.
	Pending
)

func (r Result) String() string {
	switch r {
	case Filled:
		return "FILLED"
	case Rejected:
		return "REJECTED"
	default:
		return "PENDING"
	}
}

// Outcome is the explicit result of evaluating one order. Expected
// business outcomes (rejection, no fill yet) are values here, not
// errors.
type Outcome struct {
	Result Result
	Fill   *order.Fill
	Reason string
}

// StatusListener is notified whenever an evaluation reaches a terminal
// status. No event is emitted while an order stays pending.
type StatusListener interface {
	OnOrderStatus(orderID string, status order.Status, reason string)
}

// Simulator evaluates orders against a market-data window.
type Simulator struct {
	provider       market.DataProvider
	commissionRate float64
	window         int
	listener       StatusListener
	log            *zap.Logger
}

func New(provider market.DataProvider, commissionRate float64, window int, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	if window <= 0 {
		window = 100
	}
	return &Simulator{
		provider:       provider,
		commissionRate: commissionRate,
		window:         window,
		log:            log,
	}
}

// SetStatusListener sets an optional terminal-status callback. The
// listener is invoked synchronously after the outcome is decided.
func (s *Simulator) SetStatusListener(l StatusListener) { s.listener = l }

// Evaluate runs one matching pass for req over a bar window strictly
// after the request timestamp.
//
//   - market orders fill at the open of the first bar, or are rejected
//     when no usable bar exists
//   - limit buys fill at the limit on the first bar whose low touches
//     it; limit sells on the first bar whose high touches it
//   - an untouched limit order is left pending with a note
//
// The returned error covers infrastructure failures only (provider
// errors other than missing data); business outcomes are in Outcome.
func (s *Simulator) Evaluate(ctx context.Context, req order.Request) (Outcome, error) {
	bars, err := s.provider.GetBars(ctx, req.Symbol, req.CreatedAt, s.window)
	if err != nil && !errors.Is(err, market.ErrNoData) {
		return Outcome{}, fmt.Errorf("sim: fetch bars for %s: %w", req.Symbol, err)
	}

	if errors.Is(err, market.ErrNoData) || len(bars) == 0 {
		return s.noData(req), nil
	}

	switch req.Type {
	case order.Market:
		return s.evalMarket(req, bars), nil
	case order.Limit:
		return s.evalLimit(req, bars), nil
	default:
		// Request construction validates the type; anything else is a
		// programming error.
		return Outcome{}, fmt.Errorf("sim: unknown order type %q", req.Type)
	}
}

func (s *Simulator) noData(req order.Request) Outcome {
	if req.Type == order.Limit {
		// Limit orders wait for data rather than dying on a gap.
		return Outcome{Result: Pending, Reason: "no market data after request time"}
	}
	return s.reject(req, "no market data after request time")
}

func (s *Simulator) evalMarket(req order.Request, bars []market.Bar) Outcome {
	first := bars[0]
	if first.Open <= 0 {
		return s.reject(req, fmt.Sprintf("invalid open price %.8f on first bar", first.Open))
	}
	return s.fill(req, first.Open, first.Time)
}

func (s *Simulator) evalLimit(req order.Request, bars []market.Bar) Outcome {
	limit := *req.LimitPrice
	for _, b := range bars {
		touched := false
		if req.Side == order.Buy {
			touched = b.Low <= limit
		} else {
			touched = b.High >= limit
		}
		if touched {
			return s.fill(req, limit, b.Time)
		}
	}
	return Outcome{
		Result: Pending,
		Reason: fmt.Sprintf("limit %.8f not touched in %d bars", limit, len(bars)),
	}
}

func (s *Simulator) fill(req order.Request, price float64, at time.Time) Outcome {
	commission := price * req.Quantity * s.commissionRate
	f := order.NewFill(req, price, req.Quantity, commission, at)

	s.log.Debug("order filled",
		zap.String("order_id", req.ID),
		zap.String("symbol", req.Symbol),
		zap.Float64("price", price),
		zap.Float64("quantity", req.Quantity),
		zap.Float64("commission", commission))

	if s.listener != nil {
		s.listener.OnOrderStatus(req.ID, order.StatusFilled, "")
	}
	return Outcome{Result: Filled, Fill: &f}
}

func (s *Simulator) reject(req order.Request, reason string) Outcome {
	s.log.Debug("order rejected by simulator",
		zap.String("order_id", req.ID),
		zap.String("symbol", req.Symbol),
		zap.String("reason", reason))

	if s.listener != nil {
		s.listener.OnOrderStatus(req.ID, order.StatusRejected, reason)
	}
	return Outcome{Result: Rejected, Reason: reason}
}
