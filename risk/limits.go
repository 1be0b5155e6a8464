package risk

import (
	"fmt"

	"github.com/rustyeddy/papertrade/ledger"
	"github.com/rustyeddy/papertrade/order"
)

// Context is everything a limit may read when judging one order. All
// fields are snapshots; limits never mutate shared state.
type Context struct {
	Order     order.Request
	Price     float64 // reference price for notional (limit price or last mark)
	Balance   float64
	Positions []ledger.Position
	Metrics   Metrics
}

// Notional returns quantity × reference price for the proposed order.
func (c Context) Notional() float64 {
	return c.Order.Quantity * c.Price
}

// Limit is one pluggable risk check. Check returns whether the order
// is acceptable and, when it is not, a human-readable reason.
type Limit interface {
	Name() string
	Check(c Context) (ok bool, reason string)
}

// PositionSizeLimit rejects orders whose notional exceeds either an
// absolute USD cap or a percentage of the account balance. A zero cap
// disables that half of the check.
type PositionSizeLimit struct {
	MaxNotionalUSD float64
	MaxBalancePct  float64
}

func (l PositionSizeLimit) Name() string { return "position_size" }

func (l PositionSizeLimit) Check(c Context) (bool, string) {
	notional := c.Notional()
	if l.MaxNotionalUSD > 0 && notional > l.MaxNotionalUSD {
		return false, fmt.Sprintf("order notional %.2f exceeds max capital allocation %.2f", notional, l.MaxNotionalUSD)
	}
	if l.MaxBalancePct > 0 && c.Balance > 0 && notional > l.MaxBalancePct*c.Balance {
		return false, fmt.Sprintf("order notional %.2f exceeds %.1f%% of balance %.2f",
			notional, 100*l.MaxBalancePct, c.Balance)
	}
	return true, ""
}

// DrawdownLimit rejects every order once the balance has fallen from
// its peak by more than MaxPct. It looks only at account state, never
// at the order, and acts as an automatic circuit breaker.
type DrawdownLimit struct {
	MaxPct float64
}

func (l DrawdownLimit) Name() string { return "drawdown" }

func (l DrawdownLimit) Check(c Context) (bool, string) {
	if l.MaxPct <= 0 || c.Metrics.PeakBalance <= 0 {
		return true, ""
	}
	dd := (c.Metrics.PeakBalance - c.Balance) / c.Metrics.PeakBalance
	if dd > l.MaxPct {
		return false, fmt.Sprintf("drawdown %.2f%% exceeds max %.2f%%", 100*dd, 100*l.MaxPct)
	}
	return true, ""
}

// DailyLossLimit rejects once losses since the start of the trading
// day exceed MaxPct of the day-start balance.
type DailyLossLimit struct {
	MaxPct float64
}

func (l DailyLossLimit) Name() string { return "daily_loss" }

func (l DailyLossLimit) Check(c Context) (bool, string) {
	if l.MaxPct <= 0 || c.Metrics.DayStartBalance <= 0 {
		return true, ""
	}
	loss := c.Metrics.DayStartBalance - c.Balance
	limit := l.MaxPct * c.Metrics.DayStartBalance
	if loss > limit {
		return false, fmt.Sprintf("daily loss %.2f exceeds limit %.2f", loss, limit)
	}
	return true, ""
}

// TradeCountLimit rejects once MaxTrades have executed today.
type TradeCountLimit struct {
	MaxTrades int
}

func (l TradeCountLimit) Name() string { return "trade_count" }

func (l TradeCountLimit) Check(c Context) (bool, string) {
	if l.MaxTrades <= 0 {
		return true, ""
	}
	if c.Metrics.TradesToday >= l.MaxTrades {
		return false, fmt.Sprintf("trades today %d reached max %d", c.Metrics.TradesToday, l.MaxTrades)
	}
	return true, ""
}

// ExposureLimit rejects when total notional exposure, existing
// positions plus the proposed order, exceeds MaxPct of balance.
// Existing positions are valued at their entry basis.
type ExposureLimit struct {
	MaxPct float64
}

func (l ExposureLimit) Name() string { return "exposure" }

func (l ExposureLimit) Check(c Context) (bool, string) {
	if l.MaxPct <= 0 || c.Balance <= 0 {
		return true, ""
	}
	total := c.Notional()
	for _, p := range c.Positions {
		total += p.Notional()
	}
	limit := l.MaxPct * c.Balance
	if total > limit {
		return false, fmt.Sprintf("total exposure %.2f exceeds limit %.2f", total, limit)
	}
	return true, ""
}
