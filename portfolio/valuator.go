// Package portfolio computes on-demand mark-to-market valuations from
// the position ledger and a live quote source. Nothing here is cached;
// every call reprices from scratch.
package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/papertrade/ledger"
	"github.com/rustyeddy/papertrade/market"
)

// Valuation is a derived, non-persisted snapshot.
type Valuation struct {
	Cash           float64
	PositionsValue float64
	UnrealizedPL   float64
	Total          float64
	Time           time.Time
}

// Valuator marks an owner's open positions against live quotes.
type Valuator struct {
	ledger *ledger.Ledger
	quotes market.QuoteSource
}

func NewValuator(l *ledger.Ledger, quotes market.QuoteSource) *Valuator {
	return &Valuator{ledger: l, quotes: quotes}
}

// Value computes the portfolio valuation for owner given its cash
// balance. Longs mark on bid, shorts on ask, matching what closing
// the position would realize.
func (v *Valuator) Value(ctx context.Context, owner string, cash float64) (Valuation, error) {
	positions, err := v.ledger.Positions(owner)
	if err != nil {
		return Valuation{}, fmt.Errorf("portfolio: load positions: %w", err)
	}

	val := Valuation{Cash: cash, Time: time.Now().UTC()}

	for _, p := range positions {
		q, err := v.quotes.GetQuote(ctx, p.Symbol)
		if err != nil {
			return Valuation{}, fmt.Errorf("portfolio: quote %s: %w", p.Symbol, err)
		}

		mark := q.Bid
		if !p.Long() {
			mark = q.Ask
		}

		val.PositionsValue += p.Quantity * mark
		val.UnrealizedPL += p.Quantity * (mark - p.AvgEntryPrice)
	}

	val.Total = val.Cash + val.PositionsValue
	return val, nil
}
