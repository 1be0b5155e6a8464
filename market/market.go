// Package market defines the OHLCV bar and quote types the execution
// core consumes, and the provider interfaces that hide where they come
// from (live feed, replay file, test fixture).
package market

import (
	"context"
	"errors"
	"time"
)

// ErrNoData indicates a provider could not supply a usable bar window
// or quote for the requested symbol.
var ErrNoData = errors.New("market: no data")

// Bar is a single OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote is a top-of-book snapshot used for mark-to-market.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// DataProvider supplies historical bars for fill simulation. GetBars
// returns up to window bars strictly after the given time, oldest
// first. An unknown symbol returns ErrNoData; a known symbol with no
// bars after the cutoff returns an empty slice.
type DataProvider interface {
	GetBars(ctx context.Context, symbol string, after time.Time, window int) ([]Bar, error)
}

// QuoteSource supplies live marks for valuation and reconciliation.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}
