package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrade/ledger"
	"github.com/rustyeddy/papertrade/market"
	"github.com/rustyeddy/papertrade/order"
)

func apply(t *testing.T, l *ledger.Ledger, symbol string, side order.Side, qty, price float64) {
	t.Helper()
	req, err := order.New("alice", symbol, side, order.Market, qty)
	require.NoError(t, err)
	_, err = l.ApplyFill(order.NewFill(req, price, qty, 0, time.Now().UTC()))
	require.NoError(t, err)
}

func TestValue_EmptyPortfolioIsCash(t *testing.T) {
	t.Parallel()
	l := ledger.New(ledger.NewMemoryRepository(), nil)
	v := NewValuator(l, market.NewMemoryProvider())

	val, err := v.Value(context.Background(), "alice", 10_000)
	require.NoError(t, err)
	assert.Equal(t, 10_000.0, val.Cash)
	assert.Zero(t, val.PositionsValue)
	assert.Zero(t, val.UnrealizedPL)
	assert.Equal(t, 10_000.0, val.Total)
	assert.False(t, val.Time.IsZero())
}

func TestValue_LongMarksOnBid(t *testing.T) {
	t.Parallel()
	l := ledger.New(ledger.NewMemoryRepository(), nil)
	apply(t, l, "SOL-USD", order.Buy, 10, 171)

	quotes := market.NewMemoryProvider()
	quotes.SetQuote(market.Quote{Symbol: "SOL-USD", Bid: 180, Ask: 180.5, Time: time.Now().UTC()})

	v := NewValuator(l, quotes)
	val, err := v.Value(context.Background(), "alice", 5000)
	require.NoError(t, err)
	assert.InDelta(t, 10*180, val.PositionsValue, 1e-9)
	assert.InDelta(t, 10*(180-171), val.UnrealizedPL, 1e-9)
	assert.InDelta(t, 5000+1800, val.Total, 1e-9)
}

func TestValue_ShortMarksOnAsk(t *testing.T) {
	t.Parallel()
	l := ledger.New(ledger.NewMemoryRepository(), nil)
	apply(t, l, "SOL-USD", order.Sell, 10, 171)

	quotes := market.NewMemoryProvider()
	quotes.SetQuote(market.Quote{Symbol: "SOL-USD", Bid: 160, Ask: 160.5, Time: time.Now().UTC()})

	v := NewValuator(l, quotes)
	val, err := v.Value(context.Background(), "alice", 5000)
	require.NoError(t, err)
	// Short 10 marked at the ask: negative carrying value, positive P&L
	// from the move down.
	assert.InDelta(t, -10*160.5, val.PositionsValue, 1e-9)
	assert.InDelta(t, -10*(160.5-171), val.UnrealizedPL, 1e-9)
	assert.InDelta(t, 5000-1605, val.Total, 1e-9)
}

func TestValue_MixedBook(t *testing.T) {
	t.Parallel()
	l := ledger.New(ledger.NewMemoryRepository(), nil)
	apply(t, l, "BTC-USD", order.Buy, 0.5, 60_000)
	apply(t, l, "ETH-USD", order.Sell, 2, 3000)

	quotes := market.NewMemoryProvider()
	quotes.SetQuote(market.Quote{Symbol: "BTC-USD", Bid: 62_000, Ask: 62_010, Time: time.Now().UTC()})
	quotes.SetQuote(market.Quote{Symbol: "ETH-USD", Bid: 2890, Ask: 2900, Time: time.Now().UTC()})

	v := NewValuator(l, quotes)
	val, err := v.Value(context.Background(), "alice", 1000)
	require.NoError(t, err)

	wantValue := 0.5*62_000 - 2*2900
	wantPL := 0.5*(62_000-60_000) - 2*(2900-3000)
	assert.InDelta(t, wantValue, val.PositionsValue, 1e-9)
	assert.InDelta(t, wantPL, val.UnrealizedPL, 1e-9)
	assert.InDelta(t, 1000+wantValue, val.Total, 1e-9)
}

func TestValue_MissingQuoteFails(t *testing.T) {
	t.Parallel()
	l := ledger.New(ledger.NewMemoryRepository(), nil)
	apply(t, l, "SOL-USD", order.Buy, 1, 171)

	v := NewValuator(l, market.NewMemoryProvider())
	_, err := v.Value(context.Background(), "alice", 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, market.ErrNoData)
}
