package venue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrade/market"
	"github.com/rustyeddy/papertrade/order"
	"github.com/rustyeddy/papertrade/sim"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func paperWithBars(bars ...market.Bar) *Paper {
	p := market.NewMemoryProvider()
	p.AddBars("ETH-USD", bars...)
	s := sim.New(p, 0.001, 100, nil)
	return NewPaper("binance-paper", s, 100_000, "USD", nil)
}

func bar(offset time.Duration, open, high, low, closed float64) market.Bar {
	return market.Bar{Time: t0.Add(offset), Open: open, High: high, Low: low, Close: closed, Volume: 50}
}

func marketBuy(t *testing.T, qty float64) order.Request {
	t.Helper()
	req, err := order.New("alice", "ETH-USD", order.Buy, order.Market, qty, order.WithCreatedAt(t0))
	require.NoError(t, err)
	return req
}

func TestPaper_PlaceOrderFillUpdatesBookAndCash(t *testing.T) {
	t.Parallel()
	v := paperWithBars(bar(time.Minute, 2000, 2010, 1990, 2005))

	res, err := v.PlaceOrder(context.Background(), marketBuy(t, 2))
	require.NoError(t, err)
	require.Equal(t, order.StatusFilled, res.Status)
	require.NotNil(t, res.Fill)
	assert.Equal(t, 2000.0, res.Fill.Price)

	positions, err := v.GetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "ETH-USD", positions[0].Symbol)
	assert.Equal(t, 2.0, positions[0].Quantity)
	assert.Equal(t, 2000.0, positions[0].EntryPrice)

	bal, err := v.GetBalance(context.Background())
	require.NoError(t, err)
	// 100000 - 2*2000 - commission 4
	assert.InDelta(t, 100_000-4000-4, bal["USD"], 1e-9)
}

func TestPaper_SellRestoresCash(t *testing.T) {
	t.Parallel()
	v := paperWithBars(
		bar(time.Minute, 2000, 2010, 1990, 2005),
		bar(2*time.Minute, 2100, 2110, 2090, 2105),
	)

	_, err := v.PlaceOrder(context.Background(), marketBuy(t, 2))
	require.NoError(t, err)

	sell, err := order.New("alice", "ETH-USD", order.Sell, order.Market, 2, order.WithCreatedAt(t0))
	require.NoError(t, err)
	res, err := v.PlaceOrder(context.Background(), sell)
	require.NoError(t, err)
	require.Equal(t, order.StatusFilled, res.Status)

	// Both legs fill at the first bar open; the position is flat again.
	positions, err := v.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)

	bal, err := v.GetBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 100_000-2*4, bal["USD"], 1e-9) // only the two commissions
}

func TestPaper_RejectedOrderLeavesStateAlone(t *testing.T) {
	t.Parallel()
	v := paperWithBars() // no bars at all

	res, err := v.PlaceOrder(context.Background(), marketBuy(t, 1))
	require.NoError(t, err)
	assert.Equal(t, order.StatusRejected, res.Status)
	assert.NotEmpty(t, res.Reason)

	bal, err := v.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100_000.0, bal["USD"])
}

func TestPaper_LimitRestsThenCancel(t *testing.T) {
	t.Parallel()
	v := paperWithBars(bar(time.Minute, 2000, 2010, 1990, 2005))

	req, err := order.New("alice", "ETH-USD", order.Buy, order.Limit, 1,
		order.WithLimitPrice(1500), order.WithCreatedAt(t0))
	require.NoError(t, err)

	res, err := v.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, order.StatusNew, res.Status)
	assert.Contains(t, v.PendingOrders(), req.ID)

	require.NoError(t, v.CancelOrder(context.Background(), req.ID))
	assert.Empty(t, v.PendingOrders())
}

func TestPaper_CancelUnknownOrder(t *testing.T) {
	t.Parallel()
	v := paperWithBars()

	err := v.CancelOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestPaper_RetryPendingFillsOnNewData(t *testing.T) {
	t.Parallel()
	provider := market.NewMemoryProvider()
	provider.AddBars("ETH-USD", bar(time.Minute, 2000, 2010, 1990, 2005))
	s := sim.New(provider, 0, 100, nil)
	v := NewPaper("binance-paper", s, 100_000, "USD", nil)

	req, err := order.New("alice", "ETH-USD", order.Buy, order.Limit, 1,
		order.WithLimitPrice(1500), order.WithCreatedAt(t0))
	require.NoError(t, err)
	res, err := v.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, order.StatusNew, res.Status)

	// Still no touch.
	fills, err := v.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fills)
	assert.Len(t, v.PendingOrders(), 1)

	// A later bar trades through the limit.
	provider.AddBars("ETH-USD", bar(2*time.Minute, 1600, 1610, 1480, 1500))
	fills, err = v.RetryPending(context.Background())
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, 1500.0, fills[0].Price)
	assert.Empty(t, v.PendingOrders())
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	a := paperWithBars()
	require.NoError(t, r.Register(a))
	assert.Error(t, r.Register(paperWithBars())) // duplicate name

	got, err := r.Get("binance-paper")
	require.NoError(t, err)
	assert.Same(t, Client(a), got)

	_, err = r.Get("kraken-paper")
	assert.ErrorIs(t, err, ErrUnknownVenue)

	assert.Equal(t, []string{"binance-paper"}, r.Names())
}
