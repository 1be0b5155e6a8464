package market

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(t time.Time, o, h, l, c float64) Bar {
	return Bar{Time: t, Open: o, High: h, Low: l, Close: c, Volume: 100}
}

func TestMemoryProvider_WindowStrictlyAfter(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewMemoryProvider()
	p.AddBars("BTC-USD",
		bar(t0, 100, 110, 90, 105),
		bar(t0.Add(time.Minute), 105, 115, 100, 110),
		bar(t0.Add(2*time.Minute), 110, 120, 105, 115),
	)

	bars, err := p.GetBars(context.Background(), "BTC-USD", t0, 10)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 105.0, bars[0].Open)

	bars, err = p.GetBars(context.Background(), "BTC-USD", t0.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestMemoryProvider_WindowLimit(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewMemoryProvider()
	for i := 0; i < 10; i++ {
		p.AddBars("ETH-USD", bar(t0.Add(time.Duration(i)*time.Minute), 10, 11, 9, 10))
	}

	bars, err := p.GetBars(context.Background(), "ETH-USD", t0.Add(-time.Second), 3)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

func TestMemoryProvider_UnknownSymbol(t *testing.T) {
	t.Parallel()

	p := NewMemoryProvider()
	_, err := p.GetBars(context.Background(), "NOPE-USD", time.Now(), 5)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = p.GetQuote(context.Background(), "NOPE-USD")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestMemoryProvider_BarsSortedAcrossAdds(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewMemoryProvider()
	p.AddBars("BTC-USD", bar(t0.Add(2*time.Minute), 3, 3, 3, 3))
	p.AddBars("BTC-USD", bar(t0, 1, 1, 1, 1), bar(t0.Add(time.Minute), 2, 2, 2, 2))

	bars, err := p.GetBars(context.Background(), "BTC-USD", t0.Add(-time.Second), 10)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 1.0, bars[0].Open)
	assert.Equal(t, 3.0, bars[2].Open)
}

func TestQuoteMid(t *testing.T) {
	t.Parallel()

	q := Quote{Bid: 100, Ask: 102}
	assert.Equal(t, 101.0, q.Mid())
}

func TestReadBarsCSV(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"time,symbol,open,high,low,close,volume",
		"2024-03-01T09:00:00Z,BTC-USD,100,110,90,105,1200",
		"2024-03-01T09:01:00Z,BTC-USD,105,115,100,110,900",
		"2024-03-01T09:00:00Z,ETH-USD,10,11,9,10.5,400",
	}, "\n")

	bars, err := ReadBarsCSV(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, bars["BTC-USD"], 2)
	require.Len(t, bars["ETH-USD"], 1)
	assert.Equal(t, 110.0, bars["BTC-USD"][0].High)
	assert.Equal(t, 400.0, bars["ETH-USD"][0].Volume)
}

func TestReadBarsCSV_BadRow(t *testing.T) {
	t.Parallel()

	_, err := ReadBarsCSV(strings.NewReader("2024-03-01T09:00:00Z,BTC-USD,100,x,90,105,1200"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad number")
}
