package market

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryProvider is an in-memory DataProvider and QuoteSource. It backs
// the paper venue in tests and CLI replay runs.
type MemoryProvider struct {
	mu     sync.RWMutex
	bars   map[string][]Bar
	quotes map[string]Quote
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		bars:   make(map[string][]Bar),
		quotes: make(map[string]Quote),
	}
}

// AddBars appends bars for a symbol and keeps them sorted by time.
func (m *MemoryProvider) AddBars(symbol string, bars ...Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bars[symbol] = append(m.bars[symbol], bars...)
	sort.Slice(m.bars[symbol], func(i, j int) bool {
		return m.bars[symbol][i].Time.Before(m.bars[symbol][j].Time)
	})
}

// SetQuote records the latest quote for a symbol.
func (m *MemoryProvider) SetQuote(q Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[q.Symbol] = q
}

func (m *MemoryProvider) GetBars(ctx context.Context, symbol string, after time.Time, window int) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	all, ok := m.bars[symbol]
	if !ok {
		return nil, ErrNoData
	}

	i := sort.Search(len(all), func(i int) bool {
		return all[i].Time.After(after)
	})

	out := make([]Bar, 0, window)
	for ; i < len(all) && len(out) < window; i++ {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *MemoryProvider) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.quotes[symbol]
	if !ok {
		return Quote{}, ErrNoData
	}
	return q, nil
}
