package ledger

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrade/order"
)

// Ledger applies fills to positions. Fills on the same (owner, symbol)
// key are serialized so the weighted-average math sees a consistent
// prior state; fills on different keys proceed in parallel.
type Ledger struct {
	repo Repository
	log  *zap.Logger

	mu    sync.Mutex
	locks map[posKey]*sync.Mutex
}

func New(repo Repository, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		repo:  repo,
		log:   log,
		locks: make(map[posKey]*sync.Mutex),
	}
}

func (l *Ledger) keyLock(k posKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[k]
	if !ok {
		m = &sync.Mutex{}
		l.locks[k] = m
	}
	return m
}

// ApplyFill folds a fill into the (owner, symbol) position:
//
//   - no position yet: open at the fill price
//   - same direction: grow quantity, re-weight the average entry
//   - opposite, smaller: shrink quantity, average unchanged
//   - opposite, equal: close and delete the record (returns nil)
//   - opposite, larger: flip; the fill price becomes the new basis
//
// Realized P&L is not computed here; the history store reconstructs it
// from the fill log.
func (l *Ledger) ApplyFill(f order.Fill) (*Position, error) {
	if f.Quantity <= 0 {
		return nil, fmt.Errorf("ledger: fill %s has non-positive quantity %f", f.ID, f.Quantity)
	}

	k := posKey{f.Owner, f.Symbol}
	lk := l.keyLock(k)
	lk.Lock()
	defer lk.Unlock()

	signed := f.SignedQuantity()

	existing, found, err := l.repo.Get(f.Owner, f.Symbol)
	if err != nil {
		return nil, fmt.Errorf("ledger: load position: %w", err)
	}

	if !found {
		p := Position{
			Owner:         f.Owner,
			Symbol:        f.Symbol,
			Quantity:      signed,
			AvgEntryPrice: f.Price,
			UpdatedAt:     f.Time,
		}
		if err := l.repo.Save(p); err != nil {
			return nil, fmt.Errorf("ledger: save position: %w", err)
		}
		l.log.Debug("position opened",
			zap.String("owner", f.Owner),
			zap.String("symbol", f.Symbol),
			zap.Float64("quantity", p.Quantity),
			zap.Float64("avg_entry", p.AvgEntryPrice))
		return &p, nil
	}

	newQty := existing.Quantity + signed

	if math.Abs(newQty) < Epsilon {
		if err := l.repo.Delete(f.Owner, f.Symbol); err != nil {
			return nil, fmt.Errorf("ledger: delete position: %w", err)
		}
		l.log.Debug("position closed",
			zap.String("owner", f.Owner),
			zap.String("symbol", f.Symbol),
			zap.Float64("exit_price", f.Price))
		return nil, nil
	}

	p := existing
	p.Quantity = newQty
	p.UpdatedAt = f.Time

	switch {
	case newQty*existing.Quantity < 0:
		// Flip: the remaining directional quantity was opened entirely
		// at the flip fill's price.
		p.AvgEntryPrice = f.Price
	case signed*existing.Quantity > 0:
		// Adding in the same direction: volume-weighted average.
		p.AvgEntryPrice = (existing.Quantity*existing.AvgEntryPrice + signed*f.Price) / newQty
	default:
		// Partial reduction keeps the entry basis.
	}

	if err := l.repo.Save(p); err != nil {
		return nil, fmt.Errorf("ledger: save position: %w", err)
	}
	l.log.Debug("position updated",
		zap.String("owner", f.Owner),
		zap.String("symbol", f.Symbol),
		zap.Float64("quantity", p.Quantity),
		zap.Float64("avg_entry", p.AvgEntryPrice))
	return &p, nil
}

// Position returns the open position for (owner, symbol), if any.
func (l *Ledger) Position(owner, symbol string) (Position, bool, error) {
	return l.repo.Get(owner, symbol)
}

// Positions returns all open positions for an owner.
func (l *Ledger) Positions(owner string) ([]Position, error) {
	return l.repo.List(owner)
}
