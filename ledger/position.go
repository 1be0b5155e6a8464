// Package ledger is the authoritative store of open positions. It is
// the only component permitted to mutate position state; everything
// else reads through it.
package ledger

import "time"

// Epsilon below which a position quantity is treated as zero and the
// record is deleted rather than persisted.
const Epsilon = 1e-9

// Position is an open position keyed by (owner, symbol). Quantity is
// signed: positive long, negative short. AvgEntryPrice is meaningful
// only while Quantity is non-zero.
type Position struct {
	Owner         string
	Symbol        string
	Quantity      float64
	AvgEntryPrice float64
	UpdatedAt     time.Time
}

// Notional returns |quantity| × average entry price.
func (p Position) Notional() float64 {
	q := p.Quantity
	if q < 0 {
		q = -q
	}
	return q * p.AvgEntryPrice
}

// Long reports whether the position is long.
func (p Position) Long() bool { return p.Quantity > 0 }
