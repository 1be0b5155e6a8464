package history

import (
	"time"

	"github.com/rustyeddy/papertrade/order"
)

// ProcessedTrade is one FIFO-matched round trip: a quantity opened by
// one fill and closed by an opposing one. Commission carries both
// legs' prorated share; RealizedPL is gross of commission.
type ProcessedTrade struct {
	Symbol       string
	Quantity     float64
	EntryPrice   float64
	ExitPrice    float64
	EntryTime    time.Time
	ExitTime     time.Time
	EntryOrderID string
	ExitOrderID  string
	RealizedPL   float64
	Commission   float64
}

// NetPL returns realized P&L after commissions.
func (t ProcessedTrade) NetPL() float64 {
	return t.RealizedPL - t.Commission
}

// lot is the unmatched remainder of an open fill.
type lot struct {
	orderID   string
	side      order.Side
	remaining float64
	price     float64
	time      time.Time
	commPerQ  float64
}

// MatchFIFO reconstructs closed round trips from a chronological fill
// sequence, one symbol's fills matched independently of every other
// symbol's. Opposing fills consume the oldest open lot first, splitting
// lots when quantities differ; a fill larger than the whole book flips
// the book and the excess becomes the first lot of the new direction.
func MatchFIFO(fills []order.Fill) []ProcessedTrade {
	books := make(map[string][]lot)
	var out []ProcessedTrade

	for _, f := range fills {
		if f.Quantity <= 0 {
			continue
		}

		book := books[f.Symbol]
		commPerQ := f.Commission / f.Quantity

		// Same direction as the book head: just another open lot.
		if len(book) == 0 || book[0].side == f.Side {
			books[f.Symbol] = append(book, lot{
				orderID:   f.OrderID,
				side:      f.Side,
				remaining: f.Quantity,
				price:     f.Price,
				time:      f.Time,
				commPerQ:  commPerQ,
			})
			continue
		}

		remaining := f.Quantity
		for remaining > 0 && len(book) > 0 {
			head := &book[0]
			matched := remaining
			if head.remaining < matched {
				matched = head.remaining
			}

			pl := (f.Price - head.price) * matched
			if head.side == order.Sell {
				// Short round trip: profit when the exit is below entry.
				pl = -pl
			}

			out = append(out, ProcessedTrade{
				Symbol:       f.Symbol,
				Quantity:     matched,
				EntryPrice:   head.price,
				ExitPrice:    f.Price,
				EntryTime:    head.time,
				ExitTime:     f.Time,
				EntryOrderID: head.orderID,
				ExitOrderID:  f.OrderID,
				RealizedPL:   pl,
				Commission:   matched * (head.commPerQ + commPerQ),
			})

			head.remaining -= matched
			remaining -= matched
			if head.remaining <= 0 {
				book = book[1:]
			}
		}

		if remaining > 0 {
			// Flip: the excess opens the book in the fill's direction.
			book = append(book, lot{
				orderID:   f.OrderID,
				side:      f.Side,
				remaining: remaining,
				price:     f.Price,
				time:      f.Time,
				commPerQ:  commPerQ,
			})
		}
		books[f.Symbol] = book
	}

	return out
}

// GetProcessedTrades loads an owner's fill history from the store and
// FIFO-matches it into closed round trips.
func GetProcessedTrades(s Store, owner string) ([]ProcessedTrade, error) {
	fills, err := s.Fills(owner)
	if err != nil {
		return nil, err
	}
	return MatchFIFO(fills), nil
}

// TotalRealizedPL sums gross realized P&L across processed trades.
func TotalRealizedPL(trades []ProcessedTrade) float64 {
	var total float64
	for _, t := range trades {
		total += t.RealizedPL
	}
	return total
}
