// Package history is the append-only log of order lifecycles and
// fills. It can reconstruct realized P&L by FIFO matching independent
// of the live position ledger.
package history

import (
	"time"

	"github.com/rustyeddy/papertrade/order"
)

// TradeRecord is one order's lifecycle row. Status and fill fields are
// appended incrementally as fills are learned of; nothing is mutated
// after a terminal status except by those appends.
type TradeRecord struct {
	OrderID        string
	Owner          string
	Symbol         string
	Side           order.Side
	Type           order.Type
	Quantity       float64
	FilledQuantity float64
	LimitPrice     *float64
	StopPrice      *float64
	FillPrice      float64
	Commission     float64
	Status         order.Status
	Reason         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewRecord builds the initial NEW row for an accepted request.
func NewRecord(req order.Request) TradeRecord {
	return TradeRecord{
		OrderID:    req.ID,
		Owner:      req.Owner,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
		Status:     order.StatusNew,
		CreatedAt:  req.CreatedAt,
		UpdatedAt:  req.CreatedAt,
	}
}

// Open reports whether the order may still fill or be canceled.
func (r TradeRecord) Open() bool {
	return r.Status.Cancellable()
}
