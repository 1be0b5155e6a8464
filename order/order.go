// Package order defines the immutable order request and fill types
// that flow through the risk gate, the fill simulator and the position
// ledger.
package order

import (
	"fmt"
	"time"

	"github.com/rustyeddy/papertrade/pkg/id"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Type is the execution style of an order.
type Type string

const (
	Market Type = "market"
	Limit  Type = "limit"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusNew             Status = "NEW"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusPendingCancel   Status = "PENDING_CANCEL"
	StatusCanceled        Status = "CANCELED"
	StatusRejected        Status = "REJECTED"
)

// Cancellable reports whether an order in this status may still be
// canceled.
func (s Status) Cancellable() bool {
	switch s {
	case StatusNew, StatusPartiallyFilled, StatusPendingCancel:
		return true
	}
	return false
}

// ValidationError describes a malformed order request. It is returned
// synchronously to the caller and never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order: %s: %s", e.Field, e.Reason)
}

// Request is a validated, immutable order request. Build one with New;
// a zero Request is not valid.
type Request struct {
	ID         string
	Owner      string
	Symbol     string
	Side       Side
	Type       Type
	Quantity   float64
	LimitPrice *float64
	StopPrice  *float64
	CreatedAt  time.Time
}

// Option mutates a request under construction.
type Option func(*Request)

// WithLimitPrice sets the limit price. Required for limit orders.
func WithLimitPrice(p float64) Option {
	return func(r *Request) { r.LimitPrice = &p }
}

// WithStopPrice attaches a stop-loss price carried through to the
// trade record. The simulator does not watch stops; see sim.
func WithStopPrice(p float64) Option {
	return func(r *Request) { r.StopPrice = &p }
}

// WithCreatedAt overrides the request timestamp, used by replay runs.
func WithCreatedAt(t time.Time) Option {
	return func(r *Request) { r.CreatedAt = t }
}

// New builds a validated order request. Quantity must be positive and
// limit orders must carry a positive limit price.
func New(owner, symbol string, side Side, typ Type, quantity float64, opts ...Option) (Request, error) {
	r := Request{
		ID:        id.New(),
		Owner:     owner,
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&r)
	}

	if owner == "" {
		return Request{}, &ValidationError{Field: "owner", Reason: "must be set"}
	}
	if symbol == "" {
		return Request{}, &ValidationError{Field: "symbol", Reason: "must be set"}
	}
	if side != Buy && side != Sell {
		return Request{}, &ValidationError{Field: "side", Reason: fmt.Sprintf("unknown side %q", side)}
	}
	if typ != Market && typ != Limit {
		return Request{}, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", typ)}
	}
	if quantity <= 0 {
		return Request{}, &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if typ == Limit {
		if r.LimitPrice == nil {
			return Request{}, &ValidationError{Field: "limit_price", Reason: "required for limit orders"}
		}
		if *r.LimitPrice <= 0 {
			return Request{}, &ValidationError{Field: "limit_price", Reason: "must be positive"}
		}
	}
	if r.StopPrice != nil && *r.StopPrice <= 0 {
		return Request{}, &ValidationError{Field: "stop_price", Reason: "must be positive"}
	}

	return r, nil
}

// SignedQuantity returns +Quantity for buys and -Quantity for sells.
func (r Request) SignedQuantity() float64 {
	if r.Side == Sell {
		return -r.Quantity
	}
	return r.Quantity
}

// Child returns a copy of the request with a fresh ID and a scaled
// quantity, used by the multi-exchange coordinator to derive per-venue
// child orders.
func (r Request) Child(quantity float64) Request {
	c := r
	c.ID = id.New()
	c.Quantity = quantity
	return c
}

// Fill is the realized execution of an accepted order. At most one
// fill is created per order in the simulated path.
type Fill struct {
	ID         string
	OrderID    string
	Owner      string
	Symbol     string
	Side       Side
	Price      float64
	Quantity   float64
	Commission float64
	Time       time.Time
}

// NewFill builds a fill against req at the given price and time.
func NewFill(req Request, price, quantity, commission float64, at time.Time) Fill {
	return Fill{
		ID:         id.New(),
		OrderID:    req.ID,
		Owner:      req.Owner,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Price:      price,
		Quantity:   quantity,
		Commission: commission,
		Time:       at,
	}
}

// SignedQuantity returns +Quantity for buys and -Quantity for sells.
func (f Fill) SignedQuantity() float64 {
	if f.Side == Sell {
		return -f.Quantity
	}
	return f.Quantity
}

// Notional returns price × quantity.
func (f Fill) Notional() float64 {
	return f.Price * f.Quantity
}
