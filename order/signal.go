package order

import "fmt"

// Action is a strategy signal's intent.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Signal is the output of an external strategy producer. The core
// never generates signals; it only turns them into order requests.
type Signal struct {
	Symbol      string
	Action      Action
	TargetPrice float64
	StopLoss    float64
	Confidence  float64
}

// ErrHoldSignal is returned by FromSignal for hold signals, which do
// not translate into an order.
var ErrHoldSignal = fmt.Errorf("order: hold signal produces no order")

// FromSignal converts a strategy signal into an order request for the
// given owner and quantity. A positive TargetPrice yields a limit
// order, otherwise a market order. StopLoss, when set, is carried on
// the request.
func FromSignal(owner string, sig Signal, quantity float64) (Request, error) {
	var side Side
	switch sig.Action {
	case ActionBuy:
		side = Buy
	case ActionSell:
		side = Sell
	case ActionHold:
		return Request{}, ErrHoldSignal
	default:
		return Request{}, &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", sig.Action)}
	}

	var opts []Option
	typ := Market
	if sig.TargetPrice > 0 {
		typ = Limit
		opts = append(opts, WithLimitPrice(sig.TargetPrice))
	}
	if sig.StopLoss > 0 {
		opts = append(opts, WithStopPrice(sig.StopLoss))
	}

	return New(owner, sig.Symbol, side, typ, quantity, opts...)
}
