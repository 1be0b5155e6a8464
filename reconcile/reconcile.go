// Package reconcile compares the ledger's expected positions against
// what each venue actually reports and surfaces the drift. It never
// corrects anything; the report is the unit of observability and
// masking a ledger bug with an automatic fix-up is exactly what this
// design avoids.
package reconcile

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrade/ledger"
	"github.com/rustyeddy/papertrade/venue"
)

// Kind classifies one discrepancy.
type Kind string

const (
	// Missing: expected in the ledger but not found on the venue.
	Missing Kind = "missing"
	// QuantityMismatch: present on both sides with quantities further
	// apart than the tolerance.
	QuantityMismatch Kind = "quantity_mismatch"
	// Unexpected: reported by the venue but absent from the ledger.
	Unexpected Kind = "unexpected"
)

// Discrepancy is one expected-vs-actual divergence on one venue.
type Discrepancy struct {
	Venue    string
	Symbol   string
	Kind     Kind
	Expected float64
	Actual   float64
}

// Report is the outcome of one reconciliation run.
type Report struct {
	Time          time.Time
	VenuesChecked int
	VenueErrors   map[string]error
	Discrepancies []Discrepancy
}

// Clean reports whether the run found no drift and no venue errors.
func (r Report) Clean() bool {
	return len(r.Discrepancies) == 0 && len(r.VenueErrors) == 0
}

// Reconciler runs expected-vs-actual comparisons for one owner across
// every registered venue.
type Reconciler struct {
	ledger    *ledger.Ledger
	registry  *venue.Registry
	owner     string
	tolerance float64
	log       *zap.Logger
}

func New(l *ledger.Ledger, registry *venue.Registry, owner string, tolerance float64, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	if tolerance <= 0 {
		tolerance = ledger.Epsilon
	}
	return &Reconciler{
		ledger:    l,
		registry:  registry,
		owner:     owner,
		tolerance: tolerance,
		log:       log,
	}
}

// Reconcile pulls expected positions from the ledger and actual
// positions from each venue, and records every divergence. A venue
// that cannot be queried is reported in VenueErrors; its positions are
// not guessed at.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	report := Report{
		Time:        time.Now().UTC(),
		VenueErrors: make(map[string]error),
	}

	expected, err := r.ledger.Positions(r.owner)
	if err != nil {
		return report, err
	}
	expectedBySymbol := make(map[string]ledger.Position, len(expected))
	for _, p := range expected {
		expectedBySymbol[p.Symbol] = p
	}

	for _, name := range r.registry.Names() {
		client, err := r.registry.Get(name)
		if err != nil {
			report.VenueErrors[name] = err
			continue
		}

		actual, err := client.GetPositions(ctx)
		if err != nil {
			r.log.Warn("venue position query failed",
				zap.String("venue", name), zap.Error(err))
			report.VenueErrors[name] = err
			continue
		}
		report.VenuesChecked++

		actualBySymbol := make(map[string]venue.Position, len(actual))
		for _, p := range actual {
			actualBySymbol[p.Symbol] = p
		}

		for symbol, exp := range expectedBySymbol {
			act, found := actualBySymbol[symbol]
			if !found {
				report.Discrepancies = append(report.Discrepancies, Discrepancy{
					Venue:    name,
					Symbol:   symbol,
					Kind:     Missing,
					Expected: exp.Quantity,
				})
				continue
			}
			if math.Abs(exp.Quantity-act.Quantity) > r.tolerance {
				report.Discrepancies = append(report.Discrepancies, Discrepancy{
					Venue:    name,
					Symbol:   symbol,
					Kind:     QuantityMismatch,
					Expected: exp.Quantity,
					Actual:   act.Quantity,
				})
			}
		}

		for symbol, act := range actualBySymbol {
			if _, found := expectedBySymbol[symbol]; !found {
				report.Discrepancies = append(report.Discrepancies, Discrepancy{
					Venue:  name,
					Symbol: symbol,
					Kind:   Unexpected,
					Actual: act.Quantity,
				})
			}
		}
	}

	if !report.Clean() {
		r.log.Warn("reconciliation found discrepancies",
			zap.Int("count", len(report.Discrepancies)),
			zap.Int("venue_errors", len(report.VenueErrors)))
	}
	return report, nil
}
