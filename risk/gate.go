// Package risk is the pre-trade veto layer: independent, composable
// limit checks evaluated in configuration order before any state
// mutation happens.
package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Gate validates order requests against its configured limits. Checks
// are side-effect-free and safe to run concurrently; only
// UpdateMetrics writes, and it is serialized.
type Gate struct {
	limits []Limit
	log    *zap.Logger

	mu      sync.RWMutex
	breaker bool
	metrics Metrics
}

func NewGate(log *zap.Logger, limits ...Limit) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{limits: limits, log: log}
}

// SetCircuitBreaker arms or clears the manual circuit breaker. While
// armed, every order is rejected before any limit runs.
func (g *Gate) SetCircuitBreaker(on bool) {
	g.mu.Lock()
	g.breaker = on
	g.mu.Unlock()

	g.log.Warn("circuit breaker state changed", zap.Bool("active", on))
}

// CircuitBreaker reports whether the manual breaker is armed.
func (g *Gate) CircuitBreaker() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.breaker
}

// Validate runs the configured limits in order against c. The first
// rejection short-circuits; an order is accepted only when every limit
// accepts it. The caller is expected to have populated c.Metrics via
// Snapshot.
func (g *Gate) Validate(c Context) (accepted bool, reason string) {
	if g.CircuitBreaker() {
		return false, "circuit breaker active"
	}

	for _, l := range g.limits {
		ok, why := l.Check(c)
		if !ok {
			g.log.Info("order rejected by risk limit",
				zap.String("limit", l.Name()),
				zap.String("order_id", c.Order.ID),
				zap.String("symbol", c.Order.Symbol),
				zap.String("reason", why))
			return false, why
		}
	}
	return true, ""
}

// UpdateMetrics folds one completed order cycle into the running
// counters. It must be the only writer; callers invoke it once per
// cycle.
func (g *Gate) UpdateMetrics(balance float64, tradeExecuted bool, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.metrics.roll(balance, tradeExecuted, now)
}

// Snapshot returns a copy of the current metrics.
func (g *Gate) Snapshot() Metrics {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.metrics
}
