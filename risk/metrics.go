package risk

import "time"

// Metrics are the running counters the limits read: peak balance for
// the drawdown breaker, day-start balance for the daily-loss limit and
// the trades-today counter. They are only written through
// Gate.UpdateMetrics.
type Metrics struct {
	PeakBalance     float64
	DayStartBalance float64
	TradesToday     int
	Day             time.Time // UTC midnight of the current trading day
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// roll advances counters for a completed cycle. A UTC date change
// resets the daily counters and re-bases the day-start balance.
func (m *Metrics) roll(balance float64, tradeExecuted bool, now time.Time) {
	day := dayOf(now)
	if !day.Equal(m.Day) {
		m.Day = day
		m.DayStartBalance = balance
		m.TradesToday = 0
	}
	if balance > m.PeakBalance {
		m.PeakBalance = balance
	}
	if tradeExecuted {
		m.TradesToday++
	}
}
