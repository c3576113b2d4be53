package risk

import "main/internal/schema"

// EquityTracker follows account equity so the gate can halt trading
// before broker-side callbacks catch up. Once the kill switch trips it
// stays tripped; daily resets cannot revive a blown account.
type EquityTracker struct {
	maxDailyLoss schema.Cash
	maxTotalLoss schema.Cash

	initial  schema.Cash
	dayStart schema.Cash
	current  schema.Cash
	tripped  bool
}

// NewEquityTracker anchors drawdown limits to the starting equity.
func NewEquityTracker(initial schema.Cash, maxDailyLoss, maxTotalLoss schema.Cash) *EquityTracker {
	return &EquityTracker{
		maxDailyLoss: maxDailyLoss,
		maxTotalLoss: maxTotalLoss,
		initial:      initial,
		dayStart:     initial,
		current:      initial,
	}
}

// Update records the latest equity reading and re-checks the limits.
// Returns true if this update tripped the kill switch.
func (t *EquityTracker) Update(equity schema.Cash) bool {
	if t == nil || t.tripped {
		return false
	}
	t.current = equity

	if t.maxDailyLoss > 0 && t.dayStart-t.current >= t.maxDailyLoss {
		t.tripped = true
		return true
	}
	if t.maxTotalLoss > 0 && t.initial-t.current >= t.maxTotalLoss {
		t.tripped = true
		return true
	}
	return false
}

// Tripped reports whether the kill switch is active.
func (t *EquityTracker) Tripped() bool {
	return t != nil && t.tripped
}

// DailyPnL is equity change since the last daily reset.
func (t *EquityTracker) DailyPnL() schema.Cash {
	return t.current - t.dayStart
}

// TotalPnL is equity change since session start.
func (t *EquityTracker) TotalPnL() schema.Cash {
	return t.current - t.initial
}

// ResetDaily re-anchors the daily drawdown calculation. It does not
// untrip the switch when the total loss limit is already breached.
func (t *EquityTracker) ResetDaily() {
	if t.maxTotalLoss > 0 && t.initial-t.current >= t.maxTotalLoss {
		return
	}
	t.dayStart = t.current
	t.tripped = false
}
