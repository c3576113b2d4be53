package risk

import (
	"testing"
	"time"

	"main/internal/ledger"
	"main/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	venueID, err := reg.AddVenue("SIM")
	require.NoError(t, err)
	_, err = reg.AddInstrument(schema.Instrument{Name: "XYZ", VenueID: venueID, TickSize: 1, LotSize: 1})
	require.NoError(t, err)
	_, err = reg.AddInstrument(schema.Instrument{Name: "ABC", VenueID: venueID, TickSize: 1, LotSize: 1})
	require.NoError(t, err)
	return reg
}

func candidate(symbolID uint32, price schema.Price, qty schema.Quantity) schema.OrderIntent {
	return schema.OrderIntent{
		OrderID:  1,
		SymbolID: symbolID,
		Side:     schema.OrderSideBuy,
		Type:     schema.OrderTypeLimit,
		Price:    price,
		Qty:      qty,
	}
}

func TestNotionalLimit(t *testing.T) {
	gate := NewGate(Limits{MaxOrderNotional: 10000}, testRegistry(t), nil)
	view := View{Snapshot: ledger.Snapshot{}, Now: 1}

	got := gate.Evaluate(candidate(1, 90, 100), view) // notional 9000
	assert.Equal(t, schema.RiskActionAllow, got.Action)

	got = gate.Evaluate(candidate(1, 150, 100), view) // notional 15000
	assert.Equal(t, schema.RiskActionDeny, got.Action)
	assert.Equal(t, schema.RiskReasonNotionalExceeded, got.Reason)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	gate := NewGate(Limits{
		MaxOrderNotional: 10000,
		MaxExposure:      50000,
		OrderRateLimit:   5,
		OrderRateWindow:  time.Second,
	}, testRegistry(t), nil)

	view := View{Snapshot: ledger.Snapshot{}, Now: 123456789}
	intent := candidate(1, 90, 100)

	first := gate.Evaluate(intent, view)
	for range 10 {
		assert.Equal(t, first, gate.Evaluate(intent, view))
	}
}

func TestExposureLimitIncludesPendingOrders(t *testing.T) {
	gate := NewGate(Limits{MaxExposure: 10000}, testRegistry(t), nil)
	snap := ledger.Snapshot{
		Positions: []ledger.Position{{SymbolID: 1, Qty: 50, AvgCost: 90}},
		OpenOrders: []ledger.OrderRecord{
			{OrderID: 9, SymbolID: 1, Side: schema.OrderSideBuy, Price: 90, Qty: 30},
		},
	}
	view := View{Snapshot: snap, Now: 1}

	// 50 held + 30 pending + 40 proposed = 120 * 90 = 10800 > 10000.
	got := gate.Evaluate(candidate(1, 90, 40), view)
	assert.Equal(t, schema.RiskReasonExposureExceeded, got.Reason)

	// Selling reduces projected exposure.
	sell := candidate(1, 90, 40)
	sell.Side = schema.OrderSideSell
	got = gate.Evaluate(sell, view)
	assert.Equal(t, schema.RiskActionAllow, got.Action)
}

func TestRateLimitSlidingWindow(t *testing.T) {
	window := time.Second
	gate := NewGate(Limits{OrderRateLimit: 2, OrderRateWindow: window}, testRegistry(t), nil)
	view := func(now int64) View { return View{Snapshot: ledger.Snapshot{}, Now: now} }

	base := time.Unix(100, 0).UnixNano()
	assert.Equal(t, schema.RiskActionAllow, gate.Evaluate(candidate(1, 10, 1), view(base)).Action)
	gate.RecordSubmit(1, base)
	gate.RecordSubmit(1, base+int64(100*time.Millisecond))

	got := gate.Evaluate(candidate(1, 10, 1), view(base+int64(200*time.Millisecond)))
	assert.Equal(t, schema.RiskReasonRateLimited, got.Reason)

	// Other instruments are not affected by the per-instrument window.
	assert.Equal(t, schema.RiskActionAllow, gate.Evaluate(candidate(2, 10, 1), view(base+int64(200*time.Millisecond))).Action)

	// Outside the window the submissions age out.
	got = gate.Evaluate(candidate(1, 10, 1), view(base+int64(2*time.Second)))
	assert.Equal(t, schema.RiskActionAllow, got.Action)
}

func TestGlobalRateLimit(t *testing.T) {
	gate := NewGate(Limits{GlobalRateLimit: 2, OrderRateWindow: time.Second}, testRegistry(t), nil)
	base := time.Unix(100, 0).UnixNano()
	gate.RecordSubmit(1, base)
	gate.RecordSubmit(2, base)

	got := gate.Evaluate(candidate(1, 10, 1), View{Now: base + 1})
	assert.Equal(t, schema.RiskReasonRateLimited, got.Reason)
}

func TestHaltedInstrument(t *testing.T) {
	gate := NewGate(Limits{Halted: []string{"XYZ"}}, testRegistry(t), nil)
	got := gate.Evaluate(candidate(1, 10, 1), View{Now: 1})
	assert.Equal(t, schema.RiskReasonInstrumentHalted, got.Reason)

	got = gate.Evaluate(candidate(2, 10, 1), View{Now: 1})
	assert.Equal(t, schema.RiskActionAllow, got.Action)
}

func TestMarketOrderUsesReferencePrice(t *testing.T) {
	gate := NewGate(Limits{MaxOrderNotional: 10000}, testRegistry(t), nil)
	intent := candidate(1, 0, 100)
	intent.Type = schema.OrderTypeMarket

	got := gate.Evaluate(intent, View{RefPrice: 150, Now: 1})
	assert.Equal(t, schema.RiskReasonNotionalExceeded, got.Reason)

	got = gate.Evaluate(intent, View{RefPrice: 90, Now: 1})
	assert.Equal(t, schema.RiskActionAllow, got.Action)
}

func TestKillSwitchDeniesEverything(t *testing.T) {
	equity := NewEquityTracker(10_000, 500, 1_000)
	gate := NewGate(Limits{}, testRegistry(t), equity)

	assert.Equal(t, schema.RiskActionAllow, gate.Evaluate(candidate(1, 10, 1), View{Now: 1}).Action)

	assert.False(t, equity.Update(9_800))
	assert.True(t, equity.Update(9_400)) // daily loss 600 >= 500

	got := gate.Evaluate(candidate(1, 10, 1), View{Now: 2})
	assert.Equal(t, schema.RiskReasonKillSwitch, got.Reason)
}

func TestEquityTrackerTotalLossSurvivesDailyReset(t *testing.T) {
	equity := NewEquityTracker(10_000, 500, 1_000)
	require.True(t, equity.Update(8_900)) // total loss 1100

	equity.ResetDaily()
	assert.True(t, equity.Tripped())
	assert.Equal(t, schema.Cash(-1_100), equity.TotalPnL())
}
