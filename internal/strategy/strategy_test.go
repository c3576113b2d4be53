package strategy

import (
	"testing"

	"main/internal/ledger"
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	registry := schema.NewRegistry()
	venueID, err := registry.AddVenue("testvenue")
	require.NoError(t, err)
	for _, name := range []string{"AAA-USD", "BBB-USD"} {
		_, err = registry.AddInstrument(schema.Instrument{
			VenueID:  venueID,
			Name:     name,
			TickSize: 5,
			LotSize:  10,
		})
		require.NoError(t, err)
	}
	return registry
}

type stubStrategy struct {
	intents []schema.OrderIntent
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Evaluate(schema.MarketEvent, ledger.Snapshot) []schema.OrderIntent {
	return s.intents
}

func TestEngineStampsIntents(t *testing.T) {
	stub := &stubStrategy{intents: []schema.OrderIntent{
		{SymbolID: 1, Side: schema.OrderSideBuy, Type: schema.OrderTypeMarket, Qty: 20},
		{SymbolID: 2, Side: schema.OrderSideSell, Type: schema.OrderTypeLimit, Price: 100, Qty: 10},
	}}
	e := NewEngine(testRegistry(t), stub, 7)

	md := schema.MarketEvent{SymbolID: 1, Kind: schema.MarketTrade, TsEvent: 12345, Price: 100, Size: 1}
	intents := e.Evaluate(md, ledger.Snapshot{})
	require.Len(t, intents, 2)
	assert.Equal(t, uint64(1), intents[0].OrderID)
	assert.Equal(t, uint64(2), intents[1].OrderID)
	for _, intent := range intents {
		assert.Equal(t, uint32(7), intent.StrategyID)
		assert.Equal(t, int64(12345), intent.TsEvent)
	}

	// Order IDs keep increasing across evaluations.
	intents = e.Evaluate(md, ledger.Snapshot{})
	require.Len(t, intents, 2)
	assert.Equal(t, uint64(3), intents[0].OrderID)
}

func TestEngineDropsInvalidIntents(t *testing.T) {
	stub := &stubStrategy{intents: []schema.OrderIntent{
		{SymbolID: 99, Side: schema.OrderSideBuy, Type: schema.OrderTypeMarket, Qty: 10},  // unknown instrument
		{SymbolID: 1, Side: schema.OrderSideBuy, Type: schema.OrderTypeMarket, Qty: 7},    // off lot size
		{SymbolID: 1, Side: schema.OrderSideBuy, Type: schema.OrderTypeLimit, Qty: 10},    // limit without price
		{SymbolID: 1, Side: schema.OrderSideBuy, Type: schema.OrderTypeLimit, Price: 101, Qty: 10}, // off tick
		{SymbolID: 1, Side: schema.OrderSideSell, Type: schema.OrderTypeMarket, Qty: 10},  // valid
	}}
	e := NewEngine(testRegistry(t), stub, 1)

	intents := e.Evaluate(schema.MarketEvent{SymbolID: 1, Kind: schema.MarketTrade, TsEvent: 1}, ledger.Snapshot{})
	require.Len(t, intents, 1)
	assert.Equal(t, schema.OrderSideSell, intents[0].Side)
	assert.Equal(t, uint64(1), intents[0].OrderID)
}

func TestBuildUnknownStrategy(t *testing.T) {
	_, err := Build(Config{Name: "martingale"}, testRegistry(t))
	assert.ErrorIs(t, err, exception.ErrStrategyUnknown)
}

func pairsConfig() Config {
	return Config{
		Name:         "pairs",
		Qty:          10,
		LegA:         "AAA-USD",
		LegB:         "BBB-USD",
		Window:       2,
		EntryZ:       0.9,
		ExitZ:        0.5,
		CatastropheZ: 10,
	}
}

func trade(symbolID uint32, price schema.Price, ts int64) schema.MarketEvent {
	return schema.MarketEvent{SymbolID: symbolID, Kind: schema.MarketTrade, TsEvent: ts, Price: price, Size: 1}
}

func TestPairsEntryOnStretchedSpread(t *testing.T) {
	p, err := NewPairs(pairsConfig(), testRegistry(t))
	require.NoError(t, err)
	p.Seed([]schema.Price{110, 112}, []schema.Price{100, 100})

	require.Nil(t, p.Evaluate(trade(2, 100, 1), ledger.Snapshot{}))

	// Spread jumps to 16: window [16 12], mean 14, std 2, z = 1.
	intents := p.Evaluate(trade(1, 116, 2), ledger.Snapshot{})
	require.Len(t, intents, 2)
	assert.Equal(t, uint32(1), intents[0].SymbolID)
	assert.Equal(t, schema.OrderSideSell, intents[0].Side)
	assert.Equal(t, uint32(2), intents[1].SymbolID)
	assert.Equal(t, schema.OrderSideBuy, intents[1].Side)
	assert.Equal(t, schema.Quantity(10), intents[0].Qty)
}

func TestPairsNoEntryWhileHoldingLegA(t *testing.T) {
	p, err := NewPairs(pairsConfig(), testRegistry(t))
	require.NoError(t, err)
	p.Seed([]schema.Price{110, 112}, []schema.Price{100, 100})
	require.Nil(t, p.Evaluate(trade(2, 100, 1), ledger.Snapshot{}))

	snap := ledger.Snapshot{Positions: []ledger.Position{{SymbolID: 1, Qty: -10}}}
	assert.Nil(t, p.Evaluate(trade(1, 116, 2), snap))
}

func TestPairsExitOnMeanReversion(t *testing.T) {
	cfg := pairsConfig()
	cfg.Window = 3
	p, err := NewPairs(cfg, testRegistry(t))
	require.NoError(t, err)
	p.Seed([]schema.Price{110, 112, 116}, []schema.Price{100, 100, 100})
	require.Nil(t, p.Evaluate(trade(2, 100, 1), ledger.Snapshot{}))

	snap := ledger.Snapshot{Positions: []ledger.Position{
		{SymbolID: 1, Qty: -10},
		{SymbolID: 2, Qty: 10},
	}}
	// Spread 13: window [13 12 16], z about -0.39, inside the exit band.
	intents := p.Evaluate(trade(1, 113, 2), snap)
	require.Len(t, intents, 2)
	assert.Equal(t, uint32(1), intents[0].SymbolID)
	assert.Equal(t, schema.OrderSideBuy, intents[0].Side)
	assert.Equal(t, uint32(2), intents[1].SymbolID)
	assert.Equal(t, schema.OrderSideSell, intents[1].Side)
}

func TestPairsCatastropheFlattens(t *testing.T) {
	cfg := pairsConfig()
	cfg.Window = 3
	cfg.CatastropheZ = 1.2
	p, err := NewPairs(cfg, testRegistry(t))
	require.NoError(t, err)
	p.Seed([]schema.Price{110, 112}, []schema.Price{100, 100})
	require.Nil(t, p.Evaluate(trade(2, 100, 1), ledger.Snapshot{}))

	snap := ledger.Snapshot{Positions: []ledger.Position{
		{SymbolID: 1, Qty: -10},
		{SymbolID: 2, Qty: 10},
	}}
	// Spread 30: window [10 12 30], z about 1.41, past the bound.
	intents := p.Evaluate(trade(1, 130, 2), snap)
	require.Len(t, intents, 2)
	assert.Equal(t, schema.OrderSideBuy, intents[0].Side)
	assert.Equal(t, schema.Quantity(10), intents[0].Qty)
	assert.Equal(t, schema.OrderSideSell, intents[1].Side)
}

func TestPairsBacksOffAfterRiskRejection(t *testing.T) {
	cfg := pairsConfig()
	cfg.Window = 3
	p, err := NewPairs(cfg, testRegistry(t))
	require.NoError(t, err)
	p.Seed([]schema.Price{110, 112, 116}, []schema.Price{100, 100, 100})
	require.Nil(t, p.Evaluate(trade(2, 100, 1), ledger.Snapshot{}))

	// Spread 17: window [12 16 17], z about 0.93, entry fires.
	intents := p.Evaluate(trade(1, 117, 2), ledger.Snapshot{})
	require.Len(t, intents, 2)
	p.OnRiskRejection(intents[0], schema.RiskReasonExposureExceeded)

	// Still stretched: window [16 17 18], z about 1.22, but the denied
	// entry is not re-proposed.
	assert.Nil(t, p.Evaluate(trade(1, 118, 3), ledger.Snapshot{}))

	// Reversion inside the band clears the block without trading.
	// Window [17 18 17], z about -0.71.
	assert.Nil(t, p.Evaluate(trade(1, 117, 4), ledger.Snapshot{}))

	// The next stretch is eligible again: window [19 18 17], z about 1.22.
	intents = p.Evaluate(trade(1, 119, 5), ledger.Snapshot{})
	require.Len(t, intents, 2)
	assert.Equal(t, schema.OrderSideSell, intents[0].Side)
}

func TestSMACrossSignals(t *testing.T) {
	cfg := Config{Name: "sma_cross", Instrument: "AAA-USD", Qty: 10, ShortPeriod: 2, LongPeriod: 3}
	s, err := NewSMACross(cfg, testRegistry(t))
	require.NoError(t, err)

	snap := ledger.Snapshot{}
	for _, price := range []schema.Price{10, 10, 10} {
		assert.Nil(t, s.Evaluate(trade(1, price, 1), snap))
	}

	// Short SMA crosses above long: buy.
	intents := s.Evaluate(trade(1, 16, 2), snap)
	require.Len(t, intents, 1)
	assert.Equal(t, schema.OrderSideBuy, intents[0].Side)
	assert.Equal(t, schema.OrderTypeMarket, intents[0].Type)

	// Short SMA crosses back below: sell.
	intents = s.Evaluate(trade(1, 1, 3), snap)
	require.Len(t, intents, 1)
	assert.Equal(t, schema.OrderSideSell, intents[0].Side)
}

func TestSMACrossIgnoresOtherInstruments(t *testing.T) {
	cfg := Config{Name: "sma_cross", Instrument: "AAA-USD", Qty: 10, ShortPeriod: 2, LongPeriod: 3}
	s, err := NewSMACross(cfg, testRegistry(t))
	require.NoError(t, err)
	assert.Nil(t, s.Evaluate(trade(2, 100, 1), ledger.Snapshot{}))
}
