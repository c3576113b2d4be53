package store

import (
	"context"
	"testing"

	"main/internal/ledger"
	"main/internal/schema"
	"main/internal/strategy"
	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBars struct {
	closes map[string][]string
	err    error
}

func (m *memoryBars) RecentCloses(_ context.Context, symbol string, limit int) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	closes := m.closes[symbol]
	if len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	return closes, nil
}

func warmupRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	registry := schema.NewRegistry()
	venueID, err := registry.AddVenue("coinx")
	require.NoError(t, err)
	for _, name := range []string{"BTC-USDT", "ETH-USDT"} {
		_, err = registry.AddInstrument(schema.Instrument{
			VenueID:  venueID,
			Name:     name,
			TickSize: 1,
			LotSize:  1,
			Scale:    schema.ScaleSpec{PriceScale: 2, QuantityScale: 4},
		})
		require.NoError(t, err)
	}
	return registry
}

func TestWarmupSeedsPairs(t *testing.T) {
	registry := warmupRegistry(t)
	cfg := strategy.Config{
		Name:   "pairs",
		Qty:    100,
		LegA:   "BTC-USDT",
		LegB:   "ETH-USDT",
		Window: 3,
	}
	st, err := strategy.Build(cfg, registry)
	require.NoError(t, err)

	bars := &memoryBars{closes: map[string][]string{
		"BTC-USDT": {"100.00", "101.00", "102.00"},
		"ETH-USDT": {"50.00", "50.50", "51.00"},
	}}
	require.NoError(t, Warmup(context.Background(), bars, registry, st, cfg, 3))
}

func TestWarmupTrimsMisalignedLegs(t *testing.T) {
	registry := warmupRegistry(t)
	cfg := strategy.Config{
		Name:   "pairs",
		Qty:    100,
		LegA:   "BTC-USDT",
		LegB:   "ETH-USDT",
		Window: 2,
	}
	st, err := strategy.Build(cfg, registry)
	require.NoError(t, err)

	bars := &memoryBars{closes: map[string][]string{
		"BTC-USDT": {"99.00", "100.00", "101.00"},
		"ETH-USDT": {"50.00"},
	}}
	require.NoError(t, Warmup(context.Background(), bars, registry, st, cfg, 10))
}

func TestWarmupSeedsSMACross(t *testing.T) {
	registry := warmupRegistry(t)
	cfg := strategy.Config{
		Name:        "sma_cross",
		Qty:         10,
		Instrument:  "BTC-USDT",
		ShortPeriod: 2,
		LongPeriod:  3,
	}
	st, err := strategy.Build(cfg, registry)
	require.NoError(t, err)

	bars := &memoryBars{closes: map[string][]string{
		"BTC-USDT": {"100.00", "100.00", "100.00"},
	}}
	require.NoError(t, Warmup(context.Background(), bars, registry, st, cfg, 3))

	// Averages are warm: the next rising trade crosses immediately.
	md := schema.MarketEvent{
		SymbolID: 1,
		Kind:     schema.MarketTrade,
		Price:    16_000,
		TsEvent:  1,
	}
	intents := st.Evaluate(md, ledger.Snapshot{})
	require.Len(t, intents, 1)
	assert.Equal(t, schema.OrderSideBuy, intents[0].Side)
}

func TestWarmupUnknownInstrument(t *testing.T) {
	registry := warmupRegistry(t)
	cfg := strategy.Config{
		Name:       "sma_cross",
		Qty:        10,
		Instrument: "BTC-USDT",
	}
	st, err := strategy.Build(cfg, registry)
	require.NoError(t, err)

	cfg.Instrument = "XRP-USDT"
	err = Warmup(context.Background(), &memoryBars{}, registry, st, cfg, 3)
	assert.ErrorIs(t, err, exception.ErrFeedUnknownInstrument)
}

func TestWarmupStoreFailure(t *testing.T) {
	registry := warmupRegistry(t)
	cfg := strategy.Config{
		Name:       "sma_cross",
		Qty:        10,
		Instrument: "BTC-USDT",
	}
	st, err := strategy.Build(cfg, registry)
	require.NoError(t, err)

	bars := &memoryBars{err: exception.ErrStoreUnavailable}
	err = Warmup(context.Background(), bars, registry, st, cfg, 3)
	assert.ErrorIs(t, err, exception.ErrStoreUnavailable)
}
