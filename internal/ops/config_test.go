package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"main/internal/schema"
	"main/internal/strategy"
	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() FileConfig {
	return FileConfig{
		Session: SessionConfig{
			Name:        "pairs-live",
			InitialCash: 1_000_000,
		},
		Registry: RegistryConfig{
			Venues: []VenueConfig{{Name: "coinx"}},
			Instruments: []InstrumentConfig{
				{
					Name:        "BTC-USDT",
					Venue:       "coinx",
					VenueSymbol: "btcusdt",
					TickSize:    1,
					LotSize:     1,
					Scale:       schema.ScaleSpec{PriceScale: 2, QuantityScale: 4},
				},
				{
					Name:     "ETH-USDT",
					Venue:    "coinx",
					TickSize: 1,
					LotSize:  1,
					Scale:    schema.ScaleSpec{PriceScale: 2, QuantityScale: 4},
				},
			},
		},
		Risk: RiskConfig{
			MaxOrderNotional:  50_000_000,
			OrderRateLimit:    10,
			OrderRateWindowMs: 1000,
		},
		Strategy: strategy.Config{
			Name: "pairs",
			Qty:  100,
			LegA: "BTC-USDT",
			LegB: "ETH-USDT",
		},
		Feed: FeedConfig{URL: "wss://stream.example.com/ws"},
		Gateway: GatewayConfig{
			BaseURL:   "https://api.example.com",
			AccessID:  "id",
			SecretKey: "secret",
		},
	}
}

func TestResolveValid(t *testing.T) {
	loaded, err := Resolve(validConfig())
	require.NoError(t, err)

	assert.Equal(t, "pairs-live", loaded.Session.Name)
	assert.Equal(t, 4096, loaded.Session.QueueSize)
	assert.Equal(t, 5*time.Second, loaded.Session.ShutdownTimeout)
	assert.Equal(t, time.Second, loaded.Limits.OrderRateWindow)
	assert.Equal(t, 5*time.Second, loaded.Gateway.RequestTimeout)
	assert.Equal(t, "pairs-live", loaded.Journal.FilePrefix)
	assert.False(t, loaded.Store.Enabled)
	assert.Equal(t, 2, loaded.Registry.InstrumentCount())

	id, ok := loaded.Registry.SymbolIDByName("BTC-USDT")
	require.True(t, ok)
	inst, ok := loaded.Registry.Instrument(id)
	require.True(t, ok)
	assert.Equal(t, "btcusdt", inst.VenueSymbol)
}

func TestResolveStoreEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Store = StoreConfig{
		Host:     "db.internal",
		User:     "trader",
		Password: "pw",
		Database: "bars",
	}

	loaded, err := Resolve(cfg)
	require.NoError(t, err)
	assert.True(t, loaded.Store.Enabled)
	assert.Equal(t, "db.internal", loaded.Store.Option.Host)
	assert.Equal(t, 64, loaded.Store.WarmupBars)
}

func TestResolveRejectsInvalid(t *testing.T) {
	for name, mutate := range map[string]func(*FileConfig){
		"no cash":            func(c *FileConfig) { c.Session.InitialCash = 0 },
		"no venues":          func(c *FileConfig) { c.Registry.Venues = nil },
		"no instruments":     func(c *FileConfig) { c.Registry.Instruments = nil },
		"unknown venue":      func(c *FileConfig) { c.Registry.Instruments[0].Venue = "nope" },
		"zero tick":          func(c *FileConfig) { c.Registry.Instruments[0].TickSize = 0 },
		"negative scale":     func(c *FileConfig) { c.Registry.Instruments[0].Scale.PriceScale = -1 },
		"no strategy":        func(c *FileConfig) { c.Strategy.Name = "" },
		"no feed url":        func(c *FileConfig) { c.Feed.URL = "" },
		"no gateway url":     func(c *FileConfig) { c.Gateway.BaseURL = "" },
		"missing secret key": func(c *FileConfig) { c.Gateway.SecretKey = "" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			_, err := Resolve(cfg)
			assert.ErrorIs(t, err, exception.ErrConfigInvalid)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.json")
	payload := `{
		"session": {"name": "live", "initialCash": 500000},
		"registry": {
			"venues": [{"name": "coinx"}],
			"instruments": [
				{"name": "BTC-USDT", "venue": "coinx", "tickSize": 1, "lotSize": 1,
				 "scale": {"priceScale": 2, "quantityScale": 4}}
			]
		},
		"strategy": {"name": "sma_cross", "qty": 10, "instrument": "BTC-USDT"},
		"feed": {"url": "wss://stream.example.com/ws"},
		"gateway": {"baseUrl": "https://api.example.com", "accessId": "id", "secretKey": "sk"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "live", loaded.Session.Name)
	assert.Equal(t, schema.Cash(500000), loaded.Session.InitialCash)
	assert.Equal(t, "sma_cross", loaded.Strategy.Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, exception.ErrConfigInvalid)
}
