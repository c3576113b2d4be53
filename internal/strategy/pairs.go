package strategy

import (
	"math"

	"main/internal/ledger"
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	defaultPairsWindow  = 30
	defaultEntryZ       = 2.1
	defaultExitZ        = 0.5
	defaultCatastropheZ = 4.5
)

// Pairs trades the spread between two correlated instruments. It goes
// short the rich leg and long the cheap leg when the z-score of the
// spread stretches past the entry threshold, exits on mean reversion,
// and flattens everything when the correlation looks broken.
type Pairs struct {
	name string
	legA schema.Instrument
	legB schema.Instrument
	qty  schema.Quantity

	window       int
	entryZ       float64
	exitZ        float64
	catastropheZ float64

	priceA float64
	priceB float64
	haveA  bool
	haveB  bool

	entryBlocked bool

	spreads []float64
	head    int
	count   int
}

// NewPairs builds the pairs strategy from config.
func NewPairs(cfg Config, registry *schema.Registry) (*Pairs, error) {
	idA, okA := registry.SymbolIDByName(cfg.LegA)
	idB, okB := registry.SymbolIDByName(cfg.LegB)
	if !okA || !okB || idA == idB {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "pairs legs").
			With("legA", cfg.LegA).
			With("legB", cfg.LegB)
	}
	legA, _ := registry.Instrument(idA)
	legB, _ := registry.Instrument(idB)
	if cfg.Qty <= 0 {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "pairs qty must be positive")
	}
	p := &Pairs{
		name:         "pairs-" + cfg.LegA,
		legA:         legA,
		legB:         legB,
		qty:          cfg.Qty,
		window:       cfg.Window,
		entryZ:       cfg.EntryZ,
		exitZ:        cfg.ExitZ,
		catastropheZ: cfg.CatastropheZ,
	}
	if p.window <= 1 {
		p.window = defaultPairsWindow
	}
	if p.entryZ <= 0 {
		p.entryZ = defaultEntryZ
	}
	if p.exitZ <= 0 {
		p.exitZ = defaultExitZ
	}
	if p.catastropheZ <= p.entryZ {
		p.catastropheZ = defaultCatastropheZ
	}
	p.spreads = make([]float64, p.window)
	return p, nil
}

func (p *Pairs) Name() string {
	return p.name
}

// Seed preloads the spread window from historical closes, oldest first.
// Both slices must use each leg's native price scale.
func (p *Pairs) Seed(closesA, closesB []schema.Price) {
	n := len(closesA)
	if len(closesB) < n {
		n = len(closesB)
	}
	for i := 0; i < n; i++ {
		p.pushSpread(unscale(closesA[i], p.legA.Scale.PriceScale) - unscale(closesB[i], p.legB.Scale.PriceScale))
	}
}

// Evaluate consumes trade events for either leg and emits entry, exit,
// or flatten intents.
func (p *Pairs) Evaluate(md schema.MarketEvent, snap ledger.Snapshot) []schema.OrderIntent {
	if md.Kind != schema.MarketTrade || md.Price <= 0 {
		return nil
	}
	switch schema.SymbolID(md.SymbolID) {
	case p.legA.ID:
		p.priceA = unscale(md.Price, p.legA.Scale.PriceScale)
		p.haveA = true
	case p.legB.ID:
		p.priceB = unscale(md.Price, p.legB.Scale.PriceScale)
		p.haveB = true
	default:
		return nil
	}
	if !p.haveA || !p.haveB {
		return nil
	}

	current := p.priceA - p.priceB
	p.pushSpread(current)
	if p.count < p.window {
		return nil
	}

	mean, std := p.spreadStats()
	if std == 0 {
		return nil
	}
	z := (current - mean) / std

	if math.Abs(z) > p.catastropheZ {
		logs.Errorf("broken correlation: strategy=%s z=%.2f, flattening", p.name, z)
		return flattenAll(snap)
	}

	posA := p.positionWithPending(snap, uint32(p.legA.ID))

	// A denied entry stays blocked while the spread holds its stretch;
	// re-proposing the same trade every tick would hit the same limit.
	if math.Abs(z) < p.entryZ {
		p.entryBlocked = false
	}

	switch {
	case z > p.entryZ && posA == 0 && !p.entryBlocked:
		return p.entry(schema.OrderSideSell, schema.OrderSideBuy)
	case z < -p.entryZ && posA == 0 && !p.entryBlocked:
		return p.entry(schema.OrderSideBuy, schema.OrderSideSell)
	case math.Abs(z) < p.exitZ && posA != 0:
		return flattenAll(snap)
	}
	return nil
}

// OnRiskRejection pauses new entries until the spread reverts inside
// the entry band. Exits and catastrophe flattens are never blocked.
func (p *Pairs) OnRiskRejection(intent schema.OrderIntent, reason schema.RiskReason) {
	p.entryBlocked = true
}

func (p *Pairs) entry(sideA, sideB schema.OrderSide) []schema.OrderIntent {
	return []schema.OrderIntent{
		{
			SymbolID:    uint32(p.legA.ID),
			Side:        sideA,
			Type:        schema.OrderTypeMarket,
			TimeInForce: schema.TimeInForceIOC,
			Qty:         p.qty,
		},
		{
			SymbolID:    uint32(p.legB.ID),
			Side:        sideB,
			Type:        schema.OrderTypeMarket,
			TimeInForce: schema.TimeInForceIOC,
			Qty:         p.qty,
		},
	}
}

func (p *Pairs) positionWithPending(snap ledger.Snapshot, symbolID uint32) int64 {
	return int64(snap.PositionFor(symbolID).Qty) + int64(snap.PendingQty(symbolID))
}

func (p *Pairs) pushSpread(spread float64) {
	p.spreads[p.head] = spread
	p.head = (p.head + 1) % p.window
	if p.count < p.window {
		p.count++
	}
}

func (p *Pairs) spreadStats() (mean, std float64) {
	var sum float64
	for i := 0; i < p.count; i++ {
		sum += p.spreads[i]
	}
	mean = sum / float64(p.count)

	var variance float64
	for i := 0; i < p.count; i++ {
		d := p.spreads[i] - mean
		variance += d * d
	}
	variance /= float64(p.count)
	return mean, math.Sqrt(variance)
}

func unscale(price schema.Price, scale schema.Scale) float64 {
	return float64(price) / math.Pow10(int(scale))
}
