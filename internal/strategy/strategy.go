// Package strategy turns market events into order intents. Strategies
// are deterministic given the event stream and the ledger snapshot;
// the engine validates and stamps every intent before it reaches risk.
package strategy

import (
	"main/internal/ledger"
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Strategy is the decision core. Evaluate must not block and must not
// mutate the snapshot.
type Strategy interface {
	Name() string
	Evaluate(md schema.MarketEvent, snap ledger.Snapshot) []schema.OrderIntent
}

// Config selects and parameterizes a strategy variant.
type Config struct {
	Name string          `json:"name"`
	Qty  schema.Quantity `json:"qty"`

	// pairs
	LegA         string  `json:"legA"`
	LegB         string  `json:"legB"`
	Window       int     `json:"window"`
	EntryZ       float64 `json:"entryZ"`
	ExitZ        float64 `json:"exitZ"`
	CatastropheZ float64 `json:"catastropheZ"`

	// sma_cross
	Instrument  string `json:"instrument"`
	ShortPeriod int    `json:"shortPeriod"`
	LongPeriod  int    `json:"longPeriod"`
}

// Build constructs the configured strategy variant.
func Build(cfg Config, registry *schema.Registry) (Strategy, error) {
	switch cfg.Name {
	case "pairs":
		return NewPairs(cfg, registry)
	case "sma_cross":
		return NewSMACross(cfg, registry)
	default:
		return nil, errors.Wrap(exception.ErrStrategyUnknown, "build strategy").With("name", cfg.Name)
	}
}

// Engine wraps a strategy with intent validation and stamping. It is
// driven by the supervisor only, so it needs no locking.
type Engine struct {
	registry   *schema.Registry
	strategy   Strategy
	strategyID uint32
	nextOrder  uint64
}

// NewEngine creates an engine around one strategy.
func NewEngine(registry *schema.Registry, st Strategy, strategyID uint32) *Engine {
	return &Engine{
		registry:   registry,
		strategy:   st,
		strategyID: strategyID,
	}
}

// Strategy returns the wrapped strategy.
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// RiskObserver is implemented by strategies that adapt to risk
// denials, backing off instead of re-proposing the same entry every
// tick.
type RiskObserver interface {
	OnRiskRejection(intent schema.OrderIntent, reason schema.RiskReason)
}

// NotifyRiskRejection forwards a gate denial to the strategy when it
// observes them.
func (e *Engine) NotifyRiskRejection(intent schema.OrderIntent, reason schema.RiskReason) {
	if obs, ok := e.strategy.(RiskObserver); ok {
		obs.OnRiskRejection(intent, reason)
	}
}

// Evaluate runs the strategy and returns only intents that pass
// validation, each stamped with the triggering event's timestamp, the
// strategy ID, and a fresh order ID.
func (e *Engine) Evaluate(md schema.MarketEvent, snap ledger.Snapshot) []schema.OrderIntent {
	proposed := e.strategy.Evaluate(md, snap)
	if len(proposed) == 0 {
		return nil
	}

	out := proposed[:0]
	for _, intent := range proposed {
		if err := e.validate(intent); err != nil {
			logs.Warnf("dropped intent: strategy=%s symbol=%d err=%v", e.strategy.Name(), intent.SymbolID, err)
			continue
		}
		e.nextOrder++
		intent.OrderID = e.nextOrder
		intent.StrategyID = e.strategyID
		intent.TsEvent = md.TsEvent
		out = append(out, intent)
	}
	return out
}

// Flatten emits stamped market orders closing every open position in
// the snapshot. Used by the supervisor when the kill switch trips.
func (e *Engine) Flatten(snap ledger.Snapshot, tsEvent int64) []schema.OrderIntent {
	intents := flattenAll(snap)
	for i := range intents {
		e.nextOrder++
		intents[i].OrderID = e.nextOrder
		intents[i].StrategyID = e.strategyID
		intents[i].TsEvent = tsEvent
	}
	return intents
}

func (e *Engine) validate(intent schema.OrderIntent) error {
	inst, ok := e.registry.Instrument(schema.SymbolID(intent.SymbolID))
	if !ok {
		return exception.ErrFeedUnknownInstrument
	}
	if intent.Qty <= 0 {
		return errors.Wrap(exception.ErrOrderInvalidIntent, "qty must be positive")
	}
	if intent.Side != schema.OrderSideBuy && intent.Side != schema.OrderSideSell {
		return errors.Wrap(exception.ErrOrderInvalidIntent, "unknown side")
	}
	if inst.LotSize > 0 && int64(intent.Qty)%int64(inst.LotSize) != 0 {
		return errors.Wrap(exception.ErrOrderInvalidIntent, "qty off lot size").
			With("qty", intent.Qty).
			With("lot", inst.LotSize)
	}
	switch intent.Type {
	case schema.OrderTypeLimit:
		if intent.Price <= 0 {
			return errors.Wrap(exception.ErrOrderInvalidIntent, "limit order needs a price")
		}
		if inst.TickSize > 0 && int64(intent.Price)%int64(inst.TickSize) != 0 {
			return errors.Wrap(exception.ErrOrderInvalidIntent, "price off tick size").
				With("price", intent.Price).
				With("tick", inst.TickSize)
		}
	case schema.OrderTypeMarket:
	default:
		return errors.Wrap(exception.ErrOrderInvalidIntent, "unknown order type")
	}
	return nil
}

// flattenAll emits market orders that close every open position in the
// snapshot. Shared by the catastrophe and exit paths.
func flattenAll(snap ledger.Snapshot) []schema.OrderIntent {
	var out []schema.OrderIntent
	for _, pos := range snap.Positions {
		if pos.Qty == 0 {
			continue
		}
		side := schema.OrderSideSell
		qty := pos.Qty
		if qty < 0 {
			side = schema.OrderSideBuy
			qty = -qty
		}
		out = append(out, schema.OrderIntent{
			SymbolID:    pos.SymbolID,
			Side:        side,
			Type:        schema.OrderTypeMarket,
			TimeInForce: schema.TimeInForceIOC,
			Qty:         qty,
		})
	}
	return out
}
