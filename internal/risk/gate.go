package risk

import (
	"time"

	"main/internal/ledger"
	"main/internal/schema"
)

const maxInt64 = int64(^uint64(0) >> 1)

// Limits defines the session risk limits. Read-only once loaded.
type Limits struct {
	MaxOrderNotional schema.Notional `json:"maxOrderNotional"`
	MaxExposure      schema.Notional `json:"maxExposure"`
	OrderRateLimit   int             `json:"orderRateLimit"`
	OrderRateWindow  time.Duration   `json:"orderRateWindow"`
	GlobalRateLimit  int             `json:"globalRateLimit"`
	Halted           []string        `json:"halted"`
	MaxDailyLoss     schema.Cash     `json:"maxDailyLoss"`
	MaxTotalLoss     schema.Cash     `json:"maxTotalLoss"`
}

// View is everything Evaluate reads besides the candidate itself.
// Now is an injected clock reading so evaluation stays deterministic.
type View struct {
	Snapshot ledger.Snapshot
	RefPrice schema.Price
	Now      int64
}

// Gate validates order intents against the session limits. Evaluate
// never mutates the gate; submission history advances only through
// RecordSubmit, which the supervisor calls after a submit goes out.
type Gate struct {
	limits  Limits
	halted  map[uint32]struct{}
	equity  *EquityTracker
	history submitHistory
}

// NewGate builds a gate. The registry resolves halted instrument names.
func NewGate(limits Limits, registry *schema.Registry, equity *EquityTracker) *Gate {
	halted := make(map[uint32]struct{}, len(limits.Halted))
	for _, name := range limits.Halted {
		if id, ok := registry.SymbolIDByName(name); ok {
			halted[uint32(id)] = struct{}{}
		}
	}
	return &Gate{
		limits: limits,
		halted: halted,
		equity: equity,
	}
}

// Evaluate checks a candidate order against the limits. It is a pure
// function of (candidate, view, recorded history): repeated calls with
// identical inputs yield identical decisions.
func (g *Gate) Evaluate(intent schema.OrderIntent, view View) schema.RiskDecision {
	decision := schema.RiskDecision{
		OrderID:       intent.OrderID,
		StrategyID:    intent.StrategyID,
		SymbolID:      intent.SymbolID,
		Action:        schema.RiskActionAllow,
		Reason:        schema.RiskReasonNone,
		ProposedQty:   intent.Qty,
		ProposedPrice: intent.Price,
		CurrentPos:    view.Snapshot.PositionFor(intent.SymbolID).Qty,
		MaxNotional:   g.limits.MaxOrderNotional,
		MaxExposure:   g.limits.MaxExposure,
	}

	deny := func(reason schema.RiskReason) schema.RiskDecision {
		decision.Action = schema.RiskActionDeny
		decision.Reason = reason
		return decision
	}

	if g.equity != nil && g.equity.Tripped() {
		return deny(schema.RiskReasonKillSwitch)
	}

	if _, ok := g.halted[intent.SymbolID]; ok {
		return deny(schema.RiskReasonInstrumentHalted)
	}

	window := int64(g.limits.OrderRateWindow)
	if window > 0 {
		if g.limits.OrderRateLimit > 0 &&
			g.history.countSince(intent.SymbolID, view.Now-window) >= g.limits.OrderRateLimit {
			return deny(schema.RiskReasonRateLimited)
		}
		if g.limits.GlobalRateLimit > 0 &&
			g.history.countAllSince(view.Now-window) >= g.limits.GlobalRateLimit {
			return deny(schema.RiskReasonRateLimited)
		}
	}

	price := intent.Price
	if intent.Type == schema.OrderTypeMarket || price <= 0 {
		price = view.RefPrice
	}
	notional, overflow := mulNotional(price, intent.Qty)
	if overflow {
		return deny(schema.RiskReasonNotionalExceeded)
	}
	if g.limits.MaxOrderNotional > 0 && notional > g.limits.MaxOrderNotional {
		return deny(schema.RiskReasonNotionalExceeded)
	}

	if g.limits.MaxExposure > 0 {
		exposure, overflow := g.projectedExposure(intent, view.Snapshot, price)
		if overflow || exposure > g.limits.MaxExposure {
			return deny(schema.RiskReasonExposureExceeded)
		}
	}

	return decision
}

// RecordSubmit records an approved submission at the given clock reading.
// Must be called from the supervisor goroutine only.
func (g *Gate) RecordSubmit(symbolID uint32, now int64) {
	g.history.record(symbolID, now)
	if window := int64(g.limits.OrderRateWindow); window > 0 {
		g.history.trim(now - window)
	}
}

// projectedExposure is the notional exposure on the instrument if this
// intent and every open order on it filled completely.
func (g *Gate) projectedExposure(intent schema.OrderIntent, snap ledger.Snapshot, price schema.Price) (schema.Notional, bool) {
	qty := int64(snap.PositionFor(intent.SymbolID).Qty) + int64(snap.PendingQty(intent.SymbolID))
	if intent.Side == schema.OrderSideSell {
		qty -= int64(intent.Qty)
	} else {
		qty += int64(intent.Qty)
	}
	if qty < 0 {
		qty = -qty
	}
	return mulNotional(price, schema.Quantity(qty))
}

func mulNotional(price schema.Price, qty schema.Quantity) (schema.Notional, bool) {
	p := int64(price)
	q := int64(qty)
	if p <= 0 || q <= 0 {
		return 0, false
	}
	if p > maxInt64/q {
		return 0, true
	}
	return schema.Notional(p * q), false
}

type submitRecord struct {
	symbolID uint32
	ts       int64
}

// submitHistory is a time-ordered log of recorded submissions.
type submitHistory struct {
	records []submitRecord
}

func (h *submitHistory) record(symbolID uint32, ts int64) {
	h.records = append(h.records, submitRecord{symbolID: symbolID, ts: ts})
}

func (h *submitHistory) countSince(symbolID uint32, since int64) int {
	count := 0
	for _, rec := range h.records {
		if rec.ts > since && rec.symbolID == symbolID {
			count++
		}
	}
	return count
}

func (h *submitHistory) countAllSince(since int64) int {
	count := 0
	for _, rec := range h.records {
		if rec.ts > since {
			count++
		}
	}
	return count
}

func (h *submitHistory) trim(before int64) {
	idx := 0
	for idx < len(h.records) && h.records[idx].ts <= before {
		idx++
	}
	if idx > 0 {
		h.records = h.records[idx:]
	}
}
