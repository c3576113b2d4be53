package ledger

import (
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

// OrderRecord is the ledger's view of a reserved order.
type OrderRecord struct {
	OrderID   uint64
	SymbolID  uint32
	Side      schema.OrderSide
	Price     schema.Price
	Qty       schema.Quantity
	FilledQty schema.Quantity
	Closed    bool
}

// Position is the per-instrument net quantity and average cost.
// Updated only by fills.
type Position struct {
	SymbolID uint32
	Qty      schema.Quantity
	AvgCost  schema.Price
}

type fillKey struct {
	orderID uint64
	fillSeq uint32
}

// Ledger is the authoritative in-memory record of holdings, cash and
// open orders. All mutating calls must come from a single goroutine;
// the supervisor funnels every fill and reservation through its queue.
type Ledger struct {
	cash      schema.Cash
	positions map[uint32]Position
	orders    map[uint64]*OrderRecord
	archived  []OrderRecord
	seenFills map[fillKey]struct{}
}

// New creates a ledger with the given starting cash balance.
func New(cash schema.Cash) *Ledger {
	return &Ledger{
		cash:      cash,
		positions: make(map[uint32]Position),
		orders:    make(map[uint64]*OrderRecord),
		seenFills: make(map[fillKey]struct{}),
	}
}

// Reserve marks pending exposure for an order before the venue acks it.
func (l *Ledger) Reserve(intent schema.OrderIntent) error {
	if intent.OrderID == 0 || intent.Qty <= 0 {
		return exception.ErrOrderInvalidIntent
	}
	if _, ok := l.orders[intent.OrderID]; ok {
		return errors.Wrap(exception.ErrOrderDuplicate, "reserve")
	}
	l.orders[intent.OrderID] = &OrderRecord{
		OrderID:  intent.OrderID,
		SymbolID: intent.SymbolID,
		Side:     intent.Side,
		Price:    intent.Price,
		Qty:      intent.Qty,
	}
	return nil
}

// Release drops the reservation for an order that never reached the
// venue or was rejected before any fill.
func (l *Ledger) Release(orderID uint64) error {
	rec, ok := l.orders[orderID]
	if !ok {
		return exception.ErrLedgerUnknownOrder
	}
	if rec.FilledQty > 0 {
		rec.Closed = true
		l.archive(rec)
		return nil
	}
	delete(l.orders, orderID)
	return nil
}

// ApplyFill settles a fill against a reserved order. It is idempotent
// per (orderID, fillSeq) so venue retransmissions change state once.
func (l *Ledger) ApplyFill(fill schema.Fill) error {
	if fill.Qty <= 0 || fill.Price <= 0 {
		return errors.Wrap(exception.ErrOrderInvalidFill, "apply fill").
			With("orderID", fill.OrderID).
			With("qty", fill.Qty)
	}
	key := fillKey{orderID: fill.OrderID, fillSeq: fill.FillSeq}
	if _, dup := l.seenFills[key]; dup {
		return nil
	}
	rec, ok := l.orders[fill.OrderID]
	if !ok {
		return exception.ErrLedgerUnknownOrder
	}
	if rec.FilledQty+fill.Qty > rec.Qty {
		return errors.Wrap(exception.ErrLedgerOverfill, "apply fill").
			With("orderID", fill.OrderID).
			With("filled", rec.FilledQty).
			With("qty", fill.Qty).
			With("orderQty", rec.Qty)
	}
	l.seenFills[key] = struct{}{}
	rec.FilledQty += fill.Qty
	l.applyToPosition(rec.SymbolID, rec.Side, fill.Qty, fill.Price)
	l.applyToCash(rec.Side, fill.Qty, fill.Price)
	if rec.FilledQty == rec.Qty {
		rec.Closed = true
		l.archive(rec)
	}
	return nil
}

// Position returns the current position for an instrument.
func (l *Ledger) Position(symbolID uint32) Position {
	return l.positions[symbolID]
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() schema.Cash {
	return l.cash
}

// OpenOrder returns the ledger record for a still-open order.
func (l *Ledger) OpenOrder(orderID uint64) (OrderRecord, bool) {
	rec, ok := l.orders[orderID]
	if !ok {
		return OrderRecord{}, false
	}
	return *rec, true
}

// OpenOrderCount returns the number of reserved, non-terminal orders.
func (l *Ledger) OpenOrderCount() int {
	return len(l.orders)
}

func (l *Ledger) archive(rec *OrderRecord) {
	l.archived = append(l.archived, *rec)
	delete(l.orders, rec.OrderID)
}

func (l *Ledger) applyToPosition(symbolID uint32, side schema.OrderSide, qty schema.Quantity, price schema.Price) {
	pos := l.positions[symbolID]
	pos.SymbolID = symbolID

	signed := int64(qty)
	if side == schema.OrderSideSell {
		signed = -signed
	}
	prev := int64(pos.Qty)
	next := prev + signed

	switch {
	case prev == 0 || sameSign(prev, signed):
		// Increasing exposure: weighted average cost.
		total := absInt64(prev) + absInt64(signed)
		if total > 0 {
			weighted := int64(pos.AvgCost)*absInt64(prev) + int64(price)*absInt64(signed)
			pos.AvgCost = schema.Price(weighted / total)
		}
	case sameSign(prev, next) || next == 0:
		// Reducing exposure keeps the original cost basis.
	default:
		// Crossed through zero: remainder is a fresh position at fill price.
		pos.AvgCost = price
	}
	if next == 0 {
		pos.AvgCost = 0
	}
	pos.Qty = schema.Quantity(next)
	l.positions[symbolID] = pos
}

func (l *Ledger) applyToCash(side schema.OrderSide, qty schema.Quantity, price schema.Price) {
	notional := int64(price) * int64(qty)
	if side == schema.OrderSideBuy {
		l.cash -= schema.Cash(notional)
	} else {
		l.cash += schema.Cash(notional)
	}
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
