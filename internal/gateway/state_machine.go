package gateway

import (
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

// OrderState tracks the gateway lifecycle of an order. States only move
// forward: a response that would regress an order is dropped.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateCreated
	OrderStateSubmitted
	OrderStateAcked
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStateCreated:
		return "created"
	case OrderStateSubmitted:
		return "submitted"
	case OrderStateAcked:
		return "acked"
	case OrderStatePartFilled:
		return "part_filled"
	case OrderStateFilled:
		return "filled"
	case OrderStateCanceled:
		return "canceled"
	case OrderStateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return true
	default:
		return false
	}
}

// rank orders states for the forward-only transition check. PartFilled
// repeats while fills accumulate, so equal rank is allowed there.
func (s OrderState) rank() int {
	switch s {
	case OrderStateCreated:
		return 1
	case OrderStateSubmitted:
		return 2
	case OrderStateAcked:
		return 3
	case OrderStatePartFilled:
		return 4
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return 5
	default:
		return 0
	}
}

// Order holds the gateway's view of an order.
type Order struct {
	ID              uint64
	VenueOrderID    uint64
	SymbolID        uint32
	Side            schema.OrderSide
	Type            schema.OrderType
	Price           schema.Price
	Qty             schema.Quantity
	LeavesQty       schema.Quantity
	State           OrderState
	CancelRequested bool

	seenFills map[uint32]struct{}
}

// StateMachine updates orders from intent/ack/fill events. Not safe for
// concurrent use; the gateway serializes access.
type StateMachine struct {
	orders map[uint64]*Order
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{orders: make(map[uint64]*Order)}
}

// Order returns the current order state.
func (m *StateMachine) Order(id uint64) (*Order, bool) {
	o, ok := m.orders[id]
	return o, ok
}

// NonTerminal returns every order that still awaits a venue outcome.
func (m *StateMachine) NonTerminal() []*Order {
	out := make([]*Order, 0, len(m.orders))
	for _, o := range m.orders {
		if !o.State.Terminal() {
			out = append(out, o)
		}
	}
	return out
}

// ApplyIntent registers a new order as Submitted.
func (m *StateMachine) ApplyIntent(intent schema.OrderIntent) (*Order, error) {
	if intent.OrderID == 0 || intent.Qty <= 0 {
		return nil, exception.ErrOrderInvalidIntent
	}
	if _, ok := m.orders[intent.OrderID]; ok {
		return nil, exception.ErrOrderDuplicate
	}
	o := &Order{
		ID:        intent.OrderID,
		SymbolID:  intent.SymbolID,
		Side:      intent.Side,
		Type:      intent.Type,
		Price:     intent.Price,
		Qty:       intent.Qty,
		LeavesQty: intent.Qty,
		State:     OrderStateSubmitted,
		seenFills: make(map[uint32]struct{}),
	}
	m.orders[o.ID] = o
	return o, nil
}

// ApplyAck transitions an order from a venue acknowledgment. Responses
// for orders that are not Submitted or Acked (or that would move the
// state backwards) are rejected so the caller can log and drop them.
func (m *StateMachine) ApplyAck(ack schema.OrderAck) (*Order, error) {
	o, ok := m.orders[ack.OrderID]
	if !ok {
		return nil, exception.ErrOrderUnknown
	}
	next := stateForAck(ack.Status)
	if next == OrderStateUnknown {
		return o, errors.Wrap(exception.ErrOrderInvalidTransition, "unmapped ack status").
			With("orderID", ack.OrderID).
			With("status", ack.Status)
	}
	if o.State.Terminal() || next.rank() < o.State.rank() ||
		(next.rank() == o.State.rank() && next != OrderStatePartFilled) {
		return o, errors.Wrap(exception.ErrOrderInvalidTransition, "apply ack").
			With("orderID", ack.OrderID).
			With("from", o.State.String()).
			With("to", next.String())
	}
	if ack.VenueOrderID != 0 {
		o.VenueOrderID = ack.VenueOrderID
	}
	if ack.LeavesQty != 0 {
		o.LeavesQty = ack.LeavesQty
	}
	o.State = next
	return o, nil
}

// ApplyFill advances an order from a fill. Duplicate fill sequences are
// reported so the caller drops them without touching the ledger.
func (m *StateMachine) ApplyFill(fill schema.Fill) (*Order, error) {
	o, ok := m.orders[fill.OrderID]
	if !ok {
		return nil, exception.ErrOrderUnknown
	}
	if o.State.Terminal() || o.State == OrderStateCreated {
		return o, errors.Wrap(exception.ErrOrderInvalidTransition, "apply fill").
			With("orderID", fill.OrderID).
			With("state", o.State.String())
	}
	if fill.Qty <= 0 {
		return o, exception.ErrOrderInvalidFill
	}
	if _, dup := o.seenFills[fill.FillSeq]; dup {
		return o, errors.Wrap(exception.ErrOrderDuplicate, "fill retransmission").
			With("orderID", fill.OrderID).
			With("fillSeq", fill.FillSeq)
	}
	if fill.Qty > o.LeavesQty {
		return o, errors.Wrap(exception.ErrOrderOverfill, "apply fill").
			With("orderID", fill.OrderID).
			With("leaves", o.LeavesQty).
			With("qty", fill.Qty)
	}
	o.seenFills[fill.FillSeq] = struct{}{}
	o.LeavesQty -= fill.Qty
	if o.LeavesQty == 0 {
		o.State = OrderStateFilled
	} else {
		o.State = OrderStatePartFilled
	}
	return o, nil
}

func stateForAck(status schema.OrderAckStatus) OrderState {
	switch status {
	case schema.OrderAckStatusAcked:
		return OrderStateAcked
	case schema.OrderAckStatusRejected:
		return OrderStateRejected
	case schema.OrderAckStatusCanceled:
		return OrderStateCanceled
	case schema.OrderAckStatusPartFilled:
		return OrderStatePartFilled
	case schema.OrderAckStatusFilled:
		return OrderStateFilled
	default:
		return OrderStateUnknown
	}
}
