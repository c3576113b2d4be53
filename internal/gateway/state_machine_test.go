package gateway

import (
	"testing"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIntent(orderID uint64, qty schema.Quantity) schema.OrderIntent {
	return schema.OrderIntent{
		OrderID:  orderID,
		SymbolID: 1,
		Side:     schema.OrderSideBuy,
		Type:     schema.OrderTypeLimit,
		Price:    100_000,
		Qty:      qty,
	}
}

func TestStateMachineLifecycle(t *testing.T) {
	m := NewStateMachine()

	o, err := m.ApplyIntent(testIntent(1, 100))
	require.NoError(t, err)
	assert.Equal(t, OrderStateSubmitted, o.State)
	assert.Equal(t, schema.Quantity(100), o.LeavesQty)

	o, err = m.ApplyAck(schema.OrderAck{OrderID: 1, Status: schema.OrderAckStatusAcked, VenueOrderID: 77})
	require.NoError(t, err)
	assert.Equal(t, OrderStateAcked, o.State)
	assert.Equal(t, uint64(77), o.VenueOrderID)

	o, err = m.ApplyFill(schema.Fill{OrderID: 1, FillSeq: 1, Qty: 40})
	require.NoError(t, err)
	assert.Equal(t, OrderStatePartFilled, o.State)
	assert.Equal(t, schema.Quantity(60), o.LeavesQty)

	o, err = m.ApplyFill(schema.Fill{OrderID: 1, FillSeq: 2, Qty: 60})
	require.NoError(t, err)
	assert.Equal(t, OrderStateFilled, o.State)
	assert.Equal(t, schema.Quantity(0), o.LeavesQty)
	assert.True(t, o.State.Terminal())
}

func TestStateMachineRejectsDuplicateIntent(t *testing.T) {
	m := NewStateMachine()
	_, err := m.ApplyIntent(testIntent(1, 100))
	require.NoError(t, err)
	_, err = m.ApplyIntent(testIntent(1, 100))
	assert.ErrorIs(t, err, exception.ErrOrderDuplicate)
}

func TestStateMachineDropsRegression(t *testing.T) {
	m := NewStateMachine()
	_, err := m.ApplyIntent(testIntent(1, 100))
	require.NoError(t, err)
	_, err = m.ApplyFill(schema.Fill{OrderID: 1, FillSeq: 1, Qty: 100})
	require.NoError(t, err)

	// A late ack after the order already went terminal must not move it.
	o, err := m.ApplyAck(schema.OrderAck{OrderID: 1, Status: schema.OrderAckStatusAcked})
	assert.ErrorIs(t, err, exception.ErrOrderInvalidTransition)
	assert.Equal(t, OrderStateFilled, o.State)
}

func TestStateMachineCancelRacingFill(t *testing.T) {
	m := NewStateMachine()
	_, err := m.ApplyIntent(testIntent(1, 100))
	require.NoError(t, err)
	_, err = m.ApplyAck(schema.OrderAck{OrderID: 1, Status: schema.OrderAckStatusAcked})
	require.NoError(t, err)

	// The fill wins the race: the later cancel confirmation is dropped.
	o, err := m.ApplyFill(schema.Fill{OrderID: 1, FillSeq: 1, Qty: 100})
	require.NoError(t, err)
	assert.Equal(t, OrderStateFilled, o.State)

	o, err = m.ApplyAck(schema.OrderAck{OrderID: 1, Status: schema.OrderAckStatusCanceled})
	assert.ErrorIs(t, err, exception.ErrOrderInvalidTransition)
	assert.Equal(t, OrderStateFilled, o.State)
}

func TestStateMachineFillDedup(t *testing.T) {
	m := NewStateMachine()
	_, err := m.ApplyIntent(testIntent(1, 100))
	require.NoError(t, err)

	_, err = m.ApplyFill(schema.Fill{OrderID: 1, FillSeq: 1, Qty: 40})
	require.NoError(t, err)
	o, err := m.ApplyFill(schema.Fill{OrderID: 1, FillSeq: 1, Qty: 40})
	assert.ErrorIs(t, err, exception.ErrOrderDuplicate)
	assert.Equal(t, schema.Quantity(60), o.LeavesQty)
}

func TestStateMachineOverfill(t *testing.T) {
	m := NewStateMachine()
	_, err := m.ApplyIntent(testIntent(1, 100))
	require.NoError(t, err)

	_, err = m.ApplyFill(schema.Fill{OrderID: 1, FillSeq: 1, Qty: 150})
	assert.ErrorIs(t, err, exception.ErrOrderOverfill)
	o, ok := m.Order(1)
	require.True(t, ok)
	assert.Equal(t, schema.Quantity(100), o.LeavesQty)
}

func TestStateMachineNonTerminal(t *testing.T) {
	m := NewStateMachine()
	_, err := m.ApplyIntent(testIntent(1, 100))
	require.NoError(t, err)
	_, err = m.ApplyIntent(testIntent(2, 50))
	require.NoError(t, err)
	_, err = m.ApplyFill(schema.Fill{OrderID: 2, FillSeq: 1, Qty: 50})
	require.NoError(t, err)

	open := m.NonTerminal()
	require.Len(t, open, 1)
	assert.Equal(t, uint64(1), open[0].ID)
}
