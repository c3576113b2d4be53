package ledger

import (
	"testing"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buyIntent(orderID uint64, symbolID uint32, price schema.Price, qty schema.Quantity) schema.OrderIntent {
	return schema.OrderIntent{
		OrderID:  orderID,
		SymbolID: symbolID,
		Side:     schema.OrderSideBuy,
		Type:     schema.OrderTypeLimit,
		Price:    price,
		Qty:      qty,
	}
}

func TestReserveRejectsDuplicates(t *testing.T) {
	l := New(1_000_000)
	require.NoError(t, l.Reserve(buyIntent(1, 7, 100, 10)))
	err := l.Reserve(buyIntent(1, 7, 100, 10))
	require.ErrorIs(t, err, exception.ErrOrderDuplicate)
}

func TestApplyFillUnknownOrder(t *testing.T) {
	l := New(0)
	err := l.ApplyFill(schema.Fill{OrderID: 99, FillSeq: 1, Qty: 1, Price: 10})
	require.ErrorIs(t, err, exception.ErrLedgerUnknownOrder)
}

func TestApplyFillIdempotentPerFillSeq(t *testing.T) {
	l := New(0)
	require.NoError(t, l.Reserve(buyIntent(1, 7, 100, 10)))

	fill := schema.Fill{OrderID: 1, SymbolID: 7, FillSeq: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 4}
	require.NoError(t, l.ApplyFill(fill))
	require.NoError(t, l.ApplyFill(fill)) // retransmission

	pos := l.Position(7)
	assert.Equal(t, schema.Quantity(4), pos.Qty)
	assert.Equal(t, schema.Cash(-400), l.Cash())
}

func TestCumulativeFillsNeverExceedOrderQty(t *testing.T) {
	l := New(0)
	require.NoError(t, l.Reserve(buyIntent(1, 7, 100, 10)))

	require.NoError(t, l.ApplyFill(schema.Fill{OrderID: 1, SymbolID: 7, FillSeq: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 6}))
	require.NoError(t, l.ApplyFill(schema.Fill{OrderID: 1, SymbolID: 7, FillSeq: 2, Side: schema.OrderSideBuy, Price: 100, Qty: 4}))

	// Order is fully filled and archived; further fills must not apply.
	err := l.ApplyFill(schema.Fill{OrderID: 1, SymbolID: 7, FillSeq: 3, Side: schema.OrderSideBuy, Price: 100, Qty: 1})
	require.ErrorIs(t, err, exception.ErrLedgerUnknownOrder)
	assert.Equal(t, schema.Quantity(10), l.Position(7).Qty)
}

func TestOverfillRejected(t *testing.T) {
	l := New(0)
	require.NoError(t, l.Reserve(buyIntent(1, 7, 100, 10)))
	require.NoError(t, l.ApplyFill(schema.Fill{OrderID: 1, SymbolID: 7, FillSeq: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 8}))

	err := l.ApplyFill(schema.Fill{OrderID: 1, SymbolID: 7, FillSeq: 2, Side: schema.OrderSideBuy, Price: 100, Qty: 5})
	require.ErrorIs(t, err, exception.ErrLedgerOverfill)
	assert.Equal(t, schema.Quantity(8), l.Position(7).Qty)
}

func TestAverageCostWeightedOnIncrease(t *testing.T) {
	l := New(0)
	require.NoError(t, l.Reserve(buyIntent(1, 7, 100, 10)))
	require.NoError(t, l.ApplyFill(schema.Fill{OrderID: 1, SymbolID: 7, FillSeq: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 10}))

	require.NoError(t, l.Reserve(buyIntent(2, 7, 200, 10)))
	require.NoError(t, l.ApplyFill(schema.Fill{OrderID: 2, SymbolID: 7, FillSeq: 1, Side: schema.OrderSideBuy, Price: 200, Qty: 10}))

	pos := l.Position(7)
	assert.Equal(t, schema.Quantity(20), pos.Qty)
	assert.Equal(t, schema.Price(150), pos.AvgCost)
}

func TestAverageCostKeptOnReduce(t *testing.T) {
	l := New(0)
	require.NoError(t, l.Reserve(buyIntent(1, 7, 100, 10)))
	require.NoError(t, l.ApplyFill(schema.Fill{OrderID: 1, SymbolID: 7, FillSeq: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 10}))

	sell := schema.OrderIntent{OrderID: 2, SymbolID: 7, Side: schema.OrderSideSell, Type: schema.OrderTypeLimit, Price: 120, Qty: 4}
	require.NoError(t, l.Reserve(sell))
	require.NoError(t, l.ApplyFill(schema.Fill{OrderID: 2, SymbolID: 7, FillSeq: 1, Side: schema.OrderSideSell, Price: 120, Qty: 4}))

	pos := l.Position(7)
	assert.Equal(t, schema.Quantity(6), pos.Qty)
	assert.Equal(t, schema.Price(100), pos.AvgCost)
	assert.Equal(t, schema.Cash(-1000+480), l.Cash())
}

func TestCrossingZeroResetsCostBasis(t *testing.T) {
	l := New(0)
	require.NoError(t, l.Reserve(buyIntent(1, 7, 100, 5)))
	require.NoError(t, l.ApplyFill(schema.Fill{OrderID: 1, SymbolID: 7, FillSeq: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 5}))

	sell := schema.OrderIntent{OrderID: 2, SymbolID: 7, Side: schema.OrderSideSell, Type: schema.OrderTypeLimit, Price: 130, Qty: 8}
	require.NoError(t, l.Reserve(sell))
	require.NoError(t, l.ApplyFill(schema.Fill{OrderID: 2, SymbolID: 7, FillSeq: 1, Side: schema.OrderSideSell, Price: 130, Qty: 8}))

	pos := l.Position(7)
	assert.Equal(t, schema.Quantity(-3), pos.Qty)
	assert.Equal(t, schema.Price(130), pos.AvgCost)
}

func TestReleaseDropsUnfilledReservation(t *testing.T) {
	l := New(0)
	require.NoError(t, l.Reserve(buyIntent(1, 7, 100, 10)))
	require.NoError(t, l.Release(1))
	assert.Equal(t, 0, l.OpenOrderCount())

	require.ErrorIs(t, l.Release(1), exception.ErrLedgerUnknownOrder)
}

func TestSnapshotExposure(t *testing.T) {
	l := New(500)
	require.NoError(t, l.Reserve(buyIntent(1, 7, 100, 10)))
	require.NoError(t, l.ApplyFill(schema.Fill{OrderID: 1, SymbolID: 7, FillSeq: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 4}))

	snap := l.Snapshot()
	assert.Equal(t, schema.Cash(100), snap.Cash)
	assert.Equal(t, schema.Quantity(4), snap.PositionFor(7).Qty)
	assert.Equal(t, schema.Quantity(6), snap.PendingQty(7))
	require.Len(t, snap.OpenOrders, 1)
}

func TestSnapshotRoundTrip(t *testing.T) {
	l := New(42)
	require.NoError(t, l.Reserve(buyIntent(1, 7, 100, 10)))
	require.NoError(t, l.ApplyFill(schema.Fill{OrderID: 1, SymbolID: 7, FillSeq: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 10}))

	path := t.TempDir() + "/ledger.json"
	snap := l.Snapshot()
	require.NoError(t, WriteSnapshot(path, snap))

	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.NoError(t, CompareSnapshots(snap, loaded))
}
