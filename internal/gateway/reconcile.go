package gateway

import (
	"context"
	"time"

	"main/internal/bus"
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Reconcile aligns local order state with venue-reported truth after a
// reconnect. New submissions are blocked until it completes. Every fill
// the venue reports is replayed through the normal fill path, so fills
// that already arrived are deduplicated and the ledger moves exactly
// once per execution.
func (g *Gateway) Reconcile(ctx context.Context) error {
	g.mu.Lock()
	g.halted = true
	open := g.orders.NonTerminal()
	pending := make([]Order, 0, len(open))
	for _, o := range open {
		pending = append(pending, *o)
	}
	g.mu.Unlock()

	logs.Infof("reconciling %d open orders: session=%s", len(pending), g.cfg.Session)

	for _, order := range pending {
		status, err := g.queryStatus(ctx, order)
		if err != nil {
			// Transport failure mid-reconcile: stay halted, caller retries.
			return errors.Wrap(exception.ErrGatewayDisconnected, "reconcile status").With("orderID", order.ID)
		}
		if err := g.applyVenueStatus(order.ID, status); err != nil {
			logs.Errorf("reconcile mismatch: order=%d err=%v", order.ID, err)
			return errors.Wrap(exception.ErrReconcileMismatch, "reconcile").With("orderID", order.ID)
		}
	}

	g.mu.Lock()
	g.halted = false
	g.connected = true
	g.mu.Unlock()

	g.publish(bus.Event{
		Header:  g.header(schema.EventGatewayStatus, time.Now().UTC().UnixNano()),
		Gateway: schema.GatewayStateReconciled,
	})
	logs.Infof("reconciliation complete: session=%s", g.cfg.Session)
	return nil
}

func (g *Gateway) queryStatus(ctx context.Context, order Order) (VenueStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()
	return g.client.Status(ctx, order)
}

// applyVenueStatus replays venue truth for one order. The venue is
// authoritative: local state follows it, never the other way around.
func (g *Gateway) applyVenueStatus(orderID uint64, status VenueStatus) error {
	g.mu.Lock()
	o, ok := g.orders.Order(orderID)
	if !ok {
		g.mu.Unlock()
		return exception.ErrOrderUnknown
	}
	local := *o
	g.mu.Unlock()

	filled := local.Qty - local.LeavesQty
	var venueFilled schema.Quantity
	for _, fill := range status.Fills {
		venueFilled += fill.Qty
	}
	if venueFilled > local.Qty || venueFilled < filled {
		return errors.Wrap(exception.ErrReconcileMismatch, "fill quantity disagrees").
			With("orderID", orderID).
			With("localFilled", filled).
			With("venueFilled", venueFilled)
	}

	for _, fill := range status.Fills {
		g.OnFill(fill)
	}

	switch status.Status {
	case schema.OrderAckStatusFilled:
		// The replayed fills already drove the order terminal.
	case schema.OrderAckStatusCanceled, schema.OrderAckStatusRejected:
		g.OnAck(schema.OrderAck{
			OrderID:      orderID,
			SymbolID:     local.SymbolID,
			Status:       status.Status,
			Reason:       schema.OrderAckReasonVenueReject,
			VenueOrderID: status.VenueOrderID,
		})
	case schema.OrderAckStatusAcked, schema.OrderAckStatusPartFilled:
		if local.State == OrderStateSubmitted {
			g.OnAck(schema.OrderAck{
				OrderID:      orderID,
				SymbolID:     local.SymbolID,
				Status:       schema.OrderAckStatusAcked,
				VenueOrderID: status.VenueOrderID,
				LeavesQty:    status.LeavesQty,
			})
		}
	default:
		return errors.Wrap(exception.ErrReconcileMismatch, "unmapped venue status").
			With("orderID", orderID).
			With("status", status.Status)
	}
	return nil
}
