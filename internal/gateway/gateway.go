package gateway

import (
	"context"
	"sync"
	"time"

	"main/internal/bus"
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// VenueStatus is the venue-reported truth for one order, used during
// reconciliation. Fills carries every execution the venue recorded so
// they can be replayed exactly once against the ledger.
type VenueStatus struct {
	OrderID      uint64
	VenueOrderID uint64
	Status       schema.OrderAckStatus
	LeavesQty    schema.Quantity
	Fills        []schema.Fill
}

// VenueClient is the abstract order API of the external venue. Every
// call carries a bounded wait through its context.
type VenueClient interface {
	Submit(ctx context.Context, intent schema.OrderIntent) (schema.OrderAck, error)
	Cancel(ctx context.Context, order Order) error
	Status(ctx context.Context, order Order) (VenueStatus, error)
}

// Config controls gateway behavior.
type Config struct {
	Session        string
	RequestTimeout time.Duration
}

// Gateway submits and cancels orders against the venue, tracks per-order
// state, and pushes acks and fills into the supervisor queue.
type Gateway struct {
	cfg    Config
	client VenueClient
	queue  *bus.Queue

	mu        sync.Mutex
	orders    *StateMachine
	connected bool
	halted    bool

	seq uint64
}

// New creates a gateway over the given venue client.
func New(cfg Config, client VenueClient, queue *bus.Queue) *Gateway {
	if cfg.Session == "" {
		cfg.Session = "default"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &Gateway{
		cfg:       cfg,
		client:    client,
		queue:     queue,
		orders:    NewStateMachine(),
		connected: true,
	}
}

// Submit registers the intent and sends it to the venue. On timeout the
// order stays Submitted (ambiguous) and the session drops to
// disconnected so reconciliation runs; the same intent is never
// blindly retried.
func (g *Gateway) Submit(ctx context.Context, intent schema.OrderIntent) error {
	g.mu.Lock()
	if g.halted {
		g.mu.Unlock()
		return exception.ErrGatewayReconciling
	}
	if !g.connected {
		g.mu.Unlock()
		return exception.ErrGatewayDisconnected
	}
	if _, err := g.orders.ApplyIntent(intent); err != nil {
		g.mu.Unlock()
		return err
	}
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	ack, err := g.client.Submit(ctx, intent)
	if err != nil {
		if ctx.Err() != nil {
			// The order may or may not rest at the venue; only a
			// reconciliation settles it. Marking the session
			// disconnected forces that recovery path even when the
			// transport itself is still healthy.
			logs.Warnf("submit ambiguous: order=%d symbol=%d err=%v", intent.OrderID, intent.SymbolID, err)
			g.markDisconnected(err)
			return errors.Wrap(exception.ErrGatewayAmbiguous, "submit").With("orderID", intent.OrderID)
		}
		g.markDisconnected(err)
		return errors.Wrap(exception.ErrGatewayDisconnected, "submit").With("orderID", intent.OrderID)
	}
	g.OnAck(ack)
	return nil
}

// Cancel sends a best-effort cancel request. The order only becomes
// Canceled when the venue confirms; a fill racing the cancel wins.
func (g *Gateway) Cancel(ctx context.Context, orderID uint64) error {
	g.mu.Lock()
	o, ok := g.orders.Order(orderID)
	if !ok {
		g.mu.Unlock()
		return exception.ErrOrderUnknown
	}
	if o.State.Terminal() || o.State == OrderStateCreated {
		g.mu.Unlock()
		return errors.Wrap(exception.ErrOrderInvalidTransition, "cancel").
			With("orderID", orderID).
			With("state", o.State.String())
	}
	o.CancelRequested = true
	snapshot := *o
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	if err := g.client.Cancel(ctx, snapshot); err != nil {
		logs.Warnf("cancel request failed: order=%d err=%v", orderID, err)
		return errors.Wrap(exception.ErrGatewayAmbiguous, "cancel").With("orderID", orderID)
	}
	return nil
}

// CancelAll requests cancellation of every non-terminal order. Errors
// are logged per order; the sweep continues.
func (g *Gateway) CancelAll(ctx context.Context) int {
	g.mu.Lock()
	open := g.orders.NonTerminal()
	ids := make([]uint64, 0, len(open))
	for _, o := range open {
		if o.State == OrderStateCreated {
			continue
		}
		ids = append(ids, o.ID)
	}
	g.mu.Unlock()

	requested := 0
	for _, id := range ids {
		if err := g.Cancel(ctx, id); err != nil {
			logs.Warnf("cancel-all: order=%d err=%v", id, err)
			continue
		}
		requested++
	}
	return requested
}

// OnAck routes a venue acknowledgment through the state machine and the
// supervisor queue. Late or duplicate acks are logged and dropped.
func (g *Gateway) OnAck(ack schema.OrderAck) {
	g.mu.Lock()
	_, err := g.orders.ApplyAck(ack)
	g.mu.Unlock()
	if err != nil {
		logs.Warnf("dropped ack: order=%d status=%d err=%v", ack.OrderID, ack.Status, err)
		return
	}
	g.publish(bus.Event{
		Header: g.header(schema.EventOrderAck, time.Now().UTC().UnixNano()),
		Ack:    ack,
	})
}

// OnFill routes a venue fill through the state machine and the
// supervisor queue. Retransmitted fills are logged and dropped.
func (g *Gateway) OnFill(fill schema.Fill) {
	g.mu.Lock()
	_, err := g.orders.ApplyFill(fill)
	g.mu.Unlock()
	if err != nil {
		logs.Warnf("dropped fill: order=%d seq=%d err=%v", fill.OrderID, fill.FillSeq, err)
		return
	}
	g.publish(bus.Event{
		Header: g.header(schema.EventFill, fill.TsEvent),
		Fill:   fill,
	})
}

// Order returns a copy of the gateway's view of an order.
func (g *Gateway) Order(orderID uint64) (Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders.Order(orderID)
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// OpenOrders returns copies of every non-terminal order.
func (g *Gateway) OpenOrders() []Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	open := g.orders.NonTerminal()
	out := make([]Order, 0, len(open))
	for _, o := range open {
		out = append(out, *o)
	}
	return out
}

// Connected reports whether the venue session is believed healthy.
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *Gateway) markDisconnected(err error) {
	g.mu.Lock()
	was := g.connected
	g.connected = false
	g.mu.Unlock()
	if was {
		logs.Errorf("gateway disconnected: session=%s err=%v", g.cfg.Session, err)
		g.publish(bus.Event{
			Header:  g.header(schema.EventGatewayStatus, time.Now().UTC().UnixNano()),
			Gateway: schema.GatewayStateDisconnected,
		})
	}
}

func (g *Gateway) header(eventType schema.EventType, tsEvent int64) schema.EventHeader {
	g.mu.Lock()
	g.seq++
	seq := g.seq
	g.mu.Unlock()
	return schema.NewHeader(eventType, schema.SourceGateway, seq, tsEvent, time.Now().UTC().UnixNano())
}

func (g *Gateway) publish(e bus.Event) {
	if g.queue == nil {
		return
	}
	if err := g.queue.TryPublish(e); err != nil {
		logs.Errorf("gateway publish dropped: type=%d err=%v", e.Header.Type, err)
	}
}
