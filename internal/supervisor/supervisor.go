package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/gateway"
	"main/internal/journal"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/strategy"
	"main/pkg/exception"

	"github.com/yanun0323/logs"
)

// Clock abstracts time so the reconnect and rate-limit paths are
// testable without real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config carries session-level supervisor settings.
type Config struct {
	Session         string
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Session == "" {
		c.Session = "trader"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	return c
}

// Deps are the collaborators the supervisor drives. Queue, Book, Gate,
// Engine and Gateway are required; the rest are optional.
type Deps struct {
	Queue   *bus.Queue
	Book    *ledger.Ledger
	Gate    *risk.Gate
	Equity  *risk.EquityTracker
	Engine  *strategy.Engine
	Gateway *gateway.Gateway
	Journal *journal.Writer
	Metrics *obs.Metrics
	Trace   *obs.TraceGenerator
	Clock   Clock

	// ReconnectFeed re-dials the market data stream. Success is
	// observed through the feed status event the stream publishes.
	ReconnectFeed func(ctx context.Context) error
	// RedialGateway restores venue connectivity before the supervisor
	// reconciles. Nil means the gateway transport needs no re-dial.
	RedialGateway func(ctx context.Context) error
}

// Supervisor owns the event loop. It is the single consumer of the
// queue and the only goroutine that mutates the ledger, evaluates risk
// or submits orders, so everything downstream stays race-free.
type Supervisor struct {
	cfg     Config
	queue   *bus.Queue
	book    *ledger.Ledger
	gate    *risk.Gate
	equity  *risk.EquityTracker
	engine  *strategy.Engine
	gw      *gateway.Gateway
	wal     *journal.Writer
	metrics *obs.Metrics
	trace   *obs.TraceGenerator
	clock   Clock

	reconnectFeed func(ctx context.Context) error
	redialGateway func(ctx context.Context) error
	feedRetry     *Reconnector
	gwRetry       *Reconnector
	feedDialing   uint32
	gwDialing     uint32

	refPrice  map[uint32]schema.Price
	encodeBuf []byte
	seq       uint64
	tripped   bool
	summary   Summary
}

// New wires a supervisor. Backoff applies to both feed and gateway
// reconnect cycles.
func New(cfg Config, deps Deps, backoff Backoff) *Supervisor {
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}
	return &Supervisor{
		cfg:           cfg,
		queue:         deps.Queue,
		book:          deps.Book,
		gate:          deps.Gate,
		equity:        deps.Equity,
		engine:        deps.Engine,
		gw:            deps.Gateway,
		wal:           deps.Journal,
		metrics:       deps.Metrics,
		trace:         deps.Trace,
		clock:         deps.Clock,
		reconnectFeed: deps.ReconnectFeed,
		redialGateway: deps.RedialGateway,
		feedRetry:     NewReconnector(backoff),
		gwRetry:       NewReconnector(backoff),
		refPrice:      make(map[uint32]schema.Price),
		summary:       Summary{Session: cfg.Session},
	}
}

// Run consumes the queue until Shutdown closes it or the context is
// canceled, then cancels remaining orders and finalizes the summary.
func (s *Supervisor) Run(ctx context.Context) error {
	s.summary.StartedAt = s.clock.Now()
	logs.Infof("session %s starting", s.cfg.Session)

	s.queue.Run(ctx, func(e bus.Event) { s.handle(ctx, e) })

	s.finish()
	return nil
}

// Shutdown stops accepting events. Run drains what is already queued
// before returning.
func (s *Supervisor) Shutdown(reason string) {
	if s.summary.Reason == "" {
		s.summary.Reason = reason
	}
	logs.Infof("session %s shutdown requested: %s", s.cfg.Session, reason)
	s.queue.Close()
}

// Result returns the session summary. Valid after Run returns.
func (s *Supervisor) Result() Summary {
	return s.summary
}

func (s *Supervisor) handle(ctx context.Context, e bus.Event) {
	s.metrics.ObserveEvent(e.Header)
	s.summary.Events++

	switch e.Header.Type {
	case schema.EventMarket:
		s.onMarket(ctx, e)
	case schema.EventFill:
		s.onFill(ctx, e)
	case schema.EventOrderAck:
		s.onAck(e)
	case schema.EventFeedStatus:
		s.onFeedStatus(ctx, e)
	case schema.EventGatewayStatus:
		s.onGatewayStatus(ctx, e)
	default:
		logs.Warnf("session %s dropping event type %d", s.cfg.Session, e.Header.Type)
	}
}

func (s *Supervisor) onMarket(ctx context.Context, e bus.Event) {
	md := e.Market
	s.journal(e.Header, codec.EncodeMarketEvent(s.encodeBuf, md))

	if md.Kind == schema.MarketTrade && md.Price > 0 {
		s.refPrice[md.SymbolID] = md.Price
		s.checkEquity(ctx)
	}
	if s.tripped || !s.gw.Connected() {
		return
	}

	snap := s.book.Snapshot()
	for _, intent := range s.engine.Evaluate(md, snap) {
		s.submit(ctx, intent)
	}
}

// submit runs one intent through risk, reservation and the venue in
// order. Reservation always precedes the wire; ambiguous outcomes keep
// the reservation so reconciliation can settle them.
func (s *Supervisor) submit(ctx context.Context, intent schema.OrderIntent) {
	s.summary.Intents++
	started := s.clock.Now()
	s.journal(s.header(schema.EventOrderIntent, intent.TsEvent), codec.EncodeOrderIntent(s.encodeBuf, intent))

	view := risk.View{
		Snapshot: s.book.Snapshot(),
		RefPrice: s.refPrice[intent.SymbolID],
		Now:      started.UnixNano(),
	}
	decision := s.gate.Evaluate(intent, view)
	s.metrics.ObserveRiskEval(s.clock.Now().Sub(started))
	s.journal(s.header(schema.EventRiskDecision, intent.TsEvent), codec.EncodeRiskDecision(s.encodeBuf, decision))

	if decision.Action != schema.RiskActionAllow {
		s.metrics.IncRiskReason(decision.Reason)
		s.summary.RiskRejected++
		s.engine.NotifyRiskRejection(intent, decision.Reason)
		logs.Warnf("session %s risk denied order %d: symbol=%d reason=%d",
			s.cfg.Session, intent.OrderID, intent.SymbolID, decision.Reason)
		return
	}

	if err := s.book.Reserve(intent); err != nil {
		logs.Errorf("session %s reserve failed for order %d: %+v", s.cfg.Session, intent.OrderID, err)
		return
	}
	s.gate.RecordSubmit(intent.SymbolID, view.Now)
	s.summary.Submitted++

	err := s.gw.Submit(ctx, intent)
	s.metrics.ObserveOrderFlow(s.clock.Now().Sub(started))
	if err == nil {
		return
	}
	s.metrics.IncError(err)

	// If the gateway registered the order its fate is unknown; the
	// reservation stands until reconciliation or a terminal ack. An
	// order the gateway never accepted can be released immediately.
	if _, known := s.gw.Order(intent.OrderID); known {
		logs.Warnf("session %s order %d in doubt after submit: class=%s %+v",
			s.cfg.Session, intent.OrderID, exception.Classify(err), err)
		return
	}
	if relErr := s.book.Release(intent.OrderID); relErr != nil {
		logs.Errorf("session %s release failed for order %d: %+v", s.cfg.Session, intent.OrderID, relErr)
	}
	logs.Warnf("session %s order %d not submitted: class=%s %+v",
		s.cfg.Session, intent.OrderID, exception.Classify(err), err)
}

func (s *Supervisor) onFill(ctx context.Context, e bus.Event) {
	fill := e.Fill
	s.journal(e.Header, codec.EncodeFill(s.encodeBuf, fill))

	before, open := s.book.OpenOrder(fill.OrderID)
	if err := s.book.ApplyFill(fill); err != nil {
		s.metrics.IncError(err)
		logs.Errorf("session %s fill rejected: order=%d seq=%d %+v", s.cfg.Session, fill.OrderID, fill.FillSeq, err)
		return
	}

	// ApplyFill deduplicates replayed fills; only a fill that moved
	// FilledQty counts toward the session totals.
	after, stillOpen := s.book.OpenOrder(fill.OrderID)
	applied := open && (!stillOpen || after.FilledQty != before.FilledQty)
	if !applied {
		return
	}
	s.summary.Fills++
	s.summary.FilledQty += fill.Qty
	s.summary.FilledNotional += schema.Notional(int64(fill.Price) * int64(fill.Qty))
	s.checkEquity(ctx)
}

func (s *Supervisor) onAck(e bus.Event) {
	ack := e.Ack
	s.journal(e.Header, codec.EncodeOrderAck(s.encodeBuf, ack))

	switch ack.Status {
	case schema.OrderAckStatusRejected:
		s.summary.VenueRejected++
		s.releaseOnTerminal(ack.OrderID)
		logs.Warnf("session %s venue rejected order %d: reason=%d", s.cfg.Session, ack.OrderID, ack.Reason)
	case schema.OrderAckStatusCanceled:
		s.summary.Canceled++
		s.releaseOnTerminal(ack.OrderID)
	}
}

func (s *Supervisor) releaseOnTerminal(orderID uint64) {
	err := s.book.Release(orderID)
	if err != nil && !errors.Is(err, exception.ErrLedgerUnknownOrder) {
		logs.Errorf("session %s release failed for order %d: %+v", s.cfg.Session, orderID, err)
	}
}

func (s *Supervisor) onFeedStatus(ctx context.Context, e bus.Event) {
	switch e.Feed {
	case schema.FeedStateConnected:
		s.feedRetry.Succeed()
		logs.Infof("session %s feed connected", s.cfg.Session)
	case schema.FeedStateDisconnected:
		logs.Warnf("session %s feed disconnected: %v", s.cfg.Session, e.FeedErr)
		s.startReconnect(ctx, "feed", s.feedRetry, &s.feedDialing, s.reconnectFeed)
	}
}

func (s *Supervisor) onGatewayStatus(ctx context.Context, e bus.Event) {
	switch e.Gateway {
	case schema.GatewayStateConnected:
		logs.Infof("session %s gateway connected", s.cfg.Session)
	case schema.GatewayStateReconciled:
		s.gwRetry.Succeed()
		logs.Infof("session %s gateway reconciled, trading resumed", s.cfg.Session)
	case schema.GatewayStateDisconnected:
		logs.Warnf("session %s gateway disconnected", s.cfg.Session)
		s.startReconnect(ctx, "gateway", s.gwRetry, &s.gwDialing, s.recoverGateway)
	}
}

// recoverGateway re-dials the venue if needed and reconciles orders
// before trading resumes.
func (s *Supervisor) recoverGateway(ctx context.Context) error {
	if s.redialGateway != nil {
		if err := s.redialGateway(ctx); err != nil {
			return err
		}
	}
	return s.gw.Reconcile(ctx)
}

// startReconnect spawns one retry loop per transport. The dialing flag
// keeps repeated disconnect events from stacking loops.
func (s *Supervisor) startReconnect(ctx context.Context, name string, retry *Reconnector, dialing *uint32, dial func(ctx context.Context) error) {
	if dial == nil {
		return
	}
	if !atomic.CompareAndSwapUint32(dialing, 0, 1) {
		return
	}
	go func() {
		defer atomic.StoreUint32(dialing, 0)
		for {
			wait := retry.Fail()
			logs.Warnf("session %s %s reconnect attempt %d in %s", s.cfg.Session, name, retry.Attempt(), wait)
			if err := s.clock.Sleep(ctx, wait); err != nil {
				return
			}
			retry.Dialing()
			if err := dial(ctx); err != nil {
				s.metrics.IncError(err)
				logs.Warnf("session %s %s reconnect failed: %+v", s.cfg.Session, name, err)
				continue
			}
			return
		}
	}()
}

// checkEquity marks cash plus positions to the last trade prices and
// trips the kill switch on a limit breach.
func (s *Supervisor) checkEquity(ctx context.Context) {
	if s.equity == nil || s.tripped {
		return
	}
	equity := int64(s.book.Cash())
	for symbolID, price := range s.refPrice {
		pos := s.book.Position(symbolID)
		equity += int64(pos.Qty) * int64(price)
	}
	if !s.equity.Update(schema.Cash(equity)) {
		return
	}
	s.tripped = true
	logs.Errorf("session %s kill switch tripped: equity=%d dailyPnL=%d totalPnL=%d",
		s.cfg.Session, equity, s.equity.DailyPnL(), s.equity.TotalPnL())
	canceled := s.gw.CancelAll(ctx)
	logs.Warnf("session %s requested cancel of %d open orders", s.cfg.Session, canceled)
	s.flattenBook(ctx)
	s.Shutdown("kill switch tripped")
}

// flattenBook closes every open position with market orders. The risk
// gate is bypassed: it already denies everything once tripped, and the
// whole point here is reducing exposure.
func (s *Supervisor) flattenBook(ctx context.Context) {
	snap := s.book.Snapshot()
	for _, intent := range s.engine.Flatten(snap, s.clock.Now().UnixNano()) {
		s.journal(s.header(schema.EventOrderIntent, intent.TsEvent), codec.EncodeOrderIntent(s.encodeBuf, intent))
		if err := s.book.Reserve(intent); err != nil {
			logs.Errorf("session %s flatten reserve failed for order %d: %+v", s.cfg.Session, intent.OrderID, err)
			continue
		}
		if err := s.gw.Submit(ctx, intent); err != nil {
			logs.Errorf("session %s flatten submit failed for order %d: %+v", s.cfg.Session, intent.OrderID, err)
		}
	}
}

func (s *Supervisor) finish() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if n := s.gw.CancelAll(ctx); n > 0 {
		logs.Infof("session %s canceled %d open orders on shutdown", s.cfg.Session, n)
	}

	snap := s.book.Snapshot()
	s.summary.EndedAt = s.clock.Now()
	s.summary.FinalCash = snap.Cash
	s.summary.FinalPositions = snap.Positions
	s.summary.OpenOrders = len(snap.OpenOrders)
	if s.summary.Reason == "" {
		s.summary.Reason = "context canceled"
	}
}

func (s *Supervisor) header(eventType schema.EventType, tsEvent int64) schema.EventHeader {
	s.seq++
	h := schema.NewHeader(eventType, schema.SourceSupervisor, s.seq, tsEvent, s.clock.Now().UnixNano())
	h.TraceID = s.trace.Next()
	return h
}

func (s *Supervisor) journal(header schema.EventHeader, payload []byte) {
	s.encodeBuf = payload
	if s.wal == nil {
		return
	}
	if err := s.wal.TryAppend(header, payload); err != nil {
		s.metrics.IncJournalDrop()
	}
}
