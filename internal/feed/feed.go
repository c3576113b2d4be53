// Package feed normalizes venue market data into scaled events and
// publishes them to the session queue. Events are deduplicated by
// (instrument, venue sequence) and must move forward in event time per
// instrument; anything else is dropped before a strategy can see it.
package feed

import (
	"sync"
	"time"

	"main/internal/bus"
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/logs"
)

type instrumentCursor struct {
	lastSeq uint64
	lastTs  int64
}

// Feed is the normalized market data pipeline between a venue stream
// and the supervisor queue.
type Feed struct {
	registry *schema.Registry
	queue    *bus.Queue

	mu        sync.Mutex
	cursors   map[uint32]*instrumentCursor
	connected bool
	seq       uint64
}

// New creates a feed over the given instrument registry.
func New(registry *schema.Registry, queue *bus.Queue) (*Feed, error) {
	if registry == nil || registry.InstrumentCount() == 0 {
		return nil, exception.ErrFeedNoInstruments
	}
	return &Feed{
		registry: registry,
		queue:    queue,
		cursors:  make(map[uint32]*instrumentCursor, registry.InstrumentCount()),
	}, nil
}

// Apply validates one normalized event and publishes it. Duplicate
// venue sequences are dropped silently; events older than the last one
// seen for the instrument are dropped with ErrFeedStaleEvent.
func (f *Feed) Apply(md schema.MarketEvent) error {
	if _, ok := f.registry.Instrument(schema.SymbolID(md.SymbolID)); !ok {
		return exception.ErrFeedUnknownInstrument
	}
	if md.Kind == schema.MarketUnknown || md.TsEvent <= 0 {
		return exception.ErrFeedMalformedEvent
	}

	f.mu.Lock()
	cursor, ok := f.cursors[md.SymbolID]
	if !ok {
		cursor = &instrumentCursor{}
		f.cursors[md.SymbolID] = cursor
	}
	if md.VenueSeq != 0 && md.VenueSeq <= cursor.lastSeq {
		f.mu.Unlock()
		return nil
	}
	if md.TsEvent < cursor.lastTs {
		f.mu.Unlock()
		return exception.ErrFeedStaleEvent
	}
	if md.VenueSeq != 0 {
		cursor.lastSeq = md.VenueSeq
	}
	cursor.lastTs = md.TsEvent
	f.mu.Unlock()

	f.publish(bus.Event{
		Header: f.header(schema.EventMarket, md.TsEvent),
		Market: md,
	})
	return nil
}

// MarkConnected records a healthy stream and tells the supervisor.
func (f *Feed) MarkConnected() {
	f.setConnected(true, nil)
}

// MarkDisconnected records a broken stream and tells the supervisor,
// which treats the book as stale until data flows again.
func (f *Feed) MarkDisconnected(err error) {
	f.setConnected(false, err)
}

// Connected reports whether the stream is believed healthy.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Feed) setConnected(connected bool, cause error) {
	f.mu.Lock()
	was := f.connected
	f.connected = connected
	f.mu.Unlock()
	if was == connected {
		return
	}

	state := schema.FeedStateConnected
	if !connected {
		state = schema.FeedStateDisconnected
		logs.Warnf("feed disconnected: err=%v", cause)
	} else {
		logs.Info("feed connected")
	}
	f.publish(bus.Event{
		Header:  f.header(schema.EventFeedStatus, time.Now().UTC().UnixNano()),
		Feed:    state,
		FeedErr: cause,
	})
}

func (f *Feed) header(eventType schema.EventType, tsEvent int64) schema.EventHeader {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.mu.Unlock()
	return schema.NewHeader(eventType, schema.SourceFeed, seq, tsEvent, time.Now().UTC().UnixNano())
}

func (f *Feed) publish(e bus.Event) {
	if f.queue == nil {
		return
	}
	if err := f.queue.TryPublish(e); err != nil {
		logs.Errorf("feed publish dropped: type=%d err=%v", e.Header.Type, err)
	}
}
