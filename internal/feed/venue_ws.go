package feed

import (
	"context"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

const subscribeRequestID = 1

// Stream connects the venue's public websocket to a Feed.
type Stream struct {
	wss      *ws.WebSocket
	feed     *Feed
	registry *schema.Registry
	norm     *normalizer
}

// NewStream dials nothing yet; Start opens the connection.
func NewStream(ctx context.Context, url string, registry *schema.Registry, feed *Feed) *Stream {
	return &Stream{
		wss:      ws.New(ctx, url),
		feed:     feed,
		registry: registry,
		norm:     newNormalizer(registry),
	}
}

// Start opens the websocket session.
func (s *Stream) Start(ctx context.Context) error {
	if err := s.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}
	s.feed.MarkConnected()
	return nil
}

// Close tears the session down.
func (s *Stream) Close() {
	s.wss.Close()
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type subscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

// Subscribe requests trade and quote updates for every registered
// instrument and waits for the venue's confirmation.
func (s *Stream) Subscribe(ctx context.Context) error {
	params := make([]string, 0, s.registry.InstrumentCount()*2)
	for i := 0; i < s.registry.InstrumentCount(); i++ {
		inst, ok := s.registry.InstrumentAt(i)
		if !ok {
			continue
		}
		params = append(params, inst.VenueSymbol+"@trade", inst.VenueSymbol+"@quote")
	}
	if len(params) == 0 {
		return exception.ErrFeedNoInstruments
	}

	appendIntoRegister := true
	if err := s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := subscribeRequest{
				Method: "SUBSCRIBE",
				Params: params,
				ID:     subscribeRequestID,
			}
			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp subscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != subscribeRequestID {
				return false, nil
			}
			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

// Observe pumps stream messages through the normalizer into the feed
// until the context ends or the stream closes.
func (s *Stream) Observe(ctx context.Context) (unsubscribe func()) {
	ch, cancel := s.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					s.feed.MarkDisconnected(exception.ErrFeedDisconnected)
					return
				}

				msg, ok := ws.ReadMessage[venueMarketMessage](m)
				if !ok || msg.Type == "" {
					continue
				}

				md, err := s.norm.normalize(msg)
				if err != nil {
					logs.Warnf("dropped market message: market=%s err=%v", msg.Market, err)
					continue
				}
				if err := s.feed.Apply(md); err != nil {
					logs.Warnf("dropped market event: symbol=%d seq=%d err=%v", md.SymbolID, md.VenueSeq, err)
				}
			}
		}
	}()

	return cancel
}
