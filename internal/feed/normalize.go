package feed

import (
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

// venueMarketMessage is the venue's public stream payload. Trade
// messages carry price/size, quote messages carry the best bid/ask.
type venueMarketMessage struct {
	Type   string `json:"type"`
	Market string `json:"market"`
	Seq    uint64 `json:"seq"`
	Time   int64  `json:"time"`
	Price  string `json:"price"`
	Size   string `json:"size"`
	Bid    string `json:"bid"`
	BidSz  string `json:"bid_size"`
	Ask    string `json:"ask"`
	AskSz  string `json:"ask_size"`
}

// normalizer converts venue decimal strings into scaled integers using
// the per-instrument scales from the registry.
type normalizer struct {
	byVenueSymbol map[string]schema.Instrument
}

func newNormalizer(registry *schema.Registry) *normalizer {
	n := &normalizer{byVenueSymbol: make(map[string]schema.Instrument, registry.InstrumentCount())}
	for i := 0; i < registry.InstrumentCount(); i++ {
		inst, ok := registry.InstrumentAt(i)
		if !ok {
			continue
		}
		n.byVenueSymbol[inst.VenueSymbol] = inst
	}
	return n
}

func (n *normalizer) normalize(msg venueMarketMessage) (schema.MarketEvent, error) {
	inst, ok := n.byVenueSymbol[msg.Market]
	if !ok {
		return schema.MarketEvent{}, errors.Wrap(exception.ErrFeedUnknownInstrument, "normalize").
			With("market", msg.Market)
	}
	if msg.Time <= 0 {
		return schema.MarketEvent{}, errors.Wrap(exception.ErrFeedMalformedEvent, "missing event time").
			With("market", msg.Market)
	}

	md := schema.MarketEvent{
		SymbolID: uint32(inst.ID),
		VenueSeq: msg.Seq,
		TsEvent:  msg.Time,
	}
	switch msg.Type {
	case "trade":
		md.Kind = schema.MarketTrade
		md.Price = schema.Price(schema.ScaledFromString(msg.Price, inst.Scale.PriceScale))
		md.Size = schema.Quantity(schema.ScaledFromString(msg.Size, inst.Scale.QuantityScale))
		if md.Price <= 0 || md.Size <= 0 {
			return schema.MarketEvent{}, errors.Wrap(exception.ErrFeedMalformedEvent, "bad trade fields").
				With("market", msg.Market).
				With("price", msg.Price).
				With("size", msg.Size)
		}
	case "quote":
		md.Kind = schema.MarketQuote
		md.BidPrice = schema.Price(schema.ScaledFromString(msg.Bid, inst.Scale.PriceScale))
		md.BidSize = schema.Quantity(schema.ScaledFromString(msg.BidSz, inst.Scale.QuantityScale))
		md.AskPrice = schema.Price(schema.ScaledFromString(msg.Ask, inst.Scale.PriceScale))
		md.AskSize = schema.Quantity(schema.ScaledFromString(msg.AskSz, inst.Scale.QuantityScale))
		if md.BidPrice <= 0 || md.AskPrice <= 0 || md.BidPrice > md.AskPrice {
			return schema.MarketEvent{}, errors.Wrap(exception.ErrFeedMalformedEvent, "crossed or empty quote").
				With("market", msg.Market).
				With("bid", msg.Bid).
				With("ask", msg.Ask)
		}
	default:
		return schema.MarketEvent{}, errors.Wrap(exception.ErrFeedMalformedEvent, "unknown message type").
			With("type", msg.Type)
	}
	return md, nil
}
