package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const MarketEventPayloadSize = 72

// EncodeMarketEvent serializes a market event into a fixed-size payload.
func EncodeMarketEvent(dst []byte, md schema.MarketEvent) []byte {
	if cap(dst) < MarketEventPayloadSize {
		dst = make([]byte, MarketEventPayloadSize)
	} else {
		dst = dst[:MarketEventPayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], md.SymbolID)
	binary.LittleEndian.PutUint16(dst[4:6], uint16(md.Kind))
	binary.LittleEndian.PutUint16(dst[6:8], md.Flags)
	binary.LittleEndian.PutUint64(dst[8:16], md.VenueSeq)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(md.TsEvent))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(md.Price))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(md.Size))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(md.BidPrice))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(md.BidSize))
	binary.LittleEndian.PutUint64(dst[56:64], uint64(md.AskPrice))
	binary.LittleEndian.PutUint64(dst[64:72], uint64(md.AskSize))

	return dst
}

// DecodeMarketEvent parses a fixed-size market event payload.
func DecodeMarketEvent(src []byte) (schema.MarketEvent, bool) {
	if len(src) < MarketEventPayloadSize {
		return schema.MarketEvent{}, false
	}
	return schema.MarketEvent{
		SymbolID: binary.LittleEndian.Uint32(src[0:4]),
		Kind:     schema.MarketKind(binary.LittleEndian.Uint16(src[4:6])),
		Flags:    binary.LittleEndian.Uint16(src[6:8]),
		VenueSeq: binary.LittleEndian.Uint64(src[8:16]),
		TsEvent:  int64(binary.LittleEndian.Uint64(src[16:24])),
		Price:    schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Size:     schema.Quantity(int64(binary.LittleEndian.Uint64(src[32:40]))),
		BidPrice: schema.Price(int64(binary.LittleEndian.Uint64(src[40:48]))),
		BidSize:  schema.Quantity(int64(binary.LittleEndian.Uint64(src[48:56]))),
		AskPrice: schema.Price(int64(binary.LittleEndian.Uint64(src[56:64]))),
		AskSize:  schema.Quantity(int64(binary.LittleEndian.Uint64(src[64:72]))),
	}, true
}
