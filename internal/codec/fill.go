package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const FillPayloadSize = 44

// EncodeFill serializes a fill into a fixed-size payload.
func EncodeFill(dst []byte, fill schema.Fill) []byte {
	if cap(dst) < FillPayloadSize {
		dst = make([]byte, FillPayloadSize)
	} else {
		dst = dst[:FillPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], fill.OrderID)
	binary.LittleEndian.PutUint32(dst[8:12], fill.SymbolID)
	binary.LittleEndian.PutUint32(dst[12:16], fill.FillSeq)
	binary.LittleEndian.PutUint16(dst[16:18], uint16(fill.Side))
	binary.LittleEndian.PutUint16(dst[18:20], fill.Flags)
	binary.LittleEndian.PutUint64(dst[20:28], uint64(fill.Price))
	binary.LittleEndian.PutUint64(dst[28:36], uint64(fill.Qty))
	binary.LittleEndian.PutUint64(dst[36:44], uint64(fill.TsEvent))

	return dst
}

// DecodeFill parses a fixed-size fill payload.
func DecodeFill(src []byte) (schema.Fill, bool) {
	if len(src) < FillPayloadSize {
		return schema.Fill{}, false
	}
	return schema.Fill{
		OrderID:  binary.LittleEndian.Uint64(src[0:8]),
		SymbolID: binary.LittleEndian.Uint32(src[8:12]),
		FillSeq:  binary.LittleEndian.Uint32(src[12:16]),
		Side:     schema.OrderSide(binary.LittleEndian.Uint16(src[16:18])),
		Flags:    binary.LittleEndian.Uint16(src[18:20]),
		Price:    schema.Price(int64(binary.LittleEndian.Uint64(src[20:28]))),
		Qty:      schema.Quantity(int64(binary.LittleEndian.Uint64(src[28:36]))),
		TsEvent:  int64(binary.LittleEndian.Uint64(src[36:44])),
	}, true
}
