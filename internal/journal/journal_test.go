package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"main/internal/codec"
	"main/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	fills := []schema.Fill{
		{OrderID: 1, SymbolID: 1, FillSeq: 1, Side: schema.OrderSideBuy, Price: 100_000, Qty: 40, TsEvent: 10},
		{OrderID: 1, SymbolID: 1, FillSeq: 2, Side: schema.OrderSideBuy, Price: 100_100, Qty: 60, TsEvent: 20},
	}
	for i, fill := range fills {
		header := schema.NewHeader(schema.EventFill, schema.SourceGateway, uint64(i+1), fill.TsEvent, fill.TsEvent)
		require.NoError(t, w.TryAppend(header, codec.EncodeFill(nil, fill)))
	}
	require.NoError(t, w.Close())

	var got []schema.Fill
	err = Walk(dir, "", ReaderOptions{}, func(header schema.EventHeader, payload []byte) error {
		require.Equal(t, schema.EventFill, header.Type)
		fill, ok := codec.DecodeFill(payload)
		require.True(t, ok)
		got = append(got, fill)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, fills, got)
}

func TestSummarizeTalliesRecords(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	records := []struct {
		eventType schema.EventType
		payload   []byte
	}{
		{schema.EventMarket, codec.EncodeMarketEvent(nil, schema.MarketEvent{SymbolID: 1, Kind: schema.MarketTrade, Price: 100, Size: 1})},
		{schema.EventFill, codec.EncodeFill(nil, schema.Fill{OrderID: 1, SymbolID: 1, FillSeq: 1, Price: 100, Qty: 10})},
		{schema.EventFill, codec.EncodeFill(nil, schema.Fill{OrderID: 1, SymbolID: 1, FillSeq: 2, Price: 100, Qty: 10})},
	}
	for i, record := range records {
		header := schema.NewHeader(record.eventType, schema.SourceGateway, uint64(i+1), int64(i+1)*10, int64(i+1)*10)
		require.NoError(t, w.TryAppend(header, record.payload))
	}
	require.NoError(t, w.Close())

	audit, err := Summarize(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 3, audit.Records)
	assert.Equal(t, 1, audit.ByType[schema.EventMarket])
	assert.Equal(t, 2, audit.ByType[schema.EventFill])
	assert.Equal(t, uint64(1), audit.FirstSeq)
	assert.Equal(t, uint64(3), audit.LastSeq)
	assert.Equal(t, int64(10), audit.FirstTsRecv)
	assert.Equal(t, int64(30), audit.LastTsRecv)
}

func TestJournalDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	header := schema.NewHeader(schema.EventFill, schema.SourceGateway, 1, 10, 10)
	fill := schema.Fill{OrderID: 1, SymbolID: 1, FillSeq: 1, Price: 100_000, Qty: 40}
	require.NoError(t, w.TryAppend(header, codec.EncodeFill(nil, fill)))
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	path := filepath.Join(dir, entries[0].Name())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[recordHeaderSize+4] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	err = Walk(dir, "", ReaderOptions{}, func(schema.EventHeader, []byte) error { return nil })
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestJournalAppendRequiresStart(t *testing.T) {
	w, err := NewWriter(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	err = w.TryAppend(schema.NewHeader(schema.EventFill, schema.SourceGateway, 1, 0, 0), nil)
	assert.Error(t, err)
}
