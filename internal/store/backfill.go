package store

import (
	"context"

	"main/internal/gateway"
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// KlineSource fetches recent candles from the venue, oldest first.
type KlineSource interface {
	Klines(ctx context.Context, venueSymbol string, limit int) ([]gateway.Kline, error)
}

// BarWriter stores bars idempotently per (symbol, openTime).
type BarWriter interface {
	Upsert(ctx context.Context, bars []Bar) error
}

// Backfill refreshes the bars table from venue history, so warmup
// reads current candles even after downtime. Re-running it replaces
// overlapping rows.
func Backfill(ctx context.Context, dst BarWriter, src KlineSource, registry *schema.Registry, limit int) error {
	for i := 0; i < registry.InstrumentCount(); i++ {
		inst, ok := registry.InstrumentAt(i)
		if !ok {
			continue
		}
		klines, err := src.Klines(ctx, inst.VenueSymbol, limit)
		if err != nil {
			return errors.Wrapf(exception.ErrStoreUnavailable, "backfill %s: %v", inst.Name, err)
		}
		if len(klines) == 0 {
			logs.Warnf("no venue history for %s, warmup uses stored bars only", inst.Name)
			continue
		}
		bars := make([]Bar, 0, len(klines))
		for _, k := range klines {
			bars = append(bars, Bar{
				Symbol:   inst.Name,
				OpenTime: k.OpenTime,
				Open:     k.Open,
				High:     k.High,
				Low:      k.Low,
				Close:    k.Close,
				Volume:   k.Volume,
			})
		}
		if err := dst.Upsert(ctx, bars); err != nil {
			return err
		}
		logs.Infof("backfilled %d bars for %s", len(bars), inst.Name)
	}
	return nil
}
