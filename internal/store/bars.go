package store

import (
	"context"

	"main/internal/schema"
	"main/internal/strategy"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Bar is one historical close, keyed by instrument name and bar open
// time. Prices are stored as decimal strings so the table stays
// scale-agnostic across instruments.
type Bar struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol   string `gorm:"size:32;uniqueIndex:idx_bars_symbol_open"`
	OpenTime int64  `gorm:"uniqueIndex:idx_bars_symbol_open"`
	Open     string `gorm:"size:32"`
	High     string `gorm:"size:32"`
	Low      string `gorm:"size:32"`
	Close    string `gorm:"size:32"`
	Volume   string `gorm:"size:32"`
}

// TableName fixes the gorm table name.
func (Bar) TableName() string {
	return "bars"
}

// BarRepo loads recent close history for strategy warmup.
type BarRepo interface {
	// RecentCloses returns up to limit closes for an instrument,
	// oldest first.
	RecentCloses(ctx context.Context, symbol string, limit int) ([]string, error)
}

// Warmup seeds the strategy with historical closes before the live
// stream starts. Strategies without history support are left cold.
func Warmup(ctx context.Context, bars BarRepo, registry *schema.Registry, st strategy.Strategy, cfg strategy.Config, limit int) error {
	switch s := st.(type) {
	case *strategy.Pairs:
		closesA, err := loadCloses(ctx, bars, registry, cfg.LegA, limit)
		if err != nil {
			return err
		}
		closesB, err := loadCloses(ctx, bars, registry, cfg.LegB, limit)
		if err != nil {
			return err
		}
		if len(closesA) != len(closesB) {
			// Misaligned history is worse than none: drop the shorter
			// tail so both legs cover the same bars.
			n := len(closesA)
			if len(closesB) < n {
				n = len(closesB)
			}
			closesA = closesA[len(closesA)-n:]
			closesB = closesB[len(closesB)-n:]
		}
		s.Seed(closesA, closesB)
		logs.Infof("warmed %s with %d bars per leg", s.Name(), len(closesA))
	case *strategy.SMACross:
		closes, err := loadCloses(ctx, bars, registry, cfg.Instrument, limit)
		if err != nil {
			return err
		}
		s.Seed(closes)
		logs.Infof("warmed %s with %d bars", s.Name(), len(closes))
	default:
		logs.Infof("strategy %s takes no warmup", st.Name())
	}
	return nil
}

func loadCloses(ctx context.Context, bars BarRepo, registry *schema.Registry, name string, limit int) ([]schema.Price, error) {
	id, ok := registry.SymbolIDByName(name)
	if !ok {
		return nil, errors.Wrap(exception.ErrFeedUnknownInstrument, "warmup").With("instrument", name)
	}
	inst, _ := registry.Instrument(id)

	raw, err := bars.RecentCloses(ctx, name, limit)
	if err != nil {
		return nil, errors.Wrap(exception.ErrStoreUnavailable, "warmup closes").With("instrument", name)
	}
	closes := make([]schema.Price, 0, len(raw))
	for _, value := range raw {
		scaled := schema.ScaledFromString(value, inst.Scale.PriceScale)
		if scaled <= 0 {
			continue
		}
		closes = append(closes, schema.Price(scaled))
	}
	return closes, nil
}
