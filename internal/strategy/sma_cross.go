package strategy

import (
	"main/internal/ledger"
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	defaultShortPeriod = 20
	defaultLongPeriod  = 50
)

// SMACross trades golden/dead crosses of two simple moving averages on
// one instrument. Prices live in a fixed ring buffer with a running
// sum, so the hot path does not allocate.
type SMACross struct {
	name string
	inst schema.Instrument
	qty  schema.Quantity

	shortPeriod int
	longPeriod  int

	prices []int64
	head   int
	count  int
	sum    int64

	prevShort int64
	prevLong  int64
}

// NewSMACross builds the SMA-cross strategy from config.
func NewSMACross(cfg Config, registry *schema.Registry) (*SMACross, error) {
	id, ok := registry.SymbolIDByName(cfg.Instrument)
	if !ok {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "sma_cross instrument").
			With("instrument", cfg.Instrument)
	}
	inst, _ := registry.Instrument(id)
	if cfg.Qty <= 0 {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "sma_cross qty must be positive")
	}
	short, long := cfg.ShortPeriod, cfg.LongPeriod
	if short <= 0 {
		short = defaultShortPeriod
	}
	if long <= 0 {
		long = defaultLongPeriod
	}
	if short >= long {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "sma_cross short period must be below long").
			With("short", short).
			With("long", long)
	}
	return &SMACross{
		name:        "sma-cross-" + cfg.Instrument,
		inst:        inst,
		qty:         cfg.Qty,
		shortPeriod: short,
		longPeriod:  long,
		prices:      make([]int64, long),
	}, nil
}

func (s *SMACross) Name() string {
	return s.name
}

// Seed preloads historical closes, oldest first, so the averages are
// warm before the first live trade.
func (s *SMACross) Seed(closes []schema.Price) {
	for _, close := range closes {
		if close <= 0 {
			continue
		}
		price := int64(close)
		if s.count == s.longPeriod {
			s.sum -= s.prices[s.head]
		}
		s.prices[s.head] = price
		s.sum += price
		s.head = (s.head + 1) % s.longPeriod
		if s.count < s.longPeriod {
			s.count++
		}
		if s.count == s.longPeriod {
			s.prevLong = s.sum / int64(s.longPeriod)
			s.prevShort = s.shortSMA()
		}
	}
}

// Evaluate updates the moving averages from trade prices and emits a
// market order on each cross.
func (s *SMACross) Evaluate(md schema.MarketEvent, snap ledger.Snapshot) []schema.OrderIntent {
	if md.Kind != schema.MarketTrade || md.Price <= 0 || schema.SymbolID(md.SymbolID) != s.inst.ID {
		return nil
	}

	price := int64(md.Price)
	if s.count == s.longPeriod {
		s.sum -= s.prices[s.head]
	}
	s.prices[s.head] = price
	s.sum += price
	s.head = (s.head + 1) % s.longPeriod
	if s.count < s.longPeriod {
		s.count++
	}
	if s.count < s.longPeriod {
		return nil
	}

	currLong := s.sum / int64(s.longPeriod)
	currShort := s.shortSMA()

	var out []schema.OrderIntent
	if s.prevShort != 0 && s.prevLong != 0 {
		if s.prevShort <= s.prevLong && currShort > currLong {
			out = append(out, s.order(schema.OrderSideBuy))
		}
		if s.prevShort >= s.prevLong && currShort < currLong {
			out = append(out, s.order(schema.OrderSideSell))
		}
	}

	s.prevShort = currShort
	s.prevLong = currLong
	return out
}

func (s *SMACross) order(side schema.OrderSide) schema.OrderIntent {
	return schema.OrderIntent{
		SymbolID:    uint32(s.inst.ID),
		Side:        side,
		Type:        schema.OrderTypeMarket,
		TimeInForce: schema.TimeInForceIOC,
		Qty:         s.qty,
	}
}

// shortSMA walks backwards from the latest sample.
func (s *SMACross) shortSMA() int64 {
	var sum int64
	idx := s.head
	for i := 0; i < s.shortPeriod; i++ {
		idx--
		if idx < 0 {
			idx = s.longPeriod - 1
		}
		sum += s.prices[idx]
	}
	return sum / int64(s.shortPeriod)
}
