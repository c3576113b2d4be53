package supervisor

import (
	"time"

	"main/internal/ledger"
	"main/internal/schema"

	"github.com/yanun0323/logs"
)

// Summary accumulates per-session order flow counters. Only the
// supervisor goroutine writes it; readers take the copy from Result.
type Summary struct {
	Session        string
	StartedAt      time.Time
	EndedAt        time.Time
	Reason         string
	Events         uint64
	Intents        uint64
	Submitted      uint64
	RiskRejected   uint64
	VenueRejected  uint64
	Canceled       uint64
	Fills          uint64
	FilledQty      schema.Quantity
	FilledNotional schema.Notional
	FinalCash      schema.Cash
	FinalPositions []ledger.Position
	OpenOrders     int
}

// Log writes the session summary to the structured log.
func (s Summary) Log(registry *schema.Registry) {
	logs.Infof("session %s finished: reason=%q duration=%s", s.Session, s.Reason, s.EndedAt.Sub(s.StartedAt))
	logs.Infof("session %s flow: events=%d intents=%d submitted=%d riskRejected=%d venueRejected=%d canceled=%d",
		s.Session, s.Events, s.Intents, s.Submitted, s.RiskRejected, s.VenueRejected, s.Canceled)
	logs.Infof("session %s fills: count=%d qty=%d notional=%d", s.Session, s.Fills, s.FilledQty, s.FilledNotional)
	logs.Infof("session %s ledger: cash=%d openOrders=%d", s.Session, s.FinalCash, s.OpenOrders)
	for _, pos := range s.FinalPositions {
		name := "?"
		if registry != nil {
			if inst, ok := registry.Instrument(schema.SymbolID(pos.SymbolID)); ok {
				name = inst.Name
			}
		}
		logs.Infof("session %s position: symbol=%d name=%s qty=%d avgCost=%d",
			s.Session, pos.SymbolID, name, pos.Qty, pos.AvgCost)
	}
}
