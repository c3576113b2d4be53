package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"main/internal/schema"

	"github.com/bytedance/sonic"
)

// Snapshot is an immutable point-in-time view of the ledger. It is safe
// to hand to the risk gate and strategies without synchronization.
type Snapshot struct {
	Timestamp  int64         `json:"timestamp"`
	Cash       schema.Cash   `json:"cash"`
	Positions  []Position    `json:"positions"`
	OpenOrders []OrderRecord `json:"openOrders"`
}

// Snapshot builds a snapshot from the current ledger state.
func (l *Ledger) Snapshot() Snapshot {
	positions := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		if pos.Qty == 0 {
			continue
		}
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].SymbolID < positions[j].SymbolID
	})

	orders := make([]OrderRecord, 0, len(l.orders))
	for _, rec := range l.orders {
		orders = append(orders, *rec)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].OrderID < orders[j].OrderID
	})

	return Snapshot{
		Timestamp:  time.Now().UTC().UnixNano(),
		Cash:       l.cash,
		Positions:  positions,
		OpenOrders: orders,
	}
}

// PositionFor returns the snapshot position for an instrument.
func (s Snapshot) PositionFor(symbolID uint32) Position {
	for _, pos := range s.Positions {
		if pos.SymbolID == symbolID {
			return pos
		}
	}
	return Position{SymbolID: symbolID}
}

// PendingQty sums the unfilled quantity of open orders on an instrument,
// signed by side.
func (s Snapshot) PendingQty(symbolID uint32) schema.Quantity {
	var total int64
	for _, rec := range s.OpenOrders {
		if rec.SymbolID != symbolID {
			continue
		}
		leaves := int64(rec.Qty - rec.FilledQty)
		if rec.Side == schema.OrderSideSell {
			leaves = -leaves
		}
		total += leaves
	}
	return schema.Quantity(total)
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := sonic.ConfigStd.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := sonic.ConfigStd.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks that two snapshots hold the same positions and cash.
func CompareSnapshots(expected, actual Snapshot) error {
	if expected.Cash != actual.Cash {
		return fmt.Errorf("snapshot cash mismatch: expected=%d actual=%d", expected.Cash, actual.Cash)
	}
	if len(expected.Positions) != len(actual.Positions) {
		return fmt.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	expectedMap := make(map[uint32]Position, len(expected.Positions))
	for _, pos := range expected.Positions {
		expectedMap[pos.SymbolID] = pos
	}
	for _, pos := range actual.Positions {
		want, ok := expectedMap[pos.SymbolID]
		if !ok {
			return fmt.Errorf("snapshot missing symbol: %d", pos.SymbolID)
		}
		if want.Qty != pos.Qty {
			return fmt.Errorf("snapshot qty mismatch: symbol=%d expected=%d actual=%d", pos.SymbolID, want.Qty, pos.Qty)
		}
	}
	return nil
}
