package exception

import "errors"

var (
	ErrLedgerUnknownOrder = errors.New("ledger: order was never reserved")
	ErrLedgerOverfill     = errors.New("ledger: cumulative fills exceed order quantity")
	ErrLedgerClosedOrder  = errors.New("ledger: order already terminal")
)
