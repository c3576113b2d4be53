package exception

import "errors"

var (
	ErrOrderUnknown           = errors.New("order: not found")
	ErrOrderDuplicate         = errors.New("order: already exists")
	ErrOrderInvalidTransition = errors.New("order: invalid state transition")
	ErrOrderInvalidFill       = errors.New("order: invalid fill quantity")
	ErrOrderOverfill          = errors.New("order: fill exceeds remaining quantity")
	ErrOrderInvalidIntent     = errors.New("order: invalid intent")
)

var (
	ErrGatewayDisconnected = errors.New("gateway: venue disconnected")
	ErrGatewayReconciling  = errors.New("gateway: reconciliation in progress")
	ErrGatewayAmbiguous    = errors.New("gateway: request timed out, outcome ambiguous")
	ErrGatewayVenueReject  = errors.New("gateway: venue rejected request")
	ErrReconcileMismatch   = errors.New("gateway: local and venue state disagree")
)
